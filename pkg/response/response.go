package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`    // 业务码
	Message string      `json:"message"` // 提示信息
	Data    interface{} `json:"data"`    // 数据
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应 (参数错误 / 系统错误等，HTTP 状态码非 200)
func Error(c *gin.Context, httpCode int, errCode int, msg string) {
	c.JSON(httpCode, Response{
		Code:    errCode,
		Message: msg,
		Data:    nil,
	})
}

// Fail 业务失败响应 (HTTP 200, 业务码非 0)
// 库存不足、积分不足、优惠券不可用等业务规则拒绝走这里，
// 真正的基础设施故障才走 Error
func Fail(c *gin.Context, errCode int, msg string) {
	c.JSON(http.StatusOK, Response{
		Code:    errCode,
		Message: msg,
		Data:    nil,
	})
}

// BadRequest 参数校验失败的快捷方法
func BadRequest(c *gin.Context, msg string) {
	Error(c, http.StatusBadRequest, ErrInvalidParam, msg)
}

// Internal 系统内部错误的快捷方法 (事务保证操作未生效)
func Internal(c *gin.Context) {
	Error(c, http.StatusInternalServerError, ErrServerInternal, "Internal server error, the operation did not take effect")
}
