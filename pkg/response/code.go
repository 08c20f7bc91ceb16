package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 认证错误 100xx
	ErrTokenInvalid = 10001
	ErrNoPermission = 10002

	// 优惠券模块错误 200xx
	ErrCouponNotFound = 20001
	ErrCouponInvalid  = 20002
	ErrCouponUsed     = 20003

	// 积分模块错误 300xx
	ErrPointsInsufficient = 30001
	ErrPointsInvalidValue = 30002

	// 购物车/收藏模块错误 400xx
	ErrCartItemNotFound = 40001
	ErrItemNotFound     = 40002

	// 订单模块错误 600xx
	ErrOrderInventoryShort = 60001
	ErrOrderNotFound       = 60002
	ErrOrderNotCancellable = 60003
	ErrOrderPriceMismatch  = 60004

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)
