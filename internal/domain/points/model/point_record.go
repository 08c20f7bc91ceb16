package model

import (
	"time"

	baseModel "chara_shop/pkg/model"
)

// PointRecord 积分记录，只追加（append-only）
//
// Amount > 0 是授予（含部分消费后拆出的余额记录），
// Amount < 0 是消费，SourceRecordID 指向被抽取的授予记录。
// 任何记录都不会被物理删除：消费把授予标记 is_used，
// 取消订单把消费记录标记 is_cancelled 并恢复来源。
type PointRecord struct {
	baseModel.BaseModel
	UserID         string    `gorm:"type:uuid;index;not null" json:"userId"`
	Amount         int       `gorm:"not null" json:"amount"`
	ExpiresAt      time.Time `gorm:"index;not null" json:"expiresAt"`
	IsUsed         bool      `gorm:"not null;default:false" json:"isUsed"`
	IsCancelled    bool      `gorm:"not null;default:false" json:"isCancelled"`
	OrderID        string    `gorm:"type:uuid;index;default:null" json:"orderId,omitempty"`
	SourceRecordID string    `gorm:"type:uuid;default:null" json:"sourceRecordId,omitempty"`
	Reason         string    `gorm:"type:varchar(100)" json:"reason"`
}

// Available 该记录当前是否计入可用余额
func (r *PointRecord) Available(now time.Time) bool {
	return r.Amount > 0 && !r.IsUsed && !r.IsCancelled && r.ExpiresAt.After(now)
}
