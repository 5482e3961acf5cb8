package models

import (
	"time"
)

type TransactionType string

const (
	TransactionTypePurchase   TransactionType = "purchase"
	TransactionTypeAdjustment TransactionType = "adjustment"
	TransactionTypeTransfer   TransactionType = "transfer"
	TransactionTypeRedemption TransactionType = "redemption"
	TransactionTypeEvent      TransactionType = "event"
)

// Transaction is an immutable ledger record. Only the suspicious flag and
// the processedBy field (redemptions, exactly once) change after creation.
type Transaction struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	UserID    uint            `json:"user_id" gorm:"not null;index"`
	User      User            `json:"-"`
	Type      TransactionType `json:"type" gorm:"not null;index"`
	Amount    int             `json:"amount" gorm:"not null"`
	Spent     *float64        `json:"spent,omitempty"`
	RelatedID *uint           `json:"relatedId,omitempty" gorm:"index"`
	Remark    string          `json:"remark"`
	CreatedBy string          `json:"createdBy" gorm:"not null;index"`

	Suspicious  bool    `json:"suspicious" gorm:"default:false"`
	ProcessedBy *string `json:"processedBy"`

	CreatedAt time.Time `json:"createdAt"`

	Promotions []TransactionPromotion `json:"-"`
}

// TransactionPromotion links a purchase or adjustment to the promotions it
// consumed. For one_time promotions this join is the per-user "used" record.
type TransactionPromotion struct {
	TransactionID uint        `json:"transaction_id" gorm:"primaryKey"`
	PromotionID   uint        `json:"promotion_id" gorm:"primaryKey"`
	Transaction   Transaction `json:"-"`
	Promotion     Promotion   `json:"-"`
	CreatedAt     time.Time   `json:"created_at"`
}

func (t *Transaction) PromotionIDs() []uint {
	ids := make([]uint, 0, len(t.Promotions))
	for _, p := range t.Promotions {
		ids = append(ids, p.PromotionID)
	}
	return ids
}
