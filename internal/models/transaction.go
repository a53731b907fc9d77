package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction records the purchase of a resource post by a user
type Transaction struct {
	ID                string            `json:"id" gorm:"type:uuid;primaryKey"`
	PostID            string            `json:"post_id" gorm:"index;uniqueIndex:idx_buyer_post_tx"`
	BuyerID           uint              `json:"buyer_id" gorm:"index;uniqueIndex:idx_buyer_post_tx"`
	Amount            int64             `json:"amount"`
	Status            TransactionStatus `json:"status" gorm:"size:20;index"`
	CheckoutSessionID string            `json:"checkout_session_id,omitempty" gorm:"index"`
	CheckoutURL       string            `json:"checkout_url,omitempty" gorm:"-"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
