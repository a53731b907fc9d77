package repositories

import (
	"context"
	"fmt"

	"github.com/anonto42/postacad/backend/internal/models"
	"gorm.io/gorm"
)

// TransactionRepository stores resource purchases
type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransactionsForPostAndUser(ctx context.Context, postID string, buyerID uint) ([]models.Transaction, error)
	HasCompletedPurchase(ctx context.Context, postID string, buyerID uint) (bool, error)
	CompleteByCheckoutSession(ctx context.Context, sessionID string) (*models.Transaction, error)
	SetCheckoutSession(ctx context.Context, id, sessionID string) error
	MarkFailed(ctx context.Context, id string) error
}

type PostgresTransactionRepository struct {
	db *gorm.DB
}

func NewPostgresTransactionRepository(db *gorm.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

// CreateTransaction inserts a purchase. A buyer holds at most one transaction per post;
// a failed one is replaced, anything else yields ErrAlreadyPurchased.
func (r *PostgresTransactionRepository) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var existing models.Transaction
		err := db.Where("post_id = ? AND buyer_id = ?", tx.PostID, tx.BuyerID).First(&existing).Error
		switch {
		case err == nil && existing.Status != models.TransactionFailed:
			return ErrAlreadyPurchased
		case err == nil:
			if err := db.Delete(&existing).Error; err != nil {
				return err
			}
		case !isNotFound(notFound(err, "transaction")):
			return err
		}
		return db.Create(tx).Error
	})
}

func (r *PostgresTransactionRepository) GetTransactionsForPostAndUser(ctx context.Context, postID string, buyerID uint) ([]models.Transaction, error) {
	txs := []models.Transaction{}
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND buyer_id = ?", postID, buyerID).
		Order("created_at DESC").
		Find(&txs).Error
	return txs, err
}

func (r *PostgresTransactionRepository) HasCompletedPurchase(ctx context.Context, postID string, buyerID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("post_id = ? AND buyer_id = ? AND status = ?", postID, buyerID, models.TransactionCompleted).
		Count(&count).Error
	return count > 0, err
}

func (r *PostgresTransactionRepository) CompleteByCheckoutSession(ctx context.Context, sessionID string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.WithContext(ctx).Where("checkout_session_id = ?", sessionID).First(&tx).Error; err != nil {
		return nil, notFound(err, "transaction")
	}
	if tx.Status == models.TransactionCompleted {
		return &tx, nil
	}
	if err := r.db.WithContext(ctx).Model(&tx).Update("status", models.TransactionCompleted).Error; err != nil {
		return nil, err
	}
	tx.Status = models.TransactionCompleted
	return &tx, nil
}

func (r *PostgresTransactionRepository) SetCheckoutSession(ctx context.Context, id, sessionID string) error {
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", id).Update("checkout_session_id", sessionID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkFailed flags a transaction whose payment could not start, so the buyer may retry
func (r *PostgresTransactionRepository) MarkFailed(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("status", models.TransactionFailed).Error
}
