package services

import (
	"errors"
	"math"

	"github.com/campushub/loyalty-be/config"
	"github.com/campushub/loyalty-be/models"
	"gorm.io/gorm"
)

var (
	ErrInvalidPromotion     = errors.New("invalid or used promotions")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrRelatedNotFound      = errors.New("related transaction not found")
	ErrAlreadyProcessed     = errors.New("redemption already processed")
	ErrNotRedemption        = errors.New("transaction is not of type redemption")
	ErrNotEnoughEventPoints = errors.New("not enough remaining points")
	ErrNotGuest             = errors.New("user is not a guest of the event")
)

// EarnedPoints converts a purchase amount to points: 1 point per $0.25,
// rounded half away from zero.
func EarnedPoints(spent float64) int {
	return int(math.Round(spent / 0.25))
}

// LedgerService owns every balance mutation. The rule throughout: a balance
// changes only via an atomic `points + ?` update executed in the same
// database transaction as the ledger row insert.
type LedgerService struct{}

func NewLedgerService() *LedgerService {
	return &LedgerService{}
}

// validPromotions loads the referenced promotions and verifies none of the
// one_time ones has already been consumed by the target user. Any unknown or
// used id fails the whole list.
func (s *LedgerService) validPromotions(tx *gorm.DB, userID uint, ids []uint) ([]models.Promotion, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var promotions []models.Promotion
	if err := tx.Where("id IN ?", ids).Find(&promotions).Error; err != nil {
		return nil, err
	}
	if len(promotions) != len(ids) {
		return nil, ErrInvalidPromotion
	}

	for _, promo := range promotions {
		if promo.Type != models.PromotionTypeOneTime {
			continue
		}
		var used int64
		err := tx.Model(&models.TransactionPromotion{}).
			Joins("JOIN transactions ON transactions.id = transaction_promotions.transaction_id").
			Where("transaction_promotions.promotion_id = ? AND transactions.user_id = ?", promo.ID, userID).
			Count(&used).Error
		if err != nil {
			return nil, err
		}
		if used > 0 {
			return nil, ErrInvalidPromotion
		}
	}

	return promotions, nil
}

func attachPromotions(tx *gorm.DB, transactionID uint, promotions []models.Promotion) error {
	for _, promo := range promotions {
		join := models.TransactionPromotion{
			TransactionID: transactionID,
			PromotionID:   promo.ID,
		}
		if err := tx.Create(&join).Error; err != nil {
			return err
		}
	}
	return nil
}

func creditPoints(tx *gorm.DB, userID uint, amount int) error {
	return tx.Model(&models.User{}).Where("id = ?", userID).
		Update("points", gorm.Expr("points + ?", amount)).Error
}

// CreatePurchase records a purchase for the target user. A suspicious
// cashier's transaction is recorded with the full computed earn but the
// balance is not credited; the stored amount is the reconciliation value.
func (s *LedgerService) CreatePurchase(cashier, target *models.User, spent float64, promotionIDs []uint, remark string) (*models.Transaction, error) {
	earned := EarnedPoints(spent)

	tx := config.DB.Begin()

	promotions, err := s.validPromotions(tx, target.ID, promotionIDs)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	transaction := models.Transaction{
		UserID:     target.ID,
		Type:       models.TransactionTypePurchase,
		Amount:     earned,
		Spent:      &spent,
		Remark:     remark,
		CreatedBy:  cashier.Utorid,
		Suspicious: cashier.Suspicious,
	}

	if err := tx.Create(&transaction).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := attachPromotions(tx, transaction.ID, promotions); err != nil {
		tx.Rollback()
		return nil, err
	}

	if !cashier.Suspicious {
		if err := creditPoints(tx, target.ID, earned); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &transaction, nil
}

// CreateAdjustment records a manager adjustment against an existing
// transaction. The amount may be negative.
func (s *LedgerService) CreateAdjustment(creator, target *models.User, amount int, relatedID uint, promotionIDs []uint, remark string) (*models.Transaction, error) {
	tx := config.DB.Begin()

	var related models.Transaction
	if err := tx.First(&related, relatedID).Error; err != nil {
		tx.Rollback()
		return nil, ErrRelatedNotFound
	}

	promotions, err := s.validPromotions(tx, target.ID, promotionIDs)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	transaction := models.Transaction{
		UserID:    target.ID,
		Type:      models.TransactionTypeAdjustment,
		Amount:    amount,
		RelatedID: &relatedID,
		Remark:    remark,
		CreatedBy: creator.Utorid,
	}

	if err := tx.Create(&transaction).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := attachPromotions(tx, transaction.ID, promotions); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := creditPoints(tx, target.ID, amount); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &transaction, nil
}

// Transfer moves points between two users as an all-or-nothing unit: two
// paired ledger rows plus two balance updates, each row's relatedId pointing
// at the counterparty.
func (s *LedgerService) Transfer(sender, recipient *models.User, amount int, remark string) (*models.Transaction, error) {
	if sender.Points < amount {
		return nil, ErrInsufficientBalance
	}

	tx := config.DB.Begin()

	senderRow := models.Transaction{
		UserID:    sender.ID,
		Type:      models.TransactionTypeTransfer,
		Amount:    -amount,
		RelatedID: &recipient.ID,
		Remark:    remark,
		CreatedBy: sender.Utorid,
	}
	if err := tx.Create(&senderRow).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	recipientRow := models.Transaction{
		UserID:    recipient.ID,
		Type:      models.TransactionTypeTransfer,
		Amount:    amount,
		RelatedID: &sender.ID,
		Remark:    remark,
		CreatedBy: sender.Utorid,
	}
	if err := tx.Create(&recipientRow).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := creditPoints(tx, sender.ID, -amount); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := creditPoints(tx, recipient.ID, amount); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &senderRow, nil
}

// CreateRedemption records a pending redemption. The balance is not touched
// until a cashier processes it.
func (s *LedgerService) CreateRedemption(user *models.User, amount int, remark string) (*models.Transaction, error) {
	if user.Points < amount {
		return nil, ErrInsufficientBalance
	}

	transaction := models.Transaction{
		UserID:    user.ID,
		Type:      models.TransactionTypeRedemption,
		Amount:    -amount,
		Remark:    remark,
		CreatedBy: user.Utorid,
	}

	if err := config.DB.Create(&transaction).Error; err != nil {
		return nil, err
	}
	return &transaction, nil
}

// ProcessRedemption marks a redemption processed (exactly once) and debits
// the holder's balance in the same unit. The balance may have changed since
// the redemption was requested, so it is re-checked here.
func (s *LedgerService) ProcessRedemption(processor *models.User, transactionID uint) (*models.Transaction, error) {
	tx := config.DB.Begin()

	var transaction models.Transaction
	if err := tx.Preload("User").First(&transaction, transactionID).Error; err != nil {
		tx.Rollback()
		return nil, gorm.ErrRecordNotFound
	}

	if transaction.Type != models.TransactionTypeRedemption {
		tx.Rollback()
		return nil, ErrNotRedemption
	}

	if transaction.ProcessedBy != nil {
		tx.Rollback()
		return nil, ErrAlreadyProcessed
	}

	if transaction.User.Points < -transaction.Amount {
		tx.Rollback()
		return nil, ErrInsufficientBalance
	}

	processedBy := processor.Utorid
	if err := tx.Model(&transaction).Update("processed_by", processedBy).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// Amount is stored negative, so this is the debit.
	if err := creditPoints(tx, transaction.UserID, transaction.Amount); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	transaction.ProcessedBy = &processedBy
	return &transaction, nil
}

// SetSuspicious flips a transaction's suspicious flag and compensates the
// holder's balance: flagging removes the amount, clearing credits it back.
func (s *LedgerService) SetSuspicious(transactionID uint, suspicious bool) (*models.Transaction, error) {
	tx := config.DB.Begin()

	var transaction models.Transaction
	if err := tx.Preload("User").Preload("Promotions").First(&transaction, transactionID).Error; err != nil {
		tx.Rollback()
		return nil, gorm.ErrRecordNotFound
	}

	if transaction.Suspicious != suspicious {
		delta := transaction.Amount
		if suspicious {
			delta = -delta
		}
		if err := creditPoints(tx, transaction.UserID, delta); err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.Model(&transaction).Update("suspicious", suspicious).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	transaction.Suspicious = suspicious
	return &transaction, nil
}

// AwardResult describes one event-award ledger row.
type AwardResult struct {
	TransactionID uint
	Recipient     string
	Amount        int
}

// AwardEventPoints distributes event points to one guest (targetUtorid set)
// or to every guest. The whole request is one all-or-nothing unit: if the
// remaining budget cannot cover it, nothing is created.
func (s *LedgerService) AwardEventPoints(creator *models.User, event *models.Event, targetUtorid string, amount int, remark string) ([]AwardResult, error) {
	recipients := make([]models.RSVP, 0, len(event.RSVPs))
	if targetUtorid != "" {
		for _, rsvp := range event.RSVPs {
			if rsvp.User.Utorid == targetUtorid {
				recipients = append(recipients, rsvp)
				break
			}
		}
		if len(recipients) == 0 {
			return nil, ErrNotGuest
		}
	} else {
		recipients = event.RSVPs
	}

	total := amount * len(recipients)
	if event.PointsRemain < total {
		return nil, ErrNotEnoughEventPoints
	}

	tx := config.DB.Begin()

	// Guarded update: fails under a concurrent award that drained the budget.
	moved := tx.Model(&models.Event{}).
		Where("id = ? AND points_remain >= ?", event.ID, total).
		Updates(map[string]interface{}{
			"points_remain":  gorm.Expr("points_remain - ?", total),
			"points_awarded": gorm.Expr("points_awarded + ?", total),
		})
	if moved.Error != nil {
		tx.Rollback()
		return nil, moved.Error
	}
	if moved.RowsAffected == 0 {
		tx.Rollback()
		return nil, ErrNotEnoughEventPoints
	}

	results := make([]AwardResult, 0, len(recipients))
	for _, rsvp := range recipients {
		transaction := models.Transaction{
			UserID:    rsvp.UserID,
			Type:      models.TransactionTypeEvent,
			Amount:    amount,
			RelatedID: &event.ID,
			Remark:    remark,
			CreatedBy: creator.Utorid,
		}
		if err := tx.Create(&transaction).Error; err != nil {
			tx.Rollback()
			return nil, err
		}

		if err := creditPoints(tx, rsvp.UserID, amount); err != nil {
			tx.Rollback()
			return nil, err
		}

		results = append(results, AwardResult{
			TransactionID: transaction.ID,
			Recipient:     rsvp.User.Utorid,
			Amount:        amount,
		})
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return results, nil
}
