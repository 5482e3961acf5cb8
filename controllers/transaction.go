package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/campushub/loyalty-be/config"
	"github.com/campushub/loyalty-be/middleware"
	"github.com/campushub/loyalty-be/models"
	"github.com/campushub/loyalty-be/services"
	"github.com/campushub/loyalty-be/websocket"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type TransactionController struct {
	ledger *services.LedgerService
}

func NewTransactionController() *TransactionController {
	return &TransactionController{
		ledger: services.NewLedgerService(),
	}
}

// fetchCaller loads the authenticated user fresh from the database so role,
// verified and suspicious reflect the current state, not the token's.
func fetchCaller(c *gin.Context) (*models.User, bool) {
	var user models.User
	if err := config.DB.First(&user, middleware.CallerID(c)).Error; err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Creator not found"})
		return nil, false
	}
	return &user, true
}

type CreateTransactionRequest struct {
	Utorid       string   `json:"utorid" binding:"required"`
	Type         string   `json:"type" binding:"required"`
	Spent        *float64 `json:"spent"`
	Amount       *int     `json:"amount"`
	RelatedID    *uint    `json:"relatedId"`
	PromotionIDs []uint   `json:"promotionIds"`
	Remark       string   `json:"remark"`
}

// POST /transactions
func (tc *TransactionController) CreateTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	caller, ok := fetchCaller(c)
	if !ok {
		return
	}

	var target models.User
	if err := config.DB.Where("utorid = ?", req.Utorid).First(&target).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid utorid"})
		return
	}

	switch req.Type {
	case "purchase":
		tc.createPurchase(c, caller, &target, &req)
	case "adjustment":
		tc.createAdjustment(c, caller, &target, &req)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction type"})
	}
}

func (tc *TransactionController) createPurchase(c *gin.Context, caller, target *models.User, req *CreateTransactionRequest) {
	if !caller.Role.AtLeast(models.RoleCashier) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	if req.Spent == nil || *req.Spent <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid spent amount"})
		return
	}

	transaction, err := tc.ledger.CreatePurchase(caller, target, *req.Spent, req.PromotionIDs, req.Remark)
	if err != nil {
		if errors.Is(err, services.ErrInvalidPromotion) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or used promotions"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	earned := transaction.Amount
	if transaction.Suspicious {
		earned = 0
	}

	notify(websocket.EventTransactionCreated, websocket.TransactionEvent{
		TransactionID: transaction.ID,
		Utorid:        target.Utorid,
		Type:          string(transaction.Type),
		Amount:        transaction.Amount,
		CreatedBy:     caller.Utorid,
	})

	c.JSON(http.StatusCreated, gin.H{
		"id":           transaction.ID,
		"utorid":       target.Utorid,
		"type":         "purchase",
		"spent":        *req.Spent,
		"earned":       earned,
		"remark":       req.Remark,
		"promotionIds": req.PromotionIDs,
		"createdBy":    caller.Utorid,
	})
}

func (tc *TransactionController) createAdjustment(c *gin.Context, caller, target *models.User, req *CreateTransactionRequest) {
	if !caller.Role.AtLeast(models.RoleManager) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	if req.Amount == nil || *req.Amount == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid adjustment amount"})
		return
	}
	if req.RelatedID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid related transaction ID"})
		return
	}

	transaction, err := tc.ledger.CreateAdjustment(caller, target, *req.Amount, *req.RelatedID, req.PromotionIDs, req.Remark)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRelatedNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid related transaction ID"})
		case errors.Is(err, services.ErrInvalidPromotion):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or used promotions"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	notify(websocket.EventTransactionCreated, websocket.TransactionEvent{
		TransactionID: transaction.ID,
		Utorid:        target.Utorid,
		Type:          string(transaction.Type),
		Amount:        transaction.Amount,
		CreatedBy:     caller.Utorid,
	})

	c.JSON(http.StatusCreated, gin.H{
		"id":           transaction.ID,
		"utorid":       target.Utorid,
		"amount":       *req.Amount,
		"type":         "adjustment",
		"relatedId":    *req.RelatedID,
		"remark":       req.Remark,
		"promotionIds": req.PromotionIDs,
		"createdBy":    caller.Utorid,
	})
}

// transactionFilters applies the shared query-side filters for listing
// endpoints. Returns false after writing a 400 on malformed input.
func transactionFilters(c *gin.Context, query *gorm.DB) (*gorm.DB, bool) {
	if t := c.Query("type"); t != "" {
		query = query.Where("transactions.type = ?", t)
	}
	if relatedID := c.Query("relatedId"); relatedID != "" {
		id, err := strconv.Atoi(relatedID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid relatedId"})
			return nil, false
		}
		query = query.Where("transactions.related_id = ?", id)
	}
	if promotionID := c.Query("promotionId"); promotionID != "" {
		id, err := strconv.Atoi(promotionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid promotionId"})
			return nil, false
		}
		query = query.Where(`EXISTS (
			SELECT 1 FROM transaction_promotions tp
			WHERE tp.transaction_id = transactions.id AND tp.promotion_id = ?)`, id)
	}
	if amount := c.Query("amount"); amount != "" {
		value, err := strconv.Atoi(amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return nil, false
		}
		switch c.Query("operator") {
		case "gte":
			query = query.Where("transactions.amount >= ?", value)
		case "lte":
			query = query.Where("transactions.amount <= ?", value)
		}
	}
	return query, true
}

// GET /transactions
func (tc *TransactionController) GetTransactions(c *gin.Context) {
	skip, take, ok := pagination(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pagination"})
		return
	}

	query := config.DB.Model(&models.Transaction{})

	if name := c.Query("name"); name != "" {
		pattern := "%" + name + "%"
		query = query.Joins("JOIN users ON users.id = transactions.user_id").
			Where("users.name LIKE ? OR users.utorid LIKE ?", pattern, pattern)
	}
	if createdBy := c.Query("createdBy"); createdBy != "" {
		query = query.Where("transactions.created_by = ?", createdBy)
	}
	if suspicious := c.Query("suspicious"); suspicious == "true" || suspicious == "false" {
		query = query.Where("transactions.suspicious = ?", suspicious == "true")
	}

	query, ok = transactionFilters(c, query)
	if !ok {
		return
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var transactions []models.Transaction
	if err := query.Preload("User").Preload("Promotions").
		Order("transactions.id DESC").Offset(skip).Limit(take).
		Find(&transactions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	results := make([]gin.H, 0, len(transactions))
	for i := range transactions {
		results = append(results, managerTransactionView(&transactions[i]))
	}

	c.JSON(http.StatusOK, gin.H{"count": count, "results": results})
}

func managerTransactionView(t *models.Transaction) gin.H {
	view := gin.H{
		"id":           t.ID,
		"utorid":       t.User.Utorid,
		"amount":       t.Amount,
		"type":         t.Type,
		"remark":       t.Remark,
		"createdBy":    t.CreatedBy,
		"promotionIds": t.PromotionIDs(),
		"suspicious":   t.Suspicious,
		"spent":        t.Spent,
		"relatedId":    t.RelatedID,
	}
	if t.Type == models.TransactionTypeRedemption {
		view["redeemed"] = -t.Amount
		view["processedBy"] = t.ProcessedBy
	} else {
		view["redeemed"] = nil
	}
	return view
}

// ownerTransactionView projects fields by type for the owner's own listing:
// spent on purchases, relatedId on adjustment/transfer/redemption/event,
// redeemed on redemptions.
func ownerTransactionView(t *models.Transaction) gin.H {
	view := gin.H{
		"id":           t.ID,
		"type":         t.Type,
		"amount":       t.Amount,
		"remark":       t.Remark,
		"createdBy":    t.CreatedBy,
		"promotionIds": t.PromotionIDs(),
	}

	switch t.Type {
	case models.TransactionTypePurchase:
		view["spent"] = t.Spent
	case models.TransactionTypeAdjustment, models.TransactionTypeTransfer, models.TransactionTypeEvent:
		view["relatedId"] = t.RelatedID
	case models.TransactionTypeRedemption:
		view["relatedId"] = t.RelatedID
		view["redeemed"] = -t.Amount
	}
	return view
}

// GET /transactions/:transactionId
func (tc *TransactionController) GetTransactionByID(c *gin.Context) {
	transactionID, ok := parseID(c, "transactionId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction ID"})
		return
	}

	var transaction models.Transaction
	if err := config.DB.Preload("User").Preload("Promotions").
		First(&transaction, transactionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}

	c.JSON(http.StatusOK, managerTransactionView(&transaction))
}

type SuspiciousRequest struct {
	Suspicious *bool `json:"suspicious" binding:"required"`
}

// PATCH /transactions/:transactionId/suspicious
func (tc *TransactionController) PatchSuspicious(c *gin.Context) {
	transactionID, ok := parseID(c, "transactionId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction ID"})
		return
	}

	var req SuspiciousRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Suspicious == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "suspicious must be a boolean"})
		return
	}

	transaction, err := tc.ledger.SetSuspicious(transactionID, *req.Suspicious)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, managerTransactionView(transaction))
}

type ProcessedRequest struct {
	Processed *bool `json:"processed" binding:"required"`
}

// PATCH /transactions/:transactionId/processed
func (tc *TransactionController) PatchProcessed(c *gin.Context) {
	transactionID, ok := parseID(c, "transactionId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction ID"})
		return
	}

	var req ProcessedRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Processed == nil || !*req.Processed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload: 'processed' must be true"})
		return
	}

	caller, ok := fetchCaller(c)
	if !ok {
		return
	}

	transaction, err := tc.ledger.ProcessRedemption(caller, transactionID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		case errors.Is(err, services.ErrNotRedemption):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Transaction is not of type 'redemption'"})
		case errors.Is(err, services.ErrAlreadyProcessed):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Redemption already processed"})
		case errors.Is(err, services.ErrInsufficientBalance):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient points to process redemption"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	notify(websocket.EventRedemptionProcessed, websocket.TransactionEvent{
		TransactionID: transaction.ID,
		Utorid:        transaction.User.Utorid,
		Type:          string(transaction.Type),
		Amount:        transaction.Amount,
		CreatedBy:     caller.Utorid,
	})

	c.JSON(http.StatusOK, gin.H{
		"id":          transaction.ID,
		"utorid":      transaction.User.Utorid,
		"type":        transaction.Type,
		"processedBy": caller.Utorid,
		"redeemed":    -transaction.Amount,
		"remark":      transaction.Remark,
		"createdBy":   transaction.CreatedBy,
	})
}

type UserTransactionRequest struct {
	Type   string `json:"type" binding:"required"`
	Amount *int   `json:"amount" binding:"required"`
	Remark string `json:"remark"`
}

// POST /users/me/transactions
func (tc *TransactionController) CreateRedemption(c *gin.Context) {
	var req UserTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	caller, ok := fetchCaller(c)
	if !ok {
		return
	}

	if !caller.Verified {
		c.JSON(http.StatusForbidden, gin.H{"error": "User is not verified"})
		return
	}
	if req.Type != "redemption" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction type"})
		return
	}
	if *req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be a positive integer"})
		return
	}

	transaction, err := tc.ledger.CreateRedemption(caller, *req.Amount, req.Remark)
	if err != nil {
		if errors.Is(err, services.ErrInsufficientBalance) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient balance"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":          transaction.ID,
		"utorid":      caller.Utorid,
		"type":        transaction.Type,
		"amount":      transaction.Amount,
		"processedBy": nil,
		"remark":      transaction.Remark,
		"createdBy":   caller.Utorid,
	})
}

// GET /users/me/transactions
func (tc *TransactionController) GetMyTransactions(c *gin.Context) {
	skip, take, ok := pagination(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pagination"})
		return
	}

	query := config.DB.Model(&models.Transaction{}).
		Where("transactions.user_id = ?", middleware.CallerID(c))

	query, ok = transactionFilters(c, query)
	if !ok {
		return
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var transactions []models.Transaction
	if err := query.Preload("Promotions").
		Order("transactions.id DESC").Offset(skip).Limit(take).
		Find(&transactions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	results := make([]gin.H, 0, len(transactions))
	for i := range transactions {
		results = append(results, ownerTransactionView(&transactions[i]))
	}

	c.JSON(http.StatusOK, gin.H{"count": count, "results": results})
}

// POST /users/:userId/transactions
func (tc *TransactionController) CreateTransfer(c *gin.Context) {
	recipientID, ok := parseID(c, "userId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipient ID"})
		return
	}

	var req UserTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	sender, ok := fetchCaller(c)
	if !ok {
		return
	}

	if !sender.Verified {
		c.JSON(http.StatusForbidden, gin.H{"error": "User is not verified"})
		return
	}
	if req.Type != "transfer" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction type"})
		return
	}
	if *req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be a positive integer"})
		return
	}

	var recipient models.User
	if err := config.DB.First(&recipient, recipientID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipient not found"})
		return
	}

	transaction, err := tc.ledger.Transfer(sender, &recipient, *req.Amount, req.Remark)
	if err != nil {
		if errors.Is(err, services.ErrInsufficientBalance) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient balance"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	notify(websocket.EventTransactionCreated, websocket.TransactionEvent{
		TransactionID: transaction.ID,
		Utorid:        sender.Utorid,
		Type:          string(transaction.Type),
		Amount:        transaction.Amount,
		CreatedBy:     sender.Utorid,
	})

	c.JSON(http.StatusCreated, gin.H{
		"id":        transaction.ID,
		"sender":    sender.Utorid,
		"recipient": recipient.Utorid,
		"type":      "transfer",
		"sent":      *req.Amount,
		"remark":    req.Remark,
		"createdBy": sender.Utorid,
	})
}
