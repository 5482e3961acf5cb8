package controllers

import (
	"net/http"
	"time"

	"github.com/campushub/loyalty-be/config"
	"github.com/campushub/loyalty-be/middleware"
	"github.com/campushub/loyalty-be/models"
	"github.com/gin-gonic/gin"
)

type PromotionController struct{}

func NewPromotionController() *PromotionController {
	return &PromotionController{}
}

type CreatePromotionRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Type        string   `json:"type" binding:"required"`
	StartTime   string   `json:"startTime" binding:"required"`
	EndTime     string   `json:"endTime" binding:"required"`
	MinSpending *float64 `json:"minSpending"`
	Rate        *float64 `json:"rate"`
	Points      *int     `json:"points"`
}

// POST /promotions
func (pc *PromotionController) CreatePromotion(c *gin.Context) {
	var req CreatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	promoType := models.PromotionType(req.Type)
	if promoType != models.PromotionTypeAutomatic && promoType != models.PromotionTypeOneTime {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Type must be 'automatic' or 'one_time'"})
		return
	}

	start, err1 := time.Parse(time.RFC3339, req.StartTime)
	end, err2 := time.Parse(time.RFC3339, req.EndTime)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start or end time format"})
		return
	}
	if start.Before(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "startTime cannot be in the past"})
		return
	}
	if !end.After(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endTime must be after startTime"})
		return
	}

	if req.MinSpending != nil && *req.MinSpending <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "minSpending must be a positive number"})
		return
	}
	if req.Rate != nil && *req.Rate <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rate must be a positive number"})
		return
	}

	points := 0
	if req.Points != nil {
		if *req.Points < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "points must be a non-negative integer"})
			return
		}
		points = *req.Points
	}

	promotion := models.Promotion{
		Name:        req.Name,
		Description: req.Description,
		Type:        promoType,
		StartTime:   start,
		EndTime:     end,
		MinSpending: req.MinSpending,
		Rate:        req.Rate,
		Points:      points,
		CreatedByID: middleware.CallerID(c),
	}

	if err := config.DB.Create(&promotion).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":          promotion.ID,
		"name":        promotion.Name,
		"description": promotion.Description,
		"type":        promotion.Type,
		"startTime":   promotion.StartTime.Format(time.RFC3339),
		"endTime":     promotion.EndTime.Format(time.RFC3339),
		"minSpending": promotion.MinSpending,
		"rate":        promotion.Rate,
		"points":      promotion.Points,
	})
}

func promotionListView(p *models.Promotion, staff bool) gin.H {
	view := gin.H{
		"id":          p.ID,
		"name":        p.Name,
		"type":        p.Type,
		"endTime":     p.EndTime.Format(time.RFC3339),
		"minSpending": p.MinSpending,
		"rate":        p.Rate,
		"points":      p.Points,
	}
	if staff {
		view["startTime"] = p.StartTime.Format(time.RFC3339)
	}
	return view
}

// GET /promotions
// Regular members see only promotions that are currently active and that they
// have not already used. Managers see everything and get extra filters.
func (pc *PromotionController) GetPromotions(c *gin.Context) {
	skip, take, ok := pagination(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pagination parameters"})
		return
	}

	staff := middleware.CallerRole(c).AtLeast(models.RoleManager)
	now := time.Now()

	query := config.DB.Model(&models.Promotion{})

	if name := c.Query("name"); name != "" {
		query = query.Where("name LIKE ?", "%"+name+"%")
	}
	if promoType := c.Query("type"); promoType != "" {
		query = query.Where("type = ?", promoType)
	}

	if staff {
		started := c.Query("started")
		ended := c.Query("ended")
		if started != "" && ended != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot specify both 'started' and 'ended'"})
			return
		}
		if started != "" {
			if started == "true" {
				query = query.Where("start_time <= ?", now)
			} else {
				query = query.Where("start_time > ?", now)
			}
		}
		if ended != "" {
			if ended == "true" {
				query = query.Where("end_time <= ?", now)
			} else {
				query = query.Where("end_time > ?", now)
			}
		}
	} else {
		query = query.Where("start_time <= ? AND end_time > ?", now, now).
			Where(`type = ? OR NOT EXISTS (
				SELECT 1 FROM transaction_promotions tp
				JOIN transactions t ON t.id = tp.transaction_id
				WHERE tp.promotion_id = promotions.id AND t.user_id = ?)`,
				models.PromotionTypeAutomatic, middleware.CallerID(c))
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var promotions []models.Promotion
	if err := query.Order("id ASC").Offset(skip).Limit(take).Find(&promotions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	results := make([]gin.H, 0, len(promotions))
	for i := range promotions {
		results = append(results, promotionListView(&promotions[i], staff))
	}

	c.JSON(http.StatusOK, gin.H{"count": count, "results": results})
}

// GET /promotions/:promotionId
func (pc *PromotionController) GetPromotionByID(c *gin.Context) {
	promotionID, ok := parseID(c, "promotionId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid promotion ID"})
		return
	}

	var promotion models.Promotion
	if err := config.DB.First(&promotion, promotionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Promotion not found"})
		return
	}

	staff := middleware.CallerRole(c).AtLeast(models.RoleManager)
	if !staff && !promotion.Active() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Promotion not found"})
		return
	}

	view := gin.H{
		"id":          promotion.ID,
		"name":        promotion.Name,
		"description": promotion.Description,
		"type":        promotion.Type,
		"endTime":     promotion.EndTime.Format(time.RFC3339),
		"minSpending": promotion.MinSpending,
		"rate":        promotion.Rate,
		"points":      promotion.Points,
	}
	if staff {
		view["startTime"] = promotion.StartTime.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, view)
}

type UpdatePromotionRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Type        *string  `json:"type"`
	StartTime   *string  `json:"startTime"`
	EndTime     *string  `json:"endTime"`
	MinSpending *float64 `json:"minSpending"`
	Rate        *float64 `json:"rate"`
	Points      *int     `json:"points"`
}

// PATCH /promotions/:promotionId
// Once a promotion has started, everything except the end time is frozen;
// once it has ended, nothing can change.
func (pc *PromotionController) UpdatePromotionByID(c *gin.Context) {
	promotionID, ok := parseID(c, "promotionId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid promotion ID"})
		return
	}

	var promotion models.Promotion
	if err := config.DB.First(&promotion, promotionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Promotion not found"})
		return
	}

	var req UpdatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	now := time.Now()
	started := promotion.Started()
	ended := promotion.Ended()

	frozen := req.Name != nil || req.Description != nil || req.Type != nil ||
		req.StartTime != nil || req.MinSpending != nil || req.Rate != nil ||
		req.Points != nil
	if started && frozen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot update these fields after the promotion has started"})
		return
	}
	if ended && req.EndTime != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot update endTime after the promotion has ended"})
		return
	}

	updates := map[string]interface{}{}
	newStart := promotion.StartTime
	newEnd := promotion.EndTime

	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Type != nil {
		promoType := models.PromotionType(*req.Type)
		if promoType != models.PromotionTypeAutomatic && promoType != models.PromotionTypeOneTime {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Type must be 'automatic' or 'one_time'"})
			return
		}
		updates["type"] = promoType
	}
	if req.StartTime != nil {
		parsed, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil || parsed.Before(now) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or past startTime"})
			return
		}
		updates["start_time"] = parsed
		newStart = parsed
	}
	if req.EndTime != nil {
		parsed, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil || parsed.Before(now) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or past endTime"})
			return
		}
		updates["end_time"] = parsed
		newEnd = parsed
	}
	if !newEnd.After(newStart) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endTime must be after startTime"})
		return
	}
	if req.MinSpending != nil {
		if *req.MinSpending <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "minSpending must be a positive number"})
			return
		}
		updates["min_spending"] = *req.MinSpending
	}
	if req.Rate != nil {
		if *req.Rate <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rate must be a positive number"})
			return
		}
		updates["rate"] = *req.Rate
	}
	if req.Points != nil {
		if *req.Points < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "points must be a non-negative integer"})
			return
		}
		updates["points"] = *req.Points
	}

	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No valid fields to update"})
		return
	}

	if err := config.DB.Model(&promotion).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	response := gin.H{
		"id":   promotion.ID,
		"name": promotion.Name,
		"type": promotion.Type,
	}
	for field, value := range updates {
		switch field {
		case "start_time":
			response["startTime"] = value.(time.Time).Format(time.RFC3339)
		case "end_time":
			response["endTime"] = value.(time.Time).Format(time.RFC3339)
		case "min_spending":
			response["minSpending"] = value
		default:
			response[field] = value
		}
	}

	c.JSON(http.StatusOK, response)
}

// DELETE /promotions/:promotionId
func (pc *PromotionController) DeletePromotionByID(c *gin.Context) {
	promotionID, ok := parseID(c, "promotionId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid promotion ID"})
		return
	}

	var promotion models.Promotion
	if err := config.DB.First(&promotion, promotionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Promotion not found"})
		return
	}

	if promotion.Started() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot delete a promotion that has already started"})
		return
	}

	if err := config.DB.Delete(&promotion).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}
