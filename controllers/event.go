package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/campushub/loyalty-be/config"
	"github.com/campushub/loyalty-be/middleware"
	"github.com/campushub/loyalty-be/models"
	"github.com/campushub/loyalty-be/services"
	"github.com/campushub/loyalty-be/websocket"
	"github.com/gin-gonic/gin"
)

type EventController struct {
	ledger *services.LedgerService
}

func NewEventController() *EventController {
	return &EventController{
		ledger: services.NewLedgerService(),
	}
}

type CreateEventRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"required"`
	Location    string `json:"location" binding:"required"`
	StartTime   string `json:"startTime" binding:"required"`
	EndTime     string `json:"endTime" binding:"required"`
	Capacity    *int   `json:"capacity"`
	Points      *int   `json:"points" binding:"required"`
}

// POST /events
func (ec *EventController) CreateEvent(c *gin.Context) {
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	if *req.Points <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Points must be a positive integer"})
		return
	}

	start, err1 := time.Parse(time.RFC3339, req.StartTime)
	end, err2 := time.Parse(time.RFC3339, req.EndTime)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start or end time format"})
		return
	}
	if !end.After(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "End time must be after start time"})
		return
	}

	if req.Capacity != nil && *req.Capacity <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid capacity"})
		return
	}

	event := models.Event{
		Name:         req.Name,
		Description:  req.Description,
		Location:     req.Location,
		StartTime:    start,
		EndTime:      end,
		Capacity:     req.Capacity,
		PointsRemain: *req.Points,
	}

	if err := config.DB.Create(&event).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":            event.ID,
		"name":          event.Name,
		"description":   event.Description,
		"location":      event.Location,
		"startTime":     event.StartTime.Format(time.RFC3339),
		"endTime":       event.EndTime.Format(time.RFC3339),
		"capacity":      event.Capacity,
		"pointsRemain":  event.PointsRemain,
		"pointsAwarded": event.PointsAwarded,
		"published":     event.Published,
		"organizers":    []gin.H{},
		"guests":        []gin.H{},
	})
}

// GET /events
func (ec *EventController) GetEvents(c *gin.Context) {
	started := c.Query("started")
	ended := c.Query("ended")
	if started != "" && ended != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot specify both 'started' and 'ended'"})
		return
	}

	skip, take, ok := pagination(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pagination parameters"})
		return
	}

	isManager := middleware.CallerRole(c).AtLeast(models.RoleManager)
	now := time.Now()

	query := config.DB.Model(&models.Event{})

	if name := c.Query("name"); name != "" {
		query = query.Where("name LIKE ?", "%"+name+"%")
	}
	if location := c.Query("location"); location != "" {
		query = query.Where("location LIKE ?", "%"+location+"%")
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

	// Unpublished events are invisible below manager.
	if !isManager {
		query = query.Where("published = ?", true)
	} else if published := c.Query("published"); published == "true" || published == "false" {
		query = query.Where("published = ?", published == "true")
	}

	var events []models.Event
	if err := query.Preload("RSVPs").Order("id ASC").Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	showFull := c.DefaultQuery("showFull", "false") == "true"
	results := make([]gin.H, 0, len(events))
	for i := range events {
		event := &events[i]
		if !showFull && event.Full(len(event.RSVPs)) {
			continue
		}
		view := gin.H{
			"id":        event.ID,
			"name":      event.Name,
			"location":  event.Location,
			"startTime": event.StartTime.Format(time.RFC3339),
			"endTime":   event.EndTime.Format(time.RFC3339),
			"capacity":  event.Capacity,
			"numGuests": len(event.RSVPs),
		}
		if isManager {
			view["pointsRemain"] = event.PointsRemain
			view["pointsAwarded"] = event.PointsAwarded
			view["published"] = event.Published
		}
		results = append(results, view)
	}

	count := len(results)
	if skip > count {
		skip = count
	}
	end := skip + take
	if end > count {
		end = count
	}

	c.JSON(http.StatusOK, gin.H{"count": count, "results": results[skip:end]})
}

func loadEvent(c *gin.Context) (*models.Event, bool) {
	eventID, ok := parseID(c, "eventId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return nil, false
	}

	var event models.Event
	if err := config.DB.Preload("Organizers.User").Preload("RSVPs.User").
		First(&event, eventID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return nil, false
	}
	return &event, true
}

func isOrganizer(event *models.Event, userID uint) bool {
	for _, organizer := range event.Organizers {
		if organizer.UserID == userID {
			return true
		}
	}
	return false
}

// GET /events/:eventId
func (ec *EventController) GetEventByID(c *gin.Context) {
	event, ok := loadEvent(c)
	if !ok {
		return
	}

	isManager := middleware.CallerRole(c).AtLeast(models.RoleManager)
	organizer := isOrganizer(event, middleware.CallerID(c))

	if !event.Published && !isManager && !organizer {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}

	organizers := make([]gin.H, 0, len(event.Organizers))
	for _, o := range event.Organizers {
		organizers = append(organizers, gin.H{
			"id":     o.User.ID,
			"utorid": o.User.Utorid,
			"name":   o.User.Name,
		})
	}

	view := gin.H{
		"id":          event.ID,
		"name":        event.Name,
		"description": event.Description,
		"location":    event.Location,
		"startTime":   event.StartTime.Format(time.RFC3339),
		"endTime":     event.EndTime.Format(time.RFC3339),
		"capacity":    event.Capacity,
		"organizers":  organizers,
		"numGuests":   len(event.RSVPs),
	}

	if isManager || organizer {
		guests := make([]gin.H, 0, len(event.RSVPs))
		for _, rsvp := range event.RSVPs {
			guests = append(guests, gin.H{"id": rsvp.UserID})
		}
		view["pointsRemain"] = event.PointsRemain
		view["pointsAwarded"] = event.PointsAwarded
		view["published"] = event.Published
		view["guests"] = guests
	}

	c.JSON(http.StatusOK, view)
}

type UpdateEventRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	StartTime   *string `json:"startTime"`
	EndTime     *string `json:"endTime"`
	Capacity    *int    `json:"capacity"`
	Points      *int    `json:"points"`
	Published   *bool   `json:"published"`
}

// PATCH /events/:eventId
func (ec *EventController) UpdateEventByID(c *gin.Context) {
	event, ok := loadEvent(c)
	if !ok {
		return
	}

	isManager := middleware.CallerRole(c).AtLeast(models.RoleManager)
	if !isManager && !isOrganizer(event, middleware.CallerID(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	now := time.Now()
	started := event.Started()
	ended := event.Ended()

	updates := map[string]interface{}{}
	newStart := event.StartTime
	newEnd := event.EndTime

	if req.Name != nil {
		if started {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot update name after event has started"})
			return
		}
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		if started {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot update description after event has started"})
			return
		}
		updates["description"] = *req.Description
	}
	if req.Location != nil {
		if started {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot update location after event has started"})
			return
		}
		updates["location"] = *req.Location
	}

	if req.StartTime != nil {
		parsed, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil || parsed.Before(now) || started {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or past startTime"})
			return
		}
		updates["start_time"] = parsed
		newStart = parsed
	}
	if req.EndTime != nil {
		parsed, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil || parsed.Before(now) || ended {
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

	if req.Capacity != nil {
		if started {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot update capacity after event has started"})
			return
		}
		if *req.Capacity <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid capacity"})
			return
		}
		if len(event.RSVPs) > *req.Capacity {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Capacity less than confirmed guests"})
			return
		}
		updates["capacity"] = *req.Capacity
	}

	if req.Points != nil {
		if !isManager {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only managers can update points"})
			return
		}
		if *req.Points < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid points value"})
			return
		}
		// The new total must cover what was already distributed; the
		// remainder is what is left to award.
		if *req.Points < event.PointsAwarded {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Points cannot be less than awarded"})
			return
		}
		updates["points_remain"] = *req.Points - event.PointsAwarded
	}

	if req.Published != nil {
		if !isManager {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only managers can publish events"})
			return
		}
		if !*req.Published {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Published can only be set to true"})
			return
		}
		updates["published"] = true
	}

	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No valid fields to update"})
		return
	}

	if err := config.DB.Model(event).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if published, ok := updates["published"]; ok && published == true {
		notify(websocket.EventEventPublished, websocket.EventNotification{
			EventID: event.ID,
			Name:    event.Name,
		})
	}

	response := gin.H{
		"id":       event.ID,
		"name":     event.Name,
		"location": event.Location,
	}
	for field, value := range updates {
		switch field {
		case "start_time":
			response["startTime"] = value.(time.Time).Format(time.RFC3339)
		case "end_time":
			response["endTime"] = value.(time.Time).Format(time.RFC3339)
		case "points_remain":
			response["pointsRemain"] = value
		default:
			response[field] = value
		}
	}

	c.JSON(http.StatusOK, response)
}

// DELETE /events/:eventId
// Only unpublished events can be deleted; organizer and RSVP rows go first.
func (ec *EventController) DeleteEventByID(c *gin.Context) {
	eventID, ok := parseID(c, "eventId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	var event models.Event
	if err := config.DB.First(&event, eventID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}

	if event.Published {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete a published event"})
		return
	}

	tx := config.DB.Begin()
	if err := tx.Where("event_id = ?", eventID).Delete(&models.RSVP{}).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if err := tx.Where("event_id = ?", eventID).Delete(&models.Organizer{}).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if err := tx.Delete(&event).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}

type UtoridRequest struct {
	Utorid string `json:"utorid" binding:"required"`
}

// POST /events/:eventId/organizers
func (ec *EventController) AddOrganizer(c *gin.Context) {
	event, ok := loadEvent(c)
	if !ok {
		return
	}

	var req UtoridRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "utorid is required"})
		return
	}

	if event.Ended() {
		c.JSON(http.StatusGone, gin.H{"error": "Event has already ended"})
		return
	}

	var user models.User
	if err := config.DB.Where("utorid = ?", req.Utorid).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	for _, rsvp := range event.RSVPs {
		if rsvp.UserID == user.ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User is currently a guest. Remove them as guest first."})
			return
		}
	}

	if !isOrganizer(event, user.ID) {
		organizer := models.Organizer{UserID: user.ID, EventID: event.ID}
		if err := config.DB.Create(&organizer).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
	}

	var organizers []models.Organizer
	config.DB.Preload("User").Where("event_id = ?", event.ID).Find(&organizers)

	organizerInfo := make([]gin.H, 0, len(organizers))
	for _, o := range organizers {
		organizerInfo = append(organizerInfo, gin.H{
			"id":     o.User.ID,
			"utorid": o.User.Utorid,
			"name":   o.User.Name,
		})
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         event.ID,
		"name":       event.Name,
		"location":   event.Location,
		"organizers": organizerInfo,
	})
}

// DELETE /events/:eventId/organizers/:userId
func (ec *EventController) RemoveOrganizer(c *gin.Context) {
	eventID, ok1 := parseID(c, "eventId")
	userID, ok2 := parseID(c, "userId")
	if !ok1 || !ok2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID or user ID"})
		return
	}

	result := config.DB.Where("event_id = ? AND user_id = ?", eventID, userID).
		Delete(&models.Organizer{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Organizer not found for this event"})
		return
	}

	c.Status(http.StatusNoContent)
}

// POST /events/:eventId/guests
func (ec *EventController) AddGuest(c *gin.Context) {
	event, ok := loadEvent(c)
	if !ok {
		return
	}

	var req UtoridRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing utorid"})
		return
	}

	if event.Ended() || event.Full(len(event.RSVPs)) {
		c.JSON(http.StatusGone, gin.H{"error": "Event is full or has ended"})
		return
	}

	isManager := middleware.CallerRole(c).AtLeast(models.RoleManager)
	if !isManager && !isOrganizer(event, middleware.CallerID(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	var guest models.User
	if err := config.DB.Where("utorid = ?", req.Utorid).First(&guest).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if isOrganizer(event, guest.ID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User is an organizer"})
		return
	}

	for _, rsvp := range event.RSVPs {
		if rsvp.UserID == guest.ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User already RSVP'd"})
			return
		}
	}

	rsvp := models.RSVP{UserID: guest.ID, EventID: event.ID}
	if err := config.DB.Create(&rsvp).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       event.ID,
		"name":     event.Name,
		"location": event.Location,
		"guestAdded": gin.H{
			"id":     guest.ID,
			"utorid": guest.Utorid,
			"name":   guest.Name,
		},
		"numGuests": len(event.RSVPs) + 1,
	})
}

// DELETE /events/:eventId/guests/:userId
func (ec *EventController) RemoveGuest(c *gin.Context) {
	eventID, ok1 := parseID(c, "eventId")
	userID, ok2 := parseID(c, "userId")
	if !ok1 || !ok2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID or user ID"})
		return
	}

	var event models.Event
	if err := config.DB.First(&event, eventID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}

	result := config.DB.Where("event_id = ? AND user_id = ?", eventID, userID).
		Delete(&models.RSVP{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Guest not found for this event"})
		return
	}

	c.Status(http.StatusNoContent)
}

// POST /events/:eventId/guests/me
// Self-RSVP is for regular members only; staff are added by an organizer.
func (ec *EventController) JoinEvent(c *gin.Context) {
	if middleware.CallerRole(c) != models.RoleRegular {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	event, ok := loadEvent(c)
	if !ok {
		return
	}

	if !event.Published {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not published"})
		return
	}

	if event.Ended() || event.Full(len(event.RSVPs)) {
		c.JSON(http.StatusGone, gin.H{"error": "Event has ended or is full"})
		return
	}

	userID := middleware.CallerID(c)
	for _, rsvp := range event.RSVPs {
		if rsvp.UserID == userID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User already RSVP'd"})
			return
		}
	}

	rsvp := models.RSVP{UserID: userID, EventID: event.ID}
	if err := config.DB.Create(&rsvp).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var user models.User
	config.DB.First(&user, userID)

	c.JSON(http.StatusCreated, gin.H{
		"id":       event.ID,
		"name":     event.Name,
		"location": event.Location,
		"guestAdded": gin.H{
			"id":     user.ID,
			"utorid": user.Utorid,
			"name":   user.Name,
		},
		"numGuests": len(event.RSVPs) + 1,
	})
}

// DELETE /events/:eventId/guests/me
func (ec *EventController) LeaveEvent(c *gin.Context) {
	if middleware.CallerRole(c) != models.RoleRegular {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	eventID, ok := parseID(c, "eventId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	var event models.Event
	if err := config.DB.First(&event, eventID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}

	if event.Ended() {
		c.JSON(http.StatusGone, gin.H{"error": "Event has ended"})
		return
	}

	result := config.DB.Where("event_id = ? AND user_id = ?", eventID, middleware.CallerID(c)).
		Delete(&models.RSVP{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not RSVP'd to this event"})
		return
	}

	c.Status(http.StatusNoContent)
}

type AwardRequest struct {
	Type   string `json:"type" binding:"required"`
	Utorid string `json:"utorid"`
	Amount *int   `json:"amount" binding:"required"`
	Remark string `json:"remark"`
}

// POST /events/:eventId/transactions
func (ec *EventController) CreateEventTransaction(c *gin.Context) {
	event, ok := loadEvent(c)
	if !ok {
		return
	}

	var req AwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	if req.Type != "event" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid type, must be 'event'"})
		return
	}
	if *req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
		return
	}

	isManager := middleware.CallerRole(c).AtLeast(models.RoleManager)
	if !isManager && !isOrganizer(event, middleware.CallerID(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized to award points for this event"})
		return
	}

	creator, ok := fetchCaller(c)
	if !ok {
		return
	}

	results, err := ec.ledger.AwardEventPoints(creator, event, req.Utorid, *req.Amount, req.Remark)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotGuest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "User is not a guest of the event"})
		case errors.Is(err, services.ErrNotEnoughEventPoints):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Not enough remaining points"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	notify(websocket.EventEventAwarded, websocket.EventNotification{
		EventID: event.ID,
		Name:    event.Name,
	})

	views := make([]gin.H, 0, len(results))
	for _, result := range results {
		views = append(views, gin.H{
			"id":        result.TransactionID,
			"recipient": result.Recipient,
			"awarded":   result.Amount,
			"type":      "event",
			"relatedId": event.ID,
			"remark":    req.Remark,
			"createdBy": creator.Utorid,
		})
	}

	if req.Utorid != "" {
		c.JSON(http.StatusCreated, views[0])
		return
	}
	c.JSON(http.StatusCreated, views)
}
