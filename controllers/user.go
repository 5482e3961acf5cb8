package controllers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/campushub/loyalty-be/config"
	"github.com/campushub/loyalty-be/middleware"
	"github.com/campushub/loyalty-be/models"
	"github.com/campushub/loyalty-be/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const avatarDir = "uploads/avatars"

type UserController struct {
	authService *services.AuthService
}

func NewUserController() *UserController {
	return &UserController{
		authService: services.NewAuthService(),
	}
}

type RegisterRequest struct {
	Utorid   string `json:"utorid" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password"`
}

// POST /users
// Staff-created regular account. The response carries an activation reset
// token so the new user can set their password.
func (uc *UserController) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	if !validUtorid(req.Utorid) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid utorid format"})
		return
	}
	if !validEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid UofT email"})
		return
	}
	if len(req.Name) > 50 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name too long"})
		return
	}

	var count int64
	config.DB.Model(&models.User{}).Where("utorid = ?", req.Utorid).Count(&count)
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
		return
	}

	user := models.User{
		Utorid: req.Utorid,
		Name:   req.Name,
		Email:  req.Email,
		Role:   models.RoleRegular,
	}

	if req.Password != "" {
		hashed, err := uc.authService.HashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		user.Password = hashed
	}

	if err := config.DB.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	reset, err := uc.authService.CreateResetToken(user.Utorid, services.ActivationTokenLifetime)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         user.ID,
		"utorid":     user.Utorid,
		"name":       user.Name,
		"email":      user.Email,
		"verified":   user.Verified,
		"expiresAt":  reset.ExpiresAt.Format(time.RFC3339),
		"resetToken": reset.Token,
	})
}

// GET /users
func (uc *UserController) GetAllUsers(c *gin.Context) {
	skip, take, ok := pagination(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page or limit"})
		return
	}

	query := config.DB.Model(&models.User{})

	if name := c.Query("name"); name != "" {
		pattern := "%" + strings.ToLower(name) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(utorid) LIKE ?", pattern, pattern)
	}
	if roleParam := c.Query("role"); roleParam != "" {
		role, ok := models.ParseRole(roleParam)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
			return
		}
		query = query.Where("role = ?", role)
	}
	if verified := c.Query("verified"); verified == "true" || verified == "false" {
		query = query.Where("verified = ?", verified == "true")
	}
	if activated := c.Query("activated"); activated == "true" {
		query = query.Where("last_login IS NOT NULL")
	} else if activated == "false" {
		query = query.Where("last_login IS NULL")
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var users []models.User
	if err := query.Order("id ASC").Offset(skip).Limit(take).Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count, "results": users})
}

// unusedOneTimePromotions lists currently-active one_time promotions the
// user has not consumed yet.
func unusedOneTimePromotions(userID uint) []gin.H {
	now := time.Now()
	var promotions []models.Promotion
	config.DB.
		Where("type = ? AND start_time <= ? AND end_time > ?", models.PromotionTypeOneTime, now, now).
		Where(`NOT EXISTS (
			SELECT 1 FROM transaction_promotions tp
			JOIN transactions t ON t.id = tp.transaction_id
			WHERE tp.promotion_id = promotions.id AND t.user_id = ?)`, userID).
		Find(&promotions)

	out := make([]gin.H, 0, len(promotions))
	for _, p := range promotions {
		out = append(out, gin.H{
			"id":          p.ID,
			"name":        p.Name,
			"minSpending": p.MinSpending,
			"rate":        p.Rate,
			"points":      p.Points,
		})
	}
	return out
}

// GET /users/:userId
func (uc *UserController) GetUserByID(c *gin.Context) {
	userID, ok := parseID(c, "userId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := config.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	cashierView := gin.H{
		"id":         user.ID,
		"utorid":     user.Utorid,
		"name":       user.Name,
		"points":     user.Points,
		"verified":   user.Verified,
		"promotions": unusedOneTimePromotions(user.ID),
	}

	if middleware.CallerRole(c).AtLeast(models.RoleManager) {
		cashierView["email"] = user.Email
		cashierView["birthday"] = user.Birthday
		cashierView["role"] = user.Role
		cashierView["suspicious"] = user.Suspicious
		cashierView["createdAt"] = user.CreatedAt
		cashierView["lastLogin"] = user.LastLogin
		cashierView["avatarUrl"] = user.AvatarURL
	}

	c.JSON(http.StatusOK, cashierView)
}

type UpdateUserRequest struct {
	Email      *string `json:"email"`
	Verified   *bool   `json:"verified"`
	Suspicious *bool   `json:"suspicious"`
	Role       *string `json:"role"`
}

// PATCH /users/:userId
func (uc *UserController) UpdateUserByID(c *gin.Context) {
	userID, ok := parseID(c, "userId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	if req.Email == nil && req.Verified == nil && req.Suspicious == nil && req.Role == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty update payload"})
		return
	}

	var user models.User
	if err := config.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	callerRole := middleware.CallerRole(c)
	updates := map[string]interface{}{}

	if req.Email != nil {
		if !validEmail(*req.Email) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid UofT email"})
			return
		}
		updates["email"] = *req.Email
	}

	if req.Verified != nil {
		// Verification is one-directional: only false -> true.
		if !*req.Verified {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid verified value"})
			return
		}
		if !callerRole.AtLeast(models.RoleManager) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permission to verify user"})
			return
		}
		updates["verified"] = true
	}

	if req.Suspicious != nil {
		if !callerRole.AtLeast(models.RoleManager) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permission to update suspicious flag"})
			return
		}
		updates["suspicious"] = *req.Suspicious
	}

	if req.Role != nil {
		newRole, valid := models.ParseRole(*req.Role)
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
			return
		}

		if callerRole == models.RoleManager {
			if newRole != models.RoleRegular && newRole != models.RoleCashier {
				c.JSON(http.StatusForbidden, gin.H{"error": "Managers can only assign cashier or regular roles"})
				return
			}
			// Promoting to cashier clears any prior suspicion.
			if newRole == models.RoleCashier && user.Role != models.RoleCashier {
				updates["suspicious"] = false
			}
		} else if callerRole != models.RoleSuperuser {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permission to change roles"})
			return
		}

		updates["role"] = newRole
	}

	if err := config.DB.Model(&user).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	response := gin.H{
		"id":     user.ID,
		"utorid": user.Utorid,
		"name":   user.Name,
	}
	for _, field := range []string{"email", "verified", "suspicious", "role"} {
		if value, changed := updates[field]; changed {
			response[field] = value
		}
	}

	c.JSON(http.StatusOK, response)
}

// GET /users/me
func (uc *UserController) GetCurrentUser(c *gin.Context) {
	var user models.User
	if err := config.DB.First(&user, middleware.CallerID(c)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"utorid":     user.Utorid,
		"name":       user.Name,
		"email":      user.Email,
		"birthday":   user.Birthday,
		"role":       strings.ToLower(string(user.Role)),
		"points":     user.Points,
		"createdAt":  user.CreatedAt,
		"lastLogin":  user.LastLogin,
		"verified":   user.Verified,
		"avatarUrl":  user.AvatarURL,
		"promotions": unusedOneTimePromotions(user.ID),
	})
}

// PATCH /users/me
// Accepts JSON or multipart (multipart carries the avatar file).
func (uc *UserController) UpdateCurrentUser(c *gin.Context) {
	userID := middleware.CallerID(c)

	var user models.User
	if err := config.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var name, email, birthday string
	hasAvatar := false

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		name = c.PostForm("name")
		email = c.PostForm("email")
		birthday = c.PostForm("birthday")
		if _, err := c.FormFile("avatar"); err == nil {
			hasAvatar = true
		}
	} else {
		var req struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Birthday string `json:"birthday"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
			return
		}
		name, email, birthday = req.Name, req.Email, req.Birthday
	}

	if name == "" && email == "" && birthday == "" && !hasAvatar {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No update fields provided"})
		return
	}

	updates := map[string]interface{}{}

	if name != "" {
		if len(name) > 50 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Name must be 1-50 characters"})
			return
		}
		updates["name"] = name
	}

	if email != "" {
		if !validEmail(email) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid UofT email"})
			return
		}
		var count int64
		config.DB.Model(&models.User{}).Where("email = ? AND id != ?", email, userID).Count(&count)
		if count > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email already in use"})
			return
		}
		updates["email"] = email
	}

	if birthday != "" {
		parsed, err := time.Parse("2006-01-02", birthday)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid birthday format"})
			return
		}
		updates["birthday"] = parsed
	}

	if hasAvatar {
		file, err := c.FormFile("avatar")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid avatar upload"})
			return
		}
		if err := os.MkdirAll(avatarDir, 0o755); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		filename := user.Utorid + filepath.Ext(file.Filename)
		if err := c.SaveUploadedFile(file, filepath.Join(avatarDir, filename)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		updates["avatar_url"] = "/uploads/avatars/" + filename
	}

	if err := config.DB.Model(&user).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := config.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        user.ID,
		"utorid":    user.Utorid,
		"name":      user.Name,
		"email":     user.Email,
		"birthday":  user.Birthday,
		"role":      user.Role,
		"points":    user.Points,
		"createdAt": user.CreatedAt,
		"lastLogin": user.LastLogin,
		"verified":  user.Verified,
		"avatarUrl": user.AvatarURL,
	})
}

type ChangePasswordRequest struct {
	Old string `json:"old" binding:"required"`
	New string `json:"new" binding:"required"`
}

// PATCH /users/me/password
func (uc *UserController) UpdateMyPassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing old or new password"})
		return
	}

	err := uc.authService.ChangePassword(middleware.CallerID(c), req.Old, req.New)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
	case errors.Is(err, services.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid password format"})
	case errors.Is(err, services.ErrWrongPassword):
		c.JSON(http.StatusForbidden, gin.H{"error": "Incorrect current password"})
	case errors.Is(err, services.ErrUserNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
