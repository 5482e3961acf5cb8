package services

import (
	"errors"
	"os"
	"time"
	"unicode"

	"github.com/campushub/loyalty-be/config"
	"github.com/campushub/loyalty-be/middleware"
	"github.com/campushub/loyalty-be/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenLifetime      = 7 * 24 * time.Hour
	ResetTokenLifetime = time.Hour
	// New accounts get a long-lived activation token so the user can set
	// their first password.
	ActivationTokenLifetime = 7 * 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrTokenNotFound      = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenMismatch      = errors.New("utorid does not match token")
	ErrWeakPassword       = errors.New("password must be 8-20 characters with lower, upper, digit and symbol")
	ErrWrongPassword      = errors.New("incorrect current password")
)

type AuthService struct{}

func NewAuthService() *AuthService {
	return &AuthService{}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func (s *AuthService) CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ValidPassword enforces the password policy: 8-20 characters containing a
// lowercase letter, an uppercase letter, a digit and a symbol.
func ValidPassword(password string) bool {
	if len(password) < 8 || len(password) > 20 {
		return false
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case r != '_' && !unicode.IsSpace(r):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

func (s *AuthService) GenerateToken(user *models.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(TokenLifetime)
	claims := middleware.Claims{
		UserID: user.ID,
		Utorid: user.Utorid,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	return signed, expiresAt, err
}

// Login verifies utorid/password, updates lastLogin and issues a token.
// A user with no password set cannot log in.
func (s *AuthService) Login(utorid, password string) (*models.User, string, time.Time, error) {
	var user models.User
	if err := config.DB.Where("utorid = ?", utorid).First(&user).Error; err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	if user.Password == "" || !s.CheckPassword(password, user.Password) {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	now := time.Now()
	if err := config.DB.Model(&user).Update("last_login", now).Error; err != nil {
		return nil, "", time.Time{}, err
	}
	user.LastLogin = &now

	token, expiresAt, err := s.GenerateToken(&user)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	return &user, token, expiresAt, nil
}

// CreateResetToken invalidates any prior reset tokens for the user and
// issues a fresh one.
func (s *AuthService) CreateResetToken(utorid string, lifetime time.Duration) (*models.ResetToken, error) {
	var user models.User
	if err := config.DB.Where("utorid = ?", utorid).First(&user).Error; err != nil {
		return nil, ErrUserNotFound
	}

	if err := config.DB.Where("user_id = ?", user.ID).Delete(&models.ResetToken{}).Error; err != nil {
		return nil, err
	}

	reset := models.ResetToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(lifetime),
	}

	if err := config.DB.Create(&reset).Error; err != nil {
		return nil, err
	}

	return &reset, nil
}

// ConsumeResetToken validates the token against the claimed utorid, replaces
// the password hash and deletes the token (single use).
func (s *AuthService) ConsumeResetToken(token, utorid, newPassword string) error {
	if !ValidPassword(newPassword) {
		return ErrWeakPassword
	}

	var reset models.ResetToken
	if err := config.DB.Preload("User").Where("token = ?", token).First(&reset).Error; err != nil {
		return ErrTokenNotFound
	}

	if reset.Expired() {
		return ErrTokenExpired
	}

	if reset.User.Utorid != utorid {
		return ErrTokenMismatch
	}

	hashed, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := config.DB.Model(&models.User{}).Where("id = ?", reset.UserID).
		Update("password", hashed).Error; err != nil {
		return err
	}

	return config.DB.Delete(&reset).Error
}

// ChangePassword verifies the old password before replacing it.
func (s *AuthService) ChangePassword(userID uint, oldPassword, newPassword string) error {
	if !ValidPassword(newPassword) {
		return ErrWeakPassword
	}

	var user models.User
	if err := config.DB.First(&user, userID).Error; err != nil {
		return ErrUserNotFound
	}

	if user.Password == "" || !s.CheckPassword(oldPassword, user.Password) {
		return ErrWrongPassword
	}

	hashed, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return config.DB.Model(&user).Update("password", hashed).Error
}
