package models

import (
	"time"
)

type UserRole string

const (
	RoleRegular   UserRole = "REGULAR"
	RoleCashier   UserRole = "CASHIER"
	RoleManager   UserRole = "MANAGER"
	RoleSuperuser UserRole = "SUPERUSER"
)

// RoleRank orders roles for minimum-role checks. Unknown roles rank -1 and
// fail every gate.
var RoleRank = map[UserRole]int{
	RoleRegular:   0,
	RoleCashier:   1,
	RoleManager:   2,
	RoleSuperuser: 3,
}

func (r UserRole) Rank() int {
	rank, ok := RoleRank[r]
	if !ok {
		return -1
	}
	return rank
}

// AtLeast reports whether r meets the minimum role required.
func (r UserRole) AtLeast(min UserRole) bool {
	rank := r.Rank()
	return rank >= 0 && rank >= min.Rank()
}

func ParseRole(s string) (UserRole, bool) {
	role := UserRole(normalizeRole(s))
	_, ok := RoleRank[role]
	return role, ok
}

func normalizeRole(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

type User struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	Utorid     string     `json:"utorid" gorm:"uniqueIndex;not null"`
	Name       string     `json:"name" gorm:"not null"`
	Email      string     `json:"email" gorm:"uniqueIndex;not null"`
	Password   string     `json:"-"`
	Role       UserRole   `json:"role" gorm:"default:'REGULAR'"`
	Points     int        `json:"points" gorm:"default:0"`
	Verified   bool       `json:"verified" gorm:"default:false"`
	Suspicious bool       `json:"suspicious" gorm:"default:false"`
	Birthday   *time.Time `json:"birthday"`
	AvatarURL  string     `json:"avatarUrl"`
	LastLogin  *time.Time `json:"lastLogin"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"-"`

	// Relations
	Transactions []Transaction `json:"-"`
	ResetTokens  []ResetToken  `json:"-"`
}

type ResetToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Token     string    `json:"token" gorm:"uniqueIndex;not null"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	User      User      `json:"-"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
}

func (t *ResetToken) Expired() bool {
	return time.Now().After(t.ExpiresAt)
}
