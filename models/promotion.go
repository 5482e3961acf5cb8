package models

import (
	"time"
)

type PromotionType string

const (
	PromotionTypeAutomatic PromotionType = "automatic"
	PromotionTypeOneTime   PromotionType = "one_time"
)

type Promotion struct {
	ID          uint          `json:"id" gorm:"primaryKey"`
	Name        string        `json:"name" gorm:"not null"`
	Description string        `json:"description" gorm:"not null"`
	Type        PromotionType `json:"type" gorm:"not null"`
	StartTime   time.Time     `json:"startTime" gorm:"not null"`
	EndTime     time.Time     `json:"endTime" gorm:"not null"`
	MinSpending *float64      `json:"minSpending"`
	Rate        *float64      `json:"rate"`
	Points      int           `json:"points" gorm:"default:0"`
	CreatedByID uint          `json:"-" gorm:"index"`
	CreatedBy   User          `json:"-" gorm:"foreignKey:CreatedByID"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"-"`
}

func (p *Promotion) Started() bool {
	return !p.StartTime.After(time.Now())
}

func (p *Promotion) Ended() bool {
	return !p.EndTime.After(time.Now())
}

// Active reports whether the promotion is inside its time window.
func (p *Promotion) Active() bool {
	return p.Started() && !p.Ended()
}
