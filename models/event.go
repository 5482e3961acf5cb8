package models

import (
	"time"
)

type Event struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description" gorm:"not null"`
	Location    string    `json:"location" gorm:"not null"`
	StartTime   time.Time `json:"startTime" gorm:"not null"`
	EndTime     time.Time `json:"endTime" gorm:"not null"`
	Capacity    *int      `json:"capacity"` // nil = unlimited

	// PointsRemain + PointsAwarded is the event's total budget; award
	// operations move points from remain to awarded, nothing else does.
	PointsRemain  int `json:"pointsRemain" gorm:"not null;default:0"`
	PointsAwarded int `json:"pointsAwarded" gorm:"not null;default:0"`

	Published bool      `json:"published" gorm:"default:false"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`

	// Relations
	Organizers []Organizer `json:"-"`
	RSVPs      []RSVP      `json:"-"`
}

func (e *Event) Started() bool {
	return !e.StartTime.After(time.Now())
}

func (e *Event) Ended() bool {
	return !e.EndTime.After(time.Now())
}

// Full reports whether the guest list has reached capacity.
func (e *Event) Full(numGuests int) bool {
	return e.Capacity != nil && numGuests >= *e.Capacity
}

// Organizer grants one user management authority over one event. Distinct
// from the global role; mutually exclusive with being a guest.
type Organizer struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_organizer_user_event"`
	EventID   uint      `json:"event_id" gorm:"not null;uniqueIndex:idx_organizer_user_event"`
	User      User      `json:"-"`
	Event     Event     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type RSVP struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_rsvp_user_event"`
	EventID   uint      `json:"event_id" gorm:"not null;uniqueIndex:idx_rsvp_user_event"`
	User      User      `json:"-"`
	Event     Event     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
