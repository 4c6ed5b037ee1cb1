package domain

import (
	"time"

	"github.com/google/uuid"
)

// Recorded genders used for pairing. Matching requires one of these;
// profiles without a recorded gender cannot join the queue.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// ValidGender reports whether g satisfies the pairing precondition
func ValidGender(g string) bool {
	return g == GenderMale || g == GenderFemale
}

// User represents a user entity in the system
// Maps to CockroachDB users table
type User struct {
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Username  string    `json:"username" db:"username"`
	Gender    *string   `json:"gender,omitempty" db:"gender"` // nil until the profile records one
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CanMatch reports whether the user satisfies the queue admission precondition
func (u *User) CanMatch() bool {
	return u.Gender != nil && ValidGender(*u.Gender)
}
