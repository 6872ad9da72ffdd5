package domain

import "time"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Valid reports whether g is one of the accepted genders.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// User represents a registered chat user.
type User struct {
	ID           int64
	Username     string
	FullName     string
	PasswordHash string
	Gender       Gender
	ProfilePic   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
