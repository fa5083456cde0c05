package domain

import "time"

// User represents a registered account. PasswordHash never leaves the service layer.
type User struct {
	ID           string
	Username     string
	Fullname     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the representation of a User that may cross the system boundary.
type PublicUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Fullname  string    `json:"fullname"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Public projects the user onto its outward-facing fields.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Fullname:  u.Fullname,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
