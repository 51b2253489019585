package domain

// User is an account that can log in with email and password.
// Users are provisioned out of band; the auth flows only read them.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"` // Never serialize
}

// UserSummary provides a safe view of user data (no password hash)
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ToSummary converts a User to UserSummary
func (u *User) ToSummary() *UserSummary {
	return &UserSummary{
		ID:    u.ID,
		Email: u.Email,
	}
}
