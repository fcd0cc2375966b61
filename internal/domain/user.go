package domain

import (
	"strings"
	"time"
)

const avatarBaseURL = "https://api.dicebear.com/8.x/bottts-neutral/svg?seed="

// User represents an authenticated user
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// NewUser builds a user profile from an account id and email
func NewUser(id, email string) User {
	if email == "" {
		email = "user@flagr.ai"
	}
	username := email
	if i := strings.Index(email, "@"); i >= 0 {
		username = email[:i]
	}
	return User{
		ID:        id,
		Username:  username,
		Email:     email,
		AvatarURL: avatarBaseURL + username,
	}
}

// Account is the stored credential record for a user
type Account struct {
	User         User      `json:"user"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserCreate represents user registration data
type UserCreate struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// UserLogin represents login credentials
type UserLogin struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenPair represents JWT token pair
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         User   `json:"user"`
}
