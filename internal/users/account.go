package users

import (
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/engine"
)

// Account is a registered author or reader.
type Account struct {
	UserID       string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	Username     string    `gorm:"column:username;uniqueIndex;size:64;not null"`
	Email        string    `gorm:"column:email;size:320"`
	PasswordHash string    `gorm:"column:password_hash;size:128;not null"`
	Name         string    `gorm:"column:display_name;size:320"`
	Bio          string    `gorm:"column:bio;size:2048"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}

// TableName exposes the table backing user accounts.
func (Account) TableName() string {
	return "user_accounts"
}

// Public returns the profile other users may see.
func (a Account) Public() engine.PublicUser {
	return engine.PublicUser{ID: a.UserID, Username: a.Username, Name: a.Name}
}

// RegisterInput carries the fields accepted at sign-up.
type RegisterInput struct {
	Username string
	Password string
	Email    string
	Name     string
	Bio      string
}

// ProfilePatch updates the present fields of a profile.
type ProfilePatch struct {
	Email *string
	Name  *string
	Bio   *string
}

// NormalizeUsername is the canonical stored form of a username.
func NormalizeUsername(value string) string {
	return strings.ToLower(normalize(value))
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
