package engine

import (
	"context"
	"strings"
)

const unknownUsername = "unknown"

// PublicUser is the public profile attached to comments and article views.
type PublicUser struct {
	ID       string
	Username string
	Name     string
}

// DisplayName prefers the profile name and falls back to the username.
func (u PublicUser) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	return u.Username
}

// UserDirectory resolves public user profiles owned by the identity subsystem.
type UserDirectory interface {
	PublicUserByID(ctx context.Context, id string) (PublicUser, error)
}

// ResolveUser looks up id in directory and returns a placeholder profile when the
// directory is missing or the lookup fails, so reads never fail on decoration.
func ResolveUser(ctx context.Context, directory UserDirectory, id string) PublicUser {
	if directory == nil {
		return PlaceholderUser(id)
	}
	user, err := directory.PublicUserByID(ctx, id)
	if err != nil {
		return PlaceholderUser(id)
	}
	return user
}

// PlaceholderUser is the profile reported for ids the directory cannot resolve.
func PlaceholderUser(id string) PublicUser {
	return PublicUser{ID: id, Username: unknownUsername}
}
