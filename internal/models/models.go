package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// User represents a registered account.
type User struct {
	ID        string
	Username  string
	Email     string
	Password  string
	Avatar    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicProfile strips credentials from a user record for API responses.
func (u User) PublicProfile() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Avatar:   u.Avatar,
	}
}

// PublicUser is the password-free projection returned by the API.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
}

// AvatarGlyph derives the single-letter placeholder avatar used when no
// image has been set: the first letter of the name, uppercased.
func AvatarGlyph(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(name)
	return strings.ToUpper(string(r))
}

// Channel represents a user's single publishing channel.
type Channel struct {
	ID          string
	Name        string
	Username    string
	Description string
	Banner      string
	Avatar      string
	OwnerID     string
	Subscribers int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Video visibility states.
const (
	VisibilityPublic   = "public"
	VisibilityUnlisted = "unlisted"
	VisibilityPrivate  = "private"
)

// Video upload methods.
const (
	UploadMethodFile = "file"
	UploadMethodURL  = "url"
)

// Categories enumerates the accepted video categories.
var Categories = []string{
	"Education", "Tech", "Music", "Sports", "Movies",
	"Entertainment", "Gaming", "Fashion", "Other",
}

// ValidCategory reports whether the category is one of the known values.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// ValidVisibility reports whether the visibility is a known state.
func ValidVisibility(visibility string) bool {
	switch visibility {
	case VisibilityPublic, VisibilityUnlisted, VisibilityPrivate:
		return true
	}
	return false
}

// Video represents an uploaded or externally referenced video.
//
// Real videos carry OwnerID and ChannelID. Sample (seeded) videos instead
// carry IsSample plus a literal ChannelName.
type Video struct {
	ID           string
	Title        string
	Description  string
	VideoURL     string
	ThumbnailURL string
	Views        int64
	Likes        int64
	Dislikes     int64
	Category     string
	Visibility   string
	Tags         []string
	UploadMethod string
	OwnerID      string
	ChannelID    string
	ChannelName  string
	IsSample     bool
	CommentCount int64
	UploadedAt   time.Time
}

// Comment represents a viewer comment attached to a video.
type Comment struct {
	ID         string
	VideoID    string
	AuthorID   string
	AuthorName string
	Text       string
	Edited     bool
	CreatedAt  time.Time
	EditedAt   *time.Time
}

// Reaction kinds recorded per (user, video) pair.
const (
	ReactionLike    = "like"
	ReactionDislike = "dislike"
)

// Like records a single user's reaction to a video.
type Like struct {
	UserID    string
	VideoID   string
	Kind      string
	CreatedAt time.Time
}
