package models

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Comment is a visitor comment left on the portfolio page. Comments are
// append-only: there is no update or delete path.
type Comment struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:255" json:"-"` // contact for the site owner only
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName pins the table name used by the setup command and raw queries.
func (Comment) TableName() string { return "comments" }

// CommentDTO is the public representation returned by the API.
type CommentDTO struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// Public converts the stored record into its API shape, formatting the
// creation time relative to now.
func (c Comment) Public(now time.Time) CommentDTO {
	return CommentDTO{
		ID:        c.ID,
		Name:      c.Name,
		Message:   c.Message,
		CreatedAt: RelativeTime(c.CreatedAt, now),
	}
}

// RelativeTime renders t as a human-relative string such as "5 minutes ago".
// Instants after now (clock skew between app and database) read as "now".
func RelativeTime(t, now time.Time) string {
	if t.After(now) {
		t = now
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// PublicList converts a slice of comments, never returning nil.
func PublicList(comments []Comment, now time.Time) []CommentDTO {
	out := make([]CommentDTO, 0, len(comments))
	for _, c := range comments {
		out = append(out, c.Public(now))
	}
	return out
}
