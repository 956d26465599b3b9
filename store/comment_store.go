// Package store owns the persisted comment list.
package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/folio/portfolio/models"
)

const (
	// DefaultListLimit is used when a caller passes a non-positive limit.
	DefaultListLimit = 20
	// MaxListLimit caps a single page.
	MaxListLimit = 100
)

// CommentStore answers list-since and insert against the comments table.
// Id assignment and write ordering are left to the database's
// auto-increment key; the store keeps no locks of its own.
type CommentStore struct {
	db *gorm.DB
}

// NewCommentStore creates a store on db.
func NewCommentStore(db *gorm.DB) *CommentStore {
	return &CommentStore{db: db}
}

// Stats summarises the table.
type Stats struct {
	Count    int64  `json:"comment_count"`
	LatestID uint64 `json:"latest_id"`
}

// ClampLimit maps a requested page size into [1, MaxListLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// ListSince returns comments with id > afterID in ascending id order, at most
// limit of them. No match yields an empty slice.
func (s *CommentStore) ListSince(ctx context.Context, afterID uint64, limit int) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := s.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(ClampLimit(limit)).
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("list comments after %d: %w", afterID, err)
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, nil
}

// Insert validates in and persists it as a new comment. Name and message are
// stored as typed, only trimmed; escaping is left to whoever renders them.
// A *models.ValidationError means nothing was written.
func (s *CommentStore) Insert(ctx context.Context, in models.CommentInput) (*models.Comment, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	comment := models.Comment{
		Name:    in.Name,
		Email:   in.Email,
		Message: in.Message,
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	return &comment, nil
}

// Stats returns the number of comments and the highest id.
func (s *CommentStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	db := s.db.WithContext(ctx).Model(&models.Comment{})
	if err := db.Count(&st.Count).Error; err != nil {
		return Stats{}, fmt.Errorf("count comments: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Select("COALESCE(MAX(id), 0)").
		Scan(&st.LatestID).Error; err != nil {
		return Stats{}, fmt.Errorf("latest comment id: %w", err)
	}
	return st, nil
}
