package sqldb

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"Forecast_Hub/internal/model"
)

type CommentRepository struct {
	DB *gorm.DB
}

// Create stores the comment and, for post comments, the outbox event in one transaction.
func (r *CommentRepository) Create(ctx context.Context, c *model.Comment) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author", "Parent", "IncludedForecast").Create(c).Error; err != nil {
			return err
		}
		if c.OnPostID == nil {
			return nil
		}
		return insertOutbox(tx, model.EventPostCommentCreate, c.ID, map[string]any{
			"comment_id": c.ID,
			"post_id":    *c.OnPostID,
			"author_id":  c.AuthorID,
		})
	})
}

func insertOutbox(tx *gorm.DB, event string, aggregateID uint64, fields map[string]any) error {
	fields["event_time"] = time.Now().UTC().Format(time.RFC3339Nano)
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return tx.Create(&model.EventOutbox{
		EventType:   event,
		AggregateID: aggregateID,
		Payload:     payload,
		Status:      OutboxPending,
	}).Error
}

func (r *CommentRepository) FindByID(ctx context.Context, id uint64) (*model.Comment, error) {
	var c model.Comment
	err := r.DB.WithContext(ctx).First(&c, id).Error
	return &c, err
}

// ListForPost returns the comments of a post the viewer may read, oldest first.
// Private comments are only returned to their author.
func (r *CommentRepository) ListForPost(ctx context.Context, postID, viewerID uint64, cursor uint64, limit int) ([]model.Comment, uint64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := r.DB.WithContext(ctx).Model(&model.Comment{}).
		Preload("Author").
		Where("on_post_id = ?", postID).
		Where("is_private = ? OR author_id = ?", false, viewerID)
	if cursor > 0 {
		q = q.Where("id > ?", cursor)
	}
	var rows []model.Comment
	if err := q.Order("id ASC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	var next uint64
	if len(rows) > limit {
		next = rows[limit-1].ID
		rows = rows[:limit]
	}
	return rows, next, nil
}

func (r *CommentRepository) UpdateText(ctx context.Context, id uint64, text string) error {
	return r.DB.WithContext(ctx).Model(&model.Comment{}).
		Where("id = ?", id).
		Update("text", text).Error
}

func (r *CommentRepository) SoftDelete(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.Comment{}).
		Where("id = ?", id).
		Update("is_soft_deleted", true).Error
}

// Commenters returns the distinct authors of public, live comments on a post.
func (r *CommentRepository) Commenters(ctx context.Context, postID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.DB.WithContext(ctx).Model(&model.Comment{}).
		Distinct("author_id").
		Where("on_post_id = ? AND is_private = ? AND is_soft_deleted = ?", postID, false, false).
		Pluck("author_id", &ids).Error
	return ids, err
}
