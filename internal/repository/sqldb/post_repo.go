package sqldb

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Forecast_Hub/internal/model"
)

type PostRepository struct {
	DB *gorm.DB
}

// PostFilter narrows post listings.
type PostFilter struct {
	ProjectID uint64
	Statuses  []model.CurationStatus
	Offset    int
	Limit     int
}

// Create stores the post, its question and the m2m project links in one transaction.
func (r *PostRepository) Create(ctx context.Context, post *model.Post, projectIDs []uint64) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		question := post.Question
		post.Question = nil
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}
		if question != nil {
			question.PostID = post.ID
			if err := tx.Create(question).Error; err != nil {
				return err
			}
			post.Question = question
		}
		return linkProjects(tx, post.ID, projectIDs)
	})
}

func linkProjects(tx *gorm.DB, postID uint64, projectIDs []uint64) error {
	if len(projectIDs) == 0 {
		return nil
	}
	rows := make([]model.PostProject, 0, len(projectIDs))
	for _, id := range projectIDs {
		rows = append(rows, model.PostProject{PostID: postID, ProjectID: id})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// FindByID loads the post with its projects and question.
func (r *PostRepository) FindByID(ctx context.Context, id uint64) (*model.Post, error) {
	var post model.Post
	err := r.DB.WithContext(ctx).
		Preload("DefaultProject").
		Preload("Projects").
		Preload("Question").
		First(&post, id).Error
	return &post, err
}

// visibleScope limits q to posts whose default project user can see, plus the user's own posts.
func (r *PostRepository) visibleScope(q *gorm.DB, projects *ProjectRepository, user *model.User) *gorm.DB {
	visible := projects.Visible(r.DB.Session(&gorm.Session{NewDB: true}).Model(&model.Project{}).Select("projects.id"), user)
	if user.IsAnonymous() {
		return q.Where("posts.default_project_id IN (?)", visible)
	}
	if !user.IsSuperuser {
		return q.Where("posts.author_id = ? OR posts.default_project_id IN (?)", user.ID, visible)
	}
	return q
}

// ListVisible returns approved posts whose default project is visible, plus the user's own posts.
func (r *PostRepository) ListVisible(ctx context.Context, projects *ProjectRepository, user *model.User, f PostFilter) ([]model.Post, error) {
	q := r.visibleScope(r.DB.WithContext(ctx).Model(&model.Post{}), projects, user)
	statuses := f.Statuses
	if len(statuses) == 0 {
		statuses = []model.CurationStatus{model.CurationApproved}
	}
	q = q.Where("posts.curation_status IN ?", statuses)
	if f.ProjectID != 0 {
		q = q.Where("posts.default_project_id = ? OR posts.id IN (?)", f.ProjectID,
			r.DB.Session(&gorm.Session{NewDB: true}).Model(&model.PostProject{}).Select("post_id").Where("project_id = ?", f.ProjectID))
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	var list []model.Post
	err := q.Preload("DefaultProject").
		Preload("Question").
		Order("posts.id DESC").
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&list).Error
	return list, err
}

func (r *PostRepository) UpdateStatus(ctx context.Context, post *model.Post, status model.CurationStatus, publishedAt *time.Time) error {
	updates := map[string]any{"curation_status": status}
	if publishedAt != nil {
		updates["published_at"] = *publishedAt
	}
	return r.DB.WithContext(ctx).Model(post).Updates(updates).Error
}

func (r *PostRepository) SetEmbedding(ctx context.Context, postID uint64, vec pgvector.Vector) error {
	return r.DB.WithContext(ctx).Model(&model.Post{}).
		Where("id = ?", postID).
		Update("embedding_vector", vec).Error
}

// Similar ranks approved posts visible to user by L2 distance to the post's embedding. Postgres only.
func (r *PostRepository) Similar(ctx context.Context, projects *ProjectRepository, user *model.User, post *model.Post, limit int) ([]model.Post, error) {
	var list []model.Post
	if post.EmbeddingVector == nil {
		return list, nil
	}
	q := r.visibleScope(r.DB.WithContext(ctx).Model(&model.Post{}), projects, user)
	err := q.Where("posts.id <> ? AND posts.curation_status = ? AND posts.embedding_vector IS NOT NULL", post.ID, model.CurationApproved).
		Clauses(clause.OrderBy{
			Expression: clause.Expr{SQL: "posts.embedding_vector <-> ?", Vars: []any{*post.EmbeddingVector}},
		}).
		Limit(limit).
		Find(&list).Error
	return list, err
}

// TouchSnapshot records that the user has seen the post's comments.
func (r *PostRepository) TouchSnapshot(ctx context.Context, postID, userID uint64, now time.Time) error {
	db := r.DB.WithContext(ctx)
	var count int64
	if err := db.Model(&model.Comment{}).
		Where("on_post_id = ? AND is_soft_deleted = ?", postID, false).
		Count(&count).Error; err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"viewed_at", "comments_count"}),
	}).Create(&model.PostUserSnapshot{
		UserID:        userID,
		PostID:        postID,
		CommentsCount: count,
		ViewedAt:      now,
	}).Error
}

func (r *PostRepository) Snapshot(ctx context.Context, postID, userID uint64) (*model.PostUserSnapshot, error) {
	var s model.PostUserSnapshot
	err := r.DB.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID, userID).First(&s).Error
	return &s, err
}
