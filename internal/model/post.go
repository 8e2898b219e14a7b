package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

type CurationStatus string

const (
	CurationDraft    CurationStatus = "draft"
	CurationPending  CurationStatus = "pending"
	CurationRejected CurationStatus = "rejected"
	CurationApproved CurationStatus = "approved"
	CurationDeleted  CurationStatus = "deleted"
)

// EmbeddingDimensions matches the clip-vit-large-patch14 text embedding size.
const EmbeddingDimensions = 768

type Post struct {
	ID               uint64         `gorm:"primaryKey"`
	Title            string         `gorm:"size:200;not null"`
	AuthorID         uint64         `gorm:"not null;index"`
	CurationStatus   CurationStatus `gorm:"size:16;not null;default:draft;index"`
	DefaultProjectID *uint64        `gorm:"index"`
	DefaultProject   *Project       `gorm:"foreignKey:DefaultProjectID"`
	Projects         []Project      `gorm:"many2many:post_projects;"`
	Question         *Question      `gorm:"foreignKey:PostID"`
	PublishedAt      *time.Time
	EmbeddingVector  *pgvector.Vector `gorm:"type:vector(768)" json:"-"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PostProject is the post <-> project m2m row.
type PostProject struct {
	PostID    uint64 `gorm:"primaryKey"`
	ProjectID uint64 `gorm:"primaryKey"`
}

func (PostProject) TableName() string { return "post_projects" }

// AllProjects returns the default project followed by the m2m projects, without duplicates.
func (p *Post) AllProjects() []Project {
	var out []Project
	seen := make(map[uint64]bool)
	if p.DefaultProject != nil {
		out = append(out, *p.DefaultProject)
		seen[p.DefaultProject.ID] = true
	}
	for _, pr := range p.Projects {
		if !seen[pr.ID] {
			out = append(out, pr)
			seen[pr.ID] = true
		}
	}
	return out
}

// PostUserSnapshot tracks when a user last looked at a post's comments.
type PostUserSnapshot struct {
	ID            uint64 `gorm:"primaryKey"`
	UserID        uint64 `gorm:"not null;uniqueIndex:uk_snapshot_user_post"`
	PostID        uint64 `gorm:"not null;index;uniqueIndex:uk_snapshot_user_post"`
	CommentsCount int64  `gorm:"not null;default:0"`
	ViewedAt      time.Time
}
