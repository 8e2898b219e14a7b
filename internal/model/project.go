package model

import (
	"time"

	"Forecast_Hub/internal/permission"
)

type ProjectType string

const (
	ProjectSiteMain        ProjectType = "site_main"
	ProjectTournament      ProjectType = "tournament"
	ProjectQuestionSeries  ProjectType = "question_series"
	ProjectPersonalProject ProjectType = "personal_project"
	ProjectCategory        ProjectType = "category"
	ProjectTag             ProjectType = "tag"
	ProjectTopic           ProjectType = "topic"
)

var ProjectTypes = []ProjectType{
	ProjectSiteMain, ProjectTournament, ProjectQuestionSeries, ProjectPersonalProject,
	ProjectCategory, ProjectTag, ProjectTopic,
}

func (t ProjectType) Valid() bool {
	for _, v := range ProjectTypes {
		if v == t {
			return true
		}
	}
	return false
}

// NonProjectTypes were folded into projects later and never carry legacy permissions.
var NonProjectTypes = []ProjectType{ProjectCategory, ProjectTag, ProjectTopic}

func (t ProjectType) IsNonProject() bool {
	for _, v := range NonProjectTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Project struct {
	ID                   uint64      `gorm:"primaryKey"`
	Type                 ProjectType `gorm:"size:32;not null;index"`
	Name                 string      `gorm:"size:200;not null"`
	Slug                 string      `gorm:"size:200;index"`
	Subtitle             string      `gorm:"size:255"`
	Description          string      `gorm:"type:text"`
	HeaderImage          string      `gorm:"size:255"`
	HeaderLogo           string      `gorm:"size:255"`
	Emoji                string      `gorm:"size:16"`
	Section              string      `gorm:"size:32"`
	MetaDescription      string      `gorm:"size:255"`
	PrizePool            *float64
	StartDate            *time.Time
	CloseDate            *time.Time
	DefaultPermission    *permission.ObjectPermission `gorm:"size:16;index"`
	IsActive             bool                         `gorm:"not null;default:true"`
	CreatedByID          *uint64                      `gorm:"index"`
	PrimaryLeaderboardID *uint64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsOngoing reports whether the project has not closed yet.
func (p *Project) IsOngoing(now time.Time) bool {
	if p.CloseDate == nil {
		return true
	}
	return now.Before(*p.CloseDate)
}

type ProjectUserPermission struct {
	ID         uint64                      `gorm:"primaryKey"`
	UserID     uint64                      `gorm:"not null;uniqueIndex:uk_project_user"`
	ProjectID  uint64                      `gorm:"not null;index;uniqueIndex:uk_project_user"`
	Permission permission.ObjectPermission `gorm:"size:16;not null;index"`
	User       *User                       `gorm:"foreignKey:UserID"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type ProjectSubscription struct {
	ID        uint64 `gorm:"primaryKey"`
	UserID    uint64 `gorm:"not null;uniqueIndex:uk_project_subscriber"`
	ProjectID uint64 `gorm:"not null;index;uniqueIndex:uk_project_subscriber"`
	CreatedAt time.Time
}
