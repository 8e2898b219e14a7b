package model

import "time"

type Comment struct {
	ID                 uint64    `gorm:"primaryKey"`
	AuthorID           uint64    `gorm:"not null;index"`
	Author             *User     `gorm:"foreignKey:AuthorID" json:"-"`
	ParentID           *uint64   `gorm:"index"`
	Parent             *Comment  `gorm:"foreignKey:ParentID" json:"-"`
	OnPostID           *uint64   `gorm:"index"`
	OnProjectID        *uint64   `gorm:"index"`
	Text               string    `gorm:"type:text;not null"`
	IsSoftDeleted      bool      `gorm:"not null;default:false"`
	IsPrivate          bool      `gorm:"not null;default:false"`
	IncludedForecastID *uint64
	IncludedForecast   *Forecast `gorm:"foreignKey:IncludedForecastID" json:"-"`
	CreatedAt          time.Time `gorm:"index"`
	UpdatedAt          time.Time
}
