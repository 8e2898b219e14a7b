package model

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	QuestionBinary         QuestionType = "binary"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionNumeric        QuestionType = "numeric"
)

const (
	ResolutionYes        = "yes"
	ResolutionNo         = "no"
	ResolutionAmbiguous  = "ambiguous"
	ResolutionAnnulled   = "annulled"
	ResolutionBelowLower = "below_lower_bound"
	ResolutionAboveUpper = "above_upper_bound"
)

// CDFSize is the number of points of a numeric forecast cdf.
const CDFSize = 201

type Question struct {
	ID                  uint64       `gorm:"primaryKey"`
	PostID              uint64       `gorm:"not null;uniqueIndex"`
	Type                QuestionType `gorm:"size:32;not null;index"`
	Title               string       `gorm:"size:200;not null"`
	Description         string       `gorm:"type:text"`
	Options             datatypes.JSONSlice[string]
	RangeMin            *float64
	RangeMax            *float64
	OpenLowerBound      bool `gorm:"not null;default:false"`
	OpenUpperBound      bool `gorm:"not null;default:false"`
	OpenTime            *time.Time
	ScheduledCloseTime  *time.Time
	ActualCloseTime     *time.Time
	ForecastScoringEnds *time.Time
	Resolution          *string `gorm:"size:200;index"`
	ActualResolveTime   *time.Time
	Post                *Post `gorm:"foreignKey:PostID"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsOpen reports whether forecasts are accepted at now.
func (q *Question) IsOpen(now time.Time) bool {
	if q.Resolution != nil {
		return false
	}
	if q.OpenTime == nil || now.Before(*q.OpenTime) {
		return false
	}
	if q.ActualCloseTime != nil && !now.Before(*q.ActualCloseTime) {
		return false
	}
	if q.ScheduledCloseTime != nil && !now.Before(*q.ScheduledCloseTime) {
		return false
	}
	return true
}

// IsAmbiguousOrAnnulled reports whether the resolution voids scoring.
func IsAmbiguousOrAnnulled(resolution string) bool {
	return resolution == ResolutionAmbiguous || resolution == ResolutionAnnulled
}

// ScoringEnd is the end of the scored forecasting span: the stored value, else the
// actual close time, else the scheduled close time once resolved. Nil when unknown.
func (q *Question) ScoringEnd() *time.Time {
	switch {
	case q.ForecastScoringEnds != nil:
		return q.ForecastScoringEnds
	case q.ActualCloseTime != nil:
		return q.ActualCloseTime
	case q.Resolution != nil && q.ScheduledCloseTime != nil:
		return q.ScheduledCloseTime
	}
	return nil
}
