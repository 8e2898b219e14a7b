package model

import (
	"time"

	"gorm.io/datatypes"
)

type Forecast struct {
	ID                        uint64    `gorm:"primaryKey"`
	QuestionID                uint64    `gorm:"not null;index:idx_forecast_question_author,priority:1"`
	AuthorID                  uint64    `gorm:"not null;index:idx_forecast_question_author,priority:2"`
	StartTime                 time.Time `gorm:"not null;index"`
	EndTime                   *time.Time
	ProbabilityYes            *float64
	ProbabilityYesPerCategory datatypes.JSONSlice[float64]
	ContinuousCDF             datatypes.JSONSlice[float64]
	SliderValues              datatypes.JSON
	Question                  *Question `gorm:"foreignKey:QuestionID" json:"-"`
	CreatedAt                 time.Time
}

type AggregationMethod string

const (
	AggregationRecencyWeighted   AggregationMethod = "recency_weighted"
	AggregationUnweighted        AggregationMethod = "unweighted"
	AggregationSingleAggregation AggregationMethod = "single_aggregation"
)

// AggregateForecast is one step of the community forecast series of a question.
// Binary values are [p(no), p(yes)].
type AggregateForecast struct {
	ID              uint64            `gorm:"primaryKey"`
	QuestionID      uint64            `gorm:"not null;index"`
	Method          AggregationMethod `gorm:"size:32;not null;index"`
	StartTime       time.Time         `gorm:"not null"`
	EndTime         *time.Time
	ForecastValues  datatypes.JSONSlice[float64]
	ForecasterCount int
	Question        *Question `gorm:"foreignKey:QuestionID" json:"-"`
}
