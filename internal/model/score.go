package model

import "time"

type ScoreType string

const (
	ScorePeer     ScoreType = "peer"
	ScoreBaseline ScoreType = "baseline"
	ScoreSpotPeer ScoreType = "spot_peer"
)

// Score is a user's (or an aggregate's, when UserID is nil) score on a question.
type Score struct {
	ID                uint64  `gorm:"primaryKey"`
	UserID            *uint64 `gorm:"index"`
	QuestionID        uint64  `gorm:"not null;index"`
	Score             float64
	Coverage          float64
	ScoreType         ScoreType          `gorm:"size:32;not null;index"`
	AggregationMethod *AggregationMethod `gorm:"size:32"`
	Question          *Question          `gorm:"foreignKey:QuestionID" json:"-"`
	CreatedAt         time.Time
}
