package model

import "time"

type LeaderboardType string

const (
	LeaderboardPeerGlobal     LeaderboardType = "peer_global"
	LeaderboardBaselineGlobal LeaderboardType = "baseline_global"
	LeaderboardPeerTournament LeaderboardType = "peer_tournament"
)

var LeaderboardTypes = []LeaderboardType{LeaderboardPeerGlobal, LeaderboardBaselineGlobal, LeaderboardPeerTournament}

func (t LeaderboardType) Valid() bool {
	for _, v := range LeaderboardTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ScoreType is the per-question score a leaderboard sums.
func (t LeaderboardType) ScoreType() ScoreType {
	if t == LeaderboardBaselineGlobal {
		return ScoreBaseline
	}
	return ScorePeer
}

type Leaderboard struct {
	ID           uint64          `gorm:"primaryKey"`
	ProjectID    uint64          `gorm:"not null;index"`
	Project      *Project        `gorm:"foreignKey:ProjectID" json:"-"`
	Name         string          `gorm:"size:200"`
	ScoreType    LeaderboardType `gorm:"size:32;not null;index"`
	StartTime    *time.Time      `gorm:"index"`
	EndTime      *time.Time      `gorm:"index"`
	FinalizeTime *time.Time
	Finalized    bool `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Medal string

const (
	MedalGold   Medal = "gold"
	MedalSilver Medal = "silver"
	MedalBronze Medal = "bronze"
)

type LeaderboardEntry struct {
	ID                uint64       `gorm:"primaryKey"`
	LeaderboardID     uint64       `gorm:"not null;index;uniqueIndex:uk_leaderboard_user"`
	Leaderboard       *Leaderboard `gorm:"foreignKey:LeaderboardID" json:"-"`
	UserID            uint64       `gorm:"not null;index;uniqueIndex:uk_leaderboard_user"`
	User              *User        `gorm:"foreignKey:UserID" json:"-"`
	Score             float64
	Coverage          float64
	ContributionCount int
	Rank              int    `gorm:"index"`
	Excluded          bool   `gorm:"not null;default:false"`
	Medal             *Medal `gorm:"size:16;index"`
	CalculatedOn      time.Time

	// take, percent prize and prize are filled at read time.
	Take         float64 `gorm:"-"`
	PercentPrize float64 `gorm:"-"`
	Prize        float64 `gorm:"-"`
}
