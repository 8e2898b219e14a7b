package sqldb

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Forecast_Hub/internal/model"
)

// rank is reserved in MySQL 8; clause columns get dialect quoting.
var rankColumn = clause.Column{Name: "rank"}

type LeaderboardRepository struct {
	DB *gorm.DB
}

// LeaderboardFilter matches leaderboards exactly on every non-empty field.
type LeaderboardFilter struct {
	ProjectID uint64
	Type      model.LeaderboardType
	Name      string
	StartTime *time.Time
	EndTime   *time.Time
}

func (r *LeaderboardRepository) Create(ctx context.Context, lb *model.Leaderboard) error {
	return r.DB.WithContext(ctx).Omit("Project").Create(lb).Error
}

func (r *LeaderboardRepository) Save(ctx context.Context, lb *model.Leaderboard) error {
	return r.DB.WithContext(ctx).Omit("Project").Save(lb).Error
}

func (r *LeaderboardRepository) FindByID(ctx context.Context, id uint64) (*model.Leaderboard, error) {
	var lb model.Leaderboard
	err := r.DB.WithContext(ctx).First(&lb, id).Error
	return &lb, err
}

// Find returns matching leaderboards, latest end time first.
func (r *LeaderboardRepository) Find(ctx context.Context, f LeaderboardFilter) ([]model.Leaderboard, error) {
	q := r.DB.WithContext(ctx).Where("project_id = ?", f.ProjectID)
	if f.Type != "" {
		q = q.Where("score_type = ?", f.Type)
	}
	if f.Name != "" {
		q = q.Where("name = ?", f.Name)
	}
	if f.StartTime != nil {
		q = q.Where("start_time = ?", *f.StartTime)
	}
	if f.EndTime != nil {
		q = q.Where("end_time = ?", *f.EndTime)
	}
	var list []model.Leaderboard
	err := q.Order("end_time DESC, id DESC").Find(&list).Error
	return list, err
}

// Active lists leaderboards that are not finalized yet.
func (r *LeaderboardRepository) Active(ctx context.Context) ([]model.Leaderboard, error) {
	var list []model.Leaderboard
	err := r.DB.WithContext(ctx).
		Where("finalized = ?", false).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

// ReplaceEntries swaps all entries of a leaderboard.
func (r *LeaderboardRepository) ReplaceEntries(ctx context.Context, leaderboardID uint64, entries []model.LeaderboardEntry) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("leaderboard_id = ?", leaderboardID).
			Delete(&model.LeaderboardEntry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.Omit("Leaderboard", "User").CreateInBatches(entries, 500).Error
	})
}

// Entries returns entries ordered by rank. maxRank > 0 caps the rank; withExcluded keeps excluded rows.
func (r *LeaderboardRepository) Entries(ctx context.Context, leaderboardID uint64, maxRank float64, withExcluded bool) ([]model.LeaderboardEntry, error) {
	q := r.DB.WithContext(ctx).
		Preload("User").
		Where("leaderboard_id = ?", leaderboardID)
	if maxRank > 0 {
		q = q.Where(clause.Lte{Column: rankColumn, Value: maxRank})
	}
	if !withExcluded {
		q = q.Where("excluded = ?", false)
	}
	var list []model.LeaderboardEntry
	err := q.Order(clause.OrderByColumn{Column: rankColumn}).Order("id ASC").Find(&list).Error
	return list, err
}

func (r *LeaderboardRepository) CountEntries(ctx context.Context, leaderboardID uint64, withExcluded bool) (int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.LeaderboardEntry{}).Where("leaderboard_id = ?", leaderboardID)
	if !withExcluded {
		q = q.Where("excluded = ?", false)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

func (r *LeaderboardRepository) UserEntry(ctx context.Context, leaderboardID, userID uint64) (*model.LeaderboardEntry, error) {
	var e model.LeaderboardEntry
	err := r.DB.WithContext(ctx).
		Preload("User").
		Where("leaderboard_id = ? AND user_id = ?", leaderboardID, userID).
		First(&e).Error
	return &e, err
}

// Medals lists the user's medal entries with their leaderboard.
func (r *LeaderboardRepository) Medals(ctx context.Context, userID uint64) ([]model.LeaderboardEntry, error) {
	var list []model.LeaderboardEntry
	err := r.DB.WithContext(ctx).
		Preload("Leaderboard").
		Where("user_id = ? AND medal IS NOT NULL", userID).
		Order("id ASC").
		Find(&list).Error
	return list, err
}
