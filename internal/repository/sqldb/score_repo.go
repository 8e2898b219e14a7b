package sqldb

import (
	"context"

	"gorm.io/gorm"

	"Forecast_Hub/internal/model"
)

type ScoreRepository struct {
	DB *gorm.DB
}

// Replace swaps the question's scores of the given types for the new set.
func (r *ScoreRepository) Replace(ctx context.Context, questionID uint64, types []model.ScoreType, scores []model.Score) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ? AND score_type IN ?", questionID, types).
			Delete(&model.Score{}).Error; err != nil {
			return err
		}
		if len(scores) == 0 {
			return nil
		}
		return tx.Omit("Question").CreateInBatches(scores, 500).Error
	})
}

// UserScores returns user (non aggregate) scores of one type over a question set.
func (r *ScoreRepository) UserScores(ctx context.Context, questionIDs []uint64, typ model.ScoreType) ([]model.Score, error) {
	var list []model.Score
	if len(questionIDs) == 0 {
		return list, nil
	}
	err := r.DB.WithContext(ctx).
		Where("question_id IN ? AND score_type = ? AND user_id IS NOT NULL", questionIDs, typ).
		Order("question_id ASC, user_id ASC").
		Find(&list).Error
	return list, err
}

// ForUser returns one user's scores of one type over a question set, with the question loaded.
func (r *ScoreRepository) ForUser(ctx context.Context, userID uint64, questionIDs []uint64, typ model.ScoreType) ([]model.Score, error) {
	var list []model.Score
	if len(questionIDs) == 0 {
		return list, nil
	}
	err := r.DB.WithContext(ctx).
		Preload("Question").
		Where("user_id = ? AND question_id IN ? AND score_type = ?", userID, questionIDs, typ).
		Order("question_id ASC").
		Find(&list).Error
	return list, err
}

// AggregateScores returns the scores of an aggregation method, e.g. the recency weighted community forecast.
func (r *ScoreRepository) AggregateScores(ctx context.Context, method model.AggregationMethod, typ model.ScoreType) ([]model.Score, error) {
	var list []model.Score
	err := r.DB.WithContext(ctx).
		Where("aggregation_method = ? AND score_type = ?", method, typ).
		Order("created_at ASC, id ASC").
		Find(&list).Error
	return list, err
}
