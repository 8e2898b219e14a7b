package sqldb

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"Forecast_Hub/internal/model"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func (r *QuestionRepository) FindByID(ctx context.Context, id uint64) (*model.Question, error) {
	var q model.Question
	err := r.DB.WithContext(ctx).Preload("Post").First(&q, id).Error
	return &q, err
}

func (r *QuestionRepository) FindByIDs(ctx context.Context, ids []uint64) ([]model.Question, error) {
	var list []model.Question
	if len(ids) == 0 {
		return list, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error
	return list, err
}

func (r *QuestionRepository) Save(ctx context.Context, q *model.Question) error {
	return r.DB.WithContext(ctx).Omit("Post").Save(q).Error
}

// Scorable lists resolved questions that are not ambiguous or annulled.
func (r *QuestionRepository) Scorable(ctx context.Context, limit int) ([]model.Question, error) {
	q := r.DB.WithContext(ctx).
		Where("resolution IS NOT NULL").
		Where("resolution NOT IN ?", []string{model.ResolutionAmbiguous, model.ResolutionAnnulled})
	if limit > 0 {
		random := "RANDOM()"
		if r.DB.Dialector.Name() == "mysql" {
			random = "RAND()"
		}
		q = q.Order(random).Limit(limit)
	} else {
		q = q.Order("id ASC")
	}
	var list []model.Question
	err := q.Find(&list).Error
	return list, err
}

// ForProject returns questions whose post belongs to the project (default or m2m)
// and that resolved inside [start, end). Nil bounds are open.
func (r *QuestionRepository) ForProject(ctx context.Context, projectID uint64, start, end *time.Time) ([]model.Question, error) {
	postIDs := r.DB.Session(&gorm.Session{NewDB: true}).Model(&model.Post{}).
		Select("id").
		Where("default_project_id = ? OR id IN (?)", projectID,
			r.DB.Session(&gorm.Session{NewDB: true}).Model(&model.PostProject{}).Select("post_id").Where("project_id = ?", projectID))
	q := r.DB.WithContext(ctx).
		Where("post_id IN (?)", postIDs).
		Where("resolution IS NOT NULL")
	if start != nil {
		q = q.Where("actual_resolve_time >= ?", *start)
	}
	if end != nil {
		q = q.Where("actual_resolve_time < ?", *end)
	}
	var list []model.Question
	err := q.Preload("Post").Order("id ASC").Find(&list).Error
	return list, err
}

// Forecasts returns every forecast of the question ordered by start time.
func (r *QuestionRepository) Forecasts(ctx context.Context, questionID uint64) ([]model.Forecast, error) {
	var list []model.Forecast
	err := r.DB.WithContext(ctx).
		Where("question_id = ?", questionID).
		Order("start_time ASC, id ASC").
		Find(&list).Error
	return list, err
}

func (r *QuestionRepository) UserForecasts(ctx context.Context, questionID, userID uint64) ([]model.Forecast, error) {
	var list []model.Forecast
	err := r.DB.WithContext(ctx).
		Where("question_id = ? AND author_id = ?", questionID, userID).
		Order("start_time ASC, id ASC").
		Find(&list).Error
	return list, err
}

// ActiveForecasts returns the open (end_time IS NULL) forecast of every user, oldest first.
func (r *QuestionRepository) ActiveForecasts(ctx context.Context, questionID uint64) ([]model.Forecast, error) {
	var list []model.Forecast
	err := r.DB.WithContext(ctx).
		Where("question_id = ? AND end_time IS NULL", questionID).
		Order("start_time ASC, id ASC").
		Find(&list).Error
	return list, err
}

// LatestForecast returns the user's most recent forecast, nil when none.
func (r *QuestionRepository) LatestForecast(ctx context.Context, questionID, userID uint64) (*model.Forecast, error) {
	var f model.Forecast
	err := r.DB.WithContext(ctx).
		Where("question_id = ? AND author_id = ?", questionID, userID).
		Order("start_time DESC, id DESC").
		First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &f, err
}

// SubmitForecast closes the previous forecast window and opens a new one atomically.
func (r *QuestionRepository) SubmitForecast(ctx context.Context, f *model.Forecast) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev model.Forecast
		err := tx.Where("question_id = ? AND author_id = ?", f.QuestionID, f.AuthorID).
			Order("start_time DESC, id DESC").
			First(&prev).Error
		switch {
		case err == nil:
			if err = tx.Model(&prev).Update("end_time", f.StartTime).Error; err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Create(f).Error
	})
}

// AppendAggregate closes the open aggregate of the same method and stores the new one.
func (r *QuestionRepository) AppendAggregate(ctx context.Context, agg *model.AggregateForecast) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.AggregateForecast{}).
			Where("question_id = ? AND method = ? AND end_time IS NULL", agg.QuestionID, agg.Method).
			Update("end_time", agg.StartTime).Error; err != nil {
			return err
		}
		return tx.Create(agg).Error
	})
}

func (r *QuestionRepository) Aggregates(ctx context.Context, questionID uint64, method model.AggregationMethod) ([]model.AggregateForecast, error) {
	var list []model.AggregateForecast
	err := r.DB.WithContext(ctx).
		Where("question_id = ? AND method = ?", questionID, method).
		Order("start_time ASC, id ASC").
		Find(&list).Error
	return list, err
}

// BinaryResolvedAggregates loads aggregates of binary questions resolved yes or no.
func (r *QuestionRepository) BinaryResolvedAggregates(ctx context.Context, method model.AggregationMethod) ([]model.AggregateForecast, error) {
	questionIDs := r.DB.Session(&gorm.Session{NewDB: true}).Model(&model.Question{}).
		Select("id").
		Where("type = ? AND resolution IN ?", model.QuestionBinary, []string{model.ResolutionNo, model.ResolutionYes})
	var list []model.AggregateForecast
	err := r.DB.WithContext(ctx).
		Preload("Question").
		Where("method = ? AND question_id IN (?)", method, questionIDs).
		Order("question_id ASC, start_time ASC").
		Find(&list).Error
	return list, err
}
