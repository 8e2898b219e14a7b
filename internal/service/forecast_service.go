package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/permission"
	"Forecast_Hub/internal/pkg"
	"Forecast_Hub/internal/pkg/errs"
	"Forecast_Hub/internal/repository/sqldb"
	"Forecast_Hub/internal/scoring"
)

// AggregationMethods are recomputed after every forecast.
var AggregationMethods = []model.AggregationMethod{model.AggregationRecencyWeighted, model.AggregationUnweighted}

const categorySumTolerance = 1e-6

type ForecastService struct {
	questions *sqldb.QuestionRepository
	posts     *PostService
}

func NewForecastService(db *gorm.DB, posts *PostService) *ForecastService {
	return &ForecastService{
		questions: &sqldb.QuestionRepository{DB: db},
		posts:     posts,
	}
}

type ForecastInput struct {
	ProbabilityYes            *float64        `json:"probability_yes" binding:"omitempty,probability"`
	ProbabilityYesPerCategory []float64       `json:"probability_yes_per_category"`
	ContinuousCDF             []float64       `json:"continuous_cdf"`
	SliderValues              json.RawMessage `json:"slider_values"`
}

// questionPermission loads the question and the caller's permission on its post.
func (s *ForecastService) questionPermission(ctx context.Context, user *model.User, questionID uint64) (*model.Question, permission.ObjectPermission, error) {
	q, err := s.questions.FindByID(ctx, questionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", errs.ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	post, err := s.posts.repo.FindByID(ctx, q.PostID)
	if err != nil {
		return nil, "", err
	}
	perm, err := s.posts.PostPermission(ctx, post, user)
	if err != nil {
		return nil, "", err
	}
	return q, permission.Of(perm), nil
}

// CreateForecast replaces the user's standing forecast and appends fresh community aggregates.
func (s *ForecastService) CreateForecast(ctx context.Context, user *model.User, questionID uint64, in ForecastInput) error {
	q, perm, err := s.questionPermission(ctx, user, questionID)
	if err != nil {
		return err
	}
	if err := permission.EnsureForecast(perm); err != nil {
		return err
	}
	now := time.Now()
	if !q.IsOpen(now) {
		return errs.Validation("question is not open for forecasting")
	}
	f := &model.Forecast{
		QuestionID: q.ID,
		AuthorID:   user.ID,
		StartTime:  now,
	}
	if err := fillForecast(q, f, in); err != nil {
		return err
	}
	if err := s.questions.SubmitForecast(ctx, f); err != nil {
		return err
	}
	if err := s.refreshAggregates(ctx, q, now); err != nil {
		return fmt.Errorf("refresh aggregates: %w", err)
	}
	logrus.WithFields(logrus.Fields{"question_id": q.ID, "author_id": user.ID}).Debug("forecast created")
	return nil
}

func fillForecast(q *model.Question, f *model.Forecast, in ForecastInput) error {
	if len(in.SliderValues) > 0 {
		f.SliderValues = datatypes.JSON(in.SliderValues)
	}
	switch q.Type {
	case model.QuestionBinary:
		p := in.ProbabilityYes
		if p == nil || *p < pkg.MinProbability || *p > pkg.MaxProbability {
			return errs.FieldErrors(map[string]string{
				"probability_yes": fmt.Sprintf("must be between %g and %g", pkg.MinProbability, pkg.MaxProbability),
			})
		}
		f.ProbabilityYes = p
	case model.QuestionMultipleChoice:
		values := in.ProbabilityYesPerCategory
		if len(values) != len(q.Options) {
			return errs.FieldErrors(map[string]string{"probability_yes_per_category": "one value per option required"})
		}
		sum := 0.0
		for _, v := range values {
			if v <= 0 {
				return errs.FieldErrors(map[string]string{"probability_yes_per_category": "values must be positive"})
			}
			sum += v
		}
		if math.Abs(sum-1) > categorySumTolerance {
			return errs.FieldErrors(map[string]string{"probability_yes_per_category": "values must sum to 1"})
		}
		f.ProbabilityYesPerCategory = values
	case model.QuestionNumeric:
		cdf := in.ContinuousCDF
		if len(cdf) != model.CDFSize {
			return errs.FieldErrors(map[string]string{"continuous_cdf": fmt.Sprintf("must have %d values", model.CDFSize)})
		}
		for i, v := range cdf {
			if v < 0 || v > 1 || (i > 0 && v < cdf[i-1]) {
				return errs.FieldErrors(map[string]string{"continuous_cdf": "must be non-decreasing within [0, 1]"})
			}
		}
		f.ContinuousCDF = cdf
	default:
		return errs.Validation("unknown question type")
	}
	return nil
}

func (s *ForecastService) refreshAggregates(ctx context.Context, q *model.Question, at time.Time) error {
	active, err := s.questions.ActiveForecasts(ctx, q.ID)
	if err != nil {
		return err
	}
	for _, method := range AggregationMethods {
		values, err := scoring.Aggregate(method, q.Type, active)
		if errors.Is(err, scoring.ErrNoForecasts) {
			continue
		}
		if err != nil {
			return err
		}
		if err := s.questions.AppendAggregate(ctx, &model.AggregateForecast{
			QuestionID:      q.ID,
			Method:          method,
			StartTime:       at,
			ForecastValues:  values,
			ForecasterCount: len(active),
		}); err != nil {
			return err
		}
	}
	return nil
}

// MyForecasts lists the user's forecasts on a question, oldest first.
func (s *ForecastService) MyForecasts(ctx context.Context, user *model.User, questionID uint64) ([]ForecastData, error) {
	q, perm, err := s.questionPermission(ctx, user, questionID)
	if err != nil {
		return nil, err
	}
	if err := permission.EnsureView(perm); err != nil {
		return nil, err
	}
	list, err := s.questions.UserForecasts(ctx, q.ID, user.ID)
	if err != nil {
		return nil, err
	}
	out := make([]ForecastData, 0, len(list))
	for i := range list {
		out = append(out, SerializeForecast(&list[i]))
	}
	return out, nil
}

// Aggregates returns the community forecast series of a question.
func (s *ForecastService) Aggregates(ctx context.Context, user *model.User, questionID uint64, method model.AggregationMethod) ([]AggregateData, error) {
	q, perm, err := s.questionPermission(ctx, user, questionID)
	if err != nil {
		return nil, err
	}
	if err := permission.EnsureView(perm); err != nil {
		return nil, err
	}
	if method == "" {
		method = model.AggregationRecencyWeighted
	}
	list, err := s.questions.Aggregates(ctx, q.ID, method)
	if err != nil {
		return nil, err
	}
	out := make([]AggregateData, 0, len(list))
	for i := range list {
		out = append(out, SerializeAggregate(&list[i]))
	}
	return out, nil
}
