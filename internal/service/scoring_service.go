package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/repository/sqldb"
	"Forecast_Hub/internal/scoring"
)

// DefaultScoreTypes are computed whenever a question resolves.
var DefaultScoreTypes = []model.ScoreType{model.ScorePeer, model.ScoreBaseline, model.ScoreSpotPeer}

const aggregateUserID = math.MaxUint64

type ScoringService struct {
	questions *sqldb.QuestionRepository
	scores    *sqldb.ScoreRepository
}

func NewScoringService(db *gorm.DB) *ScoringService {
	return &ScoringService{
		questions: &sqldb.QuestionRepository{DB: db},
		scores:    &sqldb.ScoreRepository{DB: db},
	}
}

// ScoreQuestion recomputes the question's user scores and recency weighted aggregate scores of the given types.
func (s *ScoringService) ScoreQuestion(ctx context.Context, q *model.Question, resolution string, types []model.ScoreType) error {
	outcome, err := scoring.ResolveOutcome(q, resolution)
	if err != nil {
		return err
	}
	end := q.ScoringEnd()
	if end == nil {
		return fmt.Errorf("question %d: %w", q.ID, scoring.ErrMissingScoringEnd)
	}
	if q.OpenTime == nil || !end.After(*q.OpenTime) {
		return fmt.Errorf("question %d: %w", q.ID, scoring.ErrEmptyHorizon)
	}
	horizon := scoring.Horizon{Open: *q.OpenTime, End: *end}

	forecasts, err := s.questions.Forecasts(ctx, q.ID)
	if err != nil {
		return err
	}
	windows := make([]scoring.Window, 0, len(forecasts))
	for i := range forecasts {
		f := &forecasts[i]
		p, err := outcome.Probability(f)
		if err != nil {
			return fmt.Errorf("forecast %d: %w", f.ID, err)
		}
		windows = append(windows, scoring.Window{UserID: f.AuthorID, Start: f.StartTime, End: f.EndTime, P: p})
	}

	aggregates, err := s.questions.Aggregates(ctx, q.ID, model.AggregationRecencyWeighted)
	if err != nil {
		return err
	}
	reference := make([]scoring.Window, 0, len(aggregates))
	for _, a := range aggregates {
		p, err := outcome.ValuesProbability(a.ForecastValues)
		if err != nil {
			return fmt.Errorf("aggregate %d: %w", a.ID, err)
		}
		reference = append(reference, scoring.Window{UserID: aggregateUserID, Start: a.StartTime, End: a.EndTime, P: p})
	}

	method := model.AggregationRecencyWeighted
	var scores []model.Score
	for _, typ := range types {
		var results []scoring.Result
		var community *scoring.Result
		switch typ {
		case model.ScorePeer:
			results = scoring.Peer(outcome, horizon, windows)
			if len(reference) > 0 {
				r := scoring.PeerAgainst(outcome, horizon, reference, windows)
				community = &r
			}
		case model.ScoreBaseline:
			results = scoring.Baseline(outcome, horizon, windows)
			if agg := scoring.Baseline(outcome, horizon, reference); len(agg) > 0 {
				community = &agg[0]
			}
		case model.ScoreSpotPeer:
			results = scoring.SpotPeer(outcome, *end, windows)
			for _, r := range scoring.SpotPeer(outcome, *end, append(append([]scoring.Window{}, windows...), reference...)) {
				r := r // per-iteration copy (go directive is 1.21, pre-loopvar)
				if r.UserID == aggregateUserID {
					community = &r
				}
			}
		default:
			return fmt.Errorf("unknown score type %q", typ)
		}
		for _, r := range results {
			userID := r.UserID
			scores = append(scores, model.Score{
				UserID:     &userID,
				QuestionID: q.ID,
				Score:      r.Score,
				Coverage:   r.Coverage,
				ScoreType:  typ,
			})
		}
		if community != nil {
			scores = append(scores, model.Score{
				QuestionID:        q.ID,
				Score:             community.Score,
				Coverage:          community.Coverage,
				ScoreType:         typ,
				AggregationMethod: &method,
			})
		}
	}
	return s.scores.Replace(ctx, q.ID, types, scores)
}

// ScoreQuestions rescores resolved questions, a random sample of qty when qty > 0.
// Ambiguous, annulled and never opened questions are skipped; any other failure stops the batch.
func (s *ScoringService) ScoreQuestions(ctx context.Context, qty int) (int, error) {
	questions, err := s.questions.Scorable(ctx, qty)
	if err != nil {
		return 0, err
	}
	scored := 0
	for i := range questions {
		q := &questions[i]
		if err := s.ScoreQuestion(ctx, q, *q.Resolution, DefaultScoreTypes); err != nil {
			if errors.Is(err, scoring.ErrAmbiguousOrAnnulled) {
				continue
			}
			if errors.Is(err, scoring.ErrMissingScoringEnd) || errors.Is(err, scoring.ErrEmptyHorizon) {
				logrus.WithError(err).WithField("question_id", q.ID).Warn("question skipped")
				continue
			}
			return scored, fmt.Errorf("score question %d: %w", q.ID, err)
		}
		scored++
		if scored%50 == 0 {
			logrus.WithFields(logrus.Fields{"scored": scored, "total": len(questions)}).Info("scoring questions")
		}
	}
	logrus.WithField("scored", scored).Info("scoring done")
	return scored, nil
}
