package service

import (
	"context"

	"gorm.io/gorm"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/repository/sqldb"
	"Forecast_Hub/internal/scoring"
)

type TrackRecordService struct {
	questions *sqldb.QuestionRepository
	scores    *sqldb.ScoreRepository
}

func NewTrackRecordService(db *gorm.DB) *TrackRecordService {
	return &TrackRecordService{
		questions: &sqldb.QuestionRepository{DB: db},
		scores:    &sqldb.ScoreRepository{DB: db},
	}
}

type ScatterPoint struct {
	Score          float64 `json:"score"`
	ScoreTimestamp float64 `json:"score_timestamp"`
}

type TrackRecord struct {
	CalibrationCurve []scoring.CalibrationPoint `json:"calibration_curve"`
	ScoreScatterPlot []ScatterPoint             `json:"score_scatter_plot"`
	ScoreHistogram   []scoring.HistogramBin     `json:"score_histogram"`
}

// SiteTrackRecord describes how the recency weighted community forecast has performed.
func (s *TrackRecordService) SiteTrackRecord(ctx context.Context) (*TrackRecord, error) {
	method := model.AggregationRecencyWeighted
	scores, err := s.scores.AggregateScores(ctx, method, model.ScoreBaseline)
	if err != nil {
		return nil, err
	}
	out := &TrackRecord{ScoreScatterPlot: make([]ScatterPoint, 0, len(scores))}
	values := make([]float64, 0, len(scores))
	for _, sc := range scores {
		out.ScoreScatterPlot = append(out.ScoreScatterPlot, ScatterPoint{
			Score:          sc.Score,
			ScoreTimestamp: float64(sc.CreatedAt.Unix()),
		})
		values = append(values, sc.Score)
	}
	out.ScoreHistogram = scoring.Histogram(values)

	aggregates, err := s.questions.BinaryResolvedAggregates(ctx, method)
	if err != nil {
		return nil, err
	}
	out.CalibrationCurve = scoring.Calibration(calibrationSamples(aggregates))
	return out, nil
}

// calibrationSamples weights every aggregate step by the share of its question's forecasting span it covers.
func calibrationSamples(aggregates []model.AggregateForecast) []scoring.CalibrationSample {
	samples := make([]scoring.CalibrationSample, 0, len(aggregates))
	for _, a := range aggregates {
		q := a.Question
		if q == nil || q.Resolution == nil || q.OpenTime == nil || len(a.ForecastValues) < 2 {
			continue
		}
		scoringEnd := q.ScoringEnd()
		closeTime := q.ActualCloseTime
		if closeTime == nil {
			closeTime = q.ScheduledCloseTime
		}
		if scoringEnd == nil || closeTime == nil {
			continue
		}
		var end *float64
		if a.EndTime != nil {
			e := float64(a.EndTime.Unix())
			end = &e
		}
		weight := scoring.ForecastWeight(
			float64(q.OpenTime.Unix()),
			float64(scoringEnd.Unix()),
			float64(closeTime.Unix()),
			float64(a.StartTime.Unix()),
			end,
		)
		resolution := 0.0
		if *q.Resolution == model.ResolutionYes {
			resolution = 1
		}
		samples = append(samples, scoring.CalibrationSample{
			Value:      a.ForecastValues[1],
			Weight:     weight,
			Resolution: resolution,
		})
	}
	return samples
}
