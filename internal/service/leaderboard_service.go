package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jnow "github.com/jinzhu/now"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/permission"
	"Forecast_Hub/internal/pkg/errs"
	"Forecast_Hub/internal/repository/redis"
	"Forecast_Hub/internal/repository/sqldb"
	"Forecast_Hub/internal/scoring"
)

var ErrLeaderboardLocked = errors.New("leaderboard is being recomputed elsewhere")

type LeaderboardService struct {
	repo      *sqldb.LeaderboardRepository
	questions *sqldb.QuestionRepository
	scores    *sqldb.ScoreRepository
	users     *sqldb.UserRepository
	projects  *ProjectService
	cache     *redis.LeaderboardCache
	lock      *redis.DistLock
}

func NewLeaderboardService(db *gorm.DB, projects *ProjectService, cache *redis.LeaderboardCache, lock *redis.DistLock) *LeaderboardService {
	return &LeaderboardService{
		repo:      &sqldb.LeaderboardRepository{DB: db},
		questions: &sqldb.QuestionRepository{DB: db},
		scores:    &sqldb.ScoreRepository{DB: db},
		users:     &sqldb.UserRepository{DB: db},
		projects:  projects,
		cache:     cache,
		lock:      lock,
	}
}

// UpdateLeaderboard recomputes every entry of lb from the stored question scores.
// Once the finalize time has passed the leaderboard is finalized and medals are awarded.
func (s *LeaderboardService) UpdateLeaderboard(ctx context.Context, lb *model.Leaderboard) error {
	token := uuid.NewString()
	ok, err := s.lock.Acquire(ctx, lb.ID, token)
	if err != nil {
		return fmt.Errorf("acquire leaderboard lock: %w", err)
	}
	if !ok {
		return ErrLeaderboardLocked
	}
	defer func() {
		if err := s.lock.Release(ctx, lb.ID, token); err != nil {
			logrus.WithError(err).WithField("leaderboard_id", lb.ID).Warn("release leaderboard lock failed")
		}
	}()

	calculatedOn := time.Now()
	if lb.FinalizeTime != nil && !calculatedOn.Before(*lb.FinalizeTime) {
		lb.Finalized = true
	}

	questions, err := s.questions.ForProject(ctx, lb.ProjectID, lb.StartTime, lb.EndTime)
	if err != nil {
		return err
	}
	ids := make([]uint64, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	scores, err := s.scores.UserScores(ctx, ids, lb.ScoreType.ScoreType())
	if err != nil {
		return err
	}
	contributions := make([]scoring.Contribution, 0, len(scores))
	for _, sc := range scores {
		contributions = append(contributions, scoring.Contribution{UserID: *sc.UserID, Score: sc.Score, Coverage: sc.Coverage})
	}
	entries := scoring.Entries(lb.ScoreType, contributions)

	userIDs := make([]uint64, 0, len(entries))
	for _, e := range entries {
		userIDs = append(userIDs, e.UserID)
	}
	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return err
	}
	excluded := make(map[uint64]bool, len(users))
	for _, u := range users {
		excluded[u.ID] = u.IsBot || u.IsStaff
	}
	for i := range entries {
		entries[i].LeaderboardID = lb.ID
		entries[i].Excluded = excluded[entries[i].UserID]
		entries[i].CalculatedOn = calculatedOn
	}
	scoring.Rank(entries)
	if lb.Finalized {
		scoring.AssignMedals(entries)
	}

	if err := s.repo.ReplaceEntries(ctx, lb.ID, entries); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, lb); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, lb.ID); err != nil {
		logrus.WithError(err).WithField("leaderboard_id", lb.ID).Warn("invalidate leaderboard cache failed")
	}
	logrus.WithFields(logrus.Fields{
		"leaderboard_id": lb.ID,
		"entries":        len(entries),
		"finalized":      lb.Finalized,
	}).Info("leaderboard updated")
	return nil
}

// UpdateActive recomputes every leaderboard that is not finalized yet.
func (s *LeaderboardService) UpdateActive(ctx context.Context) (int, error) {
	list, err := s.repo.Active(ctx)
	if err != nil {
		return 0, err
	}
	return s.updateAll(ctx, list), nil
}

// UpdateForProjects recomputes the open leaderboards of the given projects.
func (s *LeaderboardService) UpdateForProjects(ctx context.Context, projectIDs []uint64) error {
	var list []model.Leaderboard
	for _, id := range projectIDs {
		lbs, err := s.repo.Find(ctx, sqldb.LeaderboardFilter{ProjectID: id})
		if err != nil {
			return err
		}
		for _, lb := range lbs {
			if !lb.Finalized {
				list = append(list, lb)
			}
		}
	}
	s.updateAll(ctx, list)
	return nil
}

func (s *LeaderboardService) updateAll(ctx context.Context, list []model.Leaderboard) int {
	updated := 0
	for i := range list {
		if err := s.UpdateLeaderboard(ctx, &list[i]); err != nil {
			logrus.WithError(err).WithField("leaderboard_id", list[i].ID).Warn("update leaderboard failed")
			continue
		}
		updated++
	}
	return updated
}

// EnsureGlobalLeaderboards creates the yearly global leaderboards of the site main project.
func (s *LeaderboardService) EnsureGlobalLeaderboards(ctx context.Context, year int) error {
	start := jnow.With(time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC)).BeginningOfYear()
	end := start.AddDate(1, 0, 0)
	for _, typ := range []model.LeaderboardType{model.LeaderboardPeerGlobal, model.LeaderboardBaselineGlobal} {
		existing, err := s.repo.Find(ctx, sqldb.LeaderboardFilter{
			ProjectID: s.projects.SiteMainID(),
			Type:      typ,
			StartTime: &start,
			EndTime:   &end,
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			continue
		}
		startTime, endTime := start, end
		lb := &model.Leaderboard{
			ProjectID:    s.projects.SiteMainID(),
			Name:         fmt.Sprintf("%d %s", year, typ),
			ScoreType:    typ,
			StartTime:    &startTime,
			EndTime:      &endTime,
			FinalizeTime: &endTime,
		}
		if err := s.repo.Create(ctx, lb); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{"leaderboard_id": lb.ID, "type": typ, "year": year}).Info("global leaderboard created")
	}
	return nil
}

type LeaderboardView struct {
	LeaderboardData
	Entries   []EntryData `json:"entries"`
	UserEntry *EntryData  `json:"userEntry,omitempty"`
}

type GlobalLeaderboardQuery struct {
	StartTime *time.Time
	EndTime   *time.Time
	Type      model.LeaderboardType
}

func canSeeExcluded(user *model.User) bool {
	return user != nil && (user.IsStaff || user.IsSuperuser)
}

func viewClass(kind string, user *model.User) string {
	if canSeeExcluded(user) {
		return kind + ":staff"
	}
	return kind + ":public"
}

// GlobalLeaderboard returns the top of the latest matching site main leaderboard.
func (s *LeaderboardService) GlobalLeaderboard(ctx context.Context, user *model.User, q GlobalLeaderboardQuery) (*LeaderboardView, error) {
	list, err := s.repo.Find(ctx, sqldb.LeaderboardFilter{
		ProjectID: s.projects.SiteMainID(),
		Type:      q.Type,
		StartTime: q.StartTime,
		EndTime:   q.EndTime,
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errs.ErrNotFound
	}
	lb := &list[0]

	view, err := s.cachedView(ctx, lb, viewClass("global", user), func() ([]model.LeaderboardEntry, error) {
		count, err := s.repo.CountEntries(ctx, lb.ID, true)
		if err != nil {
			return nil, err
		}
		return s.repo.Entries(ctx, lb.ID, scoring.GlobalCutoff(int(count)), canSeeExcluded(user))
	})
	if err != nil {
		return nil, err
	}
	view.UserEntry = findUserEntry(view.Entries, user)
	return view, nil
}

// ProjectLeaderboard returns the project's leaderboard with prize shares.
// With several matches the project's primary leaderboard is used.
func (s *LeaderboardService) ProjectLeaderboard(ctx context.Context, user *model.User, projectID uint64, typ model.LeaderboardType, name string) (*LeaderboardView, error) {
	project, err := s.projects.GetVisibleProject(ctx, user, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.projects.ensure(ctx, project, user, permission.EnsureView); err != nil {
		return nil, err
	}
	list, err := s.repo.Find(ctx, sqldb.LeaderboardFilter{ProjectID: project.ID, Type: typ, Name: name})
	if err != nil {
		return nil, err
	}
	lb, err := pickLeaderboard(list, project)
	if err != nil {
		return nil, err
	}

	view, err := s.cachedView(ctx, lb, viewClass("project", user), func() ([]model.LeaderboardEntry, error) {
		return s.repo.Entries(ctx, lb.ID, 0, canSeeExcluded(user))
	})
	if err != nil {
		return nil, err
	}
	// prizes follow the project's current pool, so they are never cached
	prizePool := 0.0
	if project.PrizePool != nil {
		prizePool = *project.PrizePool
	}
	hydrateIncluded(view.Entries, prizePool)
	view.UserEntry = findUserEntry(view.Entries, user)
	return view, nil
}

func pickLeaderboard(list []model.Leaderboard, project *model.Project) (*model.Leaderboard, error) {
	switch len(list) {
	case 0:
		return nil, errs.ErrNotFound
	case 1:
		return &list[0], nil
	}
	if project.PrimaryLeaderboardID != nil {
		for i := range list {
			if list[i].ID == *project.PrimaryLeaderboardID {
				return &list[i], nil
			}
		}
	}
	return nil, errs.ErrNotFound
}

// hydrateIncluded splits the prize pool among non-excluded entries only.
func hydrateIncluded(entries []EntryData, prizePool float64) {
	idx := make([]int, 0, len(entries))
	included := make([]model.LeaderboardEntry, 0, len(entries))
	for i, e := range entries {
		entries[i].Take, entries[i].PercentPrize, entries[i].Prize = 0, 0, 0
		if !e.Excluded {
			idx = append(idx, i)
			included = append(included, model.LeaderboardEntry{Score: e.Score})
		}
	}
	scoring.HydrateTake(included, prizePool)
	for k, i := range idx {
		entries[i].Take = included[k].Take
		entries[i].PercentPrize = included[k].PercentPrize
		entries[i].Prize = included[k].Prize
	}
}

func (s *LeaderboardService) cachedView(ctx context.Context, lb *model.Leaderboard, class string, load func() ([]model.LeaderboardEntry, error)) (*LeaderboardView, error) {
	if payload, hit, err := s.cache.Get(ctx, lb.ID, class); err != nil {
		logrus.WithError(err).Warn("read leaderboard cache failed")
	} else if hit {
		var view LeaderboardView
		if err := json.Unmarshal(payload, &view); err == nil {
			return &view, nil
		}
	}

	entries, err := load()
	if err != nil {
		return nil, err
	}
	view := &LeaderboardView{LeaderboardData: SerializeLeaderboard(lb), Entries: make([]EntryData, 0, len(entries))}
	for i := range entries {
		view.Entries = append(view.Entries, SerializeEntry(&entries[i]))
	}
	if payload, err := json.Marshal(view); err == nil {
		if err := s.cache.Set(ctx, lb.ID, class, payload); err != nil {
			logrus.WithError(err).Warn("write leaderboard cache failed")
		}
	}
	return view, nil
}

func findUserEntry(entries []EntryData, user *model.User) *EntryData {
	if user.IsAnonymous() {
		return nil
	}
	for i := range entries {
		if entries[i].User != nil && entries[i].User.ID == user.ID {
			return &entries[i]
		}
	}
	return nil
}

type MedalData struct {
	EntryData
	LeaderboardData
	TotalEntries int64 `json:"total_entries"`
}

// UserMedals lists the medals a user has won with the size of each field.
func (s *LeaderboardService) UserMedals(ctx context.Context, userID uint64) ([]MedalData, error) {
	entries, err := s.repo.Medals(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]MedalData, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		total, err := s.repo.CountEntries(ctx, e.LeaderboardID, false)
		if err != nil {
			return nil, err
		}
		item := MedalData{EntryData: SerializeEntry(e), TotalEntries: total}
		if e.Leaderboard != nil {
			item.LeaderboardData = SerializeLeaderboard(e.Leaderboard)
		}
		out = append(out, item)
	}
	return out, nil
}

type MedalContributionQuery struct {
	UserID    uint64
	ProjectID uint64
	StartTime *time.Time
	EndTime   *time.Time
	Type      model.LeaderboardType
	Name      string
}

type Contribution struct {
	QuestionID    uint64  `json:"question_id"`
	QuestionTitle string  `json:"question_title"`
	PostID        uint64  `json:"post_id"`
	Score         float64 `json:"score"`
	Coverage      float64 `json:"coverage"`
}

type MedalContributions struct {
	LeaderboardEntry *EntryData      `json:"leaderboard_entry"`
	Contributions    []Contribution  `json:"contributions"`
	Leaderboard      LeaderboardData `json:"leaderboard"`
	UserID           uint64          `json:"user_id"`
}

// MedalContributions explains a leaderboard entry through the question scores it sums.
func (s *LeaderboardService) MedalContributions(ctx context.Context, viewer *model.User, q MedalContributionQuery) (*MedalContributions, error) {
	if _, err := s.users.FindByID(ctx, q.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	projectID := q.ProjectID
	if projectID == 0 {
		projectID = s.projects.SiteMainID()
	}
	project, err := s.projects.GetVisibleProject(ctx, viewer, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.projects.ensure(ctx, project, viewer, permission.EnsureView); err != nil {
		return nil, err
	}
	list, err := s.repo.Find(ctx, sqldb.LeaderboardFilter{
		ProjectID: project.ID,
		Type:      q.Type,
		Name:      q.Name,
		StartTime: q.StartTime,
		EndTime:   q.EndTime,
	})
	if err != nil {
		return nil, err
	}
	if len(list) != 1 {
		return nil, errs.ErrNotFound
	}
	lb := &list[0]

	out := &MedalContributions{Leaderboard: SerializeLeaderboard(lb), UserID: q.UserID, Contributions: []Contribution{}}
	entry, err := s.repo.UserEntry(ctx, lb.ID, q.UserID)
	switch {
	case err == nil:
		data := SerializeEntry(entry)
		out.LeaderboardEntry = &data
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	questions, err := s.questions.ForProject(ctx, lb.ProjectID, lb.StartTime, lb.EndTime)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(questions))
	for _, question := range questions {
		ids = append(ids, question.ID)
	}
	scores, err := s.scores.ForUser(ctx, q.UserID, ids, lb.ScoreType.ScoreType())
	if err != nil {
		return nil, err
	}
	for _, sc := range scores {
		c := Contribution{QuestionID: sc.QuestionID, Score: sc.Score, Coverage: sc.Coverage}
		if sc.Question != nil {
			c.QuestionTitle = sc.Question.Title
			c.PostID = sc.Question.PostID
		}
		out.Contributions = append(out.Contributions, c)
	}
	return out, nil
}
