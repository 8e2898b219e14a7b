package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/permission"
	"Forecast_Hub/internal/pkg"
	"Forecast_Hub/internal/pkg/errs"
	"Forecast_Hub/internal/repository/sqldb"
	"Forecast_Hub/internal/scoring"
)

type PostService struct {
	db           *gorm.DB
	repo         *sqldb.PostRepository
	questions    *sqldb.QuestionRepository
	projectRepo  *sqldb.ProjectRepository
	outbox       *sqldb.OutboxRepository
	projects     *ProjectService
	scoring      *ScoringService
	leaderboards *LeaderboardService
	embeddings   *pkg.EmbeddingClient
}

func NewPostService(db *gorm.DB, projects *ProjectService, scorer *ScoringService, leaderboards *LeaderboardService, embeddings *pkg.EmbeddingClient) *PostService {
	return &PostService{
		db:           db,
		repo:         &sqldb.PostRepository{DB: db},
		questions:    &sqldb.QuestionRepository{DB: db},
		projectRepo:  &sqldb.ProjectRepository{DB: db},
		outbox:       &sqldb.OutboxRepository{DB: db},
		projects:     projects,
		scoring:      scorer,
		leaderboards: leaderboards,
		embeddings:   embeddings,
	}
}

// PostPermission resolves what user may do on post. Nil means no access.
func (s *PostService) PostPermission(ctx context.Context, post *model.Post, user *model.User) (*permission.ObjectPermission, error) {
	var perm *permission.ObjectPermission
	switch {
	case user != nil && user.IsSuperuser:
		perm = permission.Ptr(permission.Admin)
	case !user.IsAnonymous() && post.AuthorID == user.ID:
		perm = permission.Ptr(permission.Creator)
	case post.DefaultProject != nil:
		var err error
		if perm, err = s.projects.Permission(ctx, post.DefaultProject, user); err != nil {
			return nil, err
		}
	}
	if post.CurationStatus == model.CurationDeleted && permission.Of(perm) != permission.Admin {
		return nil, nil
	}
	return perm, nil
}

// getPost loads a post the user can view, hiding invisible posts behind ErrNotFound.
func (s *PostService) getPost(ctx context.Context, user *model.User, id uint64) (*model.Post, permission.ObjectPermission, error) {
	post, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", errs.ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	perm, err := s.PostPermission(ctx, post, user)
	if err != nil {
		return nil, "", err
	}
	if perm == nil {
		return nil, "", errs.ErrNotFound
	}
	return post, *perm, nil
}

type QuestionInput struct {
	Type               model.QuestionType `json:"type" binding:"required"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	Options            []string           `json:"options"`
	RangeMin           *float64           `json:"range_min"`
	RangeMax           *float64           `json:"range_max"`
	OpenLowerBound     bool               `json:"open_lower_bound"`
	OpenUpperBound     bool               `json:"open_upper_bound"`
	OpenTime           *time.Time         `json:"open_time"`
	ScheduledCloseTime *time.Time         `json:"scheduled_close_time"`
}

type PostInput struct {
	Title            string        `json:"title" binding:"required,max=200"`
	DefaultProjectID *uint64       `json:"default_project"`
	Categories       []uint64      `json:"categories"`
	Tournaments      []string      `json:"tournaments"`
	Question         QuestionInput `json:"question" binding:"required"`
}

func (in *QuestionInput) build(title string) (*model.Question, error) {
	fields := map[string]string{}
	switch in.Type {
	case model.QuestionBinary:
	case model.QuestionMultipleChoice:
		if len(in.Options) < 2 {
			fields["options"] = "multiple choice questions need at least two options"
		}
	case model.QuestionNumeric:
		if in.RangeMin == nil || in.RangeMax == nil || *in.RangeMax <= *in.RangeMin {
			fields["range_max"] = "numeric questions need range_min < range_max"
		}
	default:
		fields["type"] = "unknown question type"
	}
	if in.OpenTime != nil && in.ScheduledCloseTime != nil && !in.ScheduledCloseTime.After(*in.OpenTime) {
		fields["scheduled_close_time"] = "must be after open_time"
	}
	if len(fields) > 0 {
		return nil, errs.FieldErrors(fields)
	}
	if strings.TrimSpace(in.Title) != "" {
		title = in.Title
	}
	q := &model.Question{
		Type:               in.Type,
		Title:              title,
		Description:        in.Description,
		RangeMin:           in.RangeMin,
		RangeMax:           in.RangeMax,
		OpenLowerBound:     in.OpenLowerBound,
		OpenUpperBound:     in.OpenUpperBound,
		OpenTime:           in.OpenTime,
		ScheduledCloseTime: in.ScheduledCloseTime,
	}
	if in.Type == model.QuestionMultipleChoice {
		q.Options = in.Options
	}
	return q, nil
}

// Create stores a post and its question. Staff posts are approved and announced right away, others wait for curation.
func (s *PostService) Create(ctx context.Context, user *model.User, in PostInput) (*model.Post, error) {
	question, err := in.Question.build(in.Title)
	if err != nil {
		return nil, err
	}
	categories, err := s.projects.ValidateCategories(ctx, in.Categories)
	if err != nil {
		return nil, err
	}
	tournaments, err := s.projects.ValidateTournaments(ctx, in.Tournaments)
	if err != nil {
		return nil, err
	}

	defaultID := s.projects.SiteMainID()
	if in.DefaultProjectID != nil {
		defaultID = *in.DefaultProjectID
	}
	defaultProject, err := s.projects.GetVisibleProject(ctx, user, defaultID)
	if err != nil {
		return nil, err
	}
	isStaff := user.IsStaff || user.IsSuperuser
	if !isStaff {
		if err := s.projects.ensure(ctx, defaultProject, user, permission.EnsureForecast); err != nil {
			return nil, err
		}
	}

	post := &model.Post{
		Title:            strings.TrimSpace(in.Title),
		AuthorID:         user.ID,
		CurationStatus:   model.CurationPending,
		DefaultProjectID: &defaultProject.ID,
		Question:         question,
	}
	if isStaff {
		now := time.Now()
		post.CurationStatus = model.CurationApproved
		post.PublishedAt = &now
		if question.OpenTime == nil {
			question.OpenTime = &now
		}
	}
	var projectIDs []uint64
	for _, p := range append(categories, tournaments...) {
		if p.ID != defaultProject.ID {
			projectIDs = append(projectIDs, p.ID)
		}
	}
	if err := s.repo.Create(ctx, post, projectIDs); err != nil {
		return nil, err
	}
	if post.CurationStatus == model.CurationApproved {
		if err := s.outbox.Add(ctx, model.EventPostOpen, post.ID, map[string]any{"post_id": post.ID}); err != nil {
			return nil, err
		}
	}
	s.embed(ctx, post)
	logrus.WithFields(logrus.Fields{"post_id": post.ID, "author_id": user.ID, "status": post.CurationStatus}).Info("post created")
	return s.repo.FindByID(ctx, post.ID)
}

// embed stores the post's text embedding when an embedding API is configured.
func (s *PostService) embed(ctx context.Context, post *model.Post) {
	if !s.embeddings.Enabled() {
		return
	}
	text := post.Title
	if post.Question != nil && post.Question.Description != "" {
		text += "\n" + post.Question.Description
	}
	vec, err := s.embeddings.Embed(ctx, text)
	if err != nil {
		logrus.WithError(err).WithField("post_id", post.ID).Warn("embed post failed")
		return
	}
	if err := s.repo.SetEmbedding(ctx, post.ID, pgvector.NewVector(vec)); err != nil {
		logrus.WithError(err).WithField("post_id", post.ID).Warn("store post embedding failed")
	}
}

func (s *PostService) Get(ctx context.Context, user *model.User, id uint64) (*PostData, error) {
	post, perm, err := s.getPost(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return s.serialize(ctx, post, user, &perm)
}

func (s *PostService) serialize(ctx context.Context, post *model.Post, user *model.User, perm *permission.ObjectPermission) (*PostData, error) {
	projects, err := s.projects.SerializeProjects(ctx, post.AllProjects(), user)
	if err != nil {
		return nil, err
	}
	return &PostData{
		ID:             post.ID,
		Title:          post.Title,
		AuthorID:       post.AuthorID,
		CurationStatus: post.CurationStatus,
		PublishedAt:    post.PublishedAt,
		CreatedAt:      post.CreatedAt,
		EditedAt:       post.UpdatedAt,
		Question:       SerializeQuestion(post.Question),
		Projects:       projects,
		UserPermission: perm,
	}, nil
}

func (s *PostService) List(ctx context.Context, user *model.User, f sqldb.PostFilter) ([]PostData, error) {
	posts, err := s.repo.ListVisible(ctx, s.projectRepo, user, f)
	if err != nil {
		return nil, err
	}
	out := make([]PostData, 0, len(posts))
	for i := range posts {
		perm, err := s.PostPermission(ctx, &posts[i], user)
		if err != nil {
			return nil, err
		}
		if perm == nil {
			continue
		}
		data, err := s.serialize(ctx, &posts[i], user, perm)
		if err != nil {
			return nil, err
		}
		out = append(out, *data)
	}
	return out, nil
}

// Approve publishes a pending post and queues the post_open event for project subscribers.
func (s *PostService) Approve(ctx context.Context, user *model.User, id uint64) error {
	post, perm, err := s.getPost(ctx, user, id)
	if err != nil {
		return err
	}
	if err := permission.EnsureApprovePost(perm); err != nil {
		return err
	}
	if post.CurationStatus == model.CurationApproved {
		return nil
	}
	if post.CurationStatus == model.CurationDeleted {
		return errs.Validation("deleted posts cannot be approved")
	}
	now := time.Now()
	if err := s.repo.UpdateStatus(ctx, post, model.CurationApproved, &now); err != nil {
		return err
	}
	if q := post.Question; q != nil && q.OpenTime == nil {
		q.OpenTime = &now
		if err := s.questions.Save(ctx, q); err != nil {
			return err
		}
	}
	return s.outbox.Add(ctx, model.EventPostOpen, post.ID, map[string]any{"post_id": post.ID})
}

// Delete soft deletes the post by moving it to the deleted curation status.
func (s *PostService) Delete(ctx context.Context, user *model.User, id uint64) error {
	post, perm, err := s.getPost(ctx, user, id)
	if err != nil {
		return err
	}
	if err := permission.EnsureDeletePost(perm); err != nil {
		return err
	}
	return s.repo.UpdateStatus(ctx, post, model.CurationDeleted, nil)
}

// ResolveQuestion sets the resolution, scores the question and refreshes the leaderboards it counts towards.
func (s *PostService) ResolveQuestion(ctx context.Context, user *model.User, questionID uint64, resolution string) error {
	q, err := s.questions.FindByID(ctx, questionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.ErrNotFound
	}
	if err != nil {
		return err
	}
	post, perm, err := s.getPost(ctx, user, q.PostID)
	if err != nil {
		return err
	}
	if err := permission.EnsureResolve(perm); err != nil {
		return err
	}
	if q.Resolution != nil {
		return errs.Validation("question is already resolved")
	}
	if !scoring.ValidResolution(q, resolution) {
		return errs.FieldErrors(map[string]string{"resolution": "not a valid resolution for this question"})
	}
	now := time.Now()
	if !model.IsAmbiguousOrAnnulled(resolution) && (q.OpenTime == nil || now.Before(*q.OpenTime)) {
		return errs.Validation("question has not opened yet")
	}

	q.Resolution = &resolution
	q.ActualResolveTime = &now
	if q.ActualCloseTime == nil {
		closeTime := now
		if q.ScheduledCloseTime != nil && q.ScheduledCloseTime.Before(now) {
			closeTime = *q.ScheduledCloseTime
		}
		q.ActualCloseTime = &closeTime
	}
	if q.ForecastScoringEnds == nil {
		q.ForecastScoringEnds = q.ActualCloseTime
	}
	if err := s.questions.Save(ctx, q); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"question_id": q.ID, "resolution": resolution}).Info("question resolved")

	if model.IsAmbiguousOrAnnulled(resolution) {
		return nil
	}
	if err := s.scoring.ScoreQuestion(ctx, q, resolution, DefaultScoreTypes); err != nil {
		if !errors.Is(err, scoring.ErrEmptyHorizon) {
			return err
		}
		logrus.WithError(err).WithField("question_id", q.ID).Warn("resolved question not scored")
		return nil
	}
	projectIDs := []uint64{s.projects.SiteMainID()}
	for _, p := range post.AllProjects() {
		if p.ID != s.projects.SiteMainID() {
			projectIDs = append(projectIDs, p.ID)
		}
	}
	return s.leaderboards.UpdateForProjects(ctx, projectIDs)
}

// Similar lists visible posts closest to the post's embedding.
func (s *PostService) Similar(ctx context.Context, user *model.User, id uint64, limit int) ([]PostData, error) {
	if !sqldb.IsPostgres(s.db) {
		return nil, errs.Validation("similar posts are only available on postgres")
	}
	post, _, err := s.getPost(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	posts, err := s.repo.Similar(ctx, s.projectRepo, user, post, limit)
	if err != nil {
		return nil, err
	}
	out := make([]PostData, 0, len(posts))
	for i := range posts {
		out = append(out, PostData{
			ID:             posts[i].ID,
			Title:          posts[i].Title,
			AuthorID:       posts[i].AuthorID,
			CurationStatus: posts[i].CurationStatus,
			PublishedAt:    posts[i].PublishedAt,
			CreatedAt:      posts[i].CreatedAt,
			EditedAt:       posts[i].UpdatedAt,
		})
	}
	return out, nil
}
