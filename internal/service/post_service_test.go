package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/permission"
	"Forecast_Hub/internal/pkg/errs"
	"Forecast_Hub/internal/repository/sqldb"
	"Forecast_Hub/internal/testutil"
)

func binaryInput(title string) PostInput {
	return PostInput{Title: title, Question: QuestionInput{Type: model.QuestionBinary}}
}

func TestCreatePost(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	staff := f.user(t, "staff", testutil.Staff)
	category := testutil.CreateProject(t, f.db, &model.Project{Type: model.ProjectCategory, Name: "Science"})

	in := binaryInput("Will it rain?")
	in.Categories = []uint64{category.ID}
	post, err := f.svc.Posts.Create(f.ctx, alice, in)
	require.NoError(t, err)
	assert.Equal(t, model.CurationPending, post.CurationStatus)
	assert.Nil(t, post.PublishedAt)
	require.NotNil(t, post.DefaultProjectID)
	assert.Equal(t, f.site.ID, *post.DefaultProjectID)
	require.Len(t, post.Projects, 1)
	assert.Equal(t, category.ID, post.Projects[0].ID)
	require.NotNil(t, post.Question)
	assert.Equal(t, "Will it rain?", post.Question.Title)

	relayer := NewOutboxRelayer(f.db, DispatchSender(f.svc.Notifications))
	assert.Zero(t, relayer.DrainOnce(f.ctx))

	require.NoError(t, f.svc.Projects.repo.Subscribe(f.ctx, alice.ID, f.site.ID))
	post, err = f.svc.Posts.Create(f.ctx, staff, binaryInput("Will it snow?"))
	require.NoError(t, err)
	assert.Equal(t, model.CurationApproved, post.CurationStatus)
	assert.NotNil(t, post.PublishedAt)
	assert.NotNil(t, post.Question.OpenTime)

	// staff posts open immediately
	assert.Equal(t, 1, relayer.DrainOnce(f.ctx))
	assert.Equal(t, int64(1), f.notificationCount(t, alice, model.NotificationPostStatusChange))
}

func TestCreatePostValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	_, err := f.svc.Posts.Create(f.ctx, alice, PostInput{
		Title:    "Which?",
		Question: QuestionInput{Type: model.QuestionMultipleChoice, Options: []string{"a"}},
	})
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "options")

	lo, hi := 10.0, 1.0
	_, err = f.svc.Posts.Create(f.ctx, alice, PostInput{
		Title:    "How many?",
		Question: QuestionInput{Type: model.QuestionNumeric, RangeMin: &lo, RangeMax: &hi},
	})
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "range_max")

	in := binaryInput("x")
	in.Categories = []uint64{777}
	_, err = f.svc.Posts.Create(f.ctx, alice, in)
	assert.EqualError(t, err, "Category 777 does not exist")

	// viewers of a project cannot post into it
	viewerOnly := f.project(t, model.ProjectTournament, permission.Ptr(permission.Viewer))
	in = binaryInput("x")
	in.DefaultProjectID = &viewerOnly.ID
	_, err = f.svc.Posts.Create(f.ctx, alice, in)
	assert.ErrorIs(t, err, permission.ErrPermissionDenied)
}

func TestPostPermission(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "author")
	alice := f.user(t, "alice")
	root := f.user(t, "root", testutil.Superuser)
	private := f.project(t, model.ProjectTournament, nil)

	post := f.binaryPost(t, author, f.site.ID)
	hidden := f.binaryPost(t, author, private.ID)
	post, _ = f.svc.Posts.repo.FindByID(f.ctx, post.ID)
	hidden, _ = f.svc.Posts.repo.FindByID(f.ctx, hidden.ID)

	tests := []struct {
		name string
		post *model.Post
		user *model.User
		want permission.ObjectPermission
	}{
		{"author", post, author, permission.Creator},
		{"superuser", hidden, root, permission.Admin},
		{"default project", post, alice, permission.Forecaster},
		{"anonymous", post, model.Anonymous(), permission.Forecaster},
		{"private project", hidden, alice, ""},
		{"author of private", hidden, author, permission.Creator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Posts.PostPermission(f.ctx, tt.post, tt.user)
			require.NoError(t, err)
			assert.Equal(t, tt.want, permission.Of(got))
		})
	}

	_, err := f.svc.Posts.Get(f.ctx, alice, hidden.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDeletedPostIsHidden(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "author")
	root := f.user(t, "root", testutil.Superuser)
	post := f.binaryPost(t, author, f.site.ID)

	require.NoError(t, f.svc.Posts.Delete(f.ctx, author, post.ID))

	_, err := f.svc.Posts.Get(f.ctx, author, post.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	data, err := f.svc.Posts.Get(f.ctx, root, post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CurationDeleted, data.CurationStatus)
}

func TestListPosts(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "author")
	alice := f.user(t, "alice")
	private := f.project(t, model.ProjectTournament, nil)

	public := f.binaryPost(t, author, f.site.ID)
	f.binaryPost(t, author, private.ID)
	pending, err := f.svc.Posts.Create(f.ctx, alice, binaryInput("pending"))
	require.NoError(t, err)

	list, err := f.svc.Posts.List(f.ctx, alice, sqldb.PostFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, public.ID, list[0].ID)
	require.NotNil(t, list[0].UserPermission)
	assert.Equal(t, permission.Forecaster, *list[0].UserPermission)

	list, err = f.svc.Posts.List(f.ctx, alice, sqldb.PostFilter{Statuses: []model.CurationStatus{model.CurationPending}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pending.ID, list[0].ID)

	list, err = f.svc.Posts.List(f.ctx, author, sqldb.PostFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestApprovePostQueuesOpenEvent(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	curator := f.user(t, "curator")
	require.NoError(t, f.svc.Projects.repo.SetMember(f.ctx, curator.ID, f.site.ID, permission.Curator))
	require.NoError(t, f.svc.Projects.repo.Subscribe(f.ctx, alice.ID, f.site.ID))

	post, err := f.svc.Posts.Create(f.ctx, alice, binaryInput("pending"))
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Posts.Approve(f.ctx, alice, post.ID), permission.ErrPermissionDenied)
	require.NoError(t, f.svc.Posts.Approve(f.ctx, curator, post.ID))

	data, err := f.svc.Posts.Get(f.ctx, alice, post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CurationApproved, data.CurationStatus)
	assert.NotNil(t, data.PublishedAt)
	assert.NotNil(t, data.Question.OpenTime)

	relayer := NewOutboxRelayer(f.db, DispatchSender(f.svc.Notifications))
	assert.Equal(t, 1, relayer.DrainOnce(f.ctx))
	assert.Equal(t, int64(1), f.notificationCount(t, alice, model.NotificationPostStatusChange))

	// approving twice is a no-op
	require.NoError(t, f.svc.Posts.Approve(f.ctx, curator, post.ID))
	assert.Zero(t, relayer.DrainOnce(f.ctx))
}

func TestResolveQuestionScoresAndRanks(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "author")
	good := f.user(t, "good")
	bad := f.user(t, "bad")
	bot := f.user(t, "bot", testutil.Bot)
	admin := f.user(t, "root", testutil.Superuser)

	lb := &model.Leaderboard{ProjectID: f.site.ID, Name: "all time", ScoreType: model.LeaderboardPeerGlobal}
	require.NoError(t, f.svc.Leaderboards.repo.Create(f.ctx, lb))

	post := f.binaryPost(t, author, f.site.ID)
	q := post.Question
	start := q.OpenTime.Add(10 * time.Minute)
	f.forecast(t, q, good, start, 0.9)
	f.forecast(t, q, bad, start, 0.2)
	f.forecast(t, q, bot, start, 0.5)

	err := f.svc.Posts.ResolveQuestion(f.ctx, author, q.ID, model.ResolutionYes)
	assert.ErrorIs(t, err, permission.ErrPermissionDenied)

	err = f.svc.Posts.ResolveQuestion(f.ctx, admin, q.ID, "maybe")
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)

	require.NoError(t, f.svc.Posts.ResolveQuestion(f.ctx, admin, q.ID, model.ResolutionYes))

	resolved, err := f.svc.Posts.questions.FindByID(f.ctx, q.ID)
	require.NoError(t, err)
	require.NotNil(t, resolved.Resolution)
	assert.Equal(t, model.ResolutionYes, *resolved.Resolution)
	assert.NotNil(t, resolved.ActualCloseTime)
	assert.NotNil(t, resolved.ForecastScoringEnds)

	peer, err := f.svc.Scoring.scores.UserScores(f.ctx, []uint64{q.ID}, model.ScorePeer)
	require.NoError(t, err)
	byUser := map[uint64]float64{}
	for _, s := range peer {
		byUser[*s.UserID] = s.Score
	}
	require.Len(t, byUser, 3)
	assert.Greater(t, byUser[good.ID], 0.0)
	assert.Less(t, byUser[bad.ID], 0.0)

	entries, err := f.svc.Leaderboards.repo.Entries(f.ctx, lb.ID, 0, true)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, good.ID, entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	for _, e := range entries {
		assert.Equal(t, e.UserID == bot.ID, e.Excluded)
	}

	err = f.svc.Posts.ResolveQuestion(f.ctx, admin, q.ID, model.ResolutionNo)
	require.ErrorAs(t, err, &ve)
}

func TestResolveAmbiguousSkipsScoring(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "author")
	alice := f.user(t, "alice")
	admin := f.user(t, "root", testutil.Superuser)

	post := f.binaryPost(t, author, f.site.ID)
	f.forecast(t, post.Question, alice, post.Question.OpenTime.Add(time.Minute), 0.7)

	require.NoError(t, f.svc.Posts.ResolveQuestion(f.ctx, admin, post.Question.ID, model.ResolutionAmbiguous))

	scores, err := f.svc.Scoring.scores.UserScores(f.ctx, []uint64{post.Question.ID}, model.ScorePeer)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestResolveUnopenedQuestion(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	admin := f.user(t, "root", testutil.Superuser)

	pending, err := f.svc.Posts.Create(f.ctx, alice, binaryInput("never opened"))
	require.NoError(t, err)
	qid := pending.Question.ID

	err = f.svc.Posts.ResolveQuestion(f.ctx, admin, qid, model.ResolutionYes)
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	stored, err := f.svc.Posts.questions.FindByID(f.ctx, qid)
	require.NoError(t, err)
	assert.Nil(t, stored.Resolution)
	assert.Nil(t, stored.ActualCloseTime)

	// annulling does not need an open question
	require.NoError(t, f.svc.Posts.ResolveQuestion(f.ctx, admin, qid, model.ResolutionAnnulled))
	stored, err = f.svc.Posts.questions.FindByID(f.ctx, qid)
	require.NoError(t, err)
	require.NotNil(t, stored.Resolution)
	assert.Equal(t, model.ResolutionAnnulled, *stored.Resolution)
}

func TestSimilarRequiresPostgres(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "author")
	post := f.binaryPost(t, author, f.site.ID)

	_, err := f.svc.Posts.Similar(f.ctx, author, post.ID, 5)
	var ve *errs.ValidationError
	assert.ErrorAs(t, err, &ve)
}
