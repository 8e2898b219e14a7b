package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/permission"
	"Forecast_Hub/internal/pkg"
	"Forecast_Hub/internal/testutil"
)

type fixture struct {
	ctx  context.Context
	db   *gorm.DB
	svc  *Services
	site *model.Project
}

func newFixture(t *testing.T, configure ...func(*Options)) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	site := testutil.CreateProject(t, db, &model.Project{
		Type:              model.ProjectSiteMain,
		Name:              "Forecast Hub",
		DefaultPermission: permission.Ptr(permission.Forecaster),
	})
	opts := Options{
		JWT:        pkg.NewJWTManager("access-secret", "refresh-secret"),
		SiteMainID: site.ID,
	}
	for _, fn := range configure {
		fn(&opts)
	}
	svc := NewServices(db, opts)
	return &fixture{ctx: context.Background(), db: db, svc: svc, site: site}
}

func (f *fixture) user(t *testing.T, name string, mutate ...func(*model.User)) *model.User {
	return testutil.CreateUser(t, f.db, name, mutate...)
}

func (f *fixture) project(t *testing.T, typ model.ProjectType, perm *permission.ObjectPermission) *model.Project {
	return testutil.CreateProject(t, f.db, &model.Project{Type: typ, DefaultPermission: perm})
}

// binaryPost creates an approved binary question post opened an hour ago.
func (f *fixture) binaryPost(t *testing.T, author *model.User, projectID uint64) *model.Post {
	t.Helper()
	open := time.Now().Add(-time.Hour)
	post := &model.Post{
		Title:            "Will it rain?",
		AuthorID:         author.ID,
		CurationStatus:   model.CurationApproved,
		DefaultProjectID: &projectID,
		PublishedAt:      &open,
		Question: &model.Question{
			Type:     model.QuestionBinary,
			Title:    "Will it rain?",
			OpenTime: &open,
		},
	}
	require.NoError(t, f.svc.Posts.repo.Create(f.ctx, post, nil))
	return post
}

func (f *fixture) forecast(t *testing.T, q *model.Question, author *model.User, start time.Time, p float64) {
	t.Helper()
	require.NoError(t, f.db.Create(&model.Forecast{
		QuestionID:     q.ID,
		AuthorID:       author.ID,
		StartTime:      start,
		ProbabilityYes: &p,
	}).Error)
}

func (f *fixture) notificationCount(t *testing.T, user *model.User, typ string) int64 {
	t.Helper()
	n, err := f.svc.Notifications.repo.CountOfType(f.ctx, user.ID, typ)
	require.NoError(t, err)
	return n
}
