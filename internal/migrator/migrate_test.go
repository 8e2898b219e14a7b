package migrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/permission"
	"Forecast_Hub/internal/testutil"
)

func legacyDB(t *testing.T) *gorm.DB {
	db := testutil.NewDB(t)
	for _, stmt := range []string{
		`CREATE TABLE metac_project_project (
			id INTEGER PRIMARY KEY, type TEXT NOT NULL,
			default_question_permissions INTEGER NOT NULL DEFAULT 0,
			default_project_permissions INTEGER NOT NULL DEFAULT 0)`,
		`CREATE TABLE metac_project_userprojectpermissions (
			id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL, project_id INTEGER NOT NULL,
			question_permissions INTEGER NOT NULL DEFAULT 0,
			project_permissions INTEGER NOT NULL DEFAULT 0)`,
		`CREATE TABLE metac_project_questionprojectpermissions (
			id INTEGER PRIMARY KEY, project_id INTEGER NOT NULL, question_id INTEGER NOT NULL,
			permissions INTEGER NOT NULL DEFAULT 0)`,
		`CREATE TABLE metac_question_question (id INTEGER PRIMARY KEY, author_id INTEGER NOT NULL)`,
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	for _, name := range []string{"alice", "bob", "carol"} {
		testutil.CreateUser(t, db, name)
	}
	return db
}

func exec(t *testing.T, db *gorm.DB, sql string, args ...any) {
	t.Helper()
	require.NoError(t, db.Exec(sql, args...).Error)
}

func userPermissions(t *testing.T, db *gorm.DB, projectID uint64) map[uint64]permission.ObjectPermission {
	var rows []model.ProjectUserPermission
	require.NoError(t, db.Where("project_id = ?", projectID).Find(&rows).Error)
	out := make(map[uint64]permission.ObjectPermission, len(rows))
	for _, r := range rows {
		out[r.UserID] = r.Permission
	}
	return out
}

func TestConvertPermissions(t *testing.T) {
	p, ok := ConvertQuestionPermissions(294941)
	assert.True(t, ok)
	assert.Equal(t, permission.Forecaster, p)

	p, ok = ConvertQuestionPermissions(297180)
	assert.True(t, ok)
	assert.Equal(t, permission.Creator, p)

	_, ok = ConvertQuestionPermissions(1)
	assert.False(t, ok)

	p, ok = ConvertProjectPermissions(0)
	assert.True(t, ok)
	assert.Equal(t, permission.Viewer, p)

	p, ok = ConvertProjectPermissions(31)
	assert.True(t, ok)
	assert.Equal(t, permission.Admin, p)
}

func TestPaginatedQuery(t *testing.T) {
	db := legacyDB(t)
	for i := 1; i <= 7; i++ {
		exec(t, db, "INSERT INTO metac_question_question (id, author_id) VALUES (?, 1)", i)
	}

	var ids []uint64
	err := PaginatedQuery(context.Background(), db, "SELECT id FROM metac_question_question ORDER BY id", 3, func(r Row) error {
		ids = append(ids, asUint64(r["id"]))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7}, ids)
}

func TestMigrateCommonPermissions(t *testing.T) {
	db := legacyDB(t)
	ctx := context.Background()

	testutil.CreateProject(t, db, &model.Project{ID: 10, Type: model.ProjectTournament})
	testutil.CreateProject(t, db, &model.Project{ID: 11, Type: model.ProjectCategory})
	require.NoError(t, db.Create(&model.ProjectUserPermission{UserID: 2, ProjectID: 10, Permission: permission.Admin}).Error)

	exec(t, db, "INSERT INTO metac_project_project (id, type, default_question_permissions) VALUES (10, 'TO', 294940), (11, 'TO', 0), (12, 'PP', 0)")
	exec(t, db, `INSERT INTO metac_project_userprojectpermissions (user_id, project_id, question_permissions) VALUES
		(1, 10, 294941), (2, 10, 297180), (3, 10, 12345), (1, 11, 524287), (3, 12, 65535)`)
	exec(t, db, "INSERT INTO metac_project_questionprojectpermissions (project_id, question_id, permissions) VALUES (10, 1, 294941)")

	m := New(db)
	m.PageSize = 2
	require.NoError(t, m.MigrateCommonPermissions(ctx))

	assert.Equal(t, map[uint64]permission.ObjectPermission{
		1: permission.Forecaster,
		2: permission.Admin,
	}, userPermissions(t, db, 10))
	assert.Empty(t, userPermissions(t, db, 11))
}

func TestMigratePersonalProjects(t *testing.T) {
	db := legacyDB(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.Post{ID: 100, Title: "private", AuthorID: 1}).Error)

	exec(t, db, "INSERT INTO metac_project_project (id, type) VALUES (20, 'PP'), (21, 'PP'), (22, 'PP')")
	exec(t, db, "INSERT INTO metac_question_question (id, author_id) VALUES (100, 1), (101, 2)")
	exec(t, db, `INSERT INTO metac_project_questionprojectpermissions (project_id, question_id, permissions) VALUES
		(20, 100, 65535), (21, 100, 65535), (22, 101, 65535)`)
	exec(t, db, `INSERT INTO metac_project_userprojectpermissions (user_id, project_id, question_permissions) VALUES
		(1, 20, 65535), (2, 20, 65535), (3, 21, 65535), (2, 22, 65535)`)

	require.NoError(t, New(db).MigratePersonalProjects(ctx))

	var projects []model.Project
	require.NoError(t, db.Where("type = ?", model.ProjectPersonalProject).Find(&projects).Error)
	require.Len(t, projects, 1)
	p := projects[0]
	assert.Equal(t, "Personal List", p.Name)
	require.NotNil(t, p.CreatedByID)
	assert.Equal(t, uint64(1), *p.CreatedByID)
	assert.Nil(t, p.DefaultPermission)

	var links []model.PostProject
	require.NoError(t, db.Find(&links).Error)
	assert.Equal(t, []model.PostProject{{PostID: 100, ProjectID: p.ID}}, links)

	assert.Equal(t, map[uint64]permission.ObjectPermission{
		2: permission.Creator,
		3: permission.Creator,
	}, userPermissions(t, db, p.ID))
}

func TestMigratePostDefaultProjectAndDeduplicate(t *testing.T) {
	db := legacyDB(t)
	ctx := context.Background()

	viewer, forecaster, admin := permission.Viewer, permission.Forecaster, permission.Admin
	open := testutil.CreateProject(t, db, &model.Project{Type: model.ProjectTournament, DefaultPermission: &viewer})
	wider := testutil.CreateProject(t, db, &model.Project{Type: model.ProjectTournament, DefaultPermission: &forecaster})
	category := testutil.CreateProject(t, db, &model.Project{Type: model.ProjectCategory, DefaultPermission: &admin})
	personal := testutil.CreateProject(t, db, &model.Project{Type: model.ProjectPersonalProject, DefaultPermission: &viewer})
	series := testutil.CreateProject(t, db, &model.Project{Type: model.ProjectQuestionSeries, DefaultPermission: &viewer})

	posts := []*model.Post{
		{Title: "mixed", AuthorID: 1},
		{Title: "category only", AuthorID: 1},
		{Title: "personal tie", AuthorID: 1},
	}
	for _, p := range posts {
		require.NoError(t, db.Create(p).Error)
	}
	links := []model.PostProject{
		{PostID: posts[0].ID, ProjectID: open.ID},
		{PostID: posts[0].ID, ProjectID: wider.ID},
		{PostID: posts[0].ID, ProjectID: category.ID},
		{PostID: posts[1].ID, ProjectID: category.ID},
		{PostID: posts[2].ID, ProjectID: series.ID},
		{PostID: posts[2].ID, ProjectID: personal.ID},
	}
	require.NoError(t, db.Create(&links).Error)

	m := New(db)
	require.NoError(t, m.MigratePostDefaultProject(ctx))

	defaultOf := func(id uint64) *uint64 {
		var p model.Post
		require.NoError(t, db.First(&p, id).Error)
		return p.DefaultProjectID
	}
	require.NotNil(t, defaultOf(posts[0].ID))
	assert.Equal(t, wider.ID, *defaultOf(posts[0].ID))
	assert.Nil(t, defaultOf(posts[1].ID))
	require.NotNil(t, defaultOf(posts[2].ID))
	assert.Equal(t, series.ID, *defaultOf(posts[2].ID))

	require.NoError(t, m.DeduplicateDefaultProjectAndM2M(ctx))

	var left []model.PostProject
	require.NoError(t, db.Where("post_id = ?", posts[0].ID).Order("project_id").Find(&left).Error)
	assert.Equal(t, []model.PostProject{
		{PostID: posts[0].ID, ProjectID: open.ID},
		{PostID: posts[0].ID, ProjectID: category.ID},
	}, left)

	var count int64
	require.NoError(t, db.Model(&model.PostProject{}).Count(&count).Error)
	assert.Equal(t, int64(4), count)
}

func TestPickDefaultProject(t *testing.T) {
	viewer := permission.Viewer
	got := pickDefaultProject([]model.Project{
		{ID: 1, Type: model.ProjectTournament, DefaultPermission: &viewer},
		{ID: 2, Type: model.ProjectTournament, DefaultPermission: &viewer},
	})
	require.NotNil(t, got)
	assert.Equal(t, uint64(2), got.ID)

	assert.Nil(t, pickDefaultProject([]model.Project{{ID: 3, Type: model.ProjectTag}}))
}
