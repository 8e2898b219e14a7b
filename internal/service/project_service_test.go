package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/permission"
	"Forecast_Hub/internal/pkg/errs"
	"Forecast_Hub/internal/testutil"
)

func TestProjectPermission(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	admin := f.user(t, "root", testutil.Superuser)
	public := f.project(t, model.ProjectTournament, permission.Ptr(permission.Viewer))
	private := f.project(t, model.ProjectTournament, nil)
	require.NoError(t, f.svc.Projects.repo.SetMember(f.ctx, alice.ID, public.ID, permission.Curator))

	tests := []struct {
		name    string
		project *model.Project
		user    *model.User
		want    permission.ObjectPermission
	}{
		{"superuser", private, admin, permission.Admin},
		{"explicit row wins", public, alice, permission.Curator},
		{"default permission", f.site, alice, permission.Forecaster},
		{"anonymous default", public, model.Anonymous(), permission.Viewer},
		{"private without row", private, alice, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Projects.Permission(f.ctx, tt.project, tt.user)
			require.NoError(t, err)
			assert.Equal(t, tt.want, permission.Of(got))
		})
	}
}

func TestGetVisibleProjectHidesPrivate(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	private := f.project(t, model.ProjectTournament, nil)
	require.NoError(t, f.svc.Projects.repo.SetMember(f.ctx, alice.ID, private.ID, permission.Viewer))

	_, err := f.svc.Projects.GetVisibleProject(f.ctx, alice, private.ID)
	assert.NoError(t, err)

	_, err = f.svc.Projects.GetVisibleProject(f.ctx, bob, private.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.svc.Projects.GetVisibleProject(f.ctx, model.Anonymous(), private.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCreateProject(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	staff := f.user(t, "staff", testutil.Staff)

	_, err := f.svc.Projects.Create(f.ctx, alice, ProjectInput{Type: model.ProjectTournament, Name: "Cup"})
	assert.ErrorIs(t, err, permission.ErrPermissionDenied)

	viewer := "viewer"
	personal, err := f.svc.Projects.Create(f.ctx, alice, ProjectInput{
		Type:              model.ProjectPersonalProject,
		Name:              "My list",
		DefaultPermission: &viewer,
	})
	require.NoError(t, err)
	assert.Nil(t, personal.DefaultPermission)
	perm, err := f.svc.Projects.Permission(f.ctx, personal, alice)
	require.NoError(t, err)
	assert.Equal(t, permission.Admin, permission.Of(perm))

	cup, err := f.svc.Projects.Create(f.ctx, staff, ProjectInput{
		Type:              model.ProjectTournament,
		Name:              "Cup",
		Slug:              "cup",
		DefaultPermission: &viewer,
	})
	require.NoError(t, err)
	assert.Equal(t, permission.Viewer, permission.Of(cup.DefaultPermission))

	bad := "owner"
	_, err = f.svc.Projects.Create(f.ctx, staff, ProjectInput{Type: model.ProjectTournament, Name: "x", DefaultPermission: &bad})
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "default_permission")
}

func TestProjectDefaultPermission(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	staff := f.user(t, "staff", testutil.Staff)
	root := f.user(t, "root", testutil.Superuser)

	cup, err := f.svc.Projects.Create(f.ctx, staff, ProjectInput{Type: model.ProjectTournament, Name: "Cup"})
	require.NoError(t, err)
	assert.Equal(t, permission.Forecaster, permission.Of(cup.DefaultPermission))
	for _, u := range []*model.User{alice, staff, model.Anonymous()} {
		_, err := f.svc.Projects.GetVisibleProject(f.ctx, u, cup.ID)
		assert.NoError(t, err, u.Username)
	}

	// renaming keeps the stored default
	renamed, err := f.svc.Projects.Update(f.ctx, root, cup.ID, ProjectInput{Type: model.ProjectTournament, Name: "World Cup"})
	require.NoError(t, err)
	assert.Equal(t, "World Cup", renamed.Name)
	assert.Equal(t, permission.Forecaster, permission.Of(renamed.DefaultPermission))
	_, err = f.svc.Projects.GetVisibleProject(f.ctx, alice, cup.ID)
	require.NoError(t, err)

	private := ""
	hidden, err := f.svc.Projects.Update(f.ctx, root, cup.ID, ProjectInput{Type: model.ProjectTournament, Name: "World Cup", DefaultPermission: &private})
	require.NoError(t, err)
	assert.Nil(t, hidden.DefaultPermission)
	_, err = f.svc.Projects.GetVisibleProject(f.ctx, alice, cup.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	personal, err := f.svc.Projects.Create(f.ctx, alice, ProjectInput{Type: model.ProjectPersonalProject, Name: "Mine"})
	require.NoError(t, err)
	assert.Nil(t, personal.DefaultPermission)

	forecaster := "forecaster"
	updated, err := f.svc.Projects.Update(f.ctx, alice, personal.ID, ProjectInput{
		Type:              model.ProjectPersonalProject,
		Name:              "Mine",
		DefaultPermission: &forecaster,
	})
	require.NoError(t, err)
	assert.Nil(t, updated.DefaultPermission)
	stored, err := f.svc.Projects.repo.FindByID(f.ctx, personal.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.DefaultPermission)
}

func TestMembers(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	alice := f.user(t, "alice")
	project := f.project(t, model.ProjectTournament, permission.Ptr(permission.Viewer))
	require.NoError(t, f.svc.Projects.repo.SetMember(f.ctx, owner.ID, project.ID, permission.Admin))

	err := f.svc.Projects.SetMember(f.ctx, alice, project.ID, alice.ID, "admin")
	assert.ErrorIs(t, err, permission.ErrPermissionDenied)

	require.NoError(t, f.svc.Projects.SetMember(f.ctx, owner, project.ID, alice.ID, "forecaster"))
	require.NoError(t, f.svc.Projects.SetMember(f.ctx, owner, project.ID, alice.ID, "curator"))

	members, err := f.svc.Projects.Members(f.ctx, owner, project.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "alice", members[1].User.Username)
	assert.Equal(t, permission.Curator, members[1].Permission)

	err = f.svc.Projects.SetMember(f.ctx, owner, project.ID, 9999, "viewer")
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "user_id")

	require.NoError(t, f.svc.Projects.RemoveMember(f.ctx, owner, project.ID, alice.ID))
	perm, err := f.svc.Projects.Permission(f.ctx, project, alice)
	require.NoError(t, err)
	assert.Equal(t, permission.Viewer, permission.Of(perm))
}

func TestValidateTournaments(t *testing.T) {
	f := newFixture(t)
	cup := testutil.CreateProject(t, f.db, &model.Project{Type: model.ProjectTournament, Name: "Cup", Slug: "cup"})

	list, err := f.svc.Projects.ValidateTournaments(f.ctx, []string{"cup"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cup.ID, list[0].ID)

	_, err = f.svc.Projects.ValidateTournaments(f.ctx, []string{"missing"})
	assert.EqualError(t, err, "Tournament with slug `missing` does not exist")

	_, err = f.svc.Projects.ValidateTournaments(f.ctx, []string{"4242"})
	assert.EqualError(t, err, "Tournament with id `4242` does not exist")

	_, err = f.svc.Projects.ValidateCategories(f.ctx, []uint64{cup.ID})
	assert.Error(t, err)
}

func TestNotifyProjectSubscriptionsPostOpen(t *testing.T) {
	f := newFixture(t)
	user1 := f.user(t, "user1")
	user2 := f.user(t, "user2")
	user3 := f.user(t, "user3")
	author := f.user(t, "author")

	projectDefault := f.project(t, model.ProjectTournament, permission.Ptr(permission.Forecaster))
	project1 := f.project(t, model.ProjectTournament, nil)
	project2 := f.project(t, model.ProjectTournament, nil)
	subscribe := func(p *model.Project, users ...*model.User) {
		for _, u := range users {
			require.NoError(t, f.svc.Projects.repo.Subscribe(f.ctx, u.ID, p.ID))
		}
	}
	subscribe(projectDefault, user1, user2)
	subscribe(project1, user1, user3)
	subscribe(project2, user1)

	post := &model.Post{
		Title:            "Opened",
		AuthorID:         author.ID,
		CurationStatus:   model.CurationApproved,
		DefaultProjectID: &projectDefault.ID,
	}
	require.NoError(t, f.svc.Posts.repo.Create(f.ctx, post, []uint64{project1.ID, project2.ID}))
	loaded, err := f.svc.Posts.repo.FindByID(f.ctx, post.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Projects.NotifyProjectSubscriptionsPostOpen(f.ctx, loaded))

	for _, u := range []*model.User{user1, user2, user3} {
		assert.Equal(t, int64(1), f.notificationCount(t, u, model.NotificationPostStatusChange), u.Username)
	}
	assert.Zero(t, f.notificationCount(t, author, model.NotificationPostStatusChange))

	list, _, err := f.svc.Notifications.List(f.ctx, user1, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	params := list[0].Params
	assert.Equal(t, "open", params["event"])
	require.NotEmpty(t, params["project"])
	require.NotEmpty(t, params["post"])
	assert.EqualValues(t, projectDefault.ID, params["project"].(map[string]any)["id"])
	assert.EqualValues(t, post.ID, params["post"].(map[string]any)["post_id"])
}
