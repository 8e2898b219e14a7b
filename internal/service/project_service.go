package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/permission"
	"Forecast_Hub/internal/pkg"
	"Forecast_Hub/internal/pkg/errs"
	"Forecast_Hub/internal/repository/sqldb"
)

type ProjectService struct {
	repo          *sqldb.ProjectRepository
	users         *sqldb.UserRepository
	notifications *sqldb.NotificationRepository
	mailer        *pkg.Mailer
	siteMainID    uint64
}

func NewProjectService(db *gorm.DB, mailer *pkg.Mailer, siteMainID uint64) *ProjectService {
	return &ProjectService{
		repo:          &sqldb.ProjectRepository{DB: db},
		users:         &sqldb.UserRepository{DB: db},
		notifications: &sqldb.NotificationRepository{DB: db},
		mailer:        mailer,
		siteMainID:    siteMainID,
	}
}

func (s *ProjectService) SiteMainID() uint64 { return s.siteMainID }

// Permission resolves what user may do on project. Nil means no access.
func (s *ProjectService) Permission(ctx context.Context, project *model.Project, user *model.User) (*permission.ObjectPermission, error) {
	if user != nil && user.IsSuperuser {
		return permission.Ptr(permission.Admin), nil
	}
	if !user.IsAnonymous() {
		perm, err := s.repo.UserPermission(ctx, project.ID, user.ID)
		if err != nil {
			return nil, err
		}
		if perm != nil {
			return perm, nil
		}
	}
	return project.DefaultPermission, nil
}

func (s *ProjectService) VisibleProjects(ctx context.Context, user *model.User, f sqldb.ProjectFilter) ([]model.Project, error) {
	return s.repo.ListVisible(ctx, user, f)
}

// GetVisibleProject hides projects the user cannot see behind ErrNotFound.
func (s *ProjectService) GetVisibleProject(ctx context.Context, user *model.User, id uint64) (*model.Project, error) {
	p, err := s.repo.FindVisible(ctx, user, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrNotFound
	}
	return p, err
}

// Serialize renders one project for user; tournaments get the full form.
func (s *ProjectService) Serialize(ctx context.Context, p *model.Project, user *model.User) (map[string]any, error) {
	perm, err := s.Permission(ctx, p, user)
	if err != nil {
		return nil, err
	}
	if p.Type == model.ProjectTournament || p.Type == model.ProjectQuestionSeries {
		return SerializeTournament(p, perm, time.Now()), nil
	}
	return SerializeProject(p, perm, time.Now()), nil
}

// SerializeProjects groups the projects by type.
func (s *ProjectService) SerializeProjects(ctx context.Context, projects []model.Project, user *model.User) (map[string][]map[string]any, error) {
	out := make(map[string][]map[string]any)
	now := time.Now()
	for i := range projects {
		p := &projects[i]
		var perm *permission.ObjectPermission
		if p.Type == model.ProjectTournament || p.Type == model.ProjectQuestionSeries {
			var err error
			if perm, err = s.Permission(ctx, p, user); err != nil {
				return nil, err
			}
		}
		out[string(p.Type)] = append(out[string(p.Type)], SerializeProject(p, perm, now))
	}
	return out, nil
}

// ValidateCategories requires every id to be an active category.
func (s *ProjectService) ValidateCategories(ctx context.Context, ids []uint64) ([]model.Project, error) {
	list, err := s.repo.FindActiveByType(ctx, model.ProjectCategory, ids, nil)
	if err != nil {
		return nil, err
	}
	found := make(map[uint64]bool, len(list))
	for _, p := range list {
		found[p.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, errs.Validation(fmt.Sprintf("Category %d does not exist", id))
		}
	}
	return list, nil
}

// ValidateTournaments accepts tournament ids (digit strings) and slugs.
func (s *ProjectService) ValidateTournaments(ctx context.Context, values []string) ([]model.Project, error) {
	var ids []uint64
	var slugs []string
	for _, v := range values {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			ids = append(ids, id)
		} else {
			slugs = append(slugs, v)
		}
	}
	list, err := s.repo.FindActiveByType(ctx, model.ProjectTournament, ids, slugs)
	if err != nil {
		return nil, err
	}
	foundIDs := make(map[uint64]bool, len(list))
	foundSlugs := make(map[string]bool, len(list))
	for _, p := range list {
		foundIDs[p.ID] = true
		foundSlugs[p.Slug] = true
	}
	for _, slug := range slugs {
		if !foundSlugs[slug] {
			return nil, errs.Validation(fmt.Sprintf("Tournament with slug `%s` does not exist", slug))
		}
	}
	for _, id := range ids {
		if !foundIDs[id] {
			return nil, errs.Validation(fmt.Sprintf("Tournament with id `%d` does not exist", id))
		}
	}
	return list, nil
}

type ProjectInput struct {
	Type              model.ProjectType `json:"type" binding:"required"`
	Name              string            `json:"name" binding:"required,max=200"`
	Slug              string            `json:"slug" binding:"max=200"`
	Subtitle          string            `json:"subtitle"`
	Description       string            `json:"description"`
	HeaderImage       string            `json:"header_image"`
	HeaderLogo        string            `json:"header_logo"`
	Emoji             string            `json:"emoji"`
	Section           string            `json:"section"`
	MetaDescription   string            `json:"meta_description"`
	PrizePool         *float64          `json:"prize_pool" binding:"omitempty,gte=0"`
	StartDate         *time.Time        `json:"start_date"`
	CloseDate         *time.Time        `json:"close_date"`
	DefaultPermission *string           `json:"default_permission"`
}

func (in *ProjectInput) apply(p *model.Project) error {
	if !in.Type.Valid() {
		return errs.FieldErrors(map[string]string{"type": "unknown project type"})
	}
	p.Type = in.Type
	p.Name = strings.TrimSpace(in.Name)
	p.Slug = in.Slug
	p.Subtitle = in.Subtitle
	p.Description = in.Description
	p.HeaderImage = in.HeaderImage
	p.HeaderLogo = in.HeaderLogo
	p.Emoji = in.Emoji
	p.Section = in.Section
	p.MetaDescription = in.MetaDescription
	p.PrizePool = in.PrizePool
	p.StartDate = in.StartDate
	p.CloseDate = in.CloseDate
	switch {
	case p.Type == model.ProjectPersonalProject:
		p.DefaultPermission = nil
	case in.DefaultPermission != nil && *in.DefaultPermission == "":
		p.DefaultPermission = nil
	case in.DefaultPermission != nil:
		perm, err := permission.Parse(*in.DefaultPermission)
		if err != nil {
			return errs.FieldErrors(map[string]string{"default_permission": err.Error()})
		}
		p.DefaultPermission = &perm
	case p.ID == 0:
		// new projects are open to forecasters unless told otherwise; updates keep the stored value
		p.DefaultPermission = permission.Ptr(permission.Forecaster)
	}
	return nil
}

// Create is open to staff only, except for personal projects which anyone may own.
func (s *ProjectService) Create(ctx context.Context, user *model.User, in ProjectInput) (*model.Project, error) {
	if in.Type != model.ProjectPersonalProject && !user.IsStaff && !user.IsSuperuser {
		return nil, permission.ErrPermissionDenied
	}
	p := &model.Project{IsActive: true, CreatedByID: &user.ID}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"project_id": p.ID, "type": p.Type}).Info("project created")
	return p, nil
}

func (s *ProjectService) Update(ctx context.Context, user *model.User, id uint64, in ProjectInput) (*model.Project, error) {
	p, err := s.GetVisibleProject(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensure(ctx, p, user, permission.EnsureEditProject); err != nil {
		return nil, err
	}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	return p, s.repo.Update(ctx, p)
}

func (s *ProjectService) ensure(ctx context.Context, p *model.Project, user *model.User, check func(permission.ObjectPermission) error) error {
	perm, err := s.Permission(ctx, p, user)
	if err != nil {
		return err
	}
	return check(permission.Of(perm))
}

func (s *ProjectService) Members(ctx context.Context, user *model.User, projectID uint64) ([]MemberData, error) {
	p, err := s.GetVisibleProject(ctx, user, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.ensure(ctx, p, user, permission.EnsureManageMembers); err != nil {
		return nil, err
	}
	rows, err := s.repo.Members(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	out := make([]MemberData, 0, len(rows))
	for _, row := range rows {
		out = append(out, MemberData{User: SerializeUser(row.User), Permission: row.Permission})
	}
	return out, nil
}

// SetMember invites a user or changes an existing member's permission.
func (s *ProjectService) SetMember(ctx context.Context, user *model.User, projectID, memberID uint64, perm string) error {
	p, err := s.GetVisibleProject(ctx, user, projectID)
	if err != nil {
		return err
	}
	if err := s.ensure(ctx, p, user, permission.EnsureManageMembers); err != nil {
		return err
	}
	parsed, err := permission.Parse(perm)
	if err != nil {
		return errs.FieldErrors(map[string]string{"permission": err.Error()})
	}
	if _, err := s.users.FindByID(ctx, memberID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.FieldErrors(map[string]string{"user_id": "user does not exist"})
		}
		return err
	}
	return s.repo.SetMember(ctx, memberID, p.ID, parsed)
}

func (s *ProjectService) RemoveMember(ctx context.Context, user *model.User, projectID, memberID uint64) error {
	p, err := s.GetVisibleProject(ctx, user, projectID)
	if err != nil {
		return err
	}
	if err := s.ensure(ctx, p, user, permission.EnsureManageMembers); err != nil {
		return err
	}
	return s.repo.RemoveMember(ctx, memberID, p.ID)
}

func (s *ProjectService) Subscribe(ctx context.Context, user *model.User, projectID uint64) error {
	p, err := s.GetVisibleProject(ctx, user, projectID)
	if err != nil {
		return err
	}
	return s.repo.Subscribe(ctx, user.ID, p.ID)
}

func (s *ProjectService) Unsubscribe(ctx context.Context, user *model.User, projectID uint64) error {
	p, err := s.GetVisibleProject(ctx, user, projectID)
	if err != nil {
		return err
	}
	return s.repo.Unsubscribe(ctx, user.ID, p.ID)
}

// NotifyProjectSubscriptionsPostOpen tells the subscribers of every project of post that it opened.
// A user subscribed to several of those projects gets one notification, naming the first of them.
func (s *ProjectService) NotifyProjectSubscriptionsPostOpen(ctx context.Context, post *model.Post) error {
	projects := post.AllProjects()
	ids := make([]uint64, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	subscribers, err := s.repo.Subscribers(ctx, ids)
	if err != nil {
		return err
	}

	projectOf := make(map[uint64]*model.Project)
	var recipients []uint64
	for i := range projects {
		for _, userID := range subscribers[projects[i].ID] {
			if _, ok := projectOf[userID]; ok {
				continue
			}
			projectOf[userID] = &projects[i]
			recipients = append(recipients, userID)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	list := make([]model.Notification, 0, len(recipients))
	for _, userID := range recipients {
		p := projectOf[userID]
		list = append(list, model.Notification{
			RecipientID: userID,
			Type:        model.NotificationPostStatusChange,
			Params: map[string]any{
				"event":   "open",
				"project": map[string]any{"id": p.ID, "type": p.Type, "name": p.Name, "slug": p.Slug},
				"post":    map[string]any{"post_id": post.ID, "post_title": post.Title},
			},
		})
	}
	if err := s.notifications.CreateBatch(ctx, list); err != nil {
		return err
	}

	if s.mailer.Enabled() {
		s.mailRecipients(ctx, recipients, func(userID uint64) (string, string) {
			return "Question opened: " + post.Title, pkg.PostOpenHTML(projectOf[userID].Name, post.Title, post.ID)
		})
	}
	return nil
}

// mailRecipients sends best effort e-mails; failures are logged.
func (s *ProjectService) mailRecipients(ctx context.Context, userIDs []uint64, render func(userID uint64) (string, string)) {
	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		logrus.WithError(err).Warn("load mail recipients failed")
		return
	}
	for _, u := range users {
		subject, body := render(u.ID)
		if err := s.mailer.Send(u.Email, subject, body); err != nil {
			logrus.WithError(err).WithField("user_id", u.ID).Warn("send notification mail failed")
		}
	}
}
