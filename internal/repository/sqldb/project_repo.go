package sqldb

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/permission"
)

type ProjectRepository struct {
	DB *gorm.DB
}

// ProjectFilter narrows project listings; empty fields do not filter.
type ProjectFilter struct {
	IDs        []uint64
	Types      []model.ProjectType
	ActiveOnly bool
}

func (r *ProjectRepository) Create(ctx context.Context, p *model.Project) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		// personal projects are reachable through an explicit admin row for their owner
		if p.Type == model.ProjectPersonalProject && p.CreatedByID != nil {
			return (&ProjectRepository{DB: tx}).SetMember(ctx, *p.CreatedByID, p.ID, permission.Admin)
		}
		return nil
	})
}

func (r *ProjectRepository) Update(ctx context.Context, p *model.Project) error {
	return r.DB.WithContext(ctx).Save(p).Error
}

func (r *ProjectRepository) FindByID(ctx context.Context, id uint64) (*model.Project, error) {
	var p model.Project
	err := r.DB.WithContext(ctx).First(&p, id).Error
	return &p, err
}

// visibleIDs is the subquery of project ids a user may see.
func (r *ProjectRepository) visibleIDs(tx *gorm.DB, user *model.User) *gorm.DB {
	return tx.Session(&gorm.Session{NewDB: true}).Model(&model.ProjectUserPermission{}).
		Select("project_id").
		Where("user_id = ?", user.ID)
}

// Visible scopes a project query to what user may see.
func (r *ProjectRepository) Visible(tx *gorm.DB, user *model.User) *gorm.DB {
	if user != nil && user.IsSuperuser {
		return tx
	}
	if user.IsAnonymous() {
		return tx.Where("projects.default_permission IS NOT NULL")
	}
	return tx.Where("projects.default_permission IS NOT NULL OR projects.id IN (?)", r.visibleIDs(tx, user))
}

func (r *ProjectRepository) FindVisible(ctx context.Context, user *model.User, id uint64) (*model.Project, error) {
	var p model.Project
	err := r.Visible(r.DB.WithContext(ctx).Model(&model.Project{}), user).
		Where("projects.id = ?", id).
		First(&p).Error
	return &p, err
}

func (r *ProjectRepository) ListVisible(ctx context.Context, user *model.User, f ProjectFilter) ([]model.Project, error) {
	q := r.Visible(r.DB.WithContext(ctx).Model(&model.Project{}), user)
	if len(f.IDs) > 0 {
		q = q.Where("projects.id IN ?", f.IDs)
	}
	if len(f.Types) > 0 {
		q = q.Where("projects.type IN ?", f.Types)
	}
	if f.ActiveOnly {
		q = q.Where("projects.is_active = ?", true)
	}
	var list []model.Project
	err := q.Order("projects.id ASC").Find(&list).Error
	return list, err
}

// FindActiveByType looks projects of one type up by ids and/or slugs.
func (r *ProjectRepository) FindActiveByType(ctx context.Context, typ model.ProjectType, ids []uint64, slugs []string) ([]model.Project, error) {
	var list []model.Project
	if len(ids) == 0 && len(slugs) == 0 {
		return list, nil
	}
	q := r.DB.WithContext(ctx).Where("type = ? AND is_active = ?", typ, true)
	switch {
	case len(ids) > 0 && len(slugs) > 0:
		q = q.Where("id IN ? OR slug IN ?", ids, slugs)
	case len(ids) > 0:
		q = q.Where("id IN ?", ids)
	default:
		q = q.Where("slug IN ?", slugs)
	}
	err := q.Find(&list).Error
	return list, err
}

// UserPermission returns the explicit permission of user on project, nil when none.
func (r *ProjectRepository) UserPermission(ctx context.Context, projectID, userID uint64) (*permission.ObjectPermission, error) {
	var row model.ProjectUserPermission
	err := r.DB.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row.Permission, nil
}

// SetMember inserts or overwrites the (user, project) permission row.
func (r *ProjectRepository) SetMember(ctx context.Context, userID, projectID uint64, perm permission.ObjectPermission) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "project_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"permission", "updated_at"}),
	}).Create(&model.ProjectUserPermission{
		UserID:     userID,
		ProjectID:  projectID,
		Permission: perm,
	}).Error
}

func (r *ProjectRepository) RemoveMember(ctx context.Context, userID, projectID uint64) error {
	return r.DB.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&model.ProjectUserPermission{}).Error
}

func (r *ProjectRepository) Members(ctx context.Context, projectID uint64) ([]model.ProjectUserPermission, error) {
	var list []model.ProjectUserPermission
	err := r.DB.WithContext(ctx).
		Preload("User").
		Where("project_id = ?", projectID).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

// Subscribe is idempotent.
func (r *ProjectRepository) Subscribe(ctx context.Context, userID, projectID uint64) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "project_id"}},
		DoNothing: true,
	}).Create(&model.ProjectSubscription{UserID: userID, ProjectID: projectID}).Error
}

func (r *ProjectRepository) Unsubscribe(ctx context.Context, userID, projectID uint64) error {
	return r.DB.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&model.ProjectSubscription{}).Error
}

// Subscribers returns project id -> subscribed user ids.
func (r *ProjectRepository) Subscribers(ctx context.Context, projectIDs []uint64) (map[uint64][]uint64, error) {
	out := make(map[uint64][]uint64)
	if len(projectIDs) == 0 {
		return out, nil
	}
	var rows []model.ProjectSubscription
	if err := r.DB.WithContext(ctx).
		Where("project_id IN ?", projectIDs).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProjectID] = append(out[row.ProjectID], row.UserID)
	}
	return out, nil
}
