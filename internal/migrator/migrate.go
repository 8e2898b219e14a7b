package migrator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/permission"
)

const (
	legacyPersonalType = "PP"
	personalListName   = "Personal List"
	batchSize          = 1000
)

// Migrator backfills project permissions and default projects from the legacy metac_* tables.
type Migrator struct {
	DB       *gorm.DB
	PageSize int
}

func New(db *gorm.DB) *Migrator {
	return &Migrator{DB: db, PageSize: DefaultPageSize}
}

func (m *Migrator) query(ctx context.Context, sql string, fn func(Row) error) error {
	return PaginatedQuery(ctx, m.DB, sql, m.PageSize, fn)
}

// MigratePermissions runs every step in order.
func (m *Migrator) MigratePermissions(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"personal projects", m.MigratePersonalProjects},
		{"common permissions", m.MigrateCommonPermissions},
		{"post default project", m.MigratePostDefaultProject},
		{"deduplicate default project", m.DeduplicateDefaultProjectAndM2M},
	}
	for _, s := range steps {
		logrus.WithField("step", s.name).Info("migrating")
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// MigrateCommonPermissions copies legacy user-project permissions of regular projects.
// Projects whose id is not a migrated tournament/series project are skipped.
func (m *Migrator) MigrateCommonPermissions(ctx context.Context) error {
	var ids []uint64
	excluded := append([]model.ProjectType{model.ProjectPersonalProject}, model.NonProjectTypes...)
	if err := m.DB.WithContext(ctx).Model(&model.Project{}).
		Where("type NOT IN ?", excluded).Pluck("id", &ids).Error; err != nil {
		return err
	}
	projectIDs := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		projectIDs[id] = true
	}

	questionPerms := make(map[uint64]map[int64]bool)
	err := m.query(ctx, "SELECT * FROM metac_project_questionprojectpermissions ORDER BY project_id, question_id", func(r Row) error {
		pid := asUint64(r["project_id"])
		if questionPerms[pid] == nil {
			questionPerms[pid] = make(map[int64]bool)
		}
		questionPerms[pid][asInt64(r["permissions"])] = true
		return nil
	})
	if err != nil {
		return err
	}

	var perms []model.ProjectUserPermission
	missedIDs := make(map[uint64]bool)
	missedTypes := make(map[string]bool)
	err = m.query(ctx, `
		SELECT upp.user_id, upp.project_id, upp.question_permissions,
		       p.default_question_permissions, p.type
		FROM metac_project_userprojectpermissions upp
		JOIN metac_project_project p ON upp.project_id = p.id
		WHERE p.type != 'PP'
		ORDER BY upp.project_id, upp.user_id`, func(r Row) error {
		pid := asUint64(r["project_id"])
		if !projectIDs[pid] {
			missedIDs[pid] = true
			missedTypes[asString(r["type"])] = true
			return nil
		}

		code := asInt64(r["question_permissions"])
		defaults := asInt64(r["default_question_permissions"])
		for qp := range questionPerms[pid] {
			// a per-question permission must not be overridden by the user grant
			bits := qp & (code | defaults)
			if bits != code && bits != code|defaults {
				logrus.WithField("project_id", pid).Warn("question project permission affected by user override")
			}
		}

		if p, ok := ConvertQuestionPermissions(code); ok {
			perms = append(perms, model.ProjectUserPermission{
				UserID:     asUint64(r["user_id"]),
				ProjectID:  pid,
				Permission: p,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(perms) > 0 {
		if err := m.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
			CreateInBatches(&perms, batchSize).Error; err != nil {
			return err
		}
	}
	types := make([]string, 0, len(missedTypes))
	for t := range missedTypes {
		types = append(types, t)
	}
	logrus.WithFields(logrus.Fields{
		"migrated":        len(perms),
		"missed_projects": len(missedIDs),
		"missed_types":    types,
	}).Info("common permissions migrated")
	return nil
}

type legacyQuestion struct {
	id       uint64
	authorID uint64
	users    []uint64
}

// MigratePersonalProjects gives every legacy private question its own personal project.
// Users the question was shared with become creators of that project.
func (m *Migrator) MigratePersonalProjects(ctx context.Context) error {
	var ids []uint64
	if err := m.DB.WithContext(ctx).Model(&model.Post{}).Pluck("id", &ids).Error; err != nil {
		return err
	}
	postIDs := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		postIDs[id] = true
	}

	projectUsers := make(map[uint64][]uint64)
	err := m.query(ctx, "SELECT project_id, user_id FROM metac_project_userprojectpermissions ORDER BY project_id, user_id", func(r Row) error {
		pid := asUint64(r["project_id"])
		projectUsers[pid] = append(projectUsers[pid], asUint64(r["user_id"]))
		return nil
	})
	if err != nil {
		return err
	}

	var order []uint64
	questions := make(map[uint64]*legacyQuestion)
	err = m.query(ctx, `
		SELECT p.id, qpp.question_id, q.author_id
		FROM metac_project_project p
		JOIN metac_project_questionprojectpermissions qpp ON qpp.project_id = p.id
		JOIN metac_question_question q ON q.id = qpp.question_id
		WHERE p.type = '`+legacyPersonalType+`'
		ORDER BY qpp.question_id, p.id`, func(r Row) error {
		qid := asUint64(r["question_id"])
		q, ok := questions[qid]
		if !ok {
			q = &legacyQuestion{id: qid, authorID: asUint64(r["author_id"])}
			questions[qid] = q
			order = append(order, qid)
		}
		q.users = append(q.users, projectUsers[asUint64(r["id"])]...)
		return nil
	})
	if err != nil {
		return err
	}

	missing := 0
	var projects []model.Project
	var owners []*legacyQuestion
	for _, qid := range order {
		q := questions[qid]
		if !postIDs[qid] {
			missing++
			continue
		}
		author := q.authorID
		projects = append(projects, model.Project{
			Name:        personalListName,
			Type:        model.ProjectPersonalProject,
			CreatedByID: &author,
			IsActive:    true,
		})
		owners = append(owners, q)
	}

	err = m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(projects) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&projects, batchSize).Error; err != nil {
			return err
		}
		var perms []model.ProjectUserPermission
		var links []model.PostProject
		for i, q := range owners {
			// legacy posts kept their question ids
			links = append(links, model.PostProject{PostID: q.id, ProjectID: projects[i].ID})
			for _, uid := range q.users {
				if uid == q.authorID {
					continue
				}
				perms = append(perms, model.ProjectUserPermission{
					UserID:     uid,
					ProjectID:  projects[i].ID,
					Permission: permission.Creator,
				})
			}
		}
		if len(perms) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&perms, batchSize).Error; err != nil {
				return err
			}
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&links, batchSize).Error
	})
	if err != nil {
		return err
	}

	log := logrus.WithField("projects", len(projects))
	if missing > 0 {
		log = log.WithField("questions_not_found", fmt.Sprintf("%d/%d", missing, len(questions)))
	}
	log.Info("personal projects migrated")
	return nil
}

// defaultProjectPriority ranks projects by openness; personal projects lose ties.
func defaultProjectPriority(p *model.Project) float64 {
	rank := float64(permission.Rank(permission.Of(p.DefaultPermission)))
	if p.Type == model.ProjectPersonalProject {
		rank -= 0.01
	}
	return rank
}

// pickDefaultProject returns the most open candidate, the later one on ties.
func pickDefaultProject(projects []model.Project) *model.Project {
	var best *model.Project
	for i := range projects {
		p := &projects[i]
		if p.Type.IsNonProject() {
			continue
		}
		if best == nil || defaultProjectPriority(p) >= defaultProjectPriority(best) {
			best = p
		}
	}
	return best
}

// MigratePostDefaultProject sets each post's default project to its most open linked project.
func (m *Migrator) MigratePostDefaultProject(ctx context.Context) error {
	var posts []model.Post
	updated, without := 0, 0
	res := m.DB.WithContext(ctx).Preload("Projects", func(db *gorm.DB) *gorm.DB {
		return db.Order("projects.id")
	}).FindInBatches(&posts, batchSize, func(tx *gorm.DB, _ int) error {
		for i := range posts {
			best := pickDefaultProject(posts[i].Projects)
			if best == nil {
				without++
				continue
			}
			if err := m.DB.WithContext(ctx).Model(&model.Post{}).Where("id = ?", posts[i].ID).
				Update("default_project_id", best.ID).Error; err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if res.Error != nil {
		return res.Error
	}
	logrus.WithFields(logrus.Fields{
		"updated":                updated,
		"posts_without_projects": without,
	}).Info("post default projects migrated")
	return nil
}

// DeduplicateDefaultProjectAndM2M drops m2m rows that repeat the post's default project.
func (m *Migrator) DeduplicateDefaultProjectAndM2M(ctx context.Context) error {
	db := m.DB.WithContext(ctx)
	dup := db.Table("posts").Select("1").
		Where("posts.id = post_projects.post_id AND posts.default_project_id = post_projects.project_id")
	res := db.Where("EXISTS (?)", dup).Delete(&model.PostProject{})
	if res.Error != nil {
		return res.Error
	}
	logrus.WithField("deleted", res.RowsAffected).Info("duplicate post projects removed")
	return nil
}
