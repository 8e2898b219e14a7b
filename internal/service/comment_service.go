package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/permission"
	"Forecast_Hub/internal/pkg/errs"
	"Forecast_Hub/internal/repository/sqldb"
)

type CommentService struct {
	repo      *sqldb.CommentRepository
	postRepo  *sqldb.PostRepository
	questions *sqldb.QuestionRepository
	projects  *ProjectService
	posts     *PostService
}

func NewCommentService(db *gorm.DB, projects *ProjectService, posts *PostService) *CommentService {
	return &CommentService{
		repo:      &sqldb.CommentRepository{DB: db},
		postRepo:  &sqldb.PostRepository{DB: db},
		questions: &sqldb.QuestionRepository{DB: db},
		projects:  projects,
		posts:     posts,
	}
}

// CommentPermission derives the comment permission from the post or project it sits on.
// Plain forecasters and post creators only view other people's comments.
func (s *CommentService) CommentPermission(ctx context.Context, c *model.Comment, user *model.User) (*permission.ObjectPermission, error) {
	var perm *permission.ObjectPermission
	switch {
	case c.OnPostID != nil:
		post, err := s.postRepo.FindByID(ctx, *c.OnPostID)
		if err != nil {
			return nil, err
		}
		if perm, err = s.posts.PostPermission(ctx, post, user); err != nil {
			return nil, err
		}
	case c.OnProjectID != nil:
		project, err := s.projects.repo.FindByID(ctx, *c.OnProjectID)
		if err != nil {
			return nil, err
		}
		if perm, err = s.projects.Permission(ctx, project, user); err != nil {
			return nil, err
		}
	}
	if p := permission.Of(perm); p == permission.Creator || p == permission.Forecaster {
		perm = permission.Ptr(permission.Viewer)
	}
	if !user.IsAnonymous() && c.AuthorID == user.ID {
		perm = permission.Ptr(permission.Creator)
	}
	if c.IsPrivate && permission.Of(perm) != permission.Creator {
		return nil, nil
	}
	return perm, nil
}

type CommentInput struct {
	OnPost           *uint64 `json:"on_post"`
	OnProject        *uint64 `json:"on_project"`
	Parent           *uint64 `json:"parent"`
	IncludedForecast bool    `json:"included_forecast"`
	IsPrivate        bool    `json:"is_private"`
	Text             string  `json:"text"`
}

// CreateComment stores a comment on a post or a project. A reply always lands where its parent is.
func (s *CommentService) CreateComment(ctx context.Context, user *model.User, in CommentInput) (*model.Comment, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, errs.FieldErrors(map[string]string{"text": "this field may not be blank"})
	}
	onPost, onProject := in.OnPost, in.OnProject
	if in.Parent != nil {
		parent, err := s.repo.FindByID(ctx, *in.Parent)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.FieldErrors(map[string]string{"parent": "comment does not exist"})
		}
		if err != nil {
			return nil, err
		}
		onPost, onProject = parent.OnPostID, parent.OnProjectID
	}
	if (onPost == nil) == (onProject == nil) {
		return nil, errs.Validation("a comment must be on exactly one post or project")
	}

	c := &model.Comment{
		AuthorID:    user.ID,
		ParentID:    in.Parent,
		OnPostID:    onPost,
		OnProjectID: onProject,
		Text:        text,
		IsPrivate:   in.IsPrivate,
	}
	if onPost != nil {
		post, perm, err := s.posts.getPost(ctx, user, *onPost)
		if err != nil {
			return nil, err
		}
		if err := permission.EnsureComment(perm); err != nil {
			return nil, err
		}
		if in.IncludedForecast && post.Question != nil {
			f, err := s.questions.LatestForecast(ctx, post.Question.ID, user.ID)
			if err != nil {
				return nil, err
			}
			if f != nil {
				c.IncludedForecastID = &f.ID
			}
		}
	} else {
		project, err := s.projects.GetVisibleProject(ctx, user, *onProject)
		if err != nil {
			return nil, err
		}
		if err := s.projects.ensure(ctx, project, user, permission.EnsureView); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	if onPost != nil {
		if err := s.postRepo.TouchSnapshot(ctx, *onPost, user.ID, time.Now()); err != nil {
			return nil, err
		}
	}
	c.Author = user
	return c, nil
}

// List returns a page of the post's comments readable by user and the cursor of the next page.
func (s *CommentService) List(ctx context.Context, user *model.User, postID, cursor uint64, limit int) ([]CommentData, uint64, error) {
	if _, _, err := s.posts.getPost(ctx, user, postID); err != nil {
		return nil, 0, err
	}
	var viewerID uint64
	if !user.IsAnonymous() {
		viewerID = user.ID
	}
	rows, next, err := s.repo.ListForPost(ctx, postID, viewerID, cursor, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]CommentData, 0, len(rows))
	for i := range rows {
		out = append(out, SerializeComment(&rows[i]))
	}
	if !user.IsAnonymous() {
		if err := s.postRepo.TouchSnapshot(ctx, postID, user.ID, time.Now()); err != nil {
			return nil, 0, err
		}
	}
	return out, next, nil
}

func (s *CommentService) load(ctx context.Context, user *model.User, id uint64) (*model.Comment, permission.ObjectPermission, error) {
	c, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", errs.ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	perm, err := s.CommentPermission(ctx, c, user)
	if err != nil {
		return nil, "", err
	}
	if perm == nil {
		return nil, "", errs.ErrNotFound
	}
	return c, *perm, nil
}

func (s *CommentService) Edit(ctx context.Context, user *model.User, id uint64, text string) error {
	c, perm, err := s.load(ctx, user, id)
	if err != nil {
		return err
	}
	if err := permission.EnsureEditComment(perm); err != nil {
		return err
	}
	if c.IsSoftDeleted {
		return errs.Validation("deleted comments cannot be edited")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return errs.FieldErrors(map[string]string{"text": "this field may not be blank"})
	}
	return s.repo.UpdateText(ctx, c.ID, text)
}

func (s *CommentService) Delete(ctx context.Context, user *model.User, id uint64) error {
	c, perm, err := s.load(ctx, user, id)
	if err != nil {
		return err
	}
	if err := permission.EnsureDeleteComment(perm); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, c.ID)
}
