package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/pkg"
	"Forecast_Hub/internal/repository/sqldb"
)

type NotificationService struct {
	repo     *sqldb.NotificationRepository
	comments *sqldb.CommentRepository
	posts    *sqldb.PostRepository
	users    *sqldb.UserRepository
	projects *ProjectService
	mailer   *pkg.Mailer
}

func NewNotificationService(db *gorm.DB, projects *ProjectService, mailer *pkg.Mailer) *NotificationService {
	return &NotificationService{
		repo:     &sqldb.NotificationRepository{DB: db},
		comments: &sqldb.CommentRepository{DB: db},
		posts:    &sqldb.PostRepository{DB: db},
		users:    &sqldb.UserRepository{DB: db},
		projects: projects,
		mailer:   mailer,
	}
}

func (s *NotificationService) List(ctx context.Context, user *model.User, cursor uint64, limit int) ([]NotificationData, uint64, error) {
	rows, next, err := s.repo.ListForUser(ctx, user.ID, cursor, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]NotificationData, 0, len(rows))
	for i := range rows {
		out = append(out, SerializeNotification(&rows[i]))
	}
	return out, next, nil
}

// MarkRead marks ids (every unread notification when empty) as read.
func (s *NotificationService) MarkRead(ctx context.Context, user *model.User, ids []uint64) (int64, error) {
	return s.repo.MarkRead(ctx, user.ID, ids, time.Now())
}

type commentCreated struct {
	CommentID uint64 `json:"comment_id"`
	PostID    uint64 `json:"post_id"`
	AuthorID  uint64 `json:"author_id"`
}

type postOpened struct {
	PostID uint64 `json:"post_id"`
}

// HandleEvent turns one outbox event into notifications. Unknown events are ignored.
func (s *NotificationService) HandleEvent(ctx context.Context, eventType string, payload []byte) error {
	switch eventType {
	case model.EventPostCommentCreate:
		var ev commentCreated
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		return s.onPostCommentCreate(ctx, ev)
	case model.EventPostOpen:
		var ev postOpened
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		post, err := s.posts.FindByID(ctx, ev.PostID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return s.projects.NotifyProjectSubscriptionsPostOpen(ctx, post)
	default:
		logrus.WithField("event_type", eventType).Debug("ignoring event")
		return nil
	}
}

// HandleMessage adapts HandleEvent to the kafka consumer.
func (s *NotificationService) HandleMessage(ctx context.Context, m kafka.Message) error {
	return s.HandleEvent(ctx, pkg.EventType(m), m.Value)
}

// onPostCommentCreate notifies the post author and earlier commenters, never the commenter.
// Private comments notify nobody.
func (s *NotificationService) onPostCommentCreate(ctx context.Context, ev commentCreated) error {
	comment, err := s.comments.FindByID(ctx, ev.CommentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if comment.IsPrivate || comment.IsSoftDeleted {
		return nil
	}
	post, err := s.posts.FindByID(ctx, ev.PostID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	commenters, err := s.comments.Commenters(ctx, post.ID)
	if err != nil {
		return err
	}

	seen := map[uint64]bool{comment.AuthorID: true}
	var recipients []uint64
	for _, id := range append([]uint64{post.AuthorID}, commenters...) {
		if !seen[id] {
			seen[id] = true
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return nil
	}
	list := make([]model.Notification, 0, len(recipients))
	for _, id := range recipients {
		list = append(list, model.Notification{
			RecipientID: id,
			Type:        model.NotificationNewComments,
			Params: map[string]any{
				"post":       map[string]any{"post_id": post.ID, "post_title": post.Title},
				"comment_id": comment.ID,
				"author_id":  comment.AuthorID,
			},
		})
	}
	if err := s.repo.CreateBatch(ctx, list); err != nil {
		return err
	}
	if s.mailer.Enabled() {
		s.projects.mailRecipients(ctx, recipients, func(uint64) (string, string) {
			return "New comments on " + post.Title, pkg.NewCommentsHTML(post.Title, post.ID, 1)
		})
	}
	return nil
}

// Sender delivers one outbox event.
type Sender func(ctx context.Context, ob *model.EventOutbox) error

// KafkaSender publishes events keyed by aggregate id.
func KafkaSender(p *pkg.KafkaProducer) Sender {
	return func(ctx context.Context, ob *model.EventOutbox) error {
		return p.Send(ctx, pkg.MakeKeyFromID(ob.AggregateID), ob.EventType, ob.Payload)
	}
}

// DispatchSender handles events in process when no broker is configured.
func DispatchSender(s *NotificationService) Sender {
	return func(ctx context.Context, ob *model.EventOutbox) error {
		return s.HandleEvent(ctx, ob.EventType, ob.Payload)
	}
}

// OutboxRelayer drains the event outbox into a Sender.
type OutboxRelayer struct {
	repo      *sqldb.OutboxRepository
	batchSize int
	interval  time.Duration
	sender    Sender
}

func NewOutboxRelayer(db *gorm.DB, sender Sender) *OutboxRelayer {
	return &OutboxRelayer{
		repo:      &sqldb.OutboxRepository{DB: db},
		batchSize: 200,
		interval:  time.Second,
		sender:    sender,
	}
}

func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.DrainOnce(ctx)
		}
	}
}

// DrainOnce sends one batch; failed events are retried on later runs.
func (r *OutboxRelayer) DrainOnce(ctx context.Context) int {
	rows, err := r.repo.List(ctx, r.batchSize)
	if err != nil {
		logrus.WithError(err).Error("outbox query failed")
		return 0
	}
	sent := 0
	for i := range rows {
		ob := &rows[i]
		if err := r.sender(ctx, ob); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"outbox_id": ob.ID, "event_type": ob.EventType}).Warn("outbox send failed")
			if err := r.repo.RetryUpdate(ctx, ob.ID); err != nil {
				logrus.WithError(err).Error("outbox retry update failed")
			}
			continue
		}
		if err := r.repo.SuccessUpdate(ctx, ob.ID); err != nil {
			logrus.WithError(err).Error("outbox success update failed")
			continue
		}
		sent++
	}
	return sent
}
