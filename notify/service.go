/*
Package notify persists user notifications and delivers them to devices.

PURPOSE:
  A notification is first stored (so it shows up in the in-app list), then
  pushed to every device the user subscribed with. Delivery is best-effort:
  one failing endpoint never stops the others, and nothing is retried.

DELIVERY PIPELINE:
  1. CreateNotification            -> the message is now visible in the app
  2. ListSubscriptions(user)       -> devices to reach
  3. Push to each device in parallel (errgroup, bounded)
       success          -> TouchSubscription (keeps it out of retention pruning)
       ErrSubscriptionGone -> DeleteSubscription (404/410 from the push service)
       other error      -> logged
  4. Decision notifications are also mailed when a Mailer is configured

SEE ALSO:
  - webpush.go: VAPID Web Push sender behind a circuit breaker
  - email.go:   SES mailer
*/
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/artsia/hr-portal/absence"
)

// ErrSubscriptionGone is returned by a PushSender when the push service no
// longer knows the endpoint. The subscription is deleted.
var ErrSubscriptionGone = errors.New("push subscription gone")

// maxParallelPushes bounds the fan-out per notification.
const maxParallelPushes = 8

// Store is the persistence the notifier needs.
type Store interface {
	CreateNotification(ctx context.Context, n absence.Notification) (absence.Notification, error)
	ListSubscriptions(ctx context.Context, userID int64) ([]absence.PushSubscription, error)
	TouchSubscription(ctx context.Context, id int64, at time.Time) error
	DeleteSubscription(ctx context.Context, id int64) error
	GetEmployee(ctx context.Context, id int64) (*absence.Employee, error)
}

// PushSender delivers one payload to one device.
type PushSender interface {
	Push(ctx context.Context, sub absence.PushSubscription, payload []byte) error
}

// Mailer sends a plain-text email.
type Mailer interface {
	SendMail(ctx context.Context, to, subject, body string) error
}

// Recorder receives delivery counters.
type Recorder interface {
	NotificationPersisted(t absence.NotificationType)
	PushDelivered(outcome string)
}

// Push outcomes reported to the Recorder.
const (
	OutcomeSent   = "sent"
	OutcomeGone   = "gone"
	OutcomeFailed = "failed"
)

type nopRecorder struct{}

func (nopRecorder) NotificationPersisted(absence.NotificationType) {}
func (nopRecorder) PushDelivered(string)                           {}

// Payload is the JSON body the service worker receives.
type Payload struct {
	NotificationID   int64                    `json:"notificationId"`
	Type             absence.NotificationType `json:"type"`
	Title            string                   `json:"title"`
	Body             string                   `json:"body"`
	URL              string                   `json:"url,omitempty"`
	RelatedRequestID *int64                   `json:"relatedRequestId,omitempty"`
}

// Deps are the collaborators of a Service. Only Store is required; a nil
// Sender disables push and a nil Mailer disables email.
type Deps struct {
	Store   Store
	Sender  PushSender
	Mailer  Mailer
	Logger  *zerolog.Logger
	Metrics Recorder
	Now     func() time.Time
}

// Service implements absence.Notifier.
type Service struct {
	store   Store
	sender  PushSender
	mailer  Mailer
	log     zerolog.Logger
	metrics Recorder
	now     func() time.Time
}

var _ absence.Notifier = (*Service)(nil)

func NewService(d Deps) *Service {
	s := &Service{
		store:   d.Store,
		sender:  d.Sender,
		mailer:  d.Mailer,
		log:     log.Logger,
		metrics: d.Metrics,
		now:     d.Now,
	}
	if d.Logger != nil {
		s.log = *d.Logger
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Send persists msg and fans it out. The error is non-nil only when the
// notification could not be stored; delivery problems are logged.
func (s *Service) Send(ctx context.Context, msg absence.Message) (absence.Delivery, error) {
	n, err := s.store.CreateNotification(ctx, absence.Notification{
		RecipientID:      msg.UserID,
		Type:             msg.Type,
		Title:            msg.Title,
		Body:             msg.Body,
		RelatedRequestID: msg.RelatedRequestID,
		URL:              msg.URL,
		CreatedAt:        s.now(),
	})
	if err != nil {
		return absence.Delivery{}, fmt.Errorf("failed to persist notification: %w", err)
	}
	s.metrics.NotificationPersisted(n.Type)

	res := absence.Delivery{Success: true}
	if s.sender != nil {
		res.PushSent = s.push(ctx, n)
	}
	if s.mailer != nil && isDecision(n.Type) {
		s.mail(ctx, n)
	}
	return res, nil
}

func (s *Service) push(ctx context.Context, n absence.Notification) int {
	subs, err := s.store.ListSubscriptions(ctx, n.RecipientID)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", n.RecipientID).Msg("could not list push subscriptions")
		return 0
	}
	if len(subs) == 0 {
		return 0
	}

	payload, err := json.Marshal(Payload{
		NotificationID:   n.ID,
		Type:             n.Type,
		Title:            n.Title,
		Body:             n.Body,
		URL:              n.URL,
		RelatedRequestID: n.RelatedRequestID,
	})
	if err != nil {
		s.log.Error().Err(err).Int64("notification_id", n.ID).Msg("could not encode push payload")
		return 0
	}

	var sent atomic.Int32
	var g errgroup.Group
	g.SetLimit(maxParallelPushes)
	for _, sub := range subs {
		g.Go(func() error {
			if s.deliver(ctx, sub, payload) {
				sent.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(sent.Load())
}

// deliver pushes to one subscription and applies the bookkeeping for its
// outcome. Reports whether the push went through.
func (s *Service) deliver(ctx context.Context, sub absence.PushSubscription, payload []byte) bool {
	err := s.sender.Push(ctx, sub, payload)
	switch {
	case err == nil:
		s.metrics.PushDelivered(OutcomeSent)
		if err := s.store.TouchSubscription(ctx, sub.ID, s.now()); err != nil {
			s.log.Warn().Err(err).Int64("subscription_id", sub.ID).Msg("could not touch subscription")
		}
		return true

	case errors.Is(err, ErrSubscriptionGone):
		s.metrics.PushDelivered(OutcomeGone)
		if err := s.store.DeleteSubscription(ctx, sub.ID); err != nil {
			s.log.Warn().Err(err).Int64("subscription_id", sub.ID).Msg("could not prune subscription")
		} else {
			s.log.Info().Int64("subscription_id", sub.ID).Int64("user_id", sub.EmployeeID).Msg("pruned expired push subscription")
		}
		return false

	default:
		s.metrics.PushDelivered(OutcomeFailed)
		s.log.Warn().Err(err).
			Int64("subscription_id", sub.ID).
			Str("platform", string(sub.Platform)).
			Msg("push delivery failed")
		return false
	}
}

func (s *Service) mail(ctx context.Context, n absence.Notification) {
	emp, err := s.store.GetEmployee(ctx, n.RecipientID)
	if err != nil || emp == nil || emp.Email == "" {
		if err != nil {
			s.log.Warn().Err(err).Int64("user_id", n.RecipientID).Msg("could not load recipient for email")
		}
		return
	}
	if err := s.mailer.SendMail(ctx, emp.Email, n.Title, n.Body); err != nil {
		s.log.Warn().Err(err).Int64("user_id", n.RecipientID).Msg("email delivery failed")
	}
}

func isDecision(t absence.NotificationType) bool {
	return strings.HasSuffix(string(t), "_approved") || strings.HasSuffix(string(t), "_rejected")
}
