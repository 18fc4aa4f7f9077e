package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/humanpalette/palette-backend/internal/analytics"
	"github.com/humanpalette/palette-backend/pkg/config"
	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
	"github.com/humanpalette/palette-backend/pkg/logger"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type outboxRepository interface {
	FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	DomainPublisher() *gcppubsub.Publisher
	NotificationPublisher() *gcppubsub.Publisher
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	PubSub     pubSubClient
	Repository outboxRepository

	// Analytics is optional; a nil writer drops facts without blocking
	// the publish loop.
	Analytics *analytics.Writer

	// Publisher overrides for tests.
	DomainPublisher       publisher
	NotificationPublisher publisher
}

// Service drains outbox_events into Pub/Sub. Notification requests go to the
// notification topic, everything else to the domain topic. Rows that exhaust
// their attempt budget simply stop being fetched; the retention job reaps
// them and their last_error stays behind for the operator.
type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	pubsub       pubSubClient
	repo         outboxRepository
	analytics    *analytics.Writer
	domain       publisher
	notification publisher
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}

	domain := params.DomainPublisher
	if domain == nil {
		domain = newGCPPublisher(params.PubSub.DomainPublisher())
	}
	notification := params.NotificationPublisher
	if notification == nil {
		notification = newGCPPublisher(params.PubSub.NotificationPublisher())
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	poll := params.Config.Outbox.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		analytics:    params.Analytics,
		domain:       domain,
		notification: notification,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: poll,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.pubsub.Ping(ctx); err != nil {
		s.logg.Error(ctx, "pubsub ping failed", err)
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	interval := s.pollInterval
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		default:
		}

		processed, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval

		if processed {
			continue
		}

		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	events, err := s.repo.FetchUnpublished(s.batchSize, s.maxAttempts)
	if err != nil {
		return false, err
	}
	if len(events) == 0 {
		return false, nil
	}

	for _, event := range events {
		fields := s.eventFields(event)

		if err := s.publish(ctx, event); err != nil {
			fields["attempt_count"] = event.AttemptCount + 1
			logCtx := s.logg.WithFields(ctx, fields)
			logCtx = s.logg.WithField(logCtx, "error", err.Error())
			s.logg.Warn(logCtx, "outbox publish failed")
			if markErr := s.repo.MarkFailed(event.ID, err); markErr != nil {
				return true, fmt.Errorf("mark failure %s: %w", event.ID, markErr)
			}
			continue
		}

		if markErr := s.repo.MarkPublished(event.ID); markErr != nil {
			return true, fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")

		s.recordFact(ctx, event)
	}
	return true, nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent) error {
	pub := s.publisherFor(event.EventType)
	if pub == nil {
		return fmt.Errorf("publisher not configured for event type %s", event.EventType)
	}

	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"outbox_id":      event.ID.String(),
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return fmt.Errorf("publisher returned nil for event %s", event.ID)
	}
	if _, err := result.Get(publishCtx); err != nil {
		return err
	}
	return nil
}

func (s *Service) publisherFor(eventType enums.OutboxEventType) publisher {
	if eventType == enums.EventNotificationRequested {
		return s.notification
	}
	return s.domain
}

// recordFact feeds the marketplace fact table. Publishing already succeeded,
// so an analytics failure is only logged.
func (s *Service) recordFact(ctx context.Context, event models.OutboxEvent) {
	row, ok := analytics.RowFromOutboxEvent(event)
	if !ok {
		return
	}
	if err := s.analytics.RecordFact(ctx, row); err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"outbox_id": event.ID.String(),
			"fact":      row.Fact,
			"error":     err.Error(),
		})
		s.logg.Warn(logCtx, "marketplace fact dropped")
	}
}

func (s *Service) eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"batch_size":     s.batchSize,
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}
