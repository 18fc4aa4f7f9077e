package analytics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	pkgbigquery "github.com/humanpalette/palette-backend/pkg/bigquery"
	"github.com/humanpalette/palette-backend/pkg/config"
	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second

	FactMatchCreated    = "match_created"
	FactMatchGhosted    = "match_ghosted"
	FactPurchaseSettled = "purchase_settled"
)

// MarketplaceEventRow is one analytics fact. Payload carries the outbox
// envelope verbatim so downstream queries can unpack event-specific fields.
type MarketplaceEventRow struct {
	EventID       string    `bigquery:"event_id"`
	Fact          string    `bigquery:"fact"`
	EventType     string    `bigquery:"event_type"`
	AggregateID   string    `bigquery:"aggregate_id"`
	AggregateType string    `bigquery:"aggregate_type"`
	Payload       string    `bigquery:"payload"`
	OccurredAt    time.Time `bigquery:"occurred_at"`
}

// RetryPolicy controls how many times BigQuery inserts are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Writer inserts marketplace facts into BigQuery with bounded retries. A nil
// Writer is valid and drops everything; analytics never blocks money paths.
type Writer struct {
	client tableInserter
	table  string
	retry  RetryPolicy
}

// NewWriter builds a writer over the shared BigQuery client.
func NewWriter(client *pkgbigquery.Client, cfg config.BigQueryConfig, retry RetryPolicy) (*Writer, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	return newWriterWithInserter(client, cfg.MarketplaceEventsTable, retry)
}

func newWriterWithInserter(client tableInserter, table string, retry RetryPolicy) (*Writer, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("marketplace events table is required")
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultMaxAttempts
	}
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = defaultInitialBackoff
	}
	if retry.MaximumBackoff < retry.InitialBackoff {
		retry.MaximumBackoff = defaultMaximumBackoff
	}
	return &Writer{client: client, table: table, retry: retry}, nil
}

// FactForEvent maps an outbox event type to the analytics fact it feeds.
// Most events are operational and produce no fact.
func FactForEvent(eventType enums.OutboxEventType) (string, bool) {
	switch eventType {
	case enums.EventMatchCreated:
		return FactMatchCreated, true
	case enums.EventMatchGhosted:
		return FactMatchGhosted, true
	case enums.EventPurchaseEscrowed:
		return FactPurchaseSettled, true
	default:
		return "", false
	}
}

// RowFromOutboxEvent converts a fact-worthy outbox event into a BigQuery row.
// The second return is false for event types that carry no fact.
func RowFromOutboxEvent(event models.OutboxEvent) (MarketplaceEventRow, bool) {
	fact, ok := FactForEvent(event.EventType)
	if !ok {
		return MarketplaceEventRow{}, false
	}
	occurredAt := event.CreatedAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	return MarketplaceEventRow{
		EventID:       event.ID.String(),
		Fact:          fact,
		EventType:     string(event.EventType),
		AggregateID:   event.AggregateID.String(),
		AggregateType: string(event.AggregateType),
		Payload:       string(event.Payload),
		OccurredAt:    occurredAt,
	}, true
}

// RecordFact inserts one row, retrying transient failures.
func (w *Writer) RecordFact(ctx context.Context, row MarketplaceEventRow) error {
	if w == nil {
		return nil
	}
	return w.insertWithRetry(ctx, []any{&row})
}

func (w *Writer) insertWithRetry(ctx context.Context, rows []any) error {
	attempts := 0
	backoff := w.retry.InitialBackoff

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := w.client.InsertRows(ctx, w.table, rows)
		if err == nil {
			return nil
		}

		attempts++
		if attempts >= w.retry.MaxAttempts || !isRetryable(err) {
			return fmt.Errorf("insert %s rows: %w", w.table, err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff = min(backoff*2, w.retry.MaximumBackoff)
	}
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var multi cbigquery.PutMultiError
	if errors.As(err, &multi) {
		// Row-level errors are schema or data problems; retrying replays
		// the same rejection.
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	// Unclassified transport errors get the benefit of the doubt.
	return true
}
