package outcomes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pkgbigquery "github.com/pantryloop/pantryloop-backend/pkg/bigquery"
	"github.com/pantryloop/pantryloop-backend/pkg/db/models"
)

const (
	defaultFactMaxAttempts    = 3
	defaultFactInitialBackoff = 250 * time.Millisecond
	defaultFactMaximumBackoff = 2 * time.Second
)

// OutcomeFactRow mirrors the outcome_facts BigQuery schema. One row per
// ingested outcome, streamed after the Postgres row commits.
type OutcomeFactRow struct {
	OutcomeID             string             `bigquery:"outcome_id"`
	OrderID               string             `bigquery:"order_id"`
	DecisionID            *string            `bigquery:"decision_id"`
	ProviderID            string             `bigquery:"provider_id"`
	WasSuccessful         bool               `bigquery:"was_successful"`
	WasCancelled          bool               `bigquery:"was_cancelled"`
	WasSplitOrder         bool               `bigquery:"was_split_order"`
	UsedFallback          bool               `bigquery:"used_fallback"`
	EstimatedMinutes      *int64             `bigquery:"estimated_minutes"`
	ActualDeliveryMinutes *int64             `bigquery:"actual_delivery_minutes"`
	ItemsOrdered          int64              `bigquery:"items_ordered"`
	ItemsDelivered        int64              `bigquery:"items_delivered"`
	TotalValueCents       *int64             `bigquery:"total_value_cents"`
	CommissionRate        *float64           `bigquery:"commission_rate"`
	UserRating            *int64             `bigquery:"user_rating"`
	Issues                []string           `bigquery:"issues"`
	Payload               cbigquery.NullJSON `bigquery:"payload"`
	OccurredAt            time.Time          `bigquery:"occurred_at"`
}

// FactRetryPolicy controls how many times fact inserts are retried.
type FactRetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// FactsWriter streams outcome fact rows into BigQuery with retries. The
// warehouse copy is a convenience for analysts; the Postgres row stays the
// source of truth, so callers treat insert failures as non-fatal.
type FactsWriter struct {
	client tableInserter
	table  string
	retry  FactRetryPolicy
}

// NewFactsWriter creates a writer targeting the given table on a shared
// client.
func NewFactsWriter(client *pkgbigquery.Client, table string, retry FactRetryPolicy) (*FactsWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("outcome facts table is required")
	}

	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultFactMaxAttempts
	}
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = defaultFactInitialBackoff
	}
	if retry.MaximumBackoff <= 0 {
		retry.MaximumBackoff = defaultFactMaximumBackoff
	}
	if retry.MaximumBackoff < retry.InitialBackoff {
		retry.MaximumBackoff = retry.InitialBackoff
	}

	return &FactsWriter{client: client, table: table, retry: retry}, nil
}

// InsertOutcome streams one fact row, retrying transient BigQuery errors
// with doubling backoff.
func (w *FactsWriter) InsertOutcome(ctx context.Context, row OutcomeFactRow) error {
	attempts := 0
	backoff := w.retry.InitialBackoff

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := w.client.InsertRows(ctx, w.table, []any{&row})
		if err == nil {
			return nil
		}

		attempts++
		if attempts >= w.retry.MaxAttempts || !isRetryableInsertError(err) {
			return fmt.Errorf("insert %s row: %w", w.table, err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		timer.Stop()

		if backoff *= 2; backoff > w.retry.MaximumBackoff {
			backoff = w.retry.MaximumBackoff
		}
	}
}

// buildOutcomeFactRow flattens a persisted outcome into its warehouse shape.
func buildOutcomeFactRow(outcome *models.OrderOutcome) OutcomeFactRow {
	row := OutcomeFactRow{
		OutcomeID:      outcome.ID.String(),
		OrderID:        outcome.OrderID.String(),
		ProviderID:     outcome.ProviderID.String(),
		WasSuccessful:  outcome.WasSuccessful,
		WasCancelled:   outcome.WasCancelled,
		WasSplitOrder:  outcome.WasSplitOrder,
		UsedFallback:   outcome.UsedFallback,
		ItemsOrdered:   int64(outcome.ItemsOrdered),
		ItemsDelivered: int64(outcome.ItemsDelivered),
		CommissionRate: outcome.CommissionRate,
		Issues:         outcome.Issues,
		OccurredAt:     outcome.OccurredAt,
	}
	if outcome.DecisionID != nil {
		id := outcome.DecisionID.String()
		row.DecisionID = &id
	}
	row.EstimatedMinutes = intPtrTo64(outcome.EstimatedMinutes)
	row.ActualDeliveryMinutes = intPtrTo64(outcome.ActualDeliveryMinutes)
	row.TotalValueCents = intPtrTo64(outcome.TotalValueCents)
	row.UserRating = intPtrTo64(outcome.UserRating)
	if len(outcome.Raw) > 0 {
		row.Payload = cbigquery.NullJSON{Valid: true, JSONVal: string(outcome.Raw)}
	}
	return row
}

func intPtrTo64(v *int) *int64 {
	if v == nil {
		return nil
	}
	out := int64(*v)
	return &out
}

func isRetryableInsertError(err error) bool {
	if err == nil {
		return false
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		if len(multi) == 0 {
			return false
		}
		for _, inner := range multi {
			if !isRetryableInsertError(inner) {
				return false
			}
		}
		return true
	}

	var pme cbigquery.PutMultiError
	if errors.As(err, &pme) {
		if len(pme) == 0 {
			return false
		}
		for _, rowErr := range pme {
			if !isRetryableInsertError(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusRequestTimeout,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}

	var statusErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &statusErr) {
		if st := statusErr.GRPCStatus(); st != nil {
			switch st.Code() {
			case codes.Aborted, codes.DeadlineExceeded, codes.Internal,
				codes.ResourceExhausted, codes.Unavailable:
				return true
			default:
				return false
			}
		}
	}

	return false
}
