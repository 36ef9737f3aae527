package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	// HTTP status code threshold for considering a request successful
	successStatusCodeThreshold = http.StatusBadRequest
)

// SentryMetrics handles custom metrics for Sentry
type SentryMetrics struct {
	enabled bool
}

// NewSentryMetrics creates a new Sentry metrics client
func NewSentryMetrics() *SentryMetrics {
	return &SentryMetrics{
		enabled: true, // no-op spans when Sentry is not initialized
	}
}

// RecordAPIRequest records API request metrics
func (m *SentryMetrics) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "api.request")
	defer span.Finish()

	span.SetTag("endpoint", endpoint)
	span.SetTag("status_code", fmt.Sprintf("%d", statusCode))
	span.SetTag("success", fmt.Sprintf("%t", statusCode < successStatusCodeThreshold))

	span.SetData("duration_ms", duration.Milliseconds())
	span.SetData("endpoint", endpoint)
	span.SetData("status_code", statusCode)

	if statusCode < successStatusCodeThreshold {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInternalError
	}

	span.Description = fmt.Sprintf("API Request: %s", endpoint)
}

// RecordTimeToFirstToken records how long a variant waited for its first delta
func (m *SentryMetrics) RecordTimeToFirstToken(model, variant string, ttft time.Duration) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(context.Background(), "llm.first_token")
	defer span.Finish()

	span.SetTag("model", model)
	span.SetTag("variant", variant)
	span.SetData("ttft_ms", ttft.Milliseconds())
	span.Status = sentry.SpanStatusOK
	span.Description = fmt.Sprintf("First token: %s/%s", model, variant)
}

// RecordVariantOutcome records how one variant of a round ended
func (m *SentryMetrics) RecordVariantOutcome(model, variant, outcome string, duration time.Duration, chars int) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(context.Background(), "generation.variant")
	defer span.Finish()

	span.SetTag("model", model)
	span.SetTag("variant", variant)
	span.SetTag("outcome", outcome)
	span.SetData("duration_ms", duration.Milliseconds())
	span.SetData("chars", chars)

	switch outcome {
	case OutcomeDone:
		span.Status = sentry.SpanStatusOK
	case OutcomeCanceled:
		span.Status = sentry.SpanStatusCanceled
	default:
		span.Status = sentry.SpanStatusInternalError
	}

	span.Description = fmt.Sprintf("Variant %s: %s", variant, outcome)
}

// RecordPerformanceMetric records performance data
func (m *SentryMetrics) RecordPerformanceMetric(operation string, duration time.Duration, metadata map[string]interface{}) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(context.Background(), operation)
	span.Description = operation
	span.SetData("duration_ms", duration.Milliseconds())

	for key, value := range metadata {
		span.SetData(key, value)
	}

	span.Finish()
}
