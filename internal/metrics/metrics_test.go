package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Conceptual-Machines/blessing-api/internal/generation"
	"github.com/Conceptual-Machines/blessing-api/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	mu     sync.Mutex
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakePutter) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func (f *fakePutter) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, in := range f.inputs {
		for _, d := range in.MetricData {
			out = append(out, aws.ToString(d.MetricName))
		}
	}
	return out
}

func syncClient(api MetricPutter) *Client {
	c := NewClientWithAPI(api, "production")
	c.async = false
	return c
}

func TestNewClientDisabledOutsideProduction(t *testing.T) {
	c, err := NewClient(context.Background(), "development", true)
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	c, err = NewClient(context.Background(), "production", false)
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	// no panic, no calls
	c.RecordAPIRequest("/api/generate", 200, time.Second)
}

func TestClientRecordsVariantOutcome(t *testing.T) {
	api := &fakePutter{}
	c := syncClient(api)

	c.RecordVariantOutcome("deepseek-chat", "normal", OutcomeDone, 2*time.Second, 20)
	c.RecordVariantOutcome("deepseek-chat", "abstract", OutcomeError, time.Second, 0)

	assert.Equal(t, []string{
		"VariantOutcomes", "VariantDuration", "GreetingLength",
		"VariantOutcomes", "VariantDuration",
	}, api.names())
	assert.Equal(t, "Blessing/API", aws.ToString(api.inputs[0].Namespace))
}

func TestClientRecordsAPIErrors(t *testing.T) {
	api := &fakePutter{}
	c := syncClient(api)

	c.RecordAPIRequest("/api/rounds", 502, 10*time.Millisecond)
	assert.Equal(t, []string{"APIErrors", "APILatency"}, api.names())
}

type fakeRecorder struct {
	ttft     []string
	outcomes []string
	chars    []int
}

func (f *fakeRecorder) RecordTimeToFirstToken(model, variant string, _ time.Duration) {
	f.ttft = append(f.ttft, model+"/"+variant)
}

func (f *fakeRecorder) RecordVariantOutcome(_, variant, outcome string, _ time.Duration, chars int) {
	f.outcomes = append(f.outcomes, variant+":"+outcome)
	f.chars = append(f.chars, chars)
}

func TestRoundListener(t *testing.T) {
	rec := &fakeRecorder{}
	listen := RoundListener(rec)

	listen(generation.Event{Type: generation.EventStarted, Variant: models.StyleNormal, Model: "m"})
	listen(generation.Event{Type: generation.EventToken, Variant: models.StyleNormal, Model: "m", TokenIndex: 1})
	listen(generation.Event{Type: generation.EventToken, Variant: models.StyleNormal, Model: "m", TokenIndex: 2})
	listen(generation.Event{Type: generation.EventDone, Variant: models.StyleNormal, Model: "m", Text: "马年大吉"})
	listen(generation.Event{Type: generation.EventError, Variant: models.StyleLiterary, Model: "m"})
	listen(generation.Event{Type: generation.EventCanceled, Variant: models.StyleAbstract, Model: "m", Text: "半"})

	assert.Equal(t, []string{"m/normal"}, rec.ttft)
	assert.Equal(t, []string{"normal:done", "literary:error", "abstract:canceled"}, rec.outcomes)
	assert.Equal(t, []int{4, 0, 1}, rec.chars)
}

func TestSentryMetricsWithoutClient(t *testing.T) {
	m := NewSentryMetrics()

	assert.NotPanics(t, func() {
		m.RecordAPIRequest(context.Background(), "/health", 200, time.Millisecond)
		m.RecordTimeToFirstToken("m", "normal", time.Millisecond)
		m.RecordVariantOutcome("m", "normal", OutcomeCanceled, time.Millisecond, 0)
	})
}
