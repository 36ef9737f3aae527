package metrics

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	namespace                = "Blessing/API"
	httpStatusServerError    = 500
	cloudwatchTimeoutSeconds = 5
)

// MetricPutter is the subset of the CloudWatch API the client uses
type MetricPutter interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Client wraps CloudWatch client for custom metrics
type Client struct {
	client      MetricPutter
	enabled     bool
	environment string
	async       bool
}

// NewClient creates a CloudWatch metrics client. It is a no-op outside
// production or when not requested.
func NewClient(ctx context.Context, environment string, requested bool) (*Client, error) {
	if environment != "production" || !requested {
		log.Printf("📊 CloudWatch Metrics: DISABLED (environment: %s)", environment)
		return &Client{
			enabled:     false,
			environment: environment,
		}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Printf("⚠️  Failed to load AWS config for CloudWatch: %v", err)
		return &Client{enabled: false, environment: environment}, nil
	}

	log.Printf("📊 CloudWatch Metrics: ✅ ENABLED (namespace: %s)", namespace)
	return NewClientWithAPI(cloudwatch.NewFromConfig(cfg), environment), nil
}

// NewClientWithAPI wraps an existing CloudWatch API
func NewClientWithAPI(api MetricPutter, environment string) *Client {
	return &Client{
		client:      api,
		enabled:     api != nil,
		environment: environment,
		async:       true,
	}
}

// Enabled reports whether metrics are sent
func (m *Client) Enabled() bool {
	return m.enabled
}

// RecordAPIRequest records an API request metric
func (m *Client) RecordAPIRequest(endpoint string, statusCode int, duration time.Duration) {
	if !m.enabled {
		return
	}

	m.run(func(ctx context.Context) {
		metricName := "APIRequests"
		if statusCode >= httpStatusServerError {
			metricName = "APIErrors"
		}

		dimensions := m.dimensions("Endpoint", endpoint)
		if err := m.putMetric(ctx, metricName, 1, types.StandardUnitCount, dimensions); err != nil {
			log.Printf("Failed to record %s metric: %v", metricName, err)
		}

		latencyMs := float64(duration.Milliseconds())
		if err := m.putMetric(ctx, "APILatency", latencyMs, types.StandardUnitMilliseconds, dimensions); err != nil {
			log.Printf("Failed to record APILatency metric: %v", err)
		}
	})
}

// RecordTimeToFirstToken records upstream latency until the first delta
func (m *Client) RecordTimeToFirstToken(model, variant string, ttft time.Duration) {
	if !m.enabled {
		return
	}

	m.run(func(ctx context.Context) {
		dimensions := m.dimensions("Model", model)
		ms := float64(ttft.Milliseconds())
		if err := m.putMetric(ctx, "TimeToFirstToken", ms, types.StandardUnitMilliseconds, dimensions); err != nil {
			log.Printf("Failed to record TimeToFirstToken metric: %v", err)
		}
	})
}

// RecordVariantOutcome counts variant outcomes and their duration
func (m *Client) RecordVariantOutcome(model, variant, outcome string, duration time.Duration, chars int) {
	if !m.enabled {
		return
	}

	m.run(func(ctx context.Context) {
		dimensions := append(m.dimensions("Model", model), types.Dimension{
			Name:  aws.String("Outcome"),
			Value: aws.String(outcome),
		})

		if err := m.putMetric(ctx, "VariantOutcomes", 1, types.StandardUnitCount, dimensions); err != nil {
			log.Printf("Failed to record VariantOutcomes metric: %v", err)
		}

		durationMs := float64(duration.Milliseconds())
		if err := m.putMetric(ctx, "VariantDuration", durationMs, types.StandardUnitMilliseconds, dimensions); err != nil {
			log.Printf("Failed to record VariantDuration metric: %v", err)
		}

		if outcome == OutcomeDone {
			if err := m.putMetric(ctx, "GreetingLength", float64(chars), types.StandardUnitCount, dimensions); err != nil {
				log.Printf("Failed to record GreetingLength metric: %v", err)
			}
		}
	})
}

func (m *Client) run(fn func(ctx context.Context)) {
	if m.async {
		go fn(context.Background())
		return
	}
	fn(context.Background())
}

func (m *Client) dimensions(name, value string) []types.Dimension {
	return []types.Dimension{
		{
			Name:  aws.String(name),
			Value: aws.String(value),
		},
		{
			Name:  aws.String("Environment"),
			Value: aws.String(m.environment),
		},
	}
}

// putMetric sends a metric to CloudWatch
func (m *Client) putMetric(
	ctx context.Context,
	metricName string,
	value float64,
	unit types.StandardUnit,
	dimensions []types.Dimension,
) error {
	if !m.enabled || m.client == nil {
		return nil
	}

	timeout := time.Duration(cloudwatchTimeoutSeconds) * time.Second
	cwCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := m.client.PutMetricData(cwCtx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(metricName),
				Value:      aws.Float64(value),
				Unit:       unit,
				Timestamp:  aws.Time(time.Now()),
				Dimensions: dimensions,
			},
		},
	})

	return err
}
