package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/telchain/backend/internal/config"
	"github.com/telchain/backend/internal/monitoring"
	"github.com/telchain/backend/internal/propagation"
	"github.com/telchain/backend/internal/tracing"
)

// Forwarder issues the next-hop HTTP call. Every call opens a CLIENT span,
// injects the trace envelope into the outgoing headers, and runs behind a
// circuit breaker so a dead downstream stops consuming the hop's resources.
type Forwarder struct {
	client   *resty.Client
	breaker  *gobreaker.CircuitBreaker
	prop     propagation.HTTP
	recorder *tracing.Recorder
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewForwarder creates a forwarder with retry and breaker defaults from cfg.
func NewForwarder(cfg config.HTTPConfig, recorder *tracing.Recorder, metrics *monitoring.Metrics, logger *zap.Logger) *Forwarder {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryCount
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = nil // Disable retryablehttp's own logging

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient}).
		SetHeader("User-Agent", "telchain/1.0")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "chain-forward",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Forwarder{
		client:   client,
		breaker:  breaker,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
	}
}

// Forward calls GET <target>?data=<data> on the next hop and returns its
// decoded JSON body. Network errors, non-2xx statuses, timeouts, and an open
// breaker all surface as an error; the CLIENT span is marked accordingly.
func (f *Forwarder) Forward(ctx context.Context, target, data string) (map[string]any, error) {
	ctx, span := f.recorder.Start(ctx, "http get "+pathOf(target), tracing.KindClient)
	defer span.End()

	span.Tag("http.method", "GET")
	span.Tag("http.url", target)

	headers := http.Header{}
	f.prop.Inject(span.Context, headers)

	start := time.Now()
	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.call(ctx, span, target, data, headers)
	})
	if f.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		f.metrics.RecordForward(target, status, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result.(map[string]any), nil
}

func (f *Forwarder) call(ctx context.Context, span *tracing.Span, target, data string, headers http.Header) (map[string]any, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeaderMultiValues(headers).
		SetQueryParam("data", data).
		Get(target)
	if err != nil {
		return nil, fmt.Errorf("call next service: %w", err)
	}

	span.Tag("http.status_code", strconv.Itoa(resp.StatusCode()))
	if resp.IsError() {
		return nil, fmt.Errorf("next service returned status %d", resp.StatusCode())
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode next service response: %w", err)
	}
	return body, nil
}

func pathOf(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Path == "" {
		return target
	}
	return u.Path
}
