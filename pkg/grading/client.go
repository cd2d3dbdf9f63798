// Package grading implements the progressive essay grading client: it
// submits material and answer text, incrementally consumes the server-sent
// event stream of the grading backend, reconciles partial and final payloads
// into a single Result, and silently degrades to a one-shot request whenever
// streaming is unavailable.
package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	gradingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shenlun",
		Subsystem: "grading_client",
		Name:      "duration_seconds",
		Help:      "Duration of grading submissions by outcome path",
	}, []string{"path"})

	gradingFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shenlun",
		Subsystem: "grading_client",
		Name:      "fallbacks_total",
		Help:      "Number of submissions that degraded to the one-shot path",
	})

	gradingFramesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shenlun",
		Subsystem: "grading_client",
		Name:      "frames_skipped_total",
		Help:      "Number of malformed stream frames skipped",
	})
)

// Endpoints of the grading backend, relative to the configured base URL.
const (
	progressivePath = "/api/v1/essays/grade-progressive"
	oneShotPath     = "/api/v1/essays/grade"
)

const (
	defaultStreamTimeout = 2 * time.Minute
	defaultTickInterval  = 400 * time.Millisecond
	interimProgress      = 50
)

// ValidationError reports an empty required input. It is raised before any
// network call is made.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s must not be empty", e.Field)
}

// FailureError is a terminal grading failure carrying the message the user
// should see alongside a retry prompt.
type FailureError struct {
	Message string
}

func (e *FailureError) Error() string {
	return e.Message
}

// errStreamUnavailable marks a streaming setup failure. It never reaches the
// caller; the client recovers by issuing the one-shot request.
var errStreamUnavailable = errors.New("grading stream unavailable")

// Client issues grading submissions against the essay backend.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	logger        zerolog.Logger
	tracer        trace.Tracer
	store         ResultStore
	tracker       *Tracker
	streamTimeout time.Duration
	tickInterval  time.Duration
}

// Option customises client construction.
type Option func(*Client)

// WithHTTPClient overrides the transport used for both request paths.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithLogger attaches a structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithStore persists finalized results after a successful grading.
func WithStore(store ResultStore) Option {
	return func(c *Client) { c.store = store }
}

// WithStreamTimeout bounds how long the client waits on the event stream
// before abandoning it. The backend specifies no terminating behavior for a
// stalled stream, so the client imposes its own bound.
func WithStreamTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.streamTimeout = timeout }
}

// WithTickInterval adjusts the locally ticking progress indicator. A zero or
// negative interval disables it.
func WithTickInterval(interval time.Duration) Option {
	return func(c *Client) { c.tickInterval = interval }
}

// NewClient builds a grading client against the given backend base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{},
		logger:        zerolog.Nop(),
		tracer:        otel.Tracer("github.com/xiaokaoba/shenlun-go-api/pkg/grading"),
		tracker:       NewTracker(),
		streamTimeout: defaultStreamTimeout,
		tickInterval:  defaultTickInterval,
	}

	for _, opt := range opts {
		opt(client)
	}

	client.logger = client.logger.With().Str("component", "grading_client").Logger()

	return client
}

// Tracker exposes the observable progress/status/result state the owning
// view polls while a submission is in flight.
func (c *Client) Tracker() *Tracker {
	return c.tracker
}

// Grade runs the full pipeline for one submission: validate, stream, degrade
// to the one-shot path if streaming never yields a usable frame, persist on
// success. An explicit error stage from the stream is terminal and does not
// trigger the fallback.
func (c *Client) Grade(ctx context.Context, material, answer string) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "grading.grade")
	defer span.End()

	material = strings.TrimSpace(material)
	answer = strings.TrimSpace(answer)
	if material == "" {
		return nil, &ValidationError{Field: "material"}
	}
	if answer == "" {
		return nil, &ValidationError{Field: "answer"}
	}

	c.tracker.Reset()
	content := combineSubmission(material, answer)
	start := time.Now()

	result, err := c.gradeProgressive(ctx, content)
	path := "stream"
	switch {
	case err == nil:
	case errors.Is(err, errStreamUnavailable):
		gradingFallbacks.Inc()
		c.logger.Warn().Msg("streaming path unavailable, degrading to one-shot grading")
		c.tracker.BeginFallback()
		path = "fallback"
		result, err = c.gradeOneShot(ctx, content)
		if err != nil {
			c.tracker.Fail(err.Error())
			span.SetAttributes(attribute.String("grading.path", path))
			return nil, err
		}
	default:
		c.tracker.Fail(err.Error())
		return nil, err
	}

	gradingDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("grading.path", path))

	c.tracker.Complete(result)
	c.persist(ctx, result)

	return result, nil
}

// combineSubmission joins material and answer with the section markers the
// backend prompt templates expect.
func combineSubmission(material, answer string) string {
	return "【题目材料】\n" + material + "\n\n【考生作答】\n" + answer
}

func (c *Client) gradeProgressive(parent context.Context, content string) (*Result, error) {
	ctx, cancel := context.WithTimeout(parent, c.streamTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return nil, errStreamUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+progressivePath, bytes.NewReader(payload))
	if err != nil {
		return nil, errStreamUnavailable
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Msg("stream connection failed")
		return nil, errStreamUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Debug().Int("status", resp.StatusCode).Msg("stream endpoint returned non-success status")
		return nil, errStreamUnavailable
	}

	c.tracker.StartStreaming(c.tickInterval)

	return c.consumeStream(resp.Body)
}

// consumeStream reads the response incrementally, splits it into frames on
// blank lines and applies each parsed event in order. A malformed frame is
// logged and skipped; an explicit error stage stops processing even if more
// frames remain buffered.
func (c *Client) consumeStream(body io.Reader) (*Result, error) {
	var (
		buffer  []byte
		interim *Result
		final   *Result
		usable  bool
	)

	chunk := make([]byte, 4096)
	for {
		n, readErr := body.Read(chunk)
		if n > 0 {
			buffer = append(buffer, chunk[:n]...)

			for {
				idx := bytes.Index(buffer, []byte("\n\n"))
				if idx < 0 {
					break
				}
				frame := buffer[:idx]
				buffer = buffer[idx+2:]

				event, err := parseFrame(frame)
				if err != nil {
					gradingFramesSkipped.Inc()
					c.logger.Warn().Err(err).Msg("skipping malformed stream frame")
					continue
				}

				usable = true
				switch event.stage {
				case stageInterim:
					progress := float64(interimProgress)
					if event.progress != nil {
						progress = *event.progress
					}
					c.tracker.SetRealProgress(progress, "正在进行逐句诊断…")
					interim = buildInterim(event)
					c.tracker.SetPartialResult(interim)
				case stageFinal:
					c.tracker.SetRealProgress(100, "批改完成")
					final = buildFinal(event, interim)
					c.tracker.SetPartialResult(final)
				case stageError:
					message := event.message
					if message == "" {
						message = "批改失败，请稍后重试"
					}
					return nil, &FailureError{Message: message}
				default:
					c.logger.Warn().Msg("ignoring frame with unknown stage")
				}
			}
		}

		if readErr != nil {
			if readErr != io.EOF && !usable {
				c.logger.Debug().Err(readErr).Msg("stream failed before any usable frame")
				return nil, errStreamUnavailable
			}
			break
		}
	}

	if final != nil {
		return final, nil
	}
	if interim != nil {
		// Stream closed without a final stage: the interim state stands as
		// a degraded but acceptable outcome.
		c.logger.Warn().Msg("stream ended without final stage, keeping interim result")
		return interim, nil
	}

	return nil, errStreamUnavailable
}

func (c *Client) gradeOneShot(ctx context.Context, content string) (*Result, error) {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return nil, &FailureError{Message: "服务异常，请稍后再试"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+oneShotPath, bytes.NewReader(payload))
	if err != nil {
		return nil, &FailureError{Message: "服务异常，请稍后再试"}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FailureError{Message: "网络异常，请检查网络后重试"}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FailureError{Message: "网络异常，请检查网络后重试"}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &FailureError{Message: serverMessage(body)}
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &FailureError{Message: "服务返回异常，请稍后再试"}
	}

	result := normalizeResult(raw)
	ensureRubric(&result)

	return &result, nil
}

// serverMessage pulls a user-facing message out of an error response body.
func serverMessage(body []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err == nil {
		if message := toText(firstPresent(payload, "detail", "message")); message != "" {
			return message
		}
	}
	return "批改失败，请检查网络后重试"
}

func (c *Client) persist(ctx context.Context, result *Result) {
	if c.store == nil {
		return
	}

	if err := c.store.SaveLatest(ctx, *result); err != nil {
		c.logger.Warn().Err(err).Msg("failed to persist latest grading result")
	}
	if err := c.store.SaveHandoff(ctx, *result); err != nil {
		c.logger.Warn().Err(err).Msg("failed to persist practice handoff record")
	}
}
