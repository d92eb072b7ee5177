package taskclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
	"golang.org/x/time/rate"
)

type Config struct {
	BaseURL       string
	Token         string
	RatePerSecond float64
	Burst         int
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	Timeout       time.Duration
}

// Client talks to the task service over HTTP. Calls are throttled client-side and retried with
// exponential backoff on transport errors, 429 and 5xx. Conflict, not-found and unprocessable
// responses are expected outcomes and are not reported as errors.
type Client struct {
	logger  *slog.Logger
	http    *http.Client
	baseURL string
	token   string
	limiter *rate.Limiter
	cfg     Config
	sleep   func(ctx context.Context, d time.Duration) error
}

func New(logger *slog.Logger, cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("task service url %q is invalid", cfg.BaseURL)
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		logger:  logger,
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: base.String(),
		token:   cfg.Token,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cfg:     cfg,
		sleep:   sleepCtx,
	}, nil
}

type createTaskRequest struct {
	Task         domain.Task                 `json:"task"`
	Notification *domain.NotificationMessage `json:"notification,omitempty"`
}

func (c *Client) CreateTask(ctx context.Context, task domain.Task, notification *domain.NotificationMessage) error {
	return c.do(ctx, "create_task", http.MethodPost, "/v1/tasks", createTaskRequest{Task: task, Notification: notification})
}

func (c *Client) UpdateTaskStatus(ctx context.Context, update domain.TaskUpdate) error {
	return c.do(ctx, "update_task_status", http.MethodPatch, "/v1/tasks/"+url.PathEscape(update.Reference), update)
}

func (c *Client) Notify(ctx context.Context, notification domain.NotificationMessage) error {
	return c.do(ctx, "notify", http.MethodPost, "/v1/notifications", notification)
}

func (c *Client) do(ctx context.Context, operation, method, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", operation, err)
	}
	delay := c.cfg.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		status, err := c.send(ctx, method, path, payload)
		switch {
		case err == nil && status < 300:
			return nil
		case err == nil && expectedStatus(status):
			c.logger.InfoContext(ctx, "task service reported expected outcome",
				"module", "taskclient",
				"layer", "adapter",
				"operation", operation,
				"outcome", "ignored",
				"status", status,
			)
			return nil
		case err == nil && !retryableStatus(status):
			return fmt.Errorf("task service %s %s: unexpected status %d", method, path, status)
		case err == nil:
			lastErr = fmt.Errorf("task service %s %s: status %d", method, path, status)
		default:
			lastErr = err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}
		c.logger.WarnContext(ctx, "task service call failed, retrying",
			"module", "taskclient",
			"layer", "adapter",
			"operation", operation,
			"outcome", "retry",
			"attempt", attempt,
			"error", lastErr,
		)
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
		if delay > c.cfg.MaxDelay {
			delay = c.cfg.MaxDelay
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrDependencyUnavailable, lastErr)
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func expectedStatus(status int) bool {
	return status == http.StatusNotFound || status == http.StatusConflict || status == http.StatusUnprocessableEntity
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
