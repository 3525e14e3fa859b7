package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/models"
)

var ErrCircuitOpen = errors.New("collector circuit breaker open")

// CollectorClient loads records from the collector service over HTTP.
type CollectorClient struct {
	baseURL string
	hc      *http.Client
	cb      *circuitBreaker
	backoff time.Duration
}

type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("collector: %d", e.Status)
}

type circuitBreaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	openedAt  time.Time
	cooldown  time.Duration
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{threshold: threshold, cooldown: cooldown}
}

func (c *circuitBreaker) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures < c.threshold {
		return true
	}
	if time.Since(c.openedAt) > c.cooldown {
		c.failures = 0
		c.openedAt = time.Time{}
		return true
	}
	return false
}

func (c *circuitBreaker) success() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
	c.openedAt = time.Time{}
}

func (c *circuitBreaker) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.threshold {
		c.openedAt = time.Now()
	}
}

func NewCollectorClient(cfg config.Config) *CollectorClient {
	return &CollectorClient{
		baseURL: cfg.CollectorBaseURL,
		hc:      &http.Client{Timeout: cfg.RequestTimeout},
		cb:      newCircuitBreaker(cfg.CircuitFailLimit, cfg.CircuitCooldown),
		backoff: 300 * time.Millisecond,
	}
}

func (c *CollectorClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	res, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("collector health: %s", res.Status)
	}
	return nil
}

type recordsPayload struct {
	Records []models.RawRecord `json:"records"`
}

// Load fetches GET {base}/records/{source}, retrying transient failures.
// 4xx answers are not retried.
func (c *CollectorClient) Load(ctx context.Context, source string, _ config.SourceConfig) ([]models.RawRecord, error) {
	if !c.cb.allow() {
		return nil, ErrCircuitOpen
	}

	endpoint := c.baseURL + "/records/" + url.PathEscape(source)
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		out, retry, err := c.fetch(ctx, endpoint)
		if err == nil {
			c.cb.success()
			for i := range out.Records {
				if out.Records[i].Source == "" {
					out.Records[i].Source = source
				}
			}
			return out.Records, nil
		}
		lastErr = err
		if !retry {
			break
		}
		select {
		case <-ctx.Done():
			c.cb.fail()
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * c.backoff):
		}
	}

	c.cb.fail()
	return nil, lastErr
}

func (c *CollectorClient) fetch(ctx context.Context, endpoint string) (recordsPayload, bool, error) {
	var out recordsPayload
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return out, false, err
	}
	res, err := c.hc.Do(req)
	if err != nil {
		return out, true, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return out, res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests,
			&UpstreamError{Status: res.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return out, true, fmt.Errorf("decode collector records: %w", err)
	}
	return out, false, nil
}
