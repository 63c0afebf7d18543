package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// DefaultHPOBaseURL is the NLM Clinical Tables HPO search endpoint
const DefaultHPOBaseURL = "https://clinicaltables.nlm.nih.gov/api/hpo/v3/search"

// HPOClientConfig represents configuration for the HPO search client
type HPOClientConfig struct {
	BaseURL    string        `json:"base_url"`
	Timeout    time.Duration `json:"timeout"`
	RateLimit  int           `json:"rate_limit"` // requests per second
	RetryCount int           `json:"retry_count"`
}

// HPOClient resolves HPO identifiers through the Clinical Tables search API
type HPOClient struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	retryCount int
	logger     *logrus.Logger
}

// NewHPOClient creates a new HPO search client
func NewHPOClient(config HPOClientConfig, logger *logrus.Logger) *HPOClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultHPOBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "HPO",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker changed state")
		},
	})

	return &HPOClient{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		breaker:    breaker,
		retryCount: config.RetryCount,
		logger:     logger,
	}
}

// ResolveName returns the label of an HPO term, or an empty name when the
// service does not know the identifier.
func (c *HPOClient) ResolveName(ctx context.Context, hpoID string) (string, error) {
	hpoID = strings.TrimSpace(hpoID)
	if hpoID == "" {
		return "", fmt.Errorf("HPO identifier cannot be empty")
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.searchWithRetry(ctx, hpoID)
	})
	if err != nil {
		return "", fmt.Errorf("HPO lookup for %s: %w", hpoID, err)
	}

	return result.(string), nil
}

func (c *HPOClient) searchWithRetry(ctx context.Context, hpoID string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 200 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		name, retryable, err := c.search(ctx, hpoID)
		if err == nil {
			return name, nil
		}
		lastErr = err
		if !retryable {
			break
		}

		c.logger.WithFields(logrus.Fields{
			"hpo_term": hpoID,
			"attempt":  attempt + 1,
			"error":    err.Error(),
		}).Debug("Retrying HPO lookup")
	}
	return "", lastErr
}

// search issues one request. The response is the Clinical Tables array
// [total, codes, extra, display]; display rows hold the requested df fields.
func (c *HPOClient) search(ctx context.Context, hpoID string) (string, bool, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return "", false, fmt.Errorf("rate limit wait failed: %w", err)
	}

	params := url.Values{
		"terms": {hpoID},
		"df":    {"name"},
		"sf":    {"id"},
		"cf":    {"id"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ctx.Err() == nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
			fmt.Errorf("HPO API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("failed to read response: %w", err)
	}

	name, err := parseSearchResponse(body)
	if err != nil {
		return "", false, err
	}
	return name, false, nil
}

func parseSearchResponse(body []byte) (string, error) {
	var payload []json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(payload) < 4 {
		return "", fmt.Errorf("unexpected response shape: %d elements", len(payload))
	}

	var codes []string
	if err := json.Unmarshal(payload[1], &codes); err != nil {
		return "", fmt.Errorf("failed to parse codes: %w", err)
	}
	if len(codes) == 0 {
		return "", nil
	}

	var display [][]string
	if err := json.Unmarshal(payload[3], &display); err != nil {
		return "", fmt.Errorf("failed to parse display fields: %w", err)
	}
	if len(display) == 0 || len(display[0]) == 0 {
		return "", nil
	}

	return display[0][0], nil
}
