package sensorsafrica

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const (
	// DefaultBaseURL is the production sensors.africa API root.
	DefaultBaseURL = "https://api.sensors.africa/v2"

	timestampQueryLayout = "2006-01-02T15:04:05"
)

// ErrUpstream marks non-success responses from the API.
var ErrUpstream = errors.New("upstream request failed")

// Backoff controls the retry schedule for transient upstream failures.
type Backoff struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Client talks to the sensors.africa measurement API. Requests carry the
// account token and run behind a circuit breaker with exponential backoff
// so one flapping endpoint cannot stall a whole ingestion cycle.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	backoff    Backoff
	breaker    *gobreaker.CircuitBreaker
	log        logrus.FieldLogger
}

// NewClient builds a client. A nil httpClient falls back to a 30 second
// timeout client; a nil logger falls back to the standard logrus logger.
func NewClient(baseURL, token string, httpClient *http.Client, log logrus.FieldLogger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sensorsafrica",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		backoff: Backoff{
			MaxRetries:      2,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		breaker: breaker,
		log:     log.WithField("component", "sensorsafrica_client"),
	}
}

// Measurements fetches historical items for a sensor. A non-nil since
// bound is passed through as timestamp__gte so only newer items return.
func (c *Client) Measurements(ctx context.Context, sensorID int, since *time.Time) ([]Item, error) {
	values := url.Values{}
	values.Set("sensor_id", strconv.Itoa(sensorID))
	if since != nil {
		values.Set("timestamp__gte", since.UTC().Format(timestampQueryLayout))
	}
	return c.get(ctx, "/measurements/", values)
}

// Now fetches the current snapshot for a sensor. The endpoint has no time
// filter; dedupe happens at the persistence boundary instead.
func (c *Client) Now(ctx context.Context, sensorID int) ([]Item, error) {
	values := url.Values{}
	values.Set("sensor_id", strconv.Itoa(sensorID))
	return c.get(ctx, "/now/", values)
}

func (c *Client) get(ctx context.Context, path string, values url.Values) ([]Item, error) {
	requestURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, values.Encode())

	var attempt int
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := c.execute(ctx, requestURL)
		if err == nil {
			return decodeItems(body)
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open: %v", ErrUpstream, err)
		}
		if !retryable(err) || attempt >= c.backoff.MaxRetries {
			return nil, err
		}

		delay := c.backoff.InitialInterval << attempt
		if c.backoff.MaxInterval > 0 && delay > c.backoff.MaxInterval {
			delay = c.backoff.MaxInterval
		}
		c.log.WithFields(logrus.Fields{"attempt": attempt + 1, "delay": delay}).Warnf("retrying upstream request: %v", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}

func (c *Client) execute(ctx context.Context, requestURL string) ([]byte, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Token "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			io.Copy(io.Discard, resp.Body)
			return nil, &statusError{code: resp.StatusCode, status: resp.Status}
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// statusError distinguishes retryable server errors from client errors.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %s", e.status)
}

func (e *statusError) Unwrap() error { return ErrUpstream }

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	// Network-level failures are worth one more try.
	return errors.Is(err, ErrUpstream)
}
