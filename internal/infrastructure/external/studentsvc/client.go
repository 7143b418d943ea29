package studentsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/webmasters-learning/receipt-desk/internal/domain/shared"
	"github.com/webmasters-learning/receipt-desk/internal/domain/student"
	"github.com/webmasters-learning/receipt-desk/pkg/circuitbreaker"
	"github.com/webmasters-learning/receipt-desk/pkg/logger"
)

// Endpoint paths on the student service.
const (
	DirectoryPath = "/students/students"
	DetailPath    = "/students/student/"
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 8 << 20

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the student service client.
type ClientConfig struct {
	// BaseURL is the service root, e.g. https://students.example.org
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout bounds a single request.
	Timeout time.Duration

	// Breaker short-circuits calls while the service is failing. Optional.
	Breaker *circuitbreaker.CircuitBreaker

	// HTTPClient overrides the transport. Optional.
	HTTPClient *http.Client

	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Timeout: 15 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client talks to the student-record service. Every call is a single
// attempt: failures are reported to the caller, never retried here.
type Client struct {
	config     ClientConfig
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	mapper     *Mapper
	logger     *logger.Logger
}

var _ student.Source = (*Client)(nil)

// NewClient creates a new student service client.
func NewClient(config ClientConfig) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(config.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("studentsvc: invalid base URL %q", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		config:     config,
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: httpClient,
		breaker:    config.Breaker,
		mapper:     NewMapper(),
		logger:     log.With(logger.Component("studentsvc")),
	}, nil
}

// ListStudents fetches the full directory.
func (c *Client) ListStudents(ctx context.Context) ([]student.Summary, error) {
	var dtos []SummaryDTO
	if err := c.get(ctx, "List", DirectoryPath, &dtos); err != nil {
		return nil, err
	}
	return c.mapper.SummariesFromDTO(dtos), nil
}

// GetStudent fetches one student's detail record.
func (c *Client) GetStudent(ctx context.Context, id string) (*student.Detail, error) {
	var dto DetailDTO
	if err := c.get(ctx, "Get", DetailPath+url.PathEscape(id), &dto); err != nil {
		return nil, err
	}
	detail, err := c.mapper.DetailFromDTO(&dto, id)
	if err != nil {
		return nil, shared.WrapError("student", "Get", shared.ErrStudentServiceBadPayload, "invalid response from student service", err)
	}
	return detail, nil
}

// Ping reports whether the service answers the directory endpoint at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+DirectoryPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("student service status %d", resp.StatusCode)
	}
	return nil
}

// get issues one GET through the breaker and decodes the JSON body.
func (c *Client) get(ctx context.Context, op, path string, result any) error {
	call := func(ctx context.Context) error {
		return c.doRequest(ctx, op, path, result)
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return shared.WrapError("student", op, shared.ErrStudentServiceDown, "student service is unavailable", err)
	}
	return err
}

func (c *Client) doRequest(ctx context.Context, op, path string, result any) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	c.logger.Debug("student service request", logger.Operation(op), logger.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return shared.WrapError("student", op, shared.ErrStudentServiceTimeout, "student service request timeout", err)
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		return shared.WrapError("student", op, shared.ErrStudentServiceDown, "student service is unavailable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return shared.WrapError("student", op, shared.ErrStudentServiceDown, "read response", err)
	}

	c.logger.Debug("student service response",
		logger.Operation(op),
		logger.Int("status", resp.StatusCode),
		logger.Latency(time.Since(start)),
	)

	if resp.StatusCode == http.StatusNotFound {
		return shared.WrapError("student", op, shared.ErrStudentNotFound, "student not found", &APIErrorDTO{Status: resp.StatusCode})
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIErrorDTO{Status: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return shared.WrapError("student", op, shared.ErrStudentServiceDown, "student service error", apiErr)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return shared.WrapError("student", op, shared.ErrStudentServiceBadPayload, "invalid response from student service", err)
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
