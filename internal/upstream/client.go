package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/edforge/course-player/internal/domain"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Options client construction options
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int // retries apply to idempotent GETs only

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client HTTP implementation of domain.CourseGateway against the upstream LMS API
type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int

	httpClient *http.Client
	logger     *zap.Logger
}

var _ domain.CourseGateway = &Client{}

// New create an upstream API client
func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("upstream: baseURL required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		maxRetries: maxRetries,
		httpClient: hc,
		logger:     logger,
	}, nil
}

type sectionPayload struct {
	ID         int64                 `json:"id"`
	Title      string                `json:"title"`
	OrderIndex int                   `json:"order_index"`
	Lessons    []*domain.LessonModel `json:"lessons"`
}

type structurePayload struct {
	CourseID int64             `json:"course_id"`
	Sections []*sectionPayload `json:"sections"`
}

// FetchCourseLearningStructure implement domain.CourseGateway
func (c *Client) FetchCourseLearningStructure(ctx context.Context, courseID int64) (*domain.CourseCatalog, error) {
	payload := new(structurePayload)
	path := fmt.Sprintf("/courses/%d/learning-structure", courseID)
	if err := c.getJSON(ctx, path, payload); err != nil {
		return nil, err
	}

	catalog := &domain.CourseCatalog{CourseID: payload.CourseID}
	if catalog.CourseID == 0 {
		catalog.CourseID = courseID
	}
	for _, section := range payload.Sections {
		catalog.Sections = append(catalog.Sections, &domain.SectionModel{
			ID:         section.ID,
			Title:      section.Title,
			OrderIndex: section.OrderIndex,
			Lessons:    section.Lessons,
		})
	}
	return catalog, nil
}

// FetchCourseProgress implement domain.CourseGateway
func (c *Client) FetchCourseProgress(ctx context.Context, courseID int64) (*domain.ProgressSummary, error) {
	summary := new(domain.ProgressSummary)
	path := fmt.Sprintf("/courses/%d/progress", courseID)
	if err := c.getJSON(ctx, path, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// FetchLessonDetail implement domain.CourseGateway
func (c *Client) FetchLessonDetail(ctx context.Context, lessonID int64) (*domain.LessonDetail, error) {
	detail := new(domain.LessonDetail)
	path := fmt.Sprintf("/lessons/%d", lessonID)
	if err := c.getJSON(ctx, path, detail); err != nil {
		return nil, err
	}
	if detail.LessonID == 0 {
		detail.LessonID = lessonID
	}
	return detail, nil
}

// CompleteLesson implement domain.CourseGateway. The upstream endpoint is
// idempotent, re-completing an already completed lesson is tolerated.
func (c *Client) CompleteLesson(ctx context.Context, lessonID int64) error {
	path := fmt.Sprintf("/lessons/%d/complete", lessonID)
	return c.postJSON(ctx, path, nil)
}

// CompleteCourse implement domain.CourseGateway
func (c *Client) CompleteCourse(ctx context.Context, courseID int64) (*domain.CourseCompletion, error) {
	completion := new(domain.CourseCompletion)
	path := fmt.Sprintf("/courses/%d/complete", courseID)
	if err := c.postJSON(ctx, path, completion); err != nil {
		return nil, err
	}
	return completion, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt)):
			}
			c.logger.Debug("Retrying upstream request",
				zap.String("url.path", path),
				zap.Int("attempt", attempt),
			)
		}
		lastErr = c.doJSON(ctx, http.MethodGet, path, out)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) postJSON(ctx context.Context, path string, out interface{}) error {
	return c.doJSON(ctx, http.MethodPost, path, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "upstream: build request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	startTime := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "upstream: %s %s", method, path)
	}
	defer func() {
		io.Copy(ioutil.Discard, res.Body)
		res.Body.Close()
	}()

	c.logger.Debug("Upstream request",
		zap.String("http.request.method", method),
		zap.String("url.path", path),
		zap.Int("http.response.status_code", res.StatusCode),
		zap.Duration("time", time.Since(startTime)),
	)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, Code: res.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "upstream: decode %s %s", method, path)
	}
	return nil
}

// StatusError non-2xx upstream response
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (se *StatusError) Error() string {
	return fmt.Sprintf("upstream: %s %s returned %d", se.Method, se.Path, se.Code)
}

func retryable(err error) bool {
	if se, ok := errors.Cause(err).(*StatusError); ok {
		return se.Code >= 500
	}
	if errors.Cause(err) == context.Canceled || errors.Cause(err) == context.DeadlineExceeded {
		return false
	}
	// transport-level failures are worth another try
	return true
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt) * 250 * time.Millisecond
}
