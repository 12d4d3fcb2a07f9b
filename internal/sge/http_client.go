package sge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPClient talks to the SGE bridge over JSON. One call per gateway
// operation; the bridge owns the SGE session lifecycle.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient constructs a gateway client with the given base URL.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// envelope is the bridge's uniform response shape. Exactly one of Data or
// Error is meaningful depending on Success.
type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (c *HTTPClient) call(ctx context.Context, op, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("sge_call",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if !env.Success {
		reason := env.Error
		if reason == "" {
			reason = "operation rejected"
		}
		return &BusinessError{Op: op, Reason: reason}
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("decode payload: %w", err)}
		}
	}
	return nil
}

type sessionRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

func session(creds Credentials) sessionRequest {
	return sessionRequest{User: creds.User, Password: creds.Password}
}

type classScopeRequest struct {
	sessionRequest
	Series    string `json:"series"`
	ClassCode string `json:"class_code"`
	Shift     string `json:"shift"`
	Year      int    `json:"year"`
}

type recordScopeRequest struct {
	classScopeRequest
	SubjectID string `json:"subject_id"`
	Date      string `json:"date"`
}

func recordScope(creds Credentials, ref ClassRef, date time.Time) recordScopeRequest {
	return recordScopeRequest{
		classScopeRequest: classScopeRequest{
			sessionRequest: session(creds),
			Series:         ref.Series,
			ClassCode:      ref.ClassCode,
			Shift:          ref.Shift,
			Year:           ref.Year,
		},
		SubjectID: ref.SubjectID,
		Date:      date.Format("2006-01-02"),
	}
}

// Login implements Client.
func (c *HTTPClient) Login(ctx context.Context, creds Credentials) ([]ClassOption, error) {
	var out struct {
		ClassOptions []ClassOption `json:"class_options"`
	}
	if err := c.call(ctx, "login", "/sge/login", session(creds), &out); err != nil {
		return nil, err
	}
	return out.ClassOptions, nil
}

// ListSubjects implements Client.
func (c *HTTPClient) ListSubjects(ctx context.Context, creds Credentials, series, classCode, shift string, year int) ([]Subject, error) {
	req := classScopeRequest{sessionRequest: session(creds), Series: series, ClassCode: classCode, Shift: shift, Year: year}
	var out struct {
		Subjects []Subject `json:"subjects"`
	}
	if err := c.call(ctx, "list_subjects", "/sge/subjects", req, &out); err != nil {
		return nil, err
	}
	return out.Subjects, nil
}

// ListStudents implements Client.
func (c *HTTPClient) ListStudents(ctx context.Context, creds Credentials, series, classCode, shift string, year int) ([]Student, error) {
	req := classScopeRequest{sessionRequest: session(creds), Series: series, ClassCode: classCode, Shift: shift, Year: year}
	var out struct {
		Students []Student `json:"students"`
	}
	if err := c.call(ctx, "list_students", "/sge/students", req, &out); err != nil {
		return nil, err
	}
	return out.Students, nil
}

// SubmitAttendance implements Client.
func (c *HTTPClient) SubmitAttendance(ctx context.Context, creds Credentials, ref ClassRef, date time.Time, periodCount int, presence map[string]bool) (*SubmitResult, error) {
	req := struct {
		recordScopeRequest
		PeriodCount int             `json:"period_count"`
		Presence    map[string]bool `json:"presence"`
	}{recordScope(creds, ref, date), periodCount, presence}
	var out SubmitResult
	if err := c.call(ctx, "submit_attendance", "/sge/attendance/submit", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckExists implements Client.
func (c *HTTPClient) CheckExists(ctx context.Context, creds Credentials, queries []ExistsQuery) ([]bool, error) {
	type item struct {
		Series    string `json:"series"`
		ClassCode string `json:"class_code"`
		Shift     string `json:"shift"`
		SubjectID string `json:"subject_id"`
		Year      int    `json:"year"`
		Date      string `json:"date"`
		Period    int    `json:"period"`
	}
	req := struct {
		sessionRequest
		Records []item `json:"records"`
	}{sessionRequest: session(creds)}
	for _, q := range queries {
		req.Records = append(req.Records, item{
			Series:    q.Ref.Series,
			ClassCode: q.Ref.ClassCode,
			Shift:     q.Ref.Shift,
			SubjectID: q.Ref.SubjectID,
			Year:      q.Ref.Year,
			Date:      q.Date.Format("2006-01-02"),
			Period:    q.Period,
		})
	}
	var out struct {
		Results []struct {
			Exists bool `json:"exists"`
		} `json:"results"`
	}
	if err := c.call(ctx, "check_exists", "/sge/attendance/exists", req, &out); err != nil {
		return nil, err
	}
	if len(out.Results) != len(queries) {
		return nil, &TransportError{Op: "check_exists", Err: fmt.Errorf("expected %d results, got %d", len(queries), len(out.Results))}
	}
	exists := make([]bool, len(out.Results))
	for i, r := range out.Results {
		exists[i] = r.Exists
	}
	return exists, nil
}

// FetchPeriodDetail implements Client.
func (c *HTTPClient) FetchPeriodDetail(ctx context.Context, creds Credentials, ref ClassRef, date time.Time, period int) ([]PeriodStudent, error) {
	req := struct {
		recordScopeRequest
		Period int `json:"period"`
	}{recordScope(creds, ref, date), period}
	var out struct {
		Students []PeriodStudent `json:"students"`
	}
	if err := c.call(ctx, "fetch_period_detail", "/sge/attendance/period", req, &out); err != nil {
		return nil, err
	}
	return out.Students, nil
}

// DeleteAttendance implements Client.
func (c *HTTPClient) DeleteAttendance(ctx context.Context, creds Credentials, ref ClassRef, date time.Time) error {
	return c.call(ctx, "delete_attendance", "/sge/attendance/delete", recordScope(creds, ref, date), nil)
}
