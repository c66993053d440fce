package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	apperrors "github.com/dominica-news/feedback/pkg/errors"
	"github.com/dominica-news/feedback/pkg/logging"
)

// ReportContext carries free-form metadata alongside a reported error.
type ReportContext struct {
	Component string                 `json:"component,omitempty"`
	Action    string                 `json:"action,omitempty"`
	URL       string                 `json:"url,omitempty"`
	UserID    string                 `json:"userId,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// Payload is the wire format of POST /api/errors/report.
type Payload struct {
	Message   string                 `json:"message"`
	Stack     string                 `json:"stack"`
	Timestamp string                 `json:"timestamp"`
	UserAgent string                 `json:"userAgent"`
	URL       string                 `json:"url"`
	UserID    string                 `json:"userId"`
	Context   map[string]interface{} `json:"context"`
	ErrorID   string                 `json:"errorId"`
}

// ReporterConfig locates the report sink.
type ReporterConfig struct {
	BaseURL   string
	AuthToken string
	UserAgent string
	Timeout   time.Duration
}

// Reporter submits error reports to the backend, best effort. Callers
// that need durability across connectivity loss pair it with an
// OfflineQueue.
type Reporter struct {
	config ReporterConfig
	client *http.Client
	logger *logging.Logger
}

// NewReporter creates a reporter.
func NewReporter(config ReporterConfig) *Reporter {
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "dominica-feedback/1.0"
	}
	return &Reporter{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logging.GetLogger(),
	}
}

// Report submits one error. The response body is not consumed beyond
// the status code.
func (r *Reporter) Report(ctx context.Context, reportErr error, reportCtx ReportContext) error {
	errorID := NewErrorID()

	payload := Payload{
		Message:   errorMessage(reportErr),
		Stack:     fmt.Sprintf("%+v", reportErr),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		UserAgent: r.config.UserAgent,
		URL:       reportCtx.URL,
		UserID:    reportCtx.UserID,
		Context:   contextMap(reportCtx),
		ErrorID:   errorID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewInternalError("failed to encode error report").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.BaseURL+"/api/errors/report", bytes.NewReader(body))
	if err != nil {
		return apperrors.NewInternalError("failed to create report request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.config.AuthToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return apperrors.NewReportError(errorID, "report submission failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apperrors.NewReportError(errorID, fmt.Sprintf("report rejected with status %d", resp.StatusCode))
	}

	r.logger.LogReportEvent(ctx, "report_submitted", errorID, "", nil)
	return nil
}

const base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewErrorID formats a report identifier as
// err_<epoch-ms>_<9-char-random-base36>.
func NewErrorID() string {
	random := make([]byte, 9)
	for i := range random {
		random[i] = base36Chars[rand.Intn(len(base36Chars))]
	}
	return fmt.Sprintf("err_%d_%s", time.Now().UnixMilli(), random)
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func contextMap(reportCtx ReportContext) map[string]interface{} {
	out := make(map[string]interface{}, len(reportCtx.Extra)+2)
	for k, v := range reportCtx.Extra {
		out[k] = v
	}
	if reportCtx.Component != "" {
		out["component"] = reportCtx.Component
	}
	if reportCtx.Action != "" {
		out["action"] = reportCtx.Action
	}
	return out
}
