// Package mapper is the HTTP client for the external field-mapping service.
package mapper

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Veraticus/edc-mapper/internal/common"
	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/Veraticus/edc-mapper/internal/service"
)

// Fallback messages used when the service does not say what went wrong.
const (
	FallbackStatus   = "Status check failed"
	FallbackStats    = "Knowledge stats unavailable"
	FallbackActivity = "Recent activity unavailable"
	FallbackTrain    = "Training failed"
	FallbackPredict  = "Prediction failed"
	FallbackValidate = "Validation failed"
	FallbackSave     = "Save failed"
	FallbackExport   = "Export failed"
)

var _ service.MappingService = (*Client)(nil)

// Client talks to the mapping service over HTTP.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTLSConfig sets the TLS configuration of the default transport. It has
// no effect when a custom HTTP client without an *http.Transport is used.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) {
		if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
			transport.TLSClientConfig = cfg
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: mapping service base URL", common.ErrMissingConfig)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%w: base URL: %v", common.ErrInvalidConfig, err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default().With("component", "mapper"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ModelStatus reports which sponsors have a trained model.
func (c *Client) ModelStatus(ctx context.Context, sponsor string) (service.ModelStatus, error) {
	path := "/model_status/"
	if sponsor != "" {
		path += "?" + url.Values{"sponsor": {sponsor}}.Encode()
	}

	var resp modelStatusResponse
	if err := c.getJSON(ctx, "model status", path, &resp); err != nil {
		return service.ModelStatus{}, err
	}

	status := service.ModelStatus{}
	if resp.AvailableSponsors != nil {
		status.Sponsors = *resp.AvailableSponsors
		if status.Sponsors == nil {
			status.Sponsors = []string{}
		}
		status.Available = len(status.Sponsors) > 0
	} else if resp.Available != nil {
		status.Available = *resp.Available
	}
	return status, nil
}

// KnowledgeStats fetches the service's aggregate statistics.
func (c *Client) KnowledgeStats(ctx context.Context) (service.RemoteStats, error) {
	var resp knowledgeStatsResponse
	if err := c.getJSON(ctx, "knowledge stats", "/knowledge_stats/", &resp); err != nil {
		return service.RemoteStats{}, err
	}

	stats := service.RemoteStats{
		Models:   resp.Models,
		Mappings: resp.Mappings,
		Accuracy: resp.Accuracy,
	}
	if resp.LastUpdated != nil {
		if t, ok := parseTimestamp(*resp.LastUpdated); ok {
			stats.LastUpdated = &t
		}
	}
	return stats, nil
}

// RecentActivity fetches the service's activity log, newest first.
func (c *Client) RecentActivity(ctx context.Context) ([]model.ActivityEntry, error) {
	var resp activityResponse
	if err := c.getJSON(ctx, "recent activity", "/recent_activity/", &resp); err != nil {
		return nil, err
	}

	entries := make([]model.ActivityEntry, 0, len(resp.Activities))
	for _, a := range resp.Activities {
		ts, ok := parseTimestamp(a.Time)
		if !ok {
			c.logger.Debug("Unparseable activity timestamp", "time", a.Time)
		}
		entries = append(entries, model.ActivityEntry{
			Type:      model.ActivityType(a.Type),
			Message:   a.Message,
			Timestamp: ts,
		})
	}
	return entries, nil
}

// Train submits the reference and view-mapping documents for a sponsor.
func (c *Client) Train(ctx context.Context, req service.TrainRequest) error {
	body, contentType, err := buildForm(req.Sponsor, map[string]*model.Document{
		"odm":     req.Reference,
		"viewmap": req.ViewMap,
	})
	if err != nil {
		return err
	}
	return c.postForm(ctx, "train", "/train/", body, contentType, FallbackTrain, nil)
}

// Predict submits a test document and returns the partitioned mappings.
func (c *Client) Predict(ctx context.Context, sponsor string, doc *model.Document) (service.PredictResult, error) {
	body, contentType, err := buildForm(sponsor, map[string]*model.Document{"testodm": doc})
	if err != nil {
		return service.PredictResult{}, err
	}

	var resp predictResponse
	if err := c.postForm(ctx, "predict", "/predict/", body, contentType, FallbackPredict, &resp); err != nil {
		return service.PredictResult{}, err
	}

	result := service.PredictResult{Unmapped: resp.Unmapped}
	if resp.Mapped != nil {
		result.Mapped = *resp.Mapped
	} else {
		result.Mapped = resp.Mappings
	}
	return result, nil
}

// Validate submits a user view-mapping document for checking.
func (c *Client) Validate(ctx context.Context, sponsor string, doc *model.Document) (service.ValidateResult, error) {
	body, contentType, err := buildForm(sponsor, map[string]*model.Document{"user_viewmap": doc})
	if err != nil {
		return service.ValidateResult{}, err
	}

	var resp validateResponse
	if err := c.postForm(ctx, "validate", "/validate/", body, contentType, FallbackValidate, &resp); err != nil {
		return service.ValidateResult{}, err
	}

	result := service.ValidateResult{Records: resp.Validation}
	if resp.Summary != nil {
		summary := &model.ValidationSummary{Total: resp.Summary.Total, Wrong: resp.Summary.Wrong}
		if resp.Summary.Accuracy != nil {
			summary.Accuracy = *resp.Summary.Accuracy
		}
		result.Summary = summary
	}
	return result, nil
}

// SaveMappings persists a corrected mapping set for a source document.
func (c *Client) SaveMappings(ctx context.Context, req service.SaveRequest) error {
	if req.Mappings == nil {
		req.Mappings = []model.Mapping{}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal save request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/save_mappings/", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return c.do(httpReq, "save mappings", FallbackSave, nil)
}

// ExportDocument streams the updated document into w.
func (c *Client) ExportDocument(ctx context.Context, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/export_xml/", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug("Requesting updated document")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: export: %v", common.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return 0, &APIError{Operation: "export", StatusCode: resp.StatusCode, Message: serverMessage(body)}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: export stream interrupted: %v", common.ErrUnavailable, err)
	}
	return n, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, op, "", out)
}

func (c *Client) postForm(ctx context.Context, op, path string, body *bytes.Buffer, contentType, fallback string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req, op, fallback, out)
}

// do executes req and decodes a JSON body into out. A non-2xx status, or a
// 2xx body carrying an error field, becomes an *APIError.
func (c *Client) do(req *http.Request, op, fallback string, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrUnavailable, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: failed to read response: %v", common.ErrUnavailable, op, err)
	}

	c.logger.Debug("Mapping service responded",
		"operation", op,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Operation: op, StatusCode: resp.StatusCode, Message: serverMessage(body)}
	}
	if msg := serverMessage(body); msg != "" {
		return &APIError{Operation: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		if fallback == "" {
			return fmt.Errorf("%w: %s: failed to parse response: %v", common.ErrUnavailable, op, err)
		}
		return fmt.Errorf("%s: failed to parse response: %w", fallback, err)
	}
	return nil
}

// buildForm assembles a multipart body with the sponsor field and one file
// part per document, in a stable field order.
func buildForm(sponsor string, docs map[string]*model.Document) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	if err := w.WriteField("sponsor", sponsor); err != nil {
		return nil, "", fmt.Errorf("failed to write sponsor field: %w", err)
	}

	for _, field := range []string{"odm", "viewmap", "testodm", "user_viewmap"} {
		doc, ok := docs[field]
		if !ok {
			continue
		}
		if doc == nil {
			return nil, "", fmt.Errorf("%w: %s", common.ErrMissingDocument, field)
		}
		part, err := w.CreateFormFile(field, doc.Name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file %s: %w", field, err)
		}
		if _, err := part.Write(doc.Content); err != nil {
			return nil, "", fmt.Errorf("failed to write form file %s: %w", field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize form: %w", err)
	}
	return body, w.FormDataContentType(), nil
}
