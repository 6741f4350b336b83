// Package client provides an HTTP client for the manual service backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/manualdesk/internal/metrics"
	"github.com/raphaelgruber/manualdesk/internal/models"
	"github.com/tidwall/gjson"
)

// Operation names used in errors, logs and metrics.
const (
	opChat        = metrics.OpChat
	opUpload      = metrics.OpUpload
	opList        = metrics.OpListFiles
	opDelete      = metrics.OpDelete
	opDownload    = metrics.OpDownload
	opSummarize   = metrics.OpSummarize
	opHealth      = metrics.OpHealth
	opBrands      = metrics.OpBrands
	opModels      = metrics.OpModels
	opClearMemory = metrics.OpClearMemory
)

// slowRequestThreshold is the duration above which calls are logged at WARN level.
const slowRequestThreshold = 5 * time.Second

// Timeouts are the per-operation ceilings. Every call applies its own.
type Timeouts struct {
	Chat     time.Duration
	Upload   time.Duration
	List     time.Duration
	Delete   time.Duration
	Download time.Duration
	Summary  time.Duration
	Meta     time.Duration // health, brands, models
}

// DefaultTimeouts returns the stock ceilings. Uploads get five minutes
// because the backend extracts and embeds the document before answering.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Chat:     2 * time.Minute,
		Upload:   5 * time.Minute,
		List:     10 * time.Second,
		Delete:   time.Minute,
		Download: 30 * time.Second,
		Summary:  time.Minute,
		Meta:     10 * time.Second,
	}
}

// Options configures a Client. Zero values select defaults.
type Options struct {
	Timeouts   Timeouts
	HTTPClient *http.Client
	Metrics    *metrics.Collector
	Logger     *slog.Logger
}

// Client talks to the manual service REST API. It never retries or caches.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeouts   Timeouts
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// New creates a new API client.
// If baseURL is empty, uses MANUALDESK_API_URL env var or defaults to localhost:5000/api.
func New(baseURL string, opts Options) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("MANUALDESK_API_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:5000/api"
	}

	t := opts.Timeouts
	def := DefaultTimeouts()
	for _, pair := range []struct{ dst, def *time.Duration }{
		{&t.Chat, &def.Chat}, {&t.Upload, &def.Upload}, {&t.List, &def.List},
		{&t.Delete, &def.Delete}, {&t.Download, &def.Download},
		{&t.Summary, &def.Summary}, {&t.Meta, &def.Meta},
	} {
		if *pair.dst <= 0 {
			*pair.dst = *pair.def
		}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		// No client-wide timeout: each operation sets its own deadline.
		httpClient = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := opts.Metrics
	if collector == nil {
		collector = metrics.NewCollector()
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		timeouts:   t,
		metrics:    collector,
		logger:     logger,
	}
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Metrics returns the collector that records this client's calls.
func (c *Client) Metrics() *metrics.Collector {
	return c.metrics
}

// request describes one backend call.
type request struct {
	op          string
	method      string
	path        string
	timeout     time.Duration
	body        io.Reader
	contentType string
}

// send issues the request under its own deadline. The returned release
// function closes the body and cancels the deadline.
func (c *Client) send(ctx context.Context, r request) (*http.Response, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, r.body)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	c.logger.Debug("backend request", "op", r.op, "method", r.method, "path", r.path, "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, nil, classifyTransport(r.op, err)
	}
	return resp, func() {
		resp.Body.Close()
		cancel()
	}, nil
}

// exchange sends the request and reads the whole response body.
func (c *Client) exchange(ctx context.Context, r request) (int, []byte, error) {
	resp, release, err := c.send(ctx, r)
	if err != nil {
		return 0, nil, err
	}
	defer release()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, classifyTransport(r.op, err)
	}
	return resp.StatusCode, body, nil
}

// observe records the outcome of an operation in metrics and logs.
func (c *Client) observe(op string, start time.Time, n int64, err error) {
	duration := time.Since(start)
	c.metrics.RecordTransfer(op, duration, n, err != nil)

	attrs := []any{"op", op, "duration_ms", duration.Milliseconds()}
	switch {
	case err != nil:
		attrs = append(attrs, "kind", KindOf(err).String(), "error", err.Error())
		c.logger.Warn("backend call failed", attrs...)
	case duration > slowRequestThreshold:
		c.logger.Warn("slow backend call", attrs...)
	default:
		c.logger.Debug("backend call completed", attrs...)
	}
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return bytes.NewReader(data), nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// =============================================================================
// CHAT
// =============================================================================

// ChatContext is the continuation state sent with a chat turn.
type ChatContext struct {
	AwaitingClarification bool            `json:"awaiting_clarification"`
	Conversation          json.RawMessage `json:"conversation"`
	SourceLanguage        string          `json:"source_language"`
}

// ChatRequest is the payload of POST /chat.
type ChatRequest struct {
	Message          string       `json:"message"`
	Language         string       `json:"language"`
	ResponseLanguage string       `json:"responseLanguage"`
	Brand            string       `json:"brand,omitempty"`
	Model            string       `json:"model,omitempty"`
	Context          *ChatContext `json:"context,omitempty"`
}

// Source is a manual passage the backend cited in an answer.
type Source struct {
	Filename string            `json:"filename"`
	Brand    string            `json:"brand,omitempty"`
	Model    string            `json:"model,omitempty"`
	Page     models.FlexString `json:"page,omitempty"`
}

// ChatResponse is the reply to a chat turn. Fields the client does not
// interpret are kept in Raw.
type ChatResponse struct {
	Response              string          `json:"response"`
	AwaitingClarification bool            `json:"awaiting_clarification"`
	Conversation          json.RawMessage `json:"conversation"`
	Sources               []Source        `json:"sources,omitempty"`
	Raw                   json.RawMessage `json:"-"`
}

// Context returns the continuation state to replay on the next turn.
func (r *ChatResponse) Context() models.ConversationContext {
	return models.ConversationContext{
		AwaitingClarification: r.AwaitingClarification,
		Conversation:          r.Conversation,
	}
}

// SendMessage sends one chat turn.
func (c *Client) SendMessage(ctx context.Context, in ChatRequest) (_ *ChatResponse, err error) {
	start := time.Now()
	defer func() { c.observe(opChat, start, 0, err) }()

	if in.Language == "" {
		in.Language = "en"
	}
	if in.ResponseLanguage == "" {
		in.ResponseLanguage = in.Language
	}
	if in.Context != nil {
		cc := *in.Context
		if cc.SourceLanguage == "" {
			cc.SourceLanguage = in.Language
		}
		if len(cc.Conversation) == 0 {
			cc.Conversation = models.EmptyConversation
		}
		in.Context = &cc
	}

	body, err := jsonBody(in)
	if err != nil {
		return nil, err
	}
	status, data, err := c.exchange(ctx, request{
		op: opChat, method: http.MethodPost, path: "/chat",
		timeout: c.timeouts.Chat, body: body, contentType: "application/json",
	})
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, statusError(opChat, status, data, "")
	}

	var out ChatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &Error{Kind: KindServer, Op: opChat, Message: "Invalid response from server.", Status: status, Err: err}
	}
	out.Raw = data
	return &out, nil
}

// =============================================================================
// UPLOAD
// =============================================================================

// UploadResponse is the backend's answer to a successful upload.
type UploadResponse struct {
	Success     bool              `json:"success"`
	FileID      string            `json:"file_id"`
	Filename    string            `json:"filename"`
	Brand       string            `json:"brand,omitempty"`
	Model       string            `json:"model,omitempty"`
	ProductType string            `json:"product_type,omitempty"`
	Year        models.FlexString `json:"year,omitempty"`
	Language    string            `json:"language,omitempty"`
	Timestamp   models.Millis     `json:"timestamp"`
	Message     string            `json:"message"`
	Cached      bool              `json:"cached,omitempty"`
}

// ValidateUpload checks the extension and size limits that are enforced
// before any upload request is made.
func ValidateUpload(filename string, size int64) error {
	if !models.IsAllowedExtension(models.UploadDraft{Filename: filename}.Extension()) {
		return validationError(opUpload, "Unsupported file type. Allowed types: "+strings.Join(models.AllowedExtensions, ", "))
	}
	if size > models.MaxUploadSize {
		return validationError(opUpload, "File size exceeds 16MB limit")
	}
	return nil
}

// UploadFile uploads a manual with its metadata as multipart form data.
func (c *Client) UploadFile(ctx context.Context, draft models.UploadDraft, meta models.UploadMetadata) (_ *UploadResponse, err error) {
	start := time.Now()
	var sent int64
	defer func() { c.observe(opUpload, start, sent, err) }()

	if err := ValidateUpload(draft.Filename, draft.Size); err != nil {
		return nil, err
	}
	if draft.Body == nil {
		return nil, validationError(opUpload, "Please select a file to upload")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", draft.Filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	// Read one byte past the limit so a reader larger than its declared
	// size is still caught locally.
	n, err := io.Copy(part, io.LimitReader(draft.Body, models.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", draft.Filename, err)
	}
	if n > models.MaxUploadSize {
		return nil, validationError(opUpload, "File size exceeds 16MB limit")
	}
	fields := meta.Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}
	sent = n

	status, data, err := c.exchange(ctx, request{
		op: opUpload, method: http.MethodPost, path: "/upload",
		timeout: c.timeouts.Upload, body: &buf, contentType: mw.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}

	if status == http.StatusConflict {
		if dup := gjson.GetBytes(data, "duplicate_info"); dup.IsObject() {
			info := duplicateInfo(dup)
			if info.Filename == "" {
				info.Filename = draft.Filename
			}
			return nil, &Error{
				Kind:      KindConflict,
				Op:        opUpload,
				Message:   DuplicateMessage(info.Filename, info.Brand, info.Model, info.UploadDate),
				Status:    status,
				Duplicate: &info,
			}
		}
		e := statusError(opUpload, status, data, "Upload failed")
		e.Kind = KindConflict
		return nil, e
	}
	if !isSuccess(status) {
		return nil, statusError(opUpload, status, data, "Upload failed")
	}

	var out UploadResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &Error{Kind: KindServer, Op: opUpload, Message: "Upload failed: invalid response from server", Status: status, Err: err}
	}
	if !out.Success {
		msg := gjson.GetBytes(data, "error").String()
		if msg == "" {
			msg = "Upload failed"
		}
		return nil, &Error{Kind: KindServer, Op: opUpload, Message: msg, Status: status}
	}
	return &out, nil
}

// duplicateInfo reads the fields of a 409 body one by one, so an upload date
// in an unknown format only loses the date.
func duplicateInfo(dup gjson.Result) DuplicateInfo {
	info := DuplicateInfo{
		Filename: dup.Get("filename").String(),
		Brand:    dup.Get("brand").String(),
		Model:    dup.Get("model").String(),
		FileID:   dup.Get("file_id").String(),
	}
	switch date := dup.Get("upload_date"); date.Type {
	case gjson.Number:
		info.UploadDate = models.Millis(date.Int())
	case gjson.String:
		if m, err := models.ParseMillis(date.String()); err == nil {
			info.UploadDate = m
		}
	}
	return info
}

// =============================================================================
// LISTING
// =============================================================================

// ListFiles returns the manuals known to the backend. A timeout, 404 or 500
// yields an empty list and no error: "no manuals" and "could not ask" are
// displayed the same way.
func (c *Client) ListFiles(ctx context.Context) (_ []models.ManualFile, err error) {
	start := time.Now()
	defer func() { c.observe(opList, start, 0, err) }()

	empty := []models.ManualFile{}

	status, data, err := c.exchange(ctx, request{
		op: opList, method: http.MethodGet, path: "/files", timeout: c.timeouts.List,
	})
	if err != nil {
		if KindOf(err) == KindTimeout {
			c.logger.Warn("listing timed out, assuming no manuals exist")
			return empty, nil
		}
		return nil, err
	}
	if status == http.StatusNotFound || status == http.StatusInternalServerError {
		c.logger.Warn("listing failed on server, assuming no manuals exist", "status", status)
		return empty, nil
	}
	if !isSuccess(status) {
		return nil, statusError(opList, status, data, "Failed to load manuals")
	}

	if !gjson.ValidBytes(data) {
		return nil, &Error{Kind: KindServer, Op: opList, Message: "Failed to load manuals: invalid response from server", Status: status}
	}
	// Older backends wrap the list in {"files": [...]}.
	list := gjson.ParseBytes(data)
	if !list.IsArray() {
		list = list.Get("files")
	}
	if !list.IsArray() {
		return empty, nil
	}

	var files []models.ManualFile
	if err := json.Unmarshal([]byte(list.Raw), &files); err != nil {
		return nil, &Error{Kind: KindServer, Op: opList, Message: "Failed to load manuals: invalid response from server", Status: status, Err: err}
	}
	if files == nil {
		files = empty
	}
	return files, nil
}

// =============================================================================
// DELETE
// =============================================================================

// APIResponse is the generic {success, message} envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DeleteFile deletes a manual by file ID.
func (c *Client) DeleteFile(ctx context.Context, fileID string) (_ *APIResponse, err error) {
	start := time.Now()
	defer func() { c.observe(opDelete, start, 0, err) }()

	if strings.TrimSpace(fileID) == "" {
		return nil, localStateError(opDelete, "Cannot delete: Invalid file ID")
	}

	status, data, err := c.exchange(ctx, request{
		op: opDelete, method: http.MethodDelete, path: "/files/" + url.PathEscape(fileID),
		timeout: c.timeouts.Delete,
	})
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, statusError(opDelete, status, data, "")
	}

	var out APIResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &Error{Kind: KindServer, Op: opDelete, Message: "Invalid response from server.", Status: status, Err: err}
	}
	if !out.Success {
		msg := backendMessage(data)
		if msg == "" {
			msg = "Delete failed"
		}
		return nil, &Error{Kind: KindServer, Op: opDelete, Message: msg, Status: status}
	}
	return &out, nil
}

// =============================================================================
// DOWNLOAD
// =============================================================================

// DownloadFile streams the named manual into w and returns the byte count.
// Error responses may carry a JSON body; its message is surfaced when present.
func (c *Client) DownloadFile(ctx context.Context, filename string, w io.Writer) (n int64, err error) {
	start := time.Now()
	defer func() { c.observe(opDownload, start, n, err) }()

	resp, release, err := c.send(ctx, request{
		op: opDownload, method: http.MethodGet, path: "/download/" + url.PathEscape(filename),
		timeout: c.timeouts.Download,
	})
	if err != nil {
		return 0, err
	}
	defer release()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		msg := backendMessage(data)
		if msg == "" {
			msg = "Download failed. Please try again."
		}
		return 0, &Error{
			Kind:    KindServer,
			Op:      opDownload,
			Message: msg,
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("%s returned %d", opDownload, resp.StatusCode),
		}
	}

	n, err = io.Copy(w, resp.Body)
	if err != nil {
		return n, classifyTransport(opDownload, err)
	}
	return n, nil
}

// =============================================================================
// SUMMARIZE
// =============================================================================

// SummaryMessage is one line of a conversation sent for summarization.
type SummaryMessage struct {
	Text   string        `json:"text"`
	Sender models.Sender `json:"sender"`
}

// Summarize asks the backend to summarize a conversation for a support ticket.
func (c *Client) Summarize(ctx context.Context, messages []SummaryMessage) (_ string, err error) {
	start := time.Now()
	defer func() { c.observe(opSummarize, start, 0, err) }()

	body, err := jsonBody(map[string]any{
		"messages": messages,
		"context":  "support_ticket",
	})
	if err != nil {
		return "", err
	}
	status, data, err := c.exchange(ctx, request{
		op: opSummarize, method: http.MethodPost, path: "/summarize",
		timeout: c.timeouts.Summary, body: body, contentType: "application/json",
	})
	if err != nil {
		return "", err
	}
	if !isSuccess(status) {
		return "", statusError(opSummarize, status, data, "")
	}
	return gjson.GetBytes(data, "summary").String(), nil
}

// =============================================================================
// METADATA
// =============================================================================

// HealthStatus is the backend health report.
type HealthStatus struct {
	Status       string  `json:"status"`
	Model        string  `json:"model"`
	Timestamp    float64 `json:"timestamp"`
	HasDocuments bool    `json:"has_documents"`
}

// Health checks that the backend is up.
func (c *Client) Health(ctx context.Context) (_ *HealthStatus, err error) {
	start := time.Now()
	defer func() { c.observe(opHealth, start, 0, err) }()

	status, data, err := c.exchange(ctx, request{
		op: opHealth, method: http.MethodGet, path: "/health", timeout: c.timeouts.Meta,
	})
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, statusError(opHealth, status, data, "")
	}
	var out HealthStatus
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &Error{Kind: KindServer, Op: opHealth, Message: "Invalid response from server.", Status: status, Err: err}
	}
	return &out, nil
}

// Brands lists the distinct brands of uploaded manuals.
func (c *Client) Brands(ctx context.Context) (_ []string, err error) {
	start := time.Now()
	defer func() { c.observe(opBrands, start, 0, err) }()
	return c.stringList(ctx, opBrands, "/brands", "brands")
}

// Models lists the distinct models, optionally restricted to one brand.
func (c *Client) Models(ctx context.Context, brand string) (_ []string, err error) {
	start := time.Now()
	defer func() { c.observe(opModels, start, 0, err) }()

	path := "/models"
	if brand != "" {
		path += "?brand=" + url.QueryEscape(brand)
	}
	return c.stringList(ctx, opModels, path, "models")
}

func (c *Client) stringList(ctx context.Context, op, path, field string) ([]string, error) {
	status, data, err := c.exchange(ctx, request{
		op: op, method: http.MethodGet, path: path, timeout: c.timeouts.Meta,
	})
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, statusError(op, status, data, "")
	}
	out := []string{}
	for _, v := range gjson.GetBytes(data, field).Array() {
		out = append(out, v.String())
	}
	return out, nil
}

// ClearMemory asks the backend to forget its conversation memory.
func (c *Client) ClearMemory(ctx context.Context) (_ *APIResponse, err error) {
	start := time.Now()
	defer func() { c.observe(opClearMemory, start, 0, err) }()

	status, data, err := c.exchange(ctx, request{
		op: opClearMemory, method: http.MethodPost, path: "/clear-memory", timeout: c.timeouts.Chat,
	})
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, statusError(opClearMemory, status, data, "")
	}
	var out APIResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &Error{Kind: KindServer, Op: opClearMemory, Message: "Invalid response from server.", Status: status, Err: err}
	}
	return &out, nil
}
