// Package fakebackend is an in-memory implementation of the manual service
// HTTP API. Tests use it as a stand-in for the real backend; the
// manualdesk-fake-backend command serves it for local development.
package fakebackend

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/raphaelgruber/manualdesk/internal/models"
)

// Route names accepted by Inject, SetDelay and Calls.
const (
	RouteChat        = "chat"
	RouteUpload      = "upload"
	RouteFiles       = "files"
	RouteDelete      = "delete"
	RouteDownload    = "download"
	RouteSummarize   = "summarize"
	RouteHealth      = "health"
	RouteBrands      = "brands"
	RouteModels      = "models"
	RouteClearMemory = "clear-memory"
)

const maxUploadSize = models.MaxUploadSize

// ChatFunc produces the reply to a chat request.
type ChatFunc func(req ChatRequest) ChatReply

// ChatRequest is the decoded body of POST /chat.
type ChatRequest struct {
	Message          string       `json:"message"`
	Language         string       `json:"language"`
	ResponseLanguage string       `json:"responseLanguage"`
	Brand            string       `json:"brand"`
	Model            string       `json:"model"`
	Context          *ChatContext `json:"context"`
}

// ChatContext is the continuation state a client sends with a chat turn.
type ChatContext struct {
	AwaitingClarification bool            `json:"awaiting_clarification"`
	Conversation          json.RawMessage `json:"conversation"`
	SourceLanguage        string          `json:"source_language"`
}

// ChatReply is the body returned from POST /chat.
type ChatReply struct {
	Response              string          `json:"response"`
	AwaitingClarification bool            `json:"awaiting_clarification"`
	Conversation          json.RawMessage `json:"conversation"`
}

// Injection is a canned response served instead of the real handler.
type Injection struct {
	Status int
	Body   string
	// Hang blocks until the client gives up. Used to provoke timeouts.
	Hang bool
}

type storedFile struct {
	meta    models.ManualFile
	content []byte
}

// Options configures a Server.
type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
	Chat   ChatFunc
}

// Server is the fake backend. It is safe for concurrent use.
type Server struct {
	router *mux.Router
	logger *slog.Logger
	now    func() time.Time
	chat   ChatFunc

	mu         sync.Mutex
	files      map[string]*storedFile
	inject     map[string][]Injection
	delays     map[string]time.Duration
	calls      map[string]int
	requestIDs []string
}

// New creates a fake backend with an empty manual store.
func New(opts Options) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: opts.Logger,
		now:    opts.Now,
		chat:   opts.Chat,
		files:  make(map[string]*storedFile),
		inject: make(map[string][]Injection),
		delays: make(map[string]time.Duration),
		calls:  make(map[string]int),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.chat == nil {
		s.chat = echoChat
	}
	s.setupRoutes()
	return s
}

// setupRoutes registers the API under /api.
func (s *Server) setupRoutes() {
	s.router.Use(loggingMiddleware(s.logger))
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/chat", s.wrap(RouteChat, s.chatHandler)).Methods(http.MethodPost)
	api.HandleFunc("/upload", s.wrap(RouteUpload, s.uploadHandler)).Methods(http.MethodPost)
	api.HandleFunc("/files", s.wrap(RouteFiles, s.filesHandler)).Methods(http.MethodGet)
	api.HandleFunc("/files/{file_id}", s.wrap(RouteDelete, s.deleteHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/download/{filename}", s.wrap(RouteDownload, s.downloadHandler)).Methods(http.MethodGet)
	api.HandleFunc("/summarize", s.wrap(RouteSummarize, s.summarizeHandler)).Methods(http.MethodPost)
	api.HandleFunc("/health", s.wrap(RouteHealth, s.healthHandler)).Methods(http.MethodGet)
	api.HandleFunc("/brands", s.wrap(RouteBrands, s.brandsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/models", s.wrap(RouteModels, s.modelsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/clear-memory", s.wrap(RouteClearMemory, s.clearMemoryHandler)).Methods(http.MethodPost)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// wrap counts the call, applies delays and serves injected responses.
func (s *Server) wrap(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[route]++
		s.requestIDs = append(s.requestIDs, r.Header.Get("X-Request-ID"))
		delay := s.delays[route]
		var inj *Injection
		if q := s.inject[route]; len(q) > 0 {
			inj = &q[0]
			s.inject[route] = q[1:]
		}
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if inj != nil {
			if inj.Hang {
				<-r.Context().Done()
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(inj.Status)
			io.WriteString(w, inj.Body)
			return
		}
		h(w, r)
	}
}

// Inject queues canned responses for a route. Each is served once, in order.
func (s *Server) Inject(route string, inj ...Injection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inject[route] = append(s.inject[route], inj...)
}

// SetDelay makes every call to route wait d before being served.
func (s *Server) SetDelay(route string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[route] = d
}

// Calls returns how many requests route has received.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// LastRequestID returns the X-Request-ID of the most recent request.
func (s *Server) LastRequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requestIDs) == 0 {
		return ""
	}
	return s.requestIDs[len(s.requestIDs)-1]
}

// AddFile stores a manual directly, bypassing the upload endpoint.
func (s *Server) AddFile(meta models.ManualFile, content []byte) models.ManualFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if meta.FileID == "" {
		meta.FileID = uuid.NewString()
	}
	if meta.Timestamp == 0 {
		meta.Timestamp = models.MillisFromTime(s.now())
	}
	s.files[meta.FileID] = &storedFile{meta: meta, content: content}
	return meta
}

// Files returns the stored manuals, newest first.
func (s *Server) Files() []models.ManualFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

func (s *Server) listLocked() []models.ManualFile {
	out := make([]models.ManualFile, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, f.meta)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *Server) findByNameLocked(name string) *storedFile {
	for _, f := range s.files {
		if f.meta.Name == name {
			return f
		}
	}
	return nil
}

// =============================================================================
// HANDLERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "No message provided")
		return
	}
	writeJSON(w, http.StatusOK, s.chat(req))
}

// echoChat answers every question by restating it and records the turn in
// the conversation.
func echoChat(req ChatRequest) ChatReply {
	var turns []json.RawMessage
	if req.Context != nil && len(req.Context.Conversation) > 0 {
		json.Unmarshal(req.Context.Conversation, &turns)
	}
	answer := "You asked: " + req.Message
	if req.Brand != "" || req.Model != "" {
		answer = fmt.Sprintf("[%s %s] %s", req.Brand, req.Model, answer)
	}
	for _, t := range []map[string]string{
		{"role": "user", "content": req.Message},
		{"role": "assistant", "content": answer},
	} {
		raw, _ := json.Marshal(t)
		turns = append(turns, raw)
	}
	conv, _ := json.Marshal(turns)
	return ChatReply{Response: answer, Conversation: conv}
}

func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1024*1024)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	if !models.IsAllowedExtension(filepath.Ext(name)) {
		writeError(w, http.StatusBadRequest, "File type not allowed")
		return
	}
	content, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}
	if len(content) > maxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	productType := r.FormValue("product_type")
	if productType == "" {
		productType = "Unknown"
	}
	language := r.FormValue("language")
	if language == "" {
		language = "en"
	}

	s.mu.Lock()
	if existing := s.findByNameLocked(name); existing != nil {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "File already exists",
			"duplicate_info": map[string]any{
				"filename":    existing.meta.Name,
				"brand":       existing.meta.Brand,
				"model":       existing.meta.Model,
				"upload_date": existing.meta.Timestamp.Time().Format("2006-01-02T15:04:05.000000"),
				"file_id":     existing.meta.FileID,
			},
		})
		return
	}
	meta := models.ManualFile{
		Name:        name,
		FileID:      uuid.NewString(),
		Brand:       r.FormValue("brand"),
		Model:       r.FormValue("model"),
		ProductType: productType,
		Year:        models.FlexString(r.FormValue("year")),
		Language:    language,
		Timestamp:   models.MillisFromTime(s.now()),
	}
	s.files[meta.FileID] = &storedFile{meta: meta, content: content}
	s.mu.Unlock()

	s.logger.Info("fake backend stored manual", "filename", name, "file_id", meta.FileID, "bytes", len(content))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"file_id":   meta.FileID,
		"filename":  meta.Name,
		"brand":     meta.Brand,
		"model":     meta.Model,
		"language":  meta.Language,
		"timestamp": meta.Timestamp,
		"message":   "File uploaded and processed successfully",
	})
}

func (s *Server) filesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Files())
}

func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["file_id"]
	s.mu.Lock()
	f, ok := s.files[id]
	if ok {
		delete(s.files, id)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("File %s deleted successfully", f.meta.Name),
	})
}

func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	s.mu.Lock()
	f := s.findByNameLocked(name)
	var content []byte
	if f != nil {
		content = f.content
	}
	s.mu.Unlock()
	if f == nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

func (s *Server) summarizeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []struct {
			Text   string `json:"text"`
			Sender string `json:"sender"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	var asked []string
	for _, m := range req.Messages {
		if m.Sender == string(models.SenderUser) {
			asked = append(asked, m.Text)
		}
	}
	summary := ""
	if len(asked) > 0 {
		summary = "Customer asked about: " + strings.Join(asked, "; ")
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	has := len(s.files) > 0
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"model":         "fake",
		"timestamp":     float64(s.now().UnixMilli()) / 1000,
		"has_documents": has,
	})
}

func (s *Server) brandsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"brands": s.distinct(func(m models.ManualFile) (string, bool) {
		return m.Brand, true
	})})
}

func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	brand := r.URL.Query().Get("brand")
	writeJSON(w, http.StatusOK, map[string][]string{"models": s.distinct(func(m models.ManualFile) (string, bool) {
		return m.Model, brand == "" || strings.EqualFold(m.Brand, brand)
	})})
}

func (s *Server) distinct(pick func(models.ManualFile) (string, bool)) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, f := range s.Files() {
		v, ok := pick(f)
		if !ok || v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s *Server) clearMemoryHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Conversation memory cleared",
	})
}
