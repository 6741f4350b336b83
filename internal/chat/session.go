// Package chat implements a chat session with the manual assistant: the
// message log, the clarification context exchanged on every turn, and the
// per-answer feedback flow.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/manualdesk/internal/client"
	"github.com/raphaelgruber/manualdesk/internal/models"
)

var (
	// ErrEmptyMessage is returned when submitting blank text.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrBusy is returned when submitting while a reply is outstanding.
	ErrBusy = errors.New("waiting for a response")

	// ErrUnknownMessage is returned for feedback on a message that does not
	// exist or does not accept feedback.
	ErrUnknownMessage = errors.New("no such message")

	// ErrFeedbackSubmitted is returned when feedback was already given.
	ErrFeedbackSubmitted = errors.New("feedback already submitted")

	// ErrNoPendingFeedback is returned when completing feedback that was
	// never started.
	ErrNoPendingFeedback = errors.New("no feedback in progress")

	// ErrInvalidRating is returned for ratings outside 1 to 5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// Texts produced by the session itself.
const (
	ErrorReply         = "Sorry, I encountered an error while processing your request. Please try again."
	NothingToSummarize = "No conversation to summarize."
	SummaryUnavailable = "Unable to generate summary."
)

// State is the request state of a session.
type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
)

// Backend is the subset of the API client a session needs.
type Backend interface {
	SendMessage(ctx context.Context, req client.ChatRequest) (*client.ChatResponse, error)
	Summarize(ctx context.Context, messages []client.SummaryMessage) (string, error)
	ClearMemory(ctx context.Context) (*client.APIResponse, error)
}

// Manual narrows a session to one product.
type Manual struct {
	Brand string
	Model string
}

// Feedback is an opened feedback flow. Summary is set for negative
// feedback and pre-fills the support ticket.
type Feedback struct {
	MessageID int64
	Positive  bool
	Summary   string
}

// Ticket is a support request filed after an unhelpful answer.
type Ticket struct {
	Email       string
	Phone       string
	ChatSummary string
	Comments    string
	Attachments []string
}

// Options configures a Session.
type Options struct {
	Manual *Manual
	Locale string
	Logger *slog.Logger
	Now    func() time.Time
}

// Session is one conversation. It is safe for concurrent use; at most one
// request is outstanding at a time.
type Session struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
	manual  *Manual

	mu       sync.Mutex
	locale   string
	messages []models.ChatMessage
	context  models.ConversationContext
	state    State
	lastID   int64
	pending  map[int64]bool // message ID -> positive
}

// NewSession starts a session with a welcome message.
func NewSession(b Backend, opts Options) *Session {
	s := &Session{
		backend: b,
		logger:  opts.Logger,
		now:     opts.Now,
		manual:  opts.Manual,
		locale:  opts.Locale,
		pending: make(map[int64]bool),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.locale == "" {
		s.locale = "en"
	}
	s.messages = []models.ChatMessage{s.welcomeLocked()}
	return s
}

// nextIDLocked returns a millisecond timestamp that is strictly greater
// than every ID handed out before.
func (s *Session) nextIDLocked() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

func (s *Session) welcomeLocked() models.ChatMessage {
	return models.ChatMessage{
		ID:     s.nextIDLocked(),
		Text:   welcomeMessage(s.locale, s.manual),
		Sender: models.SenderBot,
	}
}

// Messages returns a copy of the message log.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// State returns the request state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Context returns the continuation state that the next turn will send.
func (s *Session) Context() models.ConversationContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context
}

// Locale returns the session language.
func (s *Session) Locale() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locale
}

// SetLocale switches the session language and re-renders the welcome
// message in place. Later messages are kept as they are.
func (s *Session) SetLocale(locale string) {
	if locale == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locale = locale
	if len(s.messages) > 0 {
		s.messages[0].Text = welcomeMessage(locale, s.manual)
	}
}

// Submit sends one user turn and returns the bot reply appended to the log.
// If the request fails, the generic error reply is appended and returned
// together with the error.
func (s *Session) Submit(ctx context.Context, text string) (models.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return models.ChatMessage{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.state == StateAwaitingResponse {
		s.mu.Unlock()
		return models.ChatMessage{}, ErrBusy
	}
	s.messages = append(s.messages, models.ChatMessage{
		ID:     s.nextIDLocked(),
		Text:   text,
		Sender: models.SenderUser,
	})
	s.state = StateAwaitingResponse
	req := client.ChatRequest{
		Message:          text,
		Language:         s.locale,
		ResponseLanguage: s.locale,
		Context: &client.ChatContext{
			AwaitingClarification: s.context.AwaitingClarification,
			Conversation:          s.context.Conversation,
			SourceLanguage:        s.locale,
		},
	}
	if s.manual != nil {
		req.Brand = s.manual.Brand
		req.Model = s.manual.Model
	}
	s.mu.Unlock()

	resp, err := s.backend.SendMessage(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle

	reply := models.ChatMessage{
		ID:           s.nextIDLocked(),
		Sender:       models.SenderBot,
		ShowFeedback: true,
	}
	if err != nil {
		s.logger.Warn("chat request failed", "error", err)
		reply.Text = ErrorReply
		s.messages = append(s.messages, reply)
		return reply, err
	}

	s.context = resp.Context()
	reply.Text = resp.Response
	s.messages = append(s.messages, reply)
	s.logger.Debug("chat reply received", "awaiting_clarification", resp.AwaitingClarification)
	return reply, nil
}

// =============================================================================
// FEEDBACK
// =============================================================================

// BeginFeedback opens the feedback flow for a bot message. Negative
// feedback summarizes the conversation for a support ticket.
func (s *Session) BeginFeedback(ctx context.Context, id int64, positive bool) (Feedback, error) {
	s.mu.Lock()
	if _, err := s.feedbackTargetLocked(id); err != nil {
		s.mu.Unlock()
		return Feedback{}, err
	}
	s.pending[id] = positive
	s.mu.Unlock()

	fb := Feedback{MessageID: id, Positive: positive}
	if !positive {
		fb.Summary = s.Summarize(ctx)
	}
	return fb, nil
}

// SubmitRating completes positive feedback.
func (s *Session) SubmitRating(id int64, stars int) error {
	if stars < 1 || stars > 5 {
		return ErrInvalidRating
	}
	if err := s.complete(id, true); err != nil {
		return err
	}
	s.logger.Info("answer rated", "message_id", id, "stars", stars)
	return nil
}

// SubmitTicket completes negative feedback by filing a support ticket.
func (s *Session) SubmitTicket(id int64, t Ticket) error {
	if err := s.complete(id, false); err != nil {
		return err
	}
	s.logger.Info("support ticket submitted",
		"message_id", id,
		"email", t.Email,
		"phone", t.Phone,
		"summary_length", len(t.ChatSummary),
		"comments", t.Comments,
		"attachment_count", len(t.Attachments),
		"timestamp", s.now().UTC().Format(time.RFC3339))
	return nil
}

// CancelFeedback abandons an opened flow. The message can receive feedback
// again later.
func (s *Session) CancelFeedback(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

func (s *Session) complete(id int64, positive bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[id]
	if !ok || p != positive {
		return ErrNoPendingFeedback
	}
	msg, err := s.feedbackTargetLocked(id)
	if err != nil {
		return err
	}
	msg.FeedbackSubmitted = true
	delete(s.pending, id)
	return nil
}

func (s *Session) feedbackTargetLocked(id int64) (*models.ChatMessage, error) {
	for i := range s.messages {
		m := &s.messages[i]
		if m.ID != id {
			continue
		}
		if m.Sender != models.SenderBot || !m.ShowFeedback {
			return nil, ErrUnknownMessage
		}
		if m.FeedbackSubmitted {
			return nil, ErrFeedbackSubmitted
		}
		return m, nil
	}
	return nil, ErrUnknownMessage
}

// =============================================================================
// SUMMARY AND RESET
// =============================================================================

func isWelcome(text string) bool {
	return strings.Contains(text, welcomeMarker) || strings.Contains(text, "Welcome")
}

// Summarize condenses the conversation for a support ticket. Welcome and
// blank messages are ignored. When the backend cannot summarize, the
// transcript itself is returned.
func (s *Session) Summarize(ctx context.Context) string {
	var convo []client.SummaryMessage
	for _, m := range s.Messages() {
		if isWelcome(m.Text) || strings.TrimSpace(m.Text) == "" {
			continue
		}
		convo = append(convo, client.SummaryMessage{Text: m.Text, Sender: m.Sender})
	}
	if len(convo) == 0 {
		return NothingToSummarize
	}

	summary, err := s.backend.Summarize(ctx, convo)
	if err != nil {
		s.logger.Warn("summarization failed, using transcript", "error", err)
		return transcript(convo)
	}
	if strings.TrimSpace(summary) == "" {
		return SummaryUnavailable
	}
	return summary
}

func transcript(convo []client.SummaryMessage) string {
	lines := make([]string, 0, len(convo))
	for _, m := range convo {
		who := "Assistant"
		if m.Sender == models.SenderUser {
			who = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", who, m.Text))
	}
	return strings.Join(lines, "\n\n")
}

// Reset starts the conversation over locally and asks the backend to drop
// its memory. The local reset happens even if the backend call fails.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateAwaitingResponse {
		s.mu.Unlock()
		return ErrBusy
	}
	s.context = models.ConversationContext{}
	s.pending = make(map[int64]bool)
	s.messages = []models.ChatMessage{s.welcomeLocked()}
	s.mu.Unlock()

	if _, err := s.backend.ClearMemory(ctx); err != nil {
		return fmt.Errorf("clear backend memory: %w", err)
	}
	return nil
}
