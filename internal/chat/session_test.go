package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/manualdesk/internal/client"
	"github.com/raphaelgruber/manualdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	mu         sync.Mutex
	requests   []client.ChatRequest
	replies    []*client.ChatResponse
	sendErr    error
	hold       chan struct{}
	summary    string
	summaryErr error
	summarized [][]client.SummaryMessage
	cleared    int
}

func (s *stubBackend) SendMessage(ctx context.Context, req client.ChatRequest) (*client.ChatResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	hold, err := s.hold, s.sendErr
	var resp *client.ChatResponse
	if len(s.replies) > 0 {
		resp = s.replies[0]
		s.replies = s.replies[1:]
	}
	s.mu.Unlock()
	if hold != nil {
		<-hold
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp = &client.ChatResponse{Response: "ok"}
	}
	return resp, nil
}

func (s *stubBackend) Summarize(ctx context.Context, msgs []client.SummaryMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summarized = append(s.summarized, msgs)
	return s.summary, s.summaryErr
}

func (s *stubBackend) ClearMemory(ctx context.Context) (*client.APIResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
	return &client.APIResponse{Success: true}, nil
}

func (s *stubBackend) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func newTestSession(b Backend, opts Options) *Session {
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Now == nil {
		fixed := time.UnixMilli(1_700_000_000_000)
		opts.Now = func() time.Time { return fixed }
	}
	return NewSession(b, opts)
}

func TestNewSessionWelcome(t *testing.T) {
	s := newTestSession(&stubBackend{}, Options{Manual: &Manual{Brand: "LG", Model: "C1"}})
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.SenderBot, msgs[0].Sender)
	assert.Contains(t, msgs[0].Text, "👋")
	assert.Contains(t, msgs[0].Text, "LG C1")
	assert.False(t, msgs[0].ShowFeedback)
	assert.Equal(t, StateIdle, s.State())
}

func TestSubmitRejectsBlank(t *testing.T) {
	b := &stubBackend{}
	s := newTestSession(b, Options{})
	_, err := s.Submit(context.Background(), "   \n")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Len(t, s.Messages(), 1)
	assert.Equal(t, 0, b.requestCount())
}

func TestSubmitRoundTripsContext(t *testing.T) {
	conv := json.RawMessage(`{"history":[{"role":"user","content":"washer leaks"}],"slot":"model"}`)
	b := &stubBackend{replies: []*client.ChatResponse{
		{Response: "Which model do you have?", AwaitingClarification: true, Conversation: conv},
		{Response: "Check the door seal.", Conversation: json.RawMessage(`[]`)},
	}}
	s := newTestSession(b, Options{Locale: "es", Manual: &Manual{Brand: "Samsung", Model: "WA50"}})
	ctx := context.Background()

	reply, err := s.Submit(ctx, "washer leaks")
	require.NoError(t, err)
	assert.Equal(t, "Which model do you have?", reply.Text)
	assert.True(t, reply.ShowFeedback)
	assert.Equal(t, models.ConversationContext{AwaitingClarification: true, Conversation: conv}, s.Context())

	_, err = s.Submit(ctx, "WA50")
	require.NoError(t, err)

	require.Len(t, b.requests, 2)
	first := b.requests[0]
	assert.Equal(t, "es", first.Language)
	assert.Equal(t, "es", first.ResponseLanguage)
	assert.Equal(t, "Samsung", first.Brand)
	assert.Equal(t, "WA50", first.Model)
	assert.False(t, first.Context.AwaitingClarification)
	assert.Equal(t, "es", first.Context.SourceLanguage)

	second := b.requests[1]
	assert.True(t, second.Context.AwaitingClarification)
	assert.Equal(t, string(conv), string(second.Context.Conversation))

	assert.False(t, s.Context().AwaitingClarification)
	msgs := s.Messages()
	require.Len(t, msgs, 5)
	for i := 1; i < len(msgs); i++ {
		assert.Greater(t, msgs[i].ID, msgs[i-1].ID, "ids strictly increase")
	}
}

func TestSubmitWhileAwaitingIsNoop(t *testing.T) {
	b := &stubBackend{hold: make(chan struct{})}
	s := newTestSession(b, Options{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, "first")
		done <- err
	}()
	require.Eventually(t, func() bool { return s.State() == StateAwaitingResponse }, time.Second, time.Millisecond)

	before := s.Messages()
	_, err := s.Submit(ctx, "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, before, s.Messages())
	assert.Equal(t, 1, b.requestCount())

	close(b.hold)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, s.State())
	assert.Len(t, s.Messages(), 3)
}

func TestSubmitFailureAppendsErrorReply(t *testing.T) {
	b := &stubBackend{sendErr: &client.Error{Kind: client.KindTimeout, Message: "timeout"}}
	s := newTestSession(b, Options{})

	reply, err := s.Submit(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrTimeout)
	assert.Equal(t, ErrorReply, reply.Text)
	assert.True(t, reply.ShowFeedback)
	assert.Equal(t, StateIdle, s.State())

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "hello", msgs[1].Text)
	assert.Equal(t, ErrorReply, msgs[2].Text)
	assert.Equal(t, 1, b.requestCount(), "no retry")
}

func TestSetLocaleRewritesWelcomeOnly(t *testing.T) {
	s := newTestSession(&stubBackend{}, Options{})
	_, err := s.Submit(context.Background(), "hola")
	require.NoError(t, err)
	before := s.Messages()

	s.SetLocale("es")
	after := s.Messages()
	require.Len(t, after, len(before))
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.Contains(t, after[0].Text, "¡Hola")
	assert.Equal(t, before[1:], after[1:])
	assert.Equal(t, "es", s.Locale())
}

func TestPositiveFeedback(t *testing.T) {
	s := newTestSession(&stubBackend{}, Options{})
	reply, err := s.Submit(context.Background(), "hi")
	require.NoError(t, err)

	fb, err := s.BeginFeedback(context.Background(), reply.ID, true)
	require.NoError(t, err)
	assert.True(t, fb.Positive)
	assert.Empty(t, fb.Summary)

	assert.ErrorIs(t, s.SubmitRating(reply.ID, 6), ErrInvalidRating)
	require.NoError(t, s.SubmitRating(reply.ID, 5))
	assert.True(t, s.Messages()[2].FeedbackSubmitted)

	_, err = s.BeginFeedback(context.Background(), reply.ID, true)
	assert.ErrorIs(t, err, ErrFeedbackSubmitted)
}

func TestCancelFeedbackKeepsMessageOpen(t *testing.T) {
	s := newTestSession(&stubBackend{}, Options{})
	reply, err := s.Submit(context.Background(), "hi")
	require.NoError(t, err)

	_, err = s.BeginFeedback(context.Background(), reply.ID, true)
	require.NoError(t, err)
	s.CancelFeedback(reply.ID)
	assert.False(t, s.Messages()[2].FeedbackSubmitted)
	assert.ErrorIs(t, s.SubmitRating(reply.ID, 4), ErrNoPendingFeedback)

	_, err = s.BeginFeedback(context.Background(), reply.ID, true)
	assert.NoError(t, err)
}

func TestFeedbackTargets(t *testing.T) {
	s := newTestSession(&stubBackend{}, Options{})
	_, err := s.Submit(context.Background(), "hi")
	require.NoError(t, err)
	msgs := s.Messages()

	_, err = s.BeginFeedback(context.Background(), msgs[0].ID, true)
	assert.ErrorIs(t, err, ErrUnknownMessage, "welcome message")
	_, err = s.BeginFeedback(context.Background(), msgs[1].ID, true)
	assert.ErrorIs(t, err, ErrUnknownMessage, "user message")
	_, err = s.BeginFeedback(context.Background(), 42, true)
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestNegativeFeedbackTicket(t *testing.T) {
	b := &stubBackend{summary: "Customer cannot open the door."}
	s := newTestSession(b, Options{})
	reply, err := s.Submit(context.Background(), "door stuck")
	require.NoError(t, err)

	fb, err := s.BeginFeedback(context.Background(), reply.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Customer cannot open the door.", fb.Summary)

	require.Len(t, b.summarized, 1)
	assert.Equal(t, []client.SummaryMessage{
		{Text: "door stuck", Sender: models.SenderUser},
		{Text: "ok", Sender: models.SenderBot},
	}, b.summarized[0])

	assert.ErrorIs(t, s.SubmitRating(reply.ID, 3), ErrNoPendingFeedback, "rating does not complete a ticket flow")
	require.NoError(t, s.SubmitTicket(reply.ID, Ticket{Email: "a@example.com", ChatSummary: fb.Summary}))
	assert.True(t, s.Messages()[2].FeedbackSubmitted)
}

func TestSummarize(t *testing.T) {
	t.Run("nothing but welcome", func(t *testing.T) {
		b := &stubBackend{}
		s := newTestSession(b, Options{})
		assert.Equal(t, NothingToSummarize, s.Summarize(context.Background()))
		assert.Empty(t, b.summarized)
	})

	t.Run("empty summary", func(t *testing.T) {
		b := &stubBackend{}
		s := newTestSession(b, Options{})
		_, err := s.Submit(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, SummaryUnavailable, s.Summarize(context.Background()))
	})

	t.Run("fallback transcript", func(t *testing.T) {
		b := &stubBackend{summaryErr: errors.New("offline")}
		s := newTestSession(b, Options{})
		_, err := s.Submit(context.Background(), "Welcome back, my dryer is loud")
		require.NoError(t, err)
		_, err = s.Submit(context.Background(), "it squeaks")
		require.NoError(t, err)

		got := s.Summarize(context.Background())
		assert.Equal(t, strings.Join([]string{
			"Assistant: ok",
			"User: it squeaks",
			"Assistant: ok",
		}, "\n\n"), got)
	})
}

func TestReset(t *testing.T) {
	b := &stubBackend{replies: []*client.ChatResponse{{Response: "?", AwaitingClarification: true, Conversation: json.RawMessage(`[1]`)}}}
	s := newTestSession(b, Options{})
	_, err := s.Submit(context.Background(), "hi")
	require.NoError(t, err)

	require.NoError(t, s.Reset(context.Background()))
	assert.Len(t, s.Messages(), 1)
	assert.Equal(t, models.ConversationContext{}, s.Context())
	assert.Equal(t, 1, b.cleared)
}
