package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/raphaelgruber/manualdesk/internal/appstate"
	"github.com/raphaelgruber/manualdesk/internal/chat"
	"github.com/raphaelgruber/manualdesk/internal/models"
	"github.com/raphaelgruber/manualdesk/internal/speech"
	"github.com/spf13/cobra"
)

var (
	chatBrand string
	chatModel string
	chatSpeak bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the manual assistant",
	Long: `Start an interactive conversation with the manual assistant.

With --brand and --model the assistant answers from that product's manual.
Type /help inside the chat for the available commands.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatBrand, "brand", "", "product brand to ask about")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "product model to ask about")
	chatCmd.Flags().BoolVar(&chatSpeak, "speak", false, "read answers aloud (needs MANUALDESK_TTS_COMMAND)")
}

const chatHelp = `Commands:
  /good [1-5]          rate the last answer as helpful
  /bad                 report the last answer as unhelpful and file a ticket
  /summary             summarize the conversation
  /locale <code>       switch language, e.g. /locale es
  /theme [dark|light]  switch color theme
  /speak               toggle reading answers aloud
  /reset               start a new conversation
  /stats               show request statistics
  /quit                leave the chat`

// chatREPL is the interactive loop around a chat session.
type chatREPL struct {
	session  *chat.Session
	narrator *speech.Narrator
	speak    bool
	in       *bufio.Scanner
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	opts := chat.Options{Locale: store.State().Locale, Logger: logger}
	if chatBrand != "" || chatModel != "" {
		if chatBrand == "" || chatModel == "" {
			return errors.New("--brand and --model must be given together")
		}
		opts.Manual = &chat.Manual{Brand: chatBrand, Model: chatModel}
	}

	r := &chatREPL{
		session: chat.NewSession(apiClient, opts),
		in:      bufio.NewScanner(os.Stdin),
	}
	if cfg.TTSCommand != "" {
		r.narrator = speech.NewNarrator(speech.CommandEngine{Command: cfg.TTSCommand}, logger)
		defer r.narrator.Stop()
		r.speak = chatSpeak
	} else if chatSpeak {
		out.hint("No text-to-speech command configured; set MANUALDESK_TTS_COMMAND to enable --speak.")
	}

	unsubscribe := store.Subscribe(func(s appstate.State) {
		r.session.SetLocale(s.Locale)
	})
	defer unsubscribe()

	return r.run(ctx)
}

func (r *chatREPL) run(ctx context.Context) error {
	r.printBot(r.session.Messages()[0])
	out.hint("Type /help for commands.")

	for {
		line, ok := r.prompt("> ")
		if !ok {
			return nil
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := r.command(ctx, line)
			if err != nil {
				out.println(out.currentTheme().errorStyle().Render(err.Error()))
			}
			if quit {
				return nil
			}
			continue
		}

		out.hint("Thinking...")
		reply, err := r.session.Submit(ctx, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Debug("chat turn failed", "error", err)
		}
		r.printBot(reply)
		if err == nil {
			r.say(reply.Text)
		}
	}
}

// prompt reads one trimmed line. It reports false at end of input.
func (r *chatREPL) prompt(label string) (string, bool) {
	out.printf("%s", out.currentTheme().userStyle().Render(label))
	if !r.in.Scan() {
		if err := r.in.Err(); err != nil && !errors.Is(err, io.EOF) {
			logger.Warn("reading input failed", "error", err)
		}
		return "", false
	}
	return strings.TrimSpace(r.in.Text()), true
}

func (r *chatREPL) printBot(m models.ChatMessage) {
	out.println(indent(out.currentTheme().botStyle().Render(m.Text), "  "))
}

func (r *chatREPL) say(text string) {
	if r.narrator != nil && r.speak {
		r.narrator.Speak(speech.CleanText(text), r.session.Locale())
	}
}

// command runs a slash command and reports whether the chat should end.
func (r *chatREPL) command(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	name, rest := fields[0], fields[1:]

	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		out.println(chatHelp)
	case "/reset":
		if err := r.session.Reset(ctx); err != nil {
			return false, err
		}
		if r.narrator != nil {
			r.narrator.Stop()
		}
		r.printBot(r.session.Messages()[0])
	case "/locale":
		if len(rest) != 1 {
			return false, errors.New("usage: /locale <code>")
		}
		store.Dispatch(appstate.SetLocale{Locale: rest[0]})
		r.printBot(r.session.Messages()[0])
	case "/theme":
		if len(rest) == 0 {
			store.Dispatch(appstate.ToggleTheme{})
			return false, nil
		}
		t, err := appstate.ParseTheme(rest[0])
		if err != nil {
			return false, err
		}
		store.Dispatch(appstate.SetTheme{Theme: t})
	case "/speak":
		if r.narrator == nil {
			return false, errors.New("no text-to-speech command configured")
		}
		r.speak = !r.speak
		if !r.speak {
			r.narrator.Stop()
		}
		out.hint(fmt.Sprintf("Reading answers aloud: %v", r.speak))
	case "/summary":
		out.println(r.session.Summarize(ctx))
	case "/stats":
		printStats(collector.Snapshot())
	case "/good":
		return false, r.rate(ctx, rest)
	case "/bad":
		return false, r.report(ctx)
	default:
		return false, fmt.Errorf("unknown command %s, type /help", name)
	}
	return false, nil
}

// lastAnswer returns the newest bot message that still accepts feedback.
func (r *chatREPL) lastAnswer() (models.ChatMessage, bool) {
	msgs := r.session.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Sender == models.SenderBot && m.ShowFeedback && !m.FeedbackSubmitted {
			return m, true
		}
	}
	return models.ChatMessage{}, false
}

func (r *chatREPL) rate(ctx context.Context, args []string) error {
	m, ok := r.lastAnswer()
	if !ok {
		return errors.New("no answer to rate")
	}
	if _, err := r.session.BeginFeedback(ctx, m.ID, true); err != nil {
		return err
	}

	var text string
	if len(args) > 0 {
		text = args[0]
	} else if text, ok = r.prompt("Rating (1-5): "); !ok || text == "" {
		r.session.CancelFeedback(m.ID)
		return nil
	}
	stars, err := strconv.Atoi(text)
	if err != nil {
		stars = 0
	}
	if err := r.session.SubmitRating(m.ID, stars); err != nil {
		r.session.CancelFeedback(m.ID)
		return err
	}
	out.println(out.currentTheme().completedStyle().Render("✓ Thanks for your feedback!"))
	return nil
}

func (r *chatREPL) report(ctx context.Context) error {
	m, ok := r.lastAnswer()
	if !ok {
		return errors.New("no answer to report")
	}
	fb, err := r.session.BeginFeedback(ctx, m.ID, false)
	if err != nil {
		return err
	}

	out.println("Conversation summary:")
	out.println(indent(fb.Summary, "  "))
	out.hint("Leave the email empty to cancel.")

	email, ok := r.prompt("Email: ")
	if !ok || email == "" {
		r.session.CancelFeedback(m.ID)
		return nil
	}
	phone, _ := r.prompt("Phone (optional): ")
	comments, _ := r.prompt("Comments: ")

	err = r.session.SubmitTicket(m.ID, chat.Ticket{
		Email:       email,
		Phone:       phone,
		ChatSummary: fb.Summary,
		Comments:    comments,
	})
	if err != nil {
		return err
	}
	out.println(out.currentTheme().completedStyle().Render("✓ Support ticket submitted. We will contact you soon."))
	return nil
}
