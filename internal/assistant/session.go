// Package assistant runs the report chat: a per-view session that accepts
// one question at a time, sends it with a report excerpt to a language
// model and appends exactly one reply per accepted question.
package assistant

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reportview/internal/logging"
)

const (
	Greeting           = "Xin chào! Tôi có thể giúp gì cho bạn về báo cáo này?"
	UnavailableMessage = "Lỗi: Không thể kết nối với Trợ lý AI. Vui lòng liên hệ quản trị viên."
	FailureMessage     = "Rất tiếc, đã xảy ra lỗi khi xử lý yêu cầu. Vui lòng thử lại sau."
)

var (
	errEmptyReply = errors.New("assistant: empty reply")
	discardLogger = logging.NewLogger("assistant", logging.ERROR, io.Discard)
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one transcript entry.
type Message struct {
	ID     string    `json:"id"`
	Sender Sender    `json:"sender"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// State is the session's position in the ask/reply cycle.
type State int

const (
	StateIdle State = iota
	StateSubmitted
)

func (s State) String() string {
	if s == StateSubmitted {
		return "submitted"
	}
	return "idle"
}

// Generator is the language model call. llm.Provider satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Listener receives transcript and indicator changes in the order they
// happen. Calls are never concurrent for one session.
type Listener interface {
	MessageAppended(Message)
	ThinkingChanged(active bool)
}

type SessionConfig struct {
	// Context is the report excerpt built by BuildContext.
	Context string
	// Generator is nil when no credential was found for the report.
	Generator Generator
	Listener  Listener
	Timeout   time.Duration
	Logger    *logging.Logger
}

// Session holds the transcript for one viewer of one report.
type Session struct {
	cfg SessionConfig
	now func() time.Time

	mu         sync.Mutex
	state      State
	closed     bool
	transcript []Message

	// emitMu keeps listener calls in transcript order. It is taken while
	// mu is still held and released after the listener returns.
	emitMu   sync.Mutex
	inflight sync.WaitGroup
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Listener == nil {
		cfg.Listener = nopListener{}
	}
	return &Session{cfg: cfg, now: time.Now}
}

// Available reports whether questions reach a language model.
func (s *Session) Available() bool {
	return s.cfg.Generator != nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns a copy of the messages so far.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Ask submits a question. It returns false without any effect when the
// question is blank, a previous question is still in flight or the session
// is closed. Without a generator the unavailable message is appended
// immediately and no request is made.
func (s *Session) Ask(question string) bool {
	q := strings.TrimSpace(question)

	s.mu.Lock()
	if q == "" || s.state == StateSubmitted || s.closed {
		s.mu.Unlock()
		return false
	}

	userMsg := s.appendLocked(SenderUser, q)
	if s.cfg.Generator == nil {
		reply := s.appendLocked(SenderAssistant, UnavailableMessage)
		s.emitMu.Lock()
		s.mu.Unlock()
		s.cfg.Listener.MessageAppended(userMsg)
		s.cfg.Listener.MessageAppended(reply)
		s.emitMu.Unlock()
		return true
	}

	s.state = StateSubmitted
	s.inflight.Add(1)
	s.emitMu.Lock()
	s.mu.Unlock()
	s.cfg.Listener.MessageAppended(userMsg)
	s.cfg.Listener.ThinkingChanged(true)
	s.emitMu.Unlock()

	go s.run(BuildPrompt(s.cfg.Context, q))
	return true
}

func (s *Session) run(prompt string) {
	defer s.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	start := s.now()
	text, err := s.cfg.Generator.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errEmptyReply
	}
	if err != nil {
		s.log().WithContext("error", err.Error()).Error("assistant request failed")
		text = FailureMessage
	} else {
		s.log().WithContext("latency_ms", s.now().Sub(start).Milliseconds()).Debug("assistant replied")
	}

	s.mu.Lock()
	s.state = StateIdle
	if s.closed {
		s.mu.Unlock()
		s.log().Debug("session closed, dropping reply")
		return
	}
	reply := s.appendLocked(SenderAssistant, text)
	s.emitMu.Lock()
	s.mu.Unlock()
	s.cfg.Listener.MessageAppended(reply)
	s.cfg.Listener.ThinkingChanged(false)
	s.emitMu.Unlock()
}

func (s *Session) appendLocked(sender Sender, text string) Message {
	m := Message{ID: uuid.NewString(), Sender: sender, Text: text, At: s.now()}
	s.transcript = append(s.transcript, m)
	return m
}

// Close detaches the session from its viewer. An in-flight request is not
// cancelled, but its reply is discarded and the listener is not called again.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Wait blocks until no request is in flight.
func (s *Session) Wait() {
	s.inflight.Wait()
}

func (s *Session) log() *logging.Logger {
	if s.cfg.Logger == nil {
		return discardLogger
	}
	return s.cfg.Logger
}

type nopListener struct{}

func (nopListener) MessageAppended(Message) {}
func (nopListener) ThinkingChanged(bool) {}
