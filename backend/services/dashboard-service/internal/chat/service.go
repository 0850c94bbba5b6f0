package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"greenlens/backend/services/dashboard-service/internal/models"
)

const (
	// Greeting seeds every transcript.
	Greeting = "Hi! I'm GreenLens AI Assistant. Ask me about ESG, emissions, or compliance!"
	// EmptyAnswerReply replaces a missing or empty answer.
	EmptyAnswerReply = "Sorry, I couldn't process that."
	// ErrorReply is shown when the backend could not be reached.
	ErrorReply = "Sorry, something went wrong connecting to the server."
)

var (
	// ErrEmptyMessage is returned for blank submissions.
	ErrEmptyMessage = errors.New("chat: empty message")
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("chat: session not found")
)

// Sender identifies the author of a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one transcript entry.
type Message struct {
	Sender Sender    `json:"sender"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// Transcript is the rendered state of one chat session.
type Transcript struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`
	Typing   bool      `json:"typing"`
}

// Asker answers free-text questions.
type Asker interface {
	AskQuestion(ctx context.Context, question string) (*models.AskResponse, error)
}

// Service runs chat exchanges against the backend.
type Service struct {
	asker  Asker
	store  TranscriptStore
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	locks  map[string]*sessionLock
	typing map[string]bool
}

// sessionLock serializes exchanges of one session. refs counts holders and waiters.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewService builds a chat service.
func NewService(asker Asker, store TranscriptStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		asker:  asker,
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		locks:  make(map[string]*sessionLock),
		typing: make(map[string]bool),
	}
}

// CreateSession starts a transcript seeded with the greeting.
func (s *Service) CreateSession(ctx context.Context) (*Transcript, error) {
	id := uuid.NewString()
	seed := Message{Sender: SenderBot, Text: Greeting, At: s.now()}
	if err := s.store.Create(ctx, id, seed); err != nil {
		return nil, fmt.Errorf("create chat session: %w", err)
	}
	s.logger.Debug("chat session created", zap.String("session_id", id))
	return &Transcript{ID: id, Messages: []Message{seed}}, nil
}

// Transcript returns the messages and typing flag of a session.
func (s *Service) Transcript(ctx context.Context, sessionID string) (*Transcript, error) {
	msgs, err := s.store.Messages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Transcript{ID: sessionID, Messages: msgs, Typing: s.isTyping(sessionID)}, nil
}

// Send appends the user message, asks the backend and appends exactly one bot reply.
// Exchanges within a session run one at a time, in submission order.
// Transcript writes outlive ctx so a cancelled caller never leaves a question unanswered.
func (s *Service) Send(ctx context.Context, sessionID, text string) (*Message, error) {
	question := strings.TrimSpace(text)
	if question == "" {
		return nil, ErrEmptyMessage
	}

	exists, err := s.store.Exists(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrSessionNotFound
	}

	release := s.lockSession(sessionID)
	defer release()

	writeCtx := context.WithoutCancel(ctx)
	userMsg := Message{Sender: SenderUser, Text: question, At: s.now()}
	if err := s.store.Append(writeCtx, sessionID, userMsg); err != nil {
		return nil, err
	}

	s.setTyping(sessionID, true)
	defer s.setTyping(sessionID, false)

	reply := Message{Sender: SenderBot, Text: s.ask(ctx, sessionID, question)}
	reply.At = s.now()
	if err := s.store.Append(writeCtx, sessionID, reply); err != nil {
		return nil, fmt.Errorf("append reply: %w", err)
	}
	return &reply, nil
}

func (s *Service) ask(ctx context.Context, sessionID, question string) string {
	resp, err := s.asker.AskQuestion(ctx, question)
	if err != nil {
		s.logger.Warn("ask request failed", zap.String("session_id", sessionID), zap.Error(err))
		return ErrorReply
	}
	answer := ExtractAnswer(resp.Answer)
	if answer == "" {
		return EmptyAnswerReply
	}
	return answer
}

type nestedAnswer struct {
	Answer interface{} `mapstructure:"answer"`
}

// ExtractAnswer reads a plain string answer or the "answer" key of an answer object.
// Blank or unrecognised answers yield "".
func ExtractAnswer(v interface{}) string {
	switch a := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(a)
	case map[string]interface{}:
		var nested nestedAnswer
		if err := mapstructure.Decode(a, &nested); err != nil {
			return ""
		}
		if inner, ok := nested.Answer.(string); ok {
			return strings.TrimSpace(inner)
		}
		return ""
	case float64, bool:
		return fmt.Sprint(a)
	default:
		return ""
	}
}

// lockSession blocks until the caller owns the session and returns the release func.
// The entry is dropped once nobody holds or waits for it.
func (s *Service) lockSession(sessionID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		s.locks[sessionID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}
}

func (s *Service) setTyping(sessionID string, typing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if typing {
		s.typing[sessionID] = true
		return
	}
	delete(s.typing, sessionID)
}

func (s *Service) isTyping(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing[sessionID]
}
