// Package session holds per-conversation state: the loaded dataset, the
// provider selection and the ordered log of answered questions.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/tabletalk/internal/analysis"
	"github.com/KaramelBytes/tabletalk/internal/dataset"
	"github.com/KaramelBytes/tabletalk/internal/dispatch"
	"github.com/KaramelBytes/tabletalk/internal/intent"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrClosed   = errors.New("session closed")
)

// now is the session clock; tests replace it.
var now = time.Now

// Answerer produces an answer for one question. *dispatch.Dispatcher implements it.
type Answerer interface {
	AnswerAs(ctx context.Context, in intent.Intent, question string, ds *dataset.Dataset, pc dispatch.ProviderConfig) (*dispatch.Answer, error)
}

// Turn is one answered question.
type Turn struct {
	Question    string           `json:"question"`
	Result      *analysis.Result `json:"result"`
	BackendUsed string           `json:"backend_used"`
	Notice      string           `json:"notice,omitempty"`
	At          time.Time        `json:"at"`
}

// Session serializes questions against one dataset. Its methods are safe for
// concurrent use; Ask holds the session lock for the whole dispatch.
type Session struct {
	ID string

	mu          sync.Mutex
	cfg         dispatch.ProviderConfig
	ds          *dataset.Dataset
	profile     *dataset.Profile
	suggestions []string
	turns       []Turn
	closed      bool

	// lastUsed is read without the lock so sweeps never wait on a running Ask.
	lastUsed atomic.Int64
}

// New starts a session with no dataset loaded.
func New(cfg dispatch.ProviderConfig) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		cfg:         cfg,
		suggestions: analysis.Suggest(nil),
	}
	s.touch()
	return s
}

func (s *Session) touch() { s.lastUsed.Store(now().UnixNano()) }

// LoadDataset replaces the dataset and returns the refreshed suggestions.
// Earlier turns stay in the log.
func (s *Session) LoadDataset(ds *dataset.Dataset) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = ds
	s.profile = nil
	if ds != nil {
		s.profile, _ = dataset.NewProfile(ds)
	}
	s.suggestions = analysis.Suggest(s.profile)
	s.touch()
	return append([]string(nil), s.suggestions...)
}

// Ask answers question against the loaded dataset and appends a turn.
func (s *Session) Ask(ctx context.Context, a Answerer, question string) (*dispatch.Answer, error) {
	return s.AskAs(ctx, a, "", question)
}

// AskAs is Ask with an explicit intent; an empty in lets the answerer classify.
func (s *Session) AskAs(ctx context.Context, a Answerer, in intent.Intent, question string) (*dispatch.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	s.touch()
	ans, err := a.AnswerAs(ctx, in, question, s.ds, s.cfg)
	if err != nil {
		return nil, err
	}
	s.turns = append(s.turns, Turn{
		Question:    question,
		Result:      ans.Result,
		BackendUsed: ans.BackendUsed,
		Notice:      ans.Notice,
		At:          now(),
	})
	return ans, nil
}

// Turns returns a copy of the turn log in question order.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.turns...)
}

func (s *Session) Suggestions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.suggestions...)
}

// Profile returns the profile of the loaded dataset, or nil.
func (s *Session) Profile() *dataset.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Backend reports the configured backend and model. Credentials are not exposed.
func (s *Session) Backend() (backend, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Backend, s.cfg.ModelName
}

func (s *Session) LastUsed() time.Time { return time.Unix(0, s.lastUsed.Load()) }

// Close drops the dataset, the turns and the credentials. Later Asks fail with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.ds = nil
	s.profile = nil
	s.turns = nil
	s.suggestions = nil
	s.cfg.Credentials = ""
}
