package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/YKarmar/JobMail/internal/client"
	"github.com/YKarmar/JobMail/internal/store"
	"github.com/YKarmar/JobMail/internal/tracker"
)

// ErrNotAuthenticated is returned by a SourceFactory when no mailbox
// credentials are stored.
var ErrNotAuthenticated = errors.New("not authenticated with Gmail")

// SourceFactory opens the mailbox that sync and the connection test read.
type SourceFactory func(ctx context.Context) (client.MailSource, error)

// EmailLookup resolves the account address that owns a fresh token.
type EmailLookup func(ctx context.Context, token *oauth2.Token) (string, error)

type Options struct {
	Jobs        store.JobRepository
	Tokens      store.TokenRepository
	Tracker     *tracker.Tracker
	Sources     SourceFactory
	OAuth       *oauth2.Config // nil when Google credentials are not configured
	LookupEmail EmailLookup
	FrontendURL string
	Log         zerolog.Logger
}

type Handler struct {
	jobs        store.JobRepository
	tokens      store.TokenRepository
	tracker     *tracker.Tracker
	sources     SourceFactory
	oauth       *oauth2.Config
	lookupEmail EmailLookup
	frontendURL string
	log         zerolog.Logger
	states      *stateStore
	now         func() time.Time
}

func NewHandler(opts Options) *Handler {
	lookup := opts.LookupEmail
	if lookup == nil && opts.OAuth != nil {
		lookup = func(ctx context.Context, token *oauth2.Token) (string, error) {
			return client.UserEmail(ctx, opts.OAuth, token)
		}
	}
	return &Handler{
		jobs:        opts.Jobs,
		tokens:      opts.Tokens,
		tracker:     opts.Tracker,
		sources:     opts.Sources,
		oauth:       opts.OAuth,
		lookupEmail: lookup,
		frontendURL: opts.FrontendURL,
		log:         opts.Log.With().Str("component", "api").Logger(),
		states:      newStateStore(10 * time.Minute),
		now:         time.Now,
	}
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Job Tracker API",
		"version": "1.0.0",
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// stateStore remembers OAuth state nonces until they are used or expire.
type stateStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	issued map[string]time.Time
}

func newStateStore(ttl time.Duration) *stateStore {
	return &stateStore{ttl: ttl, issued: make(map[string]time.Time)}
}

func (s *stateStore) add(state string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, t := range s.issued {
		if now.Sub(t) > s.ttl {
			delete(s.issued, k)
		}
	}
	s.issued[state] = now
}

// consume reports whether state was issued and is still fresh. A state can
// be consumed once.
func (s *stateStore) consume(state string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.issued[state]
	if !ok {
		return false
	}
	delete(s.issued, state)
	return now.Sub(t) <= s.ttl
}
