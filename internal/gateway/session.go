// Package gateway is the session/auth layer every backend call goes through.
// It attaches the bearer token to outgoing requests and, on an authorization
// rejection, performs a single-flight refresh exchange: however many calls
// fail at once, exactly one refresh runs, and the failed callers are
// released strictly in arrival order once it resolves.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/bakehouse/storefront-go/internal/domain"
)

// Tokens is the session credential pair: a short-lived access token and a
// longer-lived refresh token.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenStore is durable client-side storage for session tokens. Tokens are
// persisted on every successful exchange and cleared when the session dies.
type TokenStore interface {
	Load(ctx context.Context) (Tokens, error)
	Save(ctx context.Context, t Tokens) error
	Clear(ctx context.Context) error
}

// Session is the explicit session context threaded into every call. It owns
// the current tokens and guards the single in-flight refresh exchange: at
// most one refresh runs process-wide at any instant.
type Session struct {
	authBaseURL string
	store       TokenStore
	client      *http.Client // bare client for the auth endpoints themselves

	mu         sync.Mutex
	tokens     Tokens
	refreshing bool
	waiters    []*refreshWaiter // released in arrival order
}

// refreshWaiter is one caller queued behind an in-flight refresh. The
// releaser hands the outcome over an unbuffered channel so waiter n has
// resumed before waiter n+1 is released.
type refreshWaiter struct {
	ch        chan error
	abandoned bool // the caller's context ended before its release
	releasing bool // a hand-off is committed; the caller must take it
}

// NewSession builds a session against the auth endpoints under authBaseURL,
// restoring any tokens previously persisted in store.
func NewSession(ctx context.Context, authBaseURL string, store TokenStore, client *http.Client) (*Session, error) {
	if client == nil {
		client = http.DefaultClient
	}
	s := &Session{
		authBaseURL: authBaseURL,
		store:       store,
		client:      client,
	}
	tokens, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("gateway: load stored tokens: %w", err)
	}
	s.tokens = tokens
	return s, nil
}

// AccessToken returns the current access token, or "" when signed out.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens.Access
}

// Authenticated reports whether the session holds an access token.
func (s *Session) Authenticated() bool {
	return s.AccessToken() != ""
}

func (s *Session) hasRefreshToken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens.Refresh != ""
}

// Login exchanges credentials for a token pair and persists it.
func (s *Session) Login(ctx context.Context, username, password string) error {
	payload := map[string]string{"username": username, "password": password}
	var tokens Tokens
	if err := s.postJSON(ctx, s.authBaseURL+"/auth/token/", payload, &tokens); err != nil {
		return fmt.Errorf("gateway: login: %w", err)
	}
	if tokens.Access == "" || tokens.Refresh == "" {
		return &domain.IntegrationError{Op: "login", Detail: "token response missing access or refresh"}
	}
	return s.adopt(ctx, tokens)
}

// Logout clears the session locally and in durable storage.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.tokens = Tokens{}
	s.mu.Unlock()
	return s.store.Clear(ctx)
}

// awaitRefresh is called by the transport when a request bearing usedAccess
// was rejected. The first caller of a failure wave runs the refresh
// exchange; everyone else queues behind it and is released, in arrival
// order, with the exchange's outcome.
//
// If the session token already differs from usedAccess, a concurrent wave
// finished the refresh first and the caller can retry immediately.
func (s *Session) awaitRefresh(ctx context.Context, usedAccess string) error {
	s.mu.Lock()
	if s.tokens.Access != "" && s.tokens.Access != usedAccess {
		s.mu.Unlock()
		return nil
	}
	if s.tokens.Refresh == "" {
		s.mu.Unlock()
		return domain.ErrSessionExpired
	}
	if s.refreshing {
		w := &refreshWaiter{ch: make(chan error)}
		s.waiters = append(s.waiters, w)
		s.mu.Unlock()
		select {
		case err := <-w.ch:
			return err
		case <-ctx.Done():
			s.mu.Lock()
			if w.releasing {
				s.mu.Unlock()
				<-w.ch // the hand-off is committed; take it so the chain moves on
				return ctx.Err()
			}
			w.abandoned = true
			s.mu.Unlock()
			return ctx.Err()
		}
	}
	s.refreshing = true
	refresh := s.tokens.Refresh
	s.mu.Unlock()

	err := s.refreshExchange(ctx, refresh)

	s.mu.Lock()
	s.refreshing = false
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	// Hand the outcome to each queued caller in turn; the unbuffered send
	// blocks until the caller has taken it, so the release order is real,
	// not just the send order.
	for _, w := range waiters {
		s.mu.Lock()
		if w.abandoned {
			s.mu.Unlock()
			continue
		}
		w.releasing = true
		s.mu.Unlock()
		w.ch <- err
	}
	return err
}

// refreshExchange trades the refresh token for a new access token. On
// failure the stored tokens are cleared and the session is expired for good;
// the exchange itself is never retried.
func (s *Session) refreshExchange(ctx context.Context, refresh string) error {
	slog.InfoContext(ctx, "access token rejected, refreshing session")

	var out struct {
		Access string `json:"access"`
	}
	err := s.postJSON(ctx, s.authBaseURL+"/auth/token/refresh/", map[string]string{"refresh": refresh}, &out)
	if err != nil || out.Access == "" {
		slog.ErrorContext(ctx, "token refresh failed, signing out", "error", err)
		s.mu.Lock()
		s.tokens = Tokens{}
		s.mu.Unlock()
		if clearErr := s.store.Clear(ctx); clearErr != nil {
			slog.ErrorContext(ctx, "failed to clear stored tokens", "error", clearErr)
		}
		return domain.ErrSessionExpired
	}

	s.mu.Lock()
	s.tokens.Access = out.Access
	tokens := s.tokens
	s.mu.Unlock()
	return s.store.Save(ctx, tokens)
}

func (s *Session) adopt(ctx context.Context, tokens Tokens) error {
	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()
	if err := s.store.Save(ctx, tokens); err != nil {
		return fmt.Errorf("gateway: persist tokens: %w", err)
	}
	return nil
}

func (s *Session) postJSON(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: "auth exchange", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("auth endpoint returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
