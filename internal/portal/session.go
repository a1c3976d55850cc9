package portal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const pathToken = "/authaccess_token"

// Credentials identify a portal account. They are fixed for the lifetime
// of a Session.
type Credentials struct {
	Email    string
	Password string
}

// Session holds the credentials and the bearer token for one portal
// account. It is owned by exactly one Client.
//
// The token is acquired lazily and never refreshed proactively; the only
// expiry signal is a 401/403 on a data call, which drops it.
type Session struct {
	creds      Credentials
	oauth      oauth2.Config
	httpClient *http.Client
	limiter    *rate.Limiter

	mu    sync.Mutex
	token *oauth2.Token
}

func newSession(
	baseURL string,
	creds Credentials,
	httpClient *http.Client,
	limiter *rate.Limiter,
) *Session {
	return &Session{
		creds: creds,
		oauth: oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  baseURL + pathToken,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		limiter:    limiter,
	}
}

// Login performs the password grant and stores the bearer token. Any
// previously held token is discarded first, so a failed login leaves the
// session without a token.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.login(ctx)
}

// login must be called with s.mu held.
func (s *Session) login(ctx context.Context) error {
	const op = "login"

	s.token = nil

	if err := s.limiter.Wait(ctx); err != nil {
		return commError(op, 0, err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	tok, err := s.oauth.PasswordCredentialsToken(
		ctx, s.creds.Email, s.creds.Password,
	)
	if err != nil {
		return loginError(op, err)
	}

	// The portal answers with a lower-case "bearer"; anything else means
	// the grant did not produce a usable token.
	if tok.TokenType != "bearer" {
		log.Printf("portal login returned token type %q", tok.TokenType)
		return authError(op, http.StatusOK, fmt.Errorf(
			"unexpected token type %q", tok.TokenType,
		))
	}

	s.token = tok
	return nil
}

// loginError classifies a failed password grant. A rejected grant or a
// 200 without a usable token is an authentication failure; only a failed
// round trip is a communication failure.
func loginError(op string, err error) *Error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		status := 0
		if rErr.Response != nil {
			status = rErr.Response.StatusCode
		}
		log.Printf("portal login rejected (status %d)", status)
		return authError(op, status, err)
	}

	var (
		urlErr *url.Error
		netErr net.Error
	)
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return commError(op, 0, err)
	}

	// oauth2 flattens body read and decode errors into its message.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "cannot fetch token"):
		return commError(op, http.StatusOK, err)
	case strings.Contains(msg, "cannot parse json"),
		strings.Contains(msg, "cannot parse response"):
		return genericError(op, err)
	}

	log.Printf("portal login returned no usable token: %v", err)
	return authError(op, http.StatusOK, err)
}

// ensureToken returns the held token, logging in once when there is none.
func (s *Session) ensureToken(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil {
		if err := s.login(ctx); err != nil {
			return nil, err
		}
	}
	return s.token, nil
}

// invalidate drops tok if it is still the held token. A newer token
// acquired by another call is left alone.
func (s *Session) invalidate(tok *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == tok {
		s.token = nil
	}
}

// HasToken reports whether a bearer token is currently held.
func (s *Session) HasToken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != nil
}

// AccessToken returns the held bearer token value, or "".
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil {
		return ""
	}
	return s.token.AccessToken
}
