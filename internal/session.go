package internal

import (
	"strings"
	"sync"

	pkgerrs "github.com/jamesprial/go-salesforce-api-wrapper/pkg/errors"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
)

// Session is the login state shared by the authenticator and the HTTP client:
// the cached access token, the instance URL it is valid for, and the API version.
type Session struct {
	mu          sync.RWMutex
	token       *types.AccessToken
	instanceURL string
	version     string
}

// NewSession returns a session for the given API version with no credentials.
func NewSession(version string) *Session {
	return &Session{version: version}
}

// Set replaces both the token and the instance URL.
func (s *Session) Set(token *types.AccessToken, instanceURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.instanceURL = strings.TrimRight(instanceURL, "/")
}

// SetToken replaces the access token.
func (s *Session) SetToken(token *types.AccessToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// SetInstanceURL replaces the instance URL.
func (s *Session) SetInstanceURL(instanceURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instanceURL = strings.TrimRight(instanceURL, "/")
}

// SetVersion replaces the API version used in versioned paths.
func (s *Session) SetVersion(version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = version
}

// Clear drops the token and instance URL.
func (s *Session) Clear() {
	s.Set(nil, "")
}

// Token returns a copy of the access token, or nil.
func (s *Session) Token() *types.AccessToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil
	}
	t := *s.token
	return &t
}

// InstanceURL returns the instance URL without a trailing slash.
func (s *Session) InstanceURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instanceURL
}

// Version returns the API version, e.g. "v44.0".
func (s *Session) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Credentials returns the authorization header value and instance URL,
// or a StateError wrapping ErrNotLoggedIn when either is missing.
func (s *Session) Credentials(operation string) (authorization, instanceURL string, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil || s.token.Value == "" {
		return "", "", &pkgerrs.StateError{Operation: operation, Err: pkgerrs.ErrNotLoggedIn}
	}
	if s.instanceURL == "" {
		return "", "", &pkgerrs.StateError{Operation: operation, Message: "instance URL not set", Err: pkgerrs.ErrNotLoggedIn}
	}

	tokenType := s.token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return tokenType + " " + s.token.Value, s.instanceURL, nil
}
