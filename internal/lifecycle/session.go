package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"heartguard-alerts/internal/client"
	"heartguard-alerts/internal/domain"
)

// ErrSessionTerminated is returned, without a round trip, by every call made on a
// session after the authority rejected its credentials.
var ErrSessionTerminated = errors.New("session terminated after authentication failure")

// Session 凭证上下文
// One per signed-in caller; credentials are never shared between sessions.
type Session struct {
	cred     client.Credentials
	userName string

	mu    sync.Mutex
	cause error
}

func NewSession(token, orgID string) *Session {
	return &Session{cred: client.Credentials{Token: token, OrgID: orgID}}
}

func (s *Session) OrgID() string { return s.cred.OrgID }

// WithUserName sets the display name recorded as annotator on labels this session creates.
func (s *Session) WithUserName(name string) *Session {
	s.userName = name
	return s
}

// Terminated reports whether an authentication failure ended the session.
func (s *Session) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause != nil
}

func (s *Session) credentials() (client.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cause != nil {
		return client.Credentials{}, fmt.Errorf("%w: %w", ErrSessionTerminated, s.cause)
	}
	return s.cred, nil
}

// observe terminates the session on the first auth failure and passes err through.
func (s *Session) observe(err error) error {
	if err != nil && domain.IsAuthFailure(err) {
		s.mu.Lock()
		if s.cause == nil {
			s.cause = err
		}
		s.mu.Unlock()
	}
	return err
}

// Call runs fn with the session's credentials and terminates the session if fn
// reports an authentication failure. Other packages reading through the
// authority use it to share the session's policy.
func Call[T any](s *Session, fn func(client.Credentials) (T, error)) (T, error) {
	cred, err := s.credentials()
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := fn(cred)
	return v, s.observe(err)
}
