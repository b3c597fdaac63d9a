package restclient

import "sync"

// Session supplies the bearer token attached to outgoing requests.
// An empty token means the request is sent anonymously.
type Session interface {
	Token() string
}

// StaticSession is a fixed token, typically the one presented by the current browser request.
type StaticSession string

func (s StaticSession) Token() string { return string(s) }

// SessionFunc adapts a function to Session.
type SessionFunc func() string

func (f SessionFunc) Token() string { return f() }

// MutableSession holds a token that changes over the client's lifetime, e.g. after login.
type MutableSession struct {
	mu    sync.RWMutex
	token string
}

func NewMutableSession(token string) *MutableSession {
	return &MutableSession{token: token}
}

func (s *MutableSession) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MutableSession) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *MutableSession) Clear() {
	s.Set("")
}

type anonymous struct{}

func (anonymous) Token() string { return "" }
