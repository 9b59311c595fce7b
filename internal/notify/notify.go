// Package notify carries user-visible notices (toasts) from the cart and
// checkout layers to whatever is presenting them.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notice struct {
	Level   Level  `json:"level"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type Notifier interface {
	Notify(n Notice)
}

type ctxKey struct{}

// WithContext attaches the caller's notifier to ctx so layers shared by all
// callers can reach the right recipient.
func WithContext(ctx context.Context, n Notifier) context.Context {
	return context.WithValue(ctx, ctxKey{}, n)
}

// FromContext returns the notifier attached by WithContext, if any.
func FromContext(ctx context.Context) (Notifier, bool) {
	n, ok := ctx.Value(ctxKey{}).(Notifier)
	return n, ok && n != nil
}

// Inbox buffers notices until the presentation layer drains them.
type Inbox struct {
	mu      sync.Mutex
	notices []Notice
	max     int
}

func NewInbox(max int) *Inbox {
	return &Inbox{max: max}
}

func (i *Inbox) Notify(n Notice) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.notices = append(i.notices, n)
	if i.max > 0 && len(i.notices) > i.max {
		i.notices = i.notices[len(i.notices)-i.max:]
	}
}

// Drain returns and forgets the buffered notices.
func (i *Inbox) Drain() []Notice {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.notices
	i.notices = nil
	return out
}

func (i *Inbox) Peek() []Notice {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Notice(nil), i.notices...)
}

// Logged decorates a Notifier with a log line per notice.
type Logged struct {
	next Notifier
	log  *zap.Logger
}

func NewLogged(next Notifier, log *zap.Logger) *Logged {
	return &Logged{next: next, log: log}
}

func (l *Logged) Notify(n Notice) {
	l.log.Debug("notice", zap.String("level", string(n.Level)), zap.String("code", n.Code), zap.String("message", n.Message))
	if l.next != nil {
		l.next.Notify(n)
	}
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Notify(Notice) {}
