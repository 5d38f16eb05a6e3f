package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is one transient user-visible message.
type Notice struct {
	Level   Level
	Message string
	// Retryable marks failures the user can retry, such as a list load.
	Retryable bool
}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

func Success(ctx context.Context, n Notifier, msg string) {
	if n != nil {
		n.Notify(ctx, Notice{Level: LevelSuccess, Message: msg})
	}
}

func Error(ctx context.Context, n Notifier, msg string, retryable bool) {
	if n != nil {
		n.Notify(ctx, Notice{Level: LevelError, Message: msg, Retryable: retryable})
	}
}

// LogNotifier writes notices to a zerolog logger. The CLI uses it with a console writer.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(_ context.Context, n Notice) {
	ev := l.log.Info()
	if n.Level == LevelError {
		ev = l.log.Error()
	}
	ev.Str("level_hint", string(n.Level)).
		Bool("retryable", n.Retryable).
		Msg(n.Message)
}

// Collector keeps every notice in memory.
type Collector struct {
	mu      sync.Mutex
	notices []Notice
}

func (c *Collector) Notify(_ context.Context, n Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, n)
}

func (c *Collector) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.notices...)
}

// Last returns the most recent notice, if any.
func (c *Collector) Last() (Notice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.notices) == 0 {
		return Notice{}, false
	}
	return c.notices[len(c.notices)-1], true
}
