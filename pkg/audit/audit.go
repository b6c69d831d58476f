// Package audit records security-relevant orchestrator events.
//
// Sinks must never make an operation fail: a FileLogger that cannot write
// logs the problem at debug level and carries on.
package audit

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/arthur-debert/plugdeploy/pkg/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType names an audited event.
type EventType string

const (
	EventLockAcquired     EventType = "lock_acquired"
	EventLockConflict     EventType = "lock_conflict"
	EventLockStaleCleared EventType = "lock_stale_cleared"
	EventLockReleased     EventType = "lock_released"
	EventBackupCreated    EventType = "backup_created"
	EventRollback         EventType = "rollback"
	EventInstall          EventType = "install"
	EventUpgrade          EventType = "upgrade"
)

// Status is the outcome attached to an event.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusWarning Status = "warning"
)

// OperationIDKey is the context key correlating events of one run.
const OperationIDKey = "operation_id"

// Logger receives audit events.
type Logger interface {
	Log(event EventType, status Status, ctx map[string]interface{})
}

// NewOperationID returns a fresh id for correlating the events of one run.
func NewOperationID() string {
	return uuid.NewString()
}

type nopLogger struct{}

func (nopLogger) Log(EventType, Status, map[string]interface{}) {}

// Nop discards every event.
var Nop Logger = nopLogger{}

// FileLogger appends events as JSON lines.
type FileLogger struct {
	path string
	mu   sync.Mutex
}

// NewFileLogger returns a FileLogger writing to path. The file and its
// directory are created on first use.
func NewFileLogger(path string) *FileLogger {
	return &FileLogger{path: path}
}

// Path returns the audit file path.
func (l *FileLogger) Path() string {
	return l.path
}

// Log appends one event.
func (l *FileLogger) Log(event EventType, status Status, ctx map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.write(event, status, ctx); err != nil {
		logger := logging.GetLogger("audit")
		logger.Debug().
			Err(err).
			Str("path", l.path).
			Str("event", string(event)).
			Msg("Failed to write audit event")
	}
}

func (l *FileLogger) write(event EventType, status Status, ctx map[string]interface{}) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}

	fields := make(map[string]interface{}, len(ctx)+1)
	for k, v := range ctx {
		fields[k] = v
	}
	if _, ok := fields[OperationIDKey]; !ok {
		fields[OperationIDKey] = NewOperationID()
	}

	logger := zerolog.New(f).With().Timestamp().Logger()
	logger.Log().
		Str("event", string(event)).
		Str("status", string(status)).
		Fields(fields).
		Send()

	return f.Close()
}

// Event is one recorded audit event.
type Event struct {
	Type    EventType
	Status  Status
	Context map[string]interface{}
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Log records an event.
func (r *Recorder) Log(event EventType, status Status, ctx map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := make(map[string]interface{}, len(ctx))
	for k, v := range ctx {
		copied[k] = v
	}
	r.events = append(r.events, Event{Type: event, Status: status, Context: copied})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []EventType {
	var out []EventType
	for _, e := range r.Events() {
		out = append(out, e.Type)
	}
	return out
}

type logSink struct{}

func (logSink) Log(event EventType, status Status, ctx map[string]interface{}) {
	logger := logging.GetLogger("audit")
	logger.Debug().
		Str("event", string(event)).
		Str("status", string(status)).
		Fields(ctx).
		Msg("Audit event")
}

// Debug mirrors every event to the debug log.
var Debug Logger = logSink{}

// Multi fans events out to several loggers.
func Multi(loggers ...Logger) Logger {
	return multi(loggers)
}

type multi []Logger

func (m multi) Log(event EventType, status Status, ctx map[string]interface{}) {
	for _, l := range m {
		l.Log(event, status, ctx)
	}
}
