package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/toastigo/storefront/internal/auth"
)

// FileName is the audit file inside the configured directory.
const FileName = "audit.jsonl"

// Result codes written to Entry.Code.
const (
	CodeSuccess = "SUCCESS"
	CodeError   = "ERROR"
)

var codePattern = regexp.MustCompile(`^[A-Z][A-Z_]*$`)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp time.Time              `json:"ts"`
	Actor     string                 `json:"actor"`
	Action    string                 `json:"action"`
	Target    string                 `json:"target,omitempty"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Code      string                 `json:"code"`
	LatencyMs int64                  `json:"latencyMs"`
}

// Options control file rotation.
type Options struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultOptions keeps roughly a quarter of audit history on disk.
func DefaultOptions() Options {
	return Options{MaxSizeMB: 10, MaxBackups: 10, MaxAgeDays: 90}
}

// Logger appends audit entries to a rotating file.
type Logger struct {
	mu       sync.Mutex
	filePath string
	out      *lumberjack.Logger
	log      *zap.Logger
	now      func() time.Time
}

// NewLogger creates the audit directory and opens the trail inside it.
func NewLogger(logDir string, opts Options, log *zap.Logger) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	filePath := filepath.Join(logDir, FileName)

	// Touch the file so a fresh deployment shows where the trail lives.
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	_ = f.Close()

	return &Logger{
		filePath: filePath,
		out: &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		},
		log: log,
		now: time.Now,
	}, nil
}

// LogAction records an action whose outcome is already a result code.
func (l *Logger) LogAction(ctx context.Context, action, target, result string, latency time.Duration) {
	l.write(Entry{
		Timestamp: l.now().UTC(),
		Actor:     auth.Actor(ctx),
		Action:    action,
		Target:    target,
		Code:      result,
		LatencyMs: latency.Milliseconds(),
	})
}

// LogChange records an admin mutation with its parameters. A nil err is
// logged as SUCCESS.
func (l *Logger) LogChange(ctx context.Context, action, target string, params map[string]interface{}, err error) {
	l.write(Entry{
		Timestamp: l.now().UTC(),
		Actor:     auth.Actor(ctx),
		Action:    action,
		Target:    target,
		Params:    params,
		Code:      CodeOf(err),
	})
}

// CodeOf maps err to an audit code. Sentinel errors named like NOT_FOUND
// anywhere in the wrap chain supply their own code.
func CodeOf(err error) string {
	if err == nil {
		return CodeSuccess
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if codePattern.MatchString(e.Error()) {
			return e.Error()
		}
	}
	return CodeError
}

func (l *Logger) write(entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		l.log.Error("failed to marshal audit entry", zap.String("action", entry.Action), zap.Error(err))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.out.Write(append(data, '\n')); err != nil {
		l.log.Error("failed to write audit entry", zap.String("action", entry.Action), zap.Error(err))
	}
}

// Close closes the current file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

// FilePath returns the path to the active audit file.
func (l *Logger) FilePath() string {
	return l.filePath
}

// Rotate moves the active file aside and starts a new one.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.out.Rotate(); err != nil {
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}
	return nil
}
