//
//
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mukundvijay123/5thSemEL/internal/keepalive"
	"github.com/mukundvijay123/5thSemEL/internal/predict"
	"github.com/mukundvijay123/5thSemEL/internal/telemetry"
)

// Session roles.
const (
	RoleVehicle = "vehicle"
	RoleMonitor = "monitor"
)

// Journal actions.
const (
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
	ActionReject     = "reject"
	ActionDrop       = "drop"
)

// Result codes.
const (
	CodeSuccess          = "SUCCESS"
	CodeInvalidTelemetry = "INVALID_TELEMETRY"
	CodeInferenceFailed  = "INFERENCE_FAILED"
	CodeKeepaliveTimeout = "KEEPALIVE_TIMEOUT"
	CodeError            = "ERROR"
)

// AuditEntry is one line of the session journal.
type AuditEntry struct {
	Timestamp time.Time `json:"ts"`
	Session   string    `json:"session"`
	Role      string    `json:"role"`
	VehicleID string    `json:"vehicleId,omitempty"`
	Remote    string    `json:"remote,omitempty"`
	Action    string    `json:"action"`
	Code      string    `json:"code"`
	Detail    string    `json:"detail,omitempty"`
}

// Options controls journal rotation.
type Options struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger writes the append-only session journal. A nil *Logger discards entries.
type Logger struct {
	mu       sync.Mutex
	filePath string
	out      *lumberjack.Logger
}

// NewLogger creates a journal at logDir/audit.jsonl.
func NewLogger(logDir string, opts Options) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filePath := filepath.Join(logDir, "audit.jsonl")

	// Touch the file so it exists before the first entry.
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
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
	}, nil
}

// LogSession records a connect or disconnect. err is the close reason, if any.
func (l *Logger) LogSession(role, session, remote, vehicleID, action string, err error) {
	if l == nil {
		return
	}
	entry := AuditEntry{
		Timestamp: time.Now().UTC(),
		Session:   session,
		Role:      role,
		VehicleID: vehicleID,
		Remote:    remote,
		Action:    action,
		Code:      CodeFromError(err),
	}
	if err != nil {
		entry.Detail = err.Error()
	}
	l.writeEntry(entry)
}

// LogRejection records a producer message answered with an error reply.
func (l *Logger) LogRejection(session, vehicleID string, err error) {
	if l == nil {
		return
	}
	l.writeEntry(AuditEntry{
		Timestamp: time.Now().UTC(),
		Session:   session,
		Role:      RoleVehicle,
		VehicleID: vehicleID,
		Action:    ActionReject,
		Code:      CodeFromError(err),
		Detail:    err.Error(),
	})
}

// LogDrop records a monitor removed by the hub.
func (l *Logger) LogDrop(session, reason string) {
	if l == nil {
		return
	}
	l.writeEntry(AuditEntry{
		Timestamp: time.Now().UTC(),
		Session:   session,
		Role:      RoleMonitor,
		Action:    ActionDrop,
		Code:      CodeError,
		Detail:    reason,
	})
}

func (l *Logger) writeEntry(entry AuditEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.out.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
	}
}

// CodeFromError maps an error to a journal code.
func CodeFromError(err error) string {
	switch {
	case err == nil:
		return CodeSuccess
	case errors.Is(err, telemetry.ErrInvalidTelemetry):
		return CodeInvalidTelemetry
	case errors.Is(err, predict.ErrInference):
		return CodeInferenceFailed
	case errors.Is(err, keepalive.ErrTimeout):
		return CodeKeepaliveTimeout
	default:
		return CodeError
	}
}

// Close closes the journal.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

// GetFilePath returns the path to the journal file.
func (l *Logger) GetFilePath() string {
	return l.filePath
}

// Rotate moves the current journal to a timestamped backup and starts a new one.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.out.Rotate(); err != nil {
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}
	return nil
}
