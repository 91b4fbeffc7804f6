package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names what happened.
type AuditEventType string

const (
	// Automation flows
	AuditActionComplete AuditEventType = "action_complete"
	AuditActionError    AuditEventType = "action_error"
	AuditActionRejected AuditEventType = "action_rejected" // re-entry guard
	AuditItemFailed     AuditEventType = "item_failed"     // one approver in a batch

	// Reminders
	AuditReminderShown AuditEventType = "reminder_shown"

	// Approver preferences
	AuditFavoriteToggled AuditEventType = "favorite_toggled"
)

// AuditEvent is one line of the audit trail.
type AuditEvent struct {
	Timestamp  int64          `json:"ts"` // Unix milliseconds
	EventType  AuditEventType `json:"event"`
	Category   Category       `json:"cat,omitempty"`
	Action     string         `json:"action,omitempty"`
	Target     string         `json:"target,omitempty"`
	Success    bool           `json:"success"`
	DurationMs int64          `json:"dur_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

var (
	auditMu   sync.Mutex
	auditFile *os.File
	auditNow  = time.Now
)

// initAudit opens the day's audit file in dir. Only called in debug mode.
func initAudit(dir string) error {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		return nil
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_audit.log", auditNow().Format("2006-01-02")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

func closeAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit appends e to the audit trail as a JSON line. Outside debug mode it
// does nothing.
func Audit(e AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile == nil {
		return
	}
	if e.Timestamp == 0 {
		e.Timestamp = auditNow().UnixMilli()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// AuditAction records the outcome of an automation flow.
func AuditAction(action string, elapsed time.Duration, err error) {
	e := AuditEvent{
		EventType:  AuditActionComplete,
		Category:   CategoryAutomation,
		Action:     action,
		Success:    err == nil,
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		e.EventType = AuditActionError
		e.Error = err.Error()
	}
	Audit(e)
}
