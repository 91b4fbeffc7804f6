package logging

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readAudit(t *testing.T, dir string) []AuditEvent {
	t.Helper()
	path := filepath.Join(dir, time.Now().Format("2006-01-02")+"_audit.log")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("expected audit log: %v", err)
	}
	defer f.Close()

	var events []AuditEvent
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e AuditEvent
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("bad audit line %q: %v", sc.Text(), err)
		}
		events = append(events, e)
	}
	return events
}

func TestAuditTrail(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(Options{DebugMode: true, Level: "info", Dir: dir}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(CloseAll)

	AuditAction("swapAccount", 1500*time.Millisecond, nil)
	AuditAction("performDNumberSearch", 20*time.Millisecond, errors.New("search result for D1 not found"))
	Audit(AuditEvent{EventType: AuditReminderShown, Category: CategoryReminder, Target: "r1", Success: true})
	CloseAll()

	events := readAudit(t, dir)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if e := events[0]; e.EventType != AuditActionComplete || !e.Success || e.DurationMs != 1500 || e.Action != "swapAccount" {
		t.Errorf("unexpected success event %+v", e)
	}
	if e := events[1]; e.EventType != AuditActionError || e.Success || e.Error == "" {
		t.Errorf("unexpected failure event %+v", e)
	}
	if e := events[2]; e.EventType != AuditReminderShown || e.Timestamp == 0 {
		t.Errorf("unexpected reminder event %+v", e)
	}
}

func TestAuditDisabledOutsideDebugMode(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(Options{Level: "info", Dir: dir}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(CloseAll)

	AuditAction("swapAccount", time.Second, nil)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files outside debug mode, got %d", len(entries))
	}
}
