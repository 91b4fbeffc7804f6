// Package clipboard wraps system clipboard access behind a two-method
// interface so automation flows can run against an in-memory clipboard in
// tests.
package clipboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
)

// Clipboard reads and writes plain text.
type Clipboard interface {
	ReadText(ctx context.Context) (string, error)
	WriteText(ctx context.Context, text string) error
}

// ClipboardError reports a failed clipboard operation.
type ClipboardError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *ClipboardError) Error() string {
	return fmt.Sprintf("clipboard %s failed: %v", e.Op, e.Err)
}

func (e *ClipboardError) Unwrap() error { return e.Err }

// System is the operating system clipboard.
type System struct{}

// NewSystem returns the OS clipboard, or an error when no clipboard
// utility is available (headless Linux without xclip/xsel/wl-clipboard).
func NewSystem() (*System, error) {
	if clipboard.Unsupported {
		return nil, &ClipboardError{Op: "open", Err: fmt.Errorf("no clipboard utility available")}
	}
	return &System{}, nil
}

func (System) ReadText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ClipboardError{Op: "read", Err: err}
	}
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", &ClipboardError{Op: "read", Err: err}
	}
	return text, nil
}

func (System) WriteText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return &ClipboardError{Op: "write", Err: err}
	}
	if err := clipboard.WriteAll(text); err != nil {
		return &ClipboardError{Op: "write", Err: err}
	}
	return nil
}

// Memory is an in-process clipboard.
type Memory struct {
	mu     sync.Mutex
	text   string
	writes []string

	// Fail, when set, makes every operation fail with this error.
	Fail error
}

// NewMemory returns an in-process clipboard holding initial.
func NewMemory(initial string) *Memory {
	return &Memory{text: initial}
}

func (m *Memory) ReadText(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return "", &ClipboardError{Op: "read", Err: m.Fail}
	}
	return m.text, nil
}

func (m *Memory) WriteText(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return &ClipboardError{Op: "write", Err: m.Fail}
	}
	m.text = text
	m.writes = append(m.writes, text)
	return nil
}

// Writes returns every value written so far, oldest first.
func (m *Memory) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}
