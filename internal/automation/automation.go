// Package automation drives the host app through multi-step UI flows.
//
// Every flow is a strict sequence of wait, act, wait steps built on the dom
// wait primitives. The first fatal error ends the flow and is returned as a
// *StepError naming the step. Nothing is rolled back: the page is left in
// whatever state the failed step produced.
package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"prismakit/internal/clipboard"
	"prismakit/internal/config"
	"prismakit/internal/dom"
	"prismakit/internal/logging"
)

// Action names, shared with the message bus.
const (
	ActionDNumberSearch = "performDNumberSearch"
	ActionSwapAccount   = "swapAccount"
	ActionPasteApprover = "pasteApprovers"
)

// ErrInProgress is returned when an action is started while the same action
// is still running.
var ErrInProgress = errors.New("already in progress")

// StepError reports the step at which a flow failed.
type StepError struct {
	Flow string
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Flow, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Automator runs the flows against one document.
type Automator struct {
	doc   dom.Document
	clip  clipboard.Clipboard
	wait  *dom.Waiter
	cfg   config.AutomationConfig
	stats *Stats

	mu      sync.Mutex
	running map[string]bool
}

// New returns an Automator. stats may be nil.
func New(doc dom.Document, clip clipboard.Clipboard, wait *dom.Waiter, cfg config.AutomationConfig, stats *Stats) *Automator {
	if wait == nil {
		wait = dom.NewWaiter(doc)
	}
	return &Automator{
		doc:     doc,
		clip:    clip,
		wait:    wait,
		cfg:     cfg,
		stats:   stats,
		running: make(map[string]bool),
	}
}

// NewFromConfig builds the Waiter from cfg's timings.
func NewFromConfig(doc dom.Document, clip clipboard.Clipboard, cfg *config.Config, stats *Stats) *Automator {
	w := dom.NewWaiter(doc)
	w.Interval = cfg.GetPollInterval()
	w.ElementTimeout = cfg.GetElementTimeout()
	w.ShadowTimeout = cfg.GetShadowTimeout()
	w.DisappearTimeout = cfg.GetDisappearTimeout()
	return New(doc, clip, w, cfg.Automation, stats)
}

// Running reports whether action is currently executing.
func (a *Automator) Running(action string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running[action]
}

// begin claims action. The returned func releases it and must be called on
// every outcome.
func (a *Automator) begin(action string) (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running[action] {
		return nil, fmt.Errorf("%s: %w", action, ErrInProgress)
	}
	a.running[action] = true
	return func() {
		a.mu.Lock()
		delete(a.running, action)
		a.mu.Unlock()
	}, nil
}

// run executes flow as action with the re-entry guard, timing, logging and
// stats recording shared by every flow.
func (a *Automator) run(ctx context.Context, action string, flow func(context.Context) error) error {
	release, err := a.begin(action)
	if err != nil {
		logging.AutomationWarn("Ignoring %s: %v", action, err)
		logging.Audit(logging.AuditEvent{EventType: logging.AuditActionRejected, Category: logging.CategoryAutomation, Action: action})
		return err
	}
	defer release()

	timer := logging.StartTimer(logging.CategoryAutomation, action)
	err = flow(ctx)
	elapsed := timer.Stop()

	if err != nil {
		logging.AutomationError("%s failed after %v: %v", action, elapsed, err)
	} else {
		logging.Automation("%s completed in %v", action, elapsed)
	}
	logging.AuditAction(action, elapsed, err)
	if a.stats != nil {
		a.stats.Record(ctx, action, err)
	}
	return err
}

// step wraps err as a *StepError for flow.
func step(flow, name string, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Flow: flow, Step: name, Err: err}
}

// waitIn waits for selector under root, shadow roots included.
func (a *Automator) waitIn(ctx context.Context, root dom.Root, selector string) (dom.Element, error) {
	return a.wait.WaitForElementInShadow(ctx, selector, root, 0)
}

// waitAndClick waits for selector under root and clicks it.
func (a *Automator) waitAndClick(ctx context.Context, root dom.Root, selector string) (dom.Element, error) {
	el, err := a.waitIn(ctx, root, selector)
	if err != nil {
		return nil, err
	}
	if err := el.Click(ctx); err != nil {
		return nil, fmt.Errorf("click %q: %w", selector, err)
	}
	return el, nil
}

// hasClass reports whether el's class attribute contains class as a token.
func hasClass(ctx context.Context, el dom.Element, class string) (bool, error) {
	attr, ok, err := el.Attribute(ctx, "class")
	if err != nil || !ok {
		return false, err
	}
	for _, c := range strings.Fields(attr) {
		if c == class {
			return true, nil
		}
	}
	return false, nil
}

// now is replaced in tests.
var now = time.Now
