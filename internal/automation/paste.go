package automation

import (
	"context"
	"fmt"
	"strings"

	"prismakit/internal/dom"
	"prismakit/internal/logging"
)

// ItemFailure records the failure of one approver in a paste batch.
type ItemFailure struct {
	Email string `json:"email"`
	Step  string `json:"step"`
	Err   string `json:"error"`
}

// BatchResult is the outcome of PasteApprovers.
type BatchResult struct {
	Added  []string      `json:"added"`
	Failed []ItemFailure `json:"failed,omitempty"`
}

// PasteApprovers adds each email to the approver multi-select in order.
// A missing widget aborts the batch; any other failure is recorded for that
// email and the batch moves on. The clipboard is restored afterwards.
func (a *Automator) PasteApprovers(ctx context.Context, emails []string) (BatchResult, error) {
	var result BatchResult
	err := a.run(ctx, ActionPasteApprover, func(ctx context.Context) error {
		var err error
		result, err = a.pasteApprovers(ctx, emails)
		return err
	})
	return result, err
}

func (a *Automator) pasteApprovers(ctx context.Context, emails []string) (BatchResult, error) {
	const flow = ActionPasteApprover
	sel := a.cfg.Selectors
	result := BatchResult{Added: []string{}}

	saved, readErr := a.clip.ReadText(ctx)
	if readErr != nil {
		logging.ClipboardWarn("Could not save clipboard, it will not be restored: %v", readErr)
	}
	defer func() {
		if readErr != nil {
			return
		}
		// The flow's ctx may already be done; restoring must still happen.
		if err := a.clip.WriteText(context.WithoutCancel(ctx), saved); err != nil {
			logging.ClipboardWarn("Could not restore clipboard: %v", err)
		}
	}()

	widget, err := a.waitIn(ctx, nil, sel.ApproverSelect)
	if err != nil {
		return result, step(flow, "find approver select", err)
	}

	for _, email := range emails {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, step(flow, "paste "+email, err)
		}
		if name, err := a.pasteOne(ctx, widget, email); err != nil {
			logging.AutomationWarn("Could not add approver %s at %s: %v", email, name, err)
			result.Failed = append(result.Failed, ItemFailure{Email: email, Step: name, Err: err.Error()})
			logging.Audit(logging.AuditEvent{
				EventType: logging.AuditItemFailed,
				Category:  logging.CategoryAutomation,
				Action:    ActionPasteApprover,
				Target:    email,
				Error:     err.Error(),
				Fields:    map[string]any{"step": name},
			})
			continue
		}
		result.Added = append(result.Added, email)
	}
	logging.Automation("Pasted %d of %d approvers", len(result.Added), len(result.Added)+len(result.Failed))
	return result, nil
}

// pasteOne adds a single email and returns the failed step's name on error.
func (a *Automator) pasteOne(ctx context.Context, widget dom.Element, email string) (string, error) {
	sel := a.cfg.Selectors

	if err := a.clip.WriteText(ctx, email); err != nil {
		return "write clipboard", err
	}
	if err := widget.Click(ctx); err != nil {
		return "open select", err
	}
	input, err := a.waitIn(ctx, widget, sel.ApproverInput)
	if err != nil {
		return "wait for search input", err
	}
	if err := input.Focus(ctx); err != nil {
		return "focus search input", err
	}
	if err := a.doc.Paste(ctx); err != nil {
		return "paste", err
	}
	if err := input.Dispatch(ctx, "input"); err != nil {
		return "dispatch input", fmt.Errorf("dispatch input: %w", err)
	}
	if _, err := a.waitAndClick(ctx, widget, sel.ApproverOption); err != nil {
		return "select result", err
	}
	if err := a.wait.WaitForElementToDisappearInShadow(ctx, sel.ApproverOption, widget, 0); err != nil {
		return "wait for results to clear", err
	}
	return "", nil
}
