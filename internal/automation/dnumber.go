package automation

import (
	"context"
	"fmt"
	"strings"

	"prismakit/internal/dom"
	"prismakit/internal/logging"
)

// DNumberSearch opens the global search, enters query and follows the
// result link whose text contains it.
func (a *Automator) DNumberSearch(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return &StepError{Flow: ActionDNumberSearch, Step: "validate", Err: fmt.Errorf("d-number is required")}
	}
	return a.run(ctx, ActionDNumberSearch, func(ctx context.Context) error {
		return a.dNumberSearch(ctx, query)
	})
}

func (a *Automator) dNumberSearch(ctx context.Context, query string) error {
	const flow = ActionDNumberSearch
	sel := a.cfg.Selectors

	if _, err := a.waitAndClick(ctx, nil, sel.SearchTrigger); err != nil {
		return step(flow, "open search", err)
	}
	overlay, err := a.waitIn(ctx, nil, sel.SearchOverlay)
	if err != nil {
		return step(flow, "wait for search overlay", err)
	}
	input, err := a.waitIn(ctx, overlay, sel.SearchInput)
	if err != nil {
		return step(flow, "wait for search input", err)
	}
	if err := a.enterText(ctx, input, query); err != nil {
		return step(flow, "enter query", err)
	}

	results, err := a.waitIn(ctx, overlay, sel.SearchResults)
	if err != nil {
		return step(flow, "wait for search results", err)
	}
	// The list container renders before its rows.
	if _, err := a.waitIn(ctx, results, sel.ResultLink); err != nil {
		return step(flow, "wait for result links", err)
	}
	link, err := matchingLink(ctx, results, sel.ResultLink, query)
	if err != nil {
		return step(flow, "find result link", err)
	}
	if err := link.Click(ctx); err != nil {
		return step(flow, "open result", err)
	}
	return nil
}

// enterText pastes text into input the way a user would, falling back to
// setting the value directly when the paste did not take. Input and keyup
// events are dispatched either way so the host app runs its search.
func (a *Automator) enterText(ctx context.Context, input dom.Element, text string) error {
	if err := input.SetValue(ctx, ""); err != nil {
		return err
	}
	pasted := false
	if err := a.clip.WriteText(ctx, text); err != nil {
		logging.ClipboardWarn("Clipboard write failed, setting value directly: %v", err)
	} else {
		if err := input.Focus(ctx); err != nil {
			return err
		}
		if err := a.doc.Paste(ctx); err != nil {
			logging.AutomationWarn("Paste failed, setting value directly: %v", err)
		} else {
			pasted = true
		}
	}

	value, err := input.Value(ctx)
	if err != nil {
		return err
	}
	if !pasted || value != text {
		logging.AutomationDebug("Paste did not take (value %q), setting %q directly", value, text)
		if err := input.SetValue(ctx, text); err != nil {
			return err
		}
	}
	for _, ev := range []string{"input", "keyup"} {
		if err := input.Dispatch(ctx, ev); err != nil {
			return fmt.Errorf("dispatch %s: %w", ev, err)
		}
	}
	return nil
}

// matchingLink returns the first link under results whose text contains
// query, ignoring case.
func matchingLink(ctx context.Context, results dom.Root, selector, query string) (dom.Element, error) {
	links, err := dom.QueryShadowAll(ctx, results, selector)
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(query)
	for _, link := range links {
		text, err := link.Text(ctx)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(text), want) {
			return link, nil
		}
	}
	return nil, &dom.NotFoundError{Role: fmt.Sprintf("search result for %s", query), Selector: selector}
}
