package automation

import (
	"context"
	"fmt"
	"strings"

	"prismakit/internal/dom"
)

// SwapAccount switches the user to the other PID through the user menu
// and reloads the page.
func (a *Automator) SwapAccount(ctx context.Context) error {
	return a.run(ctx, ActionSwapAccount, a.swapAccount)
}

func (a *Automator) swapAccount(ctx context.Context) error {
	const flow = ActionSwapAccount
	sel := a.cfg.Selectors

	if _, err := a.waitAndClick(ctx, nil, sel.UserMenuTrigger); err != nil {
		return step(flow, "open user menu", err)
	}
	panel, err := a.waitIn(ctx, nil, sel.UserMenuPanel)
	if err != nil {
		return step(flow, "wait for user menu", err)
	}
	item, err := menuItem(ctx, panel, sel.MenuItem, a.cfg.SwapMenuLabel)
	if err != nil {
		return step(flow, "find swap menu item", err)
	}
	if err := item.Click(ctx); err != nil {
		return step(flow, "open swap dialog", err)
	}

	dialog, err := a.waitIn(ctx, nil, sel.SwapDialog)
	if err != nil {
		return step(flow, "wait for swap dialog", err)
	}
	group, err := dom.QueryShadow(ctx, dialog, sel.OptionsGroup)
	if err != nil {
		return step(flow, "find PID options", err)
	}
	if group == nil {
		return step(flow, "find PID options", &dom.NotFoundError{Role: "PID options container"})
	}
	option, err := inactiveOption(ctx, group, sel.OptionButton, a.cfg.ActiveOptionClass)
	if err != nil {
		return step(flow, "find inactive PID", err)
	}
	if err := option.Click(ctx); err != nil {
		return step(flow, "select PID", err)
	}

	if _, err := a.waitAndClick(ctx, dialog, sel.SaveButton); err != nil {
		return step(flow, "save", err)
	}
	if err := a.wait.WaitForElementToDisappearInShadow(ctx, sel.SwapDialog, nil, 0); err != nil {
		return step(flow, "wait for dialog to close", err)
	}
	if err := a.doc.Reload(ctx); err != nil {
		return step(flow, "reload", err)
	}
	return nil
}

// menuItem returns the item under panel whose trimmed text is exactly label.
func menuItem(ctx context.Context, panel dom.Root, selector, label string) (dom.Element, error) {
	items, err := dom.QueryShadowAll(ctx, panel, selector)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		text, err := item.Text(ctx)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == label {
			return item, nil
		}
	}
	return nil, &dom.NotFoundError{Role: fmt.Sprintf("menu item %q", label), Selector: selector}
}

// inactiveOption returns the first option button not marked active.
func inactiveOption(ctx context.Context, group dom.Root, selector, activeClass string) (dom.Element, error) {
	options, err := dom.QueryShadowAll(ctx, group, selector)
	if err != nil {
		return nil, err
	}
	for _, opt := range options {
		active, err := hasClass(ctx, opt, activeClass)
		if err != nil {
			continue
		}
		if !active {
			return opt, nil
		}
	}
	return nil, &dom.NotFoundError{Role: "inactive PID option", Selector: selector}
}
