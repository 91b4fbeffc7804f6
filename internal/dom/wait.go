package dom

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prismakit/internal/logging"
)

const (
	DefaultPollInterval     = 100 * time.Millisecond
	DefaultElementTimeout   = 5 * time.Second
	DefaultShadowTimeout    = 10 * time.Second
	DefaultDisappearTimeout = 5 * time.Second
)

// Waiter polls a document until a selector appears or disappears. A zero
// timeout argument on any wait means the matching default below.
type Waiter struct {
	Doc              Document
	Interval         time.Duration
	ElementTimeout   time.Duration
	ShadowTimeout    time.Duration
	DisappearTimeout time.Duration
}

// NewWaiter returns a Waiter over doc with the default timings.
func NewWaiter(doc Document) *Waiter {
	return &Waiter{
		Doc:              doc,
		Interval:         DefaultPollInterval,
		ElementTimeout:   DefaultElementTimeout,
		ShadowTimeout:    DefaultShadowTimeout,
		DisappearTimeout: DefaultDisappearTimeout,
	}
}

func pick(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// WaitForElement resolves with the first element matching selector in the
// document's light DOM.
func (w *Waiter) WaitForElement(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	timeout = pick(timeout, pick(w.ElementTimeout, DefaultElementTimeout))
	return w.poll(ctx, selector, timeout, false, false, func(ctx context.Context) (Element, error) {
		return w.Doc.QuerySelector(ctx, selector)
	})
}

// WaitForElementToDisappear resolves once selector no longer matches in the
// document's light DOM.
func (w *Waiter) WaitForElementToDisappear(ctx context.Context, selector string, timeout time.Duration) error {
	timeout = pick(timeout, pick(w.DisappearTimeout, DefaultDisappearTimeout))
	_, err := w.poll(ctx, selector, timeout, true, false, func(ctx context.Context) (Element, error) {
		return w.Doc.QuerySelector(ctx, selector)
	})
	return err
}

// WaitForElementInShadow resolves with the first element matching selector
// anywhere under root, shadow roots included. A nil root means the document.
func (w *Waiter) WaitForElementInShadow(ctx context.Context, selector string, root Root, timeout time.Duration) (Element, error) {
	scoped := root != nil
	root = w.rootOrDoc(root)
	timeout = pick(timeout, pick(w.ShadowTimeout, DefaultShadowTimeout))
	return w.poll(ctx, selector, timeout, false, scoped, func(ctx context.Context) (Element, error) {
		return QueryShadow(ctx, root, selector)
	})
}

// WaitForElementToDisappearInShadow is WaitForElementToDisappear for
// elements hosted inside shadow roots.
func (w *Waiter) WaitForElementToDisappearInShadow(ctx context.Context, selector string, root Root, timeout time.Duration) error {
	scoped := root != nil
	root = w.rootOrDoc(root)
	timeout = pick(timeout, pick(w.DisappearTimeout, DefaultDisappearTimeout))
	_, err := w.poll(ctx, selector, timeout, true, scoped, func(ctx context.Context) (Element, error) {
		return QueryShadow(ctx, root, selector)
	})
	return err
}

func (w *Waiter) rootOrDoc(root Root) Root {
	if root == nil {
		return w.Doc
	}
	return root
}

// poll runs find immediately and then once per interval until it reports
// the wanted state, the deadline passes, or ctx ends. Query errors are
// retried until the deadline unless retrying cannot help: a selector that
// does not parse, or a scoped root that has left the document. The ticker
// and timer are released on every path.
func (w *Waiter) poll(ctx context.Context, selector string, timeout time.Duration, disappear, scoped bool, find func(context.Context) (Element, error)) (Element, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(pick(w.Interval, DefaultPollInterval))
	defer ticker.Stop()

	for {
		el, err := find(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			// ctx ended mid-query; reported below
		case err != nil && permanent(err, scoped):
			return nil, fmt.Errorf("query %q: %w", selector, err)
		case err != nil:
			logging.BrowserDebug("query %q failed, retrying: %v", selector, err)
		case disappear && el == nil:
			return nil, nil
		case !disappear && el != nil:
			return el, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %q: %w", selector, ctx.Err())
		case <-timer.C:
			return nil, &TimeoutError{Selector: selector, Timeout: timeout, Disappear: disappear}
		case <-ticker.C:
		}
	}
}

func permanent(err error, scoped bool) bool {
	if errors.Is(err, ErrInvalidSelector) {
		return true
	}
	return scoped && errors.Is(err, ErrDetached)
}
