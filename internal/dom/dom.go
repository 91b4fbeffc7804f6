// Package dom describes the host page as the automation flows see it: a
// document of elements that may expose open shadow roots, plus the polling
// primitives used to synchronize with the page's asynchronous rendering.
//
// The interfaces are small on purpose: the browser package implements them
// over the DevTools protocol and the fakedom package implements them in
// memory for tests.
package dom

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Root is anything selectors can be evaluated against: the document, an
// element, or an element's shadow root.
type Root interface {
	// QuerySelector returns the first descendant matching selector, or
	// (nil, nil) when there is none. It does not pierce shadow roots.
	QuerySelector(ctx context.Context, selector string) (Element, error)
	// QuerySelectorAll returns all descendants matching selector in
	// document order. It does not pierce shadow roots.
	QuerySelectorAll(ctx context.Context, selector string) ([]Element, error)
}

// Element is a node in the host page.
type Element interface {
	Root

	// ShadowRoot returns the element's open shadow root, or (nil, nil).
	ShadowRoot(ctx context.Context) (Root, error)
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	Value(ctx context.Context) (string, error)

	Click(ctx context.Context) error
	Focus(ctx context.Context) error
	SetValue(ctx context.Context, value string) error
	// Dispatch fires a synthetic bubbling event of the given type.
	Dispatch(ctx context.Context, eventType string) error
}

// Document is the host page.
type Document interface {
	Root

	URL(ctx context.Context) (string, error)
	// Text returns the visible text of the page body.
	Text(ctx context.Context) (string, error)
	// Paste simulates a user paste into the focused element.
	Paste(ctx context.Context) error
	Reload(ctx context.Context) error
	// ShowPopup mounts a reminder popup. HTML must already be sanitized.
	ShowPopup(ctx context.Context, p Popup) error
}

// Popup is a reminder rendered into the page.
type Popup struct {
	ID    string
	Title string
	HTML  string
}

// ShadowQuerier is implemented by roots that can run the whole shadow
// piercing search natively (for instance inside the page in one round trip).
type ShadowQuerier interface {
	QueryShadow(ctx context.Context, selector string) (Element, error)
}

// ErrDetached is returned by element operations once the element has been
// removed from its document.
var ErrDetached = errors.New("element detached from document")

// ErrInvalidSelector is returned by queries whose selector does not parse.
var ErrInvalidSelector = errors.New("invalid selector")

// TimeoutError reports that an element never appeared (or never went
// away) within the wait budget.
type TimeoutError struct {
	Selector  string
	Timeout   time.Duration
	Disappear bool
}

func (e *TimeoutError) Error() string {
	if e.Disappear {
		return fmt.Sprintf("timed out after %v waiting for %q to disappear", e.Timeout, e.Selector)
	}
	return fmt.Sprintf("timed out after %v waiting for %q", e.Timeout, e.Selector)
}

// NotFoundError reports a required element that was absent at a point where
// no wait was attempted.
type NotFoundError struct {
	Role     string
	Selector string
}

func (e *NotFoundError) Error() string {
	if e.Selector == "" {
		return e.Role + " not found"
	}
	return fmt.Sprintf("%s not found (%s)", e.Role, e.Selector)
}

// IsTimeout reports whether err is or wraps a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
