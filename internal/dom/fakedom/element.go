package fakedom

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"prismakit/internal/dom"
)

// Element is a node of a fake Document.
type Element struct {
	doc  *Document
	node *html.Node
}

// ShadowRoot is an open shadow root attached to an Element.
type ShadowRoot struct {
	doc  *Document
	node *html.Node
}

func (s *ShadowRoot) QuerySelector(ctx context.Context, selector string) (dom.Element, error) {
	return s.doc.query(s.node, selector)
}

func (s *ShadowRoot) QuerySelectorAll(ctx context.Context, selector string) ([]dom.Element, error) {
	return s.doc.queryAll(s.node, selector)
}

// Node exposes the underlying html node for identity comparisons.
func (e *Element) Node() *html.Node { return e.node }

func (e *Element) checkAttached() error {
	if !e.doc.attached(e.node) {
		return dom.ErrDetached
	}
	return nil
}

func (e *Element) QuerySelector(ctx context.Context, selector string) (dom.Element, error) {
	return e.doc.query(e.node, selector)
}

func (e *Element) QuerySelectorAll(ctx context.Context, selector string) ([]dom.Element, error) {
	return e.doc.queryAll(e.node, selector)
}

func (e *Element) ShadowRoot(ctx context.Context) (dom.Root, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if err := e.checkAttached(); err != nil {
		return nil, err
	}
	shadow, ok := e.doc.shadows[e.node]
	if !ok {
		return nil, nil
	}
	return &ShadowRoot{doc: e.doc, node: shadow}, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if err := e.checkAttached(); err != nil {
		return "", err
	}
	return textOf(e.node), nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if err := e.checkAttached(); err != nil {
		return "", false, err
	}
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true, nil
		}
	}
	return "", false, nil
}

func (e *Element) Value(ctx context.Context) (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if err := e.checkAttached(); err != nil {
		return "", err
	}
	if v, ok := e.doc.values[e.node]; ok {
		return v, nil
	}
	for _, a := range e.node.Attr {
		if a.Key == "value" {
			return a.Val, nil
		}
	}
	return "", nil
}

func (e *Element) fire(eventType string) error {
	e.doc.mu.Lock()
	if err := e.checkAttached(); err != nil {
		e.doc.mu.Unlock()
		return err
	}
	e.doc.events[e.node] = append(e.doc.events[e.node], eventType)
	fns := e.doc.listenersFor(e.node, eventType)
	e.doc.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

func (e *Element) Click(ctx context.Context) error {
	return e.fire("click")
}

func (e *Element) Focus(ctx context.Context) error {
	e.doc.mu.Lock()
	if err := e.checkAttached(); err != nil {
		e.doc.mu.Unlock()
		return err
	}
	e.doc.focused = e.node
	e.doc.mu.Unlock()
	return e.fire("focus")
}

func (e *Element) SetValue(ctx context.Context, value string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if err := e.checkAttached(); err != nil {
		return err
	}
	e.doc.values[e.node] = value
	return nil
}

func (e *Element) Dispatch(ctx context.Context, eventType string) error {
	return e.fire(eventType)
}

// =============================================================================
// TEST HELPERS - mutate the tree the way the host app's rendering would
// =============================================================================

// Find returns the first element matching selector anywhere in the
// document, shadow roots included, or nil.
func (d *Document) Find(selector string) *Element {
	el, err := dom.QueryShadow(context.Background(), d, selector)
	if err != nil || el == nil {
		return nil
	}
	return el.(*Element)
}

// MustFind is Find that panics when nothing matches.
func (d *Document) MustFind(selector string) *Element {
	el := d.Find(selector)
	if el == nil {
		panic(fmt.Sprintf("fakedom: no element matches %q", selector))
	}
	return el
}

// AttachShadow gives host an open shadow root containing src.
func (d *Document) AttachShadow(host *Element, src string) (*ShadowRoot, error) {
	nodes, err := parseFragment(src)
	if err != nil {
		return nil, fmt.Errorf("parse shadow content: %w", err)
	}
	shadow := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		shadow.AppendChild(n)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shadows[host.node] = shadow
	return &ShadowRoot{doc: d, node: shadow}, nil
}

// MustAttachShadow is AttachShadow that panics on error.
func (d *Document) MustAttachShadow(host *Element, src string) *ShadowRoot {
	s, err := d.AttachShadow(host, src)
	if err != nil {
		panic(err)
	}
	return s
}

// AppendHTML parses src and appends it to parent, which is an *Element or
// a *ShadowRoot. A nil parent means <body>.
func (d *Document) AppendHTML(parent dom.Root, src string) error {
	nodes, err := parseFragment(src)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var target *html.Node
	switch p := parent.(type) {
	case nil:
		target = findBody(d.root)
	case *Element:
		target = p.node
	case *ShadowRoot:
		target = p.node
	default:
		return fmt.Errorf("unsupported parent %T", parent)
	}
	if target == nil {
		return fmt.Errorf("no parent to append to")
	}
	for _, n := range nodes {
		target.AppendChild(n)
	}
	return nil
}

// Remove detaches el from its parent.
func (d *Document) Remove(el *Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el.node.Parent != nil {
		el.node.Parent.RemoveChild(el.node)
	}
}

// On registers fn to run whenever el receives eventType.
func (d *Document) On(el *Element, eventType string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listeners[el.node] == nil {
		d.listeners[el.node] = make(map[string][]func())
	}
	d.listeners[el.node][eventType] = append(d.listeners[el.node][eventType], fn)
}

// OnClick registers a click listener.
func (d *Document) OnClick(el *Element, fn func()) { d.On(el, "click", fn) }

// OnReload registers fn to run on Reload.
func (d *Document) OnReload(fn func()) {
	d.On(&Element{doc: d, node: d.root}, "reload", fn)
}

// Events returns the event types el has received, oldest first.
func (d *Document) Events(el *Element) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events[el.node]...)
}

// Clicks returns how many times el was clicked.
func (d *Document) Clicks(el *Element) int {
	n := 0
	for _, ev := range d.Events(el) {
		if ev == "click" {
			n++
		}
	}
	return n
}

// HTML renders the light DOM, for debugging failed tests.
func (d *Document) HTML() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var sb strings.Builder
	_ = html.Render(&sb, d.root)
	return sb.String()
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
