// Package fakedom is an in-memory implementation of the dom interfaces for
// tests. Documents are parsed from HTML; open shadow roots are attached to
// host elements explicitly; click and event listeners are plain Go funcs.
// It is safe to mutate a Document from one goroutine while another polls it.
package fakedom

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"prismakit/internal/clipboard"
	"prismakit/internal/dom"
)

// Document is an in-memory host page.
type Document struct {
	mu        sync.Mutex
	root      *html.Node
	shadows   map[*html.Node]*html.Node
	values    map[*html.Node]string
	listeners map[*html.Node]map[string][]func()
	events    map[*html.Node][]string
	focused   *html.Node
	url       string
	clip      clipboard.Clipboard
	popups    []dom.Popup
	reloads   int
	pastes    int
}

// Parse builds a Document from an HTML string. clip backs Paste and may be nil.
func Parse(src string, clip clipboard.Clipboard) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{
		root:      root,
		shadows:   make(map[*html.Node]*html.Node),
		values:    make(map[*html.Node]string),
		listeners: make(map[*html.Node]map[string][]func()),
		events:    make(map[*html.Node][]string),
		url:       "about:blank",
		clip:      clip,
	}, nil
}

// MustParse is Parse that panics on error.
func MustParse(src string, clip clipboard.Clipboard) *Document {
	d, err := Parse(src, clip)
	if err != nil {
		panic(err)
	}
	return d
}

func parseFragment(src string) ([]*html.Node, error) {
	ctxNode := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	return html.ParseFragment(strings.NewReader(src), ctxNode)
}

func compile(selector string) (cascadia.Selector, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", dom.ErrInvalidSelector, selector, err)
	}
	return sel, nil
}

// attached reports whether n is still reachable from the document or from a
// shadow root whose host is attached. Caller holds d.mu.
func (d *Document) attached(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == d.root {
			return true
		}
		if cur.Parent == nil {
			for host, shadow := range d.shadows {
				if shadow == cur {
					return d.attached(host)
				}
			}
			return false
		}
	}
	return false
}

func (d *Document) query(n *html.Node, selector string) (dom.Element, error) {
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	found := cascadia.Query(n, sel)
	if found == nil {
		return nil, nil
	}
	return &Element{doc: d, node: found}, nil
}

func (d *Document) queryAll(n *html.Node, selector string) ([]dom.Element, error) {
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes := cascadia.QueryAll(n, sel)
	out := make([]dom.Element, 0, len(nodes))
	for _, found := range nodes {
		out = append(out, &Element{doc: d, node: found})
	}
	return out, nil
}

func (d *Document) QuerySelector(ctx context.Context, selector string) (dom.Element, error) {
	return d.query(d.root, selector)
}

func (d *Document) QuerySelectorAll(ctx context.Context, selector string) ([]dom.Element, error) {
	return d.queryAll(d.root, selector)
}

func (d *Document) URL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

// SetURL simulates a single-page-app navigation.
func (d *Document) SetURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
}

// Text returns the text content of <body>, excluding shadow content.
func (d *Document) Text(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	body := cascadia.Query(d.root, cascadia.MustCompile("body"))
	if body == nil {
		return "", nil
	}
	return textOf(body), nil
}

// SetBodyText replaces the body's children with a single text node.
func (d *Document) SetBodyText(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	body := cascadia.Query(d.root, cascadia.MustCompile("body"))
	if body == nil {
		return
	}
	for c := body.FirstChild; c != nil; {
		next := c.NextSibling
		body.RemoveChild(c)
		c = next
	}
	body.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// Paste inserts the clipboard text into the focused input.
func (d *Document) Paste(ctx context.Context) error {
	if d.clip == nil {
		return fmt.Errorf("paste: no clipboard")
	}
	text, err := d.clip.ReadText(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	target := d.focused
	d.pastes++
	if target != nil && d.attached(target) && isEditable(target) {
		d.values[target] += text
		d.events[target] = append(d.events[target], "paste")
	}
	fns := d.listenersFor(target, "paste")
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

func (d *Document) Reload(ctx context.Context) error {
	d.mu.Lock()
	d.reloads++
	fns := d.listenersFor(d.root, "reload")
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return nil
}

// ShowPopup records the popup and mounts its HTML under <body> inside a
// div with id "prismakit-popup-<ID>".
func (d *Document) ShowPopup(ctx context.Context, p dom.Popup) error {
	nodes, err := parseFragment(p.HTML)
	if err != nil {
		return fmt.Errorf("parse popup: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.popups = append(d.popups, p)

	body := cascadia.Query(d.root, cascadia.MustCompile("body"))
	if body == nil {
		return nil
	}
	container := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr: []html.Attribute{
			{Key: "id", Val: "prismakit-popup-" + p.ID},
			{Key: "class", Val: "prismakit-popup"},
		},
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	body.AppendChild(container)
	return nil
}

// Popups returns every popup shown so far.
func (d *Document) Popups() []dom.Popup {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dom.Popup(nil), d.popups...)
}

// Reloads returns how many times Reload was called.
func (d *Document) Reloads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reloads
}

// Pastes returns how many times Paste was called.
func (d *Document) Pastes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pastes
}

func (d *Document) listenersFor(n *html.Node, eventType string) []func() {
	if n == nil {
		return nil
	}
	return append([]func(){}, d.listeners[n][eventType]...)
}

func isEditable(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.DataAtom == atom.Input || n.DataAtom == atom.Textarea)
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
