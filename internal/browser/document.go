package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"prismakit/internal/clipboard"
	"prismakit/internal/dom"
)

// deepQueryJS finds the first match for a selector under `this` (or the
// document), descending into open shadow roots. It runs in the page so a
// whole poll costs one round trip.
const deepQueryJS = `function (selector) {
	const visit = (root) => {
		const hit = root.querySelector(selector);
		if (hit) return hit;
		const hosts = [];
		if (root.shadowRoot) hosts.push(root);
		for (const el of root.querySelectorAll('*')) {
			if (el.shadowRoot) hosts.push(el);
		}
		for (const host of hosts) {
			const found = visit(host.shadowRoot);
			if (found) return found;
		}
		return null;
	};
	const start = (this && this.querySelector) ? this : document;
	return visit(start);
}`

const pasteJS = `function (text) {
	let el = document.activeElement;
	while (el && el.shadowRoot && el.shadowRoot.activeElement) {
		el = el.shadowRoot.activeElement;
	}
	if (!el) return false;
	const data = new DataTransfer();
	data.setData('text/plain', text);
	const ev = new ClipboardEvent('paste', {
		clipboardData: data, bubbles: true, cancelable: true, composed: true,
	});
	return el.dispatchEvent(ev);
}`

const popupJS = `function (id, title, html) {
	const domID = 'prismakit-popup-' + id;
	const old = document.getElementById(domID);
	if (old) old.remove();
	const box = document.createElement('div');
	box.id = domID;
	box.className = 'prismakit-popup';
	box.setAttribute('role', 'dialog');
	box.setAttribute('aria-label', title);
	box.style.cssText = 'position:fixed;right:24px;bottom:24px;z-index:2147483647;' +
		'max-width:420px;padding:16px 20px;background:#fff;color:#1b1b1b;' +
		'border:1px solid #c8c8c8;border-radius:6px;box-shadow:0 4px 16px rgba(0,0,0,.2);' +
		'font:14px/1.4 sans-serif;';
	const body = document.createElement('div');
	body.innerHTML = html;
	const close = document.createElement('button');
	close.type = 'button';
	close.textContent = 'Dismiss';
	close.style.cssText = 'margin-top:8px;';
	close.addEventListener('click', () => box.remove());
	box.append(body, close);
	(document.body || document.documentElement).appendChild(box);
	return true;
}`

// Document adapts a rod page to dom.Document. Queries never auto-wait; the
// dom.Waiter does the polling.
type Document struct {
	page *rod.Page
	clip clipboard.Clipboard
}

// NewDocument wraps page. clip backs Paste.
func NewDocument(page *rod.Page, clip clipboard.Clipboard) *Document {
	return &Document{page: page, clip: clip}
}

func (d *Document) p(ctx context.Context) *rod.Page { return d.page.Context(ctx) }

func (d *Document) QuerySelector(ctx context.Context, selector string) (dom.Element, error) {
	has, el, err := d.p(ctx).Has(selector)
	if err != nil {
		return nil, mapErr(err)
	}
	if !has {
		return nil, nil
	}
	return &Element{el: el}, nil
}

func (d *Document) QuerySelectorAll(ctx context.Context, selector string) ([]dom.Element, error) {
	els, err := d.p(ctx).Elements(selector)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapAll(els), nil
}

// QueryShadow runs the shadow piercing search inside the page.
func (d *Document) QueryShadow(ctx context.Context, selector string) (dom.Element, error) {
	obj, err := d.p(ctx).Evaluate(rod.Eval(deepQueryJS, selector).ByObject())
	if err != nil {
		return nil, mapErr(err)
	}
	return d.fromObject(obj)
}

func (d *Document) fromObject(obj *proto.RuntimeRemoteObject) (dom.Element, error) {
	if obj == nil || obj.ObjectID == "" {
		return nil, nil
	}
	el, err := d.page.ElementFromObject(obj)
	if err != nil {
		return nil, mapErr(err)
	}
	return &Element{el: el}, nil
}

func (d *Document) URL(ctx context.Context) (string, error) {
	res, err := d.p(ctx).Eval(`() => location.href`)
	if err != nil {
		return "", mapErr(err)
	}
	return res.Value.Str(), nil
}

func (d *Document) Text(ctx context.Context) (string, error) {
	res, err := d.p(ctx).Eval(`() => document.body ? document.body.innerText : ''`)
	if err != nil {
		return "", mapErr(err)
	}
	return res.Value.Str(), nil
}

// Paste delivers the clipboard text to the focused element: a paste event
// first, then, unless a handler cancelled it, the text is inserted as if
// typed.
func (d *Document) Paste(ctx context.Context) error {
	if d.clip == nil {
		return errors.New("paste: no clipboard")
	}
	text, err := d.clip.ReadText(ctx)
	if err != nil {
		return err
	}
	res, err := d.p(ctx).Eval(pasteJS, text)
	if err != nil {
		return mapErr(err)
	}
	if !res.Value.Bool() {
		return nil
	}
	if err := (proto.InputInsertText{Text: text}).Call(d.p(ctx)); err != nil {
		return fmt.Errorf("insert text: %w", err)
	}
	return nil
}

func (d *Document) Reload(ctx context.Context) error {
	if err := d.p(ctx).Reload(); err != nil {
		return mapErr(err)
	}
	return nil
}

// ShowPopup mounts p in the page. p.HTML must already be sanitized.
func (d *Document) ShowPopup(ctx context.Context, p dom.Popup) error {
	if _, err := d.p(ctx).Eval(popupJS, p.ID, p.Title, p.HTML); err != nil {
		return fmt.Errorf("show popup %s: %w", p.ID, mapErr(err))
	}
	return nil
}

// Element adapts a rod element.
type Element struct {
	el *rod.Element
}

// Rod returns the underlying rod element.
func (e *Element) Rod() *rod.Element { return e.el }

func (e *Element) c(ctx context.Context) *rod.Element { return e.el.Context(ctx) }

func (e *Element) QuerySelector(ctx context.Context, selector string) (dom.Element, error) {
	return querySelector(e.c(ctx), selector)
}

func (e *Element) QuerySelectorAll(ctx context.Context, selector string) ([]dom.Element, error) {
	return querySelectorAll(e.c(ctx), selector)
}

// QueryShadow runs the shadow piercing search inside the page, starting at
// this element.
func (e *Element) QueryShadow(ctx context.Context, selector string) (dom.Element, error) {
	return queryShadowFrom(e.c(ctx), selector)
}

func (e *Element) ShadowRoot(ctx context.Context) (dom.Root, error) {
	root, err := e.c(ctx).ShadowRoot()
	if err != nil {
		var none *rod.NoShadowRootError
		if errors.As(err, &none) {
			return nil, nil
		}
		return nil, mapErr(err)
	}
	return &shadowRoot{el: root}, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	text, err := e.c(ctx).Text()
	if err != nil {
		return "", mapErr(err)
	}
	return text, nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.c(ctx).Attribute(name)
	if err != nil {
		return "", false, mapErr(err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *Element) Value(ctx context.Context) (string, error) {
	v, err := e.c(ctx).Property("value")
	if err != nil {
		return "", mapErr(err)
	}
	if v.Nil() {
		return "", nil
	}
	return v.Str(), nil
}

// Click calls the element's click() in the page. Unlike a synthesized mouse
// click it does not require the element to be visible and uncovered.
func (e *Element) Click(ctx context.Context) error {
	return e.eval(ctx, `function () { this.click(); }`)
}

func (e *Element) Focus(ctx context.Context) error {
	if err := e.c(ctx).Focus(); err != nil {
		return mapErr(err)
	}
	return nil
}

func (e *Element) SetValue(ctx context.Context, value string) error {
	return e.eval(ctx, `function (v) { this.value = v; }`, value)
}

func (e *Element) Dispatch(ctx context.Context, eventType string) error {
	return e.eval(ctx, `function (type) {
		const init = { bubbles: true, cancelable: true, composed: true };
		const ev = type.startsWith('key') ? new KeyboardEvent(type, init) : new Event(type, init);
		this.dispatchEvent(ev);
	}`, eventType)
}

func (e *Element) eval(ctx context.Context, js string, args ...interface{}) error {
	if _, err := e.c(ctx).Eval(js, args...); err != nil {
		return mapErr(err)
	}
	return nil
}

// shadowRoot is an open shadow root. It is a Root but not an Element.
type shadowRoot struct {
	el *rod.Element
}

func (s *shadowRoot) QuerySelector(ctx context.Context, selector string) (dom.Element, error) {
	return querySelector(s.el.Context(ctx), selector)
}

func (s *shadowRoot) QuerySelectorAll(ctx context.Context, selector string) ([]dom.Element, error) {
	return querySelectorAll(s.el.Context(ctx), selector)
}

func (s *shadowRoot) QueryShadow(ctx context.Context, selector string) (dom.Element, error) {
	return queryShadowFrom(s.el.Context(ctx), selector)
}

func querySelector(el *rod.Element, selector string) (dom.Element, error) {
	has, found, err := el.Has(selector)
	if err != nil {
		return nil, mapErr(err)
	}
	if !has {
		return nil, nil
	}
	return &Element{el: found}, nil
}

func querySelectorAll(el *rod.Element, selector string) ([]dom.Element, error) {
	els, err := el.Elements(selector)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapAll(els), nil
}

func queryShadowFrom(el *rod.Element, selector string) (dom.Element, error) {
	obj, err := el.Evaluate(rod.Eval(deepQueryJS, selector).ByObject())
	if err != nil {
		return nil, mapErr(err)
	}
	if obj == nil || obj.ObjectID == "" {
		return nil, nil
	}
	found, err := el.Page().ElementFromObject(obj)
	if err != nil {
		return nil, mapErr(err)
	}
	return &Element{el: found}, nil
}

func wrapAll(els rod.Elements) []dom.Element {
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &Element{el: el})
	}
	return out
}

// mapErr turns rod's lost-object errors into dom.ErrDetached and selector
// syntax errors thrown in the page into dom.ErrInvalidSelector.
func mapErr(err error) error {
	var gone *rod.ObjectNotFoundError
	if errors.As(err, &gone) {
		return fmt.Errorf("%w: %v", dom.ErrDetached, err)
	}
	var thrown *rod.EvalError
	if errors.As(err, &thrown) && strings.Contains(err.Error(), "is not a valid selector") {
		return fmt.Errorf("%w: %v", dom.ErrInvalidSelector, err)
	}
	return err
}
