package dom

import (
	"context"
	"errors"
)

// QueryShadow returns the first element matching selector under root,
// searching root's light DOM first and then, depth first, the shadow root
// of every element that exposes one. It returns (nil, nil) when nothing in
// the tree matches.
func QueryShadow(ctx context.Context, root Root, selector string) (Element, error) {
	if sq, ok := root.(ShadowQuerier); ok {
		return sq.QueryShadow(ctx, selector)
	}
	return queryShadow(ctx, root, selector)
}

func queryShadow(ctx context.Context, root Root, selector string) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	el, err := root.QuerySelector(ctx, selector)
	if err != nil {
		return nil, err
	}
	if el != nil {
		return el, nil
	}

	all, err := hosts(ctx, root)
	if err != nil {
		return nil, err
	}
	for _, candidate := range all {
		shadow, err := candidate.ShadowRoot(ctx)
		if errors.Is(err, ErrDetached) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if shadow == nil {
			continue
		}
		found, err := queryShadow(ctx, shadow, selector)
		if err != nil {
			return nil, err
		}
		if found != nil {
			return found, nil
		}
	}
	return nil, nil
}

// QueryShadowAll returns every element matching selector under root,
// shadow roots included. Light DOM matches of a root come before matches
// inside the shadow roots below it.
func QueryShadowAll(ctx context.Context, root Root, selector string) ([]Element, error) {
	var out []Element
	if err := collectShadow(ctx, root, selector, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func collectShadow(ctx context.Context, root Root, selector string, out *[]Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	matches, err := root.QuerySelectorAll(ctx, selector)
	if err != nil {
		return err
	}
	*out = append(*out, matches...)

	all, err := hosts(ctx, root)
	if err != nil {
		return err
	}
	for _, candidate := range all {
		shadow, err := candidate.ShadowRoot(ctx)
		if errors.Is(err, ErrDetached) {
			continue
		}
		if err != nil {
			return err
		}
		if shadow == nil {
			continue
		}
		if err := collectShadow(ctx, shadow, selector, out); err != nil {
			return err
		}
	}
	return nil
}

// hosts lists the elements whose shadow roots are searched below root: root
// itself when it is an element, then every descendant in document order.
func hosts(ctx context.Context, root Root) ([]Element, error) {
	all, err := root.QuerySelectorAll(ctx, "*")
	if err != nil {
		return nil, err
	}
	if el, ok := root.(Element); ok {
		all = append([]Element{el}, all...)
	}
	return all, nil
}
