package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Element wraps one node of a Document. Elements are cheap handles: two
// Elements for the same node are interchangeable.
type Element struct {
	doc *Document
	n   *html.Node
}

// Tag returns the lower-case tag name.
func (e *Element) Tag() string {
	return strings.ToLower(e.n.Data)
}

// Attr returns the attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for _, a := range e.n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr writes an attribute and notifies subtree observers.
func (e *Element) SetAttr(name, value string) {
	e.doc.mu.Lock()
	for i := range e.n.Attr {
		if e.n.Attr[i].Key == name {
			e.n.Attr[i].Val = value
			e.doc.notifyAndUnlock(e.n)
			return
		}
	}
	e.n.Attr = append(e.n.Attr, html.Attribute{Key: name, Val: value})
	e.doc.notifyAndUnlock(e.n)
}

// Prop returns an element property. Properties live beside attributes: an
// input's live value is a property even when the value attribute never
// changes, which is why value reads prefer the property.
func (e *Element) Prop(name string) (any, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	p, ok := e.doc.props[e.n]
	if !ok {
		return nil, false
	}
	v, ok := p[name]
	return v, ok
}

// SetProp writes an element property and notifies subtree observers.
func (e *Element) SetProp(name string, value any) {
	e.doc.mu.Lock()
	p := e.doc.props[e.n]
	if p == nil {
		p = make(map[string]any)
		e.doc.props[e.n] = p
	}
	p[name] = value
	e.doc.notifyAndUnlock(e.n)
}

// Text returns the concatenated text content of the subtree (innerText).
func (e *Element) Text() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	var sb strings.Builder
	walk(e.n, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		return true
	})
	return sb.String()
}

// SetText replaces the subtree with a single text node.
func (e *Element) SetText(text string) {
	e.doc.mu.Lock()
	for c := e.n.FirstChild; c != nil; {
		next := c.NextSibling
		e.n.RemoveChild(c)
		c = next
	}
	e.n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	e.doc.notifyAndUnlock(e.n)
}

// AppendChild attaches a detached element as the last child.
func (e *Element) AppendChild(child *Element) {
	e.doc.mu.Lock()
	e.n.AppendChild(child.n)
	e.doc.notifyAndUnlock(e.n)
}

// InsertBefore attaches a detached element immediately before this one.
func (e *Element) InsertBefore(sibling *Element) {
	e.doc.mu.Lock()
	if e.n.Parent == nil {
		e.doc.mu.Unlock()
		return
	}
	e.n.Parent.InsertBefore(sibling.n, e.n)
	e.doc.notifyAndUnlock(e.n.Parent)
}

// InsertAfter attaches a detached element immediately after this one.
func (e *Element) InsertAfter(sibling *Element) {
	e.doc.mu.Lock()
	if e.n.Parent == nil {
		e.doc.mu.Unlock()
		return
	}
	if e.n.NextSibling != nil {
		e.n.Parent.InsertBefore(sibling.n, e.n.NextSibling)
	} else {
		e.n.Parent.AppendChild(sibling.n)
	}
	e.doc.notifyAndUnlock(e.n.Parent)
}

// ReplaceWith swaps this element for another in the tree.
func (e *Element) ReplaceWith(repl *Element) {
	e.doc.mu.Lock()
	if e.n.Parent == nil {
		e.doc.mu.Unlock()
		return
	}
	parent := e.n.Parent
	parent.InsertBefore(repl.n, e.n)
	parent.RemoveChild(e.n)
	e.doc.notifyAndUnlock(parent)
}

// Remove detaches this element from the tree.
func (e *Element) Remove() {
	e.doc.mu.Lock()
	if e.n.Parent == nil {
		e.doc.mu.Unlock()
		return
	}
	parent := e.n.Parent
	parent.RemoveChild(e.n)
	e.doc.notifyAndUnlock(parent)
}

// Parent returns the parent element, or nil at the tree root.
func (e *Element) Parent() *Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	p := e.n.Parent
	for p != nil && p.Type != html.ElementNode {
		p = p.Parent
	}
	if p == nil {
		return nil
	}
	return &Element{doc: e.doc, n: p}
}

// FindChild returns the first descendant matching pred, in document order.
// The predicate runs outside the document lock so it may use any Element
// accessor.
func (e *Element) FindChild(pred func(*Element) bool) *Element {
	e.doc.mu.Lock()
	var candidates []*html.Node
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, func(n *html.Node) bool {
			if n.Type == html.ElementNode {
				candidates = append(candidates, n)
			}
			return true
		})
	}
	e.doc.mu.Unlock()

	for _, n := range candidates {
		el := &Element{doc: e.doc, n: n}
		if pred(el) {
			return el
		}
	}
	return nil
}

// Same reports whether two handles reference the same node.
func (e *Element) Same(other *Element) bool {
	return other != nil && e.n == other.n
}
