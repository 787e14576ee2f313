// Package dom is an in-memory document model for the content context: a
// parsed HTML tree with CSS-selector queries, attributes and properties,
// event listeners, subtree mutation observers, and a window with a
// location, history entry points, and a custom-element registry.
//
// It is the page substrate the watch manager, injector, and navigation
// detector operate on. In live mode the browser package mirrors a real CDP
// page into it; in tests it stands alone.
package dom

import (
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a mutable HTML tree. All reads and writes are guarded by one
// mutex because mutations arrive from several goroutines (bridge handlers,
// the navigation poller, the injector retry loop).
type Document struct {
	mu   sync.Mutex
	root *html.Node

	props     map[*html.Node]map[string]any
	listeners map[*html.Node]map[string][]*listener
	observers []*subtreeObserver
	nextID    int
}

// Parse builds a Document from HTML source. Parsing is forgiving: x/net/html
// always produces a tree, so malformed markup never errors into the caller's
// control flow here.
func Parse(src string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return &Document{
		root:      root,
		props:     make(map[*html.Node]map[string]any),
		listeners: make(map[*html.Node]map[string][]*listener),
	}, nil
}

// MustParse is Parse for static markup in tests and defaults.
func MustParse(src string) *Document {
	d, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return d
}

// Blank returns an empty document with head, title, and body.
func Blank() *Document {
	return MustParse("<!DOCTYPE html><html><head><title></title></head><body></body></html>")
}

// Query returns the first element matching the CSS selector, or nil when
// nothing matches or the selector does not compile. An unresolvable target
// is the caller's silent no-op case, not an error.
func (d *Document) Query(selector string) *Element {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n := cascadia.Query(d.root, sel)
	if n == nil {
		return nil
	}
	return &Element{doc: d, n: n}
}

// QueryAll returns every element matching the CSS selector.
func (d *Document) QueryAll(selector string) []*Element {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes := cascadia.QueryAll(d.root, sel)
	els := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &Element{doc: d, n: n})
	}
	return els
}

// Body returns the document body element.
func (d *Document) Body() *Element {
	return d.findByAtom(atom.Body)
}

// Head returns the document head element.
func (d *Document) Head() *Element {
	return d.findByAtom(atom.Head)
}

func (d *Document) findByAtom(a atom.Atom) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}
	return &Element{doc: d, n: found}
}

// Title returns the text of the <title> element, or "".
func (d *Document) Title() string {
	if t := d.findByAtom(atom.Title); t != nil {
		return t.Text()
	}
	return ""
}

// SetTitle rewrites the <title> text. Subtree observers rooted at or above
// the title element fire, which is what lets a title change act as a
// navigation hint.
func (d *Document) SetTitle(title string) {
	if t := d.findByAtom(atom.Title); t != nil {
		t.SetText(title)
	}
}

// CreateElement builds a detached element of the given tag. Custom element
// names (with a dash) have no atom and keep their literal tag.
func (d *Document) CreateElement(tag string) *Element {
	tag = strings.ToLower(tag)
	n := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Lookup([]byte(tag)),
		Data:     tag,
	}
	return &Element{doc: d, n: n}
}

// HTML serialises the whole document.
func (d *Document) HTML() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var sb strings.Builder
	if err := html.Render(&sb, d.root); err != nil {
		return ""
	}
	return sb.String()
}

// walk visits nodes depth-first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}
