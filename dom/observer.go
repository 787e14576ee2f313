package dom

import "golang.org/x/net/html"

// subtreeObserver watches every mutation (attribute, text, property,
// structure) under a root node. It is the generic fallback strategy for
// values with no discrete event, and the substrate for title-change hints.
type subtreeObserver struct {
	id   int
	root *html.Node
	fn   func()
}

// Observe registers fn to run after any mutation inside root's subtree.
// The returned function removes the observer; superseding a watch is the
// only other teardown path.
func (d *Document) Observe(root *Element, fn func()) (remove func()) {
	d.mu.Lock()
	d.nextID++
	obs := &subtreeObserver{id: d.nextID, root: root.n, fn: fn}
	d.observers = append(d.observers, obs)
	id := obs.id
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		for i, o := range d.observers {
			if o.id == id {
				d.observers = append(d.observers[:i], d.observers[i+1:]...)
				break
			}
		}
		d.mu.Unlock()
	}
}

// notifyAndUnlock runs the observers whose root contains the mutated node.
// It is called with d.mu held and releases it before invoking callbacks, so
// observers may freely re-read the document.
func (d *Document) notifyAndUnlock(mutated *html.Node) {
	var fns []func()
	for _, o := range d.observers {
		if contains(o.root, mutated) {
			fns = append(fns, o.fn)
		}
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// contains reports whether node is root or a descendant of root.
func contains(root, node *html.Node) bool {
	for n := node; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}
