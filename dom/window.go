package dom

import "sync"

// Window owns a Document, a location, the history entry points, and the
// custom-element registry: one Window per content-context instance.
type Window struct {
	mu  sync.Mutex
	doc *Document
	url string

	history  *History
	popstate []*listener
	docwatch []*listener
	nextID   int

	registry *Registry
}

// NewWindow creates a Window over the given document at the given location.
func NewWindow(doc *Document, url string) *Window {
	w := &Window{doc: doc, url: url, registry: NewRegistry()}
	w.history = &History{w: w}
	return w
}

// Document returns the current document.
func (w *Window) Document() *Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doc
}

// SetDocument swaps the document (full page mirror refresh) and then runs
// the document-change listeners. Anything holding references into the old
// tree (watch signals, head observers) is dead after the swap and must
// re-resolve against the new document from its listener.
func (w *Window) SetDocument(doc *Document) {
	w.mu.Lock()
	w.doc = doc
	fns := make([]func(), 0, len(w.docwatch))
	for _, l := range w.docwatch {
		fns = append(fns, l.fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// OnDocumentChange registers a listener that runs after each full document
// swap, outside the window lock.
func (w *Window) OnDocumentChange(fn func()) (remove func()) {
	w.mu.Lock()
	w.nextID++
	l := &listener{id: w.nextID, fn: fn}
	w.docwatch = append(w.docwatch, l)
	id := l.id
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		for i, cand := range w.docwatch {
			if cand.id == id {
				w.docwatch = append(w.docwatch[:i], w.docwatch[i+1:]...)
				break
			}
		}
		w.mu.Unlock()
	}
}

// URL returns the current location.
func (w *Window) URL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.url
}

// SetLocationExternal moves the location without going through the history
// API and without firing popstate, the way a framework mutating location behind
// the intercepted entry points. Only polling can observe it.
func (w *Window) SetLocationExternal(url string) {
	w.mu.Lock()
	w.url = url
	w.mu.Unlock()
}

// History returns the programmatic navigation entry points.
func (w *Window) History() *History { return w.history }

// CustomElements returns the registry, nil when the engine predates custom
// elements (callers must tolerate nil).
func (w *Window) CustomElements() *Registry { return w.registry }

// DisableCustomElements simulates an older engine with no registry.
func (w *Window) DisableCustomElements() { w.registry = nil }

// OnPopstate registers a back/forward navigation listener.
func (w *Window) OnPopstate(fn func()) (remove func()) {
	w.mu.Lock()
	w.nextID++
	l := &listener{id: w.nextID, fn: fn}
	w.popstate = append(w.popstate, l)
	id := l.id
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		for i, cand := range w.popstate {
			if cand.id == id {
				w.popstate = append(w.popstate[:i], w.popstate[i+1:]...)
				break
			}
		}
		w.mu.Unlock()
	}
}

// FirePopstate simulates a back/forward navigation: the location changes,
// then popstate listeners run.
func (w *Window) FirePopstate(url string) {
	w.mu.Lock()
	w.url = url
	fns := make([]func(), 0, len(w.popstate))
	for _, l := range w.popstate {
		fns = append(fns, l.fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// History carries the two programmatic navigation entry points. Intercept
// hooks run after the underlying location change completes, receiving the
// prior and resulting locations. This is the interception point the navigation
// detector wraps.
type History struct {
	w     *Window
	hooks []*historyHook
}

type historyHook struct {
	id int
	fn func(oldURL, newURL string)
}

// Intercept registers an after-call hook on both entry points.
func (h *History) Intercept(fn func(oldURL, newURL string)) (remove func()) {
	h.w.mu.Lock()
	h.w.nextID++
	hk := &historyHook{id: h.w.nextID, fn: fn}
	h.hooks = append(h.hooks, hk)
	id := hk.id
	h.w.mu.Unlock()

	return func() {
		h.w.mu.Lock()
		for i, cand := range h.hooks {
			if cand.id == id {
				h.hooks = append(h.hooks[:i], h.hooks[i+1:]...)
				break
			}
		}
		h.w.mu.Unlock()
	}
}

// PushState navigates to url through the history API.
func (h *History) PushState(url string) { h.navigate(url) }

// ReplaceState replaces the current location through the history API.
func (h *History) ReplaceState(url string) { h.navigate(url) }

func (h *History) navigate(url string) {
	h.w.mu.Lock()
	old := h.w.url
	h.w.url = url
	fns := make([]func(string, string), 0, len(h.hooks))
	for _, hk := range h.hooks {
		fns = append(fns, hk.fn)
	}
	h.w.mu.Unlock()

	for _, fn := range fns {
		fn(old, url)
	}
}

// Registry is the custom-element registry: names become defined once and
// stay defined for the window's lifetime.
type Registry struct {
	mu      sync.Mutex
	defined map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defined: make(map[string]bool)}
}

// Define registers a custom element name.
func (r *Registry) Define(name string) {
	r.mu.Lock()
	r.defined[name] = true
	r.mu.Unlock()
}

// Defined reports whether the name has been registered.
func (r *Registry) Defined(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.defined[name]
}
