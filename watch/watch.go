// Package watch binds value-change notification streams to CSS-selected
// elements. A watch reads an element's property (falling back to its
// attribute), emits the current value once as a baseline, then re-reads on
// its signal and notifies only when the value actually differs: change
// detection, not event pass-through.
//
// Two signal strategies exist, selected by capability: a discrete native
// event listener when the element exposes the event type, otherwise a
// subtree mutation observer (the generic fallback for things like innerText
// on a div).
package watch

import (
	"log/slog"
	"reflect"
	"sync"

	"github.com/codenitrr/codelution/dom"
	"github.com/codenitrr/codelution/protocol"
)

// EmitFunc delivers a notification envelope towards the panel.
type EmitFunc func(protocol.Envelope)

// Manager owns every active watch of one content context. Watches live for
// the lifetime of the page; re-registering the same watchId is the only
// teardown path.
type Manager struct {
	win    *dom.Window
	emit   EmitFunc
	logger *slog.Logger

	mu      sync.Mutex
	watches map[string]*binding
}

type binding struct {
	watchID   string
	selector  string
	attribute string
	eventType string
	lastValue any
	detach    func()
}

// NewManager creates a Manager emitting through emit.
func NewManager(win *dom.Window, emit EmitFunc, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		win:     win,
		emit:    emit,
		logger:  logger,
		watches: make(map[string]*binding),
	}
	// A full document swap (mirror refresh) kills every signal attached to
	// the old tree; the manager lives as long as the window, so the remove
	// func is discarded.
	win.OnDocumentChange(m.rebind)
	return m
}

// Register creates or replaces the watch for watchID. When the selector
// resolves to nothing the call is a silent no-op: no watch is created and
// the caller re-issues after the element appears.
func (m *Manager) Register(selector, attribute, eventType, watchID string) {
	doc := m.win.Document()
	el := doc.Query(selector)
	if el == nil {
		m.logger.Debug("watch: selector unresolved, skipping",
			"selector", selector, "watch_id", watchID)
		return
	}

	b := &binding{
		watchID:   watchID,
		selector:  selector,
		attribute: attribute,
		eventType: eventType,
		lastValue: readValue(el, attribute),
	}
	m.attach(b, doc, el)

	m.mu.Lock()
	if old := m.watches[watchID]; old != nil {
		old.detach()
	}
	m.watches[watchID] = b
	m.mu.Unlock()

	m.logger.Debug("watch: registered",
		"selector", selector, "attribute", attribute,
		"event", eventType, "watch_id", watchID)

	// Baseline notification: the panel never needs a separate read to learn
	// the value at registration time.
	m.emit(protocol.DOMValueChanged(selector, attribute, b.lastValue, watchID))
}

// attach wires the binding's signal to el, by capability: a native event
// listener when the element supports the event type, otherwise a subtree
// mutation observer.
func (m *Manager) attach(b *binding, doc *dom.Document, el *dom.Element) {
	signal := func() { m.recheck(b, el) }
	if el.SupportsEvent(b.eventType) {
		b.detach = el.On(b.eventType, signal)
	} else {
		b.detach = doc.Observe(el, signal)
	}
}

// rebind re-resolves every watch against the current document after a full
// swap. A selector that no longer matches ends its watch; a value that
// changed across the swap notifies, since the old tree's signal for that
// change is gone.
func (m *Manager) rebind() {
	doc := m.win.Document()

	var changed []protocol.Envelope
	m.mu.Lock()
	for id, b := range m.watches {
		b.detach()
		el := doc.Query(b.selector)
		if el == nil {
			delete(m.watches, id)
			m.logger.Debug("watch: selector gone after document refresh",
				"selector", b.selector, "watch_id", id)
			continue
		}
		m.attach(b, doc, el)
		if value := readValue(el, b.attribute); !reflect.DeepEqual(value, b.lastValue) {
			b.lastValue = value
			changed = append(changed, protocol.DOMValueChanged(b.selector, b.attribute, value, id))
		}
	}
	m.mu.Unlock()

	for _, env := range changed {
		m.emit(env)
	}
}

// recheck re-reads the watched value and notifies iff it changed.
func (m *Manager) recheck(b *binding, el *dom.Element) {
	value := readValue(el, b.attribute)

	m.mu.Lock()
	if m.watches[b.watchID] != b {
		// Superseded binding: its detach raced a final signal. Stay silent.
		m.mu.Unlock()
		return
	}
	// Deep comparison: JSON payloads put maps and slices into properties,
	// and those are not == comparable.
	if reflect.DeepEqual(value, b.lastValue) {
		m.mu.Unlock()
		return
	}
	b.lastValue = value
	m.mu.Unlock()

	m.emit(protocol.DOMValueChanged(b.selector, b.attribute, value, b.watchID))
}

// GetInfo performs a one-shot read. An absent element resolves with a nil
// value; the caller-supplied requestID is echoed unchanged either way.
func (m *Manager) GetInfo(selector, attribute, requestID string) protocol.Envelope {
	var value any
	if el := m.win.Document().Query(selector); el != nil {
		value = readValue(el, attribute)
	}
	return protocol.DOMInfoResult(selector, attribute, value, requestID)
}

// readValue prefers the element property over the attribute: an input's
// live value is a property even when the value attribute never moves.
// innerText/textContent read the subtree text.
func readValue(el *dom.Element, attribute string) any {
	if v, ok := el.Prop(attribute); ok {
		return v
	}
	switch attribute {
	case "innerText", "textContent":
		return el.Text()
	}
	if v, ok := el.Attr(attribute); ok {
		return v
	}
	return nil
}
