package dom

// listener is one registered event callback.
type listener struct {
	id int
	fn func()
}

// On registers a callback for a discrete event on this element and returns
// a removal function. There is no capture/bubble model: events dispatch on
// the element they target.
func (e *Element) On(eventType string, fn func()) (remove func()) {
	e.doc.mu.Lock()
	byEvent := e.doc.listeners[e.n]
	if byEvent == nil {
		byEvent = make(map[string][]*listener)
		e.doc.listeners[e.n] = byEvent
	}
	e.doc.nextID++
	l := &listener{id: e.doc.nextID, fn: fn}
	byEvent[eventType] = append(byEvent[eventType], l)
	id := l.id
	e.doc.mu.Unlock()

	return func() {
		e.doc.mu.Lock()
		ls := e.doc.listeners[e.n][eventType]
		for i, cand := range ls {
			if cand.id == id {
				e.doc.listeners[e.n][eventType] = append(ls[:i], ls[i+1:]...)
				break
			}
		}
		e.doc.mu.Unlock()
	}
}

// Dispatch fires an event on this element, invoking listeners outside the
// document lock.
func (e *Element) Dispatch(eventType string) {
	e.doc.mu.Lock()
	ls := e.doc.listeners[e.n][eventType]
	fns := make([]func(), 0, len(ls))
	for _, l := range ls {
		fns = append(fns, l.fn)
	}
	e.doc.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// nativeEvents maps a discrete event type to the tags that expose it. A nil
// tag set means any element. Everything outside this table falls back to
// subtree mutation observation.
var nativeEvents = map[string]map[string]bool{
	"click":    nil,
	"dblclick": nil,
	"focus":    nil,
	"blur":     nil,
	"keyup":    nil,
	"keydown":  nil,
	"input":  {"input": true, "textarea": true, "select": true},
	"change": {"input": true, "textarea": true, "select": true},
	"submit": {"form": true},
	"toggle": {"details": true},
	"load":   {"img": true, "script": true, "iframe": true},
}

// SupportsEvent reports whether this element exposes eventType as a
// discrete native event. Strategy selection keys off this capability, not
// off the attribute name, so attributes with a real event never fall back
// to the heavier mutation strategy by accident.
func (e *Element) SupportsEvent(eventType string) bool {
	tags, ok := nativeEvents[eventType]
	if !ok {
		return false
	}
	if tags == nil {
		return true
	}
	return tags[e.Tag()]
}
