package editor

import (
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"pagesmith/internal/html"
)

// EventType identifies a pointer interaction.
type EventType string

const (
	EventClick        EventType = "click"
	EventPointerEnter EventType = "pointerenter"
	EventPointerLeave EventType = "pointerleave"
	EventDragStart    EventType = "dragstart"
)

// bubbles reports whether the event travels from the target to its ancestors.
func (t EventType) bubbles() bool {
	return t == EventClick || t == EventDragStart
}

// Event is dispatched to the listeners bound on the target and, for
// bubbling types, on its ancestors.
type Event struct {
	Type    EventType
	Target  *xhtml.Node
	Current *xhtml.Node

	defaultPrevented   bool
	propagationStopped bool
}

// PreventDefault suppresses the native action of the event.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// StopPropagation keeps the event from reaching further ancestors.
func (e *Event) StopPropagation() { e.propagationStopped = true }

// DefaultPrevented reports whether a listener called PreventDefault.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

type listener func(*Event)

// binding holds every listener attached to one document. dispose is the
// only way listeners are released.
type binding struct {
	listeners map[*xhtml.Node]map[EventType]listener
	disposed  bool
}

func newBinding() *binding {
	return &binding{listeners: make(map[*xhtml.Node]map[EventType]listener)}
}

func (b *binding) on(n *xhtml.Node, t EventType, fn listener) {
	if b.disposed {
		return
	}
	set, ok := b.listeners[n]
	if !ok {
		set = make(map[EventType]listener, 4)
		b.listeners[n] = set
	}
	set[t] = fn
}

func (b *binding) bound(n *xhtml.Node) bool {
	_, ok := b.listeners[n]
	return ok
}

// unbind releases every listener on n.
func (b *binding) unbind(n *xhtml.Node) {
	delete(b.listeners, n)
}

// dispatch delivers ev and returns false when its default was prevented.
func (b *binding) dispatch(ev *Event) bool {
	for n := ev.Target; n != nil; n = n.Parent {
		if fn, ok := b.listeners[n][ev.Type]; ok {
			ev.Current = n
			fn(ev)
			if ev.propagationStopped {
				break
			}
		}
		if !ev.Type.bubbles() {
			break
		}
	}
	return !ev.defaultPrevented
}

// count returns the number of attached listeners.
func (b *binding) count() int {
	total := 0
	for _, set := range b.listeners {
		total += len(set)
	}
	return total
}

// dispose detaches everything. Safe to call more than once.
func (b *binding) dispose() int {
	if b == nil || b.disposed {
		return 0
	}
	removed := b.count()
	b.listeners = make(map[*xhtml.Node]map[EventType]listener)
	b.disposed = true
	return removed
}

// interactive lists the elements that receive listeners: the rendered body
// content without script and style nodes.
func interactive(doc html.Document) []*xhtml.Node {
	body := doc.Body().Raw()
	if body == nil {
		return nil
	}

	var nodes []*xhtml.Node
	for _, el := range doc.Elements() {
		n := el.Raw()
		if n == body || !html.Contains(body, n) {
			continue
		}
		if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes
}
