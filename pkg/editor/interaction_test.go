package editor

import (
	"strings"
	"testing"

	xhtml "golang.org/x/net/html"

	"pagesmith/internal/html"
)

func TestBinding_Dispatch(t *testing.T) {
	doc, err := html.NewParser().Parse(`<div><section><p>x</p></section></div>`)
	if err != nil {
		t.Fatal(err)
	}
	raw := func(sel string) *xhtml.Node {
		n, err := doc.QuerySelector(sel)
		if err != nil {
			t.Fatal(err)
		}
		return n.Raw()
	}
	div, section, p := raw("div"), raw("section"), raw("p")

	var trail []string
	record := func(name string, stop bool) listener {
		return func(ev *Event) {
			trail = append(trail, name+":"+string(ev.Type))
			if stop {
				ev.StopPropagation()
			}
		}
	}

	tests := []struct {
		name  string
		setup func(b *binding)
		event EventType
		want  string
	}{
		{
			name: "click bubbles to every ancestor",
			setup: func(b *binding) {
				b.on(p, EventClick, record("p", false))
				b.on(div, EventClick, record("div", false))
			},
			event: EventClick,
			want:  "p:click div:click",
		},
		{
			name: "stop propagation",
			setup: func(b *binding) {
				b.on(p, EventClick, record("p", false))
				b.on(section, EventClick, record("section", true))
				b.on(div, EventClick, record("div", false))
			},
			event: EventClick,
			want:  "p:click section:click",
		},
		{
			name: "pointer enter stays on the target",
			setup: func(b *binding) {
				b.on(p, EventPointerEnter, record("p", false))
				b.on(div, EventPointerEnter, record("div", false))
			},
			event: EventPointerEnter,
			want:  "p:pointerenter",
		},
		{
			name: "unbound target does not reach ancestors for pointer leave",
			setup: func(b *binding) {
				b.on(div, EventPointerLeave, record("div", false))
			},
			event: EventPointerLeave,
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trail = nil
			b := newBinding()
			tt.setup(b)
			b.dispatch(&Event{Type: tt.event, Target: p})
			if got := strings.Join(trail, " "); got != tt.want {
				t.Errorf("trail = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBinding_PreventDefault(t *testing.T) {
	n := &xhtml.Node{Type: xhtml.ElementNode, Data: "p"}
	b := newBinding()
	b.on(n, EventDragStart, func(ev *Event) { ev.PreventDefault() })

	if b.dispatch(&Event{Type: EventDragStart, Target: n}) {
		t.Error("dispatch should report the default as prevented")
	}
	if !b.dispatch(&Event{Type: EventClick, Target: n}) {
		t.Error("click without listeners keeps its default")
	}
}

func TestBinding_Dispose(t *testing.T) {
	n := &xhtml.Node{Type: xhtml.ElementNode, Data: "p"}
	b := newBinding()
	calls := 0
	for _, typ := range []EventType{EventClick, EventPointerEnter, EventPointerLeave, EventDragStart} {
		b.on(n, typ, func(*Event) { calls++ })
	}
	if b.count() != 4 {
		t.Fatalf("count = %d", b.count())
	}

	if released := b.dispose(); released != 4 {
		t.Errorf("dispose released %d", released)
	}
	if released := b.dispose(); released != 0 {
		t.Errorf("second dispose released %d", released)
	}

	b.on(n, EventClick, func(*Event) { calls++ })
	b.dispatch(&Event{Type: EventClick, Target: n})
	if calls != 0 || b.count() != 0 {
		t.Errorf("disposed binding still active: calls=%d count=%d", calls, b.count())
	}

	var nilBinding *binding
	if nilBinding.dispose() != 0 {
		t.Error("nil dispose")
	}
}

func TestInteractive(t *testing.T) {
	doc, err := html.NewParser().Parse(`<html><head><title>t</title><style>p{}</style></head>
<body><header><nav><a href="#">a</a></nav></header><script>x()</script><main><p>b</p><style>q{}</style></main></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	var tags []string
	for _, n := range interactive(doc) {
		tags = append(tags, n.Data)
	}
	if got := strings.Join(tags, ","); got != "header,nav,a,main,p" {
		t.Errorf("interactive = %s", got)
	}
}
