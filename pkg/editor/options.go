package editor

import (
	"time"

	"go.uber.org/zap"

	"pagesmith/internal/css"
)

// DefaultAutosaveDelay is the quiet period after the last edit before an
// autosave fires.
const DefaultAutosaveDelay = time.Second

// Overlay holds the transient decorations drawn on hovered and selected
// elements. They never reach serialized output.
type Overlay struct {
	HoverBackground       string
	HoverOutline          string
	HoverTransition       string
	SelectedBackground    string
	SelectedOutline       string
	SelectedOutlineOffset string
}

// DefaultOverlay returns the standard blue decorations.
func DefaultOverlay() Overlay {
	return Overlay{
		HoverBackground:       "rgba(59, 130, 246, 0.1)",
		HoverOutline:          "1px dashed rgba(59, 130, 246, 0.5)",
		HoverTransition:       "background-color 0.2s, outline 0.2s",
		SelectedBackground:    "rgba(59, 130, 246, 0.2)",
		SelectedOutline:       "2px solid #3b82f6",
		SelectedOutlineOffset: "2px",
	}
}

func (o Overlay) hover() []css.Declaration {
	return []css.Declaration{
		{Property: "background-color", Value: o.HoverBackground},
		{Property: "outline", Value: o.HoverOutline},
		{Property: "transition", Value: o.HoverTransition},
	}
}

func (o Overlay) selected() []css.Declaration {
	return []css.Declaration{
		{Property: "background-color", Value: o.SelectedBackground},
		{Property: "outline", Value: o.SelectedOutline},
		{Property: "outline-offset", Value: o.SelectedOutlineOffset},
	}
}

// decorations are every overlay property except the pointer affordance.
var decorations = []string{"background-color", "outline", "outline-offset", "transition"}

var affordance = css.Declaration{Property: "cursor", Value: "pointer"}

// Options binds a session to its host.
type Options struct {
	// AutosaveEnabled together with PersistenceID turns on debounced saves.
	AutosaveEnabled bool
	PersistenceID   string
	AutosaveDelay   time.Duration

	// Persister receives autosaves and explicit saves while autosave is
	// active. Optional.
	Persister Persister
	// PersistOnSave sends explicit saves to the Persister even when
	// autosave is off.
	PersistOnSave bool

	// OnSave is called with the full serialization after every save.
	OnSave func(html string)
	// OnUnmount is called once teardown has completed.
	OnUnmount func()

	Overlay Overlay
	Clock   Clock
	Logger  *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.AutosaveDelay <= 0 {
		o.AutosaveDelay = DefaultAutosaveDelay
	}
	if o.Overlay == (Overlay{}) {
		o.Overlay = DefaultOverlay()
	}
	if o.Clock == nil {
		o.Clock = systemClock{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// persists reports whether a save goes to the Persister.
func (o Options) persists(explicit bool) bool {
	if o.Persister == nil || o.PersistenceID == "" {
		return false
	}
	return o.AutosaveEnabled || (explicit && o.PersistOnSave)
}

// autosave reports whether edits schedule persistence.
func (o Options) autosave() bool {
	return o.AutosaveEnabled && o.PersistenceID != ""
}
