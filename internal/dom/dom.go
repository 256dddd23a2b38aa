package dom

import (
	"context"
)

type EventKind string

const (
	EventClick EventKind = "click"
	EventInput EventKind = "input"
)

// Event is a delegated event with the target's data attributes already
// resolved: Action from the closest [data-a], QuestionID from the closest
// [data-q] and Star from the closest .star-btn.
type Event struct {
	Kind       EventKind `json:"kind" validate:"required,oneof=click input"`
	Action     string    `json:"action,omitempty"`
	QuestionID string    `json:"questionId,omitempty"`
	Value      string    `json:"value,omitempty"`
	Star       int       `json:"star,omitempty" validate:"gte=0,lte=5"`
}

type Listener func(ctx context.Context, ev Event)

// Container is an element a widget renders into. Selector arguments are
// resolved inside the container; an empty selector targets the container.
type Container interface {
	ID() string
	Connected() bool

	SetHTML(html string)
	HTML() string
	SetClassName(name string)
	SetDisplay(display string)

	Has(selector string) bool
	SetInnerHTML(selector, html string) bool
	AddClass(selector, class string) bool
	RemoveClass(selector, class string) bool
	SetStyle(selector, property, value string) bool
	Focus(selector string) bool

	// Remove detaches the element from its parent and drops its listeners.
	Remove()

	AddListener(kind EventKind, l Listener) (detach func())
}

// Document is the page-level surface a widget needs.
type Document interface {
	Container(id string) (Container, bool)

	HasStyle(id string) bool
	AppendStyle(id, css string)
	RemoveStyle(id string)

	DispatchCustomEvent(targetID, name string, detail any)
}

type MutationKind string

const (
	MutationCreate      MutationKind = "create"
	MutationHTML        MutationKind = "html"
	MutationAttr        MutationKind = "attr"
	MutationAddClass    MutationKind = "add-class"
	MutationRemoveClass MutationKind = "remove-class"
	MutationStyle       MutationKind = "style"
	MutationAppendStyle MutationKind = "append-style"
	MutationRemoveStyle MutationKind = "remove-style"
	MutationRemove      MutationKind = "remove"
	MutationFocus       MutationKind = "focus"
	MutationEvent       MutationKind = "event"
)

// Mutation describes one change applied to a Page, in the shape the browser
// runtime replays it.
type Mutation struct {
	Kind     MutationKind `json:"kind"`
	Target   string       `json:"target"`
	Selector string       `json:"selector,omitempty"`
	Name     string       `json:"name,omitempty"`
	Value    string       `json:"value,omitempty"`
	Detail   any          `json:"detail,omitempty"`
}
