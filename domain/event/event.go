// Package event defines the closed taxonomy of domain events.
// Events are pure data produced by the Conversation aggregate and are
// immutable once created. The envelope codec and the publisher routing
// must match every variant exhaustively: adding a variant is a breaking
// change that touches both, never a silent default.
package event

// DomainEvent is an immutable fact produced by a successful aggregate mutation.
type DomainEvent interface {
	// Name returns the dotted wire name of the event, stable across versions.
	Name() string
	ConversationID() string
}

// Wire names. External dashboards depend on these exact strings.
const (
	NameMessageAppended      = "domain.event.message_appended"
	NameMessageUpdated       = "domain.event.message_updated"
	NameMessageDeleted       = "domain.event.message_deleted"
	NameConversationOpened   = "domain.event.conversation_opened"
	NameConversationClosed   = "domain.event.conversation_closed"
	NameConversationReopened = "domain.event.conversation_reopened"
)

type MessageAppended struct {
	Conversation string
	Message      string
}

func (e MessageAppended) Name() string           { return NameMessageAppended }
func (e MessageAppended) ConversationID() string { return e.Conversation }

type MessageUpdated struct {
	Conversation string
	Message      string
}

func (e MessageUpdated) Name() string           { return NameMessageUpdated }
func (e MessageUpdated) ConversationID() string { return e.Conversation }

type MessageDeleted struct {
	Conversation string
	Message      string
	Soft         bool
}

func (e MessageDeleted) Name() string           { return NameMessageDeleted }
func (e MessageDeleted) ConversationID() string { return e.Conversation }

type ConversationOpened struct {
	Conversation string
}

func (e ConversationOpened) Name() string           { return NameConversationOpened }
func (e ConversationOpened) ConversationID() string { return e.Conversation }

type ConversationClosed struct {
	Conversation string
}

func (e ConversationClosed) Name() string           { return NameConversationClosed }
func (e ConversationClosed) ConversationID() string { return e.Conversation }

type ConversationReopened struct {
	Conversation string
}

func (e ConversationReopened) Name() string           { return NameConversationReopened }
func (e ConversationReopened) ConversationID() string { return e.Conversation }
