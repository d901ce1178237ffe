// Package asset defines the immutable value types that make up ImmAgent's
// content-addressed graph: text assets, messages, conversations, and agent
// versions. Every constructor returns a pointer to a frozen value — never
// mutate a field of an asset after construction; treat the pointer as the
// value's stable identity, the same way a database row's primary key
// identifies an immutable version of that row.
package asset

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Kind identifies which of the four asset tables a value belongs to.
type Kind string

const (
	KindText         Kind = "text_asset"
	KindMessage      Kind = "message"
	KindConversation Kind = "conversation"
	KindAgent        Kind = "agent"
)

// Asset is satisfied by every value in the graph. It exists so the cache
// and the persistence layer can handle the four kinds uniformly where
// their identity, not their shape, is all that matters.
type Asset interface {
	AssetID() uuid.UUID
	AssetKind() Kind
}

// ToolCall is one function-call request emitted by an assistant message.
// Arguments is preserved verbatim — it is never re-marshaled, so the
// provider's exact byte stream round-trips through storage unchanged.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// TextAsset is an arbitrary UTF-8 payload referenced by UUID — used for
// system prompts and any other free text that needs stable identity.
type TextAsset struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Content   string
}

func (t *TextAsset) AssetID() uuid.UUID { return t.ID }
func (t *TextAsset) AssetKind() Kind    { return KindText }

// NewTextAsset constructs a fresh, immutable text asset.
func NewTextAsset(content string) *TextAsset {
	return &TextAsset{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		Content:   content,
	}
}

// Message is one turn in a conversation. Content may be empty when
// ToolCalls is non-empty (an assistant message that only invokes tools).
// ToolCallID is set only on role=tool messages and names the call it answers.
type Message struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	Role         Role
	Content      string
	ToolCalls    []ToolCall
	ToolCallID   string
	InputTokens  *int
	OutputTokens *int
}

func (m *Message) AssetID() uuid.UUID { return m.ID }
func (m *Message) AssetKind() Kind    { return KindMessage }

// NewMessage constructs a fresh message with the given role and content.
// Use the With* helpers to attach tool calls, a tool-call id, or usage.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		Role:      role,
		Content:   content,
	}
}

// WithToolCalls returns a copy of m carrying the given tool calls.
func (m *Message) WithToolCalls(calls []ToolCall) *Message {
	clone := *m
	clone.ToolCalls = calls
	return &clone
}

// WithToolCallID returns a copy of m tagged as answering the given call id.
func (m *Message) WithToolCallID(id string) *Message {
	clone := *m
	clone.ToolCallID = id
	return &clone
}

// WithUsage returns a copy of m carrying input/output token counters.
func (m *Message) WithUsage(inputTokens, outputTokens int) *Message {
	clone := *m
	clone.InputTokens = &inputTokens
	clone.OutputTokens = &outputTokens
	return &clone
}

// Conversation is an immutable, ordered snapshot of message ids. Any
// change — an appended turn, a tool round — produces a new Conversation
// with a new id; the prior snapshot is never mutated.
type Conversation struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	MessageIDs []uuid.UUID
}

func (c *Conversation) AssetID() uuid.UUID { return c.ID }
func (c *Conversation) AssetKind() Kind    { return KindConversation }

// NewConversation constructs a fresh conversation snapshot from messageIDs.
// messageIDs is copied so the caller's slice may be reused or mutated.
func NewConversation(messageIDs []uuid.UUID) *Conversation {
	ids := make([]uuid.UUID, len(messageIDs))
	copy(ids, messageIDs)
	return &Conversation{
		ID:         uuid.New(),
		CreatedAt:  time.Now(),
		MessageIDs: ids,
	}
}

// Agent is one version of an agent's configuration and history. ParentID
// is nil for root agents; non-nil ParentID values point at the version
// this one was advanced or re-parented from. A clone copies its source's
// ParentID, making it a sibling of that source.
type Agent struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Name           string
	SystemPromptID uuid.UUID
	ParentID       *uuid.UUID
	ConversationID uuid.UUID
	Model          string
	ModelConfig    ModelConfig
}

func (a *Agent) AssetID() uuid.UUID { return a.ID }
func (a *Agent) AssetKind() Kind    { return KindAgent }

// IsRoot reports whether a has no parent.
func (a *Agent) IsRoot() bool { return a.ParentID == nil }
