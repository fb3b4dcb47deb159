/*
Package wire defines the JSON shapes exchanged between the Schoolmaps server and its
clients: documents, queries, batch operations, and the live subscription messages
carried over the websocket.
*/
package wire

import (
	"encoding/json"
	"time"
)

// Document is a stored JSON document addressed by collection path and id.
type Document struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	OwnerID    string         `json:"ownerId"`
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Decode unmarshals the document data into dst, with the id exposed under "id".
func (d Document) Decode(dst any) error {
	data := make(map[string]any, len(d.Data)+1)
	for k, v := range d.Data {
		data[k] = v
	}
	data["id"] = d.ID

	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// Filter is an equality condition on a top-level data field.
type Filter struct {
	Field string `json:"field" validate:"required,fieldname"`
	Value any    `json:"value"`
}

// Query selects the caller's documents of one collection.
type Query struct {
	Collection string   `json:"collection" validate:"required"`
	Filters    []Filter `json:"filters,omitempty" validate:"max=8,dive"`
	OrderBy    string   `json:"orderBy,omitempty" validate:"omitempty,fieldname"`
	Desc       bool     `json:"desc,omitempty"`
	Limit      int      `json:"limit,omitempty" validate:"gte=0,lte=500"`
}

// Op kinds accepted in a batch.
const (
	OpSet       = "set"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpIncrement = "increment"
)

// Op is one write inside a batch. Set creates or replaces, Update merges into an
// existing document, Increment adds Delta to a numeric Field.
type Op struct {
	Kind       string         `json:"kind" validate:"required,oneof=set update delete increment"`
	Collection string         `json:"collection" validate:"required"`
	ID         string         `json:"id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Field      string         `json:"field,omitempty" validate:"omitempty,fieldname"`
	Delta      float64        `json:"delta,omitempty"`
}

// Target kinds of a live subscription.
const (
	TargetDoc   = "doc"
	TargetQuery = "query"
)

// Target is what a live subscription watches: a single document or a query.
type Target struct {
	Kind       string `json:"kind" validate:"required,oneof=doc query"`
	Collection string `json:"collection" validate:"required"`
	ID         string `json:"id,omitempty" validate:"required_if=Kind doc"`
	Query      *Query `json:"query,omitempty" validate:"required_if=Kind query"`
}

// Websocket message types.
const (
	TypeSubscribe   = "SUBSCRIBE"
	TypeUnsubscribe = "UNSUBSCRIBE"
	TypeSnapshot    = "SNAPSHOT"
	TypeError       = "ERROR"
)

// Message is the websocket envelope. Payload is decoded by Type.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribePayload opens subscription ID on Target.
type SubscribePayload struct {
	ID     string `json:"id" validate:"required,max=64"`
	Target Target `json:"target"`
}

// UnsubscribePayload closes subscription ID.
type UnsubscribePayload struct {
	ID string `json:"id" validate:"required"`
}

// SnapshotPayload carries the current result of subscription ID. Doc targets use
// Exists and Doc, query targets use Docs.
type SnapshotPayload struct {
	ID     string     `json:"id"`
	Exists bool       `json:"exists"`
	Doc    *Document  `json:"doc,omitempty"`
	Docs   []Document `json:"docs,omitempty"`
}

// ErrorPayload reports a failure of subscription ID. The subscription is closed.
type ErrorPayload struct {
	ID      string `json:"id"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewMessage marshals payload into a Message of type t.
func NewMessage(t string, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: raw}, nil
}

// Auth API shapes.

type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type Registration struct {
	Email       string `json:"email" validate:"required"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"displayName,omitempty" validate:"max=100"`
}

type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

type AuthResult struct {
	Token    string   `json:"token"`
	Identity Identity `json:"identity"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required"`
}

type PasswordResetConfirm struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Document API shapes.

type DocRef struct {
	Collection string `json:"collection" validate:"required"`
	ID         string `json:"id" validate:"required,max=128"`
}

type DocWrite struct {
	Collection string         `json:"collection" validate:"required"`
	ID         string         `json:"id,omitempty" validate:"max=128"`
	Data       map[string]any `json:"data" validate:"required"`
}

type DocResult struct {
	Exists bool      `json:"exists"`
	Doc    *Document `json:"doc,omitempty"`
}

type QueryResult struct {
	Docs []Document `json:"docs"`
}

type Batch struct {
	Ops []Op `json:"ops" validate:"required,min=1,max=500,dive"`
}

type BatchResult struct {
	IDs []string `json:"ids"`
}

type BlobRef struct {
	Path string `json:"path" validate:"required"`
}

type BlobResult struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// Proof-of-work API shapes.

type PowProof struct {
	Nonce   string `json:"nonce" validate:"required"`
	Counter string `json:"counter" validate:"required,max=32"`
}

type PowToken struct {
	Token string `json:"token"`
}
