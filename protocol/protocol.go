package protocol

import (
	"encoding/json"
	"strings"
)

const (
	SubProtocol = "echo-protocol"
	DefaultURL  = "ws://localhost:65520"
	Origin      = "http://localhost/"
)

const (
	TypeReply        = "reply"
	TypeNotification = "notification"
)

// Request is sent by the client. IDs are allocated by the client and echoed
// back in the matching reply.
type Request struct {
	ID      int64             `json:"id"`
	Service string            `json:"service"`
	Fn      string            `json:"fn"`
	Args    []json.RawMessage `json:"args"`
}

// Message is any frame sent by the companion. Replies carry an ID; the
// remaining fields of a notification are kept in Raw.
type Message struct {
	Type   string          `json:"type"`
	ID     *int64          `json:"id,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// Reply builds a reply frame. A nil err is encoded as null.
func Reply(id int64, result interface{}, err error) ([]byte, error) {
	var errField interface{}
	if err != nil {
		errField = err.Error()
	}
	return json.Marshal(struct {
		Type   string      `json:"type"`
		ID     int64       `json:"id"`
		Error  interface{} `json:"error"`
		Result interface{} `json:"result"`
	}{TypeReply, id, errField, result})
}

// HasError reports whether the reply error field is set to something other
// than null.
func (m *Message) HasError() bool {
	s := strings.TrimSpace(string(m.Error))
	return s != "" && s != "null"
}

// Notification is a broadcast from the companion, not correlated to any call.
type Notification struct {
	Type  string          `json:"type"`
	Scope string          `json:"scope,omitempty"`
	Name  string          `json:"name,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

func NewNotification(scope, name string, value interface{}) Notification {
	v, _ := json.Marshal(value)
	return Notification{Type: TypeNotification, Scope: scope, Name: name, Value: v}
}

func (n Notification) Data() string {
	b, _ := json.Marshal(n)
	return string(b)
}
func (n Notification) Event() string { return n.Name }
func (n Notification) Id() string    { return "" }

// FileInfo is the value type of the sharedfolder list and resolveDirectory
// results.
type FileInfo struct {
	IsDirectory bool `json:"isDirectory"`
}

// File is the result of sharedfolder get.
type File struct {
	Content  string `json:"content"`
	ReadOnly bool   `json:"readonly"`
}
