// Package stream implements the line-delimited JSON event protocol shared by
// expert answers and research reports.
//
// A stream is zero or more status/token events, at most one metadata event,
// and exactly one terminal event (done or error) which is always last.
package stream

import (
	"encoding/json"
	"errors"
)

// Type is the discriminator of an Event.
type Type string

const (
	TypeStatus   Type = "status"
	TypeToken    Type = "token"
	TypeMetadata Type = "metadata"
	TypeDone     Type = "done"
	TypeError    Type = "error"
)

// ErrStreamClosed is returned when sending after a terminal event.
var ErrStreamClosed = errors.New("stream already terminated")

// Event is one frame of the protocol.
type Event struct {
	Type        Type
	Message     string
	Content     string
	Medications []string
	LabTests    []string
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Type == TypeDone || e.Type == TypeError
}

func Status(msg string) Event { return Event{Type: TypeStatus, Message: msg} }
func Token(content string) Event { return Event{Type: TypeToken, Content: content} }
func Done() Event { return Event{Type: TypeDone} }
func Error(msg string) Event { return Event{Type: TypeError, Message: msg} }

// Metadata builds a metadata event. Nil slices are sent as empty arrays.
func Metadata(medications, labTests []string) Event {
	if medications == nil {
		medications = []string{}
	}
	if labTests == nil {
		labTests = []string{}
	}
	return Event{Type: TypeMetadata, Medications: medications, LabTests: labTests}
}

// MarshalJSON renders only the fields that belong to the event's type.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case TypeStatus, TypeError:
		return json.Marshal(struct {
			Type    Type   `json:"type"`
			Message string `json:"message"`
		}{e.Type, e.Message})
	case TypeToken:
		return json.Marshal(struct {
			Type    Type   `json:"type"`
			Content string `json:"content"`
		}{e.Type, e.Content})
	case TypeMetadata:
		m := Metadata(e.Medications, e.LabTests)
		return json.Marshal(struct {
			Type        Type     `json:"type"`
			Medications []string `json:"medications"`
			LabTests    []string `json:"lab_tests"`
		}{e.Type, m.Medications, m.LabTests})
	default:
		return json.Marshal(struct {
			Type Type `json:"type"`
		}{e.Type})
	}
}

// UnmarshalJSON decodes any event shape.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        Type     `json:"type"`
		Message     string   `json:"message"`
		Content     string   `json:"content"`
		Medications []string `json:"medications"`
		LabTests    []string `json:"lab_tests"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Event{
		Type:        raw.Type,
		Message:     raw.Message,
		Content:     raw.Content,
		Medications: raw.Medications,
		LabTests:    raw.LabTests,
	}
	return nil
}
