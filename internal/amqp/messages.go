package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"carnote/internal/core"
	"carnote/internal/ports"
)

// JournalSyncMessage announces a journal row to mirror. It carries only the
// reference; the worker loads the row from the database.
type JournalSyncMessage struct {
	Kind      ports.JournalKind `json:"kind"`
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewJournalSyncMessage creates a new sync message for ref
func NewJournalSyncMessage(ref ports.JournalRef) *JournalSyncMessage {
	return &JournalSyncMessage{
		Kind:      ref.Kind,
		ID:        ref.ID,
		Timestamp: time.Now(),
	}
}

// Ref returns the journal reference carried by the message
func (m *JournalSyncMessage) Ref() ports.JournalRef {
	return ports.JournalRef{Kind: m.Kind, ID: m.ID}
}

// ToJSON converts the message to JSON bytes
func (m *JournalSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// JournalSyncMessageFromJSON parses and checks a sync message
func JournalSyncMessageFromJSON(data []byte) (*JournalSyncMessage, error) {
	var msg JournalSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Kind.Valid() {
		return nil, fmt.Errorf("unknown journal kind %q", msg.Kind)
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("missing journal id")
	}
	return &msg, nil
}

// ReminderMessage tells subscribers that a maintenance item needs attention.
type ReminderMessage struct {
	VehicleID          string      `json:"vehicleId"`
	TemplateID         string      `json:"templateId"`
	Title              string      `json:"title"`
	Status             core.Status `json:"status"`
	NextServiceDate    *core.Date  `json:"nextServiceDate"`
	NextServiceMileage *int        `json:"nextServiceMileage"`
	Timestamp          time.Time   `json:"timestamp"`
}

// NewReminderMessage builds a reminder from a status board row
func NewReminderMessage(vehicleID string, row core.TemplateStatus) *ReminderMessage {
	return &ReminderMessage{
		VehicleID:          vehicleID,
		TemplateID:         row.Template.ID,
		Title:              row.Template.Title,
		Status:             row.Status,
		NextServiceDate:    row.Date,
		NextServiceMileage: row.Mileage,
		Timestamp:          time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReminderMessageFromJSON parses a reminder message
func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
