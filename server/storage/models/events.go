package models

import "time"

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is a row-level notification on a table.
type ChangeEvent struct {
	Type            EventType    `json:"type"`
	Table           string       `json:"table"`
	New             *Certificate `json:"new,omitempty"`
	Old             *Certificate `json:"old,omitempty"`
	CommitTimestamp time.Time    `json:"commit_timestamp"`
}

// OwnerID is the user the affected row belongs to.
func (e ChangeEvent) OwnerID() string {
	if e.New != nil {
		return e.New.UserID
	}
	if e.Old != nil {
		return e.Old.UserID
	}
	return ""
}
