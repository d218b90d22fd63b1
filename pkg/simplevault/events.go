package simplevault

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// EventKind names one of the three mutation events.
type EventKind string

// Event kinds (typed).
const (
	EventUploaded EventKind = "uploaded"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
)

// EventKinds lists every kind in a stable order.
var EventKinds = []EventKind{EventUploaded, EventUpdated, EventDeleted}

// ParseEventKind validates a kind received from outside the process.
func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(s)
	if !slices.Contains(EventKinds, k) {
		return "", invalid("event kind", "unknown kind %q", s)
	}
	return k, nil
}

// DurableTopic is the fixed log topic for durable file events.
const DurableTopic = "file-events"

// Event is a mutation notification. The set of implementations is closed:
// FileUploaded, FileUpdated and FileDeleted.
type Event interface {
	Kind() EventKind
	// Subject is the id of the file the event is about.
	Subject() uuid.UUID
	Actor() uuid.UUID
	Time() time.Time
	// Audience lists the principals who could see the file when the event was raised.
	Audience() []uuid.UUID

	sealed()
}

// envelope holds the fields every event shares.
type envelope struct {
	ActorID    uuid.UUID   `json:"actor_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Recipients []uuid.UUID `json:"-"`
}

func (e envelope) Actor() uuid.UUID      { return e.ActorID }
func (e envelope) Time() time.Time       { return e.OccurredAt }
func (e envelope) Audience() []uuid.UUID { return e.Recipients }
func (envelope) sealed()                 {}

// FileUploaded is raised after a new version becomes available.
type FileUploaded struct {
	envelope
	File    *FileWithVersions `json:"file"`
	Version *FileVersion      `json:"version"`
}

func (FileUploaded) Kind() EventKind      { return EventUploaded }
func (e FileUploaded) Subject() uuid.UUID { return e.File.ID }

// FileUpdated is raised after a file is renamed.
type FileUpdated struct {
	envelope
	File         *FileWithVersions `json:"file"`
	PreviousName string            `json:"previous_name"`
}

func (FileUpdated) Kind() EventKind      { return EventUpdated }
func (e FileUpdated) Subject() uuid.UUID { return e.File.ID }

// FileDeleted is raised when a file and all its versions are removed.
type FileDeleted struct {
	envelope
	FileID       uuid.UUID `json:"file_id"`
	FileName     string    `json:"file_name"`
	VersionCount int       `json:"version_count"`
}

func (FileDeleted) Kind() EventKind      { return EventDeleted }
func (e FileDeleted) Subject() uuid.UUID { return e.FileID }

// NewFileUploaded builds an uploaded event.
func NewFileUploaded(actor uuid.UUID, at time.Time, audience []uuid.UUID, file *FileWithVersions, version *FileVersion) FileUploaded {
	return FileUploaded{
		envelope: envelope{ActorID: actor, OccurredAt: at, Recipients: audience},
		File:     file,
		Version:  version,
	}
}

// NewFileUpdated builds an updated event.
func NewFileUpdated(actor uuid.UUID, at time.Time, audience []uuid.UUID, file *FileWithVersions, previousName string) FileUpdated {
	return FileUpdated{
		envelope:     envelope{ActorID: actor, OccurredAt: at, Recipients: audience},
		File:         file,
		PreviousName: previousName,
	}
}

// NewFileDeleted builds a deleted event.
func NewFileDeleted(actor uuid.UUID, at time.Time, audience []uuid.UUID, file *File, versionCount int) FileDeleted {
	return FileDeleted{
		envelope:     envelope{ActorID: actor, OccurredAt: at, Recipients: audience},
		FileID:       file.ID,
		FileName:     file.Name,
		VersionCount: versionCount,
	}
}

// DurableRecord is the wire form of an event on the durable log.
type DurableRecord struct {
	Type      string         `json:"type"`
	FileID    uuid.UUID      `json:"fileId"`
	UserID    uuid.UUID      `json:"userId"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// Durable record types.
const (
	RecordFileUploaded = "FILE_UPLOADED"
	RecordFileUpdated  = "FILE_UPDATED"
	RecordFileDeleted  = "FILE_DELETED"
)

// NewDurableRecord converts an event to its durable wire form.
func NewDurableRecord(e Event) DurableRecord {
	rec := DurableRecord{
		FileID:    e.Subject(),
		UserID:    e.Actor(),
		Timestamp: e.Time().UTC(),
		Metadata:  map[string]any{},
	}
	switch ev := e.(type) {
	case FileUploaded:
		rec.Type = RecordFileUploaded
		rec.Metadata["fileName"] = ev.File.Name
		if ev.Version != nil {
			rec.Metadata["size"] = ev.Version.Size
			rec.Metadata["contentType"] = ev.Version.ContentType
			rec.Metadata["versionNumber"] = ev.Version.VersionNumber
		}
	case FileUpdated:
		rec.Type = RecordFileUpdated
		rec.Metadata["fileName"] = ev.File.Name
		rec.Metadata["previousName"] = ev.PreviousName
	case FileDeleted:
		rec.Type = RecordFileDeleted
		rec.Metadata["fileName"] = ev.FileName
		rec.Metadata["versionCount"] = ev.VersionCount
	}
	return rec
}

// Marshal encodes the record as JSON.
func (r DurableRecord) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalDurableRecord decodes a record read from the durable log.
func UnmarshalDurableRecord(data []byte) (DurableRecord, error) {
	var rec DurableRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return DurableRecord{}, fmt.Errorf("failed to decode durable record: %w", err)
	}
	switch rec.Type {
	case RecordFileUploaded, RecordFileUpdated, RecordFileDeleted:
	default:
		return DurableRecord{}, fmt.Errorf("unknown durable record type %q", rec.Type)
	}
	return rec, nil
}
