package batch

import "time"

// EventType identifies a progress event.
type EventType string

const (
	EventStart            EventType = "start"
	EventDocumentStart    EventType = "document_start"
	EventPageComplete     EventType = "page_complete"
	EventDocumentComplete EventType = "document_complete"
	EventError            EventType = "error"
	EventComplete         EventType = "complete"
)

// Event reports run progress to an optional listener such as a progress bar.
type Event struct {
	Type      EventType
	Document  string
	Page      int
	Total     int // Documents in the run for EventStart, pages for EventDocumentStart
	Payload   string
	Timestamp time.Time
}
