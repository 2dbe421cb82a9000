package domain

import (
	"time"
)

// Default presentation values for a page before it has been rendered.
const (
	DefaultPlaceholderHeight = 800
	DefaultRootMargin        = 100
	DefaultThreshold         = 0.1
	DefaultScale             = 1.0
	PointsPerInch            = 72.0
)

// RenderStatus is the render state of a single page within a session
type RenderStatus int

const (
	StatusUnseen RenderStatus = iota
	StatusQueued
	StatusRendering
	StatusRendered
	StatusFailed
)

func (s RenderStatus) String() string {
	switch s {
	case StatusUnseen:
		return "unseen"
	case StatusQueued:
		return "queued"
	case StatusRendering:
		return "rendering"
	case StatusRendered:
		return "rendered"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText lets statuses appear by name in JSON payloads.
func (s RenderStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DocumentInfo describes one stored document as returned by a DocumentLister
type DocumentInfo struct {
	Reference  string    `json:"reference"` // Stored filename
	Size       int64     `json:"size"`
	SHA256     string    `json:"sha256,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// PageSlot is the presentation state of one page within a session
type PageSlot struct {
	Page    int          `json:"page"` // 1-based, stable for the session
	Status  RenderStatus `json:"status"`
	Reason  string       `json:"reason,omitempty"` // Set while Failed
	Element int          `json:"element"`          // Position in the surface container
}

// ObservationTarget is a page registered for viewport proximity observation
type ObservationTarget struct {
	Page   int
	Height int
}

// ObservationOptions configures viewport proximity observation
type ObservationOptions struct {
	Margin    int     // Look-ahead distance in pixels above and below the viewport
	Threshold float64 // Minimum visible fraction before a page counts as intersecting
}

// DefaultObservationOptions mirrors the browser viewer: 100px margin, 10% visible.
func DefaultObservationOptions() ObservationOptions {
	return ObservationOptions{
		Margin:    DefaultRootMargin,
		Threshold: DefaultThreshold,
	}
}

// IntersectionEntry reports the visibility of one observed page
type IntersectionEntry struct {
	Page         int     `json:"page"`
	Intersecting bool    `json:"intersecting"`
	Ratio        float64 `json:"ratio"`
}

// SessionInfo is a read-only snapshot of a document session
type SessionInfo struct {
	Generation uint64     `json:"generation"`
	Reference  string     `json:"reference"`
	PageCount  int        `json:"page_count"`
	Fallback   bool       `json:"fallback"` // Rendering everything because observation is unavailable
	Pages      []PageSlot `json:"pages"`
}

// EventType represents the type of session event
type EventType string

const (
	EventSessionOpened EventType = "session_opened"
	EventOpenFailed    EventType = "open_failed"
	EventPageRendering EventType = "page_rendering"
	EventPageRendered  EventType = "page_rendered"
	EventPageFailed    EventType = "page_failed"
	EventPageDiscarded EventType = "page_discarded"
	EventSessionClosed EventType = "session_closed"
)

// SessionEvent represents an event emitted by a session manager
type SessionEvent struct {
	Type       EventType `json:"type"`
	Generation uint64    `json:"generation"`
	Reference  string    `json:"reference,omitempty"`
	PageNumber int       `json:"page_number,omitempty"`
	Payload    string    `json:"payload,omitempty"` // Status message or failure reason
	Timestamp  time.Time `json:"timestamp"`
}
