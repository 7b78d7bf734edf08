// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	FetchStarted    EventType = "FETCH_STARTED"
	TickerFetched   EventType = "TICKER_FETCHED"
	TickerEmpty     EventType = "TICKER_EMPTY"
	FetchCompleted  EventType = "FETCH_COMPLETED"
	FetchFailed     EventType = "FETCH_FAILED"
	MatrixComputed  EventType = "MATRIX_COMPUTED"
	SettingsChanged EventType = "SETTINGS_CHANGED"
	CacheCleared    EventType = "CACHE_CLEARED"
	ErrorOccurred   EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
