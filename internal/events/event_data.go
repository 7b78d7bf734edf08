package events

// EventData is the interface that all typed event payloads implement.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// FetchStartedData contains data for FetchStarted events
type FetchStartedData struct {
	RunID   string   `json:"run_id"`
	Tickers []string `json:"tickers"`
	From    string   `json:"from"`
	To      string   `json:"to"`
}

// EventType returns the event type for FetchStartedData
func (d *FetchStartedData) EventType() EventType {
	return FetchStarted
}

// TickerFetchedData contains data for TickerFetched events
type TickerFetchedData struct {
	RunID     string `json:"run_id"`
	Ticker    string `json:"ticker"`
	Points    int    `json:"points"`
	Position  int    `json:"position"` // 1-based index in the basket
	BasketLen int    `json:"basket_len"`
}

// EventType returns the event type for TickerFetchedData
func (d *TickerFetchedData) EventType() EventType {
	return TickerFetched
}

// TickerEmptyData contains data for TickerEmpty events
type TickerEmptyData struct {
	RunID  string `json:"run_id"`
	Ticker string `json:"ticker"`
}

// EventType returns the event type for TickerEmptyData
func (d *TickerEmptyData) EventType() EventType {
	return TickerEmpty
}

// FetchCompletedData contains data for FetchCompleted events
type FetchCompletedData struct {
	RunID    string   `json:"run_id"`
	Tickers  int      `json:"tickers"`
	Warnings []string `json:"warnings,omitempty"`
}

// EventType returns the event type for FetchCompletedData
func (d *FetchCompletedData) EventType() EventType {
	return FetchCompleted
}

// FetchFailedData contains data for FetchFailed events
type FetchFailedData struct {
	RunID  string `json:"run_id"`
	Ticker string `json:"ticker"`
	Error  string `json:"error"`
}

// EventType returns the event type for FetchFailedData
func (d *FetchFailedData) EventType() EventType {
	return FetchFailed
}

// MatrixComputedData contains data for MatrixComputed events
type MatrixComputedData struct {
	Window   int `json:"window"`
	RowsUsed int `json:"rows_used"`
	Tickers  int `json:"tickers"`
}

// EventType returns the event type for MatrixComputedData
func (d *MatrixComputedData) EventType() EventType {
	return MatrixComputed
}

// SettingsChangedData contains data for SettingsChanged events
type SettingsChangedData struct {
	Key string `json:"key"`
}

// EventType returns the event type for SettingsChangedData
func (d *SettingsChangedData) EventType() EventType {
	return SettingsChanged
}

// CacheClearedData contains data for CacheCleared events
type CacheClearedData struct {
	Removed int `json:"removed"`
}

// EventType returns the event type for CacheClearedData
func (d *CacheClearedData) EventType() EventType {
	return CacheCleared
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
