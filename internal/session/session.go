package session

import "time"

// Session represents an active or completed capture session. The running
// engine is the only writer of the counter fields; other processes read
// them for status display and write only StopRequested.
type Session struct {
	ID         string     `json:"id"`
	StartTime  time.Time  `json:"start_time"`
	StopTime   *time.Time `json:"stop_time,omitempty"`
	FramesFile string     `json:"frames_file"`
	BatchDir   string     `json:"batch_dir"`

	// StopRequested is set by `chatrake stop`; the engine polls it between
	// cycles and shuts down gracefully when it flips.
	StopRequested bool `json:"stop_requested,omitempty"`

	// Live counters, updated by the engine's heartbeat.
	Cycles        int `json:"cycles"`
	RowsAccepted  int `json:"rows_accepted"`
	RowsDuplicate int `json:"rows_duplicate"`
	PartsEmitted  int `json:"parts_emitted"`
	Stalls        int `json:"stalls"` // cumulative, never reset by a nudge
	Nudges        int `json:"nudges"`
	DelayMs       int `json:"delay_ms"` // current pacing delay
}
