package database

import (
	"fmt"
	"strings"
	"time"
)

// CaptureSession represents one run of the collector against a diag port
type CaptureSession struct {
	ID        string     `gorm:"primarykey;size:36" json:"id"` // UUID
	Port      string     `gorm:"size:128" json:"port"`
	Types     string     `gorm:"size:1024" json:"types"` // comma-joined enabled category names
	StartedAt time.Time  `gorm:"index" json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"` // nil while the session runs
	Frames    uint64     `json:"frames"`               // frames extracted, including drops
	Records   uint64     `json:"records"`              // records decoded and stored
}

// TableName specifies the table name for GORM
func (CaptureSession) TableName() string {
	return "capture_sessions"
}

// Active reports whether the session is still collecting
func (s CaptureSession) Active() bool {
	return s.StoppedAt == nil
}

// Duration returns the session length, up to now for active sessions
func (s CaptureSession) Duration() time.Duration {
	if s.StoppedAt != nil {
		return s.StoppedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

// TypeNames splits the stored category list back into names
func (s CaptureSession) TypeNames() []string {
	if s.Types == "" {
		return nil
	}
	return strings.Split(s.Types, ",")
}

// String returns a formatted string representation
func (s CaptureSession) String() string {
	state := "active"
	if !s.Active() {
		state = "stopped"
	}
	return fmt.Sprintf("%s on %s (%s, %d records)", s.ID, s.Port, state, s.Records)
}

// IsValid checks if the session record has required fields
func (s CaptureSession) IsValid() bool {
	return s.ID != "" && s.Port != "" && !s.StartedAt.IsZero()
}

// LogRecord is one decoded diagnostic record tied to its capture session
type LogRecord struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	SessionID       string    `gorm:"index;size:36;not null" json:"session_id"`
	Code            uint16    `gorm:"index" json:"code"`
	Name            string    `gorm:"size:64" json:"name"` // empty for unlisted codes
	Length          uint16    `json:"length"`
	DeviceTimestamp uint64    `json:"device_timestamp"`
	CapturedAt      time.Time `gorm:"index" json:"captured_at"`
	Payload         []byte    `json:"payload,omitempty"` // nil in header-only captures
}

// TableName specifies the table name for GORM
func (LogRecord) TableName() string {
	return "log_records"
}

// IsValid checks if the record is attributable to a session
func (r LogRecord) IsValid() bool {
	return r.SessionID != "" && !r.CapturedAt.IsZero()
}

// String returns a formatted string representation
func (r LogRecord) String() string {
	name := r.Name
	if name == "" {
		name = "unlisted"
	}
	return fmt.Sprintf("0x%04X %s (%d bytes at %s)", r.Code, name, r.Length, r.CapturedAt.Format(time.RFC3339Nano))
}
