package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// CaptureRepository provides database operations for capture sessions and
// their decoded records
type CaptureRepository struct {
	db *gorm.DB
}

// NewCaptureRepository creates a new repository instance
func NewCaptureRepository(db *gorm.DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

// CreateSession stores a new capture session row
func (r *CaptureRepository) CreateSession(session *CaptureSession) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if !session.IsValid() {
		return fmt.Errorf("session is not valid: id=%q, port=%q", session.ID, session.Port)
	}
	return r.db.Create(session).Error
}

// CloseSession marks a session stopped and records its final counters
func (r *CaptureRepository) CloseSession(id string, stoppedAt time.Time, frames, records uint64) error {
	result := r.db.Model(&CaptureSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stopped_at": stoppedAt,
			"frames":     frames,
			"records":    records,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetSession finds a capture session by its UUID
func (r *CaptureRepository) GetSession(id string) (*CaptureSession, error) {
	var session CaptureSession
	err := r.db.Where("id = ?", id).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// RecentSessions returns the latest capture sessions, newest first
func (r *CaptureRepository) RecentSessions(limit int) ([]CaptureSession, error) {
	var sessions []CaptureSession
	err := r.db.Order("started_at DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

// InsertRecord stores a single decoded record
func (r *CaptureRepository) InsertRecord(record *LogRecord) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if !record.IsValid() {
		return fmt.Errorf("record is not valid: session_id=%q, code=0x%04X", record.SessionID, record.Code)
	}
	return r.db.Create(record).Error
}

// InsertRecordBatch stores multiple decoded records in chunked transactions
func (r *CaptureRepository) InsertRecordBatch(records []LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Process in batches to keep transactions and memory bounded
	const batchSize = 1000

	// Drop rows that cannot be attributed to a session
	validRecords := make([]LogRecord, 0, len(records))
	for _, record := range records {
		if record.IsValid() {
			validRecords = append(validRecords, record)
		}
	}
	if len(validRecords) == 0 {
		return nil
	}

	if err := r.db.CreateInBatches(validRecords, batchSize).Error; err != nil {
		return fmt.Errorf("batch insert of %d records failed: %w", len(validRecords), err)
	}
	return nil
}

// CountBySession returns the number of stored records for a session
func (r *CaptureRepository) CountBySession(sessionID string) (int64, error) {
	var count int64
	err := r.db.Model(&LogRecord{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}

// RecentBySession returns a session's latest records, newest first
func (r *CaptureRepository) RecentBySession(sessionID string, limit int) ([]LogRecord, error) {
	var records []LogRecord
	err := r.db.Where("session_id = ?", sessionID).
		Order("captured_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// DeleteSession removes a session and everything captured under it
func (r *CaptureRepository) DeleteSession(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&LogRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&CaptureSession{}).Error
	})
}

// GetStatistics returns basic statistics for one capture session
func (r *CaptureRepository) GetStatistics(sessionID string) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	// Total count
	count, err := r.CountBySession(sessionID)
	if err != nil {
		return nil, err
	}
	stats["total_records"] = count

	// Most recent capture time
	var latest LogRecord
	err = r.db.Where("session_id = ?", sessionID).
		Order("captured_at DESC").
		First(&latest).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err != gorm.ErrRecordNotFound {
		stats["last_captured"] = latest.CapturedAt
	}

	// Record distribution by log code (top 10)
	var codeStats []struct {
		Code  uint16 `json:"code"`
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	err = r.db.Model(&LogRecord{}).
		Select("code, name, COUNT(*) as count").
		Where("session_id = ?", sessionID).
		Group("code").
		Order("count DESC").
		Limit(10).
		Find(&codeStats).Error
	if err != nil {
		return nil, err
	}
	stats["top_codes"] = codeStats

	return stats, nil
}

// HealthCheck verifies the repository is working correctly
func (r *CaptureRepository) HealthCheck() error {
	// Try a simple query
	var count int64
	return r.db.Model(&CaptureSession{}).Count(&count).Error
}
