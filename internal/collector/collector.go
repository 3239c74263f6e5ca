package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/diagstack/dmcollect/internal/config"
	"github.com/diagstack/dmcollect/internal/database"
	"github.com/diagstack/dmcollect/internal/decoder"
	"github.com/diagstack/dmcollect/internal/metrics"
	"github.com/diagstack/dmcollect/internal/protocol/diag"
	"github.com/diagstack/dmcollect/internal/session"
	"github.com/diagstack/dmcollect/internal/transport"
)

// readBufferSize is sized for several frames per poll at 115200 baud.
const readBufferSize = 4096

// Collector runs capture sessions: it configures the modem, drains the
// diag byte stream into decoded records and persists them.
type Collector struct {
	cfg  *config.Config
	repo *database.CaptureRepository
	log  *zap.Logger
	m    *metrics.AppMetrics
}

// New wires a collector to its configuration, store, logger and metrics.
func New(cfg *config.Config, repo *database.CaptureRepository, log *zap.Logger, m *metrics.AppMetrics) *Collector {
	return &Collector{cfg: cfg, repo: repo, log: log, m: m}
}

// runState carries one capture run's identity and counters.
type runState struct {
	sessionID string
	frames    uint64
	records   uint64
	pending   []database.LogRecord
	lastFlush time.Time
}

// Run opens the configured diag port and captures until ctx is cancelled
// or the link fails.
func (c *Collector) Run(ctx context.Context) error {
	port, err := transport.OpenSerial(transport.Config{
		Port:        c.cfg.Serial.Port,
		BaudRate:    c.cfg.Serial.BaudRate,
		ReadTimeout: c.cfg.Serial.ReadTimeout,
	})
	if err != nil {
		return fmt.Errorf("open diag port: %w", err)
	}
	defer port.Close()

	c.log.Info("diag port open",
		zap.String("port", port.Name()),
		zap.Int("baud", c.cfg.Serial.BaudRate))

	return c.runWithLink(ctx, port)
}

// runWithLink drives a capture session over an already-open link. Split
// from Run so the pipeline is exercisable without serial hardware.
func (c *Collector) runWithLink(ctx context.Context, link io.ReadWriter) error {
	names := c.cfg.Capture.Types
	if len(names) == 0 {
		names = diag.TypeNames()
	}

	sess := session.New(link, decoder.HeaderDecoder{}, c.log.Named("session"), c.m)

	st := &runState{sessionID: uuid.NewString(), lastFlush: time.Now()}
	row := &database.CaptureSession{
		ID:        st.sessionID,
		Port:      c.cfg.Serial.Port,
		Types:     strings.Join(names, ","),
		StartedAt: time.Now(),
	}
	if err := c.repo.CreateSession(row); err != nil {
		return fmt.Errorf("create capture session: %w", err)
	}

	c.log.Info("capture session started",
		zap.String("session", st.sessionID),
		zap.Strings("types", names),
		zap.Bool("skip_payload", c.cfg.Capture.SkipPayload))

	var runErr error
	if err := sess.Enable(names); err != nil {
		runErr = fmt.Errorf("enable log types: %w", err)
	} else {
		runErr = c.captureLoop(ctx, link, sess, st)
	}

	// Leave the modem quiet regardless of how the run ended.
	if err := sess.Disable(); err != nil {
		c.log.Warn("disable on shutdown failed", zap.Error(err))
	}

	if err := c.flush(st); err != nil && runErr == nil {
		runErr = err
	}
	c.closeSession(st)

	c.log.Info("capture session stopped",
		zap.String("session", st.sessionID),
		zap.Uint64("frames", st.frames),
		zap.Uint64("records", st.records))
	return runErr
}

// captureLoop polls the link until cancellation, end of stream or a link
// error. Reads are expected to time out and return 0 bytes when the modem
// is idle.
func (c *Collector) captureLoop(ctx context.Context, r io.Reader, sess *session.Session, st *runState) error {
	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			c.m.LinkBytesRead.Add(float64(n))
			sess.Feed(buf[:n])
			c.drain(sess, st)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Replayed streams end; a live port polls forever.
				return nil
			}
			return fmt.Errorf("read diag port: %w", err)
		}

		if len(st.pending) >= c.cfg.Capture.FlushSize ||
			(len(st.pending) > 0 && time.Since(st.lastFlush) >= c.cfg.Capture.FlushInterval) {
			if err := c.flush(st); err != nil {
				return err
			}
		}
	}
}

// drain pulls every complete frame out of the session buffer and queues
// the decoded records for storage.
func (c *Collector) drain(sess *session.Session, st *runState) {
	for {
		rec, consumed := sess.Next(c.cfg.Capture.SkipPayload)
		if !consumed {
			return
		}
		st.frames++
		if rec == nil {
			continue
		}
		st.pending = append(st.pending, database.LogRecord{
			SessionID:       st.sessionID,
			Code:            uint16(rec.Code),
			Name:            rec.Name,
			Length:          rec.Length,
			DeviceTimestamp: rec.DeviceTimestamp,
			CapturedAt:      rec.CapturedAt,
			Payload:         rec.Payload,
		})
	}
}

// flush writes the queued records in one batch. Store failures are fatal
// for the run; records are not dropped silently.
func (c *Collector) flush(st *runState) error {
	if len(st.pending) == 0 {
		st.lastFlush = time.Now()
		return nil
	}
	if err := c.repo.InsertRecordBatch(st.pending); err != nil {
		return fmt.Errorf("store %d records: %w", len(st.pending), err)
	}
	c.m.RecordsStored.Add(float64(len(st.pending)))
	st.records += uint64(len(st.pending))
	st.pending = st.pending[:0]
	st.lastFlush = time.Now()
	return nil
}

func (c *Collector) closeSession(st *runState) {
	if err := c.repo.CloseSession(st.sessionID, time.Now(), st.frames, st.records); err != nil {
		c.log.Warn("close capture session failed",
			zap.String("session", st.sessionID), zap.Error(err))
	}
}
