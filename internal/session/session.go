package session

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/diagstack/dmcollect/internal/decoder"
	"github.com/diagstack/dmcollect/internal/metrics"
	"github.com/diagstack/dmcollect/internal/protocol/diag"
	"github.com/diagstack/dmcollect/internal/protocol/hdlc"
)

var (
	// ErrUnknownLogType reports an enable request naming a category absent
	// from the registry. Nothing is sent when this fires.
	ErrUnknownLogType = errors.New("unknown log type")

	// ErrEncodeFailed reports a config message with no wire form. Messages
	// already written stay written.
	ErrEncodeFailed = errors.New("log config message failed to encode")
)

// Session drives one diag link: it sends log configuration commands and
// turns the inbound byte stream into decoded records. A Session serves a
// single byte stream and must not be shared between goroutines.
type Session struct {
	w   io.Writer
	dec decoder.Decoder
	buf hdlc.Buffer
	log *zap.Logger
	m   *metrics.AppMetrics

	discardedSeen uint64
}

// New binds a session to the outbound link, a record decoder, a logger and
// the metric set.
func New(w io.Writer, dec decoder.Decoder, log *zap.Logger, m *metrics.AppMetrics) *Session {
	return &Session{w: w, dec: dec, log: log, m: m}
}

// Enable resolves category names and transmits the enable sequence. Every
// name is resolved up front: one unknown name fails the whole call before
// anything reaches the link.
func (s *Session) Enable(names []string) error {
	ids, err := resolveNames(names)
	if err != nil {
		return err
	}
	return s.send(s.w, diag.BuildEnable(ids))
}

// Disable clears every log mask on the device.
func (s *Session) Disable() error {
	return s.send(s.w, diag.BuildDisableAll())
}

// WriteDiagConfig writes the replayable configuration artifact to w: the
// disable message followed by the enable sequence, byte-identical to what a
// live Disable and Enable would put on the link.
func (s *Session) WriteDiagConfig(w io.Writer, names []string) error {
	ids, err := resolveNames(names)
	if err != nil {
		return err
	}
	if err := s.send(w, diag.BuildDisableAll()); err != nil {
		return err
	}
	return s.send(w, diag.BuildEnable(ids))
}

// resolveNames maps category names to the union of their log codes.
func resolveNames(names []string) ([]diag.TypeID, error) {
	ids := make([]diag.TypeID, 0, len(names))
	for _, name := range names {
		matched := diag.Resolve(name)
		if len(matched) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLogType, name)
		}
		ids = append(ids, matched...)
	}
	return ids, nil
}

// send frames and writes each message in order. An empty encode aborts the
// batch; messages already written are not rolled back.
func (s *Session) send(w io.Writer, msgs []diag.ConfigMessage) error {
	for _, msg := range msgs {
		raw := msg.Encode()
		if len(raw) == 0 {
			return fmt.Errorf("%w: %s", ErrEncodeFailed, msg.Op)
		}
		if _, err := w.Write(hdlc.Encode(raw)); err != nil {
			return fmt.Errorf("write %s message: %w", msg.Op, err)
		}
		s.m.ConfigMessagesSent.Inc()
		s.log.Debug("config message sent",
			zap.Stringer("op", msg.Op),
			zap.Int("codes", len(msg.IDs)),
			zap.Int("bytes", len(raw)))
	}
	return nil
}

// Feed pushes received link bytes into the frame buffer.
func (s *Session) Feed(chunk []byte) {
	s.buf.Feed(chunk)
}

// Next attempts to surface one decoded record. The capture timestamp is
// taken before frame extraction so it tracks arrival as closely as the
// polling loop allows. The second return value reports whether a frame was
// consumed: false means no complete frame is buffered and the caller should
// read more bytes first. A consumed frame may still yield a nil record when
// it was dropped (failed checksum, unrecognized payload, decode failure);
// callers poll again.
func (s *Session) Next(skipPayload bool) (*decoder.Record, bool) {
	capturedAt := time.Now()

	payload, crcOK, ok := s.buf.Next()
	if !ok {
		return nil, false
	}
	s.m.FramesExtracted.Inc()
	if d := s.buf.Discarded(); d > s.discardedSeen {
		s.m.LinkBytesDiscarded.Add(float64(d - s.discardedSeen))
		s.discardedSeen = d
	}

	if !crcOK {
		s.m.ChecksumDrops.Inc()
		s.log.Debug("frame dropped: checksum mismatch", zap.Int("bytes", len(payload)))
		return nil, true
	}

	pkt := diag.Classify(payload)
	if pkt.Kind == diag.PacketUnrecognized {
		s.m.UnrecognizedDrops.Inc()
		fields := []zap.Field{zap.Int("bytes", len(payload))}
		if len(payload) > 0 {
			fields = append(fields, zap.Uint8("first_byte", payload[0]))
		}
		s.log.Debug("frame dropped: unrecognized payload", fields...)
		return nil, true
	}

	rec, err := s.dec.Decode(pkt.Body, skipPayload)
	if err != nil {
		s.m.DecodeErrors.Inc()
		s.log.Debug("frame dropped: decode failure",
			zap.Stringer("kind", pkt.Kind), zap.Error(err))
		return nil, true
	}
	rec.CapturedAt = capturedAt

	s.m.RecordsDecoded.Inc()
	s.m.RecordsByType.WithLabelValues(typeLabel(rec)).Inc()
	return rec, true
}

// typeLabel names a record for the per-type counter; unlisted codes count
// under their hex form.
func typeLabel(rec *decoder.Record) string {
	if rec.Name != "" {
		return rec.Name
	}
	return fmt.Sprintf("0x%04X", uint16(rec.Code))
}
