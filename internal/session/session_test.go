package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/diagstack/dmcollect/internal/decoder"
	"github.com/diagstack/dmcollect/internal/metrics"
	"github.com/diagstack/dmcollect/internal/protocol/diag"
	"github.com/diagstack/dmcollect/internal/protocol/hdlc"
)

func newTestSession(w *bytes.Buffer) *Session {
	return New(w, decoder.HeaderDecoder{}, zap.NewNop(), metrics.NewAppMetrics(metrics.NewRegistry()))
}

// readFrames splits a byte stream produced by framed writes back into the
// raw command payloads.
func readFrames(t *testing.T, raw []byte) [][]byte {
	t.Helper()
	var buf hdlc.Buffer
	buf.Feed(raw)

	var frames [][]byte
	for {
		payload, crcOK, ok := buf.Next()
		if !ok {
			return frames
		}
		if !crcOK {
			t.Fatalf("frame %d failed checksum", len(frames))
		}
		frames = append(frames, payload)
	}
}

// logFrame builds a complete on-air frame carrying one structured log
// record: command byte, sequence byte, 14-byte log header, record body.
func logFrame(code uint16, ts uint64, body []byte) []byte {
	p := make([]byte, 2+diag.LOG_HEADER_LENGTH+len(body))
	p[0] = diag.DIAG_LOG_F
	binary.LittleEndian.PutUint16(p[2:4], uint16(diag.LOG_HEADER_LENGTH+len(body)))
	binary.LittleEndian.PutUint16(p[4:6], uint16(diag.LOG_HEADER_LENGTH+len(body)))
	binary.LittleEndian.PutUint16(p[6:8], code)
	binary.LittleEndian.PutUint64(p[8:16], ts)
	copy(p[16:], body)
	return hdlc.Encode(p)
}

func TestSession_Enable(t *testing.T) {
	var sink bytes.Buffer
	s := newTestSession(&sink)

	if err := s.Enable([]string{"WCDMA_CELL_ID", "LTE_RRC_OTA_Packet"}); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}

	frames := readFrames(t, sink.Bytes())
	if len(frames) != 2 {
		t.Fatalf("Enable() wrote %d frames, want 2", len(frames))
	}

	// One set-mask message per equip id, ascending: WCDMA (4) then LTE (11).
	wcdma, lte := frames[0], frames[1]

	if wcdma[0] != diag.DIAG_LOG_CONFIG_F {
		t.Errorf("frame 0 command = 0x%02X, want 0x%02X", wcdma[0], diag.DIAG_LOG_CONFIG_F)
	}
	if op := binary.LittleEndian.Uint32(wcdma[4:8]); op != diag.LOG_CONFIG_SET_MASK_OP {
		t.Errorf("frame 0 operation = %d, want %d", op, diag.LOG_CONFIG_SET_MASK_OP)
	}
	if equip := binary.LittleEndian.Uint32(wcdma[8:12]); equip != 4 {
		t.Errorf("frame 0 equip id = %d, want 4", equip)
	}
	// WCDMA_CELL_ID is 0x4127: item 295, last mask byte, high bit.
	if count := binary.LittleEndian.Uint32(wcdma[12:16]); count != 296 {
		t.Errorf("frame 0 item count = %d, want 296", count)
	}
	if len(wcdma) != 53 {
		t.Fatalf("frame 0 length = %d, want 53", len(wcdma))
	}
	if wcdma[52] != 0x80 {
		t.Errorf("frame 0 mask byte = 0x%02X, want 0x80", wcdma[52])
	}

	if equip := binary.LittleEndian.Uint32(lte[8:12]); equip != 11 {
		t.Errorf("frame 1 equip id = %d, want 11", equip)
	}
	// LTE_RRC_OTA_Packet is 0xB0C0: item 192, lowest bit of byte 24.
	if count := binary.LittleEndian.Uint32(lte[12:16]); count != 193 {
		t.Errorf("frame 1 item count = %d, want 193", count)
	}
	if len(lte) != 41 {
		t.Fatalf("frame 1 length = %d, want 41", len(lte))
	}
	if lte[40] != 0x01 {
		t.Errorf("frame 1 mask byte = 0x%02X, want 0x01", lte[40])
	}
}

func TestSession_Enable_UnknownName(t *testing.T) {
	var sink bytes.Buffer
	s := newTestSession(&sink)

	err := s.Enable([]string{"WCDMA_CELL_ID", "No_Such_Type"})
	if !errors.Is(err, ErrUnknownLogType) {
		t.Fatalf("Enable() error = %v, want ErrUnknownLogType", err)
	}
	// Resolution happens before any transmission.
	if sink.Len() != 0 {
		t.Errorf("Enable() wrote %d bytes after unknown name, want 0", sink.Len())
	}
}

func TestSession_Enable_ModemDebug(t *testing.T) {
	var sink bytes.Buffer
	s := newTestSession(&sink)

	if err := s.Enable([]string{"Modem_debug_message"}); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}

	frames := readFrames(t, sink.Bytes())
	if len(frames) != 2 {
		t.Fatalf("Enable() wrote %d frames, want 2", len(frames))
	}
	for i, frame := range frames {
		if len(frame) != 12 {
			t.Fatalf("frame %d length = %d, want 12", i, len(frame))
		}
		if frame[0] != diag.DIAG_EXT_MSG_CONFIG_F {
			t.Errorf("frame %d command = 0x%02X, want 0x%02X", i, frame[0], diag.DIAG_EXT_MSG_CONFIG_F)
		}
	}
	// LTE ML1 subsystem range first, then WCDMA L1.
	if frames[0][2] != 0x00 || frames[1][2] != 0x04 {
		t.Errorf("subsystem selectors = 0x%02X, 0x%02X, want 0x00, 0x04", frames[0][2], frames[1][2])
	}
}

func TestSession_Disable(t *testing.T) {
	var sink bytes.Buffer
	s := newTestSession(&sink)

	if err := s.Disable(); err != nil {
		t.Fatalf("Disable() error: %v", err)
	}

	frames := readFrames(t, sink.Bytes())
	if len(frames) != 1 {
		t.Fatalf("Disable() wrote %d frames, want 1", len(frames))
	}
	want := []byte{diag.DIAG_LOG_CONFIG_F, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(frames[0], want) {
		t.Errorf("Disable() payload = % X, want % X", frames[0], want)
	}
}

func TestSession_WriteDiagConfig(t *testing.T) {
	var sink bytes.Buffer
	s := newTestSession(&sink)

	names := []string{"LTE_RRC_OTA_Packet", "Modem_debug_message", "WCDMA_CELL_ID"}

	var artifact bytes.Buffer
	if err := s.WriteDiagConfig(&artifact, names); err != nil {
		t.Fatalf("WriteDiagConfig() error: %v", err)
	}
	// The artifact is a command stream, not a capture: nothing may touch
	// the live link.
	if sink.Len() != 0 {
		t.Errorf("WriteDiagConfig() wrote %d bytes to the link, want 0", sink.Len())
	}

	// Replaying the artifact must behave like Disable followed by Enable.
	var expected bytes.Buffer
	if err := s.Disable(); err != nil {
		t.Fatalf("Disable() error: %v", err)
	}
	if err := s.Enable(names); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	expected.Write(sink.Bytes())

	if !bytes.Equal(artifact.Bytes(), expected.Bytes()) {
		t.Errorf("WriteDiagConfig() output differs from live disable+enable sequence\ngot:  % X\nwant: % X",
			artifact.Bytes(), expected.Bytes())
	}

	frames := readFrames(t, artifact.Bytes())
	// Disable, two debug enables, one mask per equip id (4 and 11).
	if len(frames) != 5 {
		t.Fatalf("WriteDiagConfig() wrote %d frames, want 5", len(frames))
	}
	if frames[0][0] != diag.DIAG_LOG_CONFIG_F || binary.LittleEndian.Uint32(frames[0][4:8]) != diag.LOG_CONFIG_DISABLE_OP {
		t.Errorf("frame 0 = % X, want disable message first", frames[0])
	}
}

func TestSession_WriteDiagConfig_UnknownName(t *testing.T) {
	var sink bytes.Buffer
	s := newTestSession(&sink)

	var artifact bytes.Buffer
	err := s.WriteDiagConfig(&artifact, []string{"No_Such_Type"})
	if !errors.Is(err, ErrUnknownLogType) {
		t.Fatalf("WriteDiagConfig() error = %v, want ErrUnknownLogType", err)
	}
	if artifact.Len() != 0 {
		t.Errorf("WriteDiagConfig() wrote %d bytes after unknown name, want 0", artifact.Len())
	}
}

// flakyWriter accepts a fixed number of writes, then fails.
type flakyWriter struct {
	wrote   bytes.Buffer
	allowed int
	err     error
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.allowed <= 0 {
		return 0, w.err
	}
	w.allowed--
	return w.wrote.Write(p)
}

func TestSession_Enable_WriteErrorAbortsBatch(t *testing.T) {
	portErr := errors.New("port gone")
	w := &flakyWriter{allowed: 1, err: portErr}
	s := New(w, decoder.HeaderDecoder{}, zap.NewNop(), metrics.NewAppMetrics(metrics.NewRegistry()))

	err := s.Enable([]string{"WCDMA_CELL_ID", "LTE_RRC_OTA_Packet"})
	if !errors.Is(err, portErr) {
		t.Fatalf("Enable() error = %v, want wrapped %v", err, portErr)
	}
	// The first message went out before the failure and stays written.
	frames := readFrames(t, w.wrote.Bytes())
	if len(frames) != 1 {
		t.Errorf("link carries %d frames after failure, want 1", len(frames))
	}
}

func TestSession_Next_EmptyBuffer(t *testing.T) {
	s := newTestSession(&bytes.Buffer{})
	if rec, consumed := s.Next(false); rec != nil || consumed {
		t.Errorf("Next() on empty buffer = (%v, %v), want (nil, false)", rec, consumed)
	}
}

func TestSession_FeedNext_StructuredRecord(t *testing.T) {
	s := newTestSession(&bytes.Buffer{})

	body := []byte{0xAA, 0xBB, 0xCC}
	frame := logFrame(0x4127, 0x0102030405060708, body)

	before := time.Now()

	// Feed in small chunks; no record may surface until the closing
	// delimiter arrives.
	for i := 0; i < len(frame); i += 3 {
		end := i + 3
		if end > len(frame) {
			end = len(frame)
		}
		s.Feed(frame[i:end])
		if end < len(frame) {
			if rec, consumed := s.Next(false); rec != nil || consumed {
				t.Fatalf("Next() surfaced a frame after %d of %d bytes", end, len(frame))
			}
		}
	}

	rec, consumed := s.Next(false)
	after := time.Now()
	if !consumed || rec == nil {
		t.Fatalf("Next() = (%v, %v), want a decoded record", rec, consumed)
	}

	if rec.Code != 0x4127 {
		t.Errorf("Code = 0x%04X, want 0x4127", uint16(rec.Code))
	}
	if rec.Name != "WCDMA_CELL_ID" {
		t.Errorf("Name = %q, want %q", rec.Name, "WCDMA_CELL_ID")
	}
	if want := uint16(diag.LOG_HEADER_LENGTH + len(body)); rec.Length != want {
		t.Errorf("Length = %d, want %d", rec.Length, want)
	}
	if rec.DeviceTimestamp != 0x0102030405060708 {
		t.Errorf("DeviceTimestamp = 0x%016X, want 0x0102030405060708", rec.DeviceTimestamp)
	}
	if !bytes.Equal(rec.Payload, body) {
		t.Errorf("Payload = % X, want % X", rec.Payload, body)
	}
	if rec.CapturedAt.Before(before) || rec.CapturedAt.After(after) {
		t.Errorf("CapturedAt = %v, want within [%v, %v]", rec.CapturedAt, before, after)
	}

	if rec, consumed := s.Next(false); rec != nil || consumed {
		t.Errorf("Next() after drain = (%v, %v), want (nil, false)", rec, consumed)
	}
}

func TestSession_Next_SkipPayload(t *testing.T) {
	s := newTestSession(&bytes.Buffer{})
	s.Feed(logFrame(0x4127, 42, []byte{0xAA, 0xBB}))

	rec, consumed := s.Next(true)
	if !consumed || rec == nil {
		t.Fatalf("Next(true) = (%v, %v), want a decoded record", rec, consumed)
	}
	if rec.Payload != nil {
		t.Errorf("Payload = % X, want nil in header-only mode", rec.Payload)
	}
	if rec.Code != 0x4127 || rec.Name != "WCDMA_CELL_ID" {
		t.Errorf("header fields = (0x%04X, %q), want (0x4127, %q)", uint16(rec.Code), rec.Name, "WCDMA_CELL_ID")
	}
}

func TestSession_Next_ChecksumDrop(t *testing.T) {
	s := newTestSession(&bytes.Buffer{})

	// Payload {10 00 AA BB} checksums to 0x66A8; corrupting the low FCS
	// byte keeps every frame byte plain.
	corrupt := []byte{hdlc.FRAME_FLAG, 0x10, 0x00, 0xAA, 0xBB, 0xA9, 0x66, hdlc.FRAME_FLAG}
	s.Feed(corrupt)

	rec, consumed := s.Next(false)
	if rec != nil || !consumed {
		t.Fatalf("Next() on corrupt frame = (%v, %v), want (nil, true)", rec, consumed)
	}

	// The corrupt frame is consumed; the stream recovers on the next one.
	s.Feed(logFrame(0xB0C0, 7, []byte{0x01}))
	rec, consumed = s.Next(false)
	if !consumed || rec == nil {
		t.Fatalf("Next() after corrupt frame = (%v, %v), want a decoded record", rec, consumed)
	}
	if rec.Name != "LTE_RRC_OTA_Packet" {
		t.Errorf("Name = %q, want %q", rec.Name, "LTE_RRC_OTA_Packet")
	}
}

func TestSession_Next_UnrecognizedDrop(t *testing.T) {
	s := newTestSession(&bytes.Buffer{})

	// A log-config response echo: valid frame, not a record.
	s.Feed(hdlc.Encode([]byte{diag.DIAG_LOG_CONFIG_F, 0x00, 0x00, 0x00}))

	rec, consumed := s.Next(false)
	if rec != nil || !consumed {
		t.Errorf("Next() on response echo = (%v, %v), want (nil, true)", rec, consumed)
	}
	if rec, consumed := s.Next(false); rec != nil || consumed {
		t.Errorf("Next() after drop = (%v, %v), want (nil, false)", rec, consumed)
	}
}

func TestSession_Next_DecodeError(t *testing.T) {
	s := newTestSession(&bytes.Buffer{})

	// Structured marker with a truncated header.
	s.Feed(hdlc.Encode([]byte{diag.DIAG_LOG_F, 0x00, 0x01, 0x02, 0x03}))

	rec, consumed := s.Next(false)
	if rec != nil || !consumed {
		t.Errorf("Next() on truncated record = (%v, %v), want (nil, true)", rec, consumed)
	}
}

func TestSession_Next_LegacyDebug(t *testing.T) {
	s := newTestSession(&bytes.Buffer{})

	payload := append([]byte{diag.DIAG_EXT_MSG_F}, []byte("radio up")...)
	s.Feed(hdlc.Encode(payload))

	rec, consumed := s.Next(false)
	if !consumed || rec == nil {
		t.Fatalf("Next() = (%v, %v), want a decoded record", rec, consumed)
	}
	if rec.Code != diag.MODEM_DEBUG_MESSAGE {
		t.Errorf("Code = 0x%04X, want 0x%04X", uint16(rec.Code), uint16(diag.MODEM_DEBUG_MESSAGE))
	}
	if rec.Name != "Modem_debug_message" {
		t.Errorf("Name = %q, want %q", rec.Name, "Modem_debug_message")
	}
	if rec.DeviceTimestamp != 0 {
		t.Errorf("DeviceTimestamp = %d, want 0 for synthesized header", rec.DeviceTimestamp)
	}
	// The synthesized record keeps the entire original payload, command
	// byte included.
	if !bytes.Equal(rec.Payload, payload) {
		t.Errorf("Payload = % X, want % X", rec.Payload, payload)
	}
}
