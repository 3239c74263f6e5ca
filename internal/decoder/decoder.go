package decoder

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/diagstack/dmcollect/internal/protocol/diag"
)

// Record is the decoded form of one diagnostic packet.
type Record struct {
	Code            diag.TypeID // 16-bit log code
	Name            string      // catalog name, empty when the code is unlisted
	Length          uint16      // inner length field from the log header
	DeviceTimestamp uint64      // raw device time, zero for synthesized headers
	CapturedAt      time.Time   // host receive time, stamped by the session
	Payload         []byte      // record body after the header, nil when skipped
}

// Decoder turns classified packet bodies into records. skipPayload limits
// the work to the header and leaves Record.Payload nil.
type Decoder interface {
	Decode(body []byte, skipPayload bool) (*Record, error)
}

// HeaderDecoder decodes the common log header every record starts with and
// carries the type-specific body through untouched. Per-type field decoding
// plugs in behind the Decoder interface.
type HeaderDecoder struct{}

// Decode parses the leading log header: outer length, inner length, log
// code and device timestamp, all little-endian.
func (HeaderDecoder) Decode(body []byte, skipPayload bool) (*Record, error) {
	if len(body) < diag.LOG_HEADER_LENGTH {
		return nil, fmt.Errorf("log record header: got %d bytes, need %d", len(body), diag.LOG_HEADER_LENGTH)
	}

	code := diag.TypeID(binary.LittleEndian.Uint16(body[4:6]))
	rec := &Record{
		Code:            code,
		Length:          binary.LittleEndian.Uint16(body[2:4]),
		DeviceTimestamp: binary.LittleEndian.Uint64(body[6:14]),
	}
	rec.Name, _ = diag.NameOf(code)

	if !skipPayload {
		rec.Payload = make([]byte, len(body)-diag.LOG_HEADER_LENGTH)
		copy(rec.Payload, body[diag.LOG_HEADER_LENGTH:])
	}
	return rec, nil
}
