package diag

// PacketKind tags the payload family of one de-framed message.
type PacketKind int

const (
	PacketUnrecognized PacketKind = iota
	PacketLog          // structured record carrying its own log header
	PacketLegacyDebug  // raw debug output, log header synthesized
)

// String returns the kind name for logging.
func (k PacketKind) String() string {
	switch k {
	case PacketLog:
		return "log"
	case PacketLegacyDebug:
		return "legacy_debug"
	}
	return "unrecognized"
}

// Packet is one classified inbound payload. Body holds exactly the bytes
// the record decoder consumes: for PacketLog the command byte and pad are
// stripped, for PacketLegacyDebug a synthesized header is prepended.
// PacketUnrecognized carries no body and is dropped by callers.
type Packet struct {
	Kind PacketKind
	Body []byte
}

// Classify inspects a payload that passed the frame check and prepares it
// for decoding.
func Classify(payload []byte) Packet {
	switch {
	case len(payload) >= 2 && payload[0] == DIAG_LOG_F:
		return Packet{Kind: PacketLog, Body: payload[2:]}
	case len(payload) >= 1 && (payload[0] == DIAG_EXT_MSG_F || payload[0] == DIAG_EXT_MSG_TERSE_F):
		return Packet{Kind: PacketLegacyDebug, Body: synthesizeDebugHeader(payload)}
	default:
		return Packet{Kind: PacketUnrecognized}
	}
}

// synthesizeDebugHeader wraps a legacy debug payload in the shape of a
// structured log record: zeroed outer length, inner length set to payload
// size plus header (truncated to one byte, matching the modem's own coarse
// field), the modem debug log code, and a zeroed device timestamp.
func synthesizeDebugHeader(payload []byte) []byte {
	body := make([]byte, LOG_HEADER_LENGTH+len(payload))
	body[2] = byte(len(payload) + LOG_HEADER_LENGTH)
	body[4] = byte(MODEM_DEBUG_MESSAGE & 0xFF)
	body[5] = byte(MODEM_DEBUG_MESSAGE >> 8)
	copy(body[LOG_HEADER_LENGTH:], payload)
	return body
}
