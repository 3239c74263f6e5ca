package hdlc

// Byte-stuffing constants of the diag link layer
const (
	FRAME_FLAG   = 0x7E // frame delimiter
	FRAME_ESCAPE = 0x7D // escape marker
	ESCAPE_XOR   = 0x20 // applied to the byte following an escape
)

// Encode wraps payload into a complete frame: the frame check sequence is
// appended low byte first, every interior flag or escape byte is stuffed,
// and the result is delimited by a flag byte on both ends. The input slice
// is not modified.
func Encode(payload []byte) []byte {
	crc := CRC16(payload)

	out := make([]byte, 0, len(payload)+6)
	out = append(out, FRAME_FLAG)
	out = appendStuffed(out, payload)
	out = appendStuffed(out, []byte{byte(crc), byte(crc >> 8)})
	return append(out, FRAME_FLAG)
}

// appendStuffed appends data to out, escaping flag and escape bytes.
func appendStuffed(out, data []byte) []byte {
	for _, b := range data {
		if b == FRAME_FLAG || b == FRAME_ESCAPE {
			out = append(out, FRAME_ESCAPE, b^ESCAPE_XOR)
		} else {
			out = append(out, b)
		}
	}
	return out
}

// Decode unstuffs the body of one frame (the bytes between two flag
// delimiters) and validates the trailing frame check sequence. The payload
// is returned even when validation fails so callers can count corrupt
// frames; crcOK reports whether the check passed. Bodies shorter than the
// frame check sequence decode to an empty payload with crcOK=false.
func Decode(body []byte) (payload []byte, crcOK bool) {
	raw := unstuff(body)
	if len(raw) < 2 {
		return nil, false
	}
	return raw[:len(raw)-2], CheckCRC16(raw)
}

// unstuff reverses byte stuffing. A trailing lone escape byte is dropped.
func unstuff(body []byte) []byte {
	raw := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		b := body[i]
		if b == FRAME_ESCAPE {
			i++
			if i >= len(body) {
				break
			}
			raw = append(raw, body[i]^ESCAPE_XOR)
			continue
		}
		raw = append(raw, b)
	}
	return raw
}
