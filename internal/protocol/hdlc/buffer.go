package hdlc

import "bytes"

// Buffer accumulates raw link bytes and carves complete frames out of the
// stream. One Buffer serves one byte stream; it is not safe for concurrent
// use.
type Buffer struct {
	data      []byte
	discarded uint64
}

// Feed appends a chunk of received bytes. No framing work happens here.
func (b *Buffer) Feed(chunk []byte) {
	b.data = append(b.data, chunk...)
}

// Len returns the number of buffered bytes awaiting a complete frame.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Discarded returns the cumulative count of garbage bytes dropped ahead of
// frame delimiters. The link may be joined mid-stream, so a partial frame
// before the first delimiter is expected and silently skipped.
func (b *Buffer) Discarded() uint64 {
	return b.discarded
}

// Next extracts the next complete frame. ok reports whether one was found:
// until both an opening and a closing delimiter are buffered, the buffer is
// left untouched and ok is false. On extraction the frame body is decoded
// (see Decode) and everything up to and including the closing delimiter is
// consumed, dropping any garbage ahead of the opening delimiter. Adjacent
// delimiters surface as an empty payload with crcOK=false; callers drop
// those and poll again.
func (b *Buffer) Next() (payload []byte, crcOK bool, ok bool) {
	start := bytes.IndexByte(b.data, FRAME_FLAG)
	if start < 0 {
		return nil, false, false
	}
	end := bytes.IndexByte(b.data[start+1:], FRAME_FLAG)
	if end < 0 {
		return nil, false, false
	}
	end += start + 1

	payload, crcOK = Decode(b.data[start+1 : end])
	b.discarded += uint64(start)

	// Compact so the consumed prefix does not pin the backing array.
	n := copy(b.data, b.data[end+1:])
	b.data = b.data[:n]

	return payload, crcOK, true
}
