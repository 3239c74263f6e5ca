package hdlc

import (
	"bytes"
	"testing"
)

func TestEncode_KnownFrame(t *testing.T) {
	// "123456789" has FCS 0x906E and contains nothing that needs stuffing,
	// so the exact wire image is predictable.
	got := Encode([]byte("123456789"))
	want := []byte{
		FRAME_FLAG,
		'1', '2', '3', '4', '5', '6', '7', '8', '9',
		0x6E, 0x90,
		FRAME_FLAG,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % 02X, want % 02X", got, want)
	}
}

func TestEncode_Stuffing(t *testing.T) {
	tests := []struct {
		name  string
		input byte
		want  [2]byte
	}{
		{name: "flag byte", input: 0x7E, want: [2]byte{0x7D, 0x5E}},
		{name: "escape byte", input: 0x7D, want: [2]byte{0x7D, 0x5D}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := Encode([]byte{tt.input})
			if frame[1] != tt.want[0] || frame[2] != tt.want[1] {
				t.Errorf("Encode() stuffed 0x%02X as [0x%02X 0x%02X], want [0x%02X 0x%02X]",
					tt.input, frame[1], frame[2], tt.want[0], tt.want[1])
			}
			// The interior must be free of bare delimiters
			for i, b := range frame[1 : len(frame)-1] {
				if b == FRAME_FLAG {
					t.Errorf("Encode() left bare flag byte at interior offset %d", i)
				}
			}
		})
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	allValues := make([]byte, 256)
	for i := range allValues {
		allValues[i] = byte(i)
	}

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "empty payload", payload: []byte{}},
		{name: "plain bytes", payload: []byte{0x10, 0x00, 0x01, 0x02}},
		{name: "flag bytes inside", payload: []byte{0x7E, 0x00, 0x7E}},
		{name: "escape bytes inside", payload: []byte{0x7D, 0x7D, 0x7D}},
		{name: "mixed delimiters", payload: []byte{0x7E, 0x7D, 0x5E, 0x5D, 0x7E}},
		{name: "every byte value", payload: allValues},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := Encode(tt.payload)

			if frame[0] != FRAME_FLAG || frame[len(frame)-1] != FRAME_FLAG {
				t.Fatalf("Encode() frame not delimited: first=0x%02X last=0x%02X",
					frame[0], frame[len(frame)-1])
			}

			payload, crcOK := Decode(frame[1 : len(frame)-1])
			if !crcOK {
				t.Fatalf("Decode() crcOK = false for freshly encoded frame")
			}
			if !bytes.Equal(payload, tt.payload) {
				t.Errorf("Decode() payload = % 02X, want % 02X", payload, tt.payload)
			}
		})
	}
}

func TestDecode_DetectsBitErrors(t *testing.T) {
	// The payload is chosen so that no single-bit flip can create or destroy
	// an escape sequence: every flip is a clean one-bit error in the
	// unstuffed image, which the FCS always detects.
	frame := Encode([]byte("123456789"))
	body := frame[1 : len(frame)-1]

	for i := range body {
		for bit := 0; bit < 8; bit++ {
			body[i] ^= 1 << bit
			if _, crcOK := Decode(body); crcOK {
				t.Errorf("Decode() crcOK = true with bit %d of body byte %d flipped", bit, i)
			}
			body[i] ^= 1 << bit
		}
	}
}

func TestDecode_ShortBody(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{name: "empty body", body: []byte{}},
		{name: "one byte", body: []byte{0x42}},
		{name: "lone trailing escape", body: []byte{0x7D}},
		{name: "escape then nothing", body: []byte{0x42, 0x7D}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, crcOK := Decode(tt.body)
			if crcOK {
				t.Errorf("Decode() crcOK = true for short body, want false")
			}
			if len(payload) != 0 {
				t.Errorf("Decode() payload = % 02X, want empty", payload)
			}
		})
	}
}

func TestDecode_BadCRCKeepsPayload(t *testing.T) {
	payload := []byte{0x10, 0x00, 0xAA, 0xBB}
	frame := Encode(payload)
	body := frame[1 : len(frame)-1]

	// Trash the FCS only; the payload bytes stay intact
	body[len(body)-1] ^= 0xFF

	got, crcOK := Decode(body)
	if crcOK {
		t.Fatal("Decode() crcOK = true with corrupted FCS")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Decode() payload = % 02X, want % 02X", got, payload)
	}
}

func BenchmarkEncode(b *testing.B) {
	payload := make([]byte, 512)
	for i := range payload {
		payload[i] = byte(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Encode(payload)
	}
}

func BenchmarkDecode(b *testing.B) {
	payload := make([]byte, 512)
	for i := range payload {
		payload[i] = byte(i)
	}
	frame := Encode(payload)
	body := frame[1 : len(frame)-1]

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Decode(body)
	}
}
