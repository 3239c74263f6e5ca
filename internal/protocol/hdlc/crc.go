package hdlc

// CRC-16 parameters of the diag link layer (X.25 style: reflected polynomial,
// initial value 0xFFFF, final complement). The frame check sequence travels
// low byte first.
const (
	CRC_POLYNOMIAL = 0x8408 // x^16 + x^12 + x^5 + 1, reflected
	CRC_INIT       = 0xFFFF
)

// crcTable is the byte-indexed lookup table, built once at startup.
var crcTable [256]uint16

func init() {
	for i := 0; i < 256; i++ {
		crc := uint16(i)
		for bit := 0; bit < 8; bit++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ CRC_POLYNOMIAL
			} else {
				crc >>= 1
			}
		}
		crcTable[i] = crc
	}
}

// CRC16 calculates the frame check sequence over data.
func CRC16(data []byte) uint16 {
	crc := uint16(CRC_INIT)
	for _, b := range data {
		crc = (crc >> 8) ^ crcTable[byte(crc)^b]
	}
	return ^crc
}

// CheckCRC16 validates a buffer whose last two bytes carry the frame check
// sequence, low byte first.
func CheckCRC16(buffer []byte) bool {
	if len(buffer) < 2 {
		return false
	}
	n := len(buffer) - 2
	want := uint16(buffer[n]) | uint16(buffer[n+1])<<8
	return CRC16(buffer[:n]) == want
}
