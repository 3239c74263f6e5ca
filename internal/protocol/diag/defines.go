package diag

// Command codes of the diag protocol handled by the collector
const (
	DIAG_LOG_F            = 0x10 // structured log record
	DIAG_LOG_CONFIG_F     = 0x73 // log mask configuration request
	DIAG_EXT_MSG_F        = 0x79 // extended debug message
	DIAG_EXT_MSG_CONFIG_F = 0x7D // extended message configuration
	DIAG_EXT_MSG_TERSE_F  = 0x92 // terse extended debug message
)

// Operations of a DIAG_LOG_CONFIG_F request
const (
	LOG_CONFIG_DISABLE_OP  = 0
	LOG_CONFIG_SET_MASK_OP = 3
)

// LOG_HEADER_LENGTH is the size of the header every log record starts with:
// outer length (2), inner length (2), log code (2), device timestamp (8).
const LOG_HEADER_LENGTH = 14

// MODEM_DEBUG_MESSAGE is the log code of the raw modem debug channel. It is
// enabled through the extended message configuration commands instead of a
// log mask, and legacy debug payloads are resurfaced under this code.
const MODEM_DEBUG_MESSAGE TypeID = 0x1FEB

// TypeID is a 16-bit log code. The top four bits carry the equip id (the
// subsystem owning the code), the low twelve bits the item within it.
type TypeID uint16

// EquipID identifies the subsystem that owns a range of log codes.
type EquipID uint8

// EquipID returns the owning subsystem of the log code.
func (id TypeID) EquipID() EquipID {
	return EquipID(id >> 12)
}

// Item returns the code's item number within its equip id.
func (id TypeID) Item() uint16 {
	return uint16(id) & 0x0FFF
}
