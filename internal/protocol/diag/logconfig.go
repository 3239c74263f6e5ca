package diag

import (
	"encoding/binary"
	"sort"
)

// ConfigOp selects the wire form of one log configuration message.
type ConfigOp int

const (
	ConfigDisable      ConfigOp = iota // clear every log mask
	ConfigSetMask                      // set the mask of one equip id
	ConfigDebugLTEML1                  // enable LTE ML1 debug output
	ConfigDebugWCDMAL1                 // enable WCDMA L1 debug output
)

// String returns the operation name for logging.
func (op ConfigOp) String() string {
	switch op {
	case ConfigDisable:
		return "disable"
	case ConfigSetMask:
		return "set_mask"
	case ConfigDebugLTEML1:
		return "debug_lte_ml1"
	case ConfigDebugWCDMAL1:
		return "debug_wcdma_l1"
	}
	return "unknown"
}

// ConfigMessage is one log configuration command before framing. IDs holds
// the codes the message covers: the masked codes for ConfigSetMask, the
// post-removal request set for the two debug enables, nothing for
// ConfigDisable.
type ConfigMessage struct {
	Op  ConfigOp
	IDs []TypeID
}

// BuildDisableAll returns the single message that clears every log mask on
// the device.
func BuildDisableAll() []ConfigMessage {
	return []ConfigMessage{{Op: ConfigDisable}}
}

// BuildEnable translates a set of log codes into the ordered message
// sequence that enables them. Duplicates are tolerated. The modem debug
// channel is special: its presence emits the two extended-message debug
// enables (LTE ML1 first) instead of contributing to a mask. Remaining
// codes are grouped into one set-mask message per contiguous equip id run,
// ascending. An empty request builds an empty sequence.
func BuildEnable(ids []TypeID) []ConfigMessage {
	ids = normalize(ids)

	msgs := make([]ConfigMessage, 0, 4)
	if i := indexOf(ids, MODEM_DEBUG_MESSAGE); i >= 0 {
		ids = append(ids[:i], ids[i+1:]...)
		msgs = append(msgs,
			ConfigMessage{Op: ConfigDebugLTEML1, IDs: ids},
			ConfigMessage{Op: ConfigDebugWCDMAL1, IDs: ids},
		)
	}

	for start := 0; start < len(ids); {
		end := start + 1
		for end < len(ids) && ids[end].EquipID() == ids[start].EquipID() {
			end++
		}
		msgs = append(msgs, ConfigMessage{Op: ConfigSetMask, IDs: ids[start:end]})
		start = end
	}
	return msgs
}

// normalize returns a sorted copy of ids with duplicates removed.
func normalize(ids []TypeID) []TypeID {
	out := make([]TypeID, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	n := 0
	for _, id := range out {
		if n > 0 && id == out[n-1] {
			continue
		}
		out[n] = id
		n++
	}
	return out[:n]
}

func indexOf(ids []TypeID, want TypeID) int {
	for i, id := range ids {
		if id == want {
			return i
		}
	}
	return -1
}

// Encode serializes the message into raw command bytes, ready for framing.
// A ConfigSetMask covering no codes has no wire form and encodes to nil;
// senders treat that as fatal for the whole batch.
func (m ConfigMessage) Encode() []byte {
	switch m.Op {
	case ConfigDisable:
		// command, 3 pad bytes, operation, unused argument
		buf := make([]byte, 12)
		buf[0] = DIAG_LOG_CONFIG_F
		binary.LittleEndian.PutUint32(buf[4:8], LOG_CONFIG_DISABLE_OP)
		return buf

	case ConfigSetMask:
		if len(m.IDs) == 0 {
			return nil
		}
		highest := 0
		for _, id := range m.IDs {
			if item := int(id.Item()); item > highest {
				highest = item
			}
		}
		// command, 3 pad bytes, operation, equip id, item count, bitmask
		buf := make([]byte, 16+highest/8+1)
		buf[0] = DIAG_LOG_CONFIG_F
		binary.LittleEndian.PutUint32(buf[4:8], LOG_CONFIG_SET_MASK_OP)
		binary.LittleEndian.PutUint32(buf[8:12], uint32(m.IDs[0].EquipID()))
		binary.LittleEndian.PutUint32(buf[12:16], uint32(highest+1))
		for _, id := range m.IDs {
			item := id.Item()
			buf[16+int(item)/8] |= 1 << (item % 8)
		}
		return buf

	case ConfigDebugLTEML1:
		// extended message config: subsystem range selector at offset 2,
		// full runtime mask, reserved tail
		return []byte{DIAG_EXT_MSG_CONFIG_F, 0x04, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00}

	case ConfigDebugWCDMAL1:
		return []byte{DIAG_EXT_MSG_CONFIG_F, 0x04, 0x04, 0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00}
	}
	return nil
}
