package diag

// logTypeEntry pairs a log code with its published category name. The same
// name may appear under several codes where chipset generations moved a
// packet type; Resolve returns every match.
type logTypeEntry struct {
	id   TypeID
	name string
}

// logTypeTable is the fixed catalog of log codes the collector understands.
// Kept in ascending code order, grouped by equip id.
var logTypeTable = []logTypeEntry{
	// equip id 1: CDMA
	{0x1076, "CDMA_Paging_Channel_Message"},
	{MODEM_DEBUG_MESSAGE, "Modem_debug_message"},

	// equip id 4: WCDMA
	{0x4005, "WCDMA_Search_Cell_Reselection_Rank"},
	{0x4127, "WCDMA_CELL_ID"},
	{0x412F, "WCDMA_Signaling_Messages"},
	{0x41B0, "WCDMA_Search_Cell_Reselection_Rank"},

	// equip id 5: GSM
	{0x5071, "GSM_Surround_Cell_BA_List"},
	{0x512F, "GSM_RR_Signaling_Messages"},
	{0x5134, "GSM_RR_Cell_Information"},

	// equip id 7: UMTS NAS
	{0x7130, "UMTS_NAS_GMM_State"},
	{0x7131, "UMTS_NAS_MM_State"},
	{0x713A, "UMTS_NAS_OTA_Packet"},

	// equip id 0xB: LTE
	{0xB0C0, "LTE_RRC_OTA_Packet"},
	{0xB0C1, "LTE_RRC_MIB_Message_Log_Packet"},
	{0xB0C2, "LTE_RRC_Serv_Cell_Info_Log_Packet"},
	{0xB0E2, "LTE_NAS_ESM_Plain_OTA_Incoming_Message"},
	{0xB0E3, "LTE_NAS_ESM_Plain_OTA_Outgoing_Message"},
	{0xB0EC, "LTE_NAS_EMM_Plain_OTA_Incoming_Message"},
	{0xB0ED, "LTE_NAS_EMM_Plain_OTA_Outgoing_Message"},
	{0xB0EE, "LTE_NAS_EMM_State"},
	{0xB173, "LTE_PHY_PDSCH_Packet"},
	{0xB179, "LTE_ML1_Connected_Mode_LTE_Intra_Freq_Meas_Results"},
	{0xB193, "LTE_ML1_Serving_Cell_Measurement_Result"},
}

// Both lookup directions are built once at startup and never mutated, so the
// maps are safe to read from any goroutine.
var (
	nameToIDs map[string][]TypeID
	idToName  map[TypeID]string
)

func init() {
	nameToIDs = make(map[string][]TypeID, len(logTypeTable))
	idToName = make(map[TypeID]string, len(logTypeTable))
	for _, e := range logTypeTable {
		nameToIDs[e.name] = append(nameToIDs[e.name], e.id)
		idToName[e.id] = e.name
	}
}

// Resolve returns every log code registered under name, in table order. An
// unknown name yields an empty set.
func Resolve(name string) []TypeID {
	ids := nameToIDs[name]
	out := make([]TypeID, len(ids))
	copy(out, ids)
	return out
}

// NameOf returns the category name a log code is registered under.
func NameOf(id TypeID) (string, bool) {
	name, ok := idToName[id]
	return name, ok
}

// TypeNames returns the catalog of category names in table order, without
// duplicates. The slice is a fresh copy on every call.
func TypeNames() []string {
	seen := make(map[string]bool, len(logTypeTable))
	names := make([]string, 0, len(logTypeTable))
	for _, e := range logTypeTable {
		if seen[e.name] {
			continue
		}
		seen[e.name] = true
		names = append(names, e.name)
	}
	return names
}
