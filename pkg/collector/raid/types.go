package raid

import "encoding/json"

// cliOutput models the StorCLI-family JSON document returned by
// `<tool> /cALL show all J`. MegaCLI64 and PercCLI64 are OEM builds of the
// same tool and share this schema. Key names mirror the tool's output,
// including its idiosyncratic spellings.
type cliOutput struct {
	Controllers []controllerEntry `json:"Controllers"`
}

type controllerEntry struct {
	CommandStatus commandStatus `json:"Command Status"`
	ResponseData  responseData  `json:"Response Data"`
}

type commandStatus struct {
	Controller  int    `json:"Controller"`
	Status      string `json:"Status"`
	Description string `json:"Description"`
}

type responseData struct {
	Basics         basics         `json:"Basics"`
	Version        version        `json:"Version"`
	Status         ctrlStatus     `json:"Status"`
	HwCfg          map[string]any `json:"HwCfg"`
	ScheduledTasks map[string]any `json:"Scheduled Tasks"`
	CachevaultInfo []cachevault   `json:"Cachevault_Info"`

	DriveGroups    *float64 `json:"Drive Groups"`
	VirtualDrives  *float64 `json:"Virtual Drives"`
	PhysicalDrives *float64 `json:"Physical Drives"`

	VDList []virtualDrive  `json:"VD LIST"`
	PDList []physicalDrive `json:"PD LIST"`
}

type basics struct {
	Controller            int    `json:"Controller"`
	Model                 string `json:"Model"`
	SerialNumber          string `json:"Serial Number"`
	CurrentSystemTime     string `json:"Current System Date/time"`
	CurrentControllerTime string `json:"Current Controller Date/Time"`
}

type version struct {
	DriverName           string `json:"Driver Name"`
	BiosVersion          string `json:"Bios Version"`
	FirmwareVersion      string `json:"Firmware Version"`
	FirmwarePackageBuild string `json:"Firmware Package Build"`
}

type ctrlStatus struct {
	ControllerStatus string `json:"Controller Status"`
	// BBUStatus is numeric on MegaRAID controllers and absent or "NA" on
	// SAS HBAs.
	BBUStatus                 any      `json:"BBU Status"`
	MemoryCorrectableErrors   *float64 `json:"Memory Correctable Errors"`
	MemoryUncorrectableErrors *float64 `json:"Memory Uncorrectable Errors"`
}

type cachevault struct {
	Temp  string `json:"Temp"`
	State string `json:"State"`
}

type virtualDrive struct {
	// Position is "DG/VD", e.g. "0/1".
	Position string `json:"DG/VD"`
	State    string `json:"State"`
	Name     string `json:"Name"`
	Cache    string `json:"Cache"`
	Type     string `json:"TYPE"`
	Size     string `json:"Size"`
}

type physicalDrive struct {
	// EIDSlt is "enclosure:slot", e.g. "32:2".
	EIDSlt string `json:"EID:Slt"`
	DID    any    `json:"DID"`
	State  string `json:"State"`
	// DG is a drive group number, or "-" for unconfigured drives.
	DG        any    `json:"DG"`
	Interface string `json:"Intf"`
	Media     string `json:"Med"`
	Model     string `json:"Model"`
	Size      string `json:"Size"`
}

// detailOutput models `<tool> /cALL/eALL/sALL show all J`. The response
// data is a flat map of per-drive sections keyed by the drive identifier,
// e.g. "Drive /c0/e32/s0 - Detailed Information".
type detailOutput struct {
	Controllers []detailEntry `json:"Controllers"`
}

type detailEntry struct {
	CommandStatus commandStatus              `json:"Command Status"`
	ResponseData  map[string]json.RawMessage `json:"Response Data"`
}

// driveDetail is one drive's detailed-information section, split into the
// three sub-maps the tool nests under it. Values are loosely typed; the
// firmware emits numbers and strings interchangeably.
type driveDetail struct {
	State      map[string]any
	Attributes map[string]any
	Settings   map[string]any
}
