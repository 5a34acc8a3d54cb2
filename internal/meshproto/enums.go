package meshproto

import "strconv"

// PortNum identifies the application payload carried by a routed packet.
type PortNum int32

const (
	PortUnknown               PortNum = 0
	PortTextMessage           PortNum = 1
	PortRemoteHardware        PortNum = 2
	PortPosition              PortNum = 3
	PortNodeInfo              PortNum = 4
	PortRouting               PortNum = 5
	PortAdmin                 PortNum = 6
	PortTextMessageCompressed PortNum = 7
	PortWaypoint              PortNum = 8
	PortAudio                 PortNum = 9
	PortDetectionSensor       PortNum = 10
	PortReply                 PortNum = 32
	PortIPTunnel              PortNum = 33
	PortPaxcounter            PortNum = 34
	PortSerial                PortNum = 64
	PortStoreForward          PortNum = 65
	PortRangeTest             PortNum = 66
	PortTelemetry             PortNum = 67
	PortZPS                   PortNum = 68
	PortSimulator             PortNum = 69
	PortTraceroute            PortNum = 70
	PortNeighborInfo          PortNum = 71
	PortATAKPlugin            PortNum = 72
	PortMapReport             PortNum = 73
	PortPowerStress           PortNum = 74
	PortPrivate               PortNum = 256
	PortATAKForwarder         PortNum = 257
)

var portNames = map[PortNum]string{
	PortUnknown:               "UNKNOWN_APP",
	PortTextMessage:           "TEXT_MESSAGE_APP",
	PortRemoteHardware:        "REMOTE_HARDWARE_APP",
	PortPosition:              "POSITION_APP",
	PortNodeInfo:              "NODEINFO_APP",
	PortRouting:               "ROUTING_APP",
	PortAdmin:                 "ADMIN_APP",
	PortTextMessageCompressed: "TEXT_MESSAGE_COMPRESSED_APP",
	PortWaypoint:              "WAYPOINT_APP",
	PortAudio:                 "AUDIO_APP",
	PortDetectionSensor:       "DETECTION_SENSOR_APP",
	PortReply:                 "REPLY_APP",
	PortIPTunnel:              "IP_TUNNEL_APP",
	PortPaxcounter:            "PAXCOUNTER_APP",
	PortSerial:                "SERIAL_APP",
	PortStoreForward:          "STORE_FORWARD_APP",
	PortRangeTest:             "RANGE_TEST_APP",
	PortTelemetry:             "TELEMETRY_APP",
	PortZPS:                   "ZPS_APP",
	PortSimulator:             "SIMULATOR_APP",
	PortTraceroute:            "TRACEROUTE_APP",
	PortNeighborInfo:          "NEIGHBORINFO_APP",
	PortATAKPlugin:            "ATAK_PLUGIN",
	PortMapReport:             "MAP_REPORT_APP",
	PortPowerStress:           "POWERSTRESS_APP",
	PortPrivate:               "PRIVATE_APP",
	PortATAKForwarder:         "ATAK_FORWARDER",
}

// String returns the protobuf enum name, or the number for values this
// package does not know about.
func (p PortNum) String() string {
	if s, ok := portNames[p]; ok {
		return s
	}
	return strconv.Itoa(int(p))
}

// Role is the configured device role (Config.DeviceConfig.Role).
type Role int32

var roleNames = []string{
	"CLIENT",
	"CLIENT_MUTE",
	"ROUTER",
	"ROUTER_CLIENT",
	"REPEATER",
	"TRACKER",
	"SENSOR",
	"TAK",
	"CLIENT_HIDDEN",
	"LOST_AND_FOUND",
	"TAK_TRACKER",
	"ROUTER_LATE",
}

func (r Role) String() string {
	if r >= 0 && int(r) < len(roleNames) {
		return roleNames[r]
	}
	return strconv.Itoa(int(r))
}

// HardwareModel identifies the board a node runs on.
type HardwareModel int32

var hardwareNames = map[HardwareModel]string{
	0:   "UNSET",
	1:   "TLORA_V2",
	2:   "TLORA_V1",
	3:   "TLORA_V2_1_1P6",
	4:   "TBEAM",
	5:   "HELTEC_V2_0",
	6:   "TBEAM_V0P7",
	7:   "T_ECHO",
	8:   "TLORA_V1_1P3",
	9:   "RAK4631",
	10:  "HELTEC_V2_1",
	11:  "HELTEC_V1",
	12:  "LILYGO_TBEAM_S3_CORE",
	13:  "RAK11200",
	14:  "NANO_G1",
	15:  "TLORA_V2_1_1P8",
	16:  "TLORA_T3_S3",
	17:  "NANO_G1_EXPLORER",
	18:  "NANO_G2_ULTRA",
	19:  "LORA_TYPE",
	20:  "WIPHONE",
	21:  "WIO_WM1110",
	22:  "RAK2560",
	23:  "HELTEC_HRU_3601",
	25:  "STATION_G1",
	26:  "RAK11310",
	27:  "SENSELORA_RP2040",
	28:  "SENSELORA_S3",
	29:  "CANARYONE",
	30:  "RP2040_LORA",
	31:  "STATION_G2",
	32:  "LORA_RELAY_V1",
	33:  "NRF52840DK",
	34:  "PPR",
	35:  "GENIEBLOCKS",
	36:  "NRF52_UNKNOWN",
	37:  "PORTDUINO",
	38:  "ANDROID_SIM",
	39:  "DIY_V1",
	40:  "NRF52840_PCA10059",
	41:  "DR_DEV",
	42:  "M5STACK",
	43:  "HELTEC_V3",
	44:  "HELTEC_WSL_V3",
	45:  "BETAFPV_2400_TX",
	46:  "BETAFPV_900_NANO_TX",
	47:  "RPI_PICO",
	48:  "HELTEC_WIRELESS_TRACKER",
	49:  "HELTEC_WIRELESS_PAPER",
	50:  "T_DECK",
	51:  "T_WATCH_S3",
	52:  "PICOMPUTER_S3",
	53:  "HELTEC_HT62",
	54:  "EBYTE_ESP32_S3",
	55:  "ESP32_S3_PICO",
	56:  "CHATTER_2",
	57:  "HELTEC_WIRELESS_PAPER_V1_0",
	58:  "HELTEC_WIRELESS_TRACKER_V1_0",
	59:  "UNPHONE",
	60:  "TD_LORAC",
	61:  "CDEBYTE_EORA_S3",
	62:  "TWC_MESH_V4",
	63:  "NRF52_PROMICRO_DIY",
	64:  "RADIOMASTER_900_BANDIT_NANO",
	65:  "HELTEC_CAPSULE_SENSOR_V3",
	66:  "HELTEC_VISION_MASTER_T190",
	67:  "HELTEC_VISION_MASTER_E213",
	68:  "HELTEC_VISION_MASTER_E290",
	69:  "HELTEC_MESH_NODE_T114",
	255: "PRIVATE_HW",
}

func (h HardwareModel) String() string {
	if s, ok := hardwareNames[h]; ok {
		return s
	}
	return strconv.Itoa(int(h))
}
