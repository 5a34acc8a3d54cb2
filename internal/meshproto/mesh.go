// Package meshproto decodes and encodes the subset of the Meshtastic device
// API that the exporter consumes: the FromRadio/ToRadio envelopes, routed
// mesh packets and the application payloads carried inside them, plus the
// stream framing used on TCP and serial links.
package meshproto

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// PayloadKind names the populated member of the FromRadio payload oneof.
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadPacket
	PayloadMyInfo
	PayloadNodeInfo
	PayloadConfig
	PayloadLogRecord
	PayloadConfigComplete
	PayloadRebooted
	PayloadModuleConfig
	PayloadChannel
	PayloadQueueStatus
	PayloadXModem
	PayloadMetadata
	PayloadMQTTProxy
	PayloadFileInfo
	PayloadClientNotification
)

var payloadKindNames = [...]string{
	PayloadNone:               "none",
	PayloadPacket:             "packet",
	PayloadMyInfo:             "my_info",
	PayloadNodeInfo:           "node_info",
	PayloadConfig:             "config",
	PayloadLogRecord:          "log_record",
	PayloadConfigComplete:     "config_complete_id",
	PayloadRebooted:           "rebooted",
	PayloadModuleConfig:       "module_config",
	PayloadChannel:            "channel",
	PayloadQueueStatus:        "queue_status",
	PayloadXModem:             "xmodem_packet",
	PayloadMetadata:           "metadata",
	PayloadMQTTProxy:          "mqtt_client_proxy_message",
	PayloadFileInfo:           "file_info",
	PayloadClientNotification: "client_notification",
}

func (k PayloadKind) String() string {
	if k >= 0 && int(k) < len(payloadKindNames) {
		return payloadKindNames[k]
	}
	return "unknown"
}

// FromRadio field numbers 2..16 map onto PayloadKind in order.
const (
	fromRadioFirstVariant protowire.Number = 2
	fromRadioLastVariant  protowire.Number = 16
)

// FromRadio is one envelope emitted by the device. Kind says which payload
// is set; the typed pointer for that kind is non-nil. Payloads the exporter
// does not model only carry their Kind.
type FromRadio struct {
	ID               uint32
	Kind             PayloadKind
	Packet           *MeshPacket
	MyInfo           *MyNodeInfo
	NodeInfo         *NodeInfo
	Metadata         *DeviceMetadata
	ConfigCompleteID uint32
	Rebooted         bool
}

// UnmarshalFromRadio decodes one FromRadio envelope.
func UnmarshalFromRadio(b []byte) (*FromRadio, error) {
	m := &FromRadio{}
	d := newDecoder(b)
	for d.next() {
		if d.num >= fromRadioFirstVariant && d.num <= fromRadioLastVariant {
			m.Kind = PayloadKind(d.num - fromRadioFirstVariant + 1)
		}
		switch d.num {
		case 1:
			m.ID = d.uint32()
		case 2:
			d.message(func(b []byte) (err error) {
				m.Packet, err = UnmarshalMeshPacket(b)
				return err
			})
		case 3:
			d.message(func(b []byte) (err error) {
				m.MyInfo, err = UnmarshalMyNodeInfo(b)
				return err
			})
		case 4:
			d.message(func(b []byte) (err error) {
				m.NodeInfo, err = UnmarshalNodeInfo(b)
				return err
			})
		case 7:
			m.ConfigCompleteID = d.uint32()
		case 8:
			m.Rebooted = d.bool()
		case 13:
			d.message(func(b []byte) (err error) {
				m.Metadata, err = UnmarshalDeviceMetadata(b)
				return err
			})
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return m, nil
}

// Marshal encodes the envelope. Only modelled payload kinds are written.
func (m *FromRadio) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.ID))
	switch m.Kind {
	case PayloadPacket:
		if m.Packet != nil {
			b = appendMessage(b, 2, m.Packet.Marshal())
		}
	case PayloadMyInfo:
		if m.MyInfo != nil {
			b = appendMessage(b, 3, m.MyInfo.Marshal())
		}
	case PayloadNodeInfo:
		if m.NodeInfo != nil {
			b = appendMessage(b, 4, m.NodeInfo.Marshal())
		}
	case PayloadConfigComplete:
		b = protowire.AppendTag(b, 7, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.ConfigCompleteID))
	case PayloadRebooted:
		b = protowire.AppendTag(b, 8, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(m.Rebooted))
	case PayloadMetadata:
		if m.Metadata != nil {
			b = appendMessage(b, 13, m.Metadata.Marshal())
		}
	}
	return b
}

// ToRadio is an envelope sent to the device.
type ToRadio struct {
	Packet       *MeshPacket
	WantConfigID uint32
	Disconnect   bool
	Heartbeat    *Heartbeat
}

// Heartbeat is the empty keepalive message.
type Heartbeat struct{}

// NewHeartbeat builds the periodic keepalive envelope.
func NewHeartbeat() *ToRadio {
	return &ToRadio{Heartbeat: &Heartbeat{}}
}

func (m *ToRadio) Marshal() []byte {
	var b []byte
	switch {
	case m.Packet != nil:
		b = appendMessage(b, 1, m.Packet.Marshal())
	case m.WantConfigID != 0:
		b = appendVarint(b, 3, uint64(m.WantConfigID))
	case m.Disconnect:
		b = appendBool(b, 4, true)
	case m.Heartbeat != nil:
		b = appendMessage(b, 7, nil)
	}
	return b
}

// UnmarshalToRadio decodes a ToRadio envelope.
func UnmarshalToRadio(b []byte) (*ToRadio, error) {
	m := &ToRadio{}
	d := newDecoder(b)
	for d.next() {
		switch d.num {
		case 1:
			d.message(func(b []byte) (err error) {
				m.Packet, err = UnmarshalMeshPacket(b)
				return err
			})
		case 3:
			m.WantConfigID = d.uint32()
		case 4:
			m.Disconnect = d.bool()
		case 7:
			d.bytes()
			m.Heartbeat = &Heartbeat{}
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return m, nil
}

// MeshPacket is a routed packet. Exactly one of Decoded and Encrypted is set
// when the sender populated the payload.
type MeshPacket struct {
	From      uint32
	To        uint32
	Channel   uint32
	Decoded   *Data
	Encrypted []byte
	ID        uint32
	RxTime    uint32
	RxSNR     float32
	HopLimit  uint32
	WantAck   bool
	RxRSSI    int32
	ViaMQTT   bool
	HopStart  uint32
}

func UnmarshalMeshPacket(b []byte) (*MeshPacket, error) {
	m := &MeshPacket{}
	d := newDecoder(b)
	for d.next() {
		switch d.num {
		case 1:
			m.From = d.fixed32()
		case 2:
			m.To = d.fixed32()
		case 3:
			m.Channel = d.uint32()
		case 4:
			d.message(func(b []byte) (err error) {
				m.Decoded, err = UnmarshalData(b)
				return err
			})
		case 5:
			m.Encrypted = d.bytes()
		case 6:
			m.ID = d.fixed32()
		case 7:
			m.RxTime = d.fixed32()
		case 8:
			m.RxSNR = d.float32()
		case 9:
			m.HopLimit = d.uint32()
		case 10:
			m.WantAck = d.bool()
		case 12:
			m.RxRSSI = d.int32()
		case 14:
			m.ViaMQTT = d.bool()
		case 15:
			m.HopStart = d.uint32()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return m, nil
}

func (m *MeshPacket) Marshal() []byte {
	var b []byte
	b = appendFixed32(b, 1, m.From)
	b = appendFixed32(b, 2, m.To)
	b = appendVarint(b, 3, uint64(m.Channel))
	if m.Decoded != nil {
		b = appendMessage(b, 4, m.Decoded.Marshal())
	} else {
		b = appendBytes(b, 5, m.Encrypted)
	}
	b = appendFixed32(b, 6, m.ID)
	b = appendFixed32(b, 7, m.RxTime)
	b = appendFloat32(b, 8, m.RxSNR)
	b = appendVarint(b, 9, uint64(m.HopLimit))
	b = appendBool(b, 10, m.WantAck)
	b = appendInt32(b, 12, m.RxRSSI)
	b = appendBool(b, 14, m.ViaMQTT)
	b = appendVarint(b, 15, uint64(m.HopStart))
	return b
}

// Data is the decoded payload of a routed packet.
type Data struct {
	PortNum      PortNum
	Payload      []byte
	WantResponse bool
	Dest         uint32
	Source       uint32
	RequestID    uint32
	ReplyID      uint32
	Emoji        uint32
}

func UnmarshalData(b []byte) (*Data, error) {
	m := &Data{}
	d := newDecoder(b)
	for d.next() {
		switch d.num {
		case 1:
			m.PortNum = PortNum(d.int32())
		case 2:
			m.Payload = d.bytes()
		case 3:
			m.WantResponse = d.bool()
		case 4:
			m.Dest = d.fixed32()
		case 5:
			m.Source = d.fixed32()
		case 6:
			m.RequestID = d.fixed32()
		case 7:
			m.ReplyID = d.fixed32()
		case 8:
			m.Emoji = d.fixed32()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return m, nil
}

func (m *Data) Marshal() []byte {
	var b []byte
	b = appendInt32(b, 1, int32(m.PortNum))
	b = appendBytes(b, 2, m.Payload)
	b = appendBool(b, 3, m.WantResponse)
	b = appendFixed32(b, 4, m.Dest)
	b = appendFixed32(b, 5, m.Source)
	b = appendFixed32(b, 6, m.RequestID)
	b = appendFixed32(b, 7, m.ReplyID)
	b = appendFixed32(b, 8, m.Emoji)
	return b
}

// MyNodeInfo announces the local node number.
type MyNodeInfo struct {
	MyNodeNum     uint32
	RebootCount   uint32
	MinAppVersion uint32
}

func UnmarshalMyNodeInfo(b []byte) (*MyNodeInfo, error) {
	m := &MyNodeInfo{}
	d := newDecoder(b)
	for d.next() {
		switch d.num {
		case 1:
			m.MyNodeNum = d.uint32()
		case 8:
			m.RebootCount = d.uint32()
		case 11:
			m.MinAppVersion = d.uint32()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return m, nil
}

func (m *MyNodeInfo) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.MyNodeNum))
	b = appendVarint(b, 8, uint64(m.RebootCount))
	b = appendVarint(b, 11, uint64(m.MinAppVersion))
	return b
}

// NodeInfo is a cached node database record.
type NodeInfo struct {
	Num           uint32
	User          *User
	Position      *Position
	SNR           float32
	LastHeard     uint32
	DeviceMetrics *DeviceMetrics
	Channel       uint32
	ViaMQTT       bool
	HopsAway      uint32
	IsFavorite    bool
}

func UnmarshalNodeInfo(b []byte) (*NodeInfo, error) {
	m := &NodeInfo{}
	d := newDecoder(b)
	for d.next() {
		switch d.num {
		case 1:
			m.Num = d.uint32()
		case 2:
			d.message(func(b []byte) (err error) {
				m.User, err = UnmarshalUser(b)
				return err
			})
		case 3:
			d.message(func(b []byte) (err error) {
				m.Position, err = UnmarshalPosition(b)
				return err
			})
		case 4:
			m.SNR = d.float32()
		case 5:
			m.LastHeard = d.fixed32()
		case 6:
			d.message(func(b []byte) (err error) {
				m.DeviceMetrics, err = UnmarshalDeviceMetrics(b)
				return err
			})
		case 7:
			m.Channel = d.uint32()
		case 8:
			m.ViaMQTT = d.bool()
		case 9:
			m.HopsAway = d.uint32()
		case 10:
			m.IsFavorite = d.bool()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return m, nil
}

func (m *NodeInfo) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.Num))
	if m.User != nil {
		b = appendMessage(b, 2, m.User.Marshal())
	}
	if m.Position != nil {
		b = appendMessage(b, 3, m.Position.Marshal())
	}
	b = appendFloat32(b, 4, m.SNR)
	b = appendFixed32(b, 5, m.LastHeard)
	if m.DeviceMetrics != nil {
		b = appendMessage(b, 6, m.DeviceMetrics.Marshal())
	}
	b = appendVarint(b, 7, uint64(m.Channel))
	b = appendBool(b, 8, m.ViaMQTT)
	b = appendVarint(b, 9, uint64(m.HopsAway))
	b = appendBool(b, 10, m.IsFavorite)
	return b
}

// User is the identity a node broadcasts on the node-info port.
type User struct {
	ID         string
	LongName   string
	ShortName  string
	MacAddr    []byte
	HwModel    HardwareModel
	IsLicensed bool
	Role       Role
	PublicKey  []byte
}

func UnmarshalUser(b []byte) (*User, error) {
	m := &User{}
	d := newDecoder(b)
	for d.next() {
		switch d.num {
		case 1:
			m.ID = d.string()
		case 2:
			m.LongName = d.string()
		case 3:
			m.ShortName = d.string()
		case 4:
			m.MacAddr = d.bytes()
		case 5:
			m.HwModel = HardwareModel(d.int32())
		case 6:
			m.IsLicensed = d.bool()
		case 7:
			m.Role = Role(d.int32())
		case 8:
			m.PublicKey = d.bytes()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return m, nil
}

func (m *User) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.LongName)
	b = appendString(b, 3, m.ShortName)
	b = appendBytes(b, 4, m.MacAddr)
	b = appendInt32(b, 5, int32(m.HwModel))
	b = appendBool(b, 6, m.IsLicensed)
	b = appendInt32(b, 7, int32(m.Role))
	b = appendBytes(b, 8, m.PublicKey)
	return b
}

// DeviceMetadata describes the locally attached device.
type DeviceMetadata struct {
	FirmwareVersion    string
	DeviceStateVersion uint32
	CanShutdown        bool
	HasWifi            bool
	HasBluetooth       bool
	HasEthernet        bool
	Role               Role
	PositionFlags      uint32
	HwModel            HardwareModel
	HasRemoteHardware  bool
}

func UnmarshalDeviceMetadata(b []byte) (*DeviceMetadata, error) {
	m := &DeviceMetadata{}
	d := newDecoder(b)
	for d.next() {
		switch d.num {
		case 1:
			m.FirmwareVersion = d.string()
		case 2:
			m.DeviceStateVersion = d.uint32()
		case 3:
			m.CanShutdown = d.bool()
		case 4:
			m.HasWifi = d.bool()
		case 5:
			m.HasBluetooth = d.bool()
		case 6:
			m.HasEthernet = d.bool()
		case 7:
			m.Role = Role(d.int32())
		case 8:
			m.PositionFlags = d.uint32()
		case 9:
			m.HwModel = HardwareModel(d.int32())
		case 10:
			m.HasRemoteHardware = d.bool()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return m, nil
}

func (m *DeviceMetadata) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.FirmwareVersion)
	b = appendVarint(b, 2, uint64(m.DeviceStateVersion))
	b = appendBool(b, 3, m.CanShutdown)
	b = appendBool(b, 4, m.HasWifi)
	b = appendBool(b, 5, m.HasBluetooth)
	b = appendBool(b, 6, m.HasEthernet)
	b = appendInt32(b, 7, int32(m.Role))
	b = appendVarint(b, 8, uint64(m.PositionFlags))
	b = appendInt32(b, 9, int32(m.HwModel))
	b = appendBool(b, 10, m.HasRemoteHardware)
	return b
}

// Position is the payload of the position port. Coordinates are degrees
// scaled by 1e7.
type Position struct {
	LatitudeI  int32
	LongitudeI int32
	Altitude   int32
	Time       uint32
	Timestamp  uint32
	SatsInView uint32
}

func UnmarshalPosition(b []byte) (*Position, error) {
	m := &Position{}
	d := newDecoder(b)
	for d.next() {
		switch d.num {
		case 1:
			m.LatitudeI = d.sfixed32()
		case 2:
			m.LongitudeI = d.sfixed32()
		case 3:
			m.Altitude = d.int32()
		case 4:
			m.Time = d.fixed32()
		case 7:
			m.Timestamp = d.fixed32()
		case 19:
			m.SatsInView = d.uint32()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return m, nil
}

func (m *Position) Marshal() []byte {
	var b []byte
	b = appendFixed32(b, 1, uint32(m.LatitudeI))
	b = appendFixed32(b, 2, uint32(m.LongitudeI))
	b = appendInt32(b, 3, m.Altitude)
	b = appendFixed32(b, 4, m.Time)
	b = appendFixed32(b, 7, m.Timestamp)
	b = appendVarint(b, 19, uint64(m.SatsInView))
	return b
}
