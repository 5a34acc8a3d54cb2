package dispatch

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshtastic-exporter/internal/meshproto"
	"meshtastic-exporter/internal/metrics"
	"meshtastic-exporter/internal/model"
)

var fixedNow = time.Unix(1718000000, 0)

type harness struct {
	reg      *metrics.Registry
	bridge   *metrics.BridgeMetrics
	identity *model.DeviceIdentity
	d        *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg := metrics.NewRegistry(0, metrics.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, metrics.DeclareDeviceMetrics(reg))
	bridge := metrics.NewBridgeMetrics(prometheus.NewRegistry(), "meshtastic")
	identity := model.NewDeviceIdentity()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &harness{
		reg:      reg,
		bridge:   bridge,
		identity: identity,
		d: New(reg, identity, logger,
			WithObserver(bridge),
			WithClock(func() time.Time { return fixedNow }),
		),
	}
}

func (h *harness) value(t *testing.T, name string, labels metrics.Labels) float64 {
	t.Helper()
	v, ok := h.reg.Value(name, labels)
	require.True(t, ok, "series %s %v not found", name, labels)
	return v
}

func dev(id string) metrics.Labels {
	return metrics.Pairs(metrics.LabelDeviceID, id)
}

func routed(from, source uint32, port meshproto.PortNum, payload []byte) *meshproto.FromRadio {
	return &meshproto.FromRadio{
		Kind: meshproto.PayloadPacket,
		Packet: &meshproto.MeshPacket{
			From: from,
			To:   0xffffffff,
			Decoded: &meshproto.Data{
				PortNum: port,
				Payload: payload,
				Source:  source,
			},
		},
	}
}

func telemetryPacket(from, source uint32, tel *meshproto.Telemetry) *meshproto.FromRadio {
	return routed(from, source, meshproto.PortTelemetry, tel.Marshal())
}

func TestMyInfoThenMetadata(t *testing.T) {
	h := newHarness(t)

	h.d.Dispatch(&meshproto.FromRadio{Kind: meshproto.PayloadMyInfo, MyInfo: &meshproto.MyNodeInfo{MyNodeNum: 0x1234}})
	h.d.Dispatch(&meshproto.FromRadio{Kind: meshproto.PayloadMetadata, Metadata: &meshproto.DeviceMetadata{
		FirmwareVersion: "1.2.3",
		HwModel:         meshproto.HardwareModel(43),
		Role:            meshproto.Role(0),
	}})

	assert.Equal(t, uint32(0x1234), h.identity.NodeID())
	got := h.value(t, metrics.DeviceInfo, metrics.Pairs(
		metrics.LabelDeviceID, "!1234",
		metrics.LabelFirmwareVersion, "1.2.3",
		metrics.LabelHardwareModel, "HELTEC_V3",
		metrics.LabelDeviceRole, "CLIENT",
	))
	assert.Equal(t, float64(fixedNow.Unix()), got)
}

func TestTelemetryDeviceMetricsUsesFromWhenSourceUnset(t *testing.T) {
	h := newHarness(t)

	h.d.Dispatch(telemetryPacket(0xABCD, 0, &meshproto.Telemetry{
		Device: &meshproto.DeviceMetrics{BatteryLevel: 87, Voltage: 4.0, ChannelUtilization: 12.5, AirUtilTx: 1.5, UptimeSeconds: 3600},
	}))

	assert.Equal(t, 87.0, h.value(t, metrics.Battery, dev("!abcd")))
	assert.Equal(t, 4.0, h.value(t, metrics.Voltage, dev("!abcd")))
	assert.Equal(t, 12.5, h.value(t, metrics.ChannelUtilization, dev("!abcd")))
	assert.Equal(t, 1.5, h.value(t, metrics.AirUtilization, dev("!abcd")))
	assert.Equal(t, 3600.0, h.value(t, metrics.UptimeSeconds, dev("!abcd")))
	assert.Equal(t, 1.0, h.value(t, metrics.ReceivedMessages, dev("!abcd")))
}

func TestSourceOverridesFrom(t *testing.T) {
	h := newHarness(t)

	h.d.Dispatch(telemetryPacket(0xABCD, 0x99, &meshproto.Telemetry{
		Device: &meshproto.DeviceMetrics{BatteryLevel: 50},
	}))

	assert.Equal(t, 50.0, h.value(t, metrics.Battery, dev("!99")))
	assert.Equal(t, 1.0, h.value(t, metrics.ReceivedMessages, dev("!99")))
	_, ok := h.reg.Value(metrics.Battery, dev("!abcd"))
	assert.False(t, ok)
}

func TestSenderID(t *testing.T) {
	p := &meshproto.MeshPacket{From: 7, Decoded: &meshproto.Data{}}
	assert.Equal(t, uint32(7), SenderID(p))
	p.Decoded.Source = 9
	assert.Equal(t, uint32(9), SenderID(p))
}

func TestUndecodablePayloadSkipped(t *testing.T) {
	h := newHarness(t)

	h.d.Dispatch(routed(0xABCD, 0, meshproto.PortTelemetry, []byte{0x12, 0x05, 0x08}))

	assert.Equal(t, 0, h.reg.SeriesCount(metrics.ReceivedMessages))
	assert.Equal(t, 0, h.reg.SeriesCount(metrics.Battery))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.bridge.DecodeFailures.WithLabelValues("TELEMETRY_APP")))

	// the next packet is still processed
	h.d.Dispatch(telemetryPacket(0xABCD, 0, &meshproto.Telemetry{Device: &meshproto.DeviceMetrics{BatteryLevel: 10}}))
	assert.Equal(t, 10.0, h.value(t, metrics.Battery, dev("!abcd")))
}

func TestEmptyTelemetryIsDecodeFailure(t *testing.T) {
	h := newHarness(t)

	h.d.Dispatch(telemetryPacket(0x1, 0, &meshproto.Telemetry{Time: 5}))

	assert.Equal(t, 0, h.reg.SeriesCount(metrics.ReceivedMessages))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.bridge.DecodeFailures.WithLabelValues("TELEMETRY_APP")))
}

func TestEnvironmentTelemetry(t *testing.T) {
	h := newHarness(t)

	h.d.Dispatch(telemetryPacket(0x42, 0, &meshproto.Telemetry{Environment: &meshproto.EnvironmentMetrics{
		Temperature: 21.5, RelativeHumidity: 40, BarometricPressure: 1013.25, GasResistance: 2.5, IAQ: 75,
	}}))

	assert.Equal(t, 21.5, h.value(t, metrics.Temperature, dev("!42")))
	assert.Equal(t, 40.0, h.value(t, metrics.Humidity, dev("!42")))
	assert.Equal(t, 1013.25, h.value(t, metrics.BarometricPressure, dev("!42")))
	assert.Equal(t, 2.5, h.value(t, metrics.GasResistance, dev("!42")))
	assert.Equal(t, 75.0, h.value(t, metrics.IndoorAirQuality, dev("!42")))
}

func TestAirQualityTelemetry(t *testing.T) {
	h := newHarness(t)

	h.d.Dispatch(telemetryPacket(0x42, 0, &meshproto.Telemetry{AirQuality: &meshproto.AirQualityMetrics{
		PM25Standard: 12, PM100Environmental: 30, Particles03um: 900, Particles100um: 1,
	}}))

	assert.Equal(t, 12.0, h.value(t, metrics.PM25Standard, dev("!42")))
	assert.Equal(t, 30.0, h.value(t, metrics.PM100Environmental, dev("!42")))
	assert.Equal(t, 900.0, h.value(t, metrics.Particles03um, dev("!42")))
	assert.Equal(t, 1.0, h.value(t, metrics.Particles100um, dev("!42")))
	assert.Equal(t, 0.0, h.value(t, metrics.PM10Standard, dev("!42")))
}

func TestPowerChannelsOnlyWithVoltage(t *testing.T) {
	h := newHarness(t)

	h.d.Dispatch(telemetryPacket(0x42, 0, &meshproto.Telemetry{Power: &meshproto.PowerMetrics{
		Ch1Voltage: 12.5, Ch1Current: 0.25,
		Ch2Voltage: 0, Ch2Current: 3,
		Ch3Voltage: 5, Ch3Current: 0.5,
	}}))

	ch := func(n string) metrics.Labels {
		return dev("!42").With(metrics.LabelSensorChannel, n)
	}
	assert.Equal(t, 12.5, h.value(t, metrics.Voltage, ch("ch1")))
	assert.Equal(t, 0.25, h.value(t, metrics.Current, ch("ch1")))
	assert.Equal(t, 5.0, h.value(t, metrics.Voltage, ch("ch3")))
	assert.Equal(t, 0.5, h.value(t, metrics.Current, ch("ch3")))

	_, ok := h.reg.Value(metrics.Voltage, ch("ch2"))
	assert.False(t, ok)
	_, ok = h.reg.Value(metrics.Current, ch("ch2"))
	assert.False(t, ok)
	assert.Equal(t, 2, h.reg.SeriesCount(metrics.Voltage))
}

func TestPositionGeohash(t *testing.T) {
	h := newHarness(t)
	pos := &meshproto.Position{LatitudeI: 515007000, LongitudeI: -1246000, SatsInView: 8}

	h.d.Dispatch(routed(0x42, 0, meshproto.PortPosition, pos.Marshal()))

	hash, err := Geohash(pos.LatitudeI, pos.LongitudeI)
	require.NoError(t, err)
	assert.Len(t, hash, 10)
	assert.Equal(t, "gcpuv", hash[:5])

	labels := dev("!42").With(metrics.LabelGeohash, hash)
	assert.Equal(t, 8.0, h.value(t, metrics.SatellitesInView, labels))
	assert.Equal(t, 1.0, h.value(t, metrics.ReceivedMessages, dev("!42")))
}

func TestGeohashDeterministic(t *testing.T) {
	a, err := Geohash(-338688000, 1512093000)
	require.NoError(t, err)
	b, err := Geohash(-338688000, 1512093000)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Geohash(-338688001, 1512093000)
	require.NoError(t, err)
	assert.Len(t, c, 10)
}

func TestGeohashRejectsOutOfRange(t *testing.T) {
	_, err := Geohash(950000000, 0)
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestNodeInfoPortSetsDeviceInfo(t *testing.T) {
	h := newHarness(t)
	u := &meshproto.User{
		ID:         "!deadbeef",
		LongName:   "Hilltop Relay",
		ShortName:  "HILL",
		HwModel:    meshproto.HardwareModel(9),
		Role:       meshproto.Role(2),
		IsLicensed: false,
	}

	h.d.Dispatch(routed(0xdeadbeef, 0, meshproto.PortNodeInfo, u.Marshal()))

	got := h.value(t, metrics.DeviceInfo, metrics.Pairs(
		metrics.LabelDeviceID, "!deadbeef",
		metrics.LabelHardwareModel, "RAK4631",
		metrics.LabelDeviceRole, "ROUTER",
		metrics.LabelIsLicensed, "false",
		metrics.LabelShortName, "HILL",
		metrics.LabelLongName, "Hilltop Relay",
	))
	assert.Equal(t, float64(fixedNow.Unix()), got)
	assert.Equal(t, 1.0, h.value(t, metrics.ReceivedMessages, dev("!deadbeef")))
}

func TestCounterIncrementsForEveryPort(t *testing.T) {
	h := newHarness(t)

	h.d.Dispatch(routed(0x5, 0, meshproto.PortTextMessage, []byte("hello")))
	h.d.Dispatch(routed(0x5, 0, meshproto.PortNeighborInfo, []byte{0x08, 0x01}))
	h.d.Dispatch(routed(0x5, 0, meshproto.PortNum(300), nil))

	assert.Equal(t, 3.0, h.value(t, metrics.ReceivedMessages, dev("!5")))
}

func TestEncryptedPacketIgnored(t *testing.T) {
	h := newHarness(t)

	h.d.Dispatch(&meshproto.FromRadio{Kind: meshproto.PayloadPacket, Packet: &meshproto.MeshPacket{
		From: 0x5, Encrypted: []byte{0x01, 0x02},
	}})

	assert.Equal(t, 0, h.reg.SeriesCount(metrics.ReceivedMessages))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.bridge.FramesReceived.WithLabelValues("packet")))
}

func TestSignalStrengthFromRoutedPacket(t *testing.T) {
	h := newHarness(t)
	m := routed(0x5, 0, meshproto.PortTextMessage, []byte("hi"))
	m.Packet.RxRSSI = -104
	m.Packet.RxSNR = -7.25

	h.d.Dispatch(m)

	assert.Equal(t, -104.0, h.value(t, metrics.RSSI, dev("!5")))
	assert.Equal(t, -7.25, h.value(t, metrics.SNR, dev("!5")))
}

func TestCachedNodeInfo(t *testing.T) {
	h := newHarness(t)

	h.d.Dispatch(&meshproto.FromRadio{Kind: meshproto.PayloadNodeInfo, NodeInfo: &meshproto.NodeInfo{
		Num:       0xfeed,
		SNR:       9.5,
		HopsAway:  2,
		LastHeard: 1717999000,
	}})

	assert.Equal(t, 9.5, h.value(t, metrics.SNR, dev("!feed")))
	assert.Equal(t, 2.0, h.value(t, metrics.HopsAway, dev("!feed")))
	assert.Equal(t, 1717999000.0, h.value(t, metrics.LastHeardSeconds, dev("!feed")))
	assert.Equal(t, 1.0, h.value(t, metrics.ReceivedMessages, dev("!feed")))
	_, ok := h.reg.Value(metrics.Battery, dev("!feed"))
	assert.False(t, ok)

	h.d.Dispatch(&meshproto.FromRadio{Kind: meshproto.PayloadNodeInfo, NodeInfo: &meshproto.NodeInfo{
		Num:           0xfeed,
		DeviceMetrics: &meshproto.DeviceMetrics{BatteryLevel: 101, Voltage: 4.2},
	}})
	assert.Equal(t, 101.0, h.value(t, metrics.Battery, dev("!feed")))
	assert.Equal(t, 2.0, h.value(t, metrics.ReceivedMessages, dev("!feed")))
}

func TestOtherKindsOnlyCounted(t *testing.T) {
	h := newHarness(t)

	h.d.Dispatch(&meshproto.FromRadio{Kind: meshproto.PayloadConfigComplete, ConfigCompleteID: 77})
	h.d.Dispatch(&meshproto.FromRadio{Kind: meshproto.PayloadChannel})
	h.d.Dispatch(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.bridge.FramesReceived.WithLabelValues("config_complete_id")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.bridge.FramesReceived.WithLabelValues("channel")))
	assert.Equal(t, uint32(0), h.identity.NodeID())
}
