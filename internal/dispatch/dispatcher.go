// Package dispatch turns envelopes received from the device into metric
// updates.
package dispatch

import (
	"log/slog"
	"time"

	"meshtastic-exporter/internal/meshproto"
	"meshtastic-exporter/internal/metrics"
	"meshtastic-exporter/internal/model"
)

// Sink receives metric updates. *metrics.Registry implements it.
type Sink interface {
	Set(name string, labels metrics.Labels, value float64) error
	Add(name string, labels metrics.Labels, delta float64) error
}

// Observer is told about every envelope and every failed payload decode.
// *metrics.BridgeMetrics implements it.
type Observer interface {
	FrameReceived(kind string)
	DecodeFailed(port string)
}

type nopObserver struct{}

func (nopObserver) FrameReceived(string) {}
func (nopObserver) DecodeFailed(string)  {}

type Dispatcher struct {
	sink     Sink
	identity *model.DeviceIdentity
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

type Option func(*Dispatcher)

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func New(sink Sink, identity *model.DeviceIdentity, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sink:     sink,
		identity: identity,
		logger:   logger,
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch applies one envelope. It never fails: payloads that cannot be
// decoded are logged and skipped.
func (d *Dispatcher) Dispatch(m *meshproto.FromRadio) {
	if m == nil {
		return
	}
	d.observer.FrameReceived(m.Kind.String())

	switch m.Kind {
	case meshproto.PayloadMyInfo:
		if m.MyInfo != nil {
			d.myInfo(m.MyInfo)
		}
	case meshproto.PayloadMetadata:
		if m.Metadata != nil {
			d.metadata(m.Metadata)
		}
	case meshproto.PayloadNodeInfo:
		if m.NodeInfo != nil {
			d.nodeInfo(m.NodeInfo)
		}
	case meshproto.PayloadPacket:
		if m.Packet != nil {
			d.packet(m.Packet)
		}
	case meshproto.PayloadConfigComplete:
		d.logger.Info("device configuration complete", "config_id", m.ConfigCompleteID)
	case meshproto.PayloadRebooted:
		d.logger.Debug("device reported reboot", "rebooted", m.Rebooted)
	default:
		d.logger.Debug("ignoring envelope", "kind", m.Kind.String(), "id", m.ID)
	}
}

func (d *Dispatcher) myInfo(info *meshproto.MyNodeInfo) {
	d.identity.SetNodeID(info.MyNodeNum)
	d.logger.Info("connected to node", "device_id", model.FormatDeviceID(info.MyNodeNum))
}

func (d *Dispatcher) metadata(md *meshproto.DeviceMetadata) {
	deviceID := d.identity.DeviceID()
	labels := metrics.Pairs(
		metrics.LabelDeviceID, deviceID,
		metrics.LabelFirmwareVersion, md.FirmwareVersion,
		metrics.LabelHardwareModel, md.HwModel.String(),
		metrics.LabelDeviceRole, md.Role.String(),
	)
	d.logger.Info("received device metadata", "device_id", deviceID, "firmware_version", md.FirmwareVersion)
	d.set(metrics.DeviceInfo, labels, float64(d.now().Unix()))
}

func (d *Dispatcher) nodeInfo(n *meshproto.NodeInfo) {
	deviceID := model.FormatDeviceID(n.Num)
	labels := metrics.Pairs(metrics.LabelDeviceID, deviceID)
	d.logger.Debug("received cached node info", "device_id", deviceID)

	d.set(metrics.SNR, labels, float64(n.SNR))
	d.set(metrics.HopsAway, labels, float64(n.HopsAway))
	d.add(metrics.ReceivedMessages, labels, 1)
	d.set(metrics.LastHeardSeconds, labels, float64(n.LastHeard))
	if n.DeviceMetrics != nil {
		d.deviceMetrics(labels, n.DeviceMetrics)
	}
}

func (d *Dispatcher) deviceMetrics(labels metrics.Labels, dm *meshproto.DeviceMetrics) {
	d.set(metrics.ChannelUtilization, labels, float64(dm.ChannelUtilization))
	d.set(metrics.AirUtilization, labels, float64(dm.AirUtilTx))
	d.set(metrics.Battery, labels, float64(dm.BatteryLevel))
	d.set(metrics.Voltage, labels, float64(dm.Voltage))
	d.set(metrics.UptimeSeconds, labels, float64(dm.UptimeSeconds))
}

// set and add only fail on programming errors (undeclared metric, kind
// mismatch); those are logged rather than propagated.
func (d *Dispatcher) set(name string, labels metrics.Labels, v float64) {
	if err := d.sink.Set(name, labels, v); err != nil {
		d.logger.Error("metric update failed", "metric", name, "error", err)
	}
}

func (d *Dispatcher) add(name string, labels metrics.Labels, v float64) {
	if err := d.sink.Add(name, labels, v); err != nil {
		d.logger.Error("metric update failed", "metric", name, "error", err)
	}
}
