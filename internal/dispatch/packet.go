package dispatch

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/mmcloughlin/geohash"

	"meshtastic-exporter/internal/meshproto"
	"meshtastic-exporter/internal/metrics"
	"meshtastic-exporter/internal/model"
)

const (
	// Position coordinates are degrees scaled by 1e7.
	gpsPrecisionFactor = 1e-7
	geohashPrecision   = 10
)

var (
	ErrEmptyTelemetry  = errors.New("telemetry carries no metrics variant")
	ErrInvalidPosition = errors.New("position outside valid coordinate range")
)

// SenderID picks the device a routed packet reports on: the inner source
// when the packet was relayed on someone's behalf, else the outer sender.
func SenderID(p *meshproto.MeshPacket) uint32 {
	if p.Decoded != nil && p.Decoded.Source != 0 {
		return p.Decoded.Source
	}
	return p.From
}

// Geohash encodes fixed-point coordinates at the precision used for the
// geohash label.
func Geohash(latitudeI, longitudeI int32) (string, error) {
	lat := float64(latitudeI) * gpsPrecisionFactor
	lon := float64(longitudeI) * gpsPrecisionFactor
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", fmt.Errorf("%w: lat=%f lon=%f", ErrInvalidPosition, lat, lon)
	}
	return geohash.EncodeWithPrecision(lat, lon, geohashPrecision), nil
}

// packet handles a routed application packet. Only decoded payloads are
// consumed; encrypted ones are dropped without a trace.
func (d *Dispatcher) packet(p *meshproto.MeshPacket) {
	data := p.Decoded
	if data == nil {
		return
	}
	deviceID := model.FormatDeviceID(SenderID(p))

	var err error
	switch data.PortNum {
	case meshproto.PortPosition:
		err = d.position(deviceID, data.Payload)
	case meshproto.PortNodeInfo:
		err = d.user(data.Payload)
	case meshproto.PortTelemetry:
		err = d.telemetry(deviceID, data.Payload)
	case meshproto.PortNeighborInfo:
		d.logger.Debug("skipping neighbor info", "device_id", deviceID)
	default:
		d.logger.Info("received a payload type we don't consume", "port", data.PortNum.String(), "device_id", deviceID)
	}
	if err != nil {
		d.logger.Warn("failed to decode packet payload", "port", data.PortNum.String(), "device_id", deviceID, "error", err)
		d.observer.DecodeFailed(data.PortNum.String())
		return
	}

	labels := metrics.Pairs(metrics.LabelDeviceID, deviceID)
	if p.RxRSSI != 0 {
		d.set(metrics.RSSI, labels, float64(p.RxRSSI))
	}
	if p.RxSNR != 0 {
		d.set(metrics.SNR, labels, float64(p.RxSNR))
	}
	d.add(metrics.ReceivedMessages, labels, 1)
}

func (d *Dispatcher) position(deviceID string, payload []byte) error {
	pos, err := meshproto.UnmarshalPosition(payload)
	if err != nil {
		return err
	}
	hash, err := Geohash(pos.LatitudeI, pos.LongitudeI)
	if err != nil {
		return err
	}
	d.logger.Debug("updating position", "device_id", deviceID, "geohash", hash)
	d.set(metrics.SatellitesInView, metrics.Pairs(
		metrics.LabelDeviceID, deviceID,
		metrics.LabelGeohash, hash,
	), float64(pos.SatsInView))
	return nil
}

// user handles node-info broadcasts. The node names itself in user.id, so
// the packet sender is not used here.
func (d *Dispatcher) user(payload []byte) error {
	u, err := meshproto.UnmarshalUser(payload)
	if err != nil {
		return err
	}
	d.logger.Info("received node info", "device_id", u.ID, "short_name", u.ShortName)
	d.set(metrics.DeviceInfo, metrics.Pairs(
		metrics.LabelDeviceID, u.ID,
		metrics.LabelHardwareModel, u.HwModel.String(),
		metrics.LabelDeviceRole, u.Role.String(),
		metrics.LabelIsLicensed, strconv.FormatBool(u.IsLicensed),
		metrics.LabelShortName, u.ShortName,
		metrics.LabelLongName, u.LongName,
	), float64(d.now().Unix()))
	return nil
}

func (d *Dispatcher) telemetry(deviceID string, payload []byte) error {
	t, err := meshproto.UnmarshalTelemetry(payload)
	if err != nil {
		return err
	}
	labels := metrics.Pairs(metrics.LabelDeviceID, deviceID)

	switch {
	case t.Device != nil:
		d.logger.Debug("processing device telemetry", "device_id", deviceID)
		d.deviceMetrics(labels, t.Device)
	case t.Environment != nil:
		d.logger.Debug("processing environment telemetry", "device_id", deviceID)
		em := t.Environment
		d.set(metrics.Temperature, labels, float64(em.Temperature))
		d.set(metrics.Humidity, labels, float64(em.RelativeHumidity))
		d.set(metrics.BarometricPressure, labels, float64(em.BarometricPressure))
		d.set(metrics.IndoorAirQuality, labels, float64(em.IAQ))
		d.set(metrics.GasResistance, labels, float64(em.GasResistance))
	case t.AirQuality != nil:
		d.logger.Debug("processing air quality telemetry", "device_id", deviceID)
		d.airQuality(labels, t.AirQuality)
	case t.Power != nil:
		d.logger.Debug("processing power telemetry", "device_id", deviceID)
		for _, ch := range t.Power.Channels() {
			if ch.Voltage <= 0 {
				continue
			}
			chLabels := labels.With(metrics.LabelSensorChannel, "ch"+strconv.Itoa(ch.Number))
			d.set(metrics.Voltage, chLabels, float64(ch.Voltage))
			d.set(metrics.Current, chLabels, float64(ch.Current))
		}
	default:
		return ErrEmptyTelemetry
	}
	return nil
}

func (d *Dispatcher) airQuality(labels metrics.Labels, aq *meshproto.AirQualityMetrics) {
	for _, g := range []struct {
		name  string
		value uint32
	}{
		{metrics.Particles03um, aq.Particles03um},
		{metrics.Particles05um, aq.Particles05um},
		{metrics.Particles10um, aq.Particles10um},
		{metrics.Particles25um, aq.Particles25um},
		{metrics.Particles50um, aq.Particles50um},
		{metrics.Particles100um, aq.Particles100um},
		{metrics.PM10Standard, aq.PM10Standard},
		{metrics.PM25Standard, aq.PM25Standard},
		{metrics.PM100Standard, aq.PM100Standard},
		{metrics.PM10Environmental, aq.PM10Environmental},
		{metrics.PM25Environmental, aq.PM25Environmental},
		{metrics.PM100Environmental, aq.PM100Environmental},
	} {
		d.set(g.name, labels, float64(g.value))
	}
}
