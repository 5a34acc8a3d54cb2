package meshproto

// Telemetry is the payload of the telemetry port. At most one of the metric
// variants is set.
type Telemetry struct {
	Time        uint32
	Device      *DeviceMetrics
	Environment *EnvironmentMetrics
	AirQuality  *AirQualityMetrics
	Power       *PowerMetrics
}

func UnmarshalTelemetry(b []byte) (*Telemetry, error) {
	m := &Telemetry{}
	d := newDecoder(b)
	for d.next() {
		switch d.num {
		case 1:
			m.Time = d.fixed32()
		case 2:
			d.message(func(b []byte) (err error) {
				m.Device, err = UnmarshalDeviceMetrics(b)
				return err
			})
		case 3:
			d.message(func(b []byte) (err error) {
				m.Environment, err = UnmarshalEnvironmentMetrics(b)
				return err
			})
		case 4:
			d.message(func(b []byte) (err error) {
				m.AirQuality, err = UnmarshalAirQualityMetrics(b)
				return err
			})
		case 5:
			d.message(func(b []byte) (err error) {
				m.Power, err = UnmarshalPowerMetrics(b)
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

func (m *Telemetry) Marshal() []byte {
	var b []byte
	b = appendFixed32(b, 1, m.Time)
	switch {
	case m.Device != nil:
		b = appendMessage(b, 2, m.Device.Marshal())
	case m.Environment != nil:
		b = appendMessage(b, 3, m.Environment.Marshal())
	case m.AirQuality != nil:
		b = appendMessage(b, 4, m.AirQuality.Marshal())
	case m.Power != nil:
		b = appendMessage(b, 5, m.Power.Marshal())
	}
	return b
}

type DeviceMetrics struct {
	BatteryLevel       uint32
	Voltage            float32
	ChannelUtilization float32
	AirUtilTx          float32
	UptimeSeconds      uint32
}

func UnmarshalDeviceMetrics(b []byte) (*DeviceMetrics, error) {
	m := &DeviceMetrics{}
	d := newDecoder(b)
	for d.next() {
		switch d.num {
		case 1:
			m.BatteryLevel = d.uint32()
		case 2:
			m.Voltage = d.float32()
		case 3:
			m.ChannelUtilization = d.float32()
		case 4:
			m.AirUtilTx = d.float32()
		case 5:
			m.UptimeSeconds = d.uint32()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return m, nil
}

func (m *DeviceMetrics) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.BatteryLevel))
	b = appendFloat32(b, 2, m.Voltage)
	b = appendFloat32(b, 3, m.ChannelUtilization)
	b = appendFloat32(b, 4, m.AirUtilTx)
	b = appendVarint(b, 5, uint64(m.UptimeSeconds))
	return b
}

type EnvironmentMetrics struct {
	Temperature        float32
	RelativeHumidity   float32
	BarometricPressure float32
	GasResistance      float32
	Voltage            float32
	Current            float32
	IAQ                uint32
}

func UnmarshalEnvironmentMetrics(b []byte) (*EnvironmentMetrics, error) {
	m := &EnvironmentMetrics{}
	d := newDecoder(b)
	for d.next() {
		switch d.num {
		case 1:
			m.Temperature = d.float32()
		case 2:
			m.RelativeHumidity = d.float32()
		case 3:
			m.BarometricPressure = d.float32()
		case 4:
			m.GasResistance = d.float32()
		case 5:
			m.Voltage = d.float32()
		case 6:
			m.Current = d.float32()
		case 7:
			m.IAQ = d.uint32()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return m, nil
}

func (m *EnvironmentMetrics) Marshal() []byte {
	var b []byte
	b = appendFloat32(b, 1, m.Temperature)
	b = appendFloat32(b, 2, m.RelativeHumidity)
	b = appendFloat32(b, 3, m.BarometricPressure)
	b = appendFloat32(b, 4, m.GasResistance)
	b = appendFloat32(b, 5, m.Voltage)
	b = appendFloat32(b, 6, m.Current)
	b = appendVarint(b, 7, uint64(m.IAQ))
	return b
}

// AirQualityMetrics holds particulate readings. Concentrations are µg/m³,
// particle counts are per 0.1 L of air.
type AirQualityMetrics struct {
	PM10Standard       uint32
	PM25Standard       uint32
	PM100Standard      uint32
	PM10Environmental  uint32
	PM25Environmental  uint32
	PM100Environmental uint32
	Particles03um      uint32
	Particles05um      uint32
	Particles10um      uint32
	Particles25um      uint32
	Particles50um      uint32
	Particles100um     uint32
}

// fields returns pointers in field-number order, starting at 1.
func (m *AirQualityMetrics) fields() []*uint32 {
	return []*uint32{
		&m.PM10Standard, &m.PM25Standard, &m.PM100Standard,
		&m.PM10Environmental, &m.PM25Environmental, &m.PM100Environmental,
		&m.Particles03um, &m.Particles05um, &m.Particles10um,
		&m.Particles25um, &m.Particles50um, &m.Particles100um,
	}
}

func UnmarshalAirQualityMetrics(b []byte) (*AirQualityMetrics, error) {
	m := &AirQualityMetrics{}
	fields := m.fields()
	d := newDecoder(b)
	for d.next() {
		if d.num >= 1 && int(d.num) <= len(fields) {
			*fields[d.num-1] = d.uint32()
			continue
		}
		d.skip()
	}
	if d.err != nil {
		return nil, d.err
	}
	return m, nil
}

func (m *AirQualityMetrics) Marshal() []byte {
	var b []byte
	for i, f := range m.fields() {
		b = appendVarint(b, protowireNumber(i+1), uint64(*f))
	}
	return b
}

// PowerMetrics holds readings from up to three INA-style power channels.
type PowerMetrics struct {
	Ch1Voltage float32
	Ch1Current float32
	Ch2Voltage float32
	Ch2Current float32
	Ch3Voltage float32
	Ch3Current float32
}

// PowerChannel is one voltage/current pair of a PowerMetrics reading.
type PowerChannel struct {
	Number  int
	Voltage float32
	Current float32
}

// Channels returns the three channels in order.
func (m *PowerMetrics) Channels() []PowerChannel {
	return []PowerChannel{
		{Number: 1, Voltage: m.Ch1Voltage, Current: m.Ch1Current},
		{Number: 2, Voltage: m.Ch2Voltage, Current: m.Ch2Current},
		{Number: 3, Voltage: m.Ch3Voltage, Current: m.Ch3Current},
	}
}

func (m *PowerMetrics) fields() []*float32 {
	return []*float32{
		&m.Ch1Voltage, &m.Ch1Current,
		&m.Ch2Voltage, &m.Ch2Current,
		&m.Ch3Voltage, &m.Ch3Current,
	}
}

func UnmarshalPowerMetrics(b []byte) (*PowerMetrics, error) {
	m := &PowerMetrics{}
	fields := m.fields()
	d := newDecoder(b)
	for d.next() {
		if d.num >= 1 && int(d.num) <= len(fields) {
			*fields[d.num-1] = d.float32()
			continue
		}
		d.skip()
	}
	if d.err != nil {
		return nil, d.err
	}
	return m, nil
}

func (m *PowerMetrics) Marshal() []byte {
	var b []byte
	for i, f := range m.fields() {
		b = appendFloat32(b, protowireNumber(i+1), *f)
	}
	return b
}
