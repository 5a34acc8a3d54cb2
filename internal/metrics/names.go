package metrics

const (
	DeviceInfo         = "meshtastic_device_info"
	HopsAway           = "meshtastic_hops_away"
	Temperature        = "meshtastic_temperature"
	RSSI               = "meshtastic_rssi"
	SNR                = "meshtastic_snr"
	Voltage            = "meshtastic_voltage"
	Current            = "meshtastic_current"
	Battery            = "meshtastic_battery"
	Humidity           = "meshtastic_humidity"
	BarometricPressure = "meshtastic_barometric_pressure"
	ReceivedMessages   = "meshtastic_received_message_count"
	LastHeardSeconds   = "meshtastic_last_heard_seconds"
	ChannelUtilization = "meshtastic_channel_utilization"
	AirUtilization     = "meshtastic_air_utilization"
	UptimeSeconds      = "meshtastic_device_uptime_seconds"
	SatellitesInView   = "meshtastic_satellites_in_view"
	IndoorAirQuality   = "meshtastic_indoor_air_quality"
	GasResistance      = "meshtastic_gas_resistance"

	PM10Standard       = "meshtastic_air_pm10_standard"
	PM25Standard       = "meshtastic_air_pm25_standard"
	PM100Standard      = "meshtastic_air_pm100_standard"
	PM10Environmental  = "meshtastic_air_pm10_environmental"
	PM25Environmental  = "meshtastic_air_pm25_environmental"
	PM100Environmental = "meshtastic_air_pm100_environmental"
	Particles03um      = "meshtastic_air_particles_03um"
	Particles05um      = "meshtastic_air_particles_05um"
	Particles10um      = "meshtastic_air_particles_10um"
	Particles25um      = "meshtastic_air_particles_25um"
	Particles50um      = "meshtastic_air_particles_50um"
	Particles100um     = "meshtastic_air_particles_100um"
)

// Label keys.
const (
	LabelDeviceID        = "device_id"
	LabelDeviceRole      = "device_role"
	LabelFirmwareVersion = "firmware_version"
	LabelHardwareModel   = "hardware_model"
	LabelGeohash         = "geohash"
	LabelIsLicensed      = "is_licensed"
	LabelShortName       = "short_name"
	LabelLongName        = "long_name"
	LabelSensorChannel   = "sensor_channel"
)

type declaration struct {
	name string
	kind Kind
	help string
}

var deviceMetrics = []declaration{
	{DeviceInfo, KindGauge, "Unix time the device identity or metadata was last announced."},
	{HopsAway, KindGauge, "The reported number of hops away the node is."},
	{Temperature, KindGauge, "Temperature reported by the environment telemetry module, in degrees Celsius."},
	{Humidity, KindGauge, "Relative humidity reported by the environment telemetry module, in percent."},
	{BarometricPressure, KindGauge, "Barometric pressure reported by the environment telemetry module, in hPa."},
	{Voltage, KindGauge, "The reported device or sensor channel voltage."},
	{Current, KindGauge, "The reported device or sensor channel current."},
	{Battery, KindGauge, "The reported battery level in percent."},
	{SNR, KindGauge, "Signal to noise ratio of the last packet heard from the node."},
	{RSSI, KindGauge, "Received signal strength of the last packet heard from the node."},
	{ReceivedMessages, KindCounter, "The number of messages received from the node."},
	{LastHeardSeconds, KindGauge, "Unix time the node was last heard."},
	{ChannelUtilization, KindGauge, "Utilization of the current channel, including well formed TX, RX and noise, in percent."},
	{AirUtilization, KindGauge, "Percent of airtime used for transmission in the last hour."},
	{UptimeSeconds, KindGauge, "The total seconds the device has been energized."},
	{SatellitesInView, KindGauge, "The number of satellites in view for this node."},
	{IndoorAirQuality, KindGauge, "Relative scale of VOC content measured from 0-500."},
	{GasResistance, KindGauge, "Gas resistance in MOhm."},
	{PM10Standard, KindGauge, "PM1.0 concentration, standard, in µg/m³."},
	{PM25Standard, KindGauge, "PM2.5 concentration, standard, in µg/m³."},
	{PM100Standard, KindGauge, "PM10.0 concentration, standard, in µg/m³."},
	{PM10Environmental, KindGauge, "PM1.0 concentration, environmental, in µg/m³."},
	{PM25Environmental, KindGauge, "PM2.5 concentration, environmental, in µg/m³."},
	{PM100Environmental, KindGauge, "PM10.0 concentration, environmental, in µg/m³."},
	{Particles03um, KindGauge, "Particles of 0.3 µm or larger per 0.1 L of air."},
	{Particles05um, KindGauge, "Particles of 0.5 µm or larger per 0.1 L of air."},
	{Particles10um, KindGauge, "Particles of 1.0 µm or larger per 0.1 L of air."},
	{Particles25um, KindGauge, "Particles of 2.5 µm or larger per 0.1 L of air."},
	{Particles50um, KindGauge, "Particles of 5.0 µm or larger per 0.1 L of air."},
	{Particles100um, KindGauge, "Particles of 10.0 µm or larger per 0.1 L of air."},
}

// DeclareDeviceMetrics registers every mesh metric with r. It must run once
// before the first frame is dispatched.
func DeclareDeviceMetrics(r *Registry) error {
	for _, d := range deviceMetrics {
		if err := r.Declare(d.name, d.kind, d.help); err != nil {
			return err
		}
	}
	return nil
}
