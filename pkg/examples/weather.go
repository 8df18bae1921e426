package examples

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/indigo-protocol/indigo-go/pkg/driver"
	"github.com/indigo-protocol/indigo-go/pkg/model"
)

// Property and item names of the weather station. The temperature item
// shares its name with the camera's.
const (
	PropertyWeather = "WEATHER"
	PropertyAlerts  = "ALERTS"

	ItemHumidity  = "HUMIDITY"
	ItemWindSpeed = "WIND_SPEED"
	ItemDewPoint  = "DEW_POINT"
	ItemRain      = "RAIN"
	ItemWind      = "WIND"
)

// Alert thresholds.
const (
	rainHumidity   = 90.0 // percent
	windAlertSpeed = 12.0 // m/s
)

// WeatherConfig configures a simulated weather station. A zero reading
// takes the default; use SetConditions afterwards for exact values.
type WeatherConfig struct {
	// Name is the device name, default "Weather Station".
	Name string

	// Initial readings: 15 C, 45 %, 3 m/s by default.
	Temperature float64
	Humidity    float64
	WindSpeed   float64
}

// WeatherStation is a simulated ambient sensor. It publishes read-only
// Number readings and raises Light alerts when they cross thresholds:
// RAIN on humidity, WIND on wind speed. Run drifts the readings over
// time; SetConditions pins them.
type WeatherStation struct {
	*driver.StandardDevice

	mu sync.Mutex

	weather *model.Property
	alerts  *model.Property

	temperature float64
	humidity    float64
	windSpeed   float64

	rng *rand.Rand
}

// NewWeatherStation creates a simulated weather station device.
func NewWeatherStation(cfg WeatherConfig) *WeatherStation {
	if cfg.Name == "" {
		cfg.Name = "Weather Station"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 15
	}
	if cfg.Humidity == 0 {
		cfg.Humidity = 45
	}
	if cfg.WindSpeed == 0 {
		cfg.WindSpeed = 3
	}

	w := &WeatherStation{
		StandardDevice: driver.NewStandardDevice(cfg.Name),
		temperature:    cfg.Temperature,
		humidity:       cfg.Humidity,
		windSpeed:      cfg.WindSpeed,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	w.setupProperties()
	return w
}

func (w *WeatherStation) setupProperties() {
	p, _ := w.AddTextProperty(PropertyInfo)
	p.SetLabel("Info")
	p.SetGroup("Main")
	p.SetPerm(model.PermReadOnly)
	p.SetState(model.StateOk)
	p.AddTextItem(ItemModel, "Model", "INDIGO Go Weather Station")

	p, _ = w.AddNumberProperty(PropertyWeather)
	p.SetLabel("Weather")
	p.SetGroup("Weather")
	p.SetPerm(model.PermReadOnly)
	p.SetState(model.StateOk)
	p.AddNumberItem(ItemTemperature, "Temperature (C)", w.temperature, "%5.1f", "-50", "60", "0")
	p.AddNumberItem(ItemHumidity, "Humidity (%)", w.humidity, "%5.1f", "0", "100", "0")
	p.AddNumberItem(ItemWindSpeed, "Wind speed (m/s)", w.windSpeed, "%5.1f", "0", "60", "0")
	p.AddNumberItem(ItemDewPoint, "Dew point (C)", dewPoint(w.temperature, w.humidity), "%5.1f", "-50", "60", "0")
	w.weather = p

	p, _ = w.AddLightProperty(PropertyAlerts)
	p.SetLabel("Alerts")
	p.SetGroup("Weather")
	p.SetState(model.StateOk)
	p.AddLightItem(ItemRain, "Rain", model.StateOk)
	p.AddLightItem(ItemWind, "Wind", model.StateOk)
	w.alerts = p
}

// Conditions returns the current readings.
func (w *WeatherStation) Conditions() (temperature, humidity, windSpeed float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.temperature, w.humidity, w.windSpeed
}

// SetConditions pins the readings and announces them.
func (w *WeatherStation) SetConditions(temperature, humidity, windSpeed float64) {
	w.mu.Lock()
	w.temperature = temperature
	w.humidity = clamp(humidity, 0, 100)
	w.windSpeed = clamp(windSpeed, 0, 60)
	w.mu.Unlock()
	w.publish()
}

// Run drifts the readings until the context ends, announcing every step.
func (w *WeatherStation) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drift()
			w.publish()
		}
	}
}

func (w *WeatherStation) drift() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.temperature = clamp(w.temperature+w.rng.Float64()-0.5, -40, 50)
	w.humidity = clamp(w.humidity+2*(w.rng.Float64()-0.5), 0, 100)
	w.windSpeed = clamp(w.windSpeed+2*(w.rng.Float64()-0.5), 0, 60)
}

func (w *WeatherStation) publish() {
	w.mu.Lock()
	t, h, wind := w.temperature, w.humidity, w.windSpeed
	w.mu.Unlock()

	if it, err := w.weather.Item(ItemTemperature); err == nil {
		it.SetValue(t)
	}
	if it, err := w.weather.Item(ItemHumidity); err == nil {
		it.SetValue(h)
	}
	if it, err := w.weather.Item(ItemWindSpeed); err == nil {
		it.SetValue(wind)
	}
	if it, err := w.weather.Item(ItemDewPoint); err == nil {
		it.SetValue(dewPoint(t, h))
	}
	w.weather.MarkOk()
	_ = w.SendUpdate(w.weather, "")

	w.updateAlerts(h, wind)
}

// updateAlerts flips the lights against the thresholds, announcing only
// on a change.
func (w *WeatherStation) updateAlerts(humidity, windSpeed float64) {
	rain := model.StateOk
	if humidity >= rainHumidity {
		rain = model.StateAlert
	}
	wind := model.StateOk
	if windSpeed >= windAlertSpeed {
		wind = model.StateAlert
	}

	changed := false
	if it, err := w.alerts.Item(ItemRain); err == nil && it.Text() != rain.String() {
		it.SetValue(rain)
		changed = true
	}
	if it, err := w.alerts.Item(ItemWind); err == nil && it.Text() != wind.String() {
		it.SetValue(wind)
		changed = true
	}
	if !changed {
		return
	}

	if rain == model.StateAlert || wind == model.StateAlert {
		w.alerts.MarkAlert()
	} else {
		w.alerts.MarkOk()
	}
	_ = w.SendUpdate(w.alerts, "")
}

// dewPoint is the Magnus shortcut, close enough for a simulation.
func dewPoint(temperature, humidity float64) float64 {
	return temperature - (100-humidity)/5
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
