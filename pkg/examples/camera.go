package examples

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/indigo-protocol/indigo-go/pkg/driver"
	"github.com/indigo-protocol/indigo-go/pkg/model"
)

// Property and item names of the simulated camera. INFO and MODEL are
// shared by every example device.
const (
	PropertyInfo        = "INFO"
	PropertyExposure    = "CCD_EXPOSURE"
	PropertyAbort       = "CCD_ABORT_EXPOSURE"
	PropertyImage       = "CCD_IMAGE"
	PropertyCooler      = "CCD_COOLER"
	PropertyTemperature = "CCD_TEMPERATURE"

	ItemModel       = "MODEL"
	ItemExposure    = "EXPOSURE"
	ItemAbort       = "ABORT_EXPOSURE"
	ItemImage       = "IMAGE"
	ItemCoolerOn    = "ON"
	ItemCoolerOff   = "OFF"
	ItemTemperature = "TEMPERATURE"
)

// ambientTemperature is where the sensor settles with the cooler off.
const ambientTemperature = 25.0

// coolerRate caps the temperature change per simulation tick.
const coolerRate = 1.0

// CameraConfig configures a simulated camera. Zero fields take defaults.
type CameraConfig struct {
	// Name is the device name, default "CCD Simulator".
	Name string

	// Width and Height size the synthetic frame, default 320x240.
	Width, Height int

	// Tick is the simulation time step, default one second. Exposure
	// countdown and cooler updates go out once per tick.
	Tick time.Duration
}

// Camera is a simulated CCD. It exercises the whole device side:
//   - a Number property driving a long-running operation (CCD_EXPOSURE
//     counts down off the serve goroutine, Busy until done)
//   - a BLOB property delivering binary results (CCD_IMAGE)
//   - Switch properties for the cooler and for aborting
//   - the Busy/Ok/Alert update discipline around every change
//
// Operations are refused until a peer switches CONNECTION on.
type Camera struct {
	*driver.StandardDevice

	mu sync.Mutex

	info        *model.Property
	exposure    *model.Property
	abort       *model.Property
	image       *model.Property
	cooler      *model.Property
	temperature *model.Property

	width, height int
	tick          time.Duration

	target   float64 // cooler setpoint
	frame    byte    // shifts the test pattern so consecutive frames differ
	exposing bool
	aborted  bool
	cooling  bool
	kick     bool // cooler goal moved while the ramp loop runs
}

// NewCamera creates a simulated camera device.
func NewCamera(cfg CameraConfig) *Camera {
	if cfg.Name == "" {
		cfg.Name = "CCD Simulator"
	}
	if cfg.Width <= 0 {
		cfg.Width = 320
	}
	if cfg.Height <= 0 {
		cfg.Height = 240
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}

	cam := &Camera{
		StandardDevice: driver.NewStandardDevice(cfg.Name),
		width:          cfg.Width,
		height:         cfg.Height,
		tick:           cfg.Tick,
		target:         ambientTemperature,
	}
	cam.setupProperties()
	cam.wireHandlers()
	return cam
}

func (c *Camera) setupProperties() {
	p, _ := c.AddTextProperty(PropertyInfo)
	p.SetLabel("Info")
	p.SetGroup("Main")
	p.SetPerm(model.PermReadOnly)
	p.SetState(model.StateOk)
	p.AddTextItem(ItemModel, "Model", "INDIGO Go CCD Simulator")
	c.info = p

	p, _ = c.AddNumberProperty(PropertyExposure)
	p.SetLabel("Start exposure")
	p.SetGroup("Camera")
	p.AddNumberItem(ItemExposure, "Start exposure", 0.0, "%g", "0", "3600", "1")
	c.exposure = p

	p, _ = c.AddSwitchProperty(PropertyAbort, model.RuleOneOfMany)
	p.SetLabel("Abort exposure")
	p.SetGroup("Camera")
	p.SetState(model.StateOk)
	p.AddSwitchItem(ItemAbort, "Abort exposure", false)
	c.abort = p

	p, _ = c.AddBlobProperty(PropertyImage)
	p.SetLabel("Image")
	p.SetGroup("Camera")
	p.SetPerm(model.PermReadOnly)
	p.AddBlobItem(ItemImage, "Image")
	c.image = p

	p, _ = c.AddSwitchProperty(PropertyCooler, model.RuleOneOfMany)
	p.SetLabel("Cooler")
	p.SetGroup("Cooler")
	p.SetState(model.StateOk)
	p.AddSwitchItem(ItemCoolerOn, "On", false)
	p.AddSwitchItem(ItemCoolerOff, "Off", true)
	c.cooler = p

	p, _ = c.AddNumberProperty(PropertyTemperature)
	p.SetLabel("Temperature")
	p.SetGroup("Cooler")
	p.SetState(model.StateOk)
	p.AddNumberItem(ItemTemperature, "Temperature (C)", ambientTemperature, "%5.2f", "-50", "50", "0.5")
	c.temperature = p
}

func (c *Camera) wireHandlers() {
	c.Handle(PropertyExposure, c.handleExposure)
	c.Handle(PropertyAbort, c.handleAbort)
	c.Handle(PropertyCooler, c.handleCooler)
	c.Handle(PropertyTemperature, c.handleTemperature)

	// disconnecting mid-exposure abandons the frame
	c.OnDisconnect = func() error {
		c.mu.Lock()
		if c.exposing {
			c.aborted = true
		}
		c.mu.Unlock()
		return nil
	}
}

// Exposing reports whether an exposure is in flight.
func (c *Camera) Exposing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exposing
}

// CoolerOn reports whether the cooler is running.
func (c *Camera) CoolerOn() bool {
	it, err := c.cooler.Item(ItemCoolerOn)
	return err == nil && it.On()
}

// Temperature returns the current sensor temperature.
func (c *Camera) Temperature() float64 {
	it, err := c.temperature.Item(ItemTemperature)
	if err != nil {
		return 0
	}
	v, err := it.Number()
	if err != nil {
		return 0
	}
	return v
}

func (c *Camera) handleExposure(p *model.Property, updates []driver.Update) {
	if !c.Connected() {
		p.MarkAlert()
		_ = c.SendUpdate(p, "camera is not connected")
		return
	}

	secs := math.NaN()
	for _, u := range updates {
		if u.Name != ItemExposure {
			continue
		}
		if v, err := strconv.ParseFloat(u.Text(), 64); err == nil {
			secs = v
		}
	}
	if math.IsNaN(secs) || secs < 0 {
		p.MarkAlert()
		_ = c.SendUpdate(p, "bad exposure duration")
		return
	}

	c.mu.Lock()
	if c.exposing {
		c.mu.Unlock()
		_ = c.SendMessage("exposure already in progress")
		return
	}
	c.exposing = true
	c.aborted = false
	c.mu.Unlock()

	if it, err := p.Item(ItemExposure); err == nil {
		it.SetValue(secs)
		it.SetTarget(secs)
	}
	p.MarkBusy()
	_ = c.SendUpdate(p, "")

	go c.runExposure(secs)
}

// runExposure counts the exposure down, announcing the remaining time
// every tick, then delivers the frame.
func (c *Camera) runExposure(secs float64) {
	it, err := c.exposure.Item(ItemExposure)
	if err != nil {
		return
	}

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	remaining := secs
	for remaining > 1e-9 {
		<-ticker.C

		c.mu.Lock()
		stop := c.aborted
		c.mu.Unlock()
		if stop {
			it.SetValue(0.0)
			c.exposure.MarkAlert()
			_ = c.SendUpdate(c.exposure, "exposure aborted")
			c.finishExposure()
			return
		}

		remaining -= c.tick.Seconds()
		if remaining > 1e-9 {
			it.SetValue(remaining)
			_ = c.SendUpdate(c.exposure, "")
		}
	}

	it.SetValue(0.0)
	c.exposure.MarkOk()
	_ = c.SendUpdate(c.exposure, "")

	if img, err := c.image.Item(ItemImage); err == nil {
		img.SetBlob(c.captureFrame(), ".raw")
		c.image.MarkOk()
		_ = c.SendUpdate(c.image, "")
	}
	c.finishExposure()
}

func (c *Camera) finishExposure() {
	c.mu.Lock()
	c.exposing = false
	c.mu.Unlock()
}

// captureFrame renders a gradient test frame.
func (c *Camera) captureFrame() []byte {
	c.mu.Lock()
	c.frame++
	offset := int(c.frame)
	w, h := c.width, c.height
	c.mu.Unlock()

	data := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			data[y*w+x] = byte(x + y + offset)
		}
	}
	return data
}

func (c *Camera) handleAbort(p *model.Property, updates []driver.Update) {
	want := false
	for _, u := range updates {
		if u.Name == ItemAbort && u.On() {
			want = true
		}
	}
	if want {
		c.mu.Lock()
		if c.exposing {
			c.aborted = true
		}
		c.mu.Unlock()
	}

	// momentary switch, snaps back off
	if it, err := p.Item(ItemAbort); err == nil {
		it.SetValue(model.SwitchOff)
	}
	p.MarkOk()
	_ = c.SendUpdate(p, "")
}

func (c *Camera) handleCooler(p *model.Property, updates []driver.Update) {
	if !c.Connected() {
		p.MarkAlert()
		_ = c.SendUpdate(p, "camera is not connected")
		return
	}

	on := c.CoolerOn()
	for _, u := range updates {
		switch u.Name {
		case ItemCoolerOn:
			if u.On() {
				on = true
			}
		case ItemCoolerOff:
			if u.On() {
				on = false
			}
		}
	}

	if it, err := p.Item(ItemCoolerOn); err == nil {
		it.SetValue(model.SwitchValue(on))
	}
	if it, err := p.Item(ItemCoolerOff); err == nil {
		it.SetValue(model.SwitchValue(!on))
	}
	p.MarkOk()
	_ = c.SendUpdate(p, "")

	c.startCooling()
}

func (c *Camera) handleTemperature(p *model.Property, updates []driver.Update) {
	if !c.Connected() {
		p.MarkAlert()
		_ = c.SendUpdate(p, "camera is not connected")
		return
	}

	for _, u := range updates {
		if u.Name != ItemTemperature {
			continue
		}
		v, err := strconv.ParseFloat(u.Text(), 64)
		if err != nil {
			p.MarkAlert()
			_ = c.SendUpdate(p, "bad temperature setpoint")
			return
		}
		c.mu.Lock()
		c.target = v
		c.mu.Unlock()
		if it, ierr := p.Item(ItemTemperature); ierr == nil {
			it.SetTarget(v)
		}
	}

	// the value follows only while the cooler runs
	if c.CoolerOn() {
		p.MarkBusy()
		_ = c.SendUpdate(p, "")
		c.startCooling()
	} else {
		p.MarkOk()
		_ = c.SendUpdate(p, "")
	}
}

// coolingGoal is the temperature the sensor drifts toward: the setpoint
// while the cooler runs, ambient otherwise.
func (c *Camera) coolingGoal() float64 {
	if c.CoolerOn() {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.target
	}
	return ambientTemperature
}

func (c *Camera) startCooling() {
	c.mu.Lock()
	if c.cooling {
		c.kick = true
		c.mu.Unlock()
		return
	}
	c.cooling = true
	c.kick = false
	c.mu.Unlock()
	go c.runCooler()
}

// runCooler ramps the sensor temperature one step per tick until it
// settles on the goal. The goal is re-read every tick so flipping the
// cooler or moving the setpoint mid-ramp just bends the ramp.
func (c *Camera) runCooler() {
	it, err := c.temperature.Item(ItemTemperature)
	if err != nil {
		return
	}

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		<-ticker.C

		cur, err := it.Number()
		if err != nil {
			cur = ambientTemperature
		}
		goal := c.coolingGoal()
		diff := goal - cur

		if math.Abs(diff) < 1e-3 {
			c.mu.Lock()
			if c.kick {
				// goal moved while we were settling
				c.kick = false
				c.mu.Unlock()
				continue
			}
			c.cooling = false
			c.mu.Unlock()
			return
		}

		next := cur + math.Copysign(math.Min(coolerRate, math.Abs(diff)), diff)
		it.SetValue(next)
		if math.Abs(goal-next) < 1e-3 {
			c.temperature.MarkOk()
		} else {
			c.temperature.MarkBusy()
		}
		_ = c.SendUpdate(c.temperature, "")
	}
}
