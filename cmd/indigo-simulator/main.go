// Command indigo-simulator hosts simulated devices as an INDIGO driver.
//
// The driver speaks the line-oriented XML encoding on stdin/stdout, so a
// server runs it as a child process and owns both pipes. All diagnostic
// output goes to stderr.
//
// Usage:
//
//	indigo-simulator [flags]
//
// Flags:
//
//	-name string       Driver name in protocol logs (default "INDIGO Go Simulator")
//	-devices string    Comma-separated devices to host: ccd, weather, power (default all)
//	-tick duration     Camera simulation tick (default 1s)
//	-weather duration  Weather drift interval, 0 disables drifting (default 5s)
//	-capture string    Write a CBOR protocol capture to this file
//	-verbose           Log protocol events to stderr
//
// Examples:
//
//	# Host all three devices
//	indigo-simulator
//
//	# Camera only, with a protocol capture
//	indigo-simulator -devices ccd -capture session.ilog
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/indigo-protocol/indigo-go/pkg/driver"
	"github.com/indigo-protocol/indigo-go/pkg/examples"
	plog "github.com/indigo-protocol/indigo-go/pkg/log"
)

// Config holds the simulator configuration.
type Config struct {
	Name            string
	Devices         string
	Tick            time.Duration
	WeatherInterval time.Duration
	Capture         string
	Verbose         bool
}

var config Config

func init() {
	flag.StringVar(&config.Name, "name", "INDIGO Go Simulator", "Driver name in protocol logs")
	flag.StringVar(&config.Devices, "devices", "ccd,weather,power", "Comma-separated devices to host: ccd, weather, power")
	flag.DurationVar(&config.Tick, "tick", time.Second, "Camera simulation tick")
	flag.DurationVar(&config.WeatherInterval, "weather", 5*time.Second, "Weather drift interval, 0 disables drifting")
	flag.StringVar(&config.Capture, "capture", "", "Write a CBOR protocol capture to this file")
	flag.BoolVar(&config.Verbose, "verbose", false, "Log protocol events to stderr")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	logger, closeLogger, err := buildLogger()
	if err != nil {
		log.Fatalf("Failed to open capture: %v", err)
	}
	defer closeLogger()

	drv := driver.New(driver.Config{
		Name:   config.Name,
		Logger: logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := addDevices(ctx, drv); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	names := make([]string, 0, len(drv.Devices()))
	for _, dev := range drv.Devices() {
		names = append(names, dev.Name())
	}
	log.Printf("%s serving on stdio: %s", config.Name, strings.Join(names, ", "))

	// A signal cancels the context; closing stdin unblocks the pending
	// read so Serve can observe it.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal: %v", sig)
		cancel()
		os.Stdin.Close()
	}()

	err = drv.Serve(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Serve: %v", err)
	}
	log.Println("Input ended, shutting down")
}

// addDevices creates the requested devices and registers them.
func addDevices(ctx context.Context, drv *driver.Driver) error {
	for _, kind := range strings.Split(config.Devices, ",") {
		switch strings.TrimSpace(strings.ToLower(kind)) {
		case "ccd":
			cam := examples.NewCamera(examples.CameraConfig{Tick: config.Tick})
			if err := drv.AddDevice(cam.Device); err != nil {
				return err
			}

		case "weather":
			ws := examples.NewWeatherStation(examples.WeatherConfig{})
			if err := drv.AddDevice(ws.Device); err != nil {
				return err
			}
			if config.WeatherInterval > 0 {
				go ws.Run(ctx, config.WeatherInterval)
			}

		case "power":
			pb := examples.NewPowerBox(examples.PowerBoxConfig{})
			if err := drv.AddDevice(pb.Device); err != nil {
				return err
			}

		case "":

		default:
			return errors.New("unknown device type: " + kind)
		}
	}
	if len(drv.Devices()) == 0 {
		return errors.New("no devices selected")
	}
	return nil
}

// buildLogger assembles the protocol logger from the capture and
// verbose flags. Verbose output goes to stderr; stdout carries the
// wire encoding.
func buildLogger() (plog.Logger, func(), error) {
	var loggers []plog.Logger
	closer := func() {}

	if config.Capture != "" {
		fl, err := plog.NewFileLogger(config.Capture)
		if err != nil {
			return nil, nil, err
		}
		loggers = append(loggers, fl)
		closer = func() { fl.Close() }
	}
	if config.Verbose {
		h := slog.NewTextHandler(os.Stderr, nil)
		loggers = append(loggers, plog.NewSlogAdapter(slog.New(h)))
	}

	switch len(loggers) {
	case 0:
		return nil, closer, nil
	case 1:
		return loggers[0], closer, nil
	default:
		return plog.NewMultiLogger(loggers...), closer, nil
	}
}
