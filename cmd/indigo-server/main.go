// Command indigo-server bridges JSON clients to XML drivers.
//
// The server listens for clients speaking the concatenated-JSON
// encoding, spawns driver executables as child processes speaking the
// line-oriented XML encoding on their stdio, and routes property
// traffic between the two sides. It can announce itself over mDNS so
// clients find it without configuration.
//
// Usage:
//
//	indigo-server [flags] [driver-command ...]
//
// Flags:
//
//	-config string  YAML configuration file path
//	-port int       Listen port (overrides config, default 7624)
//	-name string    mDNS instance name (overrides config)
//	-capture string Write a CBOR protocol capture to this file
//	-no-announce    Disable mDNS advertising
//	-local          Host the built-in simulator devices in-process
//	-verbose        Log protocol events to stderr
//
// Driver commands given as arguments are spawned without arguments;
// use the configuration file to pass driver arguments:
//
//	name: Observatory
//	port: 7624
//	drivers:
//	  - name: sim
//	    command: indigo-simulator
//	    args: ["-devices", "ccd,weather"]
//
// Examples:
//
//	# Serve the built-in simulator
//	indigo-server -local
//
//	# Spawn a driver executable
//	indigo-server ./indigo-simulator
//
//	# Full setup from a config file
//	indigo-server -config observatory.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/indigo-protocol/indigo-go/pkg/discovery"
	"github.com/indigo-protocol/indigo-go/pkg/driver"
	"github.com/indigo-protocol/indigo-go/pkg/examples"
	plog "github.com/indigo-protocol/indigo-go/pkg/log"
	"github.com/indigo-protocol/indigo-go/pkg/server"
	"github.com/indigo-protocol/indigo-go/pkg/version"
)

var flags struct {
	Config     string
	Port       int
	Name       string
	Capture    string
	NoAnnounce bool
	Local      bool
	Verbose    bool
}

func init() {
	flag.StringVar(&flags.Config, "config", "", "YAML configuration file path")
	flag.IntVar(&flags.Port, "port", 0, "Listen port (overrides config)")
	flag.StringVar(&flags.Name, "name", "", "mDNS instance name (overrides config)")
	flag.StringVar(&flags.Capture, "capture", "", "Write a CBOR protocol capture to this file")
	flag.BoolVar(&flags.NoAnnounce, "no-announce", false, "Disable mDNS advertising")
	flag.BoolVar(&flags.Local, "local", false, "Host the built-in simulator devices in-process")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Log protocol events to stderr")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := buildConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, closeLogger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to open capture: %v", err)
	}
	defer closeLogger()

	srv := server.New(server.Config{
		Address: fmt.Sprintf(":%d", cfg.Port),
		Logger:  logger,

		OnClientConnect: func(c *server.ClientConn) {
			log.Printf("[EVENT] Client connected: %s (%s)", shortID(c.ConnID()), c.RemoteAddr())
		},
		OnClientDisconnect: func(c *server.ClientConn) {
			log.Printf("[EVENT] Client disconnected: %s", shortID(c.ConnID()))
		},
		OnDriverAttached: func(name string) {
			log.Printf("[EVENT] Driver attached: %s", name)
		},
		OnDriverDetached: func(name string, err error) {
			if err != nil {
				log.Printf("[EVENT] Driver lost: %s (%v)", name, err)
				return
			}
			log.Printf("[EVENT] Driver detached: %s", name)
		},
		OnError: func(err error) {
			log.Printf("[EVENT] Server error: %v", err)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("INDIGO server listening on %s", srv.Addr())

	if cfg.Local {
		if err := attachLocal(ctx, srv); err != nil {
			log.Fatalf("Failed to attach simulator: %v", err)
		}
	}
	for _, d := range cfg.Drivers {
		if err := spawnDriver(ctx, srv, d); err != nil {
			log.Fatalf("Failed to start driver: %v", err)
		}
		log.Printf("Driver started: %s (%s)", d.Name, d.Command)
	}

	var adv *discovery.Advertiser
	if cfg.Announce {
		adv = discovery.NewAdvertiser(discovery.DefaultAdvertiserConfig())
		info := &discovery.ServiceInfo{
			Name: cfg.Name,
			Port: cfg.Port,
			TXT:  discovery.TXTRecordMap{discovery.TXTKeyVersion: version.Current},
		}
		if err := adv.Announce(info); err != nil {
			log.Printf("Warning: mDNS announce failed: %v", err)
			adv = nil
		} else {
			log.Printf("Announcing %q as %s", cfg.Name, discovery.ServiceType)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Printf("Received signal: %v", sig)
	log.Println("Shutting down...")

	if adv != nil {
		adv.Stop()
	}
	if err := srv.Stop(); err != nil {
		log.Printf("Error stopping server: %v", err)
	}
	log.Println("Goodbye!")
}

// buildConfig merges the config file, flags, and positional driver
// commands. Flags win over file values.
func buildConfig() (*FileConfig, error) {
	var cfg *FileConfig
	if flags.Config != "" {
		loaded, err := LoadConfig(flags.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = &FileConfig{
			Name:     "INDIGO Server",
			Port:     server.DefaultPort,
			Announce: true,
		}
	}

	if flags.Port != 0 {
		cfg.Port = flags.Port
	}
	if flags.Name != "" {
		cfg.Name = flags.Name
	}
	if flags.Capture != "" {
		cfg.Capture = flags.Capture
	}
	if flags.NoAnnounce {
		cfg.Announce = false
	}
	if flags.Local {
		cfg.Local = true
	}

	for _, command := range flag.Args() {
		if err := cfg.AddDriverCommand(command, nil); err != nil {
			return nil, err
		}
	}

	return cfg, cfg.validate()
}

// attachLocal hosts the example devices as an in-process driver.
func attachLocal(ctx context.Context, srv *server.Server) error {
	drv := driver.New(driver.Config{Name: "simulator"})

	cam := examples.NewCamera(examples.CameraConfig{})
	if err := drv.AddDevice(cam.Device); err != nil {
		return err
	}
	ws := examples.NewWeatherStation(examples.WeatherConfig{})
	if err := drv.AddDevice(ws.Device); err != nil {
		return err
	}
	pb := examples.NewPowerBox(examples.PowerBoxConfig{})
	if err := drv.AddDevice(pb.Device); err != nil {
		return err
	}

	if err := srv.AttachLocal(ctx, drv); err != nil {
		return err
	}
	go ws.Run(ctx, 5*time.Second)
	return nil
}

func buildLogger(cfg *FileConfig) (plog.Logger, func(), error) {
	var loggers []plog.Logger
	closer := func() {}

	if cfg.Capture != "" {
		fl, err := plog.NewFileLogger(cfg.Capture)
		if err != nil {
			return nil, nil, err
		}
		loggers = append(loggers, fl)
		closer = func() { fl.Close() }
	}
	if flags.Verbose {
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

func shortID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
