// indigo-ctl is an interactive console for INDIGO servers.
//
// It connects to a server over TCP, mirrors the published devices and
// properties, and lets you inspect and change them from a prompt:
//   - discover servers on the local network via mDNS
//   - list devices, show properties, read items
//   - request item changes (switches, numbers, text)
//   - watch properties for live updates
//   - save BLOB items (camera images) to files
//
// The console redials automatically when the connection drops.
//
// Usage:
//
//	indigo-ctl [flags]
//
// Flags:
//
//	-connect string  Server address to connect to at startup (host:port)
//	-name string     Client name sent to the server (default "indigo-ctl")
//	-capture string  Write protocol events to a capture file
//	-verbose         Log protocol events to stderr
//
// Examples:
//
//	indigo-ctl
//	indigo-ctl -connect localhost:7624
//	indigo-ctl -connect 10.0.1.20:7624 -capture session.capture
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

	"github.com/indigo-protocol/indigo-go/cmd/indigo-ctl/interactive"
	plog "github.com/indigo-protocol/indigo-go/pkg/log"
)

var config struct {
	Connect string
	Name    string
	Capture string
	Verbose bool
}

func init() {
	flag.StringVar(&config.Connect, "connect", "", "Server address to connect to at startup (host:port)")
	flag.StringVar(&config.Name, "name", "indigo-ctl", "Client name sent to the server")
	flag.StringVar(&config.Capture, "capture", "", "Write protocol events to a capture file")
	flag.BoolVar(&config.Verbose, "verbose", false, "Log protocol events to stderr")
}

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	logger, closeLogger, err := buildLogger()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	if closeLogger != nil {
		defer closeLogger()
	}

	console, err := interactive.New(interactive.Config{
		ClientName: config.Name,
		Address:    config.Connect,
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("Failed to start console: %v", err)
	}
	defer console.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	console.Run(ctx, cancel)
}

// buildLogger assembles the protocol event logger from the capture and
// verbose flags.
func buildLogger() (plog.Logger, func(), error) {
	var loggers []plog.Logger
	var closer func()

	if config.Capture != "" {
		fl, err := plog.NewFileLogger(config.Capture)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open capture file: %w", err)
		}
		loggers = append(loggers, fl)
		closer = func() { fl.Close() }
	}
	if config.Verbose {
		loggers = append(loggers, plog.NewSlogAdapter(slog.New(slog.NewTextHandler(os.Stderr, nil))))
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
