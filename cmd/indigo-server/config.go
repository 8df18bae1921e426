package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/indigo-protocol/indigo-go/pkg/server"
)

// FileConfig is the YAML configuration file schema.
type FileConfig struct {
	// Name is the mDNS instance name.
	Name string `yaml:"name"`

	// Port is the TCP port for JSON clients.
	Port int `yaml:"port"`

	// Announce controls mDNS advertising.
	Announce bool `yaml:"announce"`

	// Capture is a CBOR protocol capture file path.
	Capture string `yaml:"capture"`

	// Local hosts the built-in simulator devices in-process.
	Local bool `yaml:"local"`

	// Drivers are executables to spawn and attach over stdio.
	Drivers []DriverConfig `yaml:"drivers"`
}

// DriverConfig describes one driver process.
type DriverConfig struct {
	// Name registers the driver with the server. Defaults to the
	// command's base name.
	Name string `yaml:"name"`

	// Command is the executable to run.
	Command string `yaml:"command"`

	// Args are passed to the command.
	Args []string `yaml:"args"`
}

// ParseConfig parses a configuration from YAML bytes. Absent keys keep
// the defaults.
func ParseConfig(data []byte) (*FileConfig, error) {
	cfg := &FileConfig{
		Name:     "INDIGO Server",
		Port:     server.DefaultPort,
		Announce: true,
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a configuration file.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *FileConfig) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	seen := make(map[string]bool)
	for i := range c.Drivers {
		d := &c.Drivers[i]
		if d.Command == "" {
			return fmt.Errorf("driver %d: command is required", i)
		}
		if d.Name == "" {
			d.Name = filepath.Base(d.Command)
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate driver name: %s", d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

// AddDriverCommand appends a driver given as a bare command line,
// deriving its name from the executable.
func (c *FileConfig) AddDriverCommand(command string, args []string) error {
	name := filepath.Base(command)
	for _, d := range c.Drivers {
		if d.Name == name {
			return fmt.Errorf("duplicate driver name: %s", name)
		}
	}
	c.Drivers = append(c.Drivers, DriverConfig{
		Name:    name,
		Command: command,
		Args:    args,
	})
	return nil
}
