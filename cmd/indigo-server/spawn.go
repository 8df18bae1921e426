package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/indigo-protocol/indigo-go/pkg/server"
)

// processPipe adapts a child process's stdio to the server's driver
// channel. Close closes stdin, which tells the driver to exit, then
// reaps the process.
type processPipe struct {
	in   io.WriteCloser
	out  io.ReadCloser
	cmd  *exec.Cmd
	once sync.Once
	err  error
}

func (p *processPipe) Read(b []byte) (int, error)  { return p.out.Read(b) }
func (p *processPipe) Write(b []byte) (int, error) { return p.in.Write(b) }

func (p *processPipe) Close() error {
	p.once.Do(func() {
		p.in.Close()
		p.err = p.cmd.Wait()
	})
	return p.err
}

// spawnDriver starts a driver process and attaches its stdio to the
// server. The child's stderr passes through to ours. Cancelling the
// context kills the process.
func spawnDriver(ctx context.Context, srv *server.Server, d DriverConfig) error {
	cmd := exec.CommandContext(ctx, d.Command, d.Args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("driver %s: %w", d.Name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("driver %s: %w", d.Name, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("driver %s: %w", d.Name, err)
	}

	pipe := &processPipe{in: stdin, out: stdout, cmd: cmd}
	if err := srv.AttachDriver(d.Name, pipe); err != nil {
		pipe.Close()
		return fmt.Errorf("driver %s: %w", d.Name, err)
	}
	return nil
}
