// Package interactive provides the interactive command-line interface
// for indigo-ctl.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/chzyer/readline"

	"github.com/indigo-protocol/indigo-go/pkg/client"
	"github.com/indigo-protocol/indigo-go/pkg/discovery"
	"github.com/indigo-protocol/indigo-go/pkg/log"
	"github.com/indigo-protocol/indigo-go/pkg/model"
	"github.com/indigo-protocol/indigo-go/pkg/reconnect"
	"github.com/indigo-protocol/indigo-go/pkg/wire"
)

// messageHistory bounds the messages command's scrollback.
const messageHistory = 100

// Config provides settings to the interactive console.
type Config struct {
	// ClientName is sent in getProperties requests.
	ClientName string

	// Address is an optional server to connect to at startup.
	Address string

	// Logger receives protocol events (optional).
	Logger log.Logger
}

// Console handles interactive mode for indigo-ctl.
type Console struct {
	cli *client.Client
	mgr *reconnect.Manager
	rl  *readline.Instance

	mu       sync.Mutex
	addr     string
	found    []*discovery.Service
	msgs     []string
	watches  []watchHandle
	watchSeq int
}

type watchHandle struct {
	id     int
	target string
	cancel func()
}

// New creates the console, its client, and its reconnect manager.
func New(cfg Config) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "indigo> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	c := &Console{rl: rl, addr: cfg.Address}

	c.cli = client.New(client.Config{
		Name:             cfg.ClientName,
		Logger:           cfg.Logger,
		OnDeviceMessage:  c.onDeviceMessage,
		OnMessage:        c.onMessage,
		OnConnectionLost: c.onConnectionLost,
	})

	c.mgr = reconnect.NewManager(c.dial)
	c.mgr.OnConnected(func() {
		fmt.Fprintf(rl.Stdout(), "Connected to %s\n", c.currentAddr())
	})
	c.mgr.OnDisconnected(func() {
		fmt.Fprintln(rl.Stdout(), "Disconnected")
	})
	c.mgr.OnReconnecting(func(attempt int, delay time.Duration) {
		fmt.Fprintf(rl.Stdout(), "Reconnect attempt %d in %s...\n", attempt, delay.Round(time.Millisecond))
	})

	return c, nil
}

// Close releases the console's connections.
func (c *Console) Close() {
	c.mgr.Close()
	c.cli.Close()
}

// dial is the reconnect manager's ConnectFunc.
func (c *Console) dial(ctx context.Context) error {
	addr := c.currentAddr()
	if addr == "" {
		return errors.New("no server address, use connect <host:port> or discover")
	}
	return c.cli.Connect(ctx, addr)
}

func (c *Console) currentAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

func (c *Console) onConnectionLost(err error) {
	fmt.Fprintf(c.rl.Stdout(), "Connection lost: %v\n", err)
	c.mgr.NotifyConnectionLost()
}

func (c *Console) onDeviceMessage(device, message, timestamp string) {
	line := fmt.Sprintf("%s [%s] %s", clock(timestamp), device, message)
	c.record(line)
	fmt.Fprintln(c.rl.Stdout(), line)
}

func (c *Console) onMessage(message, timestamp string) {
	line := fmt.Sprintf("%s %s", clock(timestamp), message)
	c.record(line)
	fmt.Fprintln(c.rl.Stdout(), line)
}

func (c *Console) record(line string) {
	c.mu.Lock()
	c.msgs = append(c.msgs, line)
	if len(c.msgs) > messageHistory {
		c.msgs = c.msgs[len(c.msgs)-messageHistory:]
	}
	c.mu.Unlock()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.mgr.StartReconnectLoop()
	c.printHelp()

	if c.currentAddr() != "" {
		c.cmdConnect(ctx, nil)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		fields := splitQuoted(line)
		if len(fields) == 0 {
			continue
		}
		cmd := strings.ToLower(fields[0])
		args := fields[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "discover":
			c.cmdDiscover(ctx, args)

		case "connect":
			c.cmdConnect(ctx, args)

		case "disconnect":
			c.cmdDisconnect()

		case "status":
			c.cmdStatus()

		case "list", "ls", "devices":
			c.cmdList()

		case "get", "g":
			c.cmdGet(args)

		case "set", "s":
			c.cmdSet(args)

		case "watch", "w":
			c.cmdWatch(args)

		case "unwatch":
			c.cmdUnwatch(args)

		case "refresh":
			c.cmdRefresh(args)

		case "messages", "msg":
			c.cmdMessages(args)

		case "blob":
			c.cmdBlob(args)

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
INDIGO Control Commands:
  Connection:
    discover [seconds]        - Find servers via mDNS
    connect [n|host[:port]]   - Connect to a server (n = discovery result)
    disconnect                - Disconnect and stay down
    status                    - Show connection status

  Properties:
    list                      - List devices
    get <target>              - Show device, property, or item
    set <target> ITEM=value.. - Request new item values
    refresh [target]          - Re-request property definitions
    blob <target> [file]      - Save a BLOB item to a file

  Monitoring:
    watch [target]            - Print updates (no target: list watches)
    unwatch <n|all>           - Stop watching
    messages [clear]          - Show received messages

  General:
    help                      - Show this help
    quit                      - Exit

  Target Format:
    device[.property[.item]] - e.g. "CCD Simulator".CCD_EXPOSURE.EXPOSURE
    Quote device names containing spaces.`)
}

// cmdDiscover browses for servers and numbers the results for connect.
func (c *Console) cmdDiscover(ctx context.Context, args []string) {
	timeout := 5 * time.Second
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			fmt.Fprintf(c.rl.Stdout(), "Invalid duration: %s\n", args[0])
			return
		}
		timeout = time.Duration(n) * time.Second
	}

	fmt.Fprintf(c.rl.Stdout(), "Browsing for %s servers (%s)...\n", discovery.ServiceType, timeout)

	bctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	browser := discovery.NewBrowser(discovery.DefaultBrowserConfig())
	results, err := browser.Browse(bctx)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Discovery error: %v\n", err)
		return
	}

	var found []*discovery.Service
	for svc := range results {
		found = append(found, svc)
		version := svc.TXT[discovery.TXTKeyVersion]
		if version != "" {
			version = " v" + version
		}
		fmt.Fprintf(c.rl.Stdout(), "  %d. %s (%s)%s\n", len(found), svc.Name, svc.Addr(), version)
	}

	c.mu.Lock()
	c.found = found
	c.mu.Unlock()

	if len(found) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No servers found")
	}
}

// cmdConnect resolves the target and forces a connection attempt. With
// no argument it redials the current address.
func (c *Console) cmdConnect(ctx context.Context, args []string) {
	target := ""
	if len(args) > 0 {
		target = args[0]
	}

	addr, err := c.resolveTarget(target)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
		return
	}

	c.mu.Lock()
	c.addr = addr
	c.mu.Unlock()

	fmt.Fprintf(c.rl.Stdout(), "Connecting to %s...\n", addr)
	if err := c.mgr.Connect(ctx); err != nil {
		if errors.Is(err, reconnect.ErrAlreadyConnected) {
			fmt.Fprintln(c.rl.Stdout(), "Already connected, disconnect first")
			return
		}
		fmt.Fprintf(c.rl.Stdout(), "Connect failed: %v\n", err)
	}
}

// resolveTarget turns a connect argument into a dialable address. A
// number selects a discovery result; a bare host gets the default port.
func (c *Console) resolveTarget(arg string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if arg == "" {
		if c.addr == "" {
			return "", errors.New("no server address, use connect <host:port> or discover")
		}
		return c.addr, nil
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(c.found) {
			return "", fmt.Errorf("no discovery result %d, run discover first", n)
		}
		return c.found[n-1].Addr(), nil
	}
	if !strings.Contains(arg, ":") {
		return net.JoinHostPort(arg, strconv.Itoa(discovery.DefaultPort)), nil
	}
	return arg, nil
}

// cmdDisconnect takes the connection down deliberately; no redialing.
func (c *Console) cmdDisconnect() {
	if !c.cli.Connected() {
		fmt.Fprintln(c.rl.Stdout(), "Not connected")
		return
	}
	c.mgr.Disconnect()
	c.cli.Close()
}

func (c *Console) cmdStatus() {
	c.mu.Lock()
	addr := c.addr
	watches := len(c.watches)
	c.mu.Unlock()

	if addr == "" {
		addr = "(none)"
	}

	fmt.Fprintln(c.rl.Stdout(), "\nConnection Status")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	fmt.Fprintf(c.rl.Stdout(), "  State:    %s\n", c.mgr.State())
	fmt.Fprintf(c.rl.Stdout(), "  Server:   %s\n", addr)
	fmt.Fprintf(c.rl.Stdout(), "  Devices:  %d\n", len(c.cli.Devices()))
	fmt.Fprintf(c.rl.Stdout(), "  Watches:  %d\n", watches)
	if attempts := c.mgr.BackoffAttempts(); attempts > 0 {
		fmt.Fprintf(c.rl.Stdout(), "  Redials:  %d\n", attempts)
	}
	fmt.Fprintln(c.rl.Stdout())
}

func (c *Console) cmdList() {
	devices := c.cli.Devices()
	if len(devices) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No devices (connect to a server first)")
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "\nDevices (%d):\n", len(devices))
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	for _, dev := range devices {
		fmt.Fprintf(c.rl.Stdout(), "  %-28s %d properties\n", dev.Name(), dev.Len())
	}
	fmt.Fprintln(c.rl.Stdout())
}

// cmdGet shows a device's properties, one property, or one item.
func (c *Console) cmdGet(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: get <device>[.<property>[.<item>]]")
		fmt.Fprintln(c.rl.Stdout(), `  Example: get "CCD Simulator".CCD_EXPOSURE`)
		return
	}

	device, property, item := parseTarget(args[0])

	if property == "" {
		dev, err := c.cli.Device(device)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
			return
		}
		fmt.Fprintf(c.rl.Stdout(), "\n%s:\n", dev.Name())
		for _, p := range dev.Properties() {
			fmt.Fprintf(c.rl.Stdout(), "  %-24s %-7s %-6s %d items\n",
				p.Name(), p.Kind(), p.State(), len(p.Items()))
		}
		fmt.Fprintln(c.rl.Stdout())
		return
	}

	p, err := c.cli.Property(device, property)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
		return
	}

	if item != "" {
		it, err := p.Item(item)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "%s.%s.%s: %v\n", device, property, item, err)
			return
		}
		fmt.Fprintf(c.rl.Stdout(), "%s = %s\n", it.Name(), formatItem(p.Kind(), it))
		return
	}

	c.printProperty(device, p)
}

func (c *Console) printProperty(device string, p *model.Property) {
	out := c.rl.Stdout()
	fmt.Fprintf(out, "\n%s.%s (%s", device, p.Name(), p.Kind())
	if p.Kind() == model.KindSwitch {
		fmt.Fprintf(out, " %s", p.Rule())
	}
	fmt.Fprintf(out, ", %s, %s)\n", p.Perm(), p.State())
	if p.Label() != "" && p.Label() != p.Name() {
		fmt.Fprintf(out, "  Label: %s\n", p.Label())
	}
	if p.Group() != "" {
		fmt.Fprintf(out, "  Group: %s\n", p.Group())
	}
	if msg := p.Message(); msg != "" {
		fmt.Fprintf(out, "  Message: %s\n", msg)
	}
	for _, it := range p.Items() {
		label := ""
		if it.Label() != "" && it.Label() != it.Name() {
			label = "  (" + it.Label() + ")"
		}
		fmt.Fprintf(out, "  %-20s = %s%s\n", it.Name(), formatItem(p.Kind(), it), label)
	}
	fmt.Fprintln(out)
}

// cmdSet requests new item values for one property.
func (c *Console) cmdSet(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: set <device>.<property> ITEM=value [ITEM=value ...]")
		fmt.Fprintln(c.rl.Stdout(), `  Example: set "CCD Simulator".CCD_EXPOSURE EXPOSURE=2.5`)
		return
	}

	device, property, _ := parseTarget(args[0])
	if device == "" || property == "" {
		fmt.Fprintln(c.rl.Stdout(), "Target must name a device and property")
		return
	}

	p, err := c.cli.Property(device, property)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
		return
	}

	values := make(map[string]any, len(args)-1)
	for _, pair := range args[1:] {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			fmt.Fprintf(c.rl.Stdout(), "Bad assignment %q (use ITEM=value)\n", pair)
			return
		}
		v, err := parseValue(p.Kind(), raw)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "%s: %v\n", name, err)
			return
		}
		values[name] = v
	}

	if err := c.cli.Change(device, property, values); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Change failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "OK")
}

// cmdWatch registers a live printer for matching properties. Without a
// target it lists the active watches.
func (c *Console) cmdWatch(args []string) {
	if len(args) == 0 {
		c.mu.Lock()
		watches := append([]watchHandle(nil), c.watches...)
		c.mu.Unlock()

		if len(watches) == 0 {
			fmt.Fprintln(c.rl.Stdout(), "No active watches (watch <device>[.<property>])")
			return
		}
		for _, w := range watches {
			fmt.Fprintf(c.rl.Stdout(), "  %d. %s\n", w.id, w.target)
		}
		return
	}

	device, property, _ := parseTarget(args[0])
	cancel := c.cli.Watch(device, property, c.watchPrinter)

	c.mu.Lock()
	c.watchSeq++
	c.watches = append(c.watches, watchHandle{id: c.watchSeq, target: args[0], cancel: cancel})
	id := c.watchSeq
	c.mu.Unlock()

	fmt.Fprintf(c.rl.Stdout(), "Watch %d added for %s\n", id, args[0])
}

func (c *Console) cmdUnwatch(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: unwatch <n|all>")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if args[0] == "all" {
		for _, w := range c.watches {
			w.cancel()
		}
		n := len(c.watches)
		c.watches = nil
		fmt.Fprintf(c.rl.Stdout(), "Removed %d watch(es)\n", n)
		return
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid watch id: %s\n", args[0])
		return
	}
	for i, w := range c.watches {
		if w.id == id {
			w.cancel()
			c.watches = append(c.watches[:i], c.watches[i+1:]...)
			fmt.Fprintf(c.rl.Stdout(), "Watch %d removed\n", id)
			return
		}
	}
	fmt.Fprintf(c.rl.Stdout(), "No watch %d\n", id)
}

func (c *Console) watchPrinter(p *model.Property) {
	device := ""
	if d := p.Device(); d != nil {
		device = d.Name()
	}

	parts := make([]string, 0, len(p.Items()))
	for _, it := range p.Items() {
		parts = append(parts, fmt.Sprintf("%s=%s", it.Name(), formatItem(p.Kind(), it)))
	}

	line := fmt.Sprintf("[%s] %s.%s %s  %s",
		time.Now().Format("15:04:05"), device, p.Name(), p.State(), strings.Join(parts, " "))
	if msg := p.Message(); msg != "" {
		line += "  (" + msg + ")"
	}
	fmt.Fprintln(c.rl.Stdout(), line)
}

// cmdRefresh re-requests definitions, narrowed by an optional target.
func (c *Console) cmdRefresh(args []string) {
	var err error
	if len(args) == 0 {
		err = c.cli.GetProperties()
	} else {
		device, property, _ := parseTarget(args[0])
		err = c.cli.RequestProperties(device, property)
	}
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Refresh failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Requested")
}

func (c *Console) cmdMessages(args []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(args) > 0 && args[0] == "clear" {
		c.msgs = nil
		fmt.Fprintln(c.rl.Stdout(), "Messages cleared")
		return
	}

	if len(c.msgs) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No messages received")
		return
	}
	for _, line := range c.msgs {
		fmt.Fprintln(c.rl.Stdout(), line)
	}
}

// cmdBlob saves a BLOB item's bytes to a file.
func (c *Console) cmdBlob(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: blob <device>.<property>.<item> [file]")
		return
	}

	device, property, item := parseTarget(args[0])
	if item == "" {
		fmt.Fprintln(c.rl.Stdout(), "Target must name a device, property, and item")
		return
	}

	p, err := c.cli.Property(device, property)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
		return
	}
	it, err := p.Item(item)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "%s.%s.%s: %v\n", device, property, item, err)
		return
	}

	data, err := it.Blob()
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "No BLOB data: %v\n", err)
		return
	}
	if len(data) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No BLOB data received yet")
		return
	}

	name := item + it.Format()
	if len(args) > 1 {
		name = args[1]
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Write failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Wrote %d bytes to %s\n", len(data), name)
}

// parseTarget splits device[.property[.item]].
func parseTarget(s string) (device, property, item string) {
	parts := strings.SplitN(s, ".", 3)
	device = parts[0]
	if len(parts) > 1 {
		property = parts[1]
	}
	if len(parts) > 2 {
		item = parts[2]
	}
	return
}

// parseValue converts a command-line value per the property kind:
// booleans for switches, numbers for numeric items, text otherwise.
func parseValue(kind model.Kind, s string) (any, error) {
	switch kind {
	case model.KindSwitch:
		switch strings.ToLower(s) {
		case "on", "true", "1":
			return true, nil
		case "off", "false", "0":
			return false, nil
		}
		return nil, fmt.Errorf("bad switch value %q (use On or Off)", s)
	case model.KindNumber:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", s)
		}
		return f, nil
	default:
		return s, nil
	}
}

// formatItem renders an item value for display. BLOBs show their size
// instead of the payload.
func formatItem(kind model.Kind, it *model.Item) string {
	if kind == model.KindBLOB {
		if url := it.URL(); url != "" {
			return "<" + url + ">"
		}
		if n := it.Size(); n > 0 {
			return fmt.Sprintf("<%d bytes %s>", n, it.Format())
		}
		return "<no data>"
	}
	return wire.Text(it.Value())
}

// clock shortens a wire timestamp to its time of day.
func clock(ts string) string {
	if len(ts) >= 19 && ts[10] == 'T' {
		return ts[11:19]
	}
	return ts
}

// splitQuoted splits a command line on spaces, honoring single and
// double quotes so device names with spaces stay one field.
func splitQuoted(line string) []string {
	var (
		fields  []string
		current strings.Builder
		quote   rune
		inField bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inField = true
		case unicode.IsSpace(r):
			if inField {
				fields = append(fields, current.String())
				current.Reset()
				inField = false
			}
		default:
			current.WriteRune(r)
			inField = true
		}
	}
	if inField {
		fields = append(fields, current.String())
	}
	return fields
}
