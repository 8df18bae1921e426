package reconnect

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrAlreadyConnected is returned by Connect while connected.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrClosed is returned by Connect after Close.
	ErrClosed = errors.New("manager closed")
)

// ConnectTimeout bounds a single automatic reconnection attempt.
const ConnectTimeout = 30 * time.Second

// State is the connection state as seen by the Manager.
type State uint8

const (
	// StateDisconnected means no connection and no attempt in progress.
	StateDisconnected State = iota

	// StateConnecting means Connect is running.
	StateConnecting

	// StateConnected means the last attempt succeeded and no loss has
	// been reported since.
	StateConnected

	// StateReconnecting means a loss was reported and the backoff loop
	// is redialing.
	StateReconnecting

	// StateClosed means Close was called.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc establishes one connection: dial, attach, whatever the
// caller's session needs. It returns nil once the connection is up.
type ConnectFunc func(ctx context.Context) error

// Manager drives a ConnectFunc through the connection lifecycle.
//
// A deliberate Disconnect stays down until the next Connect. A loss
// reported through NotifyConnectionLost starts the backoff loop, provided
// auto-reconnect is enabled and StartReconnectLoop has been called.
type Manager struct {
	mu sync.RWMutex

	state   State
	backoff *Backoff

	connectFn     ConnectFunc
	autoReconnect bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// reconnectCh wakes the loop; capacity 1 coalesces repeated losses.
	reconnectCh chan struct{}

	onStateChange  func(oldState, newState State)
	onConnected    func()
	onDisconnected func()
	onReconnecting func(attempt int, delay time.Duration)
}

// NewManager returns a Manager for connectFn. Auto-reconnect starts
// enabled; the loop itself runs only after StartReconnectLoop.
func NewManager(connectFn ConnectFunc) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		state:         StateDisconnected,
		backoff:       NewBackoff(),
		connectFn:     connectFn,
		autoReconnect: true,
		ctx:           ctx,
		cancel:        cancel,
		reconnectCh:   make(chan struct{}, 1),
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the state is StateConnected.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// SetAutoReconnect enables or disables redialing after a reported loss.
func (m *Manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = enabled
}

// BackoffAttempts returns the number of redial attempts since the last
// successful connection.
func (m *Manager) BackoffAttempts() int {
	return m.backoff.Attempts()
}

// Connect runs the ConnectFunc once, synchronously. While the backoff
// loop is waiting, Connect may be used to force an immediate attempt.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	case StateClosed:
		m.mu.Unlock()
		return ErrClosed
	}
	oldState := m.state
	m.state = StateConnecting
	m.mu.Unlock()

	m.notifyStateChange(oldState, StateConnecting)

	if err := m.connectFn(ctx); err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		m.notifyStateChange(StateConnecting, StateDisconnected)
		return err
	}

	m.mu.Lock()
	m.state = StateConnected
	m.backoff.Reset()
	m.mu.Unlock()

	m.notifyStateChange(StateConnecting, StateConnected)
	if m.onConnected != nil {
		m.onConnected()
	}
	return nil
}

// Disconnect records a deliberate disconnect. No redialing happens; the
// caller closes the underlying connection itself.
func (m *Manager) Disconnect() {
	m.connectionDown(false)
}

// NotifyConnectionLost records a detected loss, typically from the
// session's connection-lost callback. Redialing starts if enabled.
func (m *Manager) NotifyConnectionLost() {
	m.connectionDown(true)
}

func (m *Manager) connectionDown(lost bool) {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	oldState := m.state
	redial := lost && m.autoReconnect
	if redial {
		m.state = StateReconnecting
	} else {
		m.state = StateDisconnected
	}
	newState := m.state
	m.mu.Unlock()

	m.notifyStateChange(oldState, newState)
	if m.onDisconnected != nil {
		m.onDisconnected()
	}
	if redial {
		m.triggerReconnect()
	}
}

// StartReconnectLoop starts the background redial loop. Call once, before
// the first loss can occur.
func (m *Manager) StartReconnectLoop() {
	m.wg.Add(1)
	go m.reconnectLoop()
}

// Close shuts the Manager down and waits for the redial loop to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	oldState := m.state
	m.state = StateClosed
	m.mu.Unlock()

	m.notifyStateChange(oldState, StateClosed)
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) triggerReconnect() {
	select {
	case m.reconnectCh <- struct{}{}:
	default:
		// already pending
	}
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.reconnectCh:
			m.redial()
		}
	}
}

// redial attempts the ConnectFunc until it succeeds or the Manager is
// closed, waiting out the backoff schedule between attempts.
func (m *Manager) redial() {
	for {
		switch m.State() {
		case StateClosed, StateConnected:
			return
		}

		delay := m.backoff.Next()
		if m.onReconnecting != nil {
			m.onReconnecting(m.backoff.Attempts(), delay)
		}

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(delay):
		}

		// A forced Connect or a Close may have raced the wait.
		switch m.State() {
		case StateClosed, StateConnected:
			return
		}

		ctx, cancel := context.WithTimeout(m.ctx, ConnectTimeout)
		err := m.connectFn(ctx)
		cancel()
		if err != nil {
			continue
		}

		m.mu.Lock()
		oldState := m.state
		m.state = StateConnected
		m.backoff.Reset()
		m.mu.Unlock()

		m.notifyStateChange(oldState, StateConnected)
		if m.onConnected != nil {
			m.onConnected()
		}
		return
	}
}

func (m *Manager) notifyStateChange(oldState, newState State) {
	if m.onStateChange != nil {
		m.onStateChange(oldState, newState)
	}
}

// OnStateChange sets the callback for every state transition.
// Set callbacks before Connect or StartReconnectLoop.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.onStateChange = fn
}

// OnConnected sets the callback for a successful connection, initial or
// redial.
func (m *Manager) OnConnected(fn func()) {
	m.onConnected = fn
}

// OnDisconnected sets the callback for Disconnect and NotifyConnectionLost.
func (m *Manager) OnDisconnected(fn func()) {
	m.onDisconnected = fn
}

// OnReconnecting sets the callback invoked before each redial delay.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.onReconnecting = fn
}
