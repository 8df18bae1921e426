package reconnect

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitForState(t *testing.T, m *Manager, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", m.State(), want)
}

// fastBackoff makes redial tests run in milliseconds. Zero jitter keeps
// the schedule deterministic.
func fastBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{
		Initial:    20 * time.Millisecond,
		Max:        80 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     0,
	})
}

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		b := NewBackoff()
		want := []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			32 * time.Second,
			60 * time.Second,
			60 * time.Second, // stays capped
		}
		for i, base := range want {
			if got := b.Current(); got != base {
				t.Errorf("step %d: Current() = %v, want %v", i, got, base)
			}
			b.Next()
		}
	})

	t.Run("Jitter", func(t *testing.T) {
		b := NewBackoff()
		seen := make(map[time.Duration]bool)
		for i := 0; i < 20; i++ {
			d := b.Peek()
			if d < 1*time.Second || d > 1250*time.Millisecond {
				t.Errorf("Peek() = %v, want within [1s, 1.25s]", d)
			}
			seen[d] = true
		}
		if len(seen) < 2 {
			t.Error("Peek() returned the same value 20 times, expected jitter")
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff()
		b.Next()
		b.Next()
		b.Next()
		b.Reset()
		if got := b.Current(); got != InitialBackoff {
			t.Errorf("Current() after Reset = %v, want %v", got, InitialBackoff)
		}
		if got := b.Attempts(); got != 0 {
			t.Errorf("Attempts() after Reset = %d, want 0", got)
		}
	})

	t.Run("Attempts", func(t *testing.T) {
		b := NewBackoff()
		for i := 1; i <= 3; i++ {
			b.Next()
			if got := b.Attempts(); got != i {
				t.Errorf("Attempts() = %d, want %d", got, i)
			}
		}
	})

	t.Run("CustomConfig", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{
			Initial:    100 * time.Millisecond,
			Max:        500 * time.Millisecond,
			Multiplier: 2.0,
			Jitter:     0,
		})
		want := []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			500 * time.Millisecond,
			500 * time.Millisecond,
		}
		for i, exp := range want {
			if got := b.Next(); got != exp {
				t.Errorf("Next() #%d = %v, want %v", i+1, got, exp)
			}
		}
	})

	t.Run("ConfigDefaults", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Jitter: -1})
		if got := b.Current(); got != InitialBackoff {
			t.Errorf("Current() = %v, want %v", got, InitialBackoff)
		}
		// negative jitter is clamped off entirely
		if got := b.Peek(); got != InitialBackoff {
			t.Errorf("Peek() = %v, want %v", got, InitialBackoff)
		}
	})
}

func TestManager(t *testing.T) {
	t.Run("InitialState", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil })
		defer m.Close()

		if got := m.State(); got != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected", got)
		}
		if m.IsConnected() {
			t.Error("IsConnected() = true, want false")
		}
	})

	t.Run("ConnectSuccess", func(t *testing.T) {
		var dialed bool
		m := NewManager(func(ctx context.Context) error {
			dialed = true
			return nil
		})
		defer m.Close()

		var notified bool
		m.OnConnected(func() { notified = true })

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if !dialed {
			t.Error("ConnectFunc was not called")
		}
		if !notified {
			t.Error("OnConnected callback was not called")
		}
		if !m.IsConnected() {
			t.Errorf("State() = %v, want StateConnected", m.State())
		}
	})

	t.Run("ConnectFailure", func(t *testing.T) {
		dialErr := errors.New("connection refused")
		m := NewManager(func(ctx context.Context) error { return dialErr })
		defer m.Close()

		if err := m.Connect(context.Background()); !errors.Is(err, dialErr) {
			t.Errorf("Connect() error = %v, want %v", err, dialErr)
		}
		if got := m.State(); got != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected", got)
		}
	})

	t.Run("AlreadyConnected", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil })
		defer m.Close()

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if err := m.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
			t.Errorf("second Connect() error = %v, want ErrAlreadyConnected", err)
		}
	})

	t.Run("ConnectAfterClose", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil })
		m.Close()

		if err := m.Connect(context.Background()); !errors.Is(err, ErrClosed) {
			t.Errorf("Connect() after Close error = %v, want ErrClosed", err)
		}
	})

	t.Run("DeliberateDisconnectStaysDown", func(t *testing.T) {
		var dials atomic.Int32
		m := NewManager(func(ctx context.Context) error {
			dials.Add(1)
			return nil
		})
		m.StartReconnectLoop()
		defer m.Close()

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}

		var disconnected bool
		m.OnDisconnected(func() { disconnected = true })

		// auto-reconnect is enabled, but a deliberate disconnect must
		// not redial
		m.Disconnect()

		if !disconnected {
			t.Error("OnDisconnected callback was not called")
		}
		if got := m.State(); got != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected", got)
		}

		time.Sleep(100 * time.Millisecond)
		if got := dials.Load(); got != 1 {
			t.Errorf("ConnectFunc called %d times after Disconnect, want 1", got)
		}
	})

	t.Run("StateChanges", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil })
		defer m.Close()

		type change struct{ from, to State }
		var changes []change
		m.OnStateChange(func(oldState, newState State) {
			changes = append(changes, change{oldState, newState})
		})

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		m.Disconnect()

		want := []change{
			{StateDisconnected, StateConnecting},
			{StateConnecting, StateConnected},
			{StateConnected, StateDisconnected},
		}
		if len(changes) != len(want) {
			t.Fatalf("got %d transitions, want %d", len(changes), len(want))
		}
		for i, exp := range want {
			if changes[i] != exp {
				t.Errorf("transition %d: %v to %v, want %v to %v",
					i, changes[i].from, changes[i].to, exp.from, exp.to)
			}
		}
	})
}

func TestManagerRedial(t *testing.T) {
	t.Run("LossTriggersRedial", func(t *testing.T) {
		var dials atomic.Int32
		m := NewManager(func(ctx context.Context) error {
			dials.Add(1)
			return nil
		})
		m.backoff = fastBackoff()
		m.StartReconnectLoop()
		defer m.Close()

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}

		m.NotifyConnectionLost()
		waitForState(t, m, StateConnected)

		if got := dials.Load(); got < 2 {
			t.Errorf("ConnectFunc called %d times, want at least 2", got)
		}
		if got := m.BackoffAttempts(); got != 0 {
			t.Errorf("BackoffAttempts() after redial = %d, want 0", got)
		}
	})

	t.Run("BackoffBetweenFailures", func(t *testing.T) {
		var dials atomic.Int32
		m := NewManager(func(ctx context.Context) error {
			if dials.Add(1) < 4 {
				return errors.New("still down")
			}
			return nil
		})
		m.backoff = fastBackoff()

		var mu sync.Mutex
		var delays []time.Duration
		m.OnReconnecting(func(attempt int, delay time.Duration) {
			mu.Lock()
			delays = append(delays, delay)
			mu.Unlock()
		})

		m.StartReconnectLoop()
		defer m.Close()

		// start directly in the lost state, as NotifyConnectionLost
		// would leave it
		m.mu.Lock()
		m.state = StateReconnecting
		m.mu.Unlock()
		m.triggerReconnect()

		waitForState(t, m, StateConnected)

		mu.Lock()
		defer mu.Unlock()
		want := []time.Duration{
			20 * time.Millisecond,
			40 * time.Millisecond,
			80 * time.Millisecond,
			80 * time.Millisecond, // capped; fourth dial succeeds
		}
		if len(delays) != len(want) {
			t.Fatalf("got %d redial delays %v, want %d", len(delays), delays, len(want))
		}
		for i, exp := range want {
			if delays[i] != exp {
				t.Errorf("delay %d = %v, want %v", i, delays[i], exp)
			}
		}
	})

	t.Run("AutoReconnectDisabled", func(t *testing.T) {
		var dials atomic.Int32
		m := NewManager(func(ctx context.Context) error {
			dials.Add(1)
			return nil
		})
		m.SetAutoReconnect(false)
		m.StartReconnectLoop()
		defer m.Close()

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		m.NotifyConnectionLost()

		time.Sleep(100 * time.Millisecond)
		if got := m.State(); got != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected", got)
		}
		if got := dials.Load(); got != 1 {
			t.Errorf("ConnectFunc called %d times, want 1", got)
		}
	})

	t.Run("ForcedConnectDuringBackoff", func(t *testing.T) {
		var dials atomic.Int32
		m := NewManager(func(ctx context.Context) error {
			dials.Add(1)
			return nil
		})
		// hour-long delay: the loop must never get to dial on its own
		m.backoff = NewBackoffWithConfig(BackoffConfig{
			Initial: time.Hour,
			Jitter:  0,
		})
		m.StartReconnectLoop()
		defer m.Close()

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		m.NotifyConnectionLost()
		waitForState(t, m, StateReconnecting)

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("forced Connect() error = %v", err)
		}
		if !m.IsConnected() {
			t.Errorf("State() = %v, want StateConnected", m.State())
		}
		if got := dials.Load(); got != 2 {
			t.Errorf("ConnectFunc called %d times, want 2", got)
		}
	})

	t.Run("CloseStopsRedial", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error {
			return errors.New("still down")
		})
		m.backoff = fastBackoff()
		m.StartReconnectLoop()

		m.mu.Lock()
		m.state = StateReconnecting
		m.mu.Unlock()
		m.triggerReconnect()

		// Close must cancel the pending delay and join the loop.
		done := make(chan struct{})
		go func() {
			m.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Close() did not return")
		}
		if got := m.State(); got != StateClosed {
			t.Errorf("State() = %v, want StateClosed", got)
		}
	})
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "DISCONNECTED"},
		{StateConnecting, "CONNECTING"},
		{StateConnected, "CONNECTED"},
		{StateReconnecting, "RECONNECTING"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
