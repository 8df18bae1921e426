package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/indigo-protocol/indigo-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	EventsByEncoding  map[log.Encoding]int
	EventsByKind      map[string]int
	Connections       map[string]*ConnectionStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	Bytes      int
	RemoteAddr string
	Devices    map[string]struct{}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		EventsByEncoding:  make(map[log.Encoding]int),
		EventsByKind:      make(map[string]int),
		Connections:       make(map[string]*ConnectionStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByCategory[event.Category]++
		stats.EventsByDirection[event.Direction]++
		stats.EventsByEncoding[event.Encoding]++
		if event.Message != nil && event.Message.Kind != "" {
			stats.EventsByKind[event.Message.Kind]++
		}

		// Track time range
		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		// Track connection stats
		conn, ok := stats.Connections[event.ConnectionID]
		if !ok {
			conn = &ConnectionStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
				Devices:   make(map[string]struct{}),
			}
			stats.Connections[event.ConnectionID] = conn
		}
		conn.Events++
		if event.Timestamp.After(conn.LastSeen) {
			conn.LastSeen = event.Timestamp
		}
		if event.RemoteAddr != "" && conn.RemoteAddr == "" {
			conn.RemoteAddr = event.RemoteAddr
		}
		if event.Message != nil {
			conn.Bytes += event.Message.Size
		}
		if device := deviceOf(event); device != "" {
			conn.Devices[device] = struct{}{}
		}

		// Count errors
		if event.Error != nil {
			stats.Errors++
		}
	}

	printStats(w, stats)
	return nil
}

// deviceOf extracts the device name an event references, if any.
// State change names use "device" or "device.property" form.
func deviceOf(event log.Event) string {
	if event.Message != nil && event.Message.Device != "" {
		return event.Message.Device
	}
	if event.StateChange != nil && event.StateChange.Name != "" {
		device, _, _ := strings.Cut(event.StateChange.Name, ".")
		return device
	}
	return ""
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== INDIGO Protocol Log Statistics ===")
	fmt.Fprintln(w)

	// Time range
	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	// Total events
	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	// Events by category
	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// Events by direction
	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// Events by encoding
	fmt.Fprintln(w, "Events by Encoding:")
	for _, enc := range []log.Encoding{log.EncodingJSON, log.EncodingXML} {
		if count := stats.EventsByEncoding[enc]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", enc.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// Events by wire kind, most frequent first
	if len(stats.EventsByKind) > 0 {
		fmt.Fprintln(w, "Events by Kind:")
		kinds := make([]string, 0, len(stats.EventsByKind))
		for kind := range stats.EventsByKind {
			kinds = append(kinds, kind)
		}
		sort.Slice(kinds, func(i, j int) bool {
			if stats.EventsByKind[kinds[i]] != stats.EventsByKind[kinds[j]] {
				return stats.EventsByKind[kinds[i]] > stats.EventsByKind[kinds[j]]
			}
			return kinds[i] < kinds[j]
		})
		for _, kind := range kinds {
			fmt.Fprintf(w, "  %-20s %d\n", kind+":", stats.EventsByKind[kind])
		}
		fmt.Fprintln(w)
	}

	// Connections
	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		// Sort by first seen time
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w, "")
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, %d bytes, duration %s\n",
				shortenConnID(c.id), c.stats.Events, c.stats.Bytes, duration)
			if c.stats.RemoteAddr != "" {
				fmt.Fprintf(w, "           Remote: %s\n", c.stats.RemoteAddr)
			}
			if len(c.stats.Devices) > 0 {
				devices := make([]string, 0, len(c.stats.Devices))
				for device := range c.stats.Devices {
					devices = append(devices, device)
				}
				sort.Strings(devices)
				fmt.Fprintf(w, "           Devices: %s\n", strings.Join(devices, ", "))
			}
		}
	}

	// Errors
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
