// Package commands implements the indigo-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/indigo-protocol/indigo-go/pkg/log"
)

// RunView executes the view command, printing matching events in
// human-readable form.
func RunView(path string, filter log.Filter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [conn:id] DIRECTION ENCODING Kind
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)

	var typeLabel string
	switch {
	case event.Message != nil:
		typeLabel = event.Message.Kind
		if typeLabel == "" {
			typeLabel = "Message"
		}
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %-4s %s\n",
		ts, connID, event.Direction.String(), event.Encoding.String(), typeLabel)

	switch {
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// formatMessageDetails writes message-specific details.
func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	if msg.Device != "" {
		fmt.Fprintf(w, "  Device: %s", msg.Device)
		if msg.Property != "" {
			fmt.Fprintf(w, "  Property: %s", msg.Property)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "  Size: %d bytes\n", msg.Size)
	if len(msg.Payload) > 0 {
		// Continuation lines of multi-line payloads stay indented.
		payload := strings.TrimRight(string(msg.Payload), "\n")
		payload = strings.ReplaceAll(payload, "\n", "\n    ")
		fmt.Fprintf(w, "  Payload: %s", payload)
		if msg.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.Name != "" {
		fmt.Fprintf(w, "  Name: %s\n", sc.Name)
	}
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, errData *log.ErrorEventData) {
	fmt.Fprintf(w, "  Message: %s\n", errData.Message)
	if errData.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", errData.Context)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	return parseDirection(s)
}

// parseDirection parses a direction string (case-insensitive).
func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseEncodingFlag parses an encoding string from command-line flag (case-insensitive).
func ParseEncodingFlag(s string) (log.Encoding, error) {
	return parseEncoding(s)
}

// parseEncoding parses an encoding string (case-insensitive).
func parseEncoding(s string) (log.Encoding, error) {
	switch strings.ToLower(s) {
	case "json":
		return log.EncodingJSON, nil
	case "xml":
		return log.EncodingXML, nil
	default:
		return 0, fmt.Errorf("invalid encoding: %s (must be json or xml)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	return parseCategory(s)
}

// parseCategory parses a category string (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "control":
		return log.CategoryControl, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, control, state, or error)", s)
	}
}
