package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/indigo-protocol/indigo-go/pkg/log"
)

// Codec errors.
var (
	// ErrIncomplete reports that the buffered input holds no complete
	// message; feed more bytes and retry.
	ErrIncomplete = errors.New("wire: incomplete message")
)

// Policy selects how a decoder reacts to malformed input.
type Policy uint8

const (
	// PolicyLenient skips a malformed unit and resumes at the next
	// plausible message boundary.
	PolicyLenient Policy = iota
	// PolicyStrict surfaces the first syntax error.
	PolicyStrict
)

// MaxLogPayloadSize limits how much wire text is attached to a single
// log event. BLOB transfers routinely exceed it.
const MaxLogPayloadSize = 4096

// StreamDecoder splits a concatenation of JSON objects into Messages.
// The stream has no delimiter or length prefix: adjacent objects abut
// as `}{`. Partial trailing data stays buffered until more bytes arrive.
//
// StreamDecoder is not safe for concurrent use; it belongs to the one
// read loop that owns the connection.
type StreamDecoder struct {
	buf     []byte
	off     int
	pending []pendingMsg
	policy  Policy

	logger log.Logger
	connID string
}

// pendingMsg pairs a decoded message with the wire bytes it came from.
// Messages sharing a multi-key object share the same raw slice.
type pendingMsg struct {
	msg *Message
	raw []byte
}

// NewStreamDecoder creates a decoder with the given recovery policy.
func NewStreamDecoder(policy Policy) *StreamDecoder {
	return &StreamDecoder{policy: policy}
}

// SetLogger enables protocol logging for this decoder.
// The connectionID is included in all log events.
func (d *StreamDecoder) SetLogger(logger log.Logger, connectionID string) {
	d.logger = logger
	d.connID = connectionID
}

// Feed appends newly received bytes to the decode buffer.
func (d *StreamDecoder) Feed(p []byte) {
	if d.off > 0 {
		n := copy(d.buf, d.buf[d.off:])
		d.buf = d.buf[:n]
		d.off = 0
	}
	d.buf = append(d.buf, p...)
}

// Next returns the next complete message from the buffer.
// It returns ErrIncomplete when the remaining input is empty or a
// partial object; under PolicyStrict it returns the first syntax error
// instead of recovering.
func (d *StreamDecoder) Next() (*Message, error) {
	for {
		if len(d.pending) > 0 {
			p := d.pending[0]
			d.pending = d.pending[1:]
			d.logMessage(log.DirectionIn, p.msg, p.raw)
			return p.msg, nil
		}

		d.skipSpace()
		if d.off >= len(d.buf) {
			return nil, ErrIncomplete
		}

		start := d.off
		jd := json.NewDecoder(bytes.NewReader(d.buf[d.off:]))
		var obj map[string]json.RawMessage
		err := jd.Decode(&obj)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// Partial object; wait for more bytes.
				return nil, ErrIncomplete
			}
			if d.policy == PolicyStrict {
				return nil, fmt.Errorf("decode message: %w", err)
			}
			d.logError(err, "decode")
			d.resync()
			continue
		}
		d.off += int(jd.InputOffset())

		// Feed compacts the buffer, so logged bytes need their own copy.
		var raw []byte
		if d.logger != nil {
			raw = append([]byte(nil), d.buf[start:d.off]...)
		}

		// An object may carry several keys; each dispatches separately.
		for key, payload := range obj {
			msg, err := decodePayload(key, payload)
			if err != nil {
				if d.policy == PolicyStrict {
					return nil, fmt.Errorf("decode %s payload: %w", key, err)
				}
				d.logError(err, "decode")
				continue
			}
			d.pending = append(d.pending, pendingMsg{msg: msg, raw: raw})
		}
	}
}

// skipSpace advances past insignificant whitespace between objects.
func (d *StreamDecoder) skipSpace() {
	for d.off < len(d.buf) {
		switch d.buf[d.off] {
		case ' ', '\t', '\r', '\n':
			d.off++
		default:
			return
		}
	}
}

// resync drops input up to the next plausible object start.
func (d *StreamDecoder) resync() {
	i := bytes.IndexByte(d.buf[d.off+1:], '{')
	if i < 0 {
		d.off = len(d.buf)
		return
	}
	d.off += 1 + i
}

// decodePayload unmarshals the payload for one wire key into the
// matching Message variant.
func decodePayload(key string, raw json.RawMessage) (*Message, error) {
	if t, k, ok := ParseVectorKey(key); ok {
		msg := &Message{Type: t, ValueKind: k}
		var err error
		switch t {
		case TypeDef:
			msg.Def = &DefVector{}
			err = json.Unmarshal(raw, msg.Def)
		case TypeSet:
			msg.Set = &SetVector{}
			err = json.Unmarshal(raw, msg.Set)
		case TypeNew:
			msg.New = &NewVector{}
			err = json.Unmarshal(raw, msg.New)
		}
		if err != nil {
			return nil, err
		}
		return msg, nil
	}

	switch key {
	case TagGetProperties:
		msg := &Message{Type: TypeGetProperties, GetProperties: &GetProperties{}}
		return msg, json.Unmarshal(raw, msg.GetProperties)
	case TagMessage:
		msg := &Message{Type: TypeMessage, Notice: &Notice{}}
		return msg, json.Unmarshal(raw, msg.Notice)
	case TagDeleteProperty:
		msg := &Message{Type: TypeDelete, Delete: &DeleteProperty{}}
		return msg, json.Unmarshal(raw, msg.Delete)
	case TagSwitchProtocol:
		msg := &Message{Type: TypeSwitchProtocol, SwitchProtocol: &SwitchProtocol{}}
		return msg, json.Unmarshal(raw, msg.SwitchProtocol)
	default:
		return &Message{Type: TypeUnknown, UnknownKey: key, UnknownRaw: raw}, nil
	}
}

func (d *StreamDecoder) logMessage(dir log.Direction, msg *Message, encoded []byte) {
	if d.logger == nil {
		return
	}
	d.logger.Log(makeMessageEvent(dir, log.EncodingJSON, d.connID, msg, encoded))
}

func (d *StreamDecoder) logError(err error, context string) {
	if d.logger == nil {
		return
	}
	d.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: d.connID,
		Direction:    log.DirectionIn,
		Encoding:     log.EncodingJSON,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Encoding: log.EncodingJSON,
			Message:  err.Error(),
			Context:  context,
		},
	})
}

// makeMessageEvent builds a log event for one wire message, truncating
// the attached payload at MaxLogPayloadSize.
func makeMessageEvent(dir log.Direction, enc log.Encoding, connID string, msg *Message, encoded []byte) log.Event {
	category := log.CategoryMessage
	if msg.Type == TypeGetProperties || msg.Type == TypeSwitchProtocol {
		category = log.CategoryControl
	}

	me := &log.MessageEvent{
		Kind:     msg.Key(),
		Device:   msg.Device(),
		Property: msg.Property(),
		Size:     len(encoded),
	}
	if len(encoded) > MaxLogPayloadSize {
		me.Payload = encoded[:MaxLogPayloadSize]
		me.Truncated = true
	} else {
		me.Payload = encoded
	}

	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Encoding:     enc,
		Category:     category,
		Message:      me,
	}
}

// Encoder writes messages as JSON objects, each terminated by a blank
// line so peers with line-based framing can split the stream.
// Encode serializes concurrent writers; it is safe to call from any
// goroutine.
type Encoder struct {
	w  io.Writer
	mu sync.Mutex

	logger log.Logger
	connID string
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// SetLogger enables protocol logging for this encoder.
// The connectionID is included in all log events.
func (e *Encoder) SetLogger(logger log.Logger, connectionID string) {
	e.logger = logger
	e.connID = connectionID
}

// Encode marshals one message and writes it to the stream.
func (e *Encoder) Encode(msg *Message) error {
	payload, err := marshalPayload(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Key(), err)
	}

	data, err := json.Marshal(map[string]json.RawMessage{msg.Key(): payload})
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Key(), err)
	}
	data = append(data, '\n', '\n')

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	if e.logger != nil {
		e.logger.Log(makeMessageEvent(log.DirectionOut, log.EncodingJSON, e.connID, msg, data))
	}
	return nil
}

// marshalPayload picks the variant payload for the message type.
func marshalPayload(msg *Message) (json.RawMessage, error) {
	switch msg.Type {
	case TypeGetProperties:
		return json.Marshal(msg.GetProperties)
	case TypeDef:
		return json.Marshal(msg.Def)
	case TypeSet:
		return json.Marshal(msg.Set)
	case TypeNew:
		return json.Marshal(msg.New)
	case TypeMessage:
		return json.Marshal(msg.Notice)
	case TypeDelete:
		return json.Marshal(msg.Delete)
	case TypeSwitchProtocol:
		return json.Marshal(msg.SwitchProtocol)
	case TypeUnknown:
		if msg.UnknownRaw != nil {
			return json.RawMessage(msg.UnknownRaw), nil
		}
		return json.RawMessage("{}"), nil
	default:
		return nil, fmt.Errorf("unencodable message type %d", msg.Type)
	}
}
