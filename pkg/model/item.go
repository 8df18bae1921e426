package model

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// Item errors.
var (
	ErrNoValue    = errors.New("item has no value")
	ErrNotNumeric = errors.New("item value is not numeric")
)

// Item is the leaf value holder of a property. Which of its attributes are
// meaningful depends on the owning property's kind: format/min/max/step and
// target apply to Number items, size/format/url to BLOB items.
type Item struct {
	mu sync.RWMutex

	name  string
	label string
	hints string

	value any

	// Number metadata, stored opaquely as provided.
	format string
	min    string
	max    string
	step   string
	target any

	// BLOB metadata.
	size int64
	url  string
}

// NewItem creates an item. Items are attached to a property via
// Property.AddItem and its kind-specific variants.
func NewItem(name, label string) *Item {
	return &Item{name: name, label: label}
}

// Name returns the item name, unique within its property.
func (it *Item) Name() string {
	return it.name
}

// Label returns the human-readable label.
func (it *Item) Label() string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.label
}

// SetLabel sets the human-readable label.
func (it *Item) SetLabel(label string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.label = label
}

// Hints returns presentation hints, if any.
func (it *Item) Hints() string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.hints
}

// SetHints sets presentation hints.
func (it *Item) SetHints(hints string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.hints = hints
}

// Value returns the stored value as received or assigned. Binary payloads
// are stored as their base64 text form; see Blob.
func (it *Item) Value() any {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.value
}

// SetValue stores a new value. A []byte payload is base64-encoded and the
// byte size recorded automatically; callers never encode manually. Any
// other value is stored as given.
func (it *Item) SetValue(v any) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if raw, ok := v.([]byte); ok {
		it.size = int64(len(raw))
		it.value = base64.StdEncoding.EncodeToString(raw)
		return
	}
	it.value = v
}

// SetBlob stores a binary payload with its encoding format tag
// (conventionally a file extension such as ".fits").
func (it *Item) SetBlob(data []byte, format string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.size = int64(len(data))
	it.value = base64.StdEncoding.EncodeToString(data)
	it.format = format
}

// Text returns the value rendered as a string, empty if unset.
func (it *Item) Text() string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	switch v := it.value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Number returns the value as a float64. It accepts both native numbers
// and numeric strings, since the two wire encodings differ on this.
func (it *Item) Number() (float64, error) {
	it.mu.RLock()
	v := it.value
	it.mu.RUnlock()

	switch n := v.(type) {
	case nil:
		return 0, ErrNoValue
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNotNumeric, n)
		}
		return f, nil
	default:
		f, err := strconv.ParseFloat(fmt.Sprint(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrNotNumeric, v)
		}
		return f, nil
	}
}

// On reports whether a switch item is in the On position.
func (it *Item) On() bool {
	return it.Text() == SwitchOn
}

// Blob decodes and returns the binary payload of a BLOB item.
func (it *Item) Blob() ([]byte, error) {
	it.mu.RLock()
	v := it.value
	it.mu.RUnlock()

	s, ok := v.(string)
	if !ok || s == "" {
		return nil, ErrNoValue
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode blob: %w", err)
	}
	return data, nil
}

// Format returns the format tag: a printf-style format for Number items,
// an encoding format such as ".fits" for BLOB items.
func (it *Item) Format() string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.format
}

// SetFormat sets the format tag.
func (it *Item) SetFormat(format string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.format = format
}

// Min returns the minimum bound of a Number item, as provided.
func (it *Item) Min() string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.min
}

// Max returns the maximum bound of a Number item, as provided.
func (it *Item) Max() string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.max
}

// Step returns the step increment of a Number item, as provided.
func (it *Item) Step() string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.step
}

// SetRange sets the min/max/step bounds of a Number item. The values are
// stored opaquely as provided.
func (it *Item) SetRange(min, max, step string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.min, it.max, it.step = min, max, step
}

// Target returns the requested target value carried by Number updates,
// nil if the peer never sent one.
func (it *Item) Target() any {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.target
}

// SetTarget records the requested target value of a Number update.
func (it *Item) SetTarget(v any) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.target = v
}

// Size returns the decoded byte size of a BLOB item.
func (it *Item) Size() int64 {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.size
}

// SetSize records the decoded byte size of a BLOB item.
func (it *Item) SetSize(size int64) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.size = size
}

// URL returns the out-of-band location of a BLOB payload, if the peer
// announced one instead of (or alongside) the inline encoding.
func (it *Item) URL() string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.url
}

// SetURL records the out-of-band location of a BLOB payload.
func (it *Item) SetURL(url string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.url = url
}
