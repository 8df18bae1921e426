package wire

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/indigo-protocol/indigo-go/pkg/log"
	"github.com/indigo-protocol/indigo-go/pkg/model"
	"github.com/indigo-protocol/indigo-go/pkg/version"
)

// element is one fully read XML element.
type element struct {
	name     string
	attr     map[string]string
	text     string
	children []*element
}

func (el *element) get(name string) string {
	return el.attr[name]
}

func (el *element) getFloat(name string) float64 {
	v, err := strconv.ParseFloat(el.attr[name], 64)
	if err != nil {
		return 0
	}
	return v
}

func (el *element) getInt64(name string) int64 {
	v, err := strconv.ParseInt(el.attr[name], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Tokenizer reads a rootless stream of XML elements and yields one
// decoded Message per top-level element. The stream has no enclosing
// document; elements simply follow each other, so the tokenizer never
// needs the whole input up front and blocks only on the underlying
// reader.
//
// Tokenizer is not safe for concurrent use; it belongs to the one read
// loop that owns the connection.
type Tokenizer struct {
	br     *bufio.Reader
	dec    *xml.Decoder
	policy Policy

	logger log.Logger
	connID string
}

// NewTokenizer creates a tokenizer with the given recovery policy.
func NewTokenizer(r io.Reader, policy Policy) *Tokenizer {
	br := bufio.NewReader(r)
	return &Tokenizer{
		br: br,
		// A bufio.Reader is an io.ByteReader, so the XML decoder reads
		// it directly without its own buffer; resync then cannot lose
		// bytes the decoder had already consumed.
		dec:    xml.NewDecoder(br),
		policy: policy,
	}
}

// SetLogger enables protocol logging for this tokenizer.
// The connectionID is included in all log events.
func (t *Tokenizer) SetLogger(logger log.Logger, connectionID string) {
	t.logger = logger
	t.connID = connectionID
}

// Next returns the next complete element as a Message. It blocks until
// a full element is available and returns io.EOF when the stream ends.
// Under PolicyStrict the first syntax error is returned instead of
// being skipped.
func (t *Tokenizer) Next() (*Message, error) {
	for {
		tok, err := t.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			if t.policy == PolicyStrict {
				return nil, fmt.Errorf("tokenize: %w", err)
			}
			t.logError(err, "tokenize")
			if rerr := t.resync(); rerr != nil {
				if errors.Is(rerr, io.EOF) {
					return nil, io.EOF
				}
				return nil, fmt.Errorf("tokenize: %w", rerr)
			}
			continue
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			// Stray text and processing instructions between elements.
			continue
		}

		el, err := t.readElement(se)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			if t.policy == PolicyStrict {
				return nil, fmt.Errorf("tokenize %s: %w", se.Name.Local, err)
			}
			t.logError(err, "tokenize")
			if rerr := t.resync(); rerr != nil {
				if errors.Is(rerr, io.EOF) {
					return nil, io.EOF
				}
				return nil, fmt.Errorf("tokenize: %w", rerr)
			}
			continue
		}

		msg := elementToMessage(el)
		t.logMessage(msg)
		return msg, nil
	}
}

// readElement consumes tokens through the matching end tag.
func (t *Tokenizer) readElement(se xml.StartElement) (*element, error) {
	el := &element{name: se.Name.Local, attr: make(map[string]string, len(se.Attr))}
	for _, a := range se.Attr {
		el.attr[a.Name.Local] = a.Value
	}

	var text strings.Builder
	for {
		tok, err := t.dec.Token()
		if err != nil {
			return nil, err
		}
		switch tt := tok.(type) {
		case xml.StartElement:
			child, err := t.readElement(tt)
			if err != nil {
				return nil, err
			}
			el.children = append(el.children, child)
		case xml.CharData:
			text.Write(tt)
		case xml.EndElement:
			el.text = strings.TrimSpace(text.String())
			return el, nil
		}
	}
}

// resync drops input up to the next '<' and restarts the decoder.
// Stopping before the '<' keeps a well-formed element that follows the
// bad one intact; the xml decoder latches its first error, so skipping
// means rebuilding it over the shared buffered reader.
func (t *Tokenizer) resync() error {
	for {
		b, err := t.br.ReadByte()
		if err != nil {
			return err
		}
		if b == '<' {
			if err := t.br.UnreadByte(); err != nil {
				return err
			}
			break
		}
	}
	t.dec = xml.NewDecoder(t.br)
	return nil
}

func (t *Tokenizer) logMessage(msg *Message) {
	if t.logger == nil {
		return
	}
	t.logger.Log(makeMessageEvent(log.DirectionIn, log.EncodingXML, t.connID, msg, nil))
}

func (t *Tokenizer) logError(err error, context string) {
	if t.logger == nil {
		return
	}
	t.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: t.connID,
		Direction:    log.DirectionIn,
		Encoding:     log.EncodingXML,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Encoding: log.EncodingXML,
			Message:  err.Error(),
			Context:  context,
		},
	})
}

// elementToMessage maps one element to its Message variant.
func elementToMessage(el *element) *Message {
	if t, k, ok := ParseVectorKey(el.name); ok {
		switch t {
		case TypeDef:
			return defFromElement(el, k)
		case TypeSet:
			return setFromElement(el, k)
		case TypeNew:
			return newFromElement(el, k)
		}
	}

	switch el.name {
	case TagGetProperties:
		gp := &GetProperties{
			Client: el.get("client"),
			Device: el.get("device"),
			Name:   el.get("name"),
			Switch: el.get("switch"),
		}
		if v, err := version.Parse(el.get("version")); err == nil {
			gp.Version = v.Wire()
		}
		return &Message{Type: TypeGetProperties, GetProperties: gp}

	case TagMessage:
		return &Message{Type: TypeMessage, Notice: &Notice{
			Device:    el.get("device"),
			Message:   el.get("message"),
			Timestamp: el.get("timestamp"),
		}}

	case TagDeleteProperty:
		return &Message{Type: TypeDelete, Delete: &DeleteProperty{
			Device:    el.get("device"),
			Name:      el.get("name"),
			Timestamp: el.get("timestamp"),
			Message:   el.get("message"),
		}}

	case TagSwitchProtocol:
		return &Message{Type: TypeSwitchProtocol, SwitchProtocol: &SwitchProtocol{
			Version: el.get("version"),
		}}

	default:
		return &Message{Type: TypeUnknown, UnknownKey: el.name}
	}
}

func defFromElement(el *element, k model.Kind) *Message {
	def := &DefVector{
		Device:    el.get("device"),
		Name:      el.get("name"),
		Group:     el.get("group"),
		Label:     el.get("label"),
		State:     el.get("state"),
		Perm:      el.get("perm"),
		Rule:      el.get("rule"),
		Hints:     el.get("hints"),
		Timeout:   el.getFloat("timeout"),
		Timestamp: el.get("timestamp"),
		Message:   el.get("message"),
	}

	childName := "def" + k.String()
	for _, c := range el.children {
		if c.name != childName {
			continue
		}
		def.Items = append(def.Items, DefItem{
			Name:   c.get("name"),
			Label:  c.get("label"),
			Hints:  c.get("hints"),
			Value:  c.text,
			Format: c.get("format"),
			Min:    c.get("min"),
			Max:    c.get("max"),
			Step:   c.get("step"),
		})
	}
	return &Message{Type: TypeDef, ValueKind: k, Def: def}
}

func setFromElement(el *element, k model.Kind) *Message {
	set := &SetVector{
		Device:    el.get("device"),
		Name:      el.get("name"),
		State:     el.get("state"),
		Timeout:   el.getFloat("timeout"),
		Timestamp: el.get("timestamp"),
		Message:   el.get("message"),
	}

	childName := "one" + k.String()
	for _, c := range el.children {
		if c.name != childName {
			continue
		}
		set.Items = append(set.Items, SetItem{
			Name:   c.get("name"),
			Value:  c.text,
			Size:   c.getInt64("size"),
			Format: c.get("format"),
			URL:    c.get("url"),
		})
	}
	return &Message{Type: TypeSet, ValueKind: k, Set: set}
}

func newFromElement(el *element, k model.Kind) *Message {
	nv := &NewVector{
		Device:    el.get("device"),
		Name:      el.get("name"),
		Timestamp: el.get("timestamp"),
	}

	childName := "one" + k.String()
	for _, c := range el.children {
		if c.name != childName {
			continue
		}
		nv.Items = append(nv.Items, NewItem{
			Name:   c.get("name"),
			Value:  c.text,
			Size:   c.getInt64("size"),
			Format: c.get("format"),
			URL:    c.get("url"),
		})
	}
	return &Message{Type: TypeNew, ValueKind: k, New: nv}
}

var (
	attrEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"'", "&apos;",
	)
	textEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
)

// Writer emits messages as XML elements in the conventional layout:
// one element per message, items indented two spaces, values as element
// text. WriteMessage serializes concurrent writers; it is safe to call
// from any goroutine.
type Writer struct {
	w  io.Writer
	mu sync.Mutex

	logger log.Logger
	connID string
}

// NewWriter creates a writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// SetLogger enables protocol logging for this writer.
// The connectionID is included in all log events.
func (w *Writer) SetLogger(logger log.Logger, connectionID string) {
	w.logger = logger
	w.connID = connectionID
}

// WriteMessage serializes one message and writes it to the stream.
func (w *Writer) WriteMessage(msg *Message) error {
	var sb strings.Builder
	switch msg.Type {
	case TypeDef:
		writeDefXML(&sb, msg)
	case TypeSet:
		writeSetXML(&sb, msg)
	case TypeNew:
		writeNewXML(&sb, msg)
	case TypeGetProperties:
		writeGetPropertiesXML(&sb, msg.GetProperties)
	case TypeMessage:
		writeNoticeXML(&sb, msg.Notice)
	case TypeDelete:
		writeDeleteXML(&sb, msg.Delete)
	case TypeSwitchProtocol:
		fmt.Fprintf(&sb, "<switchProtocol version='%s'/>\n", attrEscaper.Replace(msg.SwitchProtocol.Version))
	default:
		return fmt.Errorf("unencodable message type %d", msg.Type)
	}

	data := []byte(sb.String())

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Key(), err)
	}

	if w.logger != nil {
		w.logger.Log(makeMessageEvent(log.DirectionOut, log.EncodingXML, w.connID, msg, data))
	}
	return nil
}

func writeAttr(sb *strings.Builder, name, value string) {
	sb.WriteByte(' ')
	sb.WriteString(name)
	sb.WriteString("='")
	sb.WriteString(attrEscaper.Replace(value))
	sb.WriteByte('\'')
}

func writeDefXML(sb *strings.Builder, msg *Message) {
	def := msg.Def
	tag := msg.Key()
	kind := msg.ValueKind

	sb.WriteByte('<')
	sb.WriteString(tag)
	writeAttr(sb, "device", def.Device)
	writeAttr(sb, "name", def.Name)
	writeAttr(sb, "group", def.Group)
	writeAttr(sb, "label", def.Label)
	writeAttr(sb, "state", def.State)
	if kind != model.KindLight {
		writeAttr(sb, "perm", def.Perm)
		writeAttr(sb, "timeout", strconv.FormatFloat(def.Timeout, 'g', -1, 64))
	}
	if kind == model.KindSwitch {
		writeAttr(sb, "rule", def.Rule)
	}
	if def.Hints != "" {
		writeAttr(sb, "hints", def.Hints)
	}
	sb.WriteString(">\n")

	child := "def" + kind.String()
	for _, it := range def.Items {
		sb.WriteString("  <")
		sb.WriteString(child)
		writeAttr(sb, "name", it.Name)
		writeAttr(sb, "label", it.Label)
		if it.Hints != "" {
			writeAttr(sb, "hints", it.Hints)
		}
		if kind == model.KindNumber {
			writeAttr(sb, "format", it.Format)
			writeAttr(sb, "min", Text(it.Min))
			writeAttr(sb, "max", Text(it.Max))
			writeAttr(sb, "step", Text(it.Step))
		}
		sb.WriteByte('>')
		sb.WriteString(textEscaper.Replace(ValueText(kind, it.Value)))
		sb.WriteString("</")
		sb.WriteString(child)
		sb.WriteString(">\n")
	}

	sb.WriteString("</")
	sb.WriteString(tag)
	sb.WriteString(">\n")
}

func writeSetXML(sb *strings.Builder, msg *Message) {
	set := msg.Set
	tag := msg.Key()
	kind := msg.ValueKind

	ts := set.Timestamp
	if ts == "" {
		ts = model.Now()
	}

	sb.WriteByte('<')
	sb.WriteString(tag)
	writeAttr(sb, "device", set.Device)
	writeAttr(sb, "name", set.Name)
	writeAttr(sb, "state", set.State)
	writeAttr(sb, "timestamp", ts)
	if set.Message != "" {
		writeAttr(sb, "message", set.Message)
	}
	sb.WriteString(">\n")

	child := "one" + kind.String()
	for _, it := range set.Items {
		sb.WriteString("  <")
		sb.WriteString(child)
		writeAttr(sb, "name", it.Name)
		if kind == model.KindBLOB {
			writeAttr(sb, "size", strconv.FormatInt(it.Size, 10))
			writeAttr(sb, "format", it.Format)
			if it.URL != "" {
				writeAttr(sb, "url", it.URL)
			}
		}
		sb.WriteByte('>')
		sb.WriteString(textEscaper.Replace(ValueText(kind, it.Value)))
		sb.WriteString("</")
		sb.WriteString(child)
		sb.WriteString(">\n")
	}

	sb.WriteString("</")
	sb.WriteString(tag)
	sb.WriteString(">\n")
}

func writeNewXML(sb *strings.Builder, msg *Message) {
	nv := msg.New
	tag := msg.Key()
	kind := msg.ValueKind

	sb.WriteByte('<')
	sb.WriteString(tag)
	writeAttr(sb, "device", nv.Device)
	writeAttr(sb, "name", nv.Name)
	if nv.Timestamp != "" {
		writeAttr(sb, "timestamp", nv.Timestamp)
	}
	sb.WriteString(">\n")

	child := "one" + kind.String()
	for _, it := range nv.Items {
		sb.WriteString("  <")
		sb.WriteString(child)
		writeAttr(sb, "name", it.Name)
		if kind == model.KindBLOB {
			if it.Size > 0 {
				writeAttr(sb, "size", strconv.FormatInt(it.Size, 10))
			}
			if it.Format != "" {
				writeAttr(sb, "format", it.Format)
			}
			if it.URL != "" {
				writeAttr(sb, "url", it.URL)
			}
		}
		sb.WriteByte('>')
		sb.WriteString(textEscaper.Replace(ValueText(kind, it.Value)))
		sb.WriteString("</")
		sb.WriteString(child)
		sb.WriteString(">\n")
	}

	sb.WriteString("</")
	sb.WriteString(tag)
	sb.WriteString(">\n")
}

func writeGetPropertiesXML(sb *strings.Builder, gp *GetProperties) {
	sb.WriteString("<getProperties")
	v := gp.Version
	if v == 0 {
		v = version.CurrentWire
	}
	writeAttr(sb, "version", version.FromWire(v).String())
	if gp.Switch != "" {
		writeAttr(sb, "switch", gp.Switch)
	}
	if gp.Client != "" {
		writeAttr(sb, "client", gp.Client)
	}
	if gp.Device != "" {
		writeAttr(sb, "device", gp.Device)
	}
	if gp.Name != "" {
		writeAttr(sb, "name", gp.Name)
	}
	sb.WriteString("/>\n")
}

func writeNoticeXML(sb *strings.Builder, n *Notice) {
	sb.WriteString("<message")
	if n.Device != "" {
		writeAttr(sb, "device", n.Device)
	}
	if n.Timestamp != "" {
		writeAttr(sb, "timestamp", n.Timestamp)
	}
	writeAttr(sb, "message", n.Message)
	sb.WriteString("/>\n")
}

func writeDeleteXML(sb *strings.Builder, d *DeleteProperty) {
	sb.WriteString("<deleteProperty")
	writeAttr(sb, "device", d.Device)
	if d.Name != "" {
		writeAttr(sb, "name", d.Name)
	}
	if d.Timestamp != "" {
		writeAttr(sb, "timestamp", d.Timestamp)
	}
	if d.Message != "" {
		writeAttr(sb, "message", d.Message)
	}
	sb.WriteString("/>\n")
}
