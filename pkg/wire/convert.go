package wire

import (
	"github.com/indigo-protocol/indigo-go/pkg/model"
)

// DefMessage builds the definition message announcing a property in its
// current state. The property should be attached to a device; a
// detached property defines with an empty device name.
func DefMessage(p *model.Property) *Message {
	kind := p.Kind()

	def := &DefVector{
		Device:    deviceName(p),
		Name:      p.Name(),
		Group:     p.Group(),
		Label:     p.Label(),
		State:     p.State().String(),
		Hints:     p.Hints(),
		Timestamp: p.Timestamp(),
	}
	if kind != model.KindLight {
		def.Perm = p.Perm().String()
		def.Timeout = p.Timeout()
	}
	if kind == model.KindSwitch {
		def.Rule = p.Rule().String()
	}

	for _, it := range p.Items() {
		item := DefItem{
			Name:  it.Name(),
			Label: it.Label(),
			Hints: it.Hints(),
			Value: it.Value(),
		}
		if kind == model.KindNumber {
			item.Format = it.Format()
			item.Min = it.Min()
			item.Max = it.Max()
			item.Step = it.Step()
		}
		def.Items = append(def.Items, item)
	}

	return &Message{Type: TypeDef, ValueKind: kind, Def: def}
}

// SetMessage builds the update message carrying a property's current
// item values and state. The timestamp is freshly generated; message is
// an optional note delivered alongside the update.
func SetMessage(p *model.Property, message string) *Message {
	kind := p.Kind()

	set := &SetVector{
		Device:    deviceName(p),
		Name:      p.Name(),
		State:     p.State().String(),
		Timeout:   p.Timeout(),
		Timestamp: model.Now(),
		Message:   message,
	}

	for _, it := range p.Items() {
		item := SetItem{
			Name:  it.Name(),
			Value: it.Value(),
		}
		if kind == model.KindNumber {
			item.Target = it.Target()
		}
		if kind == model.KindBLOB {
			item.Size = it.Size()
			item.Format = it.Format()
			item.URL = it.URL()
		}
		set.Items = append(set.Items, item)
	}

	return &Message{Type: TypeSet, ValueKind: kind, Set: set}
}

func deviceName(p *model.Property) string {
	if d := p.Device(); d != nil {
		return d.Name()
	}
	return ""
}
