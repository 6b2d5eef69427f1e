package wayland

import (
	"encoding/xml"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// --- raw XML shape, mirroring the wayland protocol schema -----------------

type xmlProtocol struct {
	XMLName    xml.Name       `xml:"protocol"`
	Name       string         `xml:"name,attr"`
	Copyright  string         `xml:"copyright"`
	Interfaces []xmlInterface `xml:"interface"`
}

type xmlInterface struct {
	Name     string       `xml:"name,attr"`
	Version  uint32       `xml:"version,attr"`
	Requests []xmlMessage `xml:"request"`
	Events   []xmlMessage `xml:"event"`
	Enums    []xmlEnum    `xml:"enum"`
}

type xmlMessage struct {
	Name    string  `xml:"name,attr"`
	Summary string  `xml:"summary,attr"`
	Args    []xmlArg `xml:"arg"`
}

type xmlArg struct {
	Name      string `xml:"name,attr"`
	Type      string `xml:"type,attr"`
	Interface string `xml:"interface,attr"`
	AllowNull bool   `xml:"allow-null,attr"`
	Summary   string `xml:"summary,attr"`
}

type xmlEnum struct {
	Name     string    `xml:"name,attr"`
	Bitfield bool      `xml:"bitfield,attr"`
	Entries  []xmlEntry `xml:"entry"`
}

type xmlEntry struct {
	Name    string `xml:"name,attr"`
	Value   string `xml:"value,attr"`
	Summary string `xml:"summary,attr"`
}

// --- materialised templates -------------------------------------------------

// ArgTemplate describes one declared argument of a request or event.
type ArgTemplate struct {
	Name      string
	Type      string // raw XML type string (int, uint, fixed, ...)
	Kind      Kind
	Interface string // pinned interface name for object/new_id args, if any
	AllowNull bool
	Summary   string
}

// MessageTemplate describes one declared request or event. Its opcode is
// implied by its position within InterfaceTemplate.Requests/Events.
type MessageTemplate struct {
	Name    string
	Summary string
	Args    []ArgTemplate
}

// EnumEntry is one named value within an enum.
type EnumEntry struct {
	Name    string
	Value   uint32
	Summary string
}

// EnumTemplate describes one declared enum, sorted ascending by value.
type EnumTemplate struct {
	Name     string
	Bitfield bool
	Entries  []EnumEntry
}

// InterfaceTemplate is the immutable, loaded description of one Wayland
// interface: its name, version, and ordered requests/events/enums.
// Opcodes are the declaration order of the XML children.
type InterfaceTemplate struct {
	Name     string
	Version  uint32
	Requests []MessageTemplate
	Events   []MessageTemplate
	Enums    []EnumTemplate

	requestIndex map[string]int
	eventIndex   map[string]int
}

// RequestOpcode returns the opcode for a named request and whether it
// exists on this interface.
func (t *InterfaceTemplate) RequestOpcode(name string) (Opcode, bool) {
	i, ok := t.requestIndex[name]
	return Opcode(i), ok
}

// EventOpcode returns the opcode for a named event and whether it exists
// on this interface.
func (t *InterfaceTemplate) EventOpcode(name string) (Opcode, bool) {
	i, ok := t.eventIndex[name]
	return Opcode(i), ok
}

// EventByOpcode returns the event template valid at the given opcode, or
// ok=false if the opcode indexes no declared event (spec.md §4, invariant 4).
func (t *InterfaceTemplate) EventByOpcode(op Opcode) (MessageTemplate, bool) {
	if int(op) < 0 || int(op) >= len(t.Events) {
		return MessageTemplate{}, false
	}
	return t.Events[op], true
}

// Protocol is an immutable, named collection of interface templates
// loaded from one XML document.
type Protocol struct {
	Name       string
	Copyright  string
	Interfaces map[string]*InterfaceTemplate
}

// LoadProtocol parses a single Wayland protocol XML description from path.
func LoadProtocol(path string) (*Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ProtocolError{Kind: ErrProtocolNotFound, Path: path}
		}
		return nil, &ProtocolError{Kind: ErrProtocolNotFound, Path: path, Detail: err.Error()}
	}

	var raw xmlProtocol
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, &ProtocolError{Kind: ErrProtocolMalformed, Path: path, Detail: err.Error()}
	}

	p := &Protocol{
		Name:       raw.Name,
		Copyright:  raw.Copyright,
		Interfaces: make(map[string]*InterfaceTemplate, len(raw.Interfaces)),
	}

	for _, xi := range raw.Interfaces {
		it, err := buildInterface(xi)
		if err != nil {
			return nil, &ProtocolError{Kind: ErrProtocolSchema, Path: path, Detail: err.Error()}
		}
		p.Interfaces[it.Name] = it
	}

	return p, nil
}

func buildInterface(xi xmlInterface) (*InterfaceTemplate, error) {
	it := &InterfaceTemplate{
		Name:         xi.Name,
		Version:      xi.Version,
		requestIndex: make(map[string]int, len(xi.Requests)),
		eventIndex:   make(map[string]int, len(xi.Events)),
	}

	for i, xr := range xi.Requests {
		mt, err := buildMessage(xr)
		if err != nil {
			return nil, fmt.Errorf("interface %s request %s: %w", xi.Name, xr.Name, err)
		}
		it.Requests = append(it.Requests, mt)
		it.requestIndex[xr.Name] = i
	}

	for i, xe := range xi.Events {
		mt, err := buildMessage(xe)
		if err != nil {
			return nil, fmt.Errorf("interface %s event %s: %w", xi.Name, xe.Name, err)
		}
		it.Events = append(it.Events, mt)
		it.eventIndex[xe.Name] = i
	}

	for _, xenum := range xi.Enums {
		et, err := buildEnum(xenum)
		if err != nil {
			return nil, fmt.Errorf("interface %s enum %s: %w", xi.Name, xenum.Name, err)
		}
		it.Enums = append(it.Enums, et)
	}

	return it, nil
}

func buildMessage(xm xmlMessage) (MessageTemplate, error) {
	mt := MessageTemplate{Name: xm.Name, Summary: xm.Summary}
	for _, xa := range xm.Args {
		kind, ok := kindForWireType(xa.Type)
		if !ok {
			return MessageTemplate{}, fmt.Errorf("%w: unknown arg type %q for %q", ErrProtocolSchema, xa.Type, xa.Name)
		}
		mt.Args = append(mt.Args, ArgTemplate{
			Name:      xa.Name,
			Type:      xa.Type,
			Kind:      kind,
			Interface: xa.Interface,
			AllowNull: xa.AllowNull,
			Summary:   xa.Summary,
		})
	}
	return mt, nil
}

func buildEnum(xe xmlEnum) (EnumTemplate, error) {
	et := EnumTemplate{Name: xe.Name, Bitfield: xe.Bitfield}
	for _, xen := range xe.Entries {
		v, err := strconv.ParseUint(xen.Value, 0, 32)
		if err != nil {
			return EnumTemplate{}, fmt.Errorf("entry %s: invalid value %q: %w", xen.Name, xen.Value, err)
		}
		et.Entries = append(et.Entries, EnumEntry{Name: xen.Name, Value: uint32(v), Summary: xen.Summary})
	}
	sort.Slice(et.Entries, func(i, j int) bool { return et.Entries[i].Value < et.Entries[j].Value })
	return et, nil
}

// mergeProtocols folds every interface of every supplied protocol into one
// lookup table, keyed by interface name. Interfaces from later protocols
// override earlier ones of the same name (an extension replacing a stub).
func mergeProtocols(protocols []*Protocol) map[string]*InterfaceTemplate {
	merged := make(map[string]*InterfaceTemplate)
	for _, p := range protocols {
		for name, it := range p.Interfaces {
			merged[name] = it
		}
	}
	return merged
}
