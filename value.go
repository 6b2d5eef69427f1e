package wayland

import "fmt"

// Kind tags the dynamic type of an Invoke/event argument. It mirrors the
// eight wire primitive types named in the protocol schema.
type Kind uint8

const (
	KindInt Kind = iota
	KindUint
	KindFixed
	KindString
	KindObject
	KindNewID
	KindArray
	KindFD
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFixed:
		return "fixed"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindNewID:
		return "new_id"
	case KindArray:
		return "array"
	case KindFD:
		return "fd"
	default:
		return "unknown"
	}
}

func kindForWireType(wireType string) (Kind, bool) {
	switch wireType {
	case "int":
		return KindInt, true
	case "uint":
		return KindUint, true
	case "fixed":
		return KindFixed, true
	case "string":
		return KindString, true
	case "object":
		return KindObject, true
	case "new_id":
		return KindNewID, true
	case "array":
		return KindArray, true
	case "fd":
		return KindFD, true
	default:
		return 0, false
	}
}

// Value is a tagged variant over the eight wire argument types. Values are
// constructed by the Int/Uint/Fixed/... helpers below and decoded off the
// wire into the same shape, so encode and decode share one representation
// instead of duck-typing through interface{}.
type Value struct {
	Kind Kind

	i    int32
	u    uint32
	fix  Fixed
	str  string
	obj  ID
	arr  []byte
	fd   int

	// NewIDInterface/NewIDVersion are only set for the unpinned new_id
	// triple used by wl_registry.bind.
	NewIDInterface string
	NewIDVersion   uint32
}

func Int(v int32) Value      { return Value{Kind: KindInt, i: v} }
func Uint(v uint32) Value    { return Value{Kind: KindUint, u: v} }
func FixedVal(v Fixed) Value { return Value{Kind: KindFixed, fix: v} }
func String(v string) Value  { return Value{Kind: KindString, str: v} }
func ObjectVal(v ID) Value   { return Value{Kind: KindObject, obj: v} }
func NewIDVal(v ID) Value    { return Value{Kind: KindNewID, obj: v} }
func ArrayVal(v []byte) Value { return Value{Kind: KindArray, arr: v} }
func FDVal(v int) Value      { return Value{Kind: KindFD, fd: v} }

// NewIDInline builds the unpinned new_id triple used by wl_registry.bind,
// where the interface is chosen at runtime and not known statically from
// the XML.
func NewIDInline(iface string, version uint32, id ID) Value {
	return Value{Kind: KindNewID, obj: id, NewIDInterface: iface, NewIDVersion: version}
}

// Int returns the value's int32 payload; the caller is responsible for
// checking Kind first. The accessors never panic: reading a field that
// does not match Kind returns that field's zero value.
func (v Value) Int() int32      { return v.i }
func (v Value) Uint() uint32    { return v.u }
func (v Value) Fixed() Fixed    { return v.fix }
func (v Value) String() string  { return v.str }
func (v Value) Object() ID      { return v.obj }
func (v Value) NewID() ID       { return v.obj }
func (v Value) Array() []byte   { return v.arr }
func (v Value) FD() int         { return v.fd }

// encode writes v to e according to arg's wire type. Pinned new_id
// arguments (arg.Interface != "") encode just the id; the unpinned
// wl_registry.bind-style new_id encodes the inline (string, uint, uint)
// triple instead.
func (v Value) encode(e *Encoder, arg ArgTemplate) error {
	switch arg.Kind {
	case KindInt:
		e.PutInt(v.i)
	case KindUint:
		e.PutUint(v.u)
	case KindFixed:
		e.PutFixed(v.fix)
	case KindString:
		e.PutString(v.str)
	case KindObject:
		e.PutObject(v.obj)
	case KindNewID:
		if arg.Interface == "" {
			e.PutNewIDInline(v.NewIDInterface, v.NewIDVersion, v.obj)
		} else {
			e.PutNewID(v.obj)
		}
	case KindArray:
		e.PutArray(v.arr)
	case KindFD:
		e.PutFD(v.fd)
	default:
		return fmt.Errorf("wayland: unknown argument kind %v for %q", arg.Kind, arg.Name)
	}
	return nil
}

// decodeValue reads one argument of the given wire type from d.
func decodeValue(d *Decoder, arg ArgTemplate) (Value, error) {
	switch arg.Kind {
	case KindInt:
		x, err := d.Int()
		return Int(x), err
	case KindUint:
		x, err := d.Uint()
		return Uint(x), err
	case KindFixed:
		x, err := d.FixedArg()
		return FixedVal(x), err
	case KindString:
		x, err := d.String()
		return String(x), err
	case KindObject:
		x, err := d.Object()
		return ObjectVal(x), err
	case KindNewID:
		x, err := d.NewIDArg()
		return NewIDVal(x), err
	case KindArray:
		x, err := d.Array()
		return ArrayVal(x), err
	case KindFD:
		x, err := d.FD()
		return FDVal(x), err
	default:
		return Value{}, fmt.Errorf("wayland: unknown argument kind %v for %q", arg.Kind, arg.Name)
	}
}
