package wayland

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ID is a Wayland object identifier. 0 denotes null.
type ID uint32

// Opcode selects a request (outbound) or event (inbound) within an
// object's interface, by declaration order.
type Opcode uint16

// Fixed is a 24.8 signed fixed-point number packed into 32 bits.
type Fixed int32

// FixedFromFloat converts a float64 to its Fixed representation, flooring
// toward negative infinity so the result matches spec.md §3's
// (integer_part<<8)|fractional_byte formula exactly for negative values
// (e.g. -0.001 becomes -1/256, not 0 as rounding toward zero would give).
func FixedFromFloat(f float64) Fixed {
	const maxVal = float64(math.MaxInt32) / 256.0
	const minVal = float64(math.MinInt32) / 256.0
	if f > maxVal {
		f = maxVal
	} else if f < minVal {
		f = minVal
	}
	return Fixed(int32(math.Floor(f * 256.0)))
}

// Float returns the Fixed value as a float64.
func (f Fixed) Float() float64 {
	return float64(f) / 256.0
}

// headerSize is the fixed wire size of a Wayland message header.
const headerSize = 8

// maxMessageSize is the largest frame the codec will accept, matching the
// 16-bit size field's range.
const maxMessageSize = 1<<16 - 1

func paddingFor(n int) int {
	return (4 - (n % 4)) % 4
}

// encodeHeader writes the 8-byte frame header: object id, then
// size(16)|opcode(16) packed into the following uint32.
func encodeHeader(buf []byte, id ID, opcode Opcode, size int) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(id))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(size)<<16|uint32(opcode))
}

// decodeHeader reads the 8-byte frame header. It never returns a
// short-read error: callers are expected to have confirmed len(buf) >= 8.
func decodeHeader(buf []byte) (id ID, opcode Opcode, size int) {
	id = ID(binary.LittleEndian.Uint32(buf[0:4]))
	word := binary.LittleEndian.Uint32(buf[4:8])
	size = int(word >> 16)
	opcode = Opcode(word & 0xffff)
	return
}

// Encoder appends wire-format primitives to a growable byte buffer. It
// produces exactly the padded on-wire length for every primitive: 4 bytes
// for fixed-width types, 4+payload+pad for string/array.
type Encoder struct {
	buf []byte
	fds []int
}

// NewEncoder returns an Encoder with the given initial capacity.
func NewEncoder(capacity int) *Encoder {
	return &Encoder{buf: make([]byte, 0, capacity)}
}

// Reset clears the encoder for reuse.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
	e.fds = e.fds[:0]
}

// Bytes returns the accumulated payload bytes (header not included).
func (e *Encoder) Bytes() []byte { return e.buf }

// FDs returns the file descriptors queued via PutFD, in declared order.
func (e *Encoder) FDs() []int { return e.fds }

// PutInt appends a signed 32-bit integer.
func (e *Encoder) PutInt(v int32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(v))
}

// PutUint appends an unsigned 32-bit integer.
func (e *Encoder) PutUint(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

// PutFixed appends a 24.8 fixed-point number.
func (e *Encoder) PutFixed(v Fixed) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(v))
}

// PutObject appends an object id (0 for null).
func (e *Encoder) PutObject(id ID) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(id))
}

// PutNewID appends a new_id argument whose interface is already pinned by
// the protocol template (just the allocated id).
func (e *Encoder) PutNewID(id ID) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(id))
}

// PutNewIDInline appends the unpinned new_id triple used by
// wl_registry.bind: interface name, version, then the allocated id.
func (e *Encoder) PutNewIDInline(iface string, version uint32, id ID) {
	e.PutString(iface)
	e.PutUint(version)
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(id))
}

// PutString appends a length-prefixed, NUL-terminated, 4-byte-padded
// string. The length prefix counts the trailing NUL.
func (e *Encoder) PutString(s string) {
	length := uint32(len(s) + 1)
	e.buf = binary.LittleEndian.AppendUint32(e.buf, length)
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
	pad := paddingFor(int(length))
	for i := 0; i < pad; i++ {
		e.buf = append(e.buf, 0)
	}
}

// PutArray appends a length-prefixed, 4-byte-padded byte array. No
// terminator is added; the length prefix is the exact byte count.
func (e *Encoder) PutArray(data []byte) {
	length := uint32(len(data))
	e.buf = binary.LittleEndian.AppendUint32(e.buf, length)
	e.buf = append(e.buf, data...)
	pad := paddingFor(int(length))
	for i := 0; i < pad; i++ {
		e.buf = append(e.buf, 0)
	}
}

// PutFD queues a file descriptor to be carried out-of-band via SCM_RIGHTS;
// it contributes nothing to the byte stream.
func (e *Encoder) PutFD(fd int) {
	e.fds = append(e.fds, fd)
}

// EncodeFrame prepends the 8-byte header to the encoder's accumulated
// payload and returns the complete frame bytes.
func (e *Encoder) EncodeFrame(id ID, opcode Opcode) ([]byte, error) {
	total := headerSize + len(e.buf)
	if total > maxMessageSize {
		return nil, fmt.Errorf("wayland: frame of %d bytes exceeds %d byte limit", total, maxMessageSize)
	}
	frame := make([]byte, headerSize, total)
	encodeHeader(frame, id, opcode, total)
	frame = append(frame, e.buf...)
	return frame, nil
}

// Decoder reads wire-format primitives out of a fixed byte slice,
// reporting the number of bytes each read consumed via the cursor it
// maintains internally (see Offset).
type Decoder struct {
	buf    []byte
	offset int
	fds    []int
	fdIdx  int
}

// NewDecoder returns a Decoder over buf, with any file descriptors
// received alongside it (consumed FIFO by Decoder.FD).
func NewDecoder(buf []byte, fds []int) *Decoder {
	return &Decoder{buf: buf, fds: fds}
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int { return d.offset }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.buf) - d.offset }

var errShortRead = fmt.Errorf("wayland: short read")

func (d *Decoder) need(n int) error {
	if d.offset+n > len(d.buf) {
		return errShortRead
	}
	return nil
}

// Int reads a signed 32-bit integer.
func (d *Decoder) Int() (int32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := int32(binary.LittleEndian.Uint32(d.buf[d.offset:]))
	d.offset += 4
	return v, nil
}

// Uint reads an unsigned 32-bit integer.
func (d *Decoder) Uint() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.offset:])
	d.offset += 4
	return v, nil
}

// FixedArg reads a 24.8 fixed-point number.
func (d *Decoder) FixedArg() (Fixed, error) {
	v, err := d.Uint()
	return Fixed(v), err
}

// Object reads an object id.
func (d *Decoder) Object() (ID, error) {
	v, err := d.Uint()
	return ID(v), err
}

// NewIDArg reads a pinned new_id (just the allocated id).
func (d *Decoder) NewIDArg() (ID, error) {
	return d.Object()
}

// String reads a length-prefixed, NUL-terminated, padded string. The
// returned value excludes the terminator.
func (d *Decoder) String() (string, error) {
	length, err := d.Uint()
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}
	padded := int(length) + paddingFor(int(length))
	if err := d.need(padded); err != nil {
		return "", err
	}
	s := string(d.buf[d.offset : d.offset+int(length)-1])
	d.offset += padded
	return s, nil
}

// Array reads a length-prefixed, padded byte array with no terminator.
func (d *Decoder) Array() ([]byte, error) {
	length, err := d.Uint()
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	padded := int(length) + paddingFor(int(length))
	if err := d.need(padded); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, d.buf[d.offset:d.offset+int(length)])
	d.offset += padded
	return out, nil
}

// FD pops the next file descriptor carried alongside this message. fd
// arguments are never encoded in the byte stream; they are consumed FIFO,
// in the declared order of the fd-typed arguments.
func (d *Decoder) FD() (int, error) {
	if d.fdIdx >= len(d.fds) {
		return -1, fmt.Errorf("wayland: no file descriptor available to decode")
	}
	fd := d.fds[d.fdIdx]
	d.fdIdx++
	return fd, nil
}
