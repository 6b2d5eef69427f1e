package wayland

import "fmt"

// demux reassembles inbound datagrams into complete frames and dispatches
// each to its target object. The Unix domain socket is a byte stream, so
// one read may bundle more than one Wayland frame (the compositor commonly
// batches events) or stop partway through a frame; a residue buffer
// carries bytes from a partial trailing frame forward to the next read.
type demux struct {
	client *Client

	residue    []byte
	fds        []int
	fdsPending int
}

func newDemux(client *Client) *demux {
	return &demux{client: client}
}

// feed appends one datagram (bytes plus any fds carried alongside it) and
// dispatches every complete frame it can assemble from the residue. It
// returns a *DesyncError immediately on the first frame that names an
// unknown object or an opcode outside the object's declared events: the
// connection is unusable past that point (spec.md §4.F, invariant 4).
func (d *demux) feed(data []byte, fds []int) error {
	d.residue = append(d.residue, data...)
	d.fds = append(d.fds, fds...)

	for {
		if len(d.residue) < headerSize {
			return nil
		}
		_, _, size := decodeHeader(d.residue)
		if size < headerSize {
			return &DesyncError{Reason: fmt.Sprintf("declared frame size %d below header size", size)}
		}
		if len(d.residue) < size {
			return nil // wait for the rest of this frame
		}

		frame := d.residue[:size]
		d.residue = d.residue[size:]

		if err := d.dispatchFrame(frame); err != nil {
			return err
		}
	}
}

func (d *demux) dispatchFrame(frame []byte) error {
	id, opcode, _ := decodeHeader(frame)
	body := frame[headerSize:]

	obj, ok := d.client.objects.Lookup(id)
	if !ok {
		return &DesyncError{ObjectID: uint32(id), Opcode: uint16(opcode), Reason: "unknown object id"}
	}

	mt, ok := obj.template.EventByOpcode(opcode)
	if !ok {
		return &DesyncError{ObjectID: uint32(id), Opcode: uint16(opcode),
			Reason: fmt.Sprintf("opcode not declared on interface %s", obj.template.Name)}
	}

	fdCount := 0
	for _, a := range mt.Args {
		if a.Kind == KindFD {
			fdCount++
		}
	}
	var frameFDs []int
	if fdCount > 0 {
		if fdCount > len(d.fds) {
			return &DesyncError{ObjectID: uint32(id), Opcode: uint16(opcode),
				Reason: "fewer file descriptors available than the event declares"}
		}
		frameFDs = d.fds[:fdCount]
		d.fds = d.fds[fdCount:]
	}

	dec := NewDecoder(body, frameFDs)
	args := make([]Value, 0, len(mt.Args))
	for _, arg := range mt.Args {
		v, err := decodeValue(dec, arg)
		if err != nil {
			return &DesyncError{ObjectID: uint32(id), Opcode: uint16(opcode),
				Reason: fmt.Sprintf("decoding arg %q: %v", arg.Name, err)}
		}
		if arg.Kind == KindNewID && arg.Interface != "" {
			// A pinned new_id in an event announces a server-created object.
			if tmpl, ok := d.client.interfaceTemplate(arg.Interface); ok {
				d.client.objects.Insert(newObject(d.client, v.NewID(), tmpl, tmpl.Version))
			}
		}
		args = append(args, v)
	}

	if handled := d.client.handleDisplayEvent(obj, mt.Name, args); handled {
		return nil
	}

	obj.dispatch(mt.Name, args)
	return nil
}
