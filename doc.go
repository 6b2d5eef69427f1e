// Package wayland implements a pure Go Wayland client engine.
//
// It is generic: the set of interfaces, requests, events, enums and
// argument types is not compiled in. Instead it is loaded at runtime from
// one or more protocol XML descriptions (the base wayland.xml is always
// required). The package owns the wire codec, the protocol loader, the
// object registry, the request marshaller and the event demultiplexer, and
// it boots the wl_display/wl_registry objects that every connection needs.
//
// This package communicates directly with the compositor over a Unix
// domain socket, without linking against libwayland-client, so it builds
// with zero CGO on Linux.
//
// # Wire protocol
//
// Wayland messages consist of an 8-byte header (object id, size, opcode)
// followed by arguments, all little-endian and 4-byte aligned:
//
//	+--------+--------+--------+--------+
//	| Object ID (4 bytes)               |
//	+--------+--------+--------+--------+
//	| Size (16 bits) | Opcode (16 bits) |
//	+--------+--------+--------+--------+
//	| Arguments...                      |
//	+--------+--------+--------+--------+
//
// Argument types: int, uint, fixed (24.8 fixed point), string
// (length-prefixed, NUL-terminated, padded), object, new_id, array
// (length-prefixed, padded) and fd (out-of-band via SCM_RIGHTS, never on
// the byte stream itself).
//
// # Usage
//
//	client, err := wayland.NewClient([]string{"/usr/share/wayland/wayland.xml"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	compositor, err := client.Bind("wl_compositor", 5)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	surface, err := compositor.Invoke("create_surface")
//
// Binding by interface name returns a live Object; requests are invoked by
// name and decoded events are delivered to handlers registered with
// Object.On. Driving I/O (reading the socket when it becomes readable) is
// the caller's responsibility — see Client.Fd and Client.Pump.
package wayland
