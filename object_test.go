package wayland

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const compositorProtocolXML = `<?xml version="1.0" encoding="UTF-8"?>
<protocol name="compositor-sample">
  <interface name="wl_compositor" version="4">
    <request name="create_surface">
      <arg name="id" type="new_id" interface="wl_surface"/>
    </request>
  </interface>
  <interface name="wl_surface" version="4">
    <request name="destroy"/>
    <request name="set_opaque_region">
      <arg name="region" type="object" interface="wl_region" allow-null="true"/>
    </request>
    <event name="enter">
      <arg name="output" type="object"/>
    </event>
  </interface>
</protocol>
`

func loadProtocolString(t *testing.T, xml string) *Protocol {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "p.xml")
	if err := os.WriteFile(path, []byte(xml), 0o644); err != nil {
		t.Fatalf("write protocol: %v", err)
	}
	p, err := LoadProtocol(path)
	if err != nil {
		t.Fatalf("LoadProtocol: %v", err)
	}
	return p
}

func newTestClient(t *testing.T, xml string) (*Client, *conn) {
	t.Helper()
	proto := loadProtocolString(t, xml)
	a, b := newConnPair(t)

	client := &Client{
		conn:       a,
		ids:        newIDPool(),
		objects:    newObjectTable(),
		interfaces: proto.Interfaces,
		globals:    make(map[uint32]Global),
		pending:    make(map[ID]chan struct{}),
	}
	client.demux = newDemux(client)
	return client, b
}

func TestInvokeAllocatesNewIDAndEncodesFrame(t *testing.T) {
	client, peer := newTestClient(t, compositorProtocolXML)
	compositorTmpl := client.interfaces["wl_compositor"]
	compositor := newObject(client, 5, compositorTmpl, 4)
	client.objects.Insert(compositor)

	surface, err := compositor.Invoke("create_surface")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if surface == nil {
		t.Fatal("Invoke should return the newly created surface object")
	}
	if surface.Interface() != "wl_surface" {
		t.Errorf("surface.Interface() = %q, want wl_surface", surface.Interface())
	}
	if got, ok := client.objects.Lookup(surface.ID()); !ok || got != surface {
		t.Error("the new surface should be registered in the object table before the frame is sent")
	}

	data, _, err := peer.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	id, opcode, size := decodeHeader(data)
	if id != 5 || opcode != 0 {
		t.Errorf("frame header = (id=%d, opcode=%d), want (5, 0)", id, opcode)
	}
	if size != headerSize+4 {
		t.Errorf("frame size = %d, want %d", size, headerSize+4)
	}

	dec := NewDecoder(data[headerSize:], nil)
	encodedID, err := dec.Object()
	if err != nil || encodedID != surface.ID() {
		t.Errorf("encoded new_id = %v, %v, want %d, nil", encodedID, err, surface.ID())
	}
}

func TestInvokeUnknownRequest(t *testing.T) {
	client, _ := newTestClient(t, compositorProtocolXML)
	surfaceTmpl := client.interfaces["wl_surface"]
	surface := newObject(client, 6, surfaceTmpl, 4)
	client.objects.Insert(surface)

	if _, err := surface.Invoke("frobnicate"); !errors.Is(err, ErrUnknownRequest) {
		t.Fatalf("Invoke(unknown) = %v, want ErrUnknownRequest", err)
	}
}

func TestInvokeArityMismatch(t *testing.T) {
	client, _ := newTestClient(t, compositorProtocolXML)
	surfaceTmpl := client.interfaces["wl_surface"]
	surface := newObject(client, 6, surfaceTmpl, 4)
	client.objects.Insert(surface)

	if _, err := surface.Invoke("destroy", Int(1)); !errors.Is(err, ErrArgumentArity) {
		t.Fatalf("Invoke(destroy, extra arg) = %v, want ErrArgumentArity", err)
	}
}

func TestInvokeOnDestroyedObject(t *testing.T) {
	client, _ := newTestClient(t, compositorProtocolXML)
	surfaceTmpl := client.interfaces["wl_surface"]
	surface := newObject(client, 6, surfaceTmpl, 4)
	client.objects.Insert(surface)
	surface.markDestroyed()

	if _, err := surface.Invoke("destroy"); !errors.Is(err, ErrObjectDestroyed) {
		t.Fatalf("Invoke on destroyed object = %v, want ErrObjectDestroyed", err)
	}
}

func TestObjectOnDispatchesInRegistrationOrder(t *testing.T) {
	client, _ := newTestClient(t, compositorProtocolXML)
	surfaceTmpl := client.interfaces["wl_surface"]
	surface := newObject(client, 6, surfaceTmpl, 4)

	var order []int
	surface.On("enter", func(args []Value) { order = append(order, 1) })
	surface.On("enter", func(args []Value) { order = append(order, 2) })

	surface.dispatch("enter", []Value{ObjectVal(99)})

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("handler order = %v, want [1 2]", order)
	}
}

func TestObjectOffRemovesFirstOccurrence(t *testing.T) {
	client, _ := newTestClient(t, compositorProtocolXML)
	surfaceTmpl := client.interfaces["wl_surface"]
	surface := newObject(client, 6, surfaceTmpl, 4)

	var calls []int
	first := func(args []Value) { calls = append(calls, 1) }
	second := func(args []Value) { calls = append(calls, 2) }

	surface.On("enter", first)
	surface.On("enter", second)
	surface.On("enter", first)

	before := len(surface.handlers["enter"])

	surface.Off("enter", first)
	surface.dispatch("enter", []Value{ObjectVal(1)})

	if len(calls) != 2 || calls[0] != 2 || calls[1] != 1 {
		t.Errorf("dispatch after Off = %v, want [2 1] (only the first registered occurrence removed)", calls)
	}
	if got := len(surface.handlers["enter"]); got != before-1 {
		t.Errorf("handler count after Off = %d, want %d", got, before-1)
	}

	calls = nil
	surface.Off("enter", second)
	surface.Off("enter", first)
	surface.dispatch("enter", []Value{ObjectVal(1)})

	if len(calls) != 0 {
		t.Errorf("dispatch after removing every handler = %v, want none", calls)
	}
	if got := len(surface.handlers["enter"]); got != 0 {
		t.Errorf("handler count after removing every handler = %d, want 0 (pre-set state)", got)
	}

	surface.Off("enter", first) // already absent: must be a silent no-op
}

func TestObjectHandlerPanicDoesNotStopRemainingHandlers(t *testing.T) {
	client, _ := newTestClient(t, compositorProtocolXML)
	surfaceTmpl := client.interfaces["wl_surface"]
	surface := newObject(client, 6, surfaceTmpl, 4)

	ran := false
	surface.On("enter", func(args []Value) { panic("boom") })
	surface.On("enter", func(args []Value) { ran = true })

	surface.dispatch("enter", []Value{ObjectVal(1)})

	if !ran {
		t.Error("a panicking handler must not prevent later handlers from running")
	}
}
