package wayland

import (
	"fmt"
	"testing"
	"time"
)

const clientTestProtocolXML = `<?xml version="1.0" encoding="UTF-8"?>
<protocol name="client-sample">
  <interface name="wl_display" version="1">
    <request name="sync">
      <arg name="callback" type="new_id" interface="wl_callback"/>
    </request>
    <request name="get_registry">
      <arg name="registry" type="new_id" interface="wl_registry"/>
    </request>
    <event name="error">
      <arg name="object_id" type="object"/>
      <arg name="code" type="uint"/>
      <arg name="message" type="string"/>
    </event>
    <event name="delete_id">
      <arg name="id" type="uint"/>
    </event>
  </interface>
  <interface name="wl_registry" version="1">
    <request name="bind">
      <arg name="name" type="uint"/>
      <arg name="id" type="new_id"/>
    </request>
    <event name="global">
      <arg name="name" type="uint"/>
      <arg name="interface" type="string"/>
      <arg name="version" type="uint"/>
    </event>
    <event name="global_remove">
      <arg name="name" type="uint"/>
    </event>
  </interface>
  <interface name="wl_callback" version="1">
    <event name="done">
      <arg name="callback_data" type="uint"/>
    </event>
  </interface>
  <interface name="wl_compositor" version="5">
    <request name="create_surface">
      <arg name="id" type="new_id" interface="wl_surface"/>
    </request>
  </interface>
  <interface name="wl_surface" version="5">
    <request name="destroy"/>
  </interface>
</protocol>
`

func newFullTestClient(t *testing.T) (*Client, *conn) {
	t.Helper()
	client, peer := newTestClient(t, clientTestProtocolXML)
	client.syncTimeout = 2 * time.Second
	displayTmpl := client.interfaces["wl_display"]
	client.display = newObject(client, 1, displayTmpl, 1)
	client.objects.Insert(client.display)
	client.ids.next = 2

	registryTmpl := client.interfaces["wl_registry"]
	client.registry = newObject(client, 2, registryTmpl, 1)
	client.objects.Insert(client.registry)
	client.ids.next = 3

	client.globals[1] = Global{Name: 1, Interface: "wl_compositor", Version: 5}
	return client, peer
}

func TestClientSyncReleasesOnCallbackDone(t *testing.T) {
	client, peer := newFullTestClient(t)

	errCh := make(chan error, 1)
	go func() {
		data, _, err := peer.Recv()
		if err != nil {
			errCh <- err
			return
		}
		id, opcode, _ := decodeHeader(data)
		if id != 1 || opcode != 0 {
			errCh <- fmt.Errorf("unexpected request id=%d opcode=%d, want wl_display.sync", id, opcode)
			return
		}
		dec := NewDecoder(data[headerSize:], nil)
		cbID, _ := dec.Object()

		enc := NewEncoder(4)
		enc.PutUint(0)
		frame, ferr := enc.EncodeFrame(cbID, 0)
		if ferr != nil {
			errCh <- ferr
			return
		}
		errCh <- peer.Send(frame, nil)
	}()

	if err := client.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("fake compositor side failed: %v", err)
	}
}

func TestClientBindAllocatesNextIDAndEncodesRequest(t *testing.T) {
	client, peer := newFullTestClient(t)

	resultCh := make(chan error, 1)
	go func() {
		data, _, err := peer.Recv()
		if err != nil {
			resultCh <- err
			return
		}
		id, opcode, _ := decodeHeader(data)
		if id != 2 || opcode != 0 {
			resultCh <- fmt.Errorf("unexpected request id=%d opcode=%d, want wl_registry.bind", id, opcode)
			return
		}
		dec := NewDecoder(data[headerSize:], nil)
		name, _ := dec.Uint()
		iface, _ := dec.String()
		version, _ := dec.Uint()
		newID, _ := dec.Object()
		if name != 1 || iface != "wl_compositor" || version != 5 || newID != 3 {
			resultCh <- fmt.Errorf("bind payload = (name=%d iface=%s version=%d id=%d), want (1 wl_compositor 5 3)",
				name, iface, version, newID)
			return
		}
		resultCh <- nil
	}()

	compositor, err := client.Bind("wl_compositor", 5)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if compositor.ID() != 3 {
		t.Errorf("Bind() object id = %d, want 3 (first id after display=1, registry=2)", compositor.ID())
	}
	if err := <-resultCh; err != nil {
		t.Fatal(err)
	}
}

func TestClientBindUnknownGlobal(t *testing.T) {
	client, _ := newFullTestClient(t)
	if _, err := client.Bind("wl_shell", 1); err == nil {
		t.Fatal("Bind on an unadvertised interface should fail")
	}
}

func TestDefaultConfigSyncTimeout(t *testing.T) {
	cfg := defaultConfig()
	if cfg.syncTimeout != defaultSyncTimeout {
		t.Errorf("defaultConfig().syncTimeout = %v, want %v", cfg.syncTimeout, defaultSyncTimeout)
	}

	WithSyncTimeout(10 * time.Second)(cfg)
	if cfg.syncTimeout != 10*time.Second {
		t.Errorf("WithSyncTimeout did not apply: got %v", cfg.syncTimeout)
	}
}
