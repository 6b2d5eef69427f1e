package wayland

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Global is one entry of the compositor's advertised global registry:
// a name (the numeric id used to bind it), the interface it implements,
// and the highest version the compositor supports.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// Client is a single connection to a Wayland compositor: the transport,
// the object table and id pool, the merged protocol templates, and the
// wl_display/wl_registry bootstrap every connection needs.
type Client struct {
	conn   *conn
	demux  *demux
	ids    *idPool
	objects *objectTable

	interfaces map[string]*InterfaceTemplate

	display  *Object
	registry *Object

	log         *slog.Logger
	syncTimeout time.Duration

	mu       sync.Mutex
	globals  map[uint32]Global
	pending  map[ID]chan struct{}
	dead     error
}

// NewClient connects to the compositor, loads the given protocol XML
// documents (the base wayland.xml must be among them so wl_display and
// wl_registry are defined), and performs the bootstrap sequence: create
// wl_display as object 1, request the registry, and wait for the initial
// burst of globals to arrive.
func NewClient(protocolPaths []string, opts ...ClientOption) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	protocols := make([]*Protocol, 0, len(protocolPaths))
	for _, path := range protocolPaths {
		p, err := LoadProtocol(path)
		if err != nil {
			return nil, err
		}
		protocols = append(protocols, p)
	}

	path := cfg.socketPath
	if path == "" {
		p, err := socketPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	c, err := dialConn(path)
	if err != nil {
		return nil, err
	}

	client := &Client{
		conn:        c,
		ids:         newIDPool(),
		objects:     newObjectTable(),
		interfaces:  mergeProtocols(protocols),
		log:         cfg.logger,
		syncTimeout: cfg.syncTimeout,
		globals:     make(map[uint32]Global),
		pending:     make(map[ID]chan struct{}),
	}
	client.demux = newDemux(client)

	if err := client.bootstrap(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return client, nil
}

func (c *Client) logger() *slog.Logger {
	if c.log == nil {
		return slog.Default()
	}
	return c.log
}

// bootstrap materialises wl_display as object id 1, requests the global
// registry, and blocks (via Sync) until the compositor's initial burst of
// wl_registry.global events has been dispatched.
func (c *Client) bootstrap() error {
	displayTmpl, ok := c.interfaces["wl_display"]
	if !ok {
		return fmt.Errorf("wayland: loaded protocols do not define wl_display")
	}
	c.display = newObject(c, 1, displayTmpl, displayTmpl.Version)
	c.objects.Insert(c.display)
	// wl_display occupies id 1; client-owned ids resume from 2.
	c.ids.next = 2

	registry, err := c.display.Invoke("get_registry")
	if err != nil {
		return fmt.Errorf("wayland: get_registry: %w", err)
	}
	c.registry = registry

	return c.Sync()
}

// interfaceTemplate resolves a loaded interface by name.
func (c *Client) interfaceTemplate(name string) (*InterfaceTemplate, bool) {
	t, ok := c.interfaces[name]
	return t, ok
}

// handleDisplayEvent intercepts the events the engine itself must act on
// (wl_display.error, wl_display.delete_id, wl_registry.global and
// global_remove, and wl_callback.done for pending Sync calls) before the
// generic per-object dispatch runs. It reports whether it fully handled
// the event, in which case the object's registered handlers are not also
// invoked for it.
func (c *Client) handleDisplayEvent(obj *Object, eventName string, args []Value) bool {
	switch {
	case obj == c.display && eventName == "error":
		serr := &ServerError{
			ObjectID: uint32(args[0].Object()),
			Code:     args[1].Uint(),
			Message:  args[2].String(),
		}
		c.logger().Error("wayland: server error", "object_id", serr.ObjectID, "code", serr.Code, "message", serr.Message)
		c.markDead(serr)
		return true

	case obj == c.display && eventName == "delete_id":
		id := ID(args[0].Uint())
		if dead, ok := c.objects.Lookup(id); ok {
			dead.markDestroyed()
			c.objects.Remove(id)
		}
		c.ids.Release(id)
		c.logger().Debug("wayland: recycled object id", "id", id)
		return true

	case obj == c.registry && eventName == "global":
		g := Global{Name: args[0].Uint(), Interface: args[1].String(), Version: args[2].Uint()}
		c.mu.Lock()
		c.globals[g.Name] = g
		c.mu.Unlock()
		return true

	case obj == c.registry && eventName == "global_remove":
		name := args[0].Uint()
		c.mu.Lock()
		delete(c.globals, name)
		c.mu.Unlock()
		return true

	case eventName == "done":
		c.mu.Lock()
		ch, ok := c.pending[obj.id]
		if ok {
			delete(c.pending, obj.id)
		}
		c.mu.Unlock()
		if ok {
			close(ch)
			return true
		}
	}
	return false
}

func (c *Client) markDead(err error) {
	c.mu.Lock()
	if c.dead == nil {
		c.dead = err
	}
	c.mu.Unlock()
}

// Err returns the error that made the connection unusable, or nil while
// it is still healthy.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dead
}

// Fd returns the connection's socket file descriptor, for integration
// with an external event loop (select/poll/epoll). The engine does not
// run its own I/O loop; callers drive it by calling Pump whenever the fd
// is readable.
func (c *Client) Fd() int { return c.conn.Fd() }

// Pump reads one datagram from the socket and dispatches every complete
// frame it yields. It blocks until data arrives or the socket errors.
func (c *Client) Pump() error {
	if err := c.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionDead, err)
	}

	data, fds, err := c.conn.Recv()
	if err != nil {
		c.markDead(err)
		return err
	}
	if data == nil {
		return nil // would-block or an empty datagram; nothing to dispatch
	}

	if err := c.demux.feed(data, fds); err != nil {
		c.logger().Error("wayland: protocol desync", "error", err)
		c.markDead(err)
		return err
	}
	return nil
}

// Sync performs the canonical protocol barrier: it allocates a one-shot
// wl_callback via wl_display.sync, then blocks until the callback's done
// event has been dispatched (guaranteeing every event arising from
// requests issued before the call has already been delivered), or until
// the configured sync timeout elapses.
func (c *Client) Sync() error {
	callbackTmpl, ok := c.interfaces["wl_callback"]
	if !ok {
		return fmt.Errorf("wayland: loaded protocols do not define wl_callback")
	}

	id := c.ids.Allocate()
	cb := newObject(c, id, callbackTmpl, callbackTmpl.Version)
	c.objects.Insert(cb)

	ch := make(chan struct{})
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	enc := NewEncoder(4)
	enc.PutNewID(id)
	opcode, _ := c.display.template.RequestOpcode("sync")
	frame, err := enc.EncodeFrame(c.display.id, opcode)
	if err != nil {
		return err
	}
	if err := c.conn.Send(frame, nil); err != nil {
		return err
	}

	const pollInterval = 100 * time.Millisecond
	if err := c.conn.SetRecvTimeout(pollInterval); err != nil {
		return err
	}
	defer c.conn.SetRecvTimeout(0)

	deadline := time.Now().Add(c.syncTimeout)
	for {
		select {
		case <-ch:
			return nil
		default:
		}
		if time.Now().After(deadline) {
			return ErrSyncTimeout
		}
		if err := c.Pump(); err != nil {
			return err
		}
	}
}

// Globals returns a snapshot of every global currently advertised by the
// compositor.
func (c *Client) Globals() []Global {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Global, 0, len(c.globals))
	for _, g := range c.globals {
		out = append(out, g)
	}
	return out
}

// FindGlobal returns an advertised global implementing the named
// interface, if any. When several globals implement it, which one is
// returned is not defined.
func (c *Client) FindGlobal(interfaceName string) (Global, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range c.globals {
		if g.Interface == interfaceName {
			return g, true
		}
	}
	return Global{}, false
}

// Bind looks up the named global, binds it at the given version via
// wl_registry.bind, and returns the newly created Object.
func (c *Client) Bind(interfaceName string, version uint32) (*Object, error) {
	g, ok := c.FindGlobal(interfaceName)
	if !ok {
		return nil, fmt.Errorf("wayland: no global advertises interface %q", interfaceName)
	}
	if _, ok := c.interfaces[interfaceName]; !ok {
		return nil, fmt.Errorf("wayland: interface %q not loaded from any protocol", interfaceName)
	}

	return c.registry.Invoke("bind",
		Uint(g.Name),
		NewIDInline(interfaceName, version, 0),
	)
}

// Close shuts down the transport. It does not send wl_display.destroy,
// which is never part of the base protocol: closing the socket is the
// documented way to end a Wayland connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
