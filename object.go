package wayland

import (
	"fmt"
	"reflect"
	"sync"
)

// EventHandler receives the decoded arguments of one event, in the order
// declared by the interface template. Handlers registered on the same
// event fire in registration order; a panic in one handler is recovered
// and logged without preventing the remaining handlers from running
// (spec.md §9 design note on the observer framework).
type EventHandler func(args []Value)

// Object is a live instance of a Wayland interface: an id bound to an
// interface template, plus the event handlers registered against it.
// Objects are created either locally (a request carrying a new_id
// argument) or by the server (announced via an event), and are never
// reused: once destroyed, the id is retired until the server's
// wl_display.delete_id returns it to the pool.
type Object struct {
	client   *Client
	id       ID
	template *InterfaceTemplate
	version  uint32

	mu        sync.Mutex
	destroyed bool
	handlers  map[string][]EventHandler
}

func newObject(client *Client, id ID, template *InterfaceTemplate, version uint32) *Object {
	return &Object{
		client:   client,
		id:       id,
		template: template,
		version:  version,
		handlers: make(map[string][]EventHandler),
	}
}

// ID returns the object's wire id.
func (o *Object) ID() ID { return o.id }

// Interface returns the name of the object's bound interface.
func (o *Object) Interface() string { return o.template.Name }

// Version returns the interface version this object was bound at.
func (o *Object) Version() uint32 { return o.version }

// On registers a handler for the named event. Handlers fire in
// registration order every time the event is dispatched.
func (o *Object) On(eventName string, handler EventHandler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handlers[eventName] = append(o.handlers[eventName], handler)
}

// Off removes the first occurrence of handler registered for eventName
// (spec.md §4.D's remove_handler); it is a silent no-op if handler was
// never registered. Handlers are compared by underlying function identity,
// since Go function values cannot be compared with ==.
func (o *Object) Off(eventName string, handler EventHandler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	target := reflect.ValueOf(handler).Pointer()
	list := o.handlers[eventName]
	for i, h := range list {
		if reflect.ValueOf(h).Pointer() == target {
			o.handlers[eventName] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Invoke marshals and sends requestName on this object. args must align,
// in order, with the request's declared arguments, EXCEPT that a pinned
// new_id argument (one whose template carries a fixed interface) is never
// supplied by the caller: Invoke allocates its id internally and returns
// the newly registered Object. For the unpinned new_id used by
// wl_registry.bind, the caller supplies a Value built with NewIDInline
// giving the target interface and version; Invoke substitutes the
// allocated id before encoding and before returning the new Object.
//
// If the request declares no new_id argument, Invoke returns a nil Object.
func (o *Object) Invoke(requestName string, args ...Value) (*Object, error) {
	if err := o.client.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionDead, err)
	}

	o.mu.Lock()
	if o.destroyed {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %w: object %d (%s)", ErrObjectDestroyed, ErrUnknownObject, o.id, o.template.Name)
	}
	o.mu.Unlock()

	opcode, ok := o.template.RequestOpcode(requestName)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownRequest, o.template.Name, requestName)
	}
	mt := o.template.Requests[opcode]

	wantSupplied := 0
	for _, a := range mt.Args {
		if a.Kind == KindNewID && a.Interface != "" {
			continue // allocated internally, never supplied by the caller
		}
		wantSupplied++
	}
	if wantSupplied != len(args) {
		return nil, fmt.Errorf("%w: %s.%s wants %d argument(s), got %d",
			ErrArgumentArity, o.template.Name, requestName, wantSupplied, len(args))
	}

	enc := NewEncoder(32)
	var newObj *Object
	argIdx := 0
	for _, arg := range mt.Args {
		if arg.Kind == KindNewID && arg.Interface != "" {
			target, ok := o.client.interfaceTemplate(arg.Interface)
			if !ok {
				return nil, fmt.Errorf("wayland: %s.%s: unknown target interface %q",
					o.template.Name, requestName, arg.Interface)
			}
			id := o.client.ids.Allocate()
			newObj = newObject(o.client, id, target, target.Version)
			o.client.objects.Insert(newObj)
			if err := (Value{Kind: KindNewID, obj: id}).encode(enc, arg); err != nil {
				return nil, err
			}
			continue
		}

		v := args[argIdx]
		argIdx++

		if arg.Kind == KindNewID {
			// Unpinned new_id (wl_registry.bind): caller supplied the
			// target interface/version via NewIDInline; allocate the id
			// here, substitute it, and register the new object.
			target, ok := o.client.interfaceTemplate(v.NewIDInterface)
			if !ok {
				return nil, fmt.Errorf("wayland: %s.%s: unknown target interface %q",
					o.template.Name, requestName, v.NewIDInterface)
			}
			id := o.client.ids.Allocate()
			newObj = newObject(o.client, id, target, v.NewIDVersion)
			o.client.objects.Insert(newObj)
			v = NewIDInline(v.NewIDInterface, v.NewIDVersion, id)
		}

		if err := v.encode(enc, arg); err != nil {
			return nil, err
		}
	}

	frame, err := enc.EncodeFrame(o.id, opcode)
	if err != nil {
		return nil, err
	}
	if err := o.client.conn.Send(frame, enc.FDs()); err != nil {
		return nil, err
	}

	return newObj, nil
}

// dispatch delivers one decoded inbound event to every handler
// registered for eventName, recovering individually from handler panics so
// one misbehaving handler cannot suppress the rest.
func (o *Object) dispatch(eventName string, args []Value) {
	o.mu.Lock()
	handlers := append([]EventHandler(nil), o.handlers[eventName]...)
	o.mu.Unlock()

	for _, h := range handlers {
		o.runHandler(h, args)
	}
}

func (o *Object) runHandler(h EventHandler, args []Value) {
	defer func() {
		if r := recover(); r != nil {
			o.client.logger().Error("wayland: event handler panicked",
				"interface", o.template.Name, "object", o.id, "recovered", r)
		}
	}()
	h(args)
}

// markDestroyed retires the object after wl_display.delete_id; any further
// Invoke call on it fails with ErrObjectDestroyed.
func (o *Object) markDestroyed() {
	o.mu.Lock()
	o.destroyed = true
	o.mu.Unlock()
}
