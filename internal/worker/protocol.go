// Package worker implements the thin handshake between a host and a
// background execution context running the ledger core. The transport is
// JSON frames over any byte stream; the core behaves the same on either
// side of the boundary.
//
// Sequence: the worker announces "initialized" as soon as it starts; the
// host then sends "init" with configuration followed by "port" naming the
// transferable channel; the worker answers "ready" once set up, or
// "error" with a message.
package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MessageKind discriminates protocol frames.
type MessageKind string

const (
	KindInit        MessageKind = "init"
	KindPort        MessageKind = "port"
	KindInitialized MessageKind = "initialized"
	KindReady       MessageKind = "ready"
	KindError       MessageKind = "error"
)

// Message is one protocol frame.
type Message struct {
	Kind    MessageKind    `json:"kind"`
	Config  map[string]any `json:"config,omitempty"`
	Port    string         `json:"port,omitempty"`
	Message string         `json:"message,omitempty"`
}

// ErrProtocol reports an out-of-sequence or malformed frame.
var ErrProtocol = errors.New("worker protocol violation")

// Conn frames messages over a byte stream.
type Conn struct {
	enc *json.Encoder
	dec *json.Decoder
}

// NewConn wraps a duplex stream.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{enc: json.NewEncoder(rw), dec: json.NewDecoder(rw)}
}

// Send writes one frame.
func (c *Conn) Send(m Message) error { return c.enc.Encode(m) }

// Recv reads one frame.
func (c *Conn) Recv() (Message, error) {
	var m Message
	if err := c.dec.Decode(&m); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Run drives the worker side: announce startup, receive init and port,
// run setup, and report ready or error. The setup error, if any, is both
// sent to the host and returned.
func Run(rw io.ReadWriter, setup func(config map[string]any, port string) error) error {
	c := NewConn(rw)
	if err := c.Send(Message{Kind: KindInitialized}); err != nil {
		return err
	}

	init, err := c.Recv()
	if err != nil {
		return err
	}
	if init.Kind != KindInit {
		return fmt.Errorf("%w: expected init, got %q", ErrProtocol, init.Kind)
	}
	port, err := c.Recv()
	if err != nil {
		return err
	}
	if port.Kind != KindPort {
		return fmt.Errorf("%w: expected port, got %q", ErrProtocol, port.Kind)
	}

	if err := setup(init.Config, port.Port); err != nil {
		_ = c.Send(Message{Kind: KindError, Message: err.Error()})
		return err
	}
	return c.Send(Message{Kind: KindReady})
}

// Start drives the host side and blocks until the worker reports ready.
// A worker-side error surfaces as a plain error carrying its message.
func Start(rw io.ReadWriter, config map[string]any, port string) error {
	c := NewConn(rw)

	first, err := c.Recv()
	if err != nil {
		return err
	}
	if first.Kind != KindInitialized {
		return fmt.Errorf("%w: expected initialized, got %q", ErrProtocol, first.Kind)
	}

	if err := c.Send(Message{Kind: KindInit, Config: config}); err != nil {
		return err
	}
	if err := c.Send(Message{Kind: KindPort, Port: port}); err != nil {
		return err
	}

	reply, err := c.Recv()
	if err != nil {
		return err
	}
	switch reply.Kind {
	case KindReady:
		return nil
	case KindError:
		return fmt.Errorf("worker setup failed: %s", reply.Message)
	default:
		return fmt.Errorf("%w: expected ready or error, got %q", ErrProtocol, reply.Kind)
	}
}
