package worker

import (
	"errors"
	"net"
	"testing"
)

func TestHandshake(t *testing.T) {
	host, work := net.Pipe()
	defer host.Close()
	defer work.Close()

	var gotConfig map[string]any
	var gotPort string
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- Run(work, func(config map[string]any, port string) error {
			gotConfig = config
			gotPort = port
			return nil
		})
	}()

	err := Start(host, map[string]any{"db": "ledger.db"}, "port-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := <-workerDone; err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if gotConfig["db"] != "ledger.db" {
		t.Errorf("config = %v, want the host's config", gotConfig)
	}
	if gotPort != "port-1" {
		t.Errorf("port = %q, want port-1", gotPort)
	}
}

func TestHandshakeSetupFailure(t *testing.T) {
	host, work := net.Pipe()
	defer host.Close()
	defer work.Close()

	boom := errors.New("cannot open store")
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- Run(work, func(map[string]any, string) error { return boom })
	}()

	err := Start(host, nil, "p")
	if err == nil {
		t.Fatal("Start succeeded despite worker setup failure")
	}
	if got := err.Error(); got != "worker setup failed: cannot open store" {
		t.Errorf("host error = %q, want the worker's message", got)
	}
	if err := <-workerDone; !errors.Is(err, boom) {
		t.Errorf("Run returned %v, want the setup error", err)
	}
}

func TestHandshakeOutOfSequence(t *testing.T) {
	t.Run("worker rejects missing init", func(t *testing.T) {
		host, work := net.Pipe()
		defer host.Close()
		defer work.Close()

		workerDone := make(chan error, 1)
		go func() {
			workerDone <- Run(work, func(map[string]any, string) error { return nil })
		}()

		c := NewConn(host)
		if _, err := c.Recv(); err != nil { // initialized
			t.Fatalf("Recv failed: %v", err)
		}
		if err := c.Send(Message{Kind: KindPort, Port: "p"}); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if err := <-workerDone; !errors.Is(err, ErrProtocol) {
			t.Errorf("Run returned %v, want ErrProtocol", err)
		}
	})

	t.Run("host rejects missing initialized", func(t *testing.T) {
		host, work := net.Pipe()
		defer host.Close()
		defer work.Close()

		go func() {
			c := NewConn(work)
			_ = c.Send(Message{Kind: KindReady})
		}()

		if err := Start(host, nil, "p"); !errors.Is(err, ErrProtocol) {
			t.Errorf("Start returned %v, want ErrProtocol", err)
		}
	})
}
