// Package natstest starts an embedded, JetStream-enabled NATS server for
// tests, so every package that needs a broker (eventlog/jetstream,
// pubsub/jetstream, service) can test against a real server instead of a
// mock.
package natstest

import (
	"fmt"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// Server wraps an embedded NATS server.
type Server struct {
	srv *server.Server
	url string
}

// Start launches an embedded server with JetStream enabled on a random
// port and a temp store directory.
func Start() (*Server, error) {
	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  "",
	}

	s, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("natstest: create server: %w", err)
	}

	go s.Start()

	if !s.ReadyForConnections(5e9) {
		return nil, fmt.Errorf("natstest: server not ready within timeout")
	}

	return &Server{srv: s, url: s.ClientURL()}, nil
}

// URL returns the client connection URL.
func (s *Server) URL() string { return s.url }

// Connect dials a client connection to this server.
func (s *Server) Connect() (*nats.Conn, error) {
	return nats.Connect(s.url)
}

// Shutdown stops the server and waits for it to fully exit.
func (s *Server) Shutdown() {
	if s.srv == nil {
		return
	}
	s.srv.Shutdown()
	s.srv.WaitForShutdown()
}
