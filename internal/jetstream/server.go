// Package jetstream runs the embedded NATS server that carries chat
// summaries from request handlers to the analytics consumer.
package jetstream

import (
	"fmt"
	"time"

	server "github.com/nats-io/nats-server/v2/server"
	nats "github.com/nats-io/nats.go"
)

const readyTimeout = 5 * time.Second

type Server struct{ ns *server.Server }

// NewServer starts an in-process server with JetStream persisted under
// storeDir. It accepts no network clients.
func NewServer(storeDir string) (*Server, error) {
	ns, err := server.NewServer(&server.Options{
		ServerName: "coach-stream",
		DontListen: true,
		JetStream:  true,
		StoreDir:   storeDir,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready after %s", readyTimeout)
	}
	return &Server{ns: ns}, nil
}

func (s *Server) Connect() (*nats.Conn, error) {
	return nats.Connect(s.ns.ClientURL(), nats.InProcessServer(s.ns), nats.Name("coach-stream"))
}

func (s *Server) Shutdown() {
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
}
