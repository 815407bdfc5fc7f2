// Package bus provides pub/sub messaging between components using an
// embedded NATS server.
package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// Bus wraps an embedded NATS server and a client connection
type Bus struct {
	server *server.Server
	conn   *nats.Conn
	logger *slog.Logger

	subs   map[string][]*nats.Subscription
	subsMu sync.Mutex
}

// Config configures the event bus
type Config struct {
	Host string // default 127.0.0.1
	Port int    // default 12101; -1 picks a random free port
}

// New starts an embedded NATS server and connects to it
func New(cfg Config, logger *slog.Logger) (*Bus, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 12101
	}

	opts := &server.Options{
		Host:   cfg.Host,
		Port:   cfg.Port,
		NoSigs: true,
		NoLog:  true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(2 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready after 2 seconds (port %d)", cfg.Port)
	}

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("failed to connect to embedded NATS: %w", err)
	}

	b := &Bus{
		server: ns,
		conn:   nc,
		logger: logger.With("component", "bus"),
		subs:   make(map[string][]*nats.Subscription),
	}

	b.logger.Info("Event bus started", "url", ns.ClientURL())
	return b, nil
}

// Publish marshals data as JSON and publishes it to a subject
func (b *Bus) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	return b.conn.Publish(subject, payload)
}

// Subscribe subscribes to a subject
func (b *Bus) Subscribe(subject string, handler func(*nats.Msg)) (*nats.Subscription, error) {
	sub, err := b.conn.Subscribe(subject, handler)
	if err != nil {
		return nil, err
	}

	b.subsMu.Lock()
	b.subs[subject] = append(b.subs[subject], sub)
	b.subsMu.Unlock()

	return sub, nil
}

// Unsubscribe removes all subscriptions for a subject
func (b *Bus) Unsubscribe(subject string) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()

	for _, sub := range b.subs[subject] {
		_ = sub.Unsubscribe()
	}
	delete(b.subs, subject)
}

// Stop drains the connection and shuts the server down
func (b *Bus) Stop() {
	_ = b.conn.Drain()
	b.server.Shutdown()
	b.logger.Info("Event bus stopped")
}
