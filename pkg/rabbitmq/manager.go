package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"
)

var errConnectionClosed = errors.New("rabbitmq connection closed")

// Manager maintains a single AMQP connection and helps declare topology.
type Manager struct {
	url    string
	conn   *amqp.Connection
	logger *slog.Logger
	mu     sync.RWMutex
}

func NewManager(url string, logger *slog.Logger) (*Manager, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		url:    url,
		conn:   conn,
		logger: logger,
	}
	go m.watch(conn)
	return m, nil
}

func (m *Manager) Connection() *amqp.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn
}

// Ping reports whether the connection is still open.
func (m *Manager) Ping(context.Context) error {
	conn := m.Connection()
	if conn == nil || conn.IsClosed() {
		return errConnectionClosed
	}
	return nil
}

// watch logs an unexpected connection loss. Publishing degrades to errors
// that callers log; dispatch itself never depends on the broker.
func (m *Manager) watch(conn *amqp.Connection) {
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	if err, ok := <-closed; ok && err != nil {
		m.logger.Error("rabbitmq connection lost", slog.String("error", err.Error()))
	}
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}

// DeclareEventTopology ensures a durable topic exchange exists and binds each
// queue to its routing pattern.
func (m *Manager) DeclareEventTopology(exchange string, bindings map[string]string) error {
	conn := m.Connection()
	if conn == nil {
		return errConnectionClosed
	}
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for queue, pattern := range bindings {
		if _, err := ch.QueueDeclare(
			queue,
			true,
			false,
			false,
			false,
			nil,
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		if err := ch.QueueBind(
			queue,
			pattern,
			exchange,
			false,
			nil,
		); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
		m.logger.Debug("rabbitmq queue bound", slog.String("queue", queue), slog.String("pattern", pattern), slog.String("exchange", exchange))
	}

	return nil
}
