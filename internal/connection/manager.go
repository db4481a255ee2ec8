// Package connection tracks live client connections and holds the byte-level
// read and write helpers they share.
package connection

import (
	"sync"
	"sync/atomic"

	"github.com/life-stream-dev/life-stream-go-bus/internal/logger"
	"github.com/life-stream-dev/life-stream-go-bus/internal/metrics"
)

// Conn is anything the manager can enumerate and shut down.
type Conn interface {
	ID() string
	Close() error
}

// Manager is a registry of live connections keyed by ID.
type Manager struct {
	connections sync.Map
	count       atomic.Int64
}

func NewManager() *Manager {
	return &Manager{}
}

// Add registers conn. A connection already stored under the same ID is
// replaced.
func (m *Manager) Add(conn Conn) {
	if _, loaded := m.connections.Swap(conn.ID(), conn); !loaded {
		m.count.Add(1)
		metrics.Incr(metrics.Sessions, 1)
	}
	logger.InfoF("[%s] Client connected", conn.ID())
}

// Remove forgets the connection with the given ID. Unknown IDs are ignored.
func (m *Manager) Remove(id string) {
	if _, loaded := m.connections.LoadAndDelete(id); loaded {
		m.count.Add(-1)
		metrics.Decr(metrics.Sessions, 1)
		logger.InfoF("[%s] Client disconnected", id)
	}
}

func (m *Manager) Get(id string) (Conn, bool) {
	if value, ok := m.connections.Load(id); ok {
		return value.(Conn), true
	}
	return nil, false
}

func (m *Manager) Count() int {
	return int(m.count.Load())
}

// CloseAll closes every registered connection. Connections remove
// themselves as their serve loops exit.
func (m *Manager) CloseAll() {
	m.connections.Range(func(key, value any) bool {
		if err := value.(Conn).Close(); err != nil {
			logger.WarnF("[%s] Fail to close connection, details: %v", key, err)
		}
		return true
	})
}
