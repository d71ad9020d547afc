package sink

import "sync"

// Memory is an in-process PersistentSink backed by a guarded map,
// grounded on the teacher's internal/storage/memory.go. It is the
// default sink when no persistent root is configured, and the sink
// used throughout the engine's own tests.
type Memory struct {
	mu      sync.RWMutex
	headers map[string][]string
	rows    map[string][][]string
}

// NewMemory returns a ready-to-use Memory sink.
func NewMemory() *Memory {
	return &Memory{
		headers: make(map[string][]string),
		rows:    make(map[string][][]string),
	}
}

func (m *Memory) Save(name string, header []string, body [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.headers[name]; !ok {
		m.headers[name] = header
	}
	m.rows[name] = append(m.rows[name], body...)
	return nil
}

func (m *Memory) Load(name string) ([]string, [][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	header := m.headers[name]
	rows := make([][]string, len(m.rows[name]))
	copy(rows, m.rows[name])
	return header, rows, nil
}

func (m *Memory) Close() error { return nil }
