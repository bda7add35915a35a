package control

import "sync"

// micBufferStore accumulates mic-audio-data chunks per session until the
// next mic-audio-end flushes them.
type micBufferStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

var micBuffers = &micBufferStore{data: make(map[string][]byte)}

func (m *micBufferStore) append(sessionID string, chunk []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sessionID] = append(m.data[sessionID], chunk...)
}

func (m *micBufferStore) flush(sessionID string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := m.data[sessionID]
	delete(m.data, sessionID)
	return buf
}
