package hooks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/neuroassist/neuroassist/pkg/command"
	"github.com/neuroassist/neuroassist/pkg/logger"
)

const (
	// Buffer audit writes so the engine never blocks on slow filesystems.
	auditQueueSize = 256
)

// JSONLSink appends one audit entry per snapshot as JSONL.
type JSONLSink struct {
	path  string
	queue chan []byte
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewJSONLSink(path string) (*JSONLSink, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	sink := &JSONLSink{
		path:  path,
		queue: make(chan []byte, auditQueueSize),
		done:  make(chan struct{}),
	}
	go sink.writeLoop()
	return sink, nil
}

func (s *JSONLSink) Path() string {
	return s.path
}

func (s *JSONLSink) Record(snapshot *command.Execution, final bool) {
	if err := s.Write(NewAuditEntry(snapshot, final, time.Now())); err != nil {
		logger.WarnCF("audit", "Failed to encode audit entry", map[string]interface{}{
			"execution_id": snapshot.ID,
			"error":        err.Error(),
		})
	}
}

func (s *JSONLSink) Write(entry AuditEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	line := append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("audit sink %s is closed", s.path)
	}

	select {
	case s.queue <- line:
		return nil
	default:
	}

	// Queue full: drop oldest pending line so the current entry can proceed.
	select {
	case <-s.queue:
	default:
	}
	select {
	case s.queue <- line:
	default:
	}
	return nil
}

// Close stops accepting entries and waits for queued lines to be written.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
	return nil
}

func (s *JSONLSink) writeLoop() {
	defer close(s.done)
	for line := range s.queue {
		if err := s.appendLine(line); err != nil {
			logger.WarnCF("audit", "Failed to append audit line", map[string]interface{}{
				"path":  s.path,
				"error": err.Error(),
			})
		}
	}
}

func (s *JSONLSink) appendLine(line []byte) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return err
	}
	return nil
}
