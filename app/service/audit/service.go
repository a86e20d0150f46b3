package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"querymind/app/config"

	"github.com/samber/do"
	"github.com/samber/oops"
)

const defaultBufferSize = 64

var _ do.Shutdownable = (*Service)(nil)

// Service writes audit records as JSON lines from a single worker. Records
// are dropped rather than blocking the caller when the buffer is full.
type Service struct {
	dir   string
	queue chan entry

	mu     sync.RWMutex
	closed bool
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return NewService(cfg.Audit.Dir, cfg.Audit.BufferSize)
}

// NewService with an empty dir returns a Service that discards everything.
func NewService(dir string, bufferSize int) (*Service, error) {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, oops.
				In("audit").
				With("dir", dir).
				Wrapf(err, "failed to create audit dir")
		}
	}

	return &Service{
		dir:   dir,
		queue: make(chan entry, bufferSize),
	}, nil
}

func (s *Service) LogConversation(record ConversationRecord) {
	s.add(conversationsFile, record)
}

func (s *Service) LogQuery(record QueryRecord) {
	s.add(queriesFile, record)
}

func (s *Service) LogSummary(record SummaryRecord) {
	s.add(summariesFile, record)
}

func (s *Service) add(file string, record any) {
	if s.dir == "" {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}

	select {
	case s.queue <- entry{file: file, record: record}:
	default:
		slog.Warn("Audit queue is full, dropping record", "file", file)
	}
}

// Run writes queued records until ctx is done or the service shuts down.
// Records still queued at that point are flushed before returning.
func (s *Service) Run(ctx context.Context) {
	w := &writer{dir: s.dir, files: map[string]*os.File{}}
	defer w.close()

	for {
		select {
		case <-ctx.Done():
			s.drain(w)
			return
		case e, ok := <-s.queue:
			if !ok {
				return
			}
			w.write(e)
		}
	}
}

func (s *Service) drain(w *writer) {
	for {
		select {
		case e, ok := <-s.queue:
			if !ok {
				return
			}
			w.write(e)
		default:
			return
		}
	}
}

func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.queue)
	}

	return nil
}

type writer struct {
	dir   string
	files map[string]*os.File
}

func (w *writer) write(e entry) {
	file, err := w.open(e.file)
	if err != nil {
		slog.Error("Failed to open audit log", "file", e.file, "error", err)
		return
	}

	if err = json.NewEncoder(file).Encode(e.record); err != nil {
		slog.Error("Failed to write audit record", "file", e.file, "error", err)
	}
}

func (w *writer) open(name string) (*os.File, error) {
	if file, ok := w.files[name]; ok {
		return file, nil
	}

	file, err := os.OpenFile(filepath.Join(w.dir, name), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	w.files[name] = file

	return file, nil
}

func (w *writer) close() {
	for name, file := range w.files {
		if err := file.Close(); err != nil {
			slog.Error("Failed to close audit log", "file", name, "error", err)
		}
	}
}
