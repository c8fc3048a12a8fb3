package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const DefaultFilePath = "./tickmux.log"

// Config selects sinks and level. With no sink enabled the console is used.
type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

// FileConfig enables the JSON lines file sink.
type FileConfig struct {
	Enabled bool
	Path    string // default DefaultFilePath
}

func (c Config) filePath() string {
	if p := strings.TrimSpace(c.File.Path); p != "" {
		return p
	}
	return DefaultFilePath
}

// Service owns the sinks. Loggers taken from it pick up level and sink
// changes without being rebuilt.
type Service struct {
	mu    sync.Mutex
	cfg   Config
	out   io.Writer
	file  *os.File
	level zerolog.Level

	root atomic.Pointer[zerolog.Logger]
}

// NewService opens the sinks for cfg and returns the service with a root
// logger bound to it.
func NewService(cfg Config) (*Service, Logger) {
	setGlobals()
	s := &Service{}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() *zerolog.Logger { return s.root.Load() }

func (s *Service) Logger() Logger { return Logger{svc: s} }

// Apply changes the level and, when the sink settings differ, reopens the
// sinks. A file that cannot be opened is reported on stderr and skipped.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sinksChanged := s.out == nil ||
		cfg.Console != s.cfg.Console ||
		cfg.File.Enabled != s.cfg.File.Enabled ||
		(cfg.File.Enabled && cfg.filePath() != s.cfg.filePath())
	s.cfg = cfg
	s.level = parseLevel(cfg.Level, zerolog.InfoLevel)
	if sinksChanged {
		s.openSinksLocked()
	}
	s.rebuildLocked()
}

func (s *Service) openSinksLocked() {
	s.closeFileLocked()

	writers := make([]io.Writer, 0, 2)
	if s.cfg.Console {
		writers = append(writers, newConsoleWriter())
	}
	if s.cfg.File.Enabled {
		path := s.cfg.filePath()
		f, err := openLogFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logx: failed opening log file %q: %v\n", path, err)
		} else {
			s.file = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}
	if len(writers) == 0 {
		writers = append(writers, newConsoleWriter())
	}
	s.out = zerolog.MultiLevelWriter(writers...)
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func (s *Service) rebuildLocked() {
	zl := zerolog.New(s.out).Level(s.level).With().Timestamp().Logger()
	s.root.Store(&zl)
}

func (s *Service) closeFileLocked() {
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
}

// Close releases the file sink. Later lines go to the console only.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.cfg.File.Enabled = false
	s.openSinksLocked()
	s.rebuildLocked()
	return err
}
