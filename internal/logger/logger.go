package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/flurbudurbur/supergear/internal/domain"

	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

const filePrefix = "supergear"

// Logger interface
type Logger interface {
	Log() *zerolog.Event
	Fatal() *zerolog.Event
	Err(err error) *zerolog.Event
	Error() *zerolog.Event
	Warn() *zerolog.Event
	Info() *zerolog.Event
	Trace() *zerolog.Event
	Debug() *zerolog.Event
	With() zerolog.Context
	RegisterSSEWriter(sse *sse.Server)
	SetLogLevel(level string)
}

// DefaultLogger default logging controller
type DefaultLogger struct {
	mu     sync.RWMutex
	log    zerolog.Logger
	level  zerolog.Level
	sinks  []io.Writer
	file   *lumberjack.Logger
	logDir string
	day    string
}

func New(cfg *domain.Config) Logger {
	l := &DefaultLogger{
		sinks: make([]io.Writer, 0, 3),
		level: zerolog.DebugLevel,
		day:   time.Now().Format("2006-01-02"),
	}

	l.SetLogLevel(cfg.Logging.Level)

	// pretty console output for dev builds only
	if cfg.Version == "dev" {
		l.sinks = append(l.sinks, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		l.sinks = append(l.sinks, os.Stderr)
	}

	if cfg.Logging.Path != "" {
		l.logDir = cfg.Logging.Path
		if err := os.MkdirAll(l.logDir, 0755); err != nil {
			fmt.Printf("could not create log directory %s: %v\n", l.logDir, err)
		}

		l.file = &lumberjack.Logger{
			Filename:   l.fileName(l.day),
			MaxSize:    cfg.Logging.MaxFileSize,
			MaxBackups: cfg.Logging.MaxBackupCount,
		}
		l.sinks = append(l.sinks, l.file)

		go l.rotateAtMidnight()
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	l.rebuild()

	return l
}

func (l *DefaultLogger) fileName(day string) string {
	return filepath.Join(l.logDir, fmt.Sprintf("%s-%s.log", filePrefix, day))
}

// rebuild must be called with mu held for writing, or before l is shared.
func (l *DefaultLogger) rebuild() {
	l.log = zerolog.New(io.MultiWriter(l.sinks...)).Level(l.level).With().Stack().Logger()
}

func (l *DefaultLogger) RegisterSSEWriter(server *sse.Server) {
	l.mu.Lock()
	l.sinks = append(l.sinks, NewSSEWriter(server))
	l.rebuild()
	l.mu.Unlock()

	l.Debug().Msg("log stream registered")
}

func (l *DefaultLogger) rotateAtMidnight() {
	if l.file == nil {
		return
	}

	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
		time.Sleep(next.Sub(now))

		l.checkRotate()
	}
}

// checkRotate switches the log file once the date has changed.
func (l *DefaultLogger) checkRotate() {
	if l.file == nil {
		return
	}

	today := time.Now().Format("2006-01-02")

	l.mu.RLock()
	same := today == l.day
	l.mu.RUnlock()
	if same {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if today == l.day {
		return
	}

	l.day = today
	_ = l.file.Close()
	l.file.Filename = l.fileName(today)
}

func (l *DefaultLogger) SetLogLevel(level string) {
	var lvl zerolog.Level
	switch level {
	case "TRACE":
		lvl = zerolog.TraceLevel
	case "DEBUG":
		lvl = zerolog.DebugLevel
	case "INFO":
		lvl = zerolog.InfoLevel
	case "WARN":
		lvl = zerolog.WarnLevel
	case "ERROR":
		lvl = zerolog.ErrorLevel
	default:
		lvl = zerolog.Disabled
	}

	l.mu.Lock()
	l.level = lvl
	if len(l.sinks) > 0 {
		l.rebuild()
	}
	l.mu.Unlock()
}

func (l *DefaultLogger) current() zerolog.Logger {
	l.checkRotate()

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.log
}

func (l *DefaultLogger) Log() *zerolog.Event {
	lg := l.current()
	return lg.Log().Timestamp()
}

// Fatal logs at fatal level and exits once the event is sent.
func (l *DefaultLogger) Fatal() *zerolog.Event {
	lg := l.current()
	return lg.Fatal().Timestamp()
}

func (l *DefaultLogger) Error() *zerolog.Event {
	lg := l.current()
	return lg.Error().Timestamp()
}

func (l *DefaultLogger) Err(err error) *zerolog.Event {
	lg := l.current()
	return lg.Err(err).Timestamp()
}

func (l *DefaultLogger) Warn() *zerolog.Event {
	lg := l.current()
	return lg.Warn().Timestamp()
}

func (l *DefaultLogger) Info() *zerolog.Event {
	lg := l.current()
	return lg.Info().Timestamp()
}

func (l *DefaultLogger) Debug() *zerolog.Event {
	lg := l.current()
	return lg.Debug().Timestamp()
}

func (l *DefaultLogger) Trace() *zerolog.Event {
	lg := l.current()
	return lg.Trace().Timestamp()
}

// With returns a context for deriving component loggers.
func (l *DefaultLogger) With() zerolog.Context {
	lg := l.current()
	return lg.With().Timestamp()
}
