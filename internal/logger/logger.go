package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service,omitempty"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// Options controls where a Logger writes. Zero value writes colored output to stdout only.
type Options struct {
	Service  string
	Dir      string
	MinLevel LogLevel
	Console  io.Writer
	NoColor  bool
}

type Logger struct {
	mu           sync.Mutex
	service      string
	console      io.Writer
	logFile      *os.File
	colorEnabled bool
	minLevel     LogLevel
	exit         func(int)
}

// NewLogger opens (or appends to) a daily JSON log file under opts.Dir and mirrors
// every entry to the console.
func NewLogger(opts Options) (*Logger, error) {
	l := newLogger(opts)

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		name := fmt.Sprintf("%s-%s.log", l.fileStem(), time.Now().Format("2006-01-02"))
		path := filepath.Join(opts.Dir, name)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.logFile = f
		l.Info("LOGGER", fmt.Sprintf("Log file: %s", path))
	}

	return l, nil
}

// New builds a console-only logger, typically over a test buffer.
func New(w io.Writer, minLevel LogLevel) *Logger {
	return newLogger(Options{Console: w, MinLevel: minLevel, NoColor: true})
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, FATAL+1)
}

func newLogger(opts Options) *Logger {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	return &Logger{
		service:      opts.Service,
		console:      console,
		colorEnabled: !opts.NoColor,
		minLevel:     opts.MinLevel,
		exit:         os.Exit,
	}
}

func (l *Logger) fileStem() string {
	if l.service == "" {
		return "service"
	}
	return l.service
}

// ParseLevel maps LOG_LEVEL values onto a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func (l *Logger) log(level LogLevel, category, message string) {
	if level < l.minLevel {
		return
	}

	_, file, line, ok := runtime.Caller(3)
	if ok {
		file = filepath.Base(file)
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:     levelToString(level),
		Service:   l.service,
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprint(l.console, l.formatTerminalOutput(entry))

	if l.logFile != nil {
		l.logFile.WriteString(formatJSONOutput(entry) + "\n")
	}
}

func (l *Logger) formatTerminalOutput(entry LogEntry) string {
	timestamp := entry.Timestamp[11:19]

	if !l.colorEnabled {
		if entry.File != "" && entry.Line > 0 {
			return fmt.Sprintf("%s %-5s [%-10s] %s (%s:%d)\n", timestamp, entry.Level, entry.Category, entry.Message, entry.File, entry.Line)
		}
		return fmt.Sprintf("%s %-5s [%-10s] %s\n", timestamp, entry.Level, entry.Category, entry.Message)
	}

	var levelColor, categoryColor *color.Color

	switch entry.Level {
	case "DEBUG":
		levelColor = color.New(color.FgCyan)
		categoryColor = color.New(color.FgCyan, color.Bold)
	case "INFO":
		levelColor = color.New(color.FgGreen)
		categoryColor = color.New(color.FgGreen, color.Bold)
	case "WARN":
		levelColor = color.New(color.FgYellow)
		categoryColor = color.New(color.FgYellow, color.Bold)
	case "ERROR", "FATAL":
		levelColor = color.New(color.FgRed)
		categoryColor = color.New(color.FgRed, color.Bold)
	default:
		levelColor = color.New(color.FgWhite)
		categoryColor = color.New(color.FgWhite, color.Bold)
	}

	timeStr := color.New(color.FgBlue).Sprintf("%s", timestamp)
	levelStr := levelColor.Sprintf("%-5s", entry.Level)
	categoryStr := categoryColor.Sprintf("[%-10s]", entry.Category)

	if entry.File != "" && entry.Line > 0 {
		fileInfo := color.New(color.FgMagenta).Sprintf(" (%s:%d)", entry.File, entry.Line)
		return fmt.Sprintf("%s %s %s %s%s\n", timeStr, levelStr, categoryStr, entry.Message, fileInfo)
	}

	return fmt.Sprintf("%s %s %s %s\n", timeStr, levelStr, categoryStr, entry.Message)
}

func formatJSONOutput(entry LogEntry) string {
	jsonBytes, _ := json.Marshal(entry)
	return string(jsonBytes)
}

func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "INFO"
	}
}

func (l *Logger) emit(level LogLevel, category, message string) {
	l.log(level, category, message)
}

func (l *Logger) Debug(category, message string) {
	l.emit(DEBUG, category, message)
}

func (l *Logger) Info(category, message string) {
	l.emit(INFO, category, message)
}

func (l *Logger) Warn(category, message string) {
	l.emit(WARN, category, message)
}

func (l *Logger) Error(category, message string) {
	l.emit(ERROR, category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.emit(FATAL, category, message)
	l.Close()
	l.exit(1)
}

// Component helpers

func (l *Logger) LogOrder(action, orderNumber, message string) {
	l.emit(INFO, "ORDER", fmt.Sprintf("[%s] %s - %s", action, orderNumber, message))
}

func (l *Logger) LogAPI(method, path string, status int, duration time.Duration) {
	l.emit(INFO, "API", fmt.Sprintf("%s %s - %d (%s)", method, path, status, duration))
}

func (l *Logger) LogBus(action, topic, message string) {
	l.emit(INFO, "BUS", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.emit(INFO, "KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogGateway(connID, message string) {
	l.emit(DEBUG, "GATEWAY", fmt.Sprintf("[%s] %s", connID, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.emit(INFO, "DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.emit(WARN, "SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		l.logFile.Close()
		l.logFile = nil
	}
}
