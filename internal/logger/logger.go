package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// ********************************************************
// ********* LOGGING **************************************
// ********************************************************

var (
	mu           sync.Mutex
	showDateTime bool
	defaultLog   *Logger
	logFile      *os.File
)

type LogLevel int

const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorYellow  = "\033[33m"
	colorOrange  = "\033[38;5;208m"
)

const (
	DEBUG LogLevel = iota
	INFO
	INFORM
	HIGHLIGHT
	WARN
	ERROR
	FATAL
)

// DefaultLogFile is where file output goes unless SetLogOutput is given a path
const DefaultLogFile = "/tmp/oracle.log"

type Logger struct {
	infoLogger  *log.Logger
	errorLogger *log.Logger
	level       LogLevel
	colour      bool
}

func init() {
	defaultLog = NewLogger(INFO)
}

func flags() int {
	if showDateTime {
		return log.Ldate | log.Ltime
	}
	return 0
}

func NewLogger(level LogLevel) *Logger {
	return &Logger{
		infoLogger:  log.New(os.Stdout, "", flags()),
		errorLogger: log.New(os.Stderr, "", flags()),
		level:       level,
		colour:      true,
	}
}

func SetShowDateTime(value bool) {
	mu.Lock()
	defer mu.Unlock()
	showDateTime = value
	defaultLog.infoLogger.SetFlags(flags())
	defaultLog.errorLogger.SetFlags(flags())
}

// SetLevel changes the minimum level written by the package level functions
func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	defaultLog.level = level
}

// GetLevel returns the minimum level currently written
func GetLevel() LogLevel {
	mu.Lock()
	defer mu.Unlock()
	return defaultLog.level
}

// ParseLevel turns "debug", "INFO", "warn" etc. into a LogLevel
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "INFORM":
		return INFORM, nil
	case "HIGHLIGHT":
		return HIGHLIGHT, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	case "FATAL":
		return FATAL, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

// SetWriters points both loggers at the given writers and disables colour codes.
// Mostly useful for tests that want to capture output.
func SetWriters(info, errs io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	defaultLog.infoLogger = log.New(info, "", flags())
	defaultLog.errorLogger = log.New(errs, "", flags())
	defaultLog.colour = false
}

// SetLogOutput sets the output destination for logs
// 'c' for console, 'f' for file, 'b' for both.
// path is only used for 'f' and 'b', an empty path means DefaultLogFile
func SetLogOutput(outputType rune, path string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	if path == "" {
		path = DefaultLogFile
	}

	var infoWriter, errorWriter io.Writer
	switch outputType {
	case 'c':
		infoWriter, errorWriter = os.Stdout, os.Stderr
	case 'f', 'b':
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		logFile = f
		if outputType == 'f' {
			infoWriter, errorWriter = f, f
		} else {
			infoWriter = io.MultiWriter(os.Stdout, f)
			errorWriter = io.MultiWriter(os.Stderr, f)
		}
	default:
		return fmt.Errorf("invalid log output type: %c", outputType)
	}

	defaultLog.infoLogger = log.New(infoWriter, "", flags())
	defaultLog.errorLogger = log.New(errorWriter, "", flags())
	defaultLog.colour = outputType == 'c'
	return nil
}

// Close releases the log file if one is open
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

func (l *Logger) log(level LogLevel, format string, v ...any) {
	mu.Lock()
	defer mu.Unlock()
	if level < l.level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file = "unknown"
		line = 0
	}
	file = filepath.Base(file)

	msg := format
	var jsonObjects []string
	if len(v) > 0 {
		var processed []string
		processed, jsonObjects = processArgs(v...)
		if len(processed) > 0 {
			msg = format + " " + strings.Join(processed, " ")
		}
	}

	out := l.infoLogger
	if level >= ERROR {
		out = l.errorLogger
	}
	out.Println(l.format(level, file, line, msg))
	for _, obj := range jsonObjects {
		out.Println(l.format(level, file, line, obj))
	}
}

func (l *Logger) format(level LogLevel, file string, line int, msg string) string {
	if !l.colour {
		return fmt.Sprintf("[%s] %s:%d: %s", level, file, line, msg)
	}
	return fmt.Sprintf("[%s] %s:%d: %s%s%s", level, file, line, level.colour(), msg, colorReset)
}

func (l LogLevel) colour() string {
	switch l {
	case DEBUG:
		return colorBlue
	case INFO:
		return colorGreen
	case INFORM:
		return colorMagenta
	case HIGHLIGHT:
		return colorCyan
	case WARN:
		return colorYellow
	case ERROR:
		return colorOrange
	case FATAL:
		return colorRed
	}
	return colorReset
}

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case INFORM:
		return "INFORM"
	case HIGHLIGHT:
		return "HIGHLIGHT"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// processArgs renders primitives inline and everything else as indented JSON
// printed on the following lines
func processArgs(args ...any) ([]string, []string) {
	var primitives []string
	var jsonObjects []string

	for _, arg := range args {
		if isPrimitive(arg) {
			primitives = append(primitives, formatPrimitive(arg))
			continue
		}
		b, err := json.MarshalIndent(arg, "", "  ")
		if err != nil {
			primitives = append(primitives, fmt.Sprintf("%v", arg))
			continue
		}
		primitives = append(primitives, fmt.Sprintf("[Object of type %s]", reflect.TypeOf(arg)))
		jsonObjects = append(jsonObjects, string(b))
	}
	return primitives, jsonObjects
}

func formatPrimitive(arg any) string {
	switch v := arg.(type) {
	case float32:
		return fmt.Sprintf("%.2f", v)
	case float64:
		return fmt.Sprintf("%.2f", v)
	case string:
		return v
	case error:
		return v.Error()
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func isPrimitive(v any) bool {
	if v == nil {
		return true
	}
	switch v.(type) {
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, error:
		return true
	default:
		return false
	}
}

// Convenience methods using the default logger
func Debug(format string, v ...any) {
	defaultLog.log(DEBUG, format, v...)
}

func Info(format string, v ...any) {
	defaultLog.log(INFO, format, v...)
}

func Inform(format string, v ...any) {
	defaultLog.log(INFORM, format, v...)
}

func Highlight(format string, v ...any) {
	defaultLog.log(HIGHLIGHT, format, v...)
}

func Warn(format string, v ...any) {
	defaultLog.log(WARN, format, v...)
}

func Error(format string, v ...any) {
	defaultLog.log(ERROR, format, v...)
}

func Fatal(format string, v ...any) {
	defaultLog.log(FATAL, format, v...)
	os.Exit(1)
}
