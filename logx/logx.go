package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

const (
	defaultLogFile   = "./logs/rollupstate.log"
	defaultMaxSizeMB = 100
	defaultMaxAgeDay = 7
)

var (
	lumberjackLogger = &lumberjack.Logger{
		Filename: getLogFilename(),
		MaxSize:  getMaxSize(), // megabytes
		MaxAge:   getMaxAge(),  // days
	}

	logger = log.New(output(), "", log.Ldate|log.Ltime|log.Lmicroseconds)
)

func getLogFilename() string {
	if logFile := os.Getenv("LOGFILE"); logFile != "" {
		return "./logs/" + logFile
	}
	return defaultLogFile
}

func getMaxSize() int {
	return envInt("LOGFILE_MAX_SIZE_MB", defaultMaxSizeMB)
}

func getMaxAge() int {
	return envInt("LOGFILE_MAX_AGE_DAYS", defaultMaxAgeDay)
}

func envInt(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		fmt.Fprintf(os.Stderr, "invalid value for %s: %q, using %d\n", name, raw, def)
		return def
	}
	return v
}

// output selects the log sink. LOG_STDOUT=1 mirrors the file to stdout,
// LOG_STDOUT=only skips the file entirely (useful for tests and containers).
func output() io.Writer {
	switch os.Getenv("LOG_STDOUT") {
	case "only":
		return os.Stdout
	case "1", "true":
		return io.MultiWriter(lumberjackLogger, os.Stdout)
	default:
		return lumberjackLogger
	}
}

// SetOutput redirects all log lines to w
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func Info(category string, content ...interface{}) {
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[INFO][%s]%s", ColorGreen, category, ColorReset)
	logger.Printf("%s: %s", coloredCategory, message)
}

func Error(category string, content ...interface{}) {
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[ERROR][%s]%s", ColorRed, category, ColorReset)
	logger.Printf("%s: %s", coloredCategory, message)
}

func Warn(category string, content ...interface{}) {
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[WARN][%s]%s", ColorYellow, category, ColorReset)
	logger.Printf("%s: %s", coloredCategory, message)
}

func Debug(category string, content ...interface{}) {
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[DEBUG][%s]%s", ColorBlue, category, ColorReset)
	logger.Printf("%s: %s", coloredCategory, message)
}

// Errorf logs an error message and returns a formatted error
func Errorf(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	Error("ERROR", err.Error())
	return err
}

// Scoped tags every line with a fixed key, e.g. the id of a restore run.
type Scoped struct {
	category string
	tag      string
}

func WithTag(category, tag string) Scoped {
	return Scoped{category: category, tag: tag}
}

func (s Scoped) Info(content ...interface{}) {
	Info(s.category, s.prefixed(content)...)
}

func (s Scoped) Warn(content ...interface{}) {
	Warn(s.category, s.prefixed(content)...)
}

func (s Scoped) Error(content ...interface{}) {
	Error(s.category, s.prefixed(content)...)
}

func (s Scoped) Debug(content ...interface{}) {
	Debug(s.category, s.prefixed(content)...)
}

func (s Scoped) prefixed(content []interface{}) []interface{} {
	return append([]interface{}{"[" + s.tag + "] "}, content...)
}
