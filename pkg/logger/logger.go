package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Leveled logger shared by the API server and arkzctl. The *f functions
// format a message; the *w functions append sorted key=value fields so
// workflow events can be grepped by draft and org.

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"debug", "info", "warn", "error", "fatal"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelFatal {
		return "info"
	}
	return levelNames[l]
}

// ParseLevel is case-insensitive and also accepts "warning". Unknown input
// yields LevelInfo.
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return LevelWarn
	}
	for i, n := range levelNames {
		if n == s {
			return Level(i)
		}
	}
	return LevelInfo
}

var (
	mu    sync.RWMutex
	out   = log.New(os.Stdout, "", 0)
	level = LevelInfo
)

// Init sets the global level. Call it once at startup.
func Init(l string) {
	mu.Lock()
	level = ParseLevel(l)
	mu.Unlock()
}

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	return level.String()
}

// SetOutput redirects log lines, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = log.New(w, "", 0)
	mu.Unlock()
}

func emit(l Level, line string) {
	mu.RLock()
	enabled, dst := l >= level, out
	mu.RUnlock()
	if !enabled {
		return
	}
	dst.Print(time.Now().Format(time.RFC3339) + " [" + strings.ToUpper(l.String()) + "] " + line)
}

func Debugf(format string, v ...interface{}) { emit(LevelDebug, fmt.Sprintf(format, v...)) }
func Infof(format string, v ...interface{})  { emit(LevelInfo, fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...interface{})  { emit(LevelWarn, fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...interface{}) { emit(LevelError, fmt.Sprintf(format, v...)) }

// Fatalf always logs, then exits with status 1.
func Fatalf(format string, v ...interface{}) {
	emit(LevelFatal, fmt.Sprintf(format, v...))
	os.Exit(1)
}

// Fields are structured key/value pairs rendered sorted by key.
type Fields map[string]interface{}

func (f Fields) String() string {
	if len(f) == 0 {
		return ""
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		v := fmt.Sprint(f[k])
		if strings.ContainsAny(v, " \t\"=") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(&b, " %s=%s", k, v)
	}
	return b.String()
}

func Infow(msg string, f Fields)  { emit(LevelInfo, msg+f.String()) }
func Warnw(msg string, f Fields)  { emit(LevelWarn, msg+f.String()) }
func Errorw(msg string, f Fields) { emit(LevelError, msg+f.String()) }
