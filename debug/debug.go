package debug

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//
// Debug output is controled by the DPROCDEBUG environment variable,
// which can be a list of selectors (e.g., "NAMEI;RPCCLNT").
// SetDebug overrides the environment, e.g. from a node's config.
//

const DPROCDEBUG = "DPROCDEBUG"

var (
	mu     sync.RWMutex
	labels map[Tselector]bool
	name   string
	logger *zap.SugaredLogger
)

func init() {
	labels = parseLabels(os.Getenv(DPROCDEBUG))
	name = "dproc"
	logger = newLogger()
}

func newLogger() *zap.SugaredLogger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
	cfg.EncodeCaller = nil
	cfg.CallerKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stderr), zapcore.DebugLevel)
	return zap.New(core).Sugar()
}

func parseLabels(s string) map[Tselector]bool {
	m := make(map[Tselector]bool)
	if s == "" {
		return m
	}
	for _, l := range strings.Split(s, ";") {
		m[Tselector(strings.TrimSpace(l))] = true
	}
	return m
}

// Name sets the name prefixed to every debug line (e.g., the node name).
func Name(n string) {
	mu.Lock()
	defer mu.Unlock()
	name = n
}

func getName() string {
	mu.RLock()
	defer mu.RUnlock()
	return name
}

// SetDebug replaces the enabled selectors.
func SetDebug(s string) {
	mu.Lock()
	defer mu.Unlock()
	labels = parseLabels(s)
}

func IsLabelSet(label Tselector) bool {
	mu.RLock()
	defer mu.RUnlock()
	return labels[label]
}

func DPrintf(label Tselector, format string, v ...interface{}) {
	if label == ALWAYS || IsLabelSet(label) {
		n := getName()
		logger.Infof("%v %v %v", n, label, fmt.Sprintf(format, v...))
	}
}

func DFatalf(format string, v ...interface{}) {
	// Get info for the caller.
	pc, file, line, ok := runtime.Caller(1)
	fnDetails := runtime.FuncForPC(pc)
	n := getName()
	if ok && fnDetails != nil {
		logger.Fatalf("FATAL %v %v %v:%v %v", n, fnDetails.Name(), file, line, fmt.Sprintf(format, v...))
	} else {
		logger.Fatalf("FATAL %v (missing details) %v", n, fmt.Sprintf(format, v...))
	}
}
