package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Params configures New.
type Params struct {
	Level    string
	FileName string
	ToStdout bool
	JSON     bool
	// Stdout replaces os.Stdout when set.
	Stdout io.Writer
}

// New builds a logger that writes to stdout, a rotated file, or both.
func New(params Params) *logrus.Logger {
	log := logrus.New()
	if params.JSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	log.SetLevel(GetLevel(params.Level))

	stdout := params.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	if params.FileName == "" {
		log.SetOutput(stdout)
		return log
	}

	if !strings.HasSuffix(params.FileName, ".log") {
		params.FileName += ".log"
	}

	lumberJackLogger := &lumberjack.Logger{
		Filename:  params.FileName,
		MaxSize:   50,    // megabytes
		LocalTime: false, // UTC
		Compress:  true,
	}

	if params.ToStdout {
		log.SetOutput(NewCombinedWriter(stdout, lumberJackLogger))
	} else {
		log.SetOutput(lumberJackLogger)
	}
	return log
}

// GetLevel parses level, falling back to info.
func GetLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "info":
		return logrus.InfoLevel
	case "trace":
		return logrus.TraceLevel
	case "warn", "warning":
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}

// CombinedWriter writes to every writer and keeps going when one fails.
type CombinedWriter struct {
	Writers []io.Writer
}

// NewCombinedWriter returns a CombinedWriter over writers.
func NewCombinedWriter(writers ...io.Writer) *CombinedWriter {
	return &CombinedWriter{Writers: writers}
}

func (cw *CombinedWriter) Write(p []byte) (n int, err error) {
	for _, w := range cw.Writers {
		written, werr := w.Write(p)
		if werr != nil {
			err = multierr.Append(err, werr)
			continue
		}
		n += written
	}
	return n, err
}
