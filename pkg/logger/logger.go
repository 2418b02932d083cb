package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
)

var ginOnce sync.Once

// InitLogger builds a logrus entry tagged with the component name. The first
// call also decides the gin mode: debug output only at debug level.
func InitLogger(logLevel string, node string) *logrus.Entry {
	formattedLogger := logrus.New()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.WithError(err).Error("Error parsing log level, using: info")
		level = logrus.InfoLevel
	}

	formattedLogger.Level = level
	formattedLogger.SetReportCaller(true)
	formattedLogger.Formatter = &logrus.TextFormatter{
		FullTimestamp: true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			wd, _ := os.Getwd()
			filename := strings.TrimPrefix(f.File, wd+"/")
			return fmt.Sprintf("%s()", shortFunc(f.Function)), fmt.Sprintf("%s:%d", filename, f.Line)
		},
	}
	log := logrus.NewEntry(formattedLogger).WithField("node", node)
	ginOnce.Do(func() {
		if level == logrus.DebugLevel {
			gin.DefaultWriter = log.Writer()
			gin.SetMode(gin.DebugMode)
		} else {
			gin.DefaultWriter = io.Discard
			gin.SetMode(gin.ReleaseMode)
		}
	})

	return log
}

// Discard returns an entry that drops everything; handy in tests.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}

// SetGlobalLevel aligns the zerolog global logger with the configured level.
func SetGlobalLevel(logLevel string) {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func shortFunc(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		return fn[i+1:]
	}
	return fn
}
