package logger_test

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/tactix/pkg/logger"
)

func TestFormatter(t *testing.T) {
	Convey("Given a log entry", t, func() {
		entry := &logrus.Entry{
			Logger:  logrus.New(),
			Time:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Level:   logrus.WarnLevel,
			Message: "storage fallback",
			Data:    logrus.Fields{"key": "tactix:1:my_team"},
		}

		Convey("Then it renders time, short level, message and fields", func() {
			out, err := (&logger.Formatter{}).Format(entry)
			So(err, ShouldBeNil)
			line := string(out)
			So(line, ShouldStartWith, "[2026-01-02 03:04:05] [WARN] storage fallback")
			So(line, ShouldContainSubstring, "storage fallback")
			So(line, ShouldContainSubstring, "key=tactix:1:my_team")
			So(strings.HasSuffix(line, "\n"), ShouldBeTrue)
		})

		Convey("With a caller it renders the file and line", func() {
			entry.Logger.SetReportCaller(true)
			entry.Caller = &runtime.Frame{File: "/src/internal/storage/fallback.go", Line: 42}
			out, err := (&logger.Formatter{}).Format(entry)
			So(err, ShouldBeNil)
			So(string(out), ShouldStartWith, "[2026-01-02 03:04:05] [WARN] [fallback.go:42] storage fallback")
		})
	})
}

func TestWith(t *testing.T) {
	Convey("Given the global logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		prev := logger.Log
		l := logrus.New()
		l.SetReportCaller(true)
		l.SetFormatter(&logger.Formatter{})
		l.SetOutput(&buf)
		logger.Log = l
		defer func() { logger.Log = prev }()

		Convey("When a component logs", func() {
			logger.With("voice").Info("connected")

			Convey("Then the line carries the caller and the component", func() {
				line := buf.String()
				So(line, ShouldContainSubstring, "[logger_test.go:")
				So(line, ShouldContainSubstring, "connected component=voice")
			})
		})
	})
}

func TestInit(t *testing.T) {
	Convey("Given a log file path in a fresh directory", t, func() {
		path := filepath.Join(t.TempDir(), "logs", "tactix.log")

		Convey("When the logger is initialised with an unknown level", func() {
			err := logger.Init("loud", path)

			Convey("Then it falls back to info and writes to the file", func() {
				So(err, ShouldBeNil)
				So(logger.Log.GetLevel(), ShouldEqual, logrus.InfoLevel)

				logger.Log.Info("hello")
				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, "hello")
			})
		})
	})
}
