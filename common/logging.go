// Package common provides the daemon's shared logging infrastructure: a
// single logrus logger with output routed so error-level records land on
// stderr and everything else on stdout, matching how containerized log
// collectors expect the two streams to be used.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted log lines to stderr when they carry
// "level=error" and to stdout otherwise.
type OutputSplitter struct{}

func (splitter *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte("level=error")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the process-wide logger. Every component logs through it
// (optionally via WithField("component", ...)) rather than fmt/log.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}
