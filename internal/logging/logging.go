// Package logging builds the logrus logger shared by every sweep component.
package logging

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options controls logger construction.
type Options struct {
	Out     io.Writer
	Debug   bool
	NoColor bool
}

// New returns a logger. Without Debug it prints bare messages (plus fields)
// at info level; with Debug it uses logrus' full text format.
func New(opts Options) *logrus.Logger {
	log := logrus.New()
	if opts.Out != nil {
		log.SetOutput(opts.Out)
	}
	if opts.Debug {
		log.SetLevel(logrus.DebugLevel)
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			DisableColors:    opts.NoColor,
			DisableQuote:     true,
			QuoteEmptyFields: true,
		})
		return log
	}
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&CommandLineFormatter{})
	return log
}

// Discard returns a logger that drops everything. Used by tests and library
// callers that do not care about progress chatter.
func Discard() *logrus.Logger {
	return &logrus.Logger{
		Out:       io.Discard,
		Formatter: new(logrus.TextFormatter),
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.PanicLevel,
	}
}

// CommandLineFormatter renders entries the way a CLI user expects to read
// them: the message, then sorted key=value fields, with a level prefix only
// for warnings and errors.
type CommandLineFormatter struct{}

// Format implements logrus.Formatter.
func (f *CommandLineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var sb strings.Builder
	switch entry.Level {
	case logrus.WarnLevel:
		sb.WriteString("warning: ")
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		sb.WriteString("error: ")
	}
	sb.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Data[k])
	}
	sb.WriteByte('\n')
	return []byte(sb.String()), nil
}
