// Package diag implements the translator's diagnostic reporting: every
// category from the error-handling taxonomy (unknown construct,
// untranslatable element, unsupported control flow, unsupported sequence
// operation, parser malformation, ambiguous reference, duplicate variable)
// is logged but never fatal. This generalizes gothird's internal/logio
// leveled logger (itself built around "log, but keep going, and remember
// whether to exit non-zero") onto a real logging backend, logrus, the way
// vippsas-sqlcode pairs cobra with logrus for its own SQL-translation CLI.
package diag

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Category names one of the taxonomy's diagnostic kinds, carried as a
// logrus field so translator output can be grepped/filtered per category.
type Category string

const (
	UnknownConstruct       Category = "unknown-construct"
	UntranslatableElement  Category = "untranslatable-element"
	UnsupportedControlFlow Category = "unsupported-control-flow"
	UnsupportedSequenceOp  Category = "unsupported-sequence-op"
	ParserMalformation     Category = "parser-malformation"
	AmbiguousReference     Category = "ambiguous-reference"
	DuplicateVariable      Category = "duplicate-variable"
)

// Log is the translator's diagnostic sink. All reported conditions are
// informational: Log never halts the translation. Fatal (the root
// input/output file failing to open) only writes an error-level record; the
// run ends because its caller returns the error, and the process exit status
// comes from that returned error. Log keeps no record of Fatal calls.
type Log struct {
	entry    *logrus.Entry
	warnings int
}

// New returns a Log writing through logger, defaulting to a fresh
// logrus.Logger if logger is nil.
func New(logger *logrus.Logger) *Log {
	if logger == nil {
		logger = logrus.New()
	}
	return &Log{entry: logrus.NewEntry(logger)}
}

// At returns the current input location as a logrus field, for callers that
// want to decorate a warning with file:line.
func (l *Log) At(loc fmt.Stringer) *logrus.Entry {
	return l.entry.WithField("at", loc.String())
}

// Warn records a recoverable, skip-and-continue diagnostic under category.
func (l *Log) Warn(cat Category, format string, args ...interface{}) {
	l.warnings++
	l.entry.WithField("category", string(cat)).Warnf(format, args...)
}

// WarnAt is Warn decorated with an input location.
func (l *Log) WarnAt(cat Category, loc fmt.Stringer, format string, args ...interface{}) {
	l.warnings++
	l.entry.WithField("category", string(cat)).WithField("at", loc.String()).Warnf(format, args...)
}

// Fatal records the one condition spec.md treats as fatal: failure to open
// the root input or output file.
func (l *Log) Fatal(err error) {
	l.entry.WithField("category", "fatal").Error(err)
}

// Warnings reports how many Warn/WarnAt calls have been made so far.
func (l *Log) Warnings() int { return l.warnings }
