package madxbmad

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/accelxlate/madxbmad/internal/diag"
	"github.com/accelxlate/madxbmad/internal/panicerr"
	"github.com/accelxlate/madxbmad/internal/source"
	"github.com/accelxlate/madxbmad/internal/wrap"
)

// outFile is one open output destination: its body is buffered in memory so
// the finalizer can prepend the provenance header, the hoisted variable
// assignments, and the super-list ahead of it without a literal reopen of
// the file on disk (spec.md §4.G).
type outFile struct {
	path string
	buf  *bytes.Buffer
	w    *wrap.Writer
}

func newOutFile(path string) *outFile {
	var buf bytes.Buffer
	return &outFile{path: path, buf: &buf, w: wrap.New(&buf)}
}

// Translator holds the whole process: the token assembler reading off an
// input stack, the shared translation Context, and a stack of output
// destinations (more than one deep only in --many-files mode). This plays
// the role gothird's VM struct plays for the FIRST/THIRD interpreter,
// generalized from one always-open input/output pair to explicit stacks.
type Translator struct {
	ctx *Context
	in  *source.Stack
	asm *Assembler
	outs []*outFile

	rootInputPath string
	log           *diag.Log
	logger        *logrus.Logger
}

// TranslatorOption configures a Translator at construction, mirroring
// gothird's VMOption functional-options pattern (internal/options.go).
type TranslatorOption interface{ apply(t *Translator) }

type options []TranslatorOption

func (opts options) apply(t *Translator) {
	for _, opt := range opts {
		if opt != nil {
			opt.apply(t)
		}
	}
}

// TranslatorOptions flattens nested option slices into one option value.
func TranslatorOptions(opts ...TranslatorOption) TranslatorOption {
	var res options
	for _, opt := range opts {
		switch impl := opt.(type) {
		case nil, noption:
		case options:
			res = append(res, impl...)
		default:
			res = append(res, opt)
		}
	}
	switch len(res) {
	case 0:
		return noption{}
	case 1:
		return res[0]
	default:
		return res
	}
}

type noption struct{}

func (noption) apply(*Translator) {}

type flagsOption Flags

func (f flagsOption) apply(t *Translator) { t.ctx.Flags = Flags(f) }

// WithFlags sets the translator's CLI-derived behavior switches.
func WithFlags(f Flags) TranslatorOption { return flagsOption(f) }

type loggerOption struct{ logger *logrus.Logger }

func (o loggerOption) apply(t *Translator) { t.logger = o.logger }

// WithLogger sets the logrus.Logger diagnostics are written through.
func WithLogger(logger *logrus.Logger) TranslatorOption { return loggerOption{logger} }

// New returns a Translator ready to have an input pushed onto it via Open.
func New(opts ...TranslatorOption) *Translator {
	t := &Translator{in: &source.Stack{}}
	t.ctx = NewContext(Flags{PrependVars: true}, nil)
	TranslatorOptions(opts...).apply(t)
	t.log = diag.New(t.logger)
	t.ctx.Log = t.log
	t.asm = NewAssembler(t.in)
	return t
}

// Open pushes path as the root input, derives the root output path from it
// (spec.md §6's "File naming"), and pushes the first, in-memory outFile; the
// output file itself is created only when that outFile is finalized.
func (t *Translator) Open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening input %q: %w", path, err)
	}
	t.rootInputPath = path
	source.Push(t.in, f, path)
	t.pushOutput(bmadFileName(path))
	return nil
}

func (t *Translator) pushOutput(path string) {
	t.outs = append(t.outs, newOutFile(path))
}

func (t *Translator) currentOut() *outFile {
	return t.outs[len(t.outs)-1]
}

// bmadFileName derives the output path for a MADX input path, substituting
// a case-preserving "madx" with "bmad" in the basename, or appending
// ".bmad" if no such substring is present (spec.md §6).
func bmadFileName(path string) string {
	dir, base := filepath.Split(path)
	if i := strings.LastIndex(strings.ToLower(base), "madx"); i >= 0 {
		return dir + recase(base, i, "bmad")
	}
	return path + ".bmad"
}

// recase replaces the 4 bytes of s starting at i with replacement, matching
// the case pattern (upper/lower) of the bytes it replaces.
func recase(s string, i int, replacement string) string {
	orig := s[i : i+4]
	var b strings.Builder
	for j, r := range replacement {
		if j < len(orig) && orig[j] >= 'A' && orig[j] <= 'Z' {
			b.WriteRune(toUpperRune(r))
		} else {
			b.WriteRune(r)
		}
	}
	return s[:i] + b.String() + s[i+4:]
}

func toUpperRune(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}

// Run drives the whole translate-and-finalize pipeline to completion,
// recovering any panic or stray goroutine exit into an ordinary error the
// way gothird's api.go wraps VM.run with panicerr.Recover.
func (t *Translator) Run(ctx context.Context) error {
	err := panicerr.Recover("Translator", func() error {
		return t.run(ctx)
	})
	if err == nil || err == io.EOF {
		return nil
	}
	return err
}

func (t *Translator) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		words, loc, err := t.asm.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		if t.ctx.Flags.Debug {
			t.log.At(loc).Debugf("tokens: %q", words)
		}
		if err := t.dispatch(words, loc); err != nil {
			return err
		}
		if t.in.Empty() {
			break
		}
	}
	return t.finalize()
}

// finalize flushes every still-open output in turn, prepending the
// provenance header, the hoisted variable assignments (when PrependVars is
// set), and the super-list ahead of the buffered body (spec.md §4.G).
func (t *Translator) finalize() error {
	for len(t.outs) > 0 {
		of := t.outs[len(t.outs)-1]
		t.outs = t.outs[:len(t.outs)-1]
		if err := t.writeFinal(of); err != nil {
			return err
		}
	}
	return nil
}

func (t *Translator) writeFinal(of *outFile) error {
	f, err := os.Create(of.path)
	if err != nil {
		t.log.Fatal(err)
		return fmt.Errorf("opening output %q: %w", of.path, err)
	}
	defer f.Close()

	lw := wrap.New(f)
	if err := lw.WriteLine(fmt.Sprintf("!+ / Translated from MADX to Bmad / File: %s /-", t.rootInputPath)); err != nil {
		return err
	}
	if err := lw.WriteLine(""); err != nil {
		return err
	}

	if t.ctx.Flags.PrependVars {
		for _, va := range t.ctx.SetList {
			if err := lw.WriteLine(fmt.Sprintf("%s = %s", va.Name, va.Expr)); err != nil {
				return err
			}
		}
	}
	for _, super := range t.ctx.SuperList {
		if err := lw.WriteLine(super); err != nil {
			return err
		}
	}
	if err := lw.Flush(); err != nil {
		return err
	}

	_, err = io.Copy(f, of.buf)
	return err
}
