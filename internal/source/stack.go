// Package source implements the translator's input side: a stack of
// rune-reading sources that supports MADX's nested "call" inclusion and
// "return"/"exit" closure. It is adapted from gothird's
// internal/fileinput.Input, generalized from a single always-present reader
// to an explicit stack so call/return semantics (push on call, pop on EOF
// or return) are visible at the type level.
package source

import (
	"bufio"
	"fmt"
	"io"
)

// Location names a line within a named input.
type Location struct {
	Name string
	Line int
}

func (loc Location) String() string { return fmt.Sprintf("%v:%v", loc.Name, loc.Line) }

// Named is implemented by readers that can report their own name (typically
// a file path) for diagnostics.
type Named interface {
	Name() string
}

// entry is one open source on the stack.
type entry struct {
	rr   io.RuneReader
	name string
	line int
	cl   io.Closer
}

// Stack is a stack of open input sources. The bottom of the stack is the
// root input; popping it (via return/exit or EOF) ends translation.
type Stack struct {
	stack []entry
}

// Push opens a new top-of-stack source. Name is used for diagnostics; if r
// also implements Named, that name is preferred when non-empty.
func Push(s *Stack, r io.Reader, name string) {
	if nm, ok := r.(Named); ok {
		if n := nm.Name(); n != "" {
			name = n
		}
	}
	e := entry{rr: newRuneReader(r), name: name, line: 1}
	if cl, ok := r.(io.Closer); ok {
		e.cl = cl
	}
	s.stack = append(s.stack, e)
}

// Depth returns the number of currently open sources.
func (s *Stack) Depth() int { return len(s.stack) }

// Empty reports whether the stack has no open source (translation is done).
func (s *Stack) Empty() bool { return len(s.stack) == 0 }

// Pop closes and discards the top source, as "return" does at end-of-call
// and "exit"/"quit"/"stop" do unconditionally. Popping an empty stack does
// nothing and returns nil.
func (s *Stack) Pop() (err error) {
	if len(s.stack) == 0 {
		return nil
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	if top.cl != nil {
		err = top.cl.Close()
	}
	return err
}

// Location reports the current top-of-stack position, for diagnostics.
func (s *Stack) Location() Location {
	if len(s.stack) == 0 {
		return Location{}
	}
	top := &s.stack[len(s.stack)-1]
	return Location{Name: top.name, Line: top.line}
}

// ReadRune reads the next rune from the top of the stack, transparently
// popping exhausted sources (EOF) and resuming from the one beneath, exactly
// the way gothird's fileinput.Input.nextIn does. Returns io.EOF only once
// the entire stack is drained.
func (s *Stack) ReadRune() (rune, error) {
	for {
		if len(s.stack) == 0 {
			return 0, io.EOF
		}
		top := &s.stack[len(s.stack)-1]
		r, _, err := top.rr.ReadRune()
		if err == nil {
			if r == '\n' {
				top.line++
			}
			return r, nil
		}
		if err != io.EOF {
			return 0, err
		}
		if perr := s.Pop(); perr != nil {
			return 0, perr
		}
	}
}

// Close closes every remaining source, top to bottom, collecting the first
// error encountered.
func (s *Stack) Close() (err error) {
	for len(s.stack) > 0 {
		if perr := s.Pop(); err == nil {
			err = perr
		}
	}
	return err
}

func newRuneReader(r io.Reader) io.RuneReader {
	if rr, ok := r.(io.RuneReader); ok {
		return rr
	}
	return bufio.NewReader(r)
}
