package madxbmad

import (
	"strings"

	"github.com/accelxlate/madxbmad/internal/source"
)

// typeQualifiers lists leading MADX declaration keywords stripped from the
// front of a command before dispatch, since this translator has no concept
// of MADX's variable-type declarations (spec.md §4.B).
var typeQualifiers = [][]string{
	{"const", "real"},
	{"const", "int"},
	{"const"},
	{"real"},
	{"int"},
	{"shared"},
}

// blockKeywords opens a brace-delimited command body (if/elseif/else/while/
// macro) whose boundary is the matching "}" rather than the next ";".
var blockKeywords = map[string]bool{
	"if": true, "elseif": true, "else": true, "while": true, "macro": true,
}

// Assembler reads runes off a source.Stack and accumulates them into
// complete commands: a flat list of lowercased words, split and normalized
// per spec.md §4.B. This generalizes gothird's tokenizer (first.go's
// rune-at-a-time scan loop) from FIRST's single-char word/number dichotomy
// onto MADX's comment/quote/brace-depth rules.
type Assembler struct {
	in *source.Stack

	inBlockComment  bool
	verbatim        bool
	blockCommentBuf strings.Builder

	// pendingEchoes holds "! ..." lines queued by a comment encountered
	// mid-scan (spec.md §4.B: non-verbatim comments are echoed, not
	// dropped). They are drained, oldest first, ahead of whatever command
	// the same nextLine call eventually produces.
	pendingEchoes   []pendingEcho
	pendingLine     string
	pendingLoc      source.Location
	havePendingLine bool
}

// pendingEcho is one queued comment-echo awaiting delivery as a
// "!!verbatim" passthrough command.
type pendingEcho struct {
	text string
	loc  source.Location
}

// NewAssembler returns an Assembler reading from in.
func NewAssembler(in *source.Stack) *Assembler {
	return &Assembler{in: in}
}

func (a *Assembler) queueEcho(text string) {
	a.pendingEchoes = append(a.pendingEchoes, pendingEcho{text: text, loc: a.in.Location()})
}

// Next reads and returns the next fully-assembled command as a token list,
// along with the input location of its first rune. Returns io.EOF (wrapped
// transparently by the Stack) when the input is exhausted between commands.
func (a *Assembler) Next() ([]string, source.Location, error) {
	for {
		if len(a.pendingEchoes) > 0 {
			echo := a.pendingEchoes[0]
			a.pendingEchoes = a.pendingEchoes[1:]
			return []string{"!!verbatim", echo.text}, echo.loc, nil
		}
		if a.havePendingLine {
			a.havePendingLine = false
			line, loc := a.pendingLine, a.pendingLoc
			if line == "" {
				continue
			}
			return tokenizeCommand(line), loc, nil
		}

		line, loc, passthrough, err := a.nextLine()
		if err != nil {
			return nil, loc, err
		}
		if passthrough != "" {
			return []string{"!!verbatim", passthrough}, loc, nil
		}
		if len(a.pendingEchoes) > 0 {
			a.pendingLine, a.pendingLoc, a.havePendingLine = line, loc, true
			continue
		}
		if line == "" {
			continue
		}
		return tokenizeCommand(line), loc, nil
	}
}

// nextLine accumulates runes until a command boundary (";" outside of any
// brace nesting, or a balancing "}" for a block-opening command), stripping
// comments along the way. A non-empty passthrough return means the line was
// a "!!"-verbatim or "#!"-shebang line, to be carried to the sink unparsed.
func (a *Assembler) nextLine() (line string, loc source.Location, passthrough string, err error) {
	var b strings.Builder
	depth := 0
	isBlock := false
	first := true
	var quoteChar rune

	loc = a.in.Location()
	for {
		r, rerr := a.in.ReadRune()
		if rerr != nil {
			if b.Len() > 0 {
				return b.String(), loc, "", nil
			}
			return "", loc, "", rerr
		}
		if first {
			loc = a.in.Location()
		}

		if a.inBlockComment {
			if r == '*' {
				r2, rerr2 := a.in.ReadRune()
				if rerr2 == nil && r2 == '/' {
					a.inBlockComment = false
					a.queueEcho("!" + a.blockCommentBuf.String())
					a.blockCommentBuf.Reset()
					continue
				}
				a.blockCommentBuf.WriteRune(r)
				if rerr2 == nil {
					a.blockCommentBuf.WriteRune(r2)
				}
				continue
			}
			a.blockCommentBuf.WriteRune(r)
			continue
		}

		if first && b.Len() == 0 && r == '#' {
			rest, _ := a.readRestOfLine()
			if strings.HasPrefix(rest, "!") {
				return "", loc, "#" + rest, nil
			}
			continue
		}
		if first && b.Len() == 0 && r == '!' {
			rest, _ := a.readRestOfLine()
			lower := strings.ToLower(rest)
			if strings.HasPrefix(lower, "!verbatim") {
				return "", loc, strings.TrimSpace(rest[len("!verbatim"):]), nil
			}
			a.queueEcho("!" + rest)
			continue
		}
		if first {
			first = false
		}

		if quoteChar == 0 && r == '/' {
			if r2, _ := a.in.ReadRune(); r2 == '*' {
				a.inBlockComment = true
				a.blockCommentBuf.Reset()
				continue
			} else if r2 == '/' {
				rest, _ := a.readRestOfLine()
				a.queueEcho("!" + rest)
				continue
			}
			b.WriteRune(r)
			continue
		}
		if quoteChar == 0 && r == '!' {
			rest, _ := a.readRestOfLine()
			a.queueEcho("!" + rest)
			continue
		}
		if quoteChar == 0 && (r == '"' || r == '\'') {
			quoteChar = r
			b.WriteRune(r)
			continue
		}
		if quoteChar != 0 {
			b.WriteRune(r)
			if r == quoteChar {
				quoteChar = 0
			}
			continue
		}

		if r == '{' {
			if depth == 0 && !isBlock {
				for _, w := range tokenizeCommand(b.String()) {
					if blockKeywords[w] {
						isBlock = true
						break
					}
				}
			}
			depth++
			b.WriteRune(r)
			continue
		}
		if r == '}' {
			depth--
			b.WriteRune(r)
			if isBlock && depth == 0 {
				return b.String(), loc, "", nil
			}
			continue
		}
		if r == ';' && depth == 0 {
			return b.String(), loc, "", nil
		}
		b.WriteRune(r)
	}
}

func (a *Assembler) readRestOfLine() (string, error) {
	var b strings.Builder
	for {
		r, err := a.in.ReadRune()
		if err != nil {
			return b.String(), err
		}
		if r == '\n' {
			return b.String(), nil
		}
		b.WriteRune(r)
	}
}

// tokenizeCommand splits a raw command body into its lowercased word list,
// per spec.md §4.B: split at structural separators (leaving them as their
// own tokens), synthesize a comma between two space-separated words with no
// intervening operator, normalize ":=" to "=", and strip a leading type
// qualifier.
func tokenizeCommand(line string) []string {
	words := splitStructural(line)
	words = stripTypeQualifier(words)
	words = synthesizeCommas(words)
	return words
}

const structuralSeps = "{}:,="

// splitStructural splits line into words and lone structural-separator
// tokens, treating "(" as a separator only when it appears as the second
// token (the command head's argument list opener), and lowercasing
// everything outside quotes.
func splitStructural(line string) []string {
	var words []string
	var cur strings.Builder
	var quoteChar rune
	sawHead := false

	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if quoteChar == 0 && (r == '"' || r == '\'') {
			cur.WriteRune(r)
			quoteChar = r
			continue
		}
		if quoteChar != 0 {
			cur.WriteRune(r)
			if r == quoteChar {
				quoteChar = 0
			}
			continue
		}
		if r == ':' && i+1 < len(runes) && runes[i+1] == '=' {
			flush()
			words = append(words, "=")
			i++
			continue
		}
		if strings.ContainsRune(structuralSeps, r) {
			flush()
			words = append(words, string(r))
			if r != '{' && r != '}' {
				sawHead = true
			}
			continue
		}
		if r == '(' && !sawHead && (cur.Len() > 0 || len(words) >= 1) {
			flush()
			words = append(words, string(r))
			continue
		}
		if r == ')' && !sawHead {
			flush()
			words = append(words, string(r))
			continue
		}
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			flush()
			continue
		}
		cur.WriteRune(unicodeLower(r))
	}
	flush()
	return words
}

func unicodeLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// synthesizeCommas inserts a "," between two adjacent bare words neither of
// which is a structural token or an arithmetic operator, matching
// original_source's behavior of treating "q1 l=1" the same as "q1, l=1".
func synthesizeCommas(words []string) []string {
	var out []string
	for i, w := range words {
		out = append(out, w)
		if i+1 >= len(words) {
			continue
		}
		next := words[i+1]
		if isBareWord(w) && isBareWord(next) {
			out = append(out, ",")
		}
	}
	return out
}

func isBareWord(w string) bool {
	if w == "" {
		return false
	}
	switch w {
	case "{", "}", ":", ",", "=", "(", ")", "+", "-", "*", "/", "^":
		return false
	}
	return true
}

// stripTypeQualifier removes a leading declaration keyword sequence like
// "const real" from words, per spec.md §4.B.
func stripTypeQualifier(words []string) []string {
	for _, qual := range typeQualifiers {
		if len(words) < len(qual) {
			continue
		}
		match := true
		for i, q := range qual {
			if words[i] != q {
				match = false
				break
			}
		}
		if match {
			return words[len(qual):]
		}
	}
	return words
}
