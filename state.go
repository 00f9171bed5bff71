package madxbmad

import (
	"github.com/accelxlate/madxbmad/internal/diag"
	"github.com/accelxlate/madxbmad/internal/ordered"
)

// Element is the canonical record for a defined MADX element, carried
// through to its Bmad rendering. Field names and semantics follow spec.md
// §3 exactly.
type Element struct {
	Name          string
	MadxInherit   string // immediate parent: another element name, or a base type
	MadxBaseType  string // resolved MADX base type (a key of baseTypeTranslate)
	BmadInherit   string
	BmadBaseType  string
	At            string // offset expression, sequence use
	FromRefEle    string // name, sequence use
	Params        *ordered.Map[string]
	Count         int // duplicate-instance counter for sequence reuse
}

// NewElement returns an Element with an initialized, empty parameter map.
// Per spec.md §9's open question, the ordered map is allocated up front
// rather than lazily on first write.
func NewElement(name string) *Element {
	return &Element{Name: name, Params: ordered.New[string]()}
}

// Sequence is the record for a `sequence ... endsequence` block, as
// spec.md §3 defines it.
type Sequence struct {
	Name           string
	Length         string // expression
	Refer          string // entry | centre | exit
	Refpos         string // optional origin element name
	Members        *ordered.Map[*Element]
	DriftCount     int
	LastEleOffset  string // expression; right edge of the last emitted element
	FlattenedLine  []string // comma-joined member names accumulator
}

// NewSequence returns a Sequence with its ordered member map allocated.
func NewSequence(name string) *Sequence {
	return &Sequence{Name: name, Refer: "centre", Members: ordered.New[*Element]()}
}

// Flags holds the translator's process-wide boolean switches, set once from
// CLI options (spec.md §6) and read throughout the pipeline.
type Flags struct {
	Debug         bool
	PrependVars   bool
	Superimpose   bool
	OneFile       bool
}

// varAssign is one queued "name = expr" assignment awaiting the finalizer's
// prepend pass.
type varAssign struct {
	Name string
	Expr string
}

// Context is the single process-scoped state record threaded through the
// whole pipeline: the dispatcher, the expression rewriter (for element
// lookups), and the sequence engine all share one Context by reference.
// This generalizes gothird's single-VM-struct-of-everything pattern the way
// spec.md §9 prescribes: an explicit context value instead of globals.
type Context struct {
	Flags Flags

	Elements  map[string]*Element
	Sequences *ordered.Map[*Sequence]

	SetList     []varAssign
	varNames    map[string]bool
	SuperList   []string

	Use          string
	SeqeditName  string
	InSequence   bool
	CurrentSeq   *Sequence

	Log *diag.Log
}

// NewContext returns a freshly initialized Context.
func NewContext(flags Flags, log *diag.Log) *Context {
	return &Context{
		Flags:     flags,
		Elements:  make(map[string]*Element),
		Sequences: ordered.New[*Sequence](),
		varNames:  make(map[string]bool),
		Log:       log,
	}
}

// bmadParamName renames a MADX parameter to its Bmad equivalent, applying
// the structural rules from spec.md §4.D (tilt rename, kick/rm/tm
// renumbering, skew-strength renaming) ahead of the flat bmadParamName
// table lookup, exactly as original_source's bmad_param does.
func (c *Context) bmadParamName(param, elemName string) string {
	madxType := "xxxx"
	if ele, ok := c.Elements[elemName]; ok {
		madxType = ele.MadxBaseType
	}

	switch {
	case param == "tilt":
		if madxType == "sbend" || madxType == "rbend" {
			return "ref_tilt"
		}
		return "tilt"

	case len(param) == 5 && param[:4] == "kick" && isDigit(param[4]):
		return "tt" + string(param[4])

	case len(param) == 4 && param[:2] == "rm" && isDigit(param[2]) && isDigit(param[3]):
		return "tt" + param[2:]

	case len(param) == 5 && param[:2] == "tm" && isDigit(param[2]) && isDigit(param[3]) && isDigit(param[4]):
		return "tt" + param[2:]

	case len(param) == 3 && param[0] == 'k' && isDecimalDigit(param[1]) && param[2] == 's':
		return param[:2]

	default:
		if name, ok := bmadParamName[param]; ok {
			return name
		}
		return param
	}
}

// isDigit restricts to 1-6, matching original_source's '123456' membership
// checks for the kick/rm/tm multipole-index cases.
func isDigit(b byte) bool { return b >= '1' && b <= '6' }

// isDecimalDigit matches Python's str.isdigit() used by original_source's
// skew-rename case (e.g. "k0s" -> "k0"), which allows the full 0-9 range.
func isDecimalDigit(b byte) bool { return b >= '0' && b <= '9' }
