package madxbmad

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accelxlate/madxbmad/internal/diag"
	"github.com/accelxlate/madxbmad/internal/source"
	"github.com/accelxlate/madxbmad/internal/wrap"
)

func newDispatchTestTranslator() (*Translator, *bytes.Buffer) {
	var buf bytes.Buffer
	tr := &Translator{
		ctx: NewContext(Flags{}, diag.New(nil)),
		in:  &source.Stack{},
	}
	tr.log = tr.ctx.Log
	tr.outs = []*outFile{{path: "test.bmad", buf: &buf, w: wrap.New(&buf)}}
	return tr, &buf
}

func dispatchLines(buf *bytes.Buffer) []string {
	s := strings.TrimRight(buf.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestDispatchWarnsAndSkipsUnsupportedControlFlow(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	require.NoError(t, tr.dispatch([]string{"if", "(", "x", "=", "1", ")"}, source.Location{}))
	assert.Empty(t, buf.String())
	assert.Equal(t, 1, tr.ctx.Log.Warnings())
}

func TestDispatchSkipsSilentlyRecognizedCommandsWithoutWarning(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	require.NoError(t, tr.dispatch([]string{"select", ",", "flag", "=", "sequence"}, source.Location{}))
	assert.Empty(t, buf.String())
	assert.Equal(t, 0, tr.ctx.Log.Warnings())
}

func TestDispatchSkipsAnyCommandContainingMacroToken(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	require.NoError(t, tr.dispatch([]string{"mymac", ":", "macro", "(", "x", ")"}, source.Location{}))
	assert.Empty(t, buf.String())
	assert.Equal(t, 0, tr.ctx.Log.Warnings())
}

func TestDispatchWarnsUnsupportedSequenceOp(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	require.NoError(t, tr.dispatch([]string{"cycle", ",", "start", "=", "q1"}, source.Location{}))
	assert.Empty(t, buf.String())
	assert.Equal(t, 1, tr.ctx.Log.Warnings())
}

func TestDispatchSeqeditCapturesNameAndEndeditClearsIt(t *testing.T) {
	tr, _ := newDispatchTestTranslator()
	require.NoError(t, tr.dispatch([]string{"seqedit", ",", "sequence", "=", "seq1"}, source.Location{}))
	assert.Equal(t, "seq1", tr.ctx.SeqeditName)

	require.NoError(t, tr.dispatch([]string{"endedit"}, source.Location{}))
	assert.Equal(t, "", tr.ctx.SeqeditName)
}

func TestDispatchInstallEmitsClassAndSuperimposeWithExplicitFrom(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	words := []string{
		"install", ",", "element", "=", "q1", ",", "class", "=", "quadrupole",
		",", "at", "=", "2", ",", "from", "=", "mk1",
	}
	require.NoError(t, tr.dispatch(words, source.Location{}))
	assert.Equal(t, []string{
		"q1: quadrupole",
		"superimpose, element = q1, ref = mk1, offset = 2",
	}, dispatchLines(buf))
}

func TestDispatchInstallWithoutFromUsesSeqeditMarker(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	tr.ctx.SeqeditName = "seq1"
	words := []string{"install", ",", "element", "=", "q1", ",", "at", "=", "2"}
	require.NoError(t, tr.dispatch(words, source.Location{}))
	assert.Equal(t, []string{
		"superimpose, element = q1, ref = seq1_mark, offset = 2",
	}, dispatchLines(buf))
}

func TestDispatchExitQuitStopPopInput(t *testing.T) {
	for _, head := range []string{"exit", "quit", "stop"} {
		tr, _ := newDispatchTestTranslator()
		source.Push(tr.in, strings.NewReader("irrelevant"), "root.madx")
		require.NoError(t, tr.dispatch([]string{head}, source.Location{}))
		assert.Equal(t, 0, tr.in.Depth(), "head %q should pop the input stack", head)
	}
}

func TestDispatchTitleWithoutCommaPrefixesLiteral(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	require.NoError(t, tr.dispatch([]string{"title", "hello"}, source.Location{}))
	assert.Equal(t, []string{"title, hello"}, dispatchLines(buf))
}

func TestDispatchTitleWithCommaJoinsAllWords(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	require.NoError(t, tr.dispatch([]string{"title", ",", `"my title"`}, source.Location{}))
	assert.Equal(t, []string{`title , "my title"`}, dispatchLines(buf))
}

func TestDispatchEndsequenceRoutesToEndSequence(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	require.NoError(t, tr.dispatch(
		[]string{"seq", ":", "sequence", ",", "l", "=", "1", ",", "refer", "=", "entry"},
		source.Location{}))
	require.NoError(t, tr.dispatch([]string{"endsequence"}, source.Location{}))
	assert.False(t, tr.ctx.InSequence)
	assert.Contains(t, buf.String(), "seq: line = (")
}

func TestDispatchUseCapturesBareSequenceName(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	require.NoError(t, tr.dispatch([]string{"use", ",", "seq1"}, source.Location{}))
	assert.Equal(t, "seq1", tr.ctx.Use)
	assert.Equal(t, []string{"use, seq1"}, dispatchLines(buf))
}

func TestDispatchUseWithSequenceParam(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	require.NoError(t, tr.dispatch([]string{"use", ",", "sequence", "=", "seq1"}, source.Location{}))
	assert.Equal(t, "seq1", tr.ctx.Use)
	assert.Equal(t, []string{"use, seq1"}, dispatchLines(buf))
}

func TestDispatchBeamEmitsKnownKeysInFixedOrder(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	words := []string{"beam", ",", "particle", "=", "positron", ",", "energy", "=", "450"}
	require.NoError(t, tr.dispatch(words, source.Location{}))
	assert.Equal(t, []string{
		"parameter[particle] = positron",
		"parameter[E_tot] = 450 * 1e9",
	}, dispatchLines(buf))
}

func TestDispatchBeamGammaUsesMassOfParticle(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	words := []string{"beam", ",", "gamma", "=", "1.5"}
	require.NoError(t, tr.dispatch(words, source.Location{}))
	assert.Equal(t, []string{
		"parameter[E_tot] = mass_of(parameter[particle]) * 1.5",
	}, dispatchLines(buf))
}

func TestDispatchTwissRoutesBareHeadAndScalesAnglesByTwopi(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	words := []string{"twiss", ",", "betx", "=", "1.5", ",", "mux", "=", "0.25"}
	require.NoError(t, tr.dispatch(words, source.Location{}))
	assert.Equal(t, []string{
		"beginning[beta_a] = 1.5",
		"beginning[phi_a] = twopi * 0.25",
	}, dispatchLines(buf))
}

func TestDispatchVarAssignEmitsDirectlyWithoutPrependVars(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	require.NoError(t, tr.dispatch([]string{"x", "=", "1", "+", "2"}, source.Location{}))
	assert.Equal(t, []string{"x = 1+2"}, dispatchLines(buf))
}

func TestDispatchVarAssignWarnsOnDuplicateName(t *testing.T) {
	tr, _ := newDispatchTestTranslator()
	require.NoError(t, tr.dispatch([]string{"x", "=", "1"}, source.Location{}))
	require.NoError(t, tr.dispatch([]string{"x", "=", "2"}, source.Location{}))
	assert.Equal(t, 1, tr.ctx.Log.Warnings())
}

func TestDispatchVarAssignHoistsWhenPrependVarsSet(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	tr.ctx.Flags.PrependVars = true
	require.NoError(t, tr.dispatch([]string{"x", "=", "1", "+", "2"}, source.Location{}))
	assert.Empty(t, buf.String())
	require.Len(t, tr.ctx.SetList, 1)
	assert.Equal(t, "x", tr.ctx.SetList[0].Name)
	assert.Equal(t, "1+2", tr.ctx.SetList[0].Expr)
}

func TestDispatchAttrAssignRoutesArrowSyntax(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	require.NoError(t, tr.dispatch([]string{"q1->k1", "=", "0.5"}, source.Location{}))
	assert.Equal(t, []string{"q1[k1] = 0.5"}, dispatchLines(buf))
}

func TestDispatchElementAttrCommaSyntaxRequiresKnownElement(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	ele := tr.ctx.defineElement([]string{"q1", ":", "quadrupole", ",", "l", "=", "0.5"}, source.Location{})
	require.NotNil(t, ele)

	require.NoError(t, tr.dispatch([]string{"q1", ",", "k1", "=", "0.6"}, source.Location{}))
	assert.Equal(t, []string{"q1[k1] = 0.6"}, dispatchLines(buf))
}

func TestDispatchDefinesElementAsFallback(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	words := []string{"q2", ":", "quadrupole", ",", "l", "=", "0.5"}
	require.NoError(t, tr.dispatch(words, source.Location{}))
	assert.Equal(t, []string{"q2: quadrupole, l = 0.5"}, dispatchLines(buf))
}

func TestDispatchWarnsUnknownConstruct(t *testing.T) {
	tr, buf := newDispatchTestTranslator()
	require.NoError(t, tr.dispatch([]string{"zzz", "foo", "bar"}, source.Location{}))
	assert.Empty(t, buf.String())
	assert.Equal(t, 1, tr.ctx.Log.Warnings())
}

func TestDispatchCallOpensFilePushesInputAndEmitsCallLine(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "included-*.madx")
	require.NoError(t, err)
	_, err = tmp.WriteString("! empty include\n")
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	tr, buf := newDispatchTestTranslator()
	words := []string{"call", ",", "file", "=", `"` + tmp.Name() + `"`}
	require.NoError(t, tr.dispatch(words, source.Location{}))

	assert.Equal(t, 1, tr.in.Depth())
	assert.Contains(t, buf.String(), "call, file = "+bmadFileName(tmp.Name()))
}

func TestDispatchCallMissingFileReturnsError(t *testing.T) {
	tr, _ := newDispatchTestTranslator()
	words := []string{"call", ",", "file", "=", "does-not-exist.madx"}
	err := tr.dispatch(words, source.Location{})
	assert.Error(t, err)
}
