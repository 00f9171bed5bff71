package madxbmad

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBmadFileNameLowercaseSubstitution(t *testing.T) {
	assert.Equal(t, "lattice.bmad", bmadFileName("lattice.madx"))
}

func TestBmadFileNameUppercasePreservesCase(t *testing.T) {
	assert.Equal(t, "LATTICE.BMAD", bmadFileName("LATTICE.MADX"))
}

func TestBmadFileNameMixedCasePreservesPerCharacterCase(t *testing.T) {
	assert.Equal(t, "myBmaDfile.seq", bmadFileName("myMadXfile.seq"))
}

func TestBmadFileNameAppendsExtensionWhenNoMadxSubstring(t *testing.T) {
	assert.Equal(t, "foo.txt.bmad", bmadFileName("foo.txt"))
}

func TestRunTranslatesTwoElementDefinitionsEndToEnd(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "lattice.madx")
	require.NoError(t, os.WriteFile(inPath,
		[]byte("q1: quadrupole, l = 0.5;\nq2: q1, k1 = 0.3;"), 0o644))

	tr := New()
	require.NoError(t, tr.Open(inPath))
	require.NoError(t, tr.Run(context.Background()))

	outBytes, err := os.ReadFile(bmadFileName(inPath))
	require.NoError(t, err)

	expected := "!+ / Translated from MADX to Bmad / File: " + inPath + " /-\n" +
		"\n" +
		"q1: quadrupole, l = 0.5\n" +
		"q2: q1, k1 = 0.3\n"
	assert.Equal(t, expected, string(outBytes))
}

func TestRunHoistsVariableAssignmentAboveElementDefinitions(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "lattice.madx")
	require.NoError(t, os.WriteFile(inPath,
		[]byte("x = 1 + 2;\nq1: quadrupole, l = 0.5;"), 0o644))

	tr := New()
	require.NoError(t, tr.Open(inPath))
	require.NoError(t, tr.Run(context.Background()))

	outBytes, err := os.ReadFile(bmadFileName(inPath))
	require.NoError(t, err)

	expected := "!+ / Translated from MADX to Bmad / File: " + inPath + " /-\n" +
		"\n" +
		"x = 1+2\n" +
		"q1: quadrupole, l = 0.5\n"
	assert.Equal(t, expected, string(outBytes))
}

func TestRunCallPullsInIncludedFileContent(t *testing.T) {
	dir := t.TempDir()
	includedPath := filepath.Join(dir, "sub.madx")
	require.NoError(t, os.WriteFile(includedPath,
		[]byte("q2: quadrupole, l = 1;\nreturn;"), 0o644))

	rootPath := filepath.Join(dir, "root.madx")
	require.NoError(t, os.WriteFile(rootPath,
		[]byte(`call, file = "`+includedPath+`";`+"\nq1: quadrupole, l = 0.5;"), 0o644))

	tr := New()
	require.NoError(t, tr.Open(rootPath))
	require.NoError(t, tr.Run(context.Background()))

	rootOut, err := os.ReadFile(bmadFileName(rootPath))
	require.NoError(t, err)
	assert.Contains(t, string(rootOut), "call, file = "+bmadFileName(includedPath))
	assert.Contains(t, string(rootOut), "q1: quadrupole, l = 0.5")

	subOut, err := os.ReadFile(bmadFileName(includedPath))
	require.NoError(t, err)
	assert.Contains(t, string(subOut), "q2: quadrupole, l = 1")
}
