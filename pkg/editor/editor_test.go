package editor

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/shellbox/pkg/pathguard"
	"github.com/harun/shellbox/pkg/shell"
)

func newTestEditor(t *testing.T) (*Editor, string) {
	t.Helper()
	root := t.TempDir()
	sess, err := shell.NewSession(shell.Config{WorkspaceRoot: root})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return New(sess), root
}

func writeLines(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readBack(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestApply_OrderingInvariant(t *testing.T) {
	e, root := newTestEditor(t)
	target := filepath.Join(root, "file.txt")
	writeLines(t, target, "one\ntwo\n")

	// The caller's input order must not matter: end-insert executes first,
	// beginning-insert last.
	_, err := e.Apply(Batch{
		Path: target,
		Ops: []Operation{
			{Kind: KindInsert, Line: LineBeginning, Content: "A"},
			{Kind: KindInsert, Line: LineEnd, Content: "Z"},
			{Kind: KindModify, Line: 1, Content: "B"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "A\nB\ntwo\nZ\n", readBack(t, target))
}

func TestApply_RoundTripSpecialCharacters(t *testing.T) {
	e, root := newTestEditor(t)
	target := filepath.Join(root, "special.txt")
	writeLines(t, target, "placeholder\n")

	content := `a/b&c\d`
	_, err := e.Apply(Batch{
		Path: target,
		Ops:  []Operation{{Kind: KindModify, Line: 1, Content: content}},
	})

	require.NoError(t, err)
	assert.Equal(t, content+"\n", readBack(t, target))
}

func TestApply_RoundTripEmbeddedNewline(t *testing.T) {
	e, root := newTestEditor(t)
	target := filepath.Join(root, "multiline.txt")
	writeLines(t, target, "placeholder\n")

	_, err := e.Apply(Batch{
		Path: target,
		Ops:  []Operation{{Kind: KindModify, Line: 1, Content: "first\nsecond"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", readBack(t, target))
}

func TestApply_DeleteLine(t *testing.T) {
	e, root := newTestEditor(t)
	target := filepath.Join(root, "del.txt")
	writeLines(t, target, "one\ntwo\nthree\n")

	_, err := e.Apply(Batch{
		Path: target,
		Ops:  []Operation{{Kind: KindDelete, Line: 2}},
	})

	require.NoError(t, err)
	assert.Equal(t, "one\nthree\n", readBack(t, target))
}

func TestApply_MultipleDeletes(t *testing.T) {
	e, root := newTestEditor(t)
	target := filepath.Join(root, "deletes.txt")
	writeLines(t, target, "one\ntwo\nthree\n")

	_, err := e.Apply(Batch{
		Path: target,
		Ops: []Operation{
			{Kind: KindDelete, Line: 1},
			{Kind: KindDelete, Line: 3},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "two\n", readBack(t, target))
}

func TestApply_InsertBeforeLine(t *testing.T) {
	e, root := newTestEditor(t)
	target := filepath.Join(root, "ins.txt")
	writeLines(t, target, "one\nthree\n")

	_, err := e.Apply(Batch{
		Path: target,
		Ops:  []Operation{{Kind: KindInsert, Line: 2, Content: "two"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\n", readBack(t, target))
}

func TestApply_CreatesMissingFile(t *testing.T) {
	e, root := newTestEditor(t)
	target := filepath.Join(root, "made", "deep", "new.txt")

	result, err := e.Apply(Batch{
		Path:        target,
		AllowCreate: true,
		Ops:         []Operation{{Kind: KindInsert, Line: LineEnd, Content: "hello"}},
	})

	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "hello\n", readBack(t, target))
}

func TestApply_ModifyMissingFileFails(t *testing.T) {
	e, root := newTestEditor(t)

	_, err := e.Apply(Batch{
		Path:        filepath.Join(root, "missing.txt"),
		AllowCreate: true,
		Ops:         []Operation{{Kind: KindModify, Line: 1, Content: "x"}},
	})

	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestApply_InsertMissingFileWithoutCreateFails(t *testing.T) {
	e, root := newTestEditor(t)

	_, err := e.Apply(Batch{
		Path: filepath.Join(root, "missing.txt"),
		Ops:  []Operation{{Kind: KindInsert, Line: LineEnd, Content: "x"}},
	})

	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestApply_LinePastEndFails(t *testing.T) {
	e, root := newTestEditor(t)
	target := filepath.Join(root, "short.txt")
	writeLines(t, target, "only\n")

	_, err := e.Apply(Batch{
		Path: target,
		Ops:  []Operation{{Kind: KindModify, Line: 5, Content: "x"}},
	})

	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestApply_EmptyOpsFails(t *testing.T) {
	e, root := newTestEditor(t)

	_, err := e.Apply(Batch{Path: filepath.Join(root, "f.txt")})

	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestApply_UnknownKindFails(t *testing.T) {
	e, root := newTestEditor(t)

	_, err := e.Apply(Batch{
		Path: filepath.Join(root, "f.txt"),
		Ops:  []Operation{{Kind: Kind("replace"), Line: 1}},
	})

	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestApply_ZeroLineModifyFails(t *testing.T) {
	e, root := newTestEditor(t)

	_, err := e.Apply(Batch{
		Path: filepath.Join(root, "f.txt"),
		Ops:  []Operation{{Kind: KindModify, Line: 0, Content: "x"}},
	})

	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestApply_PathOutsideRootFails(t *testing.T) {
	e, _ := newTestEditor(t)

	_, err := e.Apply(Batch{
		Path: "/etc/passwd",
		Ops:  []Operation{{Kind: KindModify, Line: 1, Content: "x"}},
	})

	assert.ErrorIs(t, err, pathguard.ErrOutOfBounds)
}

func TestApply_RelativePathResolved(t *testing.T) {
	e, root := newTestEditor(t)
	writeLines(t, filepath.Join(root, "rel.txt"), "one\n")

	result, err := e.Apply(Batch{
		Path: "rel.txt",
		Ops:  []Operation{{Kind: KindModify, Line: 1, Content: "changed"}},
	})

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "rel.txt"), result.Path)
	assert.Equal(t, "changed\n", readBack(t, filepath.Join(root, "rel.txt")))
}

func TestApply_DiffPreview(t *testing.T) {
	e, root := newTestEditor(t)
	target := filepath.Join(root, "diff.txt")
	writeLines(t, target, "old\n")

	result, err := e.Apply(Batch{
		Path: target,
		Ops:  []Operation{{Kind: KindModify, Line: 1, Content: "new"}},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result.Diff)
}

func TestEscapeSedText(t *testing.T) {
	assert.Equal(t, `\\`, escapeSedText(`\`))
	assert.Equal(t, `\/`, escapeSedText(`/`))
	assert.Equal(t, `\&`, escapeSedText(`&`))
	assert.Equal(t, "\\\n", escapeSedText("\n"))
	// Backslash escaping must run first so it never re-escapes the others.
	assert.Equal(t, `\\\/\&`, escapeSedText(`\/&`))
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, shellQuote("plain"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}

func TestOrderForExecution(t *testing.T) {
	ops := []Operation{
		{Kind: KindInsert, Line: LineBeginning},
		{Kind: KindModify, Line: 3},
		{Kind: KindInsert, Line: LineEnd},
		{Kind: KindDelete, Line: 7},
	}

	ordered := orderForExecution(ops)

	assert.Equal(t, LineEnd, ordered[0].Line)
	assert.Equal(t, 7, ordered[1].Line)
	assert.Equal(t, 3, ordered[2].Line)
	assert.Equal(t, LineBeginning, ordered[3].Line)
}

func TestSortKey(t *testing.T) {
	assert.Equal(t, math.MaxInt, Operation{Kind: KindInsert, Line: LineEnd}.sortKey())
	assert.Equal(t, 0, Operation{Kind: KindInsert, Line: LineBeginning}.sortKey())
	assert.Equal(t, 12, Operation{Kind: KindDelete, Line: 12}.sortKey())
}
