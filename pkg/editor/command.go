package editor

import (
	"fmt"
	"strings"
)

// escapeSedText escapes content for use as sed replacement or insert text.
// The order matters: backslash first so later escapes are not re-escaped,
// then the field delimiter, then the back-reference marker, then embedded
// newlines (sed wants a backslash-newline continuation).
func escapeSedText(content string) string {
	s := strings.ReplaceAll(content, `\`, `\\`)
	s = strings.ReplaceAll(s, "/", `\/`)
	s = strings.ReplaceAll(s, "&", `\&`)
	s = strings.ReplaceAll(s, "\n", "\\\n")
	return s
}

// shellQuote wraps s in single quotes, breaking out for any embedded single
// quote so the shell passes the text through verbatim.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// sedCommand builds the stream-editor invocation for one operation against
// path. inPlace is the probed in-place flag text for this OS family.
// fileLines is the file's current line count; inserting into an empty file
// falls back to an append since sed scripts never run without input lines.
func sedCommand(op Operation, path, inPlace string, fileLines int) string {
	quotedPath := shellQuote(path)

	if op.Kind == KindInsert && fileLines == 0 {
		return fmt.Sprintf("printf '%%s\\n' %s >> %s", shellQuote(op.Content), quotedPath)
	}

	var script string
	switch op.Kind {
	case KindDelete:
		script = fmt.Sprintf("%dd", op.Line)
	case KindModify:
		script = fmt.Sprintf("%ds/.*/%s/", op.Line, escapeSedText(op.Content))
	case KindInsert:
		switch op.Line {
		case LineEnd:
			script = "$a\\\n" + escapeSedText(op.Content)
		case LineBeginning:
			script = "1i\\\n" + escapeSedText(op.Content)
		default:
			script = fmt.Sprintf("%di\\\n%s", op.Line, escapeSedText(op.Content))
		}
	}

	return fmt.Sprintf("sed %s -e %s %s", inPlace, shellQuote(script), quotedPath)
}
