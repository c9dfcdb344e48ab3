package policy

import (
	"fmt"
	"strings"
)

// Separator is the word emitted for any run of command separators (;, |, &)
// so callers can see statement structure without parsing the raw string.
const Separator = ";"

// SplitWords splits a command into shell words, honoring single quotes,
// double quotes and backslash escapes outside single quotes. A run of
// unquoted separators yields one Separator word so "cd;ls" and "cd ; ls"
// tokenize identically. Unbalanced quoting is an error; the caller treats
// that as a denial.
func SplitWords(command string) ([]string, error) {
	var (
		words   []string
		current strings.Builder
		inWord  bool
		quote   byte
	)

	endWord := func() {
		if inWord {
			words = append(words, current.String())
			current.Reset()
			inWord = false
		}
	}

	for i := 0; i < len(command); i++ {
		c := command[i]
		switch {
		case quote == '\'':
			if c == '\'' {
				quote = 0
			} else {
				current.WriteByte(c)
			}
		case quote == '"':
			if c == '"' {
				quote = 0
			} else if c == '\\' && i+1 < len(command) {
				i++
				current.WriteByte(command[i])
			} else {
				current.WriteByte(c)
			}
		case c == '\'' || c == '"':
			quote = c
			inWord = true
		case c == '\\':
			if i+1 >= len(command) {
				return nil, fmt.Errorf("trailing backslash")
			}
			i++
			current.WriteByte(command[i])
			inWord = true
		case c == ' ' || c == '\t' || c == '\n':
			endWord()
		case c == ';' || c == '|' || c == '&':
			endWord()
			if len(words) == 0 || words[len(words)-1] != Separator {
				words = append(words, Separator)
			}
		default:
			current.WriteByte(c)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unbalanced %c quote", quote)
	}
	endWord()
	return words, nil
}
