/*
Package dehyphenator joins words that were hyphenated at the end of a line,
as they are found in text recognized from scanned pages.

	German includes a lot of compounds, some involving hyphens, lowercase and
	uppercase characters.
	A hyphen is preserved if the character in front of it is uppercase ("CD-ROM")
	or the next line starts with an uppercase letter ("Max-Planck"). Otherwise it is
	removed and both halves are joined.
	Not sure if it is of any use when working with other languages.
*/
package dehyphenator

import (
	"bufio"
	"io"
	"strings"
	"unicode"
)

// Dehyphenate reads text from in line by line and writes it to out, with line end hyphens
// removed where appropriate. Leading and trailing whitespace of lines is dropped.
// If joinLines is set, lines are joined by a single space and empty lines are skipped.
func Dehyphenate(in io.Reader, out io.Writer, joinLines bool) error {
	w := bufio.NewWriter(out)
	s := bufio.NewScanner(in)
	// pendingHyphen: a line end hyphen was removed, open: the last line's end is not written yet
	pendingHyphen, open := false, false
	lineEnd := "\n"
	if joinLines {
		lineEnd = " "
	}
	// closeLine restores a removed hyphen that turned out not to join two words
	closeLine := func() {
		if pendingHyphen {
			w.WriteByte('-')
		}
		if open {
			w.WriteString(lineEnd)
		}
		pendingHyphen, open = false, false
	}
	for s.Scan() {
		line := []rune(strings.TrimSpace(strings.ReplaceAll(s.Text(), "\uFFFE", "")))
		if len(line) == 0 || isHyphen(line[0]) {
			// Skip empty and hyphen-only lines
			closeLine()
			if !joinLines {
				w.WriteByte('\n')
			}
			continue
		}
		if pendingHyphen && unicode.IsUpper(line[0]) {
			// the removed hyphen belongs to a compound
			w.WriteByte('-')
		}
		pendingHyphen, open = false, false
		switch {
		case !isHyphen(line[len(line)-1]):
			w.WriteString(string(line))
			w.WriteString(lineEnd)
		case unicode.IsUpper(line[len(line)-2]):
			// uppercase rune before the hyphen, keep it and join with the next line
			w.WriteString(string(line))
			open = true
		default:
			pendingHyphen, open = true, true
			w.WriteString(string(line[:len(line)-1]))
		}
	}
	closeLine()
	if err := s.Err(); err != nil {
		return err
	}
	return w.Flush()
}

// String is Dehyphenate for strings.
func String(in string, joinLines bool) (string, error) {
	var sb strings.Builder
	err := Dehyphenate(strings.NewReader(in), &sb, joinLines)
	return sb.String(), err
}

func isHyphen(char rune) bool {
	return unicode.Is(unicode.Hyphen, char)
}
