// Package rtl repairs right-to-left (Hebrew) text that PDF extractors emit in
// visual order, with both word order and character order reversed.
//
// The repair is a heuristic, not a bidi algorithm: lines without RTL content
// are returned untouched, and left-to-right runs inside mixed lines keep their
// original order.
package rtl

import (
	"strings"
	"unicode"
)

const (
	rtlFirst = '\u0590'
	rtlLast  = '\u05FF'
)

// IsRTLCodepoint reports whether r belongs to the Hebrew block.
func IsRTLCodepoint(r rune) bool {
	return r >= rtlFirst && r <= rtlLast
}

// IsRTLToken reports whether s contains at least one RTL codepoint.
func IsRTLToken(s string) bool {
	for _, r := range s {
		if IsRTLCodepoint(r) {
			return true
		}
	}
	return false
}

// HasRTL reports whether a line needs direction repair.
func HasRTL(line string) bool {
	return IsRTLToken(line)
}

// FixDirection repairs every line of text independently.
func FixDirection(text string) string {
	if text == "" {
		return text
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if HasRTL(line) {
			lines[i] = fixLine(line)
		}
	}
	return strings.Join(lines, "\n")
}

type segment struct {
	rtl    bool
	tokens []string
}

func fixLine(line string) string {
	var b strings.Builder
	for _, seg := range segments(tokenize(line)) {
		if !seg.rtl {
			for _, tok := range seg.tokens {
				b.WriteString(tok)
			}
			continue
		}
		for i := len(seg.tokens) - 1; i >= 0; i-- {
			tok := seg.tokens[i]
			if IsRTLToken(tok) {
				tok = reverse(tok)
			}
			b.WriteString(tok)
		}
	}

	fixed := []rune(b.String())
	fixed = mergeTrailingLetter(fixed)
	fixed = mergeLeadingLetter(fixed)
	return strings.TrimSpace(collapseSpaces(string(fixed)))
}

// tokenize splits a line into alternating word and whitespace tokens,
// keeping the whitespace runs so the line can be reassembled.
func tokenize(line string) []string {
	var tokens []string
	start := 0
	inSpace := false
	for i, r := range line {
		space := unicode.IsSpace(r)
		if i == 0 {
			inSpace = space
			continue
		}
		if space != inSpace {
			tokens = append(tokens, line[start:i])
			start = i
			inSpace = space
		}
	}
	if start < len(line) {
		tokens = append(tokens, line[start:])
	}
	return tokens
}

// segments groups consecutive tokens by direction. Whitespace tokens never
// open a new segment; they stay with the segment they follow.
func segments(tokens []string) []segment {
	var out []segment
	var cur *segment
	for _, tok := range tokens {
		isRTL := IsRTLToken(tok)
		switch {
		case cur == nil:
			cur = &segment{rtl: isRTL}
		case cur.rtl != isRTL && strings.TrimSpace(tok) != "":
			out = append(out, *cur)
			cur = &segment{rtl: isRTL}
		}
		cur.tokens = append(cur.tokens, tok)
	}
	if cur != nil && len(cur.tokens) > 0 {
		out = append(out, *cur)
	}
	return out
}

func reverse(s string) string {
	rs := []rune(s)
	for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
		rs[i], rs[j] = rs[j], rs[i]
	}
	return string(rs)
}

// isWord mirrors the \w class of Unicode-aware regex engines.
func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func wordAt(rs []rune, i int) bool {
	return i >= 0 && i < len(rs) && isWord(rs[i])
}

func rtlRunEnd(rs []rune, i int) int {
	for i < len(rs) && IsRTLCodepoint(rs[i]) {
		i++
	}
	return i
}

// mergeTrailingLetter joins "XX Y" into "XXY" when XX is a run of two or more
// RTL characters and Y is a lone RTL character ending a word.
func mergeTrailingLetter(rs []rune) []rune {
	out := make([]rune, 0, len(rs))
	for i := 0; i < len(rs); {
		end := rtlRunEnd(rs, i)
		if end-i >= 2 && end+1 < len(rs) && rs[end] == ' ' && IsRTLCodepoint(rs[end+1]) &&
			wordAt(rs, end+1) != wordAt(rs, end+2) {
			out = append(out, rs[i:end]...)
			out = append(out, rs[end+1])
			i = end + 2
			continue
		}
		out = append(out, rs[i])
		i++
	}
	return out
}

// mergeLeadingLetter joins "Y XX" into "YXX" when Y is a lone RTL character
// starting a word and XX is a run of two or more RTL characters.
func mergeLeadingLetter(rs []rune) []rune {
	out := make([]rune, 0, len(rs))
	for i := 0; i < len(rs); {
		if IsRTLCodepoint(rs[i]) && wordAt(rs, i-1) != wordAt(rs, i) &&
			i+1 < len(rs) && rs[i+1] == ' ' {
			end := rtlRunEnd(rs, i+2)
			if end-(i+2) >= 2 {
				out = append(out, rs[i])
				out = append(out, rs[i+2:end]...)
				i = end
				continue
			}
		}
		out = append(out, rs[i])
		i++
	}
	return out
}

func collapseSpaces(s string) string {
	if !strings.Contains(s, "  ") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
