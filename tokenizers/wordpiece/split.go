package wordpiece

import (
	"iter"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// SplitFunc splits text into words, yielding the byte span [start, end) of each non-empty word in
// text order. Spans must not overlap and must start and end on rune boundaries.
type SplitFunc func(text string) iter.Seq2[int, int]

// SplitWhitespace splits on Unicode whitespace (unicode.IsSpace). It is the default.
func SplitWhitespace(text string) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		start := -1
		for ii, r := range text {
			if unicode.IsSpace(r) {
				if start >= 0 {
					if !yield(start, ii) {
						return
					}
					start = -1
				}
			} else if start < 0 {
				start = ii
			}
		}
		if start >= 0 {
			yield(start, len(text))
		}
	}
}

// SplitBert splits on whitespace and also yields every punctuation rune and every CJK ideograph as
// a word of its own, like the BERT basic tokenizer.
func SplitBert(text string) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		start := -1
		for ii, r := range text {
			switch {
			case isWhitespace(r):
				if start >= 0 && !yield(start, ii) {
					return
				}
				start = -1
			case isPunctuation(r) || isCJK(r):
				if start >= 0 && !yield(start, ii) {
					return
				}
				start = -1
				_, width := utf8.DecodeRuneInString(text[ii:])
				if !yield(ii, ii+width) {
					return
				}
			default:
				if start < 0 {
					start = ii
				}
			}
		}
		if start >= 0 {
			yield(start, len(text))
		}
	}
}

// SplitUnicodeWords splits at the word boundaries of Unicode Standard Annex #29, dropping the
// segments made only of whitespace.
func SplitUnicodeWords(text string) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		state := -1
		pos := 0
		rest := text
		for len(rest) > 0 {
			var word string
			word, rest, state = uniseg.FirstWordInString(rest, state)
			if len(word) == 0 {
				break
			}
			start := pos
			pos += len(word)
			if isAllSpace(word) {
				continue
			}
			if !yield(start, pos) {
				return
			}
		}
	}
}

// SplitNone yields the whole text as one word, unless it is empty.
func SplitNone(text string) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		if len(text) > 0 {
			yield(0, len(text))
		}
	}
}

// SplitFuncByName returns one of the predefined splitters: "whitespace", "bert", "unicode" or
// "none".
func SplitFuncByName(name string) (SplitFunc, bool) {
	switch name {
	case "whitespace", "":
		return SplitWhitespace, true
	case "bert":
		return SplitBert, true
	case "unicode":
		return SplitUnicodeWords, true
	case "none":
		return SplitNone, true
	}
	return nil, false
}

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isPunctuation(r rune) bool {
	// ASCII punctuation
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF,
		r >= 0x3400 && r <= 0x4DBF,
		r >= 0x20000 && r <= 0x2A6DF,
		r >= 0x2A700 && r <= 0x2B73F,
		r >= 0x2B740 && r <= 0x2B81F,
		r >= 0x2B820 && r <= 0x2CEAF,
		r >= 0xF900 && r <= 0xFAFF,
		r >= 0x2F800 && r <= 0x2FA1F:
		return true
	}
	return false
}

func isAllSpace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
