package wordpiece

import "unicode/utf8"

// ToCharOffsets converts the byte offsets of pieces into rune offsets of text.
//
// Runes are counted as by ranging over text: an invalid UTF-8 byte counts as one rune. Pieces are
// expected in text order, in which case text is walked once; an out-of-order offset restarts the
// walk from the beginning. An offset inside an encoded rune maps to that rune's start.
func ToCharOffsets(text string, pieces []Piece) []Token {
	if len(pieces) == 0 {
		return nil
	}
	var c charCursor
	tokens := make([]Token, len(pieces))
	for ii, p := range pieces {
		tokens[ii] = Token{
			ID:             p.ID,
			Start:          c.seek(text, p.Start),
			End:            c.seek(text, p.End),
			IsContinuation: p.IsContinuation,
		}
	}
	return tokens
}

// charCursor is a monotonic byte position to rune position mapping over a text.
type charCursor struct {
	pos, chars int
}

// seek advances the cursor to byte offset pos of text and returns its rune offset.
func (c *charCursor) seek(text string, pos int) int {
	if pos < c.pos {
		c.pos, c.chars = 0, 0
	}
	pos = min(pos, len(text))
	for c.pos < pos {
		_, width := utf8.DecodeRuneInString(text[c.pos:])
		if c.pos+width > pos {
			break
		}
		c.pos += width
		c.chars++
	}
	return c.chars
}

// CharLen returns the length of text in runes, counted like ToCharOffsets does.
func CharLen(text string) int {
	return utf8.RuneCountInString(text)
}
