package wordpiece

import (
	"unicode/utf8"

	"github.com/gomlx/go-wordpiece/tokenizers/vocab"
)

// TokenizeWord segments one word into pieces, with byte offsets relative to word.
//
// If continued is true, the word is taken to be the continuation of a previous word, and its first
// piece is matched as a continuation piece too.
//
// An empty word yields no pieces.
func (v *Vocabulary) TokenizeWord(word []byte, continued bool) []Piece {
	m := matcher{v: v}
	return m.word(string(word), 0, continued, nil)
}

// matcher runs the longest-match segmentation for one Tokenize call.
type matcher struct {
	v *Vocabulary

	// transitions counts the automaton transitions attempted.
	transitions int
}

// word appends to dst the pieces of word, offset by offset bytes.
//
// Each piece starts where the previous one ended, so every byte is consumed by at most one
// extension per piece: the work is bounded by len(word) times the longest key.
func (m *matcher) word(word string, offset int, continued bool, dst []Piece) []Piece {
	if len(word) == 0 {
		return dst
	}
	v := m.v
	end := offset + len(word)
	if v.config.MaxWordChars > 0 && utf8.RuneCountInString(word) > v.config.MaxWordChars {
		return append(dst, Piece{ID: v.config.UnknownID, Start: offset, End: end, IsContinuation: continued})
	}

	first := len(dst)
	isCont := continued
	for pos := 0; pos < len(word); {
		start, ok := v.root, true
		if isCont {
			start, ok = v.cont, v.hasCont
		}
		var (
			id, pieceEnd int
			matched      bool
		)
		if ok {
			id, pieceEnd, matched = m.longest(start, word, pos)
		}
		if !matched {
			if v.config.Unknown == UnknownWholeWord {
				dst = dst[:first]
				return append(dst, Piece{ID: v.config.UnknownID, Start: offset, End: end, IsContinuation: continued})
			}
			return append(dst, Piece{ID: v.config.UnknownID, Start: offset + pos, End: end, IsContinuation: isCont})
		}
		dst = append(dst, Piece{ID: id, Start: offset + pos, End: offset + pieceEnd, IsContinuation: isCont})
		pos = pieceEnd
		isCont = true
	}
	return dst
}

// longest extends a match from state st over word[from:], for as long as some key still has the
// consumed bytes as prefix, and returns the longest key seen on the way.
//
// Finding a key does not stop the extension: "ab" must not win over "abc". Only keys ending on a
// rune boundary of word are considered, so pieces never split an encoded codepoint, and matches are
// never empty. Boundaries are those of utf8.DecodeRuneInString, the same ToCharOffsets counts:
// an invalid byte is a rune of its own.
func (m *matcher) longest(st vocab.State, word string, from int) (id, end int, matched bool) {
	store := m.v.store
	_, width := utf8.DecodeRuneInString(word[from:])
	runeEnd := from + width
	for ii := from; ii < len(word); ii++ {
		m.transitions++
		var ok bool
		if st, ok = store.Step(st, word[ii]); !ok {
			break
		}
		if ii+1 < runeEnd {
			continue
		}
		if matchID, found := store.Match(st); found {
			id, end, matched = matchID, ii+1, true
		}
		_, width = utf8.DecodeRuneInString(word[runeEnd:])
		runeEnd += width
	}
	return
}
