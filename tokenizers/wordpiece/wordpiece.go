// Package wordpiece implements wordpiece tokenization by longest match over a vocab.Store.
//
// Text is split into words (see SplitFunc), each word is segmented into one leading piece and zero
// or more continuation pieces, and the resulting spans are reported in character (rune) offsets of
// the original text. A word, or the part of it, that cannot be matched becomes one unknown token.
//
// A Vocabulary is immutable and safe for concurrent use. Tokenize never fails: any input,
// including invalid UTF-8, yields a token sequence covering every word.
package wordpiece

import (
	"github.com/gomlx/go-wordpiece/tokenizers/vocab"
	"github.com/pkg/errors"
)

// DefaultContinuationPrefix is the marker prepended to continuation pieces in the vocabulary keys.
const DefaultContinuationPrefix = "##"

// DefaultUnknownToken is the display form of the unknown token.
const DefaultUnknownToken = "[UNK]"

// UnknownPolicy selects how much of a word is replaced by the unknown token when matching fails.
type UnknownPolicy int

const (
	// UnknownRemainder keeps the pieces matched so far and emits one unknown token spanning the
	// rest of the word.
	UnknownRemainder UnknownPolicy = iota

	// UnknownWholeWord drops the pieces matched so far and emits one unknown token spanning the
	// whole word. This is what the reference BERT wordpiece does.
	UnknownWholeWord
)

// Config configures a Vocabulary. The zero value is usable except for UnknownID.
type Config struct {
	// UnknownID is the identifier emitted for unmatched spans. It need not be a key of the store.
	UnknownID int

	// UnknownToken is the display form of the unknown token. Defaults to DefaultUnknownToken.
	UnknownToken string

	// ContinuationPrefix is prepended to the bytes of a continuation piece to form its key.
	// Defaults to DefaultContinuationPrefix.
	ContinuationPrefix string

	// Unknown selects the unknown-token policy. Defaults to UnknownRemainder.
	Unknown UnknownPolicy

	// Split splits text into words. Defaults to SplitWhitespace.
	Split SplitFunc

	// MaxWordChars, if > 0, is the maximum number of runes in a word: longer ones become a single
	// unknown token without being matched.
	MaxWordChars int
}

// Token is one output unit. Start and End are rune offsets into the tokenized text, half-open.
type Token struct {
	ID             int
	Start, End     int
	IsContinuation bool
}

// Piece is one matched unit in byte offsets, as produced by the matching engine.
type Piece struct {
	ID             int
	Start, End     int
	IsContinuation bool
}

// Vocabulary is a vocab.Store along with the configuration to tokenize with it.
type Vocabulary struct {
	store  *vocab.Store
	config Config

	root vocab.State

	// cont is the state reached by walking ContinuationPrefix; hasCont is false if no key starts
	// with it, in which case no word can have more than one piece.
	cont    vocab.State
	hasCont bool
}

// Build compiles the store from the sorted, duplicate-free entries and returns a Vocabulary for it.
// Construction errors are the *vocab.ConstructionError returned by vocab.Build.
func Build(entries []vocab.Entry, config Config) (*Vocabulary, error) {
	store, err := vocab.Build(entries)
	if err != nil {
		return nil, err
	}
	return New(store, config)
}

// New returns a Vocabulary using store, which must not be closed while the Vocabulary is in use.
func New(store *vocab.Store, config Config) (*Vocabulary, error) {
	if store == nil {
		return nil, errors.Errorf("wordpiece: nil vocabulary store")
	}
	if config.UnknownID < 0 {
		return nil, errors.Errorf("wordpiece: invalid unknown token id %d", config.UnknownID)
	}
	if config.UnknownToken == "" {
		config.UnknownToken = DefaultUnknownToken
	}
	if config.ContinuationPrefix == "" {
		config.ContinuationPrefix = DefaultContinuationPrefix
	}
	if config.Split == nil {
		config.Split = SplitWhitespace
	}
	switch config.Unknown {
	case UnknownRemainder, UnknownWholeWord:
	default:
		return nil, errors.Errorf("wordpiece: invalid unknown policy %d", config.Unknown)
	}

	v := &Vocabulary{
		store:  store,
		config: config,
		root:   store.Root(),
	}
	v.cont, v.hasCont = store.Walk(v.root, []byte(config.ContinuationPrefix))
	return v, nil
}

// Store returns the underlying vocabulary store.
func (v *Vocabulary) Store() *vocab.Store { return v.store }

// Config returns the configuration with defaults filled in.
func (v *Vocabulary) Config() Config { return v.config }

// UnknownID returns the identifier of the unknown token.
func (v *Vocabulary) UnknownID() int { return v.config.UnknownID }

// UnknownToken returns the display form of the unknown token.
func (v *Vocabulary) UnknownToken() string { return v.config.UnknownToken }

// TokenizeBytes is like Tokenize, but returns the pieces in byte offsets of text.
func (v *Vocabulary) TokenizeBytes(text string) []Piece {
	m := matcher{v: v}
	var pieces []Piece
	for start, end := range v.config.Split(text) {
		pieces = m.word(text[start:end], start, false, pieces)
	}
	return pieces
}

// Tokenize splits text into words and words into tokens, and returns all tokens in text order
// with rune offsets.
//
// The spans of the tokens of each word partition the word exactly. Characters not in any word
// (the delimiters dropped by Config.Split) are not covered by any token.
func (v *Vocabulary) Tokenize(text string) []Token {
	return ToCharOffsets(text, v.TokenizeBytes(text))
}
