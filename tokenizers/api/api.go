// Package api defines the Tokenizer API implemented by the tokenizers in this module.
//
// The wordpiece engine itself doesn't depend on it: adapters (see package wptokenizer) translate
// its plain tokens into these interfaces.
package api

import "fmt"

// TokenSpan represents the byte span of a token in the original text.
// Start and End are byte offsets (not rune offsets), suitable for slicing
// Go strings directly: originalText[span.Start:span.End].
// This is useful for token classification tasks (NER, chunking) where you need
// to map token predictions back to positions in the original text.
type TokenSpan struct {
	Start int // start byte position (inclusive)
	End   int // end byte position (exclusive)
}

// EncodingResult contains tokens with their spans in the original text.
type EncodingResult struct {
	IDs   []int       // token IDs
	Spans []TokenSpan // byte spans for each token (use originalText[span.Start:span.End] to extract)
}

// Config holds the special token strings of a tokenizer, as found in a model's tokenizer_config.json.
// Empty fields use the tokenizer's defaults.
type Config struct {
	UnkToken  string `json:"unk_token"`
	PadToken  string `json:"pad_token"`
	ClsToken  string `json:"cls_token"`
	SepToken  string `json:"sep_token"`
	MaskToken string `json:"mask_token"`
	BosToken  string `json:"bos_token"`
	EosToken  string `json:"eos_token"`
}

// Tokenizer interface allows one convert test to "tokens" (integer ids) and back.
//
// It also allows mapping of special tokens: tokens with a common semantic (like padding) but that
// may map to different ids (int) for different tokenizers.
type Tokenizer interface {
	Encode(text string) []int
	Decode([]int) string

	// SpecialTokenID returns ID for given special token if registered, or an error if not.
	SpecialTokenID(token SpecialToken) (int, error)
}

// TokenizerWithSpans extends Tokenizer with span tracking capability.
// This is useful for token classification tasks (NER, chunking) where you need
// to map token predictions back to byte positions in the original text.
type TokenizerWithSpans interface {
	Tokenizer
	// EncodeWithSpans returns tokens along with their byte spans in the original text.
	EncodeWithSpans(text string) EncodingResult
}

// Word is one pre-tokenized word, with its byte span in the original text.
type Word struct {
	Text string
	Span TokenSpan
}

// ModelToken is a token produced by a Model.
type ModelToken struct {
	ID    int
	Value string    // token text, with the continuation prefix for continuation pieces
	Span  TokenSpan // byte span in the original text
	Word  int       // index of the word it came from
}

// Model is the word level model of a tokenization pipeline: the pipeline normalizes and
// pre-tokenizes the text, and the Model turns the resulting words into tokens.
type Model interface {
	Tokenize(words []Word) ([]ModelToken, error)
	TokenToID(token string) (int, bool)
	IDToToken(id int) (string, bool)
	VocabSize() int
}

// SpecialToken is an enum of commonly used special tokens.
type SpecialToken int

const (
	TokBeginningOfSentence SpecialToken = iota
	TokEndOfSentence
	TokUnknown
	TokPad
	TokMask
	TokClassification
	TokSpecialTokensCount
)

var specialTokenNames = [...]string{
	TokBeginningOfSentence: "beginning_of_sentence",
	TokEndOfSentence:       "end_of_sentence",
	TokUnknown:             "unknown",
	TokPad:                 "pad",
	TokMask:                "mask",
	TokClassification:      "classification",
}

func (t SpecialToken) String() string {
	if t >= 0 && int(t) < len(specialTokenNames) {
		return specialTokenNames[t]
	}
	return fmt.Sprintf("SpecialToken(%d)", int(t))
}
