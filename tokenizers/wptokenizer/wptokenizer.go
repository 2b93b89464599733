// Package wptokenizer implements the api.Tokenizer interfaces for wordpiece vocabularies.
//
// It joins a compiled wordpiece.Vocabulary with the id table of the vocabfile.File it was built
// from, which is needed to resolve special tokens and to decode ids back to text.
package wptokenizer

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/gomlx/go-wordpiece/tokenizers/api"
	"github.com/gomlx/go-wordpiece/tokenizers/vocabfile"
	"github.com/gomlx/go-wordpiece/tokenizers/wordpiece"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Tokenizer implements api.Tokenizer, api.TokenizerWithSpans and api.Model.
type Tokenizer struct {
	config *api.Config
	vocab  *wordpiece.Vocabulary
	file   *vocabfile.File

	// wholeWord shares vocab's automaton, but maps a word with any unknown part to the unknown token.
	wholeWord *wordpiece.Vocabulary

	addSpecialTokens bool

	// special holds the id of each api.SpecialToken, -1 if not in the vocabulary.
	special [api.TokSpecialTokensCount]int
	sepID   int
}

// Compile time assert that Tokenizer implements the api interfaces.
var (
	_ api.Tokenizer          = &Tokenizer{}
	_ api.TokenizerWithSpans = &Tokenizer{}
	_ api.Model              = &Tokenizer{}
)

// New creates a Tokenizer for v, which must have been built from vf. config is optional.
func New(config *api.Config, v *wordpiece.Vocabulary, vf *vocabfile.File) (*Tokenizer, error) {
	if v == nil || vf == nil {
		return nil, errors.Errorf("wptokenizer.New requires a vocabulary and its file")
	}
	wholeWordConfig := v.Config()
	wholeWordConfig.Unknown = wordpiece.UnknownWholeWord
	wholeWord, err := wordpiece.New(v.Store(), wholeWordConfig)
	if err != nil {
		return nil, err
	}
	t := &Tokenizer{
		config:    config,
		vocab:     v,
		file:      vf,
		wholeWord: wholeWord,
	}
	t.resolveSpecialTokens()
	return t, nil
}

// NewFromFile creates a Tokenizer from a vocab.txt file, or from a tokenizer.json file if
// filePath has a ".json" extension.
func NewFromFile(config *api.Config, filePath string) (*Tokenizer, error) {
	return newFromFile(config, filePath, func(vf *vocabfile.File) (*wordpiece.Vocabulary, error) {
		return vf.Build()
	})
}

// NewCached is like NewFromFile, but the compiled vocabulary is cached in cacheDir.
// See vocabfile.CompileCached.
func NewCached(ctx context.Context, config *api.Config, filePath, cacheDir string) (*Tokenizer, error) {
	return newFromFile(config, filePath, func(vf *vocabfile.File) (*wordpiece.Vocabulary, error) {
		return vf.BuildCached(ctx, cacheDir)
	})
}

func newFromFile(config *api.Config, filePath string,
	build func(vf *vocabfile.File) (*wordpiece.Vocabulary, error)) (*Tokenizer, error) {
	vf, err := OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	if config != nil && config.UnkToken != "" {
		if id, found := vf.ID(config.UnkToken); found {
			vf.UnknownToken = config.UnkToken
			vf.UnknownID = id
		}
	}
	v, err := build(vf)
	if err != nil {
		return nil, errors.WithMessagef(err, "while building vocabulary from %q", filePath)
	}
	return New(config, v, vf)
}

// OpenFile reads a vocabulary in the format given by the file extension: tokenizer.json for
// ".json", vocab.txt otherwise.
func OpenFile(filePath string) (*vocabfile.File, error) {
	if strings.EqualFold(filepath.Ext(filePath), ".json") {
		return vocabfile.OpenTokenizerJSON(filePath)
	}
	return vocabfile.Open(filePath)
}

// WithSpecialTokens sets whether Encode and EncodeWithSpans enclose the tokens with the
// classification and separator tokens, as BERT models expect. It returns t.
func (t *Tokenizer) WithSpecialTokens(add bool) *Tokenizer {
	if add && (t.special[api.TokClassification] < 0 || t.sepID < 0) {
		klog.Warningf("wptokenizer: vocabulary has no classification or separator token, not adding special tokens")
		add = false
	}
	t.addSpecialTokens = add
	return t
}

// Vocabulary returns the underlying wordpiece vocabulary.
func (t *Tokenizer) Vocabulary() *wordpiece.Vocabulary { return t.vocab }

// resolveSpecialTokens maps special tokens from the vocabulary and config to their IDs.
// Tokens found in the vocabulary file win over the config, except for the beginning and end of
// sentence tokens, which vocab.txt doesn't name. Those fall back to [CLS] and [SEP].
func (t *Tokenizer) resolveSpecialTokens() {
	vf := t.file
	t.special = [api.TokSpecialTokensCount]int{
		api.TokBeginningOfSentence: -1,
		api.TokEndOfSentence:       -1,
		api.TokUnknown:             t.vocab.UnknownID(),
		api.TokPad:                 vf.PadID,
		api.TokMask:                vf.MaskID,
		api.TokClassification:      vf.ClsID,
	}
	t.sepID = vf.SepID

	if t.config != nil {
		lookup := func(id *int, token string) {
			if *id >= 0 || token == "" {
				return
			}
			if found, ok := vf.ID(token); ok {
				*id = found
			}
		}
		lookup(&t.special[api.TokBeginningOfSentence], t.config.BosToken)
		lookup(&t.special[api.TokEndOfSentence], t.config.EosToken)
		lookup(&t.special[api.TokPad], t.config.PadToken)
		lookup(&t.special[api.TokMask], t.config.MaskToken)
		lookup(&t.special[api.TokClassification], t.config.ClsToken)
		lookup(&t.sepID, t.config.SepToken)
	}
	if t.special[api.TokBeginningOfSentence] < 0 {
		t.special[api.TokBeginningOfSentence] = t.special[api.TokClassification]
	}
	if t.special[api.TokEndOfSentence] < 0 {
		t.special[api.TokEndOfSentence] = t.sepID
	}
}

// EncodePieces tokenizes text into pieces with byte offsets. Added special tokens are empty
// pieces at the start and end of text.
func (t *Tokenizer) EncodePieces(text string) []wordpiece.Piece {
	pieces := t.vocab.TokenizeBytes(text)
	if !t.addSpecialTokens {
		return pieces
	}
	enclosed := make([]wordpiece.Piece, 0, len(pieces)+2)
	enclosed = append(enclosed, wordpiece.Piece{ID: t.special[api.TokClassification]})
	enclosed = append(enclosed, pieces...)
	return append(enclosed, wordpiece.Piece{ID: t.sepID, Start: len(text), End: len(text)})
}

// Encode converts text to a sequence of token IDs.
func (t *Tokenizer) Encode(text string) []int {
	pieces := t.EncodePieces(text)
	ids := make([]int, len(pieces))
	for ii, p := range pieces {
		ids[ii] = p.ID
	}
	return ids
}

// EncodeWithSpans returns the token IDs along with their byte spans in text.
// Added special tokens get empty spans at the start and end of text.
func (t *Tokenizer) EncodeWithSpans(text string) api.EncodingResult {
	pieces := t.EncodePieces(text)
	result := api.EncodingResult{
		IDs:   make([]int, len(pieces)),
		Spans: make([]api.TokenSpan, len(pieces)),
	}
	for ii, p := range pieces {
		result.IDs[ii] = p.ID
		result.Spans[ii] = api.TokenSpan{Start: p.Start, End: p.End}
	}
	return result
}

// Decode converts a sequence of token IDs back to text. Continuation tokens are joined to the
// previous token, other tokens are separated by a space. Unknown ids are skipped.
func (t *Tokenizer) Decode(ids []int) string {
	prefix := t.vocab.Config().ContinuationPrefix
	var result strings.Builder
	for _, id := range ids {
		token, ok := t.IDToToken(id)
		if !ok {
			continue
		}
		if strings.HasPrefix(token, prefix) && len(token) > len(prefix) {
			result.WriteString(token[len(prefix):])
			continue
		}
		if result.Len() > 0 {
			result.WriteByte(' ')
		}
		result.WriteString(token)
	}
	return result.String()
}

// SpecialTokenID returns the ID for a given special token.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	if token < 0 || token >= api.TokSpecialTokensCount || t.special[token] < 0 {
		return 0, errors.Errorf("special token %s not found", token)
	}
	return t.special[token], nil
}

// Tokenize implements api.Model: it tokenizes pre-tokenized words.
//
// Unlike Encode, a word with any part not in the vocabulary becomes a single unknown token.
// Token spans are the piece offsets shifted by the start of the word span.
func (t *Tokenizer) Tokenize(words []api.Word) ([]api.ModelToken, error) {
	cfg := t.vocab.Config()
	var tokens []api.ModelToken
	for wordIdx, word := range words {
		if word.Span.End < word.Span.Start {
			return nil, errors.Errorf("word %d (%q) has invalid span [%d, %d)",
				wordIdx, word.Text, word.Span.Start, word.Span.End)
		}
		for _, p := range t.wholeWord.TokenizeWord([]byte(word.Text), false) {
			value := word.Text[p.Start:p.End]
			switch {
			case p.ID == cfg.UnknownID && p.Start == 0 && p.End == len(word.Text):
				value = cfg.UnknownToken
			case p.IsContinuation:
				value = cfg.ContinuationPrefix + value
			}
			tokens = append(tokens, api.ModelToken{
				ID:    p.ID,
				Value: value,
				Span: api.TokenSpan{
					Start: min(word.Span.Start+p.Start, word.Span.End),
					End:   min(word.Span.Start+p.End, word.Span.End),
				},
				Word: wordIdx,
			})
		}
	}
	return tokens, nil
}

// TokenToID converts a token string to its ID.
func (t *Tokenizer) TokenToID(token string) (int, bool) {
	return t.file.ID(token)
}

// IDToToken converts a token ID to its string.
func (t *Tokenizer) IDToToken(id int) (string, bool) {
	if id < 0 || id >= len(t.file.Tokens) || t.file.Tokens[id] == "" {
		return "", false
	}
	return t.file.Tokens[id], true
}

// VocabSize returns the size of the vocabulary, including ids of tokens that are never matched.
func (t *Tokenizer) VocabSize() int {
	return t.file.Len()
}

// IsSpecial returns whether id is the id of a special token.
func (t *Tokenizer) IsSpecial(id int) bool {
	return t.file.IsSpecial(id)
}

// AttentionMask returns 1 for every id that isn't padding, and 0 for padding.
func (t *Tokenizer) AttentionMask(ids []int) []int {
	padID := t.special[api.TokPad]
	mask := make([]int, len(ids))
	for ii, id := range ids {
		if padID < 0 || id != padID {
			mask[ii] = 1
		}
	}
	return mask
}

// TextOf returns the text covered by span.
func TextOf(text string, span api.TokenSpan) string {
	return text[span.Start:span.End]
}

// TextsOf returns the text covered by each span.
func TextsOf(text string, spans []api.TokenSpan) []string {
	texts := make([]string, len(spans))
	for ii, span := range spans {
		texts[ii] = TextOf(text, span)
	}
	return texts
}
