// Package vocabfile loads wordpiece vocabularies from files.
//
// Two formats are supported: the BERT "vocab.txt" format, with one token per line and the line
// number as the token id, and the WordPiece models of HuggingFace's "tokenizer.json" format.
//
// Tokens enclosed in brackets (e.g. "[CLS]") are special tokens. Continuation tokens carry the
// continuation prefix ("##" by default) as part of their key.
package vocabfile

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/gomlx/go-wordpiece/internal/files"
	"github.com/gomlx/go-wordpiece/tokenizers/vocab"
	"github.com/gomlx/go-wordpiece/tokenizers/wordpiece"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"k8s.io/klog/v2"
)

// Conventional special tokens of BERT vocabularies.
const (
	UnkToken  = "[UNK]"
	ClsToken  = "[CLS]"
	SepToken  = "[SEP]"
	PadToken  = "[PAD]"
	MaskToken = "[MASK]"
)

// unusedPrefix marks placeholder tokens, which keep their id but are never matched.
const unusedPrefix = "[unused"

// File is a parsed vocabulary.
type File struct {
	// Tokens maps ids to token text. Ids without a token hold "".
	Tokens []string

	// Special lists the ids of the special tokens, in increasing order.
	Special []int

	// UnknownID, ClsID, SepID, PadID and MaskID are the ids of the conventional special tokens,
	// or -1 if absent.
	UnknownID, ClsID, SepID, PadID, MaskID int

	// UnknownToken is the display form of the unknown token.
	UnknownToken string

	// ContinuationPrefix prefixes the continuation tokens.
	ContinuationPrefix string

	// MaxWordChars is the longest word, in runes, that is matched. 0 for no limit.
	MaxWordChars int

	// Split names the word splitter, see wordpiece.SplitFuncByName.
	Split string

	// keys maps the matchable tokens to their ids.
	keys map[string]int
}

func newFile() *File {
	return &File{
		UnknownID:          -1,
		ClsID:              -1,
		SepID:              -1,
		PadID:              -1,
		MaskID:             -1,
		UnknownToken:       UnkToken,
		ContinuationPrefix: wordpiece.DefaultContinuationPrefix,
		keys:               make(map[string]int),
	}
}

// Open reads a vocab.txt file.
func Open(filePath string) (*File, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open vocabulary file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	vf, err := Parse(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "while reading %q", filePath)
	}
	klog.V(1).Infof("vocabfile: loaded %d tokens from %q", len(vf.Tokens), filePath)
	return vf, nil
}

// Parse reads a vocabulary in vocab.txt format: one token per line, the line index is its id.
// A leading UTF-8 byte order mark and "\r\n" line endings are accepted.
//
// Empty lines and "[unused...]" tokens keep their id but are not matchable. If a token appears
// more than once, its first id is the one matched.
func Parse(r io.Reader) (*File, error) {
	r = transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	vf := newFile()
	for scanner.Scan() {
		token := strings.TrimSuffix(scanner.Text(), "\r")
		vf.add(token, len(vf.Tokens))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read vocabulary")
	}
	if len(vf.keys) == 0 {
		return nil, errors.Errorf("vocabulary has no tokens")
	}
	return vf, nil
}

// add registers token with id, growing Tokens as needed.
func (vf *File) add(token string, id int) {
	for len(vf.Tokens) <= id {
		vf.Tokens = append(vf.Tokens, "")
	}
	vf.Tokens[id] = token

	if token == "" || strings.HasPrefix(token, unusedPrefix) {
		return
	}
	if strings.HasPrefix(token, "[") && strings.HasSuffix(token, "]") {
		vf.markSpecial(id)
	}
	switch token {
	case vf.UnknownToken:
		vf.UnknownID = id
		vf.markSpecial(id)
	case ClsToken:
		vf.ClsID = id
	case SepToken:
		vf.SepID = id
	case PadToken:
		vf.PadID = id
	case MaskToken:
		vf.MaskID = id
	}
	if prev, found := vf.keys[token]; found {
		klog.Warningf("vocabfile: token %q has ids %d and %d, using %d", token, prev, id, prev)
		return
	}
	vf.keys[token] = id
}

func (vf *File) markSpecial(id int) {
	if idx, found := slices.BinarySearch(vf.Special, id); !found {
		vf.Special = slices.Insert(vf.Special, idx, id)
	}
}

// Len returns the number of ids, including those of tokens that are not matchable.
func (vf *File) Len() int { return len(vf.Tokens) }

// ID returns the id matched for token, if it is a matchable token.
func (vf *File) ID(token string) (int, bool) {
	id, found := vf.keys[token]
	return id, found
}

// IsSpecial returns whether id is the id of a special token.
func (vf *File) IsSpecial(id int) bool {
	_, found := slices.BinarySearch(vf.Special, id)
	return found
}

// Entries returns the matchable tokens in the order required by vocab.Build.
func (vf *File) Entries() []vocab.Entry {
	entries := make([]vocab.Entry, 0, len(vf.keys))
	for key, id := range vf.keys {
		entries = append(entries, vocab.Entry{Key: []byte(key), ID: id})
	}
	slices.SortFunc(entries, func(a, b vocab.Entry) int { return bytes.Compare(a.Key, b.Key) })
	return entries
}

// Config returns the wordpiece configuration described by the file.
// It fails if the vocabulary has no unknown token.
func (vf *File) Config() (wordpiece.Config, error) {
	if vf.UnknownID < 0 {
		return wordpiece.Config{}, errors.Errorf("unknown token %q not found in vocabulary", vf.UnknownToken)
	}
	split, found := wordpiece.SplitFuncByName(vf.Split)
	if !found {
		return wordpiece.Config{}, errors.Errorf("unknown word splitter %q", vf.Split)
	}
	return wordpiece.Config{
		UnknownID:          vf.UnknownID,
		UnknownToken:       vf.UnknownToken,
		ContinuationPrefix: vf.ContinuationPrefix,
		Split:              split,
		MaxWordChars:       vf.MaxWordChars,
	}, nil
}

// Build compiles the vocabulary and returns it ready for tokenization.
func (vf *File) Build() (*wordpiece.Vocabulary, error) {
	config, err := vf.Config()
	if err != nil {
		return nil, err
	}
	return wordpiece.Build(vf.Entries(), config)
}

// WriteTo writes the tokens in vocab.txt format. It implements io.WriterTo.
func (vf *File) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, token := range vf.Tokens {
		written, err := bw.WriteString(token + "\n")
		n += int64(written)
		if err != nil {
			return n, errors.Wrapf(err, "failed to write vocabulary")
		}
	}
	if err := bw.Flush(); err != nil {
		return n, errors.Wrapf(err, "failed to write vocabulary")
	}
	return n, nil
}

// Save writes the tokens to filePath in vocab.txt format.
func (vf *File) Save(filePath string) error {
	return files.ReplaceAtomic(filePath, ".saving", func(f *os.File) error {
		_, err := vf.WriteTo(f)
		return err
	})
}
