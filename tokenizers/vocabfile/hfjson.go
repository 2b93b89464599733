package vocabfile

import (
	"encoding/json"
	"os"
	"slices"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// TokenizerJSON represents the parts of HuggingFace's tokenizer.json file used by wordpiece models.
type TokenizerJSON struct {
	Version      string        `json:"version"`
	AddedTokens  []AddedToken  `json:"added_tokens"`
	Normalizer   *Normalizer   `json:"normalizer"`
	PreTokenizer *PreTokenizer `json:"pre_tokenizer"`
	Model        Model         `json:"model"`
}

// AddedToken represents a special token added to the vocabulary.
type AddedToken struct {
	ID         int    `json:"id"`
	Content    string `json:"content"`
	SingleWord bool   `json:"single_word"`
	Lstrip     bool   `json:"lstrip"`
	Rstrip     bool   `json:"rstrip"`
	Normalized bool   `json:"normalized"`
	Special    bool   `json:"special"`
}

// Normalizer represents the normalizer configuration.
type Normalizer struct {
	Type      string `json:"type"`
	Lowercase bool   `json:"lowercase"`
}

// PreTokenizer represents the pre-tokenizer configuration.
type PreTokenizer struct {
	Type          string         `json:"type"`
	PreTokenizers []PreTokenizer `json:"pretokenizers"`
}

// Model represents the tokenizer model.
type Model struct {
	Type                    string         `json:"type"`
	Vocab                   map[string]int `json:"vocab"`
	UnkToken                string         `json:"unk_token"`
	ContinuingSubwordPrefix string         `json:"continuing_subword_prefix"`
	MaxInputCharsPerWord    int            `json:"max_input_chars_per_word"`
}

// OpenTokenizerJSON reads a WordPiece model from a local tokenizer.json file path.
func OpenTokenizerJSON(filePath string) (*File, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tokenizer.json file %q", filePath)
	}
	vf, err := ParseTokenizerJSON(content)
	if err != nil {
		return nil, errors.WithMessagef(err, "while parsing %q", filePath)
	}
	klog.V(1).Infof("vocabfile: loaded %d tokens from %q", len(vf.Tokens), filePath)
	return vf, nil
}

// ParseTokenizerJSON reads a WordPiece model from tokenizer.json content.
//
// Normalizers are not applied: a model that lowercases or strips accents must get its text
// normalized by the caller.
func ParseTokenizerJSON(content []byte) (*File, error) {
	var tj TokenizerJSON
	if err := json.Unmarshal(content, &tj); err != nil {
		return nil, errors.Wrapf(err, "failed to parse tokenizer.json")
	}
	if tj.Model.Type != "WordPiece" {
		return nil, errors.Errorf("tokenizer.json model type %q is not supported, only \"WordPiece\"", tj.Model.Type)
	}
	if len(tj.Model.Vocab) == 0 {
		return nil, errors.Errorf("tokenizer.json has an empty vocabulary")
	}

	vf := newFile()
	if tj.Model.UnkToken != "" {
		vf.UnknownToken = tj.Model.UnkToken
	}
	if tj.Model.ContinuingSubwordPrefix != "" {
		vf.ContinuationPrefix = tj.Model.ContinuingSubwordPrefix
	}
	vf.MaxWordChars = tj.Model.MaxInputCharsPerWord
	vf.Split = splitName(tj.PreTokenizer)
	if tj.Normalizer != nil {
		klog.Warningf("vocabfile: tokenizer.json normalizer %q is not applied", tj.Normalizer.Type)
	}

	// Add tokens in id order, so duplicates resolve the same way as in vocab.txt files.
	type pair struct {
		token string
		id    int
	}
	pairs := make([]pair, 0, len(tj.Model.Vocab)+len(tj.AddedTokens))
	for token, id := range tj.Model.Vocab {
		if id < 0 {
			return nil, errors.Errorf("tokenizer.json token %q has invalid id %d", token, id)
		}
		pairs = append(pairs, pair{token, id})
	}
	for _, at := range tj.AddedTokens {
		if id, found := tj.Model.Vocab[at.Content]; found && id == at.ID {
			continue
		}
		if at.ID < 0 {
			return nil, errors.Errorf("tokenizer.json added token %q has invalid id %d", at.Content, at.ID)
		}
		pairs = append(pairs, pair{at.Content, at.ID})
	}
	slices.SortFunc(pairs, func(a, b pair) int {
		if a.id != b.id {
			return a.id - b.id
		}
		if a.token < b.token {
			return -1
		} else if a.token > b.token {
			return 1
		}
		return 0
	})
	for _, p := range pairs {
		vf.add(p.token, p.id)
	}
	for _, at := range tj.AddedTokens {
		if at.Special {
			vf.markSpecial(at.ID)
		}
	}
	return vf, nil
}

// splitName maps a pre-tokenizer type to the closest word splitter.
func splitName(pt *PreTokenizer) string {
	if pt == nil {
		return "whitespace"
	}
	switch pt.Type {
	case "BertPreTokenizer":
		return "bert"
	case "Whitespace", "WhitespaceSplit":
		return "whitespace"
	case "Sequence":
		for _, child := range pt.PreTokenizers {
			if child.Type == "BertPreTokenizer" || child.Type == "Punctuation" {
				return "bert"
			}
		}
		return "whitespace"
	case "Punctuation":
		return "bert"
	default:
		klog.Warningf("vocabfile: tokenizer.json pre-tokenizer %q is not supported, splitting on whitespace", pt.Type)
		return "whitespace"
	}
}
