package wordpiece

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var fuzzSeeds = []string{
	"",
	"hello world",
	"testing unaffable café",
	"##ing ## #",
	"abcabc ab abx",
	"\xff\xfe\xc3 caf\xc3 é\xa9",
	"野口里佳 Noguchi Rika!?",
	"   \t\n",
}

func FuzzTokenize(f *testing.F) {
	for _, seed := range fuzzSeeds {
		f.Add(seed)
	}
	var vocabularies []*Vocabulary
	for _, split := range []SplitFunc{SplitWhitespace, SplitBert, SplitUnicodeWords, SplitNone} {
		for _, policy := range []UnknownPolicy{UnknownRemainder, UnknownWholeWord} {
			vocabularies = append(vocabularies, newTestVocabulary(f, testTokens,
				Config{UnknownID: testUnkID, Split: split, Unknown: policy, MaxWordChars: 64}))
		}
	}

	f.Fuzz(func(t *testing.T, text string) {
		for _, v := range vocabularies {
			tokens := v.Tokenize(text)
			for _, token := range tokens {
				require.Less(t, token.Start, token.End, "empty token in %q", text)
			}
			assertCoversWords(t, v, text, tokens)
			require.Equal(t, tokens, v.Tokenize(text))
		}
	})
}

func FuzzTokenizeWord(f *testing.F) {
	for _, seed := range fuzzSeeds {
		f.Add([]byte(seed), false)
		f.Add([]byte(seed), true)
	}
	v := newTestVocabulary(f, testTokens, Config{UnknownID: testUnkID})

	f.Fuzz(func(t *testing.T, word []byte, continued bool) {
		pieces := v.TokenizeWord(word, continued)
		pos := 0
		for _, p := range pieces {
			require.Equal(t, pos, p.Start)
			require.Less(t, p.Start, p.End)
			pos = p.End
		}
		require.Equal(t, len(word), pos)
	})
}
