package wordpiece

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectWords(split SplitFunc, text string) []string {
	var words []string
	for start, end := range split(text) {
		words = append(words, text[start:end])
	}
	return words
}

func TestSplitWhitespace(t *testing.T) {
	assert.Nil(t, collectWords(SplitWhitespace, ""))
	assert.Nil(t, collectWords(SplitWhitespace, " \t\n "))
	assert.Equal(t, []string{"Hey", "friend!", "How"}, collectWords(SplitWhitespace, "  Hey friend!\tHow \n"))
	assert.Equal(t, []string{"Ein", "interessantes", "Beispiel"},
		collectWords(SplitWhitespace, "Ein interessantes Beispiel"))
}

func TestSplitBert(t *testing.T) {
	assert.Equal(t, []string{"Hey", "friend", "!", "How", "are", "you", "?", "!", "?"},
		collectWords(SplitBert, "Hey friend!     How are you?!?"))
	assert.Equal(t, []string{"野", "口", "里", "佳", "Noguchi", "Rika"},
		collectWords(SplitBert, "野口里佳 Noguchi Rika"))
	assert.Equal(t, []string{"Borreliose", "-", "Erkrankung", "?"},
		collectWords(SplitBert, "Borreliose-Erkrankung?"))
}

func TestSplitUnicodeWords(t *testing.T) {
	assert.Equal(t, []string{"Hello", ",", "world", "!", "42"}, collectWords(SplitUnicodeWords, "Hello, world! 42"))
	assert.Nil(t, collectWords(SplitUnicodeWords, "   "))
	assert.Nil(t, collectWords(SplitUnicodeWords, ""))
}

func TestSplitNone(t *testing.T) {
	assert.Nil(t, collectWords(SplitNone, ""))
	assert.Equal(t, []string{" a b "}, collectWords(SplitNone, " a b "))
}

func TestSplitStopsEarly(t *testing.T) {
	for _, split := range []SplitFunc{SplitWhitespace, SplitBert, SplitUnicodeWords, SplitNone} {
		count := 0
		for range split("one two three") {
			count++
			break
		}
		assert.Equal(t, 1, count)
	}
}

func TestSplitFuncByName(t *testing.T) {
	for _, name := range []string{"", "whitespace", "bert", "unicode", "none"} {
		split, found := SplitFuncByName(name)
		require.True(t, found, name)
		assert.NotNil(t, split)
	}
	_, found := SplitFuncByName("sentencepiece")
	assert.False(t, found)
}

func TestTokenizeWithSplitters(t *testing.T) {
	tokens := map[string]int{"[UNK]": 0, "hello": 1, "!": 2, "##!": 3, "world": 4}

	v := newTestVocabulary(t, tokens, Config{})
	assert.Equal(t, []Token{{ID: 1, Start: 0, End: 5}, {ID: 3, Start: 5, End: 6, IsContinuation: true}},
		v.Tokenize("hello!"))

	v = newTestVocabulary(t, tokens, Config{Split: SplitBert})
	assert.Equal(t, []Token{{ID: 1, Start: 0, End: 5}, {ID: 2, Start: 5, End: 6}},
		v.Tokenize("hello!"))

	// With SplitNone the tokens cover the whole input.
	v = newTestVocabulary(t, tokens, Config{Split: SplitNone})
	got := v.Tokenize("hello world")
	assert.Equal(t, []Token{{ID: 1, Start: 0, End: 5}, {ID: 0, Start: 5, End: 11, IsContinuation: true}}, got)
}
