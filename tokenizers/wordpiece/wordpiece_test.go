package wordpiece

import (
	"bytes"
	"slices"
	"sync"
	"testing"

	"github.com/gomlx/go-wordpiece/tokenizers/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUnkID = 100

// newTestVocabulary builds a vocabulary from a token -> id map.
func newTestVocabulary(t testing.TB, tokens map[string]int, config Config) *Vocabulary {
	t.Helper()
	entries := make([]vocab.Entry, 0, len(tokens))
	for key, id := range tokens {
		entries = append(entries, vocab.Entry{Key: []byte(key), ID: id})
	}
	slices.SortFunc(entries, func(a, b vocab.Entry) int { return bytes.Compare(a.Key, b.Key) })
	v, err := Build(entries, config)
	require.NoError(t, err)
	return v
}

var testTokens = map[string]int{
	"[UNK]":  testUnkID,
	"hello":  1,
	"world":  2,
	"test":   3,
	"##ing":  4,
	"##ed":   5,
	"ab":     6,
	"abc":    7,
	"##c":    8,
	"caf":    9,
	"##é":    10,
	"é":      11,
	"un":     12,
	"##aff":  13,
	"##able": 14,
	"##a":    15,
}

// assertCoversWords checks that the tokens of every word partition it, in rune offsets.
func assertCoversWords(t *testing.T, v *Vocabulary, text string, tokens []Token) {
	t.Helper()
	pos := 0
	ti := 0
	for start, end := range v.config.Split(text) {
		charStart := CharLen(text[:start])
		charEnd := CharLen(text[:end])
		require.Less(t, ti, len(tokens), "no tokens for word %q", text[start:end])
		require.Equal(t, charStart, tokens[ti].Start, "word %q of %q", text[start:end], text)
		require.GreaterOrEqual(t, charStart, pos)
		for ti < len(tokens) && tokens[ti].End < charEnd {
			require.Equal(t, tokens[ti].End, tokens[ti+1].Start, "gap in word %q of %q", text[start:end], text)
			ti++
		}
		require.Less(t, ti, len(tokens))
		require.Equal(t, charEnd, tokens[ti].End, "word %q of %q", text[start:end], text)
		pos = charEnd
		ti++
	}
	require.Equal(t, len(tokens), ti, "extra tokens for %q", text)
}

func TestTokenize(t *testing.T) {
	v := newTestVocabulary(t, testTokens, Config{UnknownID: testUnkID})

	tests := []struct {
		name  string
		input string
		want  []Token
	}{
		{"empty", "", nil},
		{"only whitespace", " \t\n ", nil},
		{"single word", "hello", []Token{{ID: 1, Start: 0, End: 5}}},
		{"two words", "hello world", []Token{{ID: 1, Start: 0, End: 5}, {ID: 2, Start: 6, End: 11}}},
		{"continuation", "testing", []Token{
			{ID: 3, Start: 0, End: 4},
			{ID: 4, Start: 4, End: 7, IsContinuation: true},
		}},
		{"longest match", "abc", []Token{{ID: 7, Start: 0, End: 3}}},
		{"unknown word", "xyz", []Token{{ID: testUnkID, Start: 0, End: 3}}},
		{"unknown remainder", "testxyz", []Token{
			{ID: 3, Start: 0, End: 4},
			{ID: testUnkID, Start: 4, End: 7, IsContinuation: true},
		}},
		{"multi-byte", "café", []Token{
			{ID: 9, Start: 0, End: 3},
			{ID: 10, Start: 3, End: 4, IsContinuation: true},
		}},
		{"multi-byte offsets after", "é hello", []Token{
			{ID: 11, Start: 0, End: 1},
			{ID: 1, Start: 2, End: 7},
		}},
		{"three pieces", "unaffable", []Token{
			{ID: 12, Start: 0, End: 2},
			{ID: 13, Start: 2, End: 5, IsContinuation: true},
			{ID: 14, Start: 5, End: 9, IsContinuation: true},
		}},
		{"leading whitespace", "  test", []Token{{ID: 3, Start: 2, End: 6}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Tokenize(tt.input)
			assert.Equal(t, tt.want, got)
			assertCoversWords(t, v, tt.input, got)
		})
	}
}

func TestLongestMatchNotShadowedByPrefix(t *testing.T) {
	// "ab" is a key and a prefix of "abc", which differs only in its last byte transition.
	v := newTestVocabulary(t, map[string]int{"ab": 1, "abc": 2, "##c": 3, "[UNK]": 0}, Config{})
	got := v.Tokenize("abc")
	require.Len(t, got, 1)
	assert.Equal(t, Token{ID: 2, Start: 0, End: 3}, got[0])

	// Keys found on the way must be remembered after the extension fails.
	got = v.Tokenize("abx")
	assert.Equal(t, []Token{{ID: 1, Start: 0, End: 2}, {ID: 0, Start: 2, End: 3, IsContinuation: true}}, got)
}

func TestUnknownGranularity(t *testing.T) {
	v := newTestVocabulary(t, testTokens, Config{UnknownID: testUnkID})
	got := v.Tokenize("xyz")
	require.Len(t, got, 1, "one unknown token per unmatched word")
	assert.Equal(t, Token{ID: testUnkID, Start: 0, End: 3}, got[0])

	got = v.Tokenize("xyz qqq hello")
	assert.Equal(t, []Token{
		{ID: testUnkID, Start: 0, End: 3},
		{ID: testUnkID, Start: 4, End: 7},
		{ID: 1, Start: 8, End: 13},
	}, got)
}

func TestUnknownWholeWord(t *testing.T) {
	v := newTestVocabulary(t, testTokens, Config{UnknownID: testUnkID, Unknown: UnknownWholeWord})
	got := v.Tokenize("testxyz testing")
	assert.Equal(t, []Token{
		{ID: testUnkID, Start: 0, End: 7},
		{ID: 3, Start: 8, End: 12},
		{ID: 4, Start: 12, End: 15, IsContinuation: true},
	}, got)
}

func TestMaxWordChars(t *testing.T) {
	v := newTestVocabulary(t, testTokens, Config{UnknownID: testUnkID, MaxWordChars: 5})
	assert.Equal(t, []Token{{ID: 1, Start: 0, End: 5}}, v.Tokenize("hello"))
	assert.Equal(t, []Token{{ID: testUnkID, Start: 0, End: 7}}, v.Tokenize("testing"))
	// Counted in runes, not bytes.
	assert.Equal(t, []Token{{ID: 9, Start: 0, End: 3}, {ID: 10, Start: 3, End: 4, IsContinuation: true}},
		v.Tokenize("café"))
}

func TestNoContinuationKeys(t *testing.T) {
	v := newTestVocabulary(t, map[string]int{"a": 1, "ab": 2}, Config{})
	assert.False(t, v.hasCont)
	assert.Equal(t, []Token{{ID: 2, Start: 0, End: 2}}, v.Tokenize("ab"))
	assert.Equal(t, []Token{{ID: 2, Start: 0, End: 2}, {ID: 0, Start: 2, End: 3, IsContinuation: true}},
		v.Tokenize("aba"))
}

func TestCustomContinuationPrefix(t *testing.T) {
	v := newTestVocabulary(t, map[string]int{"<unk>": 0, "play": 1, "@@ing": 2, "##ing": 3},
		Config{ContinuationPrefix: "@@", UnknownToken: "<unk>"})
	assert.Equal(t, "<unk>", v.UnknownToken())
	assert.Equal(t, []Token{{ID: 1, Start: 0, End: 4}, {ID: 2, Start: 4, End: 7, IsContinuation: true}},
		v.Tokenize("playing"))
}

func TestTokenizeWord(t *testing.T) {
	v := newTestVocabulary(t, testTokens, Config{UnknownID: testUnkID})

	assert.Empty(t, v.TokenizeWord(nil, false))
	assert.Empty(t, v.TokenizeWord([]byte{}, true))

	assert.Equal(t, []Piece{{ID: 3, Start: 0, End: 4}, {ID: 5, Start: 4, End: 6, IsContinuation: true}},
		v.TokenizeWord([]byte("tested"), false))

	// A continued word is matched with continuation keys from its first byte.
	assert.Equal(t, []Piece{{ID: 4, Start: 0, End: 3, IsContinuation: true}},
		v.TokenizeWord([]byte("ing"), true))
	assert.Equal(t, []Piece{{ID: testUnkID, Start: 0, End: 4, IsContinuation: true}},
		v.TokenizeWord([]byte("test"), true))

	// Byte offsets: "é" is 2 bytes.
	assert.Equal(t, []Piece{{ID: 9, Start: 0, End: 3}, {ID: 10, Start: 3, End: 5, IsContinuation: true}},
		v.TokenizeWord([]byte("café"), false))
}

func TestTokenizeBytes(t *testing.T) {
	v := newTestVocabulary(t, testTokens, Config{UnknownID: testUnkID})
	assert.Equal(t, []Piece{
		{ID: 9, Start: 0, End: 3},
		{ID: 10, Start: 3, End: 5, IsContinuation: true},
		{ID: 1, Start: 6, End: 11},
	}, v.TokenizeBytes("café hello"))
}

func TestMatchesStayOnRuneBoundaries(t *testing.T) {
	// "\xc3" is the first byte of "é": a key ending there must not be used to split it.
	v := newTestVocabulary(t, map[string]int{"[UNK]": 0, "caf\xc3": 1, "caf": 2, "##é": 3}, Config{})
	assert.Equal(t, []Token{{ID: 2, Start: 0, End: 3}, {ID: 3, Start: 3, End: 4, IsContinuation: true}},
		v.Tokenize("café"))
}

func TestDeterminism(t *testing.T) {
	text := "hello world testing unaffable café xyz testxyz"
	v1 := newTestVocabulary(t, testTokens, Config{UnknownID: testUnkID})
	v2 := newTestVocabulary(t, testTokens, Config{UnknownID: testUnkID})
	want := v1.Tokenize(text)
	for range 10 {
		assert.Equal(t, want, v1.Tokenize(text))
		assert.Equal(t, want, v2.Tokenize(text))
	}
}

func TestConcurrentTokenize(t *testing.T) {
	v := newTestVocabulary(t, testTokens, Config{UnknownID: testUnkID})
	text := "hello world testing unaffable café xyz"
	want := v.Tokenize(text)

	var wg sync.WaitGroup
	results := make([][]Token, 16)
	for ii := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				results[ii] = v.Tokenize(text)
			}
		}()
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestNew(t *testing.T) {
	store, err := vocab.Build([]vocab.Entry{{Key: []byte("a"), ID: 0}})
	require.NoError(t, err)

	_, err = New(nil, Config{})
	assert.Error(t, err)
	_, err = New(store, Config{UnknownID: -1})
	assert.Error(t, err)
	_, err = New(store, Config{Unknown: UnknownPolicy(7)})
	assert.Error(t, err)

	v, err := New(store, Config{UnknownID: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, v.UnknownID())
	assert.Equal(t, DefaultUnknownToken, v.UnknownToken())
	assert.Equal(t, DefaultContinuationPrefix, v.Config().ContinuationPrefix)
	assert.Same(t, store, v.Store())
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(nil, Config{})
	assert.ErrorIs(t, err, vocab.ErrEmptyVocabulary)

	_, err = Build([]vocab.Entry{{Key: []byte("b"), ID: 0}, {Key: []byte("a"), ID: 1}}, Config{})
	assert.ErrorIs(t, err, vocab.ErrUnsortedInput)

	_, err = Build([]vocab.Entry{{Key: []byte("a"), ID: 0}, {Key: []byte("a"), ID: 0}}, Config{})
	assert.ErrorIs(t, err, vocab.ErrDuplicateKey)
}
