package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTags_SingleDomain(t *testing.T) {
	require.Equal(t, []string{"return"}, Tags(Tokenize("I want to refund this")))
	require.Equal(t, []string{"shipping"}, Tags(Tokenize("my package was delivered")))
	require.Equal(t, []string{"account"}, Tags(Tokenize("reset my password")))
}

func TestTags_MultipleDomainsInVocabularyOrder(t *testing.T) {
	got := Tags(Tokenize("return the order to my address"))
	require.Equal(t, []string{"return", "order", "account"}, got)
}

func TestTags_Deterministic(t *testing.T) {
	toks := Tokenize("payment charged for order and shipped with tracking")
	first := Tags(toks)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, Tags(toks))
	}
}

func TestTags_NoneFiring(t *testing.T) {
	require.Empty(t, Tags(Tokenize("hello there")))
	require.Empty(t, Tags(nil))
}

func TestTags_OneHitPerVocabulary(t *testing.T) {
	// several words of one vocabulary still yield the tag once
	got := Tags(Tokenize("refund the return please"))
	require.Equal(t, []string{"return"}, got)
}
