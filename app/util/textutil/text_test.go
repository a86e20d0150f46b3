package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"What's", "the", "F1", "score", "of", "model_v2"}, Words("What's the F1-score of model_v2?"))
	assert.Equal(t, []string{"doesn't", "work"}, Words("'doesn't' work!"))
	assert.Empty(t, Words("?!"))
	assert.Equal(t, []string{"tell", "me", "about", "it"}, LowerWords("Tell me about it."))
}

func TestSetHelpers(t *testing.T) {
	set := Set("it", "they")

	assert.True(t, ContainsAny(set, []string{"what", "is", "it"}))
	assert.False(t, ContainsAny(set, []string{"italy"}))
	assert.Equal(t, []string{"they", "it"}, Matching(set, []string{"they", "said", "it"}))
}

func TestIsCapitalized(t *testing.T) {
	assert.True(t, IsCapitalized("PyTorch"))
	assert.True(t, IsCapitalized("Éclair"))
	assert.False(t, IsCapitalized("pytorch"))
	assert.False(t, IsCapitalized("3D"))
	assert.False(t, IsCapitalized(""))
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 1.0, Jaccard([]string{"a", "b"}, []string{"b", "a", "a"}), 1e-9)
	assert.InDelta(t, 1.0/3.0, Jaccard([]string{"a", "b"}, []string{"b", "c"}), 1e-9)
	assert.Zero(t, Jaccard(nil, nil))
	assert.Zero(t, Jaccard([]string{"a"}, nil))
}
