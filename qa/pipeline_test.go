package qa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipelineInputs() []Input {
	cafe := Input{
		ID:           "cafe-1",
		DocText:      "café is nice today",
		QuestionText: "How is the café?",
		AnswerStarts: []int{8},
		AnswerTexts:  []string{"nice"},
	}
	// The answer text does not occur at the given offset, so this input is
	// dropped in training mode.
	bad := Input{
		ID:           "bad-1",
		DocText:      "Mary had a little lamb.",
		QuestionText: "What did Mary have?",
		AnswerStarts: []int{0},
		AnswerTexts:  []string{"goat"},
	}
	return []Input{maryInput(), cafe, bad}
}

// TestBuildFeaturesTraining tests the end-to-end driver: dropped inputs are
// skipped and unique ids advance by one per feature, starting at the base.
func TestBuildFeaturesTraining(t *testing.T) {
	tok := newWordTokenizer("café", "is", "nice", "today", "how", "the")
	set, err := BuildFeatures(pipelineInputs(), tok, FeatureOptions{IsTraining: true, MaxSeqLen: 30})
	require.NoError(t, err)

	require.Len(t, set.Examples, 2)
	assert.Equal(t, "mary-1", set.Examples[0].ID)
	assert.Equal(t, "cafe-1", set.Examples[1].ID)

	require.Len(t, set.Features, 2)
	assert.Equal(t, int64(DefaultUniqueIDBase+1), set.Features[0].UniqueID)
	assert.Equal(t, int64(DefaultUniqueIDBase+2), set.Features[1].UniqueID)
}

// TestBuildFeaturesInference tests that inference keeps all inputs and
// advances ids by two.
func TestBuildFeaturesInference(t *testing.T) {
	tok := newWordTokenizer("café", "is", "nice", "today", "how", "the")
	set, err := BuildFeatures(pipelineInputs(), tok, FeatureOptions{MaxSeqLen: 30})
	require.NoError(t, err)

	require.Len(t, set.Examples, 3)
	require.Len(t, set.Features, 3)
	assert.Equal(t, int64(DefaultUniqueIDBase+2), set.Features[0].UniqueID)
	assert.Equal(t, int64(DefaultUniqueIDBase+4), set.Features[1].UniqueID)
	assert.Equal(t, int64(DefaultUniqueIDBase+6), set.Features[2].UniqueID)
}

// TestBuildFeaturesParallelDeterminism tests that concurrent processing
// produces exactly the sequential output.
func TestBuildFeaturesParallelDeterminism(t *testing.T) {
	tok := newWordTokenizer("café", "is", "nice", "today", "how", "the")

	// Enough inputs to keep several workers busy.
	var inputs []Input
	for i := 0; i < 8; i++ {
		inputs = append(inputs, pipelineInputs()...)
	}

	sequential, err := BuildFeatures(inputs, tok, FeatureOptions{IsTraining: true, MaxSeqLen: 30})
	require.NoError(t, err)
	parallel, err := BuildFeatures(inputs, tok, FeatureOptions{IsTraining: true, MaxSeqLen: 30, Workers: 4})
	require.NoError(t, err)

	assert.Equal(t, sequential, parallel)
}

// TestBuildFeaturesTrainingValidation tests the up-front config check:
// answerable training inputs must carry answer fields.
func TestBuildFeaturesTrainingValidation(t *testing.T) {
	tok := newWordTokenizer()
	_, err := BuildFeatures([]Input{{
		ID:           "noanswer-1",
		DocText:      "Mary had a little lamb.",
		QuestionText: "What did Mary have?",
	}}, tok, FeatureOptions{IsTraining: true, MaxSeqLen: 30})
	assert.Error(t, err)
}

// TestBuildFeaturesRecords tests the persisted projections of a feature
// set.
func TestBuildFeaturesRecords(t *testing.T) {
	tok := newWordTokenizer()
	set, err := BuildFeatures([]Input{maryInput()}, tok, FeatureOptions{MaxSeqLen: 30})
	require.NoError(t, err)

	examples := set.ExampleRecords()
	require.Len(t, examples, 1)
	assert.Equal(t, "mary-1", examples[0].ID)
	assert.Equal(t, set.Examples[0].DocTokens, examples[0].DocTokens)

	features := set.FeatureRecords()
	require.Len(t, features, 1)
	assert.Equal(t, set.Features[0].UniqueID, features[0].UniqueID)
	assert.Equal(t, set.Features[0].Tokens, features[0].Tokens)
	assert.Equal(t, set.Features[0].ParagraphLen, features[0].ParagraphLen)
}
