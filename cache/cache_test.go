package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/go-qa/qa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExamples() []qa.ExampleRecord {
	return []qa.ExampleRecord{
		{ID: "ex-1", DocTokens: []string{"Mary", "had", "a", "little", "lamb."}},
		{ID: "ex-2", DocTokens: []string{"Its", "fleece", "was", "white."}},
	}
}

func testFeatures() []qa.FeatureRecord {
	return []qa.FeatureRecord{
		{
			ExampleID:         "ex-1",
			UniqueID:          1000000001,
			Tokens:            []string{"[CLS]", "what", "[SEP]", "mary", "had", "[SEP]"},
			TokenToOrigMap:    map[int]int{3: 0, 4: 1},
			TokenIsMaxContext: map[int]bool{3: true, 4: true},
			ParagraphLen:      2,
		},
		{
			ExampleID:    "ex-2",
			UniqueID:     1000000002,
			Tokens:       []string{"[CLS]", "[SEP]", "its", "[SEP]"},
			ParagraphLen: 1,
		},
	}
}

// TestExamplesRoundTrip tests writing and reading the examples file.
func TestExamplesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ExamplesTrainFile)
	examples := testExamples()
	require.NoError(t, WriteExamples(path, examples))

	got, err := ReadExamples(path)
	require.NoError(t, err)
	assert.Equal(t, examples, got)
}

// TestFeaturesRoundTrip tests the buffered and memory-mapped feature read
// paths against the same file.
func TestFeaturesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FeaturesTestFile)
	features := testFeatures()
	require.NoError(t, WriteFeatures(path, features))

	got, err := ReadFeatures(path)
	require.NoError(t, err)
	assert.Equal(t, features, got)

	mapped, err := ReadFeaturesMapped(path)
	require.NoError(t, err)
	assert.Equal(t, features, mapped)
}

// TestWriteCreatesDirectories tests that writes create the cache directory
// and replace existing files atomically.
func TestWriteCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", ExamplesTestFile)
	require.NoError(t, WriteExamples(path, testExamples()))

	// Overwrite with fewer records; no stale lines may survive.
	require.NoError(t, WriteExamples(path, testExamples()[:1]))
	got, err := ReadExamples(path)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// No temporary files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp")
	}
}

// TestReadMissingFile tests the error paths.
func TestReadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.jsonl")
	_, err := ReadExamples(missing)
	assert.Error(t, err)
	_, err = ReadFeatures(missing)
	assert.Error(t, err)
	_, err = ReadFeaturesMapped(missing)
	assert.Error(t, err)
}

// TestReadSkipsBlankLines tests tolerance for blank lines in hand-edited
// files.
func TestReadSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), ExamplesTestFile)
	data := "\n" + `{"qa_id":"ex-1","doc_tokens":["a"]}` + "\n\n" + `{"qa_id":"ex-2","doc_tokens":["b"]}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	got, err := ReadExamples(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ex-1", got[0].ID)
	assert.Equal(t, "ex-2", got[1].ID)
}

// TestFeatureColumnsRoundTrip tests the parquet write/read path for the
// model-facing arrays.
func TestFeatureColumnsRoundTrip(t *testing.T) {
	features := []qa.Feature{
		{
			UniqueID:      1000000001,
			ExampleID:     "ex-1",
			InputIDs:      []int{2, 16, 3, 4, 5, 3, 0, 0},
			InputMask:     []int{1, 1, 1, 1, 1, 1, 0, 0},
			SegmentIDs:    []int{0, 0, 0, 1, 1, 1, 0, 0},
			PositionMask:  []int{0, 1, 1, 0, 0, 1, 1, 1},
			ClsIndex:      0,
			StartPosition: 3,
			EndPosition:   4,
			ParagraphLen:  2,
		},
		{
			UniqueID:     1000000002,
			ExampleID:    "ex-2",
			InputIDs:     []int{2, 3, 10, 3, 0, 0, 0, 0},
			InputMask:    []int{1, 1, 1, 1, 0, 0, 0, 0},
			SegmentIDs:   []int{0, 0, 1, 1, 0, 0, 0, 0},
			PositionMask: []int{0, 1, 0, 1, 1, 1, 1, 1},
		},
	}

	path := filepath.Join(t.TempDir(), "features.parquet")
	require.NoError(t, WriteFeatureColumns(path, features))

	rows, err := ReadFeatureColumns(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(1000000001), rows[0].UniqueID)
	assert.Equal(t, "ex-1", rows[0].ExampleID)
	assert.Equal(t, []int64{2, 16, 3, 4, 5, 3, 0, 0}, rows[0].InputIDs)
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 1, 0, 0}, rows[0].InputMask)
	assert.Equal(t, []float32{0, 1, 1, 0, 0, 1, 1, 1}, rows[0].PositionMask)
	assert.Equal(t, int64(3), rows[0].StartPosition)
	assert.Equal(t, int64(4), rows[0].EndPosition)
	assert.Equal(t, "ex-2", rows[1].ExampleID)
}
