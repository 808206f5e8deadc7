// Package qa implements feature extraction and answer reconstruction for
// extractive question answering.
//
// The pipeline converts raw (document, question, answer) triples into
// fixed-length feature records a span-prediction model can consume, and
// turns the model's per-token start/end scores back into ranked answer
// strings aligned to the original document text:
//
//	raw input -> NewExample -> Example
//	Example -> ExtractFeatures -> []Feature (one per overlapping document span)
//	[]Feature -> NewTensors -> model inputs (external model produces scores)
//	scores -> Predict -> ranked answers per original example
//
// The sub-word tokenizer is consumed as an opaque capability
// (tokenizers/api.Tokenizer); see tokenizers/wordpiece and
// tokenizers/sentencepiece for concrete implementations.
package qa

import "strings"

// Defaults mirroring the usual configuration for BERT/XLNet-style
// span-prediction models.
const (
	DefaultMaxSeqLen         = 512
	DefaultMaxQuestionLength = 64
	DefaultDocStride         = 128
	DefaultNBestSize         = 20
	DefaultMaxAnswerLength   = 30

	// DefaultUniqueIDBase offsets feature unique ids so they never collide
	// with example indices or ids from other batches.
	DefaultUniqueIDBase = 1000000000
)

// Input is one raw document-question-answer triple.
//
// AnswerStarts/AnswerTexts carry the character (rune) offset and text of the
// ground-truth answer when available. They are slices because upstream
// datasets sometimes supply the answer as a one-element collection: a single
// element is unwrapped, and more than one element is rejected for
// answerable training questions.
type Input struct {
	ID           string
	DocText      string
	QuestionText string
	IsImpossible bool
	AnswerStarts []int
	AnswerTexts  []string
}

// Example is a normalized document-question-answer triple: the document
// split into whitespace tokens, with the answer projected onto a token span.
// Immutable once built.
type Example struct {
	ID           string
	DocTokens    []string
	QuestionText string
	AnswerText   string

	// StartToken/EndToken index into DocTokens; -1 when the answer is
	// unavailable (inference mode) or the question is unanswerable.
	StartToken int
	EndToken   int

	IsImpossible bool
}

// ExampleRecord is the persisted form of an Example (one JSON object per
// line in the examples cache file): just what answer aggregation needs.
type ExampleRecord struct {
	ID        string   `json:"qa_id"`
	DocTokens []string `json:"doc_tokens"`
}

// Record returns the persisted form of the example.
func (e *Example) Record() ExampleRecord {
	return ExampleRecord{ID: e.ID, DocTokens: e.DocTokens}
}

// isWhitespace reports whether r terminates a whitespace token. The narrow
// no-break space (U+202F) appears in real-world documents and must split
// tokens like a regular space.
func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == 0x202F
}

// whitespaceTokenize splits text on runs of whitespace.
func whitespaceTokenize(text string) []string {
	return strings.Fields(text)
}
