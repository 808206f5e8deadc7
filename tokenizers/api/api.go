// Package api defines the sub-word tokenizer capability consumed by the QA
// pipeline. It's kept in its own package to break cyclic dependencies; the
// sibling wordpiece and sentencepiece packages provide implementations.
package api

// Tokenizer is the sub-word tokenization capability the pipeline depends on.
//
// The pipeline never inspects vocabulary internals: it only splits text into
// sub-word token strings, converts tokens to numeric ids for the model-facing
// feature arrays, and joins predicted token runs back into text during answer
// reconstruction.
type Tokenizer interface {
	// Tokenize splits text into sub-word tokens (e.g. word-pieces).
	Tokenize(text string) []string

	// ConvertTokensToIDs maps sub-word tokens to their vocabulary ids.
	ConvertTokensToIDs(tokens []string) []int

	// ConvertTokensToString joins sub-word tokens back into a detokenized,
	// whitespace-normalized string.
	ConvertTokensToString(tokens []string) string
}

// SpecialTokens names the control tokens and pad id a Tokenizer uses for
// sequence assembly. Implementations expose their own values; callers may
// override them in feature-assembly options.
type SpecialTokens struct {
	Cls   string // classification token, e.g. "[CLS]"
	Sep   string // separator token, e.g. "[SEP]"
	PadID int    // id used to pad input_ids
}

// TokenizerWithSpecials extends Tokenizer with the control tokens needed to
// assemble fixed-length model inputs.
type TokenizerWithSpecials interface {
	Tokenizer
	SpecialTokens() SpecialTokens
}
