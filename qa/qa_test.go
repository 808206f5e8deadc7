package qa

import (
	"strings"

	"github.com/gomlx/go-qa/tokenizers/api"
	"github.com/gomlx/go-qa/tokenizers/basic"
)

// wordTokenizer is a minimal sub-word tokenizer for tests: lower-cased
// whitespace+punctuation splitting with a fixed vocabulary, so feature
// layouts stay small and predictable.
type wordTokenizer struct {
	vocab map[string]int
}

var (
	_ api.Tokenizer             = &wordTokenizer{}
	_ api.TokenizerWithSpecials = &wordTokenizer{}
)

func newWordTokenizer(extraTokens ...string) *wordTokenizer {
	vocab := map[string]int{}
	for _, token := range []string{
		"[PAD]", "[UNK]", "[CLS]", "[SEP]",
		"mary", "had", "a", "little", "lamb", ".", "its", "fleece", "was",
		"white", "as", "snow", "what", "did", "have", "?",
	} {
		vocab[token] = len(vocab)
	}
	for _, token := range extraTokens {
		if _, ok := vocab[token]; !ok {
			vocab[token] = len(vocab)
		}
	}
	return &wordTokenizer{vocab: vocab}
}

func (t *wordTokenizer) Tokenize(text string) []string {
	return basic.New(true).Tokenize(text)
}

func (t *wordTokenizer) ConvertTokensToIDs(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, token := range tokens {
		if id, ok := t.vocab[token]; ok {
			ids[i] = id
		} else {
			ids[i] = t.vocab["[UNK]"]
		}
	}
	return ids
}

func (t *wordTokenizer) ConvertTokensToString(tokens []string) string {
	return strings.Join(tokens, " ")
}

func (t *wordTokenizer) SpecialTokens() api.SpecialTokens {
	return api.SpecialTokens{Cls: "[CLS]", Sep: "[SEP]", PadID: t.vocab["[PAD]"]}
}

// maryInput is the canonical test triple: the answer span crosses a
// punctuation-bearing document token to exercise the sub-word alignment.
func maryInput() Input {
	return Input{
		ID:           "mary-1",
		DocText:      "Mary had a little lamb. Its fleece was white as snow.",
		QuestionText: "What did Mary have?",
		AnswerStarts: []int{11},
		AnswerTexts:  []string{"little lamb"},
	}
}
