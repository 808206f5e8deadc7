// Package sentencepiece adapts the SentencePiece tokenizer by Google to the
// QA pipeline's tokenizer capability.
package sentencepiece

import (
	"strings"
	"sync"

	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/gomlx/go-qa/tokenizers/api"
	"github.com/pkg/errors"
)

// metaspace is the U+2581 marker SentencePiece uses in place of spaces.
const metaspace = "▁"

// Options configures the control tokens for sequence assembly.
// SentencePiece models don't name a classification/separator piece in their
// proto, so callers supply the ones their model was trained with (XLNet-style
// models use "<cls>" and "<sep>").
type Options struct {
	ClsToken string
	ClsID    int
	SepToken string
	SepID    int
}

// Tokenizer implements api.Tokenizer on top of a SentencePiece processor.
type Tokenizer struct {
	proc *esentencepiece.Processor
	info *esentencepiece.ModelInfo
	opts Options

	// pieceIDs caches piece -> id mappings observed while tokenizing, so
	// ConvertTokensToIDs can resolve pieces previously produced by Tokenize.
	// The processor only exposes text-level encoding, not piece lookup.
	mu       sync.RWMutex
	pieceIDs map[string]int
}

// Compile time assert that sentencepiece.Tokenizer implements the tokenizer capability.
var (
	_ api.Tokenizer             = &Tokenizer{}
	_ api.TokenizerWithSpecials = &Tokenizer{}
)

// NewFromPath creates a Tokenizer from a SentencePiece model file
// (the "tokenizer.model" of HuggingFace repositories).
func NewFromPath(path string, opts Options) (*Tokenizer, error) {
	proc, err := esentencepiece.NewProcessorFromPath(path)
	if err != nil {
		return nil, errors.Wrapf(err, "sentencepiece: can't create processor from %q", path)
	}
	t := &Tokenizer{
		proc:     proc,
		info:     proc.ModelInfo(),
		opts:     opts,
		pieceIDs: make(map[string]int),
	}
	if opts.ClsToken != "" {
		t.pieceIDs[opts.ClsToken] = opts.ClsID
	}
	if opts.SepToken != "" {
		t.pieceIDs[opts.SepToken] = opts.SepID
	}
	return t, nil
}

// Tokenize splits text into SentencePiece pieces.
func (t *Tokenizer) Tokenize(text string) []string {
	tokens := t.proc.Encode(text)
	pieces := make([]string, len(tokens))
	t.mu.Lock()
	for i, tok := range tokens {
		pieces[i] = tok.Text
		t.pieceIDs[tok.Text] = tok.ID
	}
	t.mu.Unlock()
	return pieces
}

// ConvertTokensToIDs maps pieces to their vocabulary ids. Pieces never seen
// by Tokenize (and not registered as control tokens) map to the unknown id.
func (t *Tokenizer) ConvertTokensToIDs(tokens []string) []int {
	ids := make([]int, len(tokens))
	t.mu.RLock()
	for i, token := range tokens {
		if id, ok := t.pieceIDs[token]; ok {
			ids[i] = id
		} else {
			ids[i] = t.info.UnknownID
		}
	}
	t.mu.RUnlock()
	return ids
}

// ConvertTokensToString joins pieces back into text, turning metaspace
// markers into plain spaces and collapsing whitespace.
func (t *Tokenizer) ConvertTokensToString(tokens []string) string {
	joined := strings.Join(tokens, "")
	joined = strings.ReplaceAll(joined, metaspace, " ")
	return strings.Join(strings.Fields(joined), " ")
}

// SpecialTokens returns the control tokens used for sequence assembly.
func (t *Tokenizer) SpecialTokens() api.SpecialTokens {
	return api.SpecialTokens{
		Cls:   t.opts.ClsToken,
		Sep:   t.opts.SepToken,
		PadID: t.info.PadID,
	}
}
