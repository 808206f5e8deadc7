// Package wordpiece implements an api.Tokenizer using WordPiece
// tokenization (BERT-style), built from a plain vocabulary.
//
// Words are first split by the basic whitespace+punctuation tokenizer, then
// greedily matched against the vocabulary longest-prefix-first; continuation
// pieces carry the "##" prefix. Words that cannot be pieced together map to
// the unknown token.
package wordpiece

import (
	"bufio"
	"os"
	"strings"

	"github.com/gomlx/go-qa/tokenizers/api"
	"github.com/gomlx/go-qa/tokenizers/basic"
	"github.com/pkg/errors"
)

const (
	defaultUnkToken             = "[UNK]"
	defaultClsToken             = "[CLS]"
	defaultSepToken             = "[SEP]"
	defaultPadToken             = "[PAD]"
	defaultContinuationPrefix   = "##"
	defaultMaxInputCharsPerWord = 100
)

// Options configures a wordpiece Tokenizer. The zero value selects the
// standard BERT conventions.
type Options struct {
	LowerCase            bool   // lower-case and strip accents before piecing
	UnkToken             string // default "[UNK]"
	ClsToken             string // default "[CLS]"
	SepToken             string // default "[SEP]"
	PadToken             string // default "[PAD]"
	ContinuationPrefix   string // default "##"
	MaxInputCharsPerWord int    // words longer than this become UnkToken; default 100
}

func (o *Options) fillDefaults() {
	if o.UnkToken == "" {
		o.UnkToken = defaultUnkToken
	}
	if o.ClsToken == "" {
		o.ClsToken = defaultClsToken
	}
	if o.SepToken == "" {
		o.SepToken = defaultSepToken
	}
	if o.PadToken == "" {
		o.PadToken = defaultPadToken
	}
	if o.ContinuationPrefix == "" {
		o.ContinuationPrefix = defaultContinuationPrefix
	}
	if o.MaxInputCharsPerWord == 0 {
		o.MaxInputCharsPerWord = defaultMaxInputCharsPerWord
	}
}

// Tokenizer implements api.Tokenizer with WordPiece pieces.
type Tokenizer struct {
	opts      Options
	vocab     map[string]int
	idToToken map[int]string
	pre       *basic.Tokenizer
}

// Compile time assert that wordpiece.Tokenizer implements the tokenizer capability.
var (
	_ api.Tokenizer             = &Tokenizer{}
	_ api.TokenizerWithSpecials = &Tokenizer{}
)

// New creates a Tokenizer from a token -> id vocabulary.
func New(vocab map[string]int, opts Options) (*Tokenizer, error) {
	opts.fillDefaults()
	if len(vocab) == 0 {
		return nil, errors.New("wordpiece: empty vocabulary")
	}
	if _, ok := vocab[opts.UnkToken]; !ok {
		return nil, errors.Errorf("wordpiece: unknown token %q not in vocabulary", opts.UnkToken)
	}
	idToToken := make(map[int]string, len(vocab))
	for token, id := range vocab {
		idToToken[id] = token
	}
	return &Tokenizer{
		opts:      opts,
		vocab:     vocab,
		idToToken: idToToken,
		pre:       basic.New(opts.LowerCase),
	}, nil
}

// NewFromFile creates a Tokenizer from a vocab.txt file: one token per line,
// the line number being the token id.
func NewFromFile(path string, opts Options) (*Tokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "wordpiece: failed to open vocabulary %q", path)
	}
	defer f.Close()

	vocab := make(map[string]int)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r\n")
		if token == "" {
			continue
		}
		vocab[token] = len(vocab)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "wordpiece: failed to read vocabulary %q", path)
	}
	return New(vocab, opts)
}

// Tokenize splits text into WordPiece tokens.
func (t *Tokenizer) Tokenize(text string) []string {
	var pieces []string
	for _, word := range t.pre.Tokenize(text) {
		pieces = append(pieces, t.tokenizeWord(word)...)
	}
	return pieces
}

// tokenizeWord applies greedy longest-prefix matching to a single word.
func (t *Tokenizer) tokenizeWord(word string) []string {
	if word == "" {
		return nil
	}
	if len([]rune(word)) > t.opts.MaxInputCharsPerWord {
		return []string{t.opts.UnkToken}
	}

	runes := []rune(word)
	var pieces []string
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := ""
		for start < end {
			piece := string(runes[start:end])
			if start > 0 {
				piece = t.opts.ContinuationPrefix + piece
			}
			if _, ok := t.vocab[piece]; ok {
				found = piece
				break
			}
			end--
		}
		if found == "" {
			return []string{t.opts.UnkToken}
		}
		pieces = append(pieces, found)
		start = end
	}
	return pieces
}

// ConvertTokensToIDs maps tokens to vocabulary ids, falling back to the
// unknown token's id.
func (t *Tokenizer) ConvertTokensToIDs(tokens []string) []int {
	unkID := t.vocab[t.opts.UnkToken]
	ids := make([]int, len(tokens))
	for i, token := range tokens {
		if id, ok := t.vocab[token]; ok {
			ids[i] = id
		} else {
			ids[i] = unkID
		}
	}
	return ids
}

// ConvertTokensToString joins WordPiece tokens back into text, gluing
// continuation pieces to their predecessor and collapsing whitespace.
func (t *Tokenizer) ConvertTokensToString(tokens []string) string {
	joined := strings.Join(tokens, " ")
	joined = strings.ReplaceAll(joined, " "+t.opts.ContinuationPrefix, "")
	joined = strings.ReplaceAll(joined, t.opts.ContinuationPrefix, "")
	return strings.Join(strings.Fields(joined), " ")
}

// SpecialTokens returns the control tokens used for sequence assembly.
func (t *Tokenizer) SpecialTokens() api.SpecialTokens {
	return api.SpecialTokens{
		Cls:   t.opts.ClsToken,
		Sep:   t.opts.SepToken,
		PadID: t.vocab[t.opts.PadToken],
	}
}

// LowerCase reports whether this tokenizer lower-cases its input. Answer
// reconstruction must re-tokenize raw text under the same case folding.
func (t *Tokenizer) LowerCase() bool { return t.opts.LowerCase }

// VocabSize returns the number of entries in the vocabulary.
func (t *Tokenizer) VocabSize() int { return len(t.vocab) }

// IDToToken converts a token id back to its string.
func (t *Tokenizer) IDToToken(id int) (string, bool) {
	token, ok := t.idToToken[id]
	return token, ok
}
