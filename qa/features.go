package qa

import (
	"github.com/gomlx/go-qa/tokenizers/api"
	"github.com/pkg/errors"
)

// Feature is one fixed-length model input, built from one (Example, DocSpan)
// pair. Read-only after creation.
type Feature struct {
	// UniqueID identifies this feature globally; it joins the model's raw
	// scores back to the feature during answer aggregation.
	UniqueID int64

	// ExampleID back-references the Example this feature was cut from.
	ExampleID string

	// Tokens is the assembled sequence: CLS, question sub-words, SEP,
	// paragraph sub-words, SEP (CLS last when ClsAtEnd), without padding.
	Tokens []string

	// TokenToOrigMap maps in-feature positions of the paragraph region back
	// to whitespace-token indices of the original document.
	TokenToOrigMap map[int]int

	// TokenIsMaxContext flags the paragraph positions whose predictions
	// should be trusted from this feature (see IsMaxContext).
	TokenIsMaxContext map[int]bool

	// Parallel fixed-length arrays, each exactly MaxSeqLen long.
	InputIDs     []int
	InputMask    []int
	SegmentIDs   []int
	PositionMask []int // 1 for positions that cannot start/end an answer

	ClsIndex int

	// StartPosition/EndPosition are feature-local answer token indices,
	// only meaningful in training mode; ClsIndex when this span holds no
	// answer.
	StartPosition int
	EndPosition   int

	ParagraphLen int
}

// FeatureRecord is the persisted form of a Feature (one JSON object per line
// in the features cache file): what answer aggregation needs, without the
// model-facing arrays.
type FeatureRecord struct {
	ExampleID         string       `json:"qa_id"`
	UniqueID          int64        `json:"unique_id"`
	Tokens            []string     `json:"tokens"`
	TokenToOrigMap    map[int]int  `json:"token_to_orig_map"`
	TokenIsMaxContext map[int]bool `json:"token_is_max_context"`
	ParagraphLen      int          `json:"paragraph_len"`
}

// Record returns the persisted form of the feature.
func (f *Feature) Record() FeatureRecord {
	return FeatureRecord{
		ExampleID:         f.ExampleID,
		UniqueID:          f.UniqueID,
		Tokens:            f.Tokens,
		TokenToOrigMap:    f.TokenToOrigMap,
		TokenIsMaxContext: f.TokenIsMaxContext,
		ParagraphLen:      f.ParagraphLen,
	}
}

// FeatureOptions configures feature extraction. The zero value selects the
// standard defaults; control tokens default to the tokenizer's own when it
// implements api.TokenizerWithSpecials, or to the BERT conventions.
type FeatureOptions struct {
	IsTraining bool

	MaxSeqLen         int // default DefaultMaxSeqLen
	MaxQuestionLength int // default DefaultMaxQuestionLength
	DocStride         int // default DefaultDocStride

	ClsToken     string // default from tokenizer, else "[CLS]"
	SepToken     string // default from tokenizer, else "[SEP]"
	PadID        int    // default from tokenizer, else 0
	PadSegmentID int    // segment id used for padding positions
	ClsAtEnd     bool   // place CLS after the final SEP instead of first

	// UniqueIDBase seeds unique-id assignment in BuildFeatures; default
	// DefaultUniqueIDBase. Parallel callers partitioning work themselves
	// must supply disjoint bases.
	UniqueIDBase int64

	// Workers bounds the number of examples processed concurrently by
	// BuildFeatures; <= 1 means sequential.
	Workers int
}

func (o *FeatureOptions) fillDefaults(tok api.Tokenizer) {
	if o.MaxSeqLen == 0 {
		o.MaxSeqLen = DefaultMaxSeqLen
	}
	if o.MaxQuestionLength == 0 {
		o.MaxQuestionLength = DefaultMaxQuestionLength
	}
	if o.DocStride == 0 {
		o.DocStride = DefaultDocStride
	}
	var specials api.SpecialTokens
	if ts, ok := tok.(api.TokenizerWithSpecials); ok {
		specials = ts.SpecialTokens()
	} else {
		specials = api.SpecialTokens{Cls: "[CLS]", Sep: "[SEP]"}
	}
	if o.ClsToken == "" {
		o.ClsToken = specials.Cls
	}
	if o.SepToken == "" {
		o.SepToken = specials.Sep
	}
	if o.PadID == 0 {
		o.PadID = specials.PadID
	}
	if o.UniqueIDBase == 0 {
		o.UniqueIDBase = DefaultUniqueIDBase
	}
}

// Segment ids for the two halves of the sequence.
const (
	questionSegmentID  = 0
	paragraphSegmentID = 1
	clsSegmentID       = 0
)

// ExtractFeatures builds one Feature per document span of the example.
//
// uniqueID is the running counter: each feature advances it by 1 in training
// mode or by 2 in inference mode before taking its id (the reserved parity
// lets downstream systems that emit two score sets per id coexist without
// collision). The advanced counter is returned for the next example.
func ExtractFeatures(ex *Example, tok api.Tokenizer, uniqueID int64, opts FeatureOptions) ([]Feature, int64, error) {
	opts.fillDefaults(tok)

	queryTokens := tok.Tokenize(ex.QuestionText)
	if len(queryTokens) > opts.MaxQuestionLength {
		queryTokens = queryTokens[:opts.MaxQuestionLength]
	}

	// CLS and the two SEPs take three positions.
	maxTokensForDoc := opts.MaxSeqLen - len(queryTokens) - 3
	if maxTokensForDoc <= 0 {
		return nil, uniqueID, errors.Errorf(
			"example %s: max sequence length %d leaves no room for the document after %d question tokens",
			ex.ID, opts.MaxSeqLen, len(queryTokens))
	}

	doc := subwordize(ex.DocTokens, tok)

	tokStartPosition, tokEndPosition := -1, -1
	if opts.IsTraining && !ex.IsImpossible {
		tokStartPosition, tokEndPosition = doc.answerSpan(ex, tok)
	}

	docSpans := SplitDocSpans(len(doc.tokens), maxTokensForDoc, opts.DocStride)

	step := int64(2)
	if opts.IsTraining {
		step = 1
	}

	features := make([]Feature, 0, len(docSpans))
	for spanIndex, span := range docSpans {
		uniqueID += step
		f := assembleFeature(ex, doc, docSpans, spanIndex, span, queryTokens, tok, opts)
		f.UniqueID = uniqueID

		if opts.IsTraining {
			assignTrainingPositions(&f, ex, span, tokStartPosition, tokEndPosition, len(queryTokens))
		}
		features = append(features, f)
	}
	return features, uniqueID, nil
}

// assembleFeature builds the token sequence and the parallel fixed-length
// arrays for one document span.
func assembleFeature(ex *Example, doc subwordDoc, docSpans []DocSpan, spanIndex int, span DocSpan,
	queryTokens []string, tok api.Tokenizer, opts FeatureOptions) Feature {

	tokens := make([]string, 0, opts.MaxSeqLen)
	segmentIDs := make([]int, 0, opts.MaxSeqLen)
	positionMask := make([]int, 0, opts.MaxSeqLen)
	tokenToOrigMap := make(map[int]int, span.Length)
	tokenIsMaxContext := make(map[int]bool, span.Length)

	clsIndex := 0
	if !opts.ClsAtEnd {
		tokens = append(tokens, opts.ClsToken)
		segmentIDs = append(segmentIDs, clsSegmentID)
		positionMask = append(positionMask, 0)
	}

	for range queryTokens {
		segmentIDs = append(segmentIDs, questionSegmentID)
		positionMask = append(positionMask, 1)
	}
	tokens = append(tokens, queryTokens...)

	tokens = append(tokens, opts.SepToken)
	segmentIDs = append(segmentIDs, questionSegmentID)
	positionMask = append(positionMask, 1)

	for i := 0; i < span.Length; i++ {
		splitTokenIndex := span.Start + i
		tokenToOrigMap[len(tokens)] = doc.tokToOrig[splitTokenIndex]
		tokenIsMaxContext[len(tokens)] = IsMaxContext(docSpans, spanIndex, splitTokenIndex)
		tokens = append(tokens, doc.tokens[splitTokenIndex])
		segmentIDs = append(segmentIDs, paragraphSegmentID)
		positionMask = append(positionMask, 0)
	}

	tokens = append(tokens, opts.SepToken)
	segmentIDs = append(segmentIDs, paragraphSegmentID)
	positionMask = append(positionMask, 1)

	if opts.ClsAtEnd {
		tokens = append(tokens, opts.ClsToken)
		segmentIDs = append(segmentIDs, clsSegmentID)
		positionMask = append(positionMask, 0)
		clsIndex = len(tokens) - 1
	}

	inputIDs := tok.ConvertTokensToIDs(tokens)

	// Only real tokens are attended to.
	inputMask := make([]int, len(inputIDs), opts.MaxSeqLen)
	for i := range inputMask {
		inputMask[i] = 1
	}

	for len(inputIDs) < opts.MaxSeqLen {
		inputIDs = append(inputIDs, opts.PadID)
		inputMask = append(inputMask, 0)
		segmentIDs = append(segmentIDs, opts.PadSegmentID)
		positionMask = append(positionMask, 1)
	}

	return Feature{
		ExampleID:         ex.ID,
		Tokens:            tokens,
		TokenToOrigMap:    tokenToOrigMap,
		TokenIsMaxContext: tokenIsMaxContext,
		InputIDs:          inputIDs,
		InputMask:         inputMask,
		SegmentIDs:        segmentIDs,
		PositionMask:      positionMask,
		ClsIndex:          clsIndex,
		ParagraphLen:      span.Length,
	}
}

// assignTrainingPositions sets the span-local answer positions. A span that
// doesn't fully contain the answer is impossible for this feature even if
// the example overall is answerable: the model sees "no answer in this
// window".
func assignTrainingPositions(f *Feature, ex *Example, span DocSpan, tokStartPosition, tokEndPosition, numQueryTokens int) {
	spanIsImpossible := ex.IsImpossible
	if !spanIsImpossible {
		docStart := span.Start
		docEnd := span.Start + span.Length - 1
		if tokStartPosition < docStart || tokEndPosition > docEnd {
			spanIsImpossible = true
		} else {
			// Shift by CLS + question + SEP to get feature-local indices.
			docOffset := numQueryTokens + 2
			f.StartPosition = tokStartPosition - docStart + docOffset
			f.EndPosition = tokEndPosition - docStart + docOffset
		}
	}
	if spanIsImpossible {
		f.StartPosition = f.ClsIndex
		f.EndPosition = f.ClsIndex
	}
}
