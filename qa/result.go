package qa

// Result is the model's raw output for one feature: a generator of
// candidate answer spans from per-token scores.
//
// Two shapes exist: ExtractiveResult carries full per-position start/end
// logits (BERT-style heads), TopKResult carries the model's own top-k
// start/end selection plus a dedicated no-answer score (XLNet-style heads).
// Both feed the same aggregation: ranking, text dedup and the null-answer
// threshold live in Predict, not here.
type Result interface {
	// ResultID returns the unique id of the feature this result scores.
	ResultID() int64

	// candidates generates the valid (start, end) spans for the feature,
	// already filtered for range, paragraph membership, max-context starts,
	// ordering and maximum answer length.
	candidates(f *FeatureRecord, nBestSize, maxAnswerLength int) []prelimPrediction

	// nullScore returns this feature's no-answer score and its start/end
	// components.
	nullScore() (score, startScore, endScore float64)
}

// prelimPrediction is one candidate answer span, transient within a single
// aggregation pass.
type prelimPrediction struct {
	featureIndex int
	startIndex   int
	endIndex     int
	startScore   float64
	endScore     float64
	isNull       bool
}

// ExtractiveResult is the extractive Result shape: one start and one end
// logit per feature position. Position 0 (CLS) scores the empty answer.
type ExtractiveResult struct {
	UniqueID    int64
	StartLogits []float64
	EndLogits   []float64
}

var _ Result = ExtractiveResult{}

// ResultID implements Result.
func (r ExtractiveResult) ResultID() int64 { return r.UniqueID }

func (r ExtractiveResult) candidates(f *FeatureRecord, nBestSize, maxAnswerLength int) []prelimPrediction {
	startIndexes := TopKIndexes(r.StartLogits, nBestSize)
	endIndexes := TopKIndexes(r.EndLogits, nBestSize)

	var preds []prelimPrediction
	for _, startIndex := range startIndexes {
		for _, endIndex := range endIndexes {
			// The model can score invalid spans, e.g. a start inside the
			// question or an end before the start; throw them all out.
			if startIndex >= len(f.Tokens) || endIndex >= len(f.Tokens) {
				continue
			}
			if _, ok := f.TokenToOrigMap[startIndex]; !ok {
				continue
			}
			if _, ok := f.TokenToOrigMap[endIndex]; !ok {
				continue
			}
			if !f.TokenIsMaxContext[startIndex] {
				continue
			}
			if endIndex < startIndex {
				continue
			}
			if endIndex-startIndex+1 > maxAnswerLength {
				continue
			}
			preds = append(preds, prelimPrediction{
				startIndex: startIndex,
				endIndex:   endIndex,
				startScore: r.StartLogits[startIndex],
				endScore:   r.EndLogits[endIndex],
			})
		}
	}
	return preds
}

func (r ExtractiveResult) nullScore() (float64, float64, float64) {
	if len(r.StartLogits) == 0 || len(r.EndLogits) == 0 {
		return 0, 0, 0
	}
	return r.StartLogits[0] + r.EndLogits[0], r.StartLogits[0], r.EndLogits[0]
}

// TopKResult is the top-k Result shape: the model already selected its
// nBestSize best start positions, and for each of them the best end
// positions (EndTop* laid out start-major: entry i*k+j is the j-th end for
// the i-th start). ClsLogit scores the no-answer outcome.
type TopKResult struct {
	UniqueID         int64
	StartTopLogProbs []float64
	StartTopIndexes  []int
	EndTopLogProbs   []float64
	EndTopIndexes    []int
	ClsLogit         float64
}

var _ Result = TopKResult{}

// ResultID implements Result.
func (r TopKResult) ResultID() int64 { return r.UniqueID }

func (r TopKResult) candidates(f *FeatureRecord, nBestSize, maxAnswerLength int) []prelimPrediction {
	var preds []prelimPrediction
	for i := 0; i < nBestSize && i < len(r.StartTopIndexes); i++ {
		for j := 0; j < nBestSize; j++ {
			jIndex := i*nBestSize + j
			if jIndex >= len(r.EndTopIndexes) {
				break
			}
			startIndex := r.StartTopIndexes[i]
			endIndex := r.EndTopIndexes[jIndex]

			if startIndex >= f.ParagraphLen-1 || endIndex >= f.ParagraphLen-1 {
				continue
			}
			if !f.TokenIsMaxContext[startIndex] {
				continue
			}
			if endIndex < startIndex {
				continue
			}
			if endIndex-startIndex+1 > maxAnswerLength {
				continue
			}
			preds = append(preds, prelimPrediction{
				startIndex: startIndex,
				endIndex:   endIndex,
				startScore: r.StartTopLogProbs[i],
				endScore:   r.EndTopLogProbs[jIndex],
			})
		}
	}
	return preds
}

func (r TopKResult) nullScore() (float64, float64, float64) {
	return r.ClsLogit, r.ClsLogit, 0
}
