package qa

import (
	"bytes"
	"encoding/json"
	"os"
	"sort"

	"github.com/gomlx/go-qa/tokenizers/api"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// RankedAnswer is one entry of an example's n-best list.
type RankedAnswer struct {
	Text        string  `json:"text"`
	Probability float64 `json:"probability"`
	StartScore  float64 `json:"start_logit"`
	EndScore    float64 `json:"end_logit"`
}

// PredictOptions configures answer aggregation. The zero value selects the
// standard defaults with null answers disabled.
type PredictOptions struct {
	NBestSize       int // default DefaultNBestSize
	MaxAnswerLength int // default DefaultMaxAnswerLength

	// AllowNullAnswer enables the empty-answer outcome for datasets with
	// unanswerable questions.
	AllowNullAnswer bool

	// NullScoreDiffThreshold: predict the empty answer iff
	// null_score - best_non_null_score > threshold.
	NullScoreDiffThreshold float64

	// LowerCase must match the case folding of the sub-word tokenizer used
	// during feature extraction; answer reconstruction re-tokenizes raw
	// text under the same folding.
	LowerCase bool
}

func (o *PredictOptions) fillDefaults() {
	if o.NBestSize == 0 {
		o.NBestSize = DefaultNBestSize
	}
	if o.MaxAnswerLength == 0 {
		o.MaxAnswerLength = DefaultMaxAnswerLength
	}
}

// Predictions holds the aggregated answers for a batch of examples, keyed by
// example id in processing order.
type Predictions struct {
	order []string

	// Answers maps example id to the final predicted answer text ("" when
	// the null answer wins).
	Answers map[string]string

	// Probs maps example id to the softmax probability of the final answer
	// within its n-best list.
	Probs map[string]float64

	// NBest maps example id to its ranked, text-deduplicated candidates.
	NBest map[string][]RankedAnswer

	// ScoreDiffs maps example id to null_score - best_non_null_score; only
	// populated when null answers are enabled. These can be swept offline
	// to pick a better threshold.
	ScoreDiffs map[string]float64
}

// IDs returns the example ids in processing order.
func (p *Predictions) IDs() []string { return p.order }

// Predict aggregates per-feature raw scores into ranked answers per
// example.
//
// results, examples and features must cover the same batch: every feature
// joins exactly one result by unique id and belongs to exactly one example
// by example id. The tokenizer must be the one used during feature
// extraction (its detokenization rebuilds candidate texts).
func Predict(results []Result, examples []ExampleRecord, features []FeatureRecord,
	tok api.Tokenizer, opts PredictOptions) (*Predictions, error) {
	opts.fillDefaults()

	// Each example maps to multiple features because long documents are
	// split into overlapping spans.
	featuresByExample := make(map[string][]FeatureRecord, len(examples))
	for _, f := range features {
		featuresByExample[f.ExampleID] = append(featuresByExample[f.ExampleID], f)
	}
	resultByID := make(map[int64]Result, len(results))
	for _, r := range results {
		resultByID[r.ResultID()] = r
	}

	preds := &Predictions{
		Answers: make(map[string]string, len(examples)),
		Probs:   make(map[string]float64, len(examples)),
		NBest:   make(map[string][]RankedAnswer, len(examples)),
	}
	if opts.AllowNullAnswer {
		preds.ScoreDiffs = make(map[string]float64, len(examples))
	}

	for i := range examples {
		if err := aggregateExample(preds, &examples[i], featuresByExample[examples[i].ID], resultByID, tok, opts); err != nil {
			return nil, err
		}
	}
	return preds, nil
}

// aggregateExample ranks and deduplicates the candidate spans of all
// features belonging to one example and decides its final answer.
func aggregateExample(preds *Predictions, example *ExampleRecord, features []FeatureRecord,
	resultByID map[int64]Result, tok api.Tokenizer, opts PredictOptions) error {

	var prelim []prelimPrediction

	// Track the feature with the minimum null score across all spans.
	scoreNull := 1000000.0
	minNullFeatureIndex := 0
	nullStartScore, nullEndScore := 0.0, 0.0

	for featureIndex, f := range features {
		result, ok := resultByID[f.UniqueID]
		if !ok {
			return errors.Errorf("example %s: no result for feature unique id %d", example.ID, f.UniqueID)
		}
		if opts.AllowNullAnswer {
			featureNullScore, startScore, endScore := result.nullScore()
			if featureNullScore < scoreNull {
				scoreNull = featureNullScore
				minNullFeatureIndex = featureIndex
				nullStartScore = startScore
				nullEndScore = endScore
			}
		}
		for _, p := range result.candidates(&f, opts.NBestSize, opts.MaxAnswerLength) {
			p.featureIndex = featureIndex
			prelim = append(prelim, p)
		}
	}
	if opts.AllowNullAnswer {
		prelim = append(prelim, prelimPrediction{
			featureIndex: minNullFeatureIndex,
			startScore:   nullStartScore,
			endScore:     nullEndScore,
			isNull:       true,
		})
	}

	// Stable sort: equal combined scores keep first-encountered order.
	sort.SliceStable(prelim, func(a, b int) bool {
		return prelim[a].startScore+prelim[a].endScore > prelim[b].startScore+prelim[b].endScore
	})

	type nbestEntry struct {
		text       string
		startScore float64
		endScore   float64
	}
	var nbest []nbestEntry
	seen := make(map[string]bool)
	for _, pred := range prelim {
		if len(nbest) >= opts.NBestSize {
			break
		}
		finalText := ""
		if !pred.isNull {
			f := &features[pred.featureIndex]
			origStart, okStart := f.TokenToOrigMap[pred.startIndex]
			origEnd, okEnd := f.TokenToOrigMap[pred.endIndex]
			if !okStart || !okEnd {
				continue
			}
			tokText := tok.ConvertTokensToString(f.Tokens[pred.startIndex : pred.endIndex+1])
			origText := joinTokens(example.DocTokens[origStart : origEnd+1])
			finalText = FinalText(tokText, origText, opts.LowerCase)
		}
		if seen[finalText] {
			continue
		}
		seen[finalText] = true
		nbest = append(nbest, nbestEntry{text: finalText, startScore: pred.startScore, endScore: pred.endScore})
	}

	if opts.AllowNullAnswer {
		if !seen[""] {
			nbest = append(nbest, nbestEntry{text: "", startScore: nullStartScore, endScore: nullEndScore})
		}
		// In the rare case only the null entry survived, insert a nonce so
		// a non-null entry always exists.
		if len(nbest) == 1 {
			nbest = append([]nbestEntry{{text: "empty"}}, nbest...)
		}
	}
	// Guard against zero valid candidates: every example id must map to an
	// output entry.
	if len(nbest) == 0 {
		nbest = append(nbest, nbestEntry{text: "empty"})
	}

	totalScores := make([]float64, len(nbest))
	bestNonNullIndex := -1
	for i, entry := range nbest {
		totalScores[i] = entry.startScore + entry.endScore
		if bestNonNullIndex < 0 && entry.text != "" {
			bestNonNullIndex = i
		}
	}
	probs := Softmax(totalScores)

	nbestJSON := make([]RankedAnswer, len(nbest))
	nullIndex := -1
	for i, entry := range nbest {
		nbestJSON[i] = RankedAnswer{
			Text:        entry.text,
			Probability: probs[i],
			StartScore:  entry.startScore,
			EndScore:    entry.endScore,
		}
		// First occurrence of the empty text is the null slot.
		if entry.text == "" && nullIndex < 0 {
			nullIndex = i
		}
	}

	preds.order = append(preds.order, example.ID)
	preds.NBest[example.ID] = nbestJSON

	if !opts.AllowNullAnswer {
		preds.Answers[example.ID] = nbestJSON[0].Text
		preds.Probs[example.ID] = nbestJSON[0].Probability
		return nil
	}

	best := nbest[bestNonNullIndex]
	scoreDiff := scoreNull - best.startScore - best.endScore
	preds.ScoreDiffs[example.ID] = scoreDiff
	if scoreDiff > opts.NullScoreDiffThreshold {
		preds.Answers[example.ID] = ""
		preds.Probs[example.ID] = probs[nullIndex]
	} else {
		preds.Answers[example.ID] = best.text
		preds.Probs[example.ID] = probs[bestNonNullIndex]
	}
	return nil
}

func joinTokens(tokens []string) string {
	var b bytes.Buffer
	for i, token := range tokens {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(token)
	}
	return b.String()
}

// WriteFiles writes the predictions, n-best lists and (when null answers are
// enabled) null score differences as JSON files keyed by example id in
// processing order. Empty paths are skipped.
func (p *Predictions) WriteFiles(predictionsPath, nbestPath, nullOddsPath string) error {
	if predictionsPath != "" {
		klog.Infof("Writing predictions to: %s", predictionsPath)
		if err := writeOrderedJSON(predictionsPath, p.order, func(id string) any { return p.Answers[id] }); err != nil {
			return err
		}
	}
	if nbestPath != "" {
		klog.Infof("Writing nbest to: %s", nbestPath)
		if err := writeOrderedJSON(nbestPath, p.order, func(id string) any { return p.NBest[id] }); err != nil {
			return err
		}
	}
	if nullOddsPath != "" && p.ScoreDiffs != nil {
		klog.Infof("Writing null odds to: %s", nullOddsPath)
		if err := writeOrderedJSON(nullOddsPath, p.order, func(id string) any { return p.ScoreDiffs[id] }); err != nil {
			return err
		}
	}
	return nil
}

// writeOrderedJSON marshals {key: value} preserving key order, which
// encoding/json's map marshaling would not.
func writeOrderedJSON(path string, keys []string, value func(string) any) error {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, key := range keys {
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return errors.Wrapf(err, "failed to marshal key %q", key)
		}
		valueJSON, err := json.MarshalIndent(value(key), "    ", "    ")
		if err != nil {
			return errors.Wrapf(err, "failed to marshal value for key %q", key)
		}
		buf.WriteString("    ")
		buf.Write(keyJSON)
		buf.WriteString(": ")
		buf.Write(valueJSON)
		if i < len(keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "failed to write %q", path)
	}
	return nil
}
