package qa

import (
	"sync"

	"github.com/gomlx/go-qa/tokenizers/api"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// FeatureSet is the output of BuildFeatures: the surviving examples and
// their features, in input order.
type FeatureSet struct {
	Examples []Example
	Features []Feature
}

// ExampleRecords returns the persisted form of all examples.
func (s *FeatureSet) ExampleRecords() []ExampleRecord {
	records := make([]ExampleRecord, len(s.Examples))
	for i := range s.Examples {
		records[i] = s.Examples[i].Record()
	}
	return records
}

// FeatureRecords returns the persisted form of all features.
func (s *FeatureSet) FeatureRecords() []FeatureRecord {
	records := make([]FeatureRecord, len(s.Features))
	for i := range s.Features {
		records[i] = s.Features[i].Record()
	}
	return records
}

// BuildFeatures runs the feature-extraction pipeline over a batch of raw
// inputs: example building, span tokenization and feature assembly.
//
// Dropped examples (answer not recoverable from the whitespace tokens) are
// skipped silently; requesting training mode without answer fields is an
// error raised before any processing begins.
//
// With opts.Workers > 1 examples are processed concurrently; unique ids are
// assigned serially in input order afterwards, so the output is identical to
// a sequential run.
func BuildFeatures(inputs []Input, tok api.Tokenizer, opts FeatureOptions) (*FeatureSet, error) {
	opts.fillDefaults(tok)

	if opts.IsTraining {
		for i := range inputs {
			if !inputs[i].IsImpossible && len(inputs[i].AnswerStarts) == 0 {
				return nil, errors.Errorf(
					"example %s: answer start and answer text must be provided for training data",
					inputs[i].ID)
			}
		}
	}

	type unit struct {
		example  *Example // nil when dropped
		features []Feature
		err      error
	}
	units := make([]unit, len(inputs))

	process := func(i int) {
		example, err := NewExample(inputs[i], opts.IsTraining)
		if err != nil {
			units[i].err = err
			return
		}
		if example == nil {
			return
		}
		// Ids are assigned after the parallel phase; extract relative to 0.
		features, _, err := ExtractFeatures(example, tok, 0, opts)
		if err != nil {
			units[i].err = err
			return
		}
		units[i] = unit{example: example, features: features}
	}

	if opts.Workers > 1 {
		var wg sync.WaitGroup
		indexes := make(chan int)
		for w := 0; w < opts.Workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range indexes {
					process(i)
				}
			}()
		}
		for i := range inputs {
			indexes <- i
		}
		close(indexes)
		wg.Wait()
	} else {
		for i := range inputs {
			process(i)
		}
	}

	step := int64(2)
	if opts.IsTraining {
		step = 1
	}

	set := &FeatureSet{}
	uniqueID := opts.UniqueIDBase
	dropped := 0
	for i := range units {
		if units[i].err != nil {
			return nil, units[i].err
		}
		if units[i].example == nil {
			dropped++
			continue
		}
		set.Examples = append(set.Examples, *units[i].example)
		for j := range units[i].features {
			uniqueID += step
			units[i].features[j].UniqueID = uniqueID
		}
		set.Features = append(set.Features, units[i].features...)
	}
	if dropped > 0 {
		klog.Infof("dropped %d of %d examples", dropped, len(inputs))
	}
	return set, nil
}
