package qa

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Tensors is the model-facing view of a feature batch, in the fixed column
// order span-prediction models consume. Row order equals feature emission
// order, which keeps the unique-id join valid downstream.
type Tensors struct {
	InputIDs   *tensors.Tensor // int64 [n, max_seq_len]
	InputMask  *tensors.Tensor // int64 [n, max_seq_len]
	SegmentIDs *tensors.Tensor // int64 [n, max_seq_len]
	ClsIndex   *tensors.Tensor // int64 [n]

	// PositionMask masks positions that cannot start or end an answer
	// (question tokens, separators, padding).
	PositionMask *tensors.Tensor // float32 [n, max_seq_len]

	// StartPositions/EndPositions are only set in training mode.
	StartPositions *tensors.Tensor // int64 [n]
	EndPositions   *tensors.Tensor // int64 [n]

	// UniqueIDs is only set in inference mode, to join raw scores back to
	// features.
	UniqueIDs *tensors.Tensor // int64 [n]
}

// NewTensors assembles the model-facing tensors from a feature batch.
func NewTensors(features []Feature, isTraining bool) (*Tensors, error) {
	if len(features) == 0 {
		return nil, errors.New("no features to build tensors from")
	}
	maxSeqLen := len(features[0].InputIDs)
	n := len(features)

	inputIDs := make([]int64, 0, n*maxSeqLen)
	inputMask := make([]int64, 0, n*maxSeqLen)
	segmentIDs := make([]int64, 0, n*maxSeqLen)
	positionMask := make([]float32, 0, n*maxSeqLen)
	clsIndex := make([]int64, 0, n)
	startPositions := make([]int64, 0, n)
	endPositions := make([]int64, 0, n)
	uniqueIDs := make([]int64, 0, n)

	for i := range features {
		f := &features[i]
		if len(f.InputIDs) != maxSeqLen || len(f.InputMask) != maxSeqLen ||
			len(f.SegmentIDs) != maxSeqLen || len(f.PositionMask) != maxSeqLen {
			return nil, errors.Errorf(
				"feature %d (unique id %d): parallel arrays are not all %d long",
				i, f.UniqueID, maxSeqLen)
		}
		inputIDs = append(inputIDs, toInt64(f.InputIDs)...)
		inputMask = append(inputMask, toInt64(f.InputMask)...)
		segmentIDs = append(segmentIDs, toInt64(f.SegmentIDs)...)
		for _, m := range f.PositionMask {
			positionMask = append(positionMask, float32(m))
		}
		clsIndex = append(clsIndex, int64(f.ClsIndex))
		startPositions = append(startPositions, int64(f.StartPosition))
		endPositions = append(endPositions, int64(f.EndPosition))
		uniqueIDs = append(uniqueIDs, f.UniqueID)
	}

	t := &Tensors{
		InputIDs:     tensors.FromFlatDataAndDimensions(inputIDs, n, maxSeqLen),
		InputMask:    tensors.FromFlatDataAndDimensions(inputMask, n, maxSeqLen),
		SegmentIDs:   tensors.FromFlatDataAndDimensions(segmentIDs, n, maxSeqLen),
		ClsIndex:     tensors.FromFlatDataAndDimensions(clsIndex, n),
		PositionMask: tensors.FromFlatDataAndDimensions(positionMask, n, maxSeqLen),
	}
	if isTraining {
		t.StartPositions = tensors.FromFlatDataAndDimensions(startPositions, n)
		t.EndPositions = tensors.FromFlatDataAndDimensions(endPositions, n)
	} else {
		t.UniqueIDs = tensors.FromFlatDataAndDimensions(uniqueIDs, n)
	}
	return t, nil
}

func toInt64(values []int) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = int64(v)
	}
	return out
}
