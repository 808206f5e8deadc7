package cache

import (
	"os"

	"github.com/gomlx/go-qa/qa"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// FeatureRow is the columnar form of one feature's model-facing arrays, one
// parquet row per feature. Rows keep the feature emission order, so
// downstream batch builders can join raw scores by unique_id.
type FeatureRow struct {
	UniqueID      int64     `parquet:"unique_id"`
	ExampleID     string    `parquet:"qa_id"`
	InputIDs      []int64   `parquet:"input_ids,list"`
	InputMask     []int64   `parquet:"input_mask,list"`
	SegmentIDs    []int64   `parquet:"segment_ids,list"`
	ClsIndex      int64     `parquet:"cls_index"`
	PositionMask  []float32 `parquet:"p_mask,list"`
	StartPosition int64     `parquet:"start_position"`
	EndPosition   int64     `parquet:"end_position"`
}

// NewFeatureRow converts a feature to its columnar form.
func NewFeatureRow(f *qa.Feature) FeatureRow {
	row := FeatureRow{
		UniqueID:      f.UniqueID,
		ExampleID:     f.ExampleID,
		InputIDs:      make([]int64, len(f.InputIDs)),
		InputMask:     make([]int64, len(f.InputMask)),
		SegmentIDs:    make([]int64, len(f.SegmentIDs)),
		ClsIndex:      int64(f.ClsIndex),
		PositionMask:  make([]float32, len(f.PositionMask)),
		StartPosition: int64(f.StartPosition),
		EndPosition:   int64(f.EndPosition),
	}
	for i, v := range f.InputIDs {
		row.InputIDs[i] = int64(v)
	}
	for i, v := range f.InputMask {
		row.InputMask[i] = int64(v)
	}
	for i, v := range f.SegmentIDs {
		row.SegmentIDs[i] = int64(v)
	}
	for i, v := range f.PositionMask {
		row.PositionMask[i] = float32(v)
	}
	return row
}

// WriteFeatureColumns writes the model-facing columns of a feature batch as
// a parquet file.
func WriteFeatureColumns(path string, features []qa.Feature) error {
	rows := make([]FeatureRow, len(features))
	for i := range features {
		rows[i] = NewFeatureRow(&features[i])
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", path)
	}
	writer := parquet.NewGenericWriter[FeatureRow](f)
	if _, err := writer.Write(rows); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to write feature rows to %q", path)
	}
	if err := writer.Close(); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to finalize %q", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %q", path)
	}
	klog.Infof("wrote %d feature rows to %s", len(rows), path)
	return nil
}

// ReadFeatureColumns reads a parquet file written by WriteFeatureColumns.
func ReadFeatureColumns(path string) ([]FeatureRow, error) {
	rows, err := parquet.ReadFile[FeatureRow](path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read feature rows from %q", path)
	}
	return rows, nil
}
