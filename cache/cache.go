// Package cache persists the pipeline's intermediate artifacts: examples
// and features as line-delimited JSON (one object per line), and the
// model-facing feature columns as parquet.
//
// Writes go to a uniquely named temporary file and are atomically renamed
// into place under a file lock, so concurrent pipeline runs sharing a cache
// directory never observe partial files.
package cache

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
	"github.com/gofrs/flock"
	"github.com/gomlx/go-qa/qa"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Conventional file names inside a cache directory.
const (
	ExamplesTrainFile = "cached_examples_train.jsonl"
	FeaturesTrainFile = "cached_features_train.jsonl"
	ExamplesTestFile  = "cached_examples_test.jsonl"
	FeaturesTestFile  = "cached_features_test.jsonl"
)

// DefaultDirCreationPerm is used when creating cache directories.
const DefaultDirCreationPerm = os.FileMode(0755)

// WriteExamples writes the examples file for a feature set.
func WriteExamples(path string, examples []qa.ExampleRecord) error {
	return writeLines(path, len(examples), func(i int) any { return examples[i] })
}

// WriteFeatures writes the features file for a feature set.
func WriteFeatures(path string, features []qa.FeatureRecord) error {
	return writeLines(path, len(features), func(i int) any { return features[i] })
}

// ReadExamples reads an examples file written by WriteExamples.
func ReadExamples(path string) ([]qa.ExampleRecord, error) {
	var records []qa.ExampleRecord
	err := readLines(path, func(line []byte) error {
		var r qa.ExampleRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return err
		}
		records = append(records, r)
		return nil
	})
	return records, err
}

// ReadFeatures reads a features file written by WriteFeatures.
func ReadFeatures(path string) ([]qa.FeatureRecord, error) {
	var records []qa.FeatureRecord
	err := readLines(path, func(line []byte) error {
		var r qa.FeatureRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return err
		}
		records = append(records, r)
		return nil
	})
	return records, err
}

// ReadFeaturesMapped reads a features file through a memory mapping instead
// of buffered reads. Feature files grow large (every sub-word token of every
// span is recorded), so this avoids double-buffering them on the read path.
func ReadFeaturesMapped(path string) ([]qa.FeatureRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", path)
	}
	defer f.Close()

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to mmap %q", path)
	}
	defer data.Unmap()

	var records []qa.FeatureRecord
	for len(data) > 0 {
		line := data
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line = data[:i]
			data = data[i+1:]
		} else {
			data = nil
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var r qa.FeatureRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, errors.Wrapf(err, "failed to parse feature record in %q", path)
		}
		records = append(records, r)
	}
	return records, nil
}

// writeLines writes n records as line-delimited JSON to path, atomically and
// under a file lock.
func writeLines(path string, n int, record func(int) any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := 0; i < n; i++ {
		if err := enc.Encode(record(i)); err != nil {
			return errors.Wrapf(err, "failed to encode record %d for %q", i, path)
		}
	}
	if err := writeFileLocked(path, buf.Bytes()); err != nil {
		return err
	}
	klog.Infof("wrote %d records to %s", n, path)
	return nil
}

func readLines(path string, parse func([]byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %q", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := parse(line); err != nil {
			return errors.Wrapf(err, "failed to parse %q line %d", path, lineNo)
		}
	}
	return errors.Wrapf(scanner.Err(), "failed to read %q", path)
}

// writeFileLocked writes data to path via a uniquely named temporary file in
// the same directory, renamed into place while holding path+".lock".
func writeFileLocked(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirCreationPerm); err != nil {
		return errors.Wrapf(err, "failed to create directory for %q", path)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return errors.Wrapf(err, "failed to lock %q", path+".lock")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			klog.Warningf("error unlocking %q: %v", path+".lock", err)
		}
	}()

	tmpPath := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write temporary file %q", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		if rmErr := os.Remove(tmpPath); rmErr != nil {
			klog.Warningf("failed removing temporary file %q: %v", tmpPath, rmErr)
		}
		return errors.Wrapf(err, "failed to move %q to %q", tmpPath, path)
	}
	return nil
}
