// Package dataset implements the dataset application service: ingestion of
// CSV feature matrices and prediction signals, metadata management, and
// loading stored datasets back into the form the scan engine consumes.
package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/qsarlab/adscan/pkg/errors"
)

// ParseMatrix decodes a headerless CSV payload into a dense float matrix.
// Every record must have the same number of fields; the csv reader enforces
// that, so a ragged upload fails before any numeric parsing.
func ParseMatrix(payload []byte) ([][]float64, error) {
	records, err := readRecords(payload)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New(errors.ErrCodeDatasetParseFailed, "matrix CSV is empty")
	}

	matrix := make([][]float64, len(records))
	for i, record := range records {
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, errors.Newf(errors.ErrCodeDatasetParseFailed,
					"row %d column %d: %q is not a number", i+1, j+1, field)
			}
			row[j] = v
		}
		matrix[i] = row
	}
	return matrix, nil
}

// ParseSignal decodes a single-column CSV payload into a signal vector.
func ParseSignal(payload []byte) ([]float64, error) {
	records, err := readRecords(payload)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New(errors.ErrCodeDatasetParseFailed, "signal CSV is empty")
	}

	signal := make([]float64, len(records))
	for i, record := range records {
		if len(record) != 1 {
			return nil, errors.Newf(errors.ErrCodeDatasetParseFailed,
				"signal row %d has %d columns, expected 1", i+1, len(record))
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		if err != nil {
			return nil, errors.Newf(errors.ErrCodeDatasetParseFailed,
				"signal row %d: %q is not a number", i+1, record[0])
		}
		signal[i] = v
	}
	return signal, nil
}

// EncodeMatrix encodes a matrix as headerless CSV, the storage format for
// dataset artifacts.
func EncodeMatrix(matrix [][]float64) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range matrix {
		record := make([]string, len(row))
		for j, v := range row {
			record[j] = formatFloat(v)
		}
		if err := w.Write(record); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode matrix CSV")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode matrix CSV")
	}
	return buf.Bytes(), nil
}

// EncodeSignal encodes a signal vector as single-column CSV.
func EncodeSignal(signal []float64) ([]byte, error) {
	matrix := make([][]float64, len(signal))
	for i, v := range signal {
		matrix[i] = []float64{v}
	}
	return EncodeMatrix(matrix)
}

func readRecords(payload []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatasetParseFailed, "malformed CSV")
	}
	return records, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// shapeError builds the uniform message for mismatched uploads.
func shapeError(format string, args ...interface{}) error {
	return errors.New(errors.ErrCodeDatasetInvalid, fmt.Sprintf(format, args...))
}
