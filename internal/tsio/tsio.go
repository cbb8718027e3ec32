// Package tsio reads and writes time-series matrices as delimited text:
// one row per scan, one column per voxel. Blank lines and lines starting
// with '#' are skipped; values may be separated by spaces, tabs or commas.
package tsio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmpty  = errors.New("tsio: no data rows")
	ErrRagged = errors.New("tsio: rows have different column counts")
)

// Read parses a matrix from r.
func Read(r io.Reader) (*mat.Dense, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var (
		data []float64
		cols int
		rows int
		line int
	)

	for sc.Scan() {
		line++

		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == ';'
		})

		if rows == 0 {
			cols = len(fields)
		} else if len(fields) != cols {
			return nil, fmt.Errorf("%w: line %d has %d values, want %d", ErrRagged, line, len(fields), cols)
		}

		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("tsio: line %d: %w", line, err)
			}

			data = append(data, v)
		}

		rows++
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("tsio: %w", err)
	}

	if rows == 0 || cols == 0 {
		return nil, ErrEmpty
	}

	return mat.NewDense(rows, cols, data), nil
}

// ReadFile parses the matrix stored at path.
func ReadFile(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f)
}

// Write formats m with one row per line and space-separated values in the
// shortest representation that round-trips.
func Write(w io.Writer, m mat.Matrix) error {
	bw := bufio.NewWriter(w)
	rows, cols := m.Dims()

	buf := make([]byte, 0, 32)

	for i := range rows {
		for j := range cols {
			if j > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}

			buf = strconv.AppendFloat(buf[:0], m.At(i, j), 'g', -1, 64)
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}

		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// WriteFile writes m to path, replacing any existing file.
func WriteFile(path string, m mat.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := Write(f, m); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

// WriteRagged writes one line per row of ints, for event lists.
func WriteRagged(w io.Writer, rows [][]int) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 16)

	for _, row := range rows {
		for j, v := range row {
			if j > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}

			buf = strconv.AppendInt(buf[:0], int64(v), 10)
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}

		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}

	return bw.Flush()
}
