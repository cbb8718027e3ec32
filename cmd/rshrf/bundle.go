package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cwbudde/algo-hrf/internal/config"
	"github.com/cwbudde/algo-hrf/internal/store"
	"github.com/cwbudde/algo-hrf/internal/tsio"
	"github.com/cwbudde/algo-hrf/pipeline"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Bundle file suffixes, appended to the configured name.
const (
	suffixHRF          = "_hrf.txt"
	suffixHRFMicrotime = "_hrf_microtime.txt"
	suffixShape        = "_shape.txt"
	suffixDeconv       = "_deconv.txt"
	suffixEvents       = "_events.txt"
	suffixEventNumber  = "_event_number.txt"
	suffixSummary      = "_summary.yaml"
)

type voxelFailure struct {
	Voxel int    `yaml:"voxel"`
	Error string `yaml:"error"`
}

type summary struct {
	RunID    string         `yaml:"run-id"`
	Started  time.Time      `yaml:"started"`
	Elapsed  string         `yaml:"elapsed"`
	Scans    int            `yaml:"scans"`
	Voxels   int            `yaml:"voxels"`
	Failed   int            `yaml:"failed"`
	Keys     []string       `yaml:"keys"`
	Host     hostInfo       `yaml:"host"`
	Config   config.File    `yaml:"config"`
	Failures []voxelFailure `yaml:"failures,omitempty"`
}

// writeBundle writes the stored outputs of subject and the run summary
// into dir. It returns the written paths.
func writeBundle(dir, subject string, st *store.Store, res *pipeline.Result, sum summary) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var written []string

	path := func(suffix string) string {
		return filepath.Join(dir, subject+suffix)
	}

	matrices := []struct {
		kind   store.Kind
		suffix string
	}{
		{store.KindHRF, suffixHRF},
		{store.KindDeconvolved, suffixDeconv},
	}

	for _, m := range matrices {
		e, err := st.Get(store.Key{Subject: subject, Kind: m.kind})
		if err != nil {
			return written, err
		}

		if err := tsio.WriteFile(path(m.suffix), e.Data); err != nil {
			return written, fmt.Errorf("writing %s: %w", m.kind, err)
		}

		written = append(written, path(m.suffix))
	}

	extra := []struct {
		suffix string
		data   mat.Matrix
	}{
		{suffixHRFMicrotime, res.HRFMicrotime},
		{suffixShape, res.Shape},
		{suffixEventNumber, eventCounts(res.EventCount)},
	}

	for _, x := range extra {
		if err := tsio.WriteFile(path(x.suffix), x.data); err != nil {
			return written, err
		}

		written = append(written, path(x.suffix))
	}

	if err := writeWith(path(suffixEvents), func(f *os.File) error {
		return tsio.WriteRagged(f, res.Events)
	}); err != nil {
		return written, err
	}

	written = append(written, path(suffixEvents))

	for v, err := range res.VoxelErrors {
		if err != nil {
			sum.Failures = append(sum.Failures, voxelFailure{Voxel: v, Error: err.Error()})
		}
	}

	for _, k := range st.Keys(subject) {
		sum.Keys = append(sum.Keys, k.String())
	}

	if err := writeWith(path(suffixSummary), func(f *os.File) error {
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)

		if err := enc.Encode(sum); err != nil {
			return err
		}

		return enc.Close()
	}); err != nil {
		return written, err
	}

	return append(written, path(suffixSummary)), nil
}

func eventCounts(n []int) *mat.Dense {
	m := mat.NewDense(1, max(1, len(n)), nil)
	for i, v := range n {
		m.Set(0, i, float64(v))
	}

	return m
}

func writeWith(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}

	return f.Close()
}
