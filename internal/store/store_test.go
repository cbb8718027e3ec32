package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestKeyStringRoundTrip(t *testing.T) {
	for _, k := range []Key{
		{Subject: "sub01", Kind: KindBOLD, Index: 0},
		{Subject: "sub_02", Kind: KindPreprocessed, Index: 3},
		{Subject: "s", Kind: KindDeconvolved, Index: 12},
	} {
		got, err := ParseKey(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	assert.Equal(t, "sub01_HRF_2", Key{Subject: "sub01", Kind: KindHRF, Index: 2}.String())
}

func TestParseKeyInvalid(t *testing.T) {
	for _, s := range []string{"", "HRF_0", "sub_HRF_x", "sub_HRF_-1", "sub_Bogus_0", "_HRF_0"} {
		_, err := ParseKey(s)
		assert.ErrorIs(t, err, ErrInvalidKey, s)
	}
}

func TestPutAssignsIndices(t *testing.T) {
	s := New()
	m := mat.NewDense(2, 2, nil)

	k0, err := s.Put("sub01", KindHRF, m, Key{}, nil)
	require.NoError(t, err)

	k1, err := s.Put("sub01", KindHRF, m, k0, map[string]string{"mode": "canon2dd"})
	require.NoError(t, err)

	assert.Equal(t, 0, k0.Index)
	assert.Equal(t, 1, k1.Index)

	e, err := s.Get(k1)
	require.NoError(t, err)
	assert.Equal(t, k0, e.Source)
	assert.Equal(t, "canon2dd", e.Meta["mode"])

	assert.True(t, s.Remove(k0))
	assert.False(t, s.Remove(k0))

	k2, err := s.Put("sub01", KindHRF, m, Key{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, k2.Index, "freed index is reused")
}

func TestPutRejects(t *testing.T) {
	s := New()

	_, err := s.Put("sub", KindBOLD, nil, Key{}, nil)
	assert.ErrorIs(t, err, ErrNilData)

	_, err = s.Put("", KindBOLD, mat.NewDense(1, 1, nil), Key{}, nil)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = s.Put("sub", Kind("Other"), mat.NewDense(1, 1, nil), Key{}, nil)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = s.Get(Key{Subject: "sub", Kind: KindBOLD})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubjectsAndKeys(t *testing.T) {
	s := New()
	m := mat.NewDense(1, 1, nil)

	for _, put := range []struct {
		sub  string
		kind Kind
	}{
		{"b", KindDeconvolved},
		{"a", KindHRF},
		{"b", KindBOLD},
		{"a", KindBOLD},
		{"a", KindBOLD},
	} {
		_, err := s.Put(put.sub, put.kind, m, Key{}, nil)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"a", "b"}, s.Subjects())
	assert.Equal(t, 5, s.Len())

	want := []Key{
		{Subject: "a", Kind: KindBOLD, Index: 0},
		{Subject: "a", Kind: KindBOLD, Index: 1},
		{Subject: "a", Kind: KindHRF, Index: 0},
	}

	if diff := cmp.Diff(want, s.Keys("a")); diff != "" {
		t.Errorf("Keys(a) mismatch (-want +got):\n%s", diff)
	}

	assert.Len(t, s.Keys(""), 5)
}

func TestConcurrentPut(t *testing.T) {
	s := New()
	m := mat.NewDense(1, 1, nil)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := s.Put(fmt.Sprintf("sub%d", i%2), KindHRF, m, Key{}, nil)
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	assert.Len(t, s.Keys("sub0"), 8)
	assert.Len(t, s.Keys("sub1"), 8)
}
