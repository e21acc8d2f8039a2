package face

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnrollAveragesSamples(t *testing.T) {
	f, err := Enroll(" Abi ", []Descriptor{{0, 2}, {2, 4}}, false)
	require.NoError(t, err)
	require.Equal(t, "Abi", f.Label)
	require.Equal(t, 2, f.SampleCount)
	require.Equal(t, []Descriptor{{1, 3}}, f.Descriptors)
}

func TestEnrollKeepsRawSamples(t *testing.T) {
	f, err := Enroll("Abi", []Descriptor{{0, 2}, {2, 4}}, true)
	require.NoError(t, err)
	require.Len(t, f.Descriptors, 2)
}

func TestEnrollValidation(t *testing.T) {
	_, err := Enroll("", []Descriptor{{1}}, false)
	require.ErrorIs(t, err, ErrLabelRequired)

	_, err = Enroll("Abi", nil, false)
	require.ErrorIs(t, err, ErrEmptyDescriptor)

	_, err = Enroll("Abi", []Descriptor{{1, 2}, {1}}, false)
	require.ErrorIs(t, err, ErrDescriptorLength)
}

func TestMemoryStoreOverwriteAndDelete(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Put(Enrolled{Label: "Abi", Descriptors: []Descriptor{{1}}}))
	require.NoError(t, store.Put(Enrolled{Label: "Abi", Descriptors: []Descriptor{{2}}}))

	got, ok := store.Get("Abi")
	require.True(t, ok)
	require.Equal(t, Descriptor{2}, got.Descriptors[0])
	require.Len(t, store.List(), 1)

	require.NoError(t, store.Delete("Abi"))
	require.ErrorIs(t, store.Delete("Abi"), ErrFaceNotFound)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.msgpack")

	store, err := OpenFileStore(path)
	require.NoError(t, err)
	require.Empty(t, store.List())

	f, err := Enroll("Abi", []Descriptor{{0.1, 0.2, 0.3}}, false)
	require.NoError(t, err)
	require.NoError(t, store.Put(f))

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	got, ok := reopened.Get("Abi")
	require.True(t, ok)
	require.InDeltaSlice(t, []float64{0.1, 0.2, 0.3}, []float64(got.Descriptors[0]), 1e-9)
}
