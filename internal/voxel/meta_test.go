package voxel

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cubeMeta(t *testing.T) ImageMeta {
	t.Helper()
	m, err := NewImageMeta(Point3D{}, Point3D{1, 1, 1}, 100, 100, 100)
	require.NoError(t, err)
	return m
}

func TestImageMetaIDRowMajor(t *testing.T) {
	t.Parallel()
	m := cubeMeta(t)

	tests := []struct {
		name string
		p    Point3D
		want ID
	}{
		{"origin", Point3D{0, 0, 0}, 0},
		{"x step", Point3D{1.5, 0.2, 0.2}, 1},
		{"y step", Point3D{0.5, 1.5, 0.5}, 100},
		{"z step", Point3D{0.5, 0.5, 1.5}, 10000},
		{"interior", Point3D{10, 10, 10}, 101010},
		{"upper face is last voxel", Point3D{100, 100, 100}, 999999},
		{"below origin", Point3D{-0.001, 5, 5}, InvalidID},
		{"beyond max", Point3D{5, 100.001, 5}, InvalidID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.ID(tt.p))
		})
	}
}

func TestImageMetaIndexRoundTrip(t *testing.T) {
	m, err := NewImageMeta(Point3D{-5, 2, 7}, Point3D{0.5, 1, 2}, 7, 3, 4)
	require.NoError(t, err)

	for id := ID(0); uint64(id) < m.NumVoxels(); id++ {
		ix, iy, iz, ok := m.XYZIndex(id)
		require.True(t, ok)
		require.Equal(t, id, m.Index(ix, iy, iz))

		centre, ok := m.Position(id)
		require.True(t, ok)
		require.Equal(t, id, m.ID(centre))
	}

	_, _, _, ok := m.XYZIndex(ID(m.NumVoxels()))
	assert.False(t, ok)
}

func TestImageMetaShift(t *testing.T) {
	m := cubeMeta(t)
	id := m.Index(10, 20, 30)

	assert.Equal(t, m.Index(11, 19, 32), m.Shift(id, 1, -1, 2))
	assert.Equal(t, InvalidID, m.Shift(m.Index(0, 0, 0), -1, 0, 0))
	assert.Equal(t, InvalidID, m.Shift(m.Index(99, 0, 0), 1, 0, 0))
	assert.Equal(t, InvalidID, m.Shift(InvalidID, 0, 0, 0))
}

func TestImageMetaDistance(t *testing.T) {
	m := cubeMeta(t)
	assert.Equal(t, 0, m.Distance(m.Index(1, 1, 1), m.Index(1, 1, 1)))
	assert.Equal(t, 1, m.Distance(m.Index(1, 1, 1), m.Index(2, 2, 0)))
	assert.Equal(t, 5, m.Distance(m.Index(1, 1, 1), m.Index(2, 6, 0)))
	assert.Equal(t, -1, m.Distance(InvalidID, m.Index(2, 6, 0)))
}

func TestNewImageMetaRejectsBadGeometry(t *testing.T) {
	t.Parallel()

	_, err := NewImageMeta(Point3D{}, Point3D{1, 0, 1}, 1, 1, 1)
	assert.Error(t, err)
	_, err = NewImageMeta(Point3D{}, Point3D{1, 1, -1}, 1, 1, 1)
	assert.Error(t, err)
	_, err = NewImageMeta(Point3D{}, Point3D{1, 1, 1}, 1, 0, 1)
	assert.Error(t, err)
}

func TestImageMetaDump(t *testing.T) {
	m, err := NewImageMeta(Point3D{-10, 0, 2.5}, Point3D{0.5, 1, 2}, 40, 8, 3)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "image_meta_dump", []byte(m.Dump()))
}
