package cdcevent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPositionMarker(t *testing.T) {
	marker, err := NewPositionMarker("t1", "0/16B3748")
	assert.NoError(t, err)
	assert.Equal(t, "t1", marker.Timeline)
	assert.Equal(t, "t1@0/16B3748", marker.String())
}

func TestNewPositionMarkerInvalidLSN(t *testing.T) {
	invalidLSNs := []string{"", "garbage", "16B3748", "0/X/Y"}
	for _, lsn := range invalidLSNs {
		_, err := NewPositionMarker("t1", lsn)
		assert.Errorf(t, err, "expected error for lsn %q", lsn)
	}
}

func TestCompareSameTimeline(t *testing.T) {
	earlier, _ := NewPositionMarker("t1", "0/1000000")
	later, _ := NewPositionMarker("t1", "0/2000000")

	cmp, err := earlier.Compare(later)
	assert.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = later.Compare(earlier)
	assert.NoError(t, err)
	assert.Equal(t, 1, cmp)

	cmp, err = earlier.Compare(earlier)
	assert.NoError(t, err)
	assert.Equal(t, 0, cmp)
}

func TestCompareDifferentTimelines(t *testing.T) {
	first, _ := NewPositionMarker("t1", "0/1000000")
	second, _ := NewPositionMarker("t2", "0/1000000")

	_, err := first.Compare(second)
	assert.ErrorIs(t, err, ErrAmbiguousTimeline)
}

func TestIsZero(t *testing.T) {
	assert.True(t, PositionMarker{}.IsZero())

	marker, _ := NewPositionMarker("t1", "0/1")
	assert.False(t, marker.IsZero())
}
