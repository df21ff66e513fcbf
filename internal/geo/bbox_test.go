package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		box     BoundingBox
		wantErr bool
	}{
		{"valid", BoundingBox{West: -60.1, South: -3.2, East: -59.9, North: -3.0}, false},
		{"west>=east", BoundingBox{West: 10, South: 0, East: 10, North: 1}, true},
		{"south>=north", BoundingBox{West: 0, South: 5, East: 1, North: 5}, true},
		{"lng overflow", BoundingBox{West: -200, South: 0, East: 1, North: 1}, true},
		{"lat overflow", BoundingBox{West: 0, South: -95, East: 1, North: 1}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.box.Validate()
			if c.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAreaKM2Positive(t *testing.T) {
	box := FromCenter(-3.11, -60.04, 0.5)
	require.NoError(t, box.Validate())
	assert.Greater(t, box.AreaKM2(), 0.0)
}

func TestFromCenterAtEquatorPrimeMeridian(t *testing.T) {
	box := FromCenter(0, 0, 5)
	require.NoError(t, box.Validate())
	lat, lng := box.Center()
	assert.InDelta(t, 0, lat, 0.01)
	assert.InDelta(t, 0, lng, 0.01)
}

func TestFromCenterNearPoleUsesLatBufferForLongitude(t *testing.T) {
	box := FromCenter(89.95, 10, 5)
	require.NoError(t, box.Validate())
	latSpan := box.North - box.South
	lngSpan := box.East - box.West
	assert.InDelta(t, latSpan, lngSpan, 1e-9)
}

func TestExpandGrowsBox(t *testing.T) {
	box := BoundingBox{West: -60.1, South: -3.2, East: -59.9, North: -3.0}
	grown := box.Expand(10)
	assert.Less(t, grown.West, box.West)
	assert.Greater(t, grown.East, box.East)
	assert.Less(t, grown.South, box.South)
	assert.Greater(t, grown.North, box.North)
}
