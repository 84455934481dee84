package colorutil

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{in: "#fff", want: color.NRGBA{R: 255, G: 255, B: 255, A: 255}},
		{in: "000000", want: color.NRGBA{A: 255}},
		{in: "#ff000080", want: color.NRGBA{R: 255, A: 128}},
		{in: " #00FF00 ", want: color.NRGBA{G: 255, A: 255}},
		{in: "#12345", wantErr: true},
		{in: "#gggggg", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHex(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHexRoundTrip(t *testing.T) {
	assert.Equal(t, "#ffffff", Hex(White))
	assert.Equal(t, "#ff000080", Hex(color.NRGBA{R: 255, A: 128}))
}

func TestPremultiply(t *testing.T) {
	assert.Equal(t, White, Premultiply(color.NRGBA{R: 255, G: 255, B: 255, A: 255}))
	assert.Equal(t, color.RGBA{R: 128, A: 128}, Premultiply(color.NRGBA{R: 255, A: 128}))
}

func TestLuminance(t *testing.T) {
	assert.Equal(t, uint8(0), Luminance(0, 0, 0))
	assert.Equal(t, uint8(255), Luminance(255, 255, 255))
	assert.Equal(t, uint8(150), Luminance(0, 255, 0))
}
