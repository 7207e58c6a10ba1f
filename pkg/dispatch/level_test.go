package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "", want: LevelUnset},
		{in: "log", want: LevelLog},
		{in: "DEBUG", want: LevelDebug},
		{in: " info ", want: LevelInfo},
		{in: "warn", want: LevelWarn},
		{in: "warning", want: LevelWarn},
		{in: "error", want: LevelError},
		{in: "critical", want: LevelCritical},
		{in: "Fatal", want: LevelCritical},
		{in: "panic", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevel_ValidAndOr(t *testing.T) {
	for _, l := range Levels {
		assert.True(t, l.Valid(), l)
		assert.Equal(t, l, l.Or(LevelError))
	}
	assert.False(t, LevelUnset.Valid())
	assert.False(t, Level("fatal").Valid())
	assert.Equal(t, LevelError, LevelUnset.Or(LevelError))
}
