package adapter

import (
	"testing"

	"github.com/arloliu/go-thales/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert_Float(t *testing.T) {
	tests := []struct {
		description string
		input       any
		expected    float64
		fail        bool
	}{
		{"float64", 0.5, 0.5, false},
		{"float32", float32(0.25), 0.25, false},
		{"int", 3, 3, false},
		{"int64", int64(-7), -7, false},
		{"string", "1.5e-3", 1.5e-3, false},
		{"bad string", "volt", 0, true},
		{"nil", nil, 0, true},
		{"slice", []int{1}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			v, err := toFloat(tt.input)
			if tt.fail {
				require.ErrorIs(t, err, script.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, v, 1e-12)
		})
	}
}

func TestConvert_Int(t *testing.T) {
	tests := []struct {
		description string
		input       any
		expected    int
		fail        bool
	}{
		{"int", 4, 4, false},
		{"int32", int32(9), 9, false},
		{"whole float64", 4.0, 4, false},
		{"whole float32", float32(2), 2, false},
		{"string", "12", 12, false},
		{"fractional float64", 1.5, 0, true},
		{"fractional float32", float32(0.5), 0, true},
		{"bad string", "twelve", 0, true},
		{"nil", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			v, err := toInt(tt.input)
			if tt.fail {
				require.ErrorIs(t, err, script.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestConvert_BoolAndString(t *testing.T) {
	b, err := toBool(true)
	require.NoError(t, err)
	assert.True(t, b)

	b, err = toBool("false")
	require.NoError(t, err)
	assert.False(t, b)

	b, err = toBool(1)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = toBool("maybe")
	require.ErrorIs(t, err, script.ErrInvalidArgument)
	_, err = toBool(nil)
	require.ErrorIs(t, err, script.ErrInvalidArgument)

	s, err := toString("spectrum")
	require.NoError(t, err)
	assert.Equal(t, "spectrum", s)

	s, err = toString(42)
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	_, err = toString(nil)
	require.ErrorIs(t, err, script.ErrInvalidArgument)
}

func TestConvert_FileNaming(t *testing.T) {
	n, err := toFileNaming("counter")
	require.NoError(t, err)
	assert.Equal(t, script.FileNamingCounter, n)

	n, err = toFileNaming(script.FileNamingIndividual)
	require.NoError(t, err)
	assert.Equal(t, script.FileNamingIndividual, n)

	n, err = toFileNaming(0.0)
	require.NoError(t, err)
	assert.Equal(t, script.FileNamingDateTime, n)

	n, err = toFileNaming("2")
	require.NoError(t, err)
	assert.Equal(t, script.FileNamingIndividual, n)

	_, err = toFileNaming("weekly")
	require.ErrorIs(t, err, script.ErrInvalidArgument)
}
