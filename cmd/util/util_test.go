package util

import (
	"github.com/ValentinKolb/netcom/rpc/common"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}

func TestParseAssignments(t *testing.T) {
	params, err := ParseAssignments([]string{"3x0010=7", "mode=auto", "flags=[1,2]", "empty=", "3x0010=8"})
	require.NoError(t, err)
	assert.Equal(t, []common.Param{
		{Name: "3x0010", Value: float64(7)},
		{Name: "mode", Value: "auto"},
		{Name: "flags", Value: []any{float64(1), float64(2)}},
		{Name: "empty", Value: ""},
		{Name: "3x0010", Value: float64(8)},
	}, params)

	_, err = ParseAssignments([]string{"novalue"})
	assert.Error(t, err)
	_, err = ParseAssignments([]string{"=1"})
	assert.Error(t, err)
}

func TestParseDevices(t *testing.T) {
	devices, err := ParseDevices("sim1, sim2:3x0005=42:mode=auto,")
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]any{
		"sim1": {},
		"sim2": {"3x0005": float64(42), "mode": "auto"},
	}, devices)

	_, err = ParseDevices("sim1:broken")
	assert.Error(t, err)
}
