package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover_RejectsNonPositiveDuration(t *testing.T) {
	saved := scanDuration
	t.Cleanup(func() { scanDuration = saved })

	for _, d := range []time.Duration{0, -time.Second} {
		scanDuration = d
		var out bytes.Buffer
		discoverCmd.SetOut(&out)
		discoverCmd.SetContext(context.Background())

		err := discoverCmd.RunE(discoverCmd, nil)
		require.Error(t, err, d)
		assert.Contains(t, err.Error(), "--duration")
		assert.Empty(t, out.String(), "scan must not start")
	}
}

func TestDecode_GatttoolLine(t *testing.T) {
	var out bytes.Buffer
	decodeCmd.SetOut(&out)

	err := decodeCmd.RunE(decodeCmd, []string{"Characteristic value/descriptor: 05:d6:00:00:2f:00:00:00:00:64"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Temperature       = 21.4℃\n")
	assert.Contains(t, out.String(), "Humidity          = 47%\n")
	assert.Contains(t, out.String(), "Battery           = 100%\n")
}
