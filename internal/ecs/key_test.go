package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKeyRoundTrips(t *testing.T) {
	cases := []Key{
		{Kind: "Close"},
		{Kind: "SMA", Horizon: 3, Source: "Close"},
		{Kind: "LogVal", Source: "Close"},
		{Kind: "EMA", Horizon: 14, Source: "UpDown<Difference<Close>>"},
		{Kind: "RSI", Horizon: 14, Source: "Close"},
	}
	for _, k := range cases {
		got := ParseKey(k.String())
		assert.Equal(t, k, got, k.String())
	}
}
