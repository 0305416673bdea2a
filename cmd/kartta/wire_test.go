package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yairfalse/kartta/config"
)

func TestRegionSweep(t *testing.T) {
	cfg := config.Default()
	cfg.Regions = []string{"us-east-1", "eu-west-1"}

	assert.Equal(t, []string{"us-east-1", "eu-west-1"}, regionSweep(cfg, ""),
		"no flag falls back to the configured sweep, not the built-in default list")
	assert.Equal(t, []string{"ap-south-1"}, regionSweep(cfg, "ap-south-1"))
	assert.Equal(t, []string{"us-east-1", "us-west-2"}, regionSweep(cfg, "us-east-1, us-west-2"))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList("a, b,"))
}
