package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitIDs(t *testing.T) {
	assert.Nil(t, splitIDs(""))
	assert.Equal(t, []string{"000003"}, splitIDs("000003"))
	assert.Equal(t, []string{"000003", "000027"}, splitIDs("000003,000027"))
	assert.Equal(t, []string{"000003", "000027"}, splitIDs(" 000003 , ,000027, "))
}
