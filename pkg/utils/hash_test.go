package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashString_Deterministic(t *testing.T) {
	a := HashString("The Sony A7 IV rents for 2500 rupees per day.")
	b := HashString("The Sony A7 IV rents for 2500 rupees per day.")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestHashString_DistinctInputs(t *testing.T) {
	assert.NotEqual(t, HashString("chunk one"), HashString("chunk two"))
}

func TestHashString_Empty(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", HashString(""))
}
