package tokencount

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForModel_KnownModelUsesTiktokenEncoding(t *testing.T) {
	c := ForModel("gpt-4")
	n := c.Count("hello world")
	assert.Greater(t, n, 0)
}

func TestForModel_CachesCounterPerModel(t *testing.T) {
	c1 := ForModel("gpt-4")
	c2 := ForModel("gpt-4")
	assert.Same(t, c1, c2)
}

func TestHeuristicCounter_EmptyStringCountsZero(t *testing.T) {
	assert.Equal(t, 0, heuristicCounter{}.Count(""))
}

func TestHeuristicCounter_ShortStringCountsAtLeastOne(t *testing.T) {
	assert.Equal(t, 1, heuristicCounter{}.Count("hi"))
}

func TestHeuristicCounter_ApproximatesFourCharsPerToken(t *testing.T) {
	s := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" // 32 chars
	assert.Equal(t, 8, heuristicCounter{}.Count(s))
}
