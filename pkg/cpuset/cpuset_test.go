package cpuset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	as := assert.New(t)

	as.True(Contains(0, "0"))
	as.True(Contains(2, "0-3"))
	as.True(Contains(7, "0-3,7"))
	as.True(Contains(5, "1,3-5,9"))
	as.False(Contains(4, "0-3,7"))
	as.False(Contains(0, ""))
	as.False(Contains(-1, "0-3"))

	// Whitespace as written by some kernels.
	as.True(Contains(1, "0-1\n"))

	// Malformed tokens are skipped, valid ones still match.
	as.True(Contains(7, "x,3-1,7"))
	as.False(Contains(3, "x,3-1"))
}

func TestCount(t *testing.T) {
	as := assert.New(t)

	as.Equal(uint32(1), Count("0"))
	as.Equal(uint32(4), Count("0-3"))
	as.Equal(uint32(5), Count("0-3,7"))
	as.Equal(uint32(6), Count("1,3-5,8-9"))
	as.Equal(uint32(0), Count(""))
	as.Equal(uint32(0), Count("garbage"))
	as.Equal(uint32(2), Count("0,2\n"))
}
