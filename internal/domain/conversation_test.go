package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPair_IsOrderIndependent(t *testing.T) {
	lo, hi := Pair(7, 3)
	assert.Equal(t, int64(3), lo)
	assert.Equal(t, int64(7), hi)

	lo2, hi2 := Pair(3, 7)
	assert.Equal(t, lo, lo2)
	assert.Equal(t, hi, hi2)
}

func TestConversation_Has(t *testing.T) {
	c := Conversation{Participants: [2]int64{1, 2}}
	assert.True(t, c.Has(1))
	assert.True(t, c.Has(2))
	assert.False(t, c.Has(3))
}

func TestGender_Valid(t *testing.T) {
	assert.True(t, GenderMale.Valid())
	assert.True(t, GenderFemale.Valid())
	assert.False(t, Gender("other").Valid())
	assert.False(t, Gender("").Valid())
}
