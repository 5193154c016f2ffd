package pileup_test

import (
	"testing"

	"github.com/grailbio/jointcov/pileup"
	"github.com/grailbio/testutil/expect"
)

func TestMask(t *testing.T) {
	m := pileup.NewMask(0, 100, 230)
	expect.EQ(t, m.Count(), 0)
	for _, pos := range []pileup.PosType{100, 163, 164, 229} {
		m.Set(pos)
	}
	expect.True(t, m.Contains(100))
	expect.True(t, m.Contains(164))
	expect.True(t, m.Contains(229))
	expect.False(t, m.Contains(101))
	// Out-of-range lookups are simply false.
	expect.False(t, m.Contains(99))
	expect.False(t, m.Contains(230))
	expect.EQ(t, m.Count(), 4)

	var got []pileup.PosType
	m.ForEach(func(pos pileup.PosType) { got = append(got, pos) })
	expect.EQ(t, got, []pileup.PosType{100, 163, 164, 229})
}

func TestMaskSetOutOfRange(t *testing.T) {
	m := pileup.NewMask(0, 10, 20)
	defer func() {
		expect.NotNil(t, recover())
	}()
	m.Set(20)
}

func TestEmptyMask(t *testing.T) {
	m := pileup.NewMask(3, 5, 5)
	expect.EQ(t, m.Count(), 0)
	expect.False(t, m.Contains(5))
	m.ForEach(func(pileup.PosType) { t.Error("unexpected position") })
}
