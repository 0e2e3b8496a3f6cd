package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitForFullLadderKeepsOriginalShares(t *testing.T) {
	p := PolicyFor(ApproachConservative)

	split := p.SplitFor([]int{1, 2, 3, 4})
	assert.Equal(t, 0.85, split[1])
	assert.Equal(t, 0.05, split[2])
	assert.Equal(t, 0.05, split[3])
	assert.Equal(t, 0.05, split[4])
}

func TestSplitForShortLadderKeepsPrimaryDominant(t *testing.T) {
	p := PolicyFor(ApproachConservative)

	// заявка с двумя тейками: первая лесенка — не 50/50,
	// а перенормированные 85/5
	split := p.SplitFor([]int{1, 2})
	assert.InDelta(t, 0.85/0.90, split[1], 1e-12)
	assert.InDelta(t, 0.05/0.90, split[2], 1e-12)
	assert.Greater(t, split[1], split[2])

	split = p.SplitFor([]int{1, 2, 3})
	assert.InDelta(t, 0.85/0.95, split[1], 1e-12)
	assert.Greater(t, split[1], split[2])
}

func TestSplitForPartialLadderIsEqual(t *testing.T) {
	p := PolicyFor(ApproachConservative)

	// tp1 снят: остаток делится поровну между хвостовыми уровнями
	split := p.SplitFor([]int{2, 3, 4})
	for _, tier := range []int{2, 3, 4} {
		assert.InDelta(t, 1.0/3.0, split[tier], 1e-12)
	}

	split = p.SplitFor([]int{4})
	assert.Equal(t, 1.0, split[4])

	assert.Empty(t, p.SplitFor(nil))
}

func TestSplitSumsToOne(t *testing.T) {
	p := PolicyFor(ApproachConservative)
	for _, tiers := range [][]int{{1, 2, 3, 4}, {1, 2}, {1, 2, 3}, {2, 3, 4}, {2, 4}, {3}} {
		sum := 0.0
		for _, s := range p.SplitFor(tiers) {
			sum += s
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}
}

func TestPolicyShape(t *testing.T) {
	fast := PolicyFor(ApproachFast)
	assert.Equal(t, 1, fast.Tiers())
	assert.Equal(t, 1, fast.MaxEntries)
	assert.Equal(t, 1, fast.PrimaryTier())

	cons := PolicyFor(ApproachConservative)
	assert.Equal(t, 4, cons.Tiers())
	assert.Equal(t, 3, cons.MaxEntries)
}
