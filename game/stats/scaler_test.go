package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHP(t *testing.T) {
	// floor(45*2*15/100) + 15 + 10 = 13 + 25
	assert.Equal(t, 38, HP(45, 15, 0))
	assert.Equal(t, 43, HP(45, 15, 5))
}

func TestStat(t *testing.T) {
	// floor(49*2*15/100) + 5 = 14 + 5
	assert.Equal(t, 19, Stat(49, 15, 0))
	assert.Equal(t, 22, Stat(49, 15, 3))
}

func TestSpeed(t *testing.T) {
	assert.Equal(t, 18, Speed(45, 15))
}

func TestMonotonicInLevel(t *testing.T) {
	for base := 1; base <= 255; base += 17 {
		prevHP, prevStat, prevSpeed := 0, 0, 0
		for level := 1; level <= 100; level++ {
			hp := HP(base, level, 0)
			st := Stat(base, level, 0)
			spd := Speed(base, level)
			assert.GreaterOrEqual(t, hp, prevHP, "HP base=%d level=%d", base, level)
			assert.GreaterOrEqual(t, st, prevStat, "Stat base=%d level=%d", base, level)
			assert.GreaterOrEqual(t, spd, prevSpeed, "Speed base=%d level=%d", base, level)
			prevHP, prevStat, prevSpeed = hp, st, spd
		}
	}
}

func TestMonotonicInBoost(t *testing.T) {
	for boost := 0; boost <= 50; boost++ {
		assert.Equal(t, HP(100, 20, 0)+boost, HP(100, 20, boost))
		assert.Equal(t, Stat(100, 20, 0)+boost, Stat(100, 20, boost))
	}
}
