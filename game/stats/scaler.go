// Package stats scales species base stats to a combat-ready value for a
// given level and per-stat boost.
package stats

// HP computes max hit points at a level:
// floor(base*2*level/100) + level + 10 + boost.
func HP(base, level, boost int) int {
	return base*2*level/100 + level + 10 + boost
}

// Stat computes attack or defense at a level:
// floor(base*2*level/100) + 5 + boost.
func Stat(base, level, boost int) int {
	return base*2*level/100 + 5 + boost
}

// Speed computes speed at a level. Boosts never apply to speed.
func Speed(base, level int) int {
	return base*2*level/100 + 5
}
