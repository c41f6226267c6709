package physics

import "math/rand"

// RackOrigin is where the apex ball of the triangle sits. It is moved toward
// the head of the table when the rack would not fit before the foot rail.
func RackOrigin(s Settings) Vec2 {
	racked := 9.4 * s.BallRadius
	start := s.TableLength / 4 * 3
	cutoff := s.TableLength / 20 * 19
	if start+racked > cutoff {
		start = cutoff - racked
	}
	return Vec2{X: start, Y: s.TableWidth / 2}
}

// Rack builds a table with the fifteen object balls in a five-row triangle,
// the 8-ball in the centre of the third row and the cue ball on the head
// string. The other fourteen numbers are shuffled with rng.
func Rack(s Settings, rng *rand.Rand) *Table {
	t := NewTable(s)
	numbers := make([]int, 0, 14)
	for n := 1; n <= 15; n++ {
		if n != EightBall {
			numbers = append(numbers, n)
		}
	}
	rng.Shuffle(len(numbers), func(i, j int) {
		numbers[i], numbers[j] = numbers[j], numbers[i]
	})

	origin := RackOrigin(s)
	r := s.BallRadius
	var xOffset, yOffset float64
	next := 0
	for row := 1; row <= 5; row++ {
		for j := 0; j < row; j++ {
			number := EightBall
			if !(row == 3 && j == 1) {
				number = numbers[next]
				next++
			}
			shift := Vec2{X: xOffset, Y: yOffset + r*2.2*float64(j)}
			t.AddBall(NewBall(origin.Plus(shift), number, s))
		}
		yOffset -= r * 1.1
		xOffset += r * 2
	}
	t.AddBall(NewBall(Vec2{X: s.TableLength / 3, Y: s.TableWidth / 2}, CueBall, s))
	return t
}

// Group returns the numbers of the striped (9-15) or spotted (1-7) balls.
func Group(striped bool) []int {
	first := 1
	if striped {
		first = 9
	}
	out := make([]int, 0, 7)
	for n := first; n < first+7; n++ {
		out = append(out, n)
	}
	return out
}
