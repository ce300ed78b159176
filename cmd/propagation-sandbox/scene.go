package main

import (
	"errors"
	"fmt"

	"github.com/lixenwraith/soundprop/raycast"
	"github.com/lixenwraith/soundprop/vmath"
)

// Scene cell glyphs
const (
	cellFloor    = '.'
	cellWall     = '#'
	cellCurtain  = '+'
	cellListener = '@'
)

const (
	curtainWeight = 0.4
	wallHalfZ     = 2.0 // Walls span z in [-2, 2] to catch the vertical peripheral rays
)

// emitterTones maps emitter labels to tone frequencies
var emitterTones = map[rune]float64{
	'1': 220.00,
	'2': 329.63,
	'3': 440.00,
	'4': 587.33,
}

var defaultLayout = []string{
	"##########################################",
	"#........#...............................#",
	"#...1....#.........++++++++..........2...#",
	"#........#...............................#",
	"#........#######.....#####...............#",
	"#..............#.....#...#...............#",
	"#..............#.....#.3.#.......#########",
	"#.....@..............#...#.......#.......#",
	"#....................##.##.......#...4...#",
	"#................................+.......#",
	"#................................#.......#",
	"##########################################",
}

// Emitter is a labelled tone source
type Emitter struct {
	Label rune
	Pos   vmath.Vec3F
	Freq  float64
	ID    uint64 // Assigned on reservation
}

// Scene is the parsed sandbox map; one cell is one world unit
type Scene struct {
	Width, Height int
	Cells         [][]rune
	Boxes         []raycast.Box
	Emitters      []Emitter
	Listener      vmath.Vec3F
}

// parseScene builds boxes from runs of wall cells per row
func parseScene(lines []string) (*Scene, error) {
	if len(lines) == 0 {
		return nil, errors.New("empty scene")
	}

	s := &Scene{Height: len(lines)}
	foundListener := false

	for y, line := range lines {
		row := []rune(line)
		if len(row) > s.Width {
			s.Width = len(row)
		}
		s.Cells = append(s.Cells, row)

		for x := 0; x < len(row); {
			c := row[x]
			switch c {
			case cellWall, cellCurtain:
				end := x
				for end < len(row) && row[end] == c {
					end++
				}
				weight := 1.0
				if c == cellCurtain {
					weight = curtainWeight
				}
				s.Boxes = append(s.Boxes, raycast.Box{
					Min:    vmath.Vec3F{X: float64(x), Y: float64(y), Z: -wallHalfZ},
					Max:    vmath.Vec3F{X: float64(end), Y: float64(y + 1), Z: wallHalfZ},
					Weight: weight,
				})
				x = end
				continue

			case cellListener:
				s.Listener = cellCenter(x, y)
				row[x] = cellFloor
				foundListener = true

			case cellFloor, ' ':

			default:
				freq, ok := emitterTones[c]
				if !ok {
					return nil, fmt.Errorf("scene %d,%d: unknown cell %q", x, y, c)
				}
				s.Emitters = append(s.Emitters, Emitter{Label: c, Pos: cellCenter(x, y), Freq: freq})
			}
			x++
		}
	}

	if !foundListener {
		return nil, errors.New("scene has no listener")
	}
	return s, nil
}

func cellCenter(x, y int) vmath.Vec3F {
	return vmath.Vec3F{X: float64(x) + 0.5, Y: float64(y) + 0.5}
}

// Walkable reports whether the listener may stand on cell x,y
func (s *Scene) Walkable(x, y int) bool {
	if y < 0 || y >= len(s.Cells) || x < 0 || x >= len(s.Cells[y]) {
		return false
	}
	c := s.Cells[y][x]
	return c != cellWall && c != cellCurtain
}
