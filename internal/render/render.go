// Package render draws spectrum frames as terminal text.
package render

import (
	"math"
	"strings"
)

var blocks = []rune(" ▁▂▃▄▅▆▇█")

// level maps v in [0,1] to a glyph index. Out of range values clamp and NaN
// is blank.
func level(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return len(blocks) - 1
	}
	return int(math.Round(v * float64(len(blocks)-1)))
}

// Line renders frame as a single row, one glyph per value.
func Line(frame []float64) string {
	var b strings.Builder
	b.Grow(len(frame) * 3)
	for _, v := range frame {
		b.WriteRune(blocks[level(v)])
	}
	return b.String()
}

// Columns renders frame as height rows of vertical bars, top row first.
func Columns(frame []float64, height int) []string {
	if height < 1 {
		height = 1
	}
	rows := make([]string, height)
	var b strings.Builder
	for r := 0; r < height; r++ {
		b.Reset()
		row := height - 1 - r
		for _, v := range frame {
			if math.IsNaN(v) {
				v = 0
			}
			b.WriteRune(blocks[level(v*float64(height)-float64(row))])
		}
		rows[r] = b.String()
	}
	return rows
}
