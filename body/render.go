package body

import "strings"

// Render draws the body as text, one line per row with the highest y first.
// Occupied cells are '#', empty cells are spaces.
func Render(b *Body) string {
	if b == nil {
		return ""
	}
	var sb strings.Builder
	for y := b.H() - 1; y >= 0; y-- {
		for x := 0; x < b.W(); x++ {
			if b.Has(x, y) {
				sb.WriteByte('#')
			} else {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
