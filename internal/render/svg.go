package render

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/hailam/chessnet/internal/graph"
)

// SVG returns a layered diagram of g with one labelled box per node.
func SVG(g *graph.Graph) []byte {
	return newLayout(g).svg(true)
}

func (l layout) svg(labels bool) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">`+"\n",
		l.width, l.height, l.width, l.height)
	fmt.Fprintf(&b, `<rect x="0" y="0" width="%.0f" height="%.0f" fill="#ffffff"/>`+"\n", l.width, l.height)

	for _, e := range l.edges {
		from, to := l.boxes[e.from], l.boxes[e.to]
		fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#636363" stroke-width="1.5"/>`+"\n",
			from.x+boxWidth/2, from.y+boxHeight, to.x+boxWidth/2, to.y)
	}
	for _, bx := range l.boxes {
		fmt.Fprintf(&b, `<rect x="%.1f" y="%.1f" width="%.0f" height="%.0f" rx="6" fill="%s" stroke="#252525" stroke-width="1"/>`+"\n",
			bx.x, bx.y, boxWidth, boxHeight, fill(bx.node.Op))
		if !labels {
			continue
		}
		fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" font-family="sans-serif" font-size="12">`, bx.x+6, bx.y+16)
		_ = xml.EscapeText(&b, []byte(bx.node.Name))
		b.WriteString("</text>\n")
		fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" font-family="sans-serif" font-size="10" fill="#525252">`, bx.x+6, bx.y+32)
		_ = xml.EscapeText(&b, []byte(bx.detail))
		b.WriteString("</text>\n")
	}
	b.WriteString("</svg>\n")
	return []byte(b.String())
}
