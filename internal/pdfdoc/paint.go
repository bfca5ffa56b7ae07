package pdfdoc

import (
	"context"
	"math"

	"mobile-pdf/internal/decoder"

	"github.com/gogpu/gg"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/reader"
)

type rgb struct{ r, g, b float64 }

type colors struct {
	fill, stroke rgb
}

// painter replays path operators onto a gg context.  Coordinates are
// mapped to device space when the path is built, so the context itself
// keeps an identity transform.
type painter struct {
	ctx context.Context
	dc  *gg.Context
	rd  *reader.Reader

	col   colors
	stack []colors

	cx, cy float64 // current point, user space
	sx, sy float64 // start of current subpath
	open   bool
	ops    int
}

func newPainter(ctx context.Context, dc *gg.Context, rd *reader.Reader) *painter {
	return &painter{ctx: ctx, dc: dc, rd: rd}
}

func (p *painter) dev(x, y float64) (float64, float64) {
	return p.rd.CTM.Apply(x, y)
}

func (p *painter) op(op string, args []pdf.Object) error {
	if p.ctx.Err() != nil {
		return decoder.ErrRenderAborted
	}
	p.ops++

	a, ok := numbers(args)
	if !ok {
		return nil
	}
	switch op {
	case "q":
		p.stack = append(p.stack, p.col)
	case "Q":
		if n := len(p.stack); n > 0 {
			p.col = p.stack[n-1]
			p.stack = p.stack[:n-1]
		}

	case "g":
		if len(a) == 1 {
			p.col.fill = rgb{a[0], a[0], a[0]}
		}
	case "G":
		if len(a) == 1 {
			p.col.stroke = rgb{a[0], a[0], a[0]}
		}
	case "rg":
		if len(a) == 3 {
			p.col.fill = rgb{a[0], a[1], a[2]}
		}
	case "RG":
		if len(a) == 3 {
			p.col.stroke = rgb{a[0], a[1], a[2]}
		}
	case "k":
		if len(a) == 4 {
			p.col.fill = cmyk(a)
		}
	case "K":
		if len(a) == 4 {
			p.col.stroke = cmyk(a)
		}

	case "m":
		if len(a) == 2 {
			p.moveTo(a[0], a[1])
		}
	case "l":
		if len(a) == 2 {
			p.lineTo(a[0], a[1])
		}
	case "c":
		if len(a) == 6 {
			p.cubicTo(a[0], a[1], a[2], a[3], a[4], a[5])
		}
	case "v":
		if len(a) == 4 {
			p.cubicTo(p.cx, p.cy, a[0], a[1], a[2], a[3])
		}
	case "y":
		if len(a) == 4 {
			p.cubicTo(a[0], a[1], a[2], a[3], a[2], a[3])
		}
	case "h":
		p.closePath()
	case "re":
		if len(a) == 4 {
			x, y, w, h := a[0], a[1], a[2], a[3]
			p.moveTo(x, y)
			p.lineTo(x+w, y)
			p.lineTo(x+w, y+h)
			p.lineTo(x, y+h)
			p.closePath()
		}

	case "f", "F":
		return p.fill(gg.FillRuleNonZero, false)
	case "f*":
		return p.fill(gg.FillRuleEvenOdd, false)
	case "S":
		return p.stroke()
	case "s":
		p.closePath()
		return p.stroke()
	case "B":
		return p.fill(gg.FillRuleNonZero, true)
	case "B*":
		return p.fill(gg.FillRuleEvenOdd, true)
	case "b":
		p.closePath()
		return p.fill(gg.FillRuleNonZero, true)
	case "b*":
		p.closePath()
		return p.fill(gg.FillRuleEvenOdd, true)
	case "n":
		p.dc.ClearPath()
		p.open = false
	}
	return nil
}

func (p *painter) moveTo(x, y float64) {
	p.dc.MoveTo(p.dev(x, y))
	p.cx, p.cy = x, y
	p.sx, p.sy = x, y
	p.open = true
}

func (p *painter) lineTo(x, y float64) {
	if !p.open {
		p.moveTo(x, y)
		return
	}
	p.dc.LineTo(p.dev(x, y))
	p.cx, p.cy = x, y
}

func (p *painter) cubicTo(x1, y1, x2, y2, x3, y3 float64) {
	if !p.open {
		p.moveTo(p.cx, p.cy)
	}
	ax, ay := p.dev(x1, y1)
	bx, by := p.dev(x2, y2)
	cx, cy := p.dev(x3, y3)
	p.dc.CubicTo(ax, ay, bx, by, cx, cy)
	p.cx, p.cy = x3, y3
}

func (p *painter) closePath() {
	if !p.open {
		return
	}
	p.dc.ClosePath()
	p.cx, p.cy = p.sx, p.sy
}

func (p *painter) fill(rule gg.FillRule, thenStroke bool) error {
	p.open = false
	p.dc.SetFillRule(rule)
	p.dc.SetRGB(p.col.fill.r, p.col.fill.g, p.col.fill.b)
	if !thenStroke {
		return p.dc.Fill()
	}
	if err := p.dc.FillPreserve(); err != nil {
		return err
	}
	return p.stroke()
}

func (p *painter) stroke() error {
	p.open = false
	m := p.rd.CTM
	scale := math.Sqrt(math.Abs(m[0]*m[3] - m[1]*m[2]))
	w := p.rd.LineWidth * scale
	if w < 1 {
		w = 1
	}
	p.dc.SetLineWidth(w)
	p.dc.SetRGB(p.col.stroke.r, p.col.stroke.g, p.col.stroke.b)
	return p.dc.Stroke()
}

func cmyk(a []float64) rgb {
	k := 1 - a[3]
	return rgb{(1 - a[0]) * k, (1 - a[1]) * k, (1 - a[2]) * k}
}

// numbers converts operator arguments.  Operators with non-numeric
// arguments report ok == false.
func numbers(args []pdf.Object) ([]float64, bool) {
	out := make([]float64, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case pdf.Integer:
			out[i] = float64(v)
		case pdf.Real:
			out[i] = float64(v)
		case pdf.Number:
			out[i] = float64(v)
		default:
			return nil, false
		}
	}
	return out, true
}
