package gridnav

import (
	"github.com/fogleman/gg"
	"gorgonia.org/tensor"
)

// DefaultCellPixels is the rendered side length of one grid cell when
// the config leaves it unset.
const DefaultCellPixels = 6

// render draws the slot's grid as an RGB frame shaped [height, width,
// 3] with uint8 channels. Frames of one episode share a shape only
// while the map size is fixed, which holds because curriculum updates
// take effect at reset.
func (g *GridNav) render() *tensor.Dense {
	cell := float64(g.conf.CellPixels)
	side := g.vals.MapSize * g.conf.CellPixels

	dc := gg.NewContext(side, side)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0.35, 0.35, 0.35)
	for _, p := range g.obstacles {
		dc.DrawRectangle(float64(p.Col)*cell, float64(p.Row)*cell, cell,
			cell)
		dc.Fill()
	}

	dc.SetRGB(0, 0.7, 0.1)
	dc.DrawRectangle(float64(g.goal.Col)*cell, float64(g.goal.Row)*cell,
		cell, cell)
	dc.Fill()

	// The agent is a disc with a heading tick.
	cx := (float64(g.agent.Col) + 0.5) * cell
	cy := (float64(g.agent.Row) + 0.5) * cell
	dc.SetRGB(0.85, 0.1, 0.1)
	dc.DrawCircle(cx, cy, cell/2.5)
	dc.Fill()

	tx, ty := cx, cy
	switch g.heading {
	case north:
		ty -= cell / 2
	case east:
		tx += cell / 2
	case south:
		ty += cell / 2
	case west:
		tx -= cell / 2
	}
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.DrawLine(cx, cy, tx, ty)
	dc.Stroke()

	img := dc.Image()
	bounds := img.Bounds()
	buf := make([]uint8, 0, side*side*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, gr, b, _ := img.At(x, y).RGBA()
			buf = append(buf, uint8(r>>8), uint8(gr>>8), uint8(b>>8))
		}
	}
	return tensor.New(tensor.WithShape(side, side, 3),
		tensor.WithBacking(buf))
}
