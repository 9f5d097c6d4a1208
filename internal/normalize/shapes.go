package normalize

import (
	"math"

	"github.com/DoyleJ11/vtt-board-sync/internal/board"
)

const (
	drawingMinPoints = 2
	drawingMaxPoints = 10000
	strokeWidthMin   = 1
	strokeWidthMax   = 50
	strokeWidthDef   = 3
	polygonMinPoints = 3
	defaultInkColor  = "#ffffff"
)

func gridPoint(v any) (board.GridPoint, bool) {
	raw, ok := object(v)
	if !ok {
		return board.GridPoint{}, false
	}
	col, okCol := lookup(raw, "column", "col", "x")
	row, okRow := lookup(raw, "row", "y")
	if !okCol || !okRow {
		return board.GridPoint{}, false
	}
	c, okC := number(col)
	r, okR := number(row)
	if !okC || !okR {
		return board.GridPoint{}, false
	}
	return board.GridPoint{Column: c, Row: r}, true
}

// Template canonicalizes an area-of-effect template. The explicit type wins;
// untyped legacy entries are classified by the fields they carry.
func Template(v any) (board.Template, bool) {
	raw, ok := object(v)
	if !ok {
		return board.Template{}, false
	}
	id := textOf(raw, "id")
	if id == "" {
		return board.Template{}, false
	}

	kind := board.TemplateKind(fold(textOf(raw, "type", "shape")))
	if kind == "" {
		switch {
		case raw["squares"] != nil:
			kind = board.TemplateWall
		case raw["radius"] != nil:
			kind = board.TemplateCircle
		case raw["length"] != nil:
			kind = board.TemplateRectangle
		}
	}

	var shape board.Shape
	switch kind {
	case board.TemplateCircle:
		center, ok := gridPoint(raw["center"])
		if !ok {
			center, ok = gridPoint(raw)
		}
		if !ok {
			return board.Template{}, false
		}
		shape = board.Circle{Center: center, Radius: math.Max(0, numberOf(raw, 1, "radius"))}
	case board.TemplateRectangle:
		start, ok := gridPoint(raw["start"])
		if !ok {
			start, ok = gridPoint(raw)
		}
		if !ok {
			return board.Template{}, false
		}
		orientation := fold(textOf(raw, "orientation"))
		if orientation != "vertical" {
			orientation = "horizontal"
		}
		shape = board.Rectangle{
			Start:       start,
			Length:      math.Max(0, numberOf(raw, 1, "length")),
			Width:       math.Max(0, numberOf(raw, 1, "width")),
			Rotation:    math.Mod(numberOf(raw, 0, "rotation"), 360),
			Orientation: orientation,
		}
	case board.TemplateWall:
		squares := wallSquares(raw["squares"])
		if len(squares) == 0 {
			return board.Template{}, false
		}
		shape = board.Wall{Squares: squares}
	default:
		return board.Template{}, false
	}

	return board.Template{
		ID:           id,
		Color:        textOf(raw, "color"),
		Shape:        shape,
		LastModified: Timestamp(raw),
		Authorship:   authorship(raw),
	}, true
}

func wallSquares(v any) []board.GridCell {
	items, _ := list(v)
	seen := make(map[board.GridCell]bool, len(items))
	out := make([]board.GridCell, 0, len(items))
	for _, item := range items {
		p, ok := gridPoint(item)
		if !ok || p.Column < 0 || p.Row < 0 {
			continue
		}
		cell := board.GridCell{Column: int(p.Column), Row: int(p.Row)}
		if seen[cell] {
			continue
		}
		seen[cell] = true
		out = append(out, cell)
	}
	return out
}

// Drawing canonicalizes freehand ink; fewer than two valid points drops it.
func Drawing(v any) (board.Drawing, bool) {
	raw, ok := object(v)
	if !ok {
		return board.Drawing{}, false
	}
	id := textOf(raw, "id")
	if id == "" {
		return board.Drawing{}, false
	}
	items, _ := list(raw["points"])
	points := make([]board.DrawPoint, 0, min(len(items), drawingMaxPoints))
	for _, item := range items {
		if len(points) == drawingMaxPoints {
			break
		}
		p, ok := gridPoint(item)
		if !ok {
			continue
		}
		points = append(points, board.DrawPoint{Column: p.Column, Row: p.Row})
	}
	if len(points) < drawingMinPoints {
		return board.Drawing{}, false
	}
	color := textOf(raw, "color")
	if color == "" {
		color = defaultInkColor
	}
	return board.Drawing{
		ID:           id,
		Points:       points,
		Color:        color,
		StrokeWidth:  clampFloat(numberOf(raw, strokeWidthDef, "strokeWidth"), strokeWidthMin, strokeWidthMax),
		LastModified: Timestamp(raw),
		Authorship:   authorship(raw),
	}, true
}

// Mask canonicalizes a mask, discarding degenerate polygons.
func Mask(v any) board.Mask {
	m := board.Mask{Polygons: []board.Polygon{}}
	raw, ok := object(v)
	if !ok {
		return m
	}
	m.Visible = boolOf(raw, false, "visible")
	polys, _ := list(raw["polygons"])
	for _, poly := range polys {
		points, _ := list(poly)
		out := make(board.Polygon, 0, len(points))
		for _, pt := range points {
			if p, ok := gridPoint(pt); ok {
				out = append(out, p)
			}
		}
		if len(out) >= polygonMinPoints {
			m.Polygons = append(m.Polygons, out)
		}
	}
	return m
}
