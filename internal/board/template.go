package board

import (
	"encoding/json"
	"fmt"
)

type TemplateKind string

const (
	TemplateCircle    TemplateKind = "circle"
	TemplateRectangle TemplateKind = "rectangle"
	TemplateWall      TemplateKind = "wall"
)

// GridPoint is a position in fractional grid units.
type GridPoint struct {
	Column float64 `json:"column"`
	Row    float64 `json:"row"`
}

// GridCell is a whole grid square.
type GridCell struct {
	Column int `json:"column"`
	Row    int `json:"row"`
}

// Shape is the geometry of a template. Exactly one variant per kind.
type Shape interface {
	Kind() TemplateKind
	clone() Shape
}

type Circle struct {
	Center GridPoint
	Radius float64
}

type Rectangle struct {
	Start       GridPoint
	Length      float64
	Width       float64
	Rotation    float64
	Orientation string
}

type Wall struct {
	Squares []GridCell
}

func (Circle) Kind() TemplateKind    { return TemplateCircle }
func (Rectangle) Kind() TemplateKind { return TemplateRectangle }
func (Wall) Kind() TemplateKind      { return TemplateWall }

func (c Circle) clone() Shape    { return c }
func (r Rectangle) clone() Shape { return r }
func (w Wall) clone() Shape      { return Wall{Squares: append([]GridCell(nil), w.Squares...)} }

// Template is an area-of-effect shape drawn on a scene.
type Template struct {
	ID           string
	Color        string
	Shape        Shape
	LastModified int64
	Authorship
}

func (t Template) Key() string                      { return t.ID }
func (t Template) Timestamp() int64                 { return t.LastModified }
func (t Template) Author() Authorship               { return t.Authorship }
func (t Template) WithAuthor(a Authorship) Template { t.Authorship = a; return t }

func (t Template) Protect(from Template) Template {
	t.Authorship = from.Authorship
	return t
}

func (t Template) Demote() Template {
	t.AuthorIsGM = false
	if t.AuthorRole == string(RoleGM) {
		t.AuthorRole = ""
	}
	return t
}

func (t Template) Clone() Template {
	if t.Shape != nil {
		t.Shape = t.Shape.clone()
	}
	return t
}

type templateWire struct {
	ID           string       `json:"id"`
	Type         TemplateKind `json:"type"`
	Color        string       `json:"color,omitempty"`
	Center       *GridPoint   `json:"center,omitempty"`
	Radius       *float64     `json:"radius,omitempty"`
	Start        *GridPoint   `json:"start,omitempty"`
	Length       *float64     `json:"length,omitempty"`
	Width        *float64     `json:"width,omitempty"`
	Rotation     *float64     `json:"rotation,omitempty"`
	Orientation  string       `json:"orientation,omitempty"`
	Squares      []GridCell   `json:"squares,omitempty"`
	LastModified int64        `json:"_lastModified"`
	Authorship
}

func (t Template) MarshalJSON() ([]byte, error) {
	w := templateWire{
		ID:           t.ID,
		Color:        t.Color,
		LastModified: t.LastModified,
		Authorship:   t.Authorship,
	}
	switch s := t.Shape.(type) {
	case Circle:
		w.Type = TemplateCircle
		w.Center = &s.Center
		w.Radius = &s.Radius
	case Rectangle:
		w.Type = TemplateRectangle
		w.Start = &s.Start
		w.Length = &s.Length
		w.Width = &s.Width
		w.Rotation = &s.Rotation
		w.Orientation = s.Orientation
	case Wall:
		w.Type = TemplateWall
		w.Squares = s.Squares
		if w.Squares == nil {
			w.Squares = []GridCell{}
		}
	default:
		return nil, fmt.Errorf("template %q: missing shape", t.ID)
	}
	return json.Marshal(w)
}

func (t *Template) UnmarshalJSON(data []byte) error {
	var w templateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Template{
		ID:           w.ID,
		Color:        w.Color,
		LastModified: w.LastModified,
		Authorship:   w.Authorship,
	}
	switch w.Type {
	case TemplateCircle:
		c := Circle{Radius: deref(w.Radius)}
		if w.Center != nil {
			c.Center = *w.Center
		}
		out.Shape = c
	case TemplateRectangle:
		r := Rectangle{
			Length:      deref(w.Length),
			Width:       deref(w.Width),
			Rotation:    deref(w.Rotation),
			Orientation: w.Orientation,
		}
		if w.Start != nil {
			r.Start = *w.Start
		}
		out.Shape = r
	case TemplateWall:
		out.Shape = Wall{Squares: w.Squares}
	default:
		return fmt.Errorf("template %q: unknown type %q", w.ID, w.Type)
	}
	*t = out
	return nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
