package board

import "encoding/json"

// Polygon is a closed outline of at least three grid points.
type Polygon []GridPoint

// Mask hides or reveals regions of the map image.
type Mask struct {
	Visible  bool      `json:"visible"`
	Polygons []Polygon `json:"polygons"`
}

func (m Mask) Clone() Mask {
	polys := make([]Polygon, len(m.Polygons))
	for i, p := range m.Polygons {
		polys[i] = append(Polygon(nil), p...)
	}
	m.Polygons = polys
	return m
}

type OverlayLayer struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Visible bool    `json:"visible"`
	MapURL  *string `json:"mapUrl"`
	Mask    Mask    `json:"mask"`
}

// OverlayState is the board-wide overlay stack. Its aggregate mask is never
// stored; it is derived from the visible layers whenever it is encoded.
type OverlayState struct {
	MapURL        *string        `json:"mapUrl"`
	Layers        []OverlayLayer `json:"layers"`
	ActiveLayerID string         `json:"activeLayerId"`
}

// Aggregate unions the polygons of every visible layer.
func (o OverlayState) Aggregate() Mask {
	agg := Mask{Polygons: []Polygon{}}
	for _, layer := range o.Layers {
		if !layer.Visible || !layer.Mask.Visible {
			continue
		}
		agg.Visible = true
		agg.Polygons = append(agg.Polygons, layer.Mask.Clone().Polygons...)
	}
	return agg
}

func (o OverlayState) Clone() OverlayState {
	o.MapURL = cloneString(o.MapURL)
	layers := make([]OverlayLayer, len(o.Layers))
	for i, l := range o.Layers {
		l.MapURL = cloneString(l.MapURL)
		l.Mask = l.Mask.Clone()
		layers[i] = l
	}
	o.Layers = layers
	return o
}

type overlayWire OverlayState

func (o OverlayState) MarshalJSON() ([]byte, error) {
	layers := o.Layers
	if layers == nil {
		layers = []OverlayLayer{}
	}
	return json.Marshal(struct {
		overlayWire
		Layers []OverlayLayer `json:"layers"`
		Mask   Mask           `json:"mask"`
	}{overlayWire: overlayWire(o), Layers: layers, Mask: o.Aggregate()})
}

func (o *OverlayState) UnmarshalJSON(data []byte) error {
	var w overlayWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*o = OverlayState(w)
	return nil
}

type maskWire Mask

func (m Mask) MarshalJSON() ([]byte, error) {
	if m.Polygons == nil {
		m.Polygons = []Polygon{}
	}
	return json.Marshal(maskWire(m))
}
