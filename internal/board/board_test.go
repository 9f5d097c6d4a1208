package board

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellSet_EncodesAsObject(t *testing.T) {
	cases := []struct {
		name  string
		cells int
	}{
		{name: "empty", cells: 0},
		{name: "two cells", cells: 2},
		{name: "thousand cells", cells: 1000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fog := FogOfWar{Enabled: true, RevealedCells: CellSet{}}
			for i := 0; i < tc.cells; i++ {
				fog.RevealedCells[CellKey(i%40, i/40)] = true
			}

			data, err := json.Marshal(fog)
			require.NoError(t, err)

			var raw map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(data, &raw))
			require.NotEmpty(t, raw["revealedCells"])
			assert.Equal(t, byte('{'), raw["revealedCells"][0])

			var back FogOfWar
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Len(t, back.RevealedCells, tc.cells)
		})
	}
}

func TestCellSet_NilEncodesAsObject(t *testing.T) {
	data, err := json.Marshal(FogOfWar{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"enabled":false,"revealedCells":{}}`, string(data))
}

func TestCellSet_DecodesLegacyList(t *testing.T) {
	var fog FogOfWar
	require.NoError(t, json.Unmarshal([]byte(`{"enabled":true,"revealedCells":[]}`), &fog))
	assert.NotNil(t, fog.RevealedCells)
	assert.Empty(t, fog.RevealedCells)

	require.NoError(t, json.Unmarshal([]byte(`{"revealedCells":["1,2","bad"]}`), &fog))
	assert.Equal(t, []string{"1,2"}, fog.RevealedCells.Keys())

	data, err := json.Marshal(fog)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"revealedCells":{"1,2":true}`)
}

func TestEmptyBoard_EncodesCollectionsAsObjects(t *testing.T) {
	data, err := json.Marshal(Empty())
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, field := range []string{"placements", "templates", "drawings", "sceneState"} {
		assert.Equal(t, "{}", string(raw[field]), field)
	}
	assert.Equal(t, "[]", string(raw["pings"]))
}

func TestTemplate_TaggedUnionRoundTrip(t *testing.T) {
	in := []Template{
		{ID: "c1", Color: "#f00", Shape: Circle{Center: GridPoint{Column: 2, Row: 3}, Radius: 4}},
		{ID: "r1", Shape: Rectangle{Start: GridPoint{Column: 1, Row: 1}, Length: 6, Width: 1, Rotation: 90, Orientation: "horizontal"}},
		{ID: "w1", Shape: Wall{Squares: []GridCell{{Column: 1, Row: 1}, {Column: 1, Row: 2}}}},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out []Template
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestTemplate_UnknownTypeRejected(t *testing.T) {
	var tpl Template
	err := json.Unmarshal([]byte(`{"id":"x","type":"cone"}`), &tpl)
	assert.Error(t, err)
}

func TestOverlay_AggregateUnionsVisibleLayers(t *testing.T) {
	square := Polygon{{0, 0}, {0, 1}, {1, 1}}
	o := OverlayState{Layers: []OverlayLayer{
		{ID: "a", Visible: true, Mask: Mask{Visible: true, Polygons: []Polygon{square}}},
		{ID: "b", Visible: false, Mask: Mask{Visible: true, Polygons: []Polygon{square, square}}},
		{ID: "c", Visible: true, Mask: Mask{Visible: true, Polygons: []Polygon{square}}},
	}}

	agg := o.Aggregate()
	assert.True(t, agg.Visible)
	assert.Len(t, agg.Polygons, 2)

	data, err := json.Marshal(o)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "mask")

	var back OverlayState
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Len(t, back.Layers, 3)
}

func TestTeam_NullEncoding(t *testing.T) {
	data, err := json.Marshal(struct {
		T Team `json:"t"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":null}`, string(data))

	var v struct {
		T Team `json:"t"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"t":"wizard"}`), &v))
	assert.Equal(t, TeamNone, v.T)
}

func TestClone_IsDeep(t *testing.T) {
	b := Empty()
	b.Placements["s1"] = []Placement{{ID: "t1", Monster: map[string]any{"hp": 10.0}}}
	b.SceneState["s1"] = SceneConfig{FogOfWar: FogOfWar{RevealedCells: CellSet{"1,1": true}}}

	c := b.Clone()
	c.Placements["s1"][0].Column = 9
	c.Placements["s1"][0].Monster["hp"] = 1.0
	c.SceneState["s1"].FogOfWar.RevealedCells["2,2"] = true

	assert.Equal(t, 0, b.Placements["s1"][0].Column)
	assert.Equal(t, 10.0, b.Placements["s1"][0].Monster["hp"])
	assert.Len(t, b.SceneState["s1"].FogOfWar.RevealedCells, 1)
}

func TestSignature_IgnoresMetadata(t *testing.T) {
	a := Empty()
	a.Placements["s1"] = []Placement{{ID: "t1", Column: 1}}
	b := a.Clone()
	b.Metadata = Metadata{UpdatedBy: "someone", UpdatedAt: 99}

	sa, err := a.Signature()
	require.NoError(t, err)
	sb, err := b.Signature()
	require.NoError(t, err)
	assert.Equal(t, sa, sb)

	b.Placements["s1"][0].Column = 2
	sc, err := b.Signature()
	require.NoError(t, err)
	assert.NotEqual(t, sa, sc)
}
