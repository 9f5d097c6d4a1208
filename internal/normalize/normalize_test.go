package normalize

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/vtt-board-sync/internal/apperr"
	"github.com/DoyleJ11/vtt-board-sync/internal/board"
)

// decode parses a JSON literal the way the HTTP layer does.
func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		in     any
		want   bool
		wantOK bool
	}{
		{true, true, true},
		{false, false, true},
		{1.0, true, true},
		{0.0, false, true},
		{2.0, false, false},
		{"yes", true, true},
		{"ON", true, true},
		{" true ", true, true},
		{"1", true, true},
		{"no", false, true},
		{"0", false, true},
		{"false", false, true},
		{"maybe", false, false},
		{nil, false, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%v", tc.in), func(t *testing.T) {
			got, ok := Truthy(tc.in)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHidden_AliasPriority(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{"hidden true", `{"hidden":true}`, true},
		{"isHidden true", `{"isHidden":true}`, true},
		{"flags hidden", `{"flags":{"hidden":true}}`, true},
		{"hidden yes", `{"hidden":"yes"}`, true},
		{"hidden false", `{"hidden":false}`, false},
		{"hidden zero", `{"hidden":0}`, false},
		{"hidden no", `{"hidden":"no"}`, false},
		{"explicit false beats stale isHidden", `{"hidden":false,"isHidden":true}`, false},
		{"unrecognized falls through", `{"hidden":"perhaps","isHidden":1}`, true},
		{"absent", `{}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Hidden(decode(t, tc.raw)))
		})
	}
}

func TestGMAuthored_MarkerLocations(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{"authorIsGm", `{"authorIsGm":true}`, true},
		{"gm_only string", `{"gm_only":"1"}`, true},
		{"gmAuthored", `{"gmAuthored":true}`, true},
		{"role gm", `{"role":"GM"}`, true},
		{"source gm", `{"source":"gm"}`, true},
		{"metadata flag", `{"metadata":{"authorIsGm":true}}`, true},
		{"flags role", `{"flags":{"ownerRole":"gm"}}`, true},
		{"meta nested twice", `{"meta":{"flags":{"isGm":true}}}`, true},
		{"too deep", `{"meta":{"flags":{"metadata":{"gm":true}}}}`, false},
		{"player role", `{"authorRole":"player"}`, false},
		{"false flag", `{"authorIsGm":false}`, false},
		{"unrelated nesting", `{"extra":{"gm":true}}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, GMAuthored(decode(t, tc.raw)))
		})
	}
}

func TestPlacement_CanonicalizesAliases(t *testing.T) {
	p, ok := Placement(decode(t, `{
		"id":" t1 ", "col": 3, "row": 5, "width": 0, "size": "large",
		"team": "ENEMY", "isHidden": "on", "lastModified": 1700,
		"hp": 12, "maxStamina": 20,
		"aura": {"enabled": true, "radius": 99, "color": "#0f0"},
		"metadata": {"monster": {"name": "Goblin"}, "monsterId": 42, "authorIsGm": true, "note": "x"}
	}`))
	require.True(t, ok)
	assert.Equal(t, "t1", p.ID)
	assert.Equal(t, 3, p.Column)
	assert.Equal(t, 5, p.Row)
	assert.Equal(t, 1, p.Width)
	assert.Equal(t, 1, p.Height)
	assert.Equal(t, "large", p.SizeOverride)
	assert.Equal(t, board.TeamEnemy, p.CombatTeam)
	assert.True(t, p.Hidden)
	assert.Equal(t, int64(1700), p.LastModified)
	require.NotNil(t, p.Stamina)
	assert.Equal(t, 12, *p.Stamina)
	assert.Equal(t, 20, *p.StaminaMax)
	assert.Equal(t, 20, p.Aura.Radius)
	assert.Equal(t, "Goblin", p.Monster["name"])
	assert.Equal(t, "42", p.MonsterID)
	assert.True(t, p.AuthorIsGM)
	assert.Equal(t, "gm", p.AuthorRole)
	assert.Equal(t, map[string]any{"note": "x"}, p.Metadata)
}

func TestPlacement_DropsMalformed(t *testing.T) {
	for _, raw := range []any{nil, "t1", 3.0, map[string]any{"column": 1.0}, map[string]any{"id": "  "}} {
		_, ok := Placement(raw)
		assert.False(t, ok, "%v", raw)
	}
}

func TestPlacement_ClampsNegativeCoordinates(t *testing.T) {
	p, ok := Placement(decode(t, `{"id":"a","column":-4,"row":"7","team":"wizard"}`))
	require.True(t, ok)
	assert.Equal(t, 0, p.Column)
	assert.Equal(t, 7, p.Row)
	assert.Equal(t, board.TeamNone, p.CombatTeam)
}

func TestTimestamp_AliasOrder(t *testing.T) {
	assert.Equal(t, int64(3), Timestamp(decode(t, `{"_lastModified":3,"lastModified":2,"updatedAt":1}`)))
	assert.Equal(t, int64(2), Timestamp(decode(t, `{"lastModified":2,"updatedAt":1}`)))
	assert.Equal(t, int64(1), Timestamp(decode(t, `{"updatedAt":1}`)))
	assert.Equal(t, int64(0), Timestamp(decode(t, `{}`)))
}

func TestTemplate_Variants(t *testing.T) {
	circle, ok := Template(decode(t, `{"id":"c","type":"Circle","center":{"column":2,"row":3},"radius":4}`))
	require.True(t, ok)
	assert.Equal(t, board.Circle{Center: board.GridPoint{Column: 2, Row: 3}, Radius: 4}, circle.Shape)

	rect, ok := Template(decode(t, `{"id":"r","type":"rectangle","start":{"column":1,"row":1},"length":6,"width":2,"rotation":450,"orientation":"sideways"}`))
	require.True(t, ok)
	assert.Equal(t, board.Rectangle{Start: board.GridPoint{Column: 1, Row: 1}, Length: 6, Width: 2, Rotation: 90, Orientation: "horizontal"}, rect.Shape)

	wall, ok := Template(decode(t, `{"id":"w","squares":[{"column":1,"row":1},{"column":1,"row":1},{"column":-1,"row":0},{"column":2,"row":1}]}`))
	require.True(t, ok)
	assert.Equal(t, board.Wall{Squares: []board.GridCell{{Column: 1, Row: 1}, {Column: 2, Row: 1}}}, wall.Shape)

	_, ok = Template(decode(t, `{"id":"x","type":"cone"}`))
	assert.False(t, ok)
	_, ok = Template(decode(t, `{"id":"w2","type":"wall","squares":[]}`))
	assert.False(t, ok)
}

func TestDrawing_Limits(t *testing.T) {
	_, ok := Drawing(decode(t, `{"id":"d","points":[{"column":1,"row":1}]}`))
	assert.False(t, ok, "single point drawing")

	d, ok := Drawing(decode(t, `{"id":"d","points":[{"x":1,"y":1},{"column":2.5,"row":2}],"strokeWidth":500}`))
	require.True(t, ok)
	assert.Equal(t, float64(50), d.StrokeWidth)
	assert.Equal(t, defaultInkColor, d.Color)
	assert.Equal(t, []board.DrawPoint{{Column: 1, Row: 1}, {Column: 2.5, Row: 2}}, d.Points)

	points := make([]any, drawingMaxPoints+50)
	for i := range points {
		points[i] = map[string]any{"column": float64(i), "row": 0.0}
	}
	d, ok = Drawing(map[string]any{"id": "long", "points": points, "strokeWidth": 0.0})
	require.True(t, ok)
	assert.Len(t, d.Points, drawingMaxPoints)
	assert.Equal(t, float64(strokeWidthMin), d.StrokeWidth)
}

func TestMask_DropsDegeneratePolygons(t *testing.T) {
	m := Mask(decode(t, `{"visible":true,"polygons":[
		[{"column":0,"row":0},{"column":1,"row":0}],
		[{"column":0,"row":0},{"column":1,"row":0},{"column":1,"row":1}],
		"junk"
	]}`))
	assert.True(t, m.Visible)
	assert.Len(t, m.Polygons, 1)
}

func TestGrid_Clamps(t *testing.T) {
	assert.Equal(t, 8, Grid(decode(t, `{"size":2}`)).Size)
	assert.Equal(t, 320, Grid(decode(t, `{"size":1000}`)).Size)
	g := Grid(nil)
	assert.Equal(t, gridSizeDef, g.Size)
	assert.True(t, g.Visible)
}

func TestPingRetention(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	var pings []board.Ping
	pings = append(pings, board.Ping{ID: "stale", CreatedAt: now.Add(-11 * time.Second).UnixMilli()})
	for i := 0; i < 10; i++ {
		pings = append(pings, board.Ping{ID: fmt.Sprintf("p%d", i), CreatedAt: now.Add(time.Duration(i-9) * time.Second).UnixMilli()})
	}

	kept := RetainPings(pings, now)
	require.Len(t, kept, PingCapacity)
	assert.Equal(t, "p2", kept[0].ID)
	assert.Equal(t, "p9", kept[len(kept)-1].ID)
}

func TestPing_Normalizes(t *testing.T) {
	now := time.UnixMilli(5_000)
	p, ok := Ping(decode(t, `{"sceneId":"s1","x":1.5,"y":-1,"type":"FOCUS"}`), now)
	require.True(t, ok)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 1.0, p.X)
	assert.Equal(t, 0.0, p.Y)
	assert.Equal(t, board.PingFocus, p.Type)
	assert.Equal(t, int64(5_000), p.CreatedAt)

	_, ok = Ping(decode(t, `{"x":0.5,"y":0.5}`), now)
	assert.False(t, ok)
}

func TestOverlay_LegacyMaskAndActiveLayer(t *testing.T) {
	o := Overlay(decode(t, `{"mapUrl":"/m.png","mask":{"visible":true,"polygons":[[{"column":0,"row":0},{"column":1,"row":0},{"column":1,"row":1}]]}}`))
	require.Len(t, o.Layers, 1)
	assert.Equal(t, "layer-1", o.ActiveLayerID)
	assert.True(t, o.Aggregate().Visible)

	o = Overlay(decode(t, `{"layers":[{"id":"a"},{"id":"a"},{"id":"b","visible":false}],"activeLayerId":"zzz"}`))
	require.Len(t, o.Layers, 2)
	assert.Equal(t, "a", o.ActiveLayerID)
}

func TestCombatPatch_ClampsAndAliases(t *testing.T) {
	p := CombatPatchFrom(decode(t, `{
		"active": true, "round": -3, "malice": -1, "sequence": 7,
		"activeTokenId": "t1", "completedIds": ["a","a","b"],
		"firstTeam": "Ally", "activeTeam": "ENEMY", "previousTeam": "goblins",
		"lock": {"holder": "u1", "combatantId": "t1", "lockedAt": 10},
		"turnEffect": {"type": "forced-turn", "combatantId": "t1"},
		"groups": [{"representativeId":"a","memberIds":["b"]},{"representativeId":"x","memberIds":[]}]
	}`))
	c := p.Apply(board.CombatState{})

	assert.True(t, c.Active)
	assert.Equal(t, 0, c.Round)
	assert.Equal(t, 0, c.Malice)
	assert.Equal(t, int64(7), c.Sequence)
	assert.Equal(t, "t1", c.ActiveCombatantID)
	assert.Equal(t, []string{"a", "b"}, c.CompletedCombatantIDs)
	assert.Equal(t, board.TeamAlly, c.StartingTeam)
	assert.Equal(t, board.TeamEnemy, c.CurrentTeam)
	assert.Equal(t, board.TeamNone, c.LastTeam)
	assert.Equal(t, board.PhaseActive, c.TurnPhase)
	require.NotNil(t, c.TurnLock)
	assert.Equal(t, "u1", c.TurnLock.HolderID)
	require.NotNil(t, c.LastEffect)
	assert.Equal(t, "forced-turn", c.LastEffect.Type)
	assert.Equal(t, []board.CombatGroup{{RepresentativeID: "a", MemberIDs: []string{"a", "b"}}}, c.Groups)
}

func TestCombatPatch_DerivesPhase(t *testing.T) {
	assert.Equal(t, board.PhaseIdle, CombatPatchFrom(nil).Apply(board.CombatState{}).TurnPhase)
	assert.Equal(t, board.PhasePick, CombatPatchFrom(decode(t, `{"active":true}`)).Apply(board.CombatState{}).TurnPhase)
	assert.Equal(t, board.PhasePick, CombatPatchFrom(decode(t, `{"active":true,"turnPhase":"bogus"}`)).Apply(board.CombatState{}).TurnPhase)
	assert.Equal(t, board.PhaseIdle, CombatPatchFrom(decode(t, `{"turnPhase":"IDLE","active":true,"activeCombatantId":"x"}`)).Apply(board.CombatState{}).TurnPhase)
}

func TestCombatPatch_NullClearsSubstructures(t *testing.T) {
	existing := board.CombatState{TurnLock: &board.TurnLock{HolderID: "u1"}, LastEffect: &board.TurnEffect{Type: "x"}}
	c := CombatPatchFrom(decode(t, `{"turnLock":null,"lastEffect":null}`)).Apply(existing)
	assert.Nil(t, c.TurnLock)
	assert.Nil(t, c.LastEffect)

	c = CombatPatchFrom(decode(t, `{"round":2}`)).Apply(existing)
	assert.NotNil(t, c.TurnLock)
	assert.NotNil(t, c.LastEffect)
}

// revealedCellsJSON returns the encoded revealedCells of a fog value.
func revealedCellsJSON(t *testing.T, fog board.FogOfWar) string {
	t.Helper()
	data, err := json.Marshal(fog)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	return string(raw["revealedCells"])
}

func cellsInput(n int) map[string]any {
	cells := map[string]any{}
	for i := 0; i < n; i++ {
		cells[board.CellKey(i%50, i/50)] = true
	}
	return cells
}

// Every call site that can produce an empty cell map must encode it as {}.
func TestFogEncoding_AllCallSites(t *testing.T) {
	for _, n := range []int{0, 2, 1000} {
		t.Run(fmt.Sprintf("FogOfWar/%d", n), func(t *testing.T) {
			fog := FogOfWar(map[string]any{"enabled": true, "revealedCells": cellsInput(n)})
			got := revealedCellsJSON(t, fog)
			assert.Equal(t, byte('{'), got[0])
			assert.Len(t, fog.RevealedCells, n)
		})
		t.Run(fmt.Sprintf("SceneConfig/%d", n), func(t *testing.T) {
			cfg := SceneConfig(map[string]any{"fogOfWar": map[string]any{"enabled": true, "revealedCells": cellsInput(n)}})
			assert.Equal(t, byte('{'), revealedCellsJSON(t, cfg.FogOfWar)[0])
		})
		t.Run(fmt.Sprintf("ParsePatch/%d", n), func(t *testing.T) {
			raw := map[string]any{"sceneState": map[string]any{
				"s1": map[string]any{"fogOfWar": map[string]any{"enabled": true, "revealedCells": cellsInput(n)}},
			}}
			p, err := ParsePatch(raw, time.Now())
			require.NoError(t, err)
			assert.Equal(t, byte('{'), revealedCellsJSON(t, p.SceneState["s1"].Config.FogOfWar)[0])
		})
	}

	emptyShapes := []string{
		`{"enabled":true,"revealedCells":{}}`,
		`{"enabled":true,"revealedCells":[]}`,
		`{"enabled":true,"revealedCells":{"0":true,"1":true}}`,
		`{"enabled":true,"revealedCells":{"":true}}`,
		`{"enabled":true}`,
		`{"enabled":true,"revealedCells":null}`,
	}
	for _, in := range emptyShapes {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, "{}", revealedCellsJSON(t, FogOfWar(decode(t, in))))
			assert.Equal(t, "{}", revealedCellsJSON(t, SceneConfig(map[string]any{"fogOfWar": decode(t, in)}).FogOfWar))
		})
	}
	assert.Equal(t, "{}", revealedCellsJSON(t, FogOfWar(nil)))
	assert.Equal(t, "{}", revealedCellsJSON(t, SceneConfig(nil).FogOfWar))
}

func TestCellSet_AcceptsListsAndPoints(t *testing.T) {
	cells := CellSet([]any{"3,4", " 5 , 6 ", "x,1", map[string]any{"column": 7.0, "row": 8.0}})
	assert.Equal(t, []string{"3,4", "5,6", "7,8"}, cells.Keys())

	cells = CellSet(map[string]any{"1,1": true, "2,2": false, "3,3": "yes", "-1,2": true})
	assert.Equal(t, []string{"1,1", "3,3"}, cells.Keys())
}

func TestParsePatch_TopLevelErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"placements list", `{"placements":[]}`},
		{"templates string", `{"templates":"x"}`},
		{"scene value scalar", `{"drawings":{"s1":5}}`},
		{"scene object with named keys", `{"placements":{"s1":{"a":{}}}}`},
		{"sceneState list", `{"sceneState":[]}`},
		{"pings object", `{"pings":{}}`},
		{"overlay list", `{"overlay":[]}`},
		{"activeSceneId object", `{"activeSceneId":{}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePatch(decode(t, tc.raw), time.Now())
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	_, err := ParsePatch(nil, time.Now())
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestParsePatch_DropsBadEntriesKeepsRest(t *testing.T) {
	p, err := ParsePatch(decode(t, `{
		"placements": {"s1": [{"id":"a","column":1}, {"column":2}, "junk", {"id":"b"}], "s2": {"0":{"id":"c"},"1":{"id":"d"}}},
		"drawings": {"s1": [{"id":"d1","points":[]}]},
		"_deltaOnly": "true", "_socketId": "sock-1", "_version": 4
	}`), time.Now())
	require.NoError(t, err)

	require.Len(t, p.Placements["s1"], 2)
	assert.Equal(t, "a", p.Placements["s1"][0].ID)
	assert.Equal(t, "b", p.Placements["s1"][1].ID)
	require.Len(t, p.Placements["s2"], 2)
	assert.Equal(t, "c", p.Placements["s2"][0].ID)
	assert.Empty(t, p.Drawings["s1"])
	assert.Equal(t, 3, p.Dropped)
	assert.True(t, p.DeltaOnly)
	assert.Equal(t, "sock-1", p.SocketID)
	require.NotNil(t, p.Version)
	assert.Equal(t, int64(4), *p.Version)
	assert.Equal(t, []string{FieldPlacements, FieldDrawings}, p.Fields())
}

func TestParsePatch_DuplicateIDsLastWins(t *testing.T) {
	p, err := ParsePatch(decode(t, `{"placements":{"s1":[{"id":"a","column":1},{"id":"a","column":2}]}}`), time.Now())
	require.NoError(t, err)
	require.Len(t, p.Placements["s1"], 1)
	assert.Equal(t, 2, p.Placements["s1"][0].Column)
}

func TestParsePatch_NullableFields(t *testing.T) {
	p, err := ParsePatch(decode(t, `{"activeSceneId":null,"mapUrl":"/map.png"}`), time.Now())
	require.NoError(t, err)
	assert.True(t, p.HasActiveScene)
	assert.Nil(t, p.ActiveSceneID)
	require.NotNil(t, p.MapURL)
	assert.Equal(t, "/map.png", *p.MapURL)
	assert.False(t, p.Empty())

	p, err = ParsePatch(decode(t, `{"unknown":1}`), time.Now())
	require.NoError(t, err)
	assert.True(t, p.Empty())
}
