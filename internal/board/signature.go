package board

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

// Signature fingerprints the authored content of the board. Metadata and
// pings are excluded so that two boards with equal content compare equal
// regardless of who wrote them last.
func (b BoardState) Signature() (string, error) {
	content := struct {
		ActiveSceneID *string                `json:"activeSceneId"`
		MapURL        *string                `json:"mapUrl"`
		Placements    map[string][]Placement `json:"placements"`
		Templates     map[string][]Template  `json:"templates"`
		Drawings      map[string][]Drawing   `json:"drawings"`
		SceneState    map[string]SceneConfig `json:"sceneState"`
		Overlay       OverlayState           `json:"overlay"`
	}{b.ActiveSceneID, b.MapURL, b.Placements, b.Templates, b.Drawings, b.SceneState, b.Overlay}
	data, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
