package model

// Position is a derived 2D coordinate for one node, valid only for the
// graph snapshot it was computed from.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
