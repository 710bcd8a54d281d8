package element

// The closed set of drawable element kinds
type Type string

const (
	TypeRectangle Type = "rectangle"
	TypeEllipse   Type = "ellipse"
	TypeArrow     Type = "arrow"
	TypeFreehand  Type = "freehand"
	TypeText      Type = "text"
)

// Reports whether t is one of the known element kinds
func (t Type) Valid() bool {
	switch t {
	case TypeRectangle, TypeEllipse, TypeArrow, TypeFreehand, TypeText:
		return true
	}
	return false
}

// A coordinate in room-local canvas space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// A single drawable object with versioned, conflict-resolved state.
// Version starts at 1 and is bumped on every mutation at the origin;
// UpdatedAt is unix milliseconds and only breaks version ties.
type Element struct {
	ID          string  `json:"id"`
	Type        Type    `json:"type"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Rotation    float64 `json:"rotation"`
	StrokeColor string  `json:"strokeColor"`
	FillColor   string  `json:"fillColor"`
	StrokeWidth float64 `json:"strokeWidth"`
	Points      []Point `json:"points,omitempty"`
	Text        string  `json:"text,omitempty"`
	Version     int64   `json:"version"`
	UpdatedAt   int64   `json:"updatedAt"`
}

// Immutable audit record of an accepted commit. Same fields as the
// element at the moment it was stored, plus the owning element id and
// a server-generated surrogate key.
type Version struct {
	ID        int64
	ElementID string
	Element
}

// A connected participant as supplied by the identity boundary
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
