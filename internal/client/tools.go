package client

import (
	"github.com/google/uuid"

	"github.com/mayankSinghx/QuickShow/internal/element"
)

// Tool is what the pointer currently does. Drawing tools map onto
// element types; select drags existing elements and pan produces no
// element traffic at all.
type Tool string

const (
	ToolSelect    Tool = "select"
	ToolPan       Tool = "pan"
	ToolRectangle Tool = Tool(element.TypeRectangle)
	ToolEllipse   Tool = Tool(element.TypeEllipse)
	ToolArrow     Tool = Tool(element.TypeArrow)
	ToolFreehand  Tool = Tool(element.TypeFreehand)
	ToolText      Tool = Tool(element.TypeText)
)

func (t Tool) elementType() (element.Type, bool) {
	typ := element.Type(t)
	return typ, typ.Valid()
}

// Style applied to newly created elements
type Style struct {
	StrokeColor string
	FillColor   string
	StrokeWidth float64
}

func DefaultStyle() Style {
	return Style{
		StrokeColor: "#000000",
		FillColor:   "transparent",
		StrokeWidth: 2,
	}
}

// newElement starts a fresh element at version 1. Freehand strokes
// carry their origin as the first trace point.
func newElement(typ element.Type, x, y float64, style Style, now int64) element.Element {
	el := element.Element{
		ID:          uuid.NewString(),
		Type:        typ,
		X:           x,
		Y:           y,
		StrokeColor: style.StrokeColor,
		FillColor:   style.FillColor,
		StrokeWidth: style.StrokeWidth,
		Version:     1,
		UpdatedAt:   now,
	}
	if typ == element.TypeFreehand {
		el.Points = []element.Point{{X: x, Y: y}}
	}
	return el
}

// bump advances the local version lineage after a mutation.
func bump(el *element.Element, now int64) {
	el.Version++
	el.UpdatedAt = now
}
