package strat

import "stratscan/pkg/model"

// PatternShape describes one reversal pattern as a label sequence,
// oldest bar first. Direction is the trailing directional label.
type PatternShape struct {
	Name      string
	Sequence  []model.Label
	Direction model.Label
}

// Three-bar shapes are tried before two-bar shapes so that a two-bar
// match never shadows a richer three-bar structure ending on the same
// bar. Within each table the first match wins.
var threeBarShapes = []PatternShape{
	{Name: "3-1-2u", Sequence: []model.Label{model.LabelOutside, model.LabelInside, model.LabelTwoUp}, Direction: model.LabelTwoUp},
	{Name: "3-1-2d", Sequence: []model.Label{model.LabelOutside, model.LabelInside, model.LabelTwoDown}, Direction: model.LabelTwoDown},
	{Name: "2u-1-2d", Sequence: []model.Label{model.LabelTwoUp, model.LabelInside, model.LabelTwoDown}, Direction: model.LabelTwoDown},
	{Name: "2d-1-2u", Sequence: []model.Label{model.LabelTwoDown, model.LabelInside, model.LabelTwoUp}, Direction: model.LabelTwoUp},
}

var twoBarShapes = []PatternShape{
	{Name: "2u-2d", Sequence: []model.Label{model.LabelTwoUp, model.LabelTwoDown}, Direction: model.LabelTwoDown},
	{Name: "2d-2u", Sequence: []model.Label{model.LabelTwoDown, model.LabelTwoUp}, Direction: model.LabelTwoUp},
}

// Shapes returns every known reversal shape in match order
func Shapes() []PatternShape {
	shapes := make([]PatternShape, 0, len(threeBarShapes)+len(twoBarShapes))
	shapes = append(shapes, threeBarShapes...)
	shapes = append(shapes, twoBarShapes...)
	return shapes
}

// MatchAt reports the reversal shape whose sequence ends at index i,
// if any. The three-bar window labels[i-2:i+1] is checked first, then
// the two-bar window labels[i-1:i+1].
func MatchAt(labels []model.Label, i int) (PatternShape, bool) {
	if i >= 2 {
		if shape, ok := matchWindow(threeBarShapes, labels[i-2:i+1]); ok {
			return shape, true
		}
	}
	if i >= 1 {
		if shape, ok := matchWindow(twoBarShapes, labels[i-1:i+1]); ok {
			return shape, true
		}
	}
	return PatternShape{}, false
}

func matchWindow(shapes []PatternShape, window []model.Label) (PatternShape, bool) {
	for _, shape := range shapes {
		if len(shape.Sequence) != len(window) {
			continue
		}
		matched := true
		for j, want := range shape.Sequence {
			if window[j] != want {
				matched = false
				break
			}
		}
		if matched {
			return shape, true
		}
	}
	return PatternShape{}, false
}
