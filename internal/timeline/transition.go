package timeline

type TransitionKind string

const (
	TransitionCrossDissolve TransitionKind = "crossdissolve"
	TransitionFadeBlack     TransitionKind = "fadeblack"
	TransitionWipeLeft      TransitionKind = "wipeleft"
	TransitionWipeRight     TransitionKind = "wiperight"
	TransitionSlideUp       TransitionKind = "slideup"
	TransitionSlideDown     TransitionKind = "slidedown"
)

type TransitionEdge string

const (
	EdgeStart TransitionEdge = "start"
	EdgeEnd   TransitionEdge = "end"
)

// TransitionCurve shapes the blend factor over the transition window.
type TransitionCurve string

const (
	CurveLinear  TransitionCurve = "linear"
	CurveEaseIn  TransitionCurve = "easein"
	CurveEaseOut TransitionCurve = "easeout"
	CurveSmooth  TransitionCurve = "smooth"
)

// Transition is a time-bounded blend anchored to one edge of a clip. When
// the adjacent clip declares a transition at the same junction, the two are
// reconciled at composition time (larger duration wins).
type Transition struct {
	ID       string          `json:"id"`
	Kind     TransitionKind  `json:"kind"`
	Edge     TransitionEdge  `json:"edge"`
	Duration float64         `json:"duration"`
	Curve    TransitionCurve `json:"curve,omitempty"`
}

// Apply evaluates the curve at linear position x in [0,1].
func (c TransitionCurve) Apply(x float64) float64 {
	if x < 0 {
		x = 0
	}
	if x > 1 {
		x = 1
	}
	switch c {
	case CurveEaseIn:
		return x * x
	case CurveEaseOut:
		return 1 - (1-x)*(1-x)
	case CurveSmooth:
		return x * x * (3 - 2*x)
	default:
		return x
	}
}

func validTransitionKind(k TransitionKind) bool {
	switch k {
	case TransitionCrossDissolve, TransitionFadeBlack,
		TransitionWipeLeft, TransitionWipeRight,
		TransitionSlideUp, TransitionSlideDown:
		return true
	}
	return false
}
