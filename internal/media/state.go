package media

// VisualState is what the screen should show.
type VisualState int

const (
	Hidden VisualState = iota
	FadingIn
	Visible
	FadingOut
)

func (s VisualState) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case FadingIn:
		return "fading_in"
	case Visible:
		return "visible"
	case FadingOut:
		return "fading_out"
	default:
		return "unknown"
	}
}

func (s VisualState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PlayerState is consumed by the renderer.
type PlayerState struct {
	Visual     VisualState `json:"visual"`
	Brightness float64     `json:"brightness"`
}
