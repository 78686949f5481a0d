package policy

// Request carries the raw tags of a render request.
type Request struct {
	Style       string
	Position    string
	Animation   string
	Coordinates *Coordinates
}

// Policy is the parsed, immutable rendering policy of one render.
type Policy struct {
	Style       Style
	Position    Position
	Animation   Animation
	Coordinates *Coordinates
}

// Resolve parses every tag of req.
func Resolve(req Request) (Policy, error) {
	style, err := ParseStyle(req.Style)
	if err != nil {
		return Policy{}, err
	}
	position, err := ParsePosition(req.Position)
	if err != nil {
		return Policy{}, err
	}
	animation, err := ParseAnimation(req.Animation)
	if err != nil {
		return Policy{}, err
	}
	var coords *Coordinates
	if req.Coordinates != nil {
		if err := req.Coordinates.Validate(); err != nil {
			return Policy{}, err
		}
		c := *req.Coordinates
		coords = &c
	}
	return Policy{Style: style, Position: position, Animation: animation, Coordinates: coords}, nil
}

// Anchor resolves the caption anchor for a frame.
func (p Policy) Anchor(width, height int) Anchor {
	return ResolveAnchor(p.Position, p.Coordinates, width, height)
}

// Profile resolves the requested style profile for a frame.
func (p Policy) Profile(width int) StyleProfile {
	return ResolveStyle(p.Style, width)
}
