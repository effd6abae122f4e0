package dom

// Viewport is the window size the geometry was captured under.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultViewport is the window the reference corpus was recorded with.
var DefaultViewport = Viewport{Width: 1680, Height: 960}

// Valid reports whether both dimensions are positive.
func (v Viewport) Valid() bool { return v.Width > 0 && v.Height > 0 }

// AboveFold reports whether g starts inside the first screen.
func (v Viewport) AboveFold(g Geometry) bool { return g.Top < v.Height }

// LeftHalf reports whether g starts in the left half of the window.
func (v Viewport) LeftHalf(g Geometry) bool { return g.Left < v.Width/2 }

// CenterRightBand reports whether g starts between one third and three
// quarters of the window width.
func (v Viewport) CenterRightBand(g Geometry) bool {
	return g.Left > v.Width/3 && g.Left < v.Width*3/4
}

// MiddleHeightBand reports whether g starts between one sixth and three
// quarters of the window height.
func (v Viewport) MiddleHeightBand(g Geometry) bool {
	return g.Top > v.Height/6 && g.Top < v.Height*3/4
}
