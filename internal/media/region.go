package media

// Region is a rectangle in a normalized coordinate space with the
// origin at the top left and both axes in [0, 1]. Detected regions
// arrive in the metadata stream's coordinate space and are mapped to
// the video frame's space before dispatch.
type Region struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Scaled maps the normalized region into a width by height pixel
// space.
func (r Region) Scaled(width, height float64) Region {
	return Region{
		X: r.X * width,
		Y: r.Y * height,
		W: r.W * width,
		H: r.H * height,
	}
}

// Mirrored flips the region horizontally within the unit space, as a
// front facing camera preview does.
func (r Region) Mirrored() Region {
	return Region{
		X: 1 - r.X - r.W,
		Y: r.Y,
		W: r.W,
		H: r.H,
	}
}
