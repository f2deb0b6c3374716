// pkg/units/units.go
package units

// Distance scale constants shared by the calculator and the animation path.
const (
	// AUInMeters is the length of one astronomical unit in meters.
	AUInMeters = 1.496e11
	// PixelToDistance is the number of meters represented by one pixel-space unit.
	PixelToDistance = 1e9
	// MaxPixels is the reference radius of the animated path in pixels.
	MaxPixels = 149.6
)

// AUToMeters converts astronomical units to meters
func AUToMeters(au float64) float64 {
	return au * AUInMeters
}

// MetersToAU converts meters to astronomical units
func MetersToAU(m float64) float64 {
	return m / AUInMeters
}

// MetersToPixels converts meters to pixel-space units
func MetersToPixels(m float64) float64 {
	return m / PixelToDistance
}

// PixelsToMeters converts pixel-space units to meters
func PixelsToMeters(px float64) float64 {
	return px * PixelToDistance
}

// AUToPixels converts astronomical units straight to pixel-space units
func AUToPixels(au float64) float64 {
	return MetersToPixels(AUToMeters(au))
}

// PixelsToAU converts pixel-space units straight to astronomical units
func PixelsToAU(px float64) float64 {
	return MetersToAU(PixelsToMeters(px))
}
