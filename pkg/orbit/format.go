package orbit

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Display thresholds: values outside [lowDisplayLimit, highDisplayLimit]
// switch to scientific notation.
const (
	highDisplayLimit = 999
	lowDisplayLimit  = 0.1
)

// FormatValue renders a derived value for display: two decimals in the normal
// range with no leading zero (".50"), scientific notation such as "1.23E3"
// above 999 or below 0.1.
func FormatValue(v float64) string {
	if v > highDisplayLimit || v < lowDisplayLimit {
		return formatScientific(v)
	}
	return strings.TrimPrefix(strconv.FormatFloat(v, 'f', 2, 64), "0")
}

// formatScientific writes one integer digit, at most two fraction digits with
// trailing zeros dropped, and an unpadded exponent.
func formatScientific(v float64) string {
	if v == 0 {
		return "0E0"
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}

	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	exp := int(math.Floor(math.Log10(v)))
	mantissa := math.Round(v/math.Pow(10, float64(exp))*100) / 100
	if mantissa >= 10 {
		mantissa /= 10
		exp++
	}

	return sign + strconv.FormatFloat(mantissa, 'f', -1, 64) + "E" + strconv.Itoa(exp)
}

// Labels are the UI-facing strings for a set of quantities.
type Labels struct {
	Period        string `json:"period"`
	MaxSpeed      string `json:"maxSpeed"`
	MinSpeed      string `json:"minSpeed"`
	Eccentricity  string `json:"eccentricity"`
	SemiMinorAxis string `json:"semiMinorAxis"`
}

// Labels formats q with the display policy.
func (q Quantities) Labels() Labels {
	return Labels{
		Period:        fmt.Sprintf("Period: %s yr", FormatValue(q.PeriodYears)),
		MaxSpeed:      fmt.Sprintf("Max Speed: %s km/s", FormatValue(q.MaxSpeedKms)),
		MinSpeed:      fmt.Sprintf("Min Speed: %s km/s", FormatValue(q.MinSpeedKms)),
		Eccentricity:  strconv.FormatFloat(q.Eccentricity, 'f', 4, 64),
		SemiMinorAxis: strconv.FormatFloat(q.SemiMinorAxisAU, 'g', -1, 64),
	}
}

// SpeedLabel formats the instantaneous speed readout.
func SpeedLabel(speedKms float64) string {
	return fmt.Sprintf("Speed: %s km/s", FormatValue(speedKms))
}
