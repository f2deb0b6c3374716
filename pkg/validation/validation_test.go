package validation

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestValidateEccentricity(t *testing.T) {
	tests := []struct {
		name    string
		e       float64
		wantErr bool
	}{
		{"circular", 0, false},
		{"earth", 0.0167, false},
		{"nearly parabolic", 0.9999, false},
		{"parabolic", 1, true},
		{"negative", -0.1, true},
		{"NaN", math.NaN(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEccentricity(tt.e)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEccentricity(%v) error = %v, wantErr %v", tt.e, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidNumber) {
				t.Errorf("ValidateEccentricity(%v) error = %v, should wrap ErrInvalidNumber", tt.e, err)
			}
		})
	}
}

func TestValidateSemiMajorAxisAU(t *testing.T) {
	tests := []struct {
		name    string
		au      float64
		wantErr bool
	}{
		{"one AU", 1, false},
		{"moon orbit", 0.00257188153, false},
		{"zero", 0, true},
		{"negative", -1, true},
		{"NaN", math.NaN(), true},
		{"infinite", math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateSemiMajorAxisAU(tt.au); (err != nil) != tt.wantErr {
				t.Errorf("ValidateSemiMajorAxisAU(%v) error = %v, wantErr %v", tt.au, err, tt.wantErr)
			}
		})
	}
}

func TestValidateCentralMass(t *testing.T) {
	tests := []struct {
		name     string
		mantissa float64
		exponent int
		wantErr  bool
	}{
		{"sun", 1.989, 30, false},
		{"earth", 5.972, 24, false},
		{"zero mantissa", 0, 30, true},
		{"negative mantissa", -1, 30, true},
		{"overflow", 9, 400, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateCentralMass(tt.mantissa, tt.exponent); (err != nil) != tt.wantErr {
				t.Errorf("ValidateCentralMass(%v, %v) error = %v, wantErr %v", tt.mantissa, tt.exponent, err, tt.wantErr)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		fn    func(string) string
		input string
		want  string
	}{
		{"decimal keeps digits and dot", SanitizeDecimal, "1.989", "1.989"},
		{"decimal strips letters", SanitizeDecimal, "5.97kg", "5.97"},
		{"decimal strips sign and exponent", SanitizeDecimal, "-1e3", "13"},
		{"digits strips dot", SanitizeDigits, "2.4", "24"},
		{"digits strips sign", SanitizeDigits, "-30", "30"},
		{"digits strips spaces", SanitizeDigits, " 3 0 ", "30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.input); got != tt.want {
				t.Errorf("sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseMantissa(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"1.989", 1.989, false},
		{" 5.972 ", 5.972, false},
		{"abc", 0, true},
		{"", 0, true},
		{"0", 0, true},
		{"1.2.3", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMantissa(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMantissa(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMantissa(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseExponent(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"30", 30, false},
		{"2x4", 24, false},
		{"-5", 5, false},
		{"", 0, true},
		{"e", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseExponent(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseExponent(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseExponent(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseSemiMajorAxisAU(t *testing.T) {
	if got, err := ParseSemiMajorAxisAU(" 1.0 "); err != nil || got != 1 {
		t.Errorf("ParseSemiMajorAxisAU(\" 1.0 \") = %v, %v; want 1, nil", got, err)
	}
	for _, input := range []string{"", "one", "0", "-2", "NaN"} {
		if _, err := ParseSemiMajorAxisAU(input); !errors.Is(err, ErrInvalidNumber) {
			t.Errorf("ParseSemiMajorAxisAU(%q) error = %v, want ErrInvalidNumber", input, err)
		}
	}
}

func TestNormalizePresetName(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        string
		wantErr     bool
		errContains string
	}{
		{name: "lowercase", input: "earth", want: "earth"},
		{name: "mixed case", input: " Moon ", want: "moon"},
		{name: "empty", input: "  ", wantErr: true, errContains: "cannot be empty"},
		{name: "too long", input: strings.Repeat("a", MaxPresetNameLen+1), wantErr: true, errContains: "too long"},
		{name: "path characters", input: "../etc", wantErr: true, errContains: "invalid characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePresetName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("NormalizePresetName() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("NormalizePresetName() error = %v, should contain %q", err, tt.errContains)
			}
			if got != tt.want {
				t.Errorf("NormalizePresetName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		wantErr     bool
		errContains string
	}{
		{name: "valid command", data: []byte(`{"type":"set_eccentricity","value":0.1}`)},
		{name: "too large", data: make([]byte, MaxMessageSize+1), wantErr: true, errContains: "too large"},
		{name: "malformed", data: []byte(`{"type":`), wantErr: true, errContains: "invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessage(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("ValidateMessage() error = %v, should contain %q", err, tt.errContains)
			}
		})
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(1, 3, time.Minute)
	defer rl.Close()

	for i := 0; i < 3; i++ {
		if !rl.Allow("client-1") {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}
	if rl.Allow("client-1") {
		t.Error("Request beyond burst should be denied")
	}
	if !rl.Allow("client-2") {
		t.Error("Other clients should have their own bucket")
	}
}

func TestRateLimiter_TokenRefill(t *testing.T) {
	rl := NewRateLimiter(20, 1, time.Minute)
	defer rl.Close()

	if !rl.Allow("c") {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow("c") {
		t.Fatal("second immediate request should be denied")
	}
	time.Sleep(100 * time.Millisecond)
	if !rl.Allow("c") {
		t.Error("request after refill should be allowed")
	}
}

func TestRateLimiter_ForgetAndIdleCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Hour)
	defer rl.Close()

	rl.Allow("a")
	rl.Allow("b")
	if rl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", rl.Len())
	}

	rl.Forget("a")
	if rl.Len() != 1 {
		t.Errorf("Len() after Forget = %d, want 1", rl.Len())
	}

	rl.removeIdleClients(time.Now().Add(2 * time.Hour))
	if rl.Len() != 0 {
		t.Errorf("Len() after idle cleanup = %d, want 0", rl.Len())
	}
}

func TestRateLimiter_CloseTwice(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Minute)
	rl.Close()
	rl.Close()
}
