package phone

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+91 98765 43210", "+919876543210"},
		{"9876543210", "+9876543210"},
		{"98-76-54-32-10", "+9876543210"},
		{"+91+9876543210", "+919876543210"},
		{"  +1 (555) 000-1234 ", "+15550001234"},
		{"0123456789", "0123456789"}, // leading zero: no "+" inferred
		{"12345", "12345"},           // too short for "+" inference
		{"+12345", "+12345"},
		{"", ""},
		{"abc", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"+91 98765 43210", "9876543210", "0123456789", "+1-555-000-1234", "garbage42"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestIsValid(t *testing.T) {
	valid := []string{"+919876543210", "9876543210", "+15550001234", "+123456789012345"}
	for _, p := range valid {
		if !IsValid(p) {
			t.Errorf("IsValid(%q) = false, want true", p)
		}
	}
	invalid := []string{"", "+0123456789", "0123456789", "123456789", "+1234567890123456", "+91 98765"}
	for _, p := range invalid {
		if IsValid(p) {
			t.Errorf("IsValid(%q) = true, want false", p)
		}
	}
}
