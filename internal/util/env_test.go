package util

import "testing"

func TestGetEnv(t *testing.T) {
	t.Setenv("HEALTHBOOK_TEST_VAR", "set")
	if got := GetEnv("HEALTHBOOK_TEST_VAR", "default"); got != "set" {
		t.Errorf("expected set value, got %q", got)
	}
	if got := GetEnv("HEALTHBOOK_TEST_UNSET", "default"); got != "default" {
		t.Errorf("expected default, got %q", got)
	}
}

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"off", true, false},
		{"0", true, false},
		{"garbage", true, true},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Setenv("HEALTHBOOK_TEST_BOOL", tt.value)
		if got := ParseBoolEnv("HEALTHBOOK_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("HEALTHBOOK_TEST_INT", "42")
	if got := ParseIntEnv("HEALTHBOOK_TEST_INT", 7); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	t.Setenv("HEALTHBOOK_TEST_INT", "not-a-number")
	if got := ParseIntEnv("HEALTHBOOK_TEST_INT", 7); got != 7 {
		t.Errorf("expected default 7, got %d", got)
	}
	t.Setenv("HEALTHBOOK_TEST_INT", "")
	if got := ParseIntEnv("HEALTHBOOK_TEST_INT", 7); got != 7 {
		t.Errorf("expected default 7 for empty, got %d", got)
	}
}
