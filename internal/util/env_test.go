package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{" true ", false, true},
		{"maybe", true, true},
		{"maybe", false, false},
		{"", true, true},
		{"", false, false},
	}
	for _, tc := range cases {
		t.Setenv("CLAIMPIPE_TEST_BOOL", tc.value)
		if got := ParseBoolEnv("CLAIMPIPE_TEST_BOOL", tc.defaultValue); got != tc.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tc.value, tc.defaultValue, got, tc.want)
		}
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("CLAIMPIPE_TEST_VALUE", "set")
	if got := GetEnvOrDefault("CLAIMPIPE_TEST_VALUE", "fallback"); got != "set" {
		t.Errorf("GetEnvOrDefault = %q, want set", got)
	}
	t.Setenv("CLAIMPIPE_TEST_VALUE", "")
	if got := GetEnvOrDefault("CLAIMPIPE_TEST_VALUE", "fallback"); got != "fallback" {
		t.Errorf("GetEnvOrDefault = %q, want fallback", got)
	}
}
