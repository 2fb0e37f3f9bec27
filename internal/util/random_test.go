package util

import (
	"strings"
	"testing"
)

func isValidHex(s string) bool {
	for _, c := range s {
		if !strings.ContainsRune("0123456789ABCDEF", c) {
			return false
		}
	}
	return true
}

func TestGenerateRandomID(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		hexLength  int
		wantPrefix string
		wantLength int // expected total length: prefix + hexLength
	}{
		{
			name:       "claim ID format",
			prefix:     "CLM-",
			hexLength:  8,
			wantPrefix: "CLM-",
			wantLength: 12, // 4 + 8
		},
		{
			name:       "custom prefix",
			prefix:     "test_",
			hexLength:  16,
			wantPrefix: "test_",
			wantLength: 21, // 5 + 16
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateRandomID(tt.prefix, tt.hexLength)

			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("GenerateRandomID() = %v, want prefix %v", got, tt.wantPrefix)
			}
			if len(got) != tt.wantLength {
				t.Errorf("GenerateRandomID() length = %v, want %v", len(got), tt.wantLength)
			}
			hexPart := got[len(tt.wantPrefix):]
			if !isValidHex(hexPart) {
				t.Errorf("GenerateRandomID() hex part = %v is not valid hex", hexPart)
			}
		})
	}
}

func TestGenerateRandomHex(t *testing.T) {
	got := GenerateRandomHex(32)
	if len(got) != 32 {
		t.Errorf("GenerateRandomHex(32) length = %d", len(got))
	}
	if !isValidHex(got) {
		t.Errorf("GenerateRandomHex(32) = %v is not valid hex", got)
	}
	if GenerateRandomHex(0) != "" {
		t.Errorf("GenerateRandomHex(0) should be empty")
	}
	if GenerateRandomHex(-1) != "" {
		t.Errorf("GenerateRandomHex(-1) should be empty")
	}
}

func TestGenerateClaimID(t *testing.T) {
	id := GenerateClaimID()
	if !strings.HasPrefix(id, "CLM-") || len(id) != 12 {
		t.Errorf("GenerateClaimID() = %v, want CLM- prefix and length 12", id)
	}
	// Two IDs colliding is astronomically unlikely; catch obvious seeding bugs.
	if GenerateClaimID() == id {
		t.Errorf("consecutive claim IDs should differ")
	}
}
