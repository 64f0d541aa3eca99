package types

import "testing"

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		address string
		valid   bool
	}{
		{"0x1234567890123456789012345678901234567890", true},
		{"0xABCDEFabcdefABCDEFabcdefABCDEFabcdefABCD", true},
		{ZeroAddress, true},
		{"", false},
		{"0x123", false},
		{"1234567890123456789012345678901234567890", false},
		{"0x12345678901234567890123456789012345678901", false},
		{"0xg234567890123456789012345678901234567890", false},
	}

	for _, tt := range tests {
		if got := IsValidAddress(tt.address); got != tt.valid {
			t.Errorf("IsValidAddress(%q) = %v, want %v", tt.address, got, tt.valid)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	got := NormalizeAddress("0xABCDEFabcdefABCDEFabcdefABCDEFabcdefABCD")
	want := "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"
	if got != want {
		t.Errorf("NormalizeAddress = %s, want %s", got, want)
	}
}

func TestIsZeroAddress(t *testing.T) {
	if !IsZeroAddress(ZeroAddress) {
		t.Error("Expected the zero address to be recognized")
	}
	if !IsZeroAddress("0x0000000000000000000000000000000000000000") {
		t.Error("Expected literal zero address to be recognized")
	}
	if IsZeroAddress("0x1234567890123456789012345678901234567890") {
		t.Error("Expected a non-zero address to be rejected")
	}
}

func TestJobState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    JobState
		terminal bool
	}{
		{JobStateWaiting, false},
		{JobStateActive, false},
		{JobStateCompleted, true},
		{JobStateFailed, true},
	}

	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}

func TestJobState_IsValid(t *testing.T) {
	for _, state := range []JobState{JobStateWaiting, JobStateActive, JobStateCompleted, JobStateFailed} {
		if !state.IsValid() {
			t.Errorf("Expected %s to be valid", state)
		}
	}
	if JobState("archived").IsValid() {
		t.Error("Expected unknown state to be invalid")
	}
}
