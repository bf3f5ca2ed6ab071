package version

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantMajor int
		wantMinor int
		wantPatch int
		wantPre   int
		wantErr   bool
	}{
		{"simple", "1.2.3", 1, 2, 3, 0, false},
		{"zero", "0.0.0", 0, 0, 0, 0, false},
		{"prerelease", "1.0.0-beta.1", 1, 0, 0, 2, false},
		{"build", "1.0.0+20241019", 1, 0, 0, 0, false},
		{"prerelease and build", "1.0.0-rc.1+sha.abc", 1, 0, 0, 2, false},
		{"hyphen in prerelease", "1.0.0-x-y-z", 1, 0, 0, 1, false},

		{"empty", "", 0, 0, 0, 0, true},
		{"two parts", "1.0", 0, 0, 0, 0, true},
		{"four parts", "1.0.0.0", 0, 0, 0, 0, true},
		{"leading v", "v1.0.0", 0, 0, 0, 0, true},
		{"negative", "-1.0.0", 0, 0, 0, 0, true},
		{"empty prerelease", "1.0.0-", 0, 0, 0, 0, true},
		{"empty identifier", "1.0.0-beta..1", 0, 0, 0, 0, true},
		{"invalid char", "1.0.0-beta_1", 0, 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				if !IsFormatError(err) {
					t.Errorf("Parse(%q) error = %T, want *FormatError", tt.input, err)
				}
				return
			}
			if v.Major != tt.wantMajor || v.Minor != tt.wantMinor || v.Patch != tt.wantPatch {
				t.Errorf("Parse(%q) = %d.%d.%d, want %d.%d.%d", tt.input,
					v.Major, v.Minor, v.Patch, tt.wantMajor, tt.wantMinor, tt.wantPatch)
			}
			if len(v.PreRelease) != tt.wantPre {
				t.Errorf("Parse(%q) pre-release = %v, want %d identifiers", tt.input, v.PreRelease, tt.wantPre)
			}
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1.2.3", "1.2.3"},
		{"1.0.0-alpha.1", "1.0.0-alpha.1"},
		{"1.0.0+build.5", "1.0.0+build.5"},
		{"1.0.0-rc.1+sha.abc", "1.0.0-rc.1+sha.abc"},
		// Equivalent numeric spellings normalize
		{"01.02.03", "1.2.3"},
		{"1.0.0-beta.01", "1.0.0-beta.1"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := MustParse(tt.input).String()
			if got != tt.expected {
				t.Errorf("Parse(%q).String() = %q, want %q", tt.input, got, tt.expected)
			}
			// Canonical text survives a second round trip unchanged
			if again := MustParse(got).String(); again != got {
				t.Errorf("second round trip = %q, want %q", again, got)
			}
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse should panic on invalid input")
		}
	}()
	MustParse("not-a-version")
}
