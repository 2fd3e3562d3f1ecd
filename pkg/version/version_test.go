package version

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr error
	}{
		{in: "1", want: Version{Major: 1, Precision: 1}},
		{in: "v1.16", want: Version{Major: 1, Minor: 16, Precision: 2}},
		{in: "v1.16.2", want: Version{Major: 1, Minor: 16, Patch: 2, Precision: 3}},
		{in: "0.10.1", want: Version{Minor: 10, Patch: 1, Precision: 3}},
		{in: "v1.31.4-3+a1b2c3", want: Version{Major: 1, Minor: 31, Patch: 4, Precision: 3, Extras: "-3+a1b2c3"}},
		{in: "1.2.3+build.7", want: Version{Major: 1, Minor: 2, Patch: 3, Precision: 3, Extras: "+build.7"}},
		{in: "", wantErr: ErrEmptyVersion},
		{in: "v", wantErr: ErrEmptyVersion},
		{in: "1.2.3.4", wantErr: ErrTooManyComponents},
		{in: "1..2", wantErr: ErrNonNumeric},
		{in: "a.b", wantErr: ErrNonNumeric},
		{in: "1.-2", wantErr: ErrNonNumeric},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	for in, want := range map[string]string{
		"1":        "1",
		"v1.2":     "1.2",
		"1.2.3-rc": "1.2.3",
	} {
		if got := MustParse(in).String(); got != want {
			t.Errorf("MustParse(%q).String() = %q, want %q", in, got, want)
		}
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.16.2", "1.16.2", 0},
		{"1.16", "1.16.9", 0},
		{"1.16.1", "1.16.2", -1},
		{"1.17.0", "1.16.9", 1},
		{"2", "1.99.99", 1},
		{"0.10.1", "0.9.5", 1},
	}
	for _, tt := range tests {
		if got := MustParse(tt.a).Compare(MustParse(tt.b)); got != tt.want {
			t.Errorf("%s.Compare(%s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompareDeployed(t *testing.T) {
	tests := []struct {
		desired, deployed string
		want              Drift
	}{
		{"v1.16.2", "v1.16.2", DriftNone},
		{"1.16.0", "1.15.3", DriftBehind},
		{"1.16.0", "1.17.0", DriftAhead},
		{"", "1.2.3", DriftNone},
		{"1.2.3", "", DriftUnknown},
		{"latest", "1.2.3", DriftUnknown},
	}
	for _, tt := range tests {
		if got := CompareDeployed(tt.desired, tt.deployed); got != tt.want {
			t.Errorf("CompareDeployed(%q, %q) = %s, want %s", tt.desired, tt.deployed, got, tt.want)
		}
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
