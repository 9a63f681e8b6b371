package media

import "testing"

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    float64
		wantErr bool
	}{
		{"plain", "612.480000\n", 612.48, false},
		{"padded", "  30.5 ", 30.5, false},
		{"not available", "N/A\n", 0, true},
		{"empty", "", 0, true},
		{"garbage", "abc", 0, true},
		{"negative", "-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDuration(%q) error = %v, wantErr %v", tt.out, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.out, got, tt.want)
			}
		})
	}
}

func TestLastLine(t *testing.T) {
	if got := lastLine([]byte("a\nb\nNo such file\n")); got != "No such file" {
		t.Errorf("lastLine() = %q", got)
	}
	if got := lastLine(nil); got != "" {
		t.Errorf("lastLine(nil) = %q", got)
	}
}
