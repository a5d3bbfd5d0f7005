package compose

import (
	"image/color"
	"testing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"", color.NRGBA{}, false},
		{"transparent", color.NRGBA{}, false},
		{"#FF0000", color.NRGBA{255, 0, 0, 255}, false},
		{"1e90ff", color.NRGBA{30, 144, 255, 255}, false},
		{"#fff", color.NRGBA{255, 255, 255, 255}, false},
		{"#00FF0080", color.NRGBA{0, 255, 0, 128}, false},
		{"#GGGGGG", color.NRGBA{}, true},
		{"#12345", color.NRGBA{}, true},
		{"#00FF00ZZ", color.NRGBA{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatColor(t *testing.T) {
	if got := FormatColor(color.NRGBA{255, 128, 0, 255}); got != "#FF8000" {
		t.Errorf("opaque: got %s, want #FF8000", got)
	}
	if got := FormatColor(color.NRGBA{0, 0, 255, 64}); got != "#0000FF40" {
		t.Errorf("translucent: got %s, want #0000FF40", got)
	}
}
