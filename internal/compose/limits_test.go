package compose

import (
	"errors"
	"testing"
)

func TestCheckCount(t *testing.T) {
	tests := []struct {
		n       int
		wantErr bool
	}{
		{0, true},
		{1, true},
		{2, false},
		{20, false},
		{21, true},
	}

	for _, tt := range tests {
		err := CheckCount(tt.n)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckCount(%d) error = %v, wantErr %v", tt.n, err, tt.wantErr)
		}
		if err != nil {
			var ice *InputCountError
			if !errors.As(err, &ice) || ice.Count != tt.n {
				t.Errorf("CheckCount(%d): got %v, want *InputCountError{%d}", tt.n, err, tt.n)
			}
		}
	}
}
