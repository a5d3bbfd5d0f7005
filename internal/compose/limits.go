package compose

import "fmt"

// Input count accepted by the hosts. Compose itself accepts any count.
const (
	MinImages = 2
	MaxImages = 20
)

// InputCountError reports a request with too few or too many images.
type InputCountError struct {
	Count int
}

func (e *InputCountError) Error() string {
	return fmt.Sprintf("select between %d and %d images, got %d", MinImages, MaxImages, e.Count)
}

// CheckCount returns an *InputCountError if n is outside [MinImages, MaxImages].
func CheckCount(n int) error {
	if n < MinImages || n > MaxImages {
		return &InputCountError{Count: n}
	}
	return nil
}
