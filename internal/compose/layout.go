package compose

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
)

// Mode selects how images are arranged on the output canvas.
type Mode int

const (
	// Horizontal places images left to right, all scaled to a common height.
	Horizontal Mode = iota
	// Vertical stacks images top to bottom, all scaled to a common width.
	Vertical
	// Grid places images row-major into square cells.
	Grid
)

var (
	ErrUnknownMode    = errors.New("unknown layout mode")
	ErrInvalidGap     = errors.New("gap must not be negative")
	ErrInvalidMaxSize = errors.New("max size must be positive")
	ErrEmptyImage     = errors.New("image has no pixels")
)

func (m Mode) String() string {
	switch m {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	case Grid:
		return "grid"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a case-insensitive mode name. The empty string selects
// Horizontal.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "horizontal":
		return Horizontal, nil
	case "vertical":
		return Vertical, nil
	case "grid":
		return Grid, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if m < Horizontal || m > Grid {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Placement is where one input image lands on the canvas.
type Placement struct {
	// Index is the position of the image in the input sequence.
	Index int `json:"index"`

	// Cell is the slot reserved for the image. For strip layouts it equals Rect.
	Cell image.Rectangle `json:"cell"`

	// Rect is the area the scaled image covers. It always lies inside Cell.
	Rect image.Rectangle `json:"rect"`
}

// Layout is the complete geometry of a merge, computed before any pixel is drawn.
type Layout struct {
	Mode   Mode `json:"mode"`
	Width  int  `json:"width"`
	Height int  `json:"height"`
	Gap    int  `json:"gap"`

	// Cols and Rows describe the arrangement: n×1 for Horizontal, 1×n for
	// Vertical, and the grid dimensions for Grid.
	Cols int `json:"cols"`
	Rows int `json:"rows"`

	// CellSize is the edge of a grid cell. Zero for strip layouts.
	CellSize int `json:"cell_size,omitempty"`

	Placements []Placement `json:"placements"`
}

// Empty reports whether the layout has nothing to draw.
func (l *Layout) Empty() bool {
	return l == nil || len(l.Placements) == 0
}

// MaxCanvasSide bounds each edge of a planned canvas.
const MaxCanvasSide = 1 << 20

// Plan computes the canvas size and the placement of every image.
//
// sizes holds the intrinsic size of each image in input order. An empty
// sizes slice yields an empty layout and no error. Strip layouts keep the
// scaled lengths fractional while laying out and floor the canvas total, so
// rounding never adds a pixel per image. Every placed image is at least one
// pixel on each axis, so the canvas of a non-empty layout is at least 1×1.
// A canvas edge beyond MaxCanvasSide fails with ErrCanvasTooLarge.
//
// For Grid, the cell edge is maxSize/cols regardless of the row count, so a
// grid with more rows than columns is taller than maxSize.
func Plan(sizes []image.Point, mode Mode, gap, maxSize int) (*Layout, error) {
	if gap < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGap, gap)
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxSize, maxSize)
	}
	for i, s := range sizes {
		if s.X <= 0 || s.Y <= 0 {
			return nil, fmt.Errorf("%w: image %d is %dx%d", ErrEmptyImage, i, s.X, s.Y)
		}
	}
	if len(sizes) == 0 {
		return &Layout{Mode: mode, Gap: gap}, nil
	}

	switch mode {
	case Horizontal:
		return planHorizontal(sizes, gap, maxSize)
	case Vertical:
		return planVertical(sizes, gap, maxSize)
	case Grid:
		return planGrid(sizes, gap, maxSize)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}
}

func planHorizontal(sizes []image.Point, gap, maxSize int) (*Layout, error) {
	baseHeight := 0
	for _, s := range sizes {
		baseHeight = max(baseHeight, s.Y)
	}
	baseHeight = min(baseHeight, maxSize)

	lengths := make([]float64, len(sizes))
	for i, s := range sizes {
		lengths[i] = float64(s.X) * float64(baseHeight) / float64(s.Y)
	}
	spans, width, err := stripSpans(lengths, gap)
	if err != nil {
		return nil, err
	}
	if err := checkCanvas(float64(width), float64(baseHeight)); err != nil {
		return nil, err
	}

	placements := make([]Placement, len(sizes))
	for i, sp := range spans {
		r := image.Rect(sp[0], 0, sp[1], baseHeight)
		placements[i] = Placement{Index: i, Cell: r, Rect: r}
	}

	return &Layout{
		Mode:       Horizontal,
		Width:      width,
		Height:     baseHeight,
		Gap:        gap,
		Cols:       len(sizes),
		Rows:       1,
		Placements: placements,
	}, nil
}

func planVertical(sizes []image.Point, gap, maxSize int) (*Layout, error) {
	baseWidth := 0
	for _, s := range sizes {
		baseWidth = max(baseWidth, s.X)
	}
	baseWidth = min(baseWidth, maxSize)

	lengths := make([]float64, len(sizes))
	for i, s := range sizes {
		lengths[i] = float64(s.Y) * float64(baseWidth) / float64(s.X)
	}
	spans, height, err := stripSpans(lengths, gap)
	if err != nil {
		return nil, err
	}
	if err := checkCanvas(float64(baseWidth), float64(height)); err != nil {
		return nil, err
	}

	placements := make([]Placement, len(sizes))
	for i, sp := range spans {
		r := image.Rect(0, sp[0], baseWidth, sp[1])
		placements[i] = Placement{Index: i, Cell: r, Rect: r}
	}

	return &Layout{
		Mode:       Vertical,
		Width:      baseWidth,
		Height:     height,
		Gap:        gap,
		Cols:       1,
		Rows:       len(sizes),
		Placements: placements,
	}, nil
}

// stripSpans lays fractional lengths end to end with gap between them and
// returns the rounded [start, end) of each one plus the floored total.
// Each span is at least one pixel and ends inside the total.
func stripSpans(lengths []float64, gap int) ([][2]int, int, error) {
	sum := float64(gap) * float64(len(lengths)-1)
	for _, l := range lengths {
		sum += l
	}
	if sum > MaxCanvasSide {
		return nil, 0, fmt.Errorf("%w: strip of %d images is %.0f pixels long", ErrCanvasTooLarge, len(lengths), sum)
	}
	total := max(int(sum), 1)

	spans := make([][2]int, len(lengths))
	pos := 0.0
	for i, l := range lengths {
		start := clamp(int(math.Round(pos)), 0, total-1)
		end := clamp(int(math.Round(pos+l)), start+1, total)
		spans[i] = [2]int{start, end}
		pos += l + float64(gap)
	}
	return spans, total, nil
}

func planGrid(sizes []image.Point, gap, maxSize int) (*Layout, error) {
	n := len(sizes)
	cols := gridColumns(n)
	rows := (n + cols - 1) / cols

	cell := maxSize / cols
	if cell < 1 {
		return nil, fmt.Errorf("%w: %d is too small for %d columns", ErrInvalidMaxSize, maxSize, cols)
	}
	width := float64(cols)*float64(cell) + float64(gap)*float64(cols-1)
	height := float64(rows)*float64(cell) + float64(gap)*float64(rows-1)
	if err := checkCanvas(width, height); err != nil {
		return nil, err
	}

	placements := make([]Placement, n)
	for i, s := range sizes {
		col := i % cols
		row := i / cols
		x := col * (cell + gap)
		y := row * (cell + gap)

		scale := math.Min(float64(cell)/float64(s.X), float64(cell)/float64(s.Y))
		w := clamp(int(math.Round(float64(s.X)*scale)), 1, cell)
		h := clamp(int(math.Round(float64(s.Y)*scale)), 1, cell)
		offX := (cell - w) / 2
		offY := (cell - h) / 2

		placements[i] = Placement{
			Index: i,
			Cell:  image.Rect(x, y, x+cell, y+cell),
			Rect:  image.Rect(x+offX, y+offY, x+offX+w, y+offY+h),
		}
	}

	return &Layout{
		Mode:       Grid,
		Width:      int(width),
		Height:     int(height),
		Gap:        gap,
		Cols:       cols,
		Rows:       rows,
		CellSize:   cell,
		Placements: placements,
	}, nil
}

// checkCanvas rejects canvases with an edge beyond MaxCanvasSide.
func checkCanvas(width, height float64) error {
	if width > MaxCanvasSide || height > MaxCanvasSide {
		return fmt.Errorf("%w: %.0fx%.0f exceeds %d pixels per side", ErrCanvasTooLarge, width, height, MaxCanvasSide)
	}
	return nil
}

// gridColumns returns ceil(sqrt(n)) without floating point.
func gridColumns(n int) int {
	cols := 1
	for cols*cols < n {
		cols++
	}
	return cols
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
