package server

import "github.com/ironsheep/image-merge-mcp/internal/compose"

// MergeRequest carries the arguments shared by every merge entry point.
// Nil pointers and empty strings fall back to the Config defaults.
//
// Images is not form-bound: multipart hosts mix uploaded files and text
// locators under the same key and assemble the list themselves.
type MergeRequest struct {
	Images     []string `json:"images" form:"-"`
	Layout     string   `json:"layout" form:"layout"`
	Gap        *int     `json:"gap" form:"gap"`
	MaxSize    *int     `json:"max_size" form:"max_size"`
	Preview    bool     `json:"preview" form:"preview"`
	Background *string  `json:"background" form:"background"`
	Format     string   `json:"format" form:"format"`
	Quality    float64  `json:"quality" form:"quality"`
	Filter     string   `json:"filter" form:"filter"`
	OutputPath string   `json:"output_path" form:"-"`
}

// MergeOptions resolves r against the config defaults and validates every
// named value. It does not check the image count; see compose.CheckCount.
func (c Config) MergeOptions(r *MergeRequest) (compose.Mode, compose.Options, error) {
	mode, err := compose.ParseMode(r.Layout)
	if err != nil {
		return 0, compose.Options{}, err
	}

	opts := compose.DefaultOptions()
	opts.Gap = c.Gap
	opts.MaxPixels = c.MaxCanvasPixels
	opts.MaxSize = c.FinalMaxSize
	if r.Preview {
		opts.MaxSize = c.PreviewMaxSize
	}
	if r.Gap != nil {
		opts.Gap = *r.Gap
	}
	if r.MaxSize != nil {
		opts.MaxSize = *r.MaxSize
	}

	bgName := c.Background
	if r.Background != nil {
		bgName = *r.Background
	}
	bg, err := compose.ParseColor(bgName)
	if err != nil {
		return 0, compose.Options{}, err
	}
	opts.Background = bg

	if opts.Format, err = compose.ParseFormat(r.Format); err != nil {
		return 0, compose.Options{}, err
	}
	if r.Quality > 0 {
		opts.Quality = r.Quality
	}
	if _, err := compose.ParseFilter(r.Filter); err != nil {
		return 0, compose.Options{}, err
	}
	if r.Filter != "" {
		opts.Filter = r.Filter
	}

	return mode, opts, nil
}
