package httpapi

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/ironsheep/image-merge-mcp/internal/compose"
	"github.com/ironsheep/image-merge-mcp/internal/imaging"
	"github.com/ironsheep/image-merge-mcp/internal/server"
)

// maxUploadBytes caps a single uploaded image.
const maxUploadBytes = 64 << 20

// errLocalLocator rejects locators that would read the server's filesystem.
var errLocalLocator = errors.New("only uploaded files, data: URIs and http(s) URLs are accepted")

// Handler serves merge requests. Uploaded files are kept in a BlobStore and
// decoded once into a shared ImageCache, so a client re-sending the same files
// for every preview pays for decoding only the first time.
type Handler struct {
	cfg       server.Config
	blobs     *imaging.BlobStore
	cache     *imaging.ImageCache
	previewer *compose.Previewer
}

// NewHandler creates a Handler. The preview debounce is shared by all
// clients: a newer preview from anyone supersedes a pending one.
func NewHandler(cfg server.Config) *Handler {
	blobs := imaging.NewBlobStore()
	return &Handler{
		cfg:   cfg,
		blobs: blobs,
		cache: imaging.NewImageCache(
			imaging.WithResolver(&imaging.DefaultResolver{Blobs: blobs}),
			imaging.WithDecodeTimeout(cfg.DecodeTimeout),
			imaging.WithMaxPixels(cfg.MaxImagePixels),
		),
		previewer: compose.NewPreviewer(compose.DefaultPreviewDelay),
	}
}

// apiError carries the HTTP status a failure should be reported with.
type apiError struct {
	status int
	err    error
}

func (e *apiError) Error() string { return e.err.Error() }

func (e *apiError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &apiError{status: http.StatusBadRequest, err: err}
}

// statusFor maps an error to the HTTP status it is reported with.
func statusFor(err error) int {
	var ae *apiError
	var de *imaging.DecodeError
	switch {
	case errors.As(err, &ae):
		return ae.status
	case errors.As(err, &de):
		return http.StatusUnprocessableEntity
	case errors.Is(err, compose.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.Is(err, compose.ErrInvalidGap), errors.Is(err, compose.ErrInvalidMaxSize),
		errors.Is(err, compose.ErrCanvasTooLarge):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"cached_images": h.cache.Len(),
		"stored_blobs":  h.blobs.Len(),
	})
}

func (h *Handler) clearCache(c *gin.Context) {
	n := h.cache.Len()
	h.cache.Clear()
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}

// merge renders the final image and returns it as a download.
func (h *Handler) merge(c *gin.Context) {
	result, err := h.render(c, false)
	if err != nil {
		abortWithError(c, err)
		return
	}

	filename := result.Filename(time.Now())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, result.MimeType(), result.Data)
}

// preview renders at preview size through the debouncer and returns the
// image as a data: URI together with its geometry.
func (h *Handler) preview(c *gin.Context) {
	result, err := h.render(c, true)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"width":    result.Width,
		"height":   result.Height,
		"layout":   result.Layout,
		"data_uri": result.DataURI(),
	})
}

// render binds the request, loads its images and composes them. Previews go
// through the debouncer.
func (h *Handler) render(c *gin.Context, preview bool) (*compose.Result, error) {
	req, err := h.bind(c)
	if err != nil {
		return nil, err
	}
	req.Preview = preview

	if err := compose.CheckCount(len(req.Images)); err != nil {
		return nil, badRequest(err)
	}
	mode, opts, err := h.cfg.MergeOptions(req)
	if err != nil {
		return nil, badRequest(err)
	}

	ctx := c.Request.Context()
	if h.cfg.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.ToolTimeout)
		defer cancel()
	}

	start := time.Now()
	decoded, err := h.cache.Load(ctx, req.Images)
	if err != nil {
		return nil, err
	}

	images := make([]image.Image, len(decoded))
	for i, d := range decoded {
		images[i] = d.Image
	}

	var result *compose.Result
	if preview {
		result, err = h.previewer.Preview(ctx, images, mode, opts)
	} else {
		result, err = compose.Compose(images, mode, opts)
	}
	if h.cfg.Debug {
		log.Printf("%s %d images (%s) in %s (err=%v)", c.Request.URL.Path, len(images), mode, time.Since(start), err)
	}
	return result, err
}

// bind reads the merge arguments from a JSON body or a form. In a multipart
// form, uploaded files named "images" come first, in upload order, followed
// by any "images" text fields.
func (h *Handler) bind(c *gin.Context) (*server.MergeRequest, error) {
	var req server.MergeRequest
	if err := c.ShouldBind(&req); err != nil {
		return nil, badRequest(fmt.Errorf("invalid request: %w", err))
	}
	req.OutputPath = ""

	switch c.ContentType() {
	case binding.MIMEPOSTForm:
		req.Images = c.PostFormArray("images")
	case binding.MIMEMultipartPOSTForm:
		form, err := c.MultipartForm()
		if err != nil {
			return nil, badRequest(fmt.Errorf("invalid multipart form: %w", err))
		}
		for _, loc := range form.Value["images"] {
			if err := checkLocator(loc); err != nil {
				return nil, err
			}
		}
		uploaded := make([]string, 0, len(form.File["images"]))
		for _, fh := range form.File["images"] {
			data, err := readUpload(fh)
			if err != nil {
				return nil, badRequest(err)
			}
			uploaded = append(uploaded, h.blobs.Put(data))
		}
		req.Images = append(uploaded, form.Value["images"]...)
		return &req, nil
	}

	for _, loc := range req.Images {
		if err := checkLocator(loc); err != nil {
			return nil, err
		}
	}
	return &req, nil
}

func checkLocator(loc string) error {
	if remoteLocator(loc) {
		return nil
	}
	return badRequest(fmt.Errorf("%w: %.64q", errLocalLocator, loc))
}

func remoteLocator(loc string) bool {
	for _, prefix := range []string{imaging.BlobScheme, imaging.DataScheme, "http://", "https://"} {
		if strings.HasPrefix(loc, prefix) {
			return true
		}
	}
	return false
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > maxUploadBytes {
		return nil, fmt.Errorf("%s is larger than %d bytes", fh.Filename, maxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	if len(data) > maxUploadBytes {
		return nil, fmt.Errorf("%s is larger than %d bytes", fh.Filename, maxUploadBytes)
	}
	return data, nil
}
