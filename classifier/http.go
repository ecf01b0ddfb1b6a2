package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nfnt/resize"
)

// maxUploadSize bounds request bodies of the classification endpoints.
var maxUploadSize int64 = 50 << 20

// anyCamera in a URL path selects the configured camera.
const anyCamera = "_"

type errorResponse struct {
	Error string `json:"error"`
}

type imageResponse struct {
	MimeType MimeType `json:"mime_type"`
	Data     []byte   `json:"data"`
}

type captureResponse struct {
	Image                      *imageResponse   `json:"image,omitempty"`
	Classifications            []Classification `json:"classifications"`
	DetectionsSupported        *bool            `json:"detections_supported,omitempty"`
	ObjectPointCloudsSupported *bool            `json:"object_point_clouds_supported,omitempty"`
}

// HTTPStatus maps an error from this package to an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrMalformedImage):
		return http.StatusBadRequest
	case errors.Is(err, ErrShapeMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrMismatchedSource):
		return http.StatusNotFound
	case errors.Is(err, ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, errorResponse{Error: err.Error()}, HTTPStatus(err))
}

func countParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("count")
	if raw == "" {
		return 0, nil
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q", raw)
	}
	return count, nil
}

func boolParam(r *http.Request, name string, def bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func cameraParam(r *http.Request) string {
	name := r.PathValue("name")
	if name == anyCamera {
		return ""
	}
	return name
}

// GetHTTPHandler exposes svc over HTTP.
func GetHTTPHandler(svc *Service, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		var markdownBuilder strings.Builder
		detector := svc.Detector()
		reference := detector.Reference()
		fmt.Fprintf(&markdownBuilder, "# %s\n\n", svc.Name())
		fmt.Fprintf(&markdownBuilder, "- **Instance:** `%s`\n", svc.ID())
		fmt.Fprintf(&markdownBuilder, "- **Camera:** %s\n", stringOr(svc.CameraName(), "(not configured)"))
		fmt.Fprintf(&markdownBuilder, "- **Threshold:** %.2f\n", detector.Threshold())
		fmt.Fprintf(&markdownBuilder, "- **Reference:** %dx%d `%s`\n\n", reference.Width(), reference.Height(), HashImage(reference)[:12])
		fmt.Fprintf(&markdownBuilder, "![reference](/reference.png?width=320)\n")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := ExecTemplate(w, TemplateContent{Title: svc.Name(), Content: markdownBuilder.String()}); err != nil {
			logger.Error("failed to render status page", "error", err)
		}
	})

	mux.HandleFunc("GET /properties", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, svc.Properties(), http.StatusOK)
	})

	mux.HandleFunc("POST /classifications", func(w http.ResponseWriter, r *http.Request) {
		count, err := countParam(r)
		if err != nil {
			respondJSON(w, errorResponse{Error: err.Error()}, http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadSize))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondJSON(w, errorResponse{Error: fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit)}, http.StatusRequestEntityTooLarge)
				return
			}
			respondJSON(w, errorResponse{Error: "failed to read body"}, http.StatusBadRequest)
			return
		}
		mimeType := ParseMimeType(r.Header.Get("Content-Type"))
		if mimeType == "" || mimeType == "application/octet-stream" {
			mimeType = DetectMimeType(data)
		}
		classifications, err := svc.Classifications(r.Context(), Encoded{Data: data, MimeType: mimeType}, count)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, classifications, http.StatusOK)
	})

	mux.HandleFunc("POST /cameras/{name}/classifications", func(w http.ResponseWriter, r *http.Request) {
		count, err := countParam(r)
		if err != nil {
			respondJSON(w, errorResponse{Error: err.Error()}, http.StatusBadRequest)
			return
		}
		classifications, err := svc.ClassificationsFromCamera(r.Context(), cameraParam(r), count)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, classifications, http.StatusOK)
	})

	mux.HandleFunc("GET /cameras/{name}/capture", func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.CaptureAllFromCamera(r.Context(), cameraParam(r), CaptureOptions{
			ReturnImage:             boolParam(r, "image", true),
			ReturnClassifications:   boolParam(r, "classifications", true),
			ReturnDetections:        boolParam(r, "detections", true),
			ReturnObjectPointClouds: boolParam(r, "point_clouds", true),
		})
		if err != nil {
			respondError(w, err)
			return
		}
		resp := captureResponse{Classifications: result.Classifications}
		if result.Detections != nil {
			resp.DetectionsSupported = &result.Detections.Supported
		}
		if result.PointClouds != nil {
			resp.ObjectPointCloudsSupported = &result.PointClouds.Supported
		}
		if resp.Classifications == nil {
			resp.Classifications = []Classification{}
		}
		if result.Image != nil {
			resp.Image = &imageResponse{MimeType: result.Image.MimeType, Data: result.Image.Data}
		}
		respondJSON(w, resp, http.StatusOK)
	})

	mux.HandleFunc("GET /reference.png", func(w http.ResponseWriter, r *http.Request) {
		var img image.Image = svc.Detector().Reference().ToNRGBA()
		if raw := r.URL.Query().Get("width"); raw != "" {
			width, err := strconv.Atoi(raw)
			if err != nil || width <= 0 {
				respondJSON(w, errorResponse{Error: fmt.Sprintf("invalid width %q", raw)}, http.StatusBadRequest)
				return
			}
			if width < img.Bounds().Dx() {
				img = resize.Resize(uint(width), 0, img, resize.Bilinear)
			}
		}
		w.Header().Set("Content-Type", string(MimePNG))
		if err := png.Encode(w, img); err != nil {
			logger.Error("failed to encode reference", "error", err)
		}
	})

	return HTTPLogger(logger, mux)
}

func stringOr(str, or string) string {
	if str != "" {
		return str
	}
	return or
}

func HTTPLogger(logger *slog.Logger, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		initialTime := time.Now()
		wr := NewStatusCodeRecorderResponseWriter(w)
		handler.ServeHTTP(wr, r)
		logger.Info("http",
			"method", r.Method,
			"path", r.URL.String(),
			"status", wr.Status,
			"duration_ms", time.Since(initialTime).Milliseconds(),
		)
	})
}

type StatusCodeRecorderResponseWriter struct {
	http.ResponseWriter
	Status int
}

func (r *StatusCodeRecorderResponseWriter) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

func NewStatusCodeRecorderResponseWriter(w http.ResponseWriter) *StatusCodeRecorderResponseWriter {
	return &StatusCodeRecorderResponseWriter{ResponseWriter: w, Status: 200}
}
