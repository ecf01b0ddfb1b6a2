package classifier

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Properties advertises what the service can do.
type Properties struct {
	ClassificationsSupported   bool `json:"classifications_supported"`
	DetectionsSupported        bool `json:"detections_supported"`
	ObjectPointCloudsSupported bool `json:"object_point_clouds_supported"`
}

// Detection is a located object. This service never produces any; the
// type exists so Unsupported results have something to hold.
type Detection struct {
	XMin, YMin, XMax, YMax int
	ClassName              string
	Confidence             float64
}

// DetectionsResult is returned by the detection entry points. Supported is
// always false for this service.
type DetectionsResult struct {
	Supported  bool
	Detections []Detection
}

// PointCloudsResult is returned by ObjectPointClouds. Supported is always
// false for this service.
type PointCloudsResult struct {
	Supported bool
}

// CaptureOptions selects what CaptureAllFromCamera returns.
type CaptureOptions struct {
	ReturnImage             bool
	ReturnClassifications   bool
	ReturnDetections        bool
	ReturnObjectPointClouds bool
}

// CaptureResult bundles everything captured from one frame.
type CaptureResult struct {
	Image           *Encoded
	Classifications []Classification
	// Detections and PointClouds are nil unless requested in CaptureOptions.
	Detections  *DetectionsResult
	PointClouds *PointCloudsResult
}

// Service is the vision service a host drives: build it with NewService,
// check the config with ValidateConfig, apply it with Reconfigure, then
// call the classification methods as often as needed.
type Service struct {
	name   string
	id     uuid.UUID
	logger *slog.Logger

	detector *Detector

	mu         sync.RWMutex
	cameraName string
	camera     Camera
	sinks      []Sink
}

func NewService(name string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New()
	return &Service{
		name:     name,
		id:       id,
		logger:   logger.With("component", "classifier", "service", name, "instance", id.String()),
		detector: NewDetector(),
	}
}

func (s *Service) Name() string { return s.name }

func (s *Service) ID() uuid.UUID { return s.id }

// Detector exposes the underlying detector.
func (s *Service) Detector() *Detector { return s.detector }

// ValidateConfig checks cfg and returns the names of the cameras the
// service depends on.
func ValidateConfig(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, ErrMissingCamera
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return []string{cfg.CameraName}, nil
}

// Reconfigure applies cfg. cameras maps dependency names to cameras and
// must contain cfg.CameraName. The reference image is reset to a blank
// frame of the configured size.
func (s *Service) Reconfigure(cfg *Config, cameras map[string]Camera, sinks ...Sink) error {
	if _, err := ValidateConfig(cfg); err != nil {
		return err
	}
	camera, ok := cameras[cfg.CameraName]
	if !ok || camera == nil {
		return fmt.Errorf("%w: camera '%s' is not among the dependencies", ErrConfiguration, cfg.CameraName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	width, height := cfg.ReferenceSize()
	if err := s.detector.Configure(cfg.ThresholdOrDefault(), BlankImage(width, height)); err != nil {
		return err
	}
	s.cameraName = cfg.CameraName
	s.camera = camera
	s.sinks = sinks
	s.logger.Info("reconfigured",
		"camera", cfg.CameraName,
		"threshold", cfg.ThresholdOrDefault(),
		"width", width,
		"height", height,
		"sinks", len(sinks),
	)
	return nil
}

// SetReference replaces the reference image, keeping the threshold.
func (s *Service) SetReference(img *Image) error {
	return s.detector.SetReference(img)
}

// CameraName returns the configured camera name.
func (s *Service) CameraName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cameraName
}

func (s *Service) resolveCamera(name string) (Camera, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.camera == nil {
		return nil, "", fmt.Errorf("%w: service '%s' is not configured", ErrConfiguration, s.name)
	}
	if name != "" && name != s.cameraName {
		return nil, "", fmt.Errorf("%w: camera name %s does not match the camera name %s in the config", ErrMismatchedSource, name, s.cameraName)
	}
	return s.camera, s.cameraName, nil
}

// Classifications evaluates raw against the reference. count caps the
// number of classifications returned when positive.
func (s *Service) Classifications(ctx context.Context, raw RawImage, count int) ([]Classification, error) {
	result, err := s.evaluate(ctx, raw, s.CameraName())
	if err != nil {
		return nil, err
	}
	return limit(result.Classifications(), count), nil
}

// ClassificationsFromCamera captures a frame from the named camera, or the
// configured one when cameraName is empty, and evaluates it.
func (s *Service) ClassificationsFromCamera(ctx context.Context, cameraName string, count int) ([]Classification, error) {
	camera, resolved, err := s.resolveCamera(cameraName)
	if err != nil {
		return nil, err
	}
	frame, err := camera.Image(ctx, MimeJPEG)
	if err != nil {
		return nil, fmt.Errorf("while capturing from '%s': %w", resolved, err)
	}
	result, err := s.evaluate(ctx, frame, resolved)
	if err != nil {
		return nil, err
	}
	return limit(result.Classifications(), count), nil
}

// CaptureAllFromCamera captures one frame and returns what opts asks for.
// Detections and point clouds, when requested, are reported as unsupported.
func (s *Service) CaptureAllFromCamera(ctx context.Context, cameraName string, opts CaptureOptions) (*CaptureResult, error) {
	camera, resolved, err := s.resolveCamera(cameraName)
	if err != nil {
		return nil, err
	}
	frame, err := camera.Image(ctx, MimeJPEG)
	if err != nil {
		return nil, fmt.Errorf("while capturing from '%s': %w", resolved, err)
	}
	ret := &CaptureResult{}
	if opts.ReturnImage {
		ret.Image = &frame
	}
	if opts.ReturnClassifications {
		result, err := s.evaluate(ctx, frame, resolved)
		if err != nil {
			return nil, err
		}
		ret.Classifications = result.Classifications()
	}
	if opts.ReturnDetections {
		detections := s.Detections(ctx, frame)
		ret.Detections = &detections
	}
	if opts.ReturnObjectPointClouds {
		pointClouds := s.ObjectPointClouds(ctx, resolved)
		ret.PointClouds = &pointClouds
	}
	return ret, nil
}

func (s *Service) Detections(ctx context.Context, raw RawImage) DetectionsResult {
	return DetectionsResult{}
}

func (s *Service) DetectionsFromCamera(ctx context.Context, cameraName string) DetectionsResult {
	return DetectionsResult{}
}

func (s *Service) ObjectPointClouds(ctx context.Context, cameraName string) PointCloudsResult {
	return PointCloudsResult{}
}

func (s *Service) Properties() Properties {
	return Properties{ClassificationsSupported: true}
}

func (s *Service) evaluate(ctx context.Context, raw RawImage, cameraName string) (Result, error) {
	result, err := s.detector.Evaluate(raw)
	if err != nil {
		s.logger.Debug("evaluation failed", "camera", cameraName, "error", err)
		return Result{}, err
	}
	s.logger.Debug("frame evaluated",
		"camera", cameraName,
		"verdict", result.Verdict.String(),
		"difference", result.Difference,
	)
	if result.Verdict == Different {
		s.dispatch(ctx, raw, cameraName, result)
	}
	return result, nil
}

// dispatch hands a change to the sinks. Sink failures don't affect the
// verdict, which is already committed.
func (s *Service) dispatch(ctx context.Context, raw RawImage, cameraName string, result Result) {
	s.mu.RLock()
	sinks := s.sinks
	s.mu.RUnlock()
	if len(sinks) == 0 {
		return
	}

	ev := &ChangeEvent{
		ID:         uuid.New(),
		Service:    s.name,
		Camera:     cameraName,
		Difference: result.Difference,
		Threshold:  result.Threshold,
		SHA256:     HashImage(result.Frame),
		Width:      result.Frame.Width(),
		Height:     result.Frame.Height(),
		DetectedAt: time.Now().UTC(),
	}
	switch v := raw.(type) {
	case Encoded:
		ev.Data, ev.MimeType = v.Data, ParseMimeType(string(v.MimeType))
	case *Encoded:
		ev.Data, ev.MimeType = v.Data, ParseMimeType(string(v.MimeType))
	default:
		var buf bytes.Buffer
		if err := result.Frame.EncodePNG(&buf); err != nil {
			s.logger.Error("failed to encode changed frame", "error", err)
			return
		}
		ev.Data, ev.MimeType = buf.Bytes(), MimePNG
	}

	for _, sink := range sinks {
		if err := sink.FrameChanged(ctx, ev); err != nil {
			s.logger.Error("sink failed",
				"event", ev.ID.String(),
				"sink", fmt.Sprintf("%T", sink),
				"error", err,
			)
		}
	}
}

func limit(classifications []Classification, count int) []Classification {
	if count > 0 && len(classifications) > count {
		return classifications[:count]
	}
	return classifications
}
