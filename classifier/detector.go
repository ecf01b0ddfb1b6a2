package classifier

import (
	"fmt"
	"math"
	"sync"
)

const (
	// DefaultThreshold is the mean per-sample difference, on the 0-255
	// scale, above which a frame is reported as different.
	DefaultThreshold = 20.0

	DefaultWidth  = 640
	DefaultHeight = 480

	// DifferentClassName labels the classification produced for a change.
	DifferentClassName = "different"
)

// Verdict is the outcome of an evaluation.
type Verdict int

const (
	Unchanged Verdict = iota
	Different
)

func (v Verdict) String() string {
	if v == Different {
		return "different"
	}
	return "unchanged"
}

// Classification is a labeled result as surfaced to service callers.
type Classification struct {
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
}

// Result is the outcome of Detector.Evaluate.
type Result struct {
	Verdict Verdict
	// Confidence is 1 for Different and 0 for Unchanged; the detector is a
	// binary classifier.
	Confidence float64
	// Difference is the measured mean absolute difference.
	Difference float64
	// Threshold is the threshold the frame was judged against.
	Threshold float64
	// Frame is the decoded frame that was evaluated.
	Frame *Image
}

// Classifications returns no entries for Unchanged and a single
// "different" entry for Different.
func (r Result) Classifications() []Classification {
	if r.Verdict != Different {
		return []Classification{}
	}
	return []Classification{{ClassName: DifferentClassName, Confidence: r.Confidence}}
}

// Detector holds the last reference frame and reports whether new frames
// differ from it. It is safe for concurrent use.
type Detector struct {
	mu        sync.Mutex
	reference *Image
	threshold float64
}

// NewDetector returns a detector with DefaultThreshold and a black
// DefaultWidth x DefaultHeight reference.
func NewDetector() *Detector {
	return &Detector{
		reference: BlankImage(DefaultWidth, DefaultHeight),
		threshold: DefaultThreshold,
	}
}

// Configure sets the threshold and, when reference is not nil, the
// reference image. On error nothing changes.
func (d *Detector) Configure(threshold float64, reference *Image) error {
	if threshold < 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return ErrInvalidThreshold
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.threshold = threshold
	if reference != nil {
		d.reference = reference
	}
	return nil
}

// Evaluate decodes raw and compares it to the reference. When the mean
// difference strictly exceeds the threshold the decoded frame becomes the
// new reference and Different is returned; otherwise the reference is left
// alone. On error the reference is never touched.
func (d *Detector) Evaluate(raw RawImage) (Result, error) {
	decoded, err := Decode(raw)
	if err != nil {
		return Result{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	diff, err := MeanAbsDifference(decoded, d.reference)
	if err != nil {
		return Result{}, err
	}
	if diff > d.threshold {
		d.reference = decoded
		return Result{Verdict: Different, Confidence: 1.0, Difference: diff, Threshold: d.threshold, Frame: decoded}, nil
	}
	return Result{Verdict: Unchanged, Difference: diff, Threshold: d.threshold, Frame: decoded}, nil
}

// SetReference replaces the reference image, keeping the threshold.
func (d *Detector) SetReference(img *Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil reference", ErrConfiguration)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reference = img
	return nil
}

// Reference returns the current reference image.
func (d *Detector) Reference() *Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reference
}

// Threshold returns the configured threshold.
func (d *Detector) Threshold() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.threshold
}
