package classifier

import "fmt"

// MeanAbsDifference returns the mean, over every sample of every pixel, of
// the absolute difference between a and b. The result is in [0, 255].
func MeanAbsDifference(a, b *Image) (float64, error) {
	if !a.SameShape(b) {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, a.width, a.height, b.width, b.height)
	}
	var sum int64
	for i, v := range a.pix {
		d := int64(v) - int64(b.pix[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float64(sum) / float64(len(a.pix)), nil
}

// MeetsDifferenceThreshold reports whether a and b are within threshold of
// each other, i.e. MeanAbsDifference(a, b) <= threshold.
//
// This is a similarity predicate; Detector fires on the opposite, strict
// comparison.
func MeetsDifferenceThreshold(a, b *Image, threshold float64) (bool, error) {
	diff, err := MeanAbsDifference(a, b)
	if err != nil {
		return false, err
	}
	return diff <= threshold, nil
}
