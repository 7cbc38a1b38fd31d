// Package providers defines the capability contracts for the verification
// pipeline's upstream vendors (document OCR, face matching, liveness,
// background screening). The contracts are vendor-independent: the scorer
// and the pipeline service never see anything beyond these types, so a real
// vendor or a deterministic test double can be plugged in freely.
package providers

import "context"

// DocumentSide indicates which face of an identity document is analyzed.
type DocumentSide string

const (
	SideFront DocumentSide = "front"
	SideBack  DocumentSide = "back"
)

// AnalyzeResult is the outcome of OCR extraction on one document image.
// Confidence measures extraction clarity only; whether the extracted content
// matches the user-asserted identity is the caller's concern.
//
// Recoverable image-quality problems come back as Success=false with Errors
// populated, never as a Go error. A Go error from Analyze means the provider
// itself failed (timeout, outage) and the submission fails fast.
type AnalyzeResult struct {
	Success    bool
	Confidence float64 // 0-100, extraction clarity
	Fields     map[string]string
	Errors     []string
}

// DocumentAnalyzer wraps OCR extraction.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, documentRef string, side DocumentSide) (*AnalyzeResult, error)
}

// CompareResult is the outcome of comparing a probe image against a
// reference image. Threshold is echoed explicitly so downstream logic and
// tests can reason about boundary cases without recomputing it.
type CompareResult struct {
	Success          bool
	Confidence       float64 // 0-100 similarity
	Match            bool    // Confidence >= Threshold
	Threshold        float64
	QualityProbe     float64
	QualityReference float64
	Errors           []string
}

// BatchCompareResult holds per-reference results plus the single best one.
// Best is the max-confidence result; ties break to the first encountered so
// batch output is deterministic.
type BatchCompareResult struct {
	Results []CompareResult
	Best    *CompareResult
}

// FaceComparator compares a live selfie against a document photo.
type FaceComparator interface {
	Compare(ctx context.Context, probeRef, referenceRef string) (*CompareResult, error)
	CompareBatch(ctx context.Context, probeRef string, referenceRefs []string) (*BatchCompareResult, error)
}

// LivenessMode selects the anti-spoofing strategy.
type LivenessMode string

const (
	ModePassive LivenessMode = "passive"
	ModeActive  LivenessMode = "active"
)

// LivenessResult is the outcome of an anti-spoofing check. SpoofDetected is
// an overriding veto: IsLive is false whenever SpoofDetected is true,
// regardless of confidence.
type LivenessResult struct {
	Success       bool
	Confidence    float64 // 0-100
	IsLive        bool
	SpoofDetected bool
	Errors        []string
}

// Normalize enforces the spoof veto on a result built elsewhere.
func (r *LivenessResult) Normalize() {
	if r.SpoofDetected {
		r.IsLive = false
	}
}

// LivenessChecker verifies a capture is of a live person.
type LivenessChecker interface {
	Check(ctx context.Context, captureRef string, mode LivenessMode) (*LivenessResult, error)
}

// BackgroundResult is the outcome of background screening.
type BackgroundResult struct {
	Passed    bool
	RiskLevel string // "low", "medium", "high"
}

// BackgroundChecker screens a subject against watchlists and prior records.
type BackgroundChecker interface {
	Screen(ctx context.Context, nationalID string) (*BackgroundResult, error)
}
