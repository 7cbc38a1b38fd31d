// Package stub provides deterministic in-process providers. They stand in
// for real OCR/face/liveness vendors in development and tests: results are
// configured up front (or scripted per reference) instead of randomized, so
// pipeline behavior is reproducible.
package stub

import (
	"context"

	"verigate/internal/verification/providers"
)

// Analyzer is a configurable DocumentAnalyzer stub. Results registered per
// document reference win over the default.
type Analyzer struct {
	Default providers.AnalyzeResult
	ByRef   map[string]providers.AnalyzeResult
	Err     error
}

// NewAnalyzer returns an analyzer that extracts the given fields with the
// given confidence for every reference.
func NewAnalyzer(confidence float64, fields map[string]string) *Analyzer {
	return &Analyzer{
		Default: providers.AnalyzeResult{
			Success:    true,
			Confidence: confidence,
			Fields:     fields,
		},
	}
}

func (a *Analyzer) Analyze(ctx context.Context, documentRef string, side providers.DocumentSide) (*providers.AnalyzeResult, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, providers.NewProviderError(providers.ErrorTimeout, "ocr", "analyze canceled", err)
	}
	if r, ok := a.ByRef[documentRef]; ok {
		return &r, nil
	}
	r := a.Default
	return &r, nil
}

// Comparator is a configurable FaceComparator stub.
type Comparator struct {
	Confidence float64
	Threshold  float64
	Quality    float64
	ByRef      map[string]float64 // reference ref -> confidence override
	Err        error
}

// NewComparator returns a comparator producing the given confidence against
// the default 80 threshold.
func NewComparator(confidence float64) *Comparator {
	return &Comparator{Confidence: confidence, Threshold: 80, Quality: 90}
}

func (c *Comparator) Compare(ctx context.Context, probeRef, referenceRef string) (*providers.CompareResult, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, providers.NewProviderError(providers.ErrorTimeout, "face", "compare canceled", err)
	}
	confidence := c.Confidence
	if v, ok := c.ByRef[referenceRef]; ok {
		confidence = v
	}
	return &providers.CompareResult{
		Success:          true,
		Confidence:       confidence,
		Match:            confidence >= c.Threshold,
		Threshold:        c.Threshold,
		QualityProbe:     c.Quality,
		QualityReference: c.Quality,
	}, nil
}

func (c *Comparator) CompareBatch(ctx context.Context, probeRef string, referenceRefs []string) (*providers.BatchCompareResult, error) {
	batch := &providers.BatchCompareResult{}
	for _, ref := range referenceRefs {
		r, err := c.Compare(ctx, probeRef, ref)
		if err != nil {
			return nil, err
		}
		batch.Results = append(batch.Results, *r)
	}
	// Max confidence wins; strict greater-than keeps the first encountered
	// on ties for deterministic output.
	for i := range batch.Results {
		if batch.Best == nil || batch.Results[i].Confidence > batch.Best.Confidence {
			batch.Best = &batch.Results[i]
		}
	}
	return batch, nil
}

// Liveness is a configurable LivenessChecker stub.
type Liveness struct {
	Confidence    float64
	SpoofDetected bool
	Err           error
}

// NewLiveness returns a checker reporting the given confidence with no
// spoof detected.
func NewLiveness(confidence float64) *Liveness {
	return &Liveness{Confidence: confidence}
}

func (l *Liveness) Check(ctx context.Context, captureRef string, mode providers.LivenessMode) (*providers.LivenessResult, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, providers.NewProviderError(providers.ErrorTimeout, "liveness", "check canceled", err)
	}
	r := &providers.LivenessResult{
		Success:       true,
		Confidence:    l.Confidence,
		IsLive:        l.Confidence >= 50,
		SpoofDetected: l.SpoofDetected,
	}
	r.Normalize()
	return r, nil
}

// Background is a configurable BackgroundChecker stub.
type Background struct {
	Passed    bool
	RiskLevel string
	Err       error
}

// NewBackground returns a checker that passes everyone at low risk.
func NewBackground() *Background {
	return &Background{Passed: true, RiskLevel: "low"}
}

func (b *Background) Screen(ctx context.Context, nationalID string) (*providers.BackgroundResult, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	return &providers.BackgroundResult{Passed: b.Passed, RiskLevel: b.RiskLevel}, nil
}
