package verification

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"verigate/internal/verification/metrics"
	"verigate/internal/verification/providers"
)

// Providers bundles the upstream capability implementations the pipeline
// calls. Background is optional; the other three are required.
type Providers struct {
	Analyzer   providers.DocumentAnalyzer
	Comparator providers.FaceComparator
	Liveness   providers.LivenessChecker
	Background providers.BackgroundChecker
}

// Evidence is everything the providers produced for one submission. Stage
// results may carry Success=false; a Go error from any provider aborts
// gathering entirely, so an Evidence value always has OCR, Face, and
// Liveness populated.
type Evidence struct {
	OCR        *providers.AnalyzeResult
	OCRBack    *providers.AnalyzeResult // nil when no back side was submitted
	Face       *providers.CompareResult
	Liveness   *providers.LivenessResult
	Background *providers.BackgroundResult // nil when screening is not wired
}

// ExtractedFields merges front- and back-side OCR output. Front-side values
// win; the back side only fills fields the front did not yield.
func (e *Evidence) ExtractedFields() map[string]string {
	fields := make(map[string]string, len(e.OCR.Fields))
	for k, v := range e.OCR.Fields {
		fields[k] = v
	}
	if e.OCRBack != nil {
		for k, v := range e.OCRBack.Fields {
			if _, ok := fields[k]; !ok {
				fields[k] = v
			}
		}
	}
	return fields
}

// FailedStage reports the first stage whose provider answered but could not
// produce a usable result (Success=false). Spoof detection is not a stage
// failure; the scorer handles it as a verdict.
func (e *Evidence) FailedStage() (stage string, errs []string, failed bool) {
	switch {
	case !e.OCR.Success:
		return "ocr", e.OCR.Errors, true
	case e.OCRBack != nil && !e.OCRBack.Success:
		return "ocr", e.OCRBack.Errors, true
	case !e.Face.Success:
		return "face", e.Face.Errors, true
	case !e.Liveness.Success:
		return "liveness", e.Liveness.Errors, true
	}
	return "", nil, false
}

// gatherEvidence runs the provider stages concurrently under a shared
// deadline. The first provider error cancels the remaining stages and is
// returned as-is (the stubs and adapters already wrap theirs as
// ProviderError). Face comparison and liveness both read the selfie, OCR
// reads the document sides; none depend on each other, so they all start
// at once.
func gatherEvidence(ctx context.Context, p Providers, refs map[string]string, nationalID string, m *metrics.Metrics, timeout time.Duration) (*Evidence, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ev := &Evidence{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		res, err := p.Analyzer.Analyze(ctx, refs[SlotIDCardFront], providers.SideFront)
		m.ObserveStageLatency("ocr", time.Since(start))
		if err != nil {
			return fmt.Errorf("ocr front: %w", err)
		}
		ev.OCR = res
		return nil
	})

	if back := refs[SlotIDCardBack]; back != "" {
		g.Go(func() error {
			start := time.Now()
			res, err := p.Analyzer.Analyze(ctx, back, providers.SideBack)
			m.ObserveStageLatency("ocr", time.Since(start))
			if err != nil {
				return fmt.Errorf("ocr back: %w", err)
			}
			ev.OCRBack = res
			return nil
		})
	}

	g.Go(func() error {
		start := time.Now()
		res, err := p.Comparator.Compare(ctx, refs[SlotSelfie], refs[SlotIDCardFront])
		m.ObserveStageLatency("face", time.Since(start))
		if err != nil {
			return fmt.Errorf("face comparison: %w", err)
		}
		ev.Face = res
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		res, err := p.Liveness.Check(ctx, refs[SlotSelfie], providers.ModePassive)
		m.ObserveStageLatency("liveness", time.Since(start))
		if err != nil {
			return fmt.Errorf("liveness check: %w", err)
		}
		res.Normalize()
		ev.Liveness = res
		return nil
	})

	if p.Background != nil {
		g.Go(func() error {
			start := time.Now()
			res, err := p.Background.Screen(ctx, nationalID)
			m.ObserveStageLatency("background", time.Since(start))
			if err != nil {
				// Screening is advisory; its outage must not block the
				// identity decision.
				return nil
			}
			ev.Background = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ev, nil
}
