// Package scorer is the pure decision core of the verification pipeline.
// No I/O, no side effects: every function receives the stage results it
// needs as arguments and returns a decision, which keeps the rules
// centralized and independently testable.
package scorer

import (
	verification "verigate/internal/verification/model"
	"verigate/internal/verification/providers"
)

// Stage confidence weights. Overall = 0.3*ocr + 0.4*face + 0.3*liveness.
const (
	WeightOCR      = 0.3
	WeightFace     = 0.4
	WeightLiveness = 0.3
)

// HighConfidence marks the boundary for the strongest approval message
// variant. Same status effect as a plain approval, different message.
const HighConfidence = 95

// Config carries the tunable thresholds. ReviewFloor defaults to 70; it is
// preserved from the prior system as a parameter rather than an invariant.
type Config struct {
	AutoApproveOverall float64 // overall confidence required for auto-approval
	FaceMinQuality     float64 // probe quality below this forces review
	LivenessThreshold  float64 // liveness confidence required for approval
	ReviewFloor        float64 // below this a stage verdict is rejected outright
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		AutoApproveOverall: 85,
		FaceMinQuality:     50,
		LivenessThreshold:  80,
		ReviewFloor:        70,
	}
}

// OverallConfidence combines the three stage confidences with fixed weights.
// Deterministic given fixed stage outputs.
func OverallConfidence(ocr, face, liveness float64) float64 {
	return WeightOCR*ocr + WeightFace*face + WeightLiveness*liveness
}

// Verdict classifies a single stage result.
type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictReview   Verdict = "review"
	VerdictRejected Verdict = "rejected"
)

// StageVerdict is a classified stage result with its human-readable message.
type StageVerdict struct {
	Verdict Verdict
	Message string
}

// classify maps (confidence, threshold, floor) onto a verdict. Boundaries:
// confidence >= HighConfidence gets the strongest approval message,
// [threshold, HighConfidence) a plain approval, [floor, threshold) review,
// below floor rejection.
func classify(confidence, threshold, floor float64) StageVerdict {
	switch {
	case confidence >= HighConfidence:
		return StageVerdict{VerdictApproved, "match confirmed with very high confidence"}
	case confidence >= threshold:
		return StageVerdict{VerdictApproved, "match confirmed"}
	case confidence >= floor:
		return StageVerdict{VerdictReview, "confidence below auto-approval threshold, manual review required"}
	default:
		return StageVerdict{VerdictRejected, "confidence too low"}
	}
}

// ClassifyFace classifies a face comparison result. Approval requires the
// confidence to clear the comparator's own threshold and the probe quality
// to clear the configured minimum; low quality downgrades to review, never
// straight to approval.
func ClassifyFace(r *providers.CompareResult, cfg Config) StageVerdict {
	v := classify(r.Confidence, r.Threshold, cfg.ReviewFloor)
	if v.Verdict == VerdictApproved && r.QualityProbe < cfg.FaceMinQuality {
		return StageVerdict{VerdictReview, "probe image quality too low for automatic approval"}
	}
	return v
}

// ClassifyLiveness classifies a liveness result. Spoof detection is an
// overriding veto, not a confidence penalty.
func ClassifyLiveness(r *providers.LivenessResult, cfg Config) StageVerdict {
	if r.SpoofDetected {
		return StageVerdict{VerdictRejected, "spoof detected"}
	}
	return classify(r.Confidence, cfg.LivenessThreshold, cfg.ReviewFloor)
}

// StageResults bundles the upstream outputs the scorer consumes. The caller
// guarantees every stage reported Success=true; failed stages abort the
// pipeline before scoring (fail-fast, no silent zero substitution).
type StageResults struct {
	OCR        *providers.AnalyzeResult
	Face       *providers.CompareResult
	Liveness   *providers.LivenessResult
	Mismatches []verification.FieldMismatch
}

// Outcome is the scorer's decision.
type Outcome struct {
	AutoApproved      bool
	OverallConfidence float64
	Level             verification.Level  // level granted (or targeted while pending)
	Status            verification.Status // ai_verified, ai_failed, or pending
	Face              StageVerdict
	Liveness          StageVerdict
	Reason            string // populated when not auto-approved
}

// Decide applies the auto-approval conjunction: overall confidence at or
// above the threshold, face approved, liveness approved, and no field
// mismatches. Anything rejected (or mismatched) fails the cycle; anything
// merely in the review band parks it for a human.
func Decide(stages StageResults, cfg Config) Outcome {
	overall := OverallConfidence(stages.OCR.Confidence, stages.Face.Confidence, stages.Liveness.Confidence)

	face := ClassifyFace(stages.Face, cfg)
	liveness := ClassifyLiveness(stages.Liveness, cfg)

	out := Outcome{
		OverallConfidence: overall,
		Face:              face,
		Liveness:          liveness,
	}

	switch {
	case liveness.Verdict == VerdictRejected:
		out.Status = verification.StatusAIFailed
		out.Level = verification.LevelNone
		out.Reason = "liveness check failed: " + liveness.Message
	case face.Verdict == VerdictRejected:
		out.Status = verification.StatusAIFailed
		out.Level = verification.LevelNone
		out.Reason = "face comparison failed: " + face.Message
	case len(stages.Mismatches) > 0:
		out.Status = verification.StatusAIFailed
		out.Level = verification.LevelNone
		out.Reason = "document fields do not match submitted identity: " + stages.Mismatches[0].String()
	case overall >= cfg.AutoApproveOverall &&
		face.Verdict == VerdictApproved &&
		liveness.Verdict == VerdictApproved:
		out.AutoApproved = true
		out.Status = verification.StatusAIVerified
		out.Level = verification.LevelFull
	default:
		// Review band: the cycle stays pending for a human reviewer, with
		// lite as the level under consideration.
		out.Status = verification.StatusPending
		out.Level = verification.LevelLite
		out.Reason = "confidence below auto-approval threshold, queued for manual review"
	}

	return out
}
