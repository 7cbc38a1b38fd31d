package coordinator

import (
	"time"

	verification "verigate/internal/verification/model"
	"verigate/internal/verification/store"
	"verigate/internal/verification/store/legacy"
)

// recordValues flattens a record into the canonical camelCase value set
// used for audit old/new snapshots.
func recordValues(r *verification.Record) map[string]any {
	v := map[string]any{
		"kycStatus":   string(r.Status),
		"kycLevel":    string(r.Level),
		"submittedAt": r.SubmittedAt.UTC().Format(time.RFC3339Nano),
	}
	if r.ConfidenceScore != nil {
		v["aiScore"] = *r.ConfidenceScore
	}
	if r.ReviewedAt != nil {
		v["reviewedAt"] = r.ReviewedAt.UTC().Format(time.RFC3339Nano)
	}
	if r.ReviewerID != nil {
		v["reviewerId"] = *r.ReviewerID
	}
	if len(r.DocumentRefs) > 0 {
		refs := make(map[string]any, len(r.DocumentRefs))
		for k, ref := range r.DocumentRefs {
			refs[k] = ref
		}
		v["documentUrls"] = refs
	}
	if r.BackgroundCheck != (verification.BackgroundCheck{}) {
		v["backgroundCheckPassed"] = r.BackgroundCheck.Passed
		v["backgroundCheckRiskLevel"] = string(r.BackgroundCheck.RiskLevel)
	}
	if r.RejectionReason != nil {
		v["rejectionReason"] = *r.RejectionReason
	}
	return v
}

// applyUpdate materializes the post-update record from the pre-update state
// without touching any store. Used to build audit snapshots.
func applyUpdate(old *verification.Record, u store.Update) *verification.Record {
	rec := *old
	if old.DocumentRefs != nil {
		rec.DocumentRefs = make(map[string]string, len(old.DocumentRefs))
		for k, ref := range old.DocumentRefs {
			rec.DocumentRefs[k] = ref
		}
	}
	if u.Level != nil {
		rec.Level = *u.Level
	}
	if u.Status != nil {
		rec.Status = *u.Status
	}
	if u.ReviewedAt != nil {
		rec.ReviewedAt = u.ReviewedAt
	}
	if u.ReviewerID != nil {
		rec.ReviewerID = u.ReviewerID
	}
	if u.ConfidenceScore != nil {
		rec.ConfidenceScore = u.ConfidenceScore
	}
	if u.BackgroundCheck != nil {
		rec.BackgroundCheck = *u.BackgroundCheck
	}
	if u.RejectionReason != nil {
		rec.RejectionReason = u.RejectionReason
	}
	return &rec
}

// projectGeneric reshapes a raw legacy user document into the verification
// projection. Values come back as loose JSON types; anything unparseable is
// simply omitted from the projection.
func (c *Coordinator) projectGeneric(userID string, doc map[string]any) *verification.Projection {
	shaped := legacy.Reshape(doc)

	p := verification.NotSubmitted(userID)
	p.Source = verification.SourceLegacy

	if s, ok := shaped["kycStatus"].(string); ok && s != "" {
		p.Status = verification.Status(s)
	}
	if l, ok := shaped["kycLevel"].(string); ok && l != "" {
		p.Level = verification.Level(l)
	}
	if raw, ok := shaped["submittedAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			p.SubmittedAt = &t
		}
	}
	if score, ok := shaped["aiScore"].(float64); ok {
		p.ConfidenceScore = &score
	}
	if refs, ok := shaped["documentUrls"].(map[string]any); ok {
		p.DocumentRefs = make(map[string]string, len(refs))
		for k, v := range refs {
			if s, ok := v.(string); ok {
				p.DocumentRefs[k] = s
			}
		}
	}
	passed, hasPassed := shaped["backgroundCheckPassed"].(bool)
	risk, hasRisk := shaped["backgroundCheckRiskLevel"].(string)
	if hasPassed || hasRisk {
		bc := &verification.BackgroundCheck{Passed: passed}
		if hasRisk {
			bc.RiskLevel = verification.RiskLevel(risk)
		}
		p.BackgroundCheck = bc
	}
	return p
}
