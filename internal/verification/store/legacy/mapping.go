package legacy

// The legacy document store predates the relational schema and keeps KYC
// state in snake_case fields, partly nested. The mapping below is the single
// place where legacy names meet the new camelCase names; business logic only
// ever sees the canonical (camelCase) shape.
//
// Exact correspondences, preserved bit-for-bit:
//
//	kyc_status                      <-> kycStatus
//	kyc_level                       <-> kycLevel
//	kyc_submitted_at                <-> submittedAt
//	kyc_ai_score                    <-> aiScore
//	kyc_background_check.passed     <-> backgroundCheckPassed
//	kyc_background_check.risk_level <-> backgroundCheckRiskLevel
//	kyc_documents                   <-> documentUrls

// fieldMap maps flat legacy field names to canonical names. Nested
// kyc_background_check members are handled separately in Reshape.
var fieldMap = map[string]string{
	"kyc_status":       "kycStatus",
	"kyc_level":        "kycLevel",
	"kyc_submitted_at": "submittedAt",
	"kyc_ai_score":     "aiScore",
	"kyc_documents":    "documentUrls",
}

// backgroundFieldMap maps members of the nested kyc_background_check object.
var backgroundFieldMap = map[string]string{
	"passed":     "backgroundCheckPassed",
	"risk_level": "backgroundCheckRiskLevel",
}

// Reshape converts a raw legacy user document into the canonical camelCase
// shape. During the transition period a document may carry both spellings;
// the new-store (camelCase) name takes precedence when both are present.
func Reshape(doc map[string]any) map[string]any {
	out := make(map[string]any, len(fieldMap)+len(backgroundFieldMap))

	for legacyName, canonical := range fieldMap {
		if v, ok := doc[legacyName]; ok {
			out[canonical] = v
		}
	}
	if bc, ok := doc["kyc_background_check"].(map[string]any); ok {
		for legacyName, canonical := range backgroundFieldMap {
			if v, ok := bc[legacyName]; ok {
				out[canonical] = v
			}
		}
	}

	// camelCase wins over anything the legacy names produced.
	for _, canonical := range fieldMap {
		if v, ok := doc[canonical]; ok {
			out[canonical] = v
		}
	}
	for _, canonical := range backgroundFieldMap {
		if v, ok := doc[canonical]; ok {
			out[canonical] = v
		}
	}

	return out
}
