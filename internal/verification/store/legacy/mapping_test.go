package legacy

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ReshapeSuite struct {
	suite.Suite
}

func TestReshapeSuite(t *testing.T) {
	suite.Run(t, new(ReshapeSuite))
}

func (s *ReshapeSuite) TestReshape() {
	s.Run("snake_case fields map to canonical names", func() {
		out := Reshape(map[string]any{
			"kyc_status":       "verified",
			"kyc_level":        "full",
			"kyc_submitted_at": "2024-11-05T08:30:00Z",
			"kyc_ai_score":     float64(88),
			"kyc_documents":    map[string]any{"id_card_front": "legacy://front"},
		})

		s.Equal("verified", out["kycStatus"])
		s.Equal("full", out["kycLevel"])
		s.Equal("2024-11-05T08:30:00Z", out["submittedAt"])
		s.Equal(float64(88), out["aiScore"])
		s.Equal(map[string]any{"id_card_front": "legacy://front"}, out["documentUrls"])
	})

	s.Run("nested background check flattens", func() {
		out := Reshape(map[string]any{
			"kyc_background_check": map[string]any{
				"passed":     true,
				"risk_level": "medium",
			},
		})
		s.Equal(true, out["backgroundCheckPassed"])
		s.Equal("medium", out["backgroundCheckRiskLevel"])
	})

	s.Run("camelCase wins when both spellings are present", func() {
		out := Reshape(map[string]any{
			"kyc_status": "pending",
			"kycStatus":  "verified",
			"kyc_background_check": map[string]any{
				"passed": false,
			},
			"backgroundCheckPassed": true,
		})
		s.Equal("verified", out["kycStatus"])
		s.Equal(true, out["backgroundCheckPassed"])
	})

	s.Run("unknown fields are dropped", func() {
		out := Reshape(map[string]any{
			"email":      "user@example.com",
			"kyc_status": "pending",
		})
		s.Len(out, 1)
		s.NotContains(out, "email")
	})

	s.Run("empty document reshapes to empty", func() {
		s.Empty(Reshape(map[string]any{}))
	})
}
