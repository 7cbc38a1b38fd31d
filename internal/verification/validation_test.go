package verification

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ValidationSuite struct {
	suite.Suite
	personal PersonalData
	refs     map[string]string
}

func TestValidationSuite(t *testing.T) {
	suite.Run(t, new(ValidationSuite))
}

func (s *ValidationSuite) SetupTest() {
	s.personal = PersonalData{
		FullName:    "Ada Lovelace",
		NationalID:  "79927398713",
		DateOfBirth: "1990-12-10",
	}
	s.refs = map[string]string{
		SlotIDCardFront: "s3://docs/front.jpg",
		SlotSelfie:      "s3://docs/selfie.jpg",
	}
}

func (s *ValidationSuite) TestValidateSubmission() {
	s.Run("complete submission passes", func() {
		s.NoError(ValidateSubmission("u1", s.personal, s.refs))
	})

	s.Run("required fields", func() {
		s.Error(ValidateSubmission("", s.personal, s.refs))

		p := s.personal
		p.FullName = "   "
		s.Error(ValidateSubmission("u1", p, s.refs))

		p = s.personal
		p.NationalID = ""
		s.Error(ValidateSubmission("u1", p, s.refs))
	})

	s.Run("national id checksum", func() {
		p := s.personal
		p.NationalID = "79927398710"
		s.Error(ValidateSubmission("u1", p, s.refs))

		p.NationalID = "7992-7398-713"
		s.NoError(ValidateSubmission("u1", p, s.refs), "separators are tolerated")

		p.NationalID = "79927abc713"
		s.Error(ValidateSubmission("u1", p, s.refs), "letters are not")

		p.NationalID = "26"
		s.Error(ValidateSubmission("u1", p, s.refs), "too short even if the checksum holds")
	})

	s.Run("date of birth format", func() {
		p := s.personal
		p.DateOfBirth = "12/10/1990"
		s.Error(ValidateSubmission("u1", p, s.refs))

		p.DateOfBirth = ""
		s.NoError(ValidateSubmission("u1", p, s.refs), "date of birth is optional")
	})

	s.Run("required document slots", func() {
		refs := map[string]string{SlotIDCardFront: "s3://docs/front.jpg"}
		s.Error(ValidateSubmission("u1", s.personal, refs))

		refs = map[string]string{SlotSelfie: "s3://docs/selfie.jpg"}
		s.Error(ValidateSubmission("u1", s.personal, refs))

		refs = map[string]string{
			SlotIDCardFront: "s3://docs/front.jpg",
			SlotIDCardBack:  "s3://docs/back.jpg",
			SlotSelfie:      "s3://docs/selfie.jpg",
		}
		s.NoError(ValidateSubmission("u1", s.personal, refs), "back side is optional")
	})
}

func (s *ValidationSuite) TestMatchFields() {
	s.Run("exact match yields no mismatches", func() {
		s.Empty(MatchFields(s.personal, map[string]string{
			"full_name":     "Ada Lovelace",
			"national_id":   "79927398713",
			"date_of_birth": "1990-12-10",
		}))
	})

	s.Run("comparison ignores case and extra whitespace", func() {
		s.Empty(MatchFields(s.personal, map[string]string{
			"full_name": "  ADA   lovelace ",
		}))
	})

	s.Run("unextracted fields are skipped", func() {
		s.Empty(MatchFields(s.personal, map[string]string{}))
	})

	s.Run("every mismatch is reported, not just the first", func() {
		mismatches := MatchFields(s.personal, map[string]string{
			"full_name":     "Ada Byron",
			"date_of_birth": "1991-01-01",
		})
		s.Require().Len(mismatches, 2)
		s.Equal("full_name", mismatches[0].Field)
		s.Equal("Ada Lovelace", mismatches[0].Asserted)
		s.Equal("Ada Byron", mismatches[0].Extracted)
	})
}
