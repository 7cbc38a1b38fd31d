package verification

import (
	"fmt"
	"strings"
	"time"
)

// ValidateSubmission checks a submission's structural requirements before
// any provider is called. Returned errors are input-validation failures and
// are never retried.
func ValidateSubmission(userID string, personal PersonalData, documentRefs map[string]string) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if strings.TrimSpace(personal.FullName) == "" {
		return fmt.Errorf("full_name is required")
	}
	if personal.NationalID == "" {
		return fmt.Errorf("national_id is required")
	}
	if !validNationalID(personal.NationalID) {
		return fmt.Errorf("national_id failed checksum validation")
	}
	if personal.DateOfBirth != "" {
		if _, err := time.Parse("2006-01-02", personal.DateOfBirth); err != nil {
			return fmt.Errorf("date_of_birth must be YYYY-MM-DD")
		}
	}
	for _, slot := range []string{SlotIDCardFront, SlotSelfie} {
		if documentRefs[slot] == "" {
			return fmt.Errorf("document slot %q is required", slot)
		}
	}
	return nil
}

// MatchFields compares extracted document fields against the asserted
// identity and returns every mismatch. Comparison is case- and
// whitespace-insensitive; fields the document did not yield are skipped
// (low extraction confidence already lowers the score).
func MatchFields(personal PersonalData, extracted map[string]string) []FieldMismatch {
	var mismatches []FieldMismatch

	check := func(field, asserted string) {
		got, ok := extracted[field]
		if !ok || asserted == "" {
			return
		}
		if !strings.EqualFold(normalize(asserted), normalize(got)) {
			mismatches = append(mismatches, FieldMismatch{
				Field:     field,
				Asserted:  asserted,
				Extracted: got,
			})
		}
	}

	check("full_name", personal.FullName)
	check("national_id", personal.NationalID)
	check("date_of_birth", personal.DateOfBirth)

	return mismatches
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// validNationalID applies a Luhn check. Non-digit separators are tolerated;
// anything shorter than 6 digits is rejected outright.
func validNationalID(id string) bool {
	var digits []int
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r == '-' || r == ' ':
			// separator, skip
		default:
			return false
		}
	}
	if len(digits) < 6 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
