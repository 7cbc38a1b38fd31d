package coordinator_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verigate/internal/audit"
	auditmem "verigate/internal/audit/store/memory"
	"verigate/internal/verification"
	"verigate/internal/verification/coordinator"
	"verigate/internal/verification/store"
	"verigate/internal/verification/store/memory"
)

type CoordinatorSuite struct {
	suite.Suite
	primary *memory.Store
	legacy  *memory.Store
	audits  *auditmem.Store
	coord   *coordinator.Coordinator
	actor   audit.Actor
	ctx     context.Context
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.primary = memory.New()
	s.legacy = memory.New()
	s.audits = auditmem.New()
	s.actor = audit.Actor{ID: "system", Role: "system"}
	s.ctx = context.Background()

	recorder := audit.NewRecorder(s.audits, slog.New(slog.DiscardHandler))
	coord, err := coordinator.New(s.primary, s.legacy, recorder, slog.New(slog.DiscardHandler))
	s.Require().NoError(err)
	s.coord = coord
}

func (s *CoordinatorSuite) newRecord(userID string) *verification.Record {
	return &verification.Record{
		UserID:      userID,
		Level:       verification.LevelNone,
		Status:      verification.StatusPending,
		SubmittedAt: time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC),
		DocumentRefs: map[string]string{
			verification.SlotIDCardFront: "s3://docs/front.jpg",
			verification.SlotSelfie:      "s3://docs/selfie.jpg",
		},
	}
}

func (s *CoordinatorSuite) TestCreateCycle() {
	s.Run("writes both stores and audits the create", func() {
		id, err := s.coord.CreateCycle(s.ctx, s.newRecord("u1"), s.actor)
		s.Require().NoError(err)
		s.NotEmpty(id)

		primaryRec, err := s.primary.GetLatestByUser(s.ctx, "u1")
		s.Require().NoError(err)
		s.Equal(id, primaryRec.ID)

		legacyRec, err := s.legacy.GetLatestByUser(s.ctx, "u1")
		s.Require().NoError(err)
		s.Equal(id, legacyRec.ID, "legacy copy carries the primary id")

		entries := s.audits.All()
		s.Require().Len(entries, 1)
		s.Equal(audit.OpCreate, entries[0].Operation)
	})

	s.Run("legacy failure does not fail the create", func() {
		s.legacy.FailWrites = errors.New("legacy store down")

		id, err := s.coord.CreateCycle(s.ctx, s.newRecord("u2"), s.actor)
		s.Require().NoError(err)
		s.NotEmpty(id)

		_, err = s.primary.GetLatestByUser(s.ctx, "u2")
		s.NoError(err)

		// The divergence shows up in the audit trail.
		entries := s.audits.All()
		s.Require().Len(entries, 2)
		s.Contains(entries[0].Reason, "legacy write failed")
	})

	s.Run("primary failure fails the create", func() {
		s.primary.FailWrites = errors.New("primary down")
		_, err := s.coord.CreateCycle(s.ctx, s.newRecord("u3"), s.actor)
		s.Error(err)
	})
}

func (s *CoordinatorSuite) TestApplyUpdate() {
	status := verification.StatusAIVerified
	level := verification.LevelFull
	score := 91.5
	update := store.Update{Status: &status, Level: &level, ConfidenceScore: &score}

	s.Run("updates both stores and audits with diff", func() {
		rec := s.newRecord("u1")
		_, err := s.coord.CreateCycle(s.ctx, rec, s.actor)
		s.Require().NoError(err)

		updated, err := s.coord.ApplyUpdate(s.ctx, rec, update, s.actor, "pipeline decision")
		s.Require().NoError(err)
		s.Equal(verification.StatusAIVerified, updated.Status)

		primaryRec, err := s.primary.GetLatestByUser(s.ctx, "u1")
		s.Require().NoError(err)
		s.Equal(verification.StatusAIVerified, primaryRec.Status)

		legacyRec, err := s.legacy.GetLatestByUser(s.ctx, "u1")
		s.Require().NoError(err)
		s.Equal(verification.StatusAIVerified, legacyRec.Status)

		entries := s.audits.All()
		s.Require().Len(entries, 2)
		updateEntry := entries[1]
		s.Equal(audit.OpUpdate, updateEntry.Operation)
		s.Require().NotNil(updateEntry.Diff)
		s.Contains(updateEntry.Diff, "kycStatus")
		s.Contains(updateEntry.Diff, "aiScore")
		s.NotContains(updateEntry.Diff, "documentUrls", "unchanged fields stay out of the diff")
	})

	s.Run("missing legacy document is recreated", func() {
		rec := s.newRecord("u2")
		id, err := s.primary.Create(s.ctx, rec)
		s.Require().NoError(err)
		rec.ID = id

		_, err = s.coord.ApplyUpdate(s.ctx, rec, update, s.actor, "pipeline decision")
		s.Require().NoError(err)

		legacyRec, err := s.legacy.GetLatestByUser(s.ctx, "u2")
		s.Require().NoError(err)
		s.Equal(verification.StatusAIVerified, legacyRec.Status)
	})

	s.Run("legacy write failure does not fail the update", func() {
		rec := s.newRecord("u3")
		_, err := s.coord.CreateCycle(s.ctx, rec, s.actor)
		s.Require().NoError(err)

		s.legacy.FailWrites = errors.New("legacy store down")
		updated, err := s.coord.ApplyUpdate(s.ctx, rec, update, s.actor, "pipeline decision")
		s.Require().NoError(err)
		s.Equal(verification.StatusAIVerified, updated.Status)
	})
}

func (s *CoordinatorSuite) TestRead() {
	s.Run("read after write resolves from the new store", func() {
		rec := s.newRecord("u1")
		_, err := s.coord.CreateCycle(s.ctx, rec, s.actor)
		s.Require().NoError(err)

		p, err := s.coord.Read(s.ctx, "u1")
		s.Require().NoError(err)
		s.Equal(verification.SourceNew, p.Source)
		s.Equal(verification.StatusPending, p.Status)
	})

	s.Run("new store outage falls back to the legacy typed document", func() {
		rec := s.newRecord("u2")
		_, err := s.coord.CreateCycle(s.ctx, rec, s.actor)
		s.Require().NoError(err)

		s.primary.FailReads = errors.New("primary down")
		p, err := s.coord.Read(s.ctx, "u2")
		s.Require().NoError(err)
		s.Equal(verification.SourceLegacy, p.Source)
		s.Equal(verification.StatusPending, p.Status)
	})

	s.Run("pre-migration user resolves from the generic document", func() {
		s.legacy.SetUserDocument("u3", map[string]any{
			"kyc_status":       "verified",
			"kyc_level":        "full",
			"kyc_submitted_at": "2024-11-05T08:30:00Z",
			"kyc_ai_score":     float64(88),
			"kyc_background_check": map[string]any{
				"passed":     true,
				"risk_level": "low",
			},
		})

		p, err := s.coord.Read(s.ctx, "u3")
		s.Require().NoError(err)
		s.Equal(verification.SourceLegacy, p.Source)
		s.Equal(verification.StatusVerified, p.Status)
		s.Equal(verification.LevelFull, p.Level)
		s.Require().NotNil(p.ConfidenceScore)
		s.InDelta(88, *p.ConfidenceScore, 1e-9)
		s.Require().NotNil(p.BackgroundCheck)
		s.True(p.BackgroundCheck.Passed)
	})

	s.Run("camelCase wins over snake_case in a mixed document", func() {
		s.legacy.SetUserDocument("u4", map[string]any{
			"kyc_status": "pending",
			"kycStatus":  "verified",
		})

		p, err := s.coord.Read(s.ctx, "u4")
		s.Require().NoError(err)
		s.Equal(verification.StatusVerified, p.Status)
	})

	s.Run("no record anywhere projects not_submitted", func() {
		p, err := s.coord.Read(s.ctx, "ghost")
		s.Require().NoError(err)
		s.Equal(verification.StatusNotSubmitted, p.Status)
		s.Equal(verification.LevelNone, p.Level)
		s.Equal(verification.SourceNone, p.Source)
	})

	s.Run("new outage with legacy absence still projects not_submitted", func() {
		s.primary.FailReads = errors.New("primary down")
		p, err := s.coord.Read(s.ctx, "ghost")
		s.Require().NoError(err)
		s.Equal(verification.StatusNotSubmitted, p.Status)
	})

	s.Run("both stores down is the only error case", func() {
		s.primary.FailReads = errors.New("primary down")
		s.legacy.FailReads = errors.New("legacy down")
		_, err := s.coord.Read(s.ctx, "anyone")
		s.Error(err)
	})
}
