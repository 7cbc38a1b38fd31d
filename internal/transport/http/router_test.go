package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"verigate/internal/challenge"
	"verigate/internal/verification"
	"verigate/pkg/requestcontext"
	"verigate/pkg/sentinel"
)

const testSigningKey = "test-signing-key"

type fakeVerificationService struct {
	submit func(ctx context.Context, req verification.SubmitRequest) (*verification.SubmitResult, error)
	status func(ctx context.Context, userID string) (*verification.Projection, error)
	review func(ctx context.Context, req verification.ReviewRequest) (*verification.Projection, error)
}

func (f *fakeVerificationService) SubmitVerification(ctx context.Context, req verification.SubmitRequest) (*verification.SubmitResult, error) {
	return f.submit(ctx, req)
}

func (f *fakeVerificationService) GetVerificationStatus(ctx context.Context, userID string) (*verification.Projection, error) {
	return f.status(ctx, userID)
}

func (f *fakeVerificationService) ReviewVerification(ctx context.Context, req verification.ReviewRequest) (*verification.Projection, error) {
	return f.review(ctx, req)
}

type fakeChallengeService struct {
	issue  func(ctx context.Context, req challenge.IssueRequest) (*challenge.IssueResult, error)
	verify func(ctx context.Context, challengeID, code string) (*challenge.VerifyResult, error)
}

func (f *fakeChallengeService) Issue(ctx context.Context, req challenge.IssueRequest) (*challenge.IssueResult, error) {
	return f.issue(ctx, req)
}

func (f *fakeChallengeService) Verify(ctx context.Context, challengeID, code string) (*challenge.VerifyResult, error) {
	return f.verify(ctx, challengeID, code)
}

type RouterSuite struct {
	suite.Suite
	verifications *fakeVerificationService
	challenges    *fakeChallengeService
	router        http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.verifications = &fakeVerificationService{
		submit: func(ctx context.Context, req verification.SubmitRequest) (*verification.SubmitResult, error) {
			return &verification.SubmitResult{
				Success:  true,
				RecordID: "rec-1",
				Status:   verification.StatusAIVerified,
				Level:    verification.LevelFull,
			}, nil
		},
		status: func(ctx context.Context, userID string) (*verification.Projection, error) {
			return verification.NotSubmitted(userID), nil
		},
		review: func(ctx context.Context, req verification.ReviewRequest) (*verification.Projection, error) {
			return verification.NotSubmitted(req.UserID), nil
		},
	}
	s.challenges = &fakeChallengeService{
		issue: func(ctx context.Context, req challenge.IssueRequest) (*challenge.IssueResult, error) {
			return &challenge.IssueResult{ChallengeID: "ch-1", Code: "123456"}, nil
		},
		verify: func(ctx context.Context, challengeID, code string) (*challenge.VerifyResult, error) {
			return &challenge.VerifyResult{Subject: "+15550100"}, nil
		},
	}

	s.router = NewRouter(RouterConfig{
		KYC:  NewKYCHandler(s.verifications, slog.New(slog.DiscardHandler)),
		OTP:  NewOTPHandler(s.challenges),
		Auth: NewAuthenticator(testSigningKey),
	})
}

// SetupSubTest resets the fakes so a subtest's overrides never leak into
// the next one.
func (s *RouterSuite) SetupSubTest() {
	s.SetupTest()
}

func (s *RouterSuite) token(subject, role string) string {
	claims := accessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	s.Require().NoError(err)
	return signed
}

func (s *RouterSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) TestAuthentication() {
	s.Run("kyc endpoints require a token", func() {
		s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/kyc/status", "", nil).Code)
		s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/kyc/submit", "garbage", nil).Code)
	})

	s.Run("token with the wrong key is rejected", func() {
		claims := jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-key"))
		s.Require().NoError(err)
		s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/kyc/status", signed, nil).Code)
	})

	s.Run("authenticated subject reaches the service", func() {
		var seen string
		s.verifications.status = func(ctx context.Context, userID string) (*verification.Projection, error) {
			seen = userID
			return verification.NotSubmitted(userID), nil
		}
		rec := s.do(http.MethodGet, "/kyc/status", s.token("user-42", "user"), nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("user-42", seen)
	})

	s.Run("otp endpoints are pre-auth", func() {
		rec := s.do(http.MethodPost, "/otp/request", "", map[string]string{
			"subject": "+15550100",
			"purpose": "phone_verification",
		})
		s.Equal(http.StatusCreated, rec.Code)
	})
}

func (s *RouterSuite) TestSubmit() {
	s.Run("delegates with the authenticated user id", func() {
		var got verification.SubmitRequest
		s.verifications.submit = func(ctx context.Context, req verification.SubmitRequest) (*verification.SubmitResult, error) {
			got = req
			return &verification.SubmitResult{Success: true, RecordID: "rec-9", Status: verification.StatusPending}, nil
		}

		rec := s.do(http.MethodPost, "/kyc/submit", s.token("user-1", "user"), map[string]any{
			"personal_data": map[string]string{"full_name": "Ada Lovelace", "national_id": "79927398713"},
			"document_refs": map[string]string{"id_card_front": "ref1", "selfie": "ref2"},
			"force_recheck": true,
		})

		s.Equal(http.StatusOK, rec.Code)
		s.Equal("user-1", got.UserID)
		s.True(got.ForceRecheck)
		s.Equal("Ada Lovelace", got.Personal.FullName)
	})

	s.Run("validation failure is a 400", func() {
		s.verifications.submit = func(ctx context.Context, req verification.SubmitRequest) (*verification.SubmitResult, error) {
			return nil, fmt.Errorf("%w: full_name is required", verification.ErrInvalidSubmission)
		}
		rec := s.do(http.MethodPost, "/kyc/submit", s.token("user-1", "user"), map[string]any{})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("in-flight conflict is a 409", func() {
		s.verifications.submit = func(ctx context.Context, req verification.SubmitRequest) (*verification.SubmitResult, error) {
			return nil, fmt.Errorf("verification already in flight: %w", sentinel.ErrConflict)
		}
		rec := s.do(http.MethodPost, "/kyc/submit", s.token("user-1", "user"), map[string]any{})
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("infrastructure errors stay generic", func() {
		s.verifications.submit = func(ctx context.Context, req verification.SubmitRequest) (*verification.SubmitResult, error) {
			return nil, errors.New("pq: connection refused to 10.0.3.7")
		}
		rec := s.do(http.MethodPost, "/kyc/submit", s.token("user-1", "user"), map[string]any{})
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.NotContains(rec.Body.String(), "10.0.3.7")
	})
}

func (s *RouterSuite) TestStatusDegradesOnOutage() {
	s.verifications.status = func(ctx context.Context, userID string) (*verification.Projection, error) {
		return nil, errors.New("both stores unreachable")
	}

	rec := s.do(http.MethodGet, "/kyc/status", s.token("user-1", "user"), nil)
	s.Equal(http.StatusOK, rec.Code)

	var body verification.Projection
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal(verification.StatusNotSubmitted, body.Status)
	s.Equal("user-1", body.UserID)
}

func (s *RouterSuite) TestReview() {
	s.Run("requires the admin role", func() {
		rec := s.do(http.MethodPost, "/kyc/review", s.token("user-1", "user"), map[string]any{"user_id": "u2"})
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("admin review passes the reviewer id from the token", func() {
		var got verification.ReviewRequest
		s.verifications.review = func(ctx context.Context, req verification.ReviewRequest) (*verification.Projection, error) {
			got = req
			return verification.NotSubmitted(req.UserID), nil
		}
		rec := s.do(http.MethodPost, "/kyc/review", s.token("admin-3", "admin"), map[string]any{
			"user_id": "u2",
			"approve": true,
		})
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("admin-3", got.ReviewerID)
		s.Equal("u2", got.UserID)
		s.True(got.Approve)
	})
}

func (s *RouterSuite) TestOTP() {
	s.Run("rate limit reports tripped dimensions", func() {
		s.challenges.issue = func(ctx context.Context, req challenge.IssueRequest) (*challenge.IssueResult, error) {
			return nil, &challenge.RateLimitedError{Tripped: []string{"subject", "device"}}
		}
		rec := s.do(http.MethodPost, "/otp/request", "", map[string]string{
			"subject": "+15550100",
			"purpose": "phone_verification",
		})
		s.Equal(http.StatusTooManyRequests, rec.Code)

		var body errorResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal([]string{"subject", "device"}, body.TrippedLimits)
	})

	s.Run("issuance never leaks the plaintext code", func() {
		rec := s.do(http.MethodPost, "/otp/request", "", map[string]string{
			"subject": "+15550100",
			"purpose": "phone_verification",
		})
		s.Equal(http.StatusCreated, rec.Code)
		s.NotContains(rec.Body.String(), "123456")
	})

	s.Run("verify maps expiry to 410", func() {
		s.challenges.verify = func(ctx context.Context, challengeID, code string) (*challenge.VerifyResult, error) {
			return nil, fmt.Errorf("challenge ch-1: %w", sentinel.ErrExpired)
		}
		rec := s.do(http.MethodPost, "/otp/verify", "", map[string]string{
			"challenge_id": "ch-1",
			"code":         "123456",
		})
		s.Equal(http.StatusGone, rec.Code)
	})

	s.Run("verify returns the proven subject", func() {
		rec := s.do(http.MethodPost, "/otp/verify", "", map[string]string{
			"challenge_id": "ch-1",
			"code":         "123456",
		})
		s.Equal(http.StatusOK, rec.Code)

		var body verifyChallengeResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.True(body.Success)
		s.Equal("+15550100", body.Subject)
	})
}

func (s *RouterSuite) TestRequestContext() {
	var requestID, clientIP, deviceID string
	s.challenges.issue = func(ctx context.Context, req challenge.IssueRequest) (*challenge.IssueResult, error) {
		requestID = requestcontext.RequestID(ctx)
		clientIP = requestcontext.ClientIP(ctx)
		deviceID = requestcontext.DeviceID(ctx)
		return &challenge.IssueResult{ChallengeID: "ch-1"}, nil
	}

	req := httptest.NewRequest(http.MethodPost, "/otp/request", bytes.NewBufferString(`{"subject":"+15550100","purpose":"p"}`))
	req.Header.Set("X-Request-ID", "req-abc")
	req.Header.Set("X-Device-ID", "device-9")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusCreated, rec.Code)
	s.Equal("req-abc", requestID)
	s.Equal("req-abc", rec.Header().Get("X-Request-ID"))
	s.Equal("203.0.113.7", clientIP)
	s.Equal("device-9", deviceID)
}

func (s *RouterSuite) TestHealthz() {
	router := NewRouter(RouterConfig{
		KYC:  NewKYCHandler(s.verifications, slog.New(slog.DiscardHandler)),
		OTP:  NewOTPHandler(s.challenges),
		Auth: NewAuthenticator(testSigningKey),
		Health: []HealthCheck{
			{Name: "postgres", Probe: func(ctx context.Context) error { return nil }},
			{Name: "redis", Probe: func(ctx context.Context) error { return errors.New("connection refused") }},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	s.Equal(http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("degraded", body["status"])
	s.Equal("ok", body["postgres"])
}
