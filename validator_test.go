package tokenward

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

var validatorTestNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func validatorTestConfig() ValidatorConfig {
	return ValidatorConfig{
		ExpectedIssuer:     "https://auth.example.com",
		ExpectedAudience:   "admin-console",
		CheckExpiration:    true,
		CheckNotBefore:     true,
		ValidateIssuer:     true,
		ValidateAudience:   true,
		ClockSkewTolerance: 30 * time.Second,
		RequiredClaims:     []string{"sub", "exp", "iat", "email"},
		RefreshThreshold:   60 * time.Second,
	}
}

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("validator-test-secret"))
	if err != nil {
		t.Fatalf("signing test token failed: %v", err)
	}
	return raw
}

func baseTestClaims(exp time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "user-42",
		"iss":   "https://auth.example.com",
		"aud":   "admin-console",
		"iat":   validatorTestNow.Add(-time.Hour).Unix(),
		"exp":   exp.Unix(),
		"email": "user@example.com",
		"sid":   "session-7",
	}
}

func newTestValidator(cfg ValidatorConfig) *Validator {
	return NewValidator(cfg, fixedClock{now: validatorTestNow}, NewMetrics(MetricsConfig{}))
}

func TestValidateAcceptsHealthyToken(t *testing.T) {
	v := newTestValidator(validatorTestConfig())

	raw := signTestToken(t, baseTestClaims(validatorTestNow.Add(30*time.Minute)))
	result := v.Validate(raw)

	if !result.IsValid {
		t.Fatalf("expected valid token, got kind %s", result.ErrorKind)
	}
	if result.NeedsRefresh {
		t.Fatal("token well before threshold should not need refresh")
	}
	if result.TimeToExpiry != 30*time.Minute {
		t.Fatalf("expected 30m to expiry, got %s", result.TimeToExpiry)
	}
	if result.Payload == nil || result.Payload.Subject != "user-42" {
		t.Fatalf("expected payload with subject, got %+v", result.Payload)
	}
}

func TestValidateExpiryBoundary(t *testing.T) {
	v := newTestValidator(validatorTestConfig())
	skew := 30 * time.Second

	// Exactly at now-skew the boundary instant counts as expired.
	raw := signTestToken(t, baseTestClaims(validatorTestNow.Add(-skew)))
	result := v.Validate(raw)
	if result.IsValid || result.ErrorKind != KindTokenExpired || !result.IsExpired {
		t.Fatalf("boundary token should be expired, got %+v", result)
	}

	// One second inside the skew window is still acceptable.
	raw = signTestToken(t, baseTestClaims(validatorTestNow.Add(-skew+time.Second)))
	result = v.Validate(raw)
	if !result.IsValid {
		t.Fatalf("token inside skew window should be valid, got kind %s", result.ErrorKind)
	}
	if !result.NeedsRefresh {
		t.Fatal("token past its nominal expiry must need refresh")
	}
	if result.TimeToExpiry != 0 {
		t.Fatalf("expiry in the past should clamp TimeToExpiry to zero, got %s", result.TimeToExpiry)
	}
}

func TestValidateNeedsRefreshAtThreshold(t *testing.T) {
	v := newTestValidator(validatorTestConfig())

	raw := signTestToken(t, baseTestClaims(validatorTestNow.Add(60*time.Second)))
	result := v.Validate(raw)
	if !result.IsValid || !result.NeedsRefresh {
		t.Fatalf("remaining == threshold should need refresh, got %+v", result)
	}

	raw = signTestToken(t, baseTestClaims(validatorTestNow.Add(61*time.Second)))
	result = v.Validate(raw)
	if !result.IsValid || result.NeedsRefresh {
		t.Fatalf("remaining just above threshold should not need refresh, got %+v", result)
	}
}

func TestValidateNotBefore(t *testing.T) {
	v := newTestValidator(validatorTestConfig())

	claims := baseTestClaims(validatorTestNow.Add(time.Hour))
	claims["nbf"] = validatorTestNow.Add(2 * time.Minute).Unix()

	result := v.Validate(signTestToken(t, claims))
	if result.IsValid || result.ErrorKind != KindTokenNotActive {
		t.Fatalf("future nbf should reject token, got %+v", result)
	}

	// Inside the skew window the token is already usable.
	claims["nbf"] = validatorTestNow.Add(20 * time.Second).Unix()
	result = v.Validate(signTestToken(t, claims))
	if !result.IsValid {
		t.Fatalf("nbf within skew should be accepted, got kind %s", result.ErrorKind)
	}
}

func TestValidateIssuerAndAudience(t *testing.T) {
	v := newTestValidator(validatorTestConfig())

	claims := baseTestClaims(validatorTestNow.Add(time.Hour))
	claims["iss"] = "https://rogue.example.com"
	result := v.Validate(signTestToken(t, claims))
	if result.ErrorKind != KindInvalidIssuer {
		t.Fatalf("expected INVALID_ISSUER, got %s", result.ErrorKind)
	}

	claims = baseTestClaims(validatorTestNow.Add(time.Hour))
	claims["aud"] = "other-app"
	result = v.Validate(signTestToken(t, claims))
	if result.ErrorKind != KindInvalidAudience {
		t.Fatalf("expected INVALID_AUDIENCE, got %s", result.ErrorKind)
	}
}

func TestValidateRequiredClaims(t *testing.T) {
	v := newTestValidator(validatorTestConfig())

	claims := baseTestClaims(validatorTestNow.Add(time.Hour))
	delete(claims, "email")

	result := v.Validate(signTestToken(t, claims))
	if result.ErrorKind != KindMissingClaims {
		t.Fatalf("expected MISSING_CLAIMS, got %s", result.ErrorKind)
	}
	if result.Payload == nil {
		t.Fatal("payload should survive a missing-claims rejection")
	}
}

func TestValidateMalformedInput(t *testing.T) {
	v := newTestValidator(validatorTestConfig())

	result := v.Validate("not-a-token")
	if result.ErrorKind != KindInvalidFormat {
		t.Fatalf("expected INVALID_FORMAT, got %s", result.ErrorKind)
	}
	if result.Payload != nil {
		t.Fatal("malformed input should carry no payload")
	}

	result = v.Validate("")
	if result.ErrorKind != KindInvalidFormat {
		t.Fatalf("empty string should be INVALID_FORMAT, got %s", result.ErrorKind)
	}
}

func TestValidateCheckOrderExpiryBeforeIssuer(t *testing.T) {
	v := newTestValidator(validatorTestConfig())

	// Both expired and issued elsewhere; expiry must win.
	claims := baseTestClaims(validatorTestNow.Add(-time.Hour))
	claims["iss"] = "https://rogue.example.com"

	result := v.Validate(signTestToken(t, claims))
	if result.ErrorKind != KindTokenExpired {
		t.Fatalf("expiry must be reported before issuer mismatch, got %s", result.ErrorKind)
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	v := newTestValidator(validatorTestConfig())
	raw := signTestToken(t, baseTestClaims(validatorTestNow.Add(time.Hour)))

	first := v.Validate(raw)
	second := v.Validate(raw)

	if first.IsValid != second.IsValid ||
		first.ErrorKind != second.ErrorKind ||
		first.TimeToExpiry != second.TimeToExpiry {
		t.Fatalf("repeated validation diverged: %+v vs %+v", first, second)
	}
}

func TestValidateDisabledChecksAreSkipped(t *testing.T) {
	cfg := validatorTestConfig()
	cfg.CheckExpiration = false
	cfg.ValidateIssuer = false
	cfg.ValidateAudience = false
	v := newTestValidator(cfg)

	claims := baseTestClaims(validatorTestNow.Add(-time.Hour))
	claims["iss"] = "anywhere"
	claims["aud"] = "anyone"

	result := v.Validate(signTestToken(t, claims))
	if !result.IsValid {
		t.Fatalf("disabled checks should not reject, got kind %s", result.ErrorKind)
	}
	if result.TimeToExpiry != 0 {
		t.Fatalf("past expiry should still clamp TimeToExpiry, got %s", result.TimeToExpiry)
	}
}

func TestValidateRecordsMetrics(t *testing.T) {
	metrics := NewMetrics(MetricsConfig{Enabled: true})
	v := NewValidator(validatorTestConfig(), fixedClock{now: validatorTestNow}, metrics)

	v.Validate(signTestToken(t, baseTestClaims(validatorTestNow.Add(time.Hour))))
	v.Validate(signTestToken(t, baseTestClaims(validatorTestNow.Add(-time.Hour))))
	v.Validate("garbage")

	if got := metrics.Value(MetricValidateSuccess); got != 1 {
		t.Fatalf("expected 1 success, got %d", got)
	}
	if got := metrics.Value(MetricValidateFailure); got != 2 {
		t.Fatalf("expected 2 failures, got %d", got)
	}
	if got := metrics.Value(MetricTokenExpired); got != 1 {
		t.Fatalf("expected 1 expired, got %d", got)
	}
	if got := metrics.Value(MetricMalformedToken); got != 1 {
		t.Fatalf("expected 1 malformed, got %d", got)
	}
}

func TestShouldForceReauth(t *testing.T) {
	cases := []struct {
		kind ErrorKind
		want bool
	}{
		{KindNone, false},
		{KindInvalidFormat, true},
		{KindInvalidSignature, true},
		{KindTokenExpired, true},
		{KindTokenNotActive, false},
		{KindInvalidIssuer, false},
		{KindInvalidAudience, false},
		{KindMissingClaims, false},
		{KindInvalidType, false},
		{KindMalformedPayload, false},
		{KindVerificationFailed, true},
	}

	for _, tc := range cases {
		if got := ShouldForceReauth(tc.kind); got != tc.want {
			t.Fatalf("ShouldForceReauth(%s) = %v, want %v", tc.kind, got, tc.want)
		}
	}
}
