package utils

import (
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockPlayer_SerializesAndCleansUp(t *testing.T) {
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := LockPlayer(42)
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Zero(t, heldLocks())
}

func TestNormalizeMsisdn(t *testing.T) {
	cases := map[string]string{
		"(555) 123-4567":  "+15551234567",
		"15551234567":     "+15551234567",
		"+44 7700 900123": "+447700900123",
	}
	for in, want := range cases {
		got, err := NormalizeMsisdn(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, bad := range []string{"", "12345", "555-CALL-NOW", "+1234"} {
		_, err := NormalizeMsisdn(bad)
		assert.ErrorIs(t, err, ErrInvalidMsisdn, bad)
	}
}

func TestMaskMsisdn(t *testing.T) {
	assert.Equal(t, "********4567", MaskMsisdn("+15551234567"))
	assert.Equal(t, "123", MaskMsisdn("123"))
}

func TestRandomDigits(t *testing.T) {
	code, err := RandomDigits(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("12.50")
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.RequireFromString("12.5")))

	v, err = ParseAmount(float64(3))
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.NewFromInt(3)))

	_, err = ParseAmount(nil)
	assert.ErrorIs(t, err, ErrAmountRequired)
	_, err = ParseAmount("ten")
	assert.Error(t, err)
	_, err = ParseAmount(math.NaN())
	assert.Error(t, err)
}

func TestParseAmountFromJSON(t *testing.T) {
	for raw, want := range map[string]string{
		`12.5`:                  "12.5",
		`"0.10"`:                "0.1",
		`" 7 "`:                 "7",
		`123456789.12345678901`: "123456789.12345678901",
	} {
		v, err := ParseAmount(json.RawMessage(raw))
		require.NoError(t, err, raw)
		assert.True(t, v.Equal(decimal.RequireFromString(want)), raw)
	}

	for _, raw := range []string{``, `null`, `""`} {
		_, err := ParseAmount(json.RawMessage(raw))
		assert.ErrorIs(t, err, ErrAmountRequired, raw)
	}
	for _, raw := range []string{`"ten"`, `true`, `[1]`, `{"v":1}`} {
		_, err := ParseAmount(json.RawMessage(raw))
		assert.Error(t, err, raw)
	}
}

func TestJWT_RoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")
	defer SetJWTSecret("")

	token, err := SignJWT(77, "player", time.Hour)
	require.NoError(t, err)

	claims, err := VerifyJWTToken(token)
	require.NoError(t, err)
	id, err := ClaimSubject(claims)
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
	assert.Equal(t, "player", ClaimRole(claims))
}

func TestJWT_RejectsExpiredAndForeign(t *testing.T) {
	SetJWTSecret("test-secret")
	defer SetJWTSecret("")

	expired, err := SignJWT(1, "player", -time.Minute)
	require.NoError(t, err)
	_, err = VerifyJWTToken(expired)
	assert.Error(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1", "exp": time.Now().Add(time.Hour).Unix()})
	signed, err := foreign.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = VerifyJWTToken(signed)
	assert.Error(t, err)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"})
	signed, err = noExp.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = VerifyJWTToken(signed)
	assert.Error(t, err)
}

func TestClaimSubject_Invalid(t *testing.T) {
	_, err := ClaimSubject(jwt.MapClaims{"sub": "abc"})
	assert.Error(t, err)
	_, err = ClaimSubject(jwt.MapClaims{})
	assert.Error(t, err)
}

func TestRateLimiter_PerKey(t *testing.T) {
	rl := NewRateLimiter(time.Hour, 2)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	assert.Equal(t, 0, rl.Cleanup(time.Hour))
	assert.Equal(t, 2, rl.Cleanup(-time.Second))
	assert.True(t, rl.Allow("a"))
}
