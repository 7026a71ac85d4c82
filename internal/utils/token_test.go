package utils_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/voucher/internal/utils"
)

const testSecret = "test-secret"

func TestMemberTokenShape(t *testing.T) {
	token, err := utils.GenerateMemberToken(testSecret, "U123")
	require.NoError(t, err)

	segments := strings.Split(token, ".")
	require.Len(t, segments, 3, "token must be header.payload.signature")

	headerJSON, err := base64.RawURLEncoding.DecodeString(segments[0])
	require.NoError(t, err)
	var header map[string]string
	require.NoError(t, json.Unmarshal(headerJSON, &header))
	assert.Equal(t, "HS256", header["alg"])
	assert.Equal(t, "JWT", header["typ"])

	payloadJSON, err := base64.RawURLEncoding.DecodeString(segments[1])
	require.NoError(t, err)
	var payload struct {
		LineUserID string `json:"line_user_id"`
		Role       string `json:"role"`
		Iat        int64  `json:"iat"`
		Exp        int64  `json:"exp"`
	}
	require.NoError(t, json.Unmarshal(payloadJSON, &payload))

	assert.Equal(t, "U123", payload.LineUserID)
	assert.Equal(t, utils.RoleMember, payload.Role)
	assert.Equal(t, int64(7*24*3600), payload.Exp-payload.Iat, "expiry is fixed at issuance + 7 days")
	assert.InDelta(t, time.Now().Unix(), payload.Iat, 5)
}

func TestMemberTokenRoundTrip(t *testing.T) {
	token, err := utils.GenerateMemberToken(testSecret, "U123")
	require.NoError(t, err)

	lineUserID, role, err := utils.ParseMemberToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "U123", lineUserID)
	assert.Equal(t, utils.RoleMember, role)
}

func TestMemberTokenWrongSecret(t *testing.T) {
	token, err := utils.GenerateMemberToken(testSecret, "U123")
	require.NoError(t, err)

	_, _, err = utils.ParseMemberToken("other-secret", token)
	assert.Error(t, err)
}

func TestAPIKeyHashRoundTrip(t *testing.T) {
	hash, err := utils.HashAPIKey("super-admin-key")
	require.NoError(t, err)

	assert.True(t, utils.CheckAPIKey(hash, "super-admin-key"))
	assert.False(t, utils.CheckAPIKey(hash, "wrong-key"))
}
