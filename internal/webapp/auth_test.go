package webapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "12345:test-token"

// signInitData builds a valid initData string the way the Telegram client
// does: sorted key=value lines signed with the WebAppData-derived secret.
func signInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()

	pairs := make([]string, 0, len(fields))
	for key, value := range fields {
		pairs = append(pairs, key+"="+value)
	}
	sort.Strings(pairs)

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))

	values := url.Values{}
	for key, value := range fields {
		values.Set(key, value)
	}
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func validFields(now time.Time) map[string]string {
	return map[string]string{
		"query_id":  "AAF_test",
		"user":      `{"id":777,"first_name":"Ann","last_name":"Smith","username":"ann"}`,
		"auth_date": fmt.Sprintf("%d", now.Unix()),
	}
}

func TestVerifyInitData(t *testing.T) {
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	initData := signInitData(t, testBotToken, validFields(now))

	user, err := VerifyInitData(initData, testBotToken, now)
	require.NoError(t, err)
	assert.EqualValues(t, 777, user.ID)
	assert.Equal(t, "Ann", user.FirstName)
	assert.Equal(t, "ann", user.Username)
}

func TestVerifyInitDataRejectsWrongToken(t *testing.T) {
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	initData := signInitData(t, "99999:other-token", validFields(now))

	_, err := VerifyInitData(initData, testBotToken, now)
	assert.Error(t, err)
}

func TestVerifyInitDataRejectsTampering(t *testing.T) {
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	fields := validFields(now)
	initData := signInitData(t, testBotToken, fields)

	// Swap the signed user id for another one.
	tampered := strings.Replace(initData,
		url.QueryEscape(fields["user"]),
		url.QueryEscape(`{"id":1,"first_name":"Eve"}`), 1)
	require.NotEqual(t, initData, tampered)

	_, err := VerifyInitData(tampered, testBotToken, now)
	assert.Error(t, err)
}

func TestVerifyInitDataRejectsStalePayload(t *testing.T) {
	signedAt := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	initData := signInitData(t, testBotToken, validFields(signedAt))

	// A day plus a minute later the payload is considered replayed.
	_, err := VerifyInitData(initData, testBotToken, signedAt.Add(24*time.Hour+time.Minute))
	assert.Error(t, err)

	// Just inside the window it still verifies.
	_, err = VerifyInitData(initData, testBotToken, signedAt.Add(23*time.Hour))
	assert.NoError(t, err)
}

func TestVerifyInitDataRejectsMissingPieces(t *testing.T) {
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)

	_, err := VerifyInitData("user=%7B%22id%22%3A777%7D", testBotToken, now)
	assert.Error(t, err, "no hash at all")

	fields := validFields(now)
	delete(fields, "user")
	initData := signInitData(t, testBotToken, fields)
	_, err = VerifyInitData(initData, testBotToken, now)
	assert.Error(t, err, "hash valid but no user payload")
}
