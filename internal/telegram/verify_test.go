package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"testing"
)

const testBotToken = "12345:test-bot-token"

// sign подписывает параметры так же, как это делает Telegram.
func sign(t *testing.T, botToken string, params map[string]string) string {
	t.Helper()

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+params[k])
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

func encode(params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return values.Encode()
}

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()

	v, err := NewVerifier(testBotToken)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return v
}

func TestNewVerifierEmptyToken(t *testing.T) {
	if _, err := NewVerifier(""); err == nil {
		t.Fatal("expected error for empty bot token")
	}
}

func TestVerifyValidToken(t *testing.T) {
	v := newTestVerifier(t)

	params := map[string]string{
		"auth_date": "1700000000",
		"query_id":  "AAE",
		"user":      `{"id":987654321,"username":"terps_fan","first_name":"Alex"}`,
	}
	params["hash"] = sign(t, testBotToken, map[string]string{
		"auth_date": params["auth_date"],
		"query_id":  params["query_id"],
		"user":      params["user"],
	})

	user := v.Verify(encode(params))
	if user == nil {
		t.Fatal("expected verified user, got nil")
	}
	if user.ID != 987654321 {
		t.Errorf("user.ID = %d, want 987654321", user.ID)
	}
	if user.Username != "terps_fan" {
		t.Errorf("user.Username = %q, want %q", user.Username, "terps_fan")
	}
}

func TestVerifyTamperedField(t *testing.T) {
	v := newTestVerifier(t)

	params := map[string]string{
		"auth_date": "1700000000",
		"user":      `{"id":1,"username":"victim"}`,
	}
	params["hash"] = sign(t, testBotToken, map[string]string{
		"auth_date": params["auth_date"],
		"user":      params["user"],
	})

	// Подмена поля при нетронутом hash должна провалить проверку.
	params["user"] = `{"id":2,"username":"attacker"}`

	if user := v.Verify(encode(params)); user != nil {
		t.Fatalf("expected nil for tampered payload, got %+v", user)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	v := newTestVerifier(t)

	params := map[string]string{
		"auth_date": "1700000000",
		"user":      `{"id":1,"username":"someone"}`,
	}
	// Подпись внутренне согласована, но вычислена с чужим токеном.
	params["hash"] = sign(t, "99999:other-token", map[string]string{
		"auth_date": params["auth_date"],
		"user":      params["user"],
	})

	if user := v.Verify(encode(params)); user != nil {
		t.Fatalf("expected nil for foreign signature, got %+v", user)
	}
}

func TestVerifyDegenerateInputs(t *testing.T) {
	v := newTestVerifier(t)

	tests := []struct {
		name     string
		initData string
	}{
		{name: "empty", initData: ""},
		{name: "no hash", initData: "auth_date=1700000000&user=%7B%22id%22%3A1%7D"},
		{name: "malformed query", initData: "%zz"},
		{name: "hash only", initData: "hash=deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if user := v.Verify(tt.initData); user != nil {
				t.Fatalf("expected nil, got %+v", user)
			}
		})
	}
}

func TestVerifyValidSignatureWithoutUser(t *testing.T) {
	v := newTestVerifier(t)

	params := map[string]string{"auth_date": "1700000000"}
	params["hash"] = sign(t, testBotToken, map[string]string{
		"auth_date": params["auth_date"],
	})

	// Подпись верна, но личности в init-data нет.
	if user := v.Verify(encode(params)); user != nil {
		t.Fatalf("expected nil without user field, got %+v", user)
	}
}
