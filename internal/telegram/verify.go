// Package telegram содержит проверку подписи init-data из Telegram WebApp.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strings"
)

// секретная строка-ключ первой ступени HMAC-цепочки, фиксирована протоколом Telegram
const webAppDataKey = "WebAppData"

// ErrEmptyBotToken возвращается при попытке создать верификатор без токена бота.
// Отсутствие токена — фатальная ошибка конфигурации, а не «пропускать всех».
var ErrEmptyBotToken = errors.New("telegram: empty bot token")

// User — подтверждённая личность пользователя из поля user init-data.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// Verifier проверяет подпись init-data, не храня сессий: достаточно токена бота.
type Verifier struct {
	botToken string
}

// NewVerifier создаёт верификатор для указанного токена бота.
func NewVerifier(botToken string) (*Verifier, error) {
	if botToken == "" {
		return nil, ErrEmptyBotToken
	}
	return &Verifier{botToken: botToken}, nil
}

// Verify проверяет подпись init-data и возвращает пользователя при успехе.
//
// Алгоритм: пары ключ-значение без поля hash сортируются по ключу и
// склеиваются строками key=value через \n; секрет второй ступени — это
// HMAC-SHA256("WebAppData", токен бота); подпись — hex от HMAC-SHA256
// секрета над склейкой. Несовпадение, битые данные или отсутствие hash
// означают «личность не подтверждена» (nil), а не ошибку.
//
// Свежесть init-data не проверяется: перехваченный блоб остаётся валидным
// до смены токена бота, как и в исходном развёртывании.
func (v *Verifier) Verify(initData string) *User {
	if initData == "" {
		return nil
	}

	params, err := url.ParseQuery(initData)
	if err != nil {
		return nil
	}

	gotHash := params.Get("hash")
	if gotHash == "" {
		return nil
	}
	params.Del("hash")

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+params.Get(k))
	}
	payload := strings.Join(lines, "\n")

	secret := hmac.New(sha256.New, []byte(webAppDataKey))
	secret.Write([]byte(v.botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(gotHash)) {
		return nil
	}

	userJSON := params.Get("user")
	if userJSON == "" {
		return nil
	}

	var u User
	if err := json.Unmarshal([]byte(userJSON), &u); err != nil {
		return nil
	}

	return &u
}
