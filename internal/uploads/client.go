// Package uploads предоставляет клиент удалённого файлового хоста медиа.
//
// Бинарные файлы витрина не хранит локально: они заливаются в GitHub-репозиторий
// через contents API и раздаются по raw-ссылкам.
package uploads

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultAPIBaseURL = "https://api.github.com"
	uploadDir         = "upload"

	// MaxFileSize ограничивает размер принимаемого файла (100 МБ, как у видео).
	MaxFileSize = 100 << 20
)

// ErrUnsupportedFormat возвращается для файла с недопустимым расширением.
var ErrUnsupportedFormat = errors.New("uploads: unsupported file format")

// ErrNotConfigured возвращается, когда клиент не настроен (нет токена или репозитория).
var ErrNotConfigured = errors.New("uploads: client not configured")

var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".mp4": true, ".webm": true, ".mov": true,
}

// Config содержит параметры доступа к репозиторию медиа.
type Config struct {
	Token      string
	Owner      string
	Repo       string
	Branch     string
	APIBaseURL string
}

// File описывает один файл в каталоге загрузок.
type File struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	SHA    string `json:"sha"`
	RawURL string `json:"raw_url"`
}

// Client инкапсулирует HTTP-взаимодействие с contents API файлового хоста.
type Client struct {
	cfg        Config
	httpClient *retryablehttp.Client
}

// NewClient создаёт клиент загрузок. Повторы сетевых ошибок берёт на себя
// retryablehttp; в остальном ядре автоматических повторов нет.
func NewClient(cfg Config) *Client {
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = 2 * time.Minute
	rc.Logger = nil

	return &Client{
		cfg:        cfg,
		httpClient: rc,
	}
}

// Enabled сообщает, настроен ли удалённый хост.
func (c *Client) Enabled() bool {
	return c.cfg.Token != "" && c.cfg.Owner != "" && c.cfg.Repo != ""
}

// Upload загружает файл и возвращает постоянную raw-ссылку на него.
// Имя файла генерируется заново, расширение проверяется по списку допустимых.
func (c *Client) Upload(ctx context.Context, originalName string, content []byte) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}

	ext := strings.ToLower(path.Ext(originalName))
	if !allowedExtensions[ext] {
		return "", ErrUnsupportedFormat
	}

	name := fmt.Sprintf("hf-%d-%d%s", time.Now().UnixMilli(), rand.Int63n(1_000_000_000), ext)
	filePath := uploadDir + "/" + name

	body, err := json.Marshal(map[string]string{
		"message": "Add " + name + " via Admin Panel",
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  c.cfg.Branch,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.cfg.APIBaseURL, c.cfg.Owner, c.cfg.Repo, filePath)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upload failed: status %d: %s", resp.StatusCode, detail)
	}

	return c.rawURL(filePath), nil
}

// List возвращает содержимое каталога загрузок.
func (c *Client) List(ctx context.Context) ([]File, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.cfg.APIBaseURL, c.cfg.Owner, c.cfg.Repo, uploadDir)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list failed: status %d", resp.StatusCode)
	}

	var entries []struct {
		Name        string `json:"name"`
		Path        string `json:"path"`
		SHA         string `json:"sha"`
		DownloadURL string `json:"download_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	files := make([]File, 0, len(entries))
	for _, e := range entries {
		rawURL := e.DownloadURL
		if rawURL == "" {
			rawURL = c.rawURL(e.Path)
		}
		files = append(files, File{
			Name:   e.Name,
			Path:   e.Path,
			SHA:    e.SHA,
			RawURL: rawURL,
		})
	}

	return files, nil
}

func (c *Client) setHeaders(req *retryablehttp.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("User-Agent", "storefront-system")
	req.Header.Set("Content-Type", "application/json")
}

func (c *Client) rawURL(filePath string) string {
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s",
		c.cfg.Owner, c.cfg.Repo, c.cfg.Branch, filePath)
}
