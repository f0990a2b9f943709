package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/mmeshcher/storefront-system/internal/uploads"
)

type uploadResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

// Upload принимает файл и отправляет его на удалённый файловый хост.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if !h.uploader.Enabled() {
		h.writeError(w, http.StatusServiceUnavailable, "uploads are not configured")
		return
	}

	if err := r.ParseMultipartForm(uploads.MaxFileSize); err != nil {
		h.writeError(w, http.StatusBadRequest, "no file")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "no file")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, uploads.MaxFileSize))
	if err != nil {
		h.writeInternal(w, "read upload", err)
		return
	}

	url, err := h.uploader.Upload(r.Context(), header.Filename, content)
	if err != nil {
		if errors.Is(err, uploads.ErrUnsupportedFormat) {
			h.writeError(w, http.StatusBadRequest, "unsupported file format")
			return
		}
		h.writeInternal(w, "upload file", err)
		return
	}

	h.writeJSON(w, http.StatusOK, uploadResponse{Success: true, URL: url})
}

// Files возвращает список файлов в каталоге загрузок удалённого хоста.
func (h *Handler) Files(w http.ResponseWriter, r *http.Request) {
	if !h.uploader.Enabled() {
		h.writeError(w, http.StatusServiceUnavailable, "uploads are not configured")
		return
	}

	files, err := h.uploader.List(r.Context())
	if err != nil {
		h.writeInternal(w, "list files", err)
		return
	}

	h.writeData(w, files)
}
