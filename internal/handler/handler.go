// Package handler содержит HTTP-обработчики API сервиса витрины.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/service"
	"github.com/mmeshcher/storefront-system/internal/uploads"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Authenticate(ctx context.Context, password string) (string, error)
	ChangePassword(ctx context.Context, newPassword string) error
	Settings(ctx context.Context) (*model.Settings, error)
	UpdateSettings(ctx context.Context, patch service.SettingsPatch) error
	Products(ctx context.Context) ([]*model.Product, error)
	UpsertProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id string) error
	ReorderProducts(ctx context.Context, orderedIDs []string) error
	SubmitOrder(ctx context.Context, req service.OrderRequest) (*service.OrderResult, error)
	Orders(ctx context.Context) ([]*model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	ClearOrders(ctx context.Context) error
	Loyalty(ctx context.Context, initData string) (*service.LoyaltyStatus, error)
	RedeemLoyalty(ctx context.Context, initData string) (*model.RewardCode, error)
	LoyaltyConfig(ctx context.Context) (*model.LoyaltyConfig, error)
	UpdateLoyaltyConfig(ctx context.Context, rewards []model.LoyaltyReward) error
	Clients(ctx context.Context) ([]service.Client, error)
	AdjustClientPoints(ctx context.Context, userID, action string, value int) (int, error)
}

// Uploader определяет контракт клиента удалённого файлового хоста.
type Uploader interface {
	Enabled() bool
	Upload(ctx context.Context, originalName string, content []byte) (string, error)
	List(ctx context.Context) ([]uploads.File, error)
}

// Handler реализует HTTP-обработчики API сервиса витрины.
type Handler struct {
	service   Service
	uploader  Uploader
	logger    *zap.Logger
	adminAuth *middleware.AdminAuth
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, uploader Uploader, logger *zap.Logger, adminAuth *middleware.AdminAuth) *Handler {
	return &Handler{
		service:   s,
		uploader:  uploader,
		logger:    logger,
		adminAuth: adminAuth,
	}
}

// Витрина ожидает конверт {"success": ..., ...} на каждый ответ.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) writeData(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func (h *Handler) writeOK(w http.ResponseWriter) {
	h.writeJSON(w, http.StatusOK, envelope{Success: true})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, envelope{Success: false, Message: message})
}

func (h *Handler) writeInternal(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, zap.Error(err))
	h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// Login проверяет пароль администратора и возвращает bearer-токен.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	token, err := h.service.Authenticate(r.Context(), req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			return
		}
		h.writeInternal(w, "login", err)
		return
	}

	h.writeJSON(w, http.StatusOK, loginResponse{Success: true, Token: token})
}

type changePasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// ChangePassword устанавливает новый пароль администратора.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	if err := h.service.ChangePassword(r.Context(), req.NewPassword); err != nil {
		if errors.Is(err, service.ErrEmptyPassword) {
			h.writeError(w, http.StatusBadRequest, "password must not be empty")
			return
		}
		h.writeInternal(w, "change password", err)
		return
	}

	h.writeOK(w)
}

// GetSettings возвращает публичные настройки витрины.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context())
	if err != nil {
		h.writeInternal(w, "get settings", err)
		return
	}
	h.writeData(w, settings)
}

// UpdateSettings выполняет частичное обновление настроек витрины.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch service.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	if err := h.service.UpdateSettings(r.Context(), patch); err != nil {
		h.writeInternal(w, "update settings", err)
		return
	}

	h.writeOK(w)
}

// GetProducts возвращает каталог в порядке рангов.
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Products(r.Context())
	if err != nil {
		h.writeInternal(w, "get products", err)
		return
	}
	h.writeData(w, products)
}

// SaveProduct создаёт или обновляет товар каталога.
func (h *Handler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	var p model.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	if err := h.service.UpsertProduct(r.Context(), &p); err != nil {
		if errors.Is(err, service.ErrEmptyProductID) {
			h.writeError(w, http.StatusBadRequest, "product id is required")
			return
		}
		h.writeInternal(w, "save product", err)
		return
	}

	h.writeOK(w)
}

type reorderRequest struct {
	ProductIDs []string `json:"productIds"`
}

// ReorderProducts переписывает ранги каталога по переданному порядку.
func (h *Handler) ReorderProducts(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	if err := h.service.ReorderProducts(r.Context(), req.ProductIDs); err != nil {
		h.writeInternal(w, "reorder products", err)
		return
	}

	h.writeOK(w)
}

// DeleteProduct удаляет товар каталога.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.writeInternal(w, "delete product", err)
		return
	}

	h.writeOK(w)
}
