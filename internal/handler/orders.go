package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/service"
)

// initDataHeader — заголовок, в котором витрина передаёт init-data Telegram.
const initDataHeader = "X-Telegram-Init-Data"

func initData(r *http.Request, fromBody string) string {
	if v := r.Header.Get(initDataHeader); v != "" {
		return v
	}
	return fromBody
}

type submitOrderResponse struct {
	Success    bool  `json:"success"`
	OrderID    int   `json:"orderId"`
	InternalID int64 `json:"internalId"`
	Points     *int  `json:"points,omitempty"`
}

// SubmitOrder принимает новый заказ с витрины.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req service.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}
	req.InitData = initData(r, req.InitData)

	result, err := h.service.SubmitOrder(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrEmptyOrder) {
			h.writeError(w, http.StatusBadRequest, "order has no items")
			return
		}
		h.writeInternal(w, "submit order", err)
		return
	}

	h.writeJSON(w, http.StatusOK, submitOrderResponse{
		Success:    true,
		OrderID:    result.OrderID,
		InternalID: result.InternalID,
		Points:     result.PointsAfter,
	})
}

// GetOrders возвращает сохранённые заказы, новые первыми.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.Orders(r.Context())
	if err != nil {
		h.writeInternal(w, "get orders", err)
		return
	}
	h.writeData(w, orders)
}

// DeleteOrder удаляет заказ по внутреннему или публичному идентификатору.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.writeInternal(w, "delete order", err)
		return
	}

	h.writeOK(w)
}

// ClearOrders удаляет все сохранённые заказы.
func (h *Handler) ClearOrders(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearOrders(r.Context()); err != nil {
		h.writeInternal(w, "clear orders", err)
		return
	}
	h.writeOK(w)
}

// GetLoyalty возвращает бонусный счёт подтверждённого пользователя.
func (h *Handler) GetLoyalty(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Loyalty(r.Context(), r.Header.Get(initDataHeader))
	if err != nil {
		if errors.Is(err, service.ErrIdentityRequired) {
			h.writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			return
		}
		h.writeInternal(w, "get loyalty", err)
		return
	}
	h.writeData(w, status)
}

// RedeemLoyalty обменивает баллы на код вознаграждения.
func (h *Handler) RedeemLoyalty(w http.ResponseWriter, r *http.Request) {
	code, err := h.service.RedeemLoyalty(r.Context(), r.Header.Get(initDataHeader))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrIdentityRequired):
			h.writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		case errors.Is(err, service.ErrInsufficientPoints):
			h.writeError(w, http.StatusBadRequest, "not enough points")
		default:
			h.writeInternal(w, "redeem loyalty", err)
		}
		return
	}
	h.writeData(w, code)
}

// GetLoyaltyConfig возвращает настройки программы лояльности.
func (h *Handler) GetLoyaltyConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.LoyaltyConfig(r.Context())
	if err != nil {
		h.writeInternal(w, "get loyalty config", err)
		return
	}
	h.writeData(w, cfg)
}

type loyaltyConfigRequest struct {
	Rewards []model.LoyaltyReward `json:"rewards"`
}

// UpdateLoyaltyConfig заменяет список призов программы лояльности.
func (h *Handler) UpdateLoyaltyConfig(w http.ResponseWriter, r *http.Request) {
	var req loyaltyConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	if err := h.service.UpdateLoyaltyConfig(r.Context(), req.Rewards); err != nil {
		h.writeInternal(w, "update loyalty config", err)
		return
	}

	h.writeOK(w)
}

// GetClients возвращает бонусные счета для административной панели.
func (h *Handler) GetClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.service.Clients(r.Context())
	if err != nil {
		h.writeInternal(w, "get clients", err)
		return
	}
	h.writeData(w, clients)
}

type adjustPointsRequest struct {
	Action string `json:"action"`
	Value  int    `json:"value"`
}

type adjustPointsResponse struct {
	Success bool `json:"success"`
	Points  int  `json:"points"`
}

// AdjustClientPoints выполняет административную операцию над баллами клиента.
func (h *Handler) AdjustClientPoints(w http.ResponseWriter, r *http.Request) {
	var req adjustPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	balance, err := h.service.AdjustClientPoints(r.Context(), pathParam(r, "id"), req.Action, req.Value)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, service.ErrUnknownAction):
			h.writeError(w, http.StatusBadRequest, "unknown action")
		default:
			h.writeInternal(w, "adjust client points", err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, adjustPointsResponse{Success: true, Points: balance})
}
