// Package handler содержит HTTP-обработчики API сервиса магазина.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/storebot-system/internal/intent"
	"github.com/mmeshcher/storebot-system/internal/middleware"
	"github.com/mmeshcher/storebot-system/internal/model"
	"github.com/mmeshcher/storebot-system/internal/repository"
	"github.com/mmeshcher/storebot-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Identify(ctx context.Context, chatID, username string) (*model.User, error)
	SetLocale(ctx context.Context, chatID, locale string) error
	ListProducts(ctx context.Context) ([]model.ProductStock, error)
	PaymentInstructions(method string) (string, error)
	PlaceOrder(ctx context.Context, chatID string, productID int64) (*model.Order, error)
	Deliver(ctx context.Context, chatID string, orderID int64, method model.DeliveryMethod) (*model.Order, error)
	RequestTopUp(ctx context.Context, chatID, method, note string) (*model.TopUpRequest, error)
	ApproveTopUp(ctx context.Context, requestID int64, adminChatID string, amountCents int64) (*model.TopUpRequest, error)
	RejectTopUp(ctx context.Context, requestID int64, adminChatID string) (*model.TopUpRequest, error)
	TopUpHistory(ctx context.Context, chatID string) ([]model.TopUpRequest, error)
	PendingTopUps(ctx context.Context, adminChatID string) ([]model.TopUpRequest, error)
	Statistics(ctx context.Context, chatID string) (*model.UserStats, error)
	AddProduct(ctx context.Context, adminChatID, nameKey string, priceCents int64) (*model.Product, error)
	AddUnits(ctx context.Context, adminChatID string, productID int64, codesText string) (int64, error)
	BanUser(ctx context.Context, adminChatID, targetChatID string) error
}

// Handler реализует HTTP-обработчики API сервиса магазина.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// toCents переводит сумму в долларах в центы. Округление обязательно:
// усечение теряет цент на суммах вида 19.99.
func toCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError переводит ошибки бизнес-правил в коды и машинные ключи для слоя
// презентации. Инфраструктурные ошибки журналируются и скрываются за 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrOutOfStock):
		h.writeJSON(w, http.StatusConflict, errorResponse{Error: "out_of_stock"})
	case errors.Is(err, repository.ErrInsufficientBalance):
		h.writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: "insufficient_balance"})
	case errors.Is(err, repository.ErrUserBanned):
		h.writeJSON(w, http.StatusForbidden, errorResponse{Error: "user_banned"})
	case errors.Is(err, service.ErrNotAdmin):
		h.writeJSON(w, http.StatusForbidden, errorResponse{Error: "not_admin"})
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrTopUpNotFound):
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
	case errors.Is(err, service.ErrUnsupportedPayment),
		errors.Is(err, service.ErrUnsupportedLocale),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrEmptyUpload),
		errors.Is(err, repository.ErrProductExists):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid_input"})
	case errors.Is(err, service.ErrDeliveryFailed):
		h.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "delivery_failed"})
	default:
		h.logger.Error("internal error", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "generic_error"})
	}
}

func (h *Handler) chatID(w http.ResponseWriter, r *http.Request) (string, bool) {
	chatID, ok := middleware.GetChatIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return "", false
	}
	return chatID, true
}

type identifyRequest struct {
	Username string `json:"username"`
}

type userResponse struct {
	ChatID   string  `json:"chat_id"`
	Username string  `json:"username"`
	Balance  float64 `json:"balance"`
	Locale   string  `json:"locale"`
	Role     string  `json:"role"`
	IsBanned bool    `json:"is_banned"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ChatID:   u.ChatID,
		Username: u.Username,
		Balance:  float64(u.BalanceCents) / 100,
		Locale:   u.Locale,
		Role:     string(u.Role),
		IsBanned: u.IsBanned,
	}
}

// Identify регистрирует пользователя при первом обращении и возвращает профиль.
func (h *Handler) Identify(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	var req identifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.service.Identify(r.Context(), chatID, req.Username)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Me возвращает профиль текущего пользователя.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	user, err := h.service.Identify(r.Context(), chatID, "")
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

type localeRequest struct {
	Locale string `json:"locale"`
}

// SetLocale сохраняет выбранный пользователем язык.
func (h *Handler) SetLocale(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	var req localeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Locale == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SetLocale(r.Context(), chatID, req.Locale); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type productResponse struct {
	ID      int64   `json:"id"`
	NameKey string  `json:"name_key"`
	Price   float64 `json:"price"`
	Stock   int64   `json:"stock"`
}

// ListProducts возвращает активные товары с остатками.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, productResponse{
			ID:      p.Product.ID,
			NameKey: p.Product.NameKey,
			Price:   float64(p.Product.PriceCents) / 100,
			Stock:   p.Stock,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type paymentResponse struct {
	Method string `json:"method"`
	Wallet string `json:"wallet"`
}

// PaymentInstructions возвращает адрес кошелька для способа оплаты.
func (h *Handler) PaymentInstructions(w http.ResponseWriter, r *http.Request) {
	method := chi.URLParam(r, "method")

	wallet, err := h.service.PaymentInstructions(method)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, paymentResponse{Method: method, Wallet: wallet})
}

type placeOrderRequest struct {
	ProductID int64 `json:"product_id"`
}

type orderResponse struct {
	ID             int64   `json:"id"`
	ProductID      int64   `json:"product_id"`
	Price          float64 `json:"price"`
	DeliveryMethod string  `json:"delivery_method"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"created_at"`
}

func toOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		ID:             o.ID,
		ProductID:      o.ProductID,
		Price:          float64(o.PriceCents) / 100,
		DeliveryMethod: string(o.DeliveryMethod),
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt.Format(time.RFC3339),
	}
}

// PlaceOrder выполняет покупку товара текущим пользователем.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.PlaceOrder(r.Context(), chatID, req.ProductID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

type deliveryRequest struct {
	Method string `json:"method"`
}

// Deliver отправляет код по заказу выбранным способом.
func (h *Handler) Deliver(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req deliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	method := model.DeliveryMethod(req.Method)
	if method != model.DeliveryText && method != model.DeliveryFile {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	order, err := h.service.Deliver(r.Context(), chatID, orderID, method)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type topUpRequestBody struct {
	Method string `json:"method"`
	Note   string `json:"note"`
}

type topUpResponse struct {
	ID         int64   `json:"id"`
	Amount     float64 `json:"amount"`
	MethodNote string  `json:"method_note"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	ApprovedAt string  `json:"approved_at,omitempty"`
}

func toTopUpResponse(t *model.TopUpRequest) topUpResponse {
	resp := topUpResponse{
		ID:         t.ID,
		Amount:     float64(t.AmountCents) / 100,
		MethodNote: t.MethodNote,
		Status:     string(t.Status),
		CreatedAt:  t.CreatedAt.Format(time.RFC3339),
	}
	if t.ApprovedAt != nil {
		resp.ApprovedAt = t.ApprovedAt.Format(time.RFC3339)
	}
	return resp
}

// RequestTopUp создаёт заявку на пополнение баланса.
func (h *Handler) RequestTopUp(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	var req topUpRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Method == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	topUp, err := h.service.RequestTopUp(r.Context(), chatID, req.Method, req.Note)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toTopUpResponse(topUp))
}

// TopUpHistory возвращает последние заявки текущего пользователя.
func (h *Handler) TopUpHistory(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	history, err := h.service.TopUpHistory(r.Context(), chatID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if len(history) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]topUpResponse, 0, len(history))
	for i := range history {
		resp = append(resp, toTopUpResponse(&history[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// PendingTopUps возвращает очередь заявок для администратора.
func (h *Handler) PendingTopUps(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	pending, err := h.service.PendingTopUps(r.Context(), chatID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]topUpResponse, 0, len(pending))
	for i := range pending {
		resp = append(resp, toTopUpResponse(&pending[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type approveRequest struct {
	Amount float64 `json:"amount"`
}

type decisionResponse struct {
	Processed bool          `json:"processed"`
	Request   topUpResponse `json:"request,omitempty"`
}

// ApproveTopUp одобряет заявку на пополнение. Повторное одобрение — no-op с
// processed=false, средства зачисляются не более одного раза.
func (h *Handler) ApproveTopUp(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	requestID, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	topUp, err := h.service.ApproveTopUp(r.Context(), requestID, chatID, toCents(req.Amount))
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyProcessed) {
			h.writeJSON(w, http.StatusOK, decisionResponse{Processed: false})
			return
		}
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, decisionResponse{Processed: true, Request: toTopUpResponse(topUp)})
}

// RejectTopUp отклоняет заявку на пополнение.
func (h *Handler) RejectTopUp(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	requestID, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	topUp, err := h.service.RejectTopUp(r.Context(), requestID, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyProcessed) {
			h.writeJSON(w, http.StatusOK, decisionResponse{Processed: false})
			return
		}
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, decisionResponse{Processed: true, Request: toTopUpResponse(topUp)})
}

type statsResponse struct {
	OrdersCount int64   `json:"orders_count"`
	TotalSpent  float64 `json:"total_spent"`
	TotalTopUp  float64 `json:"total_topup"`
	Balance     float64 `json:"balance"`
}

// Statistics возвращает агрегированную статистику текущего пользователя.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Statistics(r.Context(), chatID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, statsResponse{
		OrdersCount: stats.OrdersCount,
		TotalSpent:  float64(stats.SpentCents) / 100,
		TotalTopUp:  float64(stats.ToppedUpCents) / 100,
		Balance:     float64(stats.BalanceCents) / 100,
	})
}

type addProductRequest struct {
	NameKey string  `json:"name_key"`
	Price   float64 `json:"price"`
}

// AddProduct добавляет позицию каталога.
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	var req addProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NameKey == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	product, err := h.service.AddProduct(r.Context(), chatID, req.NameKey, toCents(req.Price))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, productResponse{
		ID:      product.ID,
		NameKey: product.NameKey,
		Price:   float64(product.PriceCents) / 100,
	})
}

type addUnitsRequest struct {
	Codes string `json:"codes"`
}

type addUnitsResponse struct {
	Added int64 `json:"added"`
}

// AddUnits загружает коды товара пачкой.
func (h *Handler) AddUnits(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req addUnitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	added, err := h.service.AddUnits(r.Context(), chatID, productID, req.Codes)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, addUnitsResponse{Added: added})
}

// BanUser помечает пользователя заблокированным.
func (h *Handler) BanUser(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}

	target := chi.URLParam(r, "chatID")
	if err := h.service.BanUser(r.Context(), chatID, target); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type intentRequest struct {
	Command  string `json:"command"`
	Callback string `json:"callback"`
}

type intentResponse struct {
	Kind      string `json:"kind"`
	ProductID int64  `json:"product_id,omitempty"`
	OrderID   int64  `json:"order_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Locale    string `json:"locale,omitempty"`
}

// ResolveIntent нормализует команду или данные кнопки в единое внутреннее
// представление. Шлюз пересылает сырые строки транспорта и получает
// структурированное действие.
func (h *Handler) ResolveIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	in, err := intent.Parse(req.Command, req.Callback)
	if err != nil {
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "unknown_intent"})
		return
	}

	h.writeJSON(w, http.StatusOK, intentResponse{
		Kind:      string(in.Kind),
		ProductID: in.ProductID,
		OrderID:   in.OrderID,
		Method:    in.Method,
		Locale:    in.Locale,
	})
}
