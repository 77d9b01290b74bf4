// Package service реализует бизнес-логику магазина цифровых товаров.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/storebot-system/internal/config"
	"github.com/mmeshcher/storebot-system/internal/i18n"
	"github.com/mmeshcher/storebot-system/internal/model"
	"github.com/mmeshcher/storebot-system/internal/notify"
	"github.com/mmeshcher/storebot-system/internal/repository"
	"github.com/mmeshcher/storebot-system/internal/validation"
)

// ErrNotAdmin возвращается при административной операции от имени обычного пользователя.
var (
	ErrNotAdmin = errors.New("operation requires admin role")
	// ErrUnsupportedPayment возвращается для способа оплаты, не включённого в конфигурации.
	ErrUnsupportedPayment = errors.New("unsupported payment method")
	// ErrUnsupportedLocale возвращается для языка вне списка поддерживаемых.
	ErrUnsupportedLocale = errors.New("unsupported locale")
	// ErrInvalidAmount возвращается для неположительной суммы пополнения.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrEmptyUpload возвращается, если после нормализации не осталось ни одного кода.
	ErrEmptyUpload = errors.New("no codes in upload")
	// ErrDeliveryFailed возвращается, если шлюз не смог доставить код.
	// Заказ при этом остаётся выполненным: код можно получить повторно по чеку.
	ErrDeliveryFailed = errors.New("delivery failed")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	GetOrCreateUser(ctx context.Context, chatID, username string) (*model.User, error)
	GetUserByChatID(ctx context.Context, chatID string) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	SetUserLocale(ctx context.Context, chatID, locale string) error
	BanUser(ctx context.Context, adminID int64, chatID string) error
	CreateProduct(ctx context.Context, adminID int64, nameKey string, priceCents int64) (*model.Product, error)
	GetProduct(ctx context.Context, productID int64) (*model.Product, error)
	ListActiveProducts(ctx context.Context) ([]model.ProductStock, error)
	GetStockCount(ctx context.Context, productID int64) (int64, error)
	AddUnits(ctx context.Context, adminID, productID int64, payloads []string) (int64, error)
	PlaceOrder(ctx context.Context, userID, productID int64) (*model.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	GetOrderPayload(ctx context.Context, orderID int64) (string, error)
	SetOrderDelivery(ctx context.Context, orderID int64, method model.DeliveryMethod) error
	CreateTopUpRequest(ctx context.Context, userID int64, methodNote string) (*model.TopUpRequest, error)
	ApproveTopUp(ctx context.Context, requestID, adminID, amountCents int64) (*model.TopUpRequest, error)
	RejectTopUp(ctx context.Context, requestID, adminID int64) (*model.TopUpRequest, error)
	GetTopUpsByUser(ctx context.Context, userID int64, limit int) ([]model.TopUpRequest, error)
	GetPendingTopUps(ctx context.Context) ([]model.TopUpRequest, error)
	GetUserStats(ctx context.Context, userID int64) (*model.UserStats, error)
}

const topUpHistoryLimit = 10

// Service содержит бизнес-логику магазина.
type Service struct {
	repo       Repository
	gateway    notify.Gateway
	translator i18n.Translator
	cfg        *config.Config
	logger     *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и шлюзом сообщений.
func NewService(repo Repository, gateway notify.Gateway, translator i18n.Translator, cfg *config.Config, logger *zap.Logger) *Service {
	return &Service{
		repo:       repo,
		gateway:    gateway,
		translator: translator,
		cfg:        cfg,
		logger:     logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Identify возвращает пользователя по идентификатору чата, создавая его при
// первом обращении.
func (s *Service) Identify(ctx context.Context, chatID, username string) (*model.User, error) {
	return s.repo.GetOrCreateUser(ctx, chatID, username)
}

// SetLocale сохраняет выбранный пользователем язык.
func (s *Service) SetLocale(ctx context.Context, chatID, locale string) error {
	if !s.cfg.IsLocaleSupported(locale) {
		return fmt.Errorf("%w: %s", ErrUnsupportedLocale, locale)
	}

	user, err := s.repo.GetUserByChatID(ctx, chatID)
	if err != nil {
		return err
	}
	if user.IsBanned {
		return repository.ErrUserBanned
	}

	return s.repo.SetUserLocale(ctx, chatID, locale)
}

// ListProducts возвращает активные товары вместе с остатками.
func (s *Service) ListProducts(ctx context.Context) ([]model.ProductStock, error) {
	return s.repo.ListActiveProducts(ctx)
}

// PaymentInstructions возвращает адрес кошелька для указанного способа оплаты.
func (s *Service) PaymentInstructions(method string) (string, error) {
	if !s.cfg.IsPaymentMethodSupported(method) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPayment, method)
	}
	wallet, ok := s.cfg.Wallets[method]
	if !ok || wallet == "" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPayment, method)
	}
	return wallet, nil
}

// PlaceOrder выполняет покупку товара пользователем. Сама транзакция
// выполняется в хранилище; здесь — проверка пользователя и уведомления
// администратора после коммита.
func (s *Service) PlaceOrder(ctx context.Context, chatID string, productID int64) (*model.Order, error) {
	user, err := s.repo.GetUserByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if user.IsBanned {
		return nil, repository.ErrUserBanned
	}

	order, err := s.repo.PlaceOrder(ctx, user.ID, productID)
	if err != nil {
		return nil, err
	}

	s.notifyAfterOrder(ctx, user, order)
	return order, nil
}

// notifyAfterOrder отправляет администратору уведомление о заказе и
// предупреждения об остатках. Сбои только журналируются: заказ уже совершён.
func (s *Service) notifyAfterOrder(ctx context.Context, user *model.User, order *model.Order) {
	if s.cfg.AdminChatID == "" {
		return
	}

	product, err := s.repo.GetProduct(ctx, order.ProductID)
	if err != nil {
		s.logger.Warn("post-order product lookup failed", zap.Error(err), zap.Int64("orderID", order.ID))
		return
	}
	productName := s.translator.T(s.cfg.DefaultLocale, product.NameKey)

	msg := s.translator.Tf(s.cfg.DefaultLocale, "admin_new_order",
		user.Username, productName, float64(order.PriceCents)/100)
	if err := s.gateway.SendText(ctx, s.cfg.AdminChatID, msg); err != nil {
		s.logger.Warn("admin order notification failed", zap.Error(err), zap.Int64("orderID", order.ID))
	}

	stock, err := s.repo.GetStockCount(ctx, order.ProductID)
	if err != nil {
		s.logger.Warn("post-order stock check failed", zap.Error(err), zap.Int64("productID", order.ProductID))
		return
	}

	var alert string
	switch {
	case stock == 0:
		alert = s.translator.Tf(s.cfg.DefaultLocale, "admin_out_of_stock", productName)
	case stock <= s.cfg.LowStockThreshold:
		alert = s.translator.Tf(s.cfg.DefaultLocale, "admin_low_stock", productName, stock)
	default:
		return
	}
	if err := s.gateway.SendText(ctx, s.cfg.AdminChatID, alert); err != nil {
		s.logger.Warn("admin stock alert failed", zap.Error(err), zap.Int64("productID", order.ProductID))
	}
}

// Deliver отправляет пользователю код по уже выполненному заказу выбранным
// способом и фиксирует способ доставки в чеке. Сбой доставки не откатывает
// заказ: единица уже продана, код доступен повторно по чеку.
func (s *Service) Deliver(ctx context.Context, chatID string, orderID int64, method model.DeliveryMethod) (*model.Order, error) {
	user, err := s.repo.GetUserByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != user.ID {
		return nil, repository.ErrOrderNotFound
	}

	payload, err := s.repo.GetOrderPayload(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetOrderDelivery(ctx, orderID, method); err != nil {
		return nil, err
	}
	order.DeliveryMethod = method

	switch method {
	case model.DeliveryFile:
		content := s.buildCodeFile(user.Locale, payload)
		filename := fmt.Sprintf("Order_%d.txt", order.ID)
		if err := s.gateway.SendFile(ctx, chatID, filename, content); err != nil {
			s.logger.Warn("file delivery failed", zap.Error(err), zap.Int64("orderID", order.ID))
			return order, ErrDeliveryFailed
		}
	default:
		text := s.translator.T(user.Locale, "code_sent_text") + "\n\n" + payload
		if err := s.gateway.SendText(ctx, chatID, text); err != nil {
			s.logger.Warn("text delivery failed", zap.Error(err), zap.Int64("orderID", order.ID))
			return order, ErrDeliveryFailed
		}
	}

	return order, nil
}

func (s *Service) buildCodeFile(locale, payload string) []byte {
	thanks := s.translator.T(locale, "file_delivery_thanks")
	label := s.translator.T(locale, "file_delivery_label")
	return []byte(thanks + "\n\n" + label + "\n" + payload)
}

// RequestTopUp создаёт заявку на пополнение с нулевой суммой и уведомляет
// администратора. Повторное нажатие создаёт новую независимую заявку.
func (s *Service) RequestTopUp(ctx context.Context, chatID, method, note string) (*model.TopUpRequest, error) {
	if !s.cfg.IsPaymentMethodSupported(method) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPayment, method)
	}

	user, err := s.repo.GetUserByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if user.IsBanned {
		return nil, repository.ErrUserBanned
	}

	methodNote := method
	if note != "" {
		methodNote = method + " | " + note
	}

	req, err := s.repo.CreateTopUpRequest(ctx, user.ID, methodNote)
	if err != nil {
		return nil, err
	}

	if s.cfg.AdminChatID != "" {
		msg := s.translator.Tf(s.cfg.DefaultLocale, "admin_new_topup", user.Username, methodNote)
		if err := s.gateway.SendText(ctx, s.cfg.AdminChatID, msg); err != nil {
			s.logger.Warn("admin topup notification failed", zap.Error(err), zap.Int64("requestID", req.ID))
		}
	}

	return req, nil
}

// ApproveTopUp одобряет заявку и зачисляет средства. Повторное одобрение
// возвращает ErrAlreadyProcessed и не зачисляет средства второй раз.
func (s *Service) ApproveTopUp(ctx context.Context, requestID int64, adminChatID string, amountCents int64) (*model.TopUpRequest, error) {
	admin, err := s.requireAdmin(ctx, adminChatID)
	if err != nil {
		return nil, err
	}
	if !validation.IsValidAmountCents(amountCents) {
		return nil, ErrInvalidAmount
	}

	req, err := s.repo.ApproveTopUp(ctx, requestID, admin.ID, amountCents)
	if err != nil {
		return nil, err
	}

	s.notifyTopUpDecision(ctx, req, "topup_approved", float64(amountCents)/100)
	return req, nil
}

// RejectTopUp отклоняет заявку без зачисления.
func (s *Service) RejectTopUp(ctx context.Context, requestID int64, adminChatID string) (*model.TopUpRequest, error) {
	admin, err := s.requireAdmin(ctx, adminChatID)
	if err != nil {
		return nil, err
	}

	req, err := s.repo.RejectTopUp(ctx, requestID, admin.ID)
	if err != nil {
		return nil, err
	}

	s.notifyTopUpDecision(ctx, req, "topup_rejected")
	return req, nil
}

func (s *Service) notifyTopUpDecision(ctx context.Context, req *model.TopUpRequest, key string, args ...any) {
	user, err := s.repo.GetUserByID(ctx, req.UserID)
	if err != nil {
		s.logger.Warn("topup decision user lookup failed", zap.Error(err), zap.Int64("requestID", req.ID))
		return
	}
	msg := s.translator.Tf(user.Locale, key, args...)
	if err := s.gateway.SendText(ctx, user.ChatID, msg); err != nil {
		s.logger.Warn("topup decision notification failed", zap.Error(err), zap.Int64("requestID", req.ID))
	}
}

// TopUpHistory возвращает последние заявки пользователя на пополнение.
func (s *Service) TopUpHistory(ctx context.Context, chatID string) ([]model.TopUpRequest, error) {
	user, err := s.repo.GetUserByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetTopUpsByUser(ctx, user.ID, topUpHistoryLimit)
}

// PendingTopUps возвращает очередь заявок, ожидающих решения администратора.
func (s *Service) PendingTopUps(ctx context.Context, adminChatID string) ([]model.TopUpRequest, error) {
	if _, err := s.requireAdmin(ctx, adminChatID); err != nil {
		return nil, err
	}
	return s.repo.GetPendingTopUps(ctx)
}

// Statistics возвращает агрегированную статистику пользователя.
func (s *Service) Statistics(ctx context.Context, chatID string) (*model.UserStats, error) {
	user, err := s.repo.GetUserByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetUserStats(ctx, user.ID)
}

// AddProduct добавляет позицию каталога от имени администратора.
func (s *Service) AddProduct(ctx context.Context, adminChatID, nameKey string, priceCents int64) (*model.Product, error) {
	admin, err := s.requireAdmin(ctx, adminChatID)
	if err != nil {
		return nil, err
	}
	if priceCents <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.repo.CreateProduct(ctx, admin.ID, nameKey, priceCents)
}

// AddUnits загружает коды товара пачкой. Дубликаты отбрасываются и в пачке,
// и по уникальности payload в хранилище.
func (s *Service) AddUnits(ctx context.Context, adminChatID string, productID int64, codesText string) (int64, error) {
	admin, err := s.requireAdmin(ctx, adminChatID)
	if err != nil {
		return 0, err
	}

	codes := validation.NormalizeCodes(codesText)
	if len(codes) == 0 {
		return 0, ErrEmptyUpload
	}

	return s.repo.AddUnits(ctx, admin.ID, productID, codes)
}

// BanUser помечает пользователя заблокированным.
func (s *Service) BanUser(ctx context.Context, adminChatID, targetChatID string) error {
	admin, err := s.requireAdmin(ctx, adminChatID)
	if err != nil {
		return err
	}
	return s.repo.BanUser(ctx, admin.ID, targetChatID)
}

func (s *Service) requireAdmin(ctx context.Context, chatID string) (*model.User, error) {
	user, err := s.repo.GetUserByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if user.Role != model.RoleAdmin {
		return nil, ErrNotAdmin
	}
	return user, nil
}
