package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/storebot-system/internal/config"
	"github.com/mmeshcher/storebot-system/internal/i18n"
	"github.com/mmeshcher/storebot-system/internal/model"
	"github.com/mmeshcher/storebot-system/internal/repository"
)

type sentMessage struct {
	chatID string
	text   string
}

type sentFile struct {
	chatID   string
	filename string
	content  []byte
}

type stubGateway struct {
	mu       sync.Mutex
	messages []sentMessage
	files    []sentFile
	sendErr  error
}

func (g *stubGateway) SendText(ctx context.Context, chatID, text string) error {
	if g.sendErr != nil {
		return g.sendErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messages = append(g.messages, sentMessage{chatID: chatID, text: text})
	return nil
}

func (g *stubGateway) SendFile(ctx context.Context, chatID, filename string, content []byte) error {
	if g.sendErr != nil {
		return g.sendErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files = append(g.files, sentFile{chatID: chatID, filename: filename, content: content})
	return nil
}

type stubRepo struct {
	mu sync.Mutex

	users    map[string]*model.User
	product  *model.Product
	stock    int64
	orderSeq int64
	orders   map[int64]*model.Order
	payloads map[int64]string

	topUps      map[int64]*model.TopUpRequest
	topUpSeq    int64
	pending     []model.TopUpRequest
	placeErr    error
	addedCodes  []string
	bannedChats []string
	stats       *model.UserStats
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		users:    make(map[string]*model.User),
		orders:   make(map[int64]*model.Order),
		payloads: make(map[int64]string),
		topUps:   make(map[int64]*model.TopUpRequest),
	}
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) GetOrCreateUser(ctx context.Context, chatID, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[chatID]; ok {
		if username != "" {
			u.Username = username
		}
		return u, nil
	}
	u := &model.User{ID: int64(len(s.users) + 1), ChatID: chatID, Username: username, Locale: "en", Role: model.RoleUser}
	s.users[chatID] = u
	return u, nil
}

func (s *stubRepo) GetUserByChatID(ctx context.Context, chatID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[chatID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (s *stubRepo) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *stubRepo) SetUserLocale(ctx context.Context, chatID, locale string) error {
	u, err := s.GetUserByChatID(ctx, chatID)
	if err != nil {
		return err
	}
	u.Locale = locale
	return nil
}

func (s *stubRepo) BanUser(ctx context.Context, adminID int64, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[chatID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.IsBanned = true
	s.bannedChats = append(s.bannedChats, chatID)
	return nil
}

func (s *stubRepo) CreateProduct(ctx context.Context, adminID int64, nameKey string, priceCents int64) (*model.Product, error) {
	return &model.Product{ID: 1, NameKey: nameKey, PriceCents: priceCents, IsActive: true}, nil
}

func (s *stubRepo) GetProduct(ctx context.Context, productID int64) (*model.Product, error) {
	if s.product == nil {
		return nil, repository.ErrProductNotFound
	}
	return s.product, nil
}

func (s *stubRepo) ListActiveProducts(ctx context.Context) ([]model.ProductStock, error) {
	if s.product == nil {
		return nil, nil
	}
	return []model.ProductStock{{Product: *s.product, Stock: s.stock}}, nil
}

func (s *stubRepo) GetStockCount(ctx context.Context, productID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock, nil
}

func (s *stubRepo) AddUnits(ctx context.Context, adminID, productID int64, payloads []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addedCodes = append(s.addedCodes, payloads...)
	s.stock += int64(len(payloads))
	return int64(len(payloads)), nil
}

// PlaceOrder повторяет контракт хранилища: атомарный захват единицы и
// списание под общим замком стаба.
func (s *stubRepo) PlaceOrder(ctx context.Context, userID, productID int64) (*model.Order, error) {
	if s.placeErr != nil {
		return nil, s.placeErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.product == nil || !s.product.IsActive {
		return nil, repository.ErrOutOfStock
	}

	var user *model.User
	for _, u := range s.users {
		if u.ID == userID {
			user = u
			break
		}
	}
	if user == nil {
		return nil, repository.ErrUserNotFound
	}
	if user.BalanceCents < s.product.PriceCents {
		return nil, repository.ErrInsufficientBalance
	}
	if s.stock == 0 {
		return nil, repository.ErrOutOfStock
	}

	s.stock--
	user.BalanceCents -= s.product.PriceCents
	s.orderSeq++
	o := &model.Order{
		ID:             s.orderSeq,
		UserID:         userID,
		ProductID:      productID,
		UnitID:         s.orderSeq,
		PriceCents:     s.product.PriceCents,
		DeliveryMethod: model.DeliveryText,
		Status:         model.OrderStatusCompleted,
	}
	s.orders[o.ID] = o
	s.payloads[o.ID] = "CODE-STUB"
	return o, nil
}

func (s *stubRepo) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (s *stubRepo) GetOrderPayload(ctx context.Context, orderID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payloads[orderID]
	if !ok {
		return "", repository.ErrOrderNotFound
	}
	return p, nil
}

func (s *stubRepo) SetOrderDelivery(ctx context.Context, orderID int64, method model.DeliveryMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.DeliveryMethod = method
	return nil
}

func (s *stubRepo) CreateTopUpRequest(ctx context.Context, userID int64, methodNote string) (*model.TopUpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topUpSeq++
	t := &model.TopUpRequest{ID: s.topUpSeq, UserID: userID, MethodNote: methodNote, Status: model.TopUpStatusPending}
	s.topUps[t.ID] = t
	return t, nil
}

func (s *stubRepo) ApproveTopUp(ctx context.Context, requestID, adminID, amountCents int64) (*model.TopUpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topUps[requestID]
	if !ok {
		return nil, repository.ErrTopUpNotFound
	}
	if t.Status != model.TopUpStatusPending {
		return nil, repository.ErrAlreadyProcessed
	}
	t.Status = model.TopUpStatusApproved
	t.AmountCents = amountCents
	for _, u := range s.users {
		if u.ID == t.UserID {
			u.BalanceCents += amountCents
		}
	}
	return t, nil
}

func (s *stubRepo) RejectTopUp(ctx context.Context, requestID, adminID int64) (*model.TopUpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topUps[requestID]
	if !ok {
		return nil, repository.ErrTopUpNotFound
	}
	if t.Status != model.TopUpStatusPending {
		return nil, repository.ErrAlreadyProcessed
	}
	t.Status = model.TopUpStatusRejected
	return t, nil
}

func (s *stubRepo) GetTopUpsByUser(ctx context.Context, userID int64, limit int) ([]model.TopUpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.TopUpRequest
	for _, t := range s.topUps {
		if t.UserID == userID {
			res = append(res, *t)
		}
	}
	return res, nil
}

func (s *stubRepo) GetPendingTopUps(ctx context.Context) ([]model.TopUpRequest, error) {
	return s.pending, nil
}

func (s *stubRepo) GetUserStats(ctx context.Context, userID int64) (*model.UserStats, error) {
	if s.stats == nil {
		return &model.UserStats{}, nil
	}
	return s.stats, nil
}

func testConfig() *config.Config {
	return &config.Config{
		PaymentMethods:    []string{"binance_pay", "usdt_trc20"},
		Wallets:           map[string]string{"usdt_trc20": "TWMexampleaddress"},
		SupportedLocales:  []string{"en", "ru"},
		DefaultLocale:     "en",
		LowStockThreshold: 3,
	}
}

func newTestService(repo *stubRepo, gw *stubGateway, cfg *config.Config) *Service {
	if cfg == nil {
		cfg = testConfig()
	}
	return NewService(repo, gw, i18n.NewStaticTranslator(), cfg, zap.NewNop())
}

func addUser(repo *stubRepo, chatID string, balanceCents int64, role model.UserRole) *model.User {
	u := &model.User{ID: int64(len(repo.users) + 1), ChatID: chatID, Username: chatID, BalanceCents: balanceCents, Locale: "en", Role: role}
	repo.users[chatID] = u
	return u
}

func TestIdentify_UsernameUpdates(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo, &stubGateway{}, nil)

	u, err := svc.Identify(context.Background(), "chat-1", "alice")
	if err != nil {
		t.Fatalf("Identify error: %v", err)
	}
	if u.Username != "alice" {
		t.Fatalf("username = %q, want alice", u.Username)
	}

	// Запрос профиля не знает имени: сохранённое не затирается.
	u, err = svc.Identify(context.Background(), "chat-1", "")
	if err != nil {
		t.Fatalf("Identify error: %v", err)
	}
	if u.Username != "alice" {
		t.Fatalf("username erased by empty update: %q", u.Username)
	}

	// Смена имени в чате подхватывается.
	u, err = svc.Identify(context.Background(), "chat-1", "alice_new")
	if err != nil {
		t.Fatalf("Identify error: %v", err)
	}
	if u.Username != "alice_new" {
		t.Fatalf("username = %q, want alice_new", u.Username)
	}
}

func TestPlaceOrder_HappyPath(t *testing.T) {
	repo := newStubRepo()
	addUser(repo, "chat-1", 1000, model.RoleUser)
	repo.product = &model.Product{ID: 7, NameKey: "product_60_uc", PriceCents: 500, IsActive: true}
	repo.stock = 1

	svc := newTestService(repo, &stubGateway{}, nil)

	order, err := svc.PlaceOrder(context.Background(), "chat-1", 7)
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}
	if order.PriceCents != 500 {
		t.Fatalf("order price = %d, want 500", order.PriceCents)
	}
	if repo.users["chat-1"].BalanceCents != 500 {
		t.Fatalf("balance = %d, want 500", repo.users["chat-1"].BalanceCents)
	}
	if repo.stock != 0 {
		t.Fatalf("stock = %d, want 0", repo.stock)
	}

	// Повторная покупка при пустом складе.
	_, err = svc.PlaceOrder(context.Background(), "chat-1", 7)
	if !errors.Is(err, repository.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
}

func TestPlaceOrder_PriceSnapshot(t *testing.T) {
	repo := newStubRepo()
	addUser(repo, "chat-1", 1000, model.RoleUser)
	repo.product = &model.Product{ID: 7, NameKey: "product_60_uc", PriceCents: 500, IsActive: true}
	repo.stock = 1

	svc := newTestService(repo, &stubGateway{}, nil)

	order, err := svc.PlaceOrder(context.Background(), "chat-1", 7)
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}

	// Подорожание товара не меняет цену в уже выбитом чеке.
	repo.product.PriceCents = 900

	stored, err := repo.GetOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("GetOrder error: %v", err)
	}
	if stored.PriceCents != 500 {
		t.Fatalf("order price = %d after product price change, want 500", stored.PriceCents)
	}
}

func TestPlaceOrder_InsufficientBalance(t *testing.T) {
	repo := newStubRepo()
	addUser(repo, "chat-1", 100, model.RoleUser)
	repo.product = &model.Product{ID: 7, NameKey: "product_60_uc", PriceCents: 500, IsActive: true}
	repo.stock = 5

	svc := newTestService(repo, &stubGateway{}, nil)

	_, err := svc.PlaceOrder(context.Background(), "chat-1", 7)
	if !errors.Is(err, repository.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if repo.users["chat-1"].BalanceCents != 100 {
		t.Fatalf("balance changed on failed order: %d", repo.users["chat-1"].BalanceCents)
	}
	if repo.stock != 5 {
		t.Fatalf("stock changed on failed order: %d", repo.stock)
	}
}

func TestPlaceOrder_BannedUser(t *testing.T) {
	repo := newStubRepo()
	u := addUser(repo, "chat-1", 1000, model.RoleUser)
	u.IsBanned = true
	repo.product = &model.Product{ID: 7, NameKey: "product_60_uc", PriceCents: 500, IsActive: true}
	repo.stock = 1

	svc := newTestService(repo, &stubGateway{}, nil)

	_, err := svc.PlaceOrder(context.Background(), "chat-1", 7)
	if !errors.Is(err, repository.ErrUserBanned) {
		t.Fatalf("expected ErrUserBanned, got %v", err)
	}
}

func TestPlaceOrder_ConcurrentBuyersDoNotOversell(t *testing.T) {
	repo := newStubRepo()
	repo.product = &model.Product{ID: 7, NameKey: "product_60_uc", PriceCents: 500, IsActive: true}
	repo.stock = 2

	const buyers = 5
	chats := make([]string, 0, buyers)
	for i := 0; i < buyers; i++ {
		chatID := string(rune('a' + i))
		addUser(repo, chatID, 1000, model.RoleUser)
		chats = append(chats, chatID)
	}

	svc := newTestService(repo, &stubGateway{}, nil)

	var wg sync.WaitGroup
	results := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.PlaceOrder(context.Background(), chats[i], 7)
		}(i)
	}
	wg.Wait()

	var ok, outOfStock int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, repository.ErrOutOfStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 2 {
		t.Fatalf("successful orders = %d, want 2", ok)
	}
	if outOfStock != 3 {
		t.Fatalf("out of stock results = %d, want 3", outOfStock)
	}

	units := make(map[int64]struct{})
	for _, o := range repo.orders {
		if _, dup := units[o.UnitID]; dup {
			t.Fatalf("unit %d sold twice", o.UnitID)
		}
		units[o.UnitID] = struct{}{}
	}
}

func TestPlaceOrder_NotifiesAdminOnLowStock(t *testing.T) {
	repo := newStubRepo()
	addUser(repo, "chat-1", 1000, model.RoleUser)
	repo.product = &model.Product{ID: 7, NameKey: "product_60_uc", PriceCents: 500, IsActive: true}
	repo.stock = 2

	gw := &stubGateway{}
	cfg := testConfig()
	cfg.AdminChatID = "admin-chat"
	svc := newTestService(repo, gw, cfg)

	if _, err := svc.PlaceOrder(context.Background(), "chat-1", 7); err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}

	// Уведомление о заказе и предупреждение о низком остатке.
	if len(gw.messages) != 2 {
		t.Fatalf("admin messages = %d, want 2", len(gw.messages))
	}
	for _, m := range gw.messages {
		if m.chatID != "admin-chat" {
			t.Fatalf("notification went to %q, want admin-chat", m.chatID)
		}
	}
	if !strings.Contains(gw.messages[1].text, "LOW STOCK") {
		t.Fatalf("expected low stock alert, got %q", gw.messages[1].text)
	}
}

func TestDeliver_TextAndFile(t *testing.T) {
	repo := newStubRepo()
	addUser(repo, "chat-1", 1000, model.RoleUser)
	repo.product = &model.Product{ID: 7, NameKey: "product_60_uc", PriceCents: 500, IsActive: true}
	repo.stock = 2

	gw := &stubGateway{}
	svc := newTestService(repo, gw, nil)

	order, err := svc.PlaceOrder(context.Background(), "chat-1", 7)
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}

	if _, err := svc.Deliver(context.Background(), "chat-1", order.ID, model.DeliveryText); err != nil {
		t.Fatalf("Deliver text error: %v", err)
	}
	if len(gw.messages) != 1 || !strings.Contains(gw.messages[0].text, "CODE-STUB") {
		t.Fatalf("text delivery missing payload: %+v", gw.messages)
	}

	order2, err := svc.PlaceOrder(context.Background(), "chat-1", 7)
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}

	delivered, err := svc.Deliver(context.Background(), "chat-1", order2.ID, model.DeliveryFile)
	if err != nil {
		t.Fatalf("Deliver file error: %v", err)
	}
	if delivered.DeliveryMethod != model.DeliveryFile {
		t.Fatalf("delivery method = %s, want file", delivered.DeliveryMethod)
	}
	if len(gw.files) != 1 || !strings.Contains(string(gw.files[0].content), "CODE-STUB") {
		t.Fatalf("file delivery missing payload: %+v", gw.files)
	}
}

func TestDeliver_GatewayFailureKeepsOrder(t *testing.T) {
	repo := newStubRepo()
	addUser(repo, "chat-1", 1000, model.RoleUser)
	repo.product = &model.Product{ID: 7, NameKey: "product_60_uc", PriceCents: 500, IsActive: true}
	repo.stock = 1

	gw := &stubGateway{sendErr: errors.New("gateway down")}
	svc := newTestService(repo, gw, nil)

	order, err := svc.PlaceOrder(context.Background(), "chat-1", 7)
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}

	_, err = svc.Deliver(context.Background(), "chat-1", order.ID, model.DeliveryText)
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}

	// Заказ остаётся выполненным, код доступен повторно.
	payload, err := repo.GetOrderPayload(context.Background(), order.ID)
	if err != nil || payload == "" {
		t.Fatalf("payload lost after failed delivery: %q, %v", payload, err)
	}
}

func TestDeliver_ForeignOrder(t *testing.T) {
	repo := newStubRepo()
	addUser(repo, "owner", 1000, model.RoleUser)
	addUser(repo, "other", 1000, model.RoleUser)
	repo.product = &model.Product{ID: 7, NameKey: "product_60_uc", PriceCents: 500, IsActive: true}
	repo.stock = 1

	svc := newTestService(repo, &stubGateway{}, nil)

	order, err := svc.PlaceOrder(context.Background(), "owner", 7)
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}

	_, err = svc.Deliver(context.Background(), "other", order.ID, model.DeliveryText)
	if !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for foreign order, got %v", err)
	}
}

func TestRequestTopUp_UnsupportedMethod(t *testing.T) {
	repo := newStubRepo()
	addUser(repo, "chat-1", 0, model.RoleUser)

	svc := newTestService(repo, &stubGateway{}, nil)

	_, err := svc.RequestTopUp(context.Background(), "chat-1", "paypal", "")
	if !errors.Is(err, ErrUnsupportedPayment) {
		t.Fatalf("expected ErrUnsupportedPayment, got %v", err)
	}
}

func TestApproveTopUp_CreditsOnce(t *testing.T) {
	repo := newStubRepo()
	addUser(repo, "admin", 0, model.RoleAdmin)
	addUser(repo, "chat-1", 0, model.RoleUser)

	svc := newTestService(repo, &stubGateway{}, nil)

	req, err := svc.RequestTopUp(context.Background(), "chat-1", "usdt_trc20", "txid-123")
	if err != nil {
		t.Fatalf("RequestTopUp error: %v", err)
	}
	if req.AmountCents != 0 {
		t.Fatalf("pending amount = %d, want 0", req.AmountCents)
	}

	approved, err := svc.ApproveTopUp(context.Background(), req.ID, "admin", 2000)
	if err != nil {
		t.Fatalf("ApproveTopUp error: %v", err)
	}
	if approved.Status != model.TopUpStatusApproved {
		t.Fatalf("status = %s, want approved", approved.Status)
	}
	if repo.users["chat-1"].BalanceCents != 2000 {
		t.Fatalf("balance = %d, want 2000", repo.users["chat-1"].BalanceCents)
	}

	// Повторное одобрение не зачисляет средства второй раз.
	_, err = svc.ApproveTopUp(context.Background(), req.ID, "admin", 2000)
	if !errors.Is(err, repository.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if repo.users["chat-1"].BalanceCents != 2000 {
		t.Fatalf("balance double-credited: %d", repo.users["chat-1"].BalanceCents)
	}
}

func TestApproveTopUp_RequiresAdmin(t *testing.T) {
	repo := newStubRepo()
	addUser(repo, "chat-1", 0, model.RoleUser)

	svc := newTestService(repo, &stubGateway{}, nil)

	_, err := svc.ApproveTopUp(context.Background(), 1, "chat-1", 2000)
	if !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
}

func TestApproveTopUp_RejectsNonPositiveAmount(t *testing.T) {
	repo := newStubRepo()
	addUser(repo, "admin", 0, model.RoleAdmin)

	svc := newTestService(repo, &stubGateway{}, nil)

	_, err := svc.ApproveTopUp(context.Background(), 1, "admin", 0)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestRejectTopUp_NoCredit(t *testing.T) {
	repo := newStubRepo()
	addUser(repo, "admin", 0, model.RoleAdmin)
	addUser(repo, "chat-1", 0, model.RoleUser)

	svc := newTestService(repo, &stubGateway{}, nil)

	req, err := svc.RequestTopUp(context.Background(), "chat-1", "usdt_trc20", "")
	if err != nil {
		t.Fatalf("RequestTopUp error: %v", err)
	}

	rejected, err := svc.RejectTopUp(context.Background(), req.ID, "admin")
	if err != nil {
		t.Fatalf("RejectTopUp error: %v", err)
	}
	if rejected.Status != model.TopUpStatusRejected {
		t.Fatalf("status = %s, want rejected", rejected.Status)
	}
	if repo.users["chat-1"].BalanceCents != 0 {
		t.Fatalf("balance credited on reject: %d", repo.users["chat-1"].BalanceCents)
	}
}

func TestSetLocale_Unsupported(t *testing.T) {
	repo := newStubRepo()
	addUser(repo, "chat-1", 0, model.RoleUser)

	svc := newTestService(repo, &stubGateway{}, nil)

	if err := svc.SetLocale(context.Background(), "chat-1", "fr"); !errors.Is(err, ErrUnsupportedLocale) {
		t.Fatalf("expected ErrUnsupportedLocale, got %v", err)
	}
	if err := svc.SetLocale(context.Background(), "chat-1", "ru"); err != nil {
		t.Fatalf("SetLocale error: %v", err)
	}
}

func TestSetLocale_BannedUser(t *testing.T) {
	repo := newStubRepo()
	u := addUser(repo, "chat-1", 0, model.RoleUser)
	u.IsBanned = true

	svc := newTestService(repo, &stubGateway{}, nil)

	if err := svc.SetLocale(context.Background(), "chat-1", "ru"); !errors.Is(err, repository.ErrUserBanned) {
		t.Fatalf("expected ErrUserBanned, got %v", err)
	}
	if repo.users["chat-1"].Locale != "en" {
		t.Fatalf("locale changed for banned user: %q", repo.users["chat-1"].Locale)
	}
}

func TestPaymentInstructions(t *testing.T) {
	svc := newTestService(newStubRepo(), &stubGateway{}, nil)

	wallet, err := svc.PaymentInstructions("usdt_trc20")
	if err != nil {
		t.Fatalf("PaymentInstructions error: %v", err)
	}
	if wallet != "TWMexampleaddress" {
		t.Fatalf("wallet = %q", wallet)
	}

	// Способ включён в конфигурации, но кошелёк не задан.
	if _, err := svc.PaymentInstructions("binance_pay"); !errors.Is(err, ErrUnsupportedPayment) {
		t.Fatalf("expected ErrUnsupportedPayment, got %v", err)
	}
}

func TestAddUnits_EmptyUpload(t *testing.T) {
	repo := newStubRepo()
	addUser(repo, "admin", 0, model.RoleAdmin)

	svc := newTestService(repo, &stubGateway{}, nil)

	_, err := svc.AddUnits(context.Background(), "admin", 7, "\n  \n")
	if !errors.Is(err, ErrEmptyUpload) {
		t.Fatalf("expected ErrEmptyUpload, got %v", err)
	}

	added, err := svc.AddUnits(context.Background(), "admin", 7, "AAA-1\nAAA-2\nAAA-1\n")
	if err != nil {
		t.Fatalf("AddUnits error: %v", err)
	}
	if added != 2 {
		t.Fatalf("added = %d, want 2", added)
	}
}

func TestBanUser_RequiresAdmin(t *testing.T) {
	repo := newStubRepo()
	addUser(repo, "chat-1", 0, model.RoleUser)
	addUser(repo, "chat-2", 0, model.RoleUser)

	svc := newTestService(repo, &stubGateway{}, nil)

	if err := svc.BanUser(context.Background(), "chat-1", "chat-2"); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
}

func TestStatistics_PassThrough(t *testing.T) {
	repo := newStubRepo()
	addUser(repo, "chat-1", 500, model.RoleUser)
	repo.stats = &model.UserStats{OrdersCount: 3, SpentCents: 1500, ToppedUpCents: 2000, BalanceCents: 500}

	svc := newTestService(repo, &stubGateway{}, nil)

	stats, err := svc.Statistics(context.Background(), "chat-1")
	if err != nil {
		t.Fatalf("Statistics error: %v", err)
	}
	if stats.OrdersCount != 3 || stats.SpentCents != 1500 || stats.ToppedUpCents != 2000 || stats.BalanceCents != 500 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
