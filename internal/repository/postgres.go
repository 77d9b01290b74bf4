// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mmeshcher/storebot-system/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserNotFound возвращается, если пользователь не найден.
var (
	ErrUserNotFound = errors.New("user not found")
	// ErrUserBanned возвращается при операции от имени заблокированного пользователя.
	ErrUserBanned = errors.New("user is banned")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductExists возвращается при попытке создать товар с занятым ключом имени.
	ErrProductExists = errors.New("product already exists")
	// ErrOutOfStock возвращается, если товар неактивен или свободных единиц не осталось.
	ErrOutOfStock = errors.New("out of stock")
	// ErrInsufficientBalance возвращается при попытке списания суммы, превышающей баланс.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrTopUpNotFound возвращается, если заявка на пополнение не найдена.
	ErrTopUpNotFound = errors.New("topup request not found")
	// ErrAlreadyProcessed возвращается при повторном решении по заявке на пополнение.
	ErrAlreadyProcessed = errors.New("topup request already processed")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраи полезны для Serialization Failure и Deadlocks.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		// Если это не pg-ошибка, но сетевая
		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// GetOrCreateUser возвращает пользователя по идентификатору чата,
// создавая его при первом обращении. Непустое имя пользователя обновляет
// сохранённое; пустое не затирает его — часть вызовов не знает имени.
func (r *PostgresRepository) GetOrCreateUser(ctx context.Context, chatID, username string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (chat_id, username)
		 VALUES ($1, $2)
		 ON CONFLICT (chat_id) DO UPDATE
		 SET username = CASE WHEN EXCLUDED.username <> '' THEN EXCLUDED.username ELSE users.username END
		 RETURNING id, chat_id, username, balance, locale, role, is_banned, created_at`,
		chatID, username,
	)

	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get or create user: %w", err)
	}
	return u, nil
}

// GetUserByChatID возвращает пользователя по идентификатору чата.
func (r *PostgresRepository) GetUserByChatID(ctx context.Context, chatID string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, chat_id, username, balance, locale, role, is_banned, created_at
		 FROM users WHERE chat_id = $1`,
		chatID,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по внутреннему идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, chat_id, username, balance, locale, role, is_banned, created_at
		 FROM users WHERE id = $1`,
		userID,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.ChatID, &u.Username, &u.BalanceCents, &u.Locale, &u.Role, &u.IsBanned, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUserLocale сохраняет выбранный пользователем язык.
func (r *PostgresRepository) SetUserLocale(ctx context.Context, chatID, locale string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET locale = $2 WHERE chat_id = $1`,
		chatID, locale,
	)
	if err != nil {
		return fmt.Errorf("set locale: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// BanUser помечает пользователя заблокированным и пишет запись в журнал администратора.
func (r *PostgresRepository) BanUser(ctx context.Context, adminID int64, chatID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var targetID int64
	err = tx.QueryRow(ctx,
		`UPDATE users SET is_banned = TRUE WHERE chat_id = $1 RETURNING id`,
		chatID,
	).Scan(&targetID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("ban user: %w", err)
	}

	if err := insertAdminAction(ctx, tx, adminID, "banned user", chatID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CreateProduct добавляет позицию каталога.
func (r *PostgresRepository) CreateProduct(ctx context.Context, adminID int64, nameKey string, priceCents int64) (*model.Product, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var p model.Product
	err = tx.QueryRow(ctx,
		`INSERT INTO products (name_key, price) VALUES ($1, $2)
		 RETURNING id, name_key, price, is_active, created_at`,
		nameKey, priceCents,
	).Scan(&p.ID, &p.NameKey, &p.PriceCents, &p.IsActive, &p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrProductExists, nameKey)
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	if err := insertAdminAction(ctx, tx, adminID, "added product", nameKey); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &p, nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, productID int64) (*model.Product, error) {
	var p model.Product
	err := r.pool.QueryRow(ctx,
		`SELECT id, name_key, price, is_active, created_at FROM products WHERE id = $1`,
		productID,
	).Scan(&p.ID, &p.NameKey, &p.PriceCents, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// ListActiveProducts возвращает активные товары вместе с остатками.
func (r *PostgresRepository) ListActiveProducts(ctx context.Context) ([]model.ProductStock, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name_key, p.price, p.is_active, p.created_at,
		        COUNT(u.id) FILTER (WHERE u.state = $1)
		 FROM products p
		 LEFT JOIN inventory_units u ON u.product_id = p.id
		 WHERE p.is_active
		 GROUP BY p.id
		 ORDER BY p.price`,
		string(model.UnitStateAvailable),
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.ProductStock
	for rows.Next() {
		var ps model.ProductStock
		if err := rows.Scan(&ps.Product.ID, &ps.Product.NameKey, &ps.Product.PriceCents,
			&ps.Product.IsActive, &ps.Product.CreatedAt, &ps.Stock); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, ps)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// GetStockCount возвращает количество свободных единиц товара.
func (r *PostgresRepository) GetStockCount(ctx context.Context, productID int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM inventory_units WHERE product_id = $1 AND state = $2`,
		productID, string(model.UnitStateAvailable),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count stock: %w", err)
	}
	return count, nil
}

// AddUnits загружает коды товара пачкой. Дубликаты (payload уникален во всём
// хранилище) молча пропускаются. Возвращает число принятых кодов.
func (r *PostgresRepository) AddUnits(ctx context.Context, adminID, productID int64, payloads []string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return 0, ErrProductNotFound
	}

	var added int64
	for _, payload := range payloads {
		cmdTag, err := tx.Exec(ctx,
			`INSERT INTO inventory_units (product_id, payload) VALUES ($1, $2)
			 ON CONFLICT (payload) DO NOTHING`,
			productID, payload,
		)
		if err != nil {
			return 0, fmt.Errorf("insert unit: %w", err)
		}
		added += cmdTag.RowsAffected()
	}

	if err := insertAdminAction(ctx, tx, adminID, "added stock", fmt.Sprintf("product %d: %d units", productID, added)); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return added, nil
}

// PlaceOrder выполняет покупку одной транзакцией: захват свободной единицы
// товара через FOR UPDATE SKIP LOCKED, списание баланса с повторной проверкой
// на момент коммита и создание заказа с фиксацией цены. Конкурирующий
// покупатель не ждёт чужую строку, а берёт следующую свободную.
func (r *PostgresRepository) PlaceOrder(ctx context.Context, userID, productID int64) (*model.Order, error) {
	var order *model.Order
	err := r.withRetry(ctx, func() error {
		var err error
		order, err = r.placeOrderTx(ctx, userID, productID)
		return err
	})
	return order, err
}

func (r *PostgresRepository) placeOrderTx(ctx context.Context, userID, productID int64) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var price int64
	var isActive bool
	err = tx.QueryRow(ctx,
		`SELECT price, is_active FROM products WHERE id = $1`,
		productID,
	).Scan(&price, &isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOutOfStock
		}
		return nil, fmt.Errorf("select product: %w", err)
	}
	if !isActive {
		return nil, ErrOutOfStock
	}

	var balance int64
	var banned bool
	err = tx.QueryRow(ctx,
		`SELECT balance, is_banned FROM users WHERE id = $1`,
		userID,
	).Scan(&balance, &banned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	if banned {
		return nil, ErrUserBanned
	}
	if balance < price {
		return nil, ErrInsufficientBalance
	}

	// Захват единицы: SKIP LOCKED съезжает на следующую свободную строку,
	// вместо ожидания конкурирующей транзакции.
	var unitID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM inventory_units
		 WHERE product_id = $1 AND state = $2
		 ORDER BY id
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
		productID, string(model.UnitStateAvailable),
	).Scan(&unitID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOutOfStock
		}
		return nil, fmt.Errorf("claim unit: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE inventory_units SET state = $2, reserved_at = now() WHERE id = $1`,
		unitID, string(model.UnitStateReserved),
	)
	if err != nil {
		return nil, fmt.Errorf("reserve unit: %w", err)
	}

	// Повторная проверка баланса на момент коммита: параллельная покупка того
	// же пользователя могла уже списать средства.
	cmdTag, err := tx.Exec(ctx,
		`UPDATE users SET balance = balance - $2 WHERE id = $1 AND balance >= $2`,
		userID, price,
	)
	if err != nil {
		return nil, fmt.Errorf("debit balance: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return nil, ErrInsufficientBalance
	}

	var o model.Order
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (user_id, product_id, unit_id, price, delivery_method, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, user_id, product_id, unit_id, price, delivery_method, status, created_at`,
		userID, productID, unitID, price, string(model.DeliveryText), string(model.OrderStatusCompleted),
	).Scan(&o.ID, &o.UserID, &o.ProductID, &o.UnitID, &o.PriceCents, &o.DeliveryMethod, &o.Status, &o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &o, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	var o model.Order
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, product_id, unit_id, price, delivery_method, status, created_at
		 FROM orders WHERE id = $1`,
		orderID,
	).Scan(&o.ID, &o.UserID, &o.ProductID, &o.UnitID, &o.PriceCents, &o.DeliveryMethod, &o.Status, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// GetOrderPayload возвращает содержимое проданной единицы по заказу.
func (r *PostgresRepository) GetOrderPayload(ctx context.Context, orderID int64) (string, error) {
	var payload string
	err := r.pool.QueryRow(ctx,
		`SELECT u.payload FROM orders o JOIN inventory_units u ON u.id = o.unit_id WHERE o.id = $1`,
		orderID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrOrderNotFound
		}
		return "", fmt.Errorf("get order payload: %w", err)
	}
	return payload, nil
}

// SetOrderDelivery фиксирует выбранный способ доставки. Остальные поля заказа
// после создания не меняются.
func (r *PostgresRepository) SetOrderDelivery(ctx context.Context, orderID int64, method model.DeliveryMethod) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders SET delivery_method = $2 WHERE id = $1`,
		orderID, string(method),
	)
	if err != nil {
		return fmt.Errorf("set delivery method: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// CreateTopUpRequest создаёт заявку на пополнение с нулевой суммой.
func (r *PostgresRepository) CreateTopUpRequest(ctx context.Context, userID int64, methodNote string) (*model.TopUpRequest, error) {
	var t model.TopUpRequest
	err := r.pool.QueryRow(ctx,
		`INSERT INTO topup_requests (user_id, method_note)
		 VALUES ($1, $2)
		 RETURNING id, user_id, amount, method_note, status, created_at, approved_at`,
		userID, methodNote,
	).Scan(&t.ID, &t.UserID, &t.AmountCents, &t.MethodNote, &t.Status, &t.CreatedAt, &t.ApprovedAt)
	if err != nil {
		return nil, fmt.Errorf("create topup request: %w", err)
	}
	return &t, nil
}

// ApproveTopUp переводит заявку из pending в approved и зачисляет средства —
// одной транзакцией. Условие status = 'pending' в UPDATE гарантирует, что
// зачисление выполняется не более одного раза: второй вызов видит ноль
// затронутых строк и возвращает ErrAlreadyProcessed.
func (r *PostgresRepository) ApproveTopUp(ctx context.Context, requestID, adminID, amountCents int64) (*model.TopUpRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var t model.TopUpRequest
	err = tx.QueryRow(ctx,
		`UPDATE topup_requests
		 SET status = $2, amount = $3, approved_at = now()
		 WHERE id = $1 AND status = $4
		 RETURNING id, user_id, amount, method_note, status, created_at, approved_at`,
		requestID, string(model.TopUpStatusApproved), amountCents, string(model.TopUpStatusPending),
	).Scan(&t.ID, &t.UserID, &t.AmountCents, &t.MethodNote, &t.Status, &t.CreatedAt, &t.ApprovedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyTopUpMiss(ctx, requestID)
		}
		return nil, fmt.Errorf("approve topup: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET balance = balance + $2 WHERE id = $1`,
		t.UserID, amountCents,
	)
	if err != nil {
		return nil, fmt.Errorf("credit balance: %w", err)
	}

	if err := insertAdminAction(ctx, tx, adminID, "approved topup", fmt.Sprintf("#%d for %d", requestID, amountCents)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &t, nil
}

// RejectTopUp переводит заявку из pending в rejected без зачисления.
func (r *PostgresRepository) RejectTopUp(ctx context.Context, requestID, adminID int64) (*model.TopUpRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var t model.TopUpRequest
	err = tx.QueryRow(ctx,
		`UPDATE topup_requests
		 SET status = $2
		 WHERE id = $1 AND status = $3
		 RETURNING id, user_id, amount, method_note, status, created_at, approved_at`,
		requestID, string(model.TopUpStatusRejected), string(model.TopUpStatusPending),
	).Scan(&t.ID, &t.UserID, &t.AmountCents, &t.MethodNote, &t.Status, &t.CreatedAt, &t.ApprovedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyTopUpMiss(ctx, requestID)
		}
		return nil, fmt.Errorf("reject topup: %w", err)
	}

	if err := insertAdminAction(ctx, tx, adminID, "rejected topup", fmt.Sprintf("#%d", requestID)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &t, nil
}

func (r *PostgresRepository) classifyTopUpMiss(ctx context.Context, requestID int64) error {
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM topup_requests WHERE id = $1)`,
		requestID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check topup request: %w", err)
	}
	if exists {
		return ErrAlreadyProcessed
	}
	return ErrTopUpNotFound
}

// GetTopUpsByUser возвращает последние заявки пользователя на пополнение.
func (r *PostgresRepository) GetTopUpsByUser(ctx context.Context, userID int64, limit int) ([]model.TopUpRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, amount, method_note, status, created_at, approved_at
		 FROM topup_requests
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select topups: %w", err)
	}
	defer rows.Close()

	return scanTopUps(rows)
}

// GetPendingTopUps возвращает очередь заявок, ожидающих решения администратора.
func (r *PostgresRepository) GetPendingTopUps(ctx context.Context) ([]model.TopUpRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, amount, method_note, status, created_at, approved_at
		 FROM topup_requests
		 WHERE status = $1
		 ORDER BY created_at`,
		string(model.TopUpStatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("select pending topups: %w", err)
	}
	defer rows.Close()

	return scanTopUps(rows)
}

func scanTopUps(rows pgx.Rows) ([]model.TopUpRequest, error) {
	var res []model.TopUpRequest
	for rows.Next() {
		var t model.TopUpRequest
		if err := rows.Scan(&t.ID, &t.UserID, &t.AmountCents, &t.MethodNote, &t.Status, &t.CreatedAt, &t.ApprovedAt); err != nil {
			return nil, fmt.Errorf("scan topup: %w", err)
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// GetUserStats возвращает агрегированную статистику пользователя в центах.
func (r *PostgresRepository) GetUserStats(ctx context.Context, userID int64) (*model.UserStats, error) {
	var stats model.UserStats

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(price), 0)
		 FROM orders
		 WHERE user_id = $1 AND status = $2`,
		userID, string(model.OrderStatusCompleted),
	).Scan(&stats.OrdersCount, &stats.SpentCents)
	if err != nil {
		return nil, fmt.Errorf("sum orders: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)
		 FROM topup_requests
		 WHERE user_id = $1 AND status = $2`,
		userID, string(model.TopUpStatusApproved),
	).Scan(&stats.ToppedUpCents)
	if err != nil {
		return nil, fmt.Errorf("sum topups: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT balance FROM users WHERE id = $1`,
		userID,
	).Scan(&stats.BalanceCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("select balance: %w", err)
	}

	return &stats, nil
}

func insertAdminAction(ctx context.Context, tx pgx.Tx, adminID int64, action, details string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO admin_action_log (admin_id, action, details) VALUES ($1, $2, $3)`,
		adminID, action, details,
	)
	if err != nil {
		return fmt.Errorf("insert admin action: %w", err)
	}
	return nil
}
