// Package model содержит доменные сущности магазина цифровых товаров.
package model

import "time"

// UserRole описывает роль пользователя.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User представляет пользователя магазина. Создаётся при первом обращении,
// никогда не удаляется, только помечается флагом блокировки.
type User struct {
	ID       int64
	ChatID   string
	Username string
	// Баланс хранится в центах.
	BalanceCents int64
	Locale       string
	Role         UserRole
	IsBanned     bool
	CreatedAt    time.Time
}

// Product описывает позицию каталога. NameKey — ключ перевода,
// отображаемое имя разрешается на уровне презентации.
type Product struct {
	ID         int64
	NameKey    string
	PriceCents int64
	IsActive   bool
	CreatedAt  time.Time
}

// UnitState описывает состояние единицы товара.
type UnitState string

const (
	UnitStateAvailable UnitState = "available"
	UnitStateReserved  UnitState = "reserved"
)

// InventoryUnit — одна продаваемая единица цифрового товара (например, код активации).
// Payload уникален во всём хранилище; переход available → reserved необратим.
type InventoryUnit struct {
	ID         int64
	ProductID  int64
	Payload    string
	State      UnitState
	ReservedAt *time.Time
}

// DeliveryMethod описывает способ доставки кода покупателю.
type DeliveryMethod string

const (
	DeliveryText DeliveryMethod = "text"
	DeliveryFile DeliveryMethod = "file"
)

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	// OrderStatusCompleted — единственный статус в текущей модели:
	// заказ создаётся уже выполненным, асинхронного исполнения нет.
	OrderStatusCompleted OrderStatus = "completed"
)

// Order — неизменяемый чек покупки. Цена фиксируется на момент покупки
// и не зависит от последующих изменений цены товара.
type Order struct {
	ID             int64
	UserID         int64
	ProductID      int64
	UnitID         int64
	PriceCents     int64
	DeliveryMethod DeliveryMethod
	Status         OrderStatus
	CreatedAt      time.Time
}

// TopUpStatus описывает статус заявки на пополнение.
type TopUpStatus string

const (
	TopUpStatusPending  TopUpStatus = "pending"
	TopUpStatusApproved TopUpStatus = "approved"
	TopUpStatusRejected TopUpStatus = "rejected"
)

// TopUpRequest — заявка на пополнение баланса. Сумма равна нулю до решения
// администратора; переход pending → approved/rejected выполняется ровно один раз.
type TopUpRequest struct {
	ID          int64
	UserID      int64
	AmountCents int64
	MethodNote  string
	Status      TopUpStatus
	CreatedAt   time.Time
	ApprovedAt  *time.Time
}

// AdminAction — запись журнала действий администратора. Только добавление.
type AdminAction struct {
	ID        int64
	AdminID   int64
	Action    string
	Details   string
	CreatedAt time.Time
}

// UserStats содержит агрегированную статистику пользователя.
type UserStats struct {
	OrdersCount   int64
	SpentCents    int64
	ToppedUpCents int64
	BalanceCents  int64
}

// ProductStock — позиция каталога вместе с остатком на складе.
type ProductStock struct {
	Product Product
	Stock   int64
}
