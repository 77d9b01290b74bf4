// Package intent нормализует входящие действия чата — текстовые команды и
// нажатия кнопок — в единое внутреннее представление. Диспетчеризация внутри
// сервиса никогда не зависит от транспортных форматов.
package intent

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind описывает тип нормализованного действия.
type Kind string

const (
	KindStart          Kind = "start"
	KindListProducts   Kind = "list_products"
	KindProfile        Kind = "profile"
	KindStatistics     Kind = "statistics"
	KindSupport        Kind = "support"
	KindLanguages      Kind = "languages"
	KindSetLanguage    Kind = "set_language"
	KindBuy            Kind = "buy"
	KindDeliver        Kind = "deliver"
	KindPaymentAddress Kind = "payment_address"
	KindConfirmPayment Kind = "confirm_payment"
	KindTopUpHistory   Kind = "topup_history"
)

// ErrUnknown возвращается для нераспознанного действия.
var ErrUnknown = errors.New("unknown intent")

// Intent — одно нормализованное действие пользователя.
type Intent struct {
	Kind      Kind
	ProductID int64
	OrderID   int64
	Method    string
	Locale    string
}

var commands = map[string]Kind{
	"/start":   KindStart,
	"/buy":     KindListProducts,
	"/balance": KindProfile,
	"/stats":   KindStatistics,
	"/support": KindSupport,
	"/lang":    KindLanguages,
}

// ParseCommand разбирает текстовую команду вида "/buy".
func ParseCommand(text string) (Intent, error) {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return Intent{}, ErrUnknown
	}
	kind, ok := commands[fields[0]]
	if !ok {
		return Intent{}, fmt.Errorf("%w: %s", ErrUnknown, fields[0])
	}
	return Intent{Kind: kind}, nil
}

// ParseCallback разбирает данные нажатой кнопки, например "buy:3" или
// "delivery:text:55".
func ParseCallback(data string) (Intent, error) {
	parts := strings.Split(data, ":")

	switch parts[0] {
	case "main_menu":
		return Intent{Kind: KindStart}, nil
	case "menu":
		if len(parts) != 2 {
			return Intent{}, fmt.Errorf("%w: %s", ErrUnknown, data)
		}
		switch parts[1] {
		case "products":
			return Intent{Kind: KindListProducts}, nil
		case "profile":
			return Intent{Kind: KindProfile}, nil
		case "statistics":
			return Intent{Kind: KindStatistics}, nil
		case "languages":
			return Intent{Kind: KindLanguages}, nil
		case "contact":
			return Intent{Kind: KindSupport}, nil
		}
	case "buy":
		if len(parts) != 2 {
			return Intent{}, fmt.Errorf("%w: %s", ErrUnknown, data)
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return Intent{}, fmt.Errorf("%w: bad product id %q", ErrUnknown, parts[1])
		}
		return Intent{Kind: KindBuy, ProductID: id}, nil
	case "delivery":
		if len(parts) != 3 {
			return Intent{}, fmt.Errorf("%w: %s", ErrUnknown, data)
		}
		if parts[1] != "text" && parts[1] != "file" {
			return Intent{}, fmt.Errorf("%w: bad delivery method %q", ErrUnknown, parts[1])
		}
		id, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return Intent{}, fmt.Errorf("%w: bad order id %q", ErrUnknown, parts[2])
		}
		return Intent{Kind: KindDeliver, Method: parts[1], OrderID: id}, nil
	case "pay":
		if len(parts) != 2 {
			return Intent{}, fmt.Errorf("%w: %s", ErrUnknown, data)
		}
		return Intent{Kind: KindPaymentAddress, Method: parts[1]}, nil
	case "paid":
		if len(parts) != 2 {
			return Intent{}, fmt.Errorf("%w: %s", ErrUnknown, data)
		}
		return Intent{Kind: KindConfirmPayment, Method: parts[1]}, nil
	case "lang":
		if len(parts) != 2 {
			return Intent{}, fmt.Errorf("%w: %s", ErrUnknown, data)
		}
		return Intent{Kind: KindSetLanguage, Locale: parts[1]}, nil
	case "profile":
		if len(parts) == 2 && parts[1] == "history" {
			return Intent{Kind: KindTopUpHistory}, nil
		}
		if len(parts) == 2 && parts[1] == "add_balance" {
			return Intent{Kind: KindPaymentAddress}, nil
		}
	}

	return Intent{}, fmt.Errorf("%w: %s", ErrUnknown, data)
}

// Parse нормализует действие: непустая команда имеет приоритет, иначе
// разбираются данные кнопки.
func Parse(command, callback string) (Intent, error) {
	if strings.TrimSpace(command) != "" {
		return ParseCommand(command)
	}
	if strings.TrimSpace(callback) != "" {
		return ParseCallback(callback)
	}
	return Intent{}, ErrUnknown
}
