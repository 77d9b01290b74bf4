// Package i18n содержит статическую таблицу переводов для слоя презентации.
// Ядро сервиса не ветвится по языку: оно получает готовую строку по ключу.
package i18n

import "fmt"

const fallbackLocale = "en"

var strings = map[string]map[string]string{
	"en": {
		"welcome":              "Welcome to the Digital Store!",
		"out_of_stock":         "This product is currently out of stock.",
		"insufficient_balance": "Insufficient balance. Please top up.",
		"generic_error":        "An unexpected error occurred. Please try again later.",
		"error_user_not_found": "User not found.",
		"error_user_banned":    "Your account is currently banned. Please contact support.",
		"topup_submitted":      "Payment submitted for review! Please wait for admin approval.",
		"topup_approved":       "Your top-up of $%.2f has been approved and credited!",
		"topup_rejected":       "Your top-up request was rejected. Please contact support.",
		"code_sent_text":       "Here is your code:",
		"code_sent_file":       "Here is your code file:",
		"file_delivery_thanks": "Thank you for your purchase!",
		"file_delivery_label":  "Your Code:",
		"admin_new_order":      "New Order: User @%s purchased %s for $%.2f",
		"admin_new_topup":      "New TopUp Request from User @%s | Note: %s",
		"admin_low_stock":      "LOW STOCK ALERT: Product '%s' has only %d items left.",
		"admin_out_of_stock":   "OUT OF STOCK: Product '%s' is now empty.",
		"product_60_uc":        "60 UC",
		"product_325_uc":       "325 UC",
		"product_660_uc":       "660 UC",
		"product_1800_uc":      "1800 UC",
		"product_3850_uc":      "3850 UC",
		"product_8100_uc":      "8100 UC",
	},
	"ru": {
		"welcome":              "Добро пожаловать в цифровой магазин!",
		"out_of_stock":         "Товар закончился.",
		"insufficient_balance": "Недостаточно средств. Пополните баланс.",
		"generic_error":        "Произошла непредвиденная ошибка. Пожалуйста, попробуйте позже.",
		"error_user_not_found": "Пользователь не найден.",
		"error_user_banned":    "Ваш аккаунт заблокирован. Свяжитесь со службой поддержки.",
		"topup_submitted":      "Оплата отправлена на проверку! Ожидайте подтверждения администратора.",
		"topup_approved":       "Ваше пополнение на $%.2f одобрено и зачислено!",
		"topup_rejected":       "Ваш запрос на пополнение отклонён. Свяжитесь со службой поддержки.",
		"code_sent_text":       "Ваш код:",
		"code_sent_file":       "Файл с вашим кодом:",
		"file_delivery_thanks": "Спасибо за покупку!",
		"file_delivery_label":  "Ваш Код:",
		"admin_new_order":      "Новый заказ: пользователь @%s купил %s за $%.2f",
		"admin_new_topup":      "Новый запрос на пополнение от пользователя @%s | Примечание: %s",
		"admin_low_stock":      "МАЛО ТОВАРА: у продукта '%s' осталось всего %d единиц.",
		"admin_out_of_stock":   "НЕТ В НАЛИЧИИ: продукт '%s' закончился.",
	},
}

// Translator переводит ключ в строку для заданного языка.
// Ядро зависит только от этого контракта.
type Translator interface {
	T(locale, key string) string
	Tf(locale, key string, args ...any) string
}

// StaticTranslator — реализация Translator поверх статической таблицы.
type StaticTranslator struct{}

// NewStaticTranslator создаёт переводчик со встроенной таблицей строк.
func NewStaticTranslator() *StaticTranslator {
	return &StaticTranslator{}
}

// T возвращает перевод ключа. Отсутствующий в целевом языке ключ ищется в
// английской таблице; совсем неизвестный ключ возвращается как есть.
func (t *StaticTranslator) T(locale, key string) string {
	if tbl, ok := strings[locale]; ok {
		if s, ok := tbl[key]; ok {
			return s
		}
	}
	if s, ok := strings[fallbackLocale][key]; ok {
		return s
	}
	return key
}

// Tf возвращает перевод ключа с подстановкой позиционных значений.
func (t *StaticTranslator) Tf(locale, key string, args ...any) string {
	return fmt.Sprintf(t.T(locale, key), args...)
}
