// Package validation содержит проверки пользовательского ввода.
package validation

import "strings"

const maxCodeLength = 512

// NormalizeCodes разбирает текст массовой загрузки кодов: по строке на код,
// пробелы по краям обрезаются, пустые строки и повторы внутри пачки
// отбрасываются. Слишком длинные коды также отбрасываются.
func NormalizeCodes(text string) []string {
	seen := make(map[string]struct{})
	var res []string

	for _, line := range strings.Split(text, "\n") {
		code := strings.TrimSpace(line)
		if code == "" || len(code) > maxCodeLength {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		res = append(res, code)
	}

	return res
}

// IsValidAmountCents проверяет сумму пополнения в центах.
func IsValidAmountCents(amount int64) bool {
	return amount > 0
}
