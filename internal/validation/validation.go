// Package validation содержит функции нормализации входных данных заказа.
package validation

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseWeight извлекает числовой вес в граммах из этикетки вида "3.5g".
// Все символы, кроме цифр и точки, отбрасываются; нераспознанное значение — 0.
func ParseWeight(label string) float64 {
	var b strings.Builder
	for _, r := range label {
		if unicode.IsDigit(r) || r == '.' {
			b.WriteRune(r)
		}
	}

	w, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return w
}

// NormalizePseudonym приводит свободный псевдоним к стабильному ключу:
// нижний регистр, только латинские буквы и цифры. Разные имена, дающие
// одинаковую нормализацию, сливаются в один счёт — принятая особенность.
func NormalizePseudonym(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
