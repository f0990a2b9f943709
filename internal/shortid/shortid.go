// Package shortid выдаёт короткие публичные идентификаторы заказов.
package shortid

import (
	"math/rand"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// maxAttempts ограничивает перебор при коллизиях. После исчерпания бюджета
// возвращается последний кандидат, даже если он совпадает с существующим:
// уникальность best-effort, список заказов ограничен двумя сотнями, поэтому
// вероятность коллизии на розыгрыш мала, но не нулевая.
const maxAttempts = 100

// Next возвращает четырёхзначный код из [1000, 9999], не встречающийся среди
// orderId уже существующих заказов, в пределах бюджета попыток.
func Next(rng *rand.Rand, existing []*model.Order) int {
	id := 0
	for attempt := 0; attempt < maxAttempts; attempt++ {
		id = 1000 + rng.Intn(9000)
		if !taken(id, existing) {
			return id
		}
	}
	return id
}

func taken(id int, existing []*model.Order) bool {
	for _, o := range existing {
		if o.OrderID == id {
			return true
		}
	}
	return false
}
