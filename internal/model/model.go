// Package model содержит доменные сущности сервиса витрины магазина.
package model

// Admin содержит учётные данные администратора магазина.
type Admin struct {
	PasswordHash string `json:"passwordHash"`
}

// LoyaltyReward описывает один приз в настройках программы лояльности.
type LoyaltyReward struct {
	Points int    `json:"points"`
	Label  string `json:"label"`
}

// LoyaltyConfig содержит настройки программы лояльности.
type LoyaltyConfig struct {
	MaxPoints int             `json:"maxPoints"`
	Rewards   []LoyaltyReward `json:"rewards"`
}

// Settings содержит публичные настройки витрины.
type Settings struct {
	Categories []string       `json:"categories"`
	BannerText string         `json:"bannerText"`
	Loyalty    *LoyaltyConfig `json:"loyaltyConfig,omitempty"`
}

// Product описывает товар каталога.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Price       float64  `json:"price,omitempty"`
	Weights     []string `json:"weights,omitempty"`
	StockGrams  float64  `json:"stockGrams,omitempty"`
	Rank        *int     `json:"order,omitempty"`
}

// RankValue возвращает ранг товара в каталоге; товары без ранга считаются первыми.
func (p *Product) RankValue() int {
	if p.Rank == nil {
		return 0
	}
	return *p.Rank
}

// OrderItem описывает одну позицию заказа.
type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name,omitempty"`
	Weight    string  `json:"weight,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price,omitempty"`
}

// UserInfo содержит контактные данные, указанные покупателем при оформлении.
type UserInfo struct {
	Pseudo  string `json:"pseudo,omitempty"`
	Contact string `json:"contact,omitempty"`
	Address string `json:"address,omitempty"`
}

// Order описывает принятый заказ.
//
// ID — внутренний идентификатор (unix-миллисекунды на момент приёма),
// OrderID — публичный четырёхзначный код для покупателя.
type Order struct {
	ID               int64       `json:"id"`
	OrderID          int         `json:"orderId"`
	Status           string      `json:"status"`
	Items            []OrderItem `json:"items"`
	Total            float64     `json:"total,omitempty"`
	TelegramUserID   int64       `json:"telegramUserId,omitempty"`
	TelegramUsername string      `json:"telegramUsername,omitempty"`
	UserInfo         *UserInfo   `json:"userInfo,omitempty"`
	CreatedAt        string      `json:"createdAt,omitempty"`
}

// OrderStatusPending — единственный статус, который присваивает ядро заказа.
const OrderStatusPending = "pending"

// RewardCode описывает выданный код вознаграждения.
type RewardCode struct {
	Code string `json:"code"`
	Date string `json:"date"`
	Used bool   `json:"used"`
}

// UserAccount содержит бонусный счёт покупателя.
type UserAccount struct {
	Points     int          `json:"points"`
	TotalSpent float64      `json:"totalSpent"`
	Username   string       `json:"username,omitempty"`
	Rewards    []RewardCode `json:"rewards"`
}

// Snapshot — полное состояние приложения на время одного запроса.
// Долговечность обеспечивают три независимых документа хранилища,
// снимок в памяти пересоздаётся на каждый запрос.
type Snapshot struct {
	Admin    Admin
	Settings Settings
	Products map[string]*Product
	Orders   []*Order
	Users    map[string]*UserAccount
}
