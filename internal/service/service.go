// Package service реализует бизнес-логику витрины магазина.
package service

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/shortid"
	"github.com/mmeshcher/storefront-system/internal/telegram"
	"github.com/mmeshcher/storefront-system/internal/validation"
)

// ErrInvalidCredentials возвращается при неверном пароле администратора.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmptyPassword возвращается при попытке установить пустой пароль.
	ErrEmptyPassword = errors.New("empty password")
	// ErrEmptyOrder возвращается для заказа без позиций; побочных эффектов нет.
	ErrEmptyOrder = errors.New("order has no items")
	// ErrEmptyProductID возвращается для товара без идентификатора.
	ErrEmptyProductID = errors.New("product id is required")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден ни по одному идентификатору.
	ErrOrderNotFound = errors.New("order not found")
	// ErrUserNotFound возвращается, если бонусный счёт не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrInsufficientPoints возвращается при недостатке баллов; счёт не меняется.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrIdentityRequired возвращается, когда операция требует подтверждённую личность.
	ErrIdentityRequired = errors.New("verified identity required")
	// ErrUnknownAction возвращается для неизвестной операции над баллами.
	ErrUnknownAction = errors.New("unknown points action")
)

const (
	maxRetainedOrders = 200
	defaultRank       = 999
	redeemCost        = 5
	maxLoyaltyRewards = 10
	maxLoyaltyPoints  = 10

	rewardCodePrefix = "FTE-"
	rewardCodeLen    = 6
	base36Alphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Store описывает контракт хранилища снимка, используемый сервисом.
type Store interface {
	Load() (*model.Snapshot, error)
	Update(fn func(*model.Snapshot) error) error
}

// IdentityVerifier проверяет init-data и возвращает подтверждённого пользователя.
type IdentityVerifier interface {
	Verify(initData string) *telegram.User
}

// Service содержит бизнес-логику витрины магазина.
type Service struct {
	store    Store
	verifier IdentityVerifier
	rng      *rand.Rand
}

// NewService создаёт сервис с указанным хранилищем, верификатором и источником
// случайности. Nil rng заменяется источником со временем в качестве seed.
func NewService(store Store, verifier IdentityVerifier, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		store:    store,
		verifier: verifier,
		rng:      rng,
	}
}

// Authenticate проверяет пароль администратора и возвращает его как bearer-токен.
// Каждый привилегированный вызов повторно сверяет тот же токен с хэшем:
// сессий и сроков действия нет, отзыв — только сменой пароля.
func (s *Service) Authenticate(ctx context.Context, password string) (string, error) {
	if err := s.VerifyCredential(ctx, password); err != nil {
		return "", err
	}
	return password, nil
}

// VerifyCredential сверяет bearer-токен (пароль) с сохранённым bcrypt-хэшем.
func (s *Service) VerifyCredential(_ context.Context, token string) error {
	snap, err := s.store.Load()
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(snap.Admin.PasswordHash), []byte(token)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// ChangePassword устанавливает новый пароль администратора.
func (s *Service) ChangePassword(_ context.Context, newPassword string) error {
	if newPassword == "" {
		return ErrEmptyPassword
	}

	return s.store.Update(func(snap *model.Snapshot) error {
		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		snap.Admin.PasswordHash = string(hash)
		return nil
	})
}

// Settings возвращает публичные настройки витрины.
func (s *Service) Settings(_ context.Context) (*model.Settings, error) {
	snap, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	return &snap.Settings, nil
}

// SettingsPatch — частичное обновление настроек; nil-поля не меняются.
type SettingsPatch struct {
	Categories *[]string            `json:"categories"`
	BannerText *string              `json:"bannerText"`
	Loyalty    *model.LoyaltyConfig `json:"loyaltyConfig"`
}

// UpdateSettings выполняет неглубокое слияние патча с текущими настройками.
func (s *Service) UpdateSettings(_ context.Context, patch SettingsPatch) error {
	return s.store.Update(func(snap *model.Snapshot) error {
		if patch.Categories != nil {
			snap.Settings.Categories = *patch.Categories
		}
		if patch.BannerText != nil {
			snap.Settings.BannerText = *patch.BannerText
		}
		if patch.Loyalty != nil {
			snap.Settings.Loyalty = patch.Loyalty
		}
		return nil
	})
}

// Products возвращает каталог, отсортированный по рангу.
func (s *Service) Products(_ context.Context) ([]*model.Product, error) {
	snap, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	products := make([]*model.Product, 0, len(snap.Products))
	for _, p := range snap.Products {
		products = append(products, p)
	}
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].RankValue() != products[j].RankValue() {
			return products[i].RankValue() < products[j].RankValue()
		}
		return products[i].ID < products[j].ID
	})

	return products, nil
}

// UpsertProduct создаёт или обновляет товар. Ранг существующего товара
// сохраняется, новый встаёт в конец каталога с рангом по умолчанию.
func (s *Service) UpsertProduct(_ context.Context, p *model.Product) error {
	if p == nil || p.ID == "" {
		return ErrEmptyProductID
	}

	return s.store.Update(func(snap *model.Snapshot) error {
		if existing, ok := snap.Products[p.ID]; ok {
			p.Rank = existing.Rank
		} else if p.Rank == nil {
			rank := defaultRank
			p.Rank = &rank
		}
		snap.Products[p.ID] = p
		return nil
	})
}

// DeleteProduct удаляет товар из каталога. Списанный товаром остаток
// не восстанавливается.
func (s *Service) DeleteProduct(_ context.Context, id string) error {
	return s.store.Update(func(snap *model.Snapshot) error {
		if _, ok := snap.Products[id]; !ok {
			return ErrProductNotFound
		}
		delete(snap.Products, id)
		return nil
	})
}

// ReorderProducts переписывает ранги товаров по переданному порядку
// идентификаторов; неизвестные идентификаторы пропускаются.
func (s *Service) ReorderProducts(_ context.Context, orderedIDs []string) error {
	return s.store.Update(func(snap *model.Snapshot) error {
		for i, id := range orderedIDs {
			if p, ok := snap.Products[id]; ok {
				rank := i
				p.Rank = &rank
			}
		}
		return nil
	})
}

// OrderRequest — входящий заказ с витрины.
type OrderRequest struct {
	Items    []model.OrderItem `json:"items"`
	Total    float64           `json:"total"`
	UserInfo *model.UserInfo   `json:"userInfo"`
	InitData string            `json:"initData"`
}

// OrderResult — идентификаторы принятого заказа и, для подтверждённых
// пользователей, баланс баллов после начисления.
type OrderResult struct {
	OrderID     int   `json:"orderId"`
	InternalID  int64 `json:"internalId"`
	PointsAfter *int  `json:"points,omitempty"`
}

// SubmitOrder проверяет, дополняет и принимает новый заказ: публичный и
// внутренний идентификаторы, списание остатков, начисление баллов
// подтверждённому пользователю и помещение в кольцо последних 200 заказов.
//
// Списание остатков, начисление и добавление заказа не транзакционны между
// собой и с записью на диск: отказ записи одного документа может оставить
// остаток списанным без долговечно сохранённого заказа.
func (s *Service) SubmitOrder(_ context.Context, req OrderRequest) (*OrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	var tgUser *telegram.User
	if req.InitData != "" {
		tgUser = s.verifier.Verify(req.InitData)
	}

	result := &OrderResult{}

	err := s.store.Update(func(snap *model.Snapshot) error {
		now := time.Now()
		order := &model.Order{
			ID:        now.UnixMilli(),
			OrderID:   shortid.Next(s.rng, snap.Orders),
			Status:    model.OrderStatusPending,
			Items:     req.Items,
			Total:     req.Total,
			UserInfo:  req.UserInfo,
			CreatedAt: now.Format(time.RFC3339),
		}

		userID, username := "", ""
		switch {
		case tgUser != nil:
			userID = strconv.FormatInt(tgUser.ID, 10)
			username = tgUser.Username
			if username == "" {
				username = tgUser.FirstName
			}
			order.TelegramUserID = tgUser.ID
			order.TelegramUsername = tgUser.Username
		case req.UserInfo != nil && req.UserInfo.Pseudo != "":
			userID = "pseudo_" + validation.NormalizePseudonym(req.UserInfo.Pseudo)
			username = req.UserInfo.Pseudo
			order.TelegramUsername = req.UserInfo.Pseudo + " (Web)"
		}

		s.applyStock(snap, order.Items)

		if userID != "" {
			account := s.ensureAccount(snap, userID, username)
			account.TotalSpent += req.Total

			// Баллы начисляются только за подтверждённую личность:
			// псевдоним подделывается свободно.
			if tgUser != nil {
				account.Points++
				points := account.Points
				result.PointsAfter = &points
			}
		}

		snap.Orders = append(snap.Orders, order)
		if len(snap.Orders) > maxRetainedOrders {
			snap.Orders = snap.Orders[len(snap.Orders)-maxRetainedOrders:]
		}

		result.OrderID = order.OrderID
		result.InternalID = order.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// applyStock списывает остатки по позициям заказа: вес с этикетки, умноженный
// на количество, вычитается из остатка товара с нижней границей 0. Товары
// без учёта остатка (StockGrams == 0) не трогаются.
func (s *Service) applyStock(snap *model.Snapshot, items []model.OrderItem) {
	for _, item := range items {
		p, ok := snap.Products[item.ProductID]
		if !ok || p.StockGrams <= 0 {
			continue
		}

		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}

		grams := validation.ParseWeight(item.Weight) * float64(qty)
		p.StockGrams -= grams
		if p.StockGrams < 0 {
			p.StockGrams = 0
		}
	}
}

// ensureAccount лениво создаёт бонусный счёт при первом опознанном заказе.
// Настроенный потолок maxPoints мутации счёта сознательно не применяют:
// он только отображается витриной, фактического ограничения в системе нет.
func (s *Service) ensureAccount(snap *model.Snapshot, userID, username string) *model.UserAccount {
	account, ok := snap.Users[userID]
	if !ok {
		account = &model.UserAccount{Rewards: []model.RewardCode{}}
		snap.Users[userID] = account
	}

	if username != "" {
		account.Username = username
	}
	return account
}

// Orders возвращает сохранённые заказы, новые первыми.
func (s *Service) Orders(_ context.Context) ([]*model.Order, error) {
	snap, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	orders := make([]*model.Order, 0, len(snap.Orders))
	for i := len(snap.Orders) - 1; i >= 0; i-- {
		orders = append(orders, snap.Orders[i])
	}
	return orders, nil
}

// DeleteOrder удаляет заказ по внутреннему или публичному идентификатору.
func (s *Service) DeleteOrder(_ context.Context, id string) error {
	return s.store.Update(func(snap *model.Snapshot) error {
		kept := snap.Orders[:0]
		for _, o := range snap.Orders {
			if strconv.FormatInt(o.ID, 10) == id || strconv.Itoa(o.OrderID) == id {
				continue
			}
			kept = append(kept, o)
		}

		if len(kept) == len(snap.Orders) {
			return ErrOrderNotFound
		}
		snap.Orders = kept
		return nil
	})
}

// ClearOrders удаляет все сохранённые заказы.
func (s *Service) ClearOrders(_ context.Context) error {
	return s.store.Update(func(snap *model.Snapshot) error {
		snap.Orders = []*model.Order{}
		return nil
	})
}

// LoyaltyStatus — состояние бонусного счёта для витрины.
type LoyaltyStatus struct {
	Points  int                `json:"points"`
	Rewards []model.RewardCode `json:"rewards"`
}

// Loyalty возвращает бонусный счёт подтверждённого пользователя.
func (s *Service) Loyalty(_ context.Context, initData string) (*LoyaltyStatus, error) {
	tgUser := s.verifier.Verify(initData)
	if tgUser == nil {
		return nil, ErrIdentityRequired
	}

	snap, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	status := &LoyaltyStatus{Rewards: []model.RewardCode{}}
	if account, ok := snap.Users[strconv.FormatInt(tgUser.ID, 10)]; ok {
		status.Points = account.Points
		if account.Rewards != nil {
			status.Rewards = account.Rewards
		}
	}
	return status, nil
}

// RedeemLoyalty списывает пять баллов и выдаёт код вознаграждения.
// При недостатке баллов счёт не меняется.
func (s *Service) RedeemLoyalty(_ context.Context, initData string) (*model.RewardCode, error) {
	tgUser := s.verifier.Verify(initData)
	if tgUser == nil {
		return nil, ErrIdentityRequired
	}

	var code model.RewardCode

	err := s.store.Update(func(snap *model.Snapshot) error {
		account, ok := snap.Users[strconv.FormatInt(tgUser.ID, 10)]
		if !ok || account.Points < redeemCost {
			return ErrInsufficientPoints
		}

		account.Points -= redeemCost
		code = model.RewardCode{
			Code: s.newRewardCode(),
			Date: time.Now().Format(time.RFC3339),
		}
		account.Rewards = append(account.Rewards, code)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &code, nil
}

func (s *Service) newRewardCode() string {
	buf := make([]byte, rewardCodeLen)
	for i := range buf {
		buf[i] = base36Alphabet[s.rng.Intn(len(base36Alphabet))]
	}
	return rewardCodePrefix + string(buf)
}

// LoyaltyConfig возвращает настройки программы лояльности.
func (s *Service) LoyaltyConfig(_ context.Context) (*model.LoyaltyConfig, error) {
	snap, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	return snap.Settings.Loyalty, nil
}

// UpdateLoyaltyConfig заменяет список призов (не более десяти).
// Потолок баллов зафиксирован и не настраивается.
func (s *Service) UpdateLoyaltyConfig(_ context.Context, rewards []model.LoyaltyReward) error {
	return s.store.Update(func(snap *model.Snapshot) error {
		if len(rewards) > maxLoyaltyRewards {
			rewards = rewards[:maxLoyaltyRewards]
		}
		snap.Settings.Loyalty = &model.LoyaltyConfig{
			MaxPoints: maxLoyaltyPoints,
			Rewards:   rewards,
		}
		return nil
	})
}

// Client — бонусный счёт вместе с идентификатором пользователя.
type Client struct {
	ID string `json:"id"`
	model.UserAccount
}

// Clients возвращает все бонусные счета для административной панели.
func (s *Service) Clients(_ context.Context) ([]Client, error) {
	snap, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	clients := make([]Client, 0, len(snap.Users))
	for id, account := range snap.Users {
		clients = append(clients, Client{ID: id, UserAccount: *account})
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].ID < clients[j].ID })

	return clients, nil
}

// AdjustClientPoints выполняет административную операцию над баллами:
// set — абсолютное значение, add — относительное, reset — обнуление счёта
// вместе с кодами. Результат не опускается ниже нуля.
func (s *Service) AdjustClientPoints(_ context.Context, userID, action string, value int) (int, error) {
	balance := 0

	err := s.store.Update(func(snap *model.Snapshot) error {
		account, ok := snap.Users[userID]
		if !ok {
			return ErrUserNotFound
		}

		switch action {
		case "set":
			account.Points = value
		case "add":
			account.Points += value
		case "reset":
			account.Points = 0
			account.Rewards = []model.RewardCode{}
		default:
			return ErrUnknownAction
		}

		if account.Points < 0 {
			account.Points = 0
		}
		balance = account.Points
		return nil
	})
	if err != nil {
		return 0, err
	}

	return balance, nil
}
