// Package storage содержит файловое хранилище полного снимка приложения.
//
// Снимок разложен по трём независимым документам: data.json (каталог и
// настройки), orders.json (заказы) и users.json (бонусные счета). Каждый
// документ читается и пишется независимо: ошибка одного не мешает остальным.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/storefront-system/internal/model"
)

const (
	coreFile   = "data.json"
	ordersFile = "orders.json"
	usersFile  = "users.json"
)

var (
	defaultCategories = []string{"WEED", "HASH", "VAPE", "AUTRE"}
	defaultBannerText = "Livraison gratuite dès 100€ d'achat ! Nouveaux arrivages Cali US !"
)

// DefaultMaxPoints — потолок бонусных баллов, отдаваемый в настройках
// лояльности. Мутации счёта его не применяют, значение только отображается.
const DefaultMaxPoints = 10

// coreDocument — формат файла data.json.
type coreDocument struct {
	Admin    model.Admin               `json:"admin"`
	Settings model.Settings            `json:"settings"`
	Products map[string]*model.Product `json:"products"`
}

// FileStore реализует хранилище снимка в трёх JSON-файлах каталога dataDir.
//
// Все мутации проходят через Update и сериализуются одним мьютексом:
// параллельные load-mutate-save больше не затирают изменения друг друга.
type FileStore struct {
	mu                sync.RWMutex
	dir               string
	bootstrapPassword string
	logger            *zap.Logger
}

// NewFileStore создаёт хранилище в указанном каталоге, создавая его при необходимости.
func NewFileStore(dir, bootstrapPassword string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	return &FileStore{
		dir:               dir,
		bootstrapPassword: bootstrapPassword,
		logger:            logger,
	}, nil
}

// Load читает все три документа и возвращает восстановленный снимок.
// Ошибка чтения или разбора одного документа деградирует только его:
// ресурс заменяется пустым значением по умолчанию, ошибка логируется.
func (s *FileStore) Load() (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.load()
}

// Update выполняет цикл load-mutate-save под одним мьютексом записи.
// Ошибка fn отменяет сохранение, снимок при этом не записывается.
func (s *FileStore) Update(fn func(*model.Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return err
	}

	if err := fn(snap); err != nil {
		return err
	}

	return s.save(snap)
}

func (s *FileStore) load() (*model.Snapshot, error) {
	snap := &model.Snapshot{
		Products: map[string]*model.Product{},
		Orders:   []*model.Order{},
		Users:    map[string]*model.UserAccount{},
	}

	var core coreDocument
	if ok := s.readResource(coreFile, &core); ok {
		snap.Admin = core.Admin
		snap.Settings = core.Settings
		if core.Products != nil {
			snap.Products = core.Products
		}
	}

	var orders []*model.Order
	if ok := s.readResource(ordersFile, &orders); ok && orders != nil {
		snap.Orders = orders
	}

	var users map[string]*model.UserAccount
	if ok := s.readResource(usersFile, &users); ok && users != nil {
		snap.Users = users
	}

	if err := s.repair(snap); err != nil {
		return nil, err
	}

	return snap, nil
}

// readResource читает один документ; false означает «использовать значение по умолчанию».
func (s *FileStore) readResource(name string, v any) bool {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("read resource", zap.String("file", name), zap.Error(err))
		}
		return false
	}

	if err := json.Unmarshal(raw, v); err != nil {
		s.logger.Error("parse resource, falling back to empty default",
			zap.String("file", name), zap.Error(err))
		return false
	}

	return true
}

// repair восстанавливает структурные инварианты снимка после сырой загрузки.
func (s *FileStore) repair(snap *model.Snapshot) error {
	if snap.Admin.PasswordHash == "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(s.bootstrapPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("bootstrap admin password: %w", err)
		}
		snap.Admin.PasswordHash = string(hash)
	}

	if len(snap.Settings.Categories) == 0 {
		snap.Settings.Categories = append([]string(nil), defaultCategories...)
	}
	if snap.Settings.BannerText == "" {
		snap.Settings.BannerText = defaultBannerText
	}
	if snap.Settings.Loyalty == nil {
		snap.Settings.Loyalty = &model.LoyaltyConfig{MaxPoints: DefaultMaxPoints}
	}
	if snap.Settings.Loyalty.Rewards == nil {
		snap.Settings.Loyalty.Rewards = []model.LoyaltyReward{}
	}

	// Ранги без значения добиваются порядком обхода. Карта в Go порядка не
	// хранит, поэтому обход идёт по отсортированным идентификаторам.
	ids := make([]string, 0, len(snap.Products))
	for id := range snap.Products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for i, id := range ids {
		if snap.Products[id].Rank == nil {
			rank := i
			snap.Products[id].Rank = &rank
		}
	}

	return nil
}

// save пишет три документа независимо: отказ одного логируется и не
// останавливает запись остальных. Возвращается объединённая ошибка.
func (s *FileStore) save(snap *model.Snapshot) error {
	var errs []error

	if err := s.writeResource(ordersFile, snap.Orders); err != nil {
		s.logger.Error("write orders", zap.Error(err))
		errs = append(errs, fmt.Errorf("write %s: %w", ordersFile, err))
	}

	if err := s.writeResource(usersFile, snap.Users); err != nil {
		s.logger.Error("write users", zap.Error(err))
		errs = append(errs, fmt.Errorf("write %s: %w", usersFile, err))
	}

	core := coreDocument{
		Admin:    snap.Admin,
		Settings: snap.Settings,
		Products: snap.Products,
	}
	if err := s.writeResource(coreFile, core); err != nil {
		s.logger.Error("write core data", zap.Error(err))
		errs = append(errs, fmt.Errorf("write %s: %w", coreFile, err))
	}

	return errors.Join(errs...)
}

// writeResource атомарно перезаписывает документ: запись во временный файл
// рядом с целевым и rename, чтобы читатель не увидел обрезанный JSON.
func (s *FileStore) writeResource(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}
