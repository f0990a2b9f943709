package service

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/storage"
	"github.com/mmeshcher/storefront-system/internal/telegram"
)

const testPassword = "test-admin-pass"

type stubVerifier struct {
	user *telegram.User
}

func (s *stubVerifier) Verify(initData string) *telegram.User {
	if initData == "" {
		return nil
	}
	return s.user
}

func newTestService(t *testing.T, verifier IdentityVerifier) (*Service, Store) {
	t.Helper()

	store, err := storage.NewFileStore(t.TempDir(), testPassword, zap.NewNop())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	return NewService(store, verifier, rand.New(rand.NewSource(1))), store
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	token, err := svc.Authenticate(ctx, testPassword)
	if err != nil {
		t.Fatalf("authenticate with bootstrap password: %v", err)
	}
	if token != testPassword {
		t.Fatalf("token = %q, want the password itself", token)
	}

	if _, err := svc.Authenticate(ctx, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	if err := svc.ChangePassword(ctx, "new-pass"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, err := svc.Authenticate(ctx, "new-pass"); err != nil {
		t.Fatalf("authenticate with new password: %v", err)
	}
	if _, err := svc.Authenticate(ctx, testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must be rejected, got %v", err)
	}

	if err := svc.ChangePassword(ctx, ""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("err = %v, want ErrEmptyPassword", err)
	}
}

func TestSubmitOrderEndToEnd(t *testing.T) {
	svc, store := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	err := svc.UpsertProduct(ctx, &model.Product{ID: "p1", Name: "Gelato", StockGrams: 100})
	if err != nil {
		t.Fatalf("upsert product: %v", err)
	}

	result, err := svc.SubmitOrder(ctx, OrderRequest{
		Items: []model.OrderItem{
			{ProductID: "p1", Weight: "3.5g", Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("submit order: %v", err)
	}

	if result.OrderID < 1000 || result.OrderID > 9999 {
		t.Errorf("public id = %d, want value in [1000, 9999]", result.OrderID)
	}
	if result.InternalID <= 0 {
		t.Errorf("internal id = %d, want positive timestamp", result.InternalID)
	}
	if result.PointsAfter != nil {
		t.Errorf("anonymous order must not report points, got %d", *result.PointsAfter)
	}

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := snap.Products["p1"].StockGrams; got != 93 {
		t.Errorf("stock = %v, want 93", got)
	}
	if len(snap.Orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(snap.Orders))
	}
	if snap.Orders[0].Status != model.OrderStatusPending {
		t.Errorf("status = %q, want %q", snap.Orders[0].Status, model.OrderStatusPending)
	}
}

func TestSubmitOrderEmptyItems(t *testing.T) {
	svc, store := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	if err := svc.UpsertProduct(ctx, &model.Product{ID: "p1", StockGrams: 10}); err != nil {
		t.Fatalf("upsert product: %v", err)
	}

	if _, err := svc.SubmitOrder(ctx, OrderRequest{}); !errors.Is(err, ErrEmptyOrder) {
		t.Fatalf("err = %v, want ErrEmptyOrder", err)
	}

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Orders) != 0 {
		t.Errorf("rejected order must not be stored, got %d orders", len(snap.Orders))
	}
	if got := snap.Products["p1"].StockGrams; got != 10 {
		t.Errorf("rejected order must not touch stock, got %v", got)
	}
}

func TestSubmitOrderStockFloorsAtZero(t *testing.T) {
	svc, store := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	if err := svc.UpsertProduct(ctx, &model.Product{ID: "p1", StockGrams: 5}); err != nil {
		t.Fatalf("upsert product: %v", err)
	}

	_, err := svc.SubmitOrder(ctx, OrderRequest{
		Items: []model.OrderItem{{ProductID: "p1", Weight: "10g", Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("submit order: %v", err)
	}

	snap, _ := store.Load()
	if got := snap.Products["p1"].StockGrams; got != 0 {
		t.Errorf("stock = %v, want exactly 0", got)
	}
}

func TestSubmitOrderRingBuffer(t *testing.T) {
	svc, store := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	for i := 0; i < 201; i++ {
		_, err := svc.SubmitOrder(ctx, OrderRequest{
			Total: float64(i),
			Items: []model.OrderItem{{ProductID: "missing", Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("submit order %d: %v", i, err)
		}
	}

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Orders) != 200 {
		t.Fatalf("orders = %d, want 200", len(snap.Orders))
	}
	if snap.Orders[0].Total != 1 {
		t.Errorf("oldest retained total = %v, want 1 (order 0 evicted)", snap.Orders[0].Total)
	}
	if snap.Orders[199].Total != 200 {
		t.Errorf("newest retained total = %v, want 200", snap.Orders[199].Total)
	}
}

func TestSubmitOrderVerifiedAccrual(t *testing.T) {
	tg := &telegram.User{ID: 777, Username: "buyer"}
	svc, store := newTestService(t, &stubVerifier{user: tg})
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		result, err := svc.SubmitOrder(ctx, OrderRequest{
			Total:    50,
			InitData: "signed-blob",
			Items:    []model.OrderItem{{ProductID: "p1", Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("submit order: %v", err)
		}
		if result.PointsAfter == nil || *result.PointsAfter != i {
			t.Fatalf("points after order %d = %v, want %d", i, result.PointsAfter, i)
		}
	}

	snap, _ := store.Load()
	account := snap.Users["777"]
	if account == nil {
		t.Fatal("verified account must be created lazily")
	}
	if account.Points != 2 || account.TotalSpent != 100 {
		t.Errorf("account = %+v, want 2 points and 100 spent", account)
	}
	if account.Username != "buyer" {
		t.Errorf("username = %q, want %q", account.Username, "buyer")
	}
	if snap.Orders[0].TelegramUserID != 777 {
		t.Errorf("order must carry verified user id, got %d", snap.Orders[0].TelegramUserID)
	}
}

func TestSubmitOrderPseudonymNoPoints(t *testing.T) {
	svc, store := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	result, err := svc.SubmitOrder(ctx, OrderRequest{
		Total:    30,
		UserInfo: &model.UserInfo{Pseudo: "Jean-Pierre"},
		Items:    []model.OrderItem{{ProductID: "p1", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("submit order: %v", err)
	}
	if result.PointsAfter != nil {
		t.Errorf("pseudonym order must not report points, got %d", *result.PointsAfter)
	}

	snap, _ := store.Load()
	account := snap.Users["pseudo_jeanpierre"]
	if account == nil {
		t.Fatal("pseudonym account must be created under normalized key")
	}
	if account.Points != 0 {
		t.Errorf("pseudonym points = %d, want 0", account.Points)
	}
	if account.TotalSpent != 30 {
		t.Errorf("pseudonym spend = %v, want 30", account.TotalSpent)
	}
	if got := snap.Orders[0].TelegramUsername; got != "Jean-Pierre (Web)" {
		t.Errorf("order username = %q, want %q", got, "Jean-Pierre (Web)")
	}
}

func TestRedeemLoyalty(t *testing.T) {
	tg := &telegram.User{ID: 42, Username: "loyal"}
	svc, store := newTestService(t, &stubVerifier{user: tg})
	ctx := context.Background()

	err := store.Update(func(snap *model.Snapshot) error {
		snap.Users["42"] = &model.UserAccount{Points: 11, Rewards: []model.RewardCode{}}
		return nil
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}

	for i := 1; i <= 2; i++ {
		code, err := svc.RedeemLoyalty(ctx, "signed-blob")
		if err != nil {
			t.Fatalf("redeem %d: %v", i, err)
		}
		if !strings.HasPrefix(code.Code, "FTE-") || len(code.Code) != len("FTE-")+6 {
			t.Errorf("code = %q, want FTE- prefix and 6 chars", code.Code)
		}
		if code.Used {
			t.Error("fresh code must be unused")
		}
	}

	// 11 - 2*5 = 1: дальше списывать нечего, счёт меняться не должен.
	if _, err := svc.RedeemLoyalty(ctx, "signed-blob"); !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("err = %v, want ErrInsufficientPoints", err)
	}

	snap, _ := store.Load()
	account := snap.Users["42"]
	if account.Points != 1 {
		t.Errorf("points = %d, want 1", account.Points)
	}
	if len(account.Rewards) != 2 {
		t.Errorf("rewards = %d, want 2", len(account.Rewards))
	}
}

func TestRedeemLoyaltyUnverified(t *testing.T) {
	svc, _ := newTestService(t, &stubVerifier{})

	if _, err := svc.RedeemLoyalty(context.Background(), ""); !errors.Is(err, ErrIdentityRequired) {
		t.Fatalf("err = %v, want ErrIdentityRequired", err)
	}
}

func TestAdjustClientPoints(t *testing.T) {
	svc, store := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	err := store.Update(func(snap *model.Snapshot) error {
		snap.Users["u1"] = &model.UserAccount{
			Points:  4,
			Rewards: []model.RewardCode{{Code: "FTE-AAAAAA"}},
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}

	balance, err := svc.AdjustClientPoints(ctx, "u1", "set", 9)
	if err != nil || balance != 9 {
		t.Fatalf("set: balance = %d, err = %v, want 9", balance, err)
	}

	balance, err = svc.AdjustClientPoints(ctx, "u1", "add", -20)
	if err != nil || balance != 0 {
		t.Fatalf("add below zero: balance = %d, err = %v, want clamp to 0", balance, err)
	}

	balance, err = svc.AdjustClientPoints(ctx, "u1", "reset", 0)
	if err != nil || balance != 0 {
		t.Fatalf("reset: balance = %d, err = %v", balance, err)
	}

	snap, _ := store.Load()
	if len(snap.Users["u1"].Rewards) != 0 {
		t.Error("reset must clear reward codes")
	}

	if _, err := svc.AdjustClientPoints(ctx, "u1", "multiply", 2); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("err = %v, want ErrUnknownAction", err)
	}
	if _, err := svc.AdjustClientPoints(ctx, "ghost", "set", 1); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestDeleteOrderByEitherID(t *testing.T) {
	svc, store := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	first, err := svc.SubmitOrder(ctx, OrderRequest{Items: []model.OrderItem{{ProductID: "x", Quantity: 1}}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	second, err := svc.SubmitOrder(ctx, OrderRequest{Items: []model.OrderItem{{ProductID: "x", Quantity: 1}}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := svc.DeleteOrder(ctx, strconv.Itoa(first.OrderID)); err != nil {
		t.Fatalf("delete by public id: %v", err)
	}
	if err := svc.DeleteOrder(ctx, strconv.FormatInt(second.InternalID, 10)); err != nil {
		t.Fatalf("delete by internal id: %v", err)
	}

	if err := svc.DeleteOrder(ctx, "0"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}

	snap, _ := store.Load()
	if len(snap.Orders) != 0 {
		t.Errorf("orders = %d, want 0", len(snap.Orders))
	}
}

func TestProductsSortedAndReordered(t *testing.T) {
	svc, _ := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := svc.UpsertProduct(ctx, &model.Product{ID: id, Name: id}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	if err := svc.ReorderProducts(ctx, []string{"c", "a", "b"}); err != nil {
		t.Fatalf("reorder: %v", err)
	}

	products, err := svc.Products(ctx)
	if err != nil {
		t.Fatalf("products: %v", err)
	}

	got := make([]string, 0, len(products))
	for _, p := range products {
		got = append(got, p.ID)
	}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestUpsertKeepsRankDeleteSignalsMissing(t *testing.T) {
	svc, store := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	if err := svc.UpsertProduct(ctx, &model.Product{ID: "a", Name: "old"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := svc.ReorderProducts(ctx, []string{"a"}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if err := svc.UpsertProduct(ctx, &model.Product{ID: "a", Name: "new"}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	snap, _ := store.Load()
	if got := snap.Products["a"].RankValue(); got != 0 {
		t.Errorf("rank after edit = %d, want preserved 0", got)
	}
	if snap.Products["a"].Name != "new" {
		t.Errorf("name = %q, want updated", snap.Products["a"].Name)
	}

	if err := svc.DeleteProduct(ctx, "ghost"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("err = %v, want ErrProductNotFound", err)
	}
	if err := svc.UpsertProduct(ctx, &model.Product{}); !errors.Is(err, ErrEmptyProductID) {
		t.Fatalf("err = %v, want ErrEmptyProductID", err)
	}
}

func TestUpdateLoyaltyConfigCaps(t *testing.T) {
	svc, _ := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	rewards := make([]model.LoyaltyReward, 0, 12)
	for i := 0; i < 12; i++ {
		rewards = append(rewards, model.LoyaltyReward{Points: i, Label: "prize"})
	}

	if err := svc.UpdateLoyaltyConfig(ctx, rewards); err != nil {
		t.Fatalf("update loyalty config: %v", err)
	}

	cfg, err := svc.LoyaltyConfig(ctx)
	if err != nil {
		t.Fatalf("loyalty config: %v", err)
	}
	if len(cfg.Rewards) != 10 {
		t.Errorf("rewards = %d, want capped at 10", len(cfg.Rewards))
	}
	if cfg.MaxPoints != 10 {
		t.Errorf("maxPoints = %d, want pinned 10", cfg.MaxPoints)
	}
}
