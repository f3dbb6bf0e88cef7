package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dionfirmansyah/yonsense/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "registry.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestStore(t *testing.T) *GormSubscriptionStore {
	t.Helper()
	store, err := NewGormSubscriptionStore(newTestDB(t))
	if err != nil {
		t.Fatalf("NewGormSubscriptionStore() error: %v", err)
	}
	return store
}

func testSub(userID, endpoint string) *models.Subscription {
	return &models.Subscription{UserID: userID, Endpoint: endpoint, P256dh: "p256dh-" + endpoint, Auth: "auth"}
}

func TestUpsertIsUniqueByEndpoint(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := testSub("u1", "https://push.example/a")
	if err := store.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if first.ID == "" {
		t.Fatal("Upsert() did not assign an id")
	}

	again := testSub("u1", "https://push.example/a")
	again.Auth = "rotated"
	if err := store.Upsert(ctx, again); err != nil {
		t.Fatalf("second Upsert() error: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("re-registration id = %q, want %q", again.ID, first.ID)
	}
	if again.Auth != "rotated" {
		t.Errorf("Auth = %q, want rotated", again.Auth)
	}

	subs, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("got %d subscriptions, want 1", len(subs))
	}
}

func TestUpsertReactivatesDeactivatedEndpoint(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sub := testSub("u1", "https://push.example/a")
	if err := store.Upsert(ctx, sub); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if err := store.DeactivateByEndpoint(ctx, sub.Endpoint); err != nil {
		t.Fatalf("DeactivateByEndpoint() error: %v", err)
	}
	active, _ := store.ListActiveByUser(ctx, "u1")
	if len(active) != 0 {
		t.Fatalf("got %d active after deactivate, want 0", len(active))
	}

	if err := store.Upsert(ctx, testSub("u1", sub.Endpoint)); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	active, _ = store.ListActiveByUser(ctx, "u1")
	if len(active) != 1 || active[0].ID != sub.ID {
		t.Fatalf("active = %+v, want the original subscription reactivated", active)
	}
}

func TestUpsertReownsEndpointToLastRegistrant(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Upsert(ctx, testSub("alice", "https://push.example/shared")); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if err := store.Upsert(ctx, testSub("bob", "https://push.example/shared")); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	alice, _ := store.ListActiveByUser(ctx, "alice")
	bob, _ := store.ListActiveByUser(ctx, "bob")
	if len(alice) != 0 {
		t.Errorf("alice has %d subscriptions, want 0", len(alice))
	}
	if len(bob) != 1 {
		t.Errorf("bob has %d subscriptions, want 1", len(bob))
	}
}

func TestListActiveByUserFiltersInactiveAndOtherUsers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	a := testSub("u1", "https://push.example/a")
	b := testSub("u1", "https://push.example/b")
	c := testSub("u2", "https://push.example/c")
	for _, s := range []*models.Subscription{a, b, c} {
		if err := store.Upsert(ctx, s); err != nil {
			t.Fatalf("Upsert() error: %v", err)
		}
	}
	if err := store.Deactivate(ctx, b.ID); err != nil {
		t.Fatalf("Deactivate() error: %v", err)
	}

	got, err := store.ListActiveByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListActiveByUser() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("ListActiveByUser(u1) = %+v, want only %s", got, a.ID)
	}

	none, err := store.ListActiveByUser(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListActiveByUser(nobody) error: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d subscriptions for unknown user, want 0", len(none))
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sub := testSub("u1", "https://push.example/a")
	if err := store.Upsert(ctx, sub); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if err := store.Delete(ctx, sub.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := store.Delete(ctx, sub.ID); err != nil {
		t.Fatalf("second Delete() error: %v", err)
	}
	if err := store.Deactivate(ctx, sub.ID); err != nil {
		t.Fatalf("Deactivate() of deleted id error: %v", err)
	}
	if _, err := store.GetByEndpoint(ctx, sub.Endpoint); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Fatalf("GetByEndpoint() error = %v, want ErrSubscriptionNotFound", err)
	}
}

func TestDeactivateByEndpointUnknown(t *testing.T) {
	store := newTestStore(t)
	err := store.DeactivateByEndpoint(context.Background(), "https://push.example/missing")
	if !errors.Is(err, ErrSubscriptionNotFound) {
		t.Fatalf("DeactivateByEndpoint() error = %v, want ErrSubscriptionNotFound", err)
	}
}

func TestPurgeInactive(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return old }

	stale := testSub("u1", "https://push.example/stale")
	live := testSub("u1", "https://push.example/live")
	for _, s := range []*models.Subscription{stale, live} {
		if err := store.Upsert(ctx, s); err != nil {
			t.Fatalf("Upsert() error: %v", err)
		}
	}
	if err := store.Deactivate(ctx, stale.ID); err != nil {
		t.Fatalf("Deactivate() error: %v", err)
	}

	n, err := store.PurgeInactive(ctx, old.Add(time.Hour))
	if err != nil {
		t.Fatalf("PurgeInactive() error: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	if _, err := store.GetByEndpoint(ctx, live.Endpoint); err != nil {
		t.Errorf("active subscription was purged: %v", err)
	}
}

func TestGormDispatchLog(t *testing.T) {
	ctx := context.Background()
	log, err := NewGormDispatchLog(newTestDB(t))
	if err != nil {
		t.Fatalf("NewGormDispatchLog() error: %v", err)
	}

	if _, err := log.Get(ctx, "missing"); !errors.Is(err, ErrDispatchNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrDispatchNotFound", err)
	}

	rec := &models.DispatchRecord{RequestID: "req-1", Mode: models.ModeUsers, Status: models.StatusProcessing}
	if err := log.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	rec.Status = models.StatusCompleted
	rec.Total, rec.Successful, rec.Failed = 2, 1, 1
	if err := log.Save(ctx, rec); err != nil {
		t.Fatalf("second Save() error: %v", err)
	}

	got, err := log.Get(ctx, "req-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Status != models.StatusCompleted || got.Successful != 1 || got.Failed != 1 {
		t.Errorf("Get() = %+v, want completed 1/1", got)
	}
}
