package session

import (
	"context"
	"testing"

	"go.uber.org/zap"

	sessmodel "github.com/adeyemi/chopbot/internal/model/session"
)

func TestGetOrCreateRoundTrip(t *testing.T) {
	mgr := NewManager(sessmodel.NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	sess, err := mgr.GetOrCreate(ctx, "")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if sess.Token == "" {
		t.Fatal("expected a token on a fresh session")
	}
	if sess.Stage != sessmodel.StageIdle {
		t.Fatalf("fresh session should be idle, got %s", sess.Stage)
	}

	again, err := mgr.GetOrCreate(ctx, sess.Token)
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if again.Token != sess.Token {
		t.Fatalf("expected same session back, got %s want %s", again.Token, sess.Token)
	}
}

func TestGetOrCreateUnknownTokenMintsFreshSession(t *testing.T) {
	mgr := NewManager(sessmodel.NewMemoryStore(), zap.NewNop())

	sess, err := mgr.GetOrCreate(context.Background(), "expired-token")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if sess.Token == "" || sess.Token == "expired-token" {
		t.Fatalf("expected a new token, got %q", sess.Token)
	}
}

func TestRegenerateReplacesTokenAndClearsState(t *testing.T) {
	store := sessmodel.NewMemoryStore()
	mgr := NewManager(store, zap.NewNop())
	ctx := context.Background()

	sess, err := mgr.GetOrCreate(ctx, "")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	sess.Cart = []string{"suya"}
	sess.Stage = sessmodel.StageSelecting
	if err := mgr.Update(ctx, sess); err != nil {
		t.Fatalf("Update err: %v", err)
	}

	fresh, err := mgr.Regenerate(ctx, sess)
	if err != nil {
		t.Fatalf("Regenerate err: %v", err)
	}
	if fresh.Token == sess.Token {
		t.Fatal("regenerate must mint a new token")
	}
	if len(fresh.Cart) != 0 || fresh.Stage != sessmodel.StageIdle {
		t.Fatalf("regenerated session must be empty and idle, got %+v", fresh)
	}
	if _, err := store.Get(ctx, sess.Token); err != sessmodel.ErrNotFound {
		t.Fatalf("old session should be gone, got %v", err)
	}
}

func TestUpdatePersistsCartAndStageTogether(t *testing.T) {
	store := sessmodel.NewMemoryStore()
	mgr := NewManager(store, zap.NewNop())
	ctx := context.Background()

	sess, err := mgr.GetOrCreate(ctx, "")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	sess.Cart = []string{"jollof-rice", "chapman"}
	sess.Stage = sessmodel.StageIdle
	if err := mgr.Update(ctx, sess); err != nil {
		t.Fatalf("Update err: %v", err)
	}

	got, err := store.Get(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if len(got.Cart) != 2 || got.Stage != sessmodel.StageIdle {
		t.Fatalf("unexpected persisted session: %+v", got)
	}
}
