package db

import (
	"context"
	"testing"

	"github.com/geocoder89/lifeplus/internal/config"
	"github.com/geocoder89/lifeplus/internal/domain/user"
	"github.com/geocoder89/lifeplus/internal/repo/memory"
	"github.com/geocoder89/lifeplus/internal/security"
)

func TestEnsureAdminUser(t *testing.T) {
	ctx := context.Background()
	users := memory.NewStore().Users()
	cfg := config.Config{
		AdminEmail:     "Admin@LifePlus.local",
		AdminPassword:  "Adm1n!pass",
		AdminName:      "Root",
		AdminBirthDate: "1980-01-01",
	}

	created, err := EnsureAdminUser(ctx, users, cfg)
	if err != nil || !created {
		t.Fatalf("first seed: created=%v err=%v", created, err)
	}

	created, err = EnsureAdminUser(ctx, users, cfg)
	if err != nil || created {
		t.Fatalf("second seed must be a no-op: created=%v err=%v", created, err)
	}

	u, err := users.GetByEmail(ctx, "admin@lifeplus.local")
	if err != nil {
		t.Fatalf("lookup admin: %v", err)
	}
	if u.Role != user.RoleAdmin {
		t.Fatalf("got role %q, want admin", u.Role)
	}
	if err := security.CheckPassword(u.PasswordHash, "Adm1n!pass"); err != nil {
		t.Fatalf("password not stored as bcrypt of configured value: %v", err)
	}
}

func TestEnsureAdminUser_Disabled(t *testing.T) {
	created, err := EnsureAdminUser(context.Background(), memory.NewStore().Users(), config.Config{})
	if err != nil || created {
		t.Fatalf("got created=%v err=%v", created, err)
	}
}
