package data

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/Gee2424/HubFreelance-sub001/internal/db"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("db.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	if err := Migrate(gdb); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return gdb
}

func mustCreateUser(t *testing.T, s *UsersStore, email string, role Role) *User {
	t.Helper()
	u := &User{Email: email, Username: email, Password: "hashed-password", Role: role, Active: true}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", email, err)
	}
	return u
}
