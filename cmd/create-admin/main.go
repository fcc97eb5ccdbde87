// Command create-admin seeds the initial administrator account so the
// two-step admin login has someone to let in.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"

	"campusmarket/internal/config"
	"campusmarket/internal/crypto"
	"campusmarket/internal/db"
	"campusmarket/internal/model"
	"campusmarket/internal/repository"
)

const (
	adminEmail    = "admin@marketplace.com"
	adminUsername = "admin"
	adminPassword = "admin123"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema bootstrap failed: %v", err)
	}

	store := repository.NewStore(pool)
	existing, err := store.GetUserByUsername(ctx, adminUsername)
	if err == nil {
		fmt.Printf("admin account already exists (id=%d, email=%s)\n", existing.ID, existing.Email)
		return
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		log.Fatalf("lookup failed: %v", err)
	}

	hash, err := crypto.HashPassword(adminPassword)
	if err != nil {
		log.Fatalf("hash failed: %v", err)
	}

	createdBy := adminUsername
	admin, err := store.CreateUser(ctx, model.User{
		Email:          adminEmail,
		Username:       adminUsername,
		HashedPassword: hash,
		FullName:       "Marketplace Administrator",
		StudentID:      "ADMIN001",
		Role:           model.RoleAdmin,
		IsActive:       true,
		IsVerified:     true,
		CreatedBy:      &createdBy,
	})
	if err != nil {
		log.Fatalf("create failed: %v", err)
	}

	fmt.Println("admin account created")
	fmt.Printf("  id:       %d\n", admin.ID)
	fmt.Printf("  email:    %s\n", admin.Email)
	fmt.Printf("  username: %s\n", admin.Username)
	fmt.Printf("  password: %s (change after first login)\n", adminPassword)
}
