// Command createadmin bootstraps a super_admin account. It does nothing when
// an account with the email already exists.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/course-marketplace/internal/config"
	"github.com/iliyamo/course-marketplace/internal/database"
	"github.com/iliyamo/course-marketplace/internal/model"
	"github.com/iliyamo/course-marketplace/internal/repository"
	"github.com/iliyamo/course-marketplace/internal/service"
	"github.com/iliyamo/course-marketplace/internal/validation"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()

	name := flag.String("name", envOr("ADMIN_NAME", "Admin User"), "display name")
	email := flag.String("email", os.Getenv("ADMIN_EMAIL"), "login email")
	phone := flag.String("phone", os.Getenv("ADMIN_PHONE"), "10-digit phone number")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "initial password")
	flag.Parse()

	in := service.CreateUserInput{
		Name:     *name,
		Email:    *email,
		Phone:    *phone,
		Password: *password,
		Role:     string(model.RoleSuperAdmin),
	}
	if err := validation.New().Validate(&in); err != nil {
		log.Fatalf("invalid admin details: %v", err)
	}

	cfg := config.Load()
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo := repository.NewUserRepo(db)
	if u, err := repo.GetByEmail(ctx, service.NormalizeEmail(in.Email)); err == nil {
		log.Printf("account %s already exists (role=%s)", u.Email, u.Role)
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		log.Fatal(err)
	}

	// Nobody is signed in yet; the bootstrap acts as a super_admin.
	bootstrap := &model.User{Role: model.RoleSuperAdmin}
	u, err := service.NewUserService(cfg, repo, repository.NewEnrollmentRepo(db), nil, nil).Create(ctx, bootstrap, in)
	if err != nil {
		log.Fatalf("create admin: %v", err)
	}
	log.Printf("created super_admin %s (id=%d)", u.Email, u.ID)
}
