// Command migrator applies, rolls back or reports the embedded schema
// migrations: migrator [up|down|status].
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/iliyamo/course-marketplace/internal/config"
	"github.com/iliyamo/course-marketplace/internal/database"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "up":
		err = database.Migrate(db)
	case "down":
		err = database.Rollback(db)
	case "status":
		err = database.Status(db)
	default:
		log.Fatalf("unknown command %q (want up, down or status)", cmd)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
	log.Printf("%s: done", cmd)
}
