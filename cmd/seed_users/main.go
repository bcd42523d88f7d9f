// Command seed_users creates confirmed demo accounts in a local-backend database.
// Usage: go run cmd/seed_users/main.go [-db path/to/roadwatch.db]
package main

import (
	"context"
	"flag"
	"log"

	"github.com/mrlokans/roadwatch/internal/backend"
	"github.com/mrlokans/roadwatch/internal/backend/local"
	"github.com/mrlokans/roadwatch/internal/config"
	"github.com/mrlokans/roadwatch/internal/database"
	"github.com/mrlokans/roadwatch/internal/database/users"
	"github.com/mrlokans/roadwatch/internal/theme"
)

type demoUser struct {
	Email    string
	Password string
	Theme    theme.Preference
}

var demoUsers = []demoUser{
	{Email: "dispatcher@roadwatch.local", Password: "Dispatch3r!", Theme: theme.Dark},
	{Email: "analyst@roadwatch.local", Password: "Analys7!Road", Theme: theme.Light},
}

func main() {
	dbPath := flag.String("db", config.DefaultDatabasePath, "path to the database file")
	flag.Parse()

	log.Printf("Seeding demo users into %s...", *dbPath)

	db, err := database.NewDatabase(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	lb := local.New(users.NewRepository(db.DB), config.Auth{AutoConfirm: true, BcryptCost: 10}, "http://localhost:8188", nil)
	ctx := context.Background()

	for _, u := range demoUsers {
		res, err := lb.SignUp(ctx, u.Email, u.Password, backend.SignUpOptions{})
		if err != nil {
			if be, ok := backend.AsError(err); ok && be.Code == "user_already_exists" {
				log.Printf("Skipped %s: already registered", u.Email)
				continue
			}
			log.Printf("Failed to create %s: %v", u.Email, err)
			continue
		}

		if res.Session != nil {
			if _, err := lb.UpdateUserMetadata(ctx, res.Session.AccessToken, map[string]any{theme.MetadataKey: u.Theme.String()}); err != nil {
				log.Printf("Failed to set theme for %s: %v", u.Email, err)
			}
			if err := lb.SignOut(ctx, res.Session.AccessToken); err != nil {
				log.Printf("Failed to revoke seed session for %s: %v", u.Email, err)
			}
		}
		log.Printf("Created: %s (password %s, theme %s)", u.Email, u.Password, u.Theme)
	}

	log.Println("Demo users seeded")
}
