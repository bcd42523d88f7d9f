// Package database provides the data access layer for the portal.
//
// # Architecture
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── users/           # Local backend accounts and issued sessions
//	└── audit/           # Auth audit trail
//
// Each sub-package provides a Repository type over a shared *gorm.DB:
//
//	db, err := database.NewDatabase("./roadwatch.db")
//	usersRepo := users.NewRepository(db.DB)
//	auditRepo := audit.NewRepository(db.DB)
//
// The browser session store (scs) and the task queue (backlite) manage
// their own tables through database/sql and are not migrated here.
package database
