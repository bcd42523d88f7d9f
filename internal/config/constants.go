package config

const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./roadwatch.db"

	// DefaultBreachBaseURL is the public Pwned Passwords range API
	DefaultBreachBaseURL = "https://api.pwnedpasswords.com"
)
