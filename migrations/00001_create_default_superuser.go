package migrations

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/pressly/goose/v3"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	goose.AddMigration(upCreateDefaultSuperuser, downCreateDefaultSuperuser)
}

func upCreateDefaultSuperuser(tx *sql.Tx) error {
	utorid := os.Getenv("SUPERUSER_UTORID")
	if utorid == "" {
		utorid = "clive123"
	}

	email := os.Getenv("SUPERUSER_EMAIL")
	if email == "" {
		email = "clive.su@mail.utoronto.ca"
	}

	password := os.Getenv("SUPERUSER_PASSWORD")
	if password == "" {
		password = "SuperUser123!"
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// Check if a superuser already exists
	var count int
	err = tx.QueryRow("SELECT COUNT(*) FROM users WHERE role = 'SUPERUSER'").Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check existing superuser: %w", err)
	}

	// Only create one if none exists
	if count == 0 {
		query := `
			INSERT INTO users (utorid, name, email, password, role, points, verified, suspicious, created_at, updated_at)
			VALUES ($1, 'Superuser', $2, $3, 'SUPERUSER', 0, true, false, NOW(), NOW())
		`
		_, err = tx.Exec(query, utorid, email, string(hashedPassword))
		if err != nil {
			return fmt.Errorf("failed to create superuser: %w", err)
		}
	}

	return nil
}

func downCreateDefaultSuperuser(tx *sql.Tx) error {
	utorid := os.Getenv("SUPERUSER_UTORID")
	if utorid == "" {
		utorid = "clive123"
	}

	query := "DELETE FROM users WHERE utorid = $1 AND role = 'SUPERUSER'"
	_, err := tx.Exec(query, utorid)
	if err != nil {
		return fmt.Errorf("failed to delete superuser: %w", err)
	}

	return nil
}
