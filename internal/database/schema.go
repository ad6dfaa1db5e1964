package database

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate creates the application tables when they do not exist yet
// and seeds the static membership_levels lookup. The DDL avoids
// vendor-specific SQL except for the auto-increment primary key, which
// differs between MySQL and SQLite.
func Migrate(db *sql.DB, driver string) error {
	pk := "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"
	if driver == DriverSQLite {
		pk = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS members (
			id ` + pk + `,
			user_id VARCHAR(50) NOT NULL UNIQUE,
			password_hash VARCHAR(100) NOT NULL,
			name VARCHAR(50) NOT NULL,
			membership_level INT NOT NULL DEFAULT 0,
				referral_source VARCHAR(50),
				referral_source_etc VARCHAR(100),
			security_status VARCHAR(16) NOT NULL DEFAULT 'NORMAL',
			suspicious_count INT NOT NULL DEFAULT 0,
			last_suspicious_at DATETIME,
			blocked_at DATETIME,
			blocked_reason VARCHAR(255),
			is_active TINYINT NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			last_login_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS active_sessions (
			id ` + pk + `,
			member_id BIGINT NOT NULL,
			session_token VARCHAR(64) NOT NULL UNIQUE,
			expires_at DATETIME NOT NULL,
			ip_address VARCHAR(64) NOT NULL,
			device_type VARCHAR(16) NOT NULL,
			browser VARCHAR(64) NOT NULL,
			browser_version VARCHAR(32) NOT NULL,
			os VARCHAR(64) NOT NULL,
			os_version VARCHAR(32) NOT NULL,
			is_active TINYINT NOT NULL DEFAULT 1,
			login_at DATETIME NOT NULL,
			last_activity_at DATETIME NOT NULL,
			logout_at DATETIME
		)`,
		`CREATE INDEX idx_sessions_member_active ON active_sessions (member_id, is_active)`,
		`CREATE TABLE IF NOT EXISTS suspicious_access_logs (
			id ` + pk + `,
			member_id BIGINT NOT NULL,
			detection_type VARCHAR(32) NOT NULL,
			severity VARCHAR(16) NOT NULL,
			current_ip VARCHAR(64) NOT NULL,
			previous_ip VARCHAR(64) NOT NULL,
			user_agent VARCHAR(512) NOT NULL,
			device_type VARCHAR(16) NOT NULL,
			detected_at DATETIME NOT NULL,
			is_resolved TINYINT NOT NULL DEFAULT 0,
			resolved_at DATETIME,
			resolution_type VARCHAR(32),
			resolution_note VARCHAR(512)
		)`,
		`CREATE TABLE IF NOT EXISTS login_history (
			id ` + pk + `,
			member_id BIGINT NOT NULL,
			ip_address VARCHAR(64) NOT NULL,
			user_agent VARCHAR(512) NOT NULL,
			device_type VARCHAR(16) NOT NULL,
			browser VARCHAR(64) NOT NULL,
			os VARCHAR(64) NOT NULL,
			is_success TINYINT NOT NULL,
			failure_reason VARCHAR(255),
			login_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS membership_levels (
			level INT NOT NULL PRIMARY KEY,
			name VARCHAR(50) NOT NULL,
			max_sessions INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			id ` + pk + `,
			feed VARCHAR(16) NOT NULL,
			stock_code VARCHAR(16) NOT NULL,
			stock_name VARCHAR(64) NOT NULL,
			title VARCHAR(255) NOT NULL,
			body TEXT,
			min_level INT NOT NULL DEFAULT 1,
			is_active TINYINT NOT NULL DEFAULT 1,
			published_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS referral_sources (
			id ` + pk + `,
			code VARCHAR(50) NOT NULL UNIQUE,
			name VARCHAR(100) NOT NULL,
			sort_order INT NOT NULL DEFAULT 0,
			is_active TINYINT NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS pages (
			id ` + pk + `,
			path VARCHAR(255) NOT NULL UNIQUE,
			required_level INT NOT NULL DEFAULT 0,
			is_active TINYINT NOT NULL DEFAULT 1
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil && !isAlreadyExistsErr(err) {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	// Seed the concurrency-limit lookup. Levels are configuration, not
	// policy: admins may edit the rows afterwards.
	seed := [][3]interface{}{
		{0, "Free", 1},
		{1, "Basic", 2},
		{2, "Standard", 2},
		{3, "Plus", 3},
		{4, "Premium", 3},
		{5, "VIP", 3},
	}
	for _, row := range seed {
		if _, err := db.Exec(
			`INSERT INTO membership_levels (level, name, max_sessions) VALUES (?,?,?)`,
			row[0], row[1], row[2]); err != nil && !isDuplicateErr(err) {
			return fmt.Errorf("seed membership_levels: %w", err)
		}
	}

	// Seed the registration referral lookup. The "etc" entry requires
	// free text from the member at registration time.
	referrals := [][3]interface{}{
		{"search", "Search engine", 1},
		{"sns", "Social media", 2},
		{"youtube", "YouTube", 3},
		{"blog", "Blog or community", 4},
		{"friend", "Friend referral", 5},
		{"etc", "Other", 6},
	}
	for _, row := range referrals {
		if _, err := db.Exec(
			`INSERT INTO referral_sources (code, name, sort_order, is_active) VALUES (?,?,?,1)`,
			row[0], row[1], row[2]); err != nil && !isDuplicateErr(err) {
			return fmt.Errorf("seed referral_sources: %w", err)
		}
	}
	return nil
}

func isAlreadyExistsErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate key name")
}

func isDuplicateErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate") || strings.Contains(msg, "1062")
}
