package repository

import (
	"database/sql"
	"log"
)

func CreateTableIfNotExists(db *sql.DB) {
	query := `
CREATE TABLE IF NOT EXISTS users (
    id CHAR(24) PRIMARY KEY,
    username VARCHAR(255) NOT NULL,
    email VARCHAR(255) NOT NULL UNIQUE,
    password VARCHAR(255) NOT NULL,
    photo VARCHAR(512),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
    id CHAR(24) PRIMARY KEY,
    user_id CHAR(24) NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    title VARCHAR(255) NOT NULL,
    description TEXT,
    done BOOLEAN NOT NULL DEFAULT FALSE,
    files TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	if _, err := db.Exec(query); err != nil {
		log.Fatalf("Error creating tables: %v", err)
	}
}

func DeleteAllTables(db *sql.DB) {
	query := `
    DROP TABLE IF EXISTS tasks;
    DROP TABLE IF EXISTS users;
    `

	if _, err := db.Exec(query); err != nil {
		log.Fatalf("Error deleting tables: %v", err)
	}
}
