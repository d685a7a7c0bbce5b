package model

import (
	"database/sql"
	"fmt"
	"time"
)

// User represents a row in the users table.
type User struct {
	ID             int64
	Username       string
	Email          string
	HashedPassword string
	CreatedAt      time.Time
}

// Session represents an issued refresh token in the sessions table. Access
// tokens are validated statelessly; refresh tokens are revocable via this
// table.
type Session struct {
	ID           int64
	UserID       int64
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// CreateUser inserts a new user and returns its id.
func CreateUser(db *sql.DB, username, email, hashedPassword string) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO users (username, email, hashed_password) VALUES (?, ?, ?)`,
		username, email, hashedPassword,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create user %q: %w", username, err)
	}
	return res.LastInsertId()
}

// GetUserByUsername fetches a user by username.
func GetUserByUsername(db *sql.DB, username string) (*User, error) {
	var u User
	err := db.QueryRow(
		`SELECT id, username, email, hashed_password, created_at FROM users WHERE username = ?`,
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID fetches a user by primary key.
func GetUserByID(db *sql.DB, id int64) (*User, error) {
	var u User
	err := db.QueryRow(
		`SELECT id, username, email, hashed_password, created_at FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateSession stores a refresh token for a user.
func CreateSession(db *sql.DB, userID int64, refreshToken string, expiresAt time.Time) error {
	_, err := db.Exec(
		`INSERT INTO sessions (user_id, refresh_token, expires_at) VALUES (?, ?, ?)`,
		userID, refreshToken, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session for user %d: %w", userID, err)
	}
	return nil
}

// GetSessionByToken fetches a non-expired session by its refresh token.
func GetSessionByToken(db *sql.DB, refreshToken string) (*Session, error) {
	var s Session
	err := db.QueryRow(
		`SELECT id, user_id, refresh_token, expires_at, created_at
		 FROM sessions WHERE refresh_token = ? AND expires_at > CURRENT_TIMESTAMP`,
		refreshToken,
	).Scan(&s.ID, &s.UserID, &s.RefreshToken, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSessionByToken revokes one refresh token.
func DeleteSessionByToken(db *sql.DB, refreshToken string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE refresh_token = ?`, refreshToken)
	return err
}

// DeleteSessionsForUser revokes every session of a user.
func DeleteSessionsForUser(db *sql.DB, userID int64) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

// DeleteExpiredSessions removes sessions past their expiry. Called
// opportunistically on login.
func DeleteExpiredSessions(db *sql.DB) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE expires_at <= CURRENT_TIMESTAMP`)
	return err
}
