package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/classroom/internal/model"
)

const userColumns = `id, username, nickname, avatar, password_hash, role, active, created_at, expires_at`

// HashPassword returns the bcrypt hash of a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CreateUser inserts a new user. A taken username yields ErrDuplicateUser.
func (s *Store) CreateUser(u model.User) (int64, error) {
	if u.Avatar == "" {
		u.Avatar = model.DefaultAvatar
	}
	if u.Role == "" {
		u.Role = model.UserRoleStudent
	}
	res, err := s.db.Exec(
		`INSERT INTO users (username, nickname, avatar, password_hash, role, active, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Nickname, u.Avatar, u.PasswordHash, u.Role, u.Active, time.Now(), u.ExpiresAt,
	)
	if isUniqueViolation(err) {
		return 0, ErrDuplicateUser
	}
	if err != nil {
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created user", "id", id, "username", u.Username, "role", u.Role)
	return id, nil
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var expires sql.NullTime
	if err := row.Scan(&u.ID, &u.Username, &u.Nickname, &u.Avatar, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt, &expires); err != nil {
		return nil, err
	}
	if expires.Valid {
		t := expires.Time
		u.ExpiresAt = &t
	}
	return &u, nil
}

// GetUserByUsername returns a user by username, or nil if there is none.
// Expired accounts are reported as absent.
func (s *Store) GetUserByUsername(username string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if u.Expired(time.Now()) {
		return nil, nil
	}
	return u, nil
}

// VerifyPassword reports whether password matches the stored hash of an
// active, unexpired account.
func (s *Store) VerifyPassword(username, password string) (*model.User, bool, error) {
	u, err := s.GetUserByUsername(username)
	if err != nil || u == nil || !u.Active {
		return nil, false, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, false, nil
	}
	return u, true, nil
}

// ListUsers returns all users.
func (s *Store) ListUsers() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userColumns + ` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ToggleUserActive flips the active flag on a user.
func (s *Store) ToggleUserActive(username string) error {
	_, err := s.db.Exec(`UPDATE users SET active = NOT active WHERE username = ?`, username)
	return err
}

// UpdateProfile sets the nickname and, when avatar is non-empty, the avatar.
func (s *Store) UpdateProfile(username, nickname, avatar string) error {
	var err error
	if avatar == "" {
		_, err = s.db.Exec(`UPDATE users SET nickname = ? WHERE username = ?`, nickname, username)
	} else {
		_, err = s.db.Exec(`UPDATE users SET nickname = ?, avatar = ? WHERE username = ?`, nickname, avatar, username)
	}
	return err
}

// UpdatePasswordHash replaces the stored password hash.
func (s *Store) UpdatePasswordHash(username, hash string) error {
	_, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE username = ?`, hash, username)
	return err
}

// DeleteUser removes a user together with the user's answers, progress
// and quiz lock. It reports whether the user existed.
func (s *Store) DeleteUser(username string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	for _, q := range []string{
		`DELETE FROM answers WHERE username = ?`,
		`DELETE FROM progress WHERE username = ?`,
		`DELETE FROM quiz_locks WHERE username = ?`,
	} {
		if _, err := tx.Exec(q, username); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	if n > 0 {
		slog.Info("deleted user", "username", username)
	}
	return n > 0, nil
}

// ExpiredUsernames returns the accounts past their expiry.
func (s *Store) ExpiredUsernames() ([]string, error) {
	rows, err := s.db.Query(`SELECT username FROM users WHERE expires_at IS NOT NULL AND expires_at < ? ORDER BY username`, time.Now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var expired []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		expired = append(expired, name)
	}
	return expired, rows.Err()
}

// UserCount returns the total number of users.
func (s *Store) UserCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
