package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"agrimarket/internal/model"
)

const userColumns = `id, email, password_hash, name, phone, role, location, latitude, longitude, created_at`

type AuthService struct {
	db *sql.DB
}

func NewAuthService(db *sql.DB) *AuthService {
	return &AuthService{db: db}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
	Phone    string
	Location string
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		user     model.User
		lat, lon sql.NullFloat64
	)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Phone, &user.Role,
		&user.Location, &lat, &lon, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	user.Latitude = floatPtr(lat)
	user.Longitude = floatPtr(lon)
	return &user, nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if len(in.Password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	if blank(in.Name) {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.Role != model.RoleFarmer && in.Role != model.RoleBuyer {
		return nil, fmt.Errorf("%w: role must be farmer or buyer", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	query := `INSERT INTO users (email, password_hash, name, phone, role, location)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING ` + userColumns
	user, err := scanUser(s.db.QueryRowContext(ctx, query,
		email, hash, strings.TrimSpace(in.Name), in.Phone, in.Role, in.Location))
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return nil, fmt.Errorf("email %s: %w", email, ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
