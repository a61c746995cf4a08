package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"agrimarket/internal/model"
)

type UserService struct {
	db *sql.DB
}

func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

// UpdateUserInput carries profile fields; nil leaves a field as is.
type UpdateUserInput struct {
	Name      *string
	Phone     *string
	Location  *string
	Latitude  *float64
	Longitude *float64
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*model.User, error) {
	if in.Name != nil && blank(*in.Name) {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrValidation)
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		return nil, fmt.Errorf("%w: latitude out of range", ErrValidation)
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		return nil, fmt.Errorf("%w: longitude out of range", ErrValidation)
	}

	user, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET
			name = COALESCE($1, name),
			phone = COALESCE($2, phone),
			location = COALESCE($3, location),
			latitude = COALESCE($4, latitude),
			longitude = COALESCE($5, longitude)
		WHERE id = $6
		RETURNING `+userColumns,
		in.Name, in.Phone, in.Location, in.Latitude, in.Longitude, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}
