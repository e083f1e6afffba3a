package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pro-chat/internal/identity"
)

var ErrNotFound = errors.New("account not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// tableFor maps a class to its table. The switch doubles as validation so a
// class never reaches string interpolation unchecked.
func tableFor(class identity.Class) (string, error) {
	switch class {
	case identity.Requester:
		return "requesters", nil
	case identity.Provider:
		return "providers", nil
	}
	return "", fmt.Errorf("unknown participant class %q", class)
}

func (r *Repository) CreateAccount(ctx context.Context, a *Account) (*Account, error) {
	table, err := tableFor(a.Class)
	if err != nil {
		return nil, err
	}

	var id int
	query := fmt.Sprintf("INSERT INTO %s (name, email, password) VALUES ($1, $2, $3) RETURNING id", table)
	if err := r.db.QueryRowContext(ctx, query, a.Name, a.Email, a.Password).Scan(&id); err != nil {
		return nil, err
	}

	a.ID = id
	return a, nil
}

func (r *Repository) GetByEmail(ctx context.Context, class identity.Class, email string) (*Account, error) {
	table, err := tableFor(class)
	if err != nil {
		return nil, err
	}

	a := &Account{Class: class}
	query := fmt.Sprintf("SELECT id, name, email, password FROM %s WHERE email = $1", table)
	err = r.db.QueryRowContext(ctx, query, email).Scan(&a.ID, &a.Name, &a.Email, &a.Password)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return a, nil
}

func (r *Repository) GetByID(ctx context.Context, p identity.Participant) (*Account, error) {
	table, err := tableFor(p.Class)
	if err != nil {
		return nil, err
	}

	a := &Account{Class: p.Class}
	query := fmt.Sprintf("SELECT id, name, email FROM %s WHERE id = $1", table)
	err = r.db.QueryRowContext(ctx, query, p.ID).Scan(&a.ID, &a.Name, &a.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return a, nil
}

func (r *Repository) Search(ctx context.Context, class identity.Class, query string) ([]Account, error) {
	table, err := tableFor(class)
	if err != nil {
		return nil, err
	}

	// Limit to 10 to keep it fast
	q := fmt.Sprintf("SELECT id, name, email FROM %s WHERE name ILIKE $1 LIMIT 10", table)
	rows, err := r.db.QueryContext(ctx, q, "%"+query+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a := Account{Class: class}
		if err := rows.Scan(&a.ID, &a.Name, &a.Email); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
