package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/tidewater/subledger/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var firstName, lastName, imageURL, stripeID sql.NullString
	err := scanner.Scan(
		&u.ID, &u.ClerkID, &u.Email, &firstName, &lastName, &imageURL,
		&stripeID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if firstName.Valid {
		u.FirstName = &firstName.String
	}
	if lastName.Valid {
		u.LastName = &lastName.String
	}
	if imageURL.Valid {
		u.ImageURL = &imageURL.String
	}
	if stripeID.Valid {
		u.StripeCustomerID = &stripeID.String
	}
	return &u, nil
}

const userCols = `id, clerk_id, email, first_name, last_name, image_url, stripe_customer_id, created_at, updated_at`

// UserParams carries the identity-provider fields for create/update.
type UserParams struct {
	ClerkID   string
	Email     string
	FirstName *string
	LastName  *string
	ImageURL  *string
}

func (s *UserStore) Create(p UserParams) (*model.User, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO users (id, clerk_id, email, first_name, last_name, image_url) VALUES (?, ?, ?, ?, ?, ?)`,
		id, p.ClerkID, p.Email, p.FirstName, p.LastName, p.ImageURL,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByClerkID(clerkID string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE clerk_id = ?`, clerkID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by clerk id: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByStripeCustomerID(customerID string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE stripe_customer_id = ?`, customerID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by stripe customer id: %w", err)
	}
	return u, nil
}

// UpdateProfile overwrites the identity-provider-owned fields for the user
// with the given clerk id.
func (s *UserStore) UpdateProfile(p UserParams) error {
	_, err := s.db.Exec(
		`UPDATE users SET email = ?, first_name = ?, last_name = ?, image_url = ?, updated_at = CURRENT_TIMESTAMP WHERE clerk_id = ?`,
		p.Email, p.FirstName, p.LastName, p.ImageURL, p.ClerkID,
	)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	return nil
}

func (s *UserStore) UpdateStripeCustomerID(id string, customerID string) error {
	_, err := s.db.Exec(
		`UPDATE users SET stripe_customer_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		customerID, id,
	)
	if err != nil {
		return fmt.Errorf("update stripe customer id: %w", err)
	}
	return nil
}

// DeleteByClerkID removes the user; subscriptions cascade at the schema level.
func (s *UserStore) DeleteByClerkID(clerkID string) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE clerk_id = ?`, clerkID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *UserStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
