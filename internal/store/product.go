package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/tidewater/subledger/internal/model"
)

type ProductStore struct {
	db *sql.DB
}

func NewProductStore(db *sql.DB) *ProductStore {
	return &ProductStore{db: db}
}

func scanProduct(scanner interface{ Scan(...any) error }) (*model.Product, error) {
	var p model.Product
	var isActive int
	err := scanner.Scan(
		&p.ID, &p.StripeProductID, &p.Name, &p.Description, &p.Price,
		&isActive, &p.StripePriceID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.IsActive = isActive != 0
	return &p, nil
}

const productCols = `id, stripe_product_id, name, description, price, is_active, stripe_price_id, created_at, updated_at`

type ProductParams struct {
	StripeProductID string
	Name            string
	Description     string
	Price           int64
	IsActive        bool
	StripePriceID   string
}

func (s *ProductStore) Create(p ProductParams) (*model.Product, error) {
	id := uuid.NewString()
	isActive := 0
	if p.IsActive {
		isActive = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO products (id, stripe_product_id, name, description, price, is_active, stripe_price_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, p.StripeProductID, p.Name, p.Description, p.Price, isActive, p.StripePriceID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProductStore) GetByID(id string) (*model.Product, error) {
	row := s.db.QueryRow(`SELECT `+productCols+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *ProductStore) GetByStripeProductID(stripeProductID string) (*model.Product, error) {
	row := s.db.QueryRow(`SELECT `+productCols+` FROM products WHERE stripe_product_id = ?`, stripeProductID)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product by stripe id: %w", err)
	}
	return p, nil
}

func (s *ProductStore) List() ([]*model.Product, error) {
	rows, err := s.db.Query(`SELECT ` + productCols + ` FROM products ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *ProductStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}
