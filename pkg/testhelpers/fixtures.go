// Package testhelpers provides shared fixtures for tests: a small shop schema,
// seed examples, and a PostgreSQL container loaded with the same schema.
package testhelpers

import (
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// ShopSchema returns a fresh copy of the three-table schema used across tests:
// customers, orders and order_items.
func ShopSchema() *models.SchemaModel {
	return &models.SchemaModel{
		DatabaseName: "shop",
		Tables: []models.SchemaTable{
			{
				Name:        "customers",
				Description: "People who place orders",
				Columns: []models.SchemaColumn{
					{Name: "id", DataType: "integer", IsPrimaryKey: true},
					{Name: "name", DataType: "text"},
					{Name: "email", DataType: "text"},
					{Name: "country", DataType: "text"},
					{Name: "created_at", DataType: "timestamp"},
				},
			},
			{
				Name: "orders",
				Columns: []models.SchemaColumn{
					{Name: "id", DataType: "integer", IsPrimaryKey: true},
					{Name: "customer_id", DataType: "integer"},
					{Name: "status", DataType: "text", Description: "pending, shipped or cancelled"},
					{Name: "total", DataType: "numeric"},
					{Name: "created_at", DataType: "timestamp"},
				},
			},
			{
				Name: "order_items",
				Columns: []models.SchemaColumn{
					{Name: "id", DataType: "integer", IsPrimaryKey: true},
					{Name: "order_id", DataType: "integer"},
					{Name: "product_name", DataType: "text"},
					{Name: "quantity", DataType: "integer"},
					{Name: "unit_price", DataType: "numeric"},
				},
			},
		},
		Relationships: []models.SchemaRelationship{
			{FromTable: "orders", FromColumn: "customer_id", ToTable: "customers", ToColumn: "id"},
			{FromTable: "order_items", FromColumn: "order_id", ToTable: "orders", ToColumn: "id"},
		},
	}
}

// ShopSeeds returns one seed example per difficulty plus a second easy one.
func ShopSeeds() []models.SeedExample {
	return []models.SeedExample{
		{
			Question:   "How many customers are there?",
			SQL:        "SELECT COUNT(*) FROM customers",
			Answer:     "The total number of customers.",
			Difficulty: models.DifficultyEasy,
		},
		{
			Question:   "Which orders are still pending?",
			SQL:        "SELECT id, total FROM orders WHERE status = 'pending'",
			Difficulty: models.DifficultyEasy,
		},
		{
			Question:   "What is the total order value per country?",
			SQL:        "SELECT c.country, SUM(o.total) AS revenue FROM customers c JOIN orders o ON o.customer_id = c.id GROUP BY c.country",
			Difficulty: models.DifficultyMedium,
		},
		{
			Question:   "Who are the top three customers by spend?",
			SQL:        "WITH spend AS (SELECT customer_id, SUM(total) AS amount FROM orders GROUP BY customer_id) SELECT c.name, s.amount FROM spend s JOIN customers c ON c.id = s.customer_id ORDER BY s.amount DESC LIMIT 3",
			Difficulty: models.DifficultyHard,
		},
	}
}

// ShopDDL creates the ShopSchema tables in PostgreSQL.
const ShopDDL = `
CREATE TABLE customers (
	id integer PRIMARY KEY,
	name text,
	email text,
	country text,
	created_at timestamp
);
COMMENT ON TABLE customers IS 'People who place orders';
CREATE TABLE orders (
	id integer PRIMARY KEY,
	customer_id integer REFERENCES customers(id),
	status text,
	total numeric,
	created_at timestamp
);
COMMENT ON COLUMN orders.status IS 'pending, shipped or cancelled';
CREATE TABLE order_items (
	id integer PRIMARY KEY,
	order_id integer REFERENCES orders(id),
	product_name text,
	quantity integer,
	unit_price numeric
);
`
