package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/sales-api/internal/pricing"
	"github.com/noah-isme/sales-api/internal/sale"
)

type demoProduct struct {
	ID          uuid.UUID
	Title       string
	Price       string
	Description string
	Category    string
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	products := seedProducts(db)
	seedSales(db, products)

	log.Println("Seeding completed successfully!")
}

func seedProducts(db *sql.DB) []demoProduct {
	products := []demoProduct{
		{Title: "Wireless mouse", Price: "19.99", Description: "Ergonomic 2.4GHz mouse with silent clicks", Category: "electronics"},
		{Title: "Mechanical keyboard", Price: "89.50", Description: "Tenkeyless board with hot-swappable switches", Category: "electronics"},
		{Title: "Running shoes", Price: "120.00", Description: "Lightweight trainers for daily road runs", Category: "sports"},
		{Title: "Cotton t-shirt", Price: "15.00", Description: "Heavyweight cotton tee in a relaxed fit", Category: "clothing"},
		{Title: "Go in practice", Price: "39.90", Description: "Field notes on building services in Go", Category: "books"},
		{Title: "Desk lamp", Price: "32.00", Description: "Dimmable LED lamp with a warm colour mode", Category: "home"},
		{Title: "Coffee beans", Price: "12.75", Description: "Single origin medium roast, one kilogram", Category: "food"},
		{Title: "Building blocks", Price: "45.00", Description: "Five hundred piece starter set for ages six+", Category: "toys"},
	}

	fmt.Println("Seeding Products...")
	for i := range products {
		p := &products[i]
		err := db.QueryRow(`
			INSERT INTO products (id, title, price, description, category)
			VALUES ($1, $2, $3::numeric, $4, $5)
			RETURNING id`,
			uuid.New(), p.Title, p.Price, p.Description, p.Category,
		).Scan(&p.ID)
		if err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.Title, err)
		}
	}
	return products
}

// seedSales records a handful of sales spread over the last few weeks so the
// stats endpoints have something to aggregate.
func seedSales(db *sql.DB, products []demoProduct) {
	fmt.Println("Seeding Sales...")
	now := time.Now().UTC()
	statuses := []sale.Status{sale.StatusCompleted, sale.StatusCompleted, sale.StatusPending, sale.StatusCancelled}
	methods := []sale.PaymentMethod{sale.PaymentCard, sale.PaymentCash, sale.PaymentTransfer}

	for i := 0; i < 12; i++ {
		first := products[i%len(products)]
		second := products[(i+3)%len(products)]
		lines := []pricing.Line{
			line(first, 1+i%3),
			line(second, 1),
		}
		tax := decimal.NewFromInt(int64(i % 4))
		totals := pricing.ComputeAggregates(lines, tax, nil)
		createdAt := now.Add(-time.Duration(i*53) * time.Hour)

		tx, err := db.Begin()
		if err != nil {
			log.Fatalf("Failed to begin tx: %v", err)
		}
		saleID := uuid.New()
		_, err = tx.Exec(`
			INSERT INTO sales (id, sale_number, subtotal, tax, total, status, payment_method, created_at, updated_at)
			VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8, $8)`,
			saleID, fmt.Sprintf("SALE-%s-%05d", createdAt.Format("20060102"), 90000+i),
			totals.Subtotal.String(), tax.String(), totals.Total.String(),
			string(statuses[i%len(statuses)]), string(methods[i%len(methods)]), createdAt,
		)
		if err != nil {
			_ = tx.Rollback()
			log.Fatalf("Failed to seed sale %d: %v", i, err)
		}
		for pos, l := range lines {
			_, err = tx.Exec(`
				INSERT INTO sale_items (sale_id, position, product_id, quantity, unit_price, subtotal)
				VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)`,
				saleID, pos, l.ProductID, l.Quantity, l.UnitPrice.String(), l.Subtotal.String(),
			)
			if err != nil {
				_ = tx.Rollback()
				log.Fatalf("Failed to seed sale item: %v", err)
			}
		}
		if err := tx.Commit(); err != nil {
			log.Fatalf("Failed to commit sale %d: %v", i, err)
		}
	}
}

func line(p demoProduct, qty int) pricing.Line {
	return pricing.Line{ProductID: p.ID.String(), Quantity: qty, UnitPrice: decimal.RequireFromString(p.Price)}
}
