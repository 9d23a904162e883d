package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
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

	seedProducts(db)
	seedShippingRates(db)
	seedSettings(db, envOrDefault("KEC_OPTIONS_KEY", "woocommerce_klarna_payments_settings"))

	log.Println("Seeding completed successfully!")
}

func seedProducts(db *sql.DB) {
	products := []struct {
		ID       int64
		ParentID int64
		Name     string
		SKU      string
		Type     string
		Price    string
		Image    string
		GTIN     string
	}{
		{1, 0, "Espresso Cup", "CUP-ESP", "simple", "129.00", "https://images.unsplash.com/photo-1514432324607-a09d9b4aefdd?w=800", "7350000000011"},
		{2, 0, "Pour Over Kettle", "KETTLE-PO", "simple", "549.00", "https://images.unsplash.com/photo-1544787219-7f47ccb76574?w=800", "7350000000028"},
		{3, 0, "Coffee Beans 500g", "BEANS-500", "simple", "189.50", "", ""},
		{10, 0, "Linen Apron", "APRON", "variable", "349.00", "https://images.unsplash.com/photo-1556909114-f6e7ad7d3136?w=800", ""},
		{11, 10, "Linen Apron - Sand", "APRON-SAND", "variation", "349.00", "", "7350000000103"},
		{12, 10, "Linen Apron - Charcoal", "APRON-CHAR", "variation", "369.00", "", "7350000000110"},
		{20, 0, "Gift Wrapping", "GIFT-WRAP", "line_item", "39.00", "", ""},
	}

	fmt.Println("Seeding Products...")
	for _, p := range products {
		var parent any
		if p.ParentID > 0 {
			parent = p.ParentID
		}
		_, err := db.Exec(`
			INSERT INTO products (id, parent_id, name, sku, type, status, price, image_url, global_unique_id, purchasable)
			VALUES ($1, $2, $3, $4, $5, 'publish', $6::numeric, NULLIF($7, ''), NULLIF($8, ''), true)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				sku = EXCLUDED.sku,
				type = EXCLUDED.type,
				price = EXCLUDED.price,
				image_url = EXCLUDED.image_url,
				global_unique_id = EXCLUDED.global_unique_id,
				updated_at = now();
		`, p.ID, parent, p.Name, p.SKU, p.Type, p.Price, p.Image, p.GTIN)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.SKU, err)
		}
	}

	if _, err := db.Exec(`SELECT setval(pg_get_serial_sequence('products', 'id'), (SELECT MAX(id) FROM products))`); err != nil {
		log.Printf("Failed to advance product sequence: %v", err)
	}
}

func seedShippingRates(db *sql.DB) {
	rates := []struct {
		MethodID   string
		InstanceID int
		Label      string
		Cost       string
		Country    string
		FreeOver   string
		SortOrder  int
	}{
		{"flat_rate", 1, "PostNord", "49.00", "SE", "", 1},
		{"flat_rate", 2, "Budbee Home Delivery", "79.00", "SE", "", 2},
		{"free_shipping", 3, "Free shipping", "0", "SE", "", 3},
		{"flat_rate", 4, "International", "149.00", "", "", 10},
	}

	fmt.Println("Seeding Shipping Rates...")
	for _, r := range rates {
		_, err := db.Exec(`
			INSERT INTO shipping_rates (method_id, instance_id, label, cost, country, free_over, taxable, sort_order)
			VALUES ($1, $2, $3, $4::numeric, NULLIF($5, ''), NULLIF($6, '')::numeric, true, $7)
			ON CONFLICT (method_id, instance_id) DO UPDATE SET
				label = EXCLUDED.label,
				cost = EXCLUDED.cost,
				country = EXCLUDED.country,
				sort_order = EXCLUDED.sort_order;
		`, r.MethodID, r.InstanceID, r.Label, r.Cost, r.Country, r.FreeOver, r.SortOrder)
		if err != nil {
			log.Printf("Failed to seed shipping rate %s:%d: %v", r.MethodID, r.InstanceID, err)
		}
	}
}

func seedSettings(db *sql.DB, optionsKey string) {
	settings := map[string]string{
		"kec_enabled":            "yes",
		"kec_credentials_secret": envOrDefault("KEC_CLIENT_ID", "klarna_test_client_placeholder"),
		"kec_theme":              "default",
		"kec_shape":              "default",
		"kec_placement":          "both",
		"kec_flow":               "two_step",
		"testmode":               "yes",
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		log.Printf("Failed to encode settings: %v", err)
		return
	}

	fmt.Println("Seeding Settings...")
	_, err = db.Exec(`
		INSERT INTO options (name, value, updated_at) VALUES ($1, $2::jsonb, now())
		ON CONFLICT (name) DO NOTHING;
	`, optionsKey, string(raw))
	if err != nil {
		log.Printf("Failed to seed settings: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
