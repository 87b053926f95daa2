package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/printforge/printforge-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q found", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	checks := []string{
		"CREATE UNIQUE INDEX ux_orders_number ON orders (order_number)",
		"CREATE UNIQUE INDEX ux_orders_payment_ref ON orders (payment_ref)",
		"CHECK (quantity > 0)",
		"DROP TABLE order_items",
		"DROP TABLE orders",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestInventoryMigrationGuardsNegativeStock(t *testing.T) {
	content := readMigration(t, "*_create_catalog.sql")

	checks := []string{
		"CHECK (stock >= 0)",
		"CHECK (sold >= 0)",
		"REFERENCES products (id) ON DELETE CASCADE",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
