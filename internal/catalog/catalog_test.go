package catalog

import (
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	if id := Resolve("tiktok", 1); id != 3036 {
		t.Fatalf("Resolve(tiktok, 1) = %d, want 3036", id)
	}
	if id := Resolve("tiktok", 999); id != 0 {
		t.Fatalf("Resolve(tiktok, 999) = %d, want 0", id)
	}
	if id := Resolve("myspace", 1); id != 0 {
		t.Fatalf("Resolve(myspace, 1) = %d, want 0", id)
	}
}

func TestValidateQuantity(t *testing.T) {
	tests := []struct {
		name      string
		platform  string
		serviceID int
		quantity  int64
		valid     bool
		contains  string
	}{
		{name: "in bounds", platform: "tiktok", serviceID: 1, quantity: 100, valid: true},
		{name: "at min", platform: "tiktok", serviceID: 1, quantity: 10, valid: true},
		{name: "below min", platform: "tiktok", serviceID: 1, quantity: 5, contains: "Minimum: 10"},
		{name: "above max", platform: "twitter", serviceID: 54, quantity: 151, contains: "Maximum: 150"},
		{name: "unknown service", platform: "tiktok", serviceID: 999, contains: "Service non trouvé"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := ValidateQuantity(tt.platform, tt.serviceID, tt.quantity)
			if check.Valid != tt.valid {
				t.Fatalf("valid = %v, want %v", check.Valid, tt.valid)
			}
			if tt.contains != "" && !strings.Contains(check.Message, tt.contains) {
				t.Fatalf("message %q does not contain %q", check.Message, tt.contains)
			}
		})
	}
}

func TestPriceRounding(t *testing.T) {
	// 1.41 USD / 1000 * 1000 * 615 * 1.25 = 1083.9375 -> округление вверх до 1085
	price, ok := Price("tiktok", 1, 1000)
	if !ok {
		t.Fatalf("Price returned not ok for known service")
	}
	if price != 1085 {
		t.Fatalf("price = %d, want 1085", price)
	}

	if price%5 != 0 {
		t.Fatalf("price %d is not a multiple of 5", price)
	}

	if _, ok := Price("tiktok", 999, 1000); ok {
		t.Fatalf("Price returned ok for unknown service")
	}
}
