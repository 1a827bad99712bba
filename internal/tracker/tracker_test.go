package tracker

import (
	"testing"

	"github.com/shopspring/decimal"

	"btc15mm/pkg/types"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestAddAndTotalSizeAt(t *testing.T) {
	tr := New()
	tr.Add("o1", types.Yes, 495, dec("6"))
	tr.Add("o2", types.Yes, 495, dec("4"))

	if total := tr.TotalSizeAt(types.Yes, 495); !total.Equal(dec("10")) {
		t.Fatalf("total_size_at = %s, want 10", total)
	}
	if len(tr.OrdersAt(types.Yes, 495)) != 2 {
		t.Fatal("expected two stacked orders at the same price")
	}
}

func TestApplyFillByOrderIDNotPriceLevel(t *testing.T) {
	tr := New()
	tr.Add("o1", types.Yes, 495, dec("6"))
	tr.Add("o2", types.Yes, 495, dec("4"))

	tr.ApplyFill("o1", dec("6"))

	if total := tr.TotalSizeAt(types.Yes, 495); !total.Equal(dec("4")) {
		t.Fatalf("total_size_at after fill = %s, want 4 (o2 untouched)", total)
	}
	if len(tr.OrdersAt(types.Yes, 495)) != 1 {
		t.Fatal("fully-filled order should be removed, its sibling should remain")
	}
}

func TestApplyFillPartial(t *testing.T) {
	tr := New()
	tr.Add("o1", types.Yes, 495, dec("10"))
	tr.ApplyFill("o1", dec("3"))

	orders := tr.OrdersAt(types.Yes, 495)
	if len(orders) != 1 || !orders[0].Size.Equal(dec("7")) {
		t.Fatalf("expected remaining size 7, got %+v", orders)
	}
}

func TestApplyFillReportsInvariantViolationOnOverfill(t *testing.T) {
	tr := New()
	tr.Add("o1", types.Yes, 495, dec("5"))

	if violated := tr.ApplyFill("o1", dec("5")); violated {
		t.Fatal("an exact fill of the full remaining size must not violate the invariant")
	}

	tr.Add("o2", types.Yes, 495, dec("5"))
	if violated := tr.ApplyFill("o2", dec("8")); !violated {
		t.Fatal("a fill larger than the tracked remaining size must report a violation")
	}
}

func TestAddRecordsOriginalSize(t *testing.T) {
	tr := New()
	tr.Add("o1", types.Yes, 495, dec("10"))
	tr.ApplyFill("o1", dec("4"))

	orders := tr.OrdersAt(types.Yes, 495)
	if len(orders) != 1 || !orders[0].OriginalSize.Equal(dec("10")) {
		t.Fatalf("expected original size to stay 10 after a partial fill, got %+v", orders)
	}
}

func TestRemoveByIDs(t *testing.T) {
	tr := New()
	tr.Add("o1", types.Yes, 495, dec("5"))
	tr.Add("o2", types.No, 480, dec("5"))

	tr.RemoveByIDs([]string{"o1", "unknown-id"})

	if len(tr.OrdersAt(types.Yes, 495)) != 0 {
		t.Fatal("o1 should be gone")
	}
	if len(tr.OrdersAt(types.No, 480)) != 1 {
		t.Fatal("o2 should be untouched by an unrelated remove")
	}
}

func TestPricesDistinctPerSide(t *testing.T) {
	tr := New()
	tr.Add("o1", types.Yes, 495, dec("1"))
	tr.Add("o2", types.Yes, 485, dec("1"))
	tr.Add("o3", types.No, 480, dec("1"))

	yesPrices := tr.Prices(types.Yes)
	if len(yesPrices) != 2 {
		t.Fatalf("expected 2 distinct YES prices, got %v", yesPrices)
	}
	noPrices := tr.Prices(types.No)
	if len(noPrices) != 1 {
		t.Fatalf("expected 1 distinct NO price, got %v", noPrices)
	}
}

func TestClearAll(t *testing.T) {
	tr := New()
	tr.Add("o1", types.Yes, 495, dec("1"))
	tr.ClearAll()

	if len(tr.Summary()) != 0 {
		t.Fatal("clear_all must drop every tracked order")
	}
	if len(tr.Prices(types.Yes)) != 0 {
		t.Fatal("clear_all must drop every price key")
	}
}
