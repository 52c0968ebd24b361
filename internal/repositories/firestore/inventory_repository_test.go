package firestore

import (
	"testing"

	"github.com/aster-goods/commerce/internal/repositories"
)

func TestMergeLinesAggregatesDuplicateSKUs(t *testing.T) {
	merged := mergeLines([]repositories.InventoryLine{
		{SKU: "SKU-A", Quantity: 2},
		{SKU: "SKU-B", Quantity: 1},
		{SKU: " SKU-A ", Quantity: 2},
	})

	if len(merged) != 2 {
		t.Fatalf("expected 2 merged lines, got %d: %+v", len(merged), merged)
	}
	if merged[0].SKU != "SKU-A" || merged[0].Quantity != 4 {
		t.Fatalf("expected SKU-A quantity 4 first, got %+v", merged[0])
	}
	if merged[1].SKU != "SKU-B" || merged[1].Quantity != 1 {
		t.Fatalf("expected SKU-B quantity 1 second, got %+v", merged[1])
	}
}

func TestMergeLinesLeavesDistinctSKUsAlone(t *testing.T) {
	lines := []repositories.InventoryLine{
		{SKU: "SKU-A", Quantity: 1},
		{SKU: "SKU-B", Quantity: 2},
	}
	merged := mergeLines(lines)
	if len(merged) != 2 || merged[0] != lines[0] || merged[1] != lines[1] {
		t.Fatalf("distinct lines should pass through unchanged, got %+v", merged)
	}
}
