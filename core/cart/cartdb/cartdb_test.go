package cartdb

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

var decComparer = cmp.Comparer(func(a, b decimal.Decimal) bool {
	return a.Equal(b)
})

func TestLimitsCodecRoundTrip(t *testing.T) {
	limits := map[int64]decimal.Decimal{
		1:  decimal.NewFromInt(5),
		42: decimal.RequireFromString("2.500"),
	}

	raw, err := encodeLimits(limits)
	if err != nil {
		t.Fatalf("encoding limits: %v", err)
	}

	got, err := decodeLimits(raw)
	if err != nil {
		t.Fatalf("decoding limits: %v", err)
	}

	if diff := cmp.Diff(limits, got, decComparer); diff != "" {
		t.Fatalf("limits mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeLimitsEmpty(t *testing.T) {
	got, err := decodeLimits(nil)
	if err != nil {
		t.Fatalf("decoding empty limits: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no limits, got %d", len(got))
	}

	got, err = decodeLimits([]byte(`{}`))
	if err != nil {
		t.Fatalf("decoding empty object: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no limits, got %d", len(got))
	}
}

func TestDecodeLimitsRejectsBadKeys(t *testing.T) {
	if _, err := decodeLimits([]byte(`{"apples": "5"}`)); err == nil {
		t.Fatal("non-numeric keys must be rejected")
	}
}
