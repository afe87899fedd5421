package dedup

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/txconv/internal/domain"
)

var jan15 = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

func TestGenerateFingerprint(t *testing.T) {
	tests := []struct {
		name        string
		description string
		amount      string
	}{
		{"basic transaction", "Whole Foods", "50.00"},
		{"case insensitivity", "WHOLE FOODS", "50"},
		{"whitespace trimming", "  Whole Foods  ", "50.000"},
	}

	want := GenerateFingerprint(jan15, domain.TransactionTypeDebit, decimal.RequireFromString("50"), "whole foods")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateFingerprint(jan15, domain.TransactionTypeDebit, decimal.RequireFromString(tt.amount), tt.description)
			if len(got) != 64 {
				t.Errorf("GenerateFingerprint() returned hash of length %d, want 64", len(got))
			}
			if got != want {
				t.Errorf("GenerateFingerprint() = %s, want %s", got, want)
			}
		})
	}
}

func TestGenerateFingerprint_Uniqueness(t *testing.T) {
	fifty := decimal.NewFromInt(50)
	fingerprints := []string{
		GenerateFingerprint(jan15, domain.TransactionTypeDebit, fifty, "Whole Foods"),
		GenerateFingerprint(jan15.AddDate(0, 0, 1), domain.TransactionTypeDebit, fifty, "Whole Foods"),
		GenerateFingerprint(jan15, domain.TransactionTypeCredit, fifty, "Whole Foods"),
		GenerateFingerprint(jan15, domain.TransactionTypeDebit, decimal.NewFromInt(51), "Whole Foods"),
		GenerateFingerprint(jan15, domain.TransactionTypeDebit, fifty, "Target"),
	}

	seen := make(map[string]bool)
	for _, fp := range fingerprints {
		if seen[fp] {
			t.Errorf("Duplicate fingerprint detected: %s", fp)
		}
		seen[fp] = true
	}
}

func TestFingerprint_Transaction(t *testing.T) {
	txn, err := domain.NewTransaction(jan15, "Whole Foods", domain.TransactionTypeDebit, decimal.NewFromInt(50), domain.StatusCleared)
	if err != nil {
		t.Fatalf("NewTransaction() error = %v", err)
	}
	want := GenerateFingerprint(jan15, domain.TransactionTypeDebit, decimal.NewFromInt(50), "Whole Foods")
	if got := Fingerprint(txn); got != want {
		t.Errorf("Fingerprint() = %s, want %s", got, want)
	}
}

func TestObserve(t *testing.T) {
	state := NewState()
	steps := []struct {
		fingerprint string
		source      string
		want        bool
	}{
		{"coffee", "jan.csv", false},
		{"coffee", "jan.csv", false}, // same-file repeats are real transactions
		{"rent", "jan.csv", false},
		{"coffee", "feb.csv", true},
		{"coffee", "feb.csv", true},
		{"coffee", "feb.csv", false}, // third coffee exceeds jan.csv's two
		{"rent", "feb.csv", true},
		{"salary", "feb.csv", false},
		{"salary", "mar.csv", true},
	}

	for i, step := range steps {
		got, err := state.Observe(step.fingerprint, step.source)
		if err != nil {
			t.Fatalf("step %d: Observe() error = %v", i, err)
		}
		if got != step.want {
			t.Errorf("step %d: Observe(%q, %q) = %v, want %v", i, step.fingerprint, step.source, got, step.want)
		}
	}

	record := state.Fingerprints["coffee"]
	if record.Source != "jan.csv" || record.Counts["feb.csv"] != 3 {
		t.Errorf("coffee record = %+v", record)
	}
}

func TestObserve_Errors(t *testing.T) {
	state := NewState()
	if _, err := state.Observe("", "a.csv"); err == nil {
		t.Error("Observe() with empty fingerprint should fail")
	}
	if _, err := state.Observe("fp", ""); err == nil {
		t.Error("Observe() with empty source should fail")
	}
}
