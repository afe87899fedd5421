// Package dedup detects transactions that appear in more than one source
// file of the same run via SHA256 fingerprinting.
//
// Identical transactions within a single file are legitimate (two coffees on
// the same day) and are never reported. A transaction in a later file counts
// as a duplicate only up to the number of times the first file carried it.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/txconv/internal/domain"
)

// FingerprintRecord tracks where a fingerprint was observed.
type FingerprintRecord struct {
	// Source is the file the fingerprint was first seen in.
	Source string
	// Counts holds the number of observations per source.
	Counts map[string]int
}

// State holds the fingerprints observed during one run. It is not persisted.
type State struct {
	Fingerprints map[string]*FingerprintRecord
}

// NewState creates an empty deduplication state.
func NewState() *State {
	return &State{Fingerprints: make(map[string]*FingerprintRecord)}
}

// GenerateFingerprint creates a SHA256 hash of date, direction, amount, and
// description.
// Format: SHA256("{RFC3339 date}|{type}|{amount}|{normalizedDescription}")
// Amount is formatted with 2 decimal places for consistency.
// Description is normalized: lowercase and trimmed.
func GenerateFingerprint(date time.Time, txnType domain.TransactionType, amount decimal.Decimal, description string) string {
	normalizedDesc := strings.ToLower(strings.TrimSpace(description))
	input := fmt.Sprintf("%s|%s|%s|%s", date.UTC().Format(time.RFC3339), txnType, amount.StringFixed(2), normalizedDesc)

	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// Fingerprint returns the fingerprint of a raw transaction.
func Fingerprint(txn domain.Transaction) string {
	return GenerateFingerprint(txn.Date(), txn.Type(), txn.Amount(), txn.RawPayeeName())
}

// Observe records one occurrence of fingerprint in source and reports whether
// it duplicates an occurrence from the file the fingerprint was first seen in.
// Sources must be observed one file at a time.
func (s *State) Observe(fingerprint, source string) (bool, error) {
	if fingerprint == "" {
		return false, fmt.Errorf("fingerprint cannot be empty")
	}
	if source == "" {
		return false, fmt.Errorf("source cannot be empty")
	}

	record, exists := s.Fingerprints[fingerprint]
	if !exists {
		record = &FingerprintRecord{Source: source, Counts: make(map[string]int)}
		s.Fingerprints[fingerprint] = record
	}
	record.Counts[source]++

	if source == record.Source {
		return false, nil
	}
	return record.Counts[source] <= record.Counts[record.Source], nil
}
