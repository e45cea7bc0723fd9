// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package store

import (
	"strconv"
	"strings"
	"time"
)

// Transaction is the unit of storage. Once stored it is immutable; it is
// created by Store and destroyed only by Delete.
type Transaction struct {
	// ID is assigned at insertion time, strictly increasing, and never
	// reused or renumbered by deletion.
	ID          int64          `json:"id"`
	Date        string         `json:"date,omitempty"`
	Amount      *float64       `json:"amount,omitempty"`
	Category    string         `json:"category,omitempty"`
	Description string         `json:"description,omitempty"`
	Merchant    string         `json:"merchant,omitempty"`
	// RawText is the concatenated textual representation of the fields
	// above and the embedding input for this record.
	RawText   string         `json:"raw_text"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// TransactionInput is one record of a Store batch, before an id is assigned.
type TransactionInput struct {
	Date        string         `json:"date,omitempty"`
	Amount      *float64       `json:"amount,omitempty"`
	Category    string         `json:"category,omitempty"`
	Description string         `json:"description,omitempty"`
	Merchant    string         `json:"merchant,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// RawText derives the textual representation used as embedding input.
// Only fields that are present contribute; an input with no usable fields
// yields the empty string and must be rejected by the caller.
func (in TransactionInput) RawText() string {
	var parts []string

	if v := strings.TrimSpace(in.Date); v != "" {
		parts = append(parts, "Date: "+v)
	}
	if in.Amount != nil {
		parts = append(parts, "Amount: "+strconv.FormatFloat(*in.Amount, 'f', -1, 64))
	}
	if v := strings.TrimSpace(in.Merchant); v != "" {
		parts = append(parts, "Merchant: "+v)
	}
	if v := strings.TrimSpace(in.Description); v != "" {
		parts = append(parts, "Description: "+v)
	}
	if v := strings.TrimSpace(in.Category); v != "" {
		parts = append(parts, "Category: "+v)
	}

	return strings.Join(parts, " ")
}

// StoreResult reports the outcome for a single record of a Store batch.
type StoreResult struct {
	ID  int64
	Err error
}

// ListedTransaction pairs a transaction with its display index: the record's
// 1-based position within the full unfiltered ledger order. The display
// index is derived from id ordering at read time and exists for human
// reference only; the stable id is the identifier.
type ListedTransaction struct {
	Transaction
	DisplayIndex int64 `json:"display_index"`
}

// Match is one embedding index search hit. Score is a normalized similarity
// in (0, 1], computed as 1/(1+distance); higher means more similar and 1.0
// is an exact match.
type Match struct {
	ID    int64
	Score float64
}

// RankedTransaction is a query result: a resolved ledger record together
// with its similarity score, in index ranking order.
type RankedTransaction struct {
	Transaction
	Score float64 `json:"score"`
}
