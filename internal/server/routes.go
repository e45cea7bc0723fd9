// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/finmem-dev/finmem/internal/store"
	finerr "github.com/finmem-dev/finmem/pkg/errors"
)

// StoreTransactionsInput is the request for the store-transactions tool.
type StoreTransactionsInput struct {
	Body struct {
		Transactions []store.TransactionInput `json:"transactions" minItems:"1" doc:"Batch of transactions to store"`
	}
}

// StoredRecord reports the outcome for one record of a store batch: either
// the assigned id or an error, never both.
type StoredRecord struct {
	ID    int64  `json:"id,omitempty" doc:"Assigned transaction id"`
	Error string `json:"error,omitempty" doc:"Why this record was not stored"`
	Code  string `json:"code,omitempty" doc:"Machine-readable error code"`
}

// StoreTransactionsOutput is the response for the store-transactions tool.
type StoreTransactionsOutput struct {
	Body struct {
		Results     []StoredRecord `json:"results" doc:"Per-record outcomes, in input order"`
		StoredCount int            `json:"stored_count" doc:"Number of records stored"`
	}
}

// QueryInput is the request for the query-financial-history tool.
type QueryInput struct {
	Body struct {
		Query string `json:"query" minLength:"1" doc:"Free-text query"`
		TopK  int    `json:"top_k,omitempty" minimum:"0" maximum:"100" doc:"Maximum number of results (default 10)"`
	}
}

// QueryOutput is the response for the query-financial-history tool.
type QueryOutput struct {
	Body struct {
		Results []store.RankedTransaction `json:"results" doc:"Matching transactions, most similar first"`
	}
}

// ListTransactionsInput is the request for the list-transactions tool.
type ListTransactionsInput struct {
	Limit    int    `query:"limit" default:"20" minimum:"1" maximum:"1000" doc:"Page size"`
	Offset   int    `query:"offset" default:"0" minimum:"0" doc:"Records to skip"`
	Category string `query:"category" doc:"Only return transactions in this category"`
}

// ListTransactionsOutput is the response for the list-transactions tool.
type ListTransactionsOutput struct {
	Body struct {
		Transactions []store.ListedTransaction `json:"transactions" doc:"Page of transactions in insertion order"`
		Total        int64                     `json:"total" doc:"Total number of stored transactions"`
	}
}

// DeleteTransactionsInput is the request for the delete-transactions tool.
type DeleteTransactionsInput struct {
	Body struct {
		IDs       []int64 `json:"ids,omitempty" doc:"Stable ids of transactions to delete"`
		DeleteAll bool    `json:"delete_all,omitempty" doc:"Delete every stored transaction"`
		Confirm   bool    `json:"confirm,omitempty" doc:"Must be true for any deletion to happen"`
	}
}

// DeleteTransactionsOutput is the response for the delete-transactions tool.
type DeleteTransactionsOutput struct {
	Body struct {
		RemovedCount int64 `json:"removed_count" doc:"Number of transactions removed"`
	}
}

// RegisterTools registers the transaction tool operations on the server's API.
func (s *Server) RegisterTools(ts *store.TransactionStore, qe *store.QueryEngine) {
	huma.Register(s.api, huma.Operation{
		OperationID: "store-transactions",
		Method:      http.MethodPost,
		Path:        "/api/v1/tools/store-transactions",
		Summary:     "Store transactions",
		Description: "Persists a batch of transactions to the ledger and the embedding index. Records are processed independently; a failed record does not abort the batch.",
		Tags:        []string{"tools"},
	}, func(ctx context.Context, input *StoreTransactionsInput) (*StoreTransactionsOutput, error) {
		results := ts.Store(ctx, input.Body.Transactions)

		out := &StoreTransactionsOutput{}
		out.Body.Results = make([]StoredRecord, 0, len(results))
		for _, res := range results {
			if res.Err != nil {
				out.Body.Results = append(out.Body.Results, StoredRecord{
					Error: res.Err.Error(),
					Code:  string(finerr.CodeOf(res.Err)),
				})
				continue
			}
			out.Body.Results = append(out.Body.Results, StoredRecord{ID: res.ID})
			out.Body.StoredCount++
		}
		return out, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "query-financial-history",
		Method:      http.MethodPost,
		Path:        "/api/v1/tools/query-financial-history",
		Summary:     "Query financial history",
		Description: "Retrieves stored transactions ranked by semantic similarity to a free-text query.",
		Tags:        []string{"tools"},
	}, func(ctx context.Context, input *QueryInput) (*QueryOutput, error) {
		results, err := qe.Query(ctx, input.Body.Query, input.Body.TopK)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &QueryOutput{}
		out.Body.Results = results
		if out.Body.Results == nil {
			out.Body.Results = []store.RankedTransaction{}
		}
		return out, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-transactions",
		Method:      http.MethodGet,
		Path:        "/api/v1/tools/list-transactions",
		Summary:     "List transactions",
		Description: "Returns stored transactions in insertion order with pagination and optional category filtering.",
		Tags:        []string{"tools"},
	}, func(ctx context.Context, input *ListTransactionsInput) (*ListTransactionsOutput, error) {
		page, total, err := ts.List(ctx, input.Limit, input.Offset, input.Category)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &ListTransactionsOutput{}
		out.Body.Transactions = page
		if out.Body.Transactions == nil {
			out.Body.Transactions = []store.ListedTransaction{}
		}
		out.Body.Total = total
		return out, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-transactions",
		Method:      http.MethodPost,
		Path:        "/api/v1/tools/delete-transactions",
		Summary:     "Delete transactions",
		Description: "Removes transactions by stable id, or all transactions with delete_all. Refuses to act unless confirm is true.",
		Tags:        []string{"tools"},
	}, func(ctx context.Context, input *DeleteTransactionsInput) (*DeleteTransactionsOutput, error) {
		removed, err := ts.Delete(ctx, input.Body.IDs, input.Body.DeleteAll, input.Body.Confirm)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &DeleteTransactionsOutput{}
		out.Body.RemovedCount = removed
		return out, nil
	})
}

// toHumaError maps a domain error onto an HTTP status via its error code.
func toHumaError(err error) error {
	status := finerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "code", finerr.CodeOf(err), "error", err)
	}
	return huma.NewError(status, err.Error())
}
