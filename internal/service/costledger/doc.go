// Package costledger meters model-provider spend against a daily budget.
//
// Every priced operation (enrichment, embedding, draft generation, reply
// classification) is logged before its cost is reported, so the ledger is
// append-only and the daily total can always be reconstructed from rows.
// Budget checks read the current UTC day's total; the ceiling is enforced
// by callers refusing new work when CheckBudget reports the limit reached.
package costledger
