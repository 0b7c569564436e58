// Package export renders transactions as CSV (the remote import shape) and
// as a flat JSON array for spreadsheets and backups.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"zetafin/internal/core"
)

// CSVHeader is the column order of the import shape.
var CSVHeader = []string{"user_id", "category_id", "description", "amount", "type", "transaction_date", "notes"}

// Free-text columns are quoted even when they need no escaping.
var alwaysQuoted = map[int]bool{2: true, 6: true}

// RemoteType maps a transaction type to the remote RECEITA/DESPESA names.
func RemoteType(t core.TransactionType) string {
	if t == core.Income {
		return "RECEITA"
	}
	return "DESPESA"
}

// Row returns the CSV cells of tx in CSVHeader order.
func Row(tx core.Transaction, userID string) []string {
	return []string{
		userID,
		tx.CategoryID.Normalize().String(),
		tx.Description,
		tx.Amount.String(),
		RemoteType(tx.Type),
		tx.Date.String(),
		tx.Notes,
	}
}

// WriteCSV writes the header and one line per transaction.
func WriteCSV(w io.Writer, txs []core.Transaction, userID string) error {
	bw := bufio.NewWriter(w)
	writeLine(bw, CSVHeader, nil)
	for _, tx := range txs {
		writeLine(bw, Row(tx, userID), alwaysQuoted)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func writeLine(w *bufio.Writer, cells []string, quoted map[int]bool) {
	for i, cell := range cells {
		if i > 0 {
			w.WriteByte(',')
		}
		if quoted[i] || needsQuotes(cell) {
			w.WriteByte('"')
			w.WriteString(strings.ReplaceAll(cell, `"`, `""`))
			w.WriteByte('"')
			continue
		}
		w.WriteString(cell)
	}
	w.WriteString("\r\n")
}

func needsQuotes(s string) bool {
	return s != "" && (strings.ContainsAny(s, ",\"\r\n") || s[0] == ' ' || s[len(s)-1] == ' ')
}

// Record is one element of the JSON export.
type Record struct {
	ID          core.ID    `json:"id"`
	Description string     `json:"description"`
	Amount      core.Money `json:"amount"`
	Category    string     `json:"category"`
	Date        core.Date  `json:"date"`
	Type        string     `json:"type"`
}

// Records resolves category names through idx. Uncategorized and dangling
// references export as the default category name.
func Records(txs []core.Transaction, idx core.CategoryIndex) []Record {
	out := make([]Record, 0, len(txs))
	for _, tx := range txs {
		typ := "expense"
		if tx.Type == core.Income {
			typ = "income"
		}
		out = append(out, Record{
			ID:          tx.ID,
			Description: tx.Description,
			Amount:      tx.Amount,
			Category:    idx.Label(tx.CategoryID).Name,
			Date:        tx.Date,
			Type:        typ,
		})
	}
	return out
}

// WriteJSON writes the records as an indented JSON array.
func WriteJSON(w io.Writer, txs []core.Transaction, idx core.CategoryIndex) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Records(txs, idx)); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
