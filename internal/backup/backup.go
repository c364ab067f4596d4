// Package backup dumps the relational store as JSON lines.
package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jmoiron/sqlx"
)

// Tables are dumped parents first so a restore can replay them in order.
var Tables = []string{"users", "products", "cart_items", "orders", "order_items", "stock_movements"}

// Line is one dumped row.
type Line struct {
	Table string          `json:"table"`
	Row   json.RawMessage `json:"row"`
}

// FileName is the dump name for t, e.g. byteshop_20250102_150405.jsonl.
func FileName(t time.Time) string {
	return "byteshop_" + t.UTC().Format("20060102_150405") + ".jsonl"
}

// Dump writes every row of Tables to w and returns the row count per table.
func Dump(ctx context.Context, db *sqlx.DB, w io.Writer) (map[string]int, error) {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	counts := make(map[string]int, len(Tables))

	for _, table := range Tables {
		n, err := dumpTable(ctx, db, enc, table)
		if err != nil {
			return counts, fmt.Errorf("dump %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, bw.Flush()
}

func dumpTable(ctx context.Context, db *sqlx.DB, enc *json.Encoder, table string) (int, error) {
	// table names come from Tables only
	rows, err := db.QueryxContext(ctx, fmt.Sprintf("SELECT row_to_json(t) FROM %s t", table))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return n, err
		}
		if err := enc.Encode(Line{Table: table, Row: raw}); err != nil {
			return n, err
		}
		n++
	}
	return n, rows.Err()
}
