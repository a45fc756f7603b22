package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"satinalma/internal/core"
	"satinalma/internal/ledger"
)

// ErrNoSnapshot is returned by LoadSnapshot when the file does not exist.
var ErrNoSnapshot = errors.New("snapshot file not found")

const metaVersion = "ledger_version"

// SaveSnapshot writes snap to a fresh SQLite file at path. The previous file
// is replaced only once the new one is complete.
func SaveSnapshot(ctx context.Context, path string, snap ledger.Snapshot) error {
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	db, err := open(ctx, tmp)
	if err != nil {
		return err
	}
	if err := writeSnapshot(ctx, db, snap); err != nil {
		db.Close()
		os.Remove(tmp)
		return err
	}
	if err := db.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func writeSnapshot(ctx context.Context, db *sql.DB, snap ledger.Snapshot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshot_meta (key, value) VALUES (?, ?)`,
		metaVersion, strconv.FormatUint(snap.Version, 10)); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}

	invStmt, err := tx.PrepareContext(ctx, `INSERT INTO invoices
		(id, position, number, issue_date, supplier, withholding_rate, discount_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare invoices: %w", err)
	}
	defer invStmt.Close()
	for i, inv := range snap.Invoices {
		if _, err := invStmt.ExecContext(ctx, inv.ID, i, inv.Number, inv.IssueDate, inv.Supplier,
			inv.WithholdingRate.String(), inv.DiscountAmount.String()); err != nil {
			return fmt.Errorf("insert invoice %s: %w", inv.ID, err)
		}
	}

	lineStmt, err := tx.PrepareContext(ctx, `INSERT INTO lines
		(id, position, invoice_id, item, unit, quantity, unit_price, discount_rate, vat_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare lines: %w", err)
	}
	defer lineStmt.Close()
	for i, l := range snap.Lines {
		if _, err := lineStmt.ExecContext(ctx, l.ID, i, l.InvoiceID, l.Item, string(l.Unit),
			l.Quantity.String(), l.UnitPrice.String(), l.DiscountRate.String(), l.VATRate.String()); err != nil {
			return fmt.Errorf("insert line %s: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadSnapshot reads a file written by SaveSnapshot.
func LoadSnapshot(ctx context.Context, path string) (ledger.Snapshot, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ledger.Snapshot{}, ErrNoSnapshot
		}
		return ledger.Snapshot{}, fmt.Errorf("stat snapshot: %w", err)
	}

	db, err := open(ctx, path)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	defer db.Close()

	var snap ledger.Snapshot
	var version string
	err = db.QueryRowContext(ctx, `SELECT value FROM snapshot_meta WHERE key = ?`, metaVersion).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return ledger.Snapshot{}, fmt.Errorf("read meta: %w", err)
	default:
		snap.Version, _ = strconv.ParseUint(version, 10, 64)
	}

	if snap.Invoices, err = loadInvoices(ctx, db); err != nil {
		return ledger.Snapshot{}, err
	}
	if snap.Lines, err = loadLines(ctx, db); err != nil {
		return ledger.Snapshot{}, err
	}
	return snap, nil
}

func loadInvoices(ctx context.Context, db *sql.DB) ([]core.Invoice, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, number, issue_date, supplier, withholding_rate, discount_amount
		FROM invoices ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	var out []core.Invoice
	for rows.Next() {
		var inv core.Invoice
		var withholding, discount string
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.IssueDate, &inv.Supplier, &withholding, &discount); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		inv.WithholdingRate = parseDecimal(withholding)
		inv.DiscountAmount = parseDecimal(discount)
		out = append(out, inv)
	}
	return out, rows.Err()
}

func loadLines(ctx context.Context, db *sql.DB) ([]core.Line, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, invoice_id, item, unit, quantity, unit_price, discount_rate, vat_rate
		FROM lines ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	defer rows.Close()

	var out []core.Line
	for rows.Next() {
		var l core.Line
		var unit, qty, price, disc, vat string
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Item, &unit, &qty, &price, &disc, &vat); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		l.Unit = core.Unit(unit)
		l.Pricing = core.Pricing{
			Quantity:     parseDecimal(qty),
			UnitPrice:    parseDecimal(price),
			DiscountRate: parseDecimal(disc),
			VATRate:      parseDecimal(vat),
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// parseDecimal reads a value written with decimal.String. Anything else
// falls back to the lenient parser.
func parseDecimal(s string) decimal.Decimal {
	if d, err := decimal.NewFromString(s); err == nil {
		return d
	}
	return core.ParseNumber(s)
}
