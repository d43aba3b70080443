package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"sierraspos/internal/domain"
	"sierraspos/internal/repos"
)

const (
	dateLayout   = "2006-01-02"
	storedLayout = "2006-01-02 15:04:05"
)

// ExportService writes the sales ledger as CSV for spreadsheets.
type ExportService struct {
	Sales *repos.SaleRepo
	Loc   *time.Location
}

// ExportRange resolves the query bounds. Missing dates open the range.
func ExportRange(start, end string) (from, to string, err error) {
	if start == "" {
		start = "2000-01-01"
	}
	if end == "" {
		end = "2099-12-31"
	}
	for _, d := range []string{start, end} {
		if _, perr := time.Parse(dateLayout, d); perr != nil {
			return "", "", fmt.Errorf("bad date %q: %w", d, domain.ErrInvalidInput)
		}
	}
	return start, end + " 23:59:59", nil
}

// WriteCSV writes ok sales between start and end (YYYY-MM-DD, inclusive).
// The output starts with a UTF-8 BOM so spreadsheet apps pick the encoding.
func (s *ExportService) WriteCSV(ctx context.Context, w io.Writer, start, end string) error {
	from, to, err := ExportRange(start, end)
	if err != nil {
		return err
	}
	sales, err := s.Sales.ListRange(ctx, from, to)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ID", "Fecha", "Vendedor", "Familia", "Metodo", "Total", "Detalle"}); err != nil {
		return err
	}
	for _, sale := range sales {
		row := []string{
			fmt.Sprint(sale.ID),
			s.localTime(sale.CreatedAt),
			sale.Seller,
			sale.FamilyName,
			string(sale.Method),
			fmt.Sprint(sale.Total),
			detail(sale.Lines),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *ExportService) localTime(stored string) string {
	t, err := time.ParseInLocation(storedLayout, stored, time.UTC)
	if err != nil {
		return stored
	}
	loc := s.Loc
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02-01-2006 15:04:05")
}

func detail(lines []domain.SaleLine) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = fmt.Sprintf("%dx %s", l.Quantity, l.Name)
	}
	return strings.Join(parts, " | ")
}
