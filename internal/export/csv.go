// Package export writes purchases as delimited text.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dukerupert/grocerytracker/internal/model"
)

var header = []string{"id", "item_name", "price", "quantity", "unit", "store", "purchase_date", "created_at"}

// WriteCSV writes a header row followed by one row per purchase. Absent
// optional fields are written as empty cells.
func WriteCSV(w io.Writer, purchases []model.Purchase) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, p := range purchases {
		quantity := ""
		if p.Quantity != nil {
			quantity = p.Quantity.String()
		}
		row := []string{
			strconv.FormatInt(p.ID, 10),
			p.ItemName,
			p.Price.StringFixed(2),
			quantity,
			p.Unit,
			p.Store,
			p.Date(),
			p.CreatedAt.UTC().Format(time.DateTime),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", p.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Filename returns the suggested download name for an export made at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("grocery_items_%s.csv", now.Format("20060102"))
}
