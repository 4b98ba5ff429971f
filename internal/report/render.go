package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dukerupert/grocerytracker/internal/model"
)

// Render writes r as plain text.
func Render(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "Grocery Price Report")
	fmt.Fprintf(tw, "Report period:\t%s to %s\n", dateOrDash(r.From), dateOrDash(r.To))
	if !r.Generated.IsZero() {
		fmt.Fprintf(tw, "Generated:\t%s\n", r.Generated.Format(time.DateTime))
	}

	fmt.Fprintln(tw, "\nExecutive Summary")
	fmt.Fprintf(tw, "Total purchases:\t%d\n", r.Purchases)
	fmt.Fprintf(tw, "Total spent:\t%s\n", model.FormatMoney(r.TotalSpent))
	fmt.Fprintf(tw, "Average purchase:\t%s\n", model.FormatMoney(r.AveragePurchase))

	if len(r.Items) > 0 {
		fmt.Fprintln(tw, "\nItem Breakdown")
		for _, b := range r.Items {
			fmt.Fprintf(tw, "\n%s - %d purchases\n", b.ItemName, b.Count)
			fmt.Fprintf(tw, "Min\t%s\tMax\t%s\tAvg\t%s\tTotal\t%s\n",
				model.FormatMoney(b.Min), model.FormatMoney(b.Max),
				model.FormatMoney(b.Avg), model.FormatMoney(b.Total))
			for _, p := range b.Purchases {
				qty := ""
				if p.Quantity != nil {
					qty = p.Quantity.String()
				}
				fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n",
					p.Date(), model.FormatMoney(p.Price), qty, p.Unit, p.Store)
			}
		}
	}

	if len(r.Categories) > 0 {
		fmt.Fprintln(tw, "\nSpend by Category")
		for _, c := range r.Categories {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", c.Category, c.Purchases, model.FormatMoney(c.Total))
		}
	}

	if len(r.Insights) > 0 {
		fmt.Fprintln(tw, "\nInsights & Recommendations")
		for _, in := range r.Insights {
			fmt.Fprintf(tw, "- %s\n", in.String())
		}
	}

	return tw.Flush()
}

// String renders the insight as one sentence.
func (in Insight) String() string {
	switch in.Kind {
	case PriceChange:
		direction := "increased"
		if in.Percent.IsNegative() {
			direction = "decreased"
		}
		return fmt.Sprintf("%s: price has %s by %s%% over the report period",
			in.ItemName, direction, in.Percent.Abs().StringFixed(1))
	case BestStore:
		return fmt.Sprintf("%s: best average price at %s (%s)",
			in.ItemName, in.Store, model.FormatMoney(in.Price))
	}
	return in.ItemName
}

func dateOrDash(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(model.DateLayout)
}
