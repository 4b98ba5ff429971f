package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dukerupert/grocerytracker/internal/chart"
	"github.com/dukerupert/grocerytracker/internal/export"
	"github.com/dukerupert/grocerytracker/internal/filter"
	"github.com/dukerupert/grocerytracker/internal/model"
	"github.com/dukerupert/grocerytracker/internal/report"
	"github.com/dukerupert/grocerytracker/internal/store"
	"github.com/dukerupert/grocerytracker/internal/tracker"
)

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type filterFlags struct {
	items, stores listFlag
	from, to      string
}

func (a *app) filterFlags(name string) (*filterFlags, *flag.FlagSet) {
	ff := &filterFlags{}
	fs := a.flags(name)
	fs.Var(&ff.items, "item", "item name (repeatable)")
	fs.Var(&ff.stores, "store", "store name (repeatable)")
	fs.StringVar(&ff.from, "from", "", "first date, YYYY-MM-DD")
	fs.StringVar(&ff.to, "to", "", "last date, YYYY-MM-DD")
	return ff, fs
}

func (ff *filterFlags) filter() (filter.Filter, error) {
	f, err := filter.Parse(ff.items, ff.stores, ff.from, ff.to)
	if err != nil {
		return filter.Filter{}, usagef("%v", err)
	}
	return f, nil
}

// filtered returns all stored purchases passing ff, newest first.
func filtered(ctx context.Context, t *tracker.Tracker, f filter.Filter) ([]model.Purchase, error) {
	all, err := t.Purchases.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return f.Apply(all), nil
}

func (a *app) add(args []string) error {
	fs := a.flags("add")
	name := fs.String("name", "", "item name (required)")
	price := fs.String("price", "", "price paid (required)")
	qty := fs.String("qty", "", "quantity")
	unit := fs.String("unit", "", "unit of the quantity")
	storeName := fs.String("store", "", "store")
	date := fs.String("date", "", "purchase date, YYYY-MM-DD (default today)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if strings.TrimSpace(*price) == "" {
		return &store.ValidationError{Field: "price", Reason: "is required"}
	}
	p, err := store.ParsePrice(*price)
	if err != nil {
		return err
	}
	q, err := store.ParseQuantity(*qty)
	if err != nil {
		return err
	}
	np := model.NewPurchase{ItemName: *name, Price: p, Quantity: q, Unit: *unit, Store: *storeName}
	if *date != "" {
		d, err := model.ParseDate(*date)
		if err != nil {
			return &store.ValidationError{Field: "purchase_date", Reason: "must be YYYY-MM-DD"}
		}
		np.PurchaseDate = &d
	}

	return a.withTracker(func(t *tracker.Tracker) error {
		ctx := context.Background()
		id, err := t.Purchases.Add(ctx, np)
		if err != nil {
			return err
		}
		saved, err := t.Purchases.GetByID(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Added purchase %d: %s %s on %s\n",
			id, saved.ItemName, model.FormatMoney(saved.Price), saved.Date())
		return nil
	})
}

func (a *app) list(args []string) error {
	ff, fs := a.filterFlags("list")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	f, err := ff.filter()
	if err != nil {
		return err
	}
	return a.withTracker(func(t *tracker.Tracker) error {
		purchases, err := filtered(context.Background(), t, f)
		if err != nil {
			return err
		}
		return writePurchases(a.stdout, purchases)
	})
}

func (a *app) history(args []string) error {
	fs := a.flags("history")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("history takes exactly one item name")
	}
	return a.withTracker(func(t *tracker.Tracker) error {
		purchases, err := t.Summary.ItemHistory(context.Background(), fs.Arg(0))
		if err != nil {
			return err
		}
		return writePurchases(a.stdout, purchases)
	})
}

func writePurchases(w io.Writer, purchases []model.Purchase) error {
	if len(purchases) == 0 {
		fmt.Fprintln(w, "No purchases.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tITEM\tPRICE\tQTY\tUNIT\tSTORE")
	for _, p := range purchases {
		qty := ""
		if p.Quantity != nil {
			qty = p.Quantity.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Date(), p.ItemName, model.FormatMoney(p.Price), qty, p.Unit, p.Store)
	}
	return tw.Flush()
}

func (a *app) summary(args []string) error {
	fs := a.flags("summary")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	return a.withTracker(func(t *tracker.Tracker) error {
		summaries, err := t.Summary.PriceSummary(context.Background())
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Fprintln(a.stdout, "No purchases.")
			return nil
		}
		tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ITEM\tCOUNT\tMIN\tMAX\tAVG\tAVG/UNIT\tLAST")
		for _, s := range summaries {
			perUnit := "-"
			if s.AvgPricePerUnit != nil {
				perUnit = model.FormatMoney(*s.AvgPricePerUnit)
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
				s.ItemName, s.PurchaseCount, model.FormatMoney(s.MinPrice), model.FormatMoney(s.MaxPrice),
				model.FormatMoney(s.AvgPrice), perUnit, s.LastPurchase.Format(model.DateLayout))
		}
		return tw.Flush()
	})
}

func (a *app) overview(args []string) error {
	fs := a.flags("overview")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	return a.withTracker(func(t *tracker.Tracker) error {
		o, err := t.Summary.Overview(context.Background())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Total purchases:\t%d\n", o.TotalPurchases)
		fmt.Fprintf(tw, "Unique items:\t%d\n", o.UniqueItems)
		fmt.Fprintf(tw, "Total spent:\t%s\n", model.FormatMoney(o.TotalSpent))
		fmt.Fprintf(tw, "Average price:\t%s\n", model.FormatMoney(o.AveragePrice))
		return tw.Flush()
	})
}

func (a *app) delete(args []string) error {
	fs := a.flags("delete")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("delete takes exactly one purchase id")
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return usagef("invalid purchase id %q", fs.Arg(0))
	}
	return a.withTracker(func(t *tracker.Tracker) error {
		removed, err := t.Purchases.Delete(context.Background(), id)
		if err != nil {
			return err
		}
		if !removed {
			fmt.Fprintf(a.stdout, "No purchase %d\n", id)
			return nil
		}
		fmt.Fprintf(a.stdout, "Deleted purchase %d\n", id)
		return nil
	})
}

// create opens path for writing, or returns stdout for "" and "-".
func (a *app) create(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return a.stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func (a *app) export(args []string) error {
	ff, fs := a.filterFlags("export")
	out := fs.String("o", "", "output file (default stdout; \"auto\" for the dated name)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	f, err := ff.filter()
	if err != nil {
		return err
	}
	path := *out
	if path == "auto" {
		path = export.Filename(time.Now())
	}

	return a.withTracker(func(t *tracker.Tracker) error {
		purchases, err := filtered(context.Background(), t, f)
		if err != nil {
			return err
		}
		w, closeFn, err := a.create(path)
		if err != nil {
			return err
		}
		if err := export.WriteCSV(w, purchases); err != nil {
			closeFn()
			return err
		}
		return closeFn()
	})
}

func (a *app) report(args []string) error {
	ff, fs := a.filterFlags("report")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	f, err := ff.filter()
	if err != nil {
		return err
	}
	return a.withTracker(func(t *tracker.Tracker) error {
		all, err := t.Purchases.GetAll(context.Background())
		if err != nil {
			return err
		}
		if len(f.Stores) > 0 {
			all = filter.Filter{Stores: f.Stores}.Apply(all)
		}
		r := report.Build(all, report.Options{Items: f.Items, From: f.From, To: f.To, Now: time.Now()})
		return report.Render(a.stdout, r)
	})
}

func (a *app) chart(args []string) error {
	ff, fs := a.filterFlags("chart")
	kindName := fs.String("kind", "trend", "trend, average, distribution or stores")
	out := fs.String("o", "", "output PNG file (required)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	kind, err := chart.ParseKind(*kindName)
	if err != nil {
		return usagef("%v", err)
	}
	if *out == "" {
		return usagef("chart needs -o")
	}
	f, err := ff.filter()
	if err != nil {
		return err
	}

	return a.withTracker(func(t *tracker.Tracker) error {
		purchases, err := filtered(context.Background(), t, f)
		if err != nil {
			return err
		}
		var item string
		if len(f.Items) == 1 {
			item = f.Items[0]
		}
		p, err := chart.Build(kind, purchases, item)
		if err != nil {
			return err
		}
		w, closeFn, err := a.create(*out)
		if err != nil {
			return err
		}
		if err := chart.WritePNG(w, p); err != nil {
			closeFn()
			return err
		}
		if err := closeFn(); err != nil {
			return err
		}
		fmt.Fprintf(a.stderr, "Wrote %s chart to %s\n", kind, *out)
		return nil
	})
}
