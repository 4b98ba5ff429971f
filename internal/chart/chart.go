// Package chart renders purchase price charts as PNG images.
package chart

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/dukerupert/grocerytracker/internal/filter"
	"github.com/dukerupert/grocerytracker/internal/model"
	"github.com/dukerupert/grocerytracker/internal/summary"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("chart: no data")

const (
	width  = 10 * vg.Inch
	height = 5 * vg.Inch
)

var barW = vg.Points(24)

type Kind string

const (
	Trend        Kind = "trend"
	Average      Kind = "average"
	Distribution Kind = "distribution"
	Stores       Kind = "stores"
)

// ParseKind validates a chart name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Trend, Average, Distribution, Stores:
		return k, nil
	}
	return "", fmt.Errorf("unknown chart %q", s)
}

// Build creates the chart of the given kind. item only applies to Trend;
// empty means every item.
func Build(kind Kind, purchases []model.Purchase, item string) (*plot.Plot, error) {
	switch kind {
	case Trend:
		return PriceTrend(purchases, item)
	case Average:
		return AveragePrice(purchases)
	case Distribution:
		return PriceDistribution(purchases)
	case Stores:
		return StoreComparison(purchases)
	}
	return nil, fmt.Errorf("unknown chart %q", kind)
}

// WritePNG encodes p as a PNG image.
func WritePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// PriceTrend plots price over time, one line per item.
func PriceTrend(purchases []model.Purchase, item string) (*plot.Plot, error) {
	if item != "" {
		purchases = filter.Filter{Items: []string{item}}.Apply(purchases)
	}
	if len(purchases) == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = "Price Trends"
	if item != "" {
		p.Title.Text = "Price Trend: " + item
	}
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Price ($)"
	p.X.Tick.Marker = plot.TimeTicks{Format: model.DateLayout}
	p.Add(plotter.NewGrid())

	items, _ := filter.Options(purchases)
	for i, name := range items {
		rows := filter.Filter{Items: []string{name}}.Apply(purchases)
		sort.SliceStable(rows, func(a, b int) bool {
			return rows[a].PurchaseDate.Before(rows[b].PurchaseDate)
		})

		pts := make(plotter.XYs, len(rows))
		for j, r := range rows {
			pts[j].X = float64(r.PurchaseDate.Unix())
			pts[j].Y = r.Price.InexactFloat64()
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, fmt.Errorf("plot %s: %w", name, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(2)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(i)
		p.Add(line, points)
		p.Legend.Add(name, line, points)
	}
	p.Legend.Top = true
	return p, nil
}

// AveragePrice draws one bar per item with its mean price.
func AveragePrice(purchases []model.Purchase) (*plot.Plot, error) {
	summaries := summary.Summarize(purchases)
	if len(summaries) == 0 {
		return nil, ErrNoData
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ItemName < summaries[j].ItemName
	})

	names := make([]string, len(summaries))
	values := make(plotter.Values, len(summaries))
	for i, s := range summaries {
		names[i] = s.ItemName
		values[i] = s.AvgPrice.InexactFloat64()
	}
	return barPlot("Average Price by Item", "Average Price ($)", names, values)
}

// PriceDistribution draws a box plot of prices per item.
func PriceDistribution(purchases []model.Purchase) (*plot.Plot, error) {
	if len(purchases) == 0 {
		return nil, ErrNoData
	}
	items, _ := filter.Options(purchases)
	sort.Strings(items)

	p := plot.New()
	p.Title.Text = "Price Distribution by Item"
	p.Y.Label.Text = "Price ($)"

	for i, name := range items {
		rows := filter.Filter{Items: []string{name}}.Apply(purchases)
		values := make(plotter.Values, len(rows))
		for j, r := range rows {
			values[j] = r.Price.InexactFloat64()
		}
		box, err := plotter.NewBoxPlot(barW, float64(i), values)
		if err != nil {
			return nil, fmt.Errorf("plot %s: %w", name, err)
		}
		box.FillColor = plotutil.Color(i)
		p.Add(box)
	}
	p.NominalX(items...)
	return p, nil
}

// StoreComparison draws the mean price paid at each store. Purchases
// without a store are left out.
func StoreComparison(purchases []model.Purchase) (*plot.Plot, error) {
	_, stores := filter.Options(purchases)
	if len(stores) == 0 {
		return nil, ErrNoData
	}
	sort.Strings(stores)

	values := make(plotter.Values, len(stores))
	for i, store := range stores {
		rows := filter.Filter{Stores: []string{store}}.Apply(purchases)
		mean := summary.Total(rows).Div(decimal.NewFromInt(int64(len(rows))))
		values[i] = mean.InexactFloat64()
	}
	return barPlot("Average Price by Store", "Average Price ($)", stores, values)
}

func barPlot(title, yLabel string, names []string, values plotter.Values) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	bars, err := plotter.NewBarChart(values, barW)
	if err != nil {
		return nil, fmt.Errorf("bar chart: %w", err)
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}
