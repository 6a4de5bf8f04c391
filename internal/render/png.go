package render

import (
	"fmt"
	"io"
	"sort"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/rewired-gh/slotscope/internal/models"
)

// Server-side PNG backend. Proves the spec types are backend-agnostic; the
// dashboard uses it for the line chart and the sparkline tiles.

var overlayColors = []drawing.Color{
	chart.ColorRed,
	chart.ColorGreen,
	chart.ColorOrange,
}

// RenderLinePNG draws a derived series with its rolling-mean overlays.
// At least two points are required.
func RenderLinePNG(series *models.DerivedSeries, w io.Writer) error {
	if len(series.Points) < 2 {
		return fmt.Errorf("need at least 2 points to render, have %d", len(series.Points))
	}

	dates := make([]time.Time, len(series.Points))
	raw := make([]float64, len(series.Points))
	for i, p := range series.Points {
		dates[i] = p.Date
		raw[i] = p.Raw
	}

	seriesList := []chart.Series{
		chart.TimeSeries{
			Name:    series.Metric,
			XValues: dates,
			YValues: raw,
			Style: chart.Style{
				StrokeColor: chart.ColorBlue,
				StrokeWidth: 1.5,
			},
		},
	}
	for wi, window := range series.Windows {
		values := make([]float64, len(series.Points))
		for i, p := range series.Points {
			values[i] = p.Means[wi]
		}
		seriesList = append(seriesList, chart.TimeSeries{
			Name:    fmt.Sprintf("%d-day mean", window),
			XValues: dates,
			YValues: values,
			Style: chart.Style{
				StrokeColor:     overlayColors[wi%len(overlayColors)],
				StrokeWidth:     1.0,
				StrokeDashArray: []float64{4.0, 2.0},
			},
		})
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s #%s", series.Model, series.MachineID),
		Width:  960,
		Height: 480,
		Background: chart.Style{
			Padding: chart.Box{Top: 36, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		Series: seriesList,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

// RenderSparklinePNG draws one machine's mini series as a bare tile; the
// dashboard lays tiles out in a grid. At least two observations are required.
func RenderSparklinePNG(view *models.FilteredView, metric string, w io.Writer) error {
	type obs struct {
		date  time.Time
		value float64
	}
	var observations []obs
	for i := range view.Records {
		if v, ok := view.Records[i].Metric(metric); ok {
			observations = append(observations, obs{view.Records[i].Date, v})
		}
	}
	sort.Slice(observations, func(i, j int) bool {
		return observations[i].date.Before(observations[j].date)
	})
	if len(observations) < 2 {
		return fmt.Errorf("need at least 2 points to render, have %d", len(observations))
	}

	dates := make([]time.Time, len(observations))
	values := make([]float64, len(observations))
	for i, o := range observations {
		dates[i] = o.date
		values[i] = o.value
	}

	graph := chart.Chart{
		Width:  240,
		Height: 120,
		Background: chart.Style{
			Padding: chart.Box{Top: 4, Left: 4, Right: 4, Bottom: 4},
		},
		XAxis: chart.XAxis{Style: chart.Hidden()},
		YAxis: chart.YAxis{Style: chart.Hidden()},
		Series: []chart.Series{
			chart.TimeSeries{
				XValues: dates,
				YValues: values,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 1.0,
				},
			},
		},
	}

	return graph.Render(chart.PNG, w)
}
