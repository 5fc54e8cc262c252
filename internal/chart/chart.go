package chart

import (
	"bytes"
	"fmt"
	"time"

	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"longentry-telegram-bot/internal/price"
)

var (
	seriesColor     = drawing.Color{R: 0, G: 122, B: 255, A: 255}
	seriesFillColor = drawing.Color{R: 0, G: 122, B: 255, A: 25}
	backgroundColor = drawing.Color{R: 55, G: 55, B: 55, A: 255}
	textColor       = drawing.Color{R: 200, G: 200, B: 200, A: 255}
	gridColor       = drawing.Color{R: 100, G: 100, B: 100, A: 128}
	targetColor     = drawing.Color{R: 255, G: 99, B: 71, A: 255}
)

var chartFont *truetype.Font

func init() {
	f, err := chart.GetDefaultFont()
	if err == nil {
		chartFont = f
	}
}

// Render draws a dark-themed PNG line chart of candle closes. When target is
// positive, the level is overlaid as a dashed horizontal line.
func Render(symbol string, candles []price.Candle, target float64) ([]byte, error) {
	if len(candles) < 2 {
		return nil, errors.New("not enough data points to chart")
	}

	xs := make([]time.Time, len(candles))
	ys := make([]float64, len(candles))
	minPrice, maxPrice := candles[0].Close, candles[0].Close
	for i, c := range candles {
		xs[i] = c.OpenTime
		ys[i] = c.Close
		if c.Close < minPrice {
			minPrice = c.Close
		}
		if c.Close > maxPrice {
			maxPrice = c.Close
		}
	}
	if target > 0 {
		if target < minPrice {
			minPrice = target
		}
		if target > maxPrice {
			maxPrice = target
		}
	}

	padding := (maxPrice - minPrice) * 0.1
	if padding == 0 {
		padding = maxPrice * 0.01
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name: symbol,
			Style: chart.Style{
				StrokeColor: seriesColor,
				FillColor:   seriesFillColor,
			},
			XValues: xs,
			YValues: ys,
		},
	}
	if target > 0 {
		series = append(series, chart.TimeSeries{
			Name: "target",
			Style: chart.Style{
				StrokeColor:     targetColor,
				StrokeDashArray: []float64{5.0, 5.0},
			},
			XValues: []time.Time{xs[0], xs[len(xs)-1]},
			YValues: []float64{target, target},
		})
	}

	graph := chart.Chart{
		Title:      fmt.Sprintf("%s price", symbol),
		TitleStyle: chart.Style{FontColor: textColor, FontSize: 14},
		Width:      1200,
		Height:     500,
		Font:       chartFont,
		Background: chart.Style{FillColor: backgroundColor},
		Canvas:     chart.Style{FillColor: backgroundColor},
		XAxis: chart.XAxis{
			Style:          chart.Style{FontColor: textColor, FontSize: 12},
			GridMajorStyle: chart.Style{StrokeColor: gridColor, StrokeWidth: 1.0},
		},
		YAxis: chart.YAxis{
			Style: chart.Style{FontColor: textColor, FontSize: 12},
			Range: &chart.ContinuousRange{
				Min: minPrice - padding,
				Max: maxPrice + padding,
			},
			GridMajorStyle: chart.Style{StrokeColor: gridColor, StrokeWidth: 1.0},
		},
		Series: series,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, errors.Wrap(err, "rendering chart")
	}
	return buf.Bytes(), nil
}
