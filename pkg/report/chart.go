package report

import (
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"slices"

	"github.com/mchmarny/walletscore/pkg/score"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	histogramBins = 50
	chartWidth    = 16 * vg.Inch
	chartHeight   = 12 * vg.Inch
)

var (
	colorHistogram = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	colorRanges    = color.RGBA{R: 60, G: 179, B: 113, A: 255}
	colorLine      = color.RGBA{R: 128, G: 0, B: 128, A: 255}

	categoryColors = []color.Color{
		color.RGBA{R: 255, G: 107, B: 107, A: 255},
		color.RGBA{R: 255, G: 217, B: 61, A: 255},
		color.RGBA{R: 107, G: 203, B: 119, A: 255},
		color.RGBA{R: 77, G: 150, B: 255, A: 255},
	}
)

// WriteChart renders a four panel PNG of the score distribution to path:
// a histogram, the 100-point range counts, the category counts and the
// cumulative distribution.
func WriteChart(path string, list []*score.WalletScore) error {
	values := Scores(list)
	if len(values) == 0 {
		return ErrNoScores
	}

	hist, err := histogramPlot(values)
	if err != nil {
		return err
	}
	ranges, err := rangesPlot(values)
	if err != nil {
		return err
	}
	cats, err := categoriesPlot(values)
	if err != nil {
		return err
	}
	cum, err := cumulativePlot(values)
	if err != nil {
		return err
	}

	img := vgimg.New(chartWidth, chartHeight)
	dc := draw.New(img)

	t := draw.Tiles{
		Rows:      2,
		Cols:      2,
		PadX:      vg.Millimeter * 8,
		PadY:      vg.Millimeter * 8,
		PadTop:    vg.Millimeter * 4,
		PadBottom: vg.Millimeter * 4,
		PadLeft:   vg.Millimeter * 4,
		PadRight:  vg.Millimeter * 4,
	}

	plots := [][]*plot.Plot{{hist, ranges}, {cats, cum}}
	canvases := plot.Align(plots, t, dc)
	for i := range plots {
		for j := range plots[i] {
			plots[i][j].Draw(canvases[i][j])
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating chart file %s: %w", path, err)
	}
	defer f.Close()

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		return fmt.Errorf("error writing chart %s: %w", path, err)
	}

	slog.Debug("chart written", "path", path, "wallets", len(values))
	return nil
}

func histogramPlot(values []float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Credit Score Distribution"
	p.X.Label.Text = "Credit Score"
	p.Y.Label.Text = "Number of Wallets"

	h, err := plotter.NewHist(plotter.Values(values), histogramBins)
	if err != nil {
		return nil, fmt.Errorf("error building histogram: %w", err)
	}
	h.FillColor = colorHistogram
	p.Add(h)
	return p, nil
}

func rangesPlot(values []float64) (*plot.Plot, error) {
	buckets := CountRanges(values)
	counts := make(plotter.Values, 0, len(buckets))
	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		counts = append(counts, float64(b.Count))
		names = append(names, b.Label)
	}

	p := plot.New()
	p.Title.Text = "Wallets by Score Range"
	p.Y.Label.Text = "Number of Wallets"

	bars, err := plotter.NewBarChart(counts, vg.Points(20))
	if err != nil {
		return nil, fmt.Errorf("error building range chart: %w", err)
	}
	bars.Color = colorRanges
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}

func categoriesPlot(values []float64) (*plot.Plot, error) {
	buckets := CountCategories(values)

	p := plot.New()
	p.Title.Text = "Risk Categories"
	p.Y.Label.Text = "Number of Wallets"

	names := make([]string, 0, len(buckets))
	for i, b := range buckets {
		// one chart per bar so each category keeps its color
		vals := make(plotter.Values, len(buckets))
		vals[i] = float64(b.Count)
		bars, err := plotter.NewBarChart(vals, vg.Points(40))
		if err != nil {
			return nil, fmt.Errorf("error building category chart: %w", err)
		}
		bars.Color = categoryColors[i%len(categoryColors)]
		bars.LineStyle.Width = vg.Length(0)
		p.Add(bars)
		names = append(names, b.Label)
	}
	p.NominalX(names...)
	return p, nil
}

func cumulativePlot(values []float64) (*plot.Plot, error) {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	pts := make(plotter.XYs, len(sorted))
	n := float64(len(sorted))
	for i, v := range sorted {
		pts[i].X = v
		pts[i].Y = float64(i+1) / n * 100
	}

	p := plot.New()
	p.Title.Text = "Cumulative Score Distribution"
	p.X.Label.Text = "Credit Score"
	p.Y.Label.Text = "Cumulative Percentage"
	p.X.Min = 0
	p.X.Max = score.MaxScore
	p.Y.Min = 0
	p.Y.Max = 100
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("error building cumulative line: %w", err)
	}
	line.Color = colorLine
	line.Width = vg.Points(2)
	p.Add(line)
	return p, nil
}
