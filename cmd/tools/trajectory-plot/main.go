// Command trajectory-plot renders agent tip trajectories from the
// episode store as a PNG. Each episode becomes one XY line; successful
// episodes are listed in the legend with their seed.
//
// Usage:
//
//	trajectory-plot -db episodes.db -out trajectories.png
//	trajectory-plot -db episodes.db -episode <uuid> -out one.png
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/arenaworks/simarena/internal/sim/record"
)

func main() {
	var (
		dbPath    = flag.String("db", "episodes.db", "episode store path")
		episodeID = flag.String("episode", "", "plot a single episode by id (default: all)")
		outPath   = flag.String("out", "trajectories.png", "output PNG path")
		limit     = flag.Int("limit", 20, "max episodes to plot when -episode is unset")
	)
	flag.Parse()

	if err := run(*dbPath, *episodeID, *outPath, *limit); err != nil {
		log.Fatalf("trajectory-plot: %v", err)
	}
}

func run(dbPath, episodeID, outPath string, limit int) error {
	store, err := record.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	episodes, err := store.Episodes()
	if err != nil {
		return err
	}
	if episodeID != "" {
		var filtered []record.Episode
		for _, ep := range episodes {
			if ep.ID == episodeID {
				filtered = append(filtered, ep)
			}
		}
		if len(filtered) == 0 {
			return fmt.Errorf("episode %q not found", episodeID)
		}
		episodes = filtered
	} else if len(episodes) > limit {
		episodes = episodes[:limit]
	}

	p := plot.New()
	p.Title.Text = "Agent tip trajectories"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	colors := palette(len(episodes))
	plotted := 0
	for i, ep := range episodes {
		steps, err := store.Trajectory(ep.ID)
		if err != nil {
			return err
		}
		if len(steps) == 0 {
			continue
		}

		pts := make(plotter.XYs, len(steps))
		for j, st := range steps {
			pts[j] = plotter.XY{X: st.TipX, Y: st.TipY}
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)

		label := fmt.Sprintf("seed %d", ep.Seed)
		if ep.Success {
			label += " ✓"
		}
		p.Legend.Add(label, line)
		plotted++
	}
	if plotted == 0 {
		return fmt.Errorf("no trajectories to plot in %s", dbPath)
	}

	p.Legend.Top = true
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(8*vg.Inch, 8*vg.Inch, outPath); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	fmt.Printf("wrote %d trajectories to %s\n", plotted, outPath)
	return nil
}

// palette creates distinct line colors by walking the hue circle.
func palette(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64
	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
