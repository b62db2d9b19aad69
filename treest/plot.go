package main

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/treest/treest/search"
)

// plotTrace plots the score after every search step, one line per
// stage.
func plotTrace(fn string, trace []search.TracePoint) error {
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = "Tree search"
	p.X.Label.Text = "step"
	p.Y.Label.Text = "score"

	var lines []interface{}
	for _, stage := range []string{search.StageNNI, search.StageReroot} {
		var pts plotter.XYs
		for i, tp := range trace {
			if tp.Stage == stage {
				pts = append(pts, plotter.XY{X: float64(i + 1), Y: tp.Score})
			}
		}
		if len(pts) > 0 {
			lines = append(lines, stage, pts)
		}
	}

	if err = plotutil.AddLinePoints(p, lines...); err != nil {
		return err
	}

	return p.Save(6*vg.Inch, 4*vg.Inch, fn)
}
