package model

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/wildstyl3r/mcfit/internal/config"
	"github.com/wildstyl3r/mcfit/internal/histogram"
	"github.com/wildstyl3r/mcfit/internal/sampler"
)

// shard is the event range and private state of one worker.
type shard struct {
	worker     int
	first, end int
	histograms []*histogram.Histogram
	buffer     *histogram.Buffer
}

func buffered(p config.ParameterSet) bool {
	return p.BufferSamples || p.Experiment == config.ExperimentEfficiency
}

// binning returns the edges of every observable: configured ranges win over
// the generator defaults.
func binning(p config.ParameterSet, g Generator) [][2]float64 {
	names := g.Observables()
	edges := make([][2]float64, len(names))
	for i, name := range names {
		if r, ok := p.Ranges[name]; ok && len(r) == 2 {
			edges[i] = [2]float64{r[0], r[1]}
			continue
		}
		lo, hi := g.Range(i)
		edges[i] = [2]float64{lo, hi}
	}
	return edges
}

func newShard(p config.ParameterSet, edges [][2]float64, worker, first, end int) (*shard, error) {
	sh := &shard{worker: worker, first: first, end: end, histograms: make([]*histogram.Histogram, len(edges))}
	for i, e := range edges {
		h, err := histogram.New(p.Bins, e[0], e[1])
		if err != nil {
			return nil, err
		}
		sh.histograms[i] = h
	}
	if buffered(p) {
		sh.buffer = histogram.NewBuffer(end - first)
	}
	return sh, nil
}

// fill draws the shard's events from its own stream.
func (sh *shard) fill(ctx context.Context, g Generator, seed uint64, checkEvery int) error {
	r := sampler.SubStream(seed, sh.worker)
	event := make([]float64, len(sh.histograms))
	for n := sh.first; n < sh.end; n++ {
		if (n-sh.first)%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		g.Generate(r, event)
		for i, h := range sh.histograms {
			h.Fill(event[i])
		}
		if sh.buffer != nil {
			sh.buffer.Add(event[0])
		}
	}
	return nil
}

// generate runs p.Events events. With one worker the events form a single
// stream seeded by p.Seed. With W workers, worker w takes the contiguous
// range [w N / W, (w+1) N / W) on sub-stream w, and the shards are merged in
// worker order once all of them finished, so counts depend on (seed, W) only.
func (s *Simulation) generate(ctx context.Context, p config.ParameterSet, g Generator) (*run, error) {
	edges := binning(p, g)
	workers := min(p.Workers, p.Events)

	shards := make([]*shard, workers)
	for w := range shards {
		sh, err := newShard(p, edges, w, w*p.Events/workers, (w+1)*p.Events/workers)
		if err != nil {
			return nil, err
		}
		shards[w] = sh
	}

	if workers == 1 {
		if err := shards[0].fill(ctx, g, p.Seed, s.opts.CheckEvery); err != nil {
			return nil, err
		}
	} else {
		eg, egCtx := errgroup.WithContext(ctx)
		for _, sh := range shards {
			eg.Go(func() error {
				return sh.fill(egCtx, g, p.Seed, s.opts.CheckEvery)
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	total := shards[0]
	for _, sh := range shards[1:] {
		for i, h := range total.histograms {
			if err := h.Merge(sh.histograms[i]); err != nil {
				return nil, fmt.Errorf("merge worker %d: %w", sh.worker, err)
			}
		}
		if total.buffer != nil {
			total.buffer.Append(sh.buffer)
		}
	}

	names := g.Observables()
	r := &run{
		info: RunInfo{
			Experiment: p.Experiment,
			Events:     p.Events,
			Workers:    workers,
			Seed:       p.Seed,
		},
		observables: names,
		histograms:  make(map[string]*histogram.Histogram, len(names)),
		buffer:      total.buffer,
		params:      p,
	}
	for i, name := range names {
		r.histograms[name] = total.histograms[i]
	}
	return r, nil
}

func binomialError(ratio float64, total int64) float64 {
	return math.Sqrt(ratio * (1 - ratio) / float64(total))
}
