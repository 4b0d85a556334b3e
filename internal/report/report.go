// Package report renders interval statistics and pairwise divergence over
// sample stores as text tables. All numbers come from the analysis package;
// nothing here is more than formatting.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/sync/errgroup"

	"github.com/parttimenerd/sampler-comparison/internal/analysis"
	"github.com/parttimenerd/sampler-comparison/internal/safe"
	"github.com/parttimenerd/sampler-comparison/internal/stackstore"
)

// IntervalTable writes one row of inter-sample gap statistics per store,
// sorted by store name. The Samples column counts every recorded sample of
// the store, while the statistics cover the gaps of threads that meet
// minSamplesPerThread; duration cells are milliseconds with three decimals.
//
// Each store's statistics are computed in parallel. Stores are independent
// and only read here, so no ordering between them is required.
func IntervalTable(w io.Writer, stores []*stackstore.Store, minSamplesPerThread int) error {
	sorted := sortByName(stores)

	intervals := make([]analysis.ComputedInterval, len(sorted))
	var g errgroup.Group
	for i, s := range sorted {
		i, s := i, s // per-iteration copies; required while go.mod targets go < 1.22
		g.Go(func() error {
			intervals[i] = analysis.ComputeInterval(s, minSamplesPerThread)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("computing interval statistics: %w", err)
	}

	table := newTable(w, []string{
		"Name", "Samples", "Avg", "StdDev", "AvgTrimmed", "StdTrimmed",
		"Min", "10thPerc", "90thPerc", "Max",
	})
	for i, s := range sorted {
		iv := intervals[i]
		table.Append([]string{
			s.Name(),
			humanize.Comma(int64(s.TotalSampleCount())),
			millis(iv.Mean),
			millis(iv.StdDev),
			millis(iv.TrimmedMean),
			millis(iv.TrimmedStdDev),
			millis(iv.Min),
			millis(iv.Percentile10),
			millis(iv.Percentile90),
			millis(iv.Max),
		})
	}
	table.Render()
	return nil
}

// DivergenceMatrix writes the pairwise divergence of every ordered store
// pair: the cell in row A, column B is "summedDiff / percNotInOther" for
// Compare(A, B). Stores whose name contains "error" carry failure samples
// of another store and are left out. A max-depth mismatch between any pair
// aborts the whole matrix.
func DivergenceMatrix(w io.Writer, stores []*stackstore.Store) error {
	comparable := make([]*stackstore.Store, 0, len(stores))
	for _, s := range stores {
		if strings.Contains(s.Name(), "error") {
			continue
		}
		comparable = append(comparable, s)
	}
	comparable = sortByName(comparable)
	if len(comparable) == 0 {
		return nil
	}

	header := make([]string, 0, len(comparable)+1)
	header = append(header, "")
	for _, s := range comparable {
		header = append(header, s.Name())
	}

	table := newTable(w, header)
	for _, a := range comparable {
		row := make([]string, 0, len(comparable)+1)
		row = append(row, a.Name())
		for _, b := range comparable {
			result, err := analysis.Compare(a, b)
			if err != nil {
				return err
			}
			row = append(row, fmt.Sprintf("%.3f / %.3f", result.SummedDiff, result.PercNotInOther))
		}
		table.Append(row)
	}
	table.Render()
	return nil
}

// InspectTable writes one row per thread of each store: how many samples the
// thread carries and the time span they cover. It is the quick look at what
// a capture actually recorded, before any statistics.
func InspectTable(w io.Writer, stores []*stackstore.Store) error {
	table := newTable(w, []string{"Store", "MaxDepth", "Thread", "Samples", "Span"})
	for _, s := range sortByName(stores) {
		for _, thread := range s.ThreadNames() {
			samples := s.Samples(thread)
			table.Append([]string{
				s.Name(),
				strconv.Itoa(s.MaxDepth()),
				thread,
				humanize.Comma(int64(len(samples))),
				millis(span(samples)),
			})
		}
	}
	table.Render()
	return nil
}

// span is the distance between the earliest and latest sample timestamps.
func span(samples []stackstore.Sample) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	lo, hi := samples[0].TimeNanos, samples[0].TimeNanos
	for _, s := range samples[1:] {
		if s.TimeNanos < lo {
			lo = s.TimeNanos
		}
		if s.TimeNanos > hi {
			hi = s.TimeNanos
		}
	}
	d, _ := safe.Uint64ToInt64(hi - lo)
	return time.Duration(d)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	alignment := make([]int, len(header))
	alignment[0] = tablewriter.ALIGN_LEFT
	for i := 1; i < len(alignment); i++ {
		alignment[i] = tablewriter.ALIGN_RIGHT
	}
	table.SetColumnAlignment(alignment)
	return table
}

func sortByName(stores []*stackstore.Store) []*stackstore.Store {
	sorted := make([]*stackstore.Store, len(stores))
	copy(sorted, stores)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })
	return sorted
}

func millis(d time.Duration) string {
	return fmt.Sprintf("%.3f", float64(d)/float64(time.Millisecond))
}
