package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/jzx17/workchan/pkg/types"
	"github.com/jzx17/workchan/pkg/worker"
)

var (
	Bold   = color.New(color.Bold)
	Green  = color.New(color.FgGreen)
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
)

func colorPrintf(w io.Writer, c *color.Color, format string, args ...interface{}) {
	_, _ = c.Fprintf(w, format, args...)
}

func colorPrintLn(w io.Writer, c *color.Color, s string) {
	_, _ = c.Fprintln(w, s)
}

// renderWorkers prints one row per worker handle
func renderWorkers(w io.Writer, handles []*worker.Handle) {
	table := tablewriter.NewWriter(w)
	table.Header("Worker", "Role", "State", "Duration", "Error")

	for _, h := range handles {
		s := h.Stats()
		errStr := "-"
		if s.Err != nil {
			errStr = s.Err.Error()
		}
		_ = table.Append(
			s.ID.String(),
			s.ID.Role.String(),
			s.State.String(),
			s.Duration().Round(time.Microsecond).String(),
			errStr,
		)
	}
	_ = table.Render()
}

// renderPartition prints the values each producer delivered, in delivery order
func renderPartition(w io.Writer, partition map[int][]int) {
	producers := make([]int, 0, len(partition))
	for p := range partition {
		producers = append(producers, p)
	}
	sort.Ints(producers)

	table := tablewriter.NewWriter(w)
	table.Header("Producer", "Items", "Delivered")
	for _, p := range producers {
		_ = table.Append(fmt.Sprintf("producer-%d", p), fmt.Sprintf("%d", len(partition[p])), fmt.Sprint(partition[p]))
	}
	_ = table.Render()
}

// renderReport prints the run outcome and every reported failure
func renderReport(w io.Writer, err error) {
	if err == nil {
		colorPrintLn(w, Green, "✓ run completed without failures")
		return
	}

	failures := types.Failures(err)
	if len(failures) == 0 {
		colorPrintf(w, Yellow, "run ended: %v\n", err)
		return
	}

	colorPrintf(w, Red, "✗ %d failure(s) reported\n", len(failures))
	table := tablewriter.NewWriter(w)
	table.Header("Worker", "Cause")
	for _, f := range failures {
		_ = table.Append(f.Origin.String(), f.Cause.Error())
	}
	_ = table.Render()
}

// renderMetrics writes every gathered family in the text exposition format
func renderMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	colorPrintLn(w, Bold, "metrics")
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
