package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jordanhubbard/modelhub/internal/store"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func fmtPrice(v *float64) string {
	if v == nil {
		return "-"
	}
	return "$" + strconv.FormatFloat(*v, 'f', -1, 64)
}

func fmtContext(v *int) string {
	if v == nil {
		return "-"
	}
	n := *v
	switch {
	case n >= 1_000_000 && n%1_000_000 == 0:
		return fmt.Sprintf("%dM", n/1_000_000)
	case n >= 1000 && n%1000 == 0:
		return fmt.Sprintf("%dK", n/1000)
	}
	return strconv.Itoa(n)
}

func fmtScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func fmtTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func pricing(p *store.Pricing) (in, out string) {
	if p == nil {
		return "-", "-"
	}
	return fmtPrice(p.InputPrice), fmtPrice(p.OutputPrice)
}

func joinOrDash(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ",")
}

func printModels(w io.Writer, models []store.ModelRecord) {
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "SLUG\tNAME\tPROVIDER\tCONTEXT\tINPUT\tOUTPUT\tMODALITIES")
	for _, m := range models {
		in, out := pricing(m.Pricing)
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			m.Slug, m.Name, m.Provider, fmtContext(m.ContextWindow), in, out, joinOrDash(m.Modalities))
	}
	_ = tw.Flush()
}

func printModel(w io.Writer, m store.ModelRecord) {
	tw := newTable(w)
	in, out := pricing(m.Pricing)
	rows := [][2]string{
		{"Slug", m.Slug},
		{"Name", m.Name},
		{"Provider", m.Provider},
		{"Context", fmtContext(m.ContextWindow)},
		{"Modalities", joinOrDash(m.Modalities)},
		{"Capabilities", joinOrDash(m.Capabilities)},
		{"Tags", joinOrDash(m.Tags)},
		{"Input price", in},
		{"Output price", out},
		{"Released", fmtTime(m.ReleaseDate)},
		{"Updated", fmtTime(&m.LastUpdated)},
	}
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1])
	}
	if len(m.BenchmarkScores) > 0 {
		names := make([]string, 0, len(m.BenchmarkScores))
		for k := range m.BenchmarkScores {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			_, _ = fmt.Fprintf(tw, "  %s:\t%g\n", k, m.BenchmarkScores[k])
		}
	}
	_ = tw.Flush()
}

func printHealth(w io.Writer, rep map[string]any) {
	_, _ = fmt.Fprintf(w, "Status:  %v\n", rep["status"])
	if v, ok := rep["version"]; ok {
		_, _ = fmt.Fprintf(w, "Version: %v\n", v)
	}
	if svcs, ok := rep["services"].(map[string]any); ok {
		names := make([]string, 0, len(svcs))
		for k := range svcs {
			names = append(names, k)
		}
		sort.Strings(names)
		tw := newTable(w)
		_, _ = fmt.Fprintln(tw, "SERVICE\tSTATUS")
		for _, n := range names {
			s, _ := svcs[n].(map[string]any)
			_, _ = fmt.Fprintf(tw, "%s\t%v\n", n, s["status"])
		}
		_ = tw.Flush()
	}
	if m, ok := rep["metrics"].(map[string]any); ok {
		_, _ = fmt.Fprintf(w, "Models:  %v\nKeys:    %v\n", m["totalModels"], m["totalKeys"])
	}
}
