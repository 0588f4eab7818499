package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jordanhubbard/modelhub/internal/catalog"
	"github.com/jordanhubbard/modelhub/internal/store"
)

func setInt(q url.Values, key string, v int) {
	if v > 0 {
		q.Set(key, strconv.Itoa(v))
	}
}

func setStr(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}

func newModelsCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"model"},
		Short:   "Browse the model catalog",
	}
	cmd.AddCommand(newModelsListCommand(c))
	cmd.AddCommand(newModelsGetCommand(c))
	return cmd
}

func newModelsListCommand(c *cli) *cobra.Command {
	var (
		provider, modality, category, search, sortBy, order string
		limit, offset                                       int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List models with optional filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			setStr(q, "provider", provider)
			setStr(q, "modality", modality)
			setStr(q, "category", category)
			setStr(q, "search", search)
			setStr(q, "sortBy", sortBy)
			setStr(q, "sortOrder", order)
			setInt(q, "limit", limit)
			setInt(q, "offset", offset)

			var models []store.ModelRecord
			meta, err := c.api.call(cmd.Context(), http.MethodGet, "/api/models", q, authNone, nil, &models)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(models)
			}
			if len(models) == 0 {
				_, err := fmt.Fprintln(c.out, "No models.")
				return err
			}
			printModels(c.out, models)
			if meta != nil && meta.Total > len(models) {
				_, _ = fmt.Fprintf(c.out, "\nShowing %d of %d (page %d/%d)\n", len(models), meta.Total, meta.Page, meta.Pages)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&provider, "provider", "", "filter by provider")
	f.StringVar(&modality, "modality", "", "filter by modality")
	f.StringVar(&category, "category", "", "filter by tag (coding, reasoning, image, audio, video, multimodal)")
	f.StringVar(&search, "search", "", "substring match on name or provider")
	f.StringVar(&sortBy, "sort", "", "sort field")
	f.StringVar(&order, "order", "", "asc or desc")
	f.IntVar(&limit, "limit", 0, "page size (server default 50)")
	f.IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func newModelsGetCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <slug>",
		Short: "Show one model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var m store.ModelRecord
			if _, err := c.api.call(cmd.Context(), http.MethodGet, "/api/models/"+url.PathEscape(args[0]), nil, authNone, nil, &m); err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(m)
			}
			printModel(c.out, m)
			return nil
		},
	}
}

func newRankCommand(c *cli) *cobra.Command {
	var (
		sortBy, order string
		limit, offset int
		fresh         bool
	)
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank models by a score (composite, popularity, performance, price, context)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			setStr(q, "sortBy", sortBy)
			setStr(q, "order", order)
			setInt(q, "limit", limit)
			setInt(q, "offset", offset)
			if fresh {
				q.Set("cache", "false")
			}
			var ranked []catalog.RankedModel
			if _, err := c.api.call(cmd.Context(), http.MethodGet, "/api/rankings", q, authKey, nil, &ranked); err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(ranked)
			}
			field := catalog.SortComposite
			if sortBy != "" {
				field = catalog.SortField(strings.ToLower(sortBy))
			}
			tw := newTable(c.out)
			_, _ = fmt.Fprintf(tw, "RANK\tSLUG\tNAME\tPROVIDER\t%s\n", strings.ToUpper(string(field)))
			for _, m := range ranked {
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", m.Rank, m.Slug, m.Name, m.Provider, fmtScore(m.Scores.Get(field)))
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVar(&sortBy, "sort", "", "score to rank by (default composite)")
	f.StringVar(&order, "order", "", "asc or desc (default desc)")
	f.IntVar(&limit, "limit", 0, "number of models (server default 50)")
	f.IntVar(&offset, "offset", 0, "rows to skip")
	f.BoolVar(&fresh, "no-cache", false, "bypass the server's ranking cache")
	return cmd
}

func newCompareCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <slug> <slug> [slug...]",
		Short: "Compare two to five models side by side",
		Args:  cobra.RangeArgs(catalog.MinCompare, catalog.MaxCompare),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"models": {strings.Join(args, ",")}}
			var res catalog.ComparisonResult
			if _, err := c.api.call(cmd.Context(), http.MethodGet, "/api/compare", q, authKey, nil, &res); err != nil {
				return err
			}
			entries := res.Models
			if c.jsonOut {
				return c.printJSON(res)
			}
			tw := newTable(c.out)
			_, _ = fmt.Fprintln(tw, "SLUG\tPROVIDER\tCONTEXT\tINPUT\tOUTPUT\tPERF\tPRICE\tCTX")
			for _, e := range entries {
				in, out := pricing(e.Pricing)
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Slug, e.Provider, fmtContext(e.ContextWindow), in, out,
					fmtScore(e.Normalized.Performance), fmtScore(e.Normalized.Price), fmtScore(e.Normalized.Context))
			}
			return tw.Flush()
		},
	}
}

func newSimilarCommand(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "similar <slug>",
		Short: "Find models similar to one model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			setInt(q, "limit", limit)
			var entries []catalog.SimilarEntry
			if _, err := c.api.call(cmd.Context(), http.MethodGet, "/api/models/"+url.PathEscape(args[0])+"/similar", q, authNone, nil, &entries); err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(entries)
			}
			tw := newTable(c.out)
			_, _ = fmt.Fprintln(tw, "SLUG\tNAME\tPROVIDER\tSIMILARITY")
			for _, e := range entries {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Slug, e.Name, e.Provider, fmtScore(e.SimilarityScore))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of results (server default 5)")
	return cmd
}

func newLeaderboardCommand(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard <benchmark>",
		Short: "Rank models by one benchmark score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			setInt(q, "limit", limit)
			var entries []catalog.LeaderboardEntry
			if _, err := c.api.call(cmd.Context(), http.MethodGet, "/api/leaderboards/"+url.PathEscape(args[0]), q, authNone, nil, &entries); err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(entries)
			}
			if len(entries) == 0 {
				_, err := fmt.Fprintf(c.out, "No models report %s.\n", args[0])
				return err
			}
			tw := newTable(c.out)
			_, _ = fmt.Fprintln(tw, "RANK\tSLUG\tNAME\tPROVIDER\tSCORE")
			for _, e := range entries {
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%g\n", e.Rank, e.Slug, e.Name, e.Provider, e.Score)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of entries (server default 50)")
	return cmd
}

func newTrendingCommand(c *cli) *cobra.Command {
	var (
		rng   string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "trending",
		Short: "List the fastest growing models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			setStr(q, "range", rng)
			setInt(q, "limit", limit)
			var models []catalog.TrendingModel
			if _, err := c.api.call(cmd.Context(), http.MethodGet, "/api/trending", q, authKey, nil, &models); err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(models)
			}
			tw := newTable(c.out)
			_, _ = fmt.Fprintln(tw, "SLUG\tNAME\tPROVIDER\tGROWTH\tPOPULARITY")
			for _, m := range models {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%g\n", m.Slug, m.Name, m.Provider, m.TrendScore, m.Popularity)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&rng, "range", "", "24h, 7d or 30d (default 7d)")
	cmd.Flags().IntVar(&limit, "limit", 0, "number of models (server default 10)")
	return cmd
}
