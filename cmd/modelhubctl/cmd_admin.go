package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/jordanhubbard/modelhub/internal/apikey"
	"github.com/jordanhubbard/modelhub/internal/seed"
	"github.com/jordanhubbard/modelhub/internal/store"
)

// seedPayload strips server-managed fields from m. With forPatch the slug
// and metrics go too, since PATCH rejects the former and ignores the latter.
func seedPayload(m store.ModelRecord, forPatch bool) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	for _, k := range []string{"id", "createdAt", "updatedAt", "lastUpdated"} {
		delete(doc, k)
	}
	for k, v := range doc {
		if string(v) == "null" {
			delete(doc, k)
		}
	}
	if forPatch {
		delete(doc, "slug")
		delete(doc, "marketMetrics")
	}
	return doc, nil
}

type seedResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// seedModels creates each model, falling back to PATCH (and a metrics PUT)
// when the slug already exists.
func (c *cli) seedModels(ctx context.Context, models []store.ModelRecord) (seedResult, error) {
	var res seedResult
	for _, m := range models {
		body, err := seedPayload(m, false)
		if err != nil {
			return res, err
		}
		_, err = c.api.call(ctx, http.MethodPost, "/admin/v1/models", nil, authAdmin, body, nil)
		var apiErr *APIError
		switch {
		case err == nil:
			res.Created++
			continue
		case errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict:
		default:
			return res, fmt.Errorf("create %s: %w", m.Slug, err)
		}

		patch, err := seedPayload(m, true)
		if err != nil {
			return res, err
		}
		path := "/admin/v1/models/" + url.PathEscape(m.Slug)
		if _, err := c.api.call(ctx, http.MethodPatch, path, nil, authAdmin, patch, nil); err != nil {
			return res, fmt.Errorf("update %s: %w", m.Slug, err)
		}
		if m.Metrics != nil {
			if _, err := c.api.call(ctx, http.MethodPut, path+"/metrics", nil, authAdmin, m.Metrics, nil); err != nil {
				return res, fmt.Errorf("update %s metrics: %w", m.Slug, err)
			}
		}
		res.Updated++
	}
	return res, nil
}

func newSeedCommand(c *cli) *cobra.Command {
	var (
		file   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load models from a YAML seed file into the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := seed.LoadFile(file)
			if err != nil {
				return err
			}
			if dryRun {
				_, err := fmt.Fprintf(c.out, "%s: %d models valid\n", file, len(models))
				return err
			}
			res, err := c.seedModels(cmd.Context(), models)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(res)
			}
			_, err = fmt.Fprintf(c.out, "Seeded %d models (%d created, %d updated).\n", res.Created+res.Updated, res.Created, res.Updated)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML seed file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without contacting the server")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newAPIKeyCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "apikey",
		Aliases: []string{"apikeys"},
		Short:   "Issue, list and revoke API keys",
	}
	cmd.AddCommand(newAPIKeyIssueCommand(c))
	cmd.AddCommand(newAPIKeyListCommand(c))
	cmd.AddCommand(newAPIKeyRevokeCommand(c))
	cmd.AddCommand(newAPIKeyUsageCommand(c))
	return cmd
}

func newAPIKeyIssueCommand(c *cli) *cobra.Command {
	var owner, plan string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a new API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := apikey.ParsePlan(plan); err != nil {
				return err
			}
			var issued struct {
				Key        string     `json:"key"`
				ID         string     `json:"id"`
				Plan       string     `json:"plan"`
				DailyLimit int        `json:"daily_limit"`
				ExpiresAt  *time.Time `json:"expires_at"`
				Warning    string     `json:"warning"`
			}
			body := map[string]string{"owner_id": owner, "plan": plan}
			if _, err := c.api.call(cmd.Context(), http.MethodPost, "/admin/v1/apikeys", nil, authAdmin, body, &issued); err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(issued)
			}
			_, _ = fmt.Fprintf(c.out, "API key issued.\n  ID:      %s\n  Key:     %s\n  Plan:    %s (%d requests/day)\n  Expires: %s\n",
				issued.ID, issued.Key, issued.Plan, issued.DailyLimit, fmtTime(issued.ExpiresAt))
			_, err := fmt.Fprintln(c.out, "\n  Save this key now. It will not be shown again.")
			return err
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner id recorded with the key")
	cmd.Flags().StringVar(&plan, "plan", string(apikey.PlanFree), "plan: free, pro or enterprise")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newAPIKeyListCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List issued API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var keys []store.APIKeyRecord
			if _, err := c.api.call(cmd.Context(), http.MethodGet, "/admin/v1/apikeys", nil, authAdmin, nil, &keys); err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(keys)
			}
			if len(keys) == 0 {
				_, err := fmt.Fprintln(c.out, "No API keys.")
				return err
			}
			tw := newTable(c.out)
			_, _ = fmt.Fprintln(tw, "ID\tPREFIX\tOWNER\tPLAN\tENABLED\tUSES\tLAST USED\tEXPIRES")
			for _, k := range keys {
				enabled := "yes"
				if !k.Enabled {
					enabled = "no"
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					k.ID, k.KeyPrefix, k.OwnerID, k.Plan, enabled, k.UsageCount, fmtTime(k.LastUsedAt), fmtTime(k.ExpiresAt))
			}
			return tw.Flush()
		},
	}
}

func newAPIKeyRevokeCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Disable an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.api.call(cmd.Context(), http.MethodDelete, "/admin/v1/apikeys/"+url.PathEscape(args[0]), nil, authAdmin, nil, nil); err != nil {
				return err
			}
			_, err := fmt.Fprintf(c.out, "API key %s revoked.\n", args[0])
			return err
		},
	}
}

func newAPIKeyUsageCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "usage <id>",
		Short: "Show usage and remaining daily quota for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u apikey.Usage
			if _, err := c.api.call(cmd.Context(), http.MethodGet, "/admin/v1/apikeys/"+url.PathEscape(args[0])+"/usage", nil, authAdmin, nil, &u); err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(u)
			}
			_, err := fmt.Fprintf(c.out, "Key:       %s\nPlan:      %s\nEnabled:   %t\nUses:      %d\nRemaining: %d/%d today\nLast used: %s\n",
				u.KeyID, u.Plan, u.Enabled, u.UsageCount, u.Remaining, u.DailyLimit, fmtTime(u.LastUsedAt))
			return err
		},
	}
}

func newCacheCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the server's scoring caches",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Drop every cached ranking and trending list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Purged int `json:"purged"`
			}
			if _, err := c.api.call(cmd.Context(), http.MethodPost, "/admin/v1/cache/purge", nil, authAdmin, nil, &out); err != nil {
				return err
			}
			_, err := fmt.Fprintf(c.out, "Purged %d cache entries.\n", out.Purged)
			return err
		},
	})
	return cmd
}
