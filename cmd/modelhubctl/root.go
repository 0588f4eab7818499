package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultURL = "http://localhost:8080"

// cli carries resolved settings and the output stream for every command.
type cli struct {
	v       *viper.Viper
	out     io.Writer
	cfgFile string
	jsonOut bool
	api     *client
}

func newRootCommand(out io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), out: out}

	cmd := &cobra.Command{
		Use:   "modelhubctl",
		Short: "modelhubctl - CLI for the modelhub catalog API",
		Long: `modelhubctl queries and administers a modelhub server.

Settings are read, lowest precedence first, from ~/.modelhub/config.yaml,
~/.modelhub/env, MODELHUBCTL_* environment variables and flags.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}
	cmd.SetOut(out)

	pf := cmd.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default ~/.modelhub/config.yaml)")
	pf.String("url", defaultURL, "modelhub base URL")
	pf.String("api-key", "", "API key for scored endpoints")
	pf.String("admin-token", "", "admin bearer token")
	pf.BoolVar(&c.jsonOut, "json", false, "print raw JSON instead of tables")

	cmd.AddCommand(newVersionCommand(c))
	cmd.AddCommand(newHealthCommand(c))
	cmd.AddCommand(newModelsCommand(c))
	cmd.AddCommand(newRankCommand(c))
	cmd.AddCommand(newCompareCommand(c))
	cmd.AddCommand(newSimilarCommand(c))
	cmd.AddCommand(newLeaderboardCommand(c))
	cmd.AddCommand(newTrendingCommand(c))
	cmd.AddCommand(newSeedCommand(c))
	cmd.AddCommand(newAPIKeyCommand(c))
	cmd.AddCommand(newCacheCommand(c))

	return cmd
}

// load resolves configuration through viper and builds the API client.
func (c *cli) load(cmd *cobra.Command) error {
	loadEnvFile()

	v := c.v
	v.SetDefault("url", defaultURL)
	if c.cfgFile != "" {
		v.SetConfigFile(c.cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".modelhub"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("MODELHUBCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// The server's state env file exports the admin token under its own name.
	_ = v.BindEnv("admin_token", "MODELHUBCTL_ADMIN_TOKEN", "MODELHUB_ADMIN_TOKEN")

	flags := cmd.Flags()
	for key, flag := range map[string]string{"url": "url", "api_key": "api-key", "admin_token": "admin-token"} {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	c.api = newClient(v.GetString("url"), v.GetString("api_key"), v.GetString("admin_token"))
	return nil
}

// loadEnvFile reads ~/.modelhub/env and sets any key=value pairs not already
// present in the process environment.
func loadEnvFile() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	data, err := os.ReadFile(filepath.Join(home, ".modelhub", "env"))
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if os.Getenv(strings.TrimSpace(k)) == "" {
			_ = os.Setenv(strings.TrimSpace(k), strings.TrimSpace(val))
		}
	}
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(c.out, "modelhubctl %s\n", version)
			return err
		},
	}
}

func newHealthCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, status, err := c.api.health(cmd.Context())
			if err != nil {
				return err
			}
			if c.jsonOut {
				if err := c.printJSON(rep); err != nil {
					return err
				}
			} else {
				printHealth(c.out, rep)
			}
			if status >= 400 {
				return fmt.Errorf("server reports %v", rep["status"])
			}
			return nil
		},
	}
}
