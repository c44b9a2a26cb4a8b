package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hunseop/hoon-firewall-modules/internal/analysis"
	"github.com/hunseop/hoon-firewall-modules/internal/config"
	"github.com/hunseop/hoon-firewall-modules/internal/model"
	"github.com/hunseop/hoon-firewall-modules/internal/parser"
)

var (
	logLevel     string
	logFile      string
	profilesFile string

	ruleFile        string
	vendorName      string
	outFile         string
	ruleProvider    string
	dbDSN           string
	dbDevice        string
	resolveServices bool

	filterSource      string
	filterDestination string
	filterEither      string
	filterMode        string
	includeAny        bool
	useExtracted      bool

	beforeFile string
	afterFile  string
	outDir     string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fpat",
		Short: "Firewall policy analysis toolkit",
		Long: `fpat analyzes firewall security-policy exports to find redundant rules,
shadowed rules and policy drift, and to filter rule sets by IP criteria.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path (default: stderr)")
	rootCmd.PersistentFlags().StringVar(&profilesFile, "profiles", "", "YAML file with vendor profile overrides")

	rootCmd.AddCommand(newRedundancyCmd(), newShadowCmd(), newFilterCmd(), newDiffCmd(), newAuditCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&ruleFile, "file", "f", "", "Rule table CSV file (for 'csv' provider)")
	cmd.Flags().StringVar(&ruleProvider, "provider", "csv", "Rule provider: 'csv' or 'mariadb'")
	cmd.Flags().StringVar(&dbDSN, "db", "", "Database connection string (for 'mariadb' provider)")
	cmd.Flags().StringVar(&dbDevice, "device", "", "Device name to restrict DB queries to")
	cmd.Flags().BoolVar(&resolveServices, "resolve-services", false, "Map well-known service names to PROTOCOL/PORT tokens")
}

func newRedundancyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redundancy",
		Short: "Group rules with identical effective fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.SetDefault(setupLogger(logLevel, logFile))
			registry, err := loadProfiles()
			if err != nil {
				return err
			}
			table, err := loadRuleTable()
			if err != nil {
				return err
			}

			detector := analysis.NewRedundancyDetector(registry, slog.Default())
			start := time.Now()
			rows, err := detector.Analyze(table, model.Vendor(vendorName))
			if err != nil {
				return err
			}
			slog.Info("Redundancy analysis finished", "rows", len(rows), "duration", time.Since(start))
			return writeFile(outFile, func(w io.Writer) error {
				return parser.WriteRedundancy(w, table.Columns, rows)
			})
		},
	}
	addInputFlags(cmd)
	cmd.Flags().StringVarP(&vendorName, "vendor", "v", "default", "Firewall vendor (paloalto, ngf, mf2, default)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "redundancy.csv", "Output CSV file")
	return cmd
}

func newShadowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shadow",
		Short: "Find rules fully covered by an earlier rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.SetDefault(setupLogger(logLevel, logFile))
			table, err := loadRuleTable()
			if err != nil {
				return err
			}

			detector := analysis.NewShadowDetector(slog.Default())
			start := time.Now()
			rows, err := detector.Analyze(table, model.Vendor(vendorName), &analysis.ShadowOptions{
				Progress: func(done, total int) {
					percent := float64(done) / float64(total) * 100
					slog.Info("Shadow analysis progress", "done", done, "total", total, "percent", fmt.Sprintf("%.1f", percent))
				},
			})
			if err != nil {
				return err
			}
			slog.Info("Shadow analysis finished", "shadowed", len(rows), "duration", time.Since(start))
			return writeFile(outFile, func(w io.Writer) error {
				return parser.WriteShadow(w, table.Columns, rows)
			})
		},
	}
	addInputFlags(cmd)
	cmd.Flags().StringVarP(&vendorName, "vendor", "v", "default", "Firewall vendor (paloalto, ngf, mf2, default)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "shadow.csv", "Output CSV file")
	return cmd
}

func newFilterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Select rules matching an address query",
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.SetDefault(setupLogger(logLevel, logFile))
			table, err := loadRuleTable()
			if err != nil {
				return err
			}

			opts := analysis.FilterOptions{IncludeAny: includeAny, UseExtracted: useExtracted}
			filter := analysis.NewRuleFilter(slog.Default())

			var result *model.Table
			if filterEither != "" {
				result, err = filter.ByEither(table, filterEither, opts)
			} else {
				result, err = filter.ByCriteria(table, analysis.Criteria{
					Source:      filterSource,
					Destination: filterDestination,
					Mode:        analysis.MatchMode(strings.ToUpper(filterMode)),
				}, opts)
			}
			if err != nil {
				return err
			}
			slog.Info("Filter finished", "matched", result.Len(), "total", table.Len())
			return writeFile(outFile, func(w io.Writer) error {
				return parser.WriteTable(w, result)
			})
		},
	}
	addInputFlags(cmd)
	cmd.Flags().StringVar(&filterSource, "source", "", "Source address query (IP, CIDR or range)")
	cmd.Flags().StringVar(&filterDestination, "destination", "", "Destination address query (IP, CIDR or range)")
	cmd.Flags().StringVar(&filterEither, "either", "", "Match the query against source or destination")
	cmd.Flags().StringVar(&filterMode, "mode", "AND", "Combine source and destination criteria: AND or OR")
	cmd.Flags().BoolVar(&includeAny, "include-any", true, "Match rules whose field is 'any'")
	cmd.Flags().BoolVar(&useExtracted, "use-extracted", true, "Prefer object-resolved Extracted columns")
	cmd.Flags().StringVarP(&outFile, "out", "o", "filtered.csv", "Output CSV file")
	return cmd
}

func newDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare two rule table versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.SetDefault(setupLogger(logLevel, logFile))

			before, err := loadCSV(beforeFile)
			if err != nil {
				return err
			}
			after, err := loadCSV(afterFile)
			if err != nil {
				return err
			}

			cs, err := analysis.Diff(before, after)
			if err != nil {
				return err
			}
			slog.Info("Diff finished", "added", len(cs.Added), "removed", len(cs.Removed), "changed", len(cs.Changed))

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			added := &model.Table{Columns: after.Columns, Rules: cs.Added}
			removed := &model.Table{Columns: before.Columns, Rules: cs.Removed}
			if err := writeFile(filepath.Join(outDir, "added.csv"), func(w io.Writer) error {
				return parser.WriteTable(w, added)
			}); err != nil {
				return err
			}
			if err := writeFile(filepath.Join(outDir, "removed.csv"), func(w io.Writer) error {
				return parser.WriteTable(w, removed)
			}); err != nil {
				return err
			}
			return writeFile(filepath.Join(outDir, "changed.csv"), func(w io.Writer) error {
				return parser.WriteChanged(w, cs.Changed)
			})
		},
	}
	cmd.Flags().StringVar(&beforeFile, "before", "", "Rule table CSV before the change")
	cmd.Flags().StringVar(&afterFile, "after", "", "Rule table CSV after the change")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "diff-results", "Directory for added/removed/changed CSV files")
	cmd.MarkFlagRequired("before")
	cmd.MarkFlagRequired("after")
	return cmd
}

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run redundancy and shadow analysis in one pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.SetDefault(setupLogger(logLevel, logFile))
			registry, err := loadProfiles()
			if err != nil {
				return err
			}
			table, err := loadRuleTable()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			vendor := model.Vendor(vendorName)
			start := time.Now()

			// Each analysis gets its own copy of the table; the analyses are
			// pure, so running them concurrently is safe.
			g, _ := errgroup.WithContext(context.Background())
			g.Go(func() error {
				rows, err := analysis.NewRedundancyDetector(registry, slog.Default()).Analyze(table.Clone(), vendor)
				if err != nil {
					return fmt.Errorf("redundancy: %w", err)
				}
				return writeFile(filepath.Join(outDir, "redundancy.csv"), func(w io.Writer) error {
					return parser.WriteRedundancy(w, table.Columns, rows)
				})
			})
			g.Go(func() error {
				rows, err := analysis.NewShadowDetector(slog.Default()).Analyze(table.Clone(), vendor, nil)
				if err != nil {
					return fmt.Errorf("shadow: %w", err)
				}
				return writeFile(filepath.Join(outDir, "shadow.csv"), func(w io.Writer) error {
					return parser.WriteShadow(w, table.Columns, rows)
				})
			})
			if err := g.Wait(); err != nil {
				return err
			}
			slog.Info("Audit finished", "duration", time.Since(start), "out_dir", outDir)
			return nil
		},
	}
	addInputFlags(cmd)
	cmd.Flags().StringVarP(&vendorName, "vendor", "v", "default", "Firewall vendor (paloalto, ngf, mf2, default)")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "audit-results", "Directory for result CSV files")
	return cmd
}

func setupLogger(level, logFilePath string) *slog.Logger {
	var logWriter io.Writer = os.Stderr
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err == nil {
			logWriter = f
		}
		// The logger isn't set up yet, so a failure here silently falls
		// back to stderr.
	}

	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "INFO":
		lvl = slog.LevelInfo
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: lvl}))
}

func loadProfiles() (*config.Registry, error) {
	registry := config.NewRegistry()
	if profilesFile != "" {
		if err := registry.LoadOverrides(profilesFile); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func loadRuleTable() (*model.Table, error) {
	var table *model.Table
	var err error
	switch ruleProvider {
	case "csv":
		if ruleFile == "" {
			return nil, fmt.Errorf("rule file path must be provided for csv provider")
		}
		table, err = loadCSV(ruleFile)
	case "mariadb":
		if dbDSN == "" {
			return nil, fmt.Errorf("database connection string must be provided for mariadb provider")
		}
		var p *parser.MariaDBProvider
		p, err = parser.NewMariaDBProvider(dbDSN)
		if err != nil {
			return nil, err
		}
		defer p.Close()
		table, err = p.LoadTable(dbDevice)
	default:
		return nil, fmt.Errorf("unknown rule provider: %s", ruleProvider)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("Rule table loaded", "provider", ruleProvider, "rules", table.Len())
	if resolveServices {
		parser.ResolveWellKnownServices(table)
	}
	return table, nil
}

func loadCSV(path string) (*model.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rule table: %w", err)
	}
	defer f.Close()
	return parser.LoadTable(f)
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()
	if err := fn(f); err != nil {
		return err
	}
	slog.Info("Result written", "path", path)
	return f.Close()
}
