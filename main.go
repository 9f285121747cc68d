package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/history"
	"github.com/clipforge/clipforge/internal/intent"
	"github.com/clipforge/clipforge/internal/logging"
	"github.com/clipforge/clipforge/internal/scene"
	"github.com/clipforge/clipforge/pkg/director"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit %d", e.code)
}

var (
	rootCmd = &cobra.Command{
		Use:   "clipforge",
		Short: "Natural-language video editing over a scene index",
		Long: `clipforge turns a natural-language editing instruction into a validated
edit plan and runs it against ffmpeg.

Examples:
  # Plan without executing
  clipforge plan demo_video "keep only the demo" --index-dir ./index

  # Interpret and run
  clipforge run demo_video "keep only the demo" -s input.mp4 -o ./edited`,
		SilenceUsage: true,
		// main owns the final error print; without this cobra prints it too.
		SilenceErrors: true,
	}

	runCmd = &cobra.Command{
		Use:   "run <video_id> <instruction>",
		Short: "Interpret an instruction and execute the resulting edit plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if src, _ := cmd.Flags().GetString("source"); src == "" {
				return fmt.Errorf("run requires --source")
			}
			d, store, log, err := buildDirector(cmd)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			report, err := d.Run(cmd.Context(), args[0], args[1])
			if err != nil {
				if errors.Is(err, intent.ErrInterpretationFailed) || errors.Is(err, intent.ErrNoMatchingContent) {
					return &exitError{code: 2, err: err}
				}
				return err
			}

			printReport(report)
			if !report.AllOK() {
				return &exitError{code: 1, err: errors.New("one or more operations failed")}
			}
			for _, artifact := range report.FinalArtifacts() {
				log.Infof("wrote %s", artifact)
			}
			return nil
		},
	}

	planCmd = &cobra.Command{
		Use:   "plan <video_id> <instruction>",
		Short: "Interpret an instruction and print the validated plan as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, store, _, err := buildDirector(cmd)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			p, err := d.Plan(cmd.Context(), args[0], args[1])
			if err != nil {
				if errors.Is(err, intent.ErrInterpretationFailed) || errors.Is(err, intent.ErrNoMatchingContent) {
					return &exitError{code: 2, err: err}
				}
				return err
			}
			return printJSON(p)
		},
	}

	scenesCmd = &cobra.Command{
		Use:   "scenes <video_id>",
		Short: "Print the scene index for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := buildSource(cmd, "")
			if err != nil {
				return err
			}
			scenes, err := src.Scenes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(scenes)
		},
	}

	historyCmd = &cobra.Command{
		Use:   "history [video_id]",
		Short: "List recorded execution results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("history-db")
			if path == "" {
				return fmt.Errorf("history requires --history-db")
			}
			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			videoID := ""
			if len(args) == 1 {
				videoID = args[0]
			}
			limit, _ := cmd.Flags().GetInt("limit")
			records, err := store.List(cmd.Context(), videoID, limit)
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}
)

func buildOptions(cmd *cobra.Command) config.Options {
	opts := config.Options{}
	opts.SourcePath, _ = cmd.Flags().GetString("source")
	opts.OutputDir, _ = cmd.Flags().GetString("output-dir")
	opts.TempDir, _ = cmd.Flags().GetString("temp-dir")
	opts.IndexDir, _ = cmd.Flags().GetString("index-dir")
	opts.WorkerLimit, _ = cmd.Flags().GetInt("workers")
	opts.MaxRetries, _ = cmd.Flags().GetInt("max-retries")
	opts.FallbackFull, _ = cmd.Flags().GetBool("fallback-full")
	opts.HistoryPath, _ = cmd.Flags().GetString("history-db")
	opts.Verbose, _ = cmd.Flags().GetBool("verbose")
	opts.RetryBackoff = 500 * time.Millisecond
	opts.Defaults()
	return opts
}

func buildSource(cmd *cobra.Command, instruction string) (scene.Source, error) {
	searchURL, _ := cmd.Flags().GetString("search-url")
	if searchURL != "" {
		indexID, _ := cmd.Flags().GetString("search-index")
		client := scene.NewSearchClient(searchURL, indexID, os.Getenv("SEARCH_API_KEY"))
		return scene.QuerySource{Client: client, Query: instruction}, nil
	}

	indexDir, _ := cmd.Flags().GetString("index-dir")
	if indexDir == "" {
		return nil, fmt.Errorf("either --index-dir or --search-url is required")
	}
	return scene.NewFileSource(indexDir), nil
}

func buildResolver(cmd *cobra.Command) (intent.Resolver, error) {
	name, _ := cmd.Flags().GetString("resolver")
	switch name {
	case "", "keyword":
		return intent.KeywordResolver{}, nil
	case "llm":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("--resolver llm requires OPENAI_API_KEY")
		}
		baseURL, _ := cmd.Flags().GetString("llm-base-url")
		model, _ := cmd.Flags().GetString("llm-model")
		return intent.NewLLMResolver(apiKey, baseURL, model), nil
	default:
		return nil, fmt.Errorf("unknown resolver: %s (supported: keyword, llm)", name)
	}
}

func buildDirector(cmd *cobra.Command) (*director.Director, *history.Store, *logrus.Logger, error) {
	opts := buildOptions(cmd)
	log := logging.New(filepath.Join(opts.TempDir, "logs"), opts.Verbose)

	instruction := ""
	if args := cmd.Flags().Args(); len(args) == 2 {
		instruction = args[1]
	}
	src, err := buildSource(cmd, instruction)
	if err != nil {
		return nil, nil, nil, err
	}

	resolver, err := buildResolver(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	var dirOpts []director.Option
	var store *history.Store
	if opts.HistoryPath != "" {
		store, err = history.Open(opts.HistoryPath)
		if err != nil {
			log.WithError(err).Warn("history disabled")
			store = nil
		} else {
			dirOpts = append(dirOpts, director.WithHistory(store))
		}
	}

	return director.New(opts, src, resolver, log, dirOpts...), store, log, nil
}

func printReport(report *director.Report) {
	for _, res := range report.Results {
		line := fmt.Sprintf("%-12s %s", res.OperationID, res.Status)
		if res.ErrorDetail != "" {
			line += "  " + res.ErrorDetail
		}
		fmt.Println(line)
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	fmt.Println(string(out))
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("source", "s", "", "Source video file")
	pf.StringP("output-dir", "o", "edited/videos", "Directory for final artifacts")
	pf.String("temp-dir", "temp/clips", "Directory for intermediate segments and logs")
	pf.String("index-dir", "", "Directory of scene index files (<video_id>.json)")
	pf.String("search-url", "", "Base URL of the hosted video-search API (overrides --index-dir)")
	pf.String("search-index", "", "Search API index id")
	pf.String("resolver", "keyword", "Intent resolver (keyword or llm)")
	pf.String("llm-model", "", "Model for the llm resolver")
	pf.String("llm-base-url", "", "Base URL for the llm resolver")
	pf.Int("workers", 2, "Maximum concurrent transcoder processes")
	pf.Int("max-retries", 2, "Retries for transient execution failures")
	pf.Bool("fallback-full", false, "Fall back to a full-video plan when nothing matches")
	pf.String("history-db", "", "Sqlite file for execution history (empty disables)")
	pf.Int("limit", 50, "Maximum history records to list")
	pf.BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(scenesCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, ee.Error())
			os.Exit(ee.code)
		}
		fmt.Println(err)
		os.Exit(1)
	}
}
