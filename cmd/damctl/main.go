// Command damctl manages files in a DAM from the command line
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/damsdk/dam"
	"github.com/example/damsdk/internal/config"
	"github.com/example/damsdk/internal/fileutil"
	"github.com/example/damsdk/models"
)

// app carries the state shared by all commands
type app struct {
	configFile string
	apiURL     string
	keyID      string
	keySecret  string
	timeout    time.Duration
	verbose    bool

	settings *config.Settings
	logger   *zap.Logger
	client   *dam.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "damctl",
		Short:         "DAM command line client",
		Long:          `Upload, list, transform and mirror files stored in a DAM.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "damctl.json", "Configuration file path")
	flags.StringVar(&a.apiURL, "api-url", "", "DAM API base URL")
	flags.StringVar(&a.keyID, "key-id", "", "API key ID")
	flags.StringVar(&a.keySecret, "key-secret", "", "API key secret")
	flags.DurationVar(&a.timeout, "timeout", 0, "Total timeout per request, retries included")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newUploadCmd(a),
		newListCmd(a),
		newGetCmd(a),
		newDeleteCmd(a),
		newBulkDeleteCmd(a),
		newURLCmd(a),
		newThumbnailCmd(a),
		newDownloadCmd(a),
		newStatsCmd(a),
		newMirrorCmd(a),
		newImportCmd(a),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	settings, err := config.Load(a.configFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		settings.API.URL = a.apiURL
	}
	if flags.Changed("key-id") {
		settings.API.KeyID = a.keyID
	}
	if flags.Changed("key-secret") {
		settings.API.KeySecret = a.keySecret
	}
	if flags.Changed("timeout") {
		settings.HTTP.Timeout = config.Duration(a.timeout)
	}
	if a.verbose {
		settings.Log.Level = "debug"
	}
	a.settings = settings

	logger, err := settings.Logger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger

	cfg, err := settings.ClientConfig(cmd.Context(), logger)
	if err != nil {
		return err
	}
	client, err := dam.NewClient(cfg)
	if err != nil {
		return err
	}
	a.client = client
	return nil
}

func (a *app) teardown() {
	if a.client != nil {
		a.client.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// fileView adds a human readable size to a file record
type fileView struct {
	*models.File
	SizeHuman string `json:"size_human"`
}

func viewFile(f *models.File) fileView {
	return fileView{File: f, SizeHuman: formatBytes(f.Size)}
}

func formatBytes(size int64) string {
	return fileutil.FormatBytes(size)
}

func viewFiles(files []models.File) []fileView {
	views := make([]fileView, len(files))
	for i := range files {
		views[i] = viewFile(&files[i])
	}
	return views
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
