// Package cli wires the components together behind a cobra command
// tree and maps run-level failures to distinct process exit codes.
package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"policy-report/internal/config"
	"policy-report/internal/logger"
	"policy-report/internal/mailstore"
	gmailstore "policy-report/internal/mailstore/gmail"
	imapstore "policy-report/internal/mailstore/imap"
	mockstore "policy-report/internal/mailstore/mock"
	"policy-report/internal/pipeline"
	"policy-report/internal/runlog"
)

// Exit codes, one per run-level failure cause.
const (
	exitOK            = 0
	exitUsage         = 1
	exitStore         = 2
	exitFolder        = 3
	exitMissingAPIKey = 4
	exitJSONInput     = 5
	exitExtraction    = 6
	exitReport        = 7
)

var (
	errMissingAPIKey = errors.New("OPENAI_API_KEY not found in environment; put it in .env or env vars")
	errJSONInput     = errors.New("failed to read --json-input")
)

// options carries flag values and the loaded configuration across
// commands.
type options struct {
	cfg *config.Config
	log *logger.Logger

	days          int
	since         string
	until         string
	folder        string
	dumpPayload   string
	onlyDump      bool
	onlyExtract   bool
	jsonInput     string
	modelExtract  string
	modelGenerate string
	detach        bool
	sync          bool
	waitInterval  time.Duration
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	opts := &options{}

	root := &cobra.Command{
		Use:           "policy-report",
		Short:         "Fetch policy-update emails for a date window and generate a Markdown report",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.log = logger.New()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, opts)
		},
	}

	root.Flags().IntVar(&opts.days, "days", 7, "how many days back to fetch emails")
	root.Flags().StringVar(&opts.since, "since", "", "start date YYYY-MM-DD (local)")
	root.Flags().StringVar(&opts.until, "until", "", "end date YYYY-MM-DD (local)")
	root.Flags().StringVar(&opts.folder, "folder", "", "folder path under the mailbox, e.g. Inbox/2. Policy Update")
	root.Flags().StringVar(&opts.dumpPayload, "dump-payload", "", "write the merged payload to this file")
	root.Flags().BoolVar(&opts.onlyDump, "only-dump", false, "only dump the merged payload and exit (skip generation)")
	root.Flags().BoolVar(&opts.onlyExtract, "only-extract", false, "only run the extraction stage and write the JSON artifact")
	root.Flags().StringVar(&opts.jsonInput, "json-input", "", "skip extraction and generate the report from this JSON file")
	root.Flags().StringVar(&opts.modelExtract, "model-extract", "", "model for the extraction stage (default from OPENAI_MODEL_EXTRACT)")
	root.Flags().StringVar(&opts.modelGenerate, "model-generate", "", "model for the report stage (default from OPENAI_MODEL_GENERATE)")
	root.Flags().BoolVar(&opts.detach, "detach", false, "run generation in the background and return immediately")
	root.Flags().BoolVar(&opts.sync, "sync", false, "run generation inline without progress polling")
	root.Flags().DurationVar(&opts.waitInterval, "wait-interval", 3*time.Second, "liveness log interval while waiting for generation")

	mailboxesCmd := &cobra.Command{
		Use:   "mailboxes",
		Short: "List available mailboxes and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listMailboxes(cmd, opts)
		},
	}

	var foldersDepth int
	foldersCmd := &cobra.Command{
		Use:   "folders",
		Short: "List folders under the mailbox and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listFolders(cmd, opts, foldersDepth)
		},
	}
	foldersCmd.Flags().IntVar(&foldersDepth, "depth", 2, "maximum folder depth to list")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List past report runs from the run ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(cmd, opts)
		},
	}

	root.AddCommand(mailboxesCmd, foldersCmd, runsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		return exitCode(err)
	}
	return exitOK
}

// exitCode maps the error taxonomy onto distinct exit codes.
func exitCode(err error) int {
	switch {
	case errors.Is(err, mailstore.ErrUnavailable):
		return exitStore
	case errors.Is(err, mailstore.ErrFolderNotFound):
		return exitFolder
	case errors.Is(err, errMissingAPIKey):
		return exitMissingAPIKey
	case errors.Is(err, errJSONInput):
		return exitJSONInput
	case errors.Is(err, pipeline.ErrExtraction):
		return exitExtraction
	case errors.Is(err, pipeline.ErrReport):
		return exitReport
	default:
		return exitUsage
	}
}

// newStore builds the configured mail-store backend.
func newStore(opts *options) (mailstore.Store, error) {
	if opts.cfg.UseMockEmails || opts.cfg.MailBackend == "mock" {
		return mockstore.NewStore(), nil
	}
	if err := opts.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", mailstore.ErrUnavailable, err)
	}
	switch opts.cfg.MailBackend {
	case "gmail":
		return gmailstore.NewStore(opts.cfg.GmailAccessToken, opts.log)
	default:
		return imapstore.NewStore(
			opts.cfg.IMAPHost, opts.cfg.IMAPPort,
			opts.cfg.IMAPUsername, opts.cfg.IMAPPassword,
			opts.cfg.IMAPTLS, opts.log,
		), nil
	}
}

func listMailboxes(cmd *cobra.Command, opts *options) error {
	store, err := newStore(opts)
	if err != nil {
		return err
	}
	names, err := store.ListMailboxes(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println("Mailboxes:")
	for _, name := range names {
		fmt.Println("-", name)
	}
	return nil
}

func listFolders(cmd *cobra.Command, opts *options, depth int) error {
	store, err := newStore(opts)
	if err != nil {
		return err
	}
	if depth < 1 {
		depth = 1
	}
	names, err := store.ListFolders(cmd.Context(), depth)
	if err != nil {
		return err
	}
	fmt.Println("Folders:")
	for _, name := range names {
		fmt.Println("-", name)
	}
	return nil
}

func listRuns(cmd *cobra.Command, opts *options) error {
	repo, err := newRunRepository(opts)
	if err != nil {
		return err
	}
	defer repo.Close()

	runs, err := repo.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}
	for _, run := range runs {
		fmt.Printf("%s  %-12s  %-25s  %3d messages  %s\n",
			run.CreatedAt.Format("2006-01-02 15:04"), run.Status, run.Period, run.MessageCount, run.ReportPath)
	}
	return nil
}

func newRunRepository(opts *options) (runlog.Repository, error) {
	if opts.cfg.RunLedgerPath == "" {
		return runlog.NewInMemoryRepository(), nil
	}
	return runlog.NewSQLiteRepository(opts.cfg.RunLedgerPath)
}
