package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"policy-report/internal/genai"
	"policy-report/internal/ingest"
	"policy-report/internal/mailstore"
	"policy-report/internal/model"
	"policy-report/internal/pdftext"
	"policy-report/internal/pipeline"
)

// runReport is the default command: fetch, normalize, aggregate, then
// drive the two-stage generation pipeline.
func runReport(cmd *cobra.Command, opts *options) error {
	window, err := resolveWindow(opts)
	if err != nil {
		return err
	}
	log := opts.log
	log.Infof("fetching range: %s -> %s", window.Since.Format(time.RFC3339), window.Until.Format(time.RFC3339))

	outDir := filepath.Join(opts.cfg.OutputDir, window.Until.Format("20060102")+"_policy")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	log.Info("saving files to", outDir)

	records, err := fetchAndNormalize(cmd.Context(), opts, window, outDir)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		log.Infof("no messages found in the range %s to %s",
			window.Since.Format("2006-01-02"), window.Until.Format("2006-01-02"))
		return nil
	}

	records = ingest.Dedupe(records, log)
	ingest.SortByCanonical(records, window.Since)

	start, end := ingest.PeriodBounds(records, window)
	startLabel, endLabel := start.Format("060102"), end.Format("060102")
	period := fmt.Sprintf("%s to %s", window.Since.Format("2006-01-02"), window.Until.Format("2006-01-02"))

	builder := &ingest.PayloadBuilder{ExtractPDF: pdftext.Extract, Logger: log}
	payload := builder.Build(records)

	payloadPath := filepath.Join(outDir, fmt.Sprintf("ALL_%s-%s.txt", startLabel, endLabel))
	if err := os.WriteFile(payloadPath, []byte(payload), 0o644); err != nil {
		return fmt.Errorf("writing merged payload: %w", err)
	}
	log.Info("merged payload saved to", payloadPath)

	dumpPath := opts.dumpPayload
	if dumpPath == "" {
		dumpPath = opts.cfg.DumpPayloadPath
	}
	if dumpPath != "" {
		if err := os.MkdirAll(filepath.Dir(dumpPath), 0o755); err != nil {
			return fmt.Errorf("creating dump directory: %w", err)
		}
		if err := os.WriteFile(dumpPath, []byte(payload), 0o644); err != nil {
			return fmt.Errorf("writing payload dump: %w", err)
		}
		log.Info("merged payload saved to", dumpPath)
	}

	run := model.NewRun(period, window.Since, window.Until)
	run.MessageCount = len(records)
	run.PayloadPath = payloadPath

	if opts.onlyDump {
		log.Info("--only-dump specified; skipping generation")
		run.Status = model.RunStatusDumped
		recordRun(cmd.Context(), opts, run)
		return nil
	}

	req := pipeline.Request{
		Payload:      payload,
		PayloadLabel: filepath.Base(payloadPath),
		Period:       period,
		ExtractPath:  filepath.Join(outDir, fmt.Sprintf("EXTRACT_%s-%s.json", startLabel, endLabel)),
		ReportPath:   filepath.Join(outDir, fmt.Sprintf("Weekly_report_%s-%s.md", startLabel, endLabel)),
		OnlyExtract:  opts.onlyExtract,
	}
	run.ExtractPath = req.ExtractPath
	run.ReportPath = req.ReportPath

	if opts.cfg.SkipGeneration {
		req.SkipGeneration = true
	} else {
		if opts.cfg.AIKey == "" {
			run.Status = model.RunStatusFailed
			recordRun(cmd.Context(), opts, run)
			return errMissingAPIKey
		}
		if opts.jsonInput != "" {
			data, err := os.ReadFile(opts.jsonInput)
			if err != nil {
				return fmt.Errorf("%w: %v", errJSONInput, err)
			}
			req.JSONInput = string(data)
		}
	}

	p := &pipeline.Pipeline{
		Client:        genai.NewClient(opts.cfg.AIProvider, opts.cfg.AIKey, log),
		Logger:        log,
		ModelExtract:  modelOr(opts.modelExtract, opts.cfg.ModelExtract),
		ModelGenerate: modelOr(opts.modelGenerate, opts.cfg.ModelGenerate),
	}

	err = p.Execute(cmd.Context(), req, executionMode(opts), opts.waitInterval)
	switch {
	case err != nil:
		run.Status = model.RunStatusFailed
	case executionMode(opts) == pipeline.ModeDetached:
		run.Status = model.RunStatusDetached
	case opts.onlyExtract:
		run.Status = model.RunStatusExtracted
	default:
		run.Status = model.RunStatusCompleted
	}
	recordRun(cmd.Context(), opts, run)
	return err
}

// fetchAndNormalize resolves the folder, pulls the candidate messages
// and normalizes them one at a time, skipping per-message failures.
func fetchAndNormalize(ctx context.Context, opts *options, window model.Window, outDir string) ([]*model.NormalizedMessage, error) {
	store, err := newStore(opts)
	if err != nil {
		return nil, err
	}

	folderPath := mailstore.SplitFolderPath(opts.folder)
	if len(folderPath) == 0 {
		folderPath = mailstore.SplitFolderPath(opts.cfg.FolderPath)
	}

	folder, err := store.ResolveFolder(ctx, folderPath)
	if err != nil {
		return nil, err
	}

	messages, err := folder.Messages(ctx, window.Since, window.Until)
	if err != nil {
		return nil, err
	}
	opts.log.Infof("mail store returned %d candidate messages from %q", len(messages), folder.Name())

	normalizer := &ingest.Normalizer{
		OutDir:    outDir,
		Window:    window,
		Logger:    opts.log,
		Synthetic: opts.cfg.UseMockEmails || opts.cfg.MailBackend == "mock",
	}

	var records []*model.NormalizedMessage
	for _, msg := range messages {
		rec, err := normalizer.Normalize(msg)
		if err != nil {
			if errors.Is(err, ingest.ErrSkipMessage) {
				opts.log.Info("skipping message:", err)
			} else {
				opts.log.Warn("failed to process a message:", err)
			}
			continue
		}
		opts.log.Infof("saved mail %s (canonical=%s raw_received=%s id=%s src=%s)",
			rec.BodyPath,
			rec.CanonicalTimestamp.Format("2006-01-02 15:04:05"),
			rec.RawReceivedTimestamp.Format("2006-01-02 15:04:05"),
			rec.Identity, rec.TimestampSource)
		records = append(records, rec)
	}
	return records, nil
}

// resolveWindow turns the --days/--since/--until flags into a closed
// local-time window, swapping reversed bounds.
func resolveWindow(opts *options) (model.Window, error) {
	now := time.Now()

	until := now
	if opts.until != "" {
		t, err := parseYMD(opts.until)
		if err != nil {
			return model.Window{}, err
		}
		until = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.Local)
	}

	var since time.Time
	if opts.since != "" {
		t, err := parseYMD(opts.since)
		if err != nil {
			return model.Window{}, err
		}
		since = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
	} else {
		since = until.AddDate(0, 0, -opts.days)
	}

	if since.After(until) {
		opts.log.Warn("since > until; swapping values")
		since, until = until, since
	}
	return model.Window{Since: since, Until: until}, nil
}

func parseYMD(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006/01/02", "2006.01.02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format for %q; expected YYYY-MM-DD", s)
}

func modelOr(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

func executionMode(opts *options) pipeline.Mode {
	switch {
	case opts.detach || opts.cfg.DetachGenerate:
		return pipeline.ModeDetached
	case opts.sync:
		return pipeline.ModeSync
	default:
		return pipeline.ModeProgress
	}
}

// recordRun appends to the run ledger; ledger failures are logged, not
// fatal.
func recordRun(ctx context.Context, opts *options, run *model.Run) {
	repo, err := newRunRepository(opts)
	if err != nil {
		opts.log.Warn("run ledger unavailable:", err)
		return
	}
	defer repo.Close()
	if err := repo.Create(ctx, run); err != nil {
		opts.log.Warn("failed to record run:", err)
	}
}
