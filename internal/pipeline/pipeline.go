package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"policy-report/internal/genai"
	"policy-report/internal/logger"
	"policy-report/internal/prompts"
)

// ErrExtraction marks a failed extraction-stage generation call.
var ErrExtraction = errors.New("extraction stage failed")

// ErrReport marks a failed report-stage generation call.
var ErrReport = errors.New("report stage failed")

// Mode selects the execution shape of a pipeline run.
type Mode int

const (
	// ModeSync runs the stages in the caller's flow of control.
	ModeSync Mode = iota
	// ModeDetached runs the stages in the background; the caller
	// returns immediately and observes errors only via logs.
	ModeDetached
	// ModeProgress runs the stages concurrently while logging a
	// liveness message at a fixed interval, then surfaces the result.
	ModeProgress
)

// Pipeline sequences the extraction stage and the report stage.
// Within one run, extraction completes (or fails) before the report
// stage starts; the only bypass is a pre-supplied JSON document.
type Pipeline struct {
	Client        genai.Client
	Logger        *logger.Logger
	ModelExtract  string
	ModelGenerate string
}

// Request describes one pipeline run. Transitions are strictly
// forward: payload -> extracted JSON -> report Markdown.
type Request struct {
	Payload      string
	PayloadLabel string
	Period       string

	ExtractPath string
	ReportPath  string

	// JSONInput, when non-empty, skips the extraction stage entirely
	// and feeds the report stage directly.
	JSONInput string

	// OnlyExtract stops the run after the extraction artifact is
	// written.
	OnlyExtract bool

	// SkipGeneration writes a placeholder report without calling the
	// generation service at all.
	SkipGeneration bool
}

// Extract runs the extraction stage: one generation call under the
// extractor contract, then best-effort JSON recovery. The bool reports
// whether the returned text is valid JSON.
func (p *Pipeline) Extract(ctx context.Context, payload, fileLabel string) (string, bool, error) {
	response, err := p.Client.Complete(ctx, p.ModelExtract, prompts.ExtractorSystem, prompts.ExtractorUser(fileLabel, payload))
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	text, valid := RecoverJSON(response)
	return text, valid, nil
}

// GenerateReport runs the report stage: one generation call under the
// report-authoring contract. The output is opaque Markdown; no JSON
// validation is performed on it.
func (p *Pipeline) GenerateReport(ctx context.Context, structuredJSON, period string) (string, error) {
	md, err := p.Client.Complete(ctx, p.ModelGenerate, prompts.ReportSystem, prompts.ReportUser(structuredJSON, period))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrReport, err)
	}
	return md, nil
}

// Run executes the stage sequence synchronously and writes the
// artifacts.
func (p *Pipeline) Run(ctx context.Context, req Request) error {
	if req.SkipGeneration {
		placeholder := "SKIPPED: generation call was bypassed for testing.\n"
		if err := os.WriteFile(req.ReportPath, []byte(placeholder), 0o644); err != nil {
			return fmt.Errorf("%w: writing placeholder report: %v", ErrReport, err)
		}
		p.Logger.Info("generation skipped; placeholder report saved to", req.ReportPath)
		return nil
	}

	structuredJSON := req.JSONInput
	if structuredJSON == "" {
		text, valid, err := p.Extract(ctx, req.Payload, req.PayloadLabel)
		if err != nil {
			return err
		}
		if err := p.writeExtract(req.ExtractPath, text, valid); err != nil {
			return err
		}
		if req.OnlyExtract {
			p.Logger.Info("stopping after extraction stage")
			return nil
		}
		structuredJSON = text
	} else {
		p.Logger.Info("using supplied JSON; skipping extraction stage")
	}

	md, err := p.GenerateReport(ctx, structuredJSON, req.Period)
	if err != nil {
		return err
	}
	if err := os.WriteFile(req.ReportPath, []byte(md), 0o644); err != nil {
		return fmt.Errorf("%w: writing report: %v", ErrReport, err)
	}
	p.Logger.Info("report (Markdown) saved to", req.ReportPath)
	return nil
}

// writeExtract persists the extraction artifact: indented JSON when the
// text validated, the raw text with a warning otherwise. A malformed
// extraction is not fatal to the run.
func (p *Pipeline) writeExtract(path, text string, valid bool) error {
	data := []byte(text)
	if valid {
		var indented bytes.Buffer
		if err := json.Indent(&indented, data, "", "  "); err == nil {
			data = indented.Bytes()
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing extraction artifact: %v", ErrExtraction, err)
	}
	if valid {
		p.Logger.Info("extracted JSON saved to", path)
	} else {
		p.Logger.Warn("extracted content is not valid JSON; raw text saved to", path)
	}
	return nil
}

// Execute runs Run under the requested execution shape. ModeDetached
// returns immediately with a nil error; its run reports only through
// logs.
func (p *Pipeline) Execute(ctx context.Context, req Request, mode Mode, interval time.Duration) error {
	switch mode {
	case ModeDetached:
		Go(func() error {
			if err := p.Run(ctx, req); err != nil {
				p.Logger.Error("detached pipeline run failed:", err)
				return err
			}
			return nil
		})
		p.Logger.Info("pipeline detached; generation continues in background")
		return nil
	case ModeProgress:
		task := Go(func() error { return p.Run(ctx, req) })
		return task.WaitWithProgress(interval, func() {
			p.Logger.Info("waiting for generation result...")
		})
	default:
		return p.Run(ctx, req)
	}
}
