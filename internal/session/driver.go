// Package session runs the request cycle: it takes batches from the mailbox,
// interprets their commands, talks to the model and writes the reply back
// where the editor can see it.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/vimlm/internal/command"
	"github.com/ChamsBouzaiene/vimlm/internal/deploy"
	"github.com/ChamsBouzaiene/vimlm/internal/engine"
	"github.com/ChamsBouzaiene/vimlm/internal/indexer"
	"github.com/ChamsBouzaiene/vimlm/internal/logging"
	"github.com/ChamsBouzaiene/vimlm/internal/mailbox"
	"github.com/ChamsBouzaiene/vimlm/internal/model"
	"github.com/ChamsBouzaiene/vimlm/internal/prompts"
)

// DefaultTokenBudget is used when Config.TokenBudget is not set.
const DefaultTokenBudget = 2000

// Ingester builds include text for a path.
type Ingester interface {
	Ingest(ctx context.Context, path string, tokenBudget int) string
}

// Config configures a Driver.
type Config struct {
	MailboxDir     string
	TokenBudget    int
	Separator      string
	DeployReformat bool
	WorkDir        string // base for relative paths; empty = process working directory
	Logger         *zap.Logger
}

// Driver processes one batch at a time. It owns the model conversation.
type Driver struct {
	model        model.Capability
	ingester     Ingester
	budget       int
	separator    string
	reformat     bool
	workDir      string
	responsePath string
	logger       *zap.Logger
}

// NewDriver creates a Driver.
func NewDriver(m model.Capability, ingester Ingester, cfg Config) *Driver {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	budget := cfg.TokenBudget
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	sep := cfg.Separator
	if sep == "" {
		sep = command.DefaultSeparator
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		if wd, err := os.Getwd(); err == nil {
			workDir = wd
		}
	}

	return &Driver{
		model:        m,
		ingester:     ingester,
		budget:       budget,
		separator:    sep,
		reformat:     cfg.DeployReformat,
		workDir:      workDir,
		responsePath: filepath.Join(cfg.MailboxDir, mailbox.ResponseFile),
		logger:       logger,
	}
}

// ResponsePath is the file the editor displays.
func (d *Driver) ResponsePath() string {
	return d.responsePath
}

// Run dispatches batches from in until it is closed, ctx is done, or a quit
// batch arrives.
func (d *Driver) Run(ctx context.Context, in <-chan mailbox.RequestBatch) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-in:
			if !ok {
				return nil
			}
			if batch.Quit {
				d.logger.Info("quit requested", zap.String("id", batch.ID))
				return nil
			}
			if err := d.Dispatch(ctx, batch); err != nil {
				d.logger.Error("dispatch failed", zap.String("id", batch.ID), zap.Error(err))
			}
		}
	}
}

// Dispatch runs one request cycle. Model and deploy failures are reported in
// the response file; only failing to write that file is returned.
func (d *Driver) Dispatch(ctx context.Context, batch mailbox.RequestBatch) error {
	d.debug("batch", zap.String("id", batch.ID), zap.String("user", batch.User), zap.String("tree", batch.Tree))

	target := batch.Target(d.responsePath, d.workDir)
	plan := command.NewPlan(command.Parse(batch.User, d.separator), command.Flags{Followup: batch.Followup}, d.budget)

	switch {
	case plan.Resume:
		return d.resume(ctx, plan.ResumeBudget)
	case plan.DeployNow:
		return d.deployNow(ctx, d.resolve(plan.DeployDest, target.Dir))
	}

	if plan.Reset {
		d.model.Reset()
	}

	var include string
	if len(plan.Includes) > 0 {
		if err := d.WriteResponse("Ingesting..."); err != nil {
			return err
		}
		include = d.ingest(ctx, plan.Includes, target.Dir)
	}
	if plan.IngestOnly {
		return d.WriteResponse(include)
	}

	userPrompt := plan.Prompt
	if plan.DeployAfter {
		userPrompt += "\n\n" + prompts.MustRender(prompts.DeployInstructionsID, nil)
	}
	prompt := assemblePrompt(batch, target, userPrompt, include)

	res, err := d.generate(ctx, prompt)
	if err != nil {
		return d.reportError(err)
	}
	if err := d.WriteResponse(strings.TrimSpace(res.Text)); err != nil {
		return err
	}

	if plan.DeployAfter {
		d.deploy(res.Text, d.resolve(plan.DeployDest, target.Dir))
	}
	return nil
}

func (d *Driver) ingest(ctx context.Context, includes []string, dir string) string {
	var sb strings.Builder
	for _, p := range includes {
		path := d.resolve(p, dir)
		text := d.ingester.Ingest(ctx, path, d.budget)
		d.logger.Info(text, logging.Key(logging.KeyRetrieve), zap.String("path", path))
		sb.WriteString(text)
	}
	return sb.String()
}

// resolve expands p against the current directory. An empty p means dir.
func (d *Driver) resolve(p, dir string) string {
	if p == "" {
		return dir
	}
	p = indexer.ExpandHome(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(d.workDir, p)
	}
	return p
}

// maxNew is what is left of the budget after the prompt, or a quarter of the
// budget when the prompt alone uses it up.
func (d *Driver) maxNew(prompt string) int {
	n := d.budget - d.model.CountTokens(prompt)
	if n <= 0 {
		n = d.budget / 4
	}
	return n
}

func (d *Driver) generate(ctx context.Context, prompt string) (model.Result, error) {
	d.logger.Info(prompt, logging.Key(logging.KeyToLLM))
	if err := d.WriteResponse(""); err != nil {
		return model.Result{}, err
	}

	sink, err := d.streamTo()
	if err != nil {
		return model.Result{}, err
	}
	defer sink.Close()

	res, err := d.model.Generate(ctx, prompt, d.maxNew(prompt), sink)
	if err != nil {
		return model.Result{}, err
	}
	d.logStats(res)
	return res, nil
}

func (d *Driver) resume(ctx context.Context, budget int) error {
	last := d.model.LastResponse()
	if last == "" {
		return d.WriteResponse("Nothing to continue.")
	}
	if err := d.WriteResponse(last); err != nil {
		return err
	}

	sink, err := d.streamTo()
	if err != nil {
		return err
	}
	res, err := d.model.Resume(ctx, budget, sink)
	sink.Close()
	if err != nil {
		return d.reportError(err)
	}
	d.logStats(res)
	return d.WriteResponse(strings.TrimSpace(d.model.LastResponse()))
}

func (d *Driver) deployNow(ctx context.Context, dest string) error {
	text := d.model.LastResponse()
	if text == "" {
		return d.WriteResponse("Nothing to deploy.")
	}
	if d.reformat {
		if err := d.WriteResponse("Reformatting..."); err != nil {
			return err
		}
		reformatted, err := deploy.Reformat(ctx, d.model, text, d.budget)
		if err != nil {
			return d.reportError(err)
		}
		text = reformatted
	}

	written := d.deploy(text, dest)
	if len(written) == 0 {
		return d.WriteResponse("Nothing to deploy.")
	}
	return d.WriteResponse("Deployed:\n- " + strings.Join(written, "\n- "))
}

func (d *Driver) deploy(text, dest string) []string {
	written, err := deploy.ExtractAndWrite(text, dest)
	if err != nil {
		d.logger.Warn("deploy failed", zap.String("dest", dest), zap.Error(err))
	}
	if len(written) > 0 {
		d.logger.Info("deployed", zap.String("dest", dest), zap.Strings("files", written))
	}
	return written
}

func (d *Driver) logStats(res model.Result) {
	d.logger.Info(fmt.Sprintf("%.2f tokens-per-sec", res.Stats.TokensPerSecond),
		logging.Key(logging.KeyTPS),
		zap.Int("tokens", res.Tokens),
		zap.Int("prompt_tokens", res.Stats.PromptTokens),
		zap.Duration("elapsed", res.Stats.Elapsed),
		zap.String("finish", res.Stats.FinishReason),
		zap.Bool("truncated", d.model.Truncated()),
	)
}

func (d *Driver) reportError(err error) error {
	if errors.Is(err, model.ErrNothingToResume) {
		return d.WriteResponse("Nothing to continue.")
	}
	exhausted := engine.IsRetryExhausted(err)
	d.logger.Error("model call failed", zap.Bool("retries_exhausted", exhausted), zap.Error(err))
	if exhausted {
		return d.WriteResponse(fmt.Sprintf("Error: model unavailable, %v", err))
	}
	return d.WriteResponse(fmt.Sprintf("Error: %v", err))
}
