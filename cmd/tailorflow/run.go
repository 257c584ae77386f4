package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/tailorflow/types"
)

// =============================================================================
// ✂️ run 命令
// =============================================================================

// 退出码
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// runTailor 执行一次定制。文档写到 --out 或 stdout，摘要与日志写到 stderr。
func runTailor(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	resumePath := fs.String("resume", "", "Path to the LaTeX resume")
	jobPath := fs.String("job", "", "Path to the job description")
	threshold := fs.Float64("threshold", -1, "Compliance threshold 0..100 (default from config)")
	configPath := fs.String("config", "", "Path to config file")
	outPath := fs.String("out", "", "Write the tailored document to this file")
	disable := fs.String("disable", "", "Comma separated phase ids to skip")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *resumePath == "" || *jobPath == "" {
		fmt.Fprintln(stderr, "run: --resume and --job are required")
		fs.Usage()
		return exitUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	if *disable != "" {
		for _, id := range strings.Split(*disable, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.Pipeline.Disabled = append(cfg.Pipeline.Disabled, id)
			}
		}
	}
	if *threshold >= 0 {
		cfg.Pipeline.Threshold = *threshold
	}
	// stdout 留给文档
	cfg.Log.OutputPaths = []string{"stderr"}

	document, err := os.ReadFile(*resumePath)
	if err != nil {
		fmt.Fprintf(stderr, "run: read resume: %v\n", err)
		return exitFailure
	}
	job, err := os.ReadFile(*jobPath)
	if err != nil {
		fmt.Fprintf(stderr, "run: read job description: %v\n", err)
		return exitFailure
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	app, err := NewApp(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			logger.Warn("failed to release resources", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Pipeline.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Pipeline.RunTimeout)
		defer cancel()
	}

	bundle, err := app.pipeline.Run(ctx, string(document), string(job), cfg.Pipeline.Threshold)
	if err != nil {
		if bundle != nil {
			fmt.Fprintln(stderr, bundle.Summary())
		}
		if te, ok := types.AsError(err); ok && te.Code == types.ErrInvalidRequest {
			fmt.Fprintf(stderr, "run: %s\n", te.Message)
			return exitUsage
		}
		fmt.Fprintf(stderr, "run: %v\n", err)
		return exitFailure
	}

	var content string
	if bundle.TailoredDocument != nil {
		content = bundle.TailoredDocument.Content
	} else {
		fmt.Fprintln(stderr, "warning: no document produced, resume generation is disabled")
	}
	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(content), 0o644); err != nil {
			fmt.Fprintf(stderr, "run: write output: %v\n", err)
			return exitFailure
		}
	} else if _, err := io.WriteString(stdout, content); err != nil {
		return exitFailure
	}

	fmt.Fprintln(stderr, bundle.Summary())
	if bundle.ComplianceResult != nil {
		fmt.Fprintf(stderr, "compliance: %.1f (threshold %.1f)\n", bundle.Score(), bundle.Threshold)
	}
	for _, r := range []struct {
		name     string
		fellBack bool
	}{
		{"work experience", bundle.WorkExperienceResult != nil && bundle.WorkExperienceResult.FellBack},
		{"skills", bundle.SkillsResult != nil && bundle.SkillsResult.FellBack},
	} {
		if r.fellBack {
			fmt.Fprintf(stderr, "warning: %s section kept original text\n", r.name)
		}
	}
	return exitOK
}
