package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/voiceprep/internal/cli"
	"github.com/linuxmatters/voiceprep/internal/logging"
	"github.com/linuxmatters/voiceprep/internal/metrics"
	"github.com/linuxmatters/voiceprep/internal/pipeline"
	"github.com/linuxmatters/voiceprep/internal/ui"
)

var (
	version = "0.0.1"
)

func main() {
	os.Exit(run())
}

func run() int {
	cliArgs := &cli.CLI{}
	kctx := kong.Parse(cliArgs, cli.Options(version)...)

	if cliArgs.Version {
		cli.PrintVersion(os.Stdout, version)
		return pipeline.ExitSuccess
	}

	cfg, err := cliArgs.ToConfig()
	if err != nil {
		cli.PrintError(err.Error())
		_ = kctx.PrintUsage(true)
		return pipeline.ExitCode(err)
	}

	log, closeLog, err := logging.NewLogger(cliArgs.LogFile, cliArgs.LogLevel)
	if err != nil {
		cli.PrintError(fmt.Sprintf("Cannot open debug log: %v", err))
		return pipeline.ExitFailure
	}
	defer closeLog()

	opts := []pipeline.Option{pipeline.WithLogger(log)}
	var m *metrics.Metrics
	if cliArgs.MetricsFile != "" {
		m = metrics.NewMetrics()
		opts = append(opts, pipeline.WithMetrics(m))
	}

	// SIGINT and SIGTERM stop dispatching; files in flight still finish
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	interactive := !cliArgs.Plain && cli.Interactive(os.Stdout)
	log.WithField("interactive", interactive).Debug("Output mode")

	var report *pipeline.RunReport
	if interactive {
		report, err = runInteractive(ctx, cancel, cfg, opts)
	} else {
		report, err = runPlain(ctx, os.Stdout, cfg, opts)
	}

	if err != nil {
		log.WithError(err).WithField("exit_code", pipeline.ExitCode(err)).Error("Run failed")
	}

	if m != nil {
		if werr := m.WriteFile(cliArgs.MetricsFile); werr != nil {
			log.WithError(werr).Warn("Failed to write metrics")
			cli.PrintError(werr.Error())
		}
	}

	if cliArgs.Logs {
		path := logging.ReportPath(cfg.Speaker)
		rerr := logging.GenerateReport(path, logging.ReportData{
			Config:    cfg,
			Report:    report,
			StartTime: start,
			EndTime:   time.Now(),
			Err:       err,
		})
		if rerr != nil {
			log.WithError(rerr).Warn("Failed to write run report")
			cli.PrintError(rerr.Error())
		} else {
			log.WithField("path", path).Info("Run report written")
		}
	}

	return pipeline.ExitCode(err)
}

// runInteractive drives the pipeline behind the Bubbletea UI
func runInteractive(ctx context.Context, cancel context.CancelFunc, cfg pipeline.Config, opts []pipeline.Option) (*pipeline.RunReport, error) {
	model := ui.NewModel(cfg.Speaker, cfg.Selected(), cancel)
	p := tea.NewProgram(model, tea.WithAltScreen())

	d, err := pipeline.New(cfg, append(opts, pipeline.WithReporter(ui.NewReporter(p)))...)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		report *pipeline.RunReport
		err    error
	}
	done := make(chan outcome, 1)

	// Start processing in background
	go func() {
		report, err := d.Run(ctx)
		done <- outcome{report: report, err: err}
		p.Send(ui.AllCompleteMsg{
			Report: report,
			Err:    err,
			Tips:   logging.GenerateTips(cfg, report),
		})
	}()

	final, uiErr := p.Run()
	if uiErr != nil {
		cancel()
		cli.PrintError(fmt.Sprintf("UI error: %v", uiErr))
	}

	// The alt screen is gone once the program exits, so print the summary again
	res := <-done
	if fm, ok := final.(ui.Model); ok && fm.Done {
		fmt.Print(fm.View())
	} else {
		printSummary(os.Stdout, cfg, res.report, res.err)
	}
	return res.report, res.err
}

// runPlain drives the pipeline with line-oriented output
func runPlain(ctx context.Context, w io.Writer, cfg pipeline.Config, opts []pipeline.Option) (*pipeline.RunReport, error) {
	d, err := pipeline.New(cfg, append(opts, pipeline.WithReporter(cli.NewPlainReporter(w)))...)
	if err != nil {
		cli.PrintError(err.Error())
		return nil, err
	}

	report, err := d.Run(ctx)
	printSummary(w, cfg, report, err)
	return report, err
}

// printSummary writes the stage table, any error and recording tips
func printSummary(w io.Writer, cfg pipeline.Config, report *pipeline.RunReport, err error) {
	fmt.Fprintln(w)
	if table := logging.SummaryTable(report).String(); table != "" {
		fmt.Fprint(w, table)
	}

	switch pipeline.ExitCode(err) {
	case pipeline.ExitSuccess:
		fmt.Fprintf(w, "\n%s %s is ready in %s\n", cli.SuccessStyle.Render("✓"), cfg.Speaker, cfg.SpeakerDir())
	case pipeline.ExitInterrupted:
		fmt.Fprintf(w, "\n%s\n", cli.WarnStyle.Render("■ Interrupted"))
	default:
		fmt.Fprintln(w)
		cli.PrintError(err.Error())
	}

	if tips := logging.GenerateTips(cfg, report); len(tips) > 0 {
		fmt.Fprintf(w, "\n%s\n%s", cli.TitleStyle.UnsetMarginBottom().Render("Tips"), logging.FormatTips(tips, 72))
	}
}
