package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/olgkv/drivefetch/internal/app"
	"github.com/olgkv/drivefetch/internal/config"
	"github.com/olgkv/drivefetch/internal/domain"
	"github.com/olgkv/drivefetch/internal/pdf"
)

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

func runHTTPServer(ctx context.Context, srv httpServer, logger *slog.Logger) {
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server stopped", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("status server shutdown", "error", err)
	}
}

type runFlags struct {
	configPath string
	listen     string
	report     string
	plain      bool
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var rf runFlags
	cmd := &cobra.Command{
		Use:           "drivefetch [links...]",
		Short:         "Download publicly shared Google Drive files concurrently",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, rf, in, out)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&rf.configPath, "config", "c", config.DefaultFile, "config file path")
	f.IntP("threads", "t", 0, "maximum concurrent downloads")
	f.Int("chunk-size", 0, "read/write chunk size in bytes")
	f.StringP("dir", "d", "", "download directory")
	f.String("proxy", "", "proxy URL (http, https, socks5)")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.StringVar(&rf.listen, "listen", "", "serve /tasks and /metrics on this address")
	f.StringVar(&rf.report, "report", "", "write a PDF report of the run to this path")
	f.BoolVar(&rf.plain, "plain", false, "log progress lines instead of drawing bars")
	return cmd
}

func run(cmd *cobra.Command, args []string, rf runFlags, in io.Reader, out io.Writer) error {
	cfg, err := config.Load(rf.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := app.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a, err := app.New(cfg, logger, app.Options{Out: out, Plain: rf.plain})
	if err != nil {
		return err
	}

	links := args
	if len(links) == 0 {
		fmt.Fprintln(out, "Enter Google Drive links (one per line, empty line to finish):")
		links = readLinks(in, out)
	}
	if len(links) == 0 {
		fmt.Fprintln(out, "No links provided!")
		return nil
	}

	ctx := cmd.Context()
	if rf.listen != "" {
		srvCtx, stop := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			logger.Info("status server listening", "addr", rf.listen)
			runHTTPServer(srvCtx, a.NewStatusServer(rf.listen), logger)
		}()
		defer func() {
			stop()
			<-done
		}()
	}

	fmt.Fprintf(out, "Starting downloads with %d threads...\nDownload directory: %s\n\n", cfg.MaxThreads, cfg.DownloadDirectory)
	summary := a.Pool.Run(ctx, links)
	printSummary(out, summary)

	if a.History != nil {
		total, succeeded := a.History.Stats()
		logger.Info("history summary", "file", cfg.HistoryFile, "journaled", total, "succeeded", succeeded)
	}

	if rf.report != "" {
		if err := writeReport(rf.report, summary); err != nil {
			logger.Error("report not written", "path", rf.report, "error", err)
		} else {
			fmt.Fprintf(out, "Report: %s\n", rf.report)
		}
	}
	return nil
}

// readLinks prompts for links until a blank line or end of input.
func readLinks(in io.Reader, out io.Writer) []string {
	var links []string
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Link: ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			break
		}
		link := strings.TrimSpace(sc.Text())
		if link == "" {
			break
		}
		links = append(links, link)
	}
	return links
}

func printSummary(out io.Writer, s domain.Summary) {
	line := strings.Repeat("=", 50)
	fmt.Fprintf(out, "\n%s\nDownload completed!\nSuccessful: %d\nFailed: %d\n", line, s.Succeeded, s.Failed)
	for _, t := range s.Tasks {
		if t.Status == domain.StatusFailed {
			fmt.Fprintf(out, "  %s: %s\n", t.SourceURL, t.Error)
		}
	}
	fmt.Fprintf(out, "Directory: %s\n%s\n", s.Directory, line)
}

func writeReport(path string, s domain.Summary) error {
	data, err := pdf.BuildRunReport(s, time.Now())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
