// file: cmd/zip.go
// version: 1.1.0
// guid: 5d9a3e18-6c2f-4b74-8e01-a7f4c2b9d6e3

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jdfalk/mediashare/internal/archive"
	"github.com/jdfalk/mediashare/internal/config"
	"github.com/jdfalk/mediashare/internal/operations"
)

var zipCmd = &cobra.Command{
	Use:   "zip <dir>",
	Short: "Archive a folder the same way the web UI does",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		return runZip(args[0], out, config.AppConfig, cmd.ErrOrStderr(), cmd.OutOrStdout())
	},
}

func init() {
	zipCmd.Flags().String("out", "", "where to write the archive (default <dir name>.zip in the current directory)")
}

func runZip(src, out string, cfg config.Config, stderr, stdout io.Writer) error {
	abs, err := filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", src, err)
	}

	queue := operations.NewOperationQueue(1, 1)
	defer func() { _ = queue.Shutdown(5 * time.Second) }()

	tempDir := cfg.ArchiveTempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	engine := archive.NewEngine(queue, archive.Config{TempDir: tempDir, ChunkBytes: cfg.ArchiveChunkBytes})

	job, err := engine.Start(abs)
	if err != nil {
		return err
	}
	if out == "" {
		out = job.DownloadName()
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(stderr),
		progressbar.OptionSetDescription("zipping "+job.Name),
		progressbar.OptionClearOnFinish(),
	)
	for {
		job, err = engine.Status(job.ID)
		if err != nil {
			return err
		}
		_ = bar.Set(job.Progress)
		if job.Finished() {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	_ = bar.Finish()

	if job.Status == archive.StatusError {
		_ = engine.Finish(job.ID)
		return fmt.Errorf("archive %s: %s", job.Name, job.Error)
	}
	if err := moveFile(job.ResultPath, out); err != nil {
		_ = engine.Finish(job.ID)
		return err
	}
	if err := engine.Finish(job.ID); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s (%s)\n", out, humanize.IBytes(uint64(job.Size)))
	return nil
}

// moveFile renames src to dst, copying when they sit on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	outFile, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(outFile, in); err != nil {
		outFile.Close()
		return fmt.Errorf("copy archive: %w", err)
	}
	if err := outFile.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
