// file: cmd/diagnostics.go
// version: 2.0.0
// guid: c8f6a0d4-2a8b-48cf-9d08-02cc9915d9fc

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jdfalk/mediashare/internal/catalog"
	"github.com/jdfalk/mediashare/internal/config"
	"github.com/jdfalk/mediashare/internal/metadata"
)

var (
	diagnosticsCmd = &cobra.Command{
		Use:   "diagnostics",
		Short: "Debugging and cleanup helpers",
		Long:  "Diagnostic utilities for inspecting and repairing the metadata sidecars of a library.",
	}

	sidecarsCmd = &cobra.Command{
		Use:   "sidecars [dir]",
		Short: "Report metadata sidecars and remove orphans",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("yes")
			prune, _ := cmd.Flags().GetBool("prune")
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			root, err := diagnosticsRoot(dir)
			if err != nil {
				return err
			}
			return runSidecarDiagnostics(root, prune, force, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
)

func init() {
	sidecarsCmd.Flags().Bool("prune", false, "Delete sidecars whose media file is gone")
	sidecarsCmd.Flags().Bool("yes", false, "Skip confirmation prompt")

	diagnosticsCmd.AddCommand(sidecarsCmd)
}

// diagnosticsRoot falls back to the configured or last served library.
func diagnosticsRoot(dir string) (string, error) {
	if dir == "" {
		dir = config.AppConfig.LibraryDir
	}
	resolved, err := config.ResolveLibraryDir(dir, config.AppConfig.SettingsFile)
	if err != nil {
		return "", err
	}
	lib, err := catalog.New(resolved)
	if err != nil {
		return "", err
	}
	return lib.Root(), nil
}

type sidecarEntry struct {
	Dir  string // directory holding the media item
	Name string // media file or folder name
}

type sidecarReport struct {
	Total    int
	Fallback int
	Legacy   int
	Corrupt  []sidecarEntry
	Orphans  []sidecarEntry
}

// scanSidecars walks every .meta directory under root and classifies the
// JSON sidecars it finds.
func scanSidecars(root string) (sidecarReport, error) {
	var report sidecarReport
	var store metadata.SidecarStore

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || d.Name() != catalog.MetaDirName {
			return nil
		}
		owner := filepath.Dir(p)
		entries, err := os.ReadDir(p)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			item := sidecarEntry{Dir: owner, Name: strings.TrimSuffix(e.Name(), ".json")}
			report.Total++

			if _, err := os.Stat(filepath.Join(owner, item.Name)); os.IsNotExist(err) {
				report.Orphans = append(report.Orphans, item)
				continue
			}
			rec, _, err := store.Load(owner, item.Name)
			if err != nil {
				report.Corrupt = append(report.Corrupt, item)
				continue
			}
			if rec.Fallback {
				report.Fallback++
			}
			if !rec.Complete() {
				report.Legacy++
			}
		}
		return filepath.SkipDir
	})
	if err != nil {
		return report, fmt.Errorf("scan sidecars: %w", err)
	}
	return report, nil
}

func runSidecarDiagnostics(root string, prune, force bool, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Inspecting metadata sidecars in %s\n", root)
	report, err := scanSidecars(root)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Sidecars: %d\n", report.Total)
	fmt.Fprintf(out, "  Fallback (no remote match): %d\n", report.Fallback)
	fmt.Fprintf(out, "  Older schema (refetched on next view): %d\n", report.Legacy)
	fmt.Fprintf(out, "  Unreadable: %d\n", len(report.Corrupt))
	fmt.Fprintf(out, "  Orphaned: %d\n", len(report.Orphans))
	for i, o := range report.Orphans {
		rel, _ := filepath.Rel(root, filepath.Join(o.Dir, o.Name))
		fmt.Fprintf(out, "%3d. %s\n", i+1, filepath.ToSlash(rel))
	}

	if !prune || len(report.Orphans) == 0 {
		return nil
	}
	if !force {
		confirmed, err := promptYesNo(in, out, fmt.Sprintf("Delete %d orphaned sidecars", len(report.Orphans)))
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(out, "Aborted. No sidecars deleted.")
			return nil
		}
	}

	var store metadata.SidecarStore
	deleted := 0
	for _, o := range report.Orphans {
		if err := store.Delete(o.Dir, o.Name); err != nil {
			fmt.Fprintf(out, "Failed to delete %s: %v\n", o.Name, err)
			continue
		}
		deleted++
	}
	fmt.Fprintf(out, "Deleted %d orphaned sidecars.\n", deleted)
	return nil
}

func promptYesNo(in io.Reader, out io.Writer, action string) (bool, error) {
	fmt.Fprintf(out, "%s? Type 'yes' to confirm: ", action)
	reader := bufio.NewReader(in)
	response, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "yes", nil
}
