package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pdfSignature = []byte("%PDF")

// newCleanCmd creates the 'clean' subcommand, which sweeps the output
// directory for files that are not actually PDFs so the next fetch run
// re-downloads them.
func newCleanCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove corrupt downloads and leftover temp files from the output directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			entries, err := os.ReadDir(cfg.OutputDir)
			if err != nil {
				return err
			}

			removed := 0
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				path := filepath.Join(cfg.OutputDir, entry.Name())
				reason := ""
				switch {
				case strings.HasSuffix(entry.Name(), ".part"):
					reason = "leftover temp file"
				case strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") && !hasPDFSignature(path):
					reason = "missing PDF signature"
				default:
					continue
				}

				if dryRun {
					logger.Info("would remove", zap.String("path", path), zap.String("reason", reason))
					continue
				}
				if err := os.Remove(path); err != nil {
					logger.Warn("could not remove file", zap.String("path", path), zap.Error(err))
					continue
				}
				removed++
				logger.Info("removed", zap.String("path", path), zap.String("reason", reason))
			}
			logger.Info("clean finished", zap.Int("removed", removed), zap.Bool("dry_run", dryRun))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be removed without deleting")
	return cmd
}

func hasPDFSignature(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, len(pdfSignature))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, pdfSignature)
}
