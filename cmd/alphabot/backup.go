package main

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"alphabot/internal/config"

	"github.com/spf13/cobra"
)

// Archive entry names. Restore maps them back to the configured paths.
const (
	backupConfigName   = "config.json"
	backupSettingsName = "settings"
	backupFeedbackName = "feedback.log"
)

// backupTargets maps archive entry names to files on disk.
func backupTargets(cfgPath string) map[string]string {
	targets := map[string]string{backupConfigName: cfgPath}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Defaults()
		cfg.Settings.Path = config.ExpandPath(cfg.Settings.Path)
		cfg.Feedback.Path = config.ExpandPath(cfg.Feedback.Path)
	}
	targets[backupSettingsName+filepath.Ext(cfg.Settings.Path)] = cfg.Settings.Path
	targets[backupFeedbackName] = cfg.Feedback.Path
	return targets
}

func backupCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the config, settings document and feedback log",
		Long: `Creates a compressed .tar.gz archive containing the configuration,
the bot settings document and the feedback log. The backup is timestamped by default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()

			if outputPath == "" {
				backupDir := filepath.Join(config.DefaultConfigDir(), "backups")
				if err := os.MkdirAll(backupDir, 0o755); err != nil {
					return fmt.Errorf("cannot create backup directory: %w", err)
				}
				ts := time.Now().Format("20060102-150405")
				outputPath = filepath.Join(backupDir, fmt.Sprintf("alphabot-backup-%s.tar.gz", ts))
			}

			n, err := createBackup(outputPath, backupTargets(cfgPath))
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}
			fmt.Printf("Backup created: %s (%d files)\n", outputPath, n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: ~/.alphabot/backups/alphabot-backup-<timestamp>.tar.gz)")
	return cmd
}

func restoreCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore [file.tar.gz]",
		Short: "Restore the config, settings and feedback log from a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := backupTargets(resolveConfigPath())
			if !force {
				for _, path := range targets {
					if _, err := os.Stat(path); err == nil {
						fmt.Printf("WARNING: %s exists and would be overwritten.\n", path)
						return fmt.Errorf("restore aborted (use --force to proceed)")
					}
				}
			}

			restored, err := extractBackup(args[0], targets)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			fmt.Printf("Restore completed from: %s\n", args[0])
			for _, f := range restored {
				fmt.Printf("  - %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files without warning")
	return cmd
}

// createBackup writes every existing target into a gzip tarball and returns
// the number of files archived.
func createBackup(outputPath string, targets map[string]string) (int, error) {
	outFile, err := os.Create(outputPath)
	if err != nil {
		return 0, err
	}
	defer outFile.Close()

	gz := gzip.NewWriter(outFile)
	tw := tar.NewWriter(gz)

	n := 0
	for name, path := range targets {
		err := addFileToTar(tw, name, path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("add %s: %w", path, err)
		}
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("no files to back up")
	}
	if err := tw.Close(); err != nil {
		return n, err
	}
	return n, gz.Close()
}

func addFileToTar(tw *tar.Writer, name, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = name

	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, file)
	return err
}

// extractBackup restores known entries to their target paths. Unknown
// entries are skipped.
func extractBackup(archivePath string, targets map[string]string) ([]string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("not a valid gzip file: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var restored []string
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return restored, err
		}
		target, ok := targets[filepath.Base(header.Name)]
		if !ok {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return restored, err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return restored, fmt.Errorf("create %s: %w", target, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return restored, fmt.Errorf("extract %s: %w", target, err)
		}
		out.Close()
		restored = append(restored, target)
	}
	return restored, nil
}
