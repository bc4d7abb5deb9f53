package main

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"

	"alphabot/internal/config"
	"alphabot/internal/settings"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your alphabot installation",
		Long: `Verifies that the configuration, the settings document, the feedback
log and the enabled channels are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("alphabot doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			r := &report{}

			if _, err := os.Stat(cfgPath); err != nil {
				r.fail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'alphabot init' to create a default configuration.\n")
				return nil
			}
			r.pass("Config file", cfgPath)

			cfg, err := config.Load(cfgPath)
			if err != nil {
				r.fail("Config validation", err.Error())
				return r.summary()
			}
			r.pass("Config validation", "valid")

			checkSettings(r, cfg.Settings.Path)

			if err := checkWritableDir(cfg.Feedback.Path); err != nil {
				r.fail("Feedback log", err.Error())
			} else {
				r.pass("Feedback log", cfg.Feedback.Path)
			}

			if cfg.General.LogFile != "" {
				if err := checkWritableDir(cfg.General.LogFile); err != nil {
					r.warn("Log file", err.Error())
				} else {
					r.pass("Log file", cfg.General.LogFile)
				}
			}

			channels := 0
			if cfg.Bridge.Enabled {
				channels++
				if u, err := url.Parse(cfg.Bridge.URL); err != nil || u.Host == "" {
					r.fail("WhatsApp bridge", fmt.Sprintf("invalid url %q", cfg.Bridge.URL))
				} else if cfg.Bridge.Token == "" {
					r.warn("WhatsApp bridge", "no token configured")
				} else {
					r.pass("WhatsApp bridge", u.Host)
				}
			}
			if cfg.Telegram.Enabled {
				channels++
				r.pass("Telegram", "token configured")
			}
			if cfg.Console.Enabled {
				channels++
				r.pass("Console", "enabled")
			}
			if channels == 0 {
				r.fail("Channels", "no channels enabled")
			}

			if cfg.Admin.Enabled {
				if err := checkAddr(cfg.Admin.Addr()); err != nil {
					r.warn("Admin API", fmt.Sprintf("%s may be in use: %v", cfg.Admin.Addr(), err))
				} else {
					r.pass("Admin API", cfg.Admin.Addr()+" available")
				}
				if !cfg.Admin.Authenticated() {
					r.warn("Admin API", "no token or webhook secret; only local callers should reach it")
				}
			}

			return r.summary()
		},
	}
}

type report struct {
	passed, warned, failed int
}

func (r *report) pass(check, detail string) {
	r.passed++
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func (r *report) fail(check, detail string) {
	r.failed++
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func (r *report) warn(check, detail string) {
	r.warned++
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}

func (r *report) summary() error {
	fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
	if r.failed > 0 {
		fmt.Printf("\nPlease fix the failed checks before running alphabot.\n")
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	if r.warned > 0 {
		fmt.Printf("\nalphabot should work but consider fixing the warnings.\n")
	} else {
		fmt.Printf("\nAll checks passed! alphabot is ready to run.\n")
	}
	return nil
}

// checkSettings reports on the settings document. A missing file is fine:
// the first run writes the defaults.
func checkSettings(r *report, path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		r.warn("Settings", fmt.Sprintf("%s missing, defaults will be written on start", path))
		return
	}
	st, err := settings.ReadFile(path)
	if err != nil {
		r.fail("Settings", err.Error())
		return
	}
	r.pass("Settings", fmt.Sprintf("%s (mode %s, %d owner(s))", path, st.Mode(), len(st.Owners())))
}

func checkWritableDir(file string) error {
	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("directory not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func checkAddr(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ln.Close()
}
