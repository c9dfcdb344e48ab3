package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harun/shellbox/internal/audit"
	"github.com/harun/shellbox/internal/config"
	"github.com/harun/shellbox/internal/logger"
	"github.com/harun/shellbox/pkg/shell"
	"github.com/harun/shellbox/pkg/workspace"
)

const version = "0.1.0"

var (
	cfgFile       string
	logLevel      string
	workspaceFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shellbox",
	Short: "Shellbox - sandboxed shell sessions for automated agents",
	Long: `Shellbox runs shell commands and line-level file edits inside a
hard-bounded filesystem sandbox. Every command is validated against an
allow/deny policy and confined to one workspace root.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.shellbox/shellbox.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "override workspace root")
}

// loadConfig loads the configuration and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if workspaceFlag != "" {
		cfg.Workspace.Path = workspaceFlag
	}
	if cfg.Workspace.Path == "" {
		return nil, fmt.Errorf("no workspace root configured (set workspace.path or pass --workspace)")
	}
	return cfg, nil
}

// setup builds the logger, optional audit trail and session from cfg. The
// returned cleanup closes them in reverse order.
func setup(cfg *config.Config) (*shell.Session, *audit.Trail, func(), error) {
	l, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	var trail *audit.Trail
	if cfg.Audit.Enabled {
		trail, err = audit.Open(audit.Config{
			Path:      cfg.Audit.Path,
			Retention: cfg.Audit.Retention(),
		})
		if err != nil {
			_ = l.Close()
			return nil, nil, nil, err
		}
	}

	var recorder shell.Recorder
	if trail != nil {
		recorder = trail
	}
	sess, err := shell.NewSession(shell.Config{
		WorkspaceRoot:   cfg.Workspace.Path,
		CreateWorkspace: cfg.Workspace.Create,
		Shell:           cfg.Shell.Program,
		AllowList:       cfg.Shell.AllowList,
		DenyList:        cfg.Shell.DenyList,
		DisableScripts:  cfg.Shell.DisableScripts,
		CloseTimeout:    time.Duration(cfg.Shell.CloseTimeoutSeconds) * time.Second,
		Audit:           recorder,
	})
	if err != nil {
		if trail != nil {
			_ = trail.Close()
		}
		_ = l.Close()
		return nil, nil, nil, err
	}

	var watcher *workspace.Watcher
	if cfg.Workspace.Watch {
		watcher, err = workspace.NewWatcher(workspace.WatcherConfig{
			Root: sess.WorkspaceRoot(),
			OnChange: func(path string, change workspace.ChangeType) {
				log.Info().
					Str("path", path).
					Str("change", string(change)).
					Msg("Workspace changed outside the session")
			},
		})
		if err == nil {
			err = watcher.Start()
		}
		if err != nil {
			_ = sess.Close()
			if trail != nil {
				_ = trail.Close()
			}
			_ = l.Close()
			return nil, nil, nil, err
		}
	}

	cleanup := func() {
		if watcher != nil {
			_ = watcher.Stop()
		}
		_ = sess.Close()
		if trail != nil {
			_ = trail.Close()
		}
		_ = l.Close()
	}
	return sess, trail, cleanup, nil
}
