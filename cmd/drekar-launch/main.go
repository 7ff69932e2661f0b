// Command drekar-launch starts and supervises a group of named child
// processes described by a launch document, restarting the ones
// marked restart: true and tearing the whole group down together on
// operator interrupt or when a quit-on-terminate child exits.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/drekar/launch/internal/cgroupscope"
	"github.com/drekar/launch/internal/container"
	"github.com/drekar/launch/internal/launchfile"
	"github.com/drekar/launch/internal/shutdownsignal"
	"github.com/drekar/launch/internal/statuswindow"
	"github.com/drekar/launch/internal/supervisor"
	"github.com/drekar/launch/internal/template"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const appName = "drekar-launch"

func main() {
	// The sentinel helper re-execs this same binary; dispatch before any
	// flag framework touches os.Args, mirroring the original's check of
	// sys.argv ahead of argparse.
	if len(os.Args) >= 4 && os.Args[1] == "--sentinel" {
		os.Exit(runSentinel(os.Args[2], os.Args[3]))
	}

	os.Exit(run(os.Args[1:]))
}

func runSentinel(parentPIDArg, scopePath string) int {
	log := newLogger()
	parentPID, err := strconv.Atoi(parentPIDArg)
	if err != nil {
		log.WithError(err).Error("--sentinel: invalid parent pid")
		return 1
	}
	if err := cgroupscope.RunSentinelSubcommand(parentPID, scopePath, log); err != nil {
		log.WithError(err).Error("sentinel failed")
		return 1
	}
	return 0
}

func run(args []string) int {
	log := newLogger()

	var (
		configPath   string
		configJ2Path string
		cwd          string
		name         string
		quiet        bool
		gui          bool
	)

	root := &cobra.Command{
		Use:           appName,
		Short:         "Start and supervise a group of child processes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Flags().StringVar(&configPath, "config", "", "Configuration file")
	root.Flags().StringVar(&configJ2Path, "config-j2", "", "Configuration file (jinja2-compatible template)")
	root.Flags().StringVar(&cwd, "cwd", ".", "Working directory")
	root.Flags().StringVar(&name, "name", "", "Name of the launch")
	root.Flags().BoolVar(&quiet, "quiet", false, "Suppress echoing child output to the screen")
	root.Flags().BoolVar(&gui, "gui", false, "Run the status window")
	root.FParseErrWhitelist = cobra.FParseErrWhitelist{UnknownFlags: true}
	root.Args = cobra.ArbitraryArgs

	var doc *launchfile.Document

	root.RunE = func(cmd *cobra.Command, leftover []string) error {
		if configPath != "" && configJ2Path != "" {
			return fmt.Errorf("only one of --config or --config-j2 can be specified")
		}

		var err error
		switch {
		case configJ2Path != "":
			// --var-<name>=<value> arguments are not declared flags, so
			// they survive flag parsing as unrecognized; scan the
			// original args rather than relying on cobra to collect
			// them, matching argparse's parse_known_args split.
			doc, err = loadJ2(configJ2Path, cwd, args)
		case configPath != "":
			doc, err = launchfile.LoadFile(configPath, cwd)
		default:
			doc, err = launchfile.LoadFile("drekar-launch.yaml", cwd)
		}
		return err
	}

	if err := root.Execute(); err != nil {
		log.WithError(err).Error("startup failed")
		return 1
	}

	launchName := name
	if launchName == "" {
		launchName = doc.Name
	}
	if launchName == "" {
		launchName = appName
	}

	logDir, err := prepareLogDir(launchName)
	if err != nil {
		log.WithError(err).Error("could not prepare log directory")
		return 1
	}
	log.WithField("logDir", logDir).Info("logging to directory")

	scope := cgroupscope.NewScope(log)
	backend := container.NewBackend(scope, log)
	group := supervisor.NewGroup(launchName, logDir, !quiet, backend, scope, log)

	if cgroupscope.SentinelEnabled() && scope.Path() != "" {
		proc, err := cgroupscope.SpawnSentinel(scope, "", log)
		if err != nil {
			log.WithError(err).Warn("could not start sentinel, continuing without it")
		} else {
			group.SetSentinelProcess(proc)
		}
	}

	// --gui selects the same Reporter either way today; statuswindow.NoopWindow
	// is the only implementation this repository ships (see its doc comment).
	win := statuswindow.Reporter(statuswindow.NoopWindow{})
	_ = gui

	stopWatching := shutdownsignal.Watch(group.ExitTrigger(), log)
	defer stopWatching()

	if err := group.StartAll(doc.Specs); err != nil {
		log.WithError(err).Error("start_all failed")
	}

	<-group.ExitTrigger().Done()
	log.Info("shutting down")
	win.GroupClosing()

	group.StopAll()
	group.WaitAllStopped()
	group.Close()

	return group.ExitStatus()
}

func loadJ2(configJ2Path, cwd string, rawArgs []string) (*launchfile.Document, error) {
	vars := make(map[string]string)
	for _, a := range rawArgs {
		if k, v, ok := template.ParseVar(a); ok {
			vars[k] = v
		}
	}

	rendered, err := template.Render(configJ2Path, vars, template.EnvMap())
	if err != nil {
		return nil, err
	}
	tree, err := launchfile.ParseYAML([]byte(rendered))
	if err != nil {
		return nil, err
	}
	return launchfile.Load(tree, cwd)
}

func prepareLogDir(launchName string) (string, error) {
	base, err := userLogDir(appName)
	if err != nil {
		return "", err
	}
	timestamp := time.Now().Format("-2006-01-02--15-04-05")
	dir := filepath.Join(base, launchName, launchName+timestamp)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create log directory %s: %w", dir, err)
	}
	return dir, nil
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}
