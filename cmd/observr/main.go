package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
}

// WatchFlags holds flags for the watch command.
type WatchFlags struct {
	Path        string
	Name        string
	Duration    time.Duration
	ServiceFile string
}

// WatchAllFlags holds flags for the watch-all command.
type WatchAllFlags struct {
	Paths    []string
	Strategy string
	Duration time.Duration
}

// ChangesFlags holds the mutually exclusive changelog selectors.
type ChangesFlags struct {
	File     string
	Type     string
	Observer string
	Search   string
	Verify   string
}

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	Listen string
}

// buildRoot assembles the root command and all subcommands.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	watchFlags := &WatchFlags{}
	watchAllFlags := &WatchAllFlags{}
	changesFlags := &ChangesFlags{}
	templateFlags := &TemplateCreateFlags{}
	serveFlags := &ServeFlags{}

	observrCommand := command{global: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createWatchCommand(observrCommand, watchFlags),
		createWatchAllCommand(observrCommand, watchAllFlags),
		createServiceCommand(observrCommand),
		createChangesCommand(observrCommand, changesFlags),
		createTemplateCommand(observrCommand, templateFlags),
		createServeCommand(observrCommand, serveFlags),
	)
	return root
}

// createRootCommand creates the root command with the persistent config flag.
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "observr",
		Short: "Filesystem observation and watch service tool",
		Long: `Observr watches directories for filesystem changes, records them in a
change log, and can run watchers as detached background services.

Examples:
  observr watch --path=/var/log/app
  observr watch-all --path=/data --path=/backup --strategy=process
  observr service define --path=/var/log/app --startup
  observr service launch --name=app
  observr serve --config=observr.toml`,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")

	return root
}

// createWatchCommand creates the watch subcommand. It is also the entry
// point service artifacts and process-strategy children execute.
func createWatchCommand(observrCommand command, watchFlags *WatchFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a single path in the foreground",
		Long: `Watch one path and record its filesystem changes until interrupted.

Examples:
  observr watch --path=/var/log/app
  observr watch --path=/data --name=data --duration=2h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return observrCommand.Watch(WatchFlags{
				Path:        watchFlags.Path,
				Name:        watchFlags.Name,
				Duration:    watchFlags.Duration,
				ServiceFile: watchFlags.ServiceFile,
			})
		},
	}

	cmd.Flags().StringVar(&watchFlags.Path, "path", "", "path to watch (required)")
	cmd.Flags().StringVar(&watchFlags.Name, "name", "", "observer name (derived from path when empty)")
	cmd.Flags().DurationVar(&watchFlags.Duration, "duration", 0, "stop watching after this long (0 = forever)")
	// Service artifacts pass their own path here so the pid scan can find
	// them on the command line; the watcher does not read the file.
	cmd.Flags().StringVar(&watchFlags.ServiceFile, "service-file", "", "service artifact that launched this watcher")

	if err := cmd.MarkFlagRequired("path"); err != nil {
		panic(err)
	}

	return cmd
}

// createWatchAllCommand creates the watch-all subcommand.
func createWatchAllCommand(observrCommand command, watchAllFlags *WatchAllFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch-all",
		Short: "Watch several paths at once",
		Long: `Watch every path given by --path plus the observers declared in the
config file. With --strategy=thread all watchers run inside this process;
with --strategy=process each watcher runs in its own child process.

Examples:
  observr watch-all --path=/data --path=/backup
  observr watch-all --strategy=process --duration=1h --config=observr.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return observrCommand.WatchAll(WatchAllFlags{
				Paths:    watchAllFlags.Paths,
				Strategy: watchAllFlags.Strategy,
				Duration: watchAllFlags.Duration,
			})
		},
	}

	cmd.Flags().StringArrayVar(&watchAllFlags.Paths, "path", nil, "path to watch (repeatable)")
	cmd.Flags().StringVar(&watchAllFlags.Strategy, "strategy", "thread", "start strategy: thread or process")
	cmd.Flags().DurationVar(&watchAllFlags.Duration, "duration", 0, "stop watching after this long (0 = forever)")

	return cmd
}

// createChangesCommand creates the changes subcommand.
func createChangesCommand(observrCommand command, changesFlags *ChangesFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Query the recorded change log",
		Long: `Print recorded filesystem changes. Without a selector the whole
document is printed. --type, --observer, --search and --verify are
mutually exclusive.

Examples:
  observr changes
  observr changes --type=created
  observr changes --observer=media
  observr changes --search=report.pdf
  observr changes --verify=media`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return observrCommand.Changes(ChangesFlags{
				File:     changesFlags.File,
				Type:     changesFlags.Type,
				Observer: changesFlags.Observer,
				Search:   changesFlags.Search,
				Verify:   changesFlags.Verify,
			})
		},
	}

	cmd.Flags().StringVar(&changesFlags.File, "file", "", "change log file (defaults to the configured location)")
	cmd.Flags().StringVar(&changesFlags.Type, "type", "", "filter by event type (created, deleted, modified, moved, closed)")
	cmd.Flags().StringVar(&changesFlags.Observer, "observer", "", "filter by observer name")
	cmd.Flags().StringVar(&changesFlags.Search, "search", "", "case-insensitive path search")
	cmd.Flags().StringVar(&changesFlags.Verify, "verify", "", "paths whose recorded name position matches this observer")

	return cmd
}

// createTemplateCommand creates the template command
func createTemplateCommand(observrCommand command, templateFlags *TemplateCreateFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Create config templates",
		Long: `Create observr configuration templates for common setups.
Templates can be edited and used with the serve command.

Supported template types:
  watch     - Watch one path in the foreground
  daemon    - HTTP API server with resource sampling
  services  - Detached watch services with autostart
  history   - Change records mirrored to history sinks

Examples:
  observr template --type=watch --name=media
  observr template --type=daemon --name=uploads
  observr template --type=history --output=./audit.toml
  observr template --type=watch --name=media --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return observrCommand.TemplateCreate(TemplateCreateFlags{
				Name:   templateFlags.Name,
				Type:   templateFlags.Type,
				Force:  templateFlags.Force,
				Output: templateFlags.Output,
			})
		},
	}

	// Add flags specific to template command
	cmd.Flags().StringVar(&templateFlags.Type, "type", "", "template type (required): watch, daemon, services, history")
	cmd.Flags().StringVar(&templateFlags.Name, "name", "", "config name for template (defaults to type-sample)")
	cmd.Flags().StringVar(&templateFlags.Output, "output", "", "output file path (defaults to templates/name.toml)")
	cmd.Flags().BoolVar(&templateFlags.Force, "force", false, "overwrite existing template file")

	// Mark required flags
	if err := cmd.MarkFlagRequired("type"); err != nil {
		panic(err)
	}

	return cmd
}

// createServiceCommand groups the service management subcommands.
func createServiceCommand(observrCommand command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage watch services",
		Long: `Define, launch and control watchers running as detached background
services. Service artifacts live in the service directory (config
service_dir, default __watchservice__).

Examples:
  observr service define --path=/var/log/app --startup
  observr service launch --name=app
  observr service pid --name=app
  observr service stop --name=app`,
	}

	cmd.AddCommand(
		createServiceDefineCommand(observrCommand),
		createServiceLaunchCommand(observrCommand),
		createServiceStopCommand(observrCommand),
		createServiceSignalCommand(observrCommand),
		createServicePIDCommand(observrCommand),
		createServiceListCommand(observrCommand),
		createServiceRemoveCommand(observrCommand),
		createServiceDiscoverCommand(observrCommand),
	)

	return cmd
}

// createServiceDefineCommand creates the service define subcommand.
func createServiceDefineCommand(observrCommand command) *cobra.Command {
	flags := &ServiceDefineFlags{}

	cmd := &cobra.Command{
		Use:   "define",
		Short: "Define a new watch service",
		Long: `Write an executable service artifact that watches one path.
The service does not run until launched.

Examples:
  observr service define --path=/var/log/app
  observr service define --path=/data --name=data --startup`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return observrCommand.ServiceDefine(ServiceDefineFlags{
				Path:         flags.Path,
				Name:         flags.Name,
				Dir:          flags.Dir,
				RunOnStartup: flags.RunOnStartup,
			})
		},
	}

	cmd.Flags().StringVar(&flags.Path, "path", "", "path the service watches (required)")
	cmd.Flags().StringVar(&flags.Name, "name", "", "service name (derived from path when empty)")
	cmd.Flags().StringVar(&flags.Dir, "dir", "", "service directory (overrides the config)")
	cmd.Flags().BoolVar(&flags.RunOnStartup, "startup", false, "install a desktop autostart entry when launched")

	if err := cmd.MarkFlagRequired("path"); err != nil {
		panic(err)
	}

	return cmd
}

// createServiceLaunchCommand creates the service launch subcommand.
func createServiceLaunchCommand(observrCommand command) *cobra.Command {
	flags := &ServiceLaunchFlags{}

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Launch a defined service in the background",
		Long: `Run a defined service detached from this process. Its output is
appended to <name>.out in the service directory unless --output is given.

Examples:
  observr service launch --name=app
  observr service launch --name=app --output=/var/log/app-watch.out`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return observrCommand.ServiceLaunch(ServiceLaunchFlags{
				Name:   flags.Name,
				Dir:    flags.Dir,
				Output: flags.Output,
			})
		},
	}

	cmd.Flags().StringVar(&flags.Name, "name", "", "service name (required)")
	cmd.Flags().StringVar(&flags.Dir, "dir", "", "service directory (overrides the config)")
	cmd.Flags().StringVar(&flags.Output, "output", "", "output file (defaults to <dir>/<name>.out)")

	if err := cmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}

	return cmd
}

// createServiceStopCommand creates the service stop subcommand.
func createServiceStopCommand(observrCommand command) *cobra.Command {
	flags := &ServiceStopFlags{}

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return observrCommand.ServiceStop(ServiceStopFlags{
				Name: flags.Name,
				Dir:  flags.Dir,
			})
		},
	}

	cmd.Flags().StringVar(&flags.Name, "name", "", "service name (required)")
	cmd.Flags().StringVar(&flags.Dir, "dir", "", "service directory (overrides the config)")

	if err := cmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}

	return cmd
}

// createServiceSignalCommand creates the service signal subcommand.
func createServiceSignalCommand(observrCommand command) *cobra.Command {
	flags := &ServiceSignalFlags{}

	cmd := &cobra.Command{
		Use:   "signal",
		Short: "Send a signal to a running service",
		Long: `Deliver a signal to the service process. Signals may be named
(term, kill, int, hup, usr1, usr2) or numeric.

Examples:
  observr service signal --name=app --signal=term
  observr service signal --name=app --signal=9`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return observrCommand.ServiceSignal(ServiceSignalFlags{
				Name:   flags.Name,
				Dir:    flags.Dir,
				Signal: flags.Signal,
			})
		},
	}

	cmd.Flags().StringVar(&flags.Name, "name", "", "service name (required)")
	cmd.Flags().StringVar(&flags.Dir, "dir", "", "service directory (overrides the config)")
	cmd.Flags().StringVar(&flags.Signal, "signal", "", "signal to send (required)")

	if err := cmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}
	if err := cmd.MarkFlagRequired("signal"); err != nil {
		panic(err)
	}

	return cmd
}

// createServicePIDCommand creates the service pid subcommand.
func createServicePIDCommand(observrCommand command) *cobra.Command {
	flags := &ServicePIDFlags{}

	cmd := &cobra.Command{
		Use:   "pid",
		Short: "Print the pid of a running service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return observrCommand.ServicePID(ServicePIDFlags{
				Name: flags.Name,
				Dir:  flags.Dir,
			})
		},
	}

	cmd.Flags().StringVar(&flags.Name, "name", "", "service name (required)")
	cmd.Flags().StringVar(&flags.Dir, "dir", "", "service directory (overrides the config)")

	if err := cmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}

	return cmd
}

// createServiceListCommand creates the service list subcommand.
func createServiceListCommand(observrCommand command) *cobra.Command {
	flags := &ServiceListFlags{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List defined services",
		RunE: func(cmd *cobra.Command, args []string) error {
			return observrCommand.ServiceList(ServiceListFlags{Dir: flags.Dir})
		},
	}

	cmd.Flags().StringVar(&flags.Dir, "dir", "", "service directory (overrides the config)")

	return cmd
}

// createServiceRemoveCommand creates the service remove subcommand.
func createServiceRemoveCommand(observrCommand command) *cobra.Command {
	flags := &ServiceRemoveFlags{}

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a service's files",
		Long: `Delete the service artifact, its output file and any autostart
entries. Use --stop to also kill the running process first.

Examples:
  observr service remove --name=app
  observr service remove --name=app --stop`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return observrCommand.ServiceRemove(ServiceRemoveFlags{
				Name: flags.Name,
				Dir:  flags.Dir,
				Stop: flags.Stop,
			})
		},
	}

	cmd.Flags().StringVar(&flags.Name, "name", "", "service name (required)")
	cmd.Flags().StringVar(&flags.Dir, "dir", "", "service directory (overrides the config)")
	cmd.Flags().BoolVar(&flags.Stop, "stop", false, "stop the running process before removing")

	if err := cmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}

	return cmd
}

// createServiceDiscoverCommand creates the service discover subcommand.
func createServiceDiscoverCommand(observrCommand command) *cobra.Command {
	flags := &ServiceDiscoverFlags{}

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Register services found in the service directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return observrCommand.ServiceDiscover(ServiceDiscoverFlags{Dir: flags.Dir})
		},
	}

	cmd.Flags().StringVar(&flags.Dir, "dir", "", "service directory (overrides the config)")

	return cmd
}

// createServeCommand creates the serve subcommand.
func createServeCommand(observrCommand command, serveFlags *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Run the observr HTTP daemon",
		Long: `Serve the observer, service and change log API over HTTP, with
prometheus metrics on /metrics. Observers declared in the config are
created and started on boot.

Examples:
  observr serve --config=observr.toml
  observr serve observr.toml
  observr serve observr.toml --listen=:9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return observrCommand.Serve(ServeFlags{Listen: serveFlags.Listen}, args)
		},
	}

	cmd.Flags().StringVar(&serveFlags.Listen, "listen", "", "listen address (overrides the config)")

	return cmd
}
