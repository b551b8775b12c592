package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"securewipe_enterprise/internal/config"
	"securewipe_enterprise/internal/devinfo"
	"securewipe_enterprise/internal/logging"
	"securewipe_enterprise/internal/reporting"
	"securewipe_enterprise/internal/wipe"
)

const (
	Version = "1.0.0"

	// Exit codes
	ExitSuccess        = 0
	ExitPartialFailure = 1
	ExitAborted        = 2
	ExitError          = 3
)

var (
	cfg        *config.Config
	log        *zap.Logger
	configPath string
	verbose    bool

	methodName  string
	verifyMode  string
	samples     int
	concurrency int
	isDevice    bool
	dryRun      bool
	force       bool
	reportDir   string
	abortAll    bool
)

var rootCmd = &cobra.Command{
	Use:     "securewipe",
	Short:   "securewipe - irreversible, auditable destruction of data",
	Long:    "Secure erasure utility: overwrites files, directory trees or block devices to a chosen standard and seals a tamper-evident record of the result.",
	Version: Version,
}

var wipeCmd = &cobra.Command{
	Use:   "wipe <target>",
	Short: "Wipe a file, directory tree or block device",
	Args:  cobra.ExactArgs(1),
	RunE:  runWipe,
}

var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "List wipe methods and their pass sequences",
	RunE:  runMethods,
}

var deviceInfoCmd = &cobra.Command{
	Use:   "device-info <device>",
	Short: "Describe a block device (size, mount state)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeviceInfo,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	wipeCmd.Flags().StringVarP(&methodName, "method", "m", "quick", "wipe method (quick/nist/dod)")
	wipeCmd.Flags().StringVar(&verifyMode, "verify", "full", "verification policy (full/sampled/none)")
	wipeCmd.Flags().IntVar(&samples, "samples", 0, "sample count for sampled verification")
	wipeCmd.Flags().IntVar(&concurrency, "concurrency", 0, "worker pool size (0 = auto)")
	wipeCmd.Flags().BoolVar(&isDevice, "device", false, "treat target as a block device")
	wipeCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "resolve and authorize without writing")
	wipeCmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")
	wipeCmd.Flags().StringVar(&reportDir, "report-dir", "", "directory for the sealed record JSON")
	wipeCmd.Flags().BoolVar(&abortAll, "abort-all-on-denial", false, "abort the whole run when any unit is denied")

	rootCmd.AddCommand(wipeCmd, methodsCmd, deviceInfoCmd)
}

func main() {
	cobra.OnInitialize(initConfig)
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

func initConfig() {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(ExitError)
	}
	log, err = logging.New(cfg.Logging, verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(ExitError)
	}
}

func runWipe(cmd *cobra.Command, args []string) error {
	defer log.Sync()
	target := args[0]

	method, err := wipe.ParseMethod(methodName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}

	mode, err := wipe.ParseVerifyMode(verifyMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}

	unitTimeout, err := cfg.ParsedUnitTimeout()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}

	req := wipe.Request{
		Target: target,
		Method: method,
		Verify: wipe.VerifyPolicy{
			Mode:         mode,
			SampleCount:  firstNonZero(samples, cfg.Verify.SampleCount),
			SampleWindow: cfg.Verify.SampleWindow,
		},
		Concurrency:      firstNonZero(concurrency, cfg.Wipe.MaxConcurrent),
		UnitTimeout:      unitTimeout,
		AbortAllOnDenial: abortAll || cfg.Security.AbortAllOnDenial,
		DryRun:           dryRun,
		ChunkSize:        cfg.Wipe.ChunkSize,
		MaxSpeedMBps:     cfg.Wipe.MaxSpeedMBps,
		SyncInterval:     cfg.Wipe.SyncInterval,
		Protected:        cfg.Security.ProtectedPaths,
	}

	if isDevice {
		dev, err := devinfo.Describe(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(ExitError)
		}
		req.Device = &wipe.DeviceExtent{Path: dev.Path, Size: dev.Size}
	}

	if !force && !dryRun {
		fmt.Printf("About to IRREVERSIBLY destroy %q with method %s. Type YES to continue: ", target, method)
		var answer string
		fmt.Scanln(&answer)
		if answer != "YES" {
			fmt.Println("aborted by operator")
			os.Exit(ExitAborted)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := wipe.NewEngine(log)
	record, err := engine.Run(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}

	reporting.PrintSummary(record)

	dir := reportDir
	if dir == "" && cfg.Reporting.Enabled {
		dir = cfg.Reporting.LocalPath
	}
	if dir != "" {
		path, err := reporting.Save(record, dir)
		if err != nil {
			log.Warn("failed to save record", zap.Error(err))
		} else {
			fmt.Printf("record saved: %s\n", path)
		}
	}

	os.Exit(exitCode(record))
	return nil
}

// exitCode maps the sealed record onto the process exit convention:
// 0 success, 1 partial failure, 2 aborted, 3 invocation-level error
// (including a safety denial on the sole target).
func exitCode(rec *wipe.WipeRecord) int {
	if len(rec.Units) == 1 && rec.Units[0].Denied {
		return ExitError
	}
	switch rec.Outcome {
	case wipe.RunSuccess:
		return ExitSuccess
	case wipe.RunPartialFailure:
		return ExitPartialFailure
	default:
		return ExitAborted
	}
}

func runMethods(cmd *cobra.Command, args []string) error {
	for _, m := range []wipe.WipeMethod{wipe.MethodQuick, wipe.MethodNIST, wipe.MethodDoD} {
		passes, err := wipe.PassesFor(m)
		if err != nil {
			return err
		}
		fmt.Printf("%-6s %d pass(es):", m, len(passes))
		for _, p := range passes {
			fmt.Printf(" %s", p.Pattern)
		}
		if m.RequiresVerification() {
			fmt.Print("  (verification mandatory)")
		}
		fmt.Println()
	}
	return nil
}

func runDeviceInfo(cmd *cobra.Command, args []string) error {
	dev, err := devinfo.Describe(args[0])
	if err != nil {
		return cerr.Wrap(err, "device info")
	}
	fmt.Printf("device:      %s\n", dev.Path)
	fmt.Printf("size:        %d bytes (%.2f GiB)\n", dev.Size, float64(dev.Size)/(1024*1024*1024))
	if dev.Mounted {
		fmt.Printf("mounted at:  %s (wiping will be denied)\n", dev.MountPoint)
	} else {
		fmt.Println("mounted:     no")
	}
	return nil
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
