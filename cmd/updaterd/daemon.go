package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pitools/updaterd/internal/checker"
	"github.com/pitools/updaterd/internal/config"
	"github.com/pitools/updaterd/internal/control"
	"github.com/pitools/updaterd/internal/gate"
	"github.com/pitools/updaterd/internal/health"
	"github.com/pitools/updaterd/internal/launcher"
	"github.com/pitools/updaterd/internal/logging"
	"github.com/pitools/updaterd/internal/notify"
	"github.com/pitools/updaterd/internal/pkgbackend"
	"github.com/pitools/updaterd/internal/scheduler"
	"github.com/pitools/updaterd/internal/state"
	"github.com/pitools/updaterd/internal/workerpool"
)

// daemon owns the wired-together components and backs the control socket.
type daemon struct {
	cfg      *config.Config
	backend  pkgbackend.Backend
	gate     *gate.Gate
	sink     *state.Sink
	checker  *checker.Checker
	sched    *scheduler.Scheduler
	launcher *launcher.Launcher
	monitor  *health.Monitor
	pool     *workerpool.Pool
}

func runDaemon() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if socketPath != "" {
		cfg.SocketPath = socketPath
	}
	cfg.Validate()

	var logWriter io.Writer = os.Stderr
	var rotating *logging.RotatingWriter
	if cfg.LogFile != "" {
		rotating, err = logging.NewRotatingWriter(cfg.LogFile, 10, 3)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer rotating.Close()
		logWriter = rotating
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, logWriter)
	log := logging.L("daemon")
	log.Info("starting", "version", version, "backend", cfg.Backend, "intervalHours", cfg.IntervalHours)

	backend, err := pkgbackend.Detect(cfg.Backend)
	if err != nil {
		return err
	}

	g := gate.New()
	policy := pkgbackend.DefaultPolicy(gate.NewPlatformProbe().KernelArch(), cfg.ExcludeArchs)
	log.Info("architecture filter", "exclude", policy.Exclude)

	sink := state.NewSink()
	if cfg.NotifyEnabled {
		sink.Subscribe(notify.Observer(&notify.DesktopNotifier{}))
	}

	monitor := health.NewMonitor()
	chk := checker.New(backend, g, sink, policy)
	pool := workerpool.New(1, 4)

	d := &daemon{
		cfg:      cfg,
		backend:  backend,
		gate:     g,
		sink:     sink,
		checker:  chk,
		launcher: launcher.New(g, cfg.InstallerPath, cfg.AskpassPath),
		monitor:  monitor,
		pool:     pool,
	}

	d.sched = scheduler.New(d.runCheck, g, time.Duration(cfg.IntervalHours)*time.Hour,
		time.Duration(cfg.NetworkPollSeconds)*time.Second)
	d.sched.Start()

	ctl := control.NewServer(cfg.SocketPath, d)
	if err := ctl.Start(); err != nil {
		d.sched.Stop()
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			d.reload(rotating)
			continue
		}
		log.Info("shutting down", "signal", sig.String())
		break
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ctl.Stop(ctx); err != nil {
		log.Warn("control server stop", "error", err)
	}
	d.sched.Stop()
	d.pool.Drain(ctx)
	return nil
}

// runCheck is what the scheduler fires. The pool keeps checks off the
// scheduler goroutine and drops a trigger when one is already queued.
func (d *daemon) runCheck() {
	ok := d.pool.Submit(func() {
		d.monitor.Update(health.ComponentNetwork, networkStatus(d.gate), "")
		_, err := d.checker.Run(context.Background())
		if err == checker.ErrCheckInProgress {
			return
		}
		d.monitor.UpdateFromError(health.ComponentChecker, err)
	})
	if !ok {
		logging.L("daemon").Warn("check dropped, queue full")
	}
}

// reload re-reads the config and applies the new interval; on SIGHUP
// the log file is also reopened so logrotate can move it.
func (d *daemon) reload(rotating *logging.RotatingWriter) {
	log := logging.L("daemon")
	if rotating != nil {
		if err := rotating.Reopen(); err != nil {
			log.Warn("log reopen failed", "error", err)
		}
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Warn("config reload failed", "error", err)
		return
	}
	cfg.Validate()

	if cfg.IntervalHours != d.cfg.IntervalHours {
		log.Info("check interval changed", "hours", cfg.IntervalHours)
		d.sched.Reconfigure(time.Duration(cfg.IntervalHours) * time.Hour)
	}
	d.cfg = cfg
}

func networkStatus(g *gate.Gate) health.Status {
	if g.Network() {
		return health.Healthy
	}
	return health.Degraded
}

// TriggerCheck implements control.Daemon.
func (d *daemon) TriggerCheck() (bool, string) {
	if d.checker.Phase() != checker.PhaseIdle {
		return false, checker.ErrCheckInProgress.Error()
	}
	if !d.gate.Network() {
		return false, checker.ErrNoNetwork.Error()
	}
	d.sched.CheckNow()
	return true, ""
}

// Status implements control.Daemon.
func (d *daemon) Status() control.StatusResponse {
	return control.StatusResponse{
		Updates:        d.sink.Current(),
		SchedulerState: d.sched.State().String(),
		NextCheck:      d.sched.NextCheck(),
		CheckRunning:   d.checker.Phase() != checker.PhaseIdle,
		Backend:        d.backend.Name(),
		Health:         string(d.monitor.Overall()),
	}
}

// LaunchInstall implements control.Daemon.
func (d *daemon) LaunchInstall() error {
	return d.launcher.RequestInstall()
}
