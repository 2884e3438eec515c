package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	c "lautenbacher.net/goglove/config"
	"lautenbacher.net/goglove/gesture"
	"lautenbacher.net/goglove/logging"
	pl "lautenbacher.net/goglove/platform"
	"lautenbacher.net/goglove/scheduler"
	"lautenbacher.net/goglove/state"
)

type App struct {
	ossignal    chan os.Signal
	conf        *c.Config
	platform    pl.Platform
	shared      *state.Shared
	sched       *scheduler.Scheduler
	latch       *gesture.Latch
	newPlatform func(conf *c.Config, shared *state.Shared, ossignal chan os.Signal) pl.Platform
	shutdownWg  sync.WaitGroup
	stopsignal  chan struct{}
	cancel      context.CancelFunc
}

func NewApp(ossignal chan os.Signal) *App {
	return &App{
		ossignal:    ossignal,
		newPlatform: defaultPlatform,
		stopsignal:  make(chan struct{}),
	}
}

func defaultPlatform(conf *c.Config, shared *state.Shared, ossignal chan os.Signal) pl.Platform {
	if conf.RealHW {
		return pl.NewRaspberryPiPlatform(conf)
	}
	return pl.NewTUIPlatform(conf, shared, ossignal)
}

func main() {
	cfile := flag.String("config", c.CONFILE, "Config file to use")
	realp := flag.Bool("real", false, "Run on the glove hardware instead of the terminal simulation")
	diag := flag.Bool("diag", false, "Blink all lights on and off instead of running the control loop")
	watch := flag.Bool("watch", false, "Restart when the config file changes")
	flag.Parse()

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for {
		conf, err := c.ReadConfig(*cfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
			os.Exit(2)
		}
		conf.RealHW = *realp

		if err := logging.Init(!conf.RealHW, conf.Log()); err != nil {
			fmt.Fprintf(os.Stderr, "Error initialising logging: %v\n", err)
			os.Exit(2)
		}

		app := NewApp(ossignal)
		if err := app.initialise(conf); err != nil {
			slog.Error("Failed to initialise", "error", err)
			app.shutdown()
			logging.Close()
			os.Exit(1)
		}

		sig := app.run(*diag, *watch)
		app.shutdown()

		if sig != syscall.SIGHUP {
			slog.Info("Exiting...", "signal", sig)
			logging.Close()
			return
		}
		slog.Info("Reloading config and restarting...", "file", *cfile)
		logging.Close()
	}
}

// initialise starts the platform and builds the control loop on top of it.
func (a *App) initialise(conf *c.Config) error {
	a.conf = conf
	a.shared = state.NewShared(state.Production, conf.Animation.MaxLit)

	a.platform = a.newPlatform(conf, a.shared, a.ossignal)
	if err := a.platform.Start(); err != nil {
		return fmt.Errorf("failed to start platform: %w", err)
	}
	<-a.platform.Ready()

	seed := uint64(time.Now().UnixNano())
	a.sched = scheduler.New(conf, a.platform.Driver(), a.platform.Contacts(), a.shared,
		rand.New(rand.NewPCG(seed, seed>>32)))
	a.platform.Observe(a.sched.Reports())

	first, second := conf.GestureContacts()
	a.latch = gesture.NewLatch(a.platform.Contacts(), first, second, conf.Gesture.Threshold, a.shared)

	slog.Info("Initialised", "realhw", conf.RealHW, "config", conf.Configfile,
		"usable", a.platform.Driver().UsableChannels(), "gesture", conf.Gesture.Contacts)
	return nil
}

// run starts the go-routines and blocks until a signal arrives, which it
// returns.
func (a *App) run(diag, watch bool) os.Signal {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if diag {
		a.shutdownWg.Add(1)
		go func() {
			defer a.shutdownWg.Done()
			a.sched.DiagnosticBlink(ctx)
		}()
	} else {
		a.shutdownWg.Add(2)
		go func() {
			defer a.shutdownWg.Done()
			a.latch.Run(ctx, a.conf.Gesture.TickPeriod)
		}()
		go func() {
			defer a.shutdownWg.Done()
			a.sched.Run(ctx)
		}()
	}

	if watch && a.conf.Configfile != "" {
		if err := a.watchConfig(); err != nil {
			slog.Warn("Not watching config file", "error", err)
		}
	}

	return <-a.ossignal
}

// watchConfig turns a change of the config file into a SIGHUP.
func (a *App) watchConfig() error {
	changed, err := c.Watch(a.conf.Configfile, a.stopsignal)
	if err != nil {
		return err
	}
	a.shutdownWg.Add(1)
	go func() {
		defer a.shutdownWg.Done()
		select {
		case <-a.stopsignal:
		case <-changed:
			select {
			case a.ossignal <- syscall.SIGHUP:
			default:
			}
		}
	}()
	return nil
}

// shutdown stops all go-routines first, then the platform.
func (a *App) shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
	close(a.stopsignal)
	a.shutdownWg.Wait()
	if a.platform != nil {
		a.platform.Stop()
	}
}
