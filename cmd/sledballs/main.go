// Command sledballs runs a multiple object tracking experiment on the sled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/wilberth/SledBalls/internal/fsutil"
	"github.com/wilberth/SledBalls/internal/monitoring"
	"github.com/wilberth/SledBalls/internal/timeutil"
	"github.com/wilberth/SledBalls/internal/version"
)

func main() {
	opts, err := ParseOptions(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("sledballs: %v", err)
	}
	if opts.Version {
		fmt.Println(version.String("sledballs"))
		return
	}

	writers := monitoring.LogWriters{Ops: os.Stderr, Diag: os.Stderr}
	if opts.Trace {
		writers.Trace = os.Stderr
	}
	monitoring.SetLogWriters(writers)

	cfg, err := loadConfig(opts)
	if err != nil {
		log.Fatalf("sledballs: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{
		opts:   opts,
		cfg:    cfg,
		clock:  timeutil.RealClock{},
		fsys:   fsutil.OSFileSystem{},
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}
	if err := a.run(ctx); err != nil {
		monitoring.Opsf("session ended with error: %v", err)
		stop()
		os.Exit(1)
	}
	monitoring.Opsf("session ended")
}
