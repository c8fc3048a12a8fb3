package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickmux/internal/app"
	"tickmux/internal/config"
	"tickmux/pkg/hive"
	logx "tickmux/pkg/logx"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal env:", err)
		os.Exit(1)
	}

	var cfgPath string
	flag.StringVar(&cfgPath, "config", env.ConfigPath, "path to config yaml/json (env TICKMUX_CONFIG)")
	flag.Parse()

	boot := logx.NewConsole(env.LogLevel).With(logx.Component("main"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	h := hive.Get()
	defer h.Shutdown()

	a, err := app.NewApp(cfgPath, h)
	if err != nil {
		boot.Error("fatal", logx.Err(err))
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		boot.Error("fatal start", logx.Err(err))
		_ = a.Stop(context.Background())
		os.Exit(1)
	}

	select {
	case <-ctx.Done():
	case <-a.Done():
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx); err != nil {
		boot.Error("stop", logx.Err(err))
	}
}
