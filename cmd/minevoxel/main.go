package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/vkngwrapper/minevoxel/internal/config"
	"github.com/vkngwrapper/minevoxel/internal/gpu"
)

func main() {
	runtime.LockOSThread()

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	gpu.SetLogger(logger)

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads -config, if given, then applies any flags that were set
// explicitly on top of it.
func loadConfig(args []string) (config.Config, error) {
	flags := flag.NewFlagSet("minevoxel", flag.ContinueOnError)
	path := flags.String("config", "", "path to a TOML config file")
	validation := flags.Bool("validation", false, "enable the Vulkan validation layers")
	presentMode := flags.String("present-mode", "", "preferred present mode: immediate, mailbox, fifo or fifo_relaxed")
	width := flags.Int("width", 0, "initial window width")
	height := flags.Int("height", 0, "initial window height")
	assets := flags.String("assets", "", "asset root directory")
	if err := flags.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	if *path != "" {
		var err error
		cfg, err = config.Load(*path)
		if err != nil {
			return config.Config{}, err
		}
	}

	var err error
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "validation":
			cfg.Renderer.Validation = *validation
		case "present-mode":
			err = cfg.Renderer.PresentMode.UnmarshalText([]byte(*presentMode))
		case "width":
			cfg.Window.Width = *width
		case "height":
			cfg.Window.Height = *height
		case "assets":
			cfg.Assets.Root = *assets
		}
	})
	if err != nil {
		return config.Config{}, err
	}

	return cfg, cfg.Validate()
}
