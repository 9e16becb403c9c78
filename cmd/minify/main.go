package main

import (
	"fmt"
	"os"

	"github.com/woozymasta/drawmap/internal/config"
	"github.com/woozymasta/drawmap/internal/page"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	ConfigFile string `short:"c" long:"config" env:"CONFIG_FILE" description:"Path to configuration file" default:"config.yaml"`
	API        string `short:"a" long:"api"    description:"Base URL of the drawmap server the page talks to"`
	Output     string `short:"o" long:"out"    description:"Output file path" default:"index.html"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cfg, err := config.LoadOrDefault(opts.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	html, err := page.Render(cfg, opts.API)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering page: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(opts.Output, html, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "minify done: %s (%d bytes)\n", opts.Output, len(html))
}
