package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
)

// Flags override the environment variable of the same setting
var flagEnv = map[string]string{
	"listen":       "LISTEN_ADDR",
	"registry":     "REGISTRY_FILE",
	"context-file": "CONTEXT_FILE",
	"redis-url":    "REDIS_URL",
	"miss-policy":  "CONTEXT_MISS_POLICY",
	"log-level":    "LOG_LEVEL",
}

var (
	_ = pflag.StringP("listen", "l", "", "Address to listen on (LISTEN_ADDR)")
	_ = pflag.StringP("registry", "r", "", "Model registry file, .toml or .yaml (REGISTRY_FILE)")
	_ = pflag.String("context-file", "", "Static context dataset (CONTEXT_FILE)")
	_ = pflag.String("redis-url", "", "Distributed cache connection string (REDIS_URL)")
	_ = pflag.String("miss-policy", "", "Handling of absent context keys: reload or remember (CONTEXT_MISS_POLICY)")
	_ = pflag.String("log-level", "", "debug, info, warn or error (LOG_LEVEL)")
)

func init() {
	pflag.CommandLine.SortFlags = false
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "\nServe chat completions enriched with cached context.\n\n %s [flags]\n\n", filepath.Base(os.Args[0]))
		pflag.PrintDefaults()
	}

	pflag.Parse()

	applyFlags()
}

func applyFlags() {
	pflag.Visit(func(flag *pflag.Flag) {
		if name, ok := flagEnv[flag.Name]; ok {
			os.Setenv(name, flag.Value.String())
		}
	})
}
