package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"git.ruekov.eu/ruakij/promptrelay/cmd/api/logger"
	"git.ruekov.eu/ruakij/promptrelay/cmd/api/service"
	"git.ruekov.eu/ruakij/promptrelay/lib/promptenhancer"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	urlFlag         = pflag.StringP("url", "u", "http://127.0.0.1:5000", "Base URL of the relay")
	wsFlag          = pflag.Bool("ws", false, "Use the WebSocket endpoint")
	timeoutFlag     = pflag.DurationP("timeout", "t", 0, "Overall timeout, 0 to disable")
	contextFileFlag = pflag.String("context-file", "", "Append context from this dataset to the prompt")
	contextKeyFlag  = pflag.String("context-key", "client/enhance", "Dataset key used with --context-file")
	logLevelFlag    = pflag.String("log-level", "warn", "debug, info, warn or error")
)

func init() {
	pflag.CommandLine.SortFlags = false
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "\nImprove a prompt through the relay and print the result as it streams.\n"+
			"Without arguments the prompt is read from stdin.\n\n %s [flags] [prompt ..]\n\n", filepath.Base(os.Args[0]))
		pflag.PrintDefaults()
	}
}

func main() {
	pflag.Parse()

	if err := logger.SetLevel(*logLevelFlag); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logger.Named("enhance")
	defer log.Sync()

	input, err := readInput()
	if err != nil {
		log.Fatal("Reading prompt failed", zap.Error(err))
	}
	if strings.TrimSpace(input) == "" {
		pflag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *timeoutFlag > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeoutFlag)
		defer cancel()
	}

	var streamer promptenhancer.Streamer = promptenhancer.NewHTTPStreamer(*urlFlag, 0)
	if *wsFlag {
		streamer = promptenhancer.NewWSStreamer(*urlFlag, 10*time.Second)
	}

	options := []promptenhancer.Option{promptenhancer.WithLogger(log)}
	if *contextFileFlag != "" {
		contexts := service.NewContextStore(nil, service.ContextStoreOptions{
			DatasetPath: *contextFileFlag,
		}, log.Named("context"))
		options = append(options, promptenhancer.WithContext(contexts, *contextKeyFlag))
	}

	out := &terminal{w: os.Stdout}
	enhancer := promptenhancer.NewEnhancer(streamer, options...)
	err = enhancer.Enhance(ctx, input, out.set)
	enhancer.Wait()
	out.finish()

	if err != nil {
		fmt.Fprintln(os.Stderr, "enhancement failed, original prompt kept:", err)
		os.Exit(1)
	}
}

func readInput() (string, error) {
	if pflag.NArg() > 0 {
		return strings.Join(pflag.Args(), " "), nil
	}
	data, err := io.ReadAll(os.Stdin)
	return string(data), err
}

// terminal prints the growing input value. A value that does not extend the printed text starts a new line.
type terminal struct {
	w       io.Writer
	printed string
}

func (t *terminal) set(value string) {
	switch {
	case value == t.printed:
	case strings.HasPrefix(value, t.printed):
		io.WriteString(t.w, value[len(t.printed):])
	case value == "":
	default:
		if t.printed != "" {
			io.WriteString(t.w, "\n")
		}
		io.WriteString(t.w, value)
	}
	t.printed = value
}

func (t *terminal) finish() {
	if t.printed != "" && !strings.HasSuffix(t.printed, "\n") {
		io.WriteString(t.w, "\n")
	}
}
