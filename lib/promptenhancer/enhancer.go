package promptenhancer

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const contextMarker = "\n\nContext:\n"

// ContextRenderer supplies client-side context appended to the prompt before it is sent
type ContextRenderer interface {
	Render(ctx context.Context, key string) (string, error)
}

type Option func(*Enhancer)

// WithContext appends the context stored under key to every prompt
func WithContext(contexts ContextRenderer, key string) Option {
	return func(e *Enhancer) {
		e.contexts = contexts
		e.contextKey = key
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(e *Enhancer) {
		e.log = log
	}
}

// Enhancer rewrites an input through the enhancer endpoint and tracks the progress flags of the last run
type Enhancer struct {
	streamer   Streamer
	contexts   ContextRenderer
	contextKey string
	log        *zap.Logger

	mutex           sync.Mutex
	enhancingPrompt bool
	promptEnhanced  bool

	pending sync.WaitGroup
}

func NewEnhancer(streamer Streamer, options ...Option) *Enhancer {
	e := &Enhancer{
		streamer: streamer,
		log:      zap.NewNop(),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

func (e *Enhancer) EnhancingPrompt() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.enhancingPrompt
}

func (e *Enhancer) PromptEnhanced() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.promptEnhanced
}

func (e *Enhancer) Reset() {
	e.setFlags(false, false)
}

func (e *Enhancer) setFlags(enhancing, enhanced bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.enhancingPrompt = enhancing
	e.promptEnhanced = enhanced
}

// Enhance streams the improved version of input into setInput. The input is cleared first and
// receives the text so far after every chunk. On failure the original input is restored and the
// error returned. Either way the flags flip to enhanced and one more setInput with the final
// value runs asynchronously; Wait blocks until it has.
func (e *Enhancer) Enhance(ctx context.Context, input string, setInput func(value string)) error {
	e.setFlags(true, false)

	text, err := e.run(ctx, input, setInput)
	final := text
	if err != nil {
		setInput(input)
		final = input
		e.log.Error("Enhancing prompt failed", zap.Error(err))
	}

	e.setFlags(false, true)

	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		setInput(final)
	}()

	return err
}

func (e *Enhancer) run(ctx context.Context, input string, setInput func(value string)) (string, error) {
	message := input
	if e.contexts != nil {
		rendered, err := e.contexts.Render(ctx, e.contextKey)
		if err != nil {
			return "", err
		}
		message += contextMarker + rendered
	}

	stream, err := e.streamer.Stream(ctx, message)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	setInput("")
	return Consume(ctx, stream, func(text string) {
		e.log.Debug("Set input", zap.Int("length", len(text)))
		setInput(text)
	})
}

// Wait blocks until every scheduled final update has been delivered
func (e *Enhancer) Wait() {
	e.pending.Wait()
}
