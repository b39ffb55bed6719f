package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"git.ruekov.eu/ruakij/promptrelay/cmd/api/config"
	"git.ruekov.eu/ruakij/promptrelay/cmd/api/controllers"
	"git.ruekov.eu/ruakij/promptrelay/cmd/api/logger"
	"git.ruekov.eu/ruakij/promptrelay/cmd/api/service"
	"git.ruekov.eu/ruakij/promptrelay/lib/environmentchecks"
	"git.ruekov.eu/ruakij/promptrelay/lib/kvcache"
	"git.ruekov.eu/ruakij/promptrelay/lib/llmprovider"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var envDefaults = map[string]string{
	"LISTEN_ADDR":     ":5000",
	"TRUSTED_PROXIES": "10.0.0.0/8",
	"LOG_LEVEL":       "info",

	"REGISTRY_FILE": "",

	"CONTEXT_FILE":        "context.json",
	"CONTEXT_TTL":         "1h",
	"CONTEXT_MISS_POLICY": "reload",
	"CONTEXT_LOCAL_TTL":   "0",
	"CONTEXT_LOCAL_MAX":   "0",

	"CHAT_CONTEXT_KEY":     "api/chat",
	"ENHANCER_CONTEXT_KEY": "api/enhancer",

	"REDIS_URL":     "redis://127.0.0.1:6379/0",
	"REDIS_PREFIX":  "",
	"REDIS_TIMEOUT": "1s",
}

func main() {
	log := logger.Log
	defer log.Sync()

	// Environment-vars
	environmentchecks.HandleDefaults(envDefaults)
	if err := logger.SetLevel(os.Getenv("LOG_LEVEL")); err != nil {
		log.Fatal("Invalid LOG_LEVEL", zap.Error(err))
	}

	registry, err := config.Load(os.Getenv("REGISTRY_FILE"))
	if err != nil {
		log.Fatal("Loading model registry failed", zap.Error(err))
	}
	models, err := registry.ModelRegistry()
	if err != nil {
		log.Fatal("Building model registry failed", zap.Error(err))
	}

	// The default provider has to work, the others may lack their key
	defaultProvider, _ := registry.Provider(registry.DefaultProvider)
	if defaultProvider.APIKeyEnv != "" {
		if err := environmentchecks.HandleRequired([]string{defaultProvider.APIKeyEnv}); err != nil {
			log.Fatal("Default provider is not usable", zap.String("provider", defaultProvider.Name), zap.Error(err))
		}
	}

	// Setup providers
	router := llmprovider.NewRouter()
	for _, provider := range registry.Providers {
		if provider.APIKeyEnv != "" && provider.APIKey() == "" {
			log.Warn("Provider has no API key, requests will be rejected upstream",
				zap.String("provider", provider.Name), zap.String("env", provider.APIKeyEnv))
		}
		router.Register(provider.Name, llmprovider.NewOpenAICompatible(
			provider.Name, provider.BaseURL, provider.APIKey(), logger.Named("provider."+provider.Name),
		))
	}
	log.Info("Providers registered", zap.Strings("providers", router.Names()))

	// Setup services
	contextStore, err := newContextStore()
	if err != nil {
		log.Fatal("Setting up context store failed", zap.Error(err))
	}
	contextStore.Open(context.Background())
	defer contextStore.Close()

	chatService := service.NewChatService(contextStore, models, router, service.ChatServiceOptions{
		ContextKey:   os.Getenv("CHAT_CONTEXT_KEY"),
		SystemPrompt: registry.SystemPrompt,
		MaxTokens:    registry.MaxTokens,
	}, logger.Named("chat"))
	enhancerService := service.NewEnhancerService(chatService, contextStore, os.Getenv("ENHANCER_CONTEXT_KEY"))

	// Setup Router
	log.Info("Setup router..")
	engine := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.ExposeHeaders = []string{"X-Model", "X-Provider", "X-Message-Id", "X-Vercel-AI-Data-Stream"}
	engine.Use(cors.New(corsConfig))

	api := engine.Group("/api")
	controllers.NewChatController(chatService, logger.Named("controller.chat")).RegisterRoutes(api)
	controllers.NewEnhancerController(enhancerService, logger.Named("controller.enhancer")).RegisterRoutes(api)
	controllers.NewModelController(models).RegisterRoutes(api)
	controllers.NewContextController(contextStore, logger.Named("controller.context")).RegisterRoutes(api)

	if err := engine.SetTrustedProxies(splitList(os.Getenv("TRUSTED_PROXIES"))); err != nil {
		log.Fatal("Invalid TRUSTED_PROXIES", zap.Error(err))
	}

	server := &http.Server{
		Addr:    os.Getenv("LISTEN_ADDR"),
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("Start router..", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down..")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func newContextStore() (*service.ContextStore, error) {
	ttl, err := time.ParseDuration(os.Getenv("CONTEXT_TTL"))
	if err != nil {
		return nil, fmt.Errorf("error parsing CONTEXT_TTL: %w", err)
	}
	localTTL, err := time.ParseDuration(os.Getenv("CONTEXT_LOCAL_TTL"))
	if err != nil {
		return nil, fmt.Errorf("error parsing CONTEXT_LOCAL_TTL: %w", err)
	}
	localMax, err := strconv.ParseUint(os.Getenv("CONTEXT_LOCAL_MAX"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("error parsing CONTEXT_LOCAL_MAX: %w", err)
	}
	remoteTimeout, err := time.ParseDuration(os.Getenv("REDIS_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("error parsing REDIS_TIMEOUT: %w", err)
	}
	missPolicy, err := service.ParseMissPolicy(os.Getenv("CONTEXT_MISS_POLICY"))
	if err != nil {
		return nil, err
	}

	var remote kvcache.Cache = kvcache.Nop{}
	if url := os.Getenv("REDIS_URL"); url != "" {
		redis, err := kvcache.OpenRedis(url, os.Getenv("REDIS_PREFIX"))
		if err != nil {
			return nil, err
		}
		remote = redis
	} else {
		logger.Log.Warn("REDIS_URL is empty, running without distributed cache")
	}

	return service.NewContextStore(remote, service.ContextStoreOptions{
		DatasetPath:     os.Getenv("CONTEXT_FILE"),
		TTL:             ttl,
		RemoteTimeout:   remoteTimeout,
		MissPolicy:      missPolicy,
		LocalTTL:        localTTL,
		LocalMaxEntries: uint(localMax),
	}, logger.Named("context")), nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
