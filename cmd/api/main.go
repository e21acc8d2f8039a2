package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/fake-audience/backend/internal/analysis/facematch"
	"github.com/zhouzirui/fake-audience/backend/internal/analysis/viewers"
	"github.com/zhouzirui/fake-audience/backend/internal/config"
	"github.com/zhouzirui/fake-audience/backend/internal/handler"
	"github.com/zhouzirui/fake-audience/backend/internal/model/face"
	"github.com/zhouzirui/fake-audience/backend/internal/model/persona"
	"github.com/zhouzirui/fake-audience/backend/internal/service/ai"
	"github.com/zhouzirui/fake-audience/backend/internal/service/audience"
	"github.com/zhouzirui/fake-audience/backend/internal/service/broker"
	"github.com/zhouzirui/fake-audience/backend/internal/service/hub"
	"github.com/zhouzirui/fake-audience/backend/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	personas, err := persona.Load(cfg.Personas.CataloguePath)
	if err != nil {
		log.Fatalf("failed to load persona catalogue: %v", err)
	}
	log.Printf("loaded %d personas", len(personas))

	faces := openFaceStore(cfg.Faces)
	matcher := facematch.New(cfg.Faces.MatchThreshold)

	// 未配置 Ark 时使用离线回复，观众依旧会说话
	var completer ai.Completer
	if cfg.AI.Enabled() {
		chain, err := ai.NewArkCompleter(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI completer: %v", err)
			log.Println("continuing with canned replies - 请检查 Ark 模型相关环境变量")
		} else {
			completer = chain
			log.Println("AI completer initialized successfully")
		}
	} else {
		log.Println("Ark 凭证未配置，使用离线弹幕")
	}
	generator := ai.NewGenerator(completer, cfg.AI.Timeout)

	var hubOpts []hub.Option
	mqttCfg := broker.Config{
		Broker:      cfg.MQTT.Broker,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		ClientID:    cfg.MQTT.ClientID,
	}
	if mqttCfg.Enabled() {
		mirror := broker.NewMQTTMirror(mqttCfg)
		if err := mirror.Connect(ctx); err != nil {
			log.Printf("warning: MQTT mirror unavailable: %v", err)
		} else {
			defer mirror.Disconnect()
			hubOpts = append(hubOpts, hub.WithMirror(mirror))
		}
	}
	rooms := hub.New(hubOpts...)

	registry := session.NewRegistry(ctx)
	scheduler := audience.New(
		audienceConfig(cfg.Audience),
		registry,
		rooms,
		personas,
		generator,
		audience.WithFaceGallery(faces, matcher),
	)
	defer scheduler.Close()

	router := handler.NewRouter(handler.Dependencies{
		Personas:    persona.NewMemoryStore(personas),
		Sessions:    registry,
		Hub:         rooms,
		Audience:    scheduler,
		Faces:       faces,
		Matcher:     matcher,
		KeepSamples: cfg.Faces.KeepSamples,
		Generator:   generator,
	})

	startServer(ctx, cfg.Server, router)
}

func openFaceStore(cfg config.FacesConfig) face.Store {
	if cfg.GalleryPath == "" {
		return face.NewMemoryStore()
	}
	store, err := face.OpenFileStore(cfg.GalleryPath)
	if err != nil {
		log.Fatalf("failed to open face gallery: %v", err)
	}
	log.Printf("[faces] gallery persisted at %s", cfg.GalleryPath)
	return store
}

func audienceConfig(c config.AudienceConfig) audience.Config {
	return audience.Config{
		IdleMin:             c.IdleMin,
		IdleMax:             c.IdleMax,
		BurstSize:           c.BurstSize,
		Stagger:             c.Stagger,
		MentionCooldown:     c.MentionCooldown,
		MinConfidence:       c.MinConfidence,
		MinTranscriptLength: c.MinTranscriptLength,
		GreetingDelay:       c.GreetingDelay,
		Band:                viewers.Band{Min: c.MinViewers, Max: c.MaxViewers},
		InitialAudience:     c.InitialViewers,
		DriftInterval:       c.DriftInterval,
		DriftStepMin:        c.DriftStepMin,
		DriftStepMax:        c.DriftStepMax,
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("fake-audience backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
