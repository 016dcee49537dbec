package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	coreconfig "github.com/lumio-chat/inlinegw/core/config"
	coreDB "github.com/lumio-chat/inlinegw/core/database"
	domainCache "github.com/lumio-chat/inlinegw/domains/cache"
	"github.com/lumio-chat/inlinegw/infrastructure/botapi"
	"github.com/lumio-chat/inlinegw/infrastructure/peerdir"
	"github.com/lumio-chat/inlinegw/infrastructure/resultstore"
	"github.com/lumio-chat/inlinegw/infrastructure/valkey"
	"github.com/lumio-chat/inlinegw/pkg/location"
	uiRest "github.com/lumio-chat/inlinegw/ui/rest"
	"github.com/lumio-chat/inlinegw/ui/rest/middleware"
	"github.com/lumio-chat/inlinegw/usecase"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the inline query API over http",
	Run:   restServer,
}

func init() {
	restCmd.Flags().String("basic-auth", "", "Basic auth for API (format: user:pass,user2:pass2)")
	rootCmd.AddCommand(restCmd)
}

// newResultStore picks the store backend per configuration: Valkey when
// enabled, the relational on-disk store otherwise. The returned cleanup
// closes whatever was opened.
func newResultStore(cfg *coreconfig.Config) (domainCache.IResultStore, error) {
	if cfg.Database.ValkeyEnabled {
		client, err := valkey.NewClient(valkey.Config{
			Address:   cfg.Database.ValkeyAddress,
			Password:  cfg.Database.ValkeyPassword,
			DB:        cfg.Database.ValkeyDB,
			KeyPrefix: cfg.Database.ValkeyKeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		logrus.Infof("[STORE] Using valkey result store at %s", cfg.Database.ValkeyAddress)
		return resultstore.NewValkeyResultStore(client), nil
	}

	if err := os.MkdirAll(cfg.Paths.Storages, 0755); err != nil {
		return nil, err
	}
	db, err := coreDB.NewDatabase(cfg)
	if err != nil {
		return nil, err
	}
	store := resultstore.NewGormResultStore(db)
	if err := store.Init(context.Background()); err != nil {
		return nil, err
	}
	logrus.Infof("[STORE] Using %s result store at %s", cfg.Database.Driver, cfg.Database.Name)
	return store, nil
}

func restServer(cmd *cobra.Command, _ []string) {
	cfg := coreconfig.Global

	if baFlag, _ := cmd.Flags().GetString("basic-auth"); baFlag != "" {
		cfg.App.BasicAuth = strings.Split(baFlag, ",")
	}

	store, err := newResultStore(cfg)
	if err != nil {
		logrus.Fatalf("Failed to open result store: %v", err)
	}
	defer store.Close()

	var locations location.Source
	if cfg.Inline.HasFixedPoint {
		locations = location.Static{
			Latitude:  cfg.Inline.FixedLatitude,
			Longitude: cfg.Inline.FixedLongitude,
		}
	}

	inlineService := usecase.NewInlineService(
		peerdir.NewClient(cfg.Inline.DirectoryBaseURL, cfg.Inline.RequestTimeout),
		botapi.NewClient(cfg.Inline.ProviderBaseURL, cfg.Inline.RequestTimeout),
		store,
		locations,
		domainCache.EvictionPolicy{
			LowWater:  cfg.Inline.CacheLowWater,
			HighWater: cfg.Inline.CacheHighWater,
		},
		cfg.Inline.MinPersistTimeout,
	)

	fiberConfig := fiber.Config{
		AppName:      "inlinegw",
		ServerHeader: "Hidden",
		Network:      "tcp",
	}
	if len(cfg.App.TrustedProxies) > 0 {
		fiberConfig.EnableTrustedProxyCheck = true
		fiberConfig.TrustedProxies = cfg.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedFor
	}

	app := fiber.New(fiberConfig)
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.Recovery())
	if cfg.App.Debug {
		app.Use(logger.New())
	}

	if len(cfg.App.BasicAuth) > 0 {
		account := make(map[string]string)
		for _, ba := range cfg.App.BasicAuth {
			parts := strings.Split(ba, ":")
			if len(parts) != 2 {
				logrus.Fatalln("Basic auth is not valid, please use the format <user>:<secret>")
			}
			account[parts[0]] = parts[1]
		}
		app.Use(basicauth.New(basicauth.Config{Users: account}))
	}

	api := app.Group(cfg.App.BasePath)
	uiRest.InitRestApp(api)
	uiRest.InitRestInline(api, inlineService)

	go func() {
		if err := app.Listen(":" + cfg.App.Port); err != nil {
			logrus.Fatalf("REST server stopped: %v", err)
		}
	}()
	logrus.Infof("[REST] Listening on :%s", cfg.App.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Infoln("[REST] Shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logrus.Errorf("Failed to shut down cleanly: %v", err)
	}
}
