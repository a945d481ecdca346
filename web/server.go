package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"namiokai/config"
	dbt "namiokai/db/db"
	"namiokai/db/mem"
	"namiokai/db/pg"
	"namiokai/mq/gcppubsub"
	"namiokai/mq/goch"
	"namiokai/mq/mq"
	rabbitMQ "namiokai/mq/rabbit"
)

const shutdownTimeout = 5 * time.Second

type ServiceConfig struct {
	IsDev  bool
	Port   string
	DBMode string
	MqMode mq.Mode
	Config *config.Config
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(svc *Services, isDev bool) *gin.Engine {
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	setupMiddlewares(r, isDev, svc.Store)

	h := &handlers{svc: svc}
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/periods", h.periods)

	r.POST("/bills", h.createBill)
	r.PUT("/bills/:id", h.updateBill)
	r.DELETE("/bills/:kind/:id", h.deleteBill)

	r.POST("/spaces", h.createSpace)
	r.GET("/spaces/:spaceId/debts", h.spaceDebts)
	r.GET("/spaces/:spaceId/bills", h.spaceBills)
	r.GET("/spaces/:spaceId/settlement", h.spaceSettlement)

	r.GET("/users/:uid/spaces", h.userSpaces)
	r.PUT("/users/:uid", h.upsertUser)

	r.GET("/ws/spaces/:spaceId/debts", h.watchSpaceDebts)
	return r
}

func openStore(mode, databaseURL string) (dbt.Store, func(), error) {
	switch mode {
	case config.DBModeMem:
		return mem.NewInMemoryDBWrapper(), func() {}, nil
	case config.DBModePG:
		db, err := pg.InitPostgresGORM(pg.CreateDSN(databaseURL))
		if err != nil {
			return nil, nil, err
		}
		return pg.NewGORMDBWrapper(db), func() { pg.CloseGORM(db) }, nil
	}
	return nil, nil, fmt.Errorf("unknown db mode %q", mode)
}

func openQueue(ctx context.Context, mode mq.Mode, cfg *config.Config) (mq.ChangeQueue, error) {
	switch mode {
	case mq.ModeGoChan:
		return goch.NewChangeQueue(), nil
	case mq.ModeRabbitMQ:
		return rabbitMQ.NewChangeQueue(cfg.RabbitMQURL)
	case mq.ModeGCPPubSub:
		return gcppubsub.NewChangeQueue(ctx, cfg.GCPProject)
	}
	return nil, fmt.Errorf("unknown mq mode %q", mode)
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down.
func Serve(ctx context.Context, sc ServiceConfig) error {
	store, closeStore, err := openStore(sc.DBMode, sc.Config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	queue, err := openQueue(ctx, sc.MqMode, sc.Config)
	if err != nil {
		return fmt.Errorf("open message queue: %w", err)
	}
	defer queue.Close()

	g, gctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Addr:    ":" + sc.Port,
		Handler: NewRouter(NewServices(store, queue, sc.Config), sc.IsDev),
		// request contexts end with the server so websocket feeds stop
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		slog.Info("listening", "addr", srv.Addr, "db", sc.DBMode, "mq", sc.MqMode, "dev", sc.IsDev)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
