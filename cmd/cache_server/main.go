package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tiercache/pkg/backend"
	"tiercache/pkg/cache"
	"tiercache/pkg/config"
	"tiercache/pkg/logger"
	"tiercache/pkg/metrics"
	"tiercache/pkg/scheduler"
)

var (
	configName = flag.String("config", "cache_server", "配置文件名 (不含扩展名)")
	logLevel   = flag.String("log-level", "", "日志级别，覆盖配置文件 (debug, info, warn, error)")
)

// CacheServer 缓存服务
type CacheServer struct {
	config     *config.Config
	manager    *cache.Manager
	be         backend.Backend
	sched      *scheduler.MaintenanceScheduler
	reporter   *metrics.Reporter
	httpServer *http.Server
	log        *logrus.Entry
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configName)
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logger.Init(logger.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format})
	if *logLevel != "" {
		logger.SetLevel(*logLevel)
	}
	log := logger.WithComponent("cache_server")

	server, err := NewCacheServer(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to create cache server")
	}

	if err := server.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start cache server")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down cache server...")
	server.Stop()
}

// NewCacheServer 创建缓存服务
func NewCacheServer(cfg *config.Config) (*CacheServer, error) {
	be, err := buildBackend(cfg)
	if err != nil {
		return nil, err
	}

	manager, err := cache.NewManager(cache.ManagerConfig{
		Memory: cache.MemoryCacheConfig{
			MaxSize:         cfg.Cache.MaxSize,
			MaxMemoryBytes:  cfg.Cache.MaxMemoryBytes,
			Policy:          cache.PolicyType(cfg.Cache.Policy),
			DefaultTTL:      cfg.Cache.DefaultTTL,
			CleanupInterval: cfg.Cache.CleanupInterval,
			Lenient:         cfg.Cache.Lenient,
		},
		Persistent: cache.PersistentCacheConfig{
			Lenient: cfg.Cache.Lenient,
		},
	}, be)
	if err != nil {
		be.Close()
		return nil, err
	}

	return &CacheServer{
		config:  cfg,
		manager: manager,
		be:      be,
		sched:   scheduler.NewMaintenanceScheduler(),
		log:     logger.WithComponent("cache_server"),
	}, nil
}

// buildBackend 根据配置构建持久化后端，按需套上熔断装饰。
func buildBackend(cfg *config.Config) (backend.Backend, error) {
	var be backend.Backend
	var err error

	switch cfg.Backend.Type {
	case "redis":
		be, err = backend.NewRedisBackend(backend.RedisBackendConfig{
			Addr:      cfg.Backend.Redis.Addr,
			Password:  cfg.Backend.Redis.Password,
			DB:        cfg.Backend.Redis.DB,
			KeyPrefix: cfg.Backend.Redis.KeyPrefix,
		})
	case "file":
		be, err = backend.NewFileBackend(backend.FileBackendConfig{
			Path: cfg.Backend.File.Path,
		})
	case "memory":
		be = backend.NewMemoryBackend()
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Backend.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Backend.BreakerEnabled {
		be = backend.NewBreakerBackend(be, backend.DefaultBreakerConfig())
	}
	return be, nil
}

// Start 初始化快照、注册维护任务并启动 HTTP 服务。
func (s *CacheServer) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.manager.InitPersistent(ctx); err != nil {
		return err
	}

	if schedule := s.config.Maintenance.SweepSchedule; schedule != "" {
		_, err := s.sched.AddJob("expired_sweep", schedule, func(ctx context.Context) error {
			removed := s.manager.Memory().Cleanup()
			s.log.Debugf("sweep removed %d expired entries", removed)
			return nil
		})
		if err != nil {
			return err
		}
	}

	if schedule := s.config.Maintenance.ReloadSchedule; schedule != "" {
		_, err := s.sched.AddJob("snapshot_reload", schedule, func(ctx context.Context) error {
			return s.manager.Persistent().Reload(ctx)
		})
		if err != nil {
			return err
		}
	}
	s.sched.Start()

	if s.config.Metrics.Enabled {
		s.reporter = metrics.NewReporter(metrics.ReporterConfig{
			URL:      s.config.Metrics.URL,
			Token:    s.config.Metrics.Token,
			Org:      s.config.Metrics.Org,
			Bucket:   s.config.Metrics.Bucket,
			Interval: s.config.Metrics.Interval,
			Instance: s.manager.ID(),
		}, s.manager.Memory().Stats)
		s.reporter.Start()
	}

	gin.SetMode(s.config.Server.Mode)
	s.httpServer = &http.Server{
		Addr:    s.config.Server.Addr,
		Handler: s.buildRouter(),
	}

	go func() {
		s.log.Infof("HTTP server listening on %s", s.config.Server.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Stop 优雅关闭所有组件。
func (s *CacheServer) Stop() {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown failed")
		}
	}

	if s.reporter != nil {
		s.reporter.Stop()
	}
	s.sched.Stop()
	s.manager.Close()
	if err := s.be.Close(); err != nil {
		s.log.WithError(err).Warn("backend close failed")
	}
}

type setRequest struct {
	Value interface{} `json:"value" binding:"required"`
	TTL   string      `json:"ttl"` // Go duration 字符串，如 "5m"
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// buildRouter 构建 HTTP 路由。
func (s *CacheServer) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/health", s.healthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/cache/:key", s.getEntry)
		v1.PUT("/cache/:key", s.setEntry)
		v1.DELETE("/cache/:key", s.deleteEntry)
		v1.POST("/cache/:key/refresh", s.refreshEntry)
		v1.GET("/stats", s.getStats)
		v1.POST("/stats/reset", s.resetStats)

		v1.GET("/persistent/:key", s.getPersistent)
		v1.PUT("/persistent/:key", s.setPersistent)
		v1.DELETE("/persistent/:key", s.deletePersistent)
		v1.GET("/persistent", s.listPersistentKeys)
		v1.POST("/persistent/reload", s.reloadPersistent)

		v1.GET("/jobs", s.listJobs)
	}

	return router
}

func (s *CacheServer) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"instance": s.manager.ID(),
		"time":     time.Now(),
	})
}

func (s *CacheServer) getEntry(c *gin.Context) {
	key := c.Param("key")
	value, ok := s.manager.Memory().Get(key)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "not_found", Message: "key not found or expired"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

func (s *CacheServer) setEntry(c *gin.Context) {
	key := c.Param("key")

	var req setRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	var ttl time.Duration
	if req.TTL != "" {
		parsed, err := time.ParseDuration(req.TTL)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "invalid ttl"})
			return
		}
		ttl = parsed
	}

	if err := s.manager.Memory().Set(key, req.Value, ttl); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "set_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key})
}

func (s *CacheServer) deleteEntry(c *gin.Context) {
	key := c.Param("key")
	removed := s.manager.Memory().Remove(key)
	c.JSON(http.StatusOK, gin.H{"key": key, "removed": removed})
}

func (s *CacheServer) refreshEntry(c *gin.Context) {
	key := c.Param("key")
	refreshed := s.manager.Memory().RefreshTTL(key)
	c.JSON(http.StatusOK, gin.H{"key": key, "refreshed": refreshed})
}

func (s *CacheServer) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.manager.Memory().Stats())
}

func (s *CacheServer) resetStats(c *gin.Context) {
	s.manager.Memory().ResetStats()
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

func (s *CacheServer) getPersistent(c *gin.Context) {
	key := c.Param("key")
	data, exists, err := s.manager.Persistent().GetRaw(key)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "not_initialized", Message: err.Error()})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, errorResponse{Error: "not_found", Message: "key not found"})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func (s *CacheServer) setPersistent(c *gin.Context) {
	key := c.Param("key")

	var req setRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	if err := s.manager.Persistent().Set(c.Request.Context(), key, req.Value); err != nil {
		c.JSON(http.StatusBadGateway, errorResponse{Error: "backend_write_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key})
}

func (s *CacheServer) deletePersistent(c *gin.Context) {
	key := c.Param("key")
	if err := s.manager.Persistent().Remove(c.Request.Context(), key); err != nil {
		c.JSON(http.StatusBadGateway, errorResponse{Error: "backend_write_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "removed": true})
}

func (s *CacheServer) listPersistentKeys(c *gin.Context) {
	keys, err := s.manager.Persistent().Keys()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "not_initialized", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys, "count": len(keys)})
}

func (s *CacheServer) reloadPersistent(c *gin.Context) {
	if err := s.manager.Persistent().Reload(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, errorResponse{Error: "reload_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reloaded": true})
}

func (s *CacheServer) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.sched.Jobs()})
}
