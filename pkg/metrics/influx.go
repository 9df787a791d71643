// Package metrics 提供缓存统计信息的周期性上报，写入 InfluxDB。
package metrics

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"tiercache/pkg/cache"
	"tiercache/pkg/logger"
)

// ReporterConfig 指标上报配置
type ReporterConfig struct {
	URL      string        `yaml:"url"`      // InfluxDB 地址
	Token    string        `yaml:"token"`    // 访问令牌
	Org      string        `yaml:"org"`      // 组织
	Bucket   string        `yaml:"bucket"`   // 目标 bucket
	Interval time.Duration `yaml:"interval"` // 上报间隔
	Instance string        `yaml:"instance"` // 实例标签，区分多个缓存实例
}

// StatsSource 提供待上报的统计快照。
type StatsSource func() cache.CacheStats

// Reporter 周期性地把缓存统计写入 InfluxDB。
type Reporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	config   ReporterConfig
	source   StatsSource
	ticker   *time.Ticker
	stop     chan struct{}
	log      *logrus.Entry
}

// NewReporter 创建指标上报器
func NewReporter(config ReporterConfig, source StatsSource) *Reporter {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}

	client := influxdb2.NewClient(config.URL, config.Token)
	return &Reporter{
		client:   client,
		writeAPI: client.WriteAPI(config.Org, config.Bucket),
		config:   config,
		source:   source,
		stop:     make(chan struct{}),
		log:      logger.WithComponent("metrics_reporter"),
	}
}

// Start 启动上报协程
func (r *Reporter) Start() {
	r.ticker = time.NewTicker(r.config.Interval)
	go r.run()
	r.log.Infof("metrics reporter started, interval %s", r.config.Interval)
}

// Stop 停止上报并冲刷缓冲的数据点。
func (r *Reporter) Stop() {
	if r.ticker != nil {
		r.ticker.Stop()
	}
	close(r.stop)
	r.writeAPI.Flush()
	r.client.Close()
	r.log.Info("metrics reporter stopped")
}

func (r *Reporter) run() {
	for {
		select {
		case <-r.ticker.C:
			r.report()
		case <-r.stop:
			return
		}
	}
}

// report 采集一次统计快照并写入数据点。
func (r *Reporter) report() {
	stats := r.source()

	point := influxdb2.NewPointWithMeasurement("cache_stats").
		AddTag("instance", r.config.Instance).
		AddField("size", stats.Size).
		AddField("max_size", stats.MaxSize).
		AddField("hit_count", stats.HitCount).
		AddField("miss_count", stats.MissCount).
		AddField("hit_rate", stats.HitRate).
		AddField("eviction_count", stats.EvictionCount).
		AddField("expired_count", stats.ExpiredCount).
		AddField("estimated_bytes", stats.EstimatedBytes).
		SetTime(time.Now())

	r.writeAPI.WritePoint(point)
}
