package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/downfa11-org/duraq/util"
)

// Config represents the broker configuration including tunable
// concurrency options.
type Config struct {
	// Server settings
	BrokerHost string        `yaml:"broker_host" json:"broker.host"`
	BrokerPort int           `yaml:"broker_port" json:"broker.port"`
	LogLevel   util.LogLevel `yaml:"log_level" json:"log_level"`

	// Disk persistence
	DataDir string `yaml:"data_dir" json:"data.dir"`

	// Connection handling
	WorkerPoolSize    int `yaml:"worker_pool_size" json:"worker.pool.size"`
	JobQueueSize      int `yaml:"job_queue_size" json:"job.queue.size"`
	ConnReadTimeoutMS int `yaml:"conn_read_timeout_ms" json:"conn.read.timeout.ms"`

	// Observability
	EnableExporter bool `yaml:"enable_exporter" json:"enable.exporter"`
	ExporterPort   int  `yaml:"exporter_port" json:"exporter.port"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	configPath := flag.String("config", "", "Path to YAML/JSON config file")
	hostStr := flag.String("host", "127.0.0.1", "Broker bind address")
	portStr := flag.String("port", "5555", "Broker port")
	dataDirStr := flag.String("data-dir", "queue-data", "Path for the queue log and offsets")
	logLevelStr := flag.String("log-level", "info", "Log Level (debug, info, warn, error)")

	workerPoolStr := flag.String("worker-pool", "4", "Number of storage worker goroutines")
	jobQueueStr := flag.String("job-queue", "64", "Pending storage job buffer size")
	connReadTimeoutStr := flag.String("conn-read-timeout", "300000", "Per-connection read timeout in milliseconds")

	exporterStr := flag.String("exporter", "false", "Enable Prometheus exporter")
	exporterPortStr := flag.String("exporter-port", "9100", "Exporter port")

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" && *configPath == "" {
		*configPath = envPath
	}

	flag.Parse()

	cfg.BrokerHost = *hostStr
	cfg.BrokerPort = util.ParseInt(*portStr, 5555)
	cfg.DataDir = *dataDirStr
	cfg.LogLevel = util.ParseLogLevel(*logLevelStr)
	cfg.WorkerPoolSize = util.ParseInt(*workerPoolStr, 4)
	cfg.JobQueueSize = util.ParseInt(*jobQueueStr, 64)
	cfg.ConnReadTimeoutMS = util.ParseInt(*connReadTimeoutStr, 300000)
	cfg.EnableExporter = util.ParseBool(*exporterStr, false)
	cfg.ExporterPort = util.ParseInt(*exporterPortStr, 9100)

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return nil, err
		}

		if strings.HasSuffix(*configPath, ".json") {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", *configPath, err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", *configPath, err)
			}
		}
	}

	cfg.Normalize()
	util.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Normalize fills zero or invalid fields with their defaults.
func (cfg *Config) Normalize() {
	if strings.TrimSpace(cfg.BrokerHost) == "" {
		cfg.BrokerHost = "127.0.0.1"
	}
	if cfg.BrokerPort <= 0 {
		cfg.BrokerPort = 5555
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "queue-data"
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 4
	}
	if cfg.JobQueueSize <= 0 {
		cfg.JobQueueSize = 64
	}
	if cfg.ConnReadTimeoutMS <= 0 {
		cfg.ConnReadTimeoutMS = 300000
	}
	if cfg.ExporterPort <= 0 {
		cfg.ExporterPort = 9100
	}
}

// ListenAddr returns the broker's bind address.
func (cfg *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", cfg.BrokerHost, cfg.BrokerPort)
}
