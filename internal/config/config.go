// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalid 表示配置内容不合法，属于致命错误。
var ErrInvalid = errors.New("invalid configuration")

// 支持的索引结构。
const (
	SchemaNotes    = "notes"
	SchemaArticles = "articles"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Log           LogConfig           `mapstructure:"log"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Redis         RedisConfig         `mapstructure:"redis"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Server        ServerConfig        `mapstructure:"server"`
	Tagging       TaggingConfig       `mapstructure:"tagging"`
	Search        SearchConfig        `mapstructure:"search"`
	Zotero        ZoteroConfig        `mapstructure:"zotero"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses     []string `mapstructure:"addresses"`
	Username      string   `mapstructure:"username"`
	Password      string   `mapstructure:"password"`
	Insecure      bool     `mapstructure:"insecure"`
	NotesIndex    string   `mapstructure:"notes_index"`
	ArticlesIndex string   `mapstructure:"articles_index"`
	BatchSize     int      `mapstructure:"batch_size"`
}

// TikaConfig 存储 Tika 服务器相关的配置。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	// CacheTTLHours 为 0 时不启用 Redis 向量缓存。
	CacheTTLHours int `mapstructure:"cache_ttl_hours"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	BucketName      string `mapstructure:"bucket_name"`
}

// KafkaConfig 存储 Kafka 相关的配置，RejectTopic 为空时不投递被拒文档。
type KafkaConfig struct {
	Brokers     string `mapstructure:"brokers"`
	RejectTopic string `mapstructure:"reject_topic"`
}

// DatabaseConfig 存储数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
}

// MySQLConfig 存储 MySQL 数据库的配置，DSN 为空时不记录导入批次。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ServerConfig 存储 HTTP 查询服务的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// TaggingConfig 对应关键词与摘要的提取数量。
type TaggingConfig struct {
	LimitPhrases   int `mapstructure:"limit_phrases"`
	LimitSentences int `mapstructure:"limit_sentences"`
}

// SearchConfig 存储查询与分面的默认参数。
type SearchConfig struct {
	TopK        int      `mapstructure:"top_k"`
	FacetFields []string `mapstructure:"facet_fields"`
	FacetSize   int      `mapstructure:"facet_size"`
}

// ZoteroConfig 存储 Zotero Web API 的配置。
type ZoteroConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	LibraryID   string `mapstructure:"library_id"`
	LibraryType string `mapstructure:"library_type"`
	APIKey      string `mapstructure:"api_key"`
	ItemType    string `mapstructure:"item_type"`
	PageSize    int    `mapstructure:"page_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "")

	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.insecure", false)
	v.SetDefault("elasticsearch.notes_index", "notes")
	v.SetDefault("elasticsearch.articles_index", "articles")
	v.SetDefault("elasticsearch.batch_size", 500)

	v.SetDefault("tika.server_url", "http://localhost:9998")

	v.SetDefault("embedding.enabled", false)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "http://localhost:8080/v1")
	v.SetDefault("embedding.model", "paraphrase-MiniLM-L6-v2")
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("embedding.cache_ttl_hours", 0)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.region", "")
	v.SetDefault("minio.bucket_name", "notes")

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.reject_topic", "")

	v.SetDefault("database.mysql.dsn", "")

	v.SetDefault("server.port", "8081")
	v.SetDefault("server.mode", "release")

	v.SetDefault("tagging.limit_phrases", 4)
	v.SetDefault("tagging.limit_sentences", 3)

	v.SetDefault("search.top_k", 10)
	v.SetDefault("search.facet_fields", []string{"keywords", "authors"})
	v.SetDefault("search.facet_size", 10)

	v.SetDefault("zotero.base_url", "https://api.zotero.org")
	v.SetDefault("zotero.library_id", "")
	v.SetDefault("zotero.library_type", "user")
	v.SetDefault("zotero.api_key", "")
	v.SetDefault("zotero.item_type", "journalArticle")
	v.SetDefault("zotero.page_size", 100)
}

// Load 读取 YAML 配置文件（不存在时使用默认值），叠加 .env 与环境变量后解析为 Config。
func Load(configPath string) (*Config, error) {
	// .env 只是补充，不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("NOTESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("zotero.library_id", "NOTESEARCH_ZOTERO_LIBRARY_ID", "ZOTERO_LIBRARY_ID")
	_ = v.BindEnv("zotero.api_key", "NOTESEARCH_ZOTERO_API_KEY", "ZOTERO_API_KEY")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("检查配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查会导致流水线无法运行的配置项。
func (c *Config) Validate() error {
	switch {
	case len(c.Elasticsearch.Addresses) == 0:
		return fmt.Errorf("%w: elasticsearch.addresses 不能为空", ErrInvalid)
	case c.Elasticsearch.BatchSize <= 0:
		return fmt.Errorf("%w: elasticsearch.batch_size 必须大于 0", ErrInvalid)
	case c.Tagging.LimitPhrases <= 0 || c.Tagging.LimitSentences <= 0:
		return fmt.Errorf("%w: tagging 限制必须大于 0", ErrInvalid)
	case c.Search.TopK <= 0:
		return fmt.Errorf("%w: search.top_k 必须大于 0", ErrInvalid)
	case c.Embedding.Enabled && c.Embedding.Dimensions <= 0:
		return fmt.Errorf("%w: embedding.dimensions 必须大于 0", ErrInvalid)
	}
	return nil
}

// IndexFor 返回某种索引结构对应的索引名。
func (c *Config) IndexFor(schema string) (string, error) {
	switch schema {
	case SchemaNotes:
		return c.Elasticsearch.NotesIndex, nil
	case SchemaArticles:
		return c.Elasticsearch.ArticlesIndex, nil
	}
	return "", fmt.Errorf("%w: 未知的索引结构 %q", ErrInvalid, schema)
}
