package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv  string
	API     APIConfig
	Crawl   CrawlConfig
	Output  OutputConfig
	Kafka   KafkaConfig
	Logger  LoggerConfig
	Metrics MetricsConfig
}

type APIConfig struct {
	BaseURL       string
	DetailBaseURL string
	BuildID       string
	UserAgent     string
	Origin        string
	Referer       string
	Timeout       time.Duration
}

type CrawlConfig struct {
	// Variant is "category" or "group".
	Variant         string
	Target          string
	Brands          string
	Sort            string
	SubCategory     string
	StartPrice      int
	EndPrice        int
	Rate            int
	MaxPages        int
	Delay           time.Duration
	DefaultPageSize int
	Enrich          bool
	EnrichDelay     time.Duration
}

type OutputConfig struct {
	Dir string
	// Family overrides the run family derived from the crawl target.
	Family     string
	SQLitePath string
	PebbleDir  string
	Changelog  bool
}

type KafkaConfig struct {
	Brokers        []string
	ChangelogTopic string
	ManifestTopic  string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	Development       bool
	DisableCaller     bool
	DisableStacktrace bool
}

type MetricsConfig struct {
	Addr     string
	Textfile string
}

// Load reads .env when present, then the environment.
func Load() *Config {
	_ = godotenv.Load()
	return LoadEnv()
}

func LoadEnv() *Config {
	return &Config{
		AppEnv: getEnv("APP_ENV", "production"),
		API: APIConfig{
			BaseURL:       getEnv("SHOP_API_BASE_URL", "https://api-shop.30shine.com/api/v1/web"),
			DetailBaseURL: getEnv("SHOP_DETAIL_BASE_URL", "https://shop.30shine.com"),
			BuildID:       getEnv("SHOP_BUILD_ID", "YCAT8CqZsxROurPUx6-Ts"),
			UserAgent:     getEnv("SHOP_USER_AGENT", ""),
			Origin:        getEnv("SHOP_ORIGIN", "https://shop.30shine.com"),
			Referer:       getEnv("SHOP_REFERER", "https://shop.30shine.com/"),
			Timeout:       getEnvDuration("SHOP_TIMEOUT", 20*time.Second),
		},
		Crawl: CrawlConfig{
			Variant:         getEnv("CRAWL_VARIANT", "category"),
			Target:          getEnv("CRAWL_TARGET", "sp-thuc-pham-chuc-nang"),
			Brands:          getEnv("CRAWL_BRANDS", ""),
			Sort:            getEnv("CRAWL_SORT", "-createdAt"),
			SubCategory:     getEnv("CRAWL_SUBCATEGORY", ""),
			StartPrice:      getEnvInt("CRAWL_START_PRICE", 0),
			EndPrice:        getEnvInt("CRAWL_END_PRICE", 0),
			Rate:            getEnvInt("CRAWL_RATE", 0),
			MaxPages:        getEnvInt("CRAWL_MAX_PAGES", 10),
			Delay:           getEnvDuration("CRAWL_DELAY", time.Second),
			DefaultPageSize: getEnvInt("CRAWL_DEFAULT_PAGE_SIZE", 20),
			Enrich:          getEnvBool("CRAWL_ENRICH", false),
			EnrichDelay:     getEnvDuration("CRAWL_ENRICH_DELAY", time.Second),
		},
		Output: OutputConfig{
			Dir:        getEnv("OUTPUT_DIR", "output"),
			Family:     getEnv("OUTPUT_FAMILY", ""),
			SQLitePath: getEnv("OUTPUT_SQLITE_PATH", ""),
			PebbleDir:  getEnv("OUTPUT_PEBBLE_DIR", ""),
			Changelog:  getEnvBool("OUTPUT_CHANGELOG", true),
		},
		Kafka: KafkaConfig{
			Brokers:        getEnvSlice("KAFKA_BROKERS", nil),
			ChangelogTopic: getEnv("KAFKA_TOPIC_CHANGELOG", "shopcrawl.changelog"),
			ManifestTopic:  getEnv("KAFKA_TOPIC_MANIFEST", "shopcrawl.manifest"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "info"),
			Encoding:          getEnv("LOGGER_ENCODING", "json"),
			Development:       getEnvBool("LOGGER_DEVELOPMENT", false),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Metrics: MetricsConfig{
			Addr:     getEnv("METRICS_ADDR", ""),
			Textfile: getEnv("METRICS_TEXTFILE", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("1500ms") and bare seconds ("2").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		var out []string
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	return fallback
}
