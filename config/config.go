package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Config holds every setting of the sourcing pipeline. Values come from the
// process environment, optionally seeded from a .env file.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017/"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"sourcing"`
	// StoreBackend is "mongo" or "memory". The memory backend keeps nothing
	// between runs and is meant for local experiments.
	StoreBackend string `env:"STORE_BACKEND" envDefault:"mongo"`

	AWSRegion          string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSBucketName      string `env:"AWS_BUCKET_NAME"`
	AWSEndpoint        string `env:"AWS_ENDPOINT"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSUsePathStyle    bool   `env:"AWS_USE_PATH_STYLE" envDefault:"false"`
	PublicImageBaseURL string `env:"PUBLIC_IMAGE_BASE_URL"`
	ImageFolder        string `env:"IMAGE_FOLDER" envDefault:"products"`
	ReviewImageFolder  string `env:"REVIEW_IMAGE_FOLDER" envDefault:"reviews"`

	GeminiAPIKey        string   `env:"GEMINI_API_KEY"`
	GeminiModel         string   `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	TranslationLanguage string   `env:"TRANSLATION_LANGUAGE" envDefault:"French"`
	Categories          []string `env:"PRODUCT_CATEGORIES" envSeparator:"," envDefault:"chicha,bol,tuyau,charbon,accessoire"`

	BrowserBackend   string        `env:"BROWSER_BACKEND" envDefault:"chromedp"`
	BrowserRemoteURL string        `env:"BROWSER_REMOTE_URL"`
	ChromeDriverPath string        `env:"CHROMEDRIVER_PATH" envDefault:"/usr/local/bin/chromedriver"`
	SeleniumBasePort int           `env:"SELENIUM_BASE_PORT" envDefault:"4444"`
	PageTimeout      time.Duration `env:"PAGE_TIMEOUT" envDefault:"30s"`
	PageSettleDelay  time.Duration `env:"PAGE_SETTLE_DELAY" envDefault:"2s"`
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	ScrapeURLs           []string      `env:"SCRAPE_URLS" envSeparator:","`
	ScrapeConcurrency    int           `env:"SCRAPE_CONCURRENCY" envDefault:"2"`
	ScrapeInterval       time.Duration `env:"SCRAPE_INTERVAL" envDefault:"1s"`
	MaxReviewsPerProduct int           `env:"MAX_REVIEWS_PER_PRODUCT" envDefault:"25"`

	ImageConcurrency  int `env:"IMAGE_CONCURRENCY" envDefault:"2"`
	ImageMaxDimension int `env:"IMAGE_MAX_DIMENSION" envDefault:"1200"`
	ImageMaxBytes     int `env:"IMAGE_MAX_BYTES" envDefault:"512000"`

	TranslateBatchSize int           `env:"TRANSLATE_BATCH_SIZE" envDefault:"5"`
	TranslateInterval  time.Duration `env:"TRANSLATE_INTERVAL" envDefault:"4s"`

	ReviewTranslateBatchSize int           `env:"REVIEW_TRANSLATE_BATCH_SIZE" envDefault:"10"`
	ReviewTranslateInterval  time.Duration `env:"REVIEW_TRANSLATE_INTERVAL" envDefault:"4s"`

	ScheduleScrapeEvery          time.Duration `env:"SCHEDULE_SCRAPE_EVERY"`
	ScheduleTranslateEvery       time.Duration `env:"SCHEDULE_TRANSLATE_EVERY"`
	ScheduleReviewTranslateEvery time.Duration `env:"SCHEDULE_REVIEW_TRANSLATE_EVERY"`

	JWTSecret  string `env:"JWT_SECRET"`
	CronSecret string `env:"CRON_SECRET"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// LoadConfig loads environment variables from .env file and binds them
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values or system environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.ScrapeConcurrency < 1 {
		return fmt.Errorf("SCRAPE_CONCURRENCY must be at least 1, got %d", c.ScrapeConcurrency)
	}
	if c.ImageConcurrency < 1 {
		return fmt.Errorf("IMAGE_CONCURRENCY must be at least 1, got %d", c.ImageConcurrency)
	}
	if c.TranslateBatchSize < 1 {
		return fmt.Errorf("TRANSLATE_BATCH_SIZE must be at least 1, got %d", c.TranslateBatchSize)
	}
	if c.ReviewTranslateBatchSize < 1 {
		return fmt.Errorf("REVIEW_TRANSLATE_BATCH_SIZE must be at least 1, got %d", c.ReviewTranslateBatchSize)
	}
	switch strings.ToLower(c.BrowserBackend) {
	case "chromedp", "selenium", "none":
	default:
		return fmt.Errorf("unknown BROWSER_BACKEND %q", c.BrowserBackend)
	}
	switch strings.ToLower(c.StoreBackend) {
	case "mongo", "memory":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

// TrimmedScrapeURLs returns the configured scrape targets without blanks.
func (c *Config) TrimmedScrapeURLs() []string {
	urls := make([]string, 0, len(c.ScrapeURLs))
	for _, u := range c.ScrapeURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
