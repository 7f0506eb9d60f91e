package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppEnv        string `env:"APP_ENV,notEmpty"`
	APIAddr       string `env:"API_ADDR" envDefault:":8080"`
	PostgresDSN   string `env:"POSTGRES_DSN,notEmpty"`
	RedisAddr     string `env:"REDIS_ADDR,notEmpty"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	DPEBaseURL     string `env:"DPE_BASE_URL" envDefault:"https://data.ademe.fr/data-fair/api/v1/datasets/dpe-v2-logements-existants"`
	BodaccBaseURL  string `env:"BODACC_BASE_URL" envDefault:"https://bodacc-datadila.opendatasoft.com"`
	GeocodeBaseURL string `env:"GEOCODE_BASE_URL" envDefault:"https://api-adresse.data.gouv.fr"`

	DecesIndexURL string `env:"DECES_INDEX_URL"`
	DecesBaseURL  string `env:"DECES_BASE_URL"`

	S3Bucket   string `env:"S3_BUCKET"`
	S3Endpoint string `env:"S3_ENDPOINT"`

	SourcesPath string `env:"SOURCES_PATH" envDefault:"configs/sources.yaml"`

	WorkersPerQueue int           `env:"WORKERS_PER_QUEUE" envDefault:"2"`
	DPEInterval     time.Duration `env:"DPE_MIN_INTERVAL" envDefault:"500ms"`
	BodaccInterval  time.Duration `env:"BODACC_MIN_INTERVAL" envDefault:"1s"`
	GeocodeInterval time.Duration `env:"GEOCODE_MIN_INTERVAL" envDefault:"150ms"`

	Departments []string `env:"DEPARTMENTS" envSeparator:"," envDefault:"75,92,93,94"`
}

func Load() Config {
	var c Config
	if err := env.Parse(&c); err != nil {
		log.Fatal(err)
	}
	return c
}
