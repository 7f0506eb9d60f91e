package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/you/prospect/internal/domain"
)

type sourcesFile struct {
	Sources map[string]sourceEntry `yaml:"sources"`
}

type sourceEntry struct {
	BaseURL           string `yaml:"base_url"`
	LinkPattern       string `yaml:"link_pattern"`
	MaxPages          int    `yaml:"max_pages"`
	DelayBetweenPages string `yaml:"delay_between_pages"`
}

// LoadSources reads the per-site crawl settings. Keys are source names
// referenced by scrape job payloads.
func LoadSources(path string) (map[string]domain.ScraperConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read sources file %s", path)
	}
	var f sourcesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrap(err, "parse sources file")
	}

	out := make(map[string]domain.ScraperConfig, len(f.Sources))
	for name, e := range f.Sources {
		if e.BaseURL == "" {
			return nil, errors.Errorf("source %s: base_url is required", name)
		}
		delay := 2 * time.Second
		if e.DelayBetweenPages != "" {
			d, err := time.ParseDuration(e.DelayBetweenPages)
			if err != nil {
				return nil, errors.Wrapf(err, "source %s: bad delay", name)
			}
			delay = d
		}
		maxPages := e.MaxPages
		if maxPages <= 0 {
			maxPages = 10
		}
		pattern := e.LinkPattern
		if pattern == "" {
			pattern = `/annonce/`
		}
		out[name] = domain.ScraperConfig{
			BaseURL:           e.BaseURL,
			LinkPattern:       pattern,
			MaxPages:          maxPages,
			DelayBetweenPages: delay,
		}
	}
	return out, nil
}
