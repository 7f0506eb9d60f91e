package deces

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var archiveRe = regexp.MustCompile(`deces-\d{4}(?:-m\d{2})?\.txt\.gz`)

// HTTPSource discovers archives by scanning the registry's index page
// for archive links and downloads them over plain HTTP.
type HTTPSource struct {
	http     *http.Client
	indexURL string
	baseURL  string
}

func NewHTTPSource(indexURL, baseURL string) *HTTPSource {
	return &HTTPSource{
		http:     &http.Client{Timeout: 5 * time.Minute},
		indexURL: indexURL,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

func (s *HTTPSource) List(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.indexURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch archive index")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("archive index returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var names []string
	for _, m := range archiveRe.FindAllString(string(body), -1) {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		names = append(names, m)
	}
	sort.Strings(names)
	return names, nil
}

func (s *HTTPSource) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+name, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "download %s", name)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("download %s returned %d", name, resp.StatusCode)
	}
	return resp.Body, nil
}
