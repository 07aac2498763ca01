package source_list

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	DefaultSourceName = "osm"
	DefaultSourceURL  = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	DebugSourceName   = "debug"
)

var validName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type SourceInfo struct {
	Name        string   `json:"name"`
	URL         string   `json:"url,omitempty"`
	Subdomains  []string `json:"subdomains,omitempty"`
	MaxZoom     int      `json:"max_zoom"`
	Attribution string   `json:"attribution,omitempty"`
	// Debug sources are synthesised locally instead of fetched.
	Debug bool `json:"debug"`

	CachedTiles int   `json:"cached_tiles"`
	CachedBytes int64 `json:"cached_bytes"`
}

// Counter reports cached tiles for a source when the cache is not laid out
// as a directory tree.
type Counter interface {
	Count(source string) (tiles int, bytes int64)
}

type Scanner struct {
	sourcesFile string
	cacheDir    string
	maxZoom     int
	logger      *zap.Logger

	mu      sync.RWMutex
	sources []SourceInfo
	counter Counter
}

func New(sourcesFile, cacheDir string, maxZoom int, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		sourcesFile: sourcesFile,
		cacheDir:    cacheDir,
		maxZoom:     maxZoom,
		logger:      logger,
	}
}

// UseCounter makes Scan ask c instead of walking the cache directory.
func (s *Scanner) UseCounter(c Counter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter = c
}

// Load reads the sources file. Without one the registry holds the default
// OpenStreetMap source. The debug source is always present.
func (s *Scanner) Load() error {
	var sources []SourceInfo
	if s.sourcesFile == "" {
		sources = []SourceInfo{{
			Name:        DefaultSourceName,
			URL:         DefaultSourceURL,
			MaxZoom:     s.maxZoom,
			Attribution: "© OpenStreetMap contributors",
		}}
	} else {
		data, err := os.ReadFile(s.sourcesFile)
		if err != nil {
			return fmt.Errorf("failed to read sources file: %w", err)
		}
		sources, err = s.parse(data)
		if err != nil {
			return err
		}
	}

	hasDebug := false
	for _, src := range sources {
		if src.Name == DebugSourceName {
			hasDebug = true
		}
	}
	if !hasDebug {
		sources = append(sources, SourceInfo{Name: DebugSourceName, MaxZoom: s.maxZoom, Debug: true})
	}

	s.mu.Lock()
	s.sources = sources
	s.mu.Unlock()

	s.logger.Info("Loaded tile sources", zap.Int("count", len(sources)), zap.String("file", s.sourcesFile))
	return nil
}

// parse accepts either a top level array or an object with a "sources" array.
func (s *Scanner) parse(data []byte) ([]SourceInfo, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("sources file is not valid JSON")
	}
	list := gjson.ParseBytes(data)
	if res := list.Get("sources"); res.Exists() {
		list = res
	}
	if !list.IsArray() {
		return nil, errors.New("sources file must contain an array of sources")
	}

	var sources []SourceInfo
	seen := make(map[string]bool)
	for i, item := range list.Array() {
		name := item.Get("name").String()
		if !validName.MatchString(name) {
			s.logger.Warn("Skipping source with invalid name", zap.Int("index", i), zap.String("name", name))
			continue
		}
		if seen[name] {
			s.logger.Warn("Skipping duplicate source", zap.String("name", name))
			continue
		}

		src := SourceInfo{
			Name:        name,
			URL:         item.Get("url").String(),
			Attribution: item.Get("attribution").String(),
			Debug:       item.Get("debug").Bool(),
			MaxZoom:     s.maxZoom,
		}
		if mz := item.Get("max_zoom"); mz.Exists() && int(mz.Int()) >= 0 && int(mz.Int()) < s.maxZoom {
			src.MaxZoom = int(mz.Int())
		}
		for _, sub := range item.Get("subdomains").Array() {
			src.Subdomains = append(src.Subdomains, sub.String())
		}
		if !src.Debug && !validTemplate(src.URL) {
			s.logger.Warn("Skipping source with invalid URL template", zap.String("name", name), zap.String("url", src.URL))
			continue
		}

		seen[name] = true
		sources = append(sources, src)
	}
	return sources, nil
}

func validTemplate(url string) bool {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}
	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(url, p) {
			return false
		}
	}
	return true
}

// Scan refreshes the cached tile statistics of every source.
func (s *Scanner) Scan() error {
	s.mu.RLock()
	sources := make([]SourceInfo, len(s.sources))
	copy(sources, s.sources)
	counter := s.counter
	s.mu.RUnlock()

	for i := range sources {
		if counter != nil {
			sources[i].CachedTiles, sources[i].CachedBytes = counter.Count(sources[i].Name)
			continue
		}
		tiles, size, err := s.walk(sources[i].Name)
		if err != nil {
			return err
		}
		sources[i].CachedTiles, sources[i].CachedBytes = tiles, size
	}

	s.mu.Lock()
	s.sources = sources
	s.mu.Unlock()
	return nil
}

func (s *Scanner) walk(source string) (int, int64, error) {
	if s.cacheDir == "" {
		return 0, 0, nil
	}
	root := filepath.Join(s.cacheDir, source)
	tiles, size := 0, int64(0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			s.logger.Warn("Error getting file info", zap.String("path", path), zap.Error(err))
			return nil
		}
		tiles++
		size += info.Size()
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to scan cache for %s: %w", source, err)
	}
	return tiles, size, nil
}

func (s *Scanner) GetSources() []SourceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SourceInfo, len(s.sources))
	copy(out, s.sources)
	return out
}

func (s *Scanner) GetSourceByName(name string) *SourceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, src := range s.sources {
		if src.Name == name {
			return &src
		}
	}
	return nil
}
