package services

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"alfredoptarigan/assessment-recommender/internal/logger"
	"alfredoptarigan/assessment-recommender/internal/models"
	"alfredoptarigan/assessment-recommender/internal/repositories"
)

// CatalogSource yields the catalog items to index.
type CatalogSource interface {
	Load() ([]models.CatalogItem, error)
}

type jsonCatalogSource struct {
	path string
	log  *zap.Logger
}

// NewJSONCatalogSource reads a JSON object keyed by canonical URL, or a JSON array of entries.
func NewJSONCatalogSource(path string, log *zap.Logger) CatalogSource {
	return &jsonCatalogSource{path: path, log: logger.OrNop(log)}
}

// Load implements CatalogSource. Invalid entries are skipped with a warning.
func (s *jsonCatalogSource) Load() ([]models.CatalogItem, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	items, err := ParseCatalog(data, s.log)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", s.path, err)
	}

	s.log.Info("catalog loaded", zap.String("path", s.path), zap.Int("items", len(items)))
	return items, nil
}

type keyedEntry struct {
	key   string
	entry models.CatalogEntry
}

// ParseCatalog decodes catalog JSON. Entries resolving to the same item id collapse into one;
// the entry with the greatest key wins.
func ParseCatalog(data []byte, log *zap.Logger) ([]models.CatalogItem, error) {
	log = logger.OrNop(log)

	var entries []keyedEntry
	var byKey map[string]models.CatalogEntry
	keyed := json.Unmarshal(data, &byKey)
	if keyed == nil {
		for key, e := range byKey {
			entries = append(entries, keyedEntry{key: key, entry: e})
		}
	} else {
		var list []models.CatalogEntry
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, keyed
		}
		for _, e := range list {
			entries = append(entries, keyedEntry{key: e.URL, entry: e})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	seen := make(map[string]int, len(entries))
	items := make([]models.CatalogItem, 0, len(entries))
	for _, ke := range entries {
		item, err := ke.entry.ToCatalogItem(ke.key)
		if err != nil {
			log.Warn("skipping invalid catalog entry", zap.String("key", ke.key), zap.Error(err))
			continue
		}
		if pos, ok := seen[item.ID]; ok {
			items[pos] = *item
			continue
		}
		seen[item.ID] = len(items)
		items = append(items, *item)
	}

	models.SortCatalogItems(items)
	return items, nil
}

type dbCatalogSource struct {
	repo repositories.CatalogRepository
}

// NewDBCatalogSource reads the catalog from the catalog_items table.
func NewDBCatalogSource(repo repositories.CatalogRepository) CatalogSource {
	return &dbCatalogSource{repo: repo}
}

// Load implements CatalogSource.
func (s *dbCatalogSource) Load() ([]models.CatalogItem, error) {
	items, err := s.repo.FindAll()
	if err != nil {
		return nil, err
	}
	models.SortCatalogItems(items)
	return items, nil
}
