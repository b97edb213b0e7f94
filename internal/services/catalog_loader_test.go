package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keyedCatalog = `{
  "https://catalog.example.com/java-8": {
    "name": "Java 8 (New)",
    "description": "Multi-choice test of Java 8 knowledge.",
    "duration": "18",
    "test_type": ["Knowledge & Skills"],
    "remote_support": "Yes",
    "adaptive_support": "No",
    "job_levels": ["Mid-Professional", "Professional Individual Contributor"],
    "languages": "English (USA)"
  },
  "https://catalog.example.com/opq": {
    "name": "OPQ32r",
    "duration": null,
    "test_type": ["P"],
    "remote_support": true
  },
  "https://catalog.example.com/broken": {
    "description": "entry without a name"
  },
  "https://catalog.example.com/java-8/": {
    "name": "Java 8 (New)",
    "duration": 20,
    "test_type": ["K"]
  }
}`

func TestParseCatalog_Keyed(t *testing.T) {
	items, err := ParseCatalog([]byte(keyedCatalog), nil)
	require.NoError(t, err)
	require.Len(t, items, 2)

	java := items[0]
	assert.Equal(t, "Java 8 (New)", java.Name)
	require.NotNil(t, java.DurationMinutes)
	assert.Equal(t, 20, *java.DurationMinutes)
	assert.Equal(t, []string{"K"}, java.TestTypes)

	opq := items[1]
	assert.Equal(t, "https://catalog.example.com/opq", opq.URL)
	assert.Nil(t, opq.DurationMinutes)
	assert.True(t, opq.RemoteSupport)
	assert.Equal(t, []string{"P"}, opq.TestTypes)
}

func TestParseCatalog_List(t *testing.T) {
	data := `[
	  {"name":"Verify G+","url":"https://catalog.example.com/verify","duration":"36 minutes","test_type":["A"],"adaptive_support":"Yes"},
	  {"name":"No URL"}
	]`

	items, err := ParseCatalog([]byte(data), nil)
	require.NoError(t, err)
	require.Len(t, items, 1)

	verify := items[0]
	assert.Equal(t, "Verify G+", verify.Name)
	require.NotNil(t, verify.DurationMinutes)
	assert.Equal(t, 36, *verify.DurationMinutes)
	assert.True(t, verify.AdaptiveSupport)
}

func TestParseCatalog_Invalid(t *testing.T) {
	_, err := ParseCatalog([]byte(`"not a catalog"`), nil)
	assert.Error(t, err)
}

func TestJSONCatalogSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(keyedCatalog), 0o644))

	items, err := NewJSONCatalogSource(path, nil).Load()
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = NewJSONCatalogSource(filepath.Join(t.TempDir(), "missing.json"), nil).Load()
	assert.Error(t, err)
}
