package migrations

import (
	"os"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	assert.Equal(t, "001", Version("001_init.sql"))
	assert.Equal(t, "002", Version("migrations/002_add_index.sql"))
	assert.Equal(t, "003", Version("003.sql"))
}

func TestSQLFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"002_tickets.sql":   {Data: []byte("SELECT 2;")},
		"001_init.sql":      {Data: []byte("SELECT 1;")},
		"README.md":         {Data: []byte("notes")},
		"old/000_skip.sql":  {Data: []byte("SELECT 0;")},
		"010_operators.sql": {Data: []byte("SELECT 10;")},
	}

	files, err := SQLFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql", "002_tickets.sql", "010_operators.sql"}, files)
}

func TestSQLFiles_Shipped(t *testing.T) {
	files, err := SQLFiles(os.DirFS("../../../migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "001", Version(files[0]))
}
