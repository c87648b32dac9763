package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTree(t *testing.T) {
	root := WriteTree(t, map[string]string{
		"index.html":     "<p>home</p>",
		"docs/guide.txt": "guide",
	})
	data, err := os.ReadFile(filepath.Join(root, "docs", "guide.txt"))
	require.NoError(t, err)
	assert.Equal(t, "guide", string(data))
	assert.FileExists(t, filepath.Join(root, "index.html"))
}

func TestFreePort(t *testing.T) {
	port := FreePort(t)
	assert.Greater(t, port, 0)
	assert.Less(t, port, 65000)
}

func TestSyncBuffer(t *testing.T) {
	var b SyncBuffer
	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = fmt.Fprintf(&b, "%d", i)
		}()
	}
	wg.Wait()
	assert.Len(t, b.String(), 4)
}
