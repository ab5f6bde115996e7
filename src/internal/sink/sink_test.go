// FILE: src/internal/sink/sink_test.go
package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"logrelay/src/internal/config"
	"logrelay/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
)

func testRecords(n int) []core.LogRecord {
	records := make([]core.LogRecord, n)
	for i := range records {
		records[i] = core.LogRecord{
			ID:          fmt.Sprintf("rec-%d", i),
			Timestamp:   time.Now(),
			Level:       core.LevelInfo,
			ServiceName: "checkout",
			Message:     fmt.Sprintf("event %d", i),
		}
	}
	return records
}

func TestMemorySink(t *testing.T) {
	t.Run("RetainsRecords", func(t *testing.T) {
		m := NewMemorySink(10)
		assert.NoError(t, m.Write(context.Background(), testRecords(3)))

		held := m.Records()
		assert.Len(t, held, 3)
		assert.Equal(t, "rec-0", held[0].ID)
	})

	t.Run("RingDropsOldest", func(t *testing.T) {
		m := NewMemorySink(5)
		assert.NoError(t, m.Write(context.Background(), testRecords(8)))

		held := m.Records()
		assert.Len(t, held, 5)
		assert.Equal(t, "rec-3", held[0].ID)
		assert.Equal(t, "rec-7", held[4].ID)
	})

	t.Run("Stats", func(t *testing.T) {
		m := NewMemorySink(10)
		m.Write(context.Background(), testRecords(2))
		m.Write(context.Background(), testRecords(3))

		stats := m.GetStats()
		assert.Equal(t, "memory", stats.Type)
		assert.Equal(t, uint64(5), stats.TotalRecords)
		assert.Equal(t, uint64(2), stats.TotalBatches)
		assert.False(t, stats.LastWrite.IsZero())
	})
}

func TestFileSink(t *testing.T) {
	logger := log.NewLogger()

	t.Run("RequiresDirectory", func(t *testing.T) {
		_, err := NewFileSink(config.FileSinkConfig{}, logger)
		assert.Error(t, err)
	})

	t.Run("WritesNDJSON", func(t *testing.T) {
		dir := t.TempDir()
		f, err := NewFileSink(config.FileSinkConfig{Directory: dir, Name: "records"}, logger)
		assert.NoError(t, err)
		assert.NoError(t, f.Start(context.Background()))
		defer f.Stop()

		assert.NoError(t, f.Write(context.Background(), testRecords(3)))
		f.Stop()

		file, err := os.Open(filepath.Join(dir, "records.ndjson"))
		assert.NoError(t, err)
		defer file.Close()

		var lines int
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			var rec core.LogRecord
			assert.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
			assert.NotEmpty(t, rec.ID)
			lines++
		}
		assert.Equal(t, 3, lines)
	})

	t.Run("WriteBeforeStartFails", func(t *testing.T) {
		f, err := NewFileSink(config.FileSinkConfig{Directory: t.TempDir()}, logger)
		assert.NoError(t, err)
		assert.Error(t, f.Write(context.Background(), testRecords(1)))
	})

	t.Run("RotatesAtSizeLimit", func(t *testing.T) {
		dir := t.TempDir()
		f, err := NewFileSink(config.FileSinkConfig{
			Directory: dir,
			Name:      "records",
			MaxSizeMB: 1,
		}, logger)
		assert.NoError(t, err)
		assert.NoError(t, f.Start(context.Background()))
		defer f.Stop()

		// Push past 1MB to force a rotation
		big := testRecords(1)
		big[0].Message = strings.Repeat("x", 600*1024)
		assert.NoError(t, f.Write(context.Background(), big))
		assert.NoError(t, f.Write(context.Background(), big))
		assert.NoError(t, f.Write(context.Background(), testRecords(1)))

		entries, err := os.ReadDir(dir)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, len(entries), 2)
	})
}
