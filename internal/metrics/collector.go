package metrics

import (
	"os"
	"time"

	"github.com/talisker77/media-viewer/internal/logging"
)

// StatsProvider supplies index content counts for the collector.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the index content counts exported as gauges.
type Stats struct {
	TotalFiles   int
	TotalImages  int
	TotalVideos  int
	WithLocation int
}

// Collector periodically refreshes index content and database size gauges.
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a metrics collector. dbPath is the main database
// file; the WAL and SHM side files are sized from it.
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the collection loop.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the collection loop.
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider != nil {
		stats := c.statsProvider.GetStats()
		MediaFilesTotal.WithLabelValues("image").Set(float64(stats.TotalImages))
		MediaFilesTotal.WithLabelValues("video").Set(float64(stats.TotalVideos))
		logging.Debug("Metrics collected: files=%d, images=%d, videos=%d",
			stats.TotalFiles, stats.TotalImages, stats.TotalVideos)
	}

	if c.dbPath != "" {
		collectFileSize(c.dbPath, "main")
		collectFileSize(c.dbPath+"-wal", "wal")
		collectFileSize(c.dbPath+"-shm", "shm")
	}
}

func collectFileSize(path, label string) {
	info, err := os.Stat(path)
	if err != nil {
		DBSizeBytes.WithLabelValues(label).Set(0)
		return
	}
	DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
}
