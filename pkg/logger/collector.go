package logger

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultSubjectKeys are the field names a digest entry is grouped on, in priority order.
var DefaultSubjectKeys = []string{"symbol", "rule_id", "sink", "key"}

type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // distinct entries that force a flush
	Topic          string
	Publisher      Publisher
	// SubjectKeys overrides DefaultSubjectKeys.
	SubjectKeys []string
}

// AggregatedLogEntry counts repeats of one message about one subject, e.g. "symbol=BTC".
// Fields are those of the most recent occurrence.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Subject   string                 `json:"subject,omitempty"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector builds a periodic digest of warnings and errors and publishes it to a topic.
type LogCollector struct {
	config  *CollectionConfig
	subject []string
	entries map[string]*AggregatedLogEntry
	mu      sync.Mutex
	now     func() time.Time
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}
	keys := config.SubjectKeys
	if len(keys) == 0 {
		keys = DefaultSubjectKeys
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &LogCollector{
		config:  config,
		subject: keys,
		entries: make(map[string]*AggregatedLogEntry),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
	c.wg.Add(1)
	go c.periodicFlush()
	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	subject := c.subjectOf(fields)
	key := level + "|" + message + "|" + subject
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
		e.Fields = fields
		e.Caller = caller
		return
	}
	c.entries[key] = &AggregatedLogEntry{
		Level:     level,
		Message:   message,
		Subject:   subject,
		Fields:    fields,
		Caller:    caller,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
	if len(c.entries) >= c.config.CountThreshold {
		c.flushLocked()
	}
}

// subjectOf renders the subject fields present in fields as "k=v" pairs.
func (c *LogCollector) subjectOf(fields map[string]interface{}) string {
	var parts []string
	for _, k := range c.subject {
		if v, ok := fields[k]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return strings.Join(parts, ",")
}

func (c *LogCollector) periodicFlush() {
	defer c.wg.Done()

	t := time.NewTicker(c.config.TimeInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
		case <-c.ctx.Done():
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
			return
		}
	}
}

// flushLocked publishes the digest, most frequent first, and starts a new one.
func (c *LogCollector) flushLocked() {
	if len(c.entries) == 0 {
		return
	}
	digest := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		digest = append(digest, *e)
	}
	c.entries = make(map[string]*AggregatedLogEntry)
	sort.Slice(digest, func(i, j int) bool {
		if digest[i].Count != digest[j].Count {
			return digest[i].Count > digest[j].Count
		}
		return digest[i].Subject < digest[j].Subject
	})

	if c.config.Publisher == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		// the collector cannot log through the logger it feeds
		if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, digest); err != nil {
			fmt.Fprintf(os.Stderr, "log digest publish failed: %v\n", err)
		}
	}()
}

// Close flushes what is pending and waits for in-flight publishes.
func (c *LogCollector) Close() {
	c.cancel()
	c.wg.Wait()
}
