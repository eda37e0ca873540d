package sysmgr

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Queue describes one scheduler queue/QoS's resource limits and any
// scheduler directives it requires beyond the standard set.
type Queue struct {
	Name          string            `yaml:"name"`
	MaxWalltime   string            `yaml:"max_walltime"`
	MaxCPUs       int               `yaml:"max_cpus"`
	MaxMemGB      int               `yaml:"max_mem_gb"`
	Directives    map[string]string `yaml:"directives,omitempty"`
}

// QueueTable maps queue name to its limits. It is deliberately
// extensible: CSTAR_QUEUES_FILE may add or override entries at runtime
// rather than requiring a code change for every new cluster queue.
type QueueTable struct {
	queues map[string]Queue
}

// DefaultQueueTable returns the built-in queue table covering the
// well-known public HPC queues C-Star historically targets.
func DefaultQueueTable() *QueueTable {
	return &QueueTable{queues: map[string]Queue{
		"debug":    {Name: "debug", MaxWalltime: "00:30:00", MaxCPUs: 128, MaxMemGB: 256},
		"regular":  {Name: "regular", MaxWalltime: "48:00:00", MaxCPUs: 4096, MaxMemGB: 8192},
		"premium":  {Name: "premium", MaxWalltime: "48:00:00", MaxCPUs: 8192, MaxMemGB: 16384},
	}}
}

// LoadExtra merges additional/overriding queue entries from a YAML file
// (CSTAR_QUEUES_FILE) into the table.
func (t *QueueTable) LoadExtra(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("sysmgr: read queues file: %w", err)
	}
	var extra struct {
		Queues []Queue `yaml:"queues"`
	}
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return fmt.Errorf("sysmgr: parse queues file: %w", err)
	}
	for _, q := range extra.Queues {
		t.queues[q.Name] = q
	}
	return nil
}

// Get returns a queue's limits by name.
func (t *QueueTable) Get(name string) (Queue, bool) {
	q, ok := t.queues[name]
	return q, ok
}
