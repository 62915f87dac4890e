package service

import (
	"fmt"
	"math/rand/v2"
	"time"

	"streamloader/internal/model"
)

// GeneratorConfig configures a Generator. Zero values pick the defaults.
type GeneratorConfig struct {
	NodeCount        int
	ObservationTypes int

	Catalog      []model.CatalogEntry
	PartitionKey string
	Encoding     model.PayloadEncoding
	Rand         *rand.Rand
	Now          func() time.Time
}

// Generator produces an endless, forward-only sequence of ingestion records.
// It walks node ids 1..NodeCount-1 and, for each node, observation types
// 0..ObservationTypes-1, then starts over. Node 0 is never produced.
//
// A Generator is not safe for concurrent use.
type Generator struct {
	nodeCount    int
	types        int
	catalog      []model.CatalogEntry
	partitionKey string
	encoding     model.PayloadEncoding
	rng          *rand.Rand
	now          func() time.Time

	node int
	typ  int
}

// NewGenerator validates cfg and returns a generator positioned at node 1, type 0.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.Catalog == nil {
		cfg.Catalog = model.DefaultCatalog
	}
	if cfg.NodeCount < 0 || cfg.ObservationTypes < 0 {
		return nil, fmt.Errorf("nodes=%d observation types=%d: %w", cfg.NodeCount, cfg.ObservationTypes, ErrInvalidCount)
	}
	if cfg.ObservationTypes > len(cfg.Catalog) {
		return nil, fmt.Errorf("%d requested, catalog has %d: %w", cfg.ObservationTypes, len(cfg.Catalog), ErrTooManyObservationTypes)
	}
	for i := 0; i < cfg.ObservationTypes; i++ {
		if len(cfg.Catalog[i].Sensors) == 0 {
			return nil, fmt.Errorf("catalog entry %q has no sensors", cfg.Catalog[i].Name)
		}
	}
	if cfg.PartitionKey == "" {
		cfg.PartitionKey = model.DefaultPartitionKey
	}
	if cfg.Encoding == "" {
		cfg.Encoding = model.EncodingDouble
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Generator{
		nodeCount:    cfg.NodeCount,
		types:        cfg.ObservationTypes,
		catalog:      cfg.Catalog,
		partitionKey: cfg.PartitionKey,
		encoding:     cfg.Encoding,
		rng:          cfg.Rand,
		now:          cfg.Now,
		node:         1,
	}, nil
}

// CycleLength is the number of records in one full pass over nodes and types.
func (g *Generator) CycleLength() int {
	if g.nodeCount <= 1 {
		return 0
	}
	return (g.nodeCount - 1) * g.types
}

// Next returns the next n records and advances the cursor.
func (g *Generator) Next(n int) ([]model.IngestionRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	if g.CycleLength() == 0 {
		return nil, ErrEmptyCycle
	}

	records := make([]model.IngestionRecord, 0, n)
	for len(records) < n {
		obs := g.observe(g.node, g.catalog[g.typ])
		data, err := model.EncodeObservation(obs, g.encoding)
		if err != nil {
			return records, err
		}
		records = append(records, model.IngestionRecord{Data: data, PartitionKey: g.partitionKey})
		g.advance()
	}
	return records, nil
}

func (g *Generator) advance() {
	g.typ++
	if g.typ < g.types {
		return
	}
	g.typ = 0
	g.node++
	if g.node >= g.nodeCount {
		g.node = 1
	}
}

func (g *Generator) observe(nodeID int, entry model.CatalogEntry) model.Observation {
	data := make([]model.Measurement, len(entry.Properties))
	for i, prop := range entry.Properties {
		data[i] = model.Measurement{Property: prop, Value: 1 + g.rng.IntN(50)}
	}
	return model.Observation{
		Timestamp: g.now(),
		Network:   model.Network,
		MetaID:    model.MetaID,
		NodeID:    nodeID,
		Sensor:    entry.Sensors[g.rng.IntN(len(entry.Sensors))],
		Data:      data,
	}
}
