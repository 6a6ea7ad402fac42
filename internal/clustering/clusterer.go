// Package clustering groups closed-out tickets into recurring issues.
package clustering

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vicmordi/AIHelpdesk/internal/embedding"
	"github.com/vicmordi/AIHelpdesk/internal/observability"
	"github.com/vicmordi/AIHelpdesk/internal/textnorm"
)

var tracer = observability.Tracer("clustering")

const (
	signatureSamples = 5
	signatureHexLen  = 32
	clusterIDHexLen  = 24
)

// Item is one ticket offered for clustering.
type Item struct {
	TicketID    string
	Issue       string
	Resolutions []string
	CreatedAt   time.Time
}

// Text is the combined issue and resolution text.
func (i Item) Text() string {
	if len(i.Resolutions) == 0 {
		return i.Issue
	}
	return i.Issue + "\n" + strings.Join(i.Resolutions, "\n")
}

// Cluster is a group of similar tickets.
type Cluster struct {
	ID        string
	Signature string
	Topic     string
	Members   []Item
	Centroid  []float32
	Tightness float64
}

// Size returns the member count.
func (c Cluster) Size() int {
	return len(c.Members)
}

// TicketIDs returns the member ticket ids in cluster order.
func (c Cluster) TicketIDs() []string {
	ids := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.TicketID)
	}
	return ids
}

// Outcome is the result of a clustering pass.
type Outcome struct {
	Clusters []Cluster
	// Skipped lists tickets that could not be embedded.
	Skipped []string
	// Analyzed counts tickets that took part in clustering.
	Analyzed int
}

// Options tunes a clustering pass.
type Options struct {
	SimilarityThreshold float64
	MinClusterSize      int
	Concurrency         int
}

// Clusterer embeds tickets and groups them greedily.
type Clusterer struct {
	embedder embedding.Embedder
	logger   *zap.Logger
}

// NewClusterer constructs a clusterer.
func NewClusterer(embedder embedding.Embedder, logger *zap.Logger) *Clusterer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Clusterer{embedder: embedder, logger: logger}
}

// Embedder exposes the embedder, shared with the coverage check.
func (c *Clusterer) Embedder() embedding.Embedder {
	return c.embedder
}

type point struct {
	item  Item
	topic string
	vec   []float32
}

// Cluster groups items. Each unassigned item in creation order seeds a cluster
// that absorbs every other unassigned item whose cosine similarity to the seed
// reaches the threshold. Clusters smaller than MinClusterSize are dropped.
func (c *Clusterer) Cluster(ctx context.Context, items []Item, opts Options) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "Clusterer.Cluster")
	defer span.End()

	sorted := append([]Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].TicketID < sorted[j].TicketID
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	points, skipped, err := c.embed(ctx, sorted, opts.Concurrency)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Skipped: skipped, Analyzed: len(points)}
	assigned := make([]bool, len(points))
	for i := range points {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		group := []point{points[i]}
		for j := i + 1; j < len(points); j++ {
			if assigned[j] {
				continue
			}
			if embedding.Cosine(points[i].vec, points[j].vec) >= opts.SimilarityThreshold {
				assigned[j] = true
				group = append(group, points[j])
			}
		}
		if len(group) < opts.MinClusterSize {
			continue
		}
		outcome.Clusters = append(outcome.Clusters, buildCluster(group))
	}

	span.SetAttributes(
		attribute.Int("tickets", len(items)),
		attribute.Int("clusters", len(outcome.Clusters)),
		attribute.Int("skipped", len(skipped)),
	)
	return outcome, nil
}

// embed computes topics and vectors concurrently. Tickets without indexable
// text or whose embedding fails are skipped rather than failing the pass.
func (c *Clusterer) embed(ctx context.Context, items []Item, concurrency int) ([]point, []string, error) {
	if concurrency <= 0 {
		concurrency = 4
	}
	results := make([]*point, len(items))
	var (
		mu      sync.Mutex
		skipped []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, it := range items {
		i, it := i, it
		g.Go(func() error {
			vec, err := c.embedder.EmbedQuery(gctx, it.Text())
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if !errors.Is(err, embedding.ErrEmptyInput) {
					c.logger.Warn("skipping ticket, embedding failed", zap.String("ticket_id", it.TicketID), zap.Error(err))
				}
				mu.Lock()
				skipped = append(skipped, it.TicketID)
				mu.Unlock()
				return nil
			}
			results[i] = &point{item: it, topic: textnorm.Topic(it.Issue), vec: vec}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	points := make([]point, 0, len(items))
	for _, p := range results {
		if p != nil {
			points = append(points, *p)
		}
	}
	sort.Strings(skipped)
	return points, skipped, nil
}

func buildCluster(group []point) Cluster {
	members := make([]Item, 0, len(group))
	vectors := make([][]float32, 0, len(group))
	for _, p := range group {
		members = append(members, p.item)
		vectors = append(vectors, p.vec)
	}
	centroid := embedding.Mean(vectors)

	var total float64
	for _, v := range vectors {
		total += embedding.Cosine(v, centroid)
	}

	topic := Topic(members)
	return Cluster{
		ID:        ClusterID(members),
		Signature: Signature(topic),
		Topic:     topic,
		Members:   members,
		Centroid:  centroid,
		Tightness: total / float64(len(vectors)),
	}
}

// Topic is the normalized topic of the first few member issues.
func Topic(members []Item) string {
	n := len(members)
	if n > signatureSamples {
		n = signatureSamples
	}
	texts := make([]string, 0, n)
	for _, m := range members[:n] {
		texts = append(texts, m.Issue)
	}
	return textnorm.Topic(strings.Join(texts, " "))
}

// Signature is a stable digest of a normalized topic.
func Signature(topic string) string {
	sum := sha256.Sum256([]byte(topic))
	return hex.EncodeToString(sum[:])[:signatureHexLen]
}

// ClusterID is a digest of the sorted member ticket ids.
func ClusterID(members []Item) string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.TicketID)
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, ",")))
	return hex.EncodeToString(sum[:])[:clusterIDHexLen]
}
