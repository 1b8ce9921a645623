// Package graphsync is the boundary between the in-memory engine and the
// persistent graph store. It pulls full snapshots per brand context and
// pushes merge, delete, and edit mutations back; it never touches the
// in-memory store itself, so a failed fetch leaves stale-but-valid data on
// screen.
package graphsync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/brandlens/lattice/internal/core/model"
	"github.com/brandlens/lattice/internal/driver"
)

// Snapshot is one brand graph as the backend returned it, before the store
// validates it.
type Snapshot struct {
	BrandID string
	Nodes   []model.Node
	Edges   []model.Edge
}

type Client struct {
	driver driver.GraphDriver
	log    *zap.SugaredLogger
}

func NewClient(d driver.GraphDriver, log *zap.SugaredLogger) *Client {
	return &Client{driver: d, log: log}
}

// FetchSnapshot pulls the full node and edge set for a brand context.
func (c *Client) FetchSnapshot(ctx context.Context, brandID string) (*Snapshot, error) {
	params := map[string]interface{}{"brand_id": brandID}

	nodeRes, err := c.driver.ExecuteQuery(ctx, driver.GetBrandNodesQuery, params)
	if err != nil {
		return nil, fmt.Errorf("fetch nodes for brand %s: %w", brandID, err)
	}
	edgeRes, err := c.driver.ExecuteQuery(ctx, driver.GetBrandEdgesQuery, params)
	if err != nil {
		return nil, fmt.Errorf("fetch edges for brand %s: %w", brandID, err)
	}

	snap := &Snapshot{BrandID: brandID}
	for _, rec := range nodeRes.Records {
		m := rec.AsMap()
		snap.Nodes = append(snap.Nodes, model.Node{
			ID:               recString(m, "uuid"),
			Type:             model.NodeType(recString(m, "node_type")),
			Text:             recString(m, "text"),
			SourceQuote:      recString(m, "source_quote"),
			Segment:          recString(m, "segment"),
			Confidence:       recFloat(m, "confidence"),
			Verified:         recBool(m, "verified"),
			SourceDocumentID: recString(m, "source_document_id"),
		})
	}
	for _, rec := range edgeRes.Records {
		m := rec.AsMap()
		snap.Edges = append(snap.Edges, model.Edge{
			ID:       recString(m, "uuid"),
			SourceID: recString(m, "source_uuid"),
			TargetID: recString(m, "target_uuid"),
			Relation: model.RelationType(recString(m, "relation_type")),
			Strength: recFloat(m, "strength"),
			Context:  recString(m, "context"),
		})
	}

	c.log.Debugw("fetched snapshot", "brand_id", brandID, "nodes", len(snap.Nodes), "edges", len(snap.Edges))
	return snap, nil
}

// MergeNodes pushes one merge to the backend: edges touching each secondary
// are rewritten to the primary, then the secondary is removed.
func (c *Client) MergeNodes(ctx context.Context, brandID, primaryID string, secondaryIDs []string) error {
	for _, secondaryID := range secondaryIDs {
		params := map[string]interface{}{
			"brand_id":       brandID,
			"primary_uuid":   primaryID,
			"secondary_uuid": secondaryID,
		}
		if _, err := c.driver.ExecuteQuery(ctx, driver.RewriteOutgoingEdgesQuery, params); err != nil {
			return fmt.Errorf("rewrite outgoing edges of %s: %w", secondaryID, err)
		}
		if _, err := c.driver.ExecuteQuery(ctx, driver.RewriteIncomingEdgesQuery, params); err != nil {
			return fmt.Errorf("rewrite incoming edges of %s: %w", secondaryID, err)
		}
		deleteParams := map[string]interface{}{"brand_id": brandID, "uuid": secondaryID}
		if _, err := c.driver.ExecuteQuery(ctx, driver.DeleteNodeQuery, deleteParams); err != nil {
			return fmt.Errorf("delete merged node %s: %w", secondaryID, err)
		}
	}
	return nil
}

// DeleteNode removes a node and its edges from the backend.
func (c *Client) DeleteNode(ctx context.Context, brandID, id string) error {
	params := map[string]interface{}{"brand_id": brandID, "uuid": id}
	if _, err := c.driver.ExecuteQuery(ctx, driver.DeleteNodeQuery, params); err != nil {
		return fmt.Errorf("delete node %s: %w", id, err)
	}
	return nil
}

// UpdateNode pushes the mutable content fields of a node to the backend.
func (c *Client) UpdateNode(ctx context.Context, brandID string, n model.Node) error {
	params := map[string]interface{}{
		"brand_id": brandID,
		"uuid":     n.ID,
		"text":     n.Text,
		"segment":  n.Segment,
		"verified": n.Verified,
	}
	if _, err := c.driver.ExecuteQuery(ctx, driver.UpdateNodeQuery, params); err != nil {
		return fmt.Errorf("update node %s: %w", n.ID, err)
	}
	return nil
}

func recString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func recFloat(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func recBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}
