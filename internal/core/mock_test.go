package core

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/brandlens/lattice/internal/driver"
)

// mockDriver serves canned snapshot records and tracks every query so tests
// can assert what was pushed to the backend.
type mockDriver struct {
	nodeRecords []*neo4j.Record
	edgeRecords []*neo4j.Record

	fetchErr error
	pushErr  error

	executed []string
}

func (m *mockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.executed = append(m.executed, query)
	switch query {
	case driver.GetBrandNodesQuery:
		if m.fetchErr != nil {
			return neo4j.EagerResult{}, m.fetchErr
		}
		return neo4j.EagerResult{Records: m.nodeRecords}, nil
	case driver.GetBrandEdgesQuery:
		if m.fetchErr != nil {
			return neo4j.EagerResult{}, m.fetchErr
		}
		return neo4j.EagerResult{Records: m.edgeRecords}, nil
	default:
		if m.pushErr != nil {
			return neo4j.EagerResult{}, m.pushErr
		}
		return neo4j.EagerResult{}, nil
	}
}

func (m *mockDriver) BuildIndices(ctx context.Context) error { return nil }

func (m *mockDriver) Close(ctx context.Context) error { return nil }

func (m *mockDriver) pushCount() int {
	n := 0
	for _, q := range m.executed {
		if q != driver.GetBrandNodesQuery && q != driver.GetBrandEdgesQuery {
			n++
		}
	}
	return n
}

func nodeRecord(id, nodeType, text string, confidence float64) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"uuid", "node_type", "text", "source_quote", "segment", "confidence", "verified", "source_document_id"},
		Values: []interface{}{id, nodeType, text, "", "", confidence, false, ""},
	}
}

func edgeRecord(id, source, target, relation string) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"uuid", "source_uuid", "target_uuid", "relation_type", "strength", "context"},
		Values: []interface{}{id, source, target, relation, 0.8, ""},
	}
}
