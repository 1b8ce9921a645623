package driver

const (
	GetBrandNodesQuery = `
		MATCH (n:Insight {brand_id: $brand_id})
		RETURN n.uuid AS uuid,
			n.node_type AS node_type,
			n.text AS text,
			n.source_quote AS source_quote,
			n.segment AS segment,
			n.confidence AS confidence,
			n.verified AS verified,
			n.source_document_id AS source_document_id
	`

	GetBrandEdgesQuery = `
		MATCH (a:Insight {brand_id: $brand_id})-[e:RELATES]->(b:Insight {brand_id: $brand_id})
		RETURN e.uuid AS uuid,
			a.uuid AS source_uuid,
			b.uuid AS target_uuid,
			e.relation_type AS relation_type,
			e.strength AS strength,
			e.context AS context
	`

	RewriteOutgoingEdgesQuery = `
		MATCH (s:Insight {uuid: $secondary_uuid, brand_id: $brand_id})-[e:RELATES]->(t:Insight)
		MATCH (p:Insight {uuid: $primary_uuid, brand_id: $brand_id})
		WHERE t.uuid <> $primary_uuid
		MERGE (p)-[e2:RELATES {relation_type: e.relation_type}]->(t)
		ON CREATE SET e2.uuid = e.uuid,
			e2.brand_id = e.brand_id,
			e2.strength = e.strength,
			e2.context = e.context
		DELETE e
	`

	RewriteIncomingEdgesQuery = `
		MATCH (s2:Insight)-[e:RELATES]->(s:Insight {uuid: $secondary_uuid, brand_id: $brand_id})
		MATCH (p:Insight {uuid: $primary_uuid, brand_id: $brand_id})
		WHERE s2.uuid <> $primary_uuid
		MERGE (s2)-[e2:RELATES {relation_type: e.relation_type}]->(p)
		ON CREATE SET e2.uuid = e.uuid,
			e2.brand_id = e.brand_id,
			e2.strength = e.strength,
			e2.context = e.context
		DELETE e
	`

	DeleteNodeQuery = `
		MATCH (n:Insight {uuid: $uuid, brand_id: $brand_id})
		DETACH DELETE n
	`

	UpdateNodeQuery = `
		MATCH (n:Insight {uuid: $uuid, brand_id: $brand_id})
		SET n.text = $text,
			n.segment = $segment,
			n.verified = $verified
		RETURN n.uuid AS uuid
	`
)
