package common

import "time"

// PopulateResult reports how many graph writes of a bulk population
// succeeded. Failed writes are skipped, not retried.
type PopulateResult struct {
	EntitiesCreated      int       `json:"entities_created"`
	RelationshipsCreated int       `json:"relationships_created"`
	EntitiesFailed       int       `json:"entities_failed"`
	RelationshipsFailed  int       `json:"relationships_failed"`
	UserID               string    `json:"user_id"`
	Timestamp            time.Time `json:"timestamp"`
}

// GraphStats summarises a user's graph.
type GraphStats struct {
	UserID            string `json:"user_id"`
	EntityCount       int    `json:"entity_count"`
	RelationshipCount int    `json:"relationship_count"`
	EntityTypes       int    `json:"entity_types"`
}
