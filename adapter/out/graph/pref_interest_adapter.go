package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"preference_server/core/domain"
	"preference_server/core/port/out"
)

// InterestAdapter implements out.InterestGraph using Neo4j.
type InterestAdapter struct {
	driver neo4j.DriverWithContext
	dbName string
}

var _ out.InterestGraph = (*InterestAdapter)(nil)

func NewInterestAdapter(driver neo4j.DriverWithContext, dbName string) *InterestAdapter {
	return &InterestAdapter{driver: driver, dbName: dbName}
}

// EnsureIndexes creates the user and category constraints.
func (a *InterestAdapter) EnsureIndexes(ctx context.Context) error {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName})
	defer session.Close(ctx)

	queries := []string{
		`CREATE CONSTRAINT pref_user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.user_id IS UNIQUE`,
		`CREATE CONSTRAINT pref_category_id_unique IF NOT EXISTS FOR (c:Category) REQUIRE c.category_id IS UNIQUE`,
	}
	for _, query := range queries {
		if _, err := session.Run(ctx, query, nil); err != nil {
			return fmt.Errorf("ensure graph constraint: %w", err)
		}
	}
	return nil
}

// UpsertInterests replaces the INTERESTED_IN edges of a user with the given
// interests in one write transaction.
func (a *InterestAdapter) UpsertInterests(ctx context.Context, userID string, interests []domain.CategoryPreference) error {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: a.dbName,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	params := interestParams(userID, interests)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (u:User {user_id: $userID})
			SET u.updated_at = timestamp()
			WITH u
			OPTIONAL MATCH (u)-[r:INTERESTED_IN]->(:Category)
			DELETE r
		`, params); err != nil {
			return nil, err
		}
		if len(interests) == 0 {
			return nil, nil
		}
		_, err := tx.Run(ctx, `
			MATCH (u:User {user_id: $userID})
			UNWIND $interests AS interest
			MERGE (c:Category {category_id: interest.category})
			SET c.name = interest.name
			MERGE (u)-[r:INTERESTED_IN]->(c)
			SET r.score = interest.score, r.updated_at = timestamp()
		`, params)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert interests: %w", err)
	}
	return nil
}

func interestParams(userID string, interests []domain.CategoryPreference) map[string]any {
	rows := make([]any, 0, len(interests))
	for _, p := range interests {
		rows = append(rows, map[string]any{
			"category": p.Category,
			"name":     p.Name,
			"score":    p.Score,
		})
	}
	return map[string]any{
		"userID":    userID,
		"interests": rows,
	}
}
