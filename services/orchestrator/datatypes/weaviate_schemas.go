// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"context"
	"log"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// GetDecisionSchema returns the schema for the Decision class.
//
// # Description
//
// A persisted decision: the direction text, reasoning, the serialized task
// list, the confidence score, and the owning user. Vectorizer is disabled;
// decisions are retrieved by owner and recency, never by similarity.
func GetDecisionSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "Decision",
		Description: "A generated decision with reasoning, tasks, and confidence.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:         "decision",
				DataType:     []string{"text"},
				Description:  "The single recommended direction.",
				Tokenization: "word",
			},
			{
				Name:         "reasoning",
				DataType:     []string{"text"},
				Description:  "Reasoning text, always ending with the alignment question.",
				Tokenization: "word",
			},
			{
				Name:        "tasks_json",
				DataType:    []string{"text"},
				Description: "JSON-serialized ordered task list.",
			},
			{
				Name:        "confidence",
				DataType:    []string{"number"},
				Description: "Overall confidence score in [0,1].",
			},
			{
				Name:            "owner_id",
				DataType:        []string{"text"},
				Description:     "User who requested the decision.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "timestamp",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds when the decision was generated.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// GetThinkingSessionSchema returns the schema for the ThinkingSession class.
func GetThinkingSessionSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "ThinkingSession",
		Description: "A phase-governed thinking session.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:            "session_id",
				DataType:        []string{"text"},
				Description:     "Unique session identifier.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "owner_id",
				DataType:        []string{"text"},
				Description:     "User who owns the session.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "current_phase",
				DataType:        []string{"text"},
				Description:     "The session's current phase (forward-only).",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "updated_at",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds of the last append or advance.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "timestamp",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds when the session was created.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// GetSessionMessageSchema returns the schema for the SessionMessage class.
// Messages are exclusively owned by their session and deleted with it.
func GetSessionMessageSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "SessionMessage",
		Description: "One message in a thinking session's ordered log.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:            "session_id",
				DataType:        []string{"text"},
				Description:     "Owning session identifier.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:        "role",
				DataType:    []string{"text"},
				Description: "user, assistant, or system.",
			},
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "Message text.",
				Tokenization: "word",
			},
			{
				Name:        "phase",
				DataType:    []string{"text"},
				Description: "Phase active when the message was authored.",
			},
			{
				Name:            "timestamp",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds when the message was appended.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureWeaviateSchema creates all Waypoint classes that do not exist yet.
// Called once at service startup when Weaviate is configured.
func EnsureWeaviateSchema(client *weaviate.Client) {
	schemaGetters := []func() *models.Class{
		GetDecisionSchema,
		GetThinkingSessionSchema,
		GetSessionMessageSchema,
	}

	for _, getSchema := range schemaGetters {
		class := getSchema()
		slog.Info("Checking schema", "class", class.Class)

		_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(context.Background())
		if err != nil {
			// The client returns an error when the class is missing.
			slog.Info("Schema not found, creating it...", "class", class.Class)
			err := client.Schema().ClassCreator().WithClass(class).Do(context.Background())
			if err != nil {
				log.Fatalf("Failed to create schema for class %s: %v", class.Class, err)
			}
			slog.Info("Successfully created schema", "class", class.Class)
		} else {
			slog.Info("Schema already exists", "class", class.Class)
		}
	}
}
