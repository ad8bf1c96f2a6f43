package services

import (
	"context"

	"github.com/Farhad2590/traveltrade-backend/internal/models"
	repo "github.com/Farhad2590/traveltrade-backend/internal/repository"
	"github.com/Farhad2590/traveltrade-backend/internal/worker"
)

// How many times services re-read and retry a versioned write before
// giving up and surfacing the conflict.
const applyDeltaAttempts = 3

// auditAsync writes the audit entry off the request path. Audit is best
// effort; a failed write never fails the operation it describes.
func auditAsync(wp *worker.Pool, logs repo.AuditLogs, entityType, entityID, action, actor string, details map[string]any) {
	l := models.AuditLog{
		EntityType: entityType,
		EntityID:   &entityID,
		Action:     action,
		Actor:      actor,
		Details:    details,
	}
	wp.Submit(func() { _ = logs.Create(context.Background(), l) })
}
