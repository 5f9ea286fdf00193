package orchestrator

import (
	"context"
	"log/slog"

	"github.com/webwatch/monitor/internal/model"
	"github.com/webwatch/monitor/internal/notify"
)

// BuildDigest accumulates per-run platform results into an end-of-run
// digest, indexed by entity id so findings can be presented grouped by
// entity rather than as a flat list.
func BuildDigest(ctx context.Context, repo model.Repository, results []PlatformResult) notify.Digest {
	type entityBucket struct {
		name  string
		urls  []string
		focal []string
	}
	byEntity := map[int64]*entityBucket{}
	affected := 0

	for _, r := range results {
		if !r.HasIssues() {
			continue
		}
		affected++
		b, ok := byEntity[r.Entity.ID]
		if !ok {
			emails := focalPointEmails(ctx, repo, r.Entity.ID)
			b = &entityBucket{name: r.Entity.Name, focal: emails}
			byEntity[r.Entity.ID] = b
		}
		b.urls = append(b.urls, r.Platform.URL)
	}

	entities := make([]notify.DigestEntity, 0, len(byEntity))
	for _, b := range byEntity {
		entities = append(entities, notify.DigestEntity{
			EntityName:       b.name,
			PlatformURLs:     b.urls,
			FocalPointEmails: b.focal,
		})
	}

	return notify.Digest{
		Entities:          entities,
		AffectedPlatforms: affected,
		TotalPlatforms:    len(results),
	}
}

func focalPointEmails(ctx context.Context, repo model.Repository, entityID int64) []string {
	points, err := repo.FocalPointsForEntity(ctx, entityID)
	if err != nil {
		slog.Default().Warn("orchestrator: loading focal points for digest failed", "entity_id", entityID, "err", err)
		return nil
	}
	emails := make([]string, 0, len(points))
	for _, p := range points {
		if p.IsActive && p.Email != "" {
			emails = append(emails, p.Email)
		}
	}
	return emails
}
