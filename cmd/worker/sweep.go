package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/crowdfund-escrow/backend/internal/events"
	"github.com/crowdfund-escrow/backend/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisEndedPrefix = "worker:campaign-ended:"
	redisSweepCursor = "worker:campaign-ended:cursor"
)

type endedLister interface {
	ListEndedBetween(ctx context.Context, after, until int64, limit, offset int) ([]models.Campaign, error)
}

type auditLogger interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

// announcements remembers which campaigns were already announced and how far
// the sweep got.
type announcements interface {
	Claim(ctx context.Context, campaignID string) (bool, error)
	Cursor(ctx context.Context) (int64, error)
	SetCursor(ctx context.Context, endTime int64) error
}

type deadlineSweeper struct {
	campaigns endedLister
	marks     announcements
	publisher events.Publisher
	audit     auditLogger
	batch     int
	log       *zap.Logger
}

// sweep announces every campaign whose deadline passed since the last sweep.
// Each campaign is announced at most once, even across restarts.
func (s *deadlineSweeper) sweep(ctx context.Context, now int64) (int, error) {
	after, err := s.marks.Cursor(ctx)
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	if after >= now {
		return 0, nil
	}
	if s.batch <= 0 {
		s.batch = 100
	}

	announced := 0
	for offset := 0; ; offset += s.batch {
		campaigns, err := s.campaigns.ListEndedBetween(ctx, after, now, s.batch, offset)
		if err != nil {
			return announced, fmt.Errorf("list ended campaigns: %w", err)
		}

		for _, c := range campaigns {
			ok, err := s.marks.Claim(ctx, c.ID.String())
			if err != nil {
				return announced, fmt.Errorf("claim %s: %w", c.ID, err)
			}
			if !ok {
				continue
			}
			s.announce(ctx, c)
			announced++
		}

		if len(campaigns) < s.batch {
			break
		}
	}

	if err := s.marks.SetCursor(ctx, now); err != nil {
		return announced, fmt.Errorf("save cursor: %w", err)
	}
	return announced, nil
}

func (s *deadlineSweeper) announce(ctx context.Context, c models.Campaign) {
	id := c.ID
	if err := s.audit.Log(ctx, models.AuditLog{
		ActorType:  models.ActorTypeSystem,
		Action:     events.EventCampaignEnded,
		EntityType: models.EntityCampaign,
		EntityID:   &id,
		Meta: map[string]any{
			"is_successful": c.IsSuccessful,
			"total_raised":  c.CurrentAmount,
		},
	}); err != nil {
		s.log.Warn("audit log failed", zap.String("campaign_id", id.String()), zap.Error(err))
	}

	if err := s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
		Type: events.EventCampaignEnded,
		Payload: map[string]any{
			"campaign":      id.String(),
			"is_successful": c.IsSuccessful,
			"total_raised":  c.CurrentAmount,
		},
	}); err != nil {
		s.log.Warn("event publish failed", zap.String("campaign_id", id.String()), zap.Error(err))
	}

	s.log.Info("campaign ended",
		zap.String("campaign_id", id.String()),
		zap.Bool("is_successful", c.IsSuccessful),
		zap.Uint64("total_raised", c.CurrentAmount),
	)
}

type redisAnnouncements struct {
	rdb *redis.Client
}

func (r redisAnnouncements) Claim(ctx context.Context, campaignID string) (bool, error) {
	return r.rdb.SetNX(ctx, redisEndedPrefix+campaignID, "1", 0).Result()
}

func (r redisAnnouncements) Cursor(ctx context.Context) (int64, error) {
	val, err := r.rdb.Get(ctx, redisSweepCursor).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (r redisAnnouncements) SetCursor(ctx context.Context, endTime int64) error {
	return r.rdb.Set(ctx, redisSweepCursor, strconv.FormatInt(endTime, 10), 0).Err()
}
