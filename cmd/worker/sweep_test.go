package main

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crowdfund-escrow/backend/internal/events"
	"github.com/crowdfund-escrow/backend/internal/models"
)

type fakeCampaigns struct {
	all   []models.Campaign
	calls int
}

func (f *fakeCampaigns) ListEndedBetween(_ context.Context, after, until int64, limit, offset int) ([]models.Campaign, error) {
	f.calls++
	var out []models.Campaign
	for _, c := range f.all {
		if c.EndTime > after && c.EndTime <= until {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime < out[j].EndTime })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeMarks struct {
	claimed map[string]bool
	cursor  int64
}

func newFakeMarks() *fakeMarks { return &fakeMarks{claimed: map[string]bool{}} }

func (m *fakeMarks) Claim(_ context.Context, id string) (bool, error) {
	if m.claimed[id] {
		return false, nil
	}
	m.claimed[id] = true
	return true, nil
}

func (m *fakeMarks) Cursor(context.Context) (int64, error) { return m.cursor, nil }

func (m *fakeMarks) SetCursor(_ context.Context, v int64) error {
	m.cursor = v
	return nil
}

type fakePublisher struct{ events []events.Event }

func (p *fakePublisher) Publish(_ context.Context, _ string, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

type fakeAudit struct{ entries []models.AuditLog }

func (a *fakeAudit) Log(_ context.Context, e models.AuditLog) error {
	a.entries = append(a.entries, e)
	return nil
}

func endedCampaign(end int64, successful bool) models.Campaign {
	return models.Campaign{ID: uuid.New(), EndTime: end, IsSuccessful: successful, CurrentAmount: 42}
}

func newSweeper(campaigns *fakeCampaigns, marks *fakeMarks, batch int) (*deadlineSweeper, *fakePublisher, *fakeAudit) {
	pub := &fakePublisher{}
	audit := &fakeAudit{}
	return &deadlineSweeper{
		campaigns: campaigns,
		marks:     marks,
		publisher: pub,
		audit:     audit,
		batch:     batch,
		log:       zap.NewNop(),
	}, pub, audit
}

func TestSweepAnnouncesEndedCampaignsOnce(t *testing.T) {
	campaigns := &fakeCampaigns{all: []models.Campaign{
		endedCampaign(100, true),
		endedCampaign(200, false),
		endedCampaign(200, false),
		endedCampaign(300, true),
		endedCampaign(900, false), // not ended yet
	}}
	marks := newFakeMarks()
	s, pub, audit := newSweeper(campaigns, marks, 2)

	n, err := s.sweep(context.Background(), 500)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, int64(500), marks.cursor)
	require.Len(t, pub.events, 4)
	require.Len(t, audit.entries, 4)

	first := pub.events[0]
	assert.Equal(t, events.EventCampaignEnded, first.Type)
	assert.Equal(t, campaigns.all[0].ID.String(), first.Payload["campaign"])
	assert.Equal(t, true, first.Payload["is_successful"])
	assert.Equal(t, uint64(42), first.Payload["total_raised"])

	assert.Equal(t, models.ActorTypeSystem, audit.entries[0].ActorType)
	assert.Nil(t, audit.entries[0].Actor)
	assert.Equal(t, models.EntityCampaign, audit.entries[0].EntityType)

	// Nothing new: the cursor already covers everything up to 500.
	n, err = s.sweep(context.Background(), 500)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.sweep(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, pub.events, 5)
}

func TestSweepSkipsClaimedCampaigns(t *testing.T) {
	c := endedCampaign(100, false)
	campaigns := &fakeCampaigns{all: []models.Campaign{c}}
	marks := newFakeMarks()
	marks.claimed[c.ID.String()] = true

	s, pub, _ := newSweeper(campaigns, marks, 10)
	n, err := s.sweep(context.Background(), 500)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, pub.events)
	assert.Equal(t, int64(500), marks.cursor)
}

type failingCampaigns struct{}

func (failingCampaigns) ListEndedBetween(context.Context, int64, int64, int, int) ([]models.Campaign, error) {
	return nil, errors.New("db down")
}

func TestSweepKeepsCursorOnListFailure(t *testing.T) {
	marks := newFakeMarks()
	marks.cursor = 50
	s := &deadlineSweeper{
		campaigns: failingCampaigns{},
		marks:     marks,
		publisher: &fakePublisher{},
		audit:     &fakeAudit{},
		batch:     10,
		log:       zap.NewNop(),
	}

	_, err := s.sweep(context.Background(), 500)
	require.Error(t, err)
	assert.Equal(t, int64(50), marks.cursor)
}
