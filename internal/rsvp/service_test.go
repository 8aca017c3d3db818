package rsvp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vowsuite/vowsuite/internal/apperr"
	"github.com/vowsuite/vowsuite/internal/dynamo/dynamotest"
	"github.com/vowsuite/vowsuite/internal/keys"
	"github.com/vowsuite/vowsuite/internal/settings"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(dynamotest.NewClient(t, keys.Table), zap.NewNop())
}

func TestSubmitAndList(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	// Deterministic clock so submission order matches index order.
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	calls := 0
	s.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Minute)
	}

	first, err := s.Submit(ctx, "w-1", SubmitInput{GuestName: "Ana", Status: StatusAttending, PartySize: 2})
	require.NoError(t, err)
	_, err = s.Submit(ctx, "w-1", SubmitInput{GuestName: "Ben", Status: StatusMaybe, PartySize: 1})
	require.NoError(t, err)
	_, err = s.Submit(ctx, "w-1", SubmitInput{GuestName: "Cleo", Status: StatusAttending, PartySize: 4})
	require.NoError(t, err)

	all, err := s.ListAll(ctx, "w-1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "Ana", all[0].GuestName, "listing follows submission time")
	require.Equal(t, "Cleo", all[2].GuestName)

	attending, err := s.ListByStatus(ctx, "w-1", StatusAttending)
	require.NoError(t, err)
	require.Len(t, attending, 2)

	maybe, err := s.ListByStatus(ctx, "w-1", StatusMaybe)
	require.NoError(t, err)
	require.Len(t, maybe, 1)
	require.Equal(t, "Ben", maybe[0].GuestName)

	got, err := s.Get(ctx, "w-1", first.ID)
	require.NoError(t, err)
	require.Equal(t, "Ana", got.GuestName)
}

func TestSubmitGates(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	// Disabled feature.
	var off settings.RSVPPatch
	off.Enabled = settings.Val(false)
	_, _, err := settings.Apply(ctx, s.db, "w-off", settings.FeatureRSVP, settings.DefaultRSVP(), off, "u-1", false)
	require.NoError(t, err)
	_, err = s.Submit(ctx, "w-off", SubmitInput{GuestName: "Ana", Status: StatusAttending, PartySize: 1})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, "RSVP_DISABLED", ae.Code)

	// Passed deadline.
	var late settings.RSVPPatch
	late.Deadline = settings.Val("2026-01-01T00:00:00Z")
	_, _, err = settings.Apply(ctx, s.db, "w-late", settings.FeatureRSVP, settings.DefaultRSVP(), late, "u-1", false)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }
	_, err = s.Submit(ctx, "w-late", SubmitInput{GuestName: "Ana", Status: StatusAttending, PartySize: 1})
	ae, ok = apperr.As(err)
	require.True(t, ok)
	require.Equal(t, "RSVP_DEADLINE_PASSED", ae.Code)

	// Before the deadline it goes through.
	s.now = func() time.Time { return time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC) }
	_, err = s.Submit(ctx, "w-late", SubmitInput{GuestName: "Ana", Status: StatusAttending, PartySize: 1})
	require.NoError(t, err)

	// Maybe disallowed.
	var noMaybe settings.RSVPPatch
	noMaybe.AllowMaybe = settings.Val(false)
	_, _, err = settings.Apply(ctx, s.db, "w-firm", settings.FeatureRSVP, settings.DefaultRSVP(), noMaybe, "u-1", false)
	require.NoError(t, err)
	_, err = s.Submit(ctx, "w-firm", SubmitInput{GuestName: "Ana", Status: StatusMaybe, PartySize: 1})
	ae, ok = apperr.As(err)
	require.True(t, ok)
	require.Equal(t, "MAYBE_NOT_ALLOWED", ae.Code)

	// Oversized party against the default limit.
	_, err = s.Submit(ctx, "w-1", SubmitInput{GuestName: "Ana", Status: StatusAttending, PartySize: 99})
	ae, ok = apperr.As(err)
	require.True(t, ok)
	require.Equal(t, "PARTY_TOO_LARGE", ae.Code)
}

func TestUpdateStatusMovesPartition(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	r, err := s.Submit(ctx, "w-1", SubmitInput{GuestName: "Ana", Status: StatusMaybe, PartySize: 2})
	require.NoError(t, err)

	attending := StatusAttending
	require.NoError(t, s.Update(ctx, "w-1", r.ID, Patch{Status: &attending}))

	maybe, err := s.ListByStatus(ctx, "w-1", StatusMaybe)
	require.NoError(t, err)
	require.Empty(t, maybe, "old status partition must no longer list the record")

	got, err := s.ListByStatus(ctx, "w-1", StatusAttending)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, StatusAttending, got[0].Status)
}

func TestUpdateAndDeleteMissing(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	name := "Nobody"
	err := s.Update(ctx, "w-1", "ghost", Patch{GuestName: &name})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.NotFound, ae.Kind)

	err = s.Delete(ctx, "w-1", "ghost")
	ae, ok = apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.NotFound, ae.Kind)
}

func TestDelete(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	r, err := s.Submit(ctx, "w-1", SubmitInput{GuestName: "Ana", Status: StatusAttending, PartySize: 1})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "w-1", r.ID))

	all, err := s.ListAll(ctx, "w-1")
	require.NoError(t, err)
	require.Empty(t, all)
}
