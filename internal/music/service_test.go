package music

import (
	"context"
	"testing"

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

func TestAddAndListTracks(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	url := "https://cdn.example/first.mp3"
	first, err := s.AddTrack(ctx, "w-1", AddTrackInput{Title: "First Dance", Artist: "Band", MediaURL: &url})
	require.NoError(t, err)
	require.Equal(t, 0, first.Order)
	require.Nil(t, first.GlobalMusicID)

	g, err := s.CreateGlobalTrack(ctx, GlobalTrackInput{Title: "Classic", Artist: "Orchestra", MediaURL: "https://cdn.example/classic.mp3"})
	require.NoError(t, err)

	second, err := s.AddTrack(ctx, "w-1", AddTrackInput{GlobalMusicID: &g.ID, Title: "ignored"})
	require.NoError(t, err)
	require.Equal(t, "Classic", second.Title, "library metadata wins over the submitted title")
	require.Equal(t, g.ID, *second.GlobalMusicID)

	tracks, err := s.ListTracks(ctx, "w-1")
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	require.Equal(t, "First Dance", tracks[0].Title)
	require.Equal(t, "Classic", tracks[1].Title)
}

func TestAddTrackHonorsLimit(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	var p settings.MusicPatch
	p.MaxTracks = settings.Val(1)
	_, _, err := settings.Apply(ctx, s.db, "w-1", settings.FeatureMusic, settings.DefaultMusic(), p, "op-1", true)
	require.NoError(t, err)

	_, err = s.AddTrack(ctx, "w-1", AddTrackInput{Title: "one"})
	require.NoError(t, err)
	_, err = s.AddTrack(ctx, "w-1", AddTrackInput{Title: "two"})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, "TRACK_LIMIT_REACHED", ae.Code)
}

func TestDeleteGlobalTrackRefusedWhileReferenced(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	g, err := s.CreateGlobalTrack(ctx, GlobalTrackInput{Title: "Hit", MediaURL: "https://cdn.example/hit.mp3"})
	require.NoError(t, err)
	_, err = s.AddTrack(ctx, "w-1", AddTrackInput{GlobalMusicID: &g.ID})
	require.NoError(t, err)

	err = s.DeleteGlobalTrack(ctx, g.ID, "")
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, "TRACK_IN_USE", ae.Code)

	// Still present.
	_, err = s.GetGlobalTrack(ctx, g.ID)
	require.NoError(t, err)
}

func TestDeleteGlobalTrackWithReplacementFanOut(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	old, err := s.CreateGlobalTrack(ctx, GlobalTrackInput{Title: "Old", Artist: "A", MediaURL: "https://cdn.example/old.mp3"})
	require.NoError(t, err)
	repl, err := s.CreateGlobalTrack(ctx, GlobalTrackInput{Title: "New", Artist: "B", MediaURL: "https://cdn.example/new.mp3"})
	require.NoError(t, err)

	_, err = s.AddTrack(ctx, "w-1", AddTrackInput{GlobalMusicID: &old.ID})
	require.NoError(t, err)
	_, err = s.AddTrack(ctx, "w-2", AddTrackInput{GlobalMusicID: &old.ID})
	require.NoError(t, err)
	// A playlist already on the replacement must pass through untouched.
	preDone, err := s.AddTrack(ctx, "w-3", AddTrackInput{GlobalMusicID: &repl.ID})
	require.NoError(t, err)

	require.NoError(t, s.DeleteGlobalTrack(ctx, old.ID, repl.ID))

	_, err = s.GetGlobalTrack(ctx, old.ID)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.NotFound, ae.Kind)

	for _, tenantID := range []string{"w-1", "w-2", "w-3"} {
		tracks, err := s.ListTracks(ctx, tenantID)
		require.NoError(t, err)
		require.Len(t, tracks, 1)
		require.Equal(t, repl.ID, *tracks[0].GlobalMusicID)
		require.Equal(t, "New", tracks[0].Title)
		require.Equal(t, "https://cdn.example/new.mp3", *tracks[0].MediaURL)
	}

	// No stale back references to the deleted track remain.
	refs, err := s.db.NewQuery(keys.GlobalTrackRefPK(old.ID)).Index(keys.GSI2).All(ctx)
	require.NoError(t, err)
	require.Empty(t, refs)

	// The untouched playlist entry kept its identity.
	tracks, err := s.ListTracks(ctx, "w-3")
	require.NoError(t, err)
	require.Equal(t, preDone.ID, tracks[0].ID)
}

func TestRewriteReferencesIdempotent(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	old, err := s.CreateGlobalTrack(ctx, GlobalTrackInput{Title: "Old", MediaURL: "https://cdn.example/old.mp3"})
	require.NoError(t, err)
	repl, err := s.CreateGlobalTrack(ctx, GlobalTrackInput{Title: "New", MediaURL: "https://cdn.example/new.mp3"})
	require.NoError(t, err)
	_, err = s.AddTrack(ctx, "w-1", AddTrackInput{GlobalMusicID: &old.ID})
	require.NoError(t, err)

	refs, err := s.db.NewQuery(keys.GlobalTrackRefPK(old.ID)).Index(keys.GSI2).All(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)

	require.NoError(t, s.rewriteReferences(ctx, refs, repl))
	// An interrupted-and-restarted fan-out replays records that were
	// already rewritten; the replay must be a no-op.
	require.NoError(t, s.rewriteReferences(ctx, refs, repl))

	tracks, err := s.ListTracks(ctx, "w-1")
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	require.Equal(t, repl.ID, *tracks[0].GlobalMusicID)
}

func TestDeleteGlobalTrackRequiresDistinctReplacement(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	g, err := s.CreateGlobalTrack(ctx, GlobalTrackInput{Title: "Solo", MediaURL: "https://cdn.example/solo.mp3"})
	require.NoError(t, err)
	_, err = s.AddTrack(ctx, "w-1", AddTrackInput{GlobalMusicID: &g.ID})
	require.NoError(t, err)

	err = s.DeleteGlobalTrack(ctx, g.ID, g.ID)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, "INVALID_REPLACEMENT", ae.Code)
}

func TestDeleteUnreferencedGlobalTrack(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	g, err := s.CreateGlobalTrack(ctx, GlobalTrackInput{Title: "Unused", MediaURL: "https://cdn.example/u.mp3"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteGlobalTrack(ctx, g.ID, ""))

	library, err := s.ListGlobalTracks(ctx)
	require.NoError(t, err)
	require.Empty(t, library)
}
