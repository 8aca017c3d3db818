package music

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vowsuite/vowsuite/internal/apperr"
	"github.com/vowsuite/vowsuite/internal/dynamo"
	"github.com/vowsuite/vowsuite/internal/keys"
	"github.com/vowsuite/vowsuite/internal/ordering"
	"github.com/vowsuite/vowsuite/internal/settings"
)

type Service struct {
	db  *dynamo.Client
	log *zap.Logger
}

func NewService(db *dynamo.Client, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

type AddTrackInput struct {
	// GlobalMusicID selects a library track; title, artist and media are
	// copied from it and the provided ones are ignored.
	GlobalMusicID *string
	Title         string
	Artist        string
	MediaURL      *string
}

// AddTrack appends a track to the tenant's playlist.
func (s *Service) AddTrack(ctx context.Context, tenantID string, in AddTrackInput) (*Track, error) {
	cfg, _, err := settings.Load(ctx, s.db, tenantID, settings.FeatureMusic, settings.DefaultMusic())
	if err != nil {
		return nil, err
	}
	order, err := ordering.NextOrder(ctx, s.db, tenantID, keys.KindTrack)
	if err != nil {
		return nil, err
	}
	if order >= cfg.MaxTracks {
		return nil, apperr.Validationf("TRACK_LIMIT_REACHED", "this playlist is limited to %d tracks", cfg.MaxTracks)
	}

	t := &Track{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Order:     order,
	}
	t.PK, t.SK, t.GSI1PK, t.GSI1SK = trackKeys(tenantID, t.ID, order)

	if in.GlobalMusicID != nil {
		g, err := s.GetGlobalTrack(ctx, *in.GlobalMusicID)
		if err != nil {
			return nil, err
		}
		t.Title = g.Title
		t.Artist = g.Artist
		t.MediaURL = &g.MediaURL
		t.GlobalMusicID = &g.ID
		t.GSI2PK = keys.GlobalTrackRefPK(g.ID)
		t.GSI2SK = keys.GlobalTrackRefSK(tenantID, t.ID)
	} else {
		if in.Title == "" {
			return nil, apperr.Validationf("INVALID_TITLE", "track title is required")
		}
		t.Title = in.Title
		t.Artist = in.Artist
		t.MediaURL = in.MediaURL
	}

	if err := s.db.PutItem(ctx, dynamo.NewPut(t).IfNotExists(s.db.Table())); err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to add track", err)
	}
	return t, nil
}

// ListTracks returns the playlist in display order.
func (s *Service) ListTracks(ctx context.Context, tenantID string) ([]Track, error) {
	items, err := s.db.NewQuery(keys.EntityListPK(tenantID, keys.KindTrack)).Index(keys.GSI1).All(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to list tracks", err)
	}
	tracks := make([]Track, len(items))
	for i, item := range items {
		if err := attributevalue.UnmarshalMap(item, &tracks[i]); err != nil {
			return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to read track", err)
		}
	}
	return tracks, nil
}

// DeleteTrack removes one playlist entry.
func (s *Service) DeleteTrack(ctx context.Context, tenantID, trackID string) error {
	key := keys.Entity(tenantID, keys.KindTrack, trackID)
	item, err := s.db.GetItem(ctx, key)
	if err != nil {
		return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to load track", err)
	}
	if item == nil {
		return apperr.NotFoundf("TRACK_NOT_FOUND", "track not found")
	}
	if err := s.db.DeleteItem(ctx, dynamo.NewDelete(key)); err != nil {
		return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to delete track", err)
	}
	return nil
}

// ReorderTracks persists a full new display order.
func (s *Service) ReorderTracks(ctx context.Context, tenantID string, ids []string) (ordering.Result, error) {
	return ordering.Reorder(ctx, s.db, tenantID, keys.KindTrack, ids)
}

type GlobalTrackInput struct {
	Title           string
	Artist          string
	MediaURL        string
	DurationSeconds int
}

// CreateGlobalTrack adds a track to the shared library.
func (s *Service) CreateGlobalTrack(ctx context.Context, in GlobalTrackInput) (*GlobalTrack, error) {
	if in.Title == "" || in.MediaURL == "" {
		return nil, apperr.Validationf("INVALID_TRACK", "title and mediaUrl are required")
	}
	id := uuid.NewString()
	key := keys.GlobalTrack(id)
	g := &GlobalTrack{
		PK:              key.Partition,
		SK:              key.Sort,
		ID:              id,
		Title:           in.Title,
		Artist:          in.Artist,
		MediaURL:        in.MediaURL,
		DurationSeconds: in.DurationSeconds,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.db.PutItem(ctx, dynamo.NewPut(g).IfNotExists(s.db.Table())); err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to create library track", err)
	}
	return g, nil
}

// GetGlobalTrack fetches one library track.
func (s *Service) GetGlobalTrack(ctx context.Context, id string) (*GlobalTrack, error) {
	item, err := s.db.GetItem(ctx, keys.GlobalTrack(id))
	if err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to load library track", err)
	}
	if item == nil {
		return nil, apperr.NotFoundf("GLOBAL_TRACK_NOT_FOUND", "library track not found")
	}
	var g GlobalTrack
	if err := attributevalue.UnmarshalMap(item, &g); err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to read library track", err)
	}
	return &g, nil
}

// ListGlobalTracks returns the whole library.
func (s *Service) ListGlobalTracks(ctx context.Context) ([]GlobalTrack, error) {
	items, err := s.db.NewQuery(keys.MusicLibraryPK).All(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to list library", err)
	}
	out := make([]GlobalTrack, len(items))
	for i, item := range items {
		if err := attributevalue.UnmarshalMap(item, &out[i]); err != nil {
			return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to read library track", err)
		}
	}
	return out, nil
}

// DeleteGlobalTrack removes a library track. While tenant playlists
// still reference it, deletion is refused unless a replacement library
// track is supplied; every referencing playlist entry is then rewritten
// to the replacement before the original goes away.
//
// The fan-out is not a transaction. An interrupted run leaves some
// playlists rewritten and others not; re-running it is safe because
// entries already pointing at the replacement are skipped.
func (s *Service) DeleteGlobalTrack(ctx context.Context, id, replacementID string) error {
	if _, err := s.GetGlobalTrack(ctx, id); err != nil {
		return err
	}

	refs, err := s.db.NewQuery(keys.GlobalTrackRefPK(id)).Index(keys.GSI2).All(ctx)
	if err != nil {
		return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to list references", err)
	}
	if len(refs) > 0 {
		if replacementID == "" {
			return apperr.Validationf("TRACK_IN_USE",
				"%d playlists still use this track; supply a replacement to delete it", len(refs))
		}
		if replacementID == id {
			return apperr.Validationf("INVALID_REPLACEMENT", "replacement must differ from the deleted track")
		}
		replacement, err := s.GetGlobalTrack(ctx, replacementID)
		if err != nil {
			return err
		}
		if err := s.rewriteReferences(ctx, refs, replacement); err != nil {
			return err
		}
	}

	if err := s.db.DeleteItem(ctx, dynamo.NewDelete(keys.GlobalTrack(id))); err != nil {
		return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to delete library track", err)
	}
	return nil
}

func (s *Service) rewriteReferences(ctx context.Context, refs []dynamo.Item, replacement *GlobalTrack) error {
	for _, item := range refs {
		var t Track
		if err := attributevalue.UnmarshalMap(item, &t); err != nil {
			return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to read referencing track", err)
		}
		if t.GlobalMusicID != nil && *t.GlobalMusicID == replacement.ID {
			continue
		}
		err := s.db.UpdateItem(ctx, dynamo.NewUpdate(keys.Entity(t.TenantID, keys.KindTrack, t.ID)).
			Apply(
				dynamo.Set("globalMusicId", replacement.ID),
				dynamo.Set("title", replacement.Title),
				dynamo.Set("artist", replacement.Artist),
				dynamo.Set("mediaUrl", replacement.MediaURL),
				dynamo.Set("gsi2pk", keys.GlobalTrackRefPK(replacement.ID)),
			).
			IfExists(s.db.Table()))
		if errors.Is(err, dynamo.ErrConditionFailed) {
			// The playlist entry was deleted mid fan-out; nothing to rewrite.
			continue
		}
		if err != nil {
			s.log.Warn("library track replacement interrupted; rerun to finish",
				zap.String("trackId", t.ID), zap.String("tenantId", t.TenantID), zap.Error(err))
			return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to rewrite playlist reference", err)
		}
	}
	return nil
}
