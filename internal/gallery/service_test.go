package gallery

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vowsuite/vowsuite/internal/apperr"
	"github.com/vowsuite/vowsuite/internal/dynamo/dynamotest"
	"github.com/vowsuite/vowsuite/internal/keys"
	"github.com/vowsuite/vowsuite/internal/settings"
)

type fakeStorage struct {
	objects   map[string]bool
	deleteErr error
	deleted   []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]bool{}}
}

func (f *fakeStorage) PresignUpload(_ context.Context, key string) (string, error) {
	return "https://upload.example/" + key, nil
}

func (f *fakeStorage) Exists(_ context.Context, key string) (bool, error) {
	return f.objects[key], nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeStorage) {
	t.Helper()
	storage := newFakeStorage()
	return NewService(dynamotest.NewClient(t, keys.Table), storage, zap.NewNop()), storage
}

func TestCreateFinalizeFlow(t *testing.T) {
	s, storage := newTestService(t)
	ctx := context.Background()

	up, err := s.Create(ctx, "w-1", keys.KindImage, CreateInput{Filename: "first-dance.jpg"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(up.Image.ObjectKey, "tenants/w-1/gallery/"))
	require.Equal(t, "https://upload.example/"+up.Image.ObjectKey, up.UploadURL)
	require.False(t, up.Image.Uploaded)

	// Pending images are admin-visible but not public.
	all, err := s.List(ctx, "w-1", keys.KindImage)
	require.NoError(t, err)
	require.Len(t, all, 1)
	public, err := s.ListUploaded(ctx, "w-1", keys.KindImage)
	require.NoError(t, err)
	require.Empty(t, public)

	// Finalizing before the file exists fails.
	err = s.Finalize(ctx, "w-1", keys.KindImage, up.Image.ID)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, "UPLOAD_INCOMPLETE", ae.Code)

	storage.objects[up.Image.ObjectKey] = true
	require.NoError(t, s.Finalize(ctx, "w-1", keys.KindImage, up.Image.ID))

	public, err = s.ListUploaded(ctx, "w-1", keys.KindImage)
	require.NoError(t, err)
	require.Len(t, public, 1)
	require.True(t, public[0].Uploaded)
}

func TestCreateRejectsBadFilenames(t *testing.T) {
	s, _ := newTestService(t)

	for _, name := range []string{"", "../escape.jpg", "a/b.jpg", "a\\b.jpg", "x..y.jpg"} {
		_, err := s.Create(context.Background(), "w-1", keys.KindImage, CreateInput{Filename: name})
		ae, ok := apperr.As(err)
		require.Truef(t, ok, "filename %q must be rejected", name)
		require.Equal(t, apperr.Validation, ae.Kind)
	}
}

func TestCreateRejectsUnknownFormat(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.Create(context.Background(), "w-1", keys.KindImage, CreateInput{Filename: "animation.gif"})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, "UNSUPPORTED_FORMAT", ae.Code)
}

func TestCreateHonorsParkingLimit(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	var p settings.ParkingPatch
	p.MaxImages = settings.Val(1)
	_, _, err := settings.Apply(ctx, s.db, "w-1", settings.FeatureParking, settings.DefaultParking(), p, "op-1", true)
	require.NoError(t, err)

	_, err = s.Create(ctx, "w-1", keys.KindParkingImage, CreateInput{Filename: "entrance.jpg"})
	require.NoError(t, err)
	_, err = s.Create(ctx, "w-1", keys.KindParkingImage, CreateInput{Filename: "lot.jpg"})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, "IMAGE_LIMIT_REACHED", ae.Code)
}

func TestDeleteRemovesRecordEvenWhenStorageFails(t *testing.T) {
	s, storage := newTestService(t)
	ctx := context.Background()

	up, err := s.Create(ctx, "w-1", keys.KindImage, CreateInput{Filename: "cake.jpg"})
	require.NoError(t, err)
	storage.objects[up.Image.ObjectKey] = true
	storage.deleteErr = errors.New("storage unavailable")

	require.NoError(t, s.Delete(ctx, "w-1", keys.KindImage, up.Image.ID),
		"storage failure must not block record deletion")

	_, err = s.Get(ctx, "w-1", keys.KindImage, up.Image.ID)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.NotFound, ae.Kind)
}

func TestDeleteRemovesObject(t *testing.T) {
	s, storage := newTestService(t)
	ctx := context.Background()

	up, err := s.Create(ctx, "w-1", keys.KindImage, CreateInput{Filename: "cake.jpg"})
	require.NoError(t, err)
	storage.objects[up.Image.ObjectKey] = true

	require.NoError(t, s.Delete(ctx, "w-1", keys.KindImage, up.Image.ID))
	require.Equal(t, []string{up.Image.ObjectKey}, storage.deleted)
}

func TestReorderImages(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	a, err := s.Create(ctx, "w-1", keys.KindImage, CreateInput{Filename: "a.jpg"})
	require.NoError(t, err)
	b, err := s.Create(ctx, "w-1", keys.KindImage, CreateInput{Filename: "b.jpg"})
	require.NoError(t, err)

	_, err = s.Reorder(ctx, "w-1", keys.KindImage, []string{b.Image.ID, a.Image.ID})
	require.NoError(t, err)

	imgs, err := s.List(ctx, "w-1", keys.KindImage)
	require.NoError(t, err)
	require.Equal(t, b.Image.ID, imgs[0].ID)
	require.Equal(t, a.Image.ID, imgs[1].ID)
}

func TestPresignHero(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	key, url, err := s.PresignHero(ctx, "w-1", "arrival.mp4")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, "tenants/w-1/hero/"))
	require.Equal(t, "https://upload.example/"+key, url)

	_, _, err = s.PresignHero(ctx, "w-1", "notes.txt")
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, "UNSUPPORTED_FORMAT", ae.Code)
}
