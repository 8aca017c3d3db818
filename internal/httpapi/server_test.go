package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vowsuite/vowsuite/internal/auth"
	"github.com/vowsuite/vowsuite/internal/config"
	"github.com/vowsuite/vowsuite/internal/dynamo"
	"github.com/vowsuite/vowsuite/internal/dynamo/dynamotest"
	"github.com/vowsuite/vowsuite/internal/gallery"
	"github.com/vowsuite/vowsuite/internal/keys"
	"github.com/vowsuite/vowsuite/internal/music"
	"github.com/vowsuite/vowsuite/internal/registry"
	"github.com/vowsuite/vowsuite/internal/rsvp"
	"github.com/vowsuite/vowsuite/internal/tenant"
)

const testSecret = "test-secret"

// fakeStorage stands in for object storage: Exists reports whatever was
// "uploaded" through markUploaded.
type fakeStorage struct {
	objects map[string]bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]bool{}}
}

func (f *fakeStorage) PresignUpload(_ context.Context, key string) (string, error) {
	return "https://uploads.test/" + key, nil
}

func (f *fakeStorage) Exists(_ context.Context, key string) (bool, error) {
	return f.objects[key], nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) markUploaded(key string) {
	f.objects[key] = true
}

type fakeRemover struct {
	prefixes []string
}

func (f *fakeRemover) DeletePrefix(_ context.Context, prefix string) (int, error) {
	f.prefixes = append(f.prefixes, prefix)
	return 0, nil
}

type testServer struct {
	handler http.Handler
	storage *fakeStorage
	db      *dynamo.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dynamotest.NewClient(t, keys.Table)
	log := zap.NewNop()
	storage := newFakeStorage()
	srv := NewServer(Deps{
		Log:      log,
		Verifier: auth.NewVerifier(testSecret),
		Plans:    config.DefaultPlans(),
		DB:       db,
		Tenants:  tenant.NewStore(db, log),
		Registry: registry.NewService(db, log),
		Music:    music.NewService(db, log),
		RSVPs:    rsvp.NewService(db, log),
		Gallery:  gallery.NewService(db, storage, log),
		Objects:  &fakeRemover{},
	})
	return &testServer{handler: srv.Handler(), storage: storage, db: db}
}

func signToken(t *testing.T, userType string, master bool, tenantIDs ...string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  "user-" + userType,
		"type": userType,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	if master {
		claims["master"] = true
	}
	if len(tenantIDs) > 0 {
		claims["tenants"] = tenantIDs
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	var resp response
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp
}

func (ts *testServer) createWedding(t *testing.T, slug string) string {
	t.Helper()
	super := signToken(t, auth.TypeSuper, false)
	status, resp := ts.do(t, http.MethodPost, "/admin/weddings", super, map[string]any{
		"slug":        slug,
		"displayName": "Test Wedding",
		"ownerId":     "owner-1",
	})
	require.Equal(t, http.StatusCreated, status)
	var created tenant.Tenant
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	return created.TenantID
}

func (ts *testServer) activate(t *testing.T, tenantID string) {
	t.Helper()
	super := signToken(t, auth.TypeSuper, false)
	status, _ := ts.do(t, http.MethodPut, "/admin/weddings/"+tenantID+"/status", super,
		map[string]any{"status": "active"})
	require.Equal(t, http.StatusOK, status)
}

func TestPublicSiteLifecycle(t *testing.T) {
	ts := newTestServer(t)
	tenantID := ts.createWedding(t, "anna-und-ben")

	// Draft weddings are invisible to guests.
	status, resp := ts.do(t, http.MethodGet, "/public/weddings/anna-und-ben", "", nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "WEDDING_NOT_PUBLIC", resp.Code)

	ts.activate(t, tenantID)

	status, resp = ts.do(t, http.MethodGet, "/public/weddings/anna-und-ben", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.True(t, resp.Success)
	var site siteResponse
	require.NoError(t, json.Unmarshal(resp.Data, &site))
	require.Equal(t, "anna-und-ben", site.Wedding.Slug)
	require.True(t, site.Features.RSVP.Enabled)
	require.False(t, site.Features.Parking.Enabled)

	status, resp = ts.do(t, http.MethodGet, "/public/weddings/no-such-slug", "", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "WEDDING_NOT_FOUND", resp.Code)
}

func TestAdminAuthGates(t *testing.T) {
	ts := newTestServer(t)
	tenantID := ts.createWedding(t, "gated")

	status, resp := ts.do(t, http.MethodGet, "/admin/weddings/"+tenantID, "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "MISSING_TOKEN", resp.Code)

	status, resp = ts.do(t, http.MethodGet, "/admin/weddings/"+tenantID, "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "INVALID_TOKEN", resp.Code)

	other := signToken(t, auth.TypeTenantAdmin, false, "some-other-tenant")
	status, resp = ts.do(t, http.MethodGet, "/admin/weddings/"+tenantID, other, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", resp.Code)

	admin := signToken(t, auth.TypeTenantAdmin, false, tenantID)
	status, _ = ts.do(t, http.MethodGet, "/admin/weddings/"+tenantID, admin, nil)
	require.Equal(t, http.StatusOK, status)
}

func TestCreateWeddingRequiresOperator(t *testing.T) {
	ts := newTestServer(t)
	admin := signToken(t, auth.TypeTenantAdmin, false, "whatever")
	status, resp := ts.do(t, http.MethodPost, "/admin/weddings", admin, map[string]any{
		"slug":        "nope",
		"displayName": "Nope",
	})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", resp.Code)
}

func TestCreateWeddingRejectsUnknownPlan(t *testing.T) {
	ts := newTestServer(t)
	super := signToken(t, auth.TypeSuper, false)
	status, resp := ts.do(t, http.MethodPost, "/admin/weddings", super, map[string]any{
		"slug":        "planless",
		"displayName": "Planless",
		"plan":        "galactic",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "INVALID_PLAN", resp.Code)
}

func TestGiftReservationFlow(t *testing.T) {
	ts := newTestServer(t)
	tenantID := ts.createWedding(t, "gifted")
	ts.activate(t, tenantID)
	admin := signToken(t, auth.TypeTenantAdmin, false, tenantID)

	status, resp := ts.do(t, http.MethodPost, "/admin/weddings/"+tenantID+"/gifts", admin, map[string]any{
		"name":          "Espresso Machine",
		"priceCents":    45000,
		"quantityTotal": 1,
	})
	require.Equal(t, http.StatusCreated, status)
	var gift registry.Gift
	require.NoError(t, json.Unmarshal(resp.Data, &gift))

	// Body validation happens before the service is touched.
	status, resp = ts.do(t, http.MethodPost,
		fmt.Sprintf("/public/weddings/gifted/gifts/%s/reservations", gift.ID), "",
		map[string]any{"guestName": "Carla", "quantity": 0})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "INVALID_FIELD", resp.Code)

	status, resp = ts.do(t, http.MethodPost,
		fmt.Sprintf("/public/weddings/gifted/gifts/%s/reservations", gift.ID), "",
		map[string]any{"guestName": "Carla", "quantity": 1})
	require.Equal(t, http.StatusCreated, status)
	var res registry.Reservation
	require.NoError(t, json.Unmarshal(resp.Data, &res))

	status, resp = ts.do(t, http.MethodPost,
		fmt.Sprintf("/public/weddings/gifted/gifts/%s/reservations", gift.ID), "",
		map[string]any{"guestName": "Dario", "quantity": 1})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "INSUFFICIENT_QUANTITY", resp.Code)

	status, resp = ts.do(t, http.MethodGet,
		fmt.Sprintf("/admin/weddings/%s/gifts/%s/reservations", tenantID, gift.ID), admin, nil)
	require.Equal(t, http.StatusOK, status)
	var reservations []registry.Reservation
	require.NoError(t, json.Unmarshal(resp.Data, &reservations))
	require.Len(t, reservations, 1)

	status, _ = ts.do(t, http.MethodDelete,
		fmt.Sprintf("/admin/weddings/%s/gifts/%s/reservations/%s", tenantID, gift.ID, res.ID), admin, nil)
	require.Equal(t, http.StatusNoContent, status)
}

func TestSettingsPatchRestrictedFields(t *testing.T) {
	ts := newTestServer(t)
	tenantID := ts.createWedding(t, "configured")
	admin := signToken(t, auth.TypeTenantAdmin, false, tenantID)
	super := signToken(t, auth.TypeSuper, false)

	path := "/admin/weddings/" + tenantID + "/settings/rsvp"

	// A tenant admin may toggle the feature but not lift capacity.
	status, resp := ts.do(t, http.MethodPatch, path, admin, map[string]any{
		"allowMaybe":        false,
		"maxGuestsPerParty": 99,
	})
	require.Equal(t, http.StatusOK, status)
	var out settingsResponse
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	doc, ok := out.Settings.(map[string]any)
	require.True(t, ok)
	require.Equal(t, false, doc["allowMaybe"])
	require.Equal(t, float64(10), doc["maxGuestsPerParty"])

	status, resp = ts.do(t, http.MethodPatch, path, super, map[string]any{
		"maxGuestsPerParty": 99,
	})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	doc, ok = out.Settings.(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(99), doc["maxGuestsPerParty"])
	require.Equal(t, false, doc["allowMaybe"])

	status, resp = ts.do(t, http.MethodGet, "/admin/weddings/"+tenantID+"/settings/floristry", admin, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "UNKNOWN_FEATURE", resp.Code)
}

func TestRSVPFlow(t *testing.T) {
	ts := newTestServer(t)
	tenantID := ts.createWedding(t, "replied")
	ts.activate(t, tenantID)
	admin := signToken(t, auth.TypeTenantAdmin, false, tenantID)

	status, resp := ts.do(t, http.MethodPost, "/public/weddings/replied/rsvps", "", map[string]any{
		"guestName": "Greta",
		"status":    "attending",
		"partySize": 2,
	})
	require.Equal(t, http.StatusCreated, status)
	var created rsvp.RSVP
	require.NoError(t, json.Unmarshal(resp.Data, &created))

	status, resp = ts.do(t, http.MethodGet,
		"/admin/weddings/"+tenantID+"/rsvps?status=attending", admin, nil)
	require.Equal(t, http.StatusOK, status)
	var list []rsvp.RSVP
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list, 1)

	// Disabling the feature closes the public endpoint.
	status, _ = ts.do(t, http.MethodPatch, "/admin/weddings/"+tenantID+"/settings/rsvp", admin,
		map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, status)

	status, resp = ts.do(t, http.MethodPost, "/public/weddings/replied/rsvps", "", map[string]any{
		"guestName": "Hugo",
		"status":    "attending",
		"partySize": 1,
	})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "RSVP_DISABLED", resp.Code)

	status, _ = ts.do(t, http.MethodDelete,
		"/admin/weddings/"+tenantID+"/rsvps/"+created.ID, admin, nil)
	require.Equal(t, http.StatusNoContent, status)
}

func TestImageUploadFlow(t *testing.T) {
	ts := newTestServer(t)
	tenantID := ts.createWedding(t, "pictured")
	ts.activate(t, tenantID)
	admin := signToken(t, auth.TypeTenantAdmin, false, tenantID)

	status, resp := ts.do(t, http.MethodPost, "/admin/weddings/"+tenantID+"/images/gallery", admin,
		map[string]any{"filename": "ceremony.jpg"})
	require.Equal(t, http.StatusCreated, status)
	var upload gallery.Upload
	require.NoError(t, json.Unmarshal(resp.Data, &upload))
	require.NotEmpty(t, upload.UploadURL)

	finalize := fmt.Sprintf("/admin/weddings/%s/images/gallery/%s/finalize", tenantID, upload.Image.ID)
	status, resp = ts.do(t, http.MethodPost, finalize, admin, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "UPLOAD_INCOMPLETE", resp.Code)

	// Guests never see pending records.
	status, resp = ts.do(t, http.MethodGet, "/public/weddings/pictured/gallery", "", nil)
	require.Equal(t, http.StatusOK, status)
	var images []gallery.Image
	require.NoError(t, json.Unmarshal(resp.Data, &images))
	require.Empty(t, images)

	ts.storage.markUploaded(upload.Image.ObjectKey)
	status, _ = ts.do(t, http.MethodPost, finalize, admin, nil)
	require.Equal(t, http.StatusOK, status)

	status, resp = ts.do(t, http.MethodGet, "/public/weddings/pictured/gallery", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(resp.Data, &images))
	require.Len(t, images, 1)
	require.True(t, images[0].Uploaded)

	status, resp = ts.do(t, http.MethodPost, "/admin/weddings/"+tenantID+"/images/slideshow", admin,
		map[string]any{"filename": "x.jpg"})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "UNKNOWN_COLLECTION", resp.Code)
}

func TestGlobalTrackRoutes(t *testing.T) {
	ts := newTestServer(t)
	tenantID := ts.createWedding(t, "tuneful")
	admin := signToken(t, auth.TypeTenantAdmin, false, tenantID)
	super := signToken(t, auth.TypeSuper, false)

	status, resp := ts.do(t, http.MethodPost, "/admin/music-library", admin, map[string]any{
		"title":    "Perfect",
		"mediaUrl": "https://cdn.test/perfect.mp3",
	})
	require.Equal(t, http.StatusForbidden, status)

	status, resp = ts.do(t, http.MethodPost, "/admin/music-library", super, map[string]any{
		"title":    "Perfect",
		"artist":   "Ed Sheeran",
		"mediaUrl": "https://cdn.test/perfect.mp3",
	})
	require.Equal(t, http.StatusCreated, status)
	var global music.GlobalTrack
	require.NoError(t, json.Unmarshal(resp.Data, &global))

	status, resp = ts.do(t, http.MethodPost, "/admin/weddings/"+tenantID+"/tracks", admin,
		map[string]any{"globalMusicId": global.ID})
	require.Equal(t, http.StatusCreated, status)
	var track music.Track
	require.NoError(t, json.Unmarshal(resp.Data, &track))
	require.Equal(t, "Perfect", track.Title)

	// Deleting a referenced library track needs a replacement.
	status, resp = ts.do(t, http.MethodDelete, "/admin/music-library/"+global.ID, super, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "TRACK_IN_USE", resp.Code)

	status, resp = ts.do(t, http.MethodPost, "/admin/music-library", super, map[string]any{
		"title":    "Thinking Out Loud",
		"mediaUrl": "https://cdn.test/tol.mp3",
	})
	require.Equal(t, http.StatusCreated, status)
	var replacement music.GlobalTrack
	require.NoError(t, json.Unmarshal(resp.Data, &replacement))

	status, _ = ts.do(t, http.MethodDelete,
		"/admin/music-library/"+global.ID+"?replacement="+replacement.ID, super, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, resp = ts.do(t, http.MethodGet, "/admin/weddings/"+tenantID+"/tracks", admin, nil)
	require.Equal(t, http.StatusOK, status)
	var tracks []music.Track
	require.NoError(t, json.Unmarshal(resp.Data, &tracks))
	require.Len(t, tracks, 1)
	require.Equal(t, "Thinking Out Loud", tracks[0].Title)
}

func TestArchivedWeddingGone(t *testing.T) {
	ts := newTestServer(t)
	tenantID := ts.createWedding(t, "bygone")
	super := signToken(t, auth.TypeSuper, false)

	status, _ := ts.do(t, http.MethodPut, "/admin/weddings/"+tenantID+"/status", super,
		map[string]any{"status": "archived"})
	require.Equal(t, http.StatusOK, status)

	status, resp := ts.do(t, http.MethodGet, "/public/weddings/bygone", "", nil)
	require.Equal(t, http.StatusGone, status)
	require.Equal(t, "WEDDING_ARCHIVED", resp.Code)

	// Ordinary admins lose access once archived; the operator can still
	// run the hard delete.
	admin := signToken(t, auth.TypeTenantAdmin, false, tenantID)
	status, resp = ts.do(t, http.MethodGet, "/admin/weddings/"+tenantID, admin, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, resp = ts.do(t, http.MethodDelete, "/admin/weddings/"+tenantID, super, nil)
	require.Equal(t, http.StatusOK, status)
	var cascade tenant.CascadeResult
	require.NoError(t, json.Unmarshal(resp.Data, &cascade))
	require.Equal(t, 2, cascade.Records["TENANT"])

	status, resp = ts.do(t, http.MethodGet, "/public/weddings/bygone", "", nil)
	require.Equal(t, http.StatusNotFound, status)
}
