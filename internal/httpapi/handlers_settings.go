package httpapi

import (
	"net/http"

	"github.com/vowsuite/vowsuite/internal/apperr"
	"github.com/vowsuite/vowsuite/internal/auth"
	"github.com/vowsuite/vowsuite/internal/settings"
)

// featureFromPath maps the URL segment onto a settings feature.
func featureFromPath(r *http.Request) (settings.Feature, error) {
	switch r.PathValue("feature") {
	case "rsvp":
		return settings.FeatureRSVP, nil
	case "gifts":
		return settings.FeatureGifts, nil
	case "music":
		return settings.FeatureMusic, nil
	case "hero-background":
		return settings.FeatureHeroBackground, nil
	case "qrcode-hub":
		return settings.FeatureQRCodeHub, nil
	case "parking":
		return settings.FeatureParking, nil
	case "contacts":
		return settings.FeatureContacts, nil
	case "schedule":
		return settings.FeatureSchedule, nil
	case "images":
		return settings.FeatureImages, nil
	default:
		return "", apperr.NotFoundf("UNKNOWN_FEATURE", "unknown feature %q", r.PathValue("feature"))
	}
}

type settingsResponse struct {
	Feature  string        `json:"feature"`
	Settings any           `json:"settings"`
	Meta     settings.Meta `json:"meta"`
}

func getSettings[T any](s *Server, w http.ResponseWriter, r *http.Request, tenantID string, f settings.Feature, defaults T) {
	doc, meta, err := settings.Load(r.Context(), s.db, tenantID, f, defaults)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, settingsResponse{Feature: string(f), Settings: doc, Meta: meta})
}

func (s *Server) adminGetSettings(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	f, err := featureFromPath(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	switch f {
	case settings.FeatureRSVP:
		getSettings(s, w, r, t.TenantID, f, settings.DefaultRSVP())
	case settings.FeatureGifts:
		getSettings(s, w, r, t.TenantID, f, settings.DefaultGifts())
	case settings.FeatureMusic:
		getSettings(s, w, r, t.TenantID, f, settings.DefaultMusic())
	case settings.FeatureHeroBackground:
		getSettings(s, w, r, t.TenantID, f, settings.DefaultHeroBackground())
	case settings.FeatureQRCodeHub:
		getSettings(s, w, r, t.TenantID, f, settings.DefaultQRCodeHub())
	case settings.FeatureParking:
		getSettings(s, w, r, t.TenantID, f, settings.DefaultParking())
	case settings.FeatureContacts:
		getSettings(s, w, r, t.TenantID, f, settings.DefaultContacts())
	case settings.FeatureSchedule:
		getSettings(s, w, r, t.TenantID, f, settings.DefaultSchedule())
	case settings.FeatureImages:
		getSettings(s, w, r, t.TenantID, f, settings.DefaultImages())
	}
}

func patchSettings[T any, P settings.Patch[T]](s *Server, w http.ResponseWriter, r *http.Request, ident auth.Identity, tenantID string, f settings.Feature, defaults T) {
	var patch P
	if err := decode(r, &patch); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	doc, meta, err := settings.Apply(r.Context(), s.db, tenantID, f, defaults, patch, ident.UserID, ident.IsElevated())
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, settingsResponse{Feature: string(f), Settings: doc, Meta: meta})
}

func (s *Server) adminPatchSettings(w http.ResponseWriter, r *http.Request) {
	t, ident, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	f, err := featureFromPath(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	switch f {
	case settings.FeatureRSVP:
		patchSettings[settings.RSVPSettings, settings.RSVPPatch](s, w, r, ident, t.TenantID, f, settings.DefaultRSVP())
	case settings.FeatureGifts:
		patchSettings[settings.GiftsSettings, settings.GiftsPatch](s, w, r, ident, t.TenantID, f, settings.DefaultGifts())
	case settings.FeatureMusic:
		patchSettings[settings.MusicSettings, settings.MusicPatch](s, w, r, ident, t.TenantID, f, settings.DefaultMusic())
	case settings.FeatureHeroBackground:
		patchSettings[settings.HeroBackgroundSettings, settings.HeroBackgroundPatch](s, w, r, ident, t.TenantID, f, settings.DefaultHeroBackground())
	case settings.FeatureQRCodeHub:
		patchSettings[settings.QRCodeHubSettings, settings.QRCodeHubPatch](s, w, r, ident, t.TenantID, f, settings.DefaultQRCodeHub())
	case settings.FeatureParking:
		patchSettings[settings.ParkingSettings, settings.ParkingPatch](s, w, r, ident, t.TenantID, f, settings.DefaultParking())
	case settings.FeatureContacts:
		patchSettings[settings.ContactsSettings, settings.ContactsPatch](s, w, r, ident, t.TenantID, f, settings.DefaultContacts())
	case settings.FeatureSchedule:
		patchSettings[settings.ScheduleSettings, settings.SchedulePatch](s, w, r, ident, t.TenantID, f, settings.DefaultSchedule())
	case settings.FeatureImages:
		patchSettings[settings.ImagesSettings, settings.ImagesPatch](s, w, r, ident, t.TenantID, f, settings.DefaultImages())
	}
}
