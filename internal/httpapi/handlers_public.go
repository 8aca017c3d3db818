package httpapi

import (
	"context"
	"net/http"

	"github.com/vowsuite/vowsuite/internal/apperr"
	"github.com/vowsuite/vowsuite/internal/dynamo"
	"github.com/vowsuite/vowsuite/internal/gallery"
	"github.com/vowsuite/vowsuite/internal/keys"
	"github.com/vowsuite/vowsuite/internal/registry"
	"github.com/vowsuite/vowsuite/internal/rsvp"
	"github.com/vowsuite/vowsuite/internal/settings"
	"github.com/vowsuite/vowsuite/internal/tenant"
)

// publicTenant resolves the slug and applies the public status gate.
func (s *Server) publicTenant(r *http.Request) (*tenant.Tenant, error) {
	t, err := s.tenants.ResolveBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		return nil, err
	}
	if err := tenant.RequireActiveForPublic(t); err != nil {
		return nil, err
	}
	return t, nil
}

type publicWedding struct {
	Slug        string `json:"slug"`
	DisplayName string `json:"displayName"`
	EventDate   string `json:"eventDate,omitempty"`
}

type siteFeatures struct {
	RSVP           settings.RSVPSettings           `json:"rsvp"`
	Gifts          settings.GiftsSettings          `json:"gifts"`
	Music          settings.MusicSettings          `json:"music"`
	HeroBackground settings.HeroBackgroundSettings `json:"heroBackground"`
	QRCodeHub      settings.QRCodeHubSettings      `json:"qrCodeHub"`
	Parking        settings.ParkingSettings        `json:"parking"`
	Contacts       settings.ContactsSettings       `json:"contacts"`
	Schedule       settings.ScheduleSettings       `json:"schedule"`
	Images         settings.ImagesSettings         `json:"images"`
}

type siteResponse struct {
	Wedding  publicWedding `json:"wedding"`
	Features siteFeatures  `json:"features"`
}

// loadDoc chains settings loads: the first failure sticks and later
// calls become no-ops.
func loadDoc[T any](ctx context.Context, db *dynamo.Client, tenantID string, f settings.Feature, defaults T, dst *T, errp *error) {
	if *errp != nil {
		return
	}
	doc, _, err := settings.Load(ctx, db, tenantID, f, defaults)
	if err != nil {
		*errp = err
		return
	}
	*dst = doc
}

// publicSite is the single bootstrap call a wedding page makes: the
// profile plus every feature document, defaults filled in.
func (s *Server) publicSite(w http.ResponseWriter, r *http.Request) {
	t, err := s.publicTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	ctx := r.Context()
	var f siteFeatures
	loadDoc(ctx, s.db, t.TenantID, settings.FeatureRSVP, settings.DefaultRSVP(), &f.RSVP, &err)
	loadDoc(ctx, s.db, t.TenantID, settings.FeatureGifts, settings.DefaultGifts(), &f.Gifts, &err)
	loadDoc(ctx, s.db, t.TenantID, settings.FeatureMusic, settings.DefaultMusic(), &f.Music, &err)
	loadDoc(ctx, s.db, t.TenantID, settings.FeatureHeroBackground, settings.DefaultHeroBackground(), &f.HeroBackground, &err)
	loadDoc(ctx, s.db, t.TenantID, settings.FeatureQRCodeHub, settings.DefaultQRCodeHub(), &f.QRCodeHub, &err)
	loadDoc(ctx, s.db, t.TenantID, settings.FeatureParking, settings.DefaultParking(), &f.Parking, &err)
	loadDoc(ctx, s.db, t.TenantID, settings.FeatureContacts, settings.DefaultContacts(), &f.Contacts, &err)
	loadDoc(ctx, s.db, t.TenantID, settings.FeatureSchedule, settings.DefaultSchedule(), &f.Schedule, &err)
	loadDoc(ctx, s.db, t.TenantID, settings.FeatureImages, settings.DefaultImages(), &f.Images, &err)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, siteResponse{
		Wedding: publicWedding{
			Slug:        t.Slug,
			DisplayName: t.DisplayName,
			EventDate:   t.EventDate,
		},
		Features: f,
	})
}

func (s *Server) publicListGifts(w http.ResponseWriter, r *http.Request) {
	t, err := s.publicTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	cfg, _, err := settings.Load(r.Context(), s.db, t.TenantID, settings.FeatureGifts, settings.DefaultGifts())
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	if !cfg.Enabled {
		writeErr(w, s.log, r, apperr.New(apperr.Forbidden, "GIFTS_DISABLED", "the gift registry is not enabled"))
		return
	}
	gifts, err := s.registry.ListGifts(r.Context(), t.TenantID)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, gifts)
}

type reserveRequest struct {
	GuestName  string  `json:"guestName" validate:"required,max=200"`
	GuestEmail *string `json:"guestEmail" validate:"omitempty,email"`
	Message    *string `json:"message" validate:"omitempty,max=2000"`
	Quantity   int     `json:"quantity" validate:"required,min=1"`
}

func (s *Server) publicReserveGift(w http.ResponseWriter, r *http.Request) {
	t, err := s.publicTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	var req reserveRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	res, err := s.registry.Reserve(r.Context(), t.TenantID, r.PathValue("giftId"), registry.ReserveInput{
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
		Message:    req.Message,
		Quantity:   req.Quantity,
	})
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}

type submitRSVPRequest struct {
	GuestName string  `json:"guestName" validate:"required,max=200"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=40"`
	Status    string  `json:"status" validate:"required"`
	PartySize int     `json:"partySize" validate:"required,min=1"`
	Message   *string `json:"message" validate:"omitempty,max=2000"`
}

func (s *Server) publicSubmitRSVP(w http.ResponseWriter, r *http.Request) {
	t, err := s.publicTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	var req submitRSVPRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	created, err := s.rsvps.Submit(r.Context(), t.TenantID, rsvp.SubmitInput{
		GuestName: req.GuestName,
		Email:     req.Email,
		Phone:     req.Phone,
		Status:    rsvp.Status(req.Status),
		PartySize: req.PartySize,
		Message:   req.Message,
	})
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusCreated, created)
}

func (s *Server) publicListTracks(w http.ResponseWriter, r *http.Request) {
	t, err := s.publicTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	cfg, _, err := settings.Load(r.Context(), s.db, t.TenantID, settings.FeatureMusic, settings.DefaultMusic())
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	if !cfg.Enabled {
		writeErr(w, s.log, r, apperr.New(apperr.Forbidden, "MUSIC_DISABLED", "the playlist is not enabled"))
		return
	}
	tracks, err := s.music.ListTracks(r.Context(), t.TenantID)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, tracks)
}

// publicListGallery returns finished uploads only; records still waiting
// on their object are invisible to guests.
func (s *Server) publicListGallery(w http.ResponseWriter, r *http.Request) {
	t, err := s.publicTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	cfg, _, err := settings.Load(r.Context(), s.db, t.TenantID, settings.FeatureImages, settings.DefaultImages())
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	if !cfg.Enabled {
		writeErr(w, s.log, r, apperr.New(apperr.Forbidden, "IMAGES_DISABLED", "the gallery is not enabled"))
		return
	}
	images, err := s.gallery.ListUploaded(r.Context(), t.TenantID, keys.KindImage)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, images)
}

type parkingResponse struct {
	Settings settings.ParkingSettings `json:"settings"`
	Images   []gallery.Image          `json:"images"`
}

func (s *Server) publicParking(w http.ResponseWriter, r *http.Request) {
	t, err := s.publicTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	cfg, _, err := settings.Load(r.Context(), s.db, t.TenantID, settings.FeatureParking, settings.DefaultParking())
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	if !cfg.Enabled {
		writeErr(w, s.log, r, apperr.New(apperr.Forbidden, "PARKING_DISABLED", "parking information is not enabled"))
		return
	}
	images, err := s.gallery.ListUploaded(r.Context(), t.TenantID, keys.KindParkingImage)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, parkingResponse{Settings: cfg, Images: images})
}
