package httpapi

import (
	"net/http"

	"github.com/vowsuite/vowsuite/internal/apperr"
	"github.com/vowsuite/vowsuite/internal/auth"
	"github.com/vowsuite/vowsuite/internal/gallery"
	"github.com/vowsuite/vowsuite/internal/keys"
	"github.com/vowsuite/vowsuite/internal/music"
	"github.com/vowsuite/vowsuite/internal/registry"
	"github.com/vowsuite/vowsuite/internal/rsvp"
	"github.com/vowsuite/vowsuite/internal/tenant"
)

// adminTenant checks the caller may administer the addressed tenant and
// resolves it, applying the admin status gate.
func (s *Server) adminTenant(r *http.Request) (*tenant.Tenant, auth.Identity, error) {
	ident, ok := identityFrom(r.Context())
	if !ok {
		return nil, auth.Identity{}, apperr.New(apperr.Unauthorized, "MISSING_TOKEN", "authorization required")
	}
	tenantID := r.PathValue("tenantId")
	if err := auth.RequireTenantAdmin(ident, tenantID); err != nil {
		return nil, ident, err
	}
	t, err := s.tenants.ResolveByID(r.Context(), tenantID)
	if err != nil {
		return nil, ident, err
	}
	if err := tenant.RequireAccessibleForAdmin(t, ident.IsElevated()); err != nil {
		return nil, ident, err
	}
	return t, ident, nil
}

// requireElevated gates operator-only routes that are not addressed by
// tenant id.
func (s *Server) requireElevated(r *http.Request) (auth.Identity, error) {
	ident, ok := identityFrom(r.Context())
	if !ok {
		return auth.Identity{}, apperr.New(apperr.Unauthorized, "MISSING_TOKEN", "authorization required")
	}
	if !ident.IsElevated() {
		return ident, apperr.New(apperr.Forbidden, "FORBIDDEN", "operator access required")
	}
	return ident, nil
}

type createWeddingRequest struct {
	Slug        string `json:"slug" validate:"required"`
	DisplayName string `json:"displayName" validate:"required,max=200"`
	OwnerID     string `json:"ownerId" validate:"omitempty,max=100"`
	EventDate   string `json:"eventDate" validate:"omitempty,datetime=2006-01-02"`
	Plan        string `json:"plan" validate:"omitempty,max=50"`
}

// adminCreateWedding provisions a new tenant. Operator-only: tenant
// admins administer existing weddings, they do not mint new ones.
func (s *Server) adminCreateWedding(w http.ResponseWriter, r *http.Request) {
	ident, err := s.requireElevated(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	var req createWeddingRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	if req.Plan == "" {
		req.Plan = "basic"
	}
	if !s.plans.Valid(req.Plan) {
		writeErr(w, s.log, r, apperr.Validationf("INVALID_PLAN", "unknown plan %q", req.Plan))
		return
	}
	owner := req.OwnerID
	if owner == "" {
		owner = ident.UserID
	}
	t, err := s.tenants.Create(r.Context(), tenant.CreateInput{
		Slug:        req.Slug,
		DisplayName: req.DisplayName,
		OwnerID:     owner,
		EventDate:   req.EventDate,
		Plan:        req.Plan,
	}, ident.UserID)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusCreated, t)
}

func (s *Server) adminGetWedding(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, t)
}

type updateWeddingRequest struct {
	DisplayName *string   `json:"displayName" validate:"omitempty,min=1,max=200"`
	EventDate   *string   `json:"eventDate" validate:"omitempty,datetime=2006-01-02"`
	Plan        *string   `json:"plan" validate:"omitempty,max=50"`
	CoOwnerIDs  *[]string `json:"coOwnerIds" validate:"omitempty,dive,required"`
}

func (s *Server) adminUpdateWedding(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	var req updateWeddingRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	if req.Plan != nil && !s.plans.Valid(*req.Plan) {
		writeErr(w, s.log, r, apperr.Validationf("INVALID_PLAN", "unknown plan %q", *req.Plan))
		return
	}
	err = s.tenants.UpdateProfile(r.Context(), t.TenantID, tenant.ProfilePatch{
		DisplayName: req.DisplayName,
		EventDate:   req.EventDate,
		Plan:        req.Plan,
		CoOwnerIDs:  req.CoOwnerIDs,
	})
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	updated, err := s.tenants.ResolveByID(r.Context(), t.TenantID)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (s *Server) adminSetStatus(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	var req setStatusRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	if err := s.tenants.SetStatus(r.Context(), t.TenantID, tenant.Status(req.Status)); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	updated, err := s.tenants.ResolveByID(r.Context(), t.TenantID)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

// adminDeleteWedding runs the hard-delete cascade. The store refuses
// anything not archived, and the admin gate already keeps ordinary
// admins away from archived tenants, so in practice only elevated
// operators get here.
func (s *Server) adminDeleteWedding(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	result, err := s.tenants.HardDelete(r.Context(), t, s.objects)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

type createGiftRequest struct {
	Name          string  `json:"name" validate:"required,max=200"`
	Description   *string `json:"description" validate:"omitempty,max=2000"`
	LinkURL       *string `json:"linkUrl" validate:"omitempty,url"`
	ImageKey      *string `json:"imageKey" validate:"omitempty,max=1024"`
	PriceCents    int     `json:"priceCents" validate:"min=0"`
	QuantityTotal int     `json:"quantityTotal" validate:"required,min=1"`
}

func (s *Server) adminCreateGift(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	var req createGiftRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	gift, err := s.registry.CreateGift(r.Context(), t.TenantID, registry.CreateGiftInput{
		Name:          req.Name,
		Description:   req.Description,
		LinkURL:       req.LinkURL,
		ImageKey:      req.ImageKey,
		PriceCents:    req.PriceCents,
		QuantityTotal: req.QuantityTotal,
	})
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusCreated, gift)
}

func (s *Server) adminListGifts(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	gifts, err := s.registry.ListGifts(r.Context(), t.TenantID)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, gifts)
}

type updateGiftRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description   *string `json:"description" validate:"omitempty,max=2000"`
	LinkURL       *string `json:"linkUrl" validate:"omitempty,url"`
	ImageKey      *string `json:"imageKey" validate:"omitempty,max=1024"`
	PriceCents    *int    `json:"priceCents" validate:"omitempty,min=0"`
	QuantityTotal *int    `json:"quantityTotal" validate:"omitempty,min=1"`
}

func (s *Server) adminUpdateGift(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	var req updateGiftRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	giftID := r.PathValue("giftId")
	err = s.registry.UpdateGift(r.Context(), t.TenantID, giftID, registry.GiftPatch{
		Name:          req.Name,
		Description:   req.Description,
		LinkURL:       req.LinkURL,
		ImageKey:      req.ImageKey,
		PriceCents:    req.PriceCents,
		QuantityTotal: req.QuantityTotal,
	})
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	gift, err := s.registry.GetGift(r.Context(), t.TenantID, giftID)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, gift)
}

func (s *Server) adminDeleteGift(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	if err := s.registry.DeleteGift(r.Context(), t.TenantID, r.PathValue("giftId")); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	Order []string `json:"order" validate:"required,min=1,dive,required"`
}

func (s *Server) adminReorderGifts(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	var req reorderRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	result, err := s.registry.ReorderGifts(r.Context(), t.TenantID, req.Order)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) adminListReservations(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	reservations, err := s.registry.ListReservations(r.Context(), t.TenantID, r.PathValue("giftId"))
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, reservations)
}

func (s *Server) adminCancelReservation(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	err = s.registry.CancelReservation(r.Context(), t.TenantID, r.PathValue("giftId"), r.PathValue("reservationId"))
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addTrackRequest struct {
	GlobalMusicID *string `json:"globalMusicId" validate:"omitempty,uuid"`
	Title         string  `json:"title" validate:"omitempty,max=300"`
	Artist        string  `json:"artist" validate:"omitempty,max=300"`
	MediaURL      *string `json:"mediaUrl" validate:"omitempty,url"`
}

func (s *Server) adminAddTrack(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	var req addTrackRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	track, err := s.music.AddTrack(r.Context(), t.TenantID, music.AddTrackInput{
		GlobalMusicID: req.GlobalMusicID,
		Title:         req.Title,
		Artist:        req.Artist,
		MediaURL:      req.MediaURL,
	})
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusCreated, track)
}

func (s *Server) adminListTracks(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	tracks, err := s.music.ListTracks(r.Context(), t.TenantID)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, tracks)
}

func (s *Server) adminReorderTracks(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	var req reorderRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	result, err := s.music.ReorderTracks(r.Context(), t.TenantID, req.Order)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) adminDeleteTrack(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	if err := s.music.DeleteTrack(r.Context(), t.TenantID, r.PathValue("trackId")); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// imageKind maps the URL collection segment onto the stored kind.
func imageKind(r *http.Request) (keys.Kind, error) {
	switch r.PathValue("kind") {
	case "gallery":
		return keys.KindImage, nil
	case "parking":
		return keys.KindParkingImage, nil
	default:
		return "", apperr.NotFoundf("UNKNOWN_COLLECTION", "unknown image collection %q", r.PathValue("kind"))
	}
}

type createImageRequest struct {
	Filename string  `json:"filename" validate:"required,max=255"`
	Caption  *string `json:"caption" validate:"omitempty,max=500"`
}

func (s *Server) adminCreateImage(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	kind, err := imageKind(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	var req createImageRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	upload, err := s.gallery.Create(r.Context(), t.TenantID, kind, gallery.CreateInput{
		Filename: req.Filename,
		Caption:  req.Caption,
	})
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusCreated, upload)
}

func (s *Server) adminListImages(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	kind, err := imageKind(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	images, err := s.gallery.List(r.Context(), t.TenantID, kind)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, images)
}

func (s *Server) adminReorderImages(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	kind, err := imageKind(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	var req reorderRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	result, err := s.gallery.Reorder(r.Context(), t.TenantID, kind, req.Order)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) adminFinalizeImage(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	kind, err := imageKind(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	id := r.PathValue("imageId")
	if err := s.gallery.Finalize(r.Context(), t.TenantID, kind, id); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	image, err := s.gallery.Get(r.Context(), t.TenantID, kind, id)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, image)
}

func (s *Server) adminDeleteImage(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	kind, err := imageKind(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	if err := s.gallery.Delete(r.Context(), t.TenantID, kind, r.PathValue("imageId")); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type presignHeroRequest struct {
	Filename string `json:"filename" validate:"required,max=255"`
}

type presignHeroResponse struct {
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
}

func (s *Server) adminPresignHero(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	var req presignHeroRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	key, url, err := s.gallery.PresignHero(r.Context(), t.TenantID, req.Filename)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusCreated, presignHeroResponse{Key: key, UploadURL: url})
}

func (s *Server) adminListRSVPs(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := rsvp.Status(raw)
		if !status.Known() {
			writeErr(w, s.log, r, apperr.Validationf("INVALID_STATUS", "unknown rsvp status %q", raw))
			return
		}
		list, err := s.rsvps.ListByStatus(r.Context(), t.TenantID, status)
		if err != nil {
			writeErr(w, s.log, r, err)
			return
		}
		writeData(w, http.StatusOK, list)
		return
	}
	list, err := s.rsvps.ListAll(r.Context(), t.TenantID)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

type updateRSVPRequest struct {
	GuestName *string `json:"guestName" validate:"omitempty,min=1,max=200"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=40"`
	Status    *string `json:"status"`
	PartySize *int    `json:"partySize" validate:"omitempty,min=1"`
	Message   *string `json:"message" validate:"omitempty,max=2000"`
}

func (s *Server) adminUpdateRSVP(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	var req updateRSVPRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	var status *rsvp.Status
	if req.Status != nil {
		st := rsvp.Status(*req.Status)
		if !st.Known() {
			writeErr(w, s.log, r, apperr.Validationf("INVALID_STATUS", "unknown rsvp status %q", *req.Status))
			return
		}
		status = &st
	}
	id := r.PathValue("rsvpId")
	err = s.rsvps.Update(r.Context(), t.TenantID, id, rsvp.Patch{
		GuestName: req.GuestName,
		Email:     req.Email,
		Phone:     req.Phone,
		Status:    status,
		PartySize: req.PartySize,
		Message:   req.Message,
	})
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	updated, err := s.rsvps.Get(r.Context(), t.TenantID, id)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

func (s *Server) adminDeleteRSVP(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.adminTenant(r)
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	if err := s.rsvps.Delete(r.Context(), t.TenantID, r.PathValue("rsvpId")); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createGlobalTrackRequest struct {
	Title           string `json:"title" validate:"required,max=300"`
	Artist          string `json:"artist" validate:"omitempty,max=300"`
	MediaURL        string `json:"mediaUrl" validate:"required,url"`
	DurationSeconds int    `json:"durationSeconds" validate:"min=0"`
}

func (s *Server) adminCreateGlobalTrack(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireElevated(r); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	var req createGlobalTrackRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	track, err := s.music.CreateGlobalTrack(r.Context(), music.GlobalTrackInput{
		Title:           req.Title,
		Artist:          req.Artist,
		MediaURL:        req.MediaURL,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusCreated, track)
}

// adminListGlobalTracks is open to every authenticated admin: tenant
// admins browse the library when building a playlist.
func (s *Server) adminListGlobalTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.music.ListGlobalTracks(r.Context())
	if err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	writeData(w, http.StatusOK, tracks)
}

func (s *Server) adminDeleteGlobalTrack(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireElevated(r); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	replacement := r.URL.Query().Get("replacement")
	if err := s.music.DeleteGlobalTrack(r.Context(), r.PathValue("trackId"), replacement); err != nil {
		writeErr(w, s.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
