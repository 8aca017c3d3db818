// Package httpapi is the HTTP surface: public wedding pages addressed
// by slug, and the authenticated admin API addressed by tenant id. All
// responses use one envelope; all errors map through the apperr
// taxonomy.
package httpapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vowsuite/vowsuite/internal/auth"
	"github.com/vowsuite/vowsuite/internal/config"
	"github.com/vowsuite/vowsuite/internal/dynamo"
	"github.com/vowsuite/vowsuite/internal/gallery"
	"github.com/vowsuite/vowsuite/internal/music"
	"github.com/vowsuite/vowsuite/internal/registry"
	"github.com/vowsuite/vowsuite/internal/rsvp"
	"github.com/vowsuite/vowsuite/internal/tenant"
)

// Deps collects everything the server serves from.
type Deps struct {
	Log      *zap.Logger
	Verifier *auth.Verifier
	Plans    config.Plans

	DB       *dynamo.Client
	Tenants  *tenant.Store
	Registry *registry.Service
	Music    *music.Service
	RSVPs    *rsvp.Service
	Gallery  *gallery.Service
	Objects  tenant.ObjectRemover
}

type Server struct {
	log      *zap.Logger
	verifier *auth.Verifier
	plans    config.Plans

	db       *dynamo.Client
	tenants  *tenant.Store
	registry *registry.Service
	music    *music.Service
	rsvps    *rsvp.Service
	gallery  *gallery.Service
	objects  tenant.ObjectRemover

	httpServer *http.Server
}

func NewServer(d Deps) *Server {
	return &Server{
		log:      d.Log,
		verifier: d.Verifier,
		plans:    d.Plans,
		db:       d.DB,
		tenants:  d.Tenants,
		registry: d.Registry,
		music:    d.Music,
		rsvps:    d.RSVPs,
		gallery:  d.Gallery,
		objects:  d.Objects,
	}
}

// Handler builds the full routed handler, middleware included. Tests
// serve it directly through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public, slug-addressed, no authentication.
	mux.HandleFunc("GET /public/weddings/{slug}", s.publicSite)
	mux.HandleFunc("GET /public/weddings/{slug}/gifts", s.publicListGifts)
	mux.HandleFunc("POST /public/weddings/{slug}/gifts/{giftId}/reservations", s.publicReserveGift)
	mux.HandleFunc("POST /public/weddings/{slug}/rsvps", s.publicSubmitRSVP)
	mux.HandleFunc("GET /public/weddings/{slug}/tracks", s.publicListTracks)
	mux.HandleFunc("GET /public/weddings/{slug}/gallery", s.publicListGallery)
	mux.HandleFunc("GET /public/weddings/{slug}/parking", s.publicParking)

	// Admin, tenant-id-addressed, bearer token required.
	admin := http.NewServeMux()
	admin.HandleFunc("POST /admin/weddings", s.adminCreateWedding)
	admin.HandleFunc("GET /admin/weddings/{tenantId}", s.adminGetWedding)
	admin.HandleFunc("PATCH /admin/weddings/{tenantId}", s.adminUpdateWedding)
	admin.HandleFunc("PUT /admin/weddings/{tenantId}/status", s.adminSetStatus)
	admin.HandleFunc("DELETE /admin/weddings/{tenantId}", s.adminDeleteWedding)

	admin.HandleFunc("GET /admin/weddings/{tenantId}/settings/{feature}", s.adminGetSettings)
	admin.HandleFunc("PATCH /admin/weddings/{tenantId}/settings/{feature}", s.adminPatchSettings)

	admin.HandleFunc("POST /admin/weddings/{tenantId}/gifts", s.adminCreateGift)
	admin.HandleFunc("GET /admin/weddings/{tenantId}/gifts", s.adminListGifts)
	admin.HandleFunc("PUT /admin/weddings/{tenantId}/gifts/order", s.adminReorderGifts)
	admin.HandleFunc("PATCH /admin/weddings/{tenantId}/gifts/{giftId}", s.adminUpdateGift)
	admin.HandleFunc("DELETE /admin/weddings/{tenantId}/gifts/{giftId}", s.adminDeleteGift)
	admin.HandleFunc("GET /admin/weddings/{tenantId}/gifts/{giftId}/reservations", s.adminListReservations)
	admin.HandleFunc("DELETE /admin/weddings/{tenantId}/gifts/{giftId}/reservations/{reservationId}", s.adminCancelReservation)

	admin.HandleFunc("POST /admin/weddings/{tenantId}/tracks", s.adminAddTrack)
	admin.HandleFunc("GET /admin/weddings/{tenantId}/tracks", s.adminListTracks)
	admin.HandleFunc("PUT /admin/weddings/{tenantId}/tracks/order", s.adminReorderTracks)
	admin.HandleFunc("DELETE /admin/weddings/{tenantId}/tracks/{trackId}", s.adminDeleteTrack)

	admin.HandleFunc("POST /admin/weddings/{tenantId}/images/{kind}", s.adminCreateImage)
	admin.HandleFunc("GET /admin/weddings/{tenantId}/images/{kind}", s.adminListImages)
	admin.HandleFunc("PUT /admin/weddings/{tenantId}/images/{kind}/order", s.adminReorderImages)
	admin.HandleFunc("POST /admin/weddings/{tenantId}/images/{kind}/{imageId}/finalize", s.adminFinalizeImage)
	admin.HandleFunc("DELETE /admin/weddings/{tenantId}/images/{kind}/{imageId}", s.adminDeleteImage)
	admin.HandleFunc("POST /admin/weddings/{tenantId}/hero/uploads", s.adminPresignHero)

	admin.HandleFunc("GET /admin/weddings/{tenantId}/rsvps", s.adminListRSVPs)
	admin.HandleFunc("PATCH /admin/weddings/{tenantId}/rsvps/{rsvpId}", s.adminUpdateRSVP)
	admin.HandleFunc("DELETE /admin/weddings/{tenantId}/rsvps/{rsvpId}", s.adminDeleteRSVP)

	admin.HandleFunc("POST /admin/music-library", s.adminCreateGlobalTrack)
	admin.HandleFunc("GET /admin/music-library", s.adminListGlobalTracks)
	admin.HandleFunc("DELETE /admin/music-library/{trackId}", s.adminDeleteGlobalTrack)

	mux.Handle("/admin/", s.authMiddleware(admin))

	return requestIDMiddleware(loggingMiddleware(s.log, mux))
}

// Run serves until SIGINT/SIGTERM, then drains connections.
func (s *Server) Run(addr string, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		s.log.Info("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.Warn("shutdown incomplete", zap.Error(err))
		}
		close(done)
	}()

	s.log.Info("listening", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	<-done
	return nil
}
