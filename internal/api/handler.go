package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"carwash-bay-backend/internal/station"
	"carwash-bay-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store        store.Store
	station      *station.Service
	webpush      *webpush.Options
	historyLimit int
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, svc *station.Service, webpushOptions *webpush.Options, historyLimit int) *Handler {
	return &Handler{
		store:        s,
		station:      svc,
		webpush:      webpushOptions,
		historyLimit: historyLimit,
	}
}
