package handlers

import (
	"database/sql"
	"net/http"

	"github.com/rs/zerolog"

	"pcinventory/internal/events"
	"pcinventory/internal/feed"
	"pcinventory/internal/middleware"
)

// Deps carries what the routes need.
type Deps struct {
	DB           *sql.DB
	Bus          *events.Bus
	Feed         *feed.Hub
	Limiter      *middleware.RateLimiter
	EndpointPath string
	TokenHash    string
	Log          zerolog.Logger
}

// Routes builds the collector's handler tree.
func Routes(d Deps) http.Handler {
	pc := NewPCInfoHandler(d.DB, d.Bus, d.Log)
	base := d.EndpointPath

	submit := middleware.BearerToken(d.TokenHash, pc.Submit)
	if d.Limiter != nil {
		submit = d.Limiter.Limit(submit)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", Health(d.DB, d.Log))
	mux.HandleFunc("POST "+base, submit)
	mux.HandleFunc("GET "+base, middleware.BearerToken(d.TokenHash, pc.List))
	mux.HandleFunc("GET "+base+"/stream", middleware.BearerToken(d.TokenHash, d.Feed.HandleConnection))
	mux.HandleFunc("GET "+base+"/{uuid}", middleware.BearerToken(d.TokenHash, pc.Get))

	return middleware.Logging(d.Log, mux)
}
