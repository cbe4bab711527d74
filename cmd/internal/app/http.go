package app

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	authapi "github.com/lsteen89/steenauth/cmd/internal/auth/api"
	"github.com/lsteen89/steenauth/cmd/internal/metrics"
	"github.com/lsteen89/steenauth/cmd/internal/realtime"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	dbPool *pgxpool.Pool,
	rdb *redis.Client,
	auth *authapi.Handler,
	ws *realtime.Gateway,
	m *metrics.Metrics,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := PingDB(r.Context(), dbPool, 2*time.Second); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			log.Info("readyz.db.not_ready", "err", err)
			return
		}

		if cfg.ReadinessRequireRedis && rdb == nil {
			http.Error(w, "redis not configured", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := PingRedis(r.Context(), rdb, 2*time.Second); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				log.Info("readyz.redis.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}

	auth.Register(mux)
	mux.HandleFunc("/realtime", ws.HandleWS)
}
