package e2e

import (
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vmarkelov/pointwallet/internal/handlers"
	"github.com/vmarkelov/pointwallet/internal/logger"
	"github.com/vmarkelov/pointwallet/internal/repository/postgres"
	"github.com/vmarkelov/pointwallet/internal/service/point"
	"github.com/vmarkelov/pointwallet/internal/testutil"
)

type Services struct {
	PointService *point.Service
}

// Create db transaction and run server with that connection (one connection cause one transaction)
// The created transaction passed to inner function: so, you can safely use testutil.InTx with it
func ServeInTx(dbpool *pgxpool.Pool, t *testing.T, fn func(tx pgx.Tx, srvURL string, services Services)) {
	testutil.InTx(dbpool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)
		pointService := point.NewService(storage)

		l := logger.NewNoOpLogger()
		walletHandler := handlers.NewWallet(pointService, l)
		router := handlers.NewRouter(walletHandler, l)

		// Run http server with the router in transaction
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(tx, srv.URL, Services{
			PointService: pointService,
		})
	})
}
