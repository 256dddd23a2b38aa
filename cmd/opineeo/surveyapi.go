package main

import (
	"context"

	"opineeo/survey-widget/internal/config"
	"opineeo/survey-widget/internal/surveyapi"

	databaseutil "github.com/NYCU-SDC/summer/pkg/database"
	"github.com/NYCU-SDC/summer/pkg/problem"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// surveyAPI is the wired reference survey api together with the resources it
// owns.
type surveyAPI struct {
	handler *surveyapi.Handler
	auth    *surveyapi.Middleware
	closers []func()
}

func newSurveyAPI(ctx context.Context, cfg config.Config, logger *zap.Logger, v *validator.Validate, problemWriter *problem.HttpWriter) (*surveyAPI, error) {
	api := &surveyAPI{}

	catalog, err := surveyapi.LoadCatalog(logger, v, cfg.SurveyDir)
	if err != nil {
		return nil, err
	}

	var store surveyapi.Store
	if cfg.DatabaseURL != "" {
		logger.Info("Starting database migration...")

		err = databaseutil.MigrationUp(cfg.MigrationSource, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}

		dbPool, err := initDatabasePool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		api.closers = append(api.closers, dbPool.Close)
		store = surveyapi.NewPostgresStore(logger, dbPool)
	} else {
		logger.Warn("No database configured, submissions are kept in memory and lost on restart")
		store = surveyapi.NewMemoryStore()
	}

	var notifier surveyapi.Notifier = surveyapi.NopNotifier{}
	if cfg.NATSURL != "" {
		conn, err := surveyapi.ConnectNATS(logger, cfg.NATSURL, shutdownTimeout)
		if err != nil {
			api.Close()
			return nil, err
		}
		api.closers = append(api.closers, func() {
			err := conn.Drain()
			if err != nil {
				logger.Warn("Failed to drain NATS connection", zap.Error(err))
			}
		})
		notifier = surveyapi.NewNATSNotifier(logger, conn)
	}

	tokens := surveyapi.NewTokenIssuer(logger, cfg.Secret, cfg.ResponseTokenTTL, nil)
	service := surveyapi.NewService(logger, catalog, tokens, store, notifier, nil)

	api.handler = surveyapi.NewHandler(logger, v, problemWriter, service)
	api.auth = surveyapi.NewMiddleware(logger, cfg.APITokens)
	return api, nil
}

// Close releases resources in reverse order of acquisition.
func (a *surveyAPI) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
