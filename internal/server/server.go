// Package server exposes the metadata and barcode resolvers over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"shelf-meta-srv/internal/barcode"
	"shelf-meta-srv/internal/catalog"
	"shelf-meta-srv/internal/models"
)

type MetadataService interface {
	Preview(ctx context.Context, name string, typ models.Type, code string) *models.Record
	ResolveAndStore(ctx context.Context, req catalog.ResolveRequest) (*models.Record, error)
	Stored(ctx context.Context, itemID string) (*models.Record, error)
	Forget(ctx context.Context, itemID string) (bool, error)
}

type BarcodeService interface {
	ResolveName(ctx context.Context, raw string) (*barcode.NameResult, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// New builds the echo instance with every route registered.
func New(metadata MetadataService, barcodes BarcodeService, db Pinger, logger *zap.Logger) *echo.Echo {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	h := &Handler{metadata: metadata, barcodes: barcodes, logger: logger}
	h.Register(e.Group("/api"))

	e.GET("/healthcheck", func(c echo.Context) error {
		if db != nil {
			if err := db.Ping(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
		}
		return c.String(http.StatusOK, "OK")
	})

	return e
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				logger.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	})
}
