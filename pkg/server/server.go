// Package server is the read-only ops surface: health, metrics, load history
// and quote previews. Lifecycle mutations are not exposed here.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medcourier/pkg/errs"
	"medcourier/pkg/lifecycle"
	"medcourier/pkg/logger"
	"medcourier/pkg/metrics"
	"medcourier/pkg/models"
	"medcourier/service"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func NewRouter(svc service.IServiceManager, db pinger, log logger.ILogger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			log.Error("health check failed", logger.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.GET("/loads/:id", func(c *gin.Context) {
			load, err := svc.Load().GetByID(c.Request.Context(), c.Param("id"))
			if err != nil {
				fail(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"load": load, "allowed_actions": lifecycle.Allowed(load.Status)})
		})

		api.GET("/loads/:id/events", func(c *gin.Context) {
			events, err := svc.Load().Events(c.Request.Context(), c.Param("id"))
			if err != nil {
				fail(c, log, err)
				return
			}
			if events == nil {
				events = []*models.TrackingEvent{}
			}
			c.JSON(http.StatusOK, events)
		})

		api.GET("/transitions", func(c *gin.Context) {
			c.JSON(http.StatusOK, lifecycle.Transitions())
		})

		api.GET("/quote", func(c *gin.Context) {
			req, err := quoteRequest(c)
			if err != nil {
				fail(c, log, err)
				return
			}
			s, err := svc.Quote().Suggest(c.Request.Context(), req)
			if err != nil {
				fail(c, log, err)
				return
			}
			c.JSON(http.StatusOK, s)
		})
	}

	return r
}

func quoteRequest(c *gin.Context) (service.QuoteRequest, error) {
	req := service.QuoteRequest{
		PickupFacilityID:  c.Query("pickup"),
		DropoffFacilityID: c.Query("dropoff"),
		ServiceType:       c.DefaultQuery("service_type", "ROUTINE"),
		DriverID:          c.Query("driver_id"),
	}
	if v := c.Query("distance"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, errs.Validation(errs.CodeInvalidInput, "distance %q is not a number", v)
		}
		req.DistanceMiles = &d
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"ready_time", &req.ReadyTime}, {"delivery_deadline", &req.DeliveryDeadline}} {
		v := c.Query(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return req, errs.Validation(errs.CodeInvalidInput, "%s must be RFC 3339", p.name)
		}
		*p.dst = &t
	}
	return req, nil
}

func fail(c *gin.Context, log logger.ILogger, err error) {
	var v *errs.ValidationError
	switch {
	case errs.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errs.IsAuthorization(err):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &v):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "code": v.Code})
	default:
		log.Error("request failed", logger.String("path", c.FullPath()), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Run serves h on addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, addr string, h http.Handler, log logger.ILogger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info("ops server listening", logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
