package handler

import (
	"net/http"
	"strconv"

	"github.com/dyaogo/pos-superette-sub002/internal/apierror"
	"github.com/dyaogo/pos-superette-sub002/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var replayableQueues = map[string]string{
	"reportes": worker.QueueReportes,
	"email":    worker.QueueEmail,
}

// ReplayDLQ godoc
// @Summary Reencola trabajos de reportes o email que agotaron sus reintentos
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param cola path string true "reportes | email"
// @Param limite query int false "maximo de trabajos (100)"
// @Success 200 {object} map[string]int
// @Failure 503 {object} apierror.APIError
// @Router /v1/admin/dlq/{cola}/replay [post]
func ReplayDLQ(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.JSON(http.StatusServiceUnavailable, apierror.New("Cola de trabajos deshabilitada"))
			return
		}
		queue, ok := replayableQueues[c.Param("cola")]
		if !ok {
			c.JSON(http.StatusNotFound, apierror.New("Cola desconocida"))
			return
		}
		limit := 100
		if v := c.Query("limite"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodeInvalidInput, "limite debe ser un entero positivo"))
				return
			}
			limit = n
		}

		moved, err := worker.ReplayDLQ(c.Request.Context(), rdb, queue, limit)
		if err != nil {
			log.Error().Err(err).Str("queue", queue).Int("replayed", moved).Msg("dlq replay failed")
			c.JSON(http.StatusServiceUnavailable, apierror.WithCode(apierror.CodeStorageUnavailable, "Servicio no disponible, intente nuevamente"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"reencolados": moved})
	}
}
