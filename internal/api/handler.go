package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mr1hm/go-rupture-hazard/internal/geo"
	"github.com/mr1hm/go-rupture-hazard/internal/metrics"
	"github.com/mr1hm/go-rupture-hazard/internal/models"
	"github.com/mr1hm/go-rupture-hazard/internal/repository"
	"github.com/mr1hm/go-rupture-hazard/internal/rupture"
	"github.com/mr1hm/go-rupture-hazard/internal/stream"
	"github.com/mr1hm/go-rupture-hazard/internal/tectonic"
	"github.com/mr1hm/go-rupture-hazard/internal/tom"
)

const maxSamples = 10000

type Handler struct {
	repo        repository.EventRepository
	broadcaster *stream.Broadcaster
	metrics     *metrics.Metrics
	timeSpan    float64 // default TOM time span in years
}

func NewHandler(repo repository.EventRepository, broadcaster *stream.Broadcaster, m *metrics.Metrics, timeSpan float64) *Handler {
	return &Handler{
		repo:        repo,
		broadcaster: broadcaster,
		metrics:     m,
		timeSpan:    timeSpan,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/api/tectonic-region-types", h.getRegionTypes)
	r.GET("/api/ruptures", h.getRuptures)
	r.GET("/api/ruptures/:id", h.getRupture)
	r.GET("/api/ruptures/:id/occurrences", h.sampleOccurrences)
	r.POST("/api/ruptures", h.createRupture)
	r.POST("/api/probability", h.probability)
	if h.broadcaster != nil {
		r.GET("/api/stream", h.streamRuptures)
	}
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getRegionTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tectonic_region_types": tectonic.RegionTypes()})
}

func (h *Handler) getRuptures(c *gin.Context) {
	filter := repository.Filter{
		Limit: 20, // Default to 20 ruptures if limit param not supplied
	}

	if t := c.Query("trt"); t != "" {
		trt, err := tectonic.ParseRegionType(t)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown tectonic region type '%s'", t)})
			return
		}
		filter.TectonicRegionType = &trt
	}
	if m := c.Query("min_magnitude"); m != "" {
		if mag, err := strconv.ParseFloat(m, 64); err == nil {
			filter.MinMagnitude = &mag
		}
	}
	if s := c.Query("since"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filter.Since = &t
		}
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			filter.Limit = lim
		}
	}
	if p := c.Query("probabilistic"); p != "" {
		filter.ProbabilisticOnly, _ = strconv.ParseBool(p)
	}

	events, err := h.repo.ListEvents(c.Request.Context(), filter)
	if err != nil {
		slog.Error("error listing ruptures", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch ruptures",
		})
		return
	}

	fc := toGeoJSON(events)
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) lookup(c *gin.Context) *models.Event {
	id := c.Param("id")
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		slog.Error("error fetching rupture", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch rupture"})
		return nil
	}
	if e == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rupture not found: " + id})
		return nil
	}
	return e
}

func (h *Handler) getRupture(c *gin.Context) {
	e := h.lookup(c)
	if e == nil {
		return
	}
	if e.IsProbabilistic() && h.metrics != nil {
		h.metrics.ProbabilityComputed()
	}
	c.JSON(http.StatusOK, toFeature(e))
}

type surfaceRequest struct {
	Type        string      `json:"type"` // "point" (default) or "planar"
	MeshSpacing float64     `json:"mesh_spacing"`
	Strike      float64     `json:"strike"`
	Dip         float64     `json:"dip"`
	Corners     []geo.Point `json:"corners"` // top-left, top-right, bottom-right, bottom-left
}

type createRuptureRequest struct {
	Title              string          `json:"title"`
	Magnitude          float64         `json:"magnitude"`
	Rake               float64         `json:"rake"`
	TectonicRegionType string          `json:"tectonic_region_type"`
	Hypocenter         *geo.Point      `json:"hypocenter"`
	Surface            *surfaceRequest `json:"surface"`
	OccurrenceRate     *float64        `json:"occurrence_rate"`
	TimeSpan           *float64        `json:"time_span"`
}

func (h *Handler) createRupture(c *gin.Context) {
	var req createRuptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	e, err := h.buildEvent(req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.repo.Add(c.Request.Context(), e); err != nil {
		slog.Error("error adding rupture", "id", e.ID, "error", err)
		if h.metrics != nil {
			h.metrics.EventRejected(e.Source, err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store rupture"})
		return
	}
	if h.metrics != nil {
		h.metrics.EventStored(e.Source)
	}
	if h.broadcaster != nil {
		h.broadcaster.Broadcast(e)
	}

	slog.Info("added event", "id", e.ID, "source", e.Source, "probabilistic", e.IsProbabilistic())
	c.JSON(http.StatusCreated, toFeature(e))
}

func (h *Handler) buildEvent(req createRuptureRequest) (*models.Event, error) {
	// Unknown labels go through unchanged so the rupture reports them verbatim.
	trt := tectonic.RegionType(req.TectonicRegionType)
	if parsed, err := tectonic.ParseRegionType(req.TectonicRegionType); err == nil {
		trt = parsed
	}

	surface, err := buildSurface(req.Surface, req.Hypocenter)
	if err != nil {
		return nil, err
	}

	e := &models.Event{
		ID:        models.SourceAPI + "_" + uuid.NewString(),
		Source:    models.SourceAPI,
		Title:     req.Title,
		CreatedAt: time.Now().UTC(),
	}

	r, err := rupture.New(req.Magnitude, req.Rake, trt, req.Hypocenter, surface)
	if err != nil {
		return nil, err
	}
	if req.OccurrenceRate == nil {
		e.Deterministic = r
		return e, nil
	}

	// A non-positive rate is reported by the rupture before the time span.
	var model tom.TemporalOccurrenceModel
	if *req.OccurrenceRate > 0 {
		p, err := tom.NewPoisson(h.resolveTimeSpan(req.TimeSpan))
		if err != nil {
			return nil, err
		}
		model = p
	}
	pr, err := rupture.NewProbabilistic(req.Magnitude, req.Rake, trt, req.Hypocenter, surface, *req.OccurrenceRate, model)
	if err != nil {
		return nil, err
	}
	e.Probabilistic = pr
	return e, nil
}

// buildSurface returns a nil surface, not an error, when there is nothing
// to build from, leaving the report to rupture validation.
func buildSurface(req *surfaceRequest, hypocenter *geo.Point) (geo.Surface, error) {
	if req == nil || req.Type == "" || strings.EqualFold(req.Type, "point") {
		if hypocenter == nil {
			return nil, nil
		}
		return geo.NewPointSurface(*hypocenter), nil
	}
	if !strings.EqualFold(req.Type, "planar") {
		return nil, fmt.Errorf("%w: unknown surface type %q", geo.ErrInvalidGeometry, req.Type)
	}
	if len(req.Corners) != 4 {
		return nil, fmt.Errorf("%w: planar surface needs 4 corners, got %d", geo.ErrInvalidGeometry, len(req.Corners))
	}
	c := req.Corners
	s, err := geo.NewPlanarSurface(req.MeshSpacing, req.Strike, req.Dip, c[0], c[1], c[2], c[3])
	if err != nil {
		return nil, err
	}
	return s, nil
}

type probabilityRequest struct {
	OccurrenceRate float64  `json:"occurrence_rate"`
	TimeSpan       *float64 `json:"time_span"`
}

func (h *Handler) probability(c *gin.Context) {
	var req probabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if !(req.OccurrenceRate > 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "occurrence rate must be positive"})
		return
	}

	model, err := tom.NewPoisson(h.resolveTimeSpan(req.TimeSpan))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.ProbabilityComputed()
	}
	c.JSON(http.StatusOK, gin.H{
		"model":           "poisson",
		"occurrence_rate": req.OccurrenceRate,
		"time_span":       model.TimeSpan(),
		"probability":     model.Probability(req.OccurrenceRate, model.TimeSpan()),
	})
}

func (h *Handler) sampleOccurrences(c *gin.Context) {
	samples := 1
	if s := c.Query("samples"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxSamples {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("samples must be between 1 and %d", maxSamples)})
			return
		}
		samples = n
	}
	seed := uint64(time.Now().UnixNano())
	if s := c.Query("seed"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "seed must be an unsigned integer"})
			return
		}
		seed = n
	}

	e := h.lookup(c)
	if e == nil {
		return
	}
	if !e.IsProbabilistic() {
		c.JSON(http.StatusConflict, gin.H{"error": "rupture is not probabilistic"})
		return
	}

	src := rand.NewPCG(seed, seed)
	counts := make([]int, samples)
	for i := range counts {
		n, err := e.Probabilistic.SampleNumberOfOccurrences(src)
		if err != nil {
			h.writeError(c, err)
			return
		}
		counts[i] = n
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          e.ID,
		"time_span":   e.Probabilistic.TemporalOccurrenceModel().TimeSpan(),
		"seed":        seed,
		"occurrences": counts,
	})
}

func (h *Handler) streamRuptures(c *gin.Context) {
	id, ch := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(id)

	slog.Info("client subscribed to rupture stream", "subscriber_id", id)

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			slog.Info("client disconnected from rupture stream", "subscriber_id", id)
			return false
		case e, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("rupture", toFeature(e))
			return true
		}
	})
}

func (h *Handler) resolveTimeSpan(span *float64) float64 {
	if span != nil {
		return *span
	}
	return h.timeSpan
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, rupture.ErrInvalidArgument),
		errors.Is(err, tom.ErrInvalidTimeSpan),
		errors.Is(err, tom.ErrTooManyOccurrences),
		errors.Is(err, geo.ErrInvalidGeometry):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, rupture.ErrSamplingUnsupported):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
