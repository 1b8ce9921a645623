package server

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/brandlens/lattice/internal/config"
	"github.com/brandlens/lattice/internal/core"
	"github.com/brandlens/lattice/internal/core/filter"
	"github.com/brandlens/lattice/internal/core/layout"
	"github.com/brandlens/lattice/internal/core/model"
	"github.com/brandlens/lattice/internal/core/store"
	"github.com/brandlens/lattice/internal/driver"
	"github.com/brandlens/lattice/internal/graphsync"
)

// Server owns one engine session per brand context and exposes the graph
// views and curation actions over JSON.
type Server struct {
	cfg  *config.Config
	sync *graphsync.Client
	log  *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[string]*core.Session
}

// NewServer wires config, the bolt driver, and the sync client the way the
// deployment expects: TOML config with env-var overrides.
func NewServer(log *zap.SugaredLogger) *Server {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Warnw("could not load config file, using defaults", "path", cfgPath, "error", err)
		cfg = config.Default()
	}

	if uri := os.Getenv("MEMGRAPH_URI"); uri != "" {
		cfg.Memgraph.URI = uri
	}
	if user := os.Getenv("MEMGRAPH_USER"); user != "" {
		cfg.Memgraph.User = user
	}
	if pass := os.Getenv("MEMGRAPH_PASSWORD"); pass != "" {
		cfg.Memgraph.Password = pass
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if cfg.Memgraph.URI == "" {
		cfg.Memgraph.URI = "bolt://localhost:7687"
	}

	d, err := driver.NewMemgraphDriver(cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password)
	if err != nil {
		log.Fatalw("failed to connect to graph backend", "uri", cfg.Memgraph.URI, "error", err)
	}

	return New(cfg, graphsync.NewClient(d, log), log)
}

// New builds a server around an existing sync client; tests use this with a
// mock driver.
func New(cfg *config.Config, syncClient *graphsync.Client, log *zap.SugaredLogger) *Server {
	return &Server{
		cfg:      cfg,
		sync:     syncClient,
		log:      log,
		sessions: make(map[string]*core.Session),
	}
}

func (s *Server) layoutConfig() layout.Config {
	lc := layout.DefaultConfig()
	if s.cfg.Layout.NodeWidth > 0 {
		lc.NodeWidth = s.cfg.Layout.NodeWidth
	}
	if s.cfg.Layout.NodeHeight > 0 {
		lc.NodeHeight = s.cfg.Layout.NodeHeight
	}
	if s.cfg.Layout.NodeSpacing > 0 {
		lc.NodeSpacing = s.cfg.Layout.NodeSpacing
	}
	if s.cfg.Layout.RankSpacing > 0 {
		lc.RankSpacing = s.cfg.Layout.RankSpacing
	}
	if s.cfg.Layout.ComponentGap > 0 {
		lc.ComponentGap = s.cfg.Layout.ComponentGap
	}
	if s.cfg.Layout.Direction == string(layout.DirectionLeftRight) {
		lc.Direction = layout.DirectionLeftRight
	}
	return lc
}

// session returns the engine session for a brand, creating it on first use.
func (s *Server) session(brandID string) *core.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[brandID]; ok {
		return sess
	}
	sess := core.NewSession(brandID, s.sync, s.layoutConfig(), s.cfg.Dedupe.AutoMergeThreshold, s.log)
	s.sessions[brandID] = sess
	return sess
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	if len(s.cfg.Server.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = s.cfg.Server.AllowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	brands := r.Group("/brands/:brand")
	{
		brands.GET("/graph", s.GetGraph)
		brands.POST("/refresh", s.RefreshGraph)
		brands.POST("/focus", s.ToggleFocus)
		brands.POST("/layout", s.SetLayout)
		brands.GET("/duplicates", s.GetDuplicates)
		brands.GET("/contradictions", s.GetContradictions)
		brands.GET("/clusters", s.GetClusters)
		brands.GET("/mutations", s.GetMutations)
		brands.POST("/mutations/:id/rollback", s.RollbackMutation)
		brands.POST("/merge", s.MergeNodes)
		brands.POST("/automerge", s.AutoMerge)
		brands.PATCH("/nodes/:id", s.EditNode)
		brands.DELETE("/nodes/:id", s.DeleteNode)
	}

	return r
}

// ensureLoaded loads the session's first snapshot; a viewing session always
// starts from fresh data. Once loaded, fetch failures keep serving the
// stale graph.
func (s *Server) ensureLoaded(c *gin.Context, sess *core.Session) bool {
	if sess.Loaded() {
		return true
	}
	if err := sess.Refresh(c.Request.Context()); err != nil {
		s.log.Errorw("initial snapshot fetch failed", "brand_id", sess.BrandID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch graph snapshot", "retryable": true})
		return false
	}
	return true
}

func (s *Server) GetGraph(c *gin.Context) {
	sess := s.session(c.Param("brand"))
	if !s.ensureLoaded(c, sess) {
		return
	}

	segment, ok := parseSegment(c.Query("segment"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "segment must be patient, hcp, other, or all"})
		return
	}

	opts := filter.Options{Segment: segment}
	for _, t := range splitParam(c.Query("node_types")) {
		opts.NodeTypes = append(opts.NodeTypes, model.NodeType(t))
	}
	for _, rel := range splitParam(c.Query("relation_types")) {
		opts.Relations = append(opts.Relations, model.RelationType(rel))
	}

	c.JSON(http.StatusOK, sess.View(opts))
}

func (s *Server) RefreshGraph(c *gin.Context) {
	sess := s.session(c.Param("brand"))
	if err := sess.Refresh(c.Request.Context()); err != nil {
		s.log.Errorw("refresh failed", "brand_id", sess.BrandID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch graph snapshot", "retryable": true, "stale_data_available": sess.Loaded()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "stats": sess.Stats()})
}

type focusRequest struct {
	NodeID string `json:"node_id" binding:"required"`
}

func (s *Server) ToggleFocus(c *gin.Context) {
	sess := s.session(c.Param("brand"))
	if !s.ensureLoaded(c, sess) {
		return
	}

	var req focusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "node_id is required"})
		return
	}

	focused, err := sess.ToggleFocus(req.NodeID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"focus_id": focused})
}

type layoutRequest struct {
	Direction string `json:"direction" binding:"required"`
}

func (s *Server) SetLayout(c *gin.Context) {
	sess := s.session(c.Param("brand"))

	var req layoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction is required"})
		return
	}

	switch layout.Direction(req.Direction) {
	case layout.DirectionTopDown, layout.DirectionLeftRight:
		sess.SetLayoutDirection(layout.Direction(req.Direction))
		c.JSON(http.StatusOK, gin.H{"direction": req.Direction})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be top_down or left_right"})
	}
}

func (s *Server) GetDuplicates(c *gin.Context) {
	sess := s.session(c.Param("brand"))
	if !s.ensureLoaded(c, sess) {
		return
	}

	threshold := s.cfg.Dedupe.DefaultThreshold
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be a number in [0,1]"})
			return
		}
		threshold = parsed
	}

	c.JSON(http.StatusOK, gin.H{"threshold": threshold, "candidates": sess.Duplicates(threshold)})
}

func (s *Server) GetContradictions(c *gin.Context) {
	sess := s.session(c.Param("brand"))
	if !s.ensureLoaded(c, sess) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"contradictions": sess.Contradictions()})
}

func (s *Server) GetClusters(c *gin.Context) {
	sess := s.session(c.Param("brand"))
	if !s.ensureLoaded(c, sess) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"clusters": sess.Clusters()})
}

func (s *Server) GetMutations(c *gin.Context) {
	sess := s.session(c.Param("brand"))
	c.JSON(http.StatusOK, gin.H{"mutations": sess.Mutations()})
}

func (s *Server) RollbackMutation(c *gin.Context) {
	sess := s.session(c.Param("brand"))
	if err := sess.Rollback(c.Param("id")); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rolled_back"})
}

type mergeRequest struct {
	PrimaryID    string   `json:"primary_id" binding:"required"`
	SecondaryIDs []string `json:"secondary_ids" binding:"required"`
}

func (s *Server) MergeNodes(c *gin.Context) {
	sess := s.session(c.Param("brand"))
	if !s.ensureLoaded(c, sess) {
		return
	}

	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "primary_id and secondary_ids are required"})
		return
	}

	m, err := sess.Merge(c.Request.Context(), req.PrimaryID, req.SecondaryIDs)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mutation": m, "stats": sess.Stats()})
}

type autoMergeRequest struct {
	Threshold float64 `json:"threshold"`
}

func (s *Server) AutoMerge(c *gin.Context) {
	sess := s.session(c.Param("brand"))
	if !s.ensureLoaded(c, sess) {
		return
	}

	var req autoMergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	m, err := sess.AutoMerge(c.Request.Context(), req.Threshold)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes_merged": m.Merged, "mutation": m, "stats": sess.Stats()})
}

type editNodeRequest struct {
	Text     *string `json:"text"`
	Segment  *string `json:"segment"`
	Verified *bool   `json:"verified"`
}

func (s *Server) EditNode(c *gin.Context) {
	sess := s.session(c.Param("brand"))
	if !s.ensureLoaded(c, sess) {
		return
	}

	var req editNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	patch := store.EditPatch{Text: req.Text, Segment: req.Segment, Verified: req.Verified}
	m, err := sess.Edit(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mutation": m})
}

func (s *Server) DeleteNode(c *gin.Context) {
	sess := s.session(c.Param("brand"))
	if !s.ensureLoaded(c, sess) {
		return
	}

	m, err := sess.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mutation": m, "stats": sess.Stats()})
}

func (s *Server) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrSelfMerge):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrNotLatestMutation):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.log.Errorw("request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseSegment(raw string) (filter.SegmentBucket, bool) {
	switch filter.SegmentBucket(raw) {
	case filter.SegmentAll, filter.SegmentPatient, filter.SegmentHCP, filter.SegmentOther:
		return filter.SegmentBucket(raw), true
	}
	if raw == "all" {
		return filter.SegmentAll, true
	}
	return filter.SegmentAll, false
}

func splitParam(raw string) []string {
	if raw == "" || raw == "all" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
