package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danmuck/gridctl/internal/auth"
	"github.com/danmuck/gridctl/internal/control"
	"github.com/danmuck/gridctl/internal/remote"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var ErrBadRequest = errors.New("server: bad request")

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": s.name,
			"version": Version,
		})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	if s.token != "" {
		v1.Use(auth.Middleware(auth.StaticToken{Token: s.token}))
	}
	v1.GET("/state", s.getState)
	v1.GET("/baseline", s.getBaseline)
	v1.PUT("/baseline", s.putBaseline)
	v1.POST("/baseline/add", s.addBaseline)
	v1.POST("/baseline/remove", s.removeBaseline)
	v1.POST("/baseline/auto-adjust", s.autoAdjust)
	v1.POST("/activate", s.activate)
	v1.POST("/deactivate", s.deactivate)
	v1.GET("/tx", s.listTx)
	v1.POST("/tx/kill", s.killTx)
	v1.GET("/tx/:xid", s.txInfo)
	v1.POST("/idle-verify", s.idleVerify)
	v1.POST("/idle-verify/dump", s.idleVerifyDump)
	v1.POST("/validate-indexes", s.validateIndexes)
	v1.POST("/snapshots/:name", s.createSnapshot)
}

type baselineRequest struct {
	Version *int64   `json:"version"`
	Nodes   []string `json:"nodes"`
	Via     string   `json:"via"`
}

type autoAdjustRequest struct {
	Enabled   bool   `json:"enabled"`
	TimeoutMs *int64 `json:"timeout_ms"`
}

type dumpRequest struct {
	Node string `json:"node"`
}

type txRequest struct {
	XID         string   `json:"xid" form:"xid"`
	Clients     bool     `json:"clients" form:"clients"`
	Servers     bool     `json:"servers" form:"servers"`
	MinDuration *int64   `json:"min_duration" form:"min_duration"`
	MinSize     *int64   `json:"min_size" form:"min_size"`
	Label       string   `json:"label" form:"label"`
	Nodes       []string `json:"nodes" form:"nodes"`
	Limit       *int     `json:"limit" form:"limit"`
	Order       string   `json:"order" form:"order"`
}

func (r txRequest) filter() (control.TxFilter, error) {
	f := control.TxFilter{
		XID:          r.XID,
		Clients:      r.Clients,
		Servers:      r.Servers,
		MinDuration:  r.MinDuration,
		MinSize:      r.MinSize,
		LabelPattern: r.Label,
		Nodes:        r.Nodes,
		Limit:        r.Limit,
	}
	switch order := control.TxOrder(r.Order); order {
	case "":
	case control.TxOrderDuration, control.TxOrderSize, control.TxOrderStartTime:
		f.Order = order
	default:
		return control.TxFilter{}, fmt.Errorf("%w: unknown order %q", ErrBadRequest, r.Order)
	}
	return f, nil
}

func (s *Server) getState(c *gin.Context) {
	cs, err := s.util.ClusterState(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

func (s *Server) getBaseline(c *gin.Context) {
	nodes, err := s.util.Baseline(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"baseline": nodes})
}

func (s *Server) putBaseline(c *gin.Context) {
	var req baselineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	var target control.BaselineTarget
	switch {
	case req.Version != nil && len(req.Nodes) > 0:
		respondError(c, fmt.Errorf("%w: version and nodes are exclusive", control.ErrInvalidBaseline))
		return
	case req.Version != nil:
		target = control.ByVersion(*req.Version)
	default:
		nodes, err := s.resolveNodes(req.Nodes)
		if err != nil {
			respondError(c, err)
			return
		}
		target = control.ByNodes(nodes...)
	}

	cs, err := s.util.SetBaseline(c.Request.Context(), target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

func (s *Server) addBaseline(c *gin.Context) {
	var req baselineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	nodes, err := s.resolveNodes(req.Nodes)
	if err != nil {
		respondError(c, err)
		return
	}
	cs, err := s.util.AddToBaseline(c.Request.Context(), nodes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

func (s *Server) removeBaseline(c *gin.Context) {
	var req baselineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	nodes, err := s.resolveNodes(req.Nodes)
	if err != nil {
		respondError(c, err)
		return
	}

	var cs control.ClusterState
	if req.Via != "" {
		via, ok := s.nodes.Node(req.Via)
		if !ok {
			respondError(c, fmt.Errorf("%w: unknown node %q", ErrBadRequest, req.Via))
			return
		}
		cs, err = s.util.RemoveFromBaselineVia(c.Request.Context(), via, nodes)
	} else {
		cs, err = s.util.RemoveFromBaseline(c.Request.Context(), nodes)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

func (s *Server) autoAdjust(c *gin.Context) {
	var req autoAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	var (
		out string
		err error
	)
	if req.Enabled {
		var timeout *time.Duration
		if req.TimeoutMs != nil {
			d := time.Duration(*req.TimeoutMs) * time.Millisecond
			timeout = &d
		}
		out, err = s.util.EnableBaselineAutoAdjust(c.Request.Context(), timeout)
	} else {
		out, err = s.util.DisableBaselineAutoAdjust(c.Request.Context())
	}
	respondOutput(c, out, err)
}

func (s *Server) activate(c *gin.Context) {
	out, err := s.util.Activate(c.Request.Context())
	respondOutput(c, out, err)
}

func (s *Server) deactivate(c *gin.Context) {
	out, err := s.util.Deactivate(c.Request.Context())
	respondOutput(c, out, err)
}

func (s *Server) listTx(c *gin.Context) {
	var req txRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	filter, err := req.filter()
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := s.util.Tx(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) killTx(c *gin.Context) {
	var req txRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	filter, err := req.filter()
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := s.util.TxKill(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) txInfo(c *gin.Context) {
	info, err := s.util.TxInfo(c.Request.Context(), c.Param("xid"))
	if err != nil {
		respondError(c, err)
		return
	}
	if info == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) idleVerify(c *gin.Context) {
	out, err := s.util.IdleVerify(c.Request.Context())
	respondOutput(c, out, err)
}

func (s *Server) idleVerifyDump(c *gin.Context) {
	var req dumpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	node, ok := s.nodes.Node(req.Node)
	if !ok {
		respondError(c, fmt.Errorf("%w: unknown node %q", ErrBadRequest, req.Node))
		return
	}
	path, err := s.util.IdleVerifyDump(c.Request.Context(), node)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"node": node.Name, "path": path})
}

func (s *Server) validateIndexes(c *gin.Context) {
	out, err := s.util.ValidateIndexes(c.Request.Context())
	respondOutput(c, out, err)
}

func (s *Server) createSnapshot(c *gin.Context) {
	out, err := s.util.SnapshotCreate(c.Request.Context(), c.Param("name"))
	respondOutput(c, out, err)
}

func (s *Server) resolveNodes(keys []string) ([]remote.Node, error) {
	nodes := make([]remote.Node, 0, len(keys))
	for _, key := range keys {
		n, ok := s.nodes.Node(key)
		if !ok {
			return nil, fmt.Errorf("%w: unknown node %q", ErrBadRequest, key)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func respondOutput(c *gin.Context, out string, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": out})
}

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var cmdErr *control.CommandError
	if errors.As(err, &cmdErr) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  err.Error(),
			"node":   cmdErr.Account,
			"code":   cmdErr.Code,
			"output": cmdErr.Output,
		})
		return
	}

	var outErr *control.OutputError
	if errors.As(err, &outErr) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "output": outErr.Output})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, control.ErrInvalidBaseline),
		errors.Is(err, control.ErrInvalidGlobals):
		status = http.StatusBadRequest
	case errors.Is(err, control.ErrNoAliveNodes):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
