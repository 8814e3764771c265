// Package server provides embeddable HTTP handlers for managing
// observers, services, and the recorded changelog.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/observr/internal/changelog"
	"github.com/loykin/observr/internal/manager"
	"github.com/loykin/observr/internal/metrics"
	"github.com/loykin/observr/internal/service"
)

// Router provides embeddable HTTP handlers. Endpoints under basePath:
//
//	GET    /observers          list observer statuses
//	POST   /observers          body: {"path": "...", "name": "..."}
//	GET    /observers/status   query: name=...
//	POST   /observers/start    query: name=...&duration=30s (duration optional)
//	POST   /observers/stop     query: name=...
//	DELETE /observers          query: name=...
//	GET    /services           list defined services
//	POST   /services           body: {"path": "...", "name": "...", "run_on_startup": false}
//	POST   /services/discover  register services found on disk
//	POST   /services/launch    query: name=...&output=... (output optional)
//	POST   /services/stop      query: name=...
//	POST   /services/signal    query: name=...&signal=term
//	GET    /services/pid       query: name=...
//	GET    /services/resources optional query: name=... (with SetResources)
//	DELETE /services           query: name=...
//	GET    /changes            optional query: type=... | observer=... | search=...
//	GET    /metrics            prometheus exposition
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	observers *manager.Manager
	services  *service.Manager
	changes   *changelog.Log
	resources *metrics.ResourceCollector
	basePath  string
}

// NewRouter constructs a Router with a configurable basePath.
// Example basePath: "/observr" results in /observr/observers etc.
func NewRouter(observers *manager.Manager, services *service.Manager, changes *changelog.Log, basePath string) *Router {
	return &Router{
		observers: observers,
		services:  services,
		changes:   changes,
		basePath:  sanitizeBase(basePath),
	}
}

// SetResources exposes resource samples from c on /services/resources.
// Must be called before Handler.
func (r *Router) SetResources(c *metrics.ResourceCollector) {
	r.resources = c
}

// Handler returns an http.Handler powered by gin that can be mounted in
// any server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/observers", r.handleObserverList)
	group.POST("/observers", r.handleObserverCreate)
	group.GET("/observers/status", r.handleObserverStatus)
	group.POST("/observers/start", r.handleObserverStart)
	group.POST("/observers/stop", r.handleObserverStop)
	group.DELETE("/observers", r.handleObserverDelete)
	group.GET("/services", r.handleServiceList)
	group.POST("/services", r.handleServiceDefine)
	group.POST("/services/discover", r.handleServiceDiscover)
	group.POST("/services/launch", r.handleServiceLaunch)
	group.POST("/services/stop", r.handleServiceStop)
	group.POST("/services/signal", r.handleServiceSignal)
	group.GET("/services/pid", r.handleServicePID)
	group.DELETE("/services", r.handleServiceRemove)
	if r.resources != nil {
		group.GET("/services/resources", r.handleServiceResources)
	}
	group.GET("/changes", r.handleChanges)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using router r.
// Call Close or Shutdown on the returned server to stop it.
func NewServer(addr string, r *Router) (*http.Server, error) {
	if addr == "" {
		return nil, fmt.Errorf("listen address required")
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type createObserverReq struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

func (r *Router) handleObserverList(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.observers.StatusAll())
}

func (r *Router) handleObserverCreate(c *gin.Context) {
	var req createObserverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Path == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "path required"})
		return
	}
	if !isSafeAbsPath(req.Path) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid path: must be absolute path without traversal"})
		return
	}
	if req.Name != "" && !isSafeName(req.Name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid name: allowed [A-Za-z0-9._-] and no '..' or path separators"})
		return
	}
	o, err := r.observers.Create(req.Path, req.Name)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	st, err := r.observers.Status(o.Name())
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleObserverStatus(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "name query param required"})
		return
	}
	st, err := r.observers.Status(name)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, st)
}

// handleObserverStart begins watching without blocking the request. When
// a duration is given the observer is stopped again after it elapses.
func (r *Router) handleObserverStart(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "name query param required"})
		return
	}
	var duration time.Duration
	if ds := c.Query("duration"); ds != "" {
		d, err := time.ParseDuration(ds)
		if err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid duration: " + err.Error()})
			return
		}
		duration = d
	}
	o, err := r.observers.Get(name)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	if err := o.Start(); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	if duration > 0 {
		time.AfterFunc(duration, func() { _ = o.Stop() })
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleObserverStop(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "name query param required"})
		return
	}
	if err := r.observers.Stop(name); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleObserverDelete(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "name query param required"})
		return
	}
	if err := r.observers.Remove(name); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

type defineServiceReq struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	RunOnStartup bool   `json:"run_on_startup"`
}

func (r *Router) handleServiceList(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.services.All())
}

func (r *Router) handleServiceDefine(c *gin.Context) {
	var req defineServiceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Path == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "path required"})
		return
	}
	if !isSafeAbsPath(req.Path) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid path: must be absolute path without traversal"})
		return
	}
	if req.Name != "" && !isSafeName(req.Name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid name: allowed [A-Za-z0-9._-] and no '..' or path separators"})
		return
	}
	svc, err := r.services.Define(req.Path, req.Name, req.RunOnStartup)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, svc)
}

func (r *Router) handleServiceDiscover(c *gin.Context) {
	found, err := r.services.Discover()
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, found)
}

func (r *Router) handleServiceLaunch(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "name query param required"})
		return
	}
	if err := r.services.Launch(name, c.Query("output")); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleServiceStop(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "name query param required"})
		return
	}
	if err := r.services.Stop(name); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleServiceSignal(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "name query param required"})
		return
	}
	sig, err := service.ParseSignal(c.Query("signal"))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	if err := r.services.Signal(name, sig); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

type pidResp struct {
	Name string `json:"name"`
	PID  int32  `json:"pid"`
}

func (r *Router) handleServicePID(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "name query param required"})
		return
	}
	pid, err := r.services.PID(name)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, pidResp{Name: name, PID: pid})
}

// handleServiceResources serves the collector's latest samples. Without a
// name it returns every tracked service.
func (r *Router) handleServiceResources(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusOK, r.resources.LatestAll())
		return
	}
	s, ok := r.resources.Latest(name)
	if !ok {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "no samples for service " + name})
		return
	}
	writeJSON(c, http.StatusOK, s)
}

func (r *Router) handleServiceRemove(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "name query param required"})
		return
	}
	if err := r.services.Remove(name); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

// handleChanges serves the recorded changelog. With no selector the whole
// document is returned; type, observer, and search narrow it down and are
// mutually exclusive.
func (r *Router) handleChanges(c *gin.Context) {
	eventType := c.Query("type")
	observer := c.Query("observer")
	search := c.Query("search")

	selCount := 0
	if eventType != "" {
		selCount++
	}
	if observer != "" {
		selCount++
	}
	if search != "" {
		selCount++
	}
	if selCount > 1 {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "only one of type, observer, search must be provided"})
		return
	}

	data := r.changes.Snapshot()
	switch {
	case eventType != "":
		if !validEventType(eventType) {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "unknown event type: " + eventType})
			return
		}
		writeJSON(c, http.StatusOK, data.Paths(eventType))
	case observer != "":
		writeJSON(c, http.StatusOK, data.ForObserver(observer))
	case search != "":
		writeJSON(c, http.StatusOK, data.Search(search))
	default:
		writeJSON(c, http.StatusOK, data)
	}
}

func validEventType(s string) bool {
	for _, t := range changelog.EventTypes {
		if s == t {
			return true
		}
	}
	return false
}
