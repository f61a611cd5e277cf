// Package router assembles the gin engine of the ledger API.
package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar mounts a set of routes on a group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts registrars under /api/<version> with API-only middleware
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the version segment of the prefix, "v1" by default
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithAPIMiddleware adds middleware that only runs for /api routes
func WithAPIMiddleware(mw ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.middleware = append(r.middleware, mw...)
	}
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues a registrar for Setup
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// BasePath is the prefix every registrar is mounted under
func (r *Router) BasePath() string {
	return "/api/" + r.apiVersion
}

// Setup mounts every registered group on the engine
func (r *Router) Setup() {
	api := r.engine.Group(r.BasePath())
	api.Use(r.middleware...)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// RouteGroup is a prefix plus the routes served under it
type RouteGroup struct {
	prefix     string
	routes     []route
	middleware []gin.HandlerFunc
}

func NewRouteGroup(prefix string) *RouteGroup {
	return &RouteGroup{prefix: prefix}
}

// Use adds middleware to this group only
func (g *RouteGroup) Use(mw ...gin.HandlerFunc) *RouteGroup {
	g.middleware = append(g.middleware, mw...)
	return g
}

func (g *RouteGroup) GET(p string, handlers ...gin.HandlerFunc) *RouteGroup {
	return g.add(http.MethodGet, p, handlers)
}

func (g *RouteGroup) POST(p string, handlers ...gin.HandlerFunc) *RouteGroup {
	return g.add(http.MethodPost, p, handlers)
}

func (g *RouteGroup) PATCH(p string, handlers ...gin.HandlerFunc) *RouteGroup {
	return g.add(http.MethodPatch, p, handlers)
}

func (g *RouteGroup) add(method, p string, handlers []gin.HandlerFunc) *RouteGroup {
	g.routes = append(g.routes, route{method: method, path: p, handlers: handlers})
	return g
}

// Endpoints lists "METHOD path" for every route relative to base
func (g *RouteGroup) Endpoints(base string) []string {
	out := make([]string, 0, len(g.routes))
	for _, rt := range g.routes {
		out = append(out, rt.method+" "+path.Join(base, g.prefix, rt.path))
	}
	return out
}

// RegisterRoutes implements RouteRegistrar
func (g *RouteGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(g.prefix, g.middleware...)
	for _, rt := range g.routes {
		group.Handle(rt.method, rt.path, rt.handlers...)
	}
}
