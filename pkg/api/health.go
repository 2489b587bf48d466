package api

import (
	"net"
	"net/http"

	"github.com/glestaris/ice/pkg/metrics"
	"github.com/glestaris/ice/pkg/types"
)

// Link is a navigation entry of the root document
type Link struct {
	Href  string `json:"href"`
	Title string `json:"title"`
}

// RootBody is served on GET / and doubles as the ping target
type RootBody struct {
	Links struct {
		Child []Link `json:"child"`
	} `json:"_links"`
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	var body RootBody
	body.Links.Child = []Link{
		{Href: types.ResourceSessions, Title: types.ResourceSessions},
		{Href: types.ResourceInstances, Title: types.ResourceInstances},
	}
	HTTPResponse{w}.JSON(http.StatusOK, body)
}

// myIP answers with the caller address as seen by the server. When
// TrustForwardedFor is set, forwardedFor has already replaced RemoteAddr
// with the first X-Forwarded-For value.
func (s *Server) myIP(w http.ResponseWriter, r *http.Request) {
	HTTPResponse{w}.Text(http.StatusOK, observedIP(r))
}

// observedIP extracts the host part of the request's peer address
func observedIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// forwardedFor sets a bare address without a port
		return r.RemoteAddr
	}
	return host
}

// readyHandler probes storage before reporting readiness
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListSessions(); err != nil {
		metrics.UpdateComponent(metrics.ComponentStorage, false, err.Error())
	} else {
		metrics.UpdateComponent(metrics.ComponentStorage, true, "")
	}
	metrics.ReadyHandler()(w, r)
}
