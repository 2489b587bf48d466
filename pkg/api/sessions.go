package api

import (
	"errors"
	"net/http"

	"github.com/glestaris/ice/pkg/events"
	"github.com/glestaris/ice/pkg/log"
	"github.com/glestaris/ice/pkg/metrics"
	"github.com/glestaris/ice/pkg/schema"
	"github.com/glestaris/ice/pkg/storage"
	"github.com/glestaris/ice/pkg/types"
	"github.com/gorilla/mux"
)

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	hr := HTTPResponse{w}

	doc, err := decodeDocument(r)
	if err != nil {
		hr.JSONError(http.StatusBadRequest, err.Error())
		return
	}

	issues, err := schema.Validate(doc, schema.SessionSchema, nil)
	if err != nil {
		s.internalError(hr, "Failed to validate session", err)
		return
	}
	if len(issues) > 0 {
		metrics.ValidationFailures.WithLabelValues(types.ResourceSessions).Inc()
		hr.JSONIssues(issues)
		return
	}

	var session types.Session
	if err := types.FromDocument(doc, &session); err != nil {
		hr.JSONError(http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.CreateSession(&session); err != nil {
		s.internalError(hr, "Failed to store session", err)
		return
	}

	logger := log.WithSessionID(session.ID)
	logger.Info().
		Str("client_ip_addr", session.ClientIPAddr).
		Msg("Session created")
	s.publish(events.EventSessionCreated, "session created", map[string]string{
		"session_id": session.ID,
	})

	hr.JSONCreated(&session)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	hr := HTTPResponse{w}
	id := mux.Vars(r)["id"]

	session, err := s.store.GetSession(id)
	if errors.Is(err, storage.ErrNotFound) {
		hr.JSONError(http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.internalError(hr, "Failed to get session", err)
		return
	}
	hr.JSON(http.StatusOK, session)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	hr := HTTPResponse{w}

	filter, err := parseWhere(r)
	if err != nil {
		hr.JSONError(http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := s.store.ListSessions()
	if err != nil {
		s.internalError(hr, "Failed to list sessions", err)
		return
	}

	items := make([]*types.Session, 0, len(sessions))
	for _, session := range sessions {
		ok, err := filter.matches(session)
		if err != nil {
			s.internalError(hr, "Failed to filter sessions", err)
			return
		}
		if ok {
			items = append(items, session)
		}
	}
	hr.JSON(http.StatusOK, ListBody[*types.Session]{Items: items})
}

// deleteSession removes every instance of the session, then the session.
// Instance failures are logged and counted but never abort the cascade.
// The cascade runs even when the session document is already gone so that
// orphans left by racing registrations get swept.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	hr := HTTPResponse{w}
	id := mux.Vars(r)["id"]
	logger := log.WithSessionID(id)

	instances, err := s.store.ListInstancesBySession(id)
	if err != nil {
		s.internalError(hr, "Failed to list session instances", err)
		return
	}

	removed := 0
	for _, instance := range instances {
		err := s.store.DeleteInstance(instance.ID)
		if err == nil || errors.Is(err, storage.ErrNotFound) {
			removed++
			continue
		}
		metrics.CascadeFailures.Inc()
		logger.Error().Err(err).Str("instance_id", instance.ID).Msg("Failed to delete instance during session cascade")
		s.publish(events.EventCascadeFailed, err.Error(), map[string]string{
			"session_id":  id,
			"instance_id": instance.ID,
		})
	}

	err = s.store.DeleteSession(id)
	if errors.Is(err, storage.ErrNotFound) {
		hr.JSONError(http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.internalError(hr, "Failed to delete session", err)
		return
	}

	logger.Info().
		Int("instances", len(instances)).
		Int("removed", removed).
		Msg("Session deleted")
	s.publish(events.EventSessionDeleted, "session deleted", map[string]string{
		"session_id": id,
	})

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) internalError(hr HTTPResponse, msg string, err error) {
	s.logger.Error().Err(err).Msg(msg)
	hr.JSONError(http.StatusInternalServerError, msg)
}
