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

func (s *Server) createInstance(w http.ResponseWriter, r *http.Request) {
	hr := HTTPResponse{w}

	doc, err := decodeDocument(r)
	if err != nil {
		hr.JSONError(http.StatusBadRequest, err.Error())
		return
	}

	s.applyPublicIPPolicy(doc, observedIP(r))

	issues, err := schema.Validate(doc, schema.InstanceSchema, schema.ResolverFunc(s.sessionExists))
	if err != nil {
		s.internalError(hr, "Failed to validate instance", err)
		return
	}
	if len(issues) > 0 {
		metrics.ValidationFailures.WithLabelValues(types.ResourceInstances).Inc()
		hr.JSONIssues(issues)
		return
	}

	var instance types.Instance
	if err := types.FromDocument(doc, &instance); err != nil {
		hr.JSONError(http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.CreateInstance(&instance); err != nil {
		s.internalError(hr, "Failed to store instance", err)
		return
	}

	metrics.InstancesRegistered.Inc()
	logger := log.WithInstanceID(instance.ID)
	logger.Info().
		Str("session_id", instance.SessionID).
		Str("public_ip_addr", instance.PublicIPAddr).
		Int("networks", len(instance.Networks)).
		Msg("Instance registered")
	s.publish(events.EventInstanceRegistered, "instance registered", map[string]string{
		"session_id":     instance.SessionID,
		"instance_id":    instance.ID,
		"public_ip_addr": instance.PublicIPAddr,
	})

	hr.JSONCreated(&instance)
}

// applyPublicIPPolicy sets public_ip_addr from the observed caller address
// according to the configured policy
func (s *Server) applyPublicIPPolicy(doc map[string]any, observed string) {
	switch s.config.PublicIPPolicy {
	case PublicIPObserved:
		doc["public_ip_addr"] = observed
	default:
		if v, ok := doc["public_ip_addr"]; !ok || v == nil || v == "" {
			doc["public_ip_addr"] = observed
		}
	}
}

func (s *Server) getInstance(w http.ResponseWriter, r *http.Request) {
	hr := HTTPResponse{w}
	id := mux.Vars(r)["id"]

	instance, err := s.store.GetInstance(id)
	if errors.Is(err, storage.ErrNotFound) {
		hr.JSONError(http.StatusNotFound, "instance not found")
		return
	}
	if err != nil {
		s.internalError(hr, "Failed to get instance", err)
		return
	}
	hr.JSON(http.StatusOK, instance)
}

func (s *Server) listInstances(w http.ResponseWriter, r *http.Request) {
	hr := HTTPResponse{w}

	filter, err := parseWhere(r)
	if err != nil {
		hr.JSONError(http.StatusBadRequest, err.Error())
		return
	}

	var instances []*types.Instance
	if sessionID, ok := filter.sessionID(); ok {
		instances, err = s.store.ListInstancesBySession(sessionID)
	} else {
		instances, err = s.store.ListInstances()
	}
	if err != nil {
		s.internalError(hr, "Failed to list instances", err)
		return
	}

	items := make([]*types.Instance, 0, len(instances))
	for _, instance := range instances {
		ok, err := filter.matches(instance)
		if err != nil {
			s.internalError(hr, "Failed to filter instances", err)
			return
		}
		if ok {
			items = append(items, instance)
		}
	}
	hr.JSON(http.StatusOK, ListBody[*types.Instance]{Items: items})
}

func (s *Server) deleteInstance(w http.ResponseWriter, r *http.Request) {
	hr := HTTPResponse{w}
	id := mux.Vars(r)["id"]

	err := s.store.DeleteInstance(id)
	if errors.Is(err, storage.ErrNotFound) {
		hr.JSONError(http.StatusNotFound, "instance not found")
		return
	}
	if err != nil {
		s.internalError(hr, "Failed to delete instance", err)
		return
	}

	logger := log.WithInstanceID(id)
	logger.Info().Msg("Instance deleted")
	s.publish(events.EventInstanceDeleted, "instance deleted", map[string]string{
		"instance_id": id,
	})

	w.WriteHeader(http.StatusNoContent)
}
