package api

import (
	"errors"
	"net/http"
	"slices"

	"github.com/platinummonkey/beacon/pkg/dispatch"
	"github.com/platinummonkey/beacon/pkg/httputil"
	"github.com/platinummonkey/beacon/pkg/observability"
)

// identify handles POST /v1/identify
func (s *Server) identify(w http.ResponseWriter, r *http.Request) {
	var req IdentifyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.UserID, "user_id") {
		return
	}

	err := s.dispatcher.IdentifyUser(r.Context(), req.UserID, req.Traits, targetOptions(req.Clients)...)
	s.writeDispatchResult(w, r, err)
}

// page handles POST /v1/page
func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	var req PageRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	err := s.dispatcher.Page(r.Context(), req.Name, req.Properties, targetOptions(req.Clients)...)
	s.writeDispatchResult(w, r, err)
}

// event handles POST /v1/event
func (s *Server) event(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	err := s.dispatcher.SendEvent(r.Context(), req.Name, req.Properties, targetOptions(req.Clients)...)
	s.writeDispatchResult(w, r, err)
}

// trackError handles POST /v1/error
func (s *Server) trackError(w http.ResponseWriter, r *http.Request) {
	var req ErrorRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Message, "message") {
		return
	}
	level, err := dispatch.ParseLevel(req.Level)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	opts := append(targetOptions(req.Clients), dispatch.WithLevel(level))
	err = s.dispatcher.TrackError(r.Context(), req.Message, req.ErrorInfo, opts...)
	s.writeDispatchResult(w, r, err)
}

// listClients handles GET /v1/clients
func (s *Server) listClients(w http.ResponseWriter, r *http.Request) {
	resp := ClientsResponse{
		Analytics: s.dispatcher.RegisteredAnalyticsClients(),
		Error:     s.dispatcher.RegisteredErrorClients(),
	}
	if resp.Analytics == nil {
		resp.Analytics = []string{}
	}
	if resp.Error == nil {
		resp.Error = []string{}
	}
	httputil.WriteSuccess(w, resp)
}

// unregisterClient handles DELETE /v1/clients/{name}
func (s *Server) unregisterClient(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}
	if !slices.Contains(s.dispatcher.RegisteredAnalyticsClients(), name) &&
		!slices.Contains(s.dispatcher.RegisteredErrorClients(), name) {
		httputil.WriteNotFoundError(w, "client not registered: "+name)
		return
	}

	s.dispatcher.UnregisterClients(name)
	s.requestLogger(r).WithClient(name).Info("client unregistered")
	httputil.WriteNoContent(w)
}

// targetOptions maps a request's clients field to dispatch options.
func targetOptions(clients *[]string) []dispatch.DispatchOption {
	if clients == nil {
		return nil
	}
	return []dispatch.DispatchOption{dispatch.To(*clients...)}
}

func (s *Server) writeDispatchResult(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		httputil.WriteNoContent(w)
		return
	}
	s.writeDispatchError(w, r, err)
}

// writeDispatchError reports a client failure as 502 naming the first failing
// client. Anything else is a 500.
func (s *Server) writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	var clientErr *dispatch.ClientError
	if errors.As(err, &clientErr) {
		s.requestLogger(r).WithClient(clientErr.Client).WithError(err).Warn("delivery failed")
		httputil.WriteBadGateway(w, httputil.ErrorResponse{
			Error:     err.Error(),
			Client:    clientErr.Client,
			Operation: clientErr.Op,
		})
		return
	}
	s.requestLogger(r).WithError(err).Error("dispatch failed")
	httputil.WriteInternalError(w, err)
}

func (s *Server) requestLogger(r *http.Request) *observability.Logger {
	return observability.FromContext(r.Context(), s.logger)
}
