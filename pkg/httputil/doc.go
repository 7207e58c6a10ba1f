// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// JSON decoding, error bodies, path and query parsing, and the middleware the
// ingestion API is wrapped in.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteBadRequest(w, "name is required")
//	httputil.WriteBadGateway(w, httputil.ErrorResponse{Error: msg, Client: "segment", Operation: "send_event"})
//	httputil.WriteNoContent(w)
//
// # Request Parsing
//
//	var req EventRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	clients, explicit := httputil.ParseQueryList(r, "clients")
//	delay, err := httputil.ParseQueryDuration(r, "delay", 200*time.Millisecond)
//
// # Middleware
//
//	router.Use(httputil.RequestIDMiddleware(logger), httputil.RecoveryMiddleware(logger))
//
// # Related Packages
//
//   - pkg/api: Uses these helpers in every handler
package httputil
