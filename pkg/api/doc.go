// Package api provides the HTTP API in front of the event dispatcher.
//
// # Endpoints
//
//	POST   /v1/identify        {"user_id","traits","clients"}
//	POST   /v1/page            {"name","properties","clients"}
//	POST   /v1/event           {"name","properties","clients"}
//	POST   /v1/error           {"message","error_info","level","clients"}
//	GET    /v1/clients         registered client names by kind
//	DELETE /v1/clients/{name}  unregister one client
//	GET    /v1/links/{event}?to=&clients=&delay=
//
// A missing "clients" field delivers to every registered client; an empty
// list delivers to none. Successful deliveries answer 204. A failing client
// answers 502 with the client and operation in the body.
//
// /v1/links sends the event and answers 302 to the destination once the
// redirect delay has passed.
//
// # Usage Example
//
//	d, _ := dispatch.New()
//	server := api.NewServer(d, api.Options{Logger: logger, Metrics: metrics})
//	http.ListenAndServe(":8080", server.Handler())
package api
