// Package api provides the HTTP API of the scene engine.
//
// It lets operators and other services list the registered scenes, request
// a scene execution and read the recorded execution history:
//
//	GET  /api/v1/health
//	GET  /api/v1/scenes
//	GET  /api/v1/scenes/{selector}
//	POST /api/v1/scenes/{selector}/execute
//	GET  /api/v1/scenes/{selector}/executions?limit=N
//
// Execution requests are asynchronous: the handler queues a new root
// execution and answers 202 Accepted with the root scope ID. Records of
// the execution and any scene it chains appear under /executions once the
// queue has run them.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
