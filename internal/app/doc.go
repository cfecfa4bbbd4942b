// Package app wires the loan recovery server together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, config.yaml and LRS_ variables
//	2. Initialize logging and OpenTelemetry
//	3. Start the WebSocket hub and the pipeline manager
//	4. Attach the Kafka publisher when enabled
//	5. Build the services, handlers and middleware chain
//	6. Configure the HTTP server
//
// # Usage
//
//	app, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := app.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Run stops on SIGINT or SIGTERM. In-flight requests are drained before the
// hub, the manager, the publisher and the telemetry providers are closed.
package app
