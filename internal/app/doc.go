// Package app wires the report download service together and manages its
// lifecycle.
//
// # Initialization Flow
//
//  1. Load configuration from environment and file
//  2. Initialize logging and OpenTelemetry
//  3. Create the Drive client
//  4. Layer the byte cache and table cache over it
//  5. Build the aggregator and archive builder
//  6. Create services, handlers and the router
//  7. Create the HTTP server
//
// # Usage
//
//	app, err := app.NewApplication(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	return app.Run()
//
// Run serves until SIGINT or SIGTERM and then shuts down gracefully: active
// requests complete, telemetry is flushed and the log file is closed. Both
// caches live in memory only and are dropped on exit.
package app
