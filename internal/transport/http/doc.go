// Package http implements the HTTP handlers of the report download service.
// Handlers stay thin: they decode and validate the request, call a service
// and render the result.
//
// # Routes
//
//	GET  /api/folders                    sub-folders of the parent folder
//	GET  /api/folders/{folderID}/files   report files in one folder
//	POST /api/downloads                  zip archive of the selected files
//	GET  /api/cache/stats                byte and table cache statistics
//	GET  /api/health, /live, /ready      health probes
//	GET  /api/version                    build information
//	GET  /metrics                        Prometheus scrape endpoint
//
// # Downloads
//
// POST /api/downloads accepts JSON
//
//	{"folder_id": "...", "files": ["..."], "options": ["original", "compiled", "overview"]}
//
// or a form post with the fields folder, files and options, where files and
// options repeat. The archive is built completely before the response starts,
// so failures are still reported as problems. Overview categories that could
// not be aggregated are listed in the X-Overview-Failures header.
//
// # Error Handling
//
// All errors are rendered as RFC 7807 problem details through
// errors.ErrorHandler.
package http
