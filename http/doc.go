// Package http provides the REST API for blobkeep.
//
// Routes:
//
//	GET    /              service name, version and endpoints
//	GET    /health        liveness check
//	GET    /ready         readiness check (pings the metadata index)
//	GET    /blobs         JSON array of every stored key
//	PUT    /blobs/{key}   store a blob; 201 when created, 200 when replaced
//	GET    /blobs/{key}   blob bytes, with Range and conditional request support
//	HEAD   /blobs/{key}   blob headers only
//	DELETE /blobs/{key}   remove a blob; 204 on success
//
// PUT, GET and HEAD report the blob's version in the X-Blob-Version header
// once the metadata index knows the key.
//
// Errors are JSON bodies of the form {"error": "not_found", "message": "..."}.
// HandleError is the single place where service errors become status codes.
//
// # Usage
//
//	handler := http.NewHandler(&http.HandlerConfig{
//	    MaxUploadSize: 64 << 20,
//	    Version:       "1.0.0",
//	    Ready:         db,
//	}, service)
//	server := &http.Server{Addr: ":8000", Handler: handler.Router()}
//
// # Middleware
//
// Every request passes through chi's RequestID and RealIP, RequestLogger and
// Recoverer. CORS, RateLimit and gzip compression are enabled from
// HandlerConfig. LimitBody guards PUT bodies.
package http
