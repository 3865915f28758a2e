// Package middleware provides the HTTP filters registered with the web
// context and the outer middleware wrapped around it.
//
// Filters:
//   - Character encoding of request and response content types
//   - Response compression (gzip)
//   - Far-future caching headers for static resources
//   - Forwarding to the optimized production build
//   - Request metrics by response code
//   - Server-Timing headers
//
// Outer middleware:
//   - Request logging in W3C Extended Log Format
//   - Panic recovery
package middleware
