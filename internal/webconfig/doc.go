// Package webconfig is a small filter and servlet registry modelled on the
// servlet container API.
//
// Components are registered by name on a [Context]:
//
//	ctx := webconfig.NewContext()
//	reg, _ := ctx.AddFilter("gzipFilter", middleware.NewCompressionFilter(cfg))
//	_ = reg.AddMappingForURLPatterns(webconfig.Dispatchers(webconfig.Request, webconfig.Forward), true, "*.js", "/app/rest/*")
//
//	srv, _ := ctx.AddServlet("metricsServlet", metricsServlet)
//	_ = srv.AddMapping("/metrics/metrics/*")
//	srv.SetLoadOnStartup(2)
//
// # Dispatch
//
// For every request the context collects the filters whose mappings list
// the current dispatcher type and match the path, keeping the first
// matching mapping's position, and runs them in front of the selected
// servlet. Servlet selection prefers an exact pattern, then the longest
// path prefix, then an extension pattern, then the default servlet.
//
// A filter may call [Forward] to re-enter the context on another path with
// the Forward dispatcher, for example to serve a pre-built asset tree.
//
// # Lifecycle
//
// [Context.Start] passes init parameters to filters implementing
// [Initializer] and initializes servlets with a non-negative load-on-startup
// order. Remaining servlets are initialized on first use. [Context.Close]
// releases components implementing [Destroyer].
package webconfig
