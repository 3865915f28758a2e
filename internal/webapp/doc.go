// Package webapp configures the kairos web application inside a
// webconfig.Context.
//
// [Configurer.OnStartup] logs the active profiles and registers, in order:
//
//	characterEncodingFilter           /*                          always
//	webappMetricsFilter               /*                          always
//	metricsServlet                    /metrics/metrics/*          always, load-on-startup 2
//	cachingHttpHeadersFilter          /images/* /fonts/* ...      prod
//	staticResourcesProductionFilter   / /index.html /images/* ... prod
//	gzipFilter                        *.css *.json ... /metrics/* always
//	H2Console (database console)      /console/*                  dev, load-on-startup 1
//	serverTimingFilter                /*                          dev
//
// Filters are mapped for the REQUEST, FORWARD and ASYNC dispatchers after
// any previously registered mappings. The REST endpoints and the static
// file tree are mounted last.
package webapp
