package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
func (r *Registry) InitializeMetrics() {
	for _, code := range ResponseCodes {
		r.HTTPResponses.WithLabelValues(code)
	}

	for _, method := range Methods {
		r.HTTPRequestDuration.WithLabelValues(method)
	}
	r.HTTPRequestDuration.WithLabelValues(MethodOther)

	for _, file := range []string{"main", "wal", "shm"} {
		r.DBSizeBytes.WithLabelValues(file)
	}

	for _, op := range []string{"ping", "tables", "query", "exec"} {
		r.DBQueryTotal.WithLabelValues(op, "success")
		r.DBQueryTotal.WithLabelValues(op, "error")
		r.DBQueryDuration.WithLabelValues(op)
	}

	for _, kind := range []string{"query", "exec"} {
		r.ConsoleQueryTotal.WithLabelValues(kind, "success")
		r.ConsoleQueryTotal.WithLabelValues(kind, "error")
	}
}
