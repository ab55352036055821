package metrics

import "time"

// StartReturn marks one return request entering the pipeline.
func (m *HTTPServerMetrics) StartReturn(service string, documentCount int) {
	m.returnsInFlight.Inc()
	m.documentsPerRequest.WithLabelValues(service).Observe(float64(documentCount))
}

// FinishReturn records the request-level outcome and duration.
func (m *HTTPServerMetrics) FinishReturn(service string, duration time.Duration, err error) {
	m.returnsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.returnsTotal.WithLabelValues(service, status).Inc()
	m.returnDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

// RecordDocument counts one document's terminal status within a request.
func (m *HTTPServerMetrics) RecordDocument(service, status, documentType string) {
	if documentType == "" {
		documentType = "unknown"
	}
	m.documentsTotal.WithLabelValues(service, status, documentType).Inc()
}
