package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	transformsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "augpipe_transforms_applied_total",
		Help: "Number of times each transform actually ran.",
	}, []string{"transform"})

	auxiliaryFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "augpipe_auxiliary_items_filtered_total",
		Help: "Boxes/keypoints dropped for falling outside image bounds.",
	}, []string{"kind"})
)

// TransformApplied counts one application of the named transform.
func TransformApplied(name string) {
	transformsApplied.WithLabelValues(name).Inc()
}

// AuxiliaryFiltered counts items a processor dropped during filtering.
func AuxiliaryFiltered(kind string, n int) {
	if n > 0 {
		auxiliaryFiltered.WithLabelValues(kind).Add(float64(n))
	}
}

// Expose serves /metrics on the given port.
func Expose(port int) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
	}()
}
