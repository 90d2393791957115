package smt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// checksTotal counts solver checks by verdict. Failed invocations
// (missing binary, timeout, unparseable output) count as "error".
var checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "edcheck",
	Subsystem: "smt",
	Name:      "checks_total",
	Help:      "Solver satisfiability checks by verdict",
}, []string{"result"})

func recordCheck(res Result, err error) {
	if err != nil {
		checksTotal.WithLabelValues("error").Inc()
		return
	}
	checksTotal.WithLabelValues(res.String()).Inc()
}
