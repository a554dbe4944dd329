package healthcheck_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tactix/pkg/healthcheck"
)

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandler(t *testing.T) {
	Convey("Given a bare handler", t, func() {
		h := healthcheck.Handler()

		Convey("Then health is ok and metrics are not served", func() {
			So(get(h, "/health").Code, ShouldEqual, http.StatusOK)
			So(get(h, "/health").Body.String(), ShouldEqual, "ok")
			So(get(h, "/metrics").Body.String(), ShouldEqual, "ok")
		})
	})

	Convey("Given a failing check and a metrics handler", t, func() {
		healthy := errors.New("discord disconnected")
		metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("tactix_up 1"))
		})
		h := healthcheck.Handler(
			healthcheck.WithCheck(func() error { return healthy }),
			healthcheck.WithMetrics(metrics),
		)

		Convey("Then health reports unavailable until the check passes", func() {
			So(get(h, "/health").Code, ShouldEqual, http.StatusServiceUnavailable)
			healthy = nil
			So(get(h, "/health").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then metrics are exposed", func() {
			So(get(h, "/metrics").Body.String(), ShouldEqual, "tactix_up 1")
		})
	})
}
