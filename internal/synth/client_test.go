package synth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/rumbo/drivermatch/internal/synth"
)

func fakeService(polls int32, final string) (*httptest.Server, *atomic.Int32) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
	mux.HandleFunc("POST /v1/runs", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RequestID string            `json:"request_id"`
			Drivers   []json.RawMessage `json:"drivers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Drivers) == 0 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"code":"degenerate","message":"no drivers"}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"run_id":"run-1","status":"queued","duplicate":false}`))
	})
	mux.HandleFunc("GET /v1/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		status := "running"
		if calls.Add(1) >= polls {
			status = final
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"run_id": r.PathValue("id"),
			"status": status,
			"reason": "infeasible",
		})
	})
	return httptest.NewServer(mux), &calls
}

func TestClient(t *testing.T) {
	convey.Convey("Given a client pointed at a service that succeeds on the third poll", t, func() {
		srv, calls := fakeService(3, "succeeded")
		defer srv.Close()
		c := synth.NewClient(srv.URL+"/", time.Second)
		ctx := context.Background()
		g := synth.New(synth.DefaultSeed)

		convey.Convey("Then health, submit and wait should succeed", func() {
			convey.So(c.CheckHealth(ctx), convey.ShouldBeNil)

			ack, err := c.Submit(ctx, "req-1", g.Drivers(3), g.Routes(2))
			convey.So(err, convey.ShouldBeNil)
			convey.So(ack.RunID, convey.ShouldEqual, "run-1")
			convey.So(ack.Duplicate, convey.ShouldBeFalse)

			st, err := c.Wait(ctx, ack.RunID, time.Millisecond)
			convey.So(err, convey.ShouldBeNil)
			convey.So(st.Status, convey.ShouldEqual, "succeeded")
			convey.So(calls.Load(), convey.ShouldEqual, 3)
		})

		convey.Convey("When the fleet is empty", func() {
			_, err := c.Submit(ctx, "req-2", nil, nil)

			convey.Convey("Then the API error should be decoded", func() {
				var apiErr *synth.APIError
				convey.So(errors.As(err, &apiErr), convey.ShouldBeTrue)
				convey.So(apiErr.StatusCode, convey.ShouldEqual, http.StatusUnprocessableEntity)
				convey.So(apiErr.Code, convey.ShouldEqual, "degenerate")
			})
		})

		convey.Convey("When the context ends before the run finishes", func() {
			ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			_, err := c.Wait(ctx, "run-1", time.Hour)

			convey.Convey("Then Wait should return the context error", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a service whose run fails", t, func() {
		srv, _ := fakeService(1, "failed")
		defer srv.Close()
		c := synth.NewClient(srv.URL, time.Second)

		convey.Convey("Then Wait should report ErrRunFailed", func() {
			st, err := c.Wait(context.Background(), "run-1", time.Millisecond)
			convey.So(errors.Is(err, synth.ErrRunFailed), convey.ShouldBeTrue)
			convey.So(st.Reason, convey.ShouldEqual, "infeasible")
		})
	})
}
