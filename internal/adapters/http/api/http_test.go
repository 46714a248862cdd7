package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/veloclub/sortie/internal/adapters/http/api"
	"github.com/veloclub/sortie/internal/adapters/recordstore"
	"github.com/veloclub/sortie/internal/domain/model"
	"github.com/veloclub/sortie/internal/domain/reconcile"
	"github.com/veloclub/sortie/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

// fakeDeps satisfies api.Dependencies with canned responses so the tests
// exercise only the HTTP mapping.
type fakeDeps struct {
	seen map[string]struct{}

	reconcileErr   error
	reconcileYears []string

	attendanceErr   error
	attendanceCalls int

	rankErr error
}

func newFakeDeps() *fakeDeps {
	return &fakeDeps{seen: make(map[string]struct{})}
}

func (f *fakeDeps) SeenAndRecord(_ context.Context, id string) bool {
	if _, ok := f.seen[id]; ok {
		return true
	}
	f.seen[id] = struct{}{}
	return false
}

func (f *fakeDeps) Unrecord(_ context.Context, id string) { delete(f.seen, id) }
func (f *fakeDeps) Size() int64                           { return int64(len(f.seen)) }

func (f *fakeDeps) ReconcilePeriod(_ context.Context, _, year string) (api.Summary, error) {
	if f.reconcileErr != nil {
		return api.Summary{}, f.reconcileErr
	}
	f.reconcileYears = append(f.reconcileYears, year)
	return api.Summary{Year: year, EventsProcessed: 3, MembersCreated: 2}, nil
}

func (f *fakeDeps) SetAttendance(_ context.Context, _, _, _, _, _ string) error {
	f.attendanceCalls++
	return f.attendanceErr
}

func (f *fakeDeps) Scores(_ context.Context, year string) (api.Scoreboard, error) {
	return api.Scoreboard{
		Year: year,
		Entries: []api.Entry{
			{Rank: 1, MemberID: "m-1", Name: "Alice Martin", Group: "Route", CreditedCount: 2, Percent: 100.0},
		},
		TotalPossibleCredits: 2,
		TotalMembers:         1,
		ActiveMembers:        1,
	}, nil
}

func (f *fakeDeps) Rank(_ context.Context, memberID, year string) (api.Entry, error) {
	if f.rankErr != nil {
		return api.Entry{}, f.rankErr
	}
	return api.Entry{Rank: 1, MemberID: memberID, Name: "Alice Martin", CreditedCount: 2}, nil
}

func (f *fakeDeps) Members(_ context.Context) ([]*model.Member, error) {
	return []*model.Member{{ID: "m-1", Name: "Alice Martin", Group: "Route"}}, nil
}

func (f *fakeDeps) Events(_ context.Context) ([]*model.Event, error) {
	return []*model.Event{{ID: "e-1", ISODate: "2026-01-03", Location: "départ club"}}, nil
}

func (f *fakeDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "totalMembers": 1}
}

func newTestServer(deps *fakeDeps) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(deps, deps).Register(context.Background(), mux, deps)
	return httptest.NewServer(mux)
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestImportsEndpoint(t *testing.T) {
	convey.Convey("Given the API over fake dependencies", t, func() {
		deps := newFakeDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		convey.Convey("When a sheet is posted with an explicit year", func() {
			resp, err := http.Post(srv.URL+"/imports?year=2026", "text/csv", strings.NewReader("groupe,prénom,nom,total,03/01\n"))
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the run summary comes back", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				var summary api.Summary
				decodeBody(t, resp, &summary)
				convey.So(summary.Year, convey.ShouldEqual, "2026")
				convey.So(summary.EventsProcessed, convey.ShouldEqual, 3)
				convey.So(deps.reconcileYears, convey.ShouldResemble, []string{"2026"})
			})
		})

		convey.Convey("When the request is malformed", func() {
			get, _ := http.Get(srv.URL + "/imports")
			badYear, _ := http.Post(srv.URL+"/imports?year=20x6", "text/csv", strings.NewReader("x"))
			empty, _ := http.Post(srv.URL+"/imports", "text/csv", strings.NewReader(""))

			convey.Convey("Then each is rejected before reaching the engine", func() {
				convey.So(get.StatusCode, convey.ShouldEqual, http.StatusNotFound)
				convey.So(badYear.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
				convey.So(empty.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
				convey.So(deps.reconcileYears, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When another run is already in flight", func() {
			deps.reconcileErr = reconcile.ErrRunInProgress
			resp, _ := http.Post(srv.URL+"/imports", "text/csv", strings.NewReader("x"))

			convey.Convey("Then the import conflicts", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusConflict)
			})
		})

		convey.Convey("When the sheet cannot be parsed", func() {
			deps.reconcileErr = fmt.Errorf("%w: missing date columns", reconcile.ErrParse)
			resp, _ := http.Post(srv.URL+"/imports", "text/csv", strings.NewReader("x"))

			convey.Convey("Then the caller gets a bad request", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
			})
		})

		convey.Convey("When the engine fails unexpectedly", func() {
			deps.reconcileErr = errors.New("store exploded")
			resp, _ := http.Post(srv.URL+"/imports", "text/csv", strings.NewReader("x"))

			convey.Convey("Then the failure maps to a server error", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

func TestAttendanceEndpoint(t *testing.T) {
	convey.Convey("Given the API over fake dependencies", t, func() {
		deps := newFakeDeps()
		srv := newTestServer(deps)
		defer srv.Close()
		url := srv.URL + "/attendance"

		valid := map[string]string{
			"event_id": "e-1", "member_id": "m-1", "action": api.ActionAdd,
		}

		convey.Convey("When a valid correction is posted", func() {
			resp := postJSON(t, url, valid)

			convey.Convey("Then it is applied and acknowledged", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				var ack struct {
					Status    string `json:"status"`
					Duplicate bool   `json:"duplicate"`
				}
				decodeBody(t, resp, &ack)
				convey.So(ack.Status, convey.ShouldEqual, "applied")
				convey.So(ack.Duplicate, convey.ShouldBeFalse)
				convey.So(deps.attendanceCalls, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the same request id is replayed", func() {
			withID := map[string]string{
				"request_id": "req-1", "event_id": "e-1", "member_id": "m-1", "action": api.ActionAdd,
			}
			first := postJSON(t, url, withID)
			second := postJSON(t, url, withID)

			convey.Convey("Then the replay is acknowledged without reapplying", func() {
				convey.So(first.StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(second.StatusCode, convey.ShouldEqual, http.StatusOK)
				var ack struct {
					Status    string `json:"status"`
					Duplicate bool   `json:"duplicate"`
				}
				decodeBody(t, second, &ack)
				convey.So(ack.Duplicate, convey.ShouldBeTrue)
				convey.So(deps.attendanceCalls, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the correction fails", func() {
			deps.attendanceErr = fmt.Errorf("event e-9: %w", recordstore.ErrNotFound)
			withID := map[string]string{
				"request_id": "req-2", "event_id": "e-9", "member_id": "m-1", "action": api.ActionAdd,
			}
			resp := postJSON(t, url, withID)

			convey.Convey("Then the id is released so a retry can run", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusNotFound)

				deps.attendanceErr = nil
				retry := postJSON(t, url, withID)
				convey.So(retry.StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(deps.attendanceCalls, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the request body is invalid", func() {
			noEvent := postJSON(t, url, map[string]string{"member_id": "m-1", "action": "add"})
			noMember := postJSON(t, url, map[string]string{"event_id": "e-1", "action": "add"})
			badAction := postJSON(t, url, map[string]string{"event_id": "e-1", "member_id": "m-1", "action": "toggle"})
			notJSON, err := http.Post(url, "application/json", strings.NewReader("{{"))
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then every variant is a bad request", func() {
				convey.So(noEvent.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
				convey.So(noMember.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
				convey.So(badAction.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
				convey.So(notJSON.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
				convey.So(deps.attendanceCalls, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the service reports an unexpected error", func() {
			deps.attendanceErr = errors.New("store exploded")
			resp := postJSON(t, url, valid)

			convey.Convey("Then it maps to a server error", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

func TestScoresEndpoint(t *testing.T) {
	convey.Convey("Given the API over fake dependencies", t, func() {
		deps := newFakeDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		convey.Convey("When the scoreboard is requested", func() {
			resp, err := http.Get(srv.URL + "/scores?year=2026")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the board is returned as JSON", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				var board api.Scoreboard
				decodeBody(t, resp, &board)
				convey.So(board.Year, convey.ShouldEqual, "2026")
				convey.So(board.Entries, convey.ShouldHaveLength, 1)
				convey.So(board.Entries[0].Name, convey.ShouldEqual, "Alice Martin")
			})
		})

		convey.Convey("When the year is malformed", func() {
			resp, _ := http.Get(srv.URL + "/scores?year=banana")

			convey.Convey("Then the request is rejected", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestRankEndpoint(t *testing.T) {
	convey.Convey("Given the API over fake dependencies", t, func() {
		deps := newFakeDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		convey.Convey("When a member's rank is requested", func() {
			resp, err := http.Get(srv.URL + "/rank/m-1?year=2026")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the entry is returned", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				var entry api.Entry
				decodeBody(t, resp, &entry)
				convey.So(entry.MemberID, convey.ShouldEqual, "m-1")
				convey.So(entry.Rank, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the path has no member id", func() {
			resp, _ := http.Get(srv.URL + "/rank/")

			convey.Convey("Then the request is rejected", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
			})
		})

		convey.Convey("When the member is unknown", func() {
			deps.rankErr = fmt.Errorf("member m-9: %w", recordstore.ErrNotFound)
			resp, _ := http.Get(srv.URL + "/rank/m-9")

			convey.Convey("Then the lookup reports not found", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestRosterEndpoints(t *testing.T) {
	convey.Convey("Given the API over fake dependencies", t, func() {
		deps := newFakeDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		convey.Convey("When members and events are listed", func() {
			membersResp, err := http.Get(srv.URL + "/members")
			convey.So(err, convey.ShouldBeNil)
			eventsResp, err := http.Get(srv.URL + "/events")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then both listings come back as JSON arrays", func() {
				convey.So(membersResp.StatusCode, convey.ShouldEqual, http.StatusOK)
				var members []model.Member
				decodeBody(t, membersResp, &members)
				convey.So(members, convey.ShouldHaveLength, 1)
				convey.So(members[0].Name, convey.ShouldEqual, "Alice Martin")

				convey.So(eventsResp.StatusCode, convey.ShouldEqual, http.StatusOK)
				var events []model.Event
				decodeBody(t, eventsResp, &events)
				convey.So(events, convey.ShouldHaveLength, 1)
				convey.So(events[0].ISODate, convey.ShouldEqual, "2026-01-03")
			})
		})

		convey.Convey("When a listing is posted to", func() {
			resp, _ := http.Post(srv.URL+"/members", "application/json", strings.NewReader("{}"))

			convey.Convey("Then the method is unsupported", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestHealthAndStatsEndpoints(t *testing.T) {
	convey.Convey("Given the API over fake dependencies", t, func() {
		deps := newFakeDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		convey.Convey("When the health and stats endpoints are hit", func() {
			health, err := http.Get(srv.URL + "/healthz")
			convey.So(err, convey.ShouldBeNil)
			stats, err := http.Get(srv.URL + "/stats")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then both respond OK", func() {
				convey.So(health.StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(stats.StatusCode, convey.ShouldEqual, http.StatusOK)
				var body map[string]interface{}
				decodeBody(t, stats, &body)
				convey.So(body["started"], convey.ShouldBeTrue)
			})
		})
	})
}
