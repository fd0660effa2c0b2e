package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/adapters/http/api"
	"github.com/okian/arena/internal/domain/crm"
	"github.com/okian/arena/internal/domain/ingest"
	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

var sessionSecret = []byte("test-session-secret")

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type ingestCall struct {
	src     model.SourceSystem
	payload string
	tenant  string
}

type mockDependencies struct {
	ingestCalls []ingestCall
	ingestRes   ingest.Result
	ingestErr   error

	queries []leaderboard.Query
	resp    leaderboard.Response
	lbErr   error
}

func (m *mockDependencies) Ingest(_ context.Context, src model.SourceSystem, payload []byte, tenant string) (ingest.Result, error) {
	m.ingestCalls = append(m.ingestCalls, ingestCall{src: src, payload: string(payload), tenant: tenant})
	if m.ingestErr != nil {
		return ingest.Result{}, m.ingestErr
	}
	res := m.ingestRes
	res.SourceSystem = src
	return res, nil
}

func (m *mockDependencies) GetLeaderboard(_ context.Context, q leaderboard.Query) (leaderboard.Response, error) {
	m.queries = append(m.queries, q)
	if m.lbErr != nil {
		return leaderboard.Response{}, m.lbErr
	}
	return m.resp, nil
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats(context.Context) map[string]any {
	return m.stats
}

func newMux(deps *mockDependencies, opts ...api.Option) *http.ServeMux {
	base := []api.Option{
		api.WithWebhookSecrets(map[model.SourceSystem]string{
			model.SourceElead:     "elead-secret",
			model.SourceFortellis: "fortellis-secret",
		}),
		api.WithWebhookTenants(map[model.SourceSystem]string{
			model.SourceFortellis: "org-default",
		}),
		api.WithSessionSecret(sessionSecret),
	}
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]any{"users": 3}}, append(base, opts...)...)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body
}

func token(s api.Session) string {
	tok, err := api.SignSession(sessionSecret, s, time.Hour)
	So(err, ShouldBeNil)
	return tok
}

func manager() api.Session {
	return api.Session{
		UserID:             "u-mgr",
		Role:               model.RoleManager,
		DealershipID:       "d-1",
		OrganizationID:     "org-1",
		OnboardingComplete: true,
	}
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(&mockDependencies{})

		Convey("Then the health endpoint serves Prometheus metrics", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("And the stats endpoint returns the provider's JSON", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/stats", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
			So(w.Body.String(), ShouldContainSubstring, `"users":3`)
		})

		Convey("And wrong methods are not found", func() {
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/stats", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given a nil mux", t, func() {
		server := api.NewServer(&mockDependencies{}, &mockStatsProvider{})
		So(func() { server.Register(context.Background(), nil) }, ShouldPanic)
	})
}

func webhookRequest(source, secret, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/"+source, strings.NewReader(body))
	if secret != "" {
		req.Header.Set(api.SecretHeader, secret)
	}
	return req
}

func TestWebhooks(t *testing.T) {
	Convey("Given a webhook endpoint", t, func() {
		deps := &mockDependencies{ingestRes: ingest.Result{TotalRecords: 2, ProcessedRecords: 1, SkippedDuplicates: 1}}
		mux := newMux(deps, api.WithMaxBodyBytes(64))

		Convey("When a delivery carries the right secret", func() {
			w := serve(mux, webhookRequest("elead", "elead-secret", `{"records":[]}`))

			Convey("Then the ingestion summary is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var res ingest.Result
				So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
				So(res.SourceSystem, ShouldEqual, model.SourceElead)
				So(res.TotalRecords, ShouldEqual, 2)
				So(res.SkippedDuplicates, ShouldEqual, 1)
				So(deps.ingestCalls, ShouldHaveLength, 1)
				So(deps.ingestCalls[0].payload, ShouldEqual, `{"records":[]}`)
				So(deps.ingestCalls[0].tenant, ShouldBeEmpty)
			})
		})

		Convey("When the source has a configured tenant", func() {
			w := serve(mux, webhookRequest("Fortellis", "fortellis-secret", `{}`))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.ingestCalls[0].src, ShouldEqual, model.SourceFortellis)
			So(deps.ingestCalls[0].tenant, ShouldEqual, "org-default")
		})

		Convey("When the source is unknown", func() {
			w := serve(mux, webhookRequest("salesforce", "x", `{}`))
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeError(w)["code"], ShouldEqual, "unknown_source")
			So(deps.ingestCalls, ShouldBeEmpty)
		})

		Convey("When the secret is missing or wrong", func() {
			So(serve(mux, webhookRequest("elead", "", `{}`)).Code, ShouldEqual, http.StatusUnauthorized)
			So(serve(mux, webhookRequest("elead", "fortellis-secret", `{}`)).Code, ShouldEqual, http.StatusUnauthorized)
			So(deps.ingestCalls, ShouldBeEmpty)
		})

		Convey("When the source has no configured secret", func() {
			w := serve(mux, webhookRequest("xtime", "anything", `{}`))
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
			So(decodeError(w)["code"], ShouldEqual, "unauthorized")
		})

		Convey("When the method is not POST", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/api/webhooks/elead", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the body exceeds the limit", func() {
			w := serve(mux, webhookRequest("elead", "elead-secret", `{"pad":"`+strings.Repeat("x", 100)+`"}`))
			So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
			So(deps.ingestCalls, ShouldBeEmpty)
		})

		Convey("When the payload fails validation", func() {
			deps.ingestErr = &crm.ValidationError{Source: model.SourceElead, Field: "records[0].month", Constraint: "max=12"}
			w := serve(mux, webhookRequest("elead", "elead-secret", `{}`))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			body := decodeError(w)
			So(body["code"], ShouldEqual, "validation_error")
			So(body["message"], ShouldContainSubstring, "records[0].month")
		})

		Convey("When storage fails", func() {
			deps.ingestErr = &ingest.StorageError{Op: "ingest.insert_raw", Err: errors.New("disk full")}
			w := serve(mux, webhookRequest("elead", "elead-secret", `{}`))
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decodeError(w)["code"], ShouldEqual, "storage_error")
		})
	})
}

func leaderboardRequest(path, tok string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req
}

func TestLeaderboard(t *testing.T) {
	Convey("Given a leaderboard endpoint", t, func() {
		deps := &mockDependencies{resp: leaderboard.Response{
			Month:  3,
			Year:   2025,
			Role:   model.RoleSalesRep,
			Metric: leaderboard.MetricLeadsCreated,
			Podium: []leaderboard.Entry{{UserID: "u-1", Name: "Ana", Role: model.RoleSalesRep, LeadsCreated: 9}},
		}}
		mux := newMux(deps)

		Convey("When there is no session", func() {
			w := serve(mux, leaderboardRequest("/api/leaderboard", ""))
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
			So(deps.queries, ShouldBeEmpty)
		})

		Convey("When the token is signed with another key", func() {
			tok, err := api.SignSession([]byte("other"), manager(), time.Hour)
			So(err, ShouldBeNil)
			w := serve(mux, leaderboardRequest("/api/leaderboard", tok))
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When the token has expired", func() {
			tok, err := api.SignSession(sessionSecret, manager(), -time.Minute)
			So(err, ShouldBeNil)
			So(serve(mux, leaderboardRequest("/api/leaderboard", tok)).Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When the token uses a different algorithm", func() {
			claims := jwt.MapClaims{"sub": "u-1", "role": "manager", "dealership_id": "d-1", "onboarding_complete": true}
			tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(sessionSecret)
			So(err, ShouldBeNil)
			So(serve(mux, leaderboardRequest("/api/leaderboard", tok)).Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When onboarding is incomplete", func() {
			s := manager()
			s.OnboardingComplete = false
			w := serve(mux, leaderboardRequest("/api/leaderboard", token(s)))
			So(w.Code, ShouldEqual, http.StatusForbidden)

			s = manager()
			s.DealershipID = ""
			So(serve(mux, leaderboardRequest("/api/leaderboard", token(s))).Code, ShouldEqual, http.StatusForbidden)

			s = manager()
			s.Role = ""
			So(serve(mux, leaderboardRequest("/api/leaderboard", token(s))).Code, ShouldEqual, http.StatusForbidden)
			So(deps.queries, ShouldBeEmpty)
		})

		Convey("When the metric or department is unknown", func() {
			tok := token(manager())
			So(serve(mux, leaderboardRequest("/api/leaderboard?metric=karma", tok)).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, leaderboardRequest("/api/leaderboard?department=parts", tok)).Code, ShouldEqual, http.StatusBadRequest)
			So(deps.queries, ShouldBeEmpty)
		})

		Convey("When a valid session asks for a view", func() {
			s := api.Session{UserID: "u-1", Role: model.RoleSalesRep, DealershipID: "d-9", OrganizationID: "org-2", OnboardingComplete: true}
			w := serve(mux, leaderboardRequest("/api/leaderboard?metric=cars_sold&department=sales", token(s)))

			Convey("Then the engine gets the viewer's identity", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.queries, ShouldHaveLength, 1)
				q := deps.queries[0]
				So(q.ViewerUserID, ShouldEqual, "u-1")
				So(q.Role, ShouldEqual, model.RoleSalesRep)
				So(q.DealershipID, ShouldEqual, "d-9")
				So(q.TenantScope, ShouldEqual, "org-2")
				So(q.Metric, ShouldEqual, leaderboard.MetricCarsSold)
				So(q.Department, ShouldEqual, leaderboard.DepartmentSales)
			})

			Convey("And the response is the engine's view", func() {
				var resp leaderboard.Response
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Podium, ShouldHaveLength, 1)
				So(resp.Podium[0].Name, ShouldEqual, "Ana")
			})
		})

		Convey("When the session arrives as a cookie", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/leaderboard", http.NoBody)
			req.AddCookie(&http.Cookie{Name: api.SessionCookie, Value: token(manager())})
			So(serve(mux, req).Code, ShouldEqual, http.StatusOK)
		})

		Convey("When the read fails", func() {
			deps.lbErr = fmt.Errorf("%w: %w", leaderboard.ErrRead, errors.New("db down"))
			w := serve(mux, leaderboardRequest("/api/leaderboard", token(manager())))
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decodeError(w)["code"], ShouldEqual, "storage_error")
		})
	})

	Convey("Given a server without a session secret", t, func() {
		mux := newMux(&mockDependencies{}, api.WithSessionSecret(nil))
		So(serve(mux, leaderboardRequest("/api/leaderboard", token(manager()))).Code, ShouldEqual, http.StatusUnauthorized)
	})
}

func TestExport(t *testing.T) {
	Convey("Given the export endpoint", t, func() {
		deps := &mockDependencies{resp: leaderboard.Response{
			Month: 3,
			Year:  2025,
			Podium: []leaderboard.Entry{
				{Name: `O"Brien`, Role: model.RoleSalesRep, LeadsCreated: 4, ProfitTotal: 1200.5},
			},
			Leaderboard: []leaderboard.Entry{
				{Name: "Bea", Role: model.RoleServiceRep, ServicesCompleted: 2, EfficiencyRate: 0.125},
			},
		}}
		mux := newMux(deps)

		Convey("When a rep asks for an export", func() {
			s := manager()
			s.Role = model.RoleSalesRep
			w := serve(mux, leaderboardRequest("/api/leaderboard/export", token(s)))
			So(w.Code, ShouldEqual, http.StatusForbidden)
			So(deps.queries, ShouldBeEmpty)
		})

		Convey("When a manager asks for an export", func() {
			w := serve(mux, leaderboardRequest("/api/leaderboard/export?department=all", token(manager())))

			Convey("Then a dated CSV attachment is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "text/csv; charset=utf-8")
				So(w.Header().Get("Content-Disposition"), ShouldEqual, `attachment; filename="arena-leaderboard-2025-03.csv"`)
				lines := strings.Split(w.Body.String(), "\n")
				So(lines, ShouldHaveLength, 3)
				So(lines[0], ShouldStartWith, "name,role,leads_created")
				So(lines[1], ShouldStartWith, `"O""Brien","sales_rep","4"`)
				So(lines[1], ShouldContainSubstring, `"1200.50"`)
				So(lines[2], ShouldEndWith, `"0.13"`)
			})

			Convey("And the engine runs with the manager role", func() {
				So(deps.queries, ShouldHaveLength, 1)
				So(deps.queries[0].Role, ShouldEqual, model.RoleManager)
				So(deps.queries[0].Department, ShouldEqual, leaderboard.DepartmentAll)
			})
		})

		Convey("When there is no session", func() {
			So(serve(mux, leaderboardRequest("/api/leaderboard/export", "")).Code, ShouldEqual, http.StatusUnauthorized)
		})
	})
}
