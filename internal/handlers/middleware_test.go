package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return zap.New(core).Sugar(), logs
}

func TestRecoveryWritesErrorAndLogsRequest(t *testing.T) {
	logger, logs := observedLogger()
	h := Chain(RequestLogger(logger), Recovery(logger))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/predict", nil))
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), msgPredictFailed) {
		t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatal("panic not logged")
	}
	reqs := logs.FilterMessage("request").All()
	if len(reqs) != 1 || reqs[0].ContextMap()["status"] != int64(http.StatusInternalServerError) {
		t.Fatalf("request line missing or wrong: %+v", reqs)
	}
}

func TestRecoveryKeepsStartedResponse(t *testing.T) {
	logger, logs := observedLogger()
	h := Chain(RequestLogger(logger), Recovery(logger))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("partial"))
		panic("late")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/predict", nil))
	if w.Code != http.StatusAccepted || w.Body.String() != "partial" {
		t.Fatalf("started response was rewritten: %d %q", w.Code, w.Body.String())
	}
	reqs := logs.FilterMessage("request").All()
	if len(reqs) != 1 || reqs[0].ContextMap()["status"] != int64(http.StatusAccepted) {
		t.Fatalf("request line missing or wrong: %+v", reqs)
	}
}
