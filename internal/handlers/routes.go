package handlers

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFiles embed.FS

// Routes registers every endpoint on a fresh mux wrapped in the standard
// middleware chain.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/predict", h.Predict)
	mux.HandleFunc("/predict/image", h.PredictFromImage)
	mux.HandleFunc("/ws/predict", h.LivePredict)
	mux.HandleFunc("/history", h.RecentPredictions)
	mux.HandleFunc("/history/stats", h.HistoryStats)

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("/", http.FileServer(http.FS(static)))

	return Chain(RequestLogger(h.logger), Recovery(h.logger), EnableCORS)(mux)
}
