package hydrate

import (
	"encoding/json"
	"net/http"
)

// Handler exposes a BootstrapContext's page-preparation queue and published
// result over HTTP, for driving an application in another process:
//
//	POST {prefix}/queue   body {"token": "...", "replayKey": "..."}
//	GET  {prefix}/result  the published Result, 404 until one exists
//
// Mount it on the application's mux under /hydration. The endpoints are a
// test surface; production builds should not register them.
func Handler(bc *BootstrapContext) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/queue", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var entry QueueEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			http.Error(w, "invalid queue entry: "+err.Error(), http.StatusBadRequest)
			return
		}
		if entry.Token == "" {
			http.Error(w, "token required", http.StatusBadRequest)
			return
		}
		bc.PushToken(entry.Token, entry.ReplayKey)
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/result", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		res, ok, err := bc.LoadResult()
		if err != nil {
			http.Error(w, "failed to load result: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "no result published", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	})

	return mux
}
