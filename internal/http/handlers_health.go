package httpx

import "net/http"

// healthHandler reports process liveness. It intentionally checks nothing
// downstream; a degraded gateway must not make the portal look dead.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
