package buildversion

import (
	"fmt"
	"net/http"
)

const (
	// Get is the endpoint serving the running build version.
	Get = "/version"
)

// Handler returns a handler answering version Get requests with the build
// version stamped into the binary at link time.
func Handler(version string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, version)
	}
}
