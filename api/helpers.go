package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/constitutional-platform/voting-registry/types"
	"github.com/go-chi/chi/v5"
	"go.vocdoni.io/dvote/log"
)

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
	log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// urlParamSessionID decodes the session ID URL parameter. It reports false
// after writing the error response if the parameter is malformed.
func urlParamSessionID(w http.ResponseWriter, r *http.Request) (types.HexBytes, bool) {
	var id types.HexBytes
	if err := id.FromString(chi.URLParam(r, SessionURLParam)); err != nil {
		ErrMalformedSessionID.WithErr(err).Write(w)
		return nil, false
	}
	if len(id) != types.SessionIDLen {
		ErrMalformedSessionID.Withf("expected %d bytes, got %d", types.SessionIDLen, len(id)).Write(w)
		return nil, false
	}
	return id, true
}
