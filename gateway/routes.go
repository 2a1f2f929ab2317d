package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tarungka/streamcore/compile"
	"github.com/tarungka/streamcore/stream"
)

// PipelineRouter adapts process/flush/reset/snapshot onto HTTP for a
// named, registered pipeline.
func PipelineRouter(reg *Registry) chi.Router {
	router := chi.NewRouter()
	router.Post("/{name}/messages", postMessages(reg))
	router.Post("/{name}/flush", postFlush(reg))
	router.Post("/{name}/reset", postReset(reg))
	router.Get("/{name}/snapshot", getSnapshot(reg))
	return router
}

func lookup(w http.ResponseWriter, r *http.Request, reg *Registry) (stream.Operator, bool) {
	name := chi.URLParam(r, "name")
	op, ok := reg.Lookup(name)
	if !ok {
		SendResponse(w, false, nil, "no such pipeline: "+name)
		return nil, false
	}
	return op, true
}

func postMessages(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op, ok := lookup(w, r, reg)
		if !ok {
			return
		}
		var msgs []stream.Message
		if err := json.NewDecoder(r.Body).Decode(&msgs); err != nil {
			SendResponse(w, false, nil, "invalid message body: "+err.Error())
			return
		}
		op.ProcessAll(msgs)
		SendResponse(w, true, nil, "")
	}
}

func postFlush(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op, ok := lookup(w, r, reg)
		if !ok {
			return
		}
		op.Flush()
		SendResponse(w, true, nil, "")
	}
}

func postReset(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op, ok := lookup(w, r, reg)
		if !ok {
			return
		}
		op.Reset()
		SendResponse(w, true, nil, "")
	}
}

func getSnapshot(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op, ok := lookup(w, r, reg)
		if !ok {
			return
		}
		SendResponse(w, true, compile.Snapshot(op), "")
	}
}
