package colldb

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// Handler returns the HTTP boundary for the registry's non-internal
// collections:
//
//	GET    /{name}                    list
//	GET    /{name}/{index}/{parts...} list by index prefix (?limit=N)
//	GET    /{name}/{id}               get
//	POST   /{name}                    append
//	PUT    /{name}/{id}               replace
//	PATCH  /{name}/{id}               merge
//	DELETE /{name}/{id}               delete
//
// Record bodies are opaque JSON objects; the reserved id/versionstamp fields
// are added on output only.
func (r *Registry) Handler() http.Handler {
	api := &httpAPI{reg: r}
	router := mux.NewRouter()
	router.HandleFunc("/{collection}", api.list).Methods(http.MethodGet)
	router.HandleFunc("/{collection}", api.append).Methods(http.MethodPost)
	router.HandleFunc("/{collection}/{index}/{parts:.+}", api.listBy).Methods(http.MethodGet)
	router.HandleFunc("/{collection}/{id}", api.get).Methods(http.MethodGet)
	router.HandleFunc("/{collection}/{id}", api.replace).Methods(http.MethodPut)
	router.HandleFunc("/{collection}/{id}", api.merge).Methods(http.MethodPatch)
	router.HandleFunc("/{collection}/{id}", api.delete).Methods(http.MethodDelete)
	return router
}

type httpAPI struct {
	reg *Registry
}

func (api *httpAPI) resolve(w http.ResponseWriter, req *http.Request) *Collection {
	c := api.reg.Public(mux.Vars(req)["collection"])
	if c == nil {
		writeError(w, http.StatusNotFound, "no such collection")
	}
	return c
}

func (api *httpAPI) list(w http.ResponseWriter, req *http.Request) {
	c := api.resolve(w, req)
	if c == nil {
		return
	}
	results := []*Result{}
	for res, err := range c.List(req.Context()) {
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, results)
}

func (api *httpAPI) listBy(w http.ResponseWriter, req *http.Request) {
	c := api.resolve(w, req)
	if c == nil {
		return
	}
	vars := mux.Vars(req)
	parts := Key(strings.Split(vars["parts"], "/"))
	var limit int
	if s := req.URL.Query().Get("limit"); s != "" {
		var err error
		limit, err = strconv.Atoi(s)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}
	results := []*Result{}
	for res, err := range c.ListByLimit(req.Context(), vars["index"], parts, limit) {
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, results)
}

func (api *httpAPI) get(w http.ResponseWriter, req *http.Request) {
	c := api.resolve(w, req)
	if c == nil {
		return
	}
	res, err := c.Get(req.Context(), mux.Vars(req)["id"])
	writeResult(w, http.StatusOK, res, err)
}

func (api *httpAPI) append(w http.ResponseWriter, req *http.Request) {
	c := api.resolve(w, req)
	if c == nil {
		return
	}
	rec, ok := readRecord(w, req)
	if !ok {
		return
	}
	res, err := c.Append(req.Context(), rec)
	writeResult(w, http.StatusCreated, res, err)
}

func (api *httpAPI) replace(w http.ResponseWriter, req *http.Request) {
	c := api.resolve(w, req)
	if c == nil {
		return
	}
	rec, ok := readRecord(w, req)
	if !ok {
		return
	}
	res, err := c.Replace(req.Context(), mux.Vars(req)["id"], rec)
	writeResult(w, http.StatusOK, res, err)
}

func (api *httpAPI) merge(w http.ResponseWriter, req *http.Request) {
	c := api.resolve(w, req)
	if c == nil {
		return
	}
	rec, ok := readRecord(w, req)
	if !ok {
		return
	}
	res, err := c.Merge(req.Context(), mux.Vars(req)["id"], rec)
	writeResult(w, http.StatusOK, res, err)
}

func (api *httpAPI) delete(w http.ResponseWriter, req *http.Request) {
	c := api.resolve(w, req)
	if c == nil {
		return
	}
	res, err := c.Delete(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func readRecord(w http.ResponseWriter, req *http.Request) (Record, bool) {
	defer req.Body.Close()
	var rec Record
	if err := json.NewDecoder(req.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return nil, false
	}
	return rec, true
}

func writeResult(w http.ResponseWriter, okStatus int, res *Result, err error) {
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, okStatus, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
