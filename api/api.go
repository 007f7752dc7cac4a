package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	monoprice "github.com/abates/monoprice-zones"
	"github.com/abates/monoprice-zones/metrics"
)

var ErrNoSnapshot = errors.New("no snapshot stored for zone")

func ParseBool(str string) (int, error) {
	b, err := strconv.ParseBool(str)
	if err != nil {
		return 0, err
	}
	if b {
		return 1, nil
	}
	return 0, nil
}

func ParseInt(str string) (int, error) {
	return strconv.Atoi(str)
}

// Reopener replaces a lost serial link.
type Reopener interface {
	Reopen() error
}

type Option func(*api)

func ReopenOption(r Reopener) Option {
	return func(a *api) {
		a.reopener = r
	}
}

func LoggerOption(logger zerolog.Logger) Option {
	return func(a *api) {
		a.log = logger
	}
}

type api struct {
	amp      *monoprice.Amplifier
	reopener Reopener
	log      zerolog.Logger

	// snapshots are held here, not by the Amplifier
	mu        sync.Mutex
	snapshots map[monoprice.ZoneID]monoprice.Snapshot
}

func New(amp *monoprice.Amplifier, options ...Option) *mux.Router {
	a := &api{
		amp:       amp,
		log:       log.Logger,
		snapshots: make(map[monoprice.ZoneID]monoprice.Snapshot),
	}
	for _, option := range options {
		option(a)
	}

	r := mux.NewRouter()
	r.Use(metrics.Middleware)
	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	r.HandleFunc("/zones", a.listZones).Methods("GET")
	r.HandleFunc("/sources", a.listSources).Methods("GET")
	r.HandleFunc("/tone", a.toneControls).Methods("GET")
	r.HandleFunc("/discover", a.discover).Methods("POST")
	r.HandleFunc("/reconnect", a.reconnect).Methods("POST")

	r.HandleFunc("/{zone:[0-9]+}/status", a.zoneHandler(a.status)).Methods("GET")
	r.HandleFunc("/{zone:[0-9]+}/power/{power}", a.setField(monoprice.Power, "power", ParseBool)).Methods("PUT")
	r.HandleFunc("/{zone:[0-9]+}/mute/{mute}", a.setField(monoprice.Mute, "mute", ParseBool)).Methods("PUT")
	r.HandleFunc("/{zone:[0-9]+}/volume/up", a.zoneHandler(a.volumeStep(1))).Methods("PUT")
	r.HandleFunc("/{zone:[0-9]+}/volume/down", a.zoneHandler(a.volumeStep(-1))).Methods("PUT")
	r.HandleFunc("/{zone:[0-9]+}/volume/{level:-?[0-9]+}", a.setField(monoprice.Volume, "level", ParseInt)).Methods("PUT")
	r.HandleFunc("/{zone:[0-9]+}/level/{level}", a.zoneHandler(a.volumeLevel)).Methods("PUT")
	r.HandleFunc("/{zone:[0-9]+}/treble/{level}", a.setField(monoprice.Treble, "level", ParseInt)).Methods("PUT")
	r.HandleFunc("/{zone:[0-9]+}/bass/{level}", a.setField(monoprice.Bass, "level", ParseInt)).Methods("PUT")
	r.HandleFunc("/{zone:[0-9]+}/balance/{level}", a.setField(monoprice.Balance, "level", ParseInt)).Methods("PUT")
	r.HandleFunc("/{zone:[0-9]+}/source/{source}", a.setField(monoprice.Source, "source", ParseInt)).Methods("PUT")
	r.HandleFunc("/{zone:[0-9]+}/select/{label}", a.zoneHandler(a.selectSource)).Methods("PUT")
	r.HandleFunc("/{zone:[0-9]+}/snapshot", a.zoneHandler(a.snapshot)).Methods("POST")
	r.HandleFunc("/{zone:[0-9]+}/restore", a.zoneHandler(a.restore)).Methods("PUT")

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string   `json:"error"`
	Field   string   `json:"field,omitempty"`
	Applied []string `json:"applied,omitempty"`
}

// errorStatus maps controller errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, monoprice.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, monoprice.ErrUnknownZone), errors.Is(err, ErrNoSnapshot):
		return http.StatusNotFound
	case errors.Is(err, monoprice.ErrPreconditionFailed):
		return http.StatusConflict
	case errors.Is(err, monoprice.ErrDecode), errors.Is(err, monoprice.ErrCorrupt):
		return http.StatusBadGateway
	case errors.Is(err, monoprice.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, monoprice.ErrDisconnected), errors.Is(err, monoprice.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (a *api) writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	body := errorBody{Error: err.Error()}

	var restoreErr *monoprice.RestoreError
	if errors.As(err, &restoreErr) {
		body.Field = restoreErr.Field.String()
		body.Applied = []string{}
		for _, f := range restoreErr.Applied {
			body.Applied = append(body.Applied, f.String())
		}
	}

	if status >= http.StatusInternalServerError {
		a.log.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		a.log.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	writeJSON(w, status, body)
}

func (a *api) listZones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.amp.ZoneIDs())
}

type sourceBody struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

func (a *api) listSources(w http.ResponseWriter, r *http.Request) {
	sources := []sourceBody{}
	for i, label := range a.amp.Sources().List() {
		sources = append(sources, sourceBody{ID: i + 1, Label: label})
	}
	writeJSON(w, http.StatusOK, sources)
}

type toneBody struct {
	Field string `json:"field"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Flat  int    `json:"flat"`
}

func (a *api) toneControls(w http.ResponseWriter, r *http.Request) {
	controls := []toneBody{}
	for _, f := range monoprice.ToneControls {
		min, max := f.Range()
		controls = append(controls, toneBody{Field: f.String(), Min: min, Max: max, Flat: f.Flat()})
	}
	writeJSON(w, http.StatusOK, controls)
}

func (a *api) discover(w http.ResponseWriter, r *http.Request) {
	ids, err := a.amp.Discover()
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (a *api) reconnect(w http.ResponseWriter, r *http.Request) {
	if a.reopener == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "link cannot be reopened"})
		return
	}
	if err := a.reopener.Reopen(); err != nil {
		a.writeError(w, err)
		return
	}
	a.discover(w, r)
}

func (a *api) zoneHandler(handler func(*monoprice.Zone, http.ResponseWriter, *http.Request)) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		id, err := strconv.Atoi(vars["zone"])
		if err != nil {
			a.log.Debug().Err(err).Str("zone", vars["zone"]).Msg("Failed to convert zone to integer")
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		zone, err := a.amp.Zone(monoprice.ZoneID(id))
		if err != nil {
			a.writeError(w, err)
			return
		}
		handler(zone, w, r)
	}
}

func (a *api) setField(f monoprice.Field, v string, decoder func(string) (int, error)) func(w http.ResponseWriter, r *http.Request) {
	return a.zoneHandler(func(zone *monoprice.Zone, w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		value, err := decoder(vars[v])
		if err != nil {
			a.log.Debug().Err(err).Str("value", vars[v]).Msg("Failed decoding command variable")
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		if err := zone.Set(f, value); err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	})
}

type statusBody struct {
	monoprice.ZoneState
	VolumeLevel float64 `json:"volume_level"`
	SourceLabel string  `json:"source_label"`
}

func (a *api) status(zone *monoprice.Zone, w http.ResponseWriter, r *http.Request) {
	state, err := zone.State()
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusBody{
		ZoneState:   state,
		VolumeLevel: monoprice.VolumeFraction(state.Volume),
		SourceLabel: a.amp.Sources().Label(state.Source),
	})
}

func (a *api) volumeStep(delta int) func(*monoprice.Zone, http.ResponseWriter, *http.Request) {
	return func(zone *monoprice.Zone, w http.ResponseWriter, r *http.Request) {
		step := zone.VolumeUp
		if delta < 0 {
			step = zone.VolumeDown
		}
		if err := step(); err != nil {
			a.writeError(w, err)
			return
		}
		state, _ := zone.LastState()
		writeJSON(w, http.StatusOK, map[string]int{"volume": state.Volume})
	}
}

func (a *api) volumeLevel(zone *monoprice.Zone, w http.ResponseWriter, r *http.Request) {
	level, err := strconv.ParseFloat(mux.Vars(r)["level"], 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if err := zone.SetVolumeLevel(level); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"volume": monoprice.VolumeNative(level)})
}

func (a *api) selectSource(zone *monoprice.Zone, w http.ResponseWriter, r *http.Request) {
	if err := zone.SelectSource(mux.Vars(r)["label"]); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (a *api) snapshot(zone *monoprice.Zone, w http.ResponseWriter, r *http.Request) {
	snap, err := zone.Snapshot()
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.mu.Lock()
	a.snapshots[zone.ID()] = snap
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, snap.State())
}

func (a *api) restore(zone *monoprice.Zone, w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	snap, found := a.snapshots[zone.ID()]
	a.mu.Unlock()
	if !found {
		a.writeError(w, fmt.Errorf("%w %d", ErrNoSnapshot, zone.ID()))
		return
	}
	if err := zone.Restore(snap); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.State())
}
