package agent

import (
	"math"
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/voluzi/cloudvitals/pkg/stress"
)

// maxStressSeconds keeps the requested duration representable as a
// time.Duration.
const maxStressSeconds = float64(math.MaxInt64 / int64(time.Second))

type StartStressRequest struct {
	Class    *string  `json:"class"`
	Duration *float64 `json:"duration"`
}

type StartStressResponse struct {
	Status   string  `json:"status"`
	Class    string  `json:"class"`
	Duration float64 `json:"duration"`
}

type StopStressResponse struct {
	Status string `json:"status"`
	Class  string `json:"class"`
}

type StressStatus struct {
	Running []stress.JobInfo `json:"running"`
	Recent  []stress.Record  `json:"recent"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *Agent) registerRoutes() {
	a.router.HandleFunc("/health", a.health).Methods(http.MethodGet)
	a.router.HandleFunc("/metrics", a.metrics).Methods(http.MethodGet)
	a.router.HandleFunc("/metrics/prometheus", a.prometheus).Methods(http.MethodGet)
	a.router.HandleFunc("/stress", a.listStress).Methods(http.MethodGet)
	a.router.HandleFunc("/stress", a.startStress).Methods(http.MethodPost)
	a.router.HandleFunc("/stress/{class}", a.stopStress).Methods(http.MethodDelete)
}

func (a *Agent) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Agent) metrics(w http.ResponseWriter, r *http.Request) {
	sample := a.store.Get()
	log.WithFields(log.Fields{
		"tick":   sample.Tick,
		"memory": datasize.ByteSize(sample.Memory.Used).HumanReadable(),
	}).Trace("serving latest sample")
	writeJSON(w, http.StatusOK, sample)
}

func (a *Agent) listStress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StressStatus{
		Running: a.supervisor.Jobs(),
		Recent:  a.supervisor.Recent(),
	})
}

func (a *Agent) startStress(w http.ResponseWriter, r *http.Request) {
	var req StartStressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}
	if req.Class == nil || *req.Class == "" {
		writeError(w, http.StatusBadRequest, errors.New("class must be a non-empty string"))
		return
	}

	var seconds float64
	if req.Duration != nil {
		seconds = *req.Duration
	}
	if seconds < 0 || seconds > maxStressSeconds {
		writeError(w, http.StatusBadRequest, errors.New("duration must be a non-negative number of seconds"))
		return
	}

	class := *req.Class
	duration := time.Duration(seconds * float64(time.Second))
	if seconds > 0 && duration == 0 {
		writeError(w, http.StatusBadRequest, errors.New("duration must be 0 or at least one nanosecond"))
		return
	}
	if _, err := a.supervisor.Start(class, duration); err != nil {
		log.WithField("class", class).Warnf("stress start rejected: %v", err)
		writeError(w, stressErrorStatus(err), err)
		return
	}

	writeJSON(w, http.StatusOK, StartStressResponse{
		Status:   "started",
		Class:    class,
		Duration: seconds,
	})
}

func (a *Agent) stopStress(w http.ResponseWriter, r *http.Request) {
	class := mux.Vars(r)["class"]
	if err := a.supervisor.Stop(class); err != nil {
		log.WithField("class", class).Warnf("stress stop rejected: %v", err)
		writeError(w, stressErrorStatus(err), err)
		return
	}

	writeJSON(w, http.StatusOK, StopStressResponse{
		Status: "stopped",
		Class:  class,
	})
}

// stressErrorStatus maps supervisor errors to HTTP status codes. Every
// caller-caused condition is a 400.
func stressErrorStatus(err error) int {
	var spawnErr *stress.SpawnError
	switch {
	case errors.Is(err, stress.ErrAlreadyRunning),
		errors.Is(err, stress.ErrNotRunning),
		errors.Is(err, stress.ErrInvalidClass),
		errors.Is(err, stress.ErrInvalidDuration),
		errors.As(err, &spawnErr):
		return http.StatusBadRequest
	case errors.Is(err, stress.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Errorf("error encoding response to json: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
