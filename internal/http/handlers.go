package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/ingest"
	"github.com/example/ride-dispatch/internal/models"
)

// Server is the gateway surface: JSON-over-HTTP mapping of the
// dispatch facade contract, plus a websocket ingest channel for
// continuous driver tracking. Auth, CORS and token issuance live in
// front of this process, not here.
type Server struct {
	facade          *dispatch.Facade
	kafka           *ingest.KafkaProducer // optional
	logger          *slog.Logger
	defaultRadiusKm float64
	mux             *mux.Router
}

func NewServer(f *dispatch.Facade, kp *ingest.KafkaProducer, logger *slog.Logger, defaultRadiusKm float64) *Server {
	s := &Server{
		facade:          f,
		kafka:           kp,
		logger:          logger,
		defaultRadiusKm: defaultRadiusKm,
		mux:             mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/rides", s.handleRequestRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/pending", s.handlePendingRides).Methods("GET")
	s.mux.HandleFunc("/api/v1/rides/{id}/accept", s.handleAcceptRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/{id}/status", s.handleAdvanceRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/{id}/status", s.handleRideStatus).Methods("GET")
	s.mux.HandleFunc("/api/v1/users/{id}/rides/current", s.handleCurrentRide).Methods("GET")
	s.mux.HandleFunc("/api/v1/users/{id}/rides", s.handleRideHistory).Methods("GET")
	s.mux.HandleFunc("/api/v1/users/{id}/location", s.handleUpdateUserLocation).Methods("PUT")
	s.mux.HandleFunc("/api/v1/users/{id}/location", s.handleGetUserLocation).Methods("GET")
	s.mux.HandleFunc("/api/v1/users/{id}/location", s.handleRemoveUserLocation).Methods("DELETE")
	s.mux.HandleFunc("/api/v1/drivers/{id}/location", s.handleUpdateDriverLocation).Methods("POST")
	s.mux.HandleFunc("/api/v1/drivers/nearby", s.handleNearbyDrivers).Methods("GET")
	s.mux.HandleFunc("/ws/drivers/{id}", s.handleDriverWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type rideRequestBody struct {
	RiderID         int64        `json:"rider_id"`
	Pickup          models.Coord `json:"pickup"`
	PickupAddress   string       `json:"pickup_address"`
	Destination     models.Coord `json:"destination"`
	DestinationAddr string       `json:"destination_address"`
}

func (s *Server) handleRequestRide(w http.ResponseWriter, r *http.Request) {
	var body rideRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.facade.RequestRide(r.Context(), body.RiderID, body.Pickup, body.Destination, body.PickupAddress, body.DestinationAddr)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ride_id": id})
}

func (s *Server) handlePendingRides(w http.ResponseWriter, r *http.Request) {
	at, radius, err := s.coordAndRadius(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rides, err := s.facade.PendingRidesNear(r.Context(), at, radius)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if rides == nil {
		rides = []models.Ride{}
	}
	writeJSON(w, http.StatusOK, rides)
}

func (s *Server) handleAcceptRide(w http.ResponseWriter, r *http.Request) {
	rideID, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		DriverID int64 `json:"driver_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	got, err := s.facade.AcceptRide(r.Context(), body.DriverID, rideID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if got == 0 {
		writeError(w, http.StatusConflict, "ride not pending or not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ride_id": got})
}

// handleAdvanceRide maps an action verb onto the state machine. An
// unknown action is a validation failure and never reaches the store.
func (s *Server) handleAdvanceRide(w http.ResponseWriter, r *http.Request) {
	rideID, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var (
		applied bool
		err     error
	)
	switch body.Action {
	case "start_drive":
		applied, err = s.facade.StartDriveToPickup(r.Context(), rideID)
	case "arrive":
		applied, err = s.facade.ArrivedAtPickup(r.Context(), rideID)
	case "start_ride":
		applied, err = s.facade.StartRideToDestination(r.Context(), rideID)
	case "complete":
		applied, err = s.facade.CompleteRide(r.Context(), rideID)
	case "cancel":
		applied, err = s.facade.CancelRide(r.Context(), rideID)
	default:
		writeError(w, http.StatusBadRequest, "unknown action "+strconv.Quote(body.Action))
		return
	}
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if !applied {
		writeError(w, http.StatusConflict, "ride is not in the required state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRideStatus(w http.ResponseWriter, r *http.Request) {
	rideID, ok := pathID(w, r)
	if !ok {
		return
	}
	status, err := s.facade.GetRideStatus(r.Context(), rideID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if status == "" {
		writeError(w, http.StatusNotFound, "ride not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

func (s *Server) handleCurrentRide(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r)
	if !ok {
		return
	}
	ride, err := s.facade.GetCurrentRide(r.Context(), userID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if ride == nil {
		writeError(w, http.StatusNotFound, "no active ride")
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleRideHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r)
	if !ok {
		return
	}
	rides, err := s.facade.GetRideHistory(r.Context(), userID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if rides == nil {
		rides = []models.Ride{}
	}
	writeJSON(w, http.StatusOK, rides)
}

func (s *Server) handleUpdateUserLocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Lat     float64 `json:"lat"`
		Lng     float64 `json:"lng"`
		Address string  `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	applied, err := s.facade.UpdateUserLocation(r.Context(), userID, models.Coord{Lat: body.Lat, Lng: body.Lng}, body.Address)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if !applied {
		writeError(w, http.StatusConflict, "location not updated")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetUserLocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r)
	if !ok {
		return
	}
	loc, err := s.facade.GetUserLocation(r.Context(), userID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if loc == nil {
		writeError(w, http.StatusNotFound, "no location reported")
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleRemoveUserLocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r)
	if !ok {
		return
	}
	removed, err := s.facade.RemoveUserLocation(r.Context(), userID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "no location to remove")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateDriverLocation(w http.ResponseWriter, r *http.Request) {
	driverID, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Lat     float64 `json:"lat"`
		Lng     float64 `json:"lng"`
		Address string  `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	update := models.LocationUpdate{DriverID: driverID, Lat: body.Lat, Lng: body.Lng, Address: body.Address}
	applied, err := s.applyDriverLocation(r, update)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if !applied {
		writeError(w, http.StatusForbidden, "user is not a driver")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNearbyDrivers(w http.ResponseWriter, r *http.Request) {
	at, radius, err := s.coordAndRadius(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	drivers, err := s.facade.NearbyDrivers(r.Context(), at, radius)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if drivers == nil {
		drivers = []models.NearbyDriver{}
	}
	writeJSON(w, http.StatusOK, drivers)
}

var upgrader = websocket.Upgrader{}

// handleDriverWS is the continuous tracking channel: the driver app
// streams location frames over one connection instead of hammering the
// POST endpoint. Each frame goes through the same facade path.
func (s *Server) handleDriverWS(w http.ResponseWriter, r *http.Request) {
	driverID, ok := pathID(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the handshake error
		return
	}
	defer conn.Close()
	for {
		var frame models.LocationUpdate
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		frame.DriverID = driverID // the path owns identity, not the frame
		if _, err := s.applyDriverLocation(r, frame); err != nil {
			s.logger.Error("ws location update failed", "driver_id", driverID, "error", err)
			return
		}
	}
}

// applyDriverLocation runs one driver tracking update: facade write
// first, then a best-effort publish for downstream consumers.
func (s *Server) applyDriverLocation(r *http.Request, u models.LocationUpdate) (bool, error) {
	applied, err := s.facade.UpdateDriverLocation(r.Context(), u.DriverID, models.Coord{Lat: u.Lat, Lng: u.Lng})
	if err != nil || !applied {
		return applied, err
	}
	if s.kafka != nil {
		if perr := s.kafka.PublishLocation(u); perr != nil {
			s.logger.Warn("kafka publish failed", "driver_id", u.DriverID, "error", perr)
		}
	}
	return true, nil
}

func (s *Server) coordAndRadius(r *http.Request) (models.Coord, float64, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return models.Coord{}, 0, errors.New("invalid lat")
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil {
		return models.Coord{}, 0, errors.New("invalid lng")
	}
	radius := s.defaultRadiusKm
	if v := q.Get("radius_km"); v != "" {
		radius, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return models.Coord{}, 0, errors.New("invalid radius_km")
		}
	}
	return models.Coord{Lat: lat, Lng: lng}, radius, nil
}

// writeFailure translates facade errors: validation is the caller's
// fault, a mapping error means the stored data is unusable, anything
// else is a store fault whose outcome is unknown.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	var mapErr *models.MappingError
	switch {
	case errors.Is(err, dispatch.ErrInvalidCoordinate), errors.Is(err, dispatch.ErrInvalidRadius):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &mapErr):
		s.logger.Error("corrupt stored value", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.logger.Error("store failure", "error", err)
		writeError(w, http.StatusBadGateway, "storage unavailable")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
