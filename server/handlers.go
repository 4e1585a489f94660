package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bestsecurity/meetman/server/auth"
	"github.com/bestsecurity/meetman/server/auth/key"
	"github.com/bestsecurity/meetman/server/models"
	"github.com/bestsecurity/meetman/server/resolver"
	"github.com/bestsecurity/meetman/server/work"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

const AUTH_TOKEN_TTL = 24 * time.Hour

type ResponsePayload struct {
	Errors  []string    `json:"errors,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Paging  interface{} `json:"paging,omitempty"`
}

// BookingRequest is the public booking intake payload. Contact fields
// are free-form - identity resolution decides which customer they map to.
type BookingRequest struct {
	CustomerEmail string    `json:"customer_email"`
	CustomerPhone string    `json:"customer_phone"`
	CustomerName  string    `json:"customer_name"`
	MeetingTitle  string    `json:"meeting_title" validate:"required"`
	StartsAt      time.Time `json:"starts_at" validate:"required"`
	EndsAt        time.Time `json:"ends_at" validate:"required"`
	Notes         string    `json:"notes"`
}

func healthCheckHandler(rw http.ResponseWriter, r *http.Request) {
	json.NewEncoder(rw).Encode(ResponsePayload{Success: true})
}

func jwksHandler(rw http.ResponseWriter, r *http.Request) {
	keyPairJWK, err := authKeyPair.JWK()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(key.ExportJWKAsJWKS(keyPairJWK))
}

func logInHandler(rw http.ResponseWriter, r *http.Request) {
	data := make(map[string]string)
	decoder := json.NewDecoder(r.Body)
	decoder.Decode(&data)

	passwordHash, err := models.FindUserPassword(data["email"])
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	if !auth.CheckPasswordHash(data["password"], passwordHash) {
		writeResponse(rw, ResponsePayload{Errors: []string{"email/password is invalid"}}, http.StatusUnauthorized)
		return
	}

	user, err := models.FindUserBy("email", data["email"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	isAdmin, err := user.IsAdmin()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	token, err := auth.EncodeJWT(auth.TokenClaims{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsAdmin:   isAdmin,
		StandardClaims: jwt.StandardClaims{
			Subject:   fmt.Sprint(user.ID),
			ExpiresAt: time.Now().Add(AUTH_TOKEN_TTL).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}, authKeyPair)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]string{"token": token}})
}

// ---------------------------------------------------------------------------------//
// User handlers
// --------------------------------------------------------------------------------//

func createUserHandler(rw http.ResponseWriter, r *http.Request) {
	data := models.User{}
	decoder := json.NewDecoder(r.Body)

	err := decoder.Decode(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	errs := validate.Struct(data)
	if errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	err = models.CreateUser(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true})
}

func findUserHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	user, err := models.FindUserBy("id", vars["id"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: user})
}

func updateUserHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data := make(map[string]interface{})
	decoder := json.NewDecoder(r.Body)

	err := decoder.Decode(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	removeUnknownFields(data, map[string]bool{"first_name": true, "last_name": true, "password": true})
	if len(data) <= 0 {
		writeResponse(rw, ResponsePayload{Errors: []string{"valid fields required"}}, http.StatusBadRequest)
		return
	}

	if data["password"] != nil && strings.TrimSpace(fmt.Sprintf("%v", data["password"])) == "" {
		writeResponse(rw, ResponsePayload{Errors: []string{"password cannot be empty"}}, http.StatusBadRequest)
		return
	}

	user, err := models.FindUserBy("id", vars["id"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	err = user.Update(data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true})
}

func deleteUserHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	err := models.DeleteUser(vars["id"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true})
}

// ---------------------------------------------------------------------------------//
// Customer handlers
// --------------------------------------------------------------------------------//

func fetchCustomersHandler(rw http.ResponseWriter, r *http.Request) {
	customers, paging, err := models.FetchCustomers(pageFromQuery(r))
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: customers, Paging: paging})
}

// searchCustomerHandler resolves ?email= / ?phone= to the customer record
// that owns the contact, using the same matching rules as booking intake.
func searchCustomerHandler(rw http.ResponseWriter, r *http.Request) {
	email := models.NormalizeEmail(r.URL.Query().Get("email"))
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))

	if email == "" && phone == "" {
		writeResponse(rw, ResponsePayload{Errors: []string{"an email or phone query param is required"}}, http.StatusBadRequest)
		return
	}

	var customerID uint
	var err error

	if email != "" {
		customerID, err = models.FindCustomerIDOwningEmail(email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
			return
		}
	}

	if customerID == 0 && phone != "" {
		customerID, err = models.FindCustomerIDOwningPhone(phone)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			if errors.Is(err, models.ErrInvalidPhoneFormat) {
				writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
				return
			}
			writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
			return
		}
	}

	if customerID == 0 {
		writeResponse(rw, ResponsePayload{Errors: []string{"no customer found for the provided contact"}}, http.StatusNotFound)
		return
	}

	customer, err := models.FindCustomerBy("id", customerID)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: customer})
}

func findCustomerHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	customer, err := models.FindCustomerBy("id", vars["id"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: customer})
}

func updateCustomerHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data := make(map[string]interface{})
	decoder := json.NewDecoder(r.Body)

	err := decoder.Decode(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	removeUnknownFields(data, map[string]bool{"customer_name": true, "primary_email": true, "is_active": true})
	if len(data) <= 0 {
		writeResponse(rw, ResponsePayload{Errors: []string{"valid fields required"}}, http.StatusBadRequest)
		return
	}

	if data["primary_email"] != nil && !models.IsValidEmail(fmt.Sprintf("%v", data["primary_email"])) {
		writeResponse(rw, ResponsePayload{Errors: []string{"primary_email is invalid"}}, http.StatusBadRequest)
		return
	}

	err = models.UpdateCustomer(vars["id"], data)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	if errors.Is(err, models.ErrUniqueConstraint) {
		writeResponse(rw, ResponsePayload{Errors: []string{"primary_email already belongs to another customer"}}, http.StatusBadRequest)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	// Changing the primary email re-keys the contact index entry
	customer, err := models.FindCustomerBy("id", vars["id"])
	if err == nil {
		contactResolver.Index().Add(customer)
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true})
}

// deactivateCustomerHandler flags a customer inactive instead of deleting
// the row, so booking history & audit snapshots stay intact.
func deactivateCustomerHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	err := models.UpdateCustomer(vars["id"], map[string]interface{}{"is_active": false})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true})
}

// ---------------------------------------------------------------------------------//
// Booking handlers
// --------------------------------------------------------------------------------//

func createBookingHandler(rw http.ResponseWriter, r *http.Request) {
	data := BookingRequest{}
	decoder := json.NewDecoder(r.Body)

	err := decoder.Decode(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	errs := validate.Struct(data)
	if errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	if !data.EndsAt.After(data.StartsAt) {
		writeResponse(rw, ResponsePayload{Errors: []string{"ends_at must be after starts_at"}}, http.StatusBadRequest)
		return
	}

	resolution, err := contactResolver.ResolveOrCreate(
		data.CustomerEmail, data.CustomerPhone, data.CustomerName)
	if errors.Is(err, resolver.ErrInvalidInput) || errors.Is(err, models.ErrInvalidPhoneFormat) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	customer := resolution.Customer
	booking := models.Booking{
		Reference:    newBookingReference(),
		MeetingTitle: data.MeetingTitle,
		StartsAt:     data.StartsAt,
		EndsAt:       data.EndsAt,
		Notes:        data.Notes,

		// Contact snapshot is taken from the resolved customer record,
		// not the raw request, so it reflects the canonical identity.
		CustomerEmailAtBooking: customer.GetPrimaryEmail(),
		CustomerPhoneAtBooking: customer.GetPrimaryPhone(),

		CustomerID: customer.ID,
	}

	err = models.CreateBooking(&booking)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	enqueuePostBookingJobs(&booking, customer)

	rw.WriteHeader(http.StatusCreated)
	json.NewEncoder(rw).Encode(ResponsePayload{
		Success: true,
		Data: map[string]interface{}{
			"booking":          booking,
			"customer_created": resolution.Created,
		},
	})
}

func fetchBookingsHandler(rw http.ResponseWriter, r *http.Request) {
	var bookings []models.Booking
	var paging *models.Paging
	var err error

	status := r.URL.Query().Get("status")
	if status != "" {
		bookings, paging, err = models.FetchBookingsByStatus(status, pageFromQuery(r))
	} else {
		bookings, paging, err = models.FetchBookings(pageFromQuery(r))
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: bookings, Paging: paging})
}

func findBookingHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	booking, err := models.FindBookingBy("reference", vars["reference"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: booking})
}

func updateBookingStatusHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data := make(map[string]string)
	decoder := json.NewDecoder(r.Body)
	decoder.Decode(&data)

	if !models.BookingStatusNameMap[data["status"]] {
		writeResponse(rw, ResponsePayload{Errors: []string{fmt.Sprintf("unknown booking status: %q", data["status"])}}, http.StatusBadRequest)
		return
	}

	booking, err := models.FindBookingBy("reference", vars["reference"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	err = models.SetBookingStatus(booking.ID, data["status"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	// Cancelled/completed bookings change the customer's stats
	err = workerPool.Perform(work.JobParams{
		Name:    fmt.Sprintf("%v_%v", REFRESH_BOOKING_STATS_HANDLER, booking.CustomerID),
		Handler: REFRESH_BOOKING_STATS_HANDLER,
		Args:    map[string]interface{}{"customer_id": booking.CustomerID},
	})
	if err != nil {
		logg.Error(err)
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true})
}

// ---------------------------------------------------------------------------------//
// Job handlers
// --------------------------------------------------------------------------------//

func fetchJobsHandler(rw http.ResponseWriter, r *http.Request) {
	var jobs []models.Job
	var paging *models.Paging
	var err error

	status := r.URL.Query().Get("status")
	if status != "" {
		jobs, paging, err = models.FetchJobsByStatus(status, pageFromQuery(r))
	} else {
		jobs, paging, err = models.FetchJobs(pageFromQuery(r))
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: jobs, Paging: paging})
}

func jobStatsHandler(rw http.ResponseWriter, r *http.Request) {
	stats, err := models.CurrentJobsStats()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: stats})
}

func newBookingReference() string {
	return fmt.Sprintf("BK-%v", strings.ToUpper(uuid.NewString()[:8]))
}
