package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bestsecurity/meetman/server/auth"
	"github.com/bestsecurity/meetman/server/auth/key"
	"github.com/bestsecurity/meetman/server/gstorage"
	"github.com/bestsecurity/meetman/server/logger"
	"github.com/bestsecurity/meetman/server/models"
	"github.com/bestsecurity/meetman/server/reminders"
	"github.com/bestsecurity/meetman/server/resolver"
	"github.com/bestsecurity/meetman/server/twilio"
	"github.com/bestsecurity/meetman/server/work"
	"github.com/bestsecurity/meetman/shared"
	"github.com/bestsecurity/meetman/utils"
	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"
)

const DB_FILE_NAME = "meetman.db"

var (
	logg     = logger.NewLogger()
	validate = validator.New()

	appConfig       *shared.ServerConfig
	authKeyPair     *key.KeyPair
	workerPool      *work.WorkerPoolAdapter
	contactResolver *resolver.Resolver
	twilioClient    *twilio.ClientWrapper
	gStorage        *gstorage.GStorage
	sqliteDbPath    string
)

type RequestContextKey string

type DecodedJWT struct {
	Claims   *auth.TokenClaims
	ErrorMsg string
}

// Start brings up the booking server: db, contact index, job queue,
// schedulers & the http listener. Blocks until SIGINT/SIGTERM.
func Start(config *viper.Viper, devMode bool) {
	appConfig = parseServerConfig(config)

	err := RegisterValidators(validate)
	fatalOnError(err)

	authKeyPair, err = key.NewKeyPairFromRSAPrivateKeyPem(appConfig.Meetman.PrivateKeyPem)
	fatalOnError(err)

	sqliteDbPath = filepath.Join(configDirectory(devMode), DB_FILE_NAME)

	backupAndSyncEnabled := fmt.Sprintf("%v", appConfig.Google.Storage.EnableSqliteBackupAndSync) == "true"
	if backupAndSyncEnabled {
		gStorage, err = gstorage.NewGStorage(
			appConfig.Google.ApplicationCredentials, appConfig.Google.Storage.Prefix)
		fatalOnError(err)

		restoreSqliteDbIfMissing()
	}

	err = models.Initialize(sqliteDbPath, appConfig.Sqlite.PassPhrase)
	fatalOnError(err)

	contactResolver = resolver.New()
	fatalOnError(contactResolver.WarmUp())

	twilioClient = twilio.NewClient(appConfig.Twilio, appConfig.Meetman.AppUrl)

	workerPool = work.NewWorkerAdapter(appConfig.Meetman.Cron.TimeZone)
	registerJobHandlers(workerPool)
	enqueueJobs(workerPool, backupAndSyncEnabled)

	reminderScheduler := reminders.NewReminderScheduler(workerPool, twilioClient)
	fatalOnError(reminderScheduler.Start())

	fatalOnError(workerPool.Start())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%v", appConfig.Meetman.Listener.Port),
		Handler: newRouter(),
	}
	go serve(server)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	cleanup(workerPool, server, backupAndSyncEnabled)
}

func newRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware, initialContextMiddleware)

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/login", logInHandler).Methods("POST")
	router.HandleFunc("/jwks", jwksHandler).Methods("GET")

	// Booking intake is public - customers submit without an account
	router.HandleFunc("/bookings", createBookingHandler).Methods("POST")

	adminRouter := router.PathPrefix("/users").Subrouter()
	adminRouter.Use(adminRouteMiddleware)
	adminRouter.HandleFunc("", createUserHandler).Methods("POST")
	adminRouter.HandleFunc("/{id:[0-9]+}", deleteUserHandler).Methods("DELETE")

	userRouter := router.PathPrefix("/users").Subrouter()
	userRouter.Use(protectedRouteMiddleware)
	userRouter.HandleFunc("/{id:[0-9]+}", findUserHandler).Methods("GET")
	userRouter.HandleFunc("/{id:[0-9]+}", updateUserHandler).Methods("PUT")

	customerRouter := router.PathPrefix("/customers").Subrouter()
	customerRouter.Use(protectedRouteMiddleware)
	customerRouter.HandleFunc("", fetchCustomersHandler).Methods("GET")
	customerRouter.HandleFunc("/search", searchCustomerHandler).Methods("GET")
	customerRouter.HandleFunc("/{id:[0-9]+}", findCustomerHandler).Methods("GET")
	customerRouter.HandleFunc("/{id:[0-9]+}", updateCustomerHandler).Methods("PUT")
	customerRouter.HandleFunc("/{id:[0-9]+}", deactivateCustomerHandler).Methods("DELETE")

	bookingRouter := router.PathPrefix("/bookings").Subrouter()
	bookingRouter.Use(protectedRouteMiddleware)
	bookingRouter.HandleFunc("", fetchBookingsHandler).Methods("GET")
	bookingRouter.HandleFunc("/{reference}", findBookingHandler).Methods("GET")
	bookingRouter.HandleFunc("/{reference}/status", updateBookingStatusHandler).Methods("PUT")

	jobRouter := router.PathPrefix("/jobs").Subrouter()
	jobRouter.Use(adminRouteMiddleware)
	jobRouter.HandleFunc("", fetchJobsHandler).Methods("GET")
	jobRouter.HandleFunc("/stats", jobStatsHandler).Methods("GET")

	return router
}

func parseServerConfig(config *viper.Viper) *shared.ServerConfig {
	serverConfig := shared.ServerConfig{}

	err := config.Unmarshal(&serverConfig)
	fatalOnError(err)

	err = validate.Struct(serverConfig)
	fatalOnError(err)

	return &serverConfig
}

// restoreSqliteDbIfMissing pulls the last db backup from cloud storage,
// so a fresh host starts from known data. An existing local db always wins.
func restoreSqliteDbIfMissing() {
	if utils.FileExist(sqliteDbPath) {
		return
	}

	err := gStorage.DownloadFile(appConfig.Google.Storage.Bucket, DB_FILE_NAME, sqliteDbPath)
	if errors.Is(err, gstorage.ErrObjectNotExist) {
		logg.Infof("No db backup found in bucket %v, starting fresh", appConfig.Google.Storage.Bucket)
		return
	}

	if err != nil {
		logg.Fatalf("unable to restore db backup: %v", err)
	}
}
