package cmd

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bestsecurity/meetman/server/models"
	"github.com/bestsecurity/meetman/server/resolver"
	"github.com/bestsecurity/meetman/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// LegacyBookingRecord mirrors one row of a booking export from the old
// system, where contact details lived on the booking itself.
type LegacyBookingRecord struct {
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	CustomerPhone string    `json:"customer_phone"`
	MeetingTitle  string    `json:"meeting_title"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	Notes         string    `json:"notes"`
	Status        string    `json:"status"`
}

type MigrationSummary struct {
	CustomersCreated int
	CustomersReused  int
	BookingsCreated  int
	Skipped          []string
}

var migrateInputFile string

var migrateCmd = &cobra.Command{
	Use:   "migrate-customers",
	Short: "Backfill customer records from a legacy booking export",
	Long: `Reads a JSON export of legacy bookings(where contact details live on each
booking) & replays them through identity resolution, so every booking ends
up linked to a single canonical customer record`,
	Run: func(cmd *cobra.Command, args []string) {
		runMigration()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringVar(&migrateInputFile, "input", "", "JSON file with legacy booking records")
	migrateCmd.Flags().StringVar(&serverConfigFile, "sconfig", "", "Config for server")
	migrateCmd.MarkFlagRequired("input")
}

func runMigration() {
	serverCfg := serverConfig()

	err := models.Initialize(databaseFilePath(isDevEnv), serverCfg.GetString("sqlite.passPhrase"))
	cobra.CheckErr(err)

	records, err := readLegacyBookings(migrateInputFile)
	cobra.CheckErr(err)

	contactResolver := resolver.New()
	cobra.CheckErr(contactResolver.WarmUp())

	summary := migrateLegacyBookings(contactResolver, records)

	fmt.Printf("Customers created: %v\n", summary.CustomersCreated)
	fmt.Printf("Customers reused:  %v\n", summary.CustomersReused)
	fmt.Printf("Bookings created:  %v\n", summary.BookingsCreated)

	for _, skipped := range summary.Skipped {
		fmt.Println(warningLabel, skipped)
	}
}

// migrateLegacyBookings replays each legacy record through identity
// resolution & links the migrated booking to the resolved customer. The
// contact snapshot on the booking comes from the canonical record, same
// as live intake. Records that can't be resolved are skipped, not fatal.
func migrateLegacyBookings(contactResolver *resolver.Resolver, records []LegacyBookingRecord) *MigrationSummary {
	summary := MigrationSummary{}
	customersTouched := make(map[uint]bool)

	for i, record := range records {
		resolution, err := contactResolver.ResolveOrCreate(
			record.CustomerEmail, record.CustomerPhone, record.CustomerName)
		if err != nil {
			summary.Skipped = append(summary.Skipped,
				fmt.Sprintf("record %v: %v", i, err))
			continue
		}

		if resolution.Created {
			summary.CustomersCreated++
		} else {
			summary.CustomersReused++
		}

		customer := resolution.Customer
		booking := models.Booking{
			Reference:              newBookingReference(),
			MeetingTitle:           record.MeetingTitle,
			StartsAt:               record.StartsAt,
			EndsAt:                 record.EndsAt,
			Notes:                  record.Notes,
			CustomerEmailAtBooking: customer.GetPrimaryEmail(),
			CustomerPhoneAtBooking: customer.GetPrimaryPhone(),
			CustomerID:             customer.ID,
		}

		err = models.CreateBooking(&booking)
		if err != nil {
			summary.Skipped = append(summary.Skipped,
				fmt.Sprintf("record %v: %v", i, err))
			continue
		}

		if models.BookingStatusNameMap[record.Status] && record.Status != models.CONFIRMED_BOOKING {
			err = models.SetBookingStatus(booking.ID, record.Status)
			if err != nil {
				summary.Skipped = append(summary.Skipped,
					fmt.Sprintf("record %v: unable to set status: %v", i, err))
			}
		}

		customersTouched[customer.ID] = true
		summary.BookingsCreated++
	}

	for customerID := range customersTouched {
		err := models.RefreshBookingStats(customerID)
		if err != nil {
			summary.Skipped = append(summary.Skipped,
				fmt.Sprintf("customer %v: unable to refresh stats: %v", customerID, err))
		}
	}

	return &summary
}

func readLegacyBookings(filePath string) ([]LegacyBookingRecord, error) {
	content, err := ioutil.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	records := []LegacyBookingRecord{}
	err = json.Unmarshal(content, &records)
	if err != nil {
		return nil, fmt.Errorf("unable to parse %v: %v", filePath, err)
	}

	return records, nil
}

func newBookingReference() string {
	return fmt.Sprintf("BK-%v", strings.ToUpper(uuid.NewString()[:8]))
}

// databaseFilePath mirrors where the server keeps its sqlite db, so CLI
// commands operate on the same data.
func databaseFilePath(devMode bool) string {
	configFolderName := "meetman"
	rootDir, err := os.UserHomeDir()
	if err != nil {
		log.Panic(err)
	}

	if devMode {
		configFolderName = "dev"
		rootDir, err = os.Getwd()
		if err != nil {
			log.Panic(err)
		}
	}

	configDir := filepath.Join(rootDir, configFolderName)
	err = utils.CreateDirIfNotExist(configDir)
	if err != nil {
		log.Panic(err)
	}

	return filepath.Join(configDir, "meetman.db")
}
