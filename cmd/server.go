package cmd

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	devConfig "github.com/bestsecurity/meetman/dev/config"
	"github.com/bestsecurity/meetman/server"
	"github.com/bestsecurity/meetman/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start a meetman server",
	Long: `The meetman server accepts booking requests, resolves each one to a
canonical customer record & manages staff accounts, reminders and backups`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start(serverConfig(), isDevEnv)
	},
}

var serverConfigFile string

func init() {
	rootCmd.AddCommand(serverCmd)

	// TODO: Make this required, when not in dev mode
	serverCmd.Flags().StringVar(&serverConfigFile, "sconfig", "", "Config for server")
}

func serverConfig() *viper.Viper {
	config = viper.New()

	if isDevEnv {
		serverConfigFile = devConfigFilePath()
	}

	config.SetConfigFile(serverConfigFile)
	config.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := config.ReadInConfig(); err != nil {
		log.Panic(fmt.Sprintf("error reading server config file: %v", err))
	}

	return config
}

// devConfigFilePath returns the path to the dev server config,
// seeding the file with defaults when it doesn't exist yet.
func devConfigFilePath() string {
	configDir, err := os.Getwd()
	if err != nil {
		log.Panic(err)
	}

	configFilePath := filepath.Join(configDir, "dev", "config", "server.yml")
	if !utils.FileExist(configFilePath) {
		fmt.Println(warningLabel, "no dev server config found, creating one with defaults")

		err = utils.CreateDirIfNotExist(filepath.Dir(configFilePath))
		if err != nil {
			log.Panic(err)
		}

		err = ioutil.WriteFile(configFilePath, []byte(devConfig.SERVER_YML), 0600)
		if err != nil {
			log.Panic(err)
		}
	}

	return configFilePath
}
