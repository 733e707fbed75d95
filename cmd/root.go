/*
Copyright (c) Vijay Boopathy.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nightlyone/lockfile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/config"
	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/utils"
)

var (
	cfgFile   string
	exportDir string
	lockFile  lockfile.Lockfile
)

var rootCmd = &cobra.Command{
	Use:   "connectors-test",
	Short: "Verify replication-offset continuity and event-set integrity of a CDC pipeline across database upgrades",
	Long: `Verification harness for change-data-capture pipelines. It classifies whether a database upgrade
preserved the connector's replication-offset sequence, and verifies a captured change-event window for
gaps, duplicates and unexpected snapshot reads against a reference row count.`,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		err := config.ValidateLogLevel()
		if err != nil {
			utils.ErrExit("%s", err)
		}
		if exportDir != "" && utils.FileOrFolderExists(exportDir) {
			if cmd.Use != "version" && cmd.Use != "status" {
				lockExportDir()
			}
			InitLogging(exportDir, cmd.Use == "status", cmd.Use)
		}
	},

	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			cmd.Help()
			os.Exit(0)
		}
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if exportDir != "" && utils.FileOrFolderExists(exportDir) && cmd.Use != "version" && cmd.Use != "status" {
			unlockExportDir()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.connectors-test.yaml)")
	rootCmd.PersistentFlags().StringVarP(&exportDir, "export-dir", "e", "",
		"export directory is the workspace holding the captured event queue, state, and logs")
	rootCmd.PersistentFlags().StringVar(&config.LogLevel, "log-level", "info",
		"log level for the log file. Accepted values: (trace, debug, info, warn, error, fatal, panic)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".connectors-test" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".connectors-test")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func validateExportDirFlag() {
	if exportDir == "" {
		utils.ErrExit(`ERROR: required flag "export-dir" not set`)
	}
	if !utils.FileOrFolderExists(exportDir) {
		utils.ErrExit("export-dir %q doesn't exists.\n", exportDir)
	} else if exportDir == "." {
		fmt.Println("Note: Using current working directory as export directory")
	} else {
		exportDir = strings.TrimRight(exportDir, "/")
	}
}

func lockExportDir() {
	lockFilePath, err := filepath.Abs(filepath.Join(exportDir, ".lockfile.lck"))
	if err != nil {
		utils.ErrExit("Failed to get absolute path for lockfile: %v\n", err)
	}

	lockFile, err = lockfile.New(lockFilePath)
	if err != nil {
		utils.ErrExit("Failed to create lockfile %q: %v\n", lockFilePath, err)
	}

	err = lockFile.TryLock()
	if err == nil {
		return
	} else if err == lockfile.ErrBusy {
		utils.ErrExit("Another instance of connectors-test is running in the export-dir = %s\n", exportDir)
	} else {
		utils.ErrExit("Unable to lock the export-dir: %v\n", err)
	}
}

func unlockExportDir() {
	err := lockFile.Unlock()
	if err != nil {
		utils.ErrExit("Unable to unlock %q: %v\n", lockFile, err)
	}
}
