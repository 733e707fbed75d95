package cmd

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/metadb"
	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/utils"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the verification runs recorded in this export directory.",

	PreRun: func(cmd *cobra.Command, args []string) {
		validateExportDirFlag()
	},

	Run: func(cmd *cobra.Command, args []string) {
		if !utils.FileOrFolderExists(metadb.GetMetaDBPath(exportDir)) {
			utils.PrintAndLog("No verification runs recorded yet in %q.", exportDir)
			return
		}
		db, err := metadb.NewMetaDB(exportDir)
		if err != nil {
			utils.ErrExit("Failed to open meta db: %v", err)
		}
		defer db.Close()

		runs, err := db.GetVerificationRuns()
		if err != nil {
			utils.ErrExit("Failed to load verification runs: %v", err)
		}
		if len(runs) == 0 {
			utils.PrintAndLog("No verification runs recorded yet in %q.", exportDir)
			return
		}

		table := uitable.New()
		table.AddRow("RUN AT", "RUN ID", "MODE", "VERDICT", "EVENTS", "DUPLICATES", "GAP")
		for _, run := range runs {
			table.AddRow(run.RunAt.Format("2006-01-02 15:04:05"), run.RunID, run.Mode,
				colorizeVerdict(run.Verdict), run.Report.TotalCount, run.Report.DuplicateCount, run.Report.GapEstimate)
		}
		fmt.Println(table)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
