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
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/gosuri/uitable"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/capture"
	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/connector"
	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/metadb"
	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/srcdb"
	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/utils"
	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/verifier"
)

var (
	verifierMode          string
	referenceCount        int64
	sourceDSN             string
	sourceTable           string
	maxEvents             int64
	maxDuration           time.Duration
	expectConnectorState  string
	connectorStatusPath   string
	invalidEventTolerance int
	referenceCountExact   bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a captured change-event window for gaps, duplicates and unexpected snapshot reads.",
	Long: `Reads a bounded window of change events from the capture queue under the export directory and
verifies it against a reference row count under the declared delivery mode. The reference count comes
either from --reference-count or from a live count of the source table (--source-dsn/--source-table).`,

	PreRun: func(cmd *cobra.Command, args []string) {
		validateExportDirFlag()
		validateVerifyFlags()
	},

	Run: func(cmd *cobra.Command, args []string) {
		verifyEvents()
	},
}

func validateVerifyFlags() {
	if !lo.Contains(verifier.ValidModes, verifierMode) {
		utils.ErrExit("invalid --mode %q. Valid modes = %v", verifierMode, verifier.ValidModes)
	}
	if referenceCount < 0 && sourceDSN == "" {
		utils.ErrExit("either --reference-count or --source-dsn must be provided")
	}
	if sourceDSN != "" && sourceTable == "" {
		utils.ErrExit("--source-table is required with --source-dsn")
	}
	if maxEvents <= 0 && maxDuration <= 0 {
		utils.ErrExit("at least one of --max-events and --max-duration must be set")
	}
	if expectConnectorState != "" && connectorStatusPath == "" {
		utils.ErrExit("--connector-status-file is required with --expect-connector-state")
	}
}

func verifyEvents() {
	ctx := context.Background()

	if expectConnectorState != "" {
		err := connector.EnsureState(connectorStatusPath, expectConnectorState)
		if err != nil {
			utils.ErrExit("capture-window precondition not met: %v", err)
		}
	}

	refCount := referenceCount
	if sourceDSN != "" {
		var err error
		refCount, err = srcdb.RowCount(ctx, sourceDSN, sourceTable)
		if err != nil {
			utils.ErrExit("Failed to fetch reference count: %v", err)
		}
		utils.PrintAndLog("reference count of %s: %s rows", sourceTable, humanize.Comma(refCount))
	}

	window, err := readCaptureWindow(ctx)
	if err != nil {
		utils.ErrExit("Failed to read capture window: %v", err)
	}
	log.Infof("collected %d events from %d segments (malformed=%d, hitCountBound=%v, hitTimeBound=%v)",
		len(window.Events), window.SegmentsRead, window.MalformedCount, window.HitCountBound, window.HitTimeBound)

	report := verifier.Verify(window.Events, int(refCount), verifierMode, verifier.Options{
		ReferenceCountExact:   referenceCountExact,
		InvalidEventTolerance: invalidEventTolerance,
		MalformedCount:        window.MalformedCount,
	})

	runID := uuid.New().String()
	printReport(runID, &report)
	recordRun(runID, &report)

	if !report.Passed() {
		atexit.Exit(1)
	}
}

func readCaptureWindow(ctx context.Context) (*capture.Window, error) {
	bounds := capture.Bounds{MaxEvents: maxEvents, MaxDuration: maxDuration}

	var progress capture.ProgressFunc
	var progressContainer *mpb.Progress
	var bar *mpb.Bar
	if maxEvents > 0 && term.IsTerminal(int(os.Stdout.Fd())) {
		progressContainer = mpb.New(mpb.WithWidth(64))
		bar = progressContainer.AddBar(maxEvents,
			mpb.PrependDecorators(decor.Name("collecting events ")),
			mpb.AppendDecorators(decor.CountersNoUnit("%d / %d")),
		)
		progress = func(collected int64) {
			bar.SetCurrent(collected)
		}
	}

	window, err := capture.ReadWindow(ctx, exportDir, bounds, progress)
	if bar != nil {
		bar.SetTotal(maxEvents, true)
		progressContainer.Wait()
	}
	return window, err
}

func printReport(runID string, report *verifier.VerificationReport) {
	fmt.Println()
	table := uitable.New()
	table.MaxColWidth = 80
	table.AddRow("RUN ID", runID)
	table.AddRow("MODE", report.Mode)
	table.AddRow("VERDICT", colorizeVerdict(report.Verdict))
	table.AddRow("TOTAL EVENTS", humanize.Comma(int64(report.TotalCount)))
	table.AddRow("UNIQUE KEYS", humanize.Comma(int64(report.UniqueKeyCount)))
	table.AddRow("DUPLICATES", humanize.Comma(int64(report.DuplicateCount)))
	table.AddRow("DELETED KEYS", humanize.Comma(int64(report.DeletedKeyCount)))
	table.AddRow("SNAPSHOT READS", humanize.Comma(int64(report.SnapshotReadCount)))
	table.AddRow("INVALID EVENTS", humanize.Comma(int64(report.InvalidEventCount)))
	table.AddRow("ORDERING ANOMALIES", humanize.Comma(int64(report.OrderingAnomalyCount)))
	table.AddRow("GAP ESTIMATE", humanize.Comma(int64(report.GapEstimate)))
	table.AddRow("REFERENCE COUNT", humanize.Comma(int64(report.ReferenceCount)))
	fmt.Println(table)

	if len(report.Diagnostics) > 0 {
		fmt.Println()
		fmt.Println(color.YellowString("Diagnostics:"))
		for _, diagnostic := range report.Diagnostics {
			fmt.Printf("  - %s\n", diagnostic)
		}
	}
	fmt.Println()
}

func colorizeVerdict(verdict string) string {
	if verdict == verifier.VERDICT_PASS {
		return color.GreenString(verdict)
	}
	return color.RedString(verdict)
}

func recordRun(runID string, report *verifier.VerificationReport) {
	err := metadb.CreateAndInitMetaDBIfRequired(exportDir)
	if err != nil {
		utils.ErrExit("Failed to initialize meta db: %v", err)
	}
	db, err := metadb.NewMetaDB(exportDir)
	if err != nil {
		utils.ErrExit("Failed to open meta db: %v", err)
	}
	defer db.Close()
	err = db.RecordVerificationRun(runID, report)
	if err != nil {
		utils.ErrExit("Failed to record verification run: %v", err)
	}
	log.Infof("recorded verification run %s (verdict=%s)", runID, report.Verdict)
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifierMode, "mode", verifier.MODE_ZERO_GAP_ZERO_DUP,
		fmt.Sprintf("delivery mode to verify under. Accepted values: %v", verifier.ValidModes))
	verifyCmd.Flags().Int64Var(&referenceCount, "reference-count", -1,
		"reference row count the capture window is verified against")
	verifyCmd.Flags().StringVar(&sourceDSN, "source-dsn", "",
		"source database connection string, used to fetch the reference count live")
	verifyCmd.Flags().StringVar(&sourceTable, "source-table", "",
		"source table to count, e.g. public.orders (required with --source-dsn)")
	verifyCmd.Flags().Int64Var(&maxEvents, "max-events", 0,
		"stop collecting after this many events (0 = unbounded)")
	verifyCmd.Flags().DurationVar(&maxDuration, "max-duration", 2*time.Minute,
		"stop collecting after this long (0 = unbounded)")
	verifyCmd.Flags().StringVar(&expectConnectorState, "expect-connector-state", "",
		fmt.Sprintf("precondition on the connector state before reading the window. Accepted values: [%s, %s]",
			connector.STATE_RUNNING, connector.STATE_STOPPED))
	verifyCmd.Flags().StringVar(&connectorStatusPath, "connector-status-file", "",
		"path to the dumped connector status payload (required with --expect-connector-state)")
	verifyCmd.Flags().IntVar(&invalidEventTolerance, "invalid-event-tolerance", 0,
		"number of malformed events tolerated before the verdict becomes INVALID")
	verifyCmd.Flags().BoolVar(&referenceCountExact, "reference-count-exact", true,
		"declare the reference count as exact, forcing the invalid-event tolerance to zero")
}
